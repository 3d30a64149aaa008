package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/router-for-me/SIMReseller/internal/accounts"
	"github.com/router-for-me/SIMReseller/internal/apperr"
)

var errUnauthenticated = apperr.New(apperr.KindAuth, "Unauthorized")

// UserHandler serves the authenticated user's profile and credits.
type UserHandler struct {
	accounts *accounts.Service
}

// NewUserHandler constructs a UserHandler.
func NewUserHandler(svc *accounts.Service) *UserHandler {
	return &UserHandler{accounts: svc}
}

// Profile returns the current user.
func (h *UserHandler) Profile(c *gin.Context) {
	userID := getUserID(c)
	if userID == 0 {
		WriteError(c, errUnauthenticated)
		return
	}

	user, errProfile := h.accounts.Profile(c.Request.Context(), userID)
	if errProfile != nil {
		WriteError(c, errProfile)
		return
	}
	writeSuccess(c, http.StatusOK, "User fetched", gin.H{"user": formatUser(user)})
}

// DebitCredits spends credits from the current user's balance.
func (h *UserHandler) DebitCredits(c *gin.Context) {
	userID := getUserID(c)
	if userID == 0 {
		WriteError(c, errUnauthenticated)
		return
	}

	var body accounts.DebitInput
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		writeBindError(c, errBind)
		return
	}

	user, errDebit := h.accounts.DebitCredits(c.Request.Context(), userID, body)
	if errDebit != nil {
		WriteError(c, errDebit)
		return
	}
	writeSuccess(c, http.StatusOK, "Credits updated", gin.H{"user": formatUser(user)})
}

// Update applies a partial profile update.
func (h *UserHandler) Update(c *gin.Context) {
	userID := getUserID(c)
	if userID == 0 {
		WriteError(c, errUnauthenticated)
		return
	}

	var body accounts.UpdateInput
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		writeBindError(c, errBind)
		return
	}

	user, errUpdate := h.accounts.UpdateProfile(c.Request.Context(), userID, body)
	if errUpdate != nil {
		WriteError(c, errUpdate)
		return
	}
	writeSuccess(c, http.StatusOK, "User updated", gin.H{"user": formatUser(user)})
}
