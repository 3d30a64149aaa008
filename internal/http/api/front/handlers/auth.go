package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/router-for-me/SIMReseller/internal/accounts"
)

// AuthHandler serves signup and login.
type AuthHandler struct {
	accounts *accounts.Service
}

// NewAuthHandler constructs an AuthHandler.
func NewAuthHandler(svc *accounts.Service) *AuthHandler {
	return &AuthHandler{accounts: svc}
}

// Signup registers a user and returns it with a token.
func (h *AuthHandler) Signup(c *gin.Context) {
	var body accounts.RegisterInput
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		writeBindError(c, errBind)
		return
	}

	session, errRegister := h.accounts.Register(c.Request.Context(), body)
	if errRegister != nil {
		WriteError(c, errRegister)
		return
	}
	writeSuccess(c, http.StatusCreated, "User registered", gin.H{
		"user":  formatUser(session.User),
		"token": session.Token,
	})
}

// Login verifies credentials and returns the user with a token.
func (h *AuthHandler) Login(c *gin.Context) {
	var body accounts.LoginInput
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		writeBindError(c, errBind)
		return
	}

	session, errLogin := h.accounts.Login(c.Request.Context(), body)
	if errLogin != nil {
		WriteError(c, errLogin)
		return
	}
	writeSuccess(c, http.StatusOK, "Login successful", gin.H{
		"user":  formatUser(session.User),
		"token": session.Token,
	})
}
