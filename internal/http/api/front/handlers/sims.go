package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/router-for-me/SIMReseller/internal/apperr"
	"github.com/router-for-me/SIMReseller/internal/sims"
)

var (
	errInvalidSIMID  = apperr.Validation("Invalid or missing ID")
	errSIMIDMismatch = apperr.Validation("ID in body does not match the path")
)

// SIMHandler serves the SIM record endpoints.
type SIMHandler struct {
	sims *sims.Service
}

// NewSIMHandler constructs a SIMHandler.
func NewSIMHandler(svc *sims.Service) *SIMHandler {
	return &SIMHandler{sims: svc}
}

// updateSIMRequest accepts the record id in the body as well as the path.
type updateSIMRequest struct {
	ID *uint64 `json:"id"`
	sims.UpdateInput
}

// Create stores a new SIM record for the current user.
func (h *SIMHandler) Create(c *gin.Context) {
	userID := getUserID(c)
	if userID == 0 {
		WriteError(c, errUnauthenticated)
		return
	}

	var body sims.CreateInput
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		writeBindError(c, errBind)
		return
	}

	sim, errCreate := h.sims.Create(c.Request.Context(), userID, body)
	if errCreate != nil {
		WriteError(c, errCreate)
		return
	}
	writeSuccess(c, http.StatusCreated, "SIM details created", formatSIM(sim))
}

// List returns the current user's SIM records.
func (h *SIMHandler) List(c *gin.Context) {
	userID := getUserID(c)
	if userID == 0 {
		WriteError(c, errUnauthenticated)
		return
	}

	rows, errList := h.sims.List(c.Request.Context(), userID)
	if errList != nil {
		WriteError(c, errList)
		return
	}
	out := make([]gin.H, 0, len(rows))
	for i := range rows {
		out = append(out, formatSIM(&rows[i]))
	}
	writeSuccess(c, http.StatusOK, "SIM details fetched", out)
}

// Get returns one SIM record of the current user.
func (h *SIMHandler) Get(c *gin.Context) {
	userID := getUserID(c)
	if userID == 0 {
		WriteError(c, errUnauthenticated)
		return
	}
	simID, ok := parseID(c.Param("id"))
	if !ok {
		WriteError(c, errInvalidSIMID)
		return
	}

	sim, errGet := h.sims.Get(c.Request.Context(), userID, simID)
	if errGet != nil {
		WriteError(c, errGet)
		return
	}
	writeSuccess(c, http.StatusOK, "SIM details fetched", formatSIM(sim))
}

// Update changes the given fields of one SIM record.
func (h *SIMHandler) Update(c *gin.Context) {
	userID := getUserID(c)
	if userID == 0 {
		WriteError(c, errUnauthenticated)
		return
	}

	var body updateSIMRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		writeBindError(c, errBind)
		return
	}

	simID, ok := parseID(c.Param("id"))
	if !ok {
		WriteError(c, errInvalidSIMID)
		return
	}
	if body.ID != nil && *body.ID != simID {
		WriteError(c, errSIMIDMismatch)
		return
	}

	sim, errUpdate := h.sims.Update(c.Request.Context(), userID, simID, body.UpdateInput)
	if errUpdate != nil {
		WriteError(c, errUpdate)
		return
	}
	writeSuccess(c, http.StatusOK, "SIM details updated", formatSIM(sim))
}

// Delete removes one SIM record of the current user.
func (h *SIMHandler) Delete(c *gin.Context) {
	userID := getUserID(c)
	if userID == 0 {
		WriteError(c, errUnauthenticated)
		return
	}
	simID, ok := parseID(c.Param("id"))
	if !ok {
		WriteError(c, errInvalidSIMID)
		return
	}

	if errDelete := h.sims.Delete(c.Request.Context(), userID, simID); errDelete != nil {
		WriteError(c, errDelete)
		return
	}
	writeSuccess(c, http.StatusOK, "SIM details deleted", nil)
}

// parseID parses a positive record id.
func parseID(raw string) (uint64, bool) {
	id, errParse := strconv.ParseUint(strings.TrimSpace(raw), 10, 64)
	if errParse != nil || id == 0 {
		return 0, false
	}
	return id, true
}
