package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/router-for-me/SIMReseller/internal/db"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// HealthHandler reports service liveness.
type HealthHandler struct {
	db *gorm.DB
}

// NewHealthHandler constructs a HealthHandler.
func NewHealthHandler(conn *gorm.DB) *HealthHandler {
	return &HealthHandler{db: conn}
}

// Healthz pings the store.
func (h *HealthHandler) Healthz(c *gin.Context) {
	if errPing := db.Ping(h.db.WithContext(c.Request.Context())); errPing != nil {
		log.WithError(errPing).Warn("health check failed")
		c.JSON(http.StatusServiceUnavailable, Envelope{Success: false, Message: "database unavailable"})
		return
	}
	c.JSON(http.StatusOK, Envelope{Success: true, Message: "ok"})
}
