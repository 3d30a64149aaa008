// Package handlers implements the JSON endpoints of the public API.
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/router-for-me/SIMReseller/internal/apperr"
	log "github.com/sirupsen/logrus"
)

// Generic messages sent in place of internal error details.
const (
	MessageInternalError      = "Internal server error"
	MessageConfigurationError = "Server configuration error"
	MessageInvalidBody        = "Invalid request body"
)

// Envelope is the uniform response body.
type Envelope struct {
	Success bool                `json:"success"`
	Message string              `json:"message"`
	Data    any                 `json:"data,omitempty"`
	Errors  []apperr.FieldError `json:"errors,omitempty"`
}

// writeSuccess sends a successful envelope.
func writeSuccess(c *gin.Context, status int, message string, data any) {
	c.JSON(status, Envelope{Success: true, Message: message, Data: data})
}

// WriteError maps err onto its status code and sends a failure envelope.
// Details of unexpected and configuration errors are logged, not returned.
func WriteError(c *gin.Context, err error) {
	var appErr *apperr.Error
	if !errors.As(err, &appErr) {
		appErr = apperr.Unexpected(MessageInternalError, err)
	}

	body := Envelope{Success: false, Message: appErr.Message, Errors: appErr.Fields}
	switch appErr.Kind {
	case apperr.KindUnexpected:
		body.Message = MessageInternalError
		body.Errors = nil
		logRequestError(c, appErr)
	case apperr.KindConfiguration:
		body.Message = MessageConfigurationError
		body.Errors = nil
		logRequestError(c, appErr)
	}
	c.AbortWithStatusJSON(appErr.Kind.HTTPStatus(), body)
}

// writeBindError answers a body that could not be decoded.
func writeBindError(c *gin.Context, err error) {
	log.WithError(err).Debug("decode request body")
	c.AbortWithStatusJSON(http.StatusBadRequest, Envelope{Success: false, Message: MessageInvalidBody})
}

func logRequestError(c *gin.Context, err *apperr.Error) {
	log.WithError(err).WithFields(log.Fields{
		"kind":       err.Kind.String(),
		"method":     c.Request.Method,
		"path":       c.FullPath(),
		"request_id": c.GetString(RequestIDKey),
	}).Error("request failed")
}
