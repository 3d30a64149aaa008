package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/router-for-me/SIMReseller/internal/payments"
)

// PaymentHandler serves payment intent creation.
type PaymentHandler struct {
	payments *payments.Service
}

// NewPaymentHandler constructs a PaymentHandler.
func NewPaymentHandler(svc *payments.Service) *PaymentHandler {
	return &PaymentHandler{payments: svc}
}

// CreatePaymentIntent creates a payment intent for the current user.
func (h *PaymentHandler) CreatePaymentIntent(c *gin.Context) {
	userID := getUserID(c)
	if userID == 0 {
		WriteError(c, errUnauthenticated)
		return
	}

	var body payments.IntentInput
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		writeBindError(c, errBind)
		return
	}

	result, errIntent := h.payments.CreatePaymentIntent(c.Request.Context(), userID, body)
	if errIntent != nil {
		WriteError(c, errIntent)
		return
	}
	writeSuccess(c, http.StatusOK, "Payment intent created", result)
}
