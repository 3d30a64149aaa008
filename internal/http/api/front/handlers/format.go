package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/router-for-me/SIMReseller/internal/models"
)

// formatUser converts a user to its public payload. The password hash is never included.
func formatUser(user *models.User) gin.H {
	return gin.H{
		"id":         user.ID,
		"name":       user.Name,
		"email":      user.Email,
		"inviteCode": user.InviteCode,
		"credits":    user.Credits.InexactFloat64(),
		"referredBy": user.ReferredBy,
		"createdAt":  user.CreatedAt,
		"updatedAt":  user.UpdatedAt,
	}
}

// formatSIM converts a SIM record to a response payload.
func formatSIM(sim *models.SIM) gin.H {
	return gin.H{
		"id":            sim.ID,
		"userId":        sim.UserID,
		"orderNo":       sim.OrderNo,
		"esimTranNo":    sim.EsimTranNo,
		"iccid":         sim.ICCID,
		"transactionId": sim.TransactionID,
		"createdAt":     sim.CreatedAt,
		"updatedAt":     sim.UpdatedAt,
	}
}
