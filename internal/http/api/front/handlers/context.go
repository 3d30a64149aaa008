package handlers

import "github.com/gin-gonic/gin"

// Context keys set by the front middleware.
const (
	UserIDKey    = "userID"
	RequestIDKey = "requestID"
)

// getUserID returns the authenticated user id, or 0 when absent.
func getUserID(c *gin.Context) uint64 {
	v, ok := c.Get(UserIDKey)
	if !ok {
		return 0
	}
	id, _ := v.(uint64)
	return id
}
