package front

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/router-for-me/SIMReseller/internal/apperr"
	"github.com/router-for-me/SIMReseller/internal/http/api/front/handlers"
	"github.com/router-for-me/SIMReseller/internal/ratelimit"
	"github.com/router-for-me/SIMReseller/internal/security"
	log "github.com/sirupsen/logrus"
)

// requestIDHeader carries the request id in both directions.
const requestIDHeader = "X-Request-ID"

// TokenParser verifies bearer tokens.
type TokenParser interface {
	Parse(token string) (uint64, error)
}

// UserChecker confirms that a token's user still exists.
type UserChecker interface {
	Exists(ctx context.Context, userID uint64) (bool, error)
}

// userAuthMiddleware validates user bearer tokens and stores the user id.
func userAuthMiddleware(tokens TokenParser, users UserChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		if tokens == nil {
			handlers.WriteError(c, apperr.New(apperr.KindConfiguration, "token parser not configured"))
			return
		}

		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			handlers.WriteError(c, apperr.New(apperr.KindAuth, "Unauthorized: No token provided"))
			return
		}
		token := strings.TrimPrefix(authHeader, "Bearer ")
		if token == authHeader {
			handlers.WriteError(c, apperr.New(apperr.KindAuth, "Unauthorized: Invalid authorization format"))
			return
		}
		token = strings.TrimSpace(token)
		if token == "" {
			handlers.WriteError(c, apperr.New(apperr.KindAuth, "Unauthorized: No token provided"))
			return
		}

		userID, errParse := tokens.Parse(token)
		if errParse != nil {
			if errors.Is(errParse, security.ErrMissingSecret) {
				handlers.WriteError(c, apperr.Wrap(apperr.KindConfiguration, "jwt secret not configured", errParse))
				return
			}
			handlers.WriteError(c, apperr.New(apperr.KindAuth, "Unauthorized: Invalid or expired token"))
			return
		}

		exists, errExists := users.Exists(c.Request.Context(), userID)
		if errExists != nil {
			handlers.WriteError(c, errExists)
			return
		}
		if !exists {
			handlers.WriteError(c, apperr.New(apperr.KindAuth, "Unauthorized: User not found"))
			return
		}

		c.Set(handlers.UserIDKey, userID)
		c.Next()
	}
}

// rateLimitMiddleware limits requests per client IP and route.
func rateLimitMiddleware(limiter *ratelimit.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !limiter.Enabled() {
			c.Next()
			return
		}
		key := ratelimit.KeyForClient(c.FullPath(), c.ClientIP())
		result, errAllow := limiter.Allow(c.Request.Context(), key)
		if errAllow != nil {
			log.WithError(errAllow).Warn("rate limit check failed")
			c.Next()
			return
		}
		c.Header("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
		if !result.Allowed {
			retryAfter := int(time.Until(result.Reset).Seconds()) + 1
			if retryAfter < 1 {
				retryAfter = 1
			}
			c.Header("Retry-After", strconv.Itoa(retryAfter))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, handlers.Envelope{Success: false, Message: "Too many requests"})
			return
		}
		c.Next()
	}
}

// requestIDMiddleware keeps a caller supplied request id or generates one.
func requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := strings.TrimSpace(c.GetHeader(requestIDHeader))
		if requestID == "" || len(requestID) > 128 {
			requestID = uuid.NewString()
		}
		c.Set(handlers.RequestIDKey, requestID)
		c.Header(requestIDHeader, requestID)
		c.Next()
	}
}

// requestLogMiddleware logs one line per request.
func requestLogMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		entry := log.WithFields(log.Fields{
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"status":     status,
			"latency_ms": time.Since(start).Milliseconds(),
			"client_ip":  c.ClientIP(),
			"request_id": c.GetString(handlers.RequestIDKey),
		})
		switch {
		case status >= http.StatusInternalServerError:
			entry.Error("request")
		case status >= http.StatusBadRequest:
			entry.Warn("request")
		default:
			entry.Info("request")
		}
	}
}

// corsMiddleware allows browser clients on any origin.
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization, X-Request-ID")
		c.Header("Access-Control-Expose-Headers", "X-Request-ID, X-RateLimit-Remaining, Retry-After")
		c.Header("Access-Control-Max-Age", "86400")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
