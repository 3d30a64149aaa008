// Package front registers the public API routes and their middleware.
package front

import (
	"github.com/gin-gonic/gin"
	"github.com/router-for-me/SIMReseller/internal/accounts"
	"github.com/router-for-me/SIMReseller/internal/http/api/front/handlers"
	"github.com/router-for-me/SIMReseller/internal/payments"
	"github.com/router-for-me/SIMReseller/internal/ratelimit"
	"github.com/router-for-me/SIMReseller/internal/sims"
	"gorm.io/gorm"
)

// Dependencies carries the services the routes are built on.
type Dependencies struct {
	DB       *gorm.DB
	Tokens   TokenParser
	Accounts *accounts.Service
	SIMs     *sims.Service
	Payments *payments.Service
	Limiter  *ratelimit.Manager
}

// NewEngine builds a gin engine with the shared middleware and every front route.
func NewEngine(deps Dependencies) *gin.Engine {
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(requestIDMiddleware())
	engine.Use(requestLogMiddleware())
	engine.Use(corsMiddleware())
	RegisterFrontRoutes(engine, deps)
	return engine
}

// RegisterFrontRoutes registers front routes, middleware, and handlers.
func RegisterFrontRoutes(r *gin.Engine, deps Dependencies) {
	if r == nil || deps.DB == nil {
		return
	}

	healthHandler := handlers.NewHealthHandler(deps.DB)
	r.GET("/healthz", healthHandler.Healthz)

	authHandler := handlers.NewAuthHandler(deps.Accounts)
	authGroup := r.Group("/auth")
	authGroup.Use(rateLimitMiddleware(deps.Limiter))
	authGroup.POST("/signup", authHandler.Signup)
	authGroup.POST("/login", authHandler.Login)

	authed := r.Group("")
	authed.Use(userAuthMiddleware(deps.Tokens, deps.Accounts))

	userHandler := handlers.NewUserHandler(deps.Accounts)
	authed.GET("/user", userHandler.Profile)
	authed.POST("/user/credits", userHandler.DebitCredits)
	authed.POST("/user/update", userHandler.Update)

	simHandler := handlers.NewSIMHandler(deps.SIMs)
	authed.POST("/sims", simHandler.Create)
	authed.GET("/sims", simHandler.List)
	authed.GET("/sims/:id", simHandler.Get)
	authed.PUT("/sims/:id", simHandler.Update)
	authed.DELETE("/sims/:id", simHandler.Delete)

	paymentHandler := handlers.NewPaymentHandler(deps.Payments)
	authed.POST("/stripe/create-payment-intent", paymentHandler.CreatePaymentIntent)
}
