// Package app wires configuration, storage and services into the HTTP server.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/router-for-me/SIMReseller/internal/accounts"
	"github.com/router-for-me/SIMReseller/internal/config"
	"github.com/router-for-me/SIMReseller/internal/db"
	"github.com/router-for-me/SIMReseller/internal/http/api/front"
	"github.com/router-for-me/SIMReseller/internal/logging"
	"github.com/router-for-me/SIMReseller/internal/payments"
	"github.com/router-for-me/SIMReseller/internal/ratelimit"
	"github.com/router-for-me/SIMReseller/internal/security"
	"github.com/router-for-me/SIMReseller/internal/sims"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const shutdownTimeout = 5 * time.Second

// Migrate opens the database and runs migrations.
func Migrate(ctx context.Context, cfg config.AppConfig) error {
	serverCfg, err := config.Load(config.ResolveConfigPath(cfg.ConfigPath))
	if err != nil {
		return err
	}
	conn, err := db.Open(resolveDSN(serverCfg))
	if err != nil {
		return err
	}
	defer func() { _ = db.Close(conn) }()

	if errMigrate := db.Migrate(conn.WithContext(ctx)); errMigrate != nil {
		return errMigrate
	}
	log.Info("migrations applied")
	return nil
}

// RunServer boots the API server and blocks until ctx is cancelled or the
// listener fails. A positive port overrides the configured one.
func RunServer(ctx context.Context, cfg config.AppConfig, port int) error {
	configPath := config.ResolveConfigPath(cfg.ConfigPath)
	serverCfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if port > 0 {
		serverCfg.Port = port
	}

	logCloser, errLogging := logging.Setup(serverCfg.Logging)
	if errLogging != nil {
		return fmt.Errorf("setup logging: %w", errLogging)
	}
	defer func() { _ = logCloser.Close() }()

	if errJWT := serverCfg.JWT.Validate(); errJWT != nil {
		return errJWT
	}
	if !serverCfg.Stripe.Enabled() {
		log.Warn("stripe secret key not configured; payment intents are disabled")
	}

	conn, err := db.Open(resolveDSN(serverCfg))
	if err != nil {
		return err
	}
	defer func() { _ = db.Close(conn) }()
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		return errMigrate
	}

	gin.SetMode(gin.ReleaseMode)
	engine, limiter := buildEngine(conn, serverCfg)
	defer func() { _ = limiter.Close() }()

	addr := fmt.Sprintf(":%d", serverCfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if errShutdown := srv.Shutdown(shutdownCtx); errShutdown != nil {
			log.Errorf("server shutdown error: %v", errShutdown)
		}
	}()

	log.Infof("starting server on %s with config=%s", addr, configPath)
	if errListen := srv.ListenAndServe(); errListen != nil && !errors.Is(errListen, http.ErrServerClosed) {
		return errListen
	}
	log.Info("server stopped")
	return nil
}

// buildEngine constructs the services and the router for conn and cfg.
func buildEngine(conn *gorm.DB, cfg config.Config) (*gin.Engine, *ratelimit.Manager) {
	tokens := security.NewTokenIssuer(cfg.JWT)

	var provider payments.Provider
	if stripeProvider := payments.NewStripeProvider(cfg.Stripe); stripeProvider != nil {
		provider = stripeProvider
	}

	limiter := ratelimit.NewManager(cfg.RateLimit, nil, nil)
	engine := front.NewEngine(front.Dependencies{
		DB:       conn,
		Tokens:   tokens,
		Accounts: accounts.NewService(conn, tokens, accounts.WithTxTimeout(cfg.TransactionTimeout)),
		SIMs:     sims.NewService(conn, cfg.TransactionTimeout),
		Payments: payments.NewService(conn, provider, cfg.Stripe.PublishableKey),
		Limiter:  limiter,
	})
	return engine, limiter
}

// resolveDSN returns the configured DSN or the default local SQLite file.
func resolveDSN(cfg config.Config) string {
	if dsn := strings.TrimSpace(cfg.DatabaseDSN); dsn != "" {
		return dsn
	}
	return db.BuildSQLiteDSN(config.DefaultSQLitePath)
}
