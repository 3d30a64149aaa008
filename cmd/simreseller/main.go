package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/router-for-me/SIMReseller/internal/app"
	"github.com/router-for-me/SIMReseller/internal/config"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// main runs the CLI entrypoint and exits on unrecoverable command errors.
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if errRun := newRootCommand().ExecuteContext(ctx); errRun != nil {
		log.WithError(errRun).Error("command failed")
		stop()
		os.Exit(1)
	}
}

// newRootCommand builds the command tree.
func newRootCommand() *cobra.Command {
	var cfgPath string

	root := &cobra.Command{
		Use:           "simreseller",
		Short:         "SIM reseller API server",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&cfgPath, "config", "", "config file path (or env CONFIG_PATH)")

	var port int
	serve := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if port != 0 {
				if errValidate := validatePort(port); errValidate != nil {
					return errValidate
				}
			}
			appCfg, err := loadAppConfig(cfgPath)
			if err != nil {
				return err
			}
			return app.RunServer(cmd.Context(), appCfg, port)
		},
	}
	serve.Flags().IntVar(&port, "port", 0, "listen port, overrides config and PORT")

	migrate := &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			appCfg, err := loadAppConfig(cfgPath)
			if err != nil {
				return err
			}
			return app.Migrate(cmd.Context(), appCfg)
		},
	}

	root.AddCommand(serve, migrate)
	return root
}

// loadAppConfig resolves the config path from the flag or the environment.
func loadAppConfig(cfgPath string) (config.AppConfig, error) {
	appCfg, err := config.LoadFromEnv()
	if err != nil {
		return config.AppConfig{}, err
	}
	if strings.TrimSpace(cfgPath) != "" {
		appCfg.ConfigPath = config.ResolveConfigPath(cfgPath)
	}
	return appCfg, nil
}

func validatePort(port int) error {
	if port <= 0 || port > 65535 {
		return fmt.Errorf("invalid port: %d", port)
	}
	return nil
}
