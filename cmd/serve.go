package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/sitegen-ai/sitegen/internal/app"
	"github.com/sitegen-ai/sitegen/internal/config"
	"github.com/sitegen-ai/sitegen/internal/log"
)

// sessionSweepInterval paces the expired-session cleanup. Expired rows
// are already invisible to lookups; the sweep only reclaims storage.
const sessionSweepInterval = time.Hour

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runServe(cmd.Context())
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides config)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(parent context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	ctx, cancel := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger := log.New(log.Config{JSON: true})
	logger.Info("starting sitegen", "version", Version, "config", cfg.String())

	a, err := app.Setup(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer func() {
		if closeErr := a.Close(); closeErr != nil {
			logger.Warn("shutdown error", "error", closeErr)
		}
	}()

	go sweepSessions(ctx, a.Users, sessionSweepInterval, logger)

	addr := serveAddr
	if addr == "" {
		addr = cfg.ListenAddr
	}
	return a.Server.Run(ctx, addr)
}

// sessionPurger is the slice of the user store the sweep needs.
type sessionPurger interface {
	PurgeExpired(ctx context.Context) (int, error)
}

// sweepSessions periodically removes expired session rows until ctx is
// cancelled.
func sweepSessions(ctx context.Context, store sessionPurger, interval time.Duration, logger log.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := store.PurgeExpired(ctx)
			if err != nil {
				logger.Warn("purging expired sessions", "error", err)
				continue
			}
			if n > 0 {
				logger.Info("expired sessions purged", "count", n)
			}
		}
	}
}
