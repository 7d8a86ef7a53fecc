// Package app provides application initialization and dependency
// wiring.
//
// App is the container that holds every long-lived component: the
// Genkit runtime, the database pool, the stores, the generation
// pipeline and the HTTP server. Setup builds it in dependency order;
// Close releases resources in reverse.
package app

import (
	"github.com/firebase/genkit/go/genkit"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sitegen-ai/sitegen/internal/api"
	"github.com/sitegen-ai/sitegen/internal/apps"
	"github.com/sitegen-ai/sitegen/internal/codegen"
	"github.com/sitegen-ai/sitegen/internal/config"
	"github.com/sitegen-ai/sitegen/internal/history"
	"github.com/sitegen-ai/sitegen/internal/log"
	"github.com/sitegen-ai/sitegen/internal/user"
)

// App is the application container.
type App struct {
	Config *config.Config
	Logger log.Logger

	Genkit *genkit.Genkit
	DBPool *pgxpool.Pool

	Users   *user.Store
	Apps    *apps.Store
	History *history.Store
	Facade  *codegen.Facade
	Server  *api.Server

	otelCleanup func()
}

// Close releases all resources. Safe to call on a partially
// initialized App.
func (a *App) Close() error {
	a.Logger.Info("shutting down application")

	if a.Facade != nil {
		// Drain background artifact and history persistence before the
		// pool goes away.
		a.Facade.Wait()
	}
	if a.DBPool != nil {
		a.DBPool.Close()
		a.Logger.Debug("database pool closed")
	}
	if a.otelCleanup != nil {
		a.otelCleanup()
	}
	return nil
}
