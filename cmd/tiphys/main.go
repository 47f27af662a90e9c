// Package main provides the interactive task assistant entry point.
package main

import (
	"context"
	"log/slog"

	"github.com/joho/godotenv"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	"github.com/alex-d4v/Tiphys/domain/assistant"
	"github.com/alex-d4v/Tiphys/domain/tasks"
	"github.com/alex-d4v/Tiphys/internal/config"
	"github.com/alex-d4v/Tiphys/internal/database"
	"github.com/alex-d4v/Tiphys/internal/migrate"
	"github.com/alex-d4v/Tiphys/internal/version"
	"github.com/alex-d4v/Tiphys/pkg/embeddings"
	"github.com/alex-d4v/Tiphys/pkg/llm"
	"github.com/alex-d4v/Tiphys/pkg/logger"
)

func main() {
	// Load .env files if present (for local development)
	// Note: Load() won't overwrite existing vars, Overload() will
	_ = godotenv.Load(".env")
	_ = godotenv.Overload(".env.local")

	fx.New(
		// Logging
		fx.WithLogger(func(log *slog.Logger) fxevent.Logger {
			return &fxevent.SlogLogger{Logger: log}
		}),

		// Infrastructure modules
		logger.Module,
		config.Module,
		database.Module,
		migrate.Module,

		// Model collaborators
		embeddings.Module,
		llm.Module,

		// Domain modules
		tasks.Module,
		assistant.Module,

		fx.Invoke(registerSession),
	).Run()
}

// registerSession boots the store (migrations, vector support, working
// set) on startup, runs the conversation loop in the background, and
// flushes the working set back to the store on every shutdown path,
// including interrupts.
func registerSession(
	lc fx.Lifecycle,
	shutdowner fx.Shutdowner,
	cfg *config.Config,
	migrator *migrate.Migrator,
	vector *database.VectorSupport,
	manager *tasks.Manager,
	workflow *assistant.Workflow,
	log *slog.Logger,
) {
	log = log.With(logger.Scope("session"))

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info("starting tiphys", slog.String("version", version.String()))
			if cfg.Database.RunMigrations {
				if err := migrator.Up(ctx); err != nil {
					return err
				}
			}
			if v, err := migrator.Version(ctx); err == nil {
				log.Info("database schema", slog.Int64("version", v))
			}
			vector.Bootstrap(ctx)
			if err := manager.LoadWorkingSet(ctx); err != nil {
				return err
			}

			go func() {
				if err := workflow.Run(context.Background()); err != nil {
					log.Error("conversation loop stopped", logger.Error(err))
				}
				if err := shutdowner.Shutdown(); err != nil {
					log.Error("shutdown request failed", logger.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			syncCtx, cancel := context.WithTimeout(ctx, cfg.ShutdownTimeout)
			defer cancel()
			manager.SyncOnExit(syncCtx)
			return nil
		},
	})
}
