package database

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/uptrace/bun"

	"github.com/alex-d4v/Tiphys/internal/config"
	"github.com/alex-d4v/Tiphys/pkg/logger"
)

// VectorSupport tracks whether the pgvector extension is usable on the
// connected database. The embedding column and its cosine index are added
// outside the regular migrations so that a database without the extension
// still boots; similarity search then degrades to empty results.
type VectorSupport struct {
	db        *bun.DB
	log       *slog.Logger
	dimension int
	enabled   bool
}

// NewVectorSupport creates the bootstrap helper. Bootstrap must be called
// after migrations have run.
func NewVectorSupport(db *bun.DB, cfg *config.Config, log *slog.Logger) *VectorSupport {
	return &VectorSupport{
		db:        db,
		log:       log.With(logger.Scope("database.vector")),
		dimension: cfg.Embeddings.Dimension,
	}
}

// Enabled reports whether vector search can be used.
func (v *VectorSupport) Enabled() bool {
	return v.enabled
}

// Dimension returns the configured embedding dimensionality.
func (v *VectorSupport) Dimension() int {
	return v.dimension
}

// Bootstrap installs the extension, the embedding column, and the cosine
// index. Any failure leaves vector search disabled and is logged, never
// returned: the rest of the system works without it.
func (v *VectorSupport) Bootstrap(ctx context.Context) {
	steps := []struct {
		name string
		sql  string
	}{
		{"create extension", "CREATE EXTENSION IF NOT EXISTS vector"},
		{"add embedding column", fmt.Sprintf(
			"ALTER TABLE tasks ADD COLUMN IF NOT EXISTS embedding vector(%d)", v.dimension)},
		{"create embedding index", fmt.Sprintf(
			"CREATE INDEX IF NOT EXISTS idx_tasks_embedding ON tasks USING ivfflat (embedding vector_cosine_ops) WITH (lists = %d)", 100)},
	}

	for _, step := range steps {
		if _, err := v.db.ExecContext(ctx, step.sql); err != nil {
			v.log.Warn("vector support unavailable, similarity search disabled",
				slog.String("step", step.name),
				logger.Error(err),
			)
			v.enabled = false
			return
		}
	}

	v.enabled = true
	v.log.Info("vector index ready", slog.Int("dimension", v.dimension))
}
