package tasks

import (
	"context"
	"errors"
	"log/slog"

	"github.com/uptrace/bun"

	"github.com/alex-d4v/Tiphys/internal/database"
	"github.com/alex-d4v/Tiphys/pkg/apperror"
	"github.com/alex-d4v/Tiphys/pkg/logger"
	"github.com/alex-d4v/Tiphys/pkg/pgutils"
)

// FullDepth asks FindRelated to traverse without a hop bound.
const FullDepth = -1

// Embedder turns text into vectors, for queries and for stored task
// projections alike. Satisfied by embeddings.Service.
type Embedder interface {
	EmbedQuery(ctx context.Context, query string) ([]float32, error)
	EmbedDocuments(ctx context.Context, documents []string) ([][]float32, error)
	IsEnabled() bool
}

// Finder implements the retrieval queries used for context building and
// collision search.
type Finder struct {
	repo     *Repository
	vector   *database.VectorSupport
	embedder Embedder
	log      *slog.Logger
}

// NewFinder creates a new Finder
func NewFinder(repo *Repository, vector *database.VectorSupport, embedder Embedder, log *slog.Logger) *Finder {
	return &Finder{
		repo:     repo,
		vector:   vector,
		embedder: embedder,
		log:      log.With(logger.Scope("tasks.finder")),
	}
}

// FindByTimeWindow returns tasks whose (date, time) falls inside the
// inclusive window, treating the pair as a lexicographic key. A task with
// no time matches any time-of-day bound within its date.
func (f *Finder) FindByTimeWindow(ctx context.Context, startDate, endDate, startTime, endTime string, limit int) ([]*Task, error) {
	if startTime == "" {
		startTime = "00:00"
	}
	if endTime == "" {
		endTime = DefaultTime
	}

	var found []*Task
	q := f.repo.db.NewSelect().
		Model(&found).
		Where("(date > ? OR (date = ? AND (time IS NULL OR time >= ?)))", startDate, startDate, startTime).
		Where("(date < ? OR (date = ? AND (time IS NULL OR time <= ?)))", endDate, endDate, endTime).
		OrderExpr("t.date ASC, t.time ASC NULLS LAST, t.id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}

	if err := q.Scan(ctx); err != nil {
		f.log.Error("time window query failed", logger.Error(err))
		return nil, apperror.ErrDatabase.WithInternal(err)
	}

	if err := f.repo.hydrateRelations(ctx, found); err != nil {
		return nil, err
	}
	return found, nil
}

// FindRelated walks DEPENDS_ON edges in both directions from the seed and
// returns every distinct task reached within maxDepth hops (FullDepth for
// no bound), the seed included. Cycles terminate because the traversal
// works on node sets, not paths.
func (f *Finder) FindRelated(ctx context.Context, seedID string, maxDepth int) ([]*Task, error) {
	if maxDepth == 0 {
		t, err := f.repo.ReadByID(ctx, seedID)
		if err != nil {
			if errors.Is(err, apperror.ErrNotFound) {
				return []*Task{}, nil
			}
			return nil, err
		}
		return []*Task{t}, nil
	}

	var rows []struct {
		ID string `bun:"id"`
	}

	var err error
	if maxDepth == FullDepth {
		err = f.repo.db.NewRaw(`
			WITH RECURSIVE reach (id) AS (
				SELECT ?::uuid
				UNION
				SELECT CASE WHEN td.task_id = reach.id THEN td.depends_on_id ELSE td.task_id END
				FROM task_dependencies td
				JOIN reach ON td.task_id = reach.id OR td.depends_on_id = reach.id
			)
			SELECT id FROM reach`,
			seedID,
		).Scan(ctx, &rows)
	} else {
		err = f.repo.db.NewRaw(`
			WITH RECURSIVE reach (id, depth) AS (
				SELECT ?::uuid, 0
				UNION
				SELECT CASE WHEN td.task_id = reach.id THEN td.depends_on_id ELSE td.task_id END, reach.depth + 1
				FROM task_dependencies td
				JOIN reach ON td.task_id = reach.id OR td.depends_on_id = reach.id
				WHERE reach.depth < ?
			)
			SELECT DISTINCT id FROM reach`,
			seedID, maxDepth,
		).Scan(ctx, &rows)
	}
	if err != nil {
		f.log.Error("traversal query failed", slog.String("seed", seedID), logger.Error(err))
		return nil, apperror.ErrDatabase.WithInternal(err)
	}

	ids := make([]string, len(rows))
	for i, row := range rows {
		ids[i] = row.ID
	}

	return f.readByIDs(ctx, ids)
}

// FindByEmbedding runs nearest-neighbor search over the vector index,
// returning matches by similarity score descending. Any failure, the
// index being absent included, yields an empty result and a log line:
// callers must be able to treat "no match" and "search broken" alike.
func (f *Finder) FindByEmbedding(ctx context.Context, embedding []float32, topK int) ([]*ScoredTask, error) {
	if len(embedding) == 0 {
		return []*ScoredTask{}, nil
	}
	if !f.vector.Enabled() {
		f.log.Debug("vector search unavailable, returning no matches")
		return []*ScoredTask{}, nil
	}
	if topK <= 0 {
		topK = 5
	}

	vec := pgutils.FormatVector(embedding)

	var rows []struct {
		ID    string  `bun:"id"`
		Score float64 `bun:"score"`
	}
	err := f.repo.db.NewRaw(`
		SELECT id, 1 - (embedding <=> ?::vector) AS score
		FROM tasks
		WHERE embedding IS NOT NULL
		ORDER BY embedding <=> ?::vector ASC, id ASC
		LIMIT ?`,
		vec, vec, topK,
	).Scan(ctx, &rows)
	if err != nil {
		f.log.Warn("vector search failed, returning no matches", logger.Error(err))
		return []*ScoredTask{}, nil
	}

	ids := make([]string, len(rows))
	scores := make(map[string]float64, len(rows))
	for i, row := range rows {
		ids[i] = row.ID
		scores[row.ID] = row.Score
	}

	found, err := f.readByIDs(ctx, ids)
	if err != nil {
		f.log.Warn("failed to load vector matches, returning no matches", logger.Error(err))
		return []*ScoredTask{}, nil
	}

	byID := make(map[string]*Task, len(found))
	for _, t := range found {
		byID[t.ID] = t
	}

	// Preserve similarity order
	scored := make([]*ScoredTask, 0, len(ids))
	for _, id := range ids {
		if t, ok := byID[id]; ok {
			scored = append(scored, &ScoredTask{Task: t, Score: scores[id]})
		}
	}
	return scored, nil
}

// FindByTextQuery embeds the query text and delegates to FindByEmbedding.
// A missing embedding provider is a configuration error; a failed embed
// call degrades to no matches.
func (f *Finder) FindByTextQuery(ctx context.Context, text string, topK int) ([]*ScoredTask, error) {
	if f.embedder == nil || !f.embedder.IsEnabled() {
		return nil, apperror.ErrNotConfigured.WithMessage("no embedding provider is bound")
	}

	embedding, err := f.embedder.EmbedQuery(ctx, text)
	if err != nil {
		f.log.Warn("query embedding failed, returning no matches", logger.Error(err))
		return []*ScoredTask{}, nil
	}

	return f.FindByEmbedding(ctx, embedding, topK)
}

// readByIDs loads tasks in schedule order with relations attached.
func (f *Finder) readByIDs(ctx context.Context, ids []string) ([]*Task, error) {
	if len(ids) == 0 {
		return []*Task{}, nil
	}

	var found []*Task
	err := f.repo.db.NewSelect().
		Model(&found).
		Where("id IN (?)", bun.In(ids)).
		OrderExpr("t.date ASC, t.time ASC NULLS LAST, t.id ASC").
		Scan(ctx)
	if err != nil {
		f.log.Error("failed to load tasks by ids", logger.Error(err))
		return nil, apperror.ErrDatabase.WithInternal(err)
	}

	if err := f.repo.hydrateRelations(ctx, found); err != nil {
		return nil, err
	}
	return found, nil
}
