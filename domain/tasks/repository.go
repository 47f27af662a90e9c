package tasks

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"sort"
	"time"

	"github.com/uptrace/bun"

	"github.com/alex-d4v/Tiphys/internal/database"
	"github.com/alex-d4v/Tiphys/pkg/apperror"
	"github.com/alex-d4v/Tiphys/pkg/logger"
	"github.com/alex-d4v/Tiphys/pkg/pgutils"
)

// Repository handles database operations for task nodes and their
// DEPENDS_ON edges.
type Repository struct {
	db     bun.IDB
	vector *database.VectorSupport
	log    *slog.Logger
}

// NewRepository creates a new tasks repository
func NewRepository(db bun.IDB, vector *database.VectorSupport, log *slog.Logger) *Repository {
	return &Repository{
		db:     db,
		vector: vector,
		log:    log.With(logger.Scope("tasks.repo")),
	}
}

// CreateOrReplace upserts a task node keyed by id, replaces its outgoing
// DEPENDS_ON edge set, and stores its embedding when one is attached. The
// node write and the clearing of stale edges commit as one transaction;
// edges are re-added after the commit because a dangling target aborts
// whatever transaction its insert runs in, and must not take the node
// write down with it. Such an edge is logged and skipped.
func (r *Repository) CreateOrReplace(ctx context.Context, t *Task) error {
	t.Normalize()
	t.UpdatedAt = time.Now()

	tx, err := database.BeginSafeTx(ctx, r.db)
	if err != nil {
		r.log.Error("failed to begin transaction", slog.String("id", t.ID), logger.Error(err))
		return apperror.ErrDatabase.WithInternal(err)
	}
	defer tx.Rollback()

	_, err = tx.NewInsert().
		Model(t).
		On("CONFLICT (id) DO UPDATE").
		Set("title = EXCLUDED.title").
		Set("description = EXCLUDED.description").
		Set("priority = EXCLUDED.priority").
		Set("date = EXCLUDED.date").
		Set("time = EXCLUDED.time").
		Set("status = EXCLUDED.status").
		Set("started_at = EXCLUDED.started_at").
		Set("ended_at = EXCLUDED.ended_at").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		r.log.Error("failed to upsert task", slog.String("id", t.ID), logger.Error(err))
		return apperror.ErrDatabase.WithInternal(err)
	}

	_, err = tx.NewDelete().
		Model((*TaskDependency)(nil)).
		Where("task_id = ?", t.ID).
		Exec(ctx)
	if err != nil {
		r.log.Error("failed to clear dependency edges", slog.String("id", t.ID), logger.Error(err))
		return apperror.ErrDatabase.WithInternal(err)
	}

	if err := tx.Commit(); err != nil {
		r.log.Error("failed to commit task write", slog.String("id", t.ID), logger.Error(err))
		return apperror.ErrDatabase.WithInternal(err)
	}

	r.storeEmbedding(ctx, t)

	for _, depID := range t.Dependencies {
		if err := r.createEdge(ctx, t.ID, depID); err != nil {
			return err
		}
	}

	return nil
}

// StoreEmbedding writes the task's similarity vector without touching the
// rest of the row. Used to refresh the projection after a field change.
func (r *Repository) StoreEmbedding(ctx context.Context, t *Task) {
	r.storeEmbedding(ctx, t)
}

// storeEmbedding writes the vector column. Embeddings are derivative data:
// failure to store one is logged, not surfaced.
func (r *Repository) storeEmbedding(ctx context.Context, t *Task) {
	if len(t.Embedding) == 0 || !r.vector.Enabled() {
		return
	}

	_, err := r.db.ExecContext(ctx,
		"UPDATE tasks SET embedding = ?::vector WHERE id = ?",
		pgutils.FormatVector(t.Embedding), t.ID,
	)
	if err != nil {
		r.log.Warn("failed to store embedding",
			slog.String("id", t.ID),
			logger.Error(err),
		)
	}
}

// createEdge inserts one DEPENDS_ON edge, tolerating both repeats and
// dangling targets.
func (r *Repository) createEdge(ctx context.Context, taskID, dependsOnID string) error {
	edge := &TaskDependency{TaskID: taskID, DependsOnID: dependsOnID}

	_, err := r.db.NewInsert().
		Model(edge).
		On("CONFLICT DO NOTHING").
		Exec(ctx)
	if err == nil {
		return nil
	}

	if pgutils.IsForeignKeyViolation(err) {
		r.log.Warn("dependency target does not exist, edge skipped",
			slog.String("task_id", taskID),
			slog.String("depends_on_id", dependsOnID),
		)
		return nil
	}

	r.log.Error("failed to create dependency edge",
		slog.String("task_id", taskID),
		slog.String("depends_on_id", dependsOnID),
		logger.Error(err),
	)
	return apperror.ErrDatabase.WithInternal(err)
}

// ReadAll returns tasks, optionally filtered by exact status, in schedule
// order with derived relations attached.
func (r *Repository) ReadAll(ctx context.Context, statusFilter string, limit int) ([]*Task, error) {
	var tasks []*Task
	q := r.db.NewSelect().Model(&tasks)

	if statusFilter != "" {
		q = q.Where("status = ?", statusFilter)
	}
	q = q.OrderExpr("t.date ASC, t.time ASC NULLS LAST, t.id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}

	if err := q.Scan(ctx); err != nil {
		r.log.Error("failed to list tasks", logger.Error(err))
		return nil, apperror.ErrDatabase.WithInternal(err)
	}

	if err := r.hydrateRelations(ctx, tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}

// ReadByID retrieves a task with its derived relations.
func (r *Repository) ReadByID(ctx context.Context, id string) (*Task, error) {
	var task Task
	err := r.db.NewSelect().
		Model(&task).
		Where("id = ?", id).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NewNotFound("task", id)
		}
		r.log.Error("failed to get task", slog.String("id", id), logger.Error(err))
		return nil, apperror.ErrDatabase.WithInternal(err)
	}

	if err := r.hydrateRelations(ctx, []*Task{&task}); err != nil {
		return nil, err
	}
	return &task, nil
}

// ReadForDate returns the tasks scheduled on a calendar date, ordered by
// time of day. Used to build the working set.
func (r *Repository) ReadForDate(ctx context.Context, date string) ([]*Task, error) {
	var tasks []*Task
	err := r.db.NewSelect().
		Model(&tasks).
		Where("date = ?", date).
		OrderExpr("t.time ASC NULLS LAST, t.id ASC").
		Scan(ctx)
	if err != nil {
		r.log.Error("failed to read tasks for date", slog.String("date", date), logger.Error(err))
		return nil, apperror.ErrDatabase.WithInternal(err)
	}

	if err := r.hydrateRelations(ctx, tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}

// UpdateFields applies a partial update. The id field is never updatable;
// updated_at is always stamped. Returns false when no row matched.
func (r *Repository) UpdateFields(ctx context.Context, id string, fields map[string]any) (bool, error) {
	if len(fields) == 0 {
		return false, nil
	}

	q := r.db.NewUpdate().
		Model((*Task)(nil)).
		Where("id = ?", id).
		Set("updated_at = ?", time.Now())

	// Deterministic SET order keeps queries reproducible in tests.
	keys := make([]string, 0, len(fields))
	for k := range fields {
		if k == "id" || k == "updated_at" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		q = q.Set("? = ?", bun.Ident(k), fields[k])
	}

	result, err := q.Exec(ctx)
	if err != nil {
		r.log.Error("failed to update task", slog.String("id", id), logger.Error(err))
		return false, apperror.ErrDatabase.WithInternal(err)
	}

	affected, _ := result.RowsAffected()
	return affected > 0, nil
}

// DeleteByIDs detaches and removes the given tasks, returning the number
// actually removed. Incident edges go with the rows via cascade.
func (r *Repository) DeleteByIDs(ctx context.Context, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	result, err := r.db.NewDelete().
		Model((*Task)(nil)).
		Where("id IN (?)", bun.In(ids)).
		Exec(ctx)
	if err != nil {
		r.log.Error("failed to delete tasks", logger.Error(err))
		return 0, apperror.ErrDatabase.WithInternal(err)
	}

	affected, _ := result.RowsAffected()
	return int(affected), nil
}

// DeleteForDate removes every task scheduled on the given date.
func (r *Repository) DeleteForDate(ctx context.Context, date string) (int, error) {
	result, err := r.db.NewDelete().
		Model((*Task)(nil)).
		Where("date = ?", date).
		Exec(ctx)
	if err != nil {
		r.log.Error("failed to delete tasks for date", slog.String("date", date), logger.Error(err))
		return 0, apperror.ErrDatabase.WithInternal(err)
	}

	affected, _ := result.RowsAffected()
	return int(affected), nil
}

// DeleteAll removes every task.
func (r *Repository) DeleteAll(ctx context.Context) (int, error) {
	result, err := r.db.NewDelete().
		Model((*Task)(nil)).
		Where("TRUE").
		Exec(ctx)
	if err != nil {
		r.log.Error("failed to delete all tasks", logger.Error(err))
		return 0, apperror.ErrDatabase.WithInternal(err)
	}

	affected, _ := result.RowsAffected()
	return int(affected), nil
}

// Counts returns task counts grouped by status.
func (r *Repository) Counts(ctx context.Context) (*StatusCounts, error) {
	var rows []struct {
		Status string `bun:"status"`
		N      int64  `bun:"n"`
	}

	err := r.db.NewSelect().
		Model((*Task)(nil)).
		ColumnExpr("status, count(*) AS n").
		GroupExpr("status").
		Scan(ctx, &rows)
	if err != nil {
		r.log.Error("failed to count tasks", logger.Error(err))
		return nil, apperror.ErrDatabase.WithInternal(err)
	}

	counts := &StatusCounts{}
	for _, row := range rows {
		switch row.Status {
		case StatusPending:
			counts.Pending = row.N
		case StatusOnWork:
			counts.OnWork = row.N
		case StatusOverDeadline:
			counts.OverDeadline = row.N
		case StatusDone:
			counts.Done = row.N
		}
	}
	return counts, nil
}

// MarkOverdue flips pending tasks whose schedule slot has passed to
// "over deadline". Untimed tasks only become overdue once their date is
// fully in the past.
func (r *Repository) MarkOverdue(ctx context.Context, today, nowTime string) (int, error) {
	result, err := r.db.NewUpdate().
		Model((*Task)(nil)).
		Set("status = ?", StatusOverDeadline).
		Set("updated_at = ?", time.Now()).
		Where("status = ?", StatusPending).
		Where("(date < ? OR (date = ? AND time IS NOT NULL AND time < ?))", today, today, nowTime).
		Exec(ctx)
	if err != nil {
		r.log.Error("failed to mark overdue tasks", logger.Error(err))
		return 0, apperror.ErrDatabase.WithInternal(err)
	}

	affected, _ := result.RowsAffected()
	return int(affected), nil
}

// hydrateRelations computes the dependencies and blocked_tasks views for a
// batch of tasks with a single edge query.
func (r *Repository) hydrateRelations(ctx context.Context, tasks []*Task) error {
	for _, t := range tasks {
		t.Dependencies = []string{}
		t.BlockedTasks = []string{}
	}
	if len(tasks) == 0 {
		return nil
	}

	ids := make([]string, len(tasks))
	byID := make(map[string]*Task, len(tasks))
	for i, t := range tasks {
		ids[i] = t.ID
		byID[t.ID] = t
	}

	var edges []TaskDependency
	err := r.db.NewSelect().
		Model(&edges).
		Where("task_id IN (?) OR depends_on_id IN (?)", bun.In(ids), bun.In(ids)).
		Scan(ctx)
	if err != nil {
		r.log.Error("failed to load dependency edges", logger.Error(err))
		return apperror.ErrDatabase.WithInternal(err)
	}

	for _, e := range edges {
		if t, ok := byID[e.TaskID]; ok {
			t.Dependencies = append(t.Dependencies, e.DependsOnID)
		}
		if t, ok := byID[e.DependsOnID]; ok {
			t.BlockedTasks = append(t.BlockedTasks, e.TaskID)
		}
	}

	// Stable relation ordering
	for _, t := range tasks {
		sort.Strings(t.Dependencies)
		sort.Strings(t.BlockedTasks)
	}

	return nil
}
