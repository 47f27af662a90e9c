package tasks

import (
	"context"
	"log/slog"
	"time"

	"github.com/alex-d4v/Tiphys/pkg/apperror"
	"github.com/alex-d4v/Tiphys/pkg/logger"
)

// Store is the slice of the repository the lifecycle manager writes
// through. Kept narrow so tests can substitute an in-memory fake.
type Store interface {
	CreateOrReplace(ctx context.Context, t *Task) error
	UpdateFields(ctx context.Context, id string, fields map[string]any) (bool, error)
	StoreEmbedding(ctx context.Context, t *Task)
	ReadForDate(ctx context.Context, date string) ([]*Task, error)
	DeleteByIDs(ctx context.Context, ids []string) (int, error)
	DeleteForDate(ctx context.Context, date string) (int, error)
}

// Manager applies status transitions and deletions, store-first, and
// patches the working set to match. Mutations that change a task's
// canonical text projection also refresh its stored embedding.
type Manager struct {
	store    Store
	working  *WorkingSet
	embedder Embedder
	log      *slog.Logger
	now      func() time.Time
}

// NewManager creates a lifecycle manager. The embedder may be nil; status
// changes then leave stored vectors as they are.
func NewManager(store Store, working *WorkingSet, embedder Embedder, log *slog.Logger) *Manager {
	return &Manager{
		store:    store,
		working:  working,
		embedder: embedder,
		log:      log.With(logger.Scope("tasks.lifecycle")),
		now:      time.Now,
	}
}

// WorkingSet exposes the day view this manager keeps in sync.
func (m *Manager) WorkingSet() *WorkingSet {
	return m.working
}

// LoadWorkingSet fills the day view from the store.
func (m *Manager) LoadWorkingSet(ctx context.Context) error {
	loaded, err := m.store.ReadForDate(ctx, m.working.Date())
	if err != nil {
		return err
	}
	m.working.Load(loaded)
	m.log.Info("working set loaded",
		slog.String("date", m.working.Date()),
		slog.Int("tasks", m.working.Len()),
	)
	return nil
}

// Create persists a task and merges it into the day view when it is dated
// for today.
func (m *Manager) Create(ctx context.Context, t *Task) error {
	if err := m.store.CreateOrReplace(ctx, t); err != nil {
		return err
	}
	m.working.Merge(t)
	return nil
}

// SetStatus transitions a task to newStatus, stamping started_at on the
// first entry into "on work" and ended_at on entry into "done". Stamps are
// one-way: later transitions never clear them. The store is written first;
// the task and the day view are patched only on success.
func (m *Manager) SetStatus(ctx context.Context, t *Task, newStatus string) error {
	if !ValidStatus(newStatus) {
		return apperror.NewBadRequest("unknown status: " + newStatus)
	}

	fields := map[string]any{"status": newStatus}
	changed := newStatus != t.Status

	var startedAt, endedAt *time.Time
	if changed {
		now := m.now()
		if newStatus == StatusOnWork && t.StartedAt == nil {
			startedAt = &now
			fields["started_at"] = now
		}
		if newStatus == StatusDone {
			endedAt = &now
			fields["ended_at"] = now
		}
	}

	matched, err := m.store.UpdateFields(ctx, t.ID, fields)
	if err != nil {
		return err
	}
	if !matched {
		return apperror.NewNotFound("task", t.ID)
	}

	t.Status = newStatus
	if startedAt != nil {
		t.StartedAt = startedAt
	}
	if endedAt != nil {
		t.EndedAt = endedAt
	}
	t.UpdatedAt = m.now()
	m.working.Merge(t)

	// Status is part of the text projection, so the stored vector is
	// stale the moment it changes.
	if changed {
		m.refreshEmbeddings(ctx, []*Task{t})
		if len(t.Embedding) > 0 {
			m.store.StoreEmbedding(ctx, t)
		}
	}

	m.log.Info("status updated",
		slog.String("id", t.ID),
		slog.String("status", newStatus),
	)
	return nil
}

// Delete removes the given ids as one batch store call and drops the same
// ids from the day view, whether or not they were present there.
func (m *Manager) Delete(ctx context.Context, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	removed, err := m.store.DeleteByIDs(ctx, ids)
	if err != nil {
		return 0, err
	}
	m.working.Remove(ids...)

	m.log.Info("tasks deleted",
		slog.Int("requested", len(ids)),
		slog.Int("removed", removed),
	)
	return removed, nil
}

// SyncOnExit reconciles the store with the day view before shutdown: a
// non-empty view is flushed back, an empty one clears the store's entries
// for the day. Best-effort, errors are logged.
func (m *Manager) SyncOnExit(ctx context.Context) {
	if m.working.Len() == 0 {
		removed, err := m.store.DeleteForDate(ctx, m.working.Date())
		if err != nil {
			m.log.Error("final sync: failed to clear day", logger.Error(err))
			return
		}
		m.log.Info("final sync: cleared day", slog.Int("removed", removed))
		return
	}

	list := m.working.List()
	m.refreshEmbeddings(ctx, list)

	flushed := 0
	for _, t := range list {
		if err := m.store.CreateOrReplace(ctx, t); err != nil {
			m.log.Error("final sync: failed to flush task",
				slog.String("id", t.ID),
				logger.Error(err),
			)
			continue
		}
		flushed++
	}
	m.log.Info("final sync: flushed working set", slog.Int("tasks", flushed))
}

// refreshEmbeddings recomputes the text projections in one batch and puts
// the returned vectors on the tasks. Best-effort: a failed refresh leaves
// the previous vectors in place and is only logged.
func (m *Manager) refreshEmbeddings(ctx context.Context, list []*Task) {
	if m.embedder == nil || !m.embedder.IsEnabled() || len(list) == 0 {
		return
	}

	docs := make([]string, len(list))
	for i, t := range list {
		docs[i] = t.EmbeddingText()
	}

	vecs, err := m.embedder.EmbedDocuments(ctx, docs)
	if err != nil {
		m.log.Warn("embedding refresh failed", logger.Error(err))
		return
	}
	for i := range list {
		if i < len(vecs) {
			list[i].Embedding = vecs[i]
		}
	}
}
