package tasks

import (
	"context"
	"database/sql"
	"os"
	"testing"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"

	"github.com/alex-d4v/Tiphys/internal/config"
	"github.com/alex-d4v/Tiphys/internal/database"
	"github.com/alex-d4v/Tiphys/migrations"
)

// openTestRepo connects to the database named by TEST_DATABASE_URL and
// brings the schema up to date. Vector support is left unbootstrapped, so
// these tests exercise only the relational paths.
func openTestRepo(t *testing.T) (*Repository, *Finder) {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping database integration test in short mode")
	}
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	sqldb, err := sql.Open("pgx", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { sqldb.Close() })

	db := bun.NewDB(sqldb, pgdialect.New())

	goose.SetBaseFS(migrations.FS)
	require.NoError(t, goose.SetDialect("postgres"))
	require.NoError(t, goose.Up(sqldb, "."))

	log := testLogger()
	vector := database.NewVectorSupport(db, &config.Config{}, log)
	repo := NewRepository(db, vector, log)
	return repo, NewFinder(repo, vector, nil, log)
}

// seedTask persists a fresh task and registers cleanup for it.
func seedTask(t *testing.T, repo *Repository, mutate func(*Task)) *Task {
	t.Helper()
	task := NewTask("integration " + t.Name())
	if mutate != nil {
		mutate(task)
	}
	require.NoError(t, repo.CreateOrReplace(context.Background(), task))
	t.Cleanup(func() {
		_, _ = repo.DeleteByIDs(context.Background(), []string{task.ID})
	})
	return task
}

func TestRepositoryIntegration_RoundTrip(t *testing.T) {
	repo, _ := openTestRepo(t)
	ctx := context.Background()

	dep := seedTask(t, repo, nil)
	task := seedTask(t, repo, func(task *Task) {
		task.Title = "quarterly report"
		task.Priority = PriorityHigh
		task.Date = "3333-01-15"
		tm := "09:30"
		task.Time = &tm
		task.Dependencies = []string{dep.ID}
	})

	got, err := repo.ReadByID(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, "quarterly report", got.Title)
	assert.Equal(t, PriorityHigh, got.Priority)
	assert.Equal(t, "3333-01-15", got.Date)
	require.NotNil(t, got.Time)
	assert.Equal(t, "09:30", *got.Time)
	assert.Equal(t, StatusPending, got.Status)
	assert.Equal(t, []string{dep.ID}, got.Dependencies)

	// The reverse view shows up on the dependency target.
	gotDep, err := repo.ReadByID(ctx, dep.ID)
	require.NoError(t, err)
	assert.Contains(t, gotDep.BlockedTasks, task.ID)
}

func TestRepositoryIntegration_UpsertIsIdempotentAndReplaces(t *testing.T) {
	repo, _ := openTestRepo(t)
	ctx := context.Background()

	keep := seedTask(t, repo, nil)
	drop := seedTask(t, repo, nil)
	task := seedTask(t, repo, func(task *Task) {
		task.Dependencies = []string{keep.ID, drop.ID}
	})

	// Same write again: still one row, same edges.
	require.NoError(t, repo.CreateOrReplace(ctx, task))
	got, err := repo.ReadByID(ctx, task.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{keep.ID, drop.ID}, got.Dependencies)

	// Replacing with a smaller edge set removes the stale edge.
	task.Description = "rewritten"
	task.Dependencies = []string{keep.ID}
	require.NoError(t, repo.CreateOrReplace(ctx, task))

	got, err = repo.ReadByID(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, "rewritten", got.Description)
	assert.Equal(t, []string{keep.ID}, got.Dependencies)
}

func TestRepositoryIntegration_DanglingEdgeIsSkipped(t *testing.T) {
	repo, _ := openTestRepo(t)
	ctx := context.Background()

	task := seedTask(t, repo, func(task *Task) {
		task.Dependencies = []string{"00000000-0000-0000-0000-000000000000"}
	})

	got, err := repo.ReadByID(ctx, task.ID)
	require.NoError(t, err, "node write survives the missing target")
	assert.Empty(t, got.Dependencies)
}

func TestRepositoryIntegration_DeleteMissingIDReturnsZero(t *testing.T) {
	repo, _ := openTestRepo(t)

	removed, err := repo.DeleteByIDs(context.Background(), []string{NewTask("ghost").ID})
	require.NoError(t, err)
	assert.Zero(t, removed)
}

func TestRepositoryIntegration_TimeWindowNullTime(t *testing.T) {
	repo, finder := openTestRepo(t)
	ctx := context.Background()

	date := "3333-02-01"
	untimed := seedTask(t, repo, func(task *Task) {
		task.Date = date
	})
	early := seedTask(t, repo, func(task *Task) {
		task.Date = date
		tm := "08:00"
		task.Time = &tm
	})
	within := seedTask(t, repo, func(task *Task) {
		task.Date = date
		tm := "09:30"
		task.Time = &tm
	})

	found, err := finder.FindByTimeWindow(ctx, date, date, "09:00", "10:00", 0)
	require.NoError(t, err)

	ids := make([]string, 0, len(found))
	for _, f := range found {
		ids = append(ids, f.ID)
	}
	assert.Contains(t, ids, untimed.ID, "a task with no time matches any time bound on its date")
	assert.Contains(t, ids, within.ID)
	assert.NotContains(t, ids, early.ID)
}

func TestRepositoryIntegration_FindRelatedFullWithCycle(t *testing.T) {
	repo, finder := openTestRepo(t)
	ctx := context.Background()

	a := seedTask(t, repo, nil)
	b := seedTask(t, repo, func(task *Task) {
		task.Dependencies = []string{a.ID}
	})
	c := seedTask(t, repo, func(task *Task) {
		task.Dependencies = []string{b.ID}
	})
	// Close the cycle: a depends on c.
	a.Dependencies = []string{c.ID}
	require.NoError(t, repo.CreateOrReplace(ctx, a))

	found, err := finder.FindRelated(ctx, b.ID, FullDepth)
	require.NoError(t, err)

	ids := make([]string, 0, len(found))
	for _, f := range found {
		ids = append(ids, f.ID)
	}
	assert.ElementsMatch(t, []string{a.ID, b.ID, c.ID}, ids, "seed included, cycle terminates")
}
