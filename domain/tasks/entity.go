package tasks

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Task priorities
const (
	PriorityHigh   = "high"
	PriorityMedium = "medium"
	PriorityLow    = "low"
)

// Task statuses
const (
	StatusPending      = "pending"
	StatusOnWork       = "on work"
	StatusOverDeadline = "over deadline"
	StatusDone         = "done"
)

// Scheduling defaults. A task with no concrete date sorts after every
// dated task; a task with no time-of-day sorts at the end of its date.
const (
	DefaultDate = "9999-12-31"
	DefaultTime = "23:59"
)

// ValidStatus reports whether s is a recognized task status.
func ValidStatus(s string) bool {
	switch s {
	case StatusPending, StatusOnWork, StatusOverDeadline, StatusDone:
		return true
	}
	return false
}

// ValidPriority reports whether p is a recognized task priority.
func ValidPriority(p string) bool {
	switch p {
	case PriorityHigh, PriorityMedium, PriorityLow:
		return true
	}
	return false
}

// Task represents a task node. Dependencies and BlockedTasks are derived
// from the task_dependencies edge table on every read, never stored on the
// row itself.
type Task struct {
	bun.BaseModel `bun:"table:tasks,alias:t"`

	ID          string     `bun:"id,pk,type:uuid" json:"id"`
	Title       string     `bun:"title" json:"title,omitempty"`
	Description string     `bun:"description,notnull" json:"description"`
	Priority    string     `bun:"priority,notnull,default:'medium'" json:"priority"`
	Date        string     `bun:"date,notnull,default:'9999-12-31'" json:"date"`
	Time        *string    `bun:"time" json:"time,omitempty"`
	Status      string     `bun:"status,notnull,default:'pending'" json:"status"`
	StartedAt   *time.Time `bun:"started_at" json:"started_at,omitempty"`
	EndedAt     *time.Time `bun:"ended_at" json:"ended_at,omitempty"`
	UpdatedAt   time.Time  `bun:"updated_at,default:now()" json:"updated_at"`

	// Derived relation views, computed per query
	Dependencies []string `bun:"-" json:"dependencies"`
	BlockedTasks []string `bun:"-" json:"blocked_tasks"`

	// Embedding lives in a vector column managed outside the row model;
	// set on write, never read back into memory
	Embedding []float32 `bun:"-" json:"-"`
}

// TaskDependency is a DEPENDS_ON edge: TaskID requires DependsOnID.
type TaskDependency struct {
	bun.BaseModel `bun:"table:task_dependencies,alias:td"`

	TaskID      string `bun:"task_id,pk,type:uuid"`
	DependsOnID string `bun:"depends_on_id,pk,type:uuid"`
}

// NewTask creates a task with a freshly minted identifier and defaults
// applied.
func NewTask(description string) *Task {
	return &Task{
		ID:          uuid.NewString(),
		Description: description,
		Priority:    PriorityMedium,
		Date:        DefaultDate,
		Status:      StatusPending,
	}
}

// Normalize fills defaulted fields on a task assembled from model output.
func (t *Task) Normalize() {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if !ValidPriority(t.Priority) {
		t.Priority = PriorityMedium
	}
	if t.Date == "" {
		t.Date = DefaultDate
	}
	if t.Time != nil && *t.Time == "" {
		t.Time = nil
	}
	if !ValidStatus(t.Status) {
		t.Status = StatusPending
	}
}

// SortTime returns the time used for schedule ordering, with untimed tasks
// sorting at the end of their day.
func (t *Task) SortTime() string {
	if t.Time == nil {
		return DefaultTime
	}
	return *t.Time
}

// ScheduleBefore reports whether t sorts before other in schedule order:
// (date, time) ascending with id as the final tie-break.
func (t *Task) ScheduleBefore(other *Task) bool {
	if t.Date != other.Date {
		return t.Date < other.Date
	}
	if t.SortTime() != other.SortTime() {
		return t.SortTime() < other.SortTime()
	}
	return t.ID < other.ID
}

// EmbeddingText is the canonical textual projection used for similarity
// search. It folds in scheduling and relation context so that "what is
// blocking the report" style queries can land on the right node.
func (t *Task) EmbeddingText() string {
	var b strings.Builder

	if t.Title != "" {
		fmt.Fprintf(&b, "%s. ", t.Title)
	}
	b.WriteString(t.Description)
	fmt.Fprintf(&b, " Scheduled %s", t.Date)
	if t.Time != nil {
		fmt.Fprintf(&b, " at %s", *t.Time)
	}
	fmt.Fprintf(&b, ". Priority %s, status %s.", t.Priority, t.Status)
	if len(t.Dependencies) > 0 {
		fmt.Fprintf(&b, " Depends on %d other task(s).", len(t.Dependencies))
	}
	if len(t.BlockedTasks) > 0 {
		fmt.Fprintf(&b, " Blocks %d other task(s).", len(t.BlockedTasks))
	}

	return b.String()
}

// StatusCounts holds task counts per status, used for the greeting summary.
type StatusCounts struct {
	Pending      int64 `json:"pending"`
	OnWork       int64 `json:"on_work"`
	OverDeadline int64 `json:"over_deadline"`
	Done         int64 `json:"done"`
}

// Total returns the number of tasks across all statuses.
func (c *StatusCounts) Total() int64 {
	return c.Pending + c.OnWork + c.OverDeadline + c.Done
}

// ScoredTask is a task annotated with a similarity score.
type ScoredTask struct {
	Task  *Task
	Score float64
}
