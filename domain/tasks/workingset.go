package tasks

import (
	"sort"
	"time"
)

// WorkingSet is the in-memory view of the tasks scheduled for the current
// day. It mirrors the store and is patched after every store write; it is
// never consulted as a source of truth for mutations.
type WorkingSet struct {
	date  string
	tasks map[string]*Task
}

// NewWorkingSet creates an empty working set pinned to today's date.
func NewWorkingSet() *WorkingSet {
	return NewWorkingSetForDate(time.Now().Format("2006-01-02"))
}

// NewWorkingSetForDate creates an empty working set for a specific date.
func NewWorkingSetForDate(date string) *WorkingSet {
	return &WorkingSet{
		date:  date,
		tasks: make(map[string]*Task),
	}
}

// Date returns the calendar date this set mirrors.
func (w *WorkingSet) Date() string {
	return w.date
}

// Load replaces the contents with tasks read from the store, keeping only
// those dated for this set.
func (w *WorkingSet) Load(loaded []*Task) {
	w.tasks = make(map[string]*Task, len(loaded))
	for _, t := range loaded {
		if t.Date == w.date {
			w.tasks[t.ID] = t
		}
	}
}

// Merge patches in a task after a store write. Tasks dated for another day
// are evicted rather than added, so a rescheduled task drops out of the
// day view.
func (w *WorkingSet) Merge(t *Task) {
	if t.Date != w.date {
		delete(w.tasks, t.ID)
		return
	}
	w.tasks[t.ID] = t
}

// Remove drops the given ids. Ids not present are ignored; the store may
// hold tasks that never entered the day view.
func (w *WorkingSet) Remove(ids ...string) {
	for _, id := range ids {
		delete(w.tasks, id)
	}
}

// Get returns the task with the given id, or nil.
func (w *WorkingSet) Get(id string) *Task {
	return w.tasks[id]
}

// List returns the tasks in schedule order.
func (w *WorkingSet) List() []*Task {
	out := make([]*Task, 0, len(w.tasks))
	for _, t := range w.tasks {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ScheduleBefore(out[j])
	})
	return out
}

// Len returns the number of tasks in the set.
func (w *WorkingSet) Len() int {
	return len(w.tasks)
}

// Clear empties the set.
func (w *WorkingSet) Clear() {
	w.tasks = make(map[string]*Task)
}
