package assistant

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alex-d4v/Tiphys/domain/tasks"
	"github.com/alex-d4v/Tiphys/internal/config"
	"github.com/alex-d4v/Tiphys/pkg/apperror"
)

// routedLLM answers each prompt family with a canned response, keyed by
// markers from the prompt templates.
type routedLLM struct {
	classify      string
	generation    string
	toolSelection string
	toolArgs      map[string]string
	collision     string
	selection     string
	statusChange  string
	deletion      string
	comment       string

	prompts []string
}

func (f *routedLLM) Generate(_ context.Context, prompt, _ string) string {
	f.prompts = append(f.prompts, prompt)
	switch {
	case strings.Contains(prompt, "Classify the user's message"):
		return f.classify
	case strings.Contains(prompt, "Decompose the user's goal"):
		return f.generation
	case strings.Contains(prompt, "Select which retrieval tools"):
		return f.toolSelection
	case strings.Contains(prompt, "Extract the arguments for the retrieval tool"):
		for tool, resp := range f.toolArgs {
			if strings.Contains(prompt, fmt.Sprintf("%q", tool)) {
				return resp
			}
		}
		return ""
	case strings.Contains(prompt, "Compare the planned tasks"):
		return f.collision
	case strings.Contains(prompt, "Which of the following tasks"):
		return f.selection
	case strings.Contains(prompt, "Decide the new status"):
		return f.statusChange
	case strings.Contains(prompt, "should be deleted"):
		return f.deletion
	case strings.Contains(prompt, "Tasks around now"):
		return f.comment
	case strings.Contains(prompt, "Greet the user"):
		return "Welcome back."
	}
	return "Sure."
}

// scriptConsole feeds a fixed input script and records everything printed.
type scriptConsole struct {
	inputs []string
	out    []string
}

func (c *scriptConsole) ReadLine(string) (string, error) {
	if len(c.inputs) == 0 {
		return "", io.EOF
	}
	line := c.inputs[0]
	c.inputs = c.inputs[1:]
	return line, nil
}

func (c *scriptConsole) Print(s string) { c.out = append(c.out, s) }

func (c *scriptConsole) Printf(format string, args ...any) {
	c.out = append(c.out, fmt.Sprintf(format, args...))
}

func (c *scriptConsole) printed(sub string) bool {
	for _, s := range c.out {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

type fakeFinder struct {
	timeWindow    []*tasks.Task
	timeWindowErr error
	related       []*tasks.Task
	relatedErr    error
	text          []*tasks.ScoredTask
	textErr       error

	timeWindowCalls int
	relatedCalls    int
	textCalls       int
}

func (f *fakeFinder) FindByTimeWindow(_ context.Context, _, _, _, _ string, _ int) ([]*tasks.Task, error) {
	f.timeWindowCalls++
	return f.timeWindow, f.timeWindowErr
}

func (f *fakeFinder) FindRelated(_ context.Context, _ string, _ int) ([]*tasks.Task, error) {
	f.relatedCalls++
	return f.related, f.relatedErr
}

func (f *fakeFinder) FindByTextQuery(_ context.Context, _ string, _ int) ([]*tasks.ScoredTask, error) {
	f.textCalls++
	return f.text, f.textErr
}

type statusCall struct {
	id        string
	newStatus string
}

type fakeLifecycle struct {
	working     *tasks.WorkingSet
	created     []*tasks.Task
	statusCalls []statusCall
	deleted     []string
	createErr   error
}

func newFakeLifecycle() *fakeLifecycle {
	return &fakeLifecycle{working: tasks.NewWorkingSet()}
}

func (f *fakeLifecycle) Create(_ context.Context, t *tasks.Task) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.created = append(f.created, t)
	return nil
}

func (f *fakeLifecycle) SetStatus(_ context.Context, t *tasks.Task, newStatus string) error {
	f.statusCalls = append(f.statusCalls, statusCall{id: t.ID, newStatus: newStatus})
	t.Status = newStatus
	return nil
}

func (f *fakeLifecycle) Delete(_ context.Context, ids []string) (int, error) {
	f.deleted = append(f.deleted, ids...)
	return len(ids), nil
}

func (f *fakeLifecycle) WorkingSet() *tasks.WorkingSet { return f.working }

type fakeCatalog struct {
	list     []*tasks.Task
	counts   tasks.StatusCounts
	listErr  error
	readAlls int
}

func (f *fakeCatalog) ReadAll(_ context.Context, _ string, _ int) ([]*tasks.Task, error) {
	f.readAlls++
	return f.list, f.listErr
}

func (f *fakeCatalog) Counts(_ context.Context) (*tasks.StatusCounts, error) {
	c := f.counts
	return &c, nil
}

type fakeEmbedder struct {
	enabled bool
	vecs    [][]float32
	err     error
}

func (f *fakeEmbedder) IsEnabled() bool { return f.enabled }

func (f *fakeEmbedder) EmbedDocuments(_ context.Context, docs []string) ([][]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.vecs != nil {
		return f.vecs, nil
	}
	out := make([][]float32, len(docs))
	for i := range docs {
		out[i] = []float32{0.1, 0.2}
	}
	return out, nil
}

type workflowFixture struct {
	llm       *routedLLM
	console   *scriptConsole
	finder    *fakeFinder
	lifecycle *fakeLifecycle
	catalog   *fakeCatalog
	embedder  *fakeEmbedder
	workflow  *Workflow
}

func newWorkflowFixture(llm *routedLLM, inputs ...string) *workflowFixture {
	fx := &workflowFixture{
		llm:       llm,
		console:   &scriptConsole{inputs: inputs},
		finder:    &fakeFinder{},
		lifecycle: newFakeLifecycle(),
		catalog:   &fakeCatalog{},
		embedder:  &fakeEmbedder{},
	}
	fx.workflow = &Workflow{
		llm:      fx.llm,
		finder:   fx.finder,
		manager:  fx.lifecycle,
		catalog:  fx.catalog,
		embedder: fx.embedder,
		console:  fx.console,
		cfg: config.AssistantConfig{
			CommentWindowHours: 12,
			SearchLimit:        25,
			SimilarityTopK:     5,
		},
		log: slog.New(slog.DiscardHandler),
		now: func() time.Time {
			return time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)
		},
	}
	return fx
}

const twoTaskGeneration = `{"tasks": [
  {"title": "Flour", "description": "buy flour", "priority": "high",
   "date": "2026-08-30", "time": "09:00", "started_at": null,
   "ended_at": null, "dependencies": []},
  {"title": "Bake", "description": "bake bread", "priority": "medium",
   "date": "2026-08-30", "time": "14:00", "started_at": null,
   "ended_at": null, "dependencies": [1]}
]}`

const windowArgs = `{"args": {"start_date": "2026-08-30", "end_date": "2026-08-30",
"start_time": "", "end_time": ""}, "justification": "same day"}`

func TestWorkflow_GenerateAndCreate(t *testing.T) {
	llm := &routedLLM{
		classify:      "generate_tasks",
		generation:    twoTaskGeneration,
		toolSelection: `{"selected_tools": ["find_by_time_window"], "justification": "check the day"}`,
		toolArgs:      map[string]string{toolTimeWindow: windowArgs},
	}
	fx := newWorkflowFixture(llm, "help me bake bread today")

	err := fx.workflow.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, fx.lifecycle.created, 2)
	first, second := fx.lifecycle.created[0], fx.lifecycle.created[1]
	assert.Equal(t, "buy flour", first.Description)
	require.Len(t, second.Dependencies, 1)
	assert.Equal(t, first.ID, second.Dependencies[0], "local index resolved to the minted id")
	assert.Equal(t, 1, fx.finder.timeWindowCalls)
	assert.True(t, fx.console.printed("Created 2 task(s):"))
	assert.True(t, fx.console.printed("Goodbye."))
}

func TestWorkflow_RedundancyBlocksCreation(t *testing.T) {
	existing := &tasks.Task{ID: "existing-1", Description: "bake bread", Status: tasks.StatusPending}
	llm := &routedLLM{
		classify:      "generate_tasks",
		generation:    twoTaskGeneration,
		toolSelection: `{"selected_tools": ["find_by_time_window"], "justification": ""}`,
		toolArgs:      map[string]string{toolTimeWindow: windowArgs},
		collision: `{"collision_exists": true, "collision_type": "Redundancy",
"justification": "bread is already planned", "can_proceed": false}`,
	}
	fx := newWorkflowFixture(llm, "help me bake bread today")
	fx.finder.timeWindow = []*tasks.Task{existing}

	err := fx.workflow.Run(context.Background())
	require.NoError(t, err)

	assert.Empty(t, fx.lifecycle.created)
	assert.True(t, fx.console.printed("didn't create"))
}

func TestWorkflow_ConflictStillCreates(t *testing.T) {
	existing := &tasks.Task{ID: "existing-1", Description: "dentist appointment", Status: tasks.StatusPending}
	llm := &routedLLM{
		classify:      "generate_tasks",
		generation:    twoTaskGeneration,
		toolSelection: `{"selected_tools": ["find_by_time_window"], "justification": ""}`,
		toolArgs:      map[string]string{toolTimeWindow: windowArgs},
		collision: `{"collision_exists": true, "collision_type": "Conflict",
"justification": "the afternoon is already busy", "can_proceed": false}`,
	}
	fx := newWorkflowFixture(llm, "help me bake bread today")
	fx.finder.timeWindow = []*tasks.Task{existing}

	err := fx.workflow.Run(context.Background())
	require.NoError(t, err)

	assert.Len(t, fx.lifecycle.created, 2)
	assert.True(t, fx.console.printed("the afternoon is already busy"))
}

func TestWorkflow_UnparseableGenerationReturnsToMenu(t *testing.T) {
	llm := &routedLLM{
		classify:   "generate_tasks",
		generation: "I would suggest starting with the flour and going from there.",
	}
	fx := newWorkflowFixture(llm, "help me bake bread today")

	err := fx.workflow.Run(context.Background())
	require.NoError(t, err)

	assert.Empty(t, fx.lifecycle.created)
	assert.True(t, fx.console.printed("couldn't turn that into tasks"))
}

func TestWorkflow_ToolFailureDoesNotAbortSearch(t *testing.T) {
	existing := &tasks.Task{ID: "existing-1", Description: "knead dough", Status: tasks.StatusPending}
	llm := &routedLLM{
		classify:      "generate_tasks",
		generation:    twoTaskGeneration,
		toolSelection: `{"selected_tools": ["find_related", "find_by_time_window"], "justification": ""}`,
		toolArgs: map[string]string{
			toolRelated:    `{"args": {"task_id": "existing-1", "max_depth": "full"}, "justification": ""}`,
			toolTimeWindow: windowArgs,
		},
		collision: `{"collision_exists": false, "collision_type": "None",
"justification": "", "can_proceed": true}`,
	}
	fx := newWorkflowFixture(llm, "help me bake bread today")
	fx.finder.relatedErr = errors.New("store hiccup")
	fx.finder.timeWindow = []*tasks.Task{existing}

	err := fx.workflow.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, fx.finder.relatedCalls)
	assert.Equal(t, 1, fx.finder.timeWindowCalls)
	assert.Len(t, fx.lifecycle.created, 2, "the failing tool is skipped, not fatal")
}

func TestWorkflow_EmbedsPlannedTasksWhenEnabled(t *testing.T) {
	llm := &routedLLM{
		classify:      "generate_tasks",
		generation:    twoTaskGeneration,
		toolSelection: `not json`,
	}
	fx := newWorkflowFixture(llm, "help me bake bread today")
	fx.embedder.enabled = true

	err := fx.workflow.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, fx.lifecycle.created, 2)
	for _, created := range fx.lifecycle.created {
		assert.NotEmpty(t, created.Embedding)
	}
}

func TestWorkflow_UpdateStatus(t *testing.T) {
	target := &tasks.Task{ID: "task-1", Description: "bake bread", Status: tasks.StatusPending}
	llm := &routedLLM{
		classify:  "update_status",
		selection: `{"selected_tasks": ["task-1"], "justification": "the bread task"}`,
		statusChange: `{"updated_tasks": [
  {"id": "task-1", "new_status": "done"},
  {"id": "ghost", "new_status": "done"}
], "justification": "bread is finished"}`,
	}
	fx := newWorkflowFixture(llm, "the bread is done")
	fx.finder.text = []*tasks.ScoredTask{{Task: target, Score: 0.92}}

	err := fx.workflow.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, fx.lifecycle.statusCalls, 1)
	assert.Equal(t, statusCall{id: "task-1", newStatus: tasks.StatusDone}, fx.lifecycle.statusCalls[0])
	assert.True(t, fx.console.printed("bread is finished"))
}

func TestWorkflow_UpdateStatusRejectsInvalidStatus(t *testing.T) {
	target := &tasks.Task{ID: "task-1", Description: "bake bread", Status: tasks.StatusPending}
	llm := &routedLLM{
		classify:     "update_status",
		selection:    `{"selected_tasks": ["task-1"], "justification": ""}`,
		statusChange: `{"updated_tasks": [{"id": "task-1", "new_status": "finished"}], "justification": ""}`,
	}
	fx := newWorkflowFixture(llm, "the bread is done")
	fx.finder.text = []*tasks.ScoredTask{{Task: target, Score: 0.92}}

	err := fx.workflow.Run(context.Background())
	require.NoError(t, err)

	assert.Empty(t, fx.lifecycle.statusCalls)
	assert.True(t, fx.console.printed("not a valid status"))
	assert.True(t, fx.console.printed("No status changes were applied."))
}

func TestWorkflow_UpdateStatusFallsBackToListing(t *testing.T) {
	target := &tasks.Task{ID: "task-1", Description: "bake bread", Status: tasks.StatusPending}
	llm := &routedLLM{
		classify:     "update_status",
		selection:    `{"selected_tasks": ["task-1"], "justification": ""}`,
		statusChange: `{"updated_tasks": [{"id": "task-1", "new_status": "on work"}], "justification": ""}`,
	}
	fx := newWorkflowFixture(llm, "starting on the bread")
	fx.finder.textErr = apperror.ErrNotConfigured
	fx.catalog.list = []*tasks.Task{target}

	err := fx.workflow.Run(context.Background())
	require.NoError(t, err)

	assert.GreaterOrEqual(t, fx.catalog.readAlls, 1)
	require.Len(t, fx.lifecycle.statusCalls, 1)
	assert.Equal(t, tasks.StatusOnWork, fx.lifecycle.statusCalls[0].newStatus)
}

func TestWorkflow_DeleteFiltersUnknownIDs(t *testing.T) {
	t1 := &tasks.Task{ID: "task-1", Description: "bake bread", Status: tasks.StatusPending}
	t2 := &tasks.Task{ID: "task-2", Description: "buy flour", Status: tasks.StatusPending}
	llm := &routedLLM{
		classify:  "delete_tasks",
		selection: `{"selected_tasks": ["task-1", "task-2"], "justification": ""}`,
		deletion:  `{"deleted_tasks": ["task-1", "ghost"], "justification": "only the bread task"}`,
	}
	fx := newWorkflowFixture(llm, "drop the bread plan")
	fx.finder.text = []*tasks.ScoredTask{{Task: t1, Score: 0.9}, {Task: t2, Score: 0.7}}

	err := fx.workflow.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"task-1"}, fx.lifecycle.deleted)
	assert.True(t, fx.console.printed("Deleted 1 task(s)."))
}

func TestWorkflow_DeleteWithNoMatchesIsNoop(t *testing.T) {
	llm := &routedLLM{classify: "delete_tasks"}
	fx := newWorkflowFixture(llm, "drop something")

	err := fx.workflow.Run(context.Background())
	require.NoError(t, err)

	assert.Empty(t, fx.lifecycle.deleted)
	assert.True(t, fx.console.printed("couldn't find any tasks"))
}

func TestWorkflow_ListTasks(t *testing.T) {
	llm := &routedLLM{classify: "list_tasks"}
	fx := newWorkflowFixture(llm, "show my tasks")
	fx.catalog.list = []*tasks.Task{
		{ID: "aaaaaaaa-0000-0000-0000-000000000000", Description: "bake bread",
			Priority: tasks.PriorityHigh, Date: "2026-08-30", Status: tasks.StatusPending},
	}

	err := fx.workflow.Run(context.Background())
	require.NoError(t, err)

	assert.True(t, fx.console.printed("aaaaaaaa"))
	assert.True(t, fx.console.printed("bake bread"))
}

func TestWorkflow_CommentTasks(t *testing.T) {
	llm := &routedLLM{
		classify: "comment_tasks",
		comment:  "Your afternoon looks tight.",
	}
	fx := newWorkflowFixture(llm, "how does my day look")
	fx.finder.timeWindow = []*tasks.Task{
		{ID: "task-1", Description: "bake bread", Date: "2026-08-30", Status: tasks.StatusPending},
	}

	err := fx.workflow.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, fx.finder.timeWindowCalls)
	assert.True(t, fx.console.printed("Your afternoon looks tight."))
}

func TestWorkflow_ExitAction(t *testing.T) {
	llm := &routedLLM{classify: "exit"}
	fx := newWorkflowFixture(llm, "bye", "this input is never read")

	err := fx.workflow.Run(context.Background())
	require.NoError(t, err)

	assert.True(t, fx.console.printed("Goodbye."))
	assert.Len(t, fx.console.inputs, 1, "exit stops before reading more input")
}

func TestWorkflow_UnclassifiedGetsConversationalReply(t *testing.T) {
	llm := &routedLLM{classify: "unclassified"}
	fx := newWorkflowFixture(llm, "what a lovely morning")

	err := fx.workflow.Run(context.Background())
	require.NoError(t, err)

	assert.True(t, fx.console.printed("Sure."))
}
