package assistant

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/alex-d4v/Tiphys/domain/tasks"
	"github.com/alex-d4v/Tiphys/internal/config"
	"github.com/alex-d4v/Tiphys/pkg/apperror"
	"github.com/alex-d4v/Tiphys/pkg/llm/llmjson"
	"github.com/alex-d4v/Tiphys/pkg/logger"
)

// Retrieval tools the model can select during the collision search.
const (
	toolTimeWindow = "find_by_time_window"
	toolRelated    = "find_related"
	toolTextQuery  = "find_by_text_query"
)

// Generator produces text from the language model. Failures come back
// folded into the returned string, never as an error.
type Generator interface {
	Generate(ctx context.Context, prompt, systemPrompt string) string
}

// Retriever is the slice of the task finder the workflow exposes to the
// model as tools.
type Retriever interface {
	FindByTimeWindow(ctx context.Context, startDate, endDate, startTime, endTime string, limit int) ([]*tasks.Task, error)
	FindRelated(ctx context.Context, seedID string, maxDepth int) ([]*tasks.Task, error)
	FindByTextQuery(ctx context.Context, text string, topK int) ([]*tasks.ScoredTask, error)
}

// Lifecycle is the mutating surface of the task lifecycle manager.
type Lifecycle interface {
	Create(ctx context.Context, t *tasks.Task) error
	SetStatus(ctx context.Context, t *tasks.Task, newStatus string) error
	Delete(ctx context.Context, ids []string) (int, error)
	WorkingSet() *tasks.WorkingSet
}

// Catalog is the read-only surface of the task repository.
type Catalog interface {
	ReadAll(ctx context.Context, statusFilter string, limit int) ([]*tasks.Task, error)
	Counts(ctx context.Context) (*tasks.StatusCounts, error)
}

// DocumentEmbedder computes embeddings for tasks about to be persisted.
type DocumentEmbedder interface {
	IsEnabled() bool
	EmbedDocuments(ctx context.Context, documents []string) ([][]float32, error)
}

// Workflow is the conversation state machine. One instance drives one
// interactive session, strictly sequentially.
type Workflow struct {
	llm      Generator
	finder   Retriever
	manager  Lifecycle
	catalog  Catalog
	embedder DocumentEmbedder
	console  Console
	cfg      config.AssistantConfig
	log      *slog.Logger
	now      func() time.Time
}

func NewWorkflow(
	gen Generator,
	finder Retriever,
	manager Lifecycle,
	catalog Catalog,
	embedder DocumentEmbedder,
	console Console,
	cfg *config.Config,
	log *slog.Logger,
) *Workflow {
	return &Workflow{
		llm:      gen,
		finder:   finder,
		manager:  manager,
		catalog:  catalog,
		embedder: embedder,
		console:  console,
		cfg:      cfg.Assistant,
		log:      log.With(logger.Scope("assistant.workflow")),
		now:      time.Now,
	}
}

// Run drives the session until the user exits or input ends. The caller
// is responsible for the final store sync after Run returns.
func (w *Workflow) Run(ctx context.Context) error {
	st := &State{}
	current := nodeInitial
	for current != nodeExit {
		if err := ctx.Err(); err != nil {
			return err
		}
		next, err := w.step(ctx, current, st)
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return err
		}
		current = next
	}
	w.console.Print("Goodbye.")
	return nil
}

func (w *Workflow) step(ctx context.Context, n node, st *State) (node, error) {
	w.log.Debug("entering node", slog.String("node", n.String()))
	switch n {
	case nodeInitial:
		return w.initial(ctx, st)
	case nodeMenu:
		return w.menu(ctx, st)
	case nodeGenerate:
		return w.generate(ctx, st)
	case nodeSearch:
		return w.search(ctx, st)
	case nodeCheckCollision:
		return w.checkCollision(ctx, st)
	case nodeCreateTasks:
		return w.createTasks(ctx, st)
	case nodeUpdateStatus:
		return w.updateStatus(ctx, st)
	case nodeListTasks:
		return w.listTasks(ctx, st)
	case nodeDeleteTasks:
		return w.deleteTasks(ctx, st)
	case nodeCommentTasks:
		return w.commentTasks(ctx, st)
	}
	return nodeExit, fmt.Errorf("unknown workflow node %d", n)
}

func (w *Workflow) initial(ctx context.Context, st *State) (node, error) {
	counts, err := w.catalog.Counts(ctx)
	if err != nil {
		w.log.Warn("reading task counts for greeting", logger.Error(err))
		counts = &tasks.StatusCounts{}
	}
	w.console.Print(w.llm.Generate(ctx, greetingPrompt(counts), systemPrompt))

	line, err := w.console.ReadLine("you> ")
	if err != nil {
		return nodeExit, err
	}
	st.UserMessage = line
	st.AutoAdvance = true
	return nodeMenu, nil
}

func (w *Workflow) menu(ctx context.Context, st *State) (node, error) {
	if st.AutoAdvance && strings.TrimSpace(st.UserMessage) != "" {
		st.AutoAdvance = false
	} else {
		st.AutoAdvance = false
		line, err := w.console.ReadLine("you> ")
		if err != nil {
			return nodeExit, err
		}
		st.UserMessage = line
	}
	if strings.TrimSpace(st.UserMessage) == "" {
		return nodeMenu, nil
	}

	action := ParseAction(w.llm.Generate(ctx, classifyPrompt(st.UserMessage), systemPrompt))
	w.log.Debug("classified user message", slog.String("action", string(action)))

	switch action {
	case ActionGenerateTasks:
		return nodeGenerate, nil
	case ActionUpdateStatus:
		return nodeUpdateStatus, nil
	case ActionListTasks:
		return nodeListTasks, nil
	case ActionDeleteTasks:
		return nodeDeleteTasks, nil
	case ActionCommentTasks:
		return nodeCommentTasks, nil
	case ActionExit:
		return nodeExit, nil
	case ActionMenu:
		w.console.Print("Tell me what you'd like to do: create, list, update, delete or comment on tasks.")
		return nodeMenu, nil
	default:
		w.console.Print(w.llm.Generate(ctx, generalReplyPrompt(st.UserMessage), systemPrompt))
		return nodeMenu, nil
	}
}

func (w *Workflow) generate(ctx context.Context, st *State) (node, error) {
	st.ClearPlanned()
	st.ClearRelevant()

	today := w.now().Format("2006-01-02")
	raw := w.llm.Generate(ctx, generatePrompt(st.UserMessage, today), systemPrompt)

	var resp generationResponse
	if err := llmjson.Decode(raw, &resp); err != nil {
		w.log.Warn("unparseable generation response", logger.Error(err), slog.String("raw", raw))
		w.console.Print("I couldn't turn that into tasks. Try rephrasing your goal.")
		return nodeMenu, nil
	}
	planned := resolvePlanned(resp.Tasks)
	if len(planned) == 0 {
		w.console.Print("No tasks came out of that. Try rephrasing your goal.")
		return nodeMenu, nil
	}
	st.SetPlanned(planned)
	w.console.Print("Planned tasks:")
	w.console.Print(renderTasks(planned))
	return nodeSearch, nil
}

func (w *Workflow) search(ctx context.Context, st *State) (node, error) {
	raw := w.llm.Generate(ctx, toolSelectionPrompt(st.UserMessage, st.Planned), systemPrompt)

	var sel toolSelectionResponse
	if err := llmjson.Decode(raw, &sel); err != nil {
		w.log.Warn("unparseable tool selection", logger.Error(err), slog.String("raw", raw))
		return nodeCheckCollision, nil
	}

	seen := make(map[string]struct{}, len(sel.SelectedTools))
	for _, tool := range sel.SelectedTools {
		tool = strings.TrimSpace(strings.ToLower(tool))
		if _, ok := seen[tool]; ok {
			continue
		}
		seen[tool] = struct{}{}
		switch tool {
		case toolTimeWindow, toolRelated, toolTextQuery:
		default:
			w.log.Warn("model selected unknown tool", slog.String("tool", tool))
			continue
		}

		found, err := w.invokeTool(ctx, tool, st)
		if err != nil {
			w.log.Warn("retrieval tool failed", slog.String("tool", tool), logger.Error(err))
			continue
		}
		st.AddRelevant(found)
	}
	return nodeCheckCollision, nil
}

func (w *Workflow) invokeTool(ctx context.Context, tool string, st *State) ([]*tasks.Task, error) {
	today := w.now().Format("2006-01-02")
	raw := w.llm.Generate(ctx, toolArgsPrompt(tool, st.UserMessage, today, st.Planned), systemPrompt)

	var resp toolArgsResponse
	if err := llmjson.Decode(raw, &resp); err != nil {
		return nil, fmt.Errorf("decoding tool arguments: %w", err)
	}

	switch tool {
	case toolTimeWindow:
		start := argString(resp.Args, "start_date")
		end := argString(resp.Args, "end_date")
		if start == "" || end == "" {
			return nil, errors.New("time window requires start_date and end_date")
		}
		return w.finder.FindByTimeWindow(ctx, start, end,
			argString(resp.Args, "start_time"), argString(resp.Args, "end_time"),
			w.cfg.SearchLimit)

	case toolRelated:
		seed := argString(resp.Args, "task_id")
		if seed == "" {
			return nil, errors.New("related search requires task_id")
		}
		return w.finder.FindRelated(ctx, seed, argDepth(resp.Args, "max_depth"))

	case toolTextQuery:
		query := argString(resp.Args, "query")
		if query == "" {
			return nil, errors.New("text search requires query")
		}
		scored, err := w.finder.FindByTextQuery(ctx, query, w.cfg.SimilarityTopK)
		if err != nil {
			return nil, err
		}
		return unscore(scored), nil
	}
	return nil, fmt.Errorf("unknown tool %q", tool)
}

func (w *Workflow) checkCollision(ctx context.Context, st *State) (node, error) {
	if len(st.Planned) == 0 || len(st.Relevant) == 0 {
		return nodeCreateTasks, nil
	}

	raw := w.llm.Generate(ctx, collisionPrompt(st.Planned, st.Relevant), systemPrompt)
	var resp collisionResponse
	if err := llmjson.Decode(raw, &resp); err != nil {
		w.log.Warn("unparseable collision verdict", logger.Error(err), slog.String("raw", raw))
		return nodeCreateTasks, nil
	}
	if resp.CollisionExists && resp.Justification != "" {
		w.console.Printf("Heads up: %s", resp.Justification)
	}
	// Conflict and Dependency verdicts are informational. Only a
	// redundancy verdict stops creation.
	st.Blocked = resp.CollisionType == collisionRedundancy
	return nodeCreateTasks, nil
}

func (w *Workflow) createTasks(ctx context.Context, st *State) (node, error) {
	if st.Blocked {
		w.console.Print("These tasks look like duplicates of existing ones, so I didn't create them.")
		st.ClearPlanned()
		st.ClearRelevant()
		return nodeMenu, nil
	}

	w.embedPlanned(ctx, st.Planned)

	var created []*tasks.Task
	for _, t := range st.Planned {
		if err := w.manager.Create(ctx, t); err != nil {
			w.log.Error("persisting planned task", slog.String("task_id", t.ID), logger.Error(err))
			w.console.Printf("Couldn't save task %q.", truncate(t.Description, 40))
			continue
		}
		created = append(created, t)
	}
	if len(created) > 0 {
		w.console.Printf("Created %d task(s):", len(created))
		w.console.Print(renderTasks(created))
	}
	st.ClearPlanned()
	st.ClearRelevant()
	return nodeMenu, nil
}

func (w *Workflow) embedPlanned(ctx context.Context, planned []*tasks.Task) {
	if !w.embedder.IsEnabled() || len(planned) == 0 {
		return
	}
	docs := make([]string, len(planned))
	for i, t := range planned {
		docs[i] = t.EmbeddingText()
	}
	vecs, err := w.embedder.EmbedDocuments(ctx, docs)
	if err != nil {
		w.log.Warn("embedding planned tasks", logger.Error(err))
		return
	}
	if len(vecs) != len(planned) {
		w.log.Warn("embedding count mismatch",
			slog.Int("want", len(planned)), slog.Int("got", len(vecs)))
		return
	}
	for i, t := range planned {
		t.Embedding = vecs[i]
	}
}

func (w *Workflow) updateStatus(ctx context.Context, st *State) (node, error) {
	selected, next := w.selectTasks(ctx, st)
	if next != nil {
		return *next, nil
	}

	raw := w.llm.Generate(ctx, statusChangePrompt(st.UserMessage, selected), systemPrompt)
	var resp statusChangeResponse
	if err := llmjson.Decode(raw, &resp); err != nil {
		w.log.Warn("unparseable status change response", logger.Error(err), slog.String("raw", raw))
		w.console.Print("I couldn't work out the status changes. Nothing was updated.")
		return nodeMenu, nil
	}

	byID := make(map[string]*tasks.Task, len(selected))
	for _, t := range selected {
		byID[t.ID] = t
	}
	var applied int
	for _, change := range resp.UpdatedTasks {
		t, ok := byID[change.ID]
		if !ok {
			w.log.Warn("status change for unselected task", slog.String("task_id", change.ID))
			continue
		}
		if !tasks.ValidStatus(change.NewStatus) {
			w.console.Printf("Skipping %s: %q is not a valid status.", shortID(change.ID), change.NewStatus)
			continue
		}
		if err := w.manager.SetStatus(ctx, t, change.NewStatus); err != nil {
			w.console.Printf("Couldn't update %s: %v", shortID(change.ID), err)
			continue
		}
		w.console.Printf("%s -> %s", shortID(t.ID), change.NewStatus)
		applied++
	}
	if resp.Justification != "" {
		w.console.Print(resp.Justification)
	}
	if applied == 0 {
		w.console.Print("No status changes were applied.")
	}
	return nodeMenu, nil
}

func (w *Workflow) deleteTasks(ctx context.Context, st *State) (node, error) {
	selected, next := w.selectTasks(ctx, st)
	if next != nil {
		return *next, nil
	}

	raw := w.llm.Generate(ctx, deletePrompt(st.UserMessage, selected), systemPrompt)
	var resp deletionResponse
	if err := llmjson.Decode(raw, &resp); err != nil {
		w.log.Warn("unparseable deletion response", logger.Error(err), slog.String("raw", raw))
		w.console.Print("I couldn't work out what to delete. Nothing was removed.")
		return nodeMenu, nil
	}

	known := make(map[string]struct{}, len(selected))
	for _, t := range selected {
		known[t.ID] = struct{}{}
	}
	var ids []string
	for _, id := range resp.DeletedTasks {
		if _, ok := known[id]; ok {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		w.console.Print("Nothing matched, so nothing was deleted.")
		return nodeMenu, nil
	}

	count, err := w.manager.Delete(ctx, ids)
	if err != nil {
		w.log.Error("deleting tasks", logger.Error(err))
		w.console.Print("Deleting failed. Nothing was removed.")
		return nodeMenu, nil
	}
	if resp.Justification != "" {
		w.console.Print(resp.Justification)
	}
	w.console.Printf("Deleted %d task(s).", count)
	return nodeMenu, nil
}

// selectTasks runs the shared first phase of update and delete: gather
// candidates relevant to the utterance, then ask the model which of them
// the user means. A non-nil node return short-circuits the caller.
func (w *Workflow) selectTasks(ctx context.Context, st *State) ([]*tasks.Task, *node) {
	menu := nodeMenu
	candidates := w.findCandidates(ctx, st.UserMessage)
	if len(candidates) == 0 {
		w.console.Print("I couldn't find any tasks matching that.")
		return nil, &menu
	}

	raw := w.llm.Generate(ctx, selectTasksPrompt(st.UserMessage, candidates), systemPrompt)
	var resp selectionResponse
	if err := llmjson.Decode(raw, &resp); err != nil {
		w.log.Warn("unparseable selection response", logger.Error(err), slog.String("raw", raw))
		w.console.Print("I couldn't match that to any of your tasks.")
		return nil, &menu
	}

	byID := make(map[string]*tasks.Task, len(candidates))
	for _, t := range candidates {
		byID[t.ID] = t
	}
	var selected []*tasks.Task
	for _, id := range resp.SelectedTasks {
		if t, ok := byID[id]; ok {
			selected = append(selected, t)
		}
	}
	if len(selected) == 0 {
		w.console.Print("None of your tasks seem to match that.")
		return nil, &menu
	}
	return selected, nil
}

// findCandidates prefers similarity search and falls back to a plain
// listing when no embedding provider is bound or the search comes back
// empty.
func (w *Workflow) findCandidates(ctx context.Context, message string) []*tasks.Task {
	scored, err := w.finder.FindByTextQuery(ctx, message, w.cfg.SimilarityTopK)
	if err != nil {
		if !errors.Is(err, apperror.ErrNotConfigured) {
			w.log.Warn("similarity search for candidates", logger.Error(err))
		}
	} else if len(scored) > 0 {
		return unscore(scored)
	}

	all, err := w.catalog.ReadAll(ctx, "", w.cfg.SearchLimit)
	if err != nil {
		w.log.Error("listing candidate tasks", logger.Error(err))
		return nil
	}
	return all
}

func (w *Workflow) listTasks(ctx context.Context, st *State) (node, error) {
	list, err := w.catalog.ReadAll(ctx, "", 0)
	if err != nil {
		w.log.Error("listing tasks", logger.Error(err))
		w.console.Print("Couldn't read your tasks right now.")
		return nodeMenu, nil
	}
	w.console.Print(renderTasks(list))
	return nodeMenu, nil
}

func (w *Workflow) commentTasks(ctx context.Context, st *State) (node, error) {
	now := w.now()
	half := time.Duration(w.cfg.CommentWindowHours) * time.Hour
	start := now.Add(-half)
	end := now.Add(half)

	window, err := w.finder.FindByTimeWindow(ctx,
		start.Format("2006-01-02"), end.Format("2006-01-02"),
		start.Format("15:04"), end.Format("15:04"),
		w.cfg.SearchLimit)
	if err != nil {
		w.log.Error("reading comment window", logger.Error(err))
		w.console.Print("Couldn't read your upcoming tasks right now.")
		return nodeMenu, nil
	}
	if len(window) == 0 {
		w.console.Print("Nothing scheduled around now.")
		return nodeMenu, nil
	}
	w.console.Print(w.llm.Generate(ctx, commentPrompt(st.UserMessage, window), systemPrompt))
	return nodeMenu, nil
}

func unscore(scored []*tasks.ScoredTask) []*tasks.Task {
	out := make([]*tasks.Task, 0, len(scored))
	for _, s := range scored {
		out = append(out, s.Task)
	}
	return out
}

func argString(args map[string]any, key string) string {
	v, ok := args[key]
	if !ok {
		return ""
	}
	s, ok := v.(string)
	if !ok {
		return ""
	}
	return strings.TrimSpace(s)
}

// argDepth reads a traversal depth that may arrive as "full", a JSON
// number, or a numeric string. Anything unusable means unbounded.
func argDepth(args map[string]any, key string) int {
	switch v := args[key].(type) {
	case string:
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && n > 0 {
			return n
		}
	case float64:
		if n := int(v); n > 0 {
			return n
		}
	}
	return tasks.FullDepth
}
