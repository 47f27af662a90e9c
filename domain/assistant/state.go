// Package assistant drives the conversational loop: it classifies user
// intent with the language model, generates and persists structured tasks,
// and keeps the turn-local conversation state explicit between nodes.
package assistant

import (
	"strings"

	"github.com/alex-d4v/Tiphys/domain/tasks"
)

// Action is the intent vocabulary the classifier maps user input onto.
type Action string

const (
	ActionGenerateTasks Action = "generate_tasks"
	ActionUpdateStatus  Action = "update_status"
	ActionListTasks     Action = "list_tasks"
	ActionDeleteTasks   Action = "delete_tasks"
	ActionCommentTasks  Action = "comment_tasks"
	ActionExit          Action = "exit"
	ActionMenu          Action = "menu"

	// ActionUnclassified routes to a generic conversational reply.
	ActionUnclassified Action = "unclassified"
)

var knownActions = []Action{
	ActionGenerateTasks,
	ActionUpdateStatus,
	ActionListTasks,
	ActionDeleteTasks,
	ActionCommentTasks,
	ActionExit,
	ActionMenu,
}

// ParseAction scans model output for a known action name. Classifier
// responses are free text, so matching is substring-based with longer
// names checked first. Anything unrecognized is unclassified.
func ParseAction(raw string) Action {
	s := strings.ToLower(raw)
	for _, a := range knownActions {
		if strings.Contains(s, string(a)) {
			return a
		}
	}
	return ActionUnclassified
}

// node identifies a step of the conversation state machine.
type node int

const (
	nodeInitial node = iota
	nodeMenu
	nodeGenerate
	nodeSearch
	nodeCheckCollision
	nodeCreateTasks
	nodeUpdateStatus
	nodeListTasks
	nodeDeleteTasks
	nodeCommentTasks
	nodeExit
)

func (n node) String() string {
	switch n {
	case nodeInitial:
		return "initial"
	case nodeMenu:
		return "menu"
	case nodeGenerate:
		return "generate"
	case nodeSearch:
		return "search"
	case nodeCheckCollision:
		return "check_collision"
	case nodeCreateTasks:
		return "create_tasks"
	case nodeUpdateStatus:
		return "update_status"
	case nodeListTasks:
		return "list_tasks"
	case nodeDeleteTasks:
		return "delete_tasks"
	case nodeCommentTasks:
		return "comment_tasks"
	case nodeExit:
		return "exit"
	}
	return "unknown"
}

// State is the conversation state threaded through the nodes of one
// session. Merge policy per field: UserMessage is overwritten each turn,
// Planned is replace-not-merge, Relevant accumulates within a turn with
// first occurrence winning on duplicate ids.
type State struct {
	// UserMessage is the raw utterance currently being handled.
	UserMessage string

	// AutoAdvance lets Menu reuse UserMessage exactly once instead of
	// prompting again. Cleared on consumption.
	AutoAdvance bool

	// Planned holds generated tasks that have not been committed yet.
	Planned []*tasks.Task

	// Relevant is the candidate set gathered by Search for the
	// collision check.
	Relevant []*tasks.Task

	// Blocked is set by CheckCollision when creation must not proceed.
	Blocked bool
}

// SetPlanned replaces the planned buffer.
func (s *State) SetPlanned(list []*tasks.Task) {
	s.Planned = list
}

// ClearPlanned drops any uncommitted tasks so they cannot be re-applied
// on a later turn.
func (s *State) ClearPlanned() {
	s.Planned = nil
	s.Blocked = false
}

// AddRelevant accumulates candidates, deduplicated by id with the first
// occurrence winning.
func (s *State) AddRelevant(list []*tasks.Task) {
	seen := make(map[string]struct{}, len(s.Relevant))
	for _, t := range s.Relevant {
		seen[t.ID] = struct{}{}
	}
	for _, t := range list {
		if t == nil {
			continue
		}
		if _, ok := seen[t.ID]; ok {
			continue
		}
		seen[t.ID] = struct{}{}
		s.Relevant = append(s.Relevant, t)
	}
}

// ClearRelevant resets the candidate set at the start of a new
// generate turn.
func (s *State) ClearRelevant() {
	s.Relevant = nil
}
