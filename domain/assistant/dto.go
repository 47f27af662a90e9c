package assistant

import (
	"encoding/json"
	"strings"

	"github.com/alex-d4v/Tiphys/domain/tasks"
)

// Structured exchange formats parsed out of model output. All of them go
// through llmjson.Decode, which fails closed on malformed payloads.

type generatedTask struct {
	Title        string `json:"title"`
	Description  string `json:"description"`
	Priority     string `json:"priority"`
	Date         string `json:"date"`
	Time         string `json:"time"`
	Dependencies []int  `json:"dependencies"`
}

type generationResponse struct {
	Tasks []generatedTask `json:"tasks"`
}

type selectionResponse struct {
	SelectedTasks []string `json:"selected_tasks"`
	Justification string   `json:"justification"`
}

type statusChange struct {
	ID        string `json:"id"`
	NewStatus string `json:"new_status"`
}

type statusChangeResponse struct {
	UpdatedTasks  []statusChange `json:"updated_tasks"`
	Justification string         `json:"justification"`
}

type deletionResponse struct {
	DeletedTasks  []string `json:"deleted_tasks"`
	Justification string   `json:"justification"`
}

type collisionResponse struct {
	CollisionExists bool   `json:"collision_exists"`
	CollisionType   string `json:"collision_type"`
	Justification   string `json:"justification"`
	CanProceed      bool   `json:"can_proceed"`
}

const collisionRedundancy = "Redundancy"

type toolSelectionResponse struct {
	SelectedTools []string `json:"selected_tools"`
	Justification string   `json:"justification"`
}

type toolArgsResponse struct {
	Args          map[string]any `json:"args"`
	Justification string         `json:"justification"`
}

// resolvePlanned turns generated task records into domain tasks with
// minted ids. Dependency references arrive as 1-based indices into the
// same batch; each is resolved to the referenced task's global id.
// Records without a description are skipped entirely; indices outside
// [1, len] or pointing at a skipped record are dropped silently.
func resolvePlanned(gen []generatedTask) []*tasks.Task {
	planned := make([]*tasks.Task, 0, len(gen))
	// Indices refer to positions in the original slice, so resolution
	// keys off that position even when skipped records shift the
	// surviving tasks together.
	byPos := make(map[int]*tasks.Task, len(gen))
	for i, g := range gen {
		if strings.TrimSpace(g.Description) == "" {
			continue
		}
		t := tasks.NewTask(g.Description)
		t.Title = g.Title
		t.Priority = g.Priority
		t.Date = g.Date
		if tt := strings.TrimSpace(g.Time); tt != "" {
			t.Time = &tt
		}
		t.Normalize()
		planned = append(planned, t)
		byPos[i] = t
	}

	for i, g := range gen {
		t, ok := byPos[i]
		if !ok {
			continue
		}
		for _, idx := range g.Dependencies {
			dep, ok := byPos[idx-1]
			if !ok {
				continue
			}
			t.Dependencies = append(t.Dependencies, dep.ID)
		}
	}
	return planned
}

// tasksJSON renders tasks as indented JSON for prompt context.
func tasksJSON(list []*tasks.Task) string {
	type promptTask struct {
		ID           string   `json:"id"`
		Title        string   `json:"title,omitempty"`
		Description  string   `json:"description"`
		Priority     string   `json:"priority"`
		Date         string   `json:"date"`
		Time         *string  `json:"time"`
		Status       string   `json:"status"`
		Dependencies []string `json:"dependencies,omitempty"`
		BlockedTasks []string `json:"blocked_tasks,omitempty"`
	}
	out := make([]promptTask, 0, len(list))
	for _, t := range list {
		out = append(out, promptTask{
			ID:           t.ID,
			Title:        t.Title,
			Description:  t.Description,
			Priority:     t.Priority,
			Date:         t.Date,
			Time:         t.Time,
			Status:       t.Status,
			Dependencies: t.Dependencies,
			BlockedTasks: t.BlockedTasks,
		})
	}
	b, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return "[]"
	}
	return string(b)
}
