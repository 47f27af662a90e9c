package assistant

import (
	"fmt"
	"strings"

	"github.com/alex-d4v/Tiphys/domain/tasks"
)

const systemPrompt = `You are a task management assistant. You help the user plan, track,
update and delete tasks. Be concise and practical. When asked to answer in
JSON, reply with a single JSON object and nothing else.`

func classifyPrompt(message string) string {
	return fmt.Sprintf(`Classify the user's message into exactly one of these actions:

- generate_tasks: the user wants to plan or create new tasks
- update_status: the user reports progress or wants to change a task's status
- list_tasks: the user wants to see their tasks
- delete_tasks: the user wants to remove tasks
- comment_tasks: the user asks for feedback or commentary on upcoming tasks
- exit: the user wants to end the session
- menu: the user wants to be asked again what to do
- unclassified: none of the above

User message: %q

Answer with the single action name only.`, message)
}

func greetingPrompt(counts *tasks.StatusCounts) string {
	return fmt.Sprintf(`Greet the user and briefly summarize their current task load:
%d pending, %d on work, %d over deadline, %d done (%d total).
One or two sentences, no lists.`,
		counts.Pending, counts.OnWork, counts.OverDeadline, counts.Done, counts.Total())
}

func generalReplyPrompt(message string) string {
	return fmt.Sprintf(`The user said: %q

This is not a task management command. Reply conversationally in one or
two sentences, then remind the user you can create, list, update, delete
or comment on tasks.`, message)
}

func generatePrompt(message, today string) string {
	return fmt.Sprintf(`Decompose the user's goal into one or more concrete tasks.
Today is %s.

User goal: %q

Rules:
- description is required for every task; title is a short optional label
- priority is one of: high, medium, low
- date is an ISO date (YYYY-MM-DD); use "9999-12-31" when no date applies
- time is HH:MM or "" when no time applies
- dependencies lists 1-based indices of other tasks in THIS response that
  the task depends on

Answer with a single JSON object:
{"tasks": [{"title": "...", "description": "...", "priority": "medium",
"date": "YYYY-MM-DD", "time": "HH:MM", "started_at": null,
"ended_at": null, "dependencies": []}]}`, today, message)
}

func toolSelectionPrompt(message string, planned []*tasks.Task) string {
	return fmt.Sprintf(`The user wants to create the following tasks:
%s

User message: %q

Select which retrieval tools should run to find existing tasks that might
collide with the new ones. Available tools:

- find_by_time_window: tasks scheduled inside a date/time range
- find_related: tasks connected to a known task id through dependencies
- find_by_text_query: tasks semantically similar to a text query

Choose at least one. Answer with a single JSON object:
{"selected_tools": ["..."], "justification": "..."}`, tasksJSON(planned), message)
}

func toolArgsPrompt(tool, message, today string, planned []*tasks.Task) string {
	var shape string
	switch tool {
	case toolTimeWindow:
		shape = `{"args": {"start_date": "YYYY-MM-DD", "end_date": "YYYY-MM-DD",
"start_time": "HH:MM", "end_time": "HH:MM"}, "justification": "..."}
start_time and end_time may be "" to cover the whole day.`
	case toolRelated:
		shape = `{"args": {"task_id": "<existing task id>", "max_depth": "full"},
"justification": "..."}
max_depth is "full" or a positive integer.`
	case toolTextQuery:
		shape = `{"args": {"query": "<search text>"}, "justification": "..."}`
	}
	return fmt.Sprintf(`Extract the arguments for the retrieval tool %q.
Today is %s.

User message: %q

Planned tasks:
%s

Answer with a single JSON object shaped like:
%s`, tool, today, message, tasksJSON(planned), shape)
}

func collisionPrompt(planned, candidates []*tasks.Task) string {
	return fmt.Sprintf(`Compare the planned tasks against the existing tasks and judge
whether they collide.

Planned tasks:
%s

Existing tasks:
%s

Collision types:
- Redundancy: a planned task duplicates an existing one
- Conflict: a planned task contradicts or competes with an existing one
- Dependency: a planned task should depend on an existing one
- None: no meaningful relation

Answer with a single JSON object:
{"collision_exists": false, "collision_type": "None",
"justification": "...", "can_proceed": true}`,
		tasksJSON(planned), tasksJSON(candidates))
}

func selectTasksPrompt(message string, candidates []*tasks.Task) string {
	return fmt.Sprintf(`The user said: %q

Which of the following tasks is the user referring to? Select zero or
more by id.

%s

Answer with a single JSON object:
{"selected_tasks": ["<id>", ...], "justification": "..."}`,
		message, tasksJSON(candidates))
}

func statusChangePrompt(message string, selected []*tasks.Task) string {
	return fmt.Sprintf(`The user said: %q

Decide the new status for each of these tasks. Valid statuses:
pending, "on work", "over deadline", done.

%s

Answer with a single JSON object:
{"updated_tasks": [{"id": "<id>", "new_status": "..."}],
"justification": "..."}`, message, tasksJSON(selected))
}

func deletePrompt(message string, selected []*tasks.Task) string {
	return fmt.Sprintf(`The user said: %q

Decide which of these tasks should be deleted. Include a task that other
tasks depend on only if the user clearly wants the dependents gone too,
and in that case include the dependent ids as well.

%s

Answer with a single JSON object:
{"deleted_tasks": ["<id>", ...], "justification": "..."}`,
		message, tasksJSON(selected))
}

func commentPrompt(message string, window []*tasks.Task) string {
	var intro string
	if strings.TrimSpace(message) == "" {
		intro = "Comment on the user's upcoming tasks."
	} else {
		intro = fmt.Sprintf("The user said: %q\nComment on their upcoming tasks with that in mind.", message)
	}
	return fmt.Sprintf(`%s

Tasks around now:
%s

Point out tight scheduling, overdue work and sensible ordering given the
dependencies. Three or four sentences, no lists.`, intro, tasksJSON(window))
}
