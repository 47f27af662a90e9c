package assistant

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/alex-d4v/Tiphys/domain/tasks"
)

const descriptionDisplayWidth = 48

// renderTasks formats tasks as an aligned text table.
func renderTasks(list []*tasks.Task) string {
	if len(list) == 0 {
		return "(no tasks)"
	}
	var b strings.Builder
	w := tabwriter.NewWriter(&b, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tDESCRIPTION\tPRIORITY\tDATE\tTIME\tSTATUS\tDEPENDS ON\tBLOCKS")
	for _, t := range list {
		tm := "-"
		if t.Time != nil {
			tm = *t.Time
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			shortID(t.ID),
			truncate(t.Description, descriptionDisplayWidth),
			t.Priority,
			t.Date,
			tm,
			t.Status,
			shortIDList(t.Dependencies),
			shortIDList(t.BlockedTasks),
		)
	}
	w.Flush()
	return strings.TrimRight(b.String(), "\n")
}

func shortID(id string) string {
	r := []rune(id)
	if len(r) > 8 {
		return string(r[:8])
	}
	return id
}

func shortIDList(ids []string) string {
	if len(ids) == 0 {
		return "-"
	}
	short := make([]string, len(ids))
	for i, id := range ids {
		short[i] = shortID(id)
	}
	return strings.Join(short, ",")
}

// truncate shortens s to max runes, never splitting a multi-byte rune.
func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	if max <= 3 {
		return string(r[:max])
	}
	return string(r[:max-3]) + "..."
}
