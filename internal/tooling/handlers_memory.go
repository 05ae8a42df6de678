package tooling

import (
	"fmt"
	"strings"

	"github.com/nexusforge/agentloop/internal/convo"
)

func (d *Dispatcher) noteToSelf(input map[string]any, toolUseID string) convo.Block {
	content := stringInput(input, "content")
	result, err := d.mem.StoreNote(content)
	if err != nil {
		return errResult(toolUseID, fmt.Sprintf("note_to_self: %v", err))
	}
	return okResult(toolUseID, result)
}

func (d *Dispatcher) dismissNote(input map[string]any, toolUseID string) convo.Block {
	id := stringInput(input, "id")
	return okResult(toolUseID, d.mem.DismissNote(id))
}

// recallMemory implements spec.md §4.6: neither query nor id given is a
// human-readable message, not an error result — the model asked for
// nothing and gets told so, rather than being made to retry via an
// is_error path.
func (d *Dispatcher) recallMemory(input map[string]any, toolUseID string) convo.Block {
	query := stringInput(input, "query")
	id := stringInput(input, "id")

	if id != "" {
		r, ok := d.mem.RecallByID(id)
		if !ok {
			return errResult(toolUseID, fmt.Sprintf("recall_memory: no record found with id %s", id))
		}
		return okResult(toolUseID, r.Content)
	}
	if query != "" {
		records := d.mem.Recall(query)
		if len(records) == 0 {
			return okResult(toolUseID, "no matching memories")
		}
		var b strings.Builder
		for _, r := range records {
			fmt.Fprintf(&b, "%s (%s): %s\n", r.ID, r.Category, r.Summary)
		}
		return okResult(toolUseID, b.String())
	}
	return okResult(toolUseID, "recall_memory: provide a query or an id")
}
