package tooling

import (
	"encoding/json"

	"github.com/nexusforge/agentloop/internal/llm"
)

var toolDescriptions = map[string]string{
	"read_file":      "Read a line-numbered slice of a file, capped at the default read window unless startLine/endLine are given.",
	"grep_search":    "Search file contents for a substring or regex, optionally filtered by an includePattern glob.",
	"file_search":    "Find files in the workspace matching a glob pattern.",
	"list_directory": "List a directory's entries; subdirectories are suffixed with /.",
	"edit_file":      "Replace an exact, unique occurrence of oldString with newString in a file.",
	"create_file":    "Create a new file with the given content; fails if it already exists.",
	"delete_file":    "Delete a file from the workspace.",
	"note_to_self":   "Save a short note for a future cycle to read back.",
	"dismiss_note":   "Mark a previously saved note inactive without deleting it.",
	"recall_memory":  "Recall notes or reflections by a text query or a specific id.",
	"done":           "Signal that this session's work is complete, with a summary.",
	"submit_plan":    "Submit the cycle's plan for the Builder to implement.",
	"git_diff":       "Show the working tree's diff against the main branch.",
}

var rawSchemas = map[string]string{
	"read_file":      readFileSchema,
	"grep_search":    grepSearchSchema,
	"file_search":    fileSearchSchema,
	"list_directory": listDirectorySchema,
	"edit_file":      editFileSchema,
	"create_file":    createFileSchema,
	"delete_file":    deleteFileSchema,
	"note_to_self":   noteToSelfSchema,
	"dismiss_note":   dismissNoteSchema,
	"recall_memory":  recallMemorySchema,
	"done":           doneSchema,
	"submit_plan":    submitPlanSchema,
	"git_diff":       gitDiffSchema,
}

// ToolSpec builds the provider-neutral tool declaration for name from
// the same schema string C6 uses to validate that tool's input — one
// schema serves both the model-facing declaration and the dispatcher's
// validation, rather than drifting apart as two hand-maintained copies.
func ToolSpec(name string) llm.ToolSpec {
	var schema map[string]any
	_ = json.Unmarshal([]byte(rawSchemas[name]), &schema)
	return llm.ToolSpec{Name: name, Description: toolDescriptions[name], Schema: schema}
}

// ToolSpecs builds the declaration list for a session's tool set, in
// the given order.
func ToolSpecs(names ...string) []llm.ToolSpec {
	out := make([]llm.ToolSpec, 0, len(names))
	for _, n := range names {
		out = append(out, ToolSpec(n))
	}
	return out
}
