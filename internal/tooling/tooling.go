// Package tooling implements the Tool Dispatcher (C6): a single
// dispatch entry point shared by every agent session, covering file,
// search, memory, and control-flow tools against a uniform ToolResult
// shape.
package tooling

import (
	"fmt"

	"github.com/nexusforge/agentloop/internal/convo"
	"github.com/nexusforge/agentloop/internal/memory"
)

// Config bundles C6's tunables (spec.md §6 "tools").
type Config struct {
	DefaultReadWindow int
}

func DefaultConfig() Config {
	return Config{DefaultReadWindow: 100}
}

// GitDiffer is the narrow slice of the VCS interface (§6) that the
// Builder/Fixer sessions' git_diff tool needs. Wired in by the
// Iteration Controller once a cycle's VCS session exists.
type GitDiffer interface {
	Diff() (string, error)
}

// Dispatcher is C6's entry point. One Dispatcher is created per
// cycle, scoped to that cycle's workspace checkout and memory
// manager.
type Dispatcher struct {
	ws  Workspace
	mem *memory.Manager
	vcs GitDiffer
	cfg Config
}

func NewDispatcher(ws Workspace, mem *memory.Manager, vcs GitDiffer, cfg Config) *Dispatcher {
	if cfg.DefaultReadWindow == 0 {
		cfg = DefaultConfig()
	}
	return &Dispatcher{ws: ws, mem: mem, vcs: vcs, cfg: cfg}
}

// Dispatch implements spec.md §4.6: validate input against the named
// tool's schema, execute it, and return a tool_result block. Unknown
// tool names and schema-validation failures both come back as
// is_error results rather than panics — a session's turn loop must be
// able to keep going after a malformed call.
func (d *Dispatcher) Dispatch(name string, input map[string]any, toolUseID string) convo.Block {
	if !knownTools[name] {
		return errResult(toolUseID, fmt.Sprintf("unknown tool %q", name))
	}
	if err := validateInput(name, input); err != nil {
		return errResult(toolUseID, fmt.Sprintf("invalid input for %s: %v", name, err))
	}

	switch name {
	case "read_file":
		return d.readFile(input, toolUseID)
	case "grep_search":
		return d.grepSearch(input, toolUseID)
	case "file_search":
		return d.fileSearch(input, toolUseID)
	case "list_directory":
		return d.listDirectory(input, toolUseID)
	case "edit_file":
		return d.editFile(input, toolUseID)
	case "create_file":
		return d.createFile(input, toolUseID)
	case "delete_file":
		return d.deleteFile(input, toolUseID)
	case "note_to_self":
		return d.noteToSelf(input, toolUseID)
	case "dismiss_note":
		return d.dismissNote(input, toolUseID)
	case "recall_memory":
		return d.recallMemory(input, toolUseID)
	case "done":
		return d.done(input, toolUseID)
	case "submit_plan":
		return d.submitPlan(input, toolUseID)
	case "git_diff":
		return d.gitDiff(toolUseID)
	default:
		return errResult(toolUseID, fmt.Sprintf("unknown tool %q", name))
	}
}

var knownTools = map[string]bool{
	"read_file": true, "grep_search": true, "file_search": true, "list_directory": true,
	"edit_file": true, "create_file": true, "delete_file": true,
	"note_to_self": true, "dismiss_note": true, "recall_memory": true,
	"done": true, "submit_plan": true, "git_diff": true,
}

func okResult(toolUseID, content string) convo.Block {
	return convo.ToolResultBlock(toolUseID, content, false)
}

func errResult(toolUseID, content string) convo.Block {
	return convo.ToolResultBlock(toolUseID, content, true)
}

func stringInput(input map[string]any, key string) string {
	if v, ok := input[key].(string); ok {
		return v
	}
	return ""
}

func intInput(input map[string]any, key string) (int, bool) {
	switch v := input[key].(type) {
	case float64:
		return int(v), true
	case int:
		return v, true
	default:
		return 0, false
	}
}
