// Package session implements the four Agent Sessions (C7): Planner,
// Builder, Fixer, and Reflector, sharing one turn-loop skeleton over
// the LLM Client (C3) and Tool Dispatcher (C6).
package session

import (
	"context"
	"fmt"

	"github.com/nexusforge/agentloop/internal/convo"
	"github.com/nexusforge/agentloop/internal/llm"
	"github.com/nexusforge/agentloop/internal/tooling"
)

// PrepareTurnFunc is the C4/C5 pre-call hook type shared by every role
// wrapper's signature; see Runner.PrepareTurn.
type PrepareTurnFunc func(conv convo.Conversation) (convo.Conversation, string)

// TurnResult is what the shared Runner hands back to a role wrapper;
// the wrapper interprets it (extracting a Plan, an edit list, ...).
type TurnResult struct {
	Conversation convo.Conversation
	TerminalTool *convo.ToolUse // non-nil: a terminal tool ended the loop
	Exhausted    bool           // turn budget reached with no terminal tool
}

// Runner drives spec.md §4.7's shared loop skeleton: push a prompt,
// call the LLM, dispatch every tool_use in emission order, fold all
// results into one user message, and repeat until a terminal tool
// fires, the assistant calls nothing, or the turn budget is spent.
type Runner struct {
	Client     *llm.Client
	Dispatcher *tooling.Dispatcher
	Phase      llm.Phase
	Model      string
	MaxTokens  int
	MaxTurns   int
	Tools      []llm.ToolSpec
	Terminal   map[string]bool
	System     string

	// HasProgress reports whether conv already reflects enough
	// accomplished work that an assistant turn with zero tool_use
	// blocks should be treated as a (quiet) success rather than a
	// failure. Builder/Fixer set this to "at least one successful
	// edit so far"; Planner and Reflector leave it nil, since only a
	// terminal tool counts as their success.
	HasProgress func(conv convo.Conversation) bool

	// PrepareTurn runs before every LLM call: it lets the Iteration
	// Controller wire in C4 (strip/compact an oversize conversation)
	// and C5 (refresh the Working Context snippet) ahead of each
	// call, per spec.md §4.3's "each LLM Client call is preceded by
	// conversation preparation". It returns the (possibly rewritten)
	// conversation and a working-context snippet appended to System
	// for that call only; nil leaves the conversation and system
	// prompt untouched. Reflector does not run through Runner at all
	// (no tool loop, not subject to C4/C5).
	PrepareTurn func(conv convo.Conversation) (convo.Conversation, string)
}

// Run executes the loop against conv, which already carries the
// session's opening user prompt.
func (r *Runner) Run(ctx context.Context, conv convo.Conversation) (TurnResult, error) {
	for turn := 1; turn <= r.MaxTurns; turn++ {
		system := r.System
		if r.PrepareTurn != nil {
			var snippet string
			conv, snippet = r.PrepareTurn(conv)
			if snippet != "" {
				system = system + "\n\n" + snippet
			}
		}

		resp, err := r.Client.Call(ctx, llm.Request{
			Phase:     r.Phase,
			Model:     r.Model,
			System:    system,
			Messages:  conv.Messages,
			Tools:     r.Tools,
			MaxTokens: r.MaxTokens,
		})
		if err != nil {
			return TurnResult{}, fmt.Errorf("session: %s turn %d: %w", r.Phase, turn, err)
		}

		conv.Append(convo.Message{Role: convo.RoleAssistant, Content: resp.Content})
		assistantMsg := conv.Messages[len(conv.Messages)-1]
		toolUses := assistantMsg.ToolUses()

		if len(toolUses) == 0 {
			if r.HasProgress != nil && r.HasProgress(conv) {
				return TurnResult{Conversation: conv}, nil
			}
			return TurnResult{}, fmt.Errorf("session: %s did not call any tools", r.Phase)
		}

		var results []convo.Block
		var terminal *convo.ToolUse
		for _, tu := range toolUses {
			results = append(results, r.Dispatcher.Dispatch(tu.Name, tu.Input, tu.ID))
			if r.Terminal[tu.Name] {
				found := tu
				terminal = &found
			}
		}

		if turn == r.MaxTurns && terminal == nil && len(results) > 0 {
			last := results[len(results)-1]
			if last.ToolResult != nil {
				last.ToolResult.Content += "\n" + llm.HardLimitNote(turn, r.MaxTurns)
				results[len(results)-1] = last
			}
		}

		conv.Append(convo.Message{Role: convo.RoleUser, Content: results})

		if terminal != nil {
			return TurnResult{Conversation: conv, TerminalTool: terminal}, nil
		}
	}
	return TurnResult{Conversation: conv, Exhausted: true}, nil
}

func stringField(input map[string]any, key string) string {
	if v, ok := input[key].(string); ok {
		return v
	}
	return ""
}
