package session

import (
	"context"
	"fmt"

	"github.com/nexusforge/agentloop/internal/convo"
	"github.com/nexusforge/agentloop/internal/domain"
	"github.com/nexusforge/agentloop/internal/llm"
	"github.com/nexusforge/agentloop/internal/tooling"
)

// plannerToolNames is spec.md §4.7's Planner tool set.
var plannerToolNames = []string{"submit_plan", "note_to_self", "dismiss_note", "recall_memory", "read_file", "grep_search", "file_search", "list_directory"}

// PlannerResult is the Planner session's output: a Plan for the
// Builder, plus the conversation the Reflector will later project.
type PlannerResult struct {
	Plan         domain.Plan
	Conversation convo.Conversation
}

// RunPlanner runs the Planner session. Not submitting a plan within
// maxTurns is a cycle-abort signal, returned as an error. prepareTurn
// may be nil.
func RunPlanner(ctx context.Context, client *llm.Client, dispatcher *tooling.Dispatcher, system, userPrompt, model string, maxTokens, maxTurns int, prepareTurn PrepareTurnFunc) (PlannerResult, error) {
	r := &Runner{
		Client:      client,
		Dispatcher:  dispatcher,
		Phase:       llm.PhasePlanner,
		Model:       model,
		MaxTokens:   maxTokens,
		MaxTurns:    maxTurns,
		Tools:       tooling.ToolSpecs(plannerToolNames...),
		Terminal:    map[string]bool{"submit_plan": true},
		System:      system,
		PrepareTurn: prepareTurn,
	}

	conv := convo.Conversation{Messages: []convo.Message{convo.PlainText(convo.RoleUser, userPrompt)}}
	result, err := r.Run(ctx, conv)
	if err != nil {
		return PlannerResult{}, err
	}
	if result.TerminalTool == nil {
		return PlannerResult{}, fmt.Errorf("session: planner did not submit a plan within %d turns", maxTurns)
	}

	in := result.TerminalTool.Input
	plan := domain.Plan{
		Title:          stringField(in, "title"),
		Description:    stringField(in, "description"),
		Implementation: stringField(in, "implementation"),
	}
	return PlannerResult{Plan: plan, Conversation: result.Conversation}, nil
}
