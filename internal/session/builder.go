package session

import (
	"context"
	"fmt"

	"github.com/nexusforge/agentloop/internal/convo"
	"github.com/nexusforge/agentloop/internal/domain"
	"github.com/nexusforge/agentloop/internal/llm"
	"github.com/nexusforge/agentloop/internal/tooling"
)

// builderToolNames is spec.md §4.7's Builder/Fixer tool set.
var builderToolNames = []string{"edit_file", "create_file", "delete_file", "read_file", "grep_search", "file_search", "list_directory", "git_diff", "done"}

// BuilderResult is the Builder (or Fixer) session's output.
type BuilderResult struct {
	Edits        []domain.EditOperation
	Exhausted    bool // turn budget spent with >=1 edit; observable by the Iteration Controller
	Conversation convo.Conversation
}

// RunBuilder runs the Builder session against a fresh conversation
// seeded with userPrompt (the Planner's handed-off Plan). prepareTurn
// may be nil.
func RunBuilder(ctx context.Context, client *llm.Client, dispatcher *tooling.Dispatcher, system, userPrompt, model string, maxTokens, maxTurns int, prepareTurn PrepareTurnFunc) (BuilderResult, error) {
	conv := convo.Conversation{Messages: []convo.Message{convo.PlainText(convo.RoleUser, userPrompt)}}
	return runBuilderLike(ctx, client, dispatcher, llm.PhaseBuilder, system, model, maxTokens, maxTurns, conv, prepareTurn)
}

func runBuilderLike(ctx context.Context, client *llm.Client, dispatcher *tooling.Dispatcher, phase llm.Phase, system, model string, maxTokens, maxTurns int, conv convo.Conversation, prepareTurn PrepareTurnFunc) (BuilderResult, error) {
	r := &Runner{
		Client:      client,
		Dispatcher:  dispatcher,
		Phase:       phase,
		Model:       model,
		MaxTokens:   maxTokens,
		MaxTurns:    maxTurns,
		Tools:       tooling.ToolSpecs(builderToolNames...),
		Terminal:    map[string]bool{"done": true},
		System:      system,
		PrepareTurn: prepareTurn,
	}
	r.HasProgress = func(c convo.Conversation) bool { return len(extractEdits(c)) > 0 }

	result, err := r.Run(ctx, conv)
	if err != nil {
		return BuilderResult{}, err
	}

	edits := extractEdits(result.Conversation)
	if result.Exhausted {
		if len(edits) == 0 {
			return BuilderResult{}, fmt.Errorf("session: builder exhausted %d turns with no successful edits", maxTurns)
		}
		return BuilderResult{Edits: edits, Exhausted: true, Conversation: result.Conversation}, nil
	}
	return BuilderResult{Edits: edits, Conversation: result.Conversation}, nil
}
