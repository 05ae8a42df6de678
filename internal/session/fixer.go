package session

import (
	"context"
	"fmt"

	"github.com/nexusforge/agentloop/internal/convo"
	"github.com/nexusforge/agentloop/internal/llm"
	"github.com/nexusforge/agentloop/internal/tooling"
)

// RunFixer runs a Fixer attempt against prior, the conversation
// preserved from the Builder's (or a previous Fixer attempt's) run —
// new CI failure output is appended as one more user turn rather than
// starting a fresh transcript, so the model keeps seeing what it tried
// before. attempt is 1-based; attempt >= 2 gets
// llm.FixerAttemptNote's "try something different" nudge.
func RunFixer(ctx context.Context, client *llm.Client, dispatcher *tooling.Dispatcher, system, ciOutput, model string, maxTokens, maxTurns, attempt int, prior convo.Conversation, prepareTurn PrepareTurnFunc) (BuilderResult, error) {
	prompt := fmt.Sprintf("CI failed:\n\n%s", ciOutput)
	if note := llm.FixerAttemptNote(attempt); note != "" {
		prompt = note + "\n\n" + prompt
	}
	conv := prior
	conv.Append(convo.PlainText(convo.RoleUser, prompt))

	return runBuilderLike(ctx, client, dispatcher, llm.PhaseFixer, system, model, maxTokens, maxTurns, conv, prepareTurn)
}
