package session

import (
	"context"
	"fmt"

	"github.com/nexusforge/agentloop/internal/convo"
	"github.com/nexusforge/agentloop/internal/llm"
)

// RunReflector makes the Reflector's single non-tool LLM call: given
// the cycle's transcript (rendered by compaction.ProjectTranscript),
// its outcome, and its log buffer, produce a 2-4 paragraph reflection
// stored as a reflection memory by the caller.
func RunReflector(ctx context.Context, client *llm.Client, system, transcript, outcome, logBuffer, model string, maxTokens int) (string, error) {
	prompt := fmt.Sprintf("Cycle outcome: %s\n\nTranscript:\n%s\n\nLog:\n%s", outcome, transcript, logBuffer)

	resp, err := client.Call(ctx, llm.Request{
		Phase:     llm.PhaseReflector,
		Model:     model,
		System:    system,
		Messages:  []convo.Message{convo.PlainText(convo.RoleUser, prompt)},
		MaxTokens: maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("session: reflector: %w", err)
	}

	text := (convo.Message{Role: convo.RoleAssistant, Content: resp.Content}).Text()
	if text == "" {
		return "", fmt.Errorf("session: reflector returned no text")
	}
	return text, nil
}
