package workctx

import (
	"fmt"
	"strings"

	"github.com/nexusforge/agentloop/internal/compaction"
	"github.com/nexusforge/agentloop/internal/convo"
)

// stripOldTurns implements spec.md §4.5 step 3: for every message whose
// 1-based ordinal from the end exceeds protectedTurns (counted
// independently per role — see DESIGN.md's Open Question decision),
// assistant messages lose their thinking blocks and user messages have
// their oversize tool_result content stubbed. Idempotent via prefix
// checks, matching the compaction package's own stubbing passes.
func (e *Engine) stripOldTurns(conv convo.Conversation) convo.Conversation {
	assistantTotal := conv.TotalAssistantTurns()
	assistantCutoff := assistantTotal - e.cfg.ProtectedTurns

	userTotal := 0
	for _, m := range conv.Messages {
		if m.Role == convo.RoleUser {
			userTotal++
		}
	}
	userCutoff := userTotal - e.cfg.ProtectedTurns

	messages := conv.Messages
	var next []convo.Message
	assistantSeen, userSeen := 0, 0
	for i, m := range messages {
		var (
			rewritten convo.Message
			changed   bool
		)
		switch m.Role {
		case convo.RoleAssistant:
			assistantSeen++
			if assistantSeen <= assistantCutoff {
				rewritten, changed = stripAssistantTurn(m)
			}
		case convo.RoleUser:
			userSeen++
			if userSeen <= userCutoff {
				rewritten, changed = stripUserTurn(m, e.cfg.MinResultChars)
			}
		}
		if !changed {
			if next != nil {
				next = append(next, m)
			}
			continue
		}
		if next == nil {
			next = append(next, messages[:i]...)
		}
		next = append(next, rewritten)
	}
	if next == nil {
		return conv
	}
	return convo.Conversation{Messages: next}
}

func stripAssistantTurn(m convo.Message) (convo.Message, bool) {
	var blocks []convo.Block
	changed := false
	for _, b := range m.Content {
		switch b.Kind {
		case convo.KindThinking:
			changed = true
			continue
		case convo.KindToolUse:
			if stubbed, didChange := compaction.StubWriteBlock(b); didChange {
				blocks = append(blocks, stubbed)
				changed = true
				continue
			}
			blocks = append(blocks, b)
		default:
			blocks = append(blocks, b)
		}
	}
	if !changed {
		return m, false
	}
	if len(blocks) == 0 {
		blocks = []convo.Block{convo.TextBlock("[reasoning stripped]")}
	}
	return convo.Message{Role: m.Role, Content: blocks}, true
}

func stripUserTurn(m convo.Message, minResultChars int) (convo.Message, bool) {
	var blocks []convo.Block
	changed := false
	for bi, b := range m.Content {
		if b.Kind != convo.KindToolResult || b.ToolResult == nil {
			if blocks != nil {
				blocks = append(blocks, b)
			}
			continue
		}
		content := b.ToolResult.Content
		if len(content) < minResultChars || strings.HasPrefix(content, "[result") || strings.HasPrefix(content, "[applied") {
			if blocks != nil {
				blocks = append(blocks, b)
			}
			continue
		}
		if blocks == nil {
			blocks = append(blocks, m.Content[:bi]...)
		}
		tr := *b.ToolResult
		tr.Content = fmt.Sprintf("[result — %d lines]", strings.Count(content, "\n")+1)
		blocks = append(blocks, convo.Block{Kind: convo.KindToolResult, ToolResult: &tr})
		changed = true
	}
	if !changed {
		return m, false
	}
	return convo.Message{Role: m.Role, Content: blocks}, true
}
