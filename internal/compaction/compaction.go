// Package compaction implements the Compression Engine (C4): shrinking
// oversize conversations by stripping applied write-tool inputs and by
// asking the LLM, in one batch call, which lines of each oversize tool
// result are worth keeping.
package compaction

import (
	"fmt"
	"strings"

	"github.com/nexusforge/agentloop/internal/convo"
)

// appliedMarkerPrefix flags a write-tool input that has already been
// stubbed, so a second pass leaves it untouched.
const appliedMarkerPrefix = "[applied"

// GapMarkerDefault is inserted where summarized lines were dropped.
const GapMarkerDefault = "[... lines omitted ...]"

// neverSummarize lists tool names whose results are never summarization
// candidates, regardless of size — their content is either small by
// construction or load-bearing for subsequent turns.
var neverSummarize = map[string]bool{
	"note_to_self":  true,
	"dismiss_note":  true,
	"recall_memory": true,
	"done":          true,
	"submit_plan":   true,
}

// Config bundles the compression engine's tunables.
type Config struct {
	CharThreshold  int    // conversation char count that triggers a pass
	ProtectedTurns int    // trailing assistant/user turns left untouched
	MinResultChars int    // tool_result length floor to become a candidate
	GapMarker      string // inserted where summarized lines were dropped
}

// DefaultConfig matches the defaults implied by spec.md's worked examples.
func DefaultConfig() Config {
	return Config{
		CharThreshold:  60_000,
		ProtectedTurns: 2,
		MinResultChars: 800,
		GapMarker:      GapMarkerDefault,
	}
}

// Candidate points at one oversize tool_result eligible for summarization.
type Candidate struct {
	MsgIdx    int
	BlockIdx  int
	ToolUseID string
	ToolName  string
	CharLen   int
	InputHint string
}

// ShouldCompress reports whether conv's character footprint exceeds the
// configured threshold.
func ShouldCompress(conv convo.Conversation, cfg Config) bool {
	return conv.CharLen() > cfg.CharThreshold
}

// StripAppliedWrites replaces the oldString/newString of edit_file and the
// content of create_file tool calls with a line-count marker, for every
// assistant message outside the last protectedTurns assistant messages.
// Idempotent: a marker already present is left alone.
func StripAppliedWrites(conv convo.Conversation, protectedTurns int) convo.Conversation {
	total := conv.TotalAssistantTurns()
	cutoff := total - protectedTurns

	messages := conv.Messages
	var next []convo.Message
	assistantSeen := 0
	for i, m := range messages {
		protected := true
		if m.Role == convo.RoleAssistant {
			assistantSeen++
			protected = assistantSeen > cutoff
		}
		if protected {
			if next != nil {
				next = append(next, m)
			}
			continue
		}

		stripped, changed := stripMessageWrites(m)
		if !changed {
			if next != nil {
				next = append(next, m)
			}
			continue
		}
		if next == nil {
			next = append(next, messages[:i]...)
		}
		next = append(next, stripped)
	}
	if next == nil {
		return conv
	}
	return convo.Conversation{Messages: next}
}

func stripMessageWrites(m convo.Message) (convo.Message, bool) {
	var blocks []convo.Block
	changed := false
	for bi, b := range m.Content {
		if b.Kind != convo.KindToolUse || b.ToolUse == nil {
			if blocks != nil {
				blocks = append(blocks, b)
			}
			continue
		}
		newBlock, didChange := stripToolUse(b)
		if !didChange {
			if blocks != nil {
				blocks = append(blocks, b)
			}
			continue
		}
		if blocks == nil {
			blocks = append(blocks, m.Content[:bi]...)
		}
		blocks = append(blocks, newBlock)
		changed = true
	}
	if !changed {
		return m, false
	}
	return convo.Message{Role: m.Role, Content: blocks}, true
}

// StubWriteBlock applies the same write-input stubbing used by
// StripAppliedWrites to a single tool_use block. Exported so the Working
// Context Engine (C5) can reuse the identical marker logic when it strips
// retained tool_use blocks in old turns (spec.md §4.5 step 3).
func StubWriteBlock(b convo.Block) (convo.Block, bool) {
	if b.Kind != convo.KindToolUse || b.ToolUse == nil {
		return b, false
	}
	return stripToolUse(b)
}

func stripToolUse(b convo.Block) (convo.Block, bool) {
	var fields []string
	switch b.ToolUse.Name {
	case "edit_file":
		fields = []string{"oldString", "newString"}
	case "create_file":
		fields = []string{"content"}
	default:
		return b, false
	}

	var newInput map[string]any
	for _, f := range fields {
		raw, ok := b.ToolUse.Input[f]
		if !ok {
			continue
		}
		s, ok := raw.(string)
		if !ok || strings.HasPrefix(s, appliedMarkerPrefix) {
			continue
		}
		if newInput == nil {
			newInput = make(map[string]any, len(b.ToolUse.Input))
			for k, v := range b.ToolUse.Input {
				newInput[k] = v
			}
		}
		newInput[f] = appliedMarker(s)
	}
	if newInput == nil {
		return b, false
	}
	tu := *b.ToolUse
	tu.Input = newInput
	return convo.Block{Kind: b.Kind, ToolUse: &tu}, true
}

func appliedMarker(s string) string {
	if s == "" {
		return "[applied — 0 lines]"
	}
	return fmt.Sprintf("[applied — %d lines]", strings.Count(s, "\n")+1)
}

// SelectCandidates finds every tool_result block outside the last
// protectedTurns user messages whose content length is at least
// MinResultChars and whose originating tool is not in NEVER_SUMMARIZE.
// Content that already carries the gap marker is skipped — it has
// already been compacted, which keeps repeated passes idempotent.
func SelectCandidates(conv convo.Conversation, cfg Config) []Candidate {
	toolByID := buildToolNameMap(conv)

	totalUser := 0
	for _, m := range conv.Messages {
		if m.Role == convo.RoleUser {
			totalUser++
		}
	}
	cutoff := totalUser - cfg.ProtectedTurns

	var out []Candidate
	userSeen := 0
	for mi, m := range conv.Messages {
		if m.Role != convo.RoleUser {
			continue
		}
		userSeen++
		if userSeen > cutoff {
			continue
		}
		for bi, b := range m.Content {
			if b.Kind != convo.KindToolResult || b.ToolResult == nil {
				continue
			}
			content := b.ToolResult.Content
			if len(content) < cfg.MinResultChars {
				continue
			}
			if strings.Contains(content, cfg.GapMarker) {
				continue
			}
			tu, ok := toolByID[b.ToolResult.ToolUseID]
			name := ""
			if ok {
				name = tu.Name
			}
			if neverSummarize[name] {
				continue
			}
			out = append(out, Candidate{
				MsgIdx:    mi,
				BlockIdx:  bi,
				ToolUseID: b.ToolResult.ToolUseID,
				ToolName:  name,
				CharLen:   len(content),
				InputHint: inputHint(tu, ok),
			})
		}
	}
	return out
}

func buildToolNameMap(conv convo.Conversation) map[string]convo.ToolUse {
	m := make(map[string]convo.ToolUse)
	for _, msg := range conv.Messages {
		for _, tu := range msg.ToolUses() {
			m[tu.ID] = tu
		}
	}
	return m
}

func inputHint(tu convo.ToolUse, ok bool) string {
	if !ok {
		return ""
	}
	switch tu.Name {
	case "read_file":
		if p, ok := tu.Input["path"].(string); ok {
			return ": " + p
		}
	case "grep_search", "file_search":
		if q, ok := tu.Input["query"].(string); ok {
			return fmt.Sprintf(": %q", truncate(q, 60))
		}
	}
	return ""
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// ProjectTranscript renders conv as a plain-text transcript for the
// Reflector session: text blocks verbatim, tool calls as "[tool: name]",
// and tool results as "[result]" or "[result ERROR]" (spec.md §4.7).
func ProjectTranscript(conv convo.Conversation) string {
	var b strings.Builder
	for _, m := range conv.Messages {
		for _, blk := range m.Content {
			switch blk.Kind {
			case convo.KindText:
				if blk.Text != "" {
					b.WriteString(blk.Text)
					b.WriteByte('\n')
				}
			case convo.KindToolUse:
				if blk.ToolUse != nil {
					fmt.Fprintf(&b, "[tool: %s]\n", blk.ToolUse.Name)
				}
			case convo.KindToolResult:
				if blk.ToolResult == nil {
					continue
				}
				if blk.ToolResult.IsError {
					b.WriteString("[result ERROR]\n")
				} else {
					b.WriteString("[result]\n")
				}
			}
		}
	}
	return b.String()
}
