package compaction

import (
	"context"
	"sort"
	"strconv"
	"strings"

	"github.com/nexusforge/agentloop/internal/convo"
	"github.com/nexusforge/agentloop/internal/iterlog"
	"github.com/nexusforge/agentloop/internal/llm"
)

// summarizerSystemPrompt is the fixed instruction set for the batch
// line-range summarization call.
const summarizerSystemPrompt = `You are shrinking an oversize tool result from a coding agent's conversation. For each candidate below, call keep if the full content is still needed, or summarize_lines with the line ranges worth preserving (e.g. "1-3,5,8-10"). Always echo the given tool_use_id in your call.`

var summarizerTools = []llm.ToolSpec{
	{
		Name:        "keep",
		Description: "Keep this tool result's content unchanged.",
		Schema: map[string]any{
			"properties": map[string]any{
				"tool_use_id": map[string]any{"type": "string"},
			},
			"required": []string{"tool_use_id"},
		},
	},
	{
		Name:        "summarize_lines",
		Description: "Keep only the given line ranges, replacing everything else with a gap marker.",
		Schema: map[string]any{
			"properties": map[string]any{
				"tool_use_id": map[string]any{"type": "string"},
				"keep_lines":  map[string]any{"type": "string"},
			},
			"required": []string{"tool_use_id", "keep_lines"},
		},
	},
}

// Compressor runs the full C4 pass: strip, select, batch-summarize, apply.
type Compressor struct {
	client *llm.Client
	cfg    Config
}

// NewCompressor builds a Compressor around client.
func NewCompressor(client *llm.Client, cfg Config) *Compressor {
	if cfg.CharThreshold == 0 {
		cfg = DefaultConfig()
	}
	return &Compressor{client: client, cfg: cfg}
}

// Compress runs the C4 pipeline on conv. If conv is under the char
// threshold it is returned unchanged; otherwise write-tool inputs are
// stripped unconditionally, then oversize tool results are summarized via
// one LLM batch call. A failed batch call leaves all candidates unchanged
// — compaction never blocks a cycle on an LLM error.
func (c *Compressor) Compress(ctx context.Context, conv convo.Conversation) convo.Conversation {
	if !ShouldCompress(conv, c.cfg) {
		return conv
	}

	conv = StripAppliedWrites(conv, c.cfg.ProtectedTurns)

	candidates := SelectCandidates(conv, c.cfg)
	if len(candidates) == 0 {
		return conv
	}

	decisions, err := c.askBatch(ctx, conv, candidates)
	if err != nil {
		iterlog.Warn("compaction: batch summarization failed, leaving candidates unchanged", map[string]any{
			"error":      err.Error(),
			"candidates": len(candidates),
		})
		return conv
	}

	return applyDecisions(conv, candidates, decisions, c.cfg.GapMarker)
}

type decision struct {
	summarize bool
	keepLines string
}

// askBatch submits one request per candidate as a single provider batch
// call and returns decisions keyed by tool_use_id. Matching is done by
// reading the tool_use_id field out of each response's own tool call, not
// by array position — a response may be absent, reordered, or malformed,
// and any candidate with no matching decision simply keeps its content.
func (c *Compressor) askBatch(ctx context.Context, conv convo.Conversation, candidates []Candidate) (map[string]decision, error) {
	items := make([]llm.BatchItem, 0, len(candidates))
	for _, cand := range candidates {
		items = append(items, llm.BatchItem{
			ID: cand.ToolUseID,
			Request: llm.Request{
				Phase:    llm.PhaseSummarizer,
				System:   summarizerSystemPrompt,
				Messages: []convo.Message{convo.PlainText(convo.RoleUser, candidatePrompt(conv, cand))},
				Tools:    summarizerTools,
			},
		})
	}

	responses, err := c.client.CallBatch(ctx, items)
	if err != nil {
		return nil, err
	}

	decisions := make(map[string]decision, len(candidates))
	for _, resp := range responses {
		for _, b := range resp.Content {
			if b.Kind != convo.KindToolUse || b.ToolUse == nil {
				continue
			}
			id, _ := b.ToolUse.Input["tool_use_id"].(string)
			if id == "" {
				continue
			}
			switch b.ToolUse.Name {
			case "keep":
				decisions[id] = decision{summarize: false}
			case "summarize_lines":
				keepLines, _ := b.ToolUse.Input["keep_lines"].(string)
				decisions[id] = decision{summarize: true, keepLines: keepLines}
			}
		}
	}
	return decisions, nil
}

func candidatePrompt(conv convo.Conversation, cand Candidate) string {
	content := conv.Messages[cand.MsgIdx].Content[cand.BlockIdx].ToolResult.Content
	var b strings.Builder
	b.WriteString("tool_use_id: ")
	b.WriteString(cand.ToolUseID)
	b.WriteString("\ntool: ")
	b.WriteString(cand.ToolName)
	b.WriteString(cand.InputHint)
	b.WriteString("\nlength: ")
	b.WriteString(strconv.Itoa(cand.CharLen))
	b.WriteString(" chars\n\n")
	b.WriteString(numberLines(content))
	return b.String()
}

func numberLines(content string) string {
	lines := strings.Split(content, "\n")
	var b strings.Builder
	for i, l := range lines {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(strconv.Itoa(i + 1))
		b.WriteByte('|')
		b.WriteString(l)
	}
	return b.String()
}

// applyDecisions rebuilds the conversation with each summarized
// candidate's tool_result content replaced, preserving block ordering and
// message/block counts exactly.
func applyDecisions(conv convo.Conversation, candidates []Candidate, decisions map[string]decision, gapMarker string) convo.Conversation {
	if gapMarker == "" {
		gapMarker = GapMarkerDefault
	}
	byPos := make(map[[2]int]Candidate, len(candidates))
	for _, cand := range candidates {
		byPos[[2]int{cand.MsgIdx, cand.BlockIdx}] = cand
	}

	messages := conv.Messages
	var next []convo.Message
	for mi, m := range messages {
		var blocks []convo.Block
		msgChanged := false
		for bi, b := range m.Content {
			cand, isCand := byPos[[2]int{mi, bi}]
			if !isCand || b.Kind != convo.KindToolResult || b.ToolResult == nil {
				if blocks != nil {
					blocks = append(blocks, b)
				}
				continue
			}
			d, ok := decisions[cand.ToolUseID]
			if !ok || !d.summarize {
				if blocks != nil {
					blocks = append(blocks, b)
				}
				continue
			}
			ranges := parseRanges(d.keepLines)
			if len(ranges) == 0 {
				if blocks != nil {
					blocks = append(blocks, b)
				}
				continue
			}
			if blocks == nil {
				blocks = append(blocks, m.Content[:bi]...)
			}
			tr := *b.ToolResult
			tr.Content = rebuildContent(b.ToolResult.Content, ranges, gapMarker)
			blocks = append(blocks, convo.Block{Kind: convo.KindToolResult, ToolResult: &tr})
			msgChanged = true
		}
		if !msgChanged {
			if next != nil {
				next = append(next, m)
			}
			continue
		}
		if next == nil {
			next = append(next, messages[:mi]...)
		}
		next = append(next, convo.Message{Role: m.Role, Content: blocks})
	}
	if next == nil {
		return conv
	}
	return convo.Conversation{Messages: next}
}

type lineRange struct{ start, end int }

// parseRanges parses a comma-separated "N" / "N-M" range string, drops
// malformed or reversed parts, sorts by start, and merges ranges where
// r2.start <= r1.end+1.
func parseRanges(s string) []lineRange {
	var ranges []lineRange
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if i := strings.IndexByte(part, '-'); i >= 0 {
			a, errA := strconv.Atoi(strings.TrimSpace(part[:i]))
			b, errB := strconv.Atoi(strings.TrimSpace(part[i+1:]))
			if errA != nil || errB != nil || a > b {
				continue
			}
			ranges = append(ranges, lineRange{a, b})
		} else {
			n, err := strconv.Atoi(part)
			if err != nil {
				continue
			}
			ranges = append(ranges, lineRange{n, n})
		}
	}
	if len(ranges) == 0 {
		return nil
	}
	sort.Slice(ranges, func(i, j int) bool { return ranges[i].start < ranges[j].start })

	merged := []lineRange{ranges[0]}
	for _, r := range ranges[1:] {
		last := &merged[len(merged)-1]
		if r.start <= last.end+1 {
			if r.end > last.end {
				last.end = r.end
			}
			continue
		}
		merged = append(merged, r)
	}
	return merged
}

// rebuildContent keeps only the lines in ranges, inserting gapMarker
// before the first kept range (if it doesn't start at line 1), between
// non-adjacent ranges, and after the last range (if it doesn't reach the
// last line).
func rebuildContent(content string, ranges []lineRange, gapMarker string) string {
	lines := strings.Split(content, "\n")
	total := len(lines)

	var b strings.Builder
	if ranges[0].start > 1 {
		b.WriteString(gapMarker)
		b.WriteByte('\n')
	}
	for i, r := range ranges {
		start := clamp(r.start, 1, total)
		end := clamp(r.end, 1, total)
		for ln := start; ln <= end; ln++ {
			b.WriteString(lines[ln-1])
			b.WriteByte('\n')
		}
		if i < len(ranges)-1 {
			b.WriteString(gapMarker)
			b.WriteByte('\n')
		}
	}
	if ranges[len(ranges)-1].end < total {
		b.WriteString(gapMarker)
	}
	return strings.TrimSuffix(b.String(), "\n")
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
