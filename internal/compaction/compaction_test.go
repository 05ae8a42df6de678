package compaction

import (
	"strings"
	"testing"

	"github.com/nexusforge/agentloop/internal/convo"
)

func msgWithToolUse(id, name string, input map[string]any) convo.Message {
	return convo.Message{Role: convo.RoleAssistant, Content: []convo.Block{convo.ToolUseBlock(id, name, input)}}
}

func msgWithToolResult(toolUseID, content string) convo.Message {
	return convo.Message{Role: convo.RoleUser, Content: []convo.Block{convo.ToolResultBlock(toolUseID, content, false)}}
}

func TestStripAppliedWrites_ReplacesOutsideProtectedTail(t *testing.T) {
	conv := convo.Conversation{Messages: []convo.Message{
		msgWithToolUse("t1", "edit_file", map[string]any{"oldString": "a\nb\nc", "newString": "x\ny"}),
		msgWithToolResult("t1", "ok"),
		msgWithToolUse("t2", "edit_file", map[string]any{"oldString": "recent", "newString": "recent2"}),
		msgWithToolResult("t2", "ok"),
	}}

	got := StripAppliedWrites(conv, 1)

	first := got.Messages[0].Content[0].ToolUse.Input
	if first["oldString"] != "[applied — 3 lines]" {
		t.Errorf("expected stripped oldString, got %v", first["oldString"])
	}

	last := got.Messages[2].Content[0].ToolUse.Input
	if last["oldString"] != "recent" {
		t.Errorf("protected tail should be untouched, got %v", last["oldString"])
	}
}

func TestStripAppliedWrites_Idempotent(t *testing.T) {
	conv := convo.Conversation{Messages: []convo.Message{
		msgWithToolUse("t1", "create_file", map[string]any{"content": "line1\nline2"}),
		msgWithToolResult("t1", "ok"),
		msgWithToolUse("t2", "edit_file", map[string]any{"oldString": "x", "newString": "y"}),
		msgWithToolResult("t2", "ok"),
	}}

	once := StripAppliedWrites(conv, 0)
	twice := StripAppliedWrites(once, 0)

	if once.Messages[0].Content[0].ToolUse.Input["content"] != twice.Messages[0].Content[0].ToolUse.Input["content"] {
		t.Error("second strip pass must not change an already-stripped input")
	}
}

func TestSelectCandidates_ExcludesNeverSummarizeAndSmallResults(t *testing.T) {
	big := strings.Repeat("x", 1000)
	conv := convo.Conversation{Messages: []convo.Message{
		msgWithToolUse("t1", "read_file", map[string]any{"path": "main.go"}),
		msgWithToolResult("t1", big),
		msgWithToolUse("t2", "recall_memory", map[string]any{"query": "q"}),
		msgWithToolResult("t2", big),
		msgWithToolUse("t3", "grep_search", map[string]any{"query": "q"}),
		msgWithToolResult("t3", "short"),
	}}

	cfg := DefaultConfig()
	cfg.ProtectedTurns = 0
	got := SelectCandidates(conv, cfg)

	if len(got) != 1 || got[0].ToolUseID != "t1" {
		t.Errorf("expected exactly candidate t1, got %+v", got)
	}
}

func TestSelectCandidates_RespectsProtectedTail(t *testing.T) {
	big := strings.Repeat("x", 1000)
	conv := convo.Conversation{Messages: []convo.Message{
		msgWithToolUse("t1", "read_file", map[string]any{"path": "a.go"}),
		msgWithToolResult("t1", big),
		msgWithToolUse("t2", "read_file", map[string]any{"path": "b.go"}),
		msgWithToolResult("t2", big),
	}}

	cfg := DefaultConfig()
	cfg.ProtectedTurns = 1
	got := SelectCandidates(conv, cfg)

	if len(got) != 1 || got[0].ToolUseID != "t1" {
		t.Errorf("expected only the non-protected candidate t1, got %+v", got)
	}
}

func TestParseRanges_MergesAdjacentAndSortsOutOfOrder(t *testing.T) {
	got := parseRanges("8-10,1-3,5,4")
	want := []lineRange{{1, 5}, {8, 10}}
	if len(got) != len(want) {
		t.Fatalf("expected %d merged ranges, got %d: %+v", len(want), len(got), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("range %d: got %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestParseRanges_DropsMalformedParts(t *testing.T) {
	got := parseRanges("1-3,oops,9-5,7")
	want := []lineRange{{1, 3}, {7, 7}}
	if len(got) != len(want) {
		t.Fatalf("expected %+v, got %+v", want, got)
	}
}

func TestRebuildContent_InsertsGapMarkersAroundKeptRanges(t *testing.T) {
	content := "l1\nl2\nl3\nl4\nl5\nl6\nl7\nl8\nl9\nl10"
	got := rebuildContent(content, []lineRange{{2, 2}, {5, 6}}, "GAP")

	want := "GAP\nl2\nGAP\nl5\nl6\nGAP"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestRebuildContent_NoMarkerWhenRangeCoversWholeFile(t *testing.T) {
	content := "l1\nl2\nl3"
	got := rebuildContent(content, []lineRange{{1, 3}}, "GAP")
	if got != "l1\nl2\nl3" {
		t.Errorf("expected unmodified content, got %q", got)
	}
}

func TestApplyDecisions_PreservesMessageAndBlockCounts(t *testing.T) {
	content := strings.Join([]string{"l1", "l2", "l3", "l4", "l5"}, "\n")
	conv := convo.Conversation{Messages: []convo.Message{
		msgWithToolUse("t1", "read_file", map[string]any{"path": "a.go"}),
		msgWithToolResult("t1", content),
	}}
	candidates := []Candidate{{MsgIdx: 1, BlockIdx: 0, ToolUseID: "t1", ToolName: "read_file", CharLen: len(content)}}
	decisions := map[string]decision{"t1": {summarize: true, keepLines: "1-2"}}

	got := applyDecisions(conv, candidates, decisions, GapMarkerDefault)

	if len(got.Messages) != len(conv.Messages) {
		t.Fatalf("message count changed: got %d, want %d", len(got.Messages), len(conv.Messages))
	}
	if len(got.Messages[1].Content) != len(conv.Messages[1].Content) {
		t.Fatalf("block count changed")
	}
	newContent := got.Messages[1].Content[0].ToolResult.Content
	if !strings.Contains(newContent, "l1") || !strings.Contains(newContent, "l2") || strings.Contains(newContent, "l4") {
		t.Errorf("unexpected rebuilt content: %q", newContent)
	}
}

func TestApplyDecisions_KeepLeavesContentUnchanged(t *testing.T) {
	conv := convo.Conversation{Messages: []convo.Message{
		msgWithToolUse("t1", "read_file", map[string]any{"path": "a.go"}),
		msgWithToolResult("t1", "original content"),
	}}
	candidates := []Candidate{{MsgIdx: 1, BlockIdx: 0, ToolUseID: "t1"}}
	decisions := map[string]decision{"t1": {summarize: false}}

	got := applyDecisions(conv, candidates, decisions, GapMarkerDefault)
	if got.Messages[1].Content[0].ToolResult.Content != "original content" {
		t.Error("keep decision must leave content untouched")
	}
}

func TestApplyDecisions_MissingDecisionLeavesContentUnchanged(t *testing.T) {
	conv := convo.Conversation{Messages: []convo.Message{
		msgWithToolUse("t1", "read_file", map[string]any{"path": "a.go"}),
		msgWithToolResult("t1", "original content"),
	}}
	candidates := []Candidate{{MsgIdx: 1, BlockIdx: 0, ToolUseID: "t1"}}

	got := applyDecisions(conv, candidates, map[string]decision{}, GapMarkerDefault)
	if got.Messages[1].Content[0].ToolResult.Content != "original content" {
		t.Error("a missing response must leave content untouched")
	}
}

func TestProjectTranscript_RendersToolCallsAndResults(t *testing.T) {
	conv := convo.Conversation{Messages: []convo.Message{
		convo.PlainText(convo.RoleUser, "do the thing"),
		msgWithToolUse("t1", "read_file", map[string]any{"path": "a.go"}),
		msgWithToolResult("t1", "contents"),
	}}
	got := ProjectTranscript(conv)

	for _, want := range []string{"do the thing", "[tool: read_file]", "[result]"} {
		if !strings.Contains(got, want) {
			t.Errorf("expected transcript to contain %q, got %q", want, got)
		}
	}
}

func TestShouldCompress_RespectsThreshold(t *testing.T) {
	conv := convo.Conversation{Messages: []convo.Message{convo.PlainText(convo.RoleUser, strings.Repeat("a", 100))}}
	if ShouldCompress(conv, Config{CharThreshold: 1000}) {
		t.Error("should not trigger below threshold")
	}
	if !ShouldCompress(conv, Config{CharThreshold: 50}) {
		t.Error("should trigger above threshold")
	}
}
