package workctx

import (
	"fmt"
	"strings"
	"testing"

	"github.com/nexusforge/agentloop/internal/convo"
)

type fakeFS struct {
	files map[string]string
}

func (f fakeFS) ReadFile(path string) (string, error) {
	content, ok := f.files[path]
	if !ok {
		return "", fmt.Errorf("workctx test: no such file %s", path)
	}
	return content, nil
}

func fileLines(n int) string {
	lines := make([]string, n)
	for i := range lines {
		lines[i] = fmt.Sprintf("line%d", i+1)
	}
	return strings.Join(lines, "\n")
}

func readCall(id, path string, start, end int) convo.Message {
	input := map[string]any{"path": path}
	if start > 0 {
		input["startLine"] = float64(start)
	}
	if end > 0 {
		input["endLine"] = float64(end)
	}
	return convo.Message{Role: convo.RoleAssistant, Content: []convo.Block{convo.ToolUseBlock(id, "read_file", input)}}
}

func resultMsg(id, content string) convo.Message {
	return convo.Message{Role: convo.RoleUser, Content: []convo.Block{convo.ToolResultBlock(id, content, false)}}
}

func TestAddRegion_MergesSameTurnAdjacentRegions(t *testing.T) {
	regions := addRegion(nil, 1, 10, 1)
	regions = addRegion(regions, 11, 20, 1)
	if len(regions) != 1 || regions[0] != (TrackedRegion{Start: 1, End: 20, LastUseTurn: 1}) {
		t.Fatalf("expected one merged region, got %+v", regions)
	}
}

func TestAddRegion_PreservesNonOverlappingRemnants(t *testing.T) {
	regions := addRegion(nil, 1, 20, 1)
	regions = addRegion(regions, 5, 10, 2)

	want := []TrackedRegion{{1, 4, 1}, {5, 10, 2}, {11, 20, 1}}
	if len(regions) != len(want) {
		t.Fatalf("got %+v, want %+v", regions, want)
	}
	for i := range want {
		if regions[i] != want[i] {
			t.Errorf("region %d: got %+v, want %+v", i, regions[i], want[i])
		}
	}
}

func TestEngine_PrepareBuildsSnippetFromReadFile(t *testing.T) {
	fs := fakeFS{files: map[string]string{"main.go": fileLines(50)}}
	e := NewEngine(fs, Config{ContextPadding: 0, DefaultReadWindow: 10, ProtectedTurns: 0, MinResultChars: 800, MaxActiveLines: 1000})

	conv := convo.Conversation{Messages: []convo.Message{
		readCall("r1", "main.go", 10, 15),
		resultMsg("r1", "some content"),
	}}

	_, snippet := e.Prepare(conv)
	if !strings.Contains(snippet, "main.go") {
		t.Errorf("expected snippet to mention main.go, got %q", snippet)
	}
	if !strings.Contains(snippet, "10 | line10") {
		t.Errorf("expected snippet to include numbered line 10, got %q", snippet)
	}
	if !strings.Contains(snippet, "[... 9 lines above ...]") {
		t.Errorf("expected an above-omission marker, got %q", snippet)
	}
	if !strings.Contains(snippet, "[... 35 lines below ...]") {
		t.Errorf("expected a below-omission marker, got %q", snippet)
	}
}

func TestEngine_Prepare_NoTrackedFilesReturnsEmptySnippet(t *testing.T) {
	e := NewEngine(fakeFS{files: map[string]string{}}, DefaultConfig())
	conv := convo.Conversation{Messages: []convo.Message{convo.PlainText(convo.RoleUser, "hello")}}
	_, snippet := e.Prepare(conv)
	if snippet != "" {
		t.Errorf("expected empty snippet with no tracked files, got %q", snippet)
	}
}

func TestEngine_DeleteFileDropsItFromEviction(t *testing.T) {
	fs := fakeFS{files: map[string]string{"a.go": fileLines(5)}}
	e := NewEngine(fs, Config{ContextPadding: 0, DefaultReadWindow: 10, ProtectedTurns: 0, MinResultChars: 800, MaxActiveLines: 1000})

	conv := convo.Conversation{Messages: []convo.Message{
		readCall("r1", "a.go", 1, 5),
		resultMsg("r1", "content"),
		{Role: convo.RoleAssistant, Content: []convo.Block{convo.ToolUseBlock("d1", "delete_file", map[string]any{"path": "a.go"})}},
		resultMsg("d1", "deleted"),
	}}

	_, snippet := e.Prepare(conv)
	if strings.Contains(snippet, "a.go") {
		t.Errorf("deleted file must not appear in the snippet, got %q", snippet)
	}
}

func TestEngine_RefreshFailureMarksFileDeleted(t *testing.T) {
	e := NewEngine(fakeFS{files: map[string]string{}}, Config{ContextPadding: 0, DefaultReadWindow: 10, ProtectedTurns: 0, MinResultChars: 800, MaxActiveLines: 1000})
	conv := convo.Conversation{Messages: []convo.Message{
		readCall("r1", "missing.go", 1, 5),
		resultMsg("r1", "content"),
	}}
	e.Prepare(conv)
	tf := e.TrackedFiles()["missing.go"]
	if tf == nil || !tf.Deleted {
		t.Error("expected a file whose read fails to be marked deleted")
	}
}

func TestEvict_DropsLowestEffectiveTurnRegionsOverBudget(t *testing.T) {
	fs := fakeFS{files: map[string]string{"a.go": fileLines(20), "b.go": fileLines(20)}}
	e := NewEngine(fs, Config{ContextPadding: 0, DefaultReadWindow: 10, ProtectedTurns: 0, MinResultChars: 800, MaxActiveLines: 10})

	conv := convo.Conversation{Messages: []convo.Message{
		readCall("r1", "a.go", 1, 10),
		resultMsg("r1", "content"),
		readCall("r2", "b.go", 1, 10),
		resultMsg("r2", "content"),
	}}

	e.Prepare(conv)
	a := e.TrackedFiles()["a.go"]
	b := e.TrackedFiles()["b.go"]
	if len(a.Regions) != 0 {
		t.Error("expected the earlier-turn region (a.go) to be evicted under a tight budget")
	}
	if len(b.Regions) == 0 {
		t.Error("expected the later-turn region (b.go) to survive")
	}
}

func TestStripOldTurns_RemovesThinkingOutsideProtectedTail(t *testing.T) {
	e := NewEngine(fakeFS{}, Config{ProtectedTurns: 0, MinResultChars: 800, DefaultReadWindow: 10, MaxActiveLines: 1000})
	conv := convo.Conversation{Messages: []convo.Message{
		{Role: convo.RoleAssistant, Content: []convo.Block{convo.ThinkingBlock("secret reasoning"), convo.TextBlock("done")}},
	}}
	got := e.stripOldTurns(conv)
	for _, b := range got.Messages[0].Content {
		if b.Kind == convo.KindThinking {
			t.Error("thinking block should have been stripped")
		}
	}
}

func TestStripOldTurns_ReplacesThinkingOnlyMessageWithPlaceholder(t *testing.T) {
	e := NewEngine(fakeFS{}, Config{ProtectedTurns: 0, MinResultChars: 800, DefaultReadWindow: 10, MaxActiveLines: 1000})
	conv := convo.Conversation{Messages: []convo.Message{
		{Role: convo.RoleAssistant, Content: []convo.Block{convo.ThinkingBlock("only reasoning")}},
	}}
	got := e.stripOldTurns(conv)
	if got.Messages[0].Text() != "[reasoning stripped]" {
		t.Errorf("expected placeholder text, got %q", got.Messages[0].Text())
	}
}
