package llm

import (
	"testing"
	"time"
)

func TestBuildSystemPrompt_PlannerIncludesAllSections(t *testing.T) {
	ctx := PromptContext{
		Base:           PlannerBase,
		MemoryContext:  "## Notes to self\n- remember this",
		FileTree:       "cmd/\ninternal/",
		VCSLog:         "abc123 fix retry logic",
		CoverageReport: "internal/llm: 42%",
		WorkingContext: "## Working Context (1 files, 10 lines)",
	}
	got := BuildSystemPrompt(PhasePlanner, ctx)
	for _, want := range []string{PlannerBase, ctx.MemoryContext, ctx.FileTree, ctx.VCSLog, ctx.CoverageReport, ctx.WorkingContext} {
		if !contains(got, want) {
			t.Errorf("expected prompt to contain %q", want)
		}
	}
}

func TestBuildSystemPrompt_BuilderExcludesMemoryAndVCS(t *testing.T) {
	ctx := PromptContext{
		Base:          BuilderBase,
		MemoryContext: "## Notes to self\n- should not appear",
		VCSLog:        "should not appear either",
		FileTree:      "cmd/\ninternal/",
	}
	got := BuildSystemPrompt(PhaseBuilder, ctx)
	if contains(got, "should not appear") {
		t.Error("builder prompt must not include memory or VCS log sections")
	}
	if !contains(got, ctx.FileTree) {
		t.Error("builder prompt must include the file tree")
	}
}

func TestBuildSystemPrompt_ReflectorOnlyMemory(t *testing.T) {
	ctx := PromptContext{Base: ReflectorBase, MemoryContext: "## Recent Reflections\n- done", FileTree: "should not appear"}
	got := BuildSystemPrompt(PhaseReflector, ctx)
	if contains(got, "should not appear") {
		t.Error("reflector prompt must not include the file tree")
	}
}

func TestFixerAttemptNote(t *testing.T) {
	if FixerAttemptNote(1) != "" {
		t.Error("expected no note on first attempt")
	}
	if FixerAttemptNote(2) == "" {
		t.Error("expected a note from attempt 2 onward")
	}
}

func TestNextDelay_CapsAtMax(t *testing.T) {
	d := time.Second
	for i := 0; i < 20; i++ {
		d = nextDelay(d, 1.5, 10*time.Second)
	}
	if d != 10*time.Second {
		t.Errorf("nextDelay did not cap at max, got %v", d)
	}
}

func contains(s, sub string) bool {
	return len(sub) == 0 || indexOf(s, sub) >= 0
}

func indexOf(s, sub string) int {
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return i
		}
	}
	return -1
}
