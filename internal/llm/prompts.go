package llm

import (
	"fmt"
	"strings"
)

// PromptContext carries everything the system prompt assembler might
// need for one session call; not every field is used by every phase
// (spec.md §4.3's (a)-(d) list).
type PromptContext struct {
	Base string // the role's base instructions, e.g. "You are the Planner session..."

	WorkingContext string // (a) from C5, planner/builder/fixer only
	FileTree       string // (b) declaration index / file tree, planner/builder/fixer
	VCSLog         string // (c) recent VCS log, planner only
	CoverageReport string // (c) last-main-branch coverage, planner only
	MemoryContext  string // (d) planner/reflector only
}

// BuildSystemPrompt assembles the final system prompt string for phase
// from ctx, including only the sections spec.md §4.3 assigns to that
// phase.
func BuildSystemPrompt(phase Phase, ctx PromptContext) string {
	var b strings.Builder
	b.WriteString(ctx.Base)

	switch phase {
	case PhasePlanner:
		writeSection(&b, ctx.MemoryContext)
		writeSection(&b, ctx.FileTree)
		writeSection(&b, ctx.VCSLog)
		writeSection(&b, ctx.CoverageReport)
		writeSection(&b, ctx.WorkingContext)
	case PhaseBuilder, PhaseFixer:
		writeSection(&b, ctx.FileTree)
		writeSection(&b, ctx.WorkingContext)
	case PhaseReflector:
		writeSection(&b, ctx.MemoryContext)
	}

	return b.String()
}

func writeSection(b *strings.Builder, section string) {
	if strings.TrimSpace(section) == "" {
		return
	}
	b.WriteString("\n\n")
	b.WriteString(section)
}

// PlannerBase is the Planner session's fixed role instructions.
const PlannerBase = `You are the Planner for a self-modifying coding agent. Inspect the repository, decide on ONE small, safe improvement, and call submit_plan with a title, description, and a detailed implementation brief for the Builder. You may read files, search, and recall memory first. You must eventually call submit_plan — returning without it aborts the cycle.`

// BuilderBase is the Builder session's fixed role instructions.
const BuilderBase = `You are the Builder for a self-modifying coding agent. Implement the handed-off plan exactly using edit_file/create_file/delete_file. Call done with a summary when finished. Keep changes minimal and scoped to the plan.`

// FixerBase is the Fixer session's fixed role instructions.
const FixerBase = `You are the Fixer for a self-modifying coding agent. CI failed on the Builder's changes. Diagnose the failure from the provided CI output and make the minimal edits needed to pass. Call done when finished.`

// ReflectorBase is the Reflector session's fixed role instructions.
const ReflectorBase = `You are the Reflector for a self-modifying coding agent. Given this cycle's transcript and outcome, write a 2-4 paragraph reflection: what was attempted, what happened, and what to do differently next cycle.`

// FixerAttemptNote is placed ahead of the CI output in the Fixer's
// prompt from attempt 2 onward (spec.md §4.7).
func FixerAttemptNote(attempt int) string {
	if attempt < 2 {
		return ""
	}
	return "This is NOT your first attempt — try a fundamentally different approach."
}

// HardLimitNote is appended to the last tool_result on a session's
// final allowed turn to coax termination (spec.md §4.7).
func HardLimitNote(turn, max int) string {
	return fmt.Sprintf("(Turn %d of %d — hard limit. Call done when ready.)", turn, max)
}
