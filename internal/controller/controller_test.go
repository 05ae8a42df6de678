package controller

import (
	"strings"
	"testing"

	"github.com/nexusforge/agentloop/internal/vcs"
)

func TestBranchNameForPlan_ShortTitle(t *testing.T) {
	got := branchNameForPlan("Add retry backoff to the poll loop")
	want := vcs.BranchPrefix + vcs.Slugify("Add retry backoff to the poll loop")
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestBranchNameForPlan_CapsAt60Chars(t *testing.T) {
	title := "This is a very long plan title that would otherwise produce a slug far longer than sixty characters once slugified"
	got := branchNameForPlan(title)
	if len(got) > 60 {
		t.Fatalf("branch name %q is %d chars, want <=60", got, len(got))
	}
	if !strings.HasPrefix(got, vcs.BranchPrefix) {
		t.Fatalf("branch name %q missing prefix %q", got, vcs.BranchPrefix)
	}
	if strings.HasSuffix(got, "-") {
		t.Fatalf("branch name %q should not end in a trailing dash after truncation", got)
	}
}

func TestTruncate_ShortStringUnchanged(t *testing.T) {
	if got := truncate("hello", 100); got != "hello" {
		t.Fatalf("got %q, want %q", got, "hello")
	}
}

func TestTruncate_LongStringCutWithMarker(t *testing.T) {
	got := truncate("0123456789", 4)
	if !strings.HasPrefix(got, "0123") {
		t.Fatalf("got %q, want prefix %q", got, "0123")
	}
	if !strings.Contains(got, "truncated") {
		t.Fatalf("got %q, want a truncation marker", got)
	}
}

func TestTruncate_ZeroLimitIsNoop(t *testing.T) {
	if got := truncate("anything", 0); got != "anything" {
		t.Fatalf("got %q, want unchanged string", got)
	}
}

func TestOutcomeSummary_Merged(t *testing.T) {
	got := outcomeSummary(Outcome{State: "merged", PRNumber: 42})
	if got != "Merged PR #42" {
		t.Fatalf("got %q", got)
	}
}

func TestOutcomeSummary_Abandoned(t *testing.T) {
	got := outcomeSummary(Outcome{State: "abandoned", Summary: "CI failed after exhausting fixer attempts"})
	want := "Closed PR — CI failed after exhausting fixer attempts"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestOutcomeSummary_NoPlanFallsBackToSummary(t *testing.T) {
	got := outcomeSummary(Outcome{State: "no_plan", Summary: "planner did not submit a plan within 25 turns"})
	if got != "planner did not submit a plan within 25 turns" {
		t.Fatalf("got %q", got)
	}
}
