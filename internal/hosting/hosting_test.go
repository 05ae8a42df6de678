package hosting

import (
	"testing"

	"github.com/google/go-github/v69/github"
)

func TestFilterAgentPRs_KeepsOnlyPrefixedHeadRefs(t *testing.T) {
	prs := []*github.PullRequest{
		{Number: github.Ptr(1), Head: &github.PullRequestBranch{Ref: github.Ptr("seedgpt/add-retry")}},
		{Number: github.Ptr(2), Head: &github.PullRequestBranch{Ref: github.Ptr("feature/manual-work")}},
		{Number: github.Ptr(3), Head: &github.PullRequestBranch{Ref: github.Ptr("seedgpt/fix-leak")}},
	}

	got := filterAgentPRs(prs)
	if len(got) != 2 {
		t.Fatalf("expected 2 eligible PRs, got %d", len(got))
	}
	if got[0].GetNumber() != 1 || got[1].GetNumber() != 3 {
		t.Errorf("got PR numbers %d, %d", got[0].GetNumber(), got[1].GetNumber())
	}
}

func TestFilterAgentPRs_NilHeadIsExcluded(t *testing.T) {
	prs := []*github.PullRequest{{Number: github.Ptr(1), Head: nil}}
	if got := filterAgentPRs(prs); len(got) != 0 {
		t.Errorf("expected a PR with nil Head to be excluded, got %+v", got)
	}
}
