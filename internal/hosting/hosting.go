// Package hosting implements the code-hosting external interface
// (spec.md §6): PR create/merge/update/list, check-run listing,
// ref deletion, and CI run/job/log inspection, backed by go-github.
// Merge method is always squash; only PRs whose head ref carries
// vcs.BranchPrefix are eligible for agent actions.
package hosting

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/google/go-github/v69/github"

	"github.com/nexusforge/agentloop/internal/vcs"
)

// Client is C8's entry point into the hosting platform, scoped to one
// owner/repo for the lifetime of the process.
type Client struct {
	gh    *github.Client
	owner string
	repo  string
}

func NewClient(token, owner, repo string) *Client {
	return &Client{gh: github.NewClient(nil).WithAuthToken(token), owner: owner, repo: repo}
}

// CreatePR opens a PR from head into base. head must carry
// vcs.BranchPrefix — PRs without it are not agent-managed and this
// package never touches them.
func (c *Client) CreatePR(ctx context.Context, title, head, base, body string) (*github.PullRequest, error) {
	if !strings.HasPrefix(head, vcs.BranchPrefix) {
		return nil, fmt.Errorf("hosting: head ref %q missing required prefix %q", head, vcs.BranchPrefix)
	}
	pr, _, err := c.gh.PullRequests.Create(ctx, c.owner, c.repo, &github.NewPullRequest{
		Title: github.Ptr(title),
		Head:  github.Ptr(head),
		Base:  github.Ptr(base),
		Body:  github.Ptr(body),
	})
	if err != nil {
		return nil, fmt.Errorf("hosting: create PR: %w", err)
	}
	return pr, nil
}

// MergePR squashes number into base, the only merge method spec.md §6
// allows the agent to use.
func (c *Client) MergePR(ctx context.Context, number int, commitMessage string) (*github.PullRequestMergeResult, error) {
	result, _, err := c.gh.PullRequests.Merge(ctx, c.owner, c.repo, number, commitMessage, &github.PullRequestOptions{
		MergeMethod: "squash",
	})
	if err != nil {
		return nil, fmt.Errorf("hosting: merge PR #%d: %w", number, err)
	}
	return result, nil
}

// UpdatePR edits title/body/state on an existing PR.
func (c *Client) UpdatePR(ctx context.Context, number int, title, body, state string) (*github.PullRequest, error) {
	update := &github.PullRequest{}
	if title != "" {
		update.Title = github.Ptr(title)
	}
	if body != "" {
		update.Body = github.Ptr(body)
	}
	if state != "" {
		update.State = github.Ptr(state)
	}
	pr, _, err := c.gh.PullRequests.Edit(ctx, c.owner, c.repo, number, update)
	if err != nil {
		return nil, fmt.Errorf("hosting: update PR #%d: %w", number, err)
	}
	return pr, nil
}

// ListAgentPRs lists open PRs whose head ref carries vcs.BranchPrefix
// — the only PRs eligible for agent actions.
func (c *Client) ListAgentPRs(ctx context.Context) ([]*github.PullRequest, error) {
	prs, _, err := c.gh.PullRequests.List(ctx, c.owner, c.repo, &github.PullRequestListOptions{State: "open"})
	if err != nil {
		return nil, fmt.Errorf("hosting: list PRs: %w", err)
	}
	return filterAgentPRs(prs), nil
}

// filterAgentPRs keeps only PRs whose head ref carries vcs.BranchPrefix,
// pulled out of ListAgentPRs so the eligibility rule is unit-testable
// without a live API call.
func filterAgentPRs(prs []*github.PullRequest) []*github.PullRequest {
	var eligible []*github.PullRequest
	for _, pr := range prs {
		if pr.Head != nil && strings.HasPrefix(pr.Head.GetRef(), vcs.BranchPrefix) {
			eligible = append(eligible, pr)
		}
	}
	return eligible
}

// ChecksForRef lists the check runs reported against sha.
func (c *Client) ChecksForRef(ctx context.Context, sha string) ([]*github.CheckRun, error) {
	result, _, err := c.gh.Checks.ListCheckRunsForRef(ctx, c.owner, c.repo, sha, nil)
	if err != nil {
		return nil, fmt.Errorf("hosting: checks for %s: %w", sha, err)
	}
	return result.CheckRuns, nil
}

// DeleteRef deletes a ref (used to clean up an abandoned agent branch).
func (c *Client) DeleteRef(ctx context.Context, ref string) error {
	if _, err := c.gh.Git.DeleteRef(ctx, c.owner, c.repo, ref); err != nil {
		return fmt.Errorf("hosting: delete ref %s: %w", ref, err)
	}
	return nil
}

// WorkflowRunsForRef lists the most recent Actions runs triggered
// against branch.
func (c *Client) WorkflowRunsForRef(ctx context.Context, branch string) ([]*github.WorkflowRun, error) {
	result, _, err := c.gh.Actions.ListRepositoryWorkflowRuns(ctx, c.owner, c.repo, &github.ListWorkflowRunsOptions{Branch: branch})
	if err != nil {
		return nil, fmt.Errorf("hosting: workflow runs for %s: %w", branch, err)
	}
	return result.WorkflowRuns, nil
}

// JobsForRun lists the jobs belonging to a workflow run.
func (c *Client) JobsForRun(ctx context.Context, runID int64) ([]*github.WorkflowJob, error) {
	result, _, err := c.gh.Actions.ListWorkflowJobs(ctx, c.owner, c.repo, runID, nil)
	if err != nil {
		return nil, fmt.Errorf("hosting: jobs for run %d: %w", runID, err)
	}
	return result.Jobs, nil
}

// JobLogs downloads a failed job's raw log output, for the CI-failure
// user turn handed to the Fixer session.
func (c *Client) JobLogs(ctx context.Context, jobID int64) (string, error) {
	url, _, err := c.gh.Actions.GetWorkflowJobLogs(ctx, c.owner, c.repo, jobID, 3)
	if err != nil {
		return "", fmt.Errorf("hosting: job %d log URL: %w", jobID, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url.String(), nil)
	if err != nil {
		return "", fmt.Errorf("hosting: job %d log request: %w", jobID, err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("hosting: job %d log fetch: %w", jobID, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("hosting: job %d log read: %w", jobID, err)
	}
	return string(body), nil
}
