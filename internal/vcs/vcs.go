// Package vcs implements the VCS external interface (spec.md §6):
// clone, checkoutLocalBranch, add, commit, push, revparse, log, and
// diff against main, backed by go-git so the Iteration Controller
// never shells out to a git binary.
package vcs

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/storer"
	"github.com/go-git/go-git/v5/plumbing/transport/http"
)

// BranchPrefix is spec.md §6's required prefix for agent-created
// branches; only PRs whose head ref carries it are eligible for agent
// actions on the hosting side.
const BranchPrefix = "seedgpt/"

// Session wraps one cycle's local checkout.
type Session struct {
	repo *git.Repository
	wt   *git.Worktree
	auth *http.BasicAuth
}

// Clone clones url into dest using token as a GitHub-style
// x-access-token credential, matching spec.md §6's clone(url,dest).
func Clone(ctx context.Context, url, dest, token string) (*Session, error) {
	auth := &http.BasicAuth{Username: "x-access-token", Password: token}
	repo, err := git.PlainCloneContext(ctx, dest, false, &git.CloneOptions{URL: url, Auth: auth})
	if err != nil {
		return nil, fmt.Errorf("vcs: clone %s: %w", url, err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		return nil, fmt.Errorf("vcs: worktree: %w", err)
	}
	return &Session{repo: repo, wt: wt, auth: auth}, nil
}

// BranchName normalizes a Plan title into spec.md's seedgpt/<slug> form.
func BranchName(title string) string {
	return BranchPrefix + Slugify(title)
}

// Slugify lowercases s and collapses every run of non [a-z0-9]
// characters into a single hyphen, trimming leading/trailing hyphens.
func Slugify(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	var b strings.Builder
	prevDash := false
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z' || r >= '0' && r <= '9':
			b.WriteRune(r)
			prevDash = false
		default:
			if !prevDash && b.Len() > 0 {
				b.WriteByte('-')
				prevDash = true
			}
		}
	}
	return strings.TrimRight(b.String(), "-")
}

// CheckoutLocalBranch creates and switches to a new local branch.
func (s *Session) CheckoutLocalBranch(name string) error {
	ref := plumbing.NewBranchReferenceName(name)
	if err := s.wt.Checkout(&git.CheckoutOptions{Branch: ref, Create: true}); err != nil {
		return fmt.Errorf("vcs: checkout %s: %w", name, err)
	}
	return nil
}

// AddAll stages every change in the working tree (git add .).
func (s *Session) AddAll() error {
	if _, err := s.wt.Add("."); err != nil {
		return fmt.Errorf("vcs: add: %w", err)
	}
	return nil
}

// Commit records a commit with the given message, returning its hash.
func (s *Session) Commit(message string) (string, error) {
	hash, err := s.wt.Commit(message, &git.CommitOptions{
		Author: &object.Signature{Name: "agentloop", Email: "agentloop@local", When: time.Now()},
	})
	if err != nil {
		return "", fmt.Errorf("vcs: commit: %w", err)
	}
	return hash.String(), nil
}

// Push pushes branch to origin, optionally force-pushing (used when a
// Fixer attempt rewrites a branch already pushed by an earlier Builder
// attempt in the same cycle).
func (s *Session) Push(ctx context.Context, branch string, force bool) error {
	spec := fmt.Sprintf("refs/heads/%s:refs/heads/%s", branch, branch)
	if force {
		spec = "+" + spec
	}
	err := s.repo.PushContext(ctx, &git.PushOptions{
		RemoteName: "origin",
		Auth:       s.auth,
		Force:      force,
		RefSpecs:   []config.RefSpec{config.RefSpec(spec)},
	})
	if err != nil && err != git.NoErrAlreadyUpToDate {
		return fmt.Errorf("vcs: push %s: %w", branch, err)
	}
	return nil
}

// RevParseHEAD returns the current HEAD commit hash.
func (s *Session) RevParseHEAD() (string, error) {
	head, err := s.repo.Head()
	if err != nil {
		return "", fmt.Errorf("vcs: revparse HEAD: %w", err)
	}
	return head.Hash().String(), nil
}

// Log returns "<short hash> <subject line>" for the last count commits
// reachable from HEAD, newest first.
func (s *Session) Log(count int) ([]string, error) {
	head, err := s.repo.Head()
	if err != nil {
		return nil, fmt.Errorf("vcs: log: %w", err)
	}
	iter, err := s.repo.Log(&git.LogOptions{From: head.Hash()})
	if err != nil {
		return nil, fmt.Errorf("vcs: log: %w", err)
	}

	var lines []string
	err = iter.ForEach(func(c *object.Commit) error {
		if len(lines) >= count {
			return storer.ErrStop
		}
		subject := strings.SplitN(c.Message, "\n", 2)[0]
		lines = append(lines, fmt.Sprintf("%s %s", c.Hash.String()[:7], subject))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("vcs: log: %w", err)
	}
	return lines, nil
}

// Diff implements tooling.GitDiffer: a stat summary followed by the
// full unified patch of HEAD against main (spec.md §6's
// diff('--stat','-p','main')).
func (s *Session) Diff() (string, error) {
	head, err := s.repo.Head()
	if err != nil {
		return "", fmt.Errorf("vcs: diff: %w", err)
	}
	headCommit, err := s.repo.CommitObject(head.Hash())
	if err != nil {
		return "", fmt.Errorf("vcs: diff: %w", err)
	}

	mainRef, err := s.repo.Reference(plumbing.NewBranchReferenceName("main"), true)
	if err != nil {
		return "", fmt.Errorf("vcs: diff: resolve main: %w", err)
	}
	mainCommit, err := s.repo.CommitObject(mainRef.Hash())
	if err != nil {
		return "", fmt.Errorf("vcs: diff: %w", err)
	}

	patch, err := mainCommit.Patch(headCommit)
	if err != nil {
		return "", fmt.Errorf("vcs: diff: %w", err)
	}

	var b strings.Builder
	b.WriteString(patch.Stats().String())
	b.WriteString("\n")
	b.WriteString(patch.String())
	return b.String(), nil
}
