package controller

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/nexusforge/agentloop/internal/compaction"
	"github.com/nexusforge/agentloop/internal/convo"
	"github.com/nexusforge/agentloop/internal/ctlerr"
	"github.com/nexusforge/agentloop/internal/domain"
	"github.com/nexusforge/agentloop/internal/iterlog"
	"github.com/nexusforge/agentloop/internal/llm"
	"github.com/nexusforge/agentloop/internal/session"
	"github.com/nexusforge/agentloop/internal/tracing"
	"github.com/nexusforge/agentloop/internal/vcs"
)

const maxBranchSlugLen = 60 - len(vcs.BranchPrefix)

// branchNameForPlan derives the agent-owned branch name from a Plan's
// title: slugify, then cap the slug so the full seedgpt/<slug> name
// never exceeds 60 characters (spec.md §4.8's BUILD state).
func branchNameForPlan(title string) string {
	slug := vcs.Slugify(title)
	if len(slug) > maxBranchSlugLen {
		slug = strings.TrimRight(slug[:maxBranchSlugLen], "-")
	}
	return vcs.BranchPrefix + slug
}

// stateCleanup closes and deletes every open agent-owned PR/branch,
// leaving human PRs untouched (spec.md §4.8's CLEANUP).
func (c *Controller) stateCleanup(ctx context.Context, cy *cycle) error {
	ctx, span := tracing.StartState(ctx, cy.id, "CLEANUP")
	defer span.End()

	prs, err := c.hosting.ListAgentPRs(ctx)
	if err != nil {
		tracing.RecordError(span, err)
		return ctlerr.Fatal("cleanup", "list agent PRs", err)
	}
	for _, pr := range prs {
		if _, err := c.hosting.UpdatePR(ctx, pr.GetNumber(), "", "", "closed"); err != nil {
			iterlog.Warn("failed to close stale agent PR", map[string]any{"pr": pr.GetNumber(), "error": err.Error()})
			continue
		}
		if err := c.hosting.DeleteRef(ctx, "heads/"+pr.GetHead().GetRef()); err != nil {
			iterlog.Warn("failed to delete stale agent branch", map[string]any{"ref": pr.GetHead().GetRef(), "error": err.Error()})
		}
	}
	iterlog.Info("cleanup complete", map[string]any{"closed": len(prs)})
	return nil
}

// statePlan runs the Planner session. Not submitting a plan is not a
// Go error from RunPlanner's perspective being wrong — it IS the
// signal spec.md §4.8 routes straight to REFLECT+END, so the caller
// treats any error here as that path, not as a fatal cycle error.
func (c *Controller) statePlan(ctx context.Context, cy *cycle) (domain.Plan, convo.Conversation, error) {
	ctx, span := tracing.StartState(ctx, cy.id, "PLAN")
	defer span.End()

	vcsLog, _ := cy.vcsSess.Log(10)
	system := llm.BuildSystemPrompt(llm.PhasePlanner, llm.PromptContext{
		Base:          llm.PlannerBase,
		MemoryContext: c.mem.GetMemoryContext(),
		VCSLog:        strings.Join(vcsLog, "\n"),
	})

	result, err := session.RunPlanner(ctx, cy.client, cy.dispatcher, system,
		"Inspect the repository and propose one small, safe improvement.",
		c.cfg.Models.Planner, c.cfg.MaxTokens.Planner, c.cfg.Turns.MaxPlanner, cy.prepareTurn)
	if err != nil {
		tracing.RecordError(span, err)
		return domain.Plan{}, convo.Conversation{}, err
	}

	if _, err := c.mem.StoreNote("Planned change: " + result.Plan.Title); err != nil {
		iterlog.Warn("failed to persist plan note", map[string]any{"error": err.Error()})
	}
	return result.Plan, result.Conversation, nil
}

// stateBuild creates the plan's branch and runs the Builder session.
// Zero edits is a cycle-abort signal, returned as an error (spec.md
// §4.8's BUILD → ABANDON transition).
func (c *Controller) stateBuild(ctx context.Context, cy *cycle, branch string) error {
	ctx, span := tracing.StartState(ctx, cy.id, "BUILD")
	defer span.End()

	if err := cy.vcsSess.CheckoutLocalBranch(branch); err != nil {
		tracing.RecordError(span, err)
		return fmt.Errorf("checkout %s: %w", branch, err)
	}

	system := llm.BuildSystemPrompt(llm.PhaseBuilder, llm.PromptContext{Base: llm.BuilderBase})
	prompt := fmt.Sprintf("Plan: %s\n\n%s\n\nImplementation notes:\n%s", cy.plan.Title, cy.plan.Description, cy.plan.Implementation)

	result, err := session.RunBuilder(ctx, cy.client, cy.dispatcher, system, prompt,
		c.cfg.Models.Builder, c.cfg.MaxTokens.Builder, c.cfg.Turns.MaxBuilder, cy.prepareTurn)
	if err != nil {
		tracing.RecordError(span, err)
		return err
	}
	cy.builderConv = result.Conversation
	iterlog.Info("builder finished", map[string]any{"edits": len(result.Edits), "exhausted": result.Exhausted})
	return nil
}

// pushFixLoop implements PUSH → AWAIT_CI → {MERGE, FIX loop, ABANDON}.
func (c *Controller) pushFixLoop(ctx context.Context, cy *cycle, branch string) (Outcome, error) {
	if err := c.statePush(ctx, cy, branch, false); err != nil {
		return Outcome{State: "abandoned", Summary: "push failed: " + err.Error()}, nil
	}

	for attempt := 1; ; attempt++ {
		passed, ciOutput, err := c.stateAwaitCI(ctx, cy, branch)
		if err != nil {
			ciErr := ctlerr.CI("await_ci", "polling the hosting platform's checks API failed", err)
			return Outcome{State: "abandoned", Summary: ciErr.Error()}, nil
		}
		if passed {
			return c.stateMerge(ctx, cy, branch)
		}
		if attempt > c.cfg.Turns.MaxFixer {
			return c.stateAbandon(ctx, cy, branch, "CI failed after exhausting fixer attempts")
		}

		exhausted, err := c.stateFix(ctx, cy, ciOutput, attempt)
		if err != nil {
			return c.stateAbandon(ctx, cy, branch, "fixer could not produce a usable result: "+err.Error())
		}
		if exhausted {
			return c.stateAbandon(ctx, cy, branch, "fixer exhausted its turn budget")
		}

		if err := c.statePush(ctx, cy, branch, true); err != nil {
			return c.stateAbandon(ctx, cy, branch, "force-push after fix failed: "+err.Error())
		}
	}
}

func (c *Controller) statePush(ctx context.Context, cy *cycle, branch string, force bool) error {
	ctx, span := tracing.StartState(ctx, cy.id, "PUSH")
	defer span.End()

	if err := cy.vcsSess.AddAll(); err != nil {
		tracing.RecordError(span, err)
		return err
	}
	if _, err := cy.vcsSess.Commit(fmt.Sprintf("agentloop: %s", cy.plan.Title)); err != nil {
		tracing.RecordError(span, err)
		return err
	}
	if err := cy.vcsSess.Push(ctx, branch, force); err != nil {
		tracing.RecordError(span, err)
		return err
	}

	if !force {
		_, err := c.hosting.CreatePR(ctx, cy.plan.Title, branch, "main", cy.plan.Description)
		if err != nil {
			tracing.RecordError(span, err)
			return err
		}
	}
	return nil
}

// stateAwaitCI polls the CI check endpoint for branch's head until
// every check is completed or the overall deadline passes. No checks
// appearing within noChecksTimeout counts as passed (spec.md §4.8).
func (c *Controller) stateAwaitCI(ctx context.Context, cy *cycle, branch string) (passed bool, output string, err error) {
	ctx, span := tracing.StartState(ctx, cy.id, "AWAIT_CI")
	defer span.End()

	sha, err := cy.vcsSess.RevParseHEAD()
	if err != nil {
		return false, "", err
	}

	deadline := time.Now().Add(c.cfg.CI.Timeout)
	noChecksDeadline := time.Now().Add(c.cfg.CI.NoChecksTimeout)
	ticker := time.NewTicker(c.cfg.CI.PollInterval)
	defer ticker.Stop()

	for {
		checks, checkErr := c.hosting.ChecksForRef(ctx, sha)
		if checkErr != nil {
			return false, "", checkErr
		}
		if len(checks) == 0 {
			if time.Now().After(noChecksDeadline) {
				return true, "", nil
			}
		} else {
			allDone := true
			allPassed := true
			var failing []string
			for _, check := range checks {
				if check.GetStatus() != "completed" {
					allDone = false
					continue
				}
				if check.GetConclusion() != "success" {
					allPassed = false
					failing = append(failing, fmt.Sprintf("%s: %s", check.GetName(), check.GetConclusion()))
				}
			}
			if allDone {
				if allPassed {
					return true, "", nil
				}
				return false, c.collectFailureLogs(ctx, branch, failing), nil
			}
		}

		if time.Now().After(deadline) {
			return false, "", fmt.Errorf("CI did not complete within %s", c.cfg.CI.Timeout)
		}
		select {
		case <-ctx.Done():
			return false, "", ctx.Err()
		case <-ticker.C:
		}
	}
}

// collectFailureLogs pulls job logs for branch's latest workflow run,
// truncated to maxCheckOutputChars, to hand to the Fixer.
func (c *Controller) collectFailureLogs(ctx context.Context, branch string, failing []string) string {
	var b strings.Builder
	b.WriteString(strings.Join(failing, "\n"))

	runs, err := c.hosting.WorkflowRunsForRef(ctx, branch)
	if err != nil || len(runs) == 0 {
		return truncate(b.String(), c.cfg.Errors.MaxCheckOutputChars)
	}
	jobs, err := c.hosting.JobsForRun(ctx, runs[0].GetID())
	if err != nil {
		return truncate(b.String(), c.cfg.Errors.MaxCheckOutputChars)
	}
	for _, job := range jobs {
		if job.GetConclusion() == "success" {
			continue
		}
		logs, err := c.hosting.JobLogs(ctx, job.GetID())
		if err != nil {
			continue
		}
		b.WriteString("\n\n--- ")
		b.WriteString(job.GetName())
		b.WriteString(" ---\n")
		b.WriteString(logs)
	}
	return truncate(b.String(), c.cfg.Errors.MaxCheckOutputChars)
}

func truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	return s[:n] + "\n[... truncated ...]"
}

// stateFix runs one Fixer attempt against the accumulated conversation.
func (c *Controller) stateFix(ctx context.Context, cy *cycle, ciOutput string, attempt int) (exhausted bool, err error) {
	ctx, span := tracing.StartState(ctx, cy.id, "FIX")
	defer span.End()

	system := llm.BuildSystemPrompt(llm.PhaseFixer, llm.PromptContext{Base: llm.FixerBase})
	ciOutput = truncate(ciOutput, c.cfg.Errors.MaxLoopErrorChars)

	result, err := session.RunFixer(ctx, cy.client, cy.dispatcher, system, ciOutput,
		c.cfg.Models.Fixer, c.cfg.MaxTokens.Fixer, c.cfg.Turns.MaxFixer, attempt, cy.builderConv, cy.prepareTurn)
	if err != nil {
		tracing.RecordError(span, err)
		return false, err
	}
	cy.builderConv = result.Conversation
	return result.Exhausted, nil
}

// stateAbandon closes the PR and deletes the remote branch (spec.md
// §4.8's ABANDON). It writes no reflection itself; the cycle's
// reflection is stored afterwards by reflect.
func (c *Controller) stateAbandon(ctx context.Context, cy *cycle, branch, reason string) (Outcome, error) {
	ctx, span := tracing.StartState(ctx, cy.id, "ABANDON")
	defer span.End()

	prs, err := c.hosting.ListAgentPRs(ctx)
	if err == nil {
		for _, pr := range prs {
			if pr.GetHead().GetRef() == branch {
				_, _ = c.hosting.UpdatePR(ctx, pr.GetNumber(), "", "", "closed")
			}
		}
	}
	if err := c.hosting.DeleteRef(ctx, "heads/"+branch); err != nil {
		iterlog.Warn("failed to delete abandoned branch", map[string]any{"branch": branch, "error": err.Error()})
	}
	return Outcome{State: "abandoned", Summary: reason}, nil
}

// stateMerge squash-merges the PR and deletes the remote branch
// (spec.md §4.8's MERGE).
func (c *Controller) stateMerge(ctx context.Context, cy *cycle, branch string) (Outcome, error) {
	ctx, span := tracing.StartState(ctx, cy.id, "MERGE")
	defer span.End()

	prs, err := c.hosting.ListAgentPRs(ctx)
	if err != nil {
		tracing.RecordError(span, err)
		return Outcome{}, ctlerr.Fatal("merge", "list PRs before merge", err)
	}
	var number int
	for _, pr := range prs {
		if pr.GetHead().GetRef() == branch {
			number = pr.GetNumber()
			break
		}
	}
	if number == 0 {
		return Outcome{}, ctlerr.Fatal("merge", fmt.Sprintf("no open PR found for branch %s", branch), nil)
	}
	if _, err := c.hosting.MergePR(ctx, number, "agentloop: "+cy.plan.Title); err != nil {
		tracing.RecordError(span, err)
		return Outcome{}, ctlerr.Fatal("merge", fmt.Sprintf("merge PR #%d", number), err)
	}
	if err := c.hosting.DeleteRef(ctx, "heads/"+branch); err != nil {
		iterlog.Warn("failed to delete merged branch", map[string]any{"branch": branch, "error": err.Error()})
	}
	return Outcome{State: "merged", PRNumber: number}, nil
}

// reflect always runs before END (spec.md §4.8): it renders the cycle's
// transcript and log buffer through the Reflector and persists the
// result as a reflection memory. Reflection failures are logged, never
// escalated — a cycle's outcome is already decided by the time REFLECT
// runs.
func (c *Controller) reflect(ctx context.Context, cy *cycle, transcript convo.Conversation, outcomeText string) {
	if cy == nil {
		return
	}
	ctx, span := tracing.StartState(ctx, cy.id, "REFLECT")
	defer span.End()

	system := llm.BuildSystemPrompt(llm.PhaseReflector, llm.PromptContext{Base: reflectorBase, MemoryContext: c.mem.GetMemoryContext()})
	rendered := compaction.ProjectTranscript(transcript)

	text, err := session.RunReflector(ctx, cy.client, system, rendered, outcomeText, iterlog.Render(), c.cfg.Models.Reflector, c.cfg.MaxTokens.Reflector)
	if err != nil {
		tracing.RecordError(span, err)
		iterlog.Warn("reflector failed", map[string]any{"error": err.Error()})
		return
	}
	if _, err := c.mem.StoreReflection(text); err != nil {
		iterlog.Warn("failed to persist reflection", map[string]any{"error": err.Error()})
	}
}

const reflectorBase = `You are the Reflector for a self-modifying coding agent. Given this cycle's transcript, outcome, and log, write a 2-4 paragraph reflection: what was attempted, what happened, and one concrete lesson for future cycles.`
