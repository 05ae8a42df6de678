// Package controller implements the Iteration Controller (C8): the
// per-cycle finite state machine that drives the Planner, Builder,
// Fixer, and Reflector sessions (C7) against a fresh git checkout,
// pushes the result through CI, and merges or abandons it (spec.md
// §4.8). It is the one component that wires every other component
// together: C1 usage, C2 memory, C3 the LLM client, C4 compaction, C5
// working context, C6 the tool dispatcher, C7 sessions, and the VCS /
// hosting / persistent-store external interfaces.
package controller

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/nexusforge/agentloop/internal/compaction"
	"github.com/nexusforge/agentloop/internal/config"
	"github.com/nexusforge/agentloop/internal/convo"
	"github.com/nexusforge/agentloop/internal/ctlerr"
	"github.com/nexusforge/agentloop/internal/domain"
	"github.com/nexusforge/agentloop/internal/hosting"
	"github.com/nexusforge/agentloop/internal/iterlog"
	"github.com/nexusforge/agentloop/internal/llm"
	"github.com/nexusforge/agentloop/internal/memory"
	"github.com/nexusforge/agentloop/internal/session"
	"github.com/nexusforge/agentloop/internal/store"
	"github.com/nexusforge/agentloop/internal/tooling"
	"github.com/nexusforge/agentloop/internal/tracing"
	"github.com/nexusforge/agentloop/internal/usage"
	"github.com/nexusforge/agentloop/internal/vcs"
	"github.com/nexusforge/agentloop/internal/workctx"
)

// Controller owns the process-lifetime resources shared across cycles:
// the persistent store, the hosting client, and the memory manager
// (whose in-process cache is loaded once from the store and must
// survive across cycles within one process run, even though spec.md
// gives each cycle its own workspace and working-context state).
type Controller struct {
	cfg     config.Config
	repoURL string
	owner   string
	repo    string

	store   *store.Store
	hosting *hosting.Client
	mem     *memory.Manager
}

// New constructs a Controller. repoURL is the clone URL for the
// repository the agent modifies; owner/repo identify it on the
// hosting platform.
func New(cfg config.Config, st *store.Store, host *hosting.Client, mem *memory.Manager, repoURL, owner, repo string) *Controller {
	return &Controller{cfg: cfg, repoURL: repoURL, owner: owner, repo: repo, store: st, hosting: host, mem: mem}
}

// Outcome summarizes one cycle's terminal result, returned to the CLI
// layer for its exit-code decision (spec.md §6: every outcome here,
// including abandon, is a clean exit 0 — only a fatal crash is
// non-zero, and that path never reaches Outcome at all).
type Outcome struct {
	State    string // "merged", "abandoned", "no_plan"
	PRNumber int
	Summary  string
}

// RunCycle executes exactly one INIT→...→END pass. On any error deep in
// the pipeline, the persistent-store disconnect and usage flush still
// happen (the deferred cleanup below) before the error is returned —
// spec.md §4.8's "scoped cleanup on any uncaught exception" requirement,
// expressed in Go as "every exit path through this function runs
// cleanup", not as a panic/recover wrapper, since Go idiomatically
// propagates cycle failures as errors rather than exceptions.
func (c *Controller) RunCycle(ctx context.Context) (outcome Outcome, err error) {
	cycleID := fmt.Sprintf("cycle-%d", time.Now().UnixNano())
	ctx, rootSpan := tracing.StartState(ctx, cycleID, "INIT")
	tracker := usage.NewTracker()
	defer rootSpan.End()

	cy, initErr := c.init(ctx, cycleID, tracker)
	defer c.cleanup(ctx, cy, tracker)
	if initErr != nil {
		err = initErr
		return outcome, err
	}

	if err = c.stateCleanup(ctx, cy); err != nil {
		return outcome, err
	}

	plan, planConv, planErr := c.statePlan(ctx, cy)
	if planErr != nil {
		sessionErr := ctlerr.Session("plan", "planner produced no usable plan", planErr)
		iterlog.Warn("planner did not produce a plan; abandoning cycle", map[string]any{"error": sessionErr.Error()})
		outcome = Outcome{State: "no_plan", Summary: planErr.Error()}
		c.reflect(ctx, cy, convo.Conversation{}, "no_plan: "+planErr.Error())
		return outcome, nil
	}
	cy.plan = plan
	cy.plannerConv = planConv

	branch := branchNameForPlan(plan.Title)
	if err = c.stateBuild(ctx, cy, branch); err != nil {
		sessionErr := ctlerr.Session("build", "builder produced no edits", err)
		iterlog.Warn("builder produced no edits; abandoning cycle", map[string]any{"error": sessionErr.Error()})
		outcome = Outcome{State: "abandoned", Summary: err.Error()}
		c.reflect(ctx, cy, cy.builderConv, "abandoned: "+err.Error())
		return outcome, nil
	}

	final, mergeErr := c.pushFixLoop(ctx, cy, branch)
	outcome = final
	c.reflect(ctx, cy, cy.builderConv, outcomeSummary(final))
	return outcome, mergeErr
}

// cycle holds everything scoped to one RunCycle call: the checkout, the
// dispatcher wired to it, and the session transcripts accumulated along
// the way (read by REFLECT regardless of which branch terminated the
// cycle).
type cycle struct {
	id         string
	workspace  *tooling.DiskWorkspace
	vcsSess    *vcs.Session
	dispatcher *tooling.Dispatcher
	workctxEng *workctx.Engine
	compressor *compaction.Compressor
	client     *llm.Client
	tracker    *usage.Tracker

	plan        domain.Plan
	plannerConv convo.Conversation
	builderConv convo.Conversation
}

func (c *Controller) init(ctx context.Context, cycleID string, tracker *usage.Tracker) (*cycle, error) {
	dest, err := os.MkdirTemp(c.cfg.Env.WorkspacePath, "cycle-*")
	if err != nil {
		return nil, ctlerr.Fatal("init", "create workspace dir", err)
	}

	client := llm.NewClient(c.cfg.Env.AnthropicAPIKey, tracker, c.cfg.API)

	sess, err := vcs.Clone(ctx, c.repoURL, dest, c.cfg.Env.GithubToken)
	if err != nil {
		return nil, ctlerr.Fatal("init", "clone repository", err)
	}

	ws := tooling.NewDiskWorkspace(dest)
	dispatcher := tooling.NewDispatcher(ws, c.mem, sess, c.cfg.Tools)
	workctxEng := workctx.NewEngine(ws, c.cfg.Context)
	compressor := compaction.NewCompressor(client, c.cfg.Summarization)

	slog.Info("cycle initialized", "cycle_id", cycleID, "workspace", dest)
	return &cycle{
		id:         cycleID,
		workspace:  ws,
		vcsSess:    sess,
		dispatcher: dispatcher,
		workctxEng: workctxEng,
		compressor: compressor,
		client:     client,
		tracker:    tracker,
	}, nil
}

// prepareTurn is shared by every session Runner: C4 compacts an oversize
// conversation, then C5 refreshes tracked files from disk and returns
// the snippet attached to the system prompt (spec.md §4.3).
func (cy *cycle) prepareTurn(conv convo.Conversation) (convo.Conversation, string) {
	if cy == nil {
		return conv, ""
	}
	conv = cy.compressor.Compress(context.Background(), conv)
	conv, snippet := cy.workctxEng.Prepare(conv)
	return conv, snippet
}

// cleanup always runs, whatever path RunCycle took to its return: flush
// the cycle's usage summary to the store and disconnect. A cleanup
// failure is logged, never allowed to shadow the cycle's own error.
func (c *Controller) cleanup(ctx context.Context, cy *cycle, tracker *usage.Tracker) {
	planTitle := ""
	if cy != nil {
		planTitle = cy.plan.Title
	}
	summary := tracker.Summary(planTitle)
	if c.store != nil {
		if err := c.store.InsertUsageSummary(ctx, summary); err != nil {
			slog.Error("usage flush failed", "error", err)
		}
		if err := c.store.InsertIterationLog(ctx, iterlog.Snapshot()); err != nil {
			slog.Error("iteration log flush failed", "error", err)
		}
	}
	iterlog.Reset()

	if cy != nil {
		_ = os.RemoveAll(cy.workspace.Root)
	}

	if c.store != nil {
		if err := c.store.Disconnect(ctx); err != nil {
			slog.Error("store disconnect failed", "error", err)
		}
	}
}

func outcomeSummary(o Outcome) string {
	switch o.State {
	case "merged":
		return fmt.Sprintf("Merged PR #%d", o.PRNumber)
	case "abandoned":
		return "Closed PR — " + o.Summary
	default:
		return o.Summary
	}
}
