// Package usage implements the agent's Usage Tracker: per-call cost
// computation against a static per-model pricing table, aggregation by
// phase and by model, and a batch-vs-sync cost split, persisted as a
// UsageSummary at cycle end.
package usage

import (
	"fmt"
	"math"
	"sync"
	"time"
)

// Usage is the token accounting for one LLM call.
type Usage struct {
	InputTokens        int64
	OutputTokens       int64
	CacheWrite5mTokens int64
	CacheWrite1hTokens int64
	CacheReadTokens    int64
}

// Add adds other into u in place.
func (u *Usage) Add(other Usage) {
	u.InputTokens += other.InputTokens
	u.OutputTokens += other.OutputTokens
	u.CacheWrite5mTokens += other.CacheWrite5mTokens
	u.CacheWrite1hTokens += other.CacheWrite1hTokens
	u.CacheReadTokens += other.CacheReadTokens
}

// Total returns the sum of every token field.
func (u Usage) Total() int64 {
	return u.InputTokens + u.OutputTokens + u.CacheWrite5mTokens + u.CacheWrite1hTokens + u.CacheReadTokens
}

// Pricing holds per-million-token rates for one model. All five rates
// from spec.md §4.1 are required; a zero-value Pricing is never looked
// up directly — see ratesFor, which falls back to the most expensive
// known tier for unlisted models.
type Pricing struct {
	Input        float64
	CacheWrite5m float64
	CacheWrite1h float64
	CacheRead    float64
	Output       float64
}

// table is the static pricing table, keyed by model id. Rates are USD
// per million tokens.
var table = map[string]Pricing{
	"claude-opus-4-6": {
		Input: 15, CacheWrite5m: 18.75, CacheWrite1h: 30, CacheRead: 1.5, Output: 75,
	},
	"claude-sonnet-4-5": {
		Input: 3, CacheWrite5m: 3.75, CacheWrite1h: 6, CacheRead: 0.3, Output: 15,
	},
	"claude-haiku-4-5": {
		Input: 1, CacheWrite5m: 1.25, CacheWrite1h: 2, CacheRead: 0.1, Output: 5,
	},
}

// mostExpensive is recomputed once at init from table so cost estimates
// for an unknown model id never underreport (testable property #7).
var mostExpensive Pricing

func init() {
	for _, p := range table {
		mostExpensive.Input = math.Max(mostExpensive.Input, p.Input)
		mostExpensive.CacheWrite5m = math.Max(mostExpensive.CacheWrite5m, p.CacheWrite5m)
		mostExpensive.CacheWrite1h = math.Max(mostExpensive.CacheWrite1h, p.CacheWrite1h)
		mostExpensive.CacheRead = math.Max(mostExpensive.CacheRead, p.CacheRead)
		mostExpensive.Output = math.Max(mostExpensive.Output, p.Output)
	}
}

func ratesFor(model string) Pricing {
	if p, ok := table[model]; ok {
		return p
	}
	return mostExpensive
}

// ComputeCost implements the cost formula from spec.md §4.1: cache
// tokens are subtracted out of input before the input rate applies, so
// a call is never billed twice for the same tokens.
func ComputeCost(model string, u Usage) float64 {
	p := ratesFor(model)
	uncached := u.InputTokens - u.CacheWrite5mTokens - u.CacheWrite1hTokens - u.CacheReadTokens
	if uncached < 0 {
		uncached = 0
	}
	total := float64(uncached)*p.Input +
		float64(u.CacheWrite5mTokens)*p.CacheWrite5m +
		float64(u.CacheWrite1hTokens)*p.CacheWrite1h +
		float64(u.CacheReadTokens)*p.CacheRead +
		float64(u.OutputTokens)*p.Output
	return total / 1_000_000
}

// Entry is one recorded call, matching spec.md §3's UsageEntry.
type Entry struct {
	Phase string
	Model string
	Usage Usage
	Batch bool
	Cost  float64
}

// aggregate accumulates Usage, call count, and cost for one grouping key.
type aggregate struct {
	Usage Usage
	Calls int
	Cost  float64
}

func (a *aggregate) add(e Entry) {
	a.Usage.Add(e.Usage)
	a.Calls++
	a.Cost += e.Cost
}

// Tracker records every LLM call made during one cycle and produces a
// Summary at cycle end. It is not safe to share across cycles; the
// controller constructs a fresh Tracker per cycle.
type Tracker struct {
	mu         sync.Mutex
	entries    []Entry
	byPhase    map[string]*aggregate
	byModel    map[string]*aggregate
	syncTotal  aggregate
	batchTotal aggregate
}

// NewTracker returns an empty Tracker.
func NewTracker() *Tracker {
	return &Tracker{
		byPhase: make(map[string]*aggregate),
		byModel: make(map[string]*aggregate),
	}
}

// Record logs one call's usage and returns the Entry (with Cost filled
// in) so callers (the LLM client) don't need to recompute the cost.
func (t *Tracker) Record(phase, model string, u Usage, batch bool) Entry {
	e := Entry{Phase: phase, Model: model, Usage: u, Batch: batch, Cost: ComputeCost(model, u)}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.entries = append(t.entries, e)

	if t.byPhase[phase] == nil {
		t.byPhase[phase] = &aggregate{}
	}
	t.byPhase[phase].add(e)

	if t.byModel[model] == nil {
		t.byModel[model] = &aggregate{}
	}
	t.byModel[model].add(e)

	if batch {
		t.batchTotal.add(e)
	} else {
		t.syncTotal.add(e)
	}

	recordMetrics(e)
	return e
}

// BreakdownRow is one row of the persisted breakdown list, matching the
// `usage` collection's `breakdown` field in spec.md §6.
type BreakdownRow struct {
	Caller             string
	Model              string
	Calls              int
	InputTokens        int64
	OutputTokens       int64
	CacheWrite5mTokens int64
	CacheWrite1hTokens int64
	CacheReadTokens    int64
	Cost               float64
}

// Summary is the per-cycle rollup persisted to the `usage` collection.
type Summary struct {
	PlanTitle               string
	TotalCalls              int
	TotalInputTokens        int64
	TotalOutputTokens       int64
	TotalCacheWrite5mTokens int64
	TotalCacheWrite1hTokens int64
	TotalCacheReadTokens    int64
	TotalCost               float64
	SyncCalls               int
	SyncCost                float64
	BatchCalls              int
	BatchCost               float64
	Breakdown               []BreakdownRow
	CreatedAt               time.Time
}

// Summary aggregates the tracker's entries grouped by phase and by
// model (two separate groupings, per spec.md §4.1) into one rollup
// struct ready for persistence.
func (t *Tracker) Summary(planTitle string) Summary {
	t.mu.Lock()
	defer t.mu.Unlock()

	s := Summary{PlanTitle: planTitle, CreatedAt: time.Now()}
	for _, e := range t.entries {
		s.TotalCalls++
		s.TotalInputTokens += e.Usage.InputTokens
		s.TotalOutputTokens += e.Usage.OutputTokens
		s.TotalCacheWrite5mTokens += e.Usage.CacheWrite5mTokens
		s.TotalCacheWrite1hTokens += e.Usage.CacheWrite1hTokens
		s.TotalCacheReadTokens += e.Usage.CacheReadTokens
		s.TotalCost += e.Cost
		if e.Batch {
			s.BatchCalls++
			s.BatchCost += e.Cost
		} else {
			s.SyncCalls++
			s.SyncCost += e.Cost
		}
	}

	// One breakdown row per (phase, model) pair actually seen, in
	// first-seen order for deterministic output.
	type key struct{ phase, model string }
	rows := make(map[key]*BreakdownRow)
	var order []key
	for _, e := range t.entries {
		k := key{e.Phase, e.Model}
		row, ok := rows[k]
		if !ok {
			row = &BreakdownRow{Caller: e.Phase, Model: e.Model}
			rows[k] = row
			order = append(order, k)
		}
		row.Calls++
		row.InputTokens += e.Usage.InputTokens
		row.OutputTokens += e.Usage.OutputTokens
		row.CacheWrite5mTokens += e.Usage.CacheWrite5mTokens
		row.CacheWrite1hTokens += e.Usage.CacheWrite1hTokens
		row.CacheReadTokens += e.Usage.CacheReadTokens
		row.Cost += e.Cost
	}
	for _, k := range order {
		s.Breakdown = append(s.Breakdown, *rows[k])
	}
	return s
}

// ByPhase returns a copy of the current per-phase usage totals.
func (t *Tracker) ByPhase() map[string]Usage {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[string]Usage, len(t.byPhase))
	for k, v := range t.byPhase {
		out[k] = v.Usage
	}
	return out
}

// ByModel returns a copy of the current per-model usage totals.
func (t *Tracker) ByModel() map[string]Usage {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[string]Usage, len(t.byModel))
	for k, v := range t.byModel {
		out[k] = v.Usage
	}
	return out
}

// FormatUSD formats a dollar amount for display in PR descriptions and
// reflections.
func FormatUSD(amount float64) string {
	if amount <= 0 || math.IsNaN(amount) || math.IsInf(amount, 0) {
		return "$0.00"
	}
	if amount >= 0.01 {
		return fmt.Sprintf("$%.2f", amount)
	}
	return fmt.Sprintf("$%.4f", amount)
}

// FormatTokenCount formats a token count for display.
func FormatTokenCount(count int64) string {
	switch {
	case count <= 0:
		return "0"
	case count >= 1_000_000:
		return fmt.Sprintf("%.1fm", float64(count)/1_000_000)
	case count >= 1_000:
		return fmt.Sprintf("%.1fk", float64(count)/1_000)
	default:
		return fmt.Sprintf("%d", count)
	}
}
