package usage

import "testing"

func TestComputeCost_KnownModel(t *testing.T) {
	u := Usage{InputTokens: 1000, OutputTokens: 500, CacheReadTokens: 100}
	got := ComputeCost("claude-sonnet-4-5", u)
	// uncached = 1000 - 100 = 900
	// (900*3 + 500*15 + 100*0.3) / 1e6 = (2700 + 7500 + 30) / 1e6
	want := 0.01023
	if diff := got - want; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("ComputeCost() = %v, want %v", got, want)
	}
}

func TestComputeCost_UnknownModelNeverUnderreports(t *testing.T) {
	u := Usage{InputTokens: 10_000, OutputTokens: 5_000, CacheWrite5mTokens: 1_000, CacheWrite1hTokens: 500, CacheReadTokens: 200}
	unknown := ComputeCost("some-future-model", u)
	for model := range table {
		known := ComputeCost(model, u)
		if unknown < known {
			t.Errorf("ComputeCost(unknown) = %v < ComputeCost(%s) = %v, want >= every known model", unknown, model, known)
		}
	}
}

func TestComputeCost_NegativeUncachedClampedToZero(t *testing.T) {
	u := Usage{InputTokens: 10, CacheReadTokens: 20}
	got := ComputeCost("claude-haiku-4-5", u)
	if got < 0 {
		t.Errorf("ComputeCost() = %v, want >= 0", got)
	}
}

func TestTracker_RecordAggregatesByPhaseAndModel(t *testing.T) {
	tr := NewTracker()
	tr.Record("planner", "claude-sonnet-4-5", Usage{InputTokens: 100, OutputTokens: 50}, false)
	tr.Record("planner", "claude-sonnet-4-5", Usage{InputTokens: 200, OutputTokens: 75}, false)
	tr.Record("builder", "claude-opus-4-6", Usage{InputTokens: 300, OutputTokens: 25}, true)

	byPhase := tr.ByPhase()
	if byPhase["planner"].InputTokens != 300 {
		t.Errorf("planner input tokens = %d, want 300", byPhase["planner"].InputTokens)
	}
	if byPhase["builder"].InputTokens != 300 {
		t.Errorf("builder input tokens = %d, want 300", byPhase["builder"].InputTokens)
	}

	byModel := tr.ByModel()
	if byModel["claude-sonnet-4-5"].OutputTokens != 125 {
		t.Errorf("sonnet output tokens = %d, want 125", byModel["claude-sonnet-4-5"].OutputTokens)
	}
}

func TestTracker_SummarySyncBatchSplit(t *testing.T) {
	tr := NewTracker()
	tr.Record("planner", "claude-sonnet-4-5", Usage{InputTokens: 100}, false)
	tr.Record("builder", "claude-opus-4-6", Usage{InputTokens: 100}, true)
	tr.Record("builder", "claude-opus-4-6", Usage{InputTokens: 100}, true)

	s := tr.Summary("add retries to fetch")
	if s.TotalCalls != 3 {
		t.Errorf("TotalCalls = %d, want 3", s.TotalCalls)
	}
	if s.SyncCalls != 1 || s.BatchCalls != 2 {
		t.Errorf("SyncCalls=%d BatchCalls=%d, want 1/2", s.SyncCalls, s.BatchCalls)
	}
	if len(s.Breakdown) != 2 {
		t.Errorf("len(Breakdown) = %d, want 2", len(s.Breakdown))
	}
}

func TestFormatTokenCount(t *testing.T) {
	tests := []struct {
		count int64
		want  string
	}{
		{0, "0"},
		{-10, "0"},
		{500, "500"},
		{1500, "1.5k"},
		{1_500_000, "1.5m"},
	}
	for _, tt := range tests {
		if got := FormatTokenCount(tt.count); got != tt.want {
			t.Errorf("FormatTokenCount(%d) = %q, want %q", tt.count, got, tt.want)
		}
	}
}

func TestFormatUSD(t *testing.T) {
	tests := []struct {
		amount float64
		want   string
	}{
		{0, "$0.00"},
		{0.0099, "$0.0099"},
		{0.0123, "$0.01"},
		{1.5, "$1.50"},
	}
	for _, tt := range tests {
		if got := FormatUSD(tt.amount); got != tt.want {
			t.Errorf("FormatUSD(%v) = %q, want %q", tt.amount, got, tt.want)
		}
	}
}
