package store

import (
	"testing"
	"time"

	"github.com/nexusforge/agentloop/internal/memory"
)

func TestMemoryDoc_RoundTripsRecord(t *testing.T) {
	r := memory.Record{
		ID:        "abc",
		Content:   "remember to check the retry budget",
		Summary:   "check retry budget",
		Category:  memory.CategoryNote,
		Active:    true,
		CreatedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}

	got := toDoc(r).toRecord()
	if got != r {
		t.Errorf("round trip changed the record: got %+v, want %+v", got, r)
	}
}
