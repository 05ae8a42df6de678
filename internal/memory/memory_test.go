package memory

import (
	"strings"
	"testing"
)

// fakeStore is an in-memory Store for tests, grounded on the teacher's
// pattern of swapping a real backend for a minimal test double.
type fakeStore struct {
	records []Record
}

func (s *fakeStore) Insert(r Record) error {
	s.records = append(s.records, r)
	return nil
}

func (s *fakeStore) All() ([]Record, error) { return s.records, nil }

func (s *fakeStore) Update(r Record) error {
	for i := range s.records {
		if s.records[i].ID == r.ID {
			s.records[i] = r
			return nil
		}
	}
	return nil
}

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	m, err := NewManager(&fakeStore{}, nil, DefaultConfig())
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	return m
}

func TestStoreNote_SurvivesDismissal(t *testing.T) {
	m := newTestManager(t)

	msg, err := m.StoreNote("always run the fixer before abandoning")
	if err != nil {
		t.Fatalf("StoreNote() error = %v", err)
	}
	if msg == "" {
		t.Fatal("expected non-empty confirmation")
	}

	notes := m.Recall("fixer")
	if len(notes) != 1 {
		t.Fatalf("expected 1 recalled note, got %d", len(notes))
	}
	id := notes[0].ID

	dismissMsg := m.DismissNote(id)
	if dismissMsg == "" {
		t.Fatal("expected dismiss confirmation")
	}

	// Still retrievable by id after dismissal — nothing is deleted.
	r, ok := m.RecallByID(id)
	if !ok {
		t.Fatal("expected dismissed note still retrievable by id")
	}
	if r.Active {
		t.Error("expected Active=false after dismissal")
	}

	// GetMemoryContext's notes section should no longer include it.
	ctx := m.GetMemoryContext()
	if containsID(ctx, id) {
		t.Error("dismissed note should not render as active")
	}
}

func TestDismissNote_NotFoundOrWrongCategory(t *testing.T) {
	m := newTestManager(t)

	if msg := m.DismissNote("nonexistent"); msg == "" {
		t.Error("expected human-readable message for missing id")
	}

	if _, err := m.StoreReflection("shipped a retry policy this cycle"); err != nil {
		t.Fatalf("StoreReflection() error = %v", err)
	}
	reflections := m.Recall("retry policy")
	if len(reflections) != 1 {
		t.Fatalf("expected 1 reflection, got %d", len(reflections))
	}

	msg := m.DismissNote(reflections[0].ID)
	if msg == "" {
		t.Error("expected error message dismissing a reflection")
	}
	r, _ := m.RecallByID(reflections[0].ID)
	// reflections carry Active=false by construction; dismissal must
	// not have altered the record's content.
	if r.Category != CategoryReflection || r.Content != "shipped a retry policy this cycle" {
		t.Errorf("reflection altered by dismissal attempt: %+v", r)
	}
}

func TestGetMemoryContext_FullThenSummarizedWindow(t *testing.T) {
	m := newTestManager(t)
	cfg := DefaultConfig()
	cfg.FullReflections = 2
	cfg.SummarizedReflections = 1
	m.cfg = cfg

	for i := 0; i < 4; i++ {
		if _, err := m.StoreReflection("reflection body number"); err != nil {
			t.Fatalf("StoreReflection() error = %v", err)
		}
	}

	ctx := m.GetMemoryContext()
	if ctx == "" {
		t.Fatal("expected non-empty context")
	}
	if !containsAll(ctx, "## Notes to self", "## Recent Reflections") {
		t.Error("expected both sections present")
	}
	// 4 reflections with full=2, summarized=1: two full lines, one
	// summary line, and the oldest one dropped.
	if got := strings.Count(ctx, "(summary)"); got != 1 {
		t.Errorf("summary lines = %d, want 1", got)
	}
	if got := strings.Count(ctx, "- ["); got != 3 {
		t.Errorf("reflection lines = %d, want 3", got)
	}
}

func TestRecall_CaseInsensitive(t *testing.T) {
	m := newTestManager(t)
	if _, err := m.StoreNote("Retry the FLAKY ci check"); err != nil {
		t.Fatalf("StoreNote() error = %v", err)
	}
	if got := m.Recall("flaky"); len(got) != 1 {
		t.Errorf("Recall() = %d matches, want 1", len(got))
	}
}

func containsID(s, id string) bool {
	return len(id) > 0 && indexOf(s, id) >= 0
}

func containsAll(s string, subs ...string) bool {
	for _, sub := range subs {
		if indexOf(s, sub) < 0 {
			return false
		}
	}
	return true
}

func indexOf(s, sub string) int {
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return i
		}
	}
	return -1
}
