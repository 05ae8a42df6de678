// Package memory implements the agent's long-term Memory Store (C2):
// dismissible notes and immutable reflections, recalled by regex or by
// id, and a token-budgeted context block handed to the Planner and
// Reflector sessions.
package memory

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Category distinguishes the two kinds of MemoryRecord.
type Category string

const (
	CategoryNote       Category = "note"
	CategoryReflection Category = "reflection"
)

// Record is spec.md §3's MemoryRecord. Nothing is ever physically
// deleted: notes are dismissed (Active=false) but remain retrievable by
// id or recall; reflections are immutable from creation.
type Record struct {
	ID        string
	Content   string
	Summary   string
	Category  Category
	Active    bool
	CreatedAt time.Time
}

// Summarizer produces a short (<=25 word) summary of content, backed by
// a secondary LLM call from C3. Kept as an interface so the memory
// package doesn't import the LLM client directly.
type Summarizer interface {
	Summarize(content string) (string, error)
}

// Store persists MemoryRecords, keyed by collection per the `memory`
// collection shape in spec.md §6. It is safe for concurrent tool calls
// from within one session's sequential dispatch.
type Store interface {
	Insert(r Record) error
	All() ([]Record, error)
	Update(r Record) error
}

// Config configures the memory manager's retrieval budget.
type Config struct {
	TokenBudget           int
	FullReflections       int
	SummarizedReflections int
	EstimationRatio       int
}

// DefaultConfig matches the `memory` section defaults in spec.md §6.
func DefaultConfig() Config {
	return Config{
		TokenBudget:           4000,
		FullReflections:       5,
		SummarizedReflections: 20,
		EstimationRatio:       4,
	}
}

// Manager is C2's entry point, operating over an in-process cache
// backed by Store for durability.
type Manager struct {
	mu         sync.RWMutex
	store      Store
	summarizer Summarizer
	cfg        Config
	records    []Record // cache, append-only except for Active flips
}

// NewManager constructs a Manager, loading any existing records from store.
func NewManager(store Store, summarizer Summarizer, cfg Config) (*Manager, error) {
	if cfg.TokenBudget == 0 {
		cfg = DefaultConfig()
	}
	m := &Manager{store: store, summarizer: summarizer, cfg: cfg}
	existing, err := store.All()
	if err != nil {
		return nil, fmt.Errorf("memory: load existing records: %w", err)
	}
	m.records = existing
	return m, nil
}

func words(s string) []string {
	return strings.Fields(s)
}

func truncateWords(s string, n int) string {
	ws := words(s)
	if len(ws) <= n {
		return s
	}
	return strings.Join(ws[:n], " ")
}

// StoreNote creates an active note, returning the tool-facing
// confirmation string from spec.md §4.2.
func (m *Manager) StoreNote(content string) (string, error) {
	summary, err := m.summarize(content)
	if err != nil {
		return "", fmt.Errorf("memory: summarize note: %w", err)
	}
	r := Record{
		ID:        uuid.NewString(),
		Content:   content,
		Summary:   summary,
		Category:  CategoryNote,
		Active:    true,
		CreatedAt: time.Now(),
	}
	if err := m.insert(r); err != nil {
		return "", err
	}
	return fmt.Sprintf("Note saved (%s): %s", r.ID, r.Summary), nil
}

// DismissNote sets a note inactive. Never deletes; fails with a
// human-readable (not exception) message if id is not a note.
func (m *Manager) DismissNote(id string) string {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.records {
		if m.records[i].ID != id {
			continue
		}
		if m.records[i].Category != CategoryNote {
			return fmt.Sprintf("record %s is not a note", id)
		}
		m.records[i].Active = false
		if m.store != nil {
			_ = m.store.Update(m.records[i])
		}
		return fmt.Sprintf("Note %s dismissed", id)
	}
	return fmt.Sprintf("no record found with id %s", id)
}

// StoreReflection creates an immutable reflection record.
func (m *Manager) StoreReflection(content string) (string, error) {
	summary, err := m.summarize(content)
	if err != nil {
		return "", fmt.Errorf("memory: summarize reflection: %w", err)
	}
	r := Record{
		ID:        uuid.NewString(),
		Content:   content,
		Summary:   summary,
		Category:  CategoryReflection,
		CreatedAt: time.Now(),
	}
	if err := m.insert(r); err != nil {
		return "", err
	}
	return fmt.Sprintf("Reflection saved (%s): %s", r.ID, r.Summary), nil
}

func (m *Manager) summarize(content string) (string, error) {
	if m.summarizer == nil {
		return truncateWords(content, 25), nil
	}
	s, err := m.summarizer.Summarize(content)
	if err != nil {
		return "", err
	}
	return truncateWords(s, 25), nil
}

func (m *Manager) insert(r Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.store != nil {
		if err := m.store.Insert(r); err != nil {
			return fmt.Errorf("memory: persist record: %w", err)
		}
	}
	m.records = append(m.records, r)
	return nil
}

// Recall does a case-insensitive regex substring match across content
// and summary, returning the matches newest-first. An invalid regex
// falls back to a literal substring match (mirroring the Tool
// Dispatcher's grep_search behavior for consistency).
func (m *Manager) Recall(query string) []Record {
	m.mu.RLock()
	defer m.mu.RUnlock()

	re, err := regexp.Compile("(?i)" + query)
	matches := func(s string) bool {
		if err == nil {
			return re.MatchString(s)
		}
		return strings.Contains(strings.ToLower(s), strings.ToLower(query))
	}

	var out []Record
	for i := len(m.records) - 1; i >= 0; i-- {
		r := m.records[i]
		if matches(r.Content) || matches(r.Summary) {
			out = append(out, r)
		}
	}
	return out
}

// RecallByID returns the full record, or ok=false if not found.
func (m *Manager) RecallByID(id string) (Record, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, r := range m.records {
		if r.ID == id {
			return r, true
		}
	}
	return Record{}, false
}

// estimateTokens approximates a token count from a character count.
func (m *Manager) estimateTokens(chars int) int {
	ratio := m.cfg.EstimationRatio
	if ratio <= 0 {
		ratio = 4
	}
	return chars / ratio
}

// GetMemoryContext builds the two-section context string described in
// spec.md §4.2, truncated to the configured token budget.
func (m *Manager) GetMemoryContext() string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var notes, reflections []Record
	for _, r := range m.records {
		switch r.Category {
		case CategoryNote:
			if r.Active {
				notes = append(notes, r)
			}
		case CategoryReflection:
			reflections = append(reflections, r)
		}
	}
	// Newest first for both sections.
	sort.SliceStable(notes, func(i, j int) bool { return notes[i].CreatedAt.After(notes[j].CreatedAt) })
	sort.SliceStable(reflections, func(i, j int) bool { return reflections[i].CreatedAt.After(reflections[j].CreatedAt) })

	var b strings.Builder
	b.WriteString("## Notes to self\n")
	if len(notes) == 0 {
		b.WriteString("(none)\n")
	}
	for _, n := range notes {
		b.WriteString(fmt.Sprintf("- [%s] %s\n", n.ID, n.Content))
	}

	b.WriteString("\n## Recent Reflections\n")
	if len(reflections) == 0 {
		b.WriteString("(none)\n")
	}
	full := m.cfg.FullReflections
	summarized := m.cfg.SummarizedReflections
	for i, r := range reflections {
		switch {
		case i < full:
			b.WriteString(fmt.Sprintf("- [%s] %s\n", r.ID, r.Content))
		case i < full+summarized:
			b.WriteString(fmt.Sprintf("- [%s] (summary) %s\n", r.ID, r.Summary))
		default:
			// beyond the window, stop listing further reflections.
		}
	}

	out := b.String()
	budget := m.cfg.TokenBudget
	if budget <= 0 {
		return out
	}
	maxChars := budget * ratioOrDefault(m.cfg.EstimationRatio)
	if len(out) > maxChars {
		out = out[:maxChars] + "\n[... memory context truncated to token budget ...]"
	}
	return out
}

func ratioOrDefault(r int) int {
	if r <= 0 {
		return 4
	}
	return r
}
