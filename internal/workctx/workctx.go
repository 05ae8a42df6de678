package workctx

import (
	"github.com/nexusforge/agentloop/internal/convo"
)

// Config bundles the Working Context Engine's tunables (spec.md §6).
type Config struct {
	WorkspaceRoot     string
	ContextPadding    int
	DefaultReadWindow int
	ProtectedTurns    int
	MinResultChars    int
	MaxActiveLines    int
}

// DefaultConfig matches the defaults implied by spec.md's worked examples.
func DefaultConfig() Config {
	return Config{
		ContextPadding:    3,
		DefaultReadWindow: 100,
		ProtectedTurns:    1,
		MinResultChars:    800,
		MaxActiveLines:    300,
	}
}

// FileReader abstracts the disk read C5 performs during its refresh
// pass, decoupling the engine from a concrete filesystem so sessions can
// be driven against an in-memory workspace in tests.
type FileReader interface {
	ReadFile(path string) (string, error)
}

// Engine holds one cycle's worth of TrackedFile state. A fresh Engine is
// created per cycle — spec.md §3 explicitly gives C5 no cross-cycle
// state.
type Engine struct {
	cfg   Config
	fr    FileReader
	files map[string]*TrackedFile
}

// NewEngine builds an Engine that reads file contents through fr.
func NewEngine(fr FileReader, cfg Config) *Engine {
	if cfg.DefaultReadWindow == 0 {
		cfg = DefaultConfig()
	}
	return &Engine{cfg: cfg, fr: fr, files: make(map[string]*TrackedFile)}
}

// Prepare runs the full C5 pipeline against conv: scan, region-merge,
// strip old turns, refresh from disk, budget-evict, and build the
// working-context snippet. Returns the (possibly stubbed) conversation
// and the snippet, which the caller attaches to the system prompt — never
// injected as a conversation message (spec.md §4.5's invariant).
func (e *Engine) Prepare(conv convo.Conversation) (convo.Conversation, string) {
	e.scan(conv)
	conv = e.stripOldTurns(conv)
	e.refreshFromDisk()
	e.evict()
	return conv, e.buildSnippet()
}

// TrackedFiles returns a snapshot of the engine's current file map,
// mainly for tests and diagnostics.
func (e *Engine) TrackedFiles() map[string]*TrackedFile {
	return e.files
}
