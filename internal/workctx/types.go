// Package workctx implements the Working Context Engine (C5): region-level
// file tracking derived from the conversation's read/edit/create/delete
// tool calls, refreshed from disk and budget-evicted each cycle, rendered
// as a markdown snippet for the system prompt.
package workctx

// regionInfinity stands in for "end of file" before the file's actual
// line count is known (create_file observations, before the refresh
// pass clamps them).
const regionInfinity = 1 << 30

// TrackedRegion is a 1-based inclusive line range within a TrackedFile.
type TrackedRegion struct {
	Start       int
	End         int
	LastUseTurn int
}

// TrackedFile is C5's per-file state, rebuilt each cycle from the
// conversation and refreshed from disk before eviction (spec.md §3).
type TrackedFile struct {
	Path         string
	Regions      []TrackedRegion
	TotalLines   int
	LastEditTurn int
	Deleted      bool

	lines        []string
	contentKnown bool
}
