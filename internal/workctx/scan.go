package workctx

import (
	"path/filepath"
	"sort"
	"strings"

	"github.com/nexusforge/agentloop/internal/convo"
)

// scan walks conv in order, numbering assistant messages as turns, and
// folds every read_file/edit_file/create_file/delete_file observation
// into the engine's TrackedFile map (spec.md §4.5 step 1).
func (e *Engine) scan(conv convo.Conversation) {
	turn := 0
	for _, m := range conv.Messages {
		if m.Role != convo.RoleAssistant {
			continue
		}
		turn++
		for _, tu := range m.ToolUses() {
			e.observe(tu, turn)
		}
	}
}

func (e *Engine) observe(tu convo.ToolUse, turn int) {
	path, _ := tu.Input["path"].(string)
	if path == "" {
		return
	}
	path = normalizePath(e.cfg.WorkspaceRoot, path)

	tf := e.files[path]
	if tf == nil {
		tf = &TrackedFile{Path: path}
		e.files[path] = tf
	}

	switch tu.Name {
	case "read_file":
		start := intInput(tu.Input, "startLine", 1)
		end := intInput(tu.Input, "endLine", 0)
		if end == 0 {
			end = start + e.cfg.DefaultReadWindow - 1
		}
		regionStart := start - e.cfg.ContextPadding
		regionEnd := end + e.cfg.ContextPadding
		if regionStart < 1 {
			regionStart = 1
		}
		tf.Regions = addRegion(tf.Regions, regionStart, regionEnd, turn)
		tf.Deleted = false
	case "edit_file":
		tf.LastEditTurn = turn
		tf.Deleted = false
	case "create_file":
		tf.LastEditTurn = turn
		tf.Deleted = false
		tf.Regions = addRegion(tf.Regions, 1, regionInfinity, turn)
	case "delete_file":
		tf.Deleted = true
		tf.contentKnown = false
		tf.lines = nil
	}
}

// normalizePath makes path workspace-relative (if it falls under
// workspaceRoot) and forces forward-slash separators.
func normalizePath(workspaceRoot, path string) string {
	p := filepath.ToSlash(path)
	root := filepath.ToSlash(workspaceRoot)
	if root != "" && strings.HasPrefix(p, root) {
		p = strings.TrimPrefix(p, root)
		p = strings.TrimPrefix(p, "/")
	}
	return p
}

func intInput(input map[string]any, key string, def int) int {
	v, ok := input[key]
	if !ok {
		return def
	}
	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	default:
		return def
	}
}

// addRegion merges the region [newStart,newEnd] observed at turn into
// regions (spec.md §4.5 step 2): the new region replaces any overlap with
// older regions at their old turn; non-overlapping remnants of those
// older regions keep their original LastUseTurn; regions that are
// adjacent or touching AND share the same LastUseTurn are merged. The
// result is sorted by start and pairwise non-overlapping.
func addRegion(regions []TrackedRegion, newStart, newEnd, turn int) []TrackedRegion {
	if newStart < 1 {
		newStart = 1
	}
	if newEnd < newStart {
		newEnd = newStart
	}

	pieces := make([]TrackedRegion, 0, len(regions)+1)
	for _, r := range regions {
		if r.Start < newStart {
			end := min(r.End, newStart-1)
			if end >= r.Start {
				pieces = append(pieces, TrackedRegion{Start: r.Start, End: end, LastUseTurn: r.LastUseTurn})
			}
		}
		if r.End > newEnd {
			start := max(r.Start, newEnd+1)
			if start <= r.End {
				pieces = append(pieces, TrackedRegion{Start: start, End: r.End, LastUseTurn: r.LastUseTurn})
			}
		}
	}
	pieces = append(pieces, TrackedRegion{Start: newStart, End: newEnd, LastUseTurn: turn})

	sort.Slice(pieces, func(i, j int) bool { return pieces[i].Start < pieces[j].Start })

	merged := make([]TrackedRegion, 0, len(pieces))
	for _, p := range pieces {
		if len(merged) > 0 {
			last := &merged[len(merged)-1]
			if last.LastUseTurn == p.LastUseTurn && p.Start <= last.End+1 {
				if p.End > last.End {
					last.End = p.End
				}
				continue
			}
		}
		merged = append(merged, p)
	}
	return merged
}
