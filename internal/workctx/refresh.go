package workctx

import (
	"sort"
	"strings"
)

// refreshFromDisk implements spec.md §4.5 step 4: re-reads every
// non-deleted tracked file; a read failure marks the file deleted and
// drops its cached content. Region ends beyond the file's actual line
// count are clamped down.
func (e *Engine) refreshFromDisk() {
	for _, tf := range e.files {
		if tf.Deleted {
			continue
		}
		content, err := e.fr.ReadFile(tf.Path)
		if err != nil {
			tf.Deleted = true
			tf.contentKnown = false
			tf.lines = nil
			continue
		}
		tf.lines = strings.Split(content, "\n")
		tf.TotalLines = len(tf.lines)
		tf.contentKnown = true

		for i, r := range tf.Regions {
			if r.End > tf.TotalLines {
				tf.Regions[i].End = tf.TotalLines
			}
		}
	}
}

type regionRef struct {
	file      *TrackedFile
	idx       int
	lineCount int
	effective int
}

// evict implements spec.md §4.5 step 5: greedily keeps regions in
// descending effectiveTurn order (stable) until MaxActiveLines would be
// exceeded. Regions of deleted files are never kept.
func (e *Engine) evict() {
	paths := make([]string, 0, len(e.files))
	for p := range e.files {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	var refs []regionRef
	for _, p := range paths {
		tf := e.files[p]
		if tf.Deleted {
			continue
		}
		for i, r := range tf.Regions {
			lo, hi := max(1, r.Start), min(r.End, tf.TotalLines)
			lineCount := hi - lo + 1
			if lineCount < 0 {
				lineCount = 0
			}
			refs = append(refs, regionRef{
				file:      tf,
				idx:       i,
				lineCount: lineCount,
				effective: max(r.LastUseTurn, tf.LastEditTurn),
			})
		}
	}

	sort.SliceStable(refs, func(i, j int) bool { return refs[i].effective > refs[j].effective })

	keep := make(map[*TrackedFile]map[int]bool)
	total := 0
	for _, ref := range refs {
		if total+ref.lineCount > e.cfg.MaxActiveLines {
			continue
		}
		total += ref.lineCount
		if keep[ref.file] == nil {
			keep[ref.file] = make(map[int]bool)
		}
		keep[ref.file][ref.idx] = true
	}

	for _, tf := range e.files {
		kept := keep[tf]
		if len(kept) == 0 {
			tf.Regions = nil
			continue
		}
		var survivors []TrackedRegion
		for i, r := range tf.Regions {
			if kept[i] {
				survivors = append(survivors, r)
			}
		}
		tf.Regions = survivors
	}
}
