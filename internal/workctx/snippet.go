package workctx

import (
	"fmt"
	"sort"
	"strings"
)

// buildSnippet implements spec.md §4.5 step 6: renders every surviving
// file's kept regions as a markdown block with omission markers, or
// returns "" if nothing survived eviction.
func (e *Engine) buildSnippet() string {
	paths := make([]string, 0, len(e.files))
	for p, tf := range e.files {
		if !tf.Deleted && len(tf.Regions) > 0 {
			paths = append(paths, p)
		}
	}
	if len(paths) == 0 {
		return ""
	}
	sort.Strings(paths)

	var body strings.Builder
	totalLines := 0
	for _, p := range paths {
		tf := e.files[p]
		fmt.Fprintf(&body, "--- %s (%d lines) ---\n", tf.Path, tf.TotalLines)

		for i, r := range tf.Regions {
			start, end := max(1, r.Start), min(r.End, tf.TotalLines)

			if i == 0 && start > 1 {
				fmt.Fprintf(&body, "[... %d lines above ...]\n", start-1)
			} else if i > 0 {
				prevEnd := min(tf.Regions[i-1].End, tf.TotalLines)
				if gap := start - prevEnd - 1; gap > 0 {
					fmt.Fprintf(&body, "[... %d lines omitted ...]\n", gap)
				}
			}

			for ln := start; ln <= end; ln++ {
				text := ""
				if ln-1 < len(tf.lines) {
					text = tf.lines[ln-1]
				}
				fmt.Fprintf(&body, "%d | %s\n", ln, text)
				totalLines++
			}

			if i == len(tf.Regions)-1 && end < tf.TotalLines {
				fmt.Fprintf(&body, "[... %d lines below ...]\n", tf.TotalLines-end)
			}
		}
	}

	if totalLines == 0 {
		return ""
	}

	header := fmt.Sprintf("## Working Context (%d files, %d lines — auto-refreshed from disk)\n", len(paths), totalLines)
	return header + body.String()
}
