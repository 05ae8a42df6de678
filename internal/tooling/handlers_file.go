package tooling

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/nexusforge/agentloop/internal/convo"
)

func (d *Dispatcher) readFile(input map[string]any, toolUseID string) convo.Block {
	path := stringInput(input, "path")
	content, err := d.ws.ReadFile(path)
	if err != nil {
		return errResult(toolUseID, fmt.Sprintf("read_file: %s: %v", path, err))
	}

	lines := strings.Split(content, "\n")
	start, hasStart := intInput(input, "startLine")
	end, hasEnd := intInput(input, "endLine")
	if !hasStart {
		start = 1
	}
	if !hasEnd {
		end = start + d.cfg.DefaultReadWindow - 1
	}
	start = clampInt(start, 1, len(lines))
	end = clampInt(end, start, len(lines))

	var b strings.Builder
	for i := start; i <= end; i++ {
		fmt.Fprintf(&b, "%d | %s\n", i, lines[i-1])
	}
	return okResult(toolUseID, b.String())
}

func clampInt(v, lo, hi int) int {
	if hi < lo {
		hi = lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func (d *Dispatcher) grepSearch(input map[string]any, toolUseID string) convo.Block {
	query := stringInput(input, "query")
	includePattern := stringInput(input, "includePattern")

	re, reErr := regexp.Compile(query)
	matches := func(line string) bool {
		if reErr == nil {
			return re.MatchString(line)
		}
		return strings.Contains(line, query)
	}

	var hits []string
	_ = d.ws.Walk(func(path string, isDir bool) error {
		if isDir || len(hits) >= 100 {
			return nil
		}
		if includePattern != "" {
			if ok, _ := filepath.Match(includePattern, filepath.Base(path)); !ok {
				return nil
			}
		}
		content, err := d.ws.ReadFile(path)
		if err != nil {
			return nil
		}
		for i, line := range strings.Split(content, "\n") {
			if len(hits) >= 100 {
				return nil
			}
			if matches(line) {
				hits = append(hits, fmt.Sprintf("%s:%d: %s", path, i+1, line))
			}
		}
		return nil
	})

	if len(hits) == 0 {
		return okResult(toolUseID, "no matches")
	}
	return okResult(toolUseID, strings.Join(hits, "\n"))
}

func (d *Dispatcher) fileSearch(input map[string]any, toolUseID string) convo.Block {
	glob := stringInput(input, "glob")

	var hits []string
	_ = d.ws.Walk(func(path string, isDir bool) error {
		if isDir {
			return nil
		}
		if ok, _ := filepath.Match(glob, path); ok {
			hits = append(hits, path)
			return nil
		}
		if ok, _ := filepath.Match(glob, filepath.Base(path)); ok {
			hits = append(hits, path)
		}
		return nil
	})

	if len(hits) == 0 {
		return okResult(toolUseID, "no matches")
	}
	return okResult(toolUseID, strings.Join(hits, "\n"))
}

func (d *Dispatcher) listDirectory(input map[string]any, toolUseID string) convo.Block {
	path := stringInput(input, "path")
	names, err := d.ws.ListDirectory(path)
	if err != nil {
		return errResult(toolUseID, fmt.Sprintf("list_directory: %s: %v", path, err))
	}
	if len(names) == 0 {
		return okResult(toolUseID, "(empty)")
	}
	return okResult(toolUseID, strings.Join(names, "\n"))
}

func (d *Dispatcher) editFile(input map[string]any, toolUseID string) convo.Block {
	path := stringInput(input, "path")
	oldString := stringInput(input, "oldString")
	newString := stringInput(input, "newString")

	content, err := d.ws.ReadFile(path)
	if err != nil {
		return errResult(toolUseID, fmt.Sprintf("edit_file: %s: %v", path, err))
	}

	count := strings.Count(content, oldString)
	switch count {
	case 0:
		return errResult(toolUseID, fmt.Sprintf("edit_file: %s: oldString not found", path))
	case 1:
		// proceed
	default:
		return errResult(toolUseID, fmt.Sprintf("edit_file: %s: oldString appears %d times, must be unique", path, count))
	}

	updated := strings.Replace(content, oldString, newString, 1)
	if err := d.ws.WriteFile(path, updated); err != nil {
		return errResult(toolUseID, fmt.Sprintf("edit_file: %s: %v", path, err))
	}
	return okResult(toolUseID, fmt.Sprintf("edited %s", path))
}

func (d *Dispatcher) createFile(input map[string]any, toolUseID string) convo.Block {
	path := stringInput(input, "path")
	content := stringInput(input, "content")
	if err := d.ws.CreateFile(path, content); err != nil {
		return errResult(toolUseID, fmt.Sprintf("create_file: %s: %v", path, err))
	}
	return okResult(toolUseID, fmt.Sprintf("created %s", path))
}

func (d *Dispatcher) deleteFile(input map[string]any, toolUseID string) convo.Block {
	path := stringInput(input, "path")
	if err := d.ws.DeleteFile(path); err != nil {
		return errResult(toolUseID, fmt.Sprintf("delete_file: %s: %v", path, err))
	}
	return okResult(toolUseID, fmt.Sprintf("deleted %s", path))
}
