package tooling

import (
	"strings"
	"testing"

	"github.com/nexusforge/agentloop/internal/memory"
)

type fakeWorkspace struct {
	files map[string]string
}

func newFakeWorkspace() *fakeWorkspace {
	return &fakeWorkspace{files: map[string]string{}}
}

func (w *fakeWorkspace) ReadFile(path string) (string, error) {
	content, ok := w.files[path]
	if !ok {
		return "", errNotFound(path)
	}
	return content, nil
}

func (w *fakeWorkspace) WriteFile(path, content string) error {
	w.files[path] = content
	return nil
}

func (w *fakeWorkspace) CreateFile(path, content string) error {
	if _, ok := w.files[path]; ok {
		return errExists(path)
	}
	w.files[path] = content
	return nil
}

func (w *fakeWorkspace) DeleteFile(path string) error {
	if _, ok := w.files[path]; !ok {
		return errNotFound(path)
	}
	delete(w.files, path)
	return nil
}

func (w *fakeWorkspace) ListDirectory(path string) ([]string, error) {
	var names []string
	prefix := path
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	for p := range w.files {
		if strings.HasPrefix(p, prefix) && !strings.Contains(strings.TrimPrefix(p, prefix), "/") {
			names = append(names, strings.TrimPrefix(p, prefix))
		}
	}
	return names, nil
}

func (w *fakeWorkspace) Walk(fn func(path string, isDir bool) error) error {
	for p := range w.files {
		if err := fn(p, false); err != nil {
			return err
		}
	}
	return nil
}

func (w *fakeWorkspace) Exists(path string) bool {
	_, ok := w.files[path]
	return ok
}

type notFoundErr string

func errNotFound(path string) error { return notFoundErr(path) }
func (e notFoundErr) Error() string { return "not found: " + string(e) }

type existsErr string

func errExists(path string) error { return existsErr(path) }
func (e existsErr) Error() string { return "already exists: " + string(e) }

type fakeMemStore struct {
	records []memory.Record
}

func (s *fakeMemStore) Insert(r memory.Record) error {
	s.records = append(s.records, r)
	return nil
}

func (s *fakeMemStore) All() ([]memory.Record, error) { return s.records, nil }

func (s *fakeMemStore) Update(r memory.Record) error {
	for i := range s.records {
		if s.records[i].ID == r.ID {
			s.records[i] = r
		}
	}
	return nil
}

func newTestManager(t *testing.T) *memory.Manager {
	t.Helper()
	m, err := memory.NewManager(&fakeMemStore{}, nil, memory.DefaultConfig())
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	return m
}

func newTestDispatcher(t *testing.T) (*Dispatcher, *fakeWorkspace) {
	t.Helper()
	ws := newFakeWorkspace()
	d := NewDispatcher(ws, newTestManager(t), nil, Config{DefaultReadWindow: 10})
	return d, ws
}

func TestDispatch_UnknownToolIsError(t *testing.T) {
	d, _ := newTestDispatcher(t)
	result := d.Dispatch("no_such_tool", map[string]any{}, "t1")
	if result.ToolResult == nil || !result.ToolResult.IsError {
		t.Fatalf("expected is_error result, got %+v", result)
	}
}

func TestDispatch_SchemaViolationIsError(t *testing.T) {
	d, _ := newTestDispatcher(t)
	result := d.Dispatch("read_file", map[string]any{}, "t1")
	if result.ToolResult == nil || !result.ToolResult.IsError {
		t.Fatalf("expected is_error for missing required path, got %+v", result)
	}
}

func TestReadFile_CapsAtDefaultWindow(t *testing.T) {
	d, ws := newTestDispatcher(t)
	lines := make([]string, 30)
	for i := range lines {
		lines[i] = "line"
	}
	ws.files["a.go"] = strings.Join(lines, "\n")

	result := d.Dispatch("read_file", map[string]any{"path": "a.go"}, "t1")
	if result.ToolResult.IsError {
		t.Fatalf("unexpected error: %s", result.ToolResult.Content)
	}
	if strings.Count(result.ToolResult.Content, "\n") > 10 {
		t.Errorf("expected read to cap at defaultReadWindow, got %d lines", strings.Count(result.ToolResult.Content, "\n"))
	}
}

func TestReadFile_PathNotFoundIsError(t *testing.T) {
	d, _ := newTestDispatcher(t)
	result := d.Dispatch("read_file", map[string]any{"path": "missing.go"}, "t1")
	if !result.ToolResult.IsError {
		t.Error("expected is_error for missing file")
	}
}

func TestEditFile_FailsWhenOldStringAppearsTwice(t *testing.T) {
	d, ws := newTestDispatcher(t)
	ws.files["a.go"] = "foo\nfoo\n"
	result := d.Dispatch("edit_file", map[string]any{"path": "a.go", "oldString": "foo", "newString": "bar"}, "t1")
	if !result.ToolResult.IsError {
		t.Error("expected is_error when oldString is not unique")
	}
}

func TestEditFile_FailsWhenOldStringAbsent(t *testing.T) {
	d, ws := newTestDispatcher(t)
	ws.files["a.go"] = "foo\n"
	result := d.Dispatch("edit_file", map[string]any{"path": "a.go", "oldString": "zzz", "newString": "bar"}, "t1")
	if !result.ToolResult.IsError {
		t.Error("expected is_error when oldString is absent")
	}
}

func TestEditFile_ReplacesUniqueMatch(t *testing.T) {
	d, ws := newTestDispatcher(t)
	ws.files["a.go"] = "foo\nbaz\n"
	result := d.Dispatch("edit_file", map[string]any{"path": "a.go", "oldString": "foo", "newString": "bar"}, "t1")
	if result.ToolResult.IsError {
		t.Fatalf("unexpected error: %s", result.ToolResult.Content)
	}
	if ws.files["a.go"] != "bar\nbaz\n" {
		t.Errorf("got %q", ws.files["a.go"])
	}
}

func TestCreateFile_FailsWhenExists(t *testing.T) {
	d, ws := newTestDispatcher(t)
	ws.files["a.go"] = "x"
	result := d.Dispatch("create_file", map[string]any{"path": "a.go", "content": "y"}, "t1")
	if !result.ToolResult.IsError {
		t.Error("expected is_error when file already exists")
	}
}

func TestDeleteFile_NotFoundIsError(t *testing.T) {
	d, _ := newTestDispatcher(t)
	result := d.Dispatch("delete_file", map[string]any{"path": "a.go"}, "t1")
	if !result.ToolResult.IsError {
		t.Error("expected is_error for delete of missing file")
	}
}

func TestRecallMemory_NeitherQueryNorIDIsNotAnError(t *testing.T) {
	d, _ := newTestDispatcher(t)
	result := d.Dispatch("recall_memory", map[string]any{}, "t1")
	if result.ToolResult.IsError {
		t.Error("expected a human-readable message, not is_error")
	}
	if !strings.Contains(result.ToolResult.Content, "provide a query or an id") {
		t.Errorf("got %q", result.ToolResult.Content)
	}
}

func TestNoteToSelf_ThenDismissNote(t *testing.T) {
	d, _ := newTestDispatcher(t)
	noted := d.Dispatch("note_to_self", map[string]any{"content": "remember this"}, "t1")
	if noted.ToolResult.IsError {
		t.Fatalf("unexpected error: %s", noted.ToolResult.Content)
	}

	recalled := d.Dispatch("recall_memory", map[string]any{"query": "remember"}, "t2")
	if recalled.ToolResult.IsError || strings.Contains(recalled.ToolResult.Content, "no matching") {
		t.Errorf("expected the note to be recallable, got %q", recalled.ToolResult.Content)
	}
}

func TestGitDiff_NoVCSAttachedIsError(t *testing.T) {
	d, _ := newTestDispatcher(t)
	result := d.Dispatch("git_diff", map[string]any{}, "t1")
	if !result.ToolResult.IsError {
		t.Error("expected is_error when no VCS session is attached")
	}
}

func TestDone_AcknowledgesSummary(t *testing.T) {
	d, _ := newTestDispatcher(t)
	result := d.Dispatch("done", map[string]any{"summary": "all tests pass"}, "t1")
	if result.ToolResult.IsError {
		t.Fatalf("unexpected error: %s", result.ToolResult.Content)
	}
	if !strings.Contains(result.ToolResult.Content, "all tests pass") {
		t.Errorf("got %q", result.ToolResult.Content)
	}
}
