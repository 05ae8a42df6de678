// Package iterlog holds the process-wide, per-cycle log buffer the
// Reflector session reads to embed "what happened this cycle" into its
// transcript. It is package-level state on purpose: threading a buffer
// through every component's signature would touch C1-C8 for no benefit,
// and the lifecycle contract (append during the cycle, snapshot once at
// reflection time, reset at cycle end) is what actually matters.
package iterlog

import (
	"log/slog"
	"sync"
	"time"
)

// Entry is one record in the buffer, mirroring the iterationLog
// collection's entry shape.
type Entry struct {
	Timestamp time.Time
	Level     string
	Message   string
	Context   map[string]any
}

var (
	mu  sync.Mutex
	buf []Entry
)

// Append adds an entry to the buffer and mirrors it to slog at the
// matching level. context is optional structured detail.
func Append(level, message string, context map[string]any) {
	mu.Lock()
	buf = append(buf, Entry{Timestamp: time.Now(), Level: level, Message: message, Context: context})
	mu.Unlock()

	attrs := make([]any, 0, len(context)*2)
	for k, v := range context {
		attrs = append(attrs, slog.Any(k, v))
	}
	switch level {
	case "error":
		slog.Error(message, attrs...)
	case "warn":
		slog.Warn(message, attrs...)
	default:
		slog.Info(message, attrs...)
	}
}

// Info appends an info-level entry.
func Info(message string, context map[string]any) { Append("info", message, context) }

// Warn appends a warn-level entry.
func Warn(message string, context map[string]any) { Append("warn", message, context) }

// Errorf appends an error-level entry.
func Errorf(message string, context map[string]any) { Append("error", message, context) }

// Snapshot returns a copy of the current buffer without clearing it.
func Snapshot() []Entry {
	mu.Lock()
	defer mu.Unlock()
	out := make([]Entry, len(buf))
	copy(out, buf)
	return out
}

// Reset clears the buffer, called once by the controller's cycle cleanup
// after it has persisted the iteration log record.
func Reset() {
	mu.Lock()
	buf = nil
	mu.Unlock()
}

// Render formats the current snapshot as newline-delimited
// "[LEVEL] message" lines for inclusion in the Reflector's transcript.
func Render() string {
	entries := Snapshot()
	if len(entries) == 0 {
		return "(no log entries this cycle)"
	}
	out := ""
	for _, e := range entries {
		out += "[" + e.Level + "] " + e.Message + "\n"
	}
	return out
}
