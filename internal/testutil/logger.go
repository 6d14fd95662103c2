package testutil

import (
	"sync"

	"sbk-go/internal/sbk"
)

// LogEntry is one record captured by LogRecorder.
type LogEntry struct {
	Level string
	Msg   string
	Args  []any
}

// LogRecorder is an sbk.Logger that keeps every record. Safe for concurrent use.
type LogRecorder struct {
	mu      sync.Mutex
	entries []LogEntry
}

var _ sbk.Logger = (*LogRecorder)(nil)

func (r *LogRecorder) record(level, msg string, args []any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, LogEntry{Level: level, Msg: msg, Args: args})
}

func (r *LogRecorder) Debug(msg string, args ...any) { r.record("DEBUG", msg, args) }
func (r *LogRecorder) Info(msg string, args ...any)  { r.record("INFO", msg, args) }
func (r *LogRecorder) Warn(msg string, args ...any)  { r.record("WARN", msg, args) }
func (r *LogRecorder) Error(msg string, args ...any) { r.record("ERROR", msg, args) }

// Messages returns the messages logged at level, in order.
func (r *LogRecorder) Messages(level string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var msgs []string
	for _, e := range r.entries {
		if e.Level == level {
			msgs = append(msgs, e.Msg)
		}
	}
	return msgs
}
