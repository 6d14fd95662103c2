package app

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

// sbkHandler is a custom slog.Handler that formats log records as:
//
//	<timestamp>\t<level>\t<runID>\t<message>\t<key=value ...>
//
// Records at Warn and above are also written to mirror, when set.
type sbkHandler struct {
	w      io.Writer
	mirror io.Writer
	runID  string
	attrs  []slog.Attr
}

func (h *sbkHandler) Enabled(_ context.Context, _ slog.Level) bool { return true }

func (h *sbkHandler) Handle(_ context.Context, r slog.Record) error {
	var buf bytes.Buffer
	ts := r.Time.UTC().Format("2006-01-02T15:04:05Z")
	fmt.Fprintf(&buf, "%s\t%s\t%s\t%s", ts, r.Level.String(), h.runID, r.Message)

	// Write pre-set attrs.
	for _, a := range h.attrs {
		fmt.Fprintf(&buf, "\t%s=%v", a.Key, a.Value)
	}

	// Write per-record attrs.
	r.Attrs(func(a slog.Attr) bool {
		fmt.Fprintf(&buf, "\t%s=%v", a.Key, a.Value)
		return true
	})
	buf.WriteByte('\n')

	if _, err := h.w.Write(buf.Bytes()); err != nil {
		return err
	}
	if h.mirror != nil && r.Level >= slog.LevelWarn {
		_, err := h.mirror.Write(buf.Bytes())
		return err
	}
	return nil
}

func (h *sbkHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &sbkHandler{
		w:      h.w,
		mirror: h.mirror,
		runID:  h.runID,
		attrs:  append(append([]slog.Attr{}, h.attrs...), attrs...),
	}
}

func (h *sbkHandler) WithGroup(string) slog.Handler { return h }

// dailyFile appends to logDir/sbk-YYYY-MM-DD.log and moves to a new file
// when the UTC date changes.
type dailyFile struct {
	dir string
	now func() time.Time

	mu   sync.Mutex
	date string
	f    *os.File
}

func newDailyFile(dir string, now func() time.Time) (*dailyFile, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating log directory: %w", err)
	}
	return &dailyFile{dir: dir, now: now}, nil
}

// logFileName returns the log file name for the UTC date of t.
func logFileName(t time.Time) string {
	return "sbk-" + t.UTC().Format(time.DateOnly) + ".log"
}

func (d *dailyFile) Write(p []byte) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	date := d.now().UTC().Format(time.DateOnly)
	if d.f == nil || date != d.date {
		if d.f != nil {
			d.f.Close()
		}
		f, err := os.OpenFile(filepath.Join(d.dir, logFileName(d.now())), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			d.f = nil
			return 0, fmt.Errorf("opening log file: %w", err)
		}
		d.f, d.date = f, date
	}
	return d.f.Write(p)
}

func (d *dailyFile) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.f == nil {
		return nil
	}
	err := d.f.Close()
	d.f = nil
	return err
}

// newLogger creates a structured logger writing to a daily log file under
// logDir, mirroring warnings and errors to stderr. The returned file must be
// closed by the caller.
func newLogger(logDir, runID string, stderr io.Writer) (*slog.Logger, *dailyFile, error) {
	f, err := newDailyFile(logDir, time.Now)
	if err != nil {
		return nil, nil, err
	}
	handler := &sbkHandler{w: f, mirror: stderr, runID: runID}
	return slog.New(handler), f, nil
}

// DefaultLogDirName is the log directory used below the working directory
// when no configuration could be loaded.
const DefaultLogDirName = "logs"

// LogConfigError records a configuration that could not be loaded in the
// default log directory under baseDir. Nothing is mirrored to stderr; the
// caller reports the error there itself.
func LogConfigError(baseDir, configPath string, cause error) error {
	logger, f, err := newLogger(filepath.Join(baseDir, DefaultLogDirName), uuid.NewString(), nil)
	if err != nil {
		return fmt.Errorf("opening log: %w", err)
	}
	logger.Error("configuration not loaded, no job was run", "config", configPath, "error", cause)
	return f.Close()
}

// slogAdapter wraps *slog.Logger to satisfy the sbk.Logger interface.
type slogAdapter struct {
	l *slog.Logger
}

func (a *slogAdapter) Debug(msg string, args ...any) { a.l.Debug(msg, args...) }
func (a *slogAdapter) Info(msg string, args ...any)  { a.l.Info(msg, args...) }
func (a *slogAdapter) Warn(msg string, args ...any)  { a.l.Warn(msg, args...) }
func (a *slogAdapter) Error(msg string, args ...any) { a.l.Error(msg, args...) }
