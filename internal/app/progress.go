package app

import (
	"fmt"
	"io"
	"os"
	"sync"

	"golang.org/x/term"

	"sbk-go/internal/sbk"
)

// consoleReporter prints progress events. On a terminal it keeps rewriting
// a single status line; otherwise it prints one line per stage change.
type consoleReporter struct {
	w   io.Writer
	tty bool

	mu    sync.Mutex
	job   string
	stage sbk.Stage
	open  bool
}

// newConsoleReporter reports to f, detecting whether f is a terminal.
func newConsoleReporter(f *os.File) *consoleReporter {
	return &consoleReporter{w: f, tty: term.IsTerminal(int(f.Fd()))}
}

// Report is an sbk.ProgressFunc.
func (r *consoleReporter) Report(ev sbk.ProgressEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()

	changed := !r.open || ev.Job != r.job || ev.Stage != r.stage
	r.job, r.stage, r.open = ev.Job, ev.Stage, true

	if !r.tty {
		if changed {
			fmt.Fprintln(r.w, statusLine(ev))
		}
		if ev.Stage == sbk.StageDone {
			r.open = false
		}
		return
	}

	fmt.Fprintf(r.w, "\r\033[K%s", statusLine(ev))
	if ev.Stage == sbk.StageDone {
		fmt.Fprintln(r.w)
		r.open = false
	}
}

func statusLine(ev sbk.ProgressEvent) string {
	c := ev.Counters
	switch ev.Stage {
	case sbk.StageScanning:
		return fmt.Sprintf("[%s] scanning: dirs %d, files %d, included %d, excluded %d",
			ev.Job, c.Dirs, c.Scanned, c.Included, c.Excluded)
	case sbk.StageDone:
		return fmt.Sprintf("[%s] done: scanned %d, changed %d, compressed %d, encrypted %d, uploaded %d, failed %d",
			ev.Job, c.Scanned, c.Changed, c.Compressed, c.Encrypted, c.Uploaded, c.Failed)
	case sbk.StageArchiving, sbk.StageCompressing, sbk.StageEncrypting, sbk.StageUploading:
		done := c.Uploaded + c.Failed
		return fmt.Sprintf("[%s] %s %d/%d: %s", ev.Job, ev.Stage, done, ev.Units, ev.Path)
	default:
		return fmt.Sprintf("[%s] %s", ev.Job, ev.Stage)
	}
}
