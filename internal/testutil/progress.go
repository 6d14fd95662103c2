package testutil

import (
	"sync"

	"sbk-go/internal/sbk"
)

// ProgressRecorder collects progress events.
type ProgressRecorder struct {
	mu     sync.Mutex
	events []sbk.ProgressEvent
}

// Record is an sbk.ProgressFunc.
func (r *ProgressRecorder) Record(ev sbk.ProgressEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

// Events returns a copy of the recorded events.
func (r *ProgressRecorder) Events() []sbk.ProgressEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]sbk.ProgressEvent(nil), r.events...)
}

// Stages returns the stage sequence with consecutive repeats collapsed.
func (r *ProgressRecorder) Stages() []sbk.Stage {
	var stages []sbk.Stage
	for _, ev := range r.Events() {
		if len(stages) == 0 || stages[len(stages)-1] != ev.Stage {
			stages = append(stages, ev.Stage)
		}
	}
	return stages
}
