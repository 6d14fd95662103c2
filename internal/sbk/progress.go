package sbk

// Stage identifies the current phase of a job run.
type Stage uint8

const (
	StageScanning Stage = iota
	StageDiffing
	StageArchiving
	StageCompressing
	StageEncrypting
	StageUploading
	StagePersisting
	StageCleanup
	StageDone
)

// String returns the string representation of the stage.
func (s Stage) String() string {
	switch s {
	case StageScanning:
		return "scanning"
	case StageDiffing:
		return "diffing"
	case StageArchiving:
		return "archiving"
	case StageCompressing:
		return "compressing"
	case StageEncrypting:
		return "encrypting"
	case StageUploading:
		return "uploading"
	case StagePersisting:
		return "persisting"
	case StageCleanup:
		return "cleanup"
	case StageDone:
		return "done"
	default:
		return "unknown"
	}
}

// ProgressEvent is a structured progress update emitted during a job run.
type ProgressEvent struct {
	Job   string
	Stage Stage

	// Path is the file or directory currently being processed, if any.
	Path string

	// Counters is a copy of the job's counters at the time of the event.
	Counters Counters

	// Units is the number of units (files, or archive groups) to process.
	Units int
}

// ProgressFunc receives progress updates.
// Events are emitted from the goroutine running the job.
type ProgressFunc func(ProgressEvent)

func nopProgress(ProgressEvent) {}
