package sbk

// Compression selects the codec used for per-file compression.
// Directory archives are always tar+gzip.
type Compression string

const (
	CompressionGzip Compression = "gzip"
	CompressionZstd Compression = "zstd"
)

// Extension returns the suffix appended to compressed artifact names.
func (c Compression) Extension() string {
	if c == CompressionZstd {
		return ".zst"
	}
	return ".gz"
}

// Job is one fully wired backup job: its settings plus the storage,
// encryption and temp-file collaborators built for it.
type Job struct {
	Name         string
	BasePath     string
	RemotePrefix string

	Compress    bool
	Encrypt     bool
	Upload      bool
	Compression Compression

	// ConsiderOlder skips files modified within the last N days. Zero
	// disables the age filter.
	ConsiderOlder int
	Filter        Filter

	Archive      bool
	ArchiveDepth int

	DeleteSource    bool
	DeleteEmptyDirs bool

	// SnapshotName overrides the job name as the snapshot key.
	SnapshotName string

	TestFilters bool
	TestArchive bool

	Vault     Vault
	Encryptor Encryptor
	Temp      TempArea
}

// SnapshotKey returns the name the job's snapshot is persisted under.
func (j *Job) SnapshotKey() string {
	if j.SnapshotName != "" {
		return j.SnapshotName
	}
	return j.Name
}

func (j *Job) filter() Filter {
	if j.Filter == nil {
		return AllFiles{}
	}
	return j.Filter
}
