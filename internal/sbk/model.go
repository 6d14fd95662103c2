package sbk

import "sort"

// FileRecord is the content digest of one file as observed by a scan.
// Path is absolute; Digest is the lowercase hex encoding of the hash.
type FileRecord struct {
	Path   string
	Digest string
}

// Snapshot maps file paths to their records. A scan fills a Snapshot in
// discovery order, which is kept when it is saved and loaded again.
// Snapshots are never patched in place between runs: the next run's scan
// replaces the persisted one wholesale.
type Snapshot struct {
	records map[string]FileRecord
	order   []string
}

// NewSnapshot returns an empty snapshot.
func NewSnapshot() *Snapshot {
	return &Snapshot{records: make(map[string]FileRecord)}
}

// SnapshotFromRecords builds a snapshot from records, ordered by path.
func SnapshotFromRecords(records []FileRecord) *Snapshot {
	s := NewSnapshot()
	sorted := make([]FileRecord, len(records))
	copy(sorted, records)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Path < sorted[j].Path })
	for _, r := range sorted {
		s.Put(r)
	}
	return s
}

// Put adds or replaces the record for r.Path.
func (s *Snapshot) Put(r FileRecord) {
	if _, ok := s.records[r.Path]; !ok {
		s.order = append(s.order, r.Path)
	}
	s.records[r.Path] = r
}

// Get returns the record stored for path.
func (s *Snapshot) Get(path string) (FileRecord, bool) {
	if s == nil {
		return FileRecord{}, false
	}
	r, ok := s.records[path]
	return r, ok
}

// Len returns the number of records.
func (s *Snapshot) Len() int {
	if s == nil {
		return 0
	}
	return len(s.records)
}

// Paths returns the recorded paths in insertion order.
func (s *Snapshot) Paths() []string {
	if s == nil {
		return nil
	}
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// Records returns all records in insertion order.
func (s *Snapshot) Records() []FileRecord {
	if s == nil {
		return nil
	}
	out := make([]FileRecord, 0, len(s.order))
	for _, p := range s.order {
		out = append(out, s.records[p])
	}
	return out
}

// Equal reports whether both snapshots hold the same path/digest pairs,
// ignoring order.
func (s *Snapshot) Equal(other *Snapshot) bool {
	if s.Len() != other.Len() {
		return false
	}
	for _, r := range s.Records() {
		o, ok := other.Get(r.Path)
		if !ok || o.Digest != r.Digest {
			return false
		}
	}
	return true
}
