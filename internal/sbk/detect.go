package sbk

import (
	"path/filepath"
	"strings"
)

// ArchiveGroup is the set of changed files bundled into one archive.
// Files keep their discovery order.
type ArchiveGroup struct {
	Dir   string
	Files []string
}

// ChangeSet lists the files that changed since the previous snapshot and,
// when archiving, how they are grouped into archives.
type ChangeSet struct {
	Paths  []string
	Groups []ArchiveGroup
}

// DetectChanges diffs current against previous. A path is changed when it is
// missing from previous or its digest differs. Paths only present in
// previous are not reported. A nil previous marks every path as changed.
// When archive is set, changed paths are grouped by ArchiveDir.
func DetectChanges(current, previous *Snapshot, archive bool, basePath string, depth int) *ChangeSet {
	cs := &ChangeSet{}
	groupIndex := make(map[string]int)

	for _, rec := range current.Records() {
		if old, ok := previous.Get(rec.Path); ok && old.Digest == rec.Digest {
			continue
		}
		cs.Paths = append(cs.Paths, rec.Path)
		if !archive {
			continue
		}
		dir := ArchiveDir(basePath, rec.Path, depth)
		i, ok := groupIndex[dir]
		if !ok {
			i = len(cs.Groups)
			groupIndex[dir] = i
			cs.Groups = append(cs.Groups, ArchiveGroup{Dir: dir})
		}
		cs.Groups[i].Files = append(cs.Groups[i].Files, rec.Path)
	}
	return cs
}

// ArchiveDir returns the directory a changed file is archived under: its
// ancestor depth levels below basePath. Files whose own directory is
// shallower than depth are archived under their own directory; depth 0
// archives everything under basePath.
func ArchiveDir(basePath, path string, depth int) string {
	rel, err := filepath.Rel(basePath, filepath.Dir(path))
	if err != nil || rel == "." || outsideBase(rel) {
		return basePath
	}
	parts := strings.Split(filepath.ToSlash(rel), "/")
	if depth < 0 {
		depth = 0
	}
	if depth < len(parts) {
		parts = parts[:depth]
	}
	return filepath.Join(append([]string{basePath}, parts...)...)
}

// outsideBase reports whether a path relative to the base path escapes it.
func outsideBase(rel string) bool {
	return rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
