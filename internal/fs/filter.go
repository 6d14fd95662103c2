package fs

import (
	"fmt"
	"regexp"

	"sbk-go/internal/sbk"
)

// FilterMatcher decides whether a file takes part in a backup from its
// base name. Patterns are regular expressions matched anywhere in the name.
// A name matching the exclude pattern is always skipped; otherwise, when an
// include pattern is set, only matching names are kept.
type FilterMatcher struct {
	include *regexp.Regexp
	exclude *regexp.Regexp
}

// NewFilterMatcher compiles the include and exclude patterns. Empty patterns
// are not applied.
func NewFilterMatcher(include, exclude string, ignoreCase bool) (*FilterMatcher, error) {
	m := &FilterMatcher{}
	var err error
	if m.include, err = compilePattern(include, ignoreCase); err != nil {
		return nil, fmt.Errorf("include pattern: %w", err)
	}
	if m.exclude, err = compilePattern(exclude, ignoreCase); err != nil {
		return nil, fmt.Errorf("exclude pattern: %w", err)
	}
	return m, nil
}

func compilePattern(pattern string, ignoreCase bool) (*regexp.Regexp, error) {
	if pattern == "" {
		return nil, nil
	}
	if ignoreCase {
		pattern = "(?i)" + pattern
	}
	return regexp.Compile(pattern)
}

// Included reports whether a file with the given base name is backed up.
func (m *FilterMatcher) Included(name string) bool {
	if m.exclude != nil && m.exclude.MatchString(name) {
		return false
	}
	if m.include != nil {
		return m.include.MatchString(name)
	}
	return true
}

var _ sbk.Filter = (*FilterMatcher)(nil)
