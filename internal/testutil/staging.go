package testutil

import (
	"testing"

	"sbk-go/internal/staging"
)

// NewTestArea creates a staging area in a temp directory and fails the
// test if any artifact is still outstanding when it completes.
func NewTestArea(t *testing.T) *staging.Area {
	t.Helper()

	area, err := staging.NewArea(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create staging area: %v", err)
	}
	t.Cleanup(func() {
		if left := area.Outstanding(); len(left) > 0 {
			t.Errorf("temporary artifacts leaked: %v", left)
		}
	})
	return area
}
