package staging

import (
	"fmt"

	"sbk-go/internal/config"
)

// NewAreaFromConfig creates the staging area for a job under its tmp_path
// and sweeps leftovers of interrupted runs.
func NewAreaFromConfig(cfg config.JobConfig) (*Area, int, error) {
	area, err := NewArea(cfg.TmpPath)
	if err != nil {
		return nil, 0, fmt.Errorf("job %s: %w", cfg.Name, err)
	}
	swept, err := area.Sweep()
	if err != nil {
		return nil, 0, fmt.Errorf("job %s: %w", cfg.Name, err)
	}
	return area, swept, nil
}
