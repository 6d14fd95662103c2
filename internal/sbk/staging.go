package sbk

import "os"

// TempArea hands out uniquely named temporary files for transformed
// artifacts and removes them once they have been consumed.
type TempArea interface {
	// Create creates a new temporary file whose name ends with name.
	// Concurrent calls never return the same path.
	Create(name string) (*os.File, error)

	// Remove deletes a temporary file created by Create.
	Remove(path string) error
}
