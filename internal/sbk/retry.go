package sbk

import "fmt"

// RetryPolicy bounds how many times an operation is attempted.
type RetryPolicy struct {
	MaxAttempts int
}

// EncryptRetry allows one retry after a failed encryption.
var EncryptRetry = RetryPolicy{MaxAttempts: 2}

// Do calls fn until it succeeds or the attempt budget is spent, and returns
// the last error. attempt starts at 1.
func (p RetryPolicy) Do(fn func(attempt int) error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = fn(attempt); err == nil {
			return nil
		}
	}
	return fmt.Errorf("giving up after %d attempts: %w", attempts, err)
}
