package scans

import "fmt"

// CloneReason classifies why repository acquisition failed.
type CloneReason string

const (
	CloneAuth     CloneReason = "auth"
	CloneNotFound CloneReason = "not_found"
	CloneTimeout  CloneReason = "timeout"
	CloneTooLarge CloneReason = "too_large"
	CloneNetwork  CloneReason = "network"
)

// CloneError is the terminal acquisition failure after retries exhaust.
// It is the only error class that fails a whole session.
type CloneError struct {
	Reason   CloneReason
	Attempts int
	Err      error
}

func (e *CloneError) Error() string {
	switch e.Reason {
	case CloneTooLarge:
		return fmt.Sprintf("git clone failed after %d attempts: repository may be too large or the network dropped mid-transfer: %v", e.Attempts, e.Err)
	case CloneTimeout:
		return fmt.Sprintf("git clone timed out after %d attempts: %v", e.Attempts, e.Err)
	default:
		return fmt.Sprintf("git clone failed after %d attempts (%s): %v", e.Attempts, e.Reason, e.Err)
	}
}

func (e *CloneError) Unwrap() error { return e.Err }
