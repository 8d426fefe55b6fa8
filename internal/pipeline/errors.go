package pipeline

import (
	"fmt"

	"github.com/KaramelBytes/dataloom-cli/internal/ai"
)

// withHint appends the runtime remedy for err, if there is one.
func withHint(msg string, err error) string {
	if h := ai.Hint(err); h != "" {
		return msg + " (" + h + ")"
	}
	return msg
}

// ClassificationError wraps a failure to interpret the query. It is fatal.
type ClassificationError struct{ Err error }

func (e *ClassificationError) Error() string {
	return withHint(fmt.Sprintf("action interpretation failed: %v", e.Err), e.Err)
}

func (e *ClassificationError) Unwrap() error { return e.Err }

// SynthesisError wraps a failure to obtain the first snippet. It is fatal.
type SynthesisError struct{ Err error }

func (e *SynthesisError) Error() string {
	return withHint(fmt.Sprintf("initial code generation failed: %v", e.Err), e.Err)
}

func (e *SynthesisError) Unwrap() error { return e.Err }

// RepairError wraps a transport failure while requesting a repair.
type RepairError struct {
	Attempt int
	Err     error
}

func (e *RepairError) Error() string {
	return withHint(fmt.Sprintf("code correction failed: %v", e.Err), e.Err)
}

func (e *RepairError) Unwrap() error { return e.Err }

// CleanupError reports that a stale artifact could not be removed before a retry.
type CleanupError struct {
	Path string
	Err  error
}

func (e *CleanupError) Error() string {
	return fmt.Sprintf("cleanup failed: %v", e.Err)
}

func (e *CleanupError) Unwrap() error { return e.Err }

// ExhaustedError is returned when every attempt failed. Last is the final
// execution failure message.
type ExhaustedError struct {
	Attempts int
	Last     string
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("could not generate result after %d attempts; last error: %s", e.Attempts, e.Last)
}
