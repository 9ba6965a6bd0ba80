package framecache

import (
	"errors"
	"fmt"

	"github.com/user/framecache/pkg/mediatime"
)

var (
	// ErrNoKeyframeFound is returned when no keyframe exists at or before the
	// requested timestamp. Callers treat it as end of stream.
	ErrNoKeyframeFound = errors.New("framecache: no keyframe found")
	// ErrExtractionFailed is matched by every *ExtractionError. Retrying the
	// request starts a fresh extraction.
	ErrExtractionFailed = errors.New("framecache: extraction failed")
	// ErrInvariantViolation marks internal programming errors. It is only
	// ever raised through panic.
	ErrInvariantViolation = errors.New("framecache: invariant violation")
	// ErrClosed is returned by requests made after Close.
	ErrClosed = errors.New("framecache: manager closed")
)

// ExtractionError describes a failed run extraction.
type ExtractionError struct {
	Source   string
	Keyframe mediatime.Time
	Err      error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("framecache: extraction failed for %s at keyframe %s: %v", e.Source, e.Keyframe, e.Err)
}

// Unwrap exposes both ErrExtractionFailed and the underlying cause.
func (e *ExtractionError) Unwrap() []error {
	return []error{ErrExtractionFailed, e.Err}
}
