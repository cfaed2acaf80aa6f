package progindex

import (
	"errors"
	"fmt"
)

// Sentinel errors forming the index's error taxonomy. Use errors.Is against
// these; operation context is attached separately by IndexError.
var (
	// ErrDimensionMismatch is returned when an input vector's length does
	// not match the index's configured dimension.
	ErrDimensionMismatch = errors.New("dimension mismatch")

	// ErrNotTrained is returned when a quantization-dependent operation is
	// attempted before the product quantizer has been trained.
	ErrNotTrained = errors.New("quantizer not trained")

	// ErrInsufficientSamples is returned when PQ training is requested
	// before the reservoir has accumulated the minimum sample count.
	ErrInsufficientSamples = errors.New("insufficient training samples")

	// ErrVersionMismatch is returned when a persisted blob's schema version
	// does not match the version this build understands.
	ErrVersionMismatch = errors.New("persisted schema version mismatch")

	// ErrIndexClosed is returned when an operation is attempted on an index
	// that has been cleared/closed for further use. Reserved for future use;
	// Clear never closes the index, only empties it.
	ErrIndexClosed = errors.New("index is closed")

	// ErrInvalidConfig is returned when a Config fails validation.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrInternal signals a broken invariant. It should be unreachable; it
	// exists so such conditions are surfaced rather than causing a panic.
	ErrInternal = errors.New("internal invariant violated")
)

// IndexError wraps a sentinel error with the operation that produced it.
type IndexError struct {
	Op  string
	Err error
}

func (e *IndexError) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("progindex: %v", e.Err)
	}
	return fmt.Sprintf("progindex: %s: %v", e.Op, e.Err)
}

func (e *IndexError) Unwrap() error {
	return e.Err
}

func (e *IndexError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// wrapError attaches operation context to err. Returns nil if err is nil.
func wrapError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &IndexError{Op: op, Err: err}
}