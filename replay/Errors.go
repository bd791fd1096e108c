package replay

import "errors"

// BufferError implements errors unique to a replay buffer.
type BufferError struct {
	Op  string
	Err error
}

// Error satisfies the error interface
func (e *BufferError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

// Unwrap returns the underlying sentinel error
func (e *BufferError) Unwrap() error {
	return e.Err
}

var errInsufficientExperience = errors.New("fewer stored transitions " +
	"than batch size")

var errIndexOutOfRange = errors.New("index refers to a slot never written " +
	"or already overwritten")

var errInvalidPriorityMode = errors.New("invalid priority sampling mode")

// IsInsufficientExperience returns whether an error reports that there
// are too few stored transitions to draw a full batch. The caller
// should not sample before enough experience has accumulated, so
// seeing this error indicates a protocol violation in the training
// loop.
func IsInsufficientExperience(err error) bool {
	return errors.Is(err, errInsufficientExperience)
}

// IsIndexOutOfRange returns whether an error reports retrieval of an
// index outside the valid range of the transition store. This is a
// logic fault in the surrounding loop, not expected data absence.
func IsIndexOutOfRange(err error) bool {
	return errors.Is(err, errIndexOutOfRange)
}

// IsInvalidPriorityMode returns whether an error reports an
// unrecognized priority sampling mode.
func IsInvalidPriorityMode(err error) bool {
	return errors.Is(err, errInvalidPriorityMode)
}
