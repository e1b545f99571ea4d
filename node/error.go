package node

import "fmt"

type constError string

func (e constError) Error() string { return string(e) }

const (
	// ErrNoProducer is returned by Instance.Frame when called with a nil Producer.
	ErrNoProducer = constError("node: no producer")
	// ErrInvalidFrame is returned by Instance.Frame for negative frame numbers.
	ErrInvalidFrame = constError("node: invalid frame number")
	// ErrEngine wraps errors returned by Engine.CreateFilter.
	ErrEngine = constError("node: engine rejected filter")
)

// FrameError reports a failure to produce upstream frame N.
// The producer's error is kept as is and reachable with errors.Is/As.
type FrameError struct {
	N   int
	Err error
}

func (e *FrameError) Error() string { return fmt.Sprintf("node: frame %d: %v", e.N, e.Err) }

func (e *FrameError) Unwrap() error { return e.Err }
