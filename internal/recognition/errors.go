package recognition

import (
	"errors"
	"fmt"
)

var (
	// ErrInitializationTimeout is returned when the process does not acknowledge the probe in time.
	ErrInitializationTimeout = errors.New("recognition process did not acknowledge within the init timeout")
	// ErrNotReady is returned by Detect before a successful Initialize or after a fault.
	ErrNotReady = errors.New("recognition gateway is not initialized")
	// ErrBusy is returned when another request is outstanding. The frame is dropped.
	ErrBusy = errors.New("recognition gateway is busy")
)

// ProcessError reports a failure of the recognition process or its channel.
// The process has been torn down when this error is returned.
type ProcessError struct {
	Op  string
	Err error
}

func (e *ProcessError) Error() string {
	return fmt.Sprintf("recognition process %s: %v", e.Op, e.Err)
}

func (e *ProcessError) Unwrap() error {
	return e.Err
}

// DetectionError is a failure reply from the process. The process stays up.
type DetectionError struct {
	Message string
}

func (e *DetectionError) Error() string {
	if e.Message == "" {
		return "face detection failed"
	}
	return "face detection failed: " + e.Message
}
