// Package common - Error taxonomy shared by the sampler, rasterizer, metrics and evaluator.
package common

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrConfiguration reports an invalid setting or a precondition violation such as a
	// non-positive batch size, a non-positive class count or mismatched tensor shapes.
	ErrConfiguration = errors.New("configuration error")

	// ErrOutOfRange reports a rasterized box rectangle that leaves the occupancy grid.
	ErrOutOfRange = errors.New("annotation out of range")
)

// Configf returns an error matching ErrConfiguration with a formatted detail message.
//
// Arguments:
//   - format: The detail format string.
//   - args: The format arguments.
//
// Returns:
//   - error: An error for which errors.Is(err, ErrConfiguration) holds.
func Configf(format string, args ...interface{}) error {
	return errors.Wrapf(ErrConfiguration, format, args...)
}

// InferenceMode names the model entry point that failed.
type InferenceMode string

const (
	// InferenceLane is the road/lane segmentation head.
	InferenceLane InferenceMode = "lane"
	// InferenceBoxes is the bounding-box classification head.
	InferenceBoxes InferenceMode = "boxes"
)

// InferenceError wraps a failure raised by the model. The cause is kept intact and is
// reachable through Unwrap and errors.Cause.
type InferenceError struct {
	Mode  InferenceMode
	Batch int
	Err   error
}

func (e *InferenceError) Error() string {
	return fmt.Sprintf("%s inference failed on batch %d: %v", e.Mode, e.Batch, e.Err)
}

// Unwrap returns the model error.
func (e *InferenceError) Unwrap() error { return e.Err }

// Cause returns the model error for github.com/pkg/errors.Cause.
func (e *InferenceError) Cause() error { return e.Err }
