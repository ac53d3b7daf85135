// Package grid - Bird's-eye-view occupancy grids and bounding-box rasterization.
package grid

import (
	"github.com/nvr-ai/go-bev/common"
)

// Point is a corner position in the ego-centred world frame, in metres.
type Point struct {
	X float32 `json:"x" yaml:"x"`
	Y float32 `json:"y" yaml:"y"`
}

// Box is one labeled polygon of an annotation, usually the four corners of an object
// footprint seen from above.
type Box struct {
	// Category is the object class stamped into the grid.
	Category int `json:"category" yaml:"category"`
	// Corners are the polygon vertices in world coordinates.
	Corners []Point `json:"corners" yaml:"corners"`
}

// Annotation holds every labeled box of one sample.
type Annotation struct {
	Boxes []Box `json:"boxes" yaml:"boxes"`
}

// NewBox builds a box from separate x and y coordinate rows, the layout used by the
// dataset CSVs (fl, fr, bl, br per axis).
//
// Arguments:
//   - xs: The x coordinate of each corner.
//   - ys: The y coordinate of each corner.
//   - category: The object class.
//
// Returns:
//   - Box: The box.
//   - error: common.ErrConfiguration if the rows are empty or differ in length.
func NewBox(xs, ys []float32, category int) (Box, error) {
	if len(xs) == 0 || len(xs) != len(ys) {
		return Box{}, common.Configf("box needs matching non-empty corner rows, got %d x and %d y", len(xs), len(ys))
	}
	corners := make([]Point, len(xs))
	for i := range xs {
		corners[i] = Point{X: xs[i], Y: ys[i]}
	}
	return Box{Category: category, Corners: corners}, nil
}
