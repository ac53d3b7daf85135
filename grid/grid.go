package grid

import (
	"github.com/nvr-ai/go-bev/common"
	"gorgonia.org/tensor"
)

// Grid is a row-major labeled occupancy grid.
type Grid struct {
	Height int
	Width  int
	Cells  []int
}

// NewGrid allocates a grid with every cell set to fill.
func NewGrid(height, width, fill int) *Grid {
	cells := make([]int, height*width)
	if fill != 0 {
		for i := range cells {
			cells[i] = fill
		}
	}
	return &Grid{Height: height, Width: width, Cells: cells}
}

// At returns the label at (row, col).
func (g *Grid) At(row, col int) int {
	return g.Cells[row*g.Width+col]
}

// Set writes label at (row, col).
func (g *Grid) Set(row, col, label int) {
	g.Cells[row*g.Width+col] = label
}

// Bounds returns the rectangle covering the whole grid.
func (g *Grid) Bounds() Rect {
	return Rect{X2: g.Width, Y2: g.Height}
}

// Count returns the number of cells holding label.
func (g *Grid) Count(label int) int {
	n := 0
	for _, c := range g.Cells {
		if c == label {
			n++
		}
	}
	return n
}

// Dense returns the grid as a (Height, Width) int tensor sharing no memory with g.
func (g *Grid) Dense() *tensor.Dense {
	backing := make([]int, len(g.Cells))
	copy(backing, g.Cells)
	return tensor.New(tensor.WithShape(g.Height, g.Width), tensor.WithBacking(backing))
}

// FromDense copies a (Height, Width) int tensor into a grid.
//
// Arguments:
//   - t: A 2-D tensor of int labels.
//
// Returns:
//   - *Grid: The grid.
//   - error: common.ErrConfiguration if t is not a 2-D int tensor.
func FromDense(t *tensor.Dense) (*Grid, error) {
	shape := t.Shape()
	if len(shape) != 2 {
		return nil, common.Configf("grid tensor must be 2-D, got shape %v", shape)
	}
	data, ok := t.Data().([]int)
	if !ok {
		return nil, common.Configf("grid tensor must hold int labels, got %v", t.Dtype())
	}
	cells := make([]int, len(data))
	copy(cells, data)
	return &Grid{Height: shape[0], Width: shape[1], Cells: cells}, nil
}

// Stack concatenates same-shape grids into a (B, Height, Width) int tensor.
//
// Arguments:
//   - grids: The grids to stack, in batch order.
//
// Returns:
//   - *tensor.Dense: The stacked labels.
//   - error: common.ErrConfiguration if grids is empty or the shapes differ.
func Stack(grids []*Grid) (*tensor.Dense, error) {
	if len(grids) == 0 {
		return nil, common.Configf("cannot stack zero grids")
	}
	h, w := grids[0].Height, grids[0].Width
	backing := make([]int, 0, len(grids)*h*w)
	for i, g := range grids {
		if g.Height != h || g.Width != w {
			return nil, common.Configf("grid %d is %dx%d, expected %dx%d", i, g.Height, g.Width, h, w)
		}
		backing = append(backing, g.Cells...)
	}
	return tensor.New(tensor.WithShape(len(grids), h, w), tensor.WithBacking(backing)), nil
}
