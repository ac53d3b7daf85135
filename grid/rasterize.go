package grid

import (
	"github.com/chewxy/math32"
	"github.com/nvr-ai/go-bev/common"
	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

const (
	// DefaultSize is the grid resolution: 800x800 cells.
	DefaultSize = 800
	// DefaultScale is the number of cells per metre.
	DefaultScale = 10
	// DefaultOffset moves the ego vehicle to the grid midpoint.
	DefaultOffset = 400
	// Background is the label of cells not covered by any box.
	Background = 9
)

// OutOfRangePolicy selects how boxes reaching past the grid edge are handled.
type OutOfRangePolicy string

const (
	// ClampOutOfRange stamps only the part of a box inside the grid.
	ClampOutOfRange OutOfRangePolicy = "clamp"
	// RejectOutOfRange fails with common.ErrOutOfRange.
	RejectOutOfRange OutOfRangePolicy = "reject"
)

// Config holds the world-to-grid transform and grid layout.
type Config struct {
	// Size is the grid height and width in cells.
	Size int `json:"size" yaml:"size"`
	// Scale multiplies world coordinates (cells per metre).
	Scale float32 `json:"scale" yaml:"scale"`
	// Offset is added after scaling.
	Offset float32 `json:"offset" yaml:"offset"`
	// Background fills cells no box covers.
	Background int `json:"background" yaml:"background"`
	// Policy decides what happens to boxes leaving the grid.
	Policy OutOfRangePolicy `json:"policy" yaml:"policy"`
}

// DefaultConfig returns the 80 m square view at 10 cells per metre.
func DefaultConfig() Config {
	return Config{
		Size:       DefaultSize,
		Scale:      DefaultScale,
		Offset:     DefaultOffset,
		Background: Background,
		Policy:     ClampOutOfRange,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.Size <= 0 {
		return common.Configf("grid size must be positive, got %d", c.Size)
	}
	if c.Scale == 0 || math32.IsNaN(c.Scale) || math32.IsInf(c.Scale, 0) {
		return common.Configf("grid scale must be finite and non-zero, got %v", c.Scale)
	}
	switch c.Policy {
	case ClampOutOfRange, RejectOutOfRange:
	default:
		return common.Configf("unknown out-of-range policy %q", c.Policy)
	}
	return nil
}

// Rasterizer converts box annotations into labeled occupancy grids.
type Rasterizer struct {
	cfg Config
}

// NewRasterizer creates a rasterizer.
//
// Arguments:
//   - cfg: The grid configuration. An empty Policy defaults to ClampOutOfRange.
//
// Returns:
//   - *Rasterizer: The rasterizer.
//   - error: common.ErrConfiguration if cfg is invalid.
func NewRasterizer(cfg Config) (*Rasterizer, error) {
	if cfg.Policy == "" {
		cfg.Policy = ClampOutOfRange
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Rasterizer{cfg: cfg}, nil
}

// Config returns the rasterizer configuration.
func (r *Rasterizer) Config() Config {
	return r.cfg
}

// BoxRect returns the axis-aligned rectangle a box covers in grid space, before the
// vertical mirroring applied when stamping.
//
// Every corner goes through grid = coord*Scale + Offset. Columns come from x, rows from y;
// the lower bound is the floor of the minimum and the upper bound the ceiling of the
// maximum, so any cell the box touches is covered.
//
// Arguments:
//   - box: The box to transform.
//
// Returns:
//   - Rect: Columns [X1, X2) and unmirrored rows [Y1, Y2).
//   - error: common.ErrConfiguration if the box has no corners.
func (r *Rasterizer) BoxRect(box Box) (Rect, error) {
	if len(box.Corners) == 0 {
		return Rect{}, common.Configf("box of category %d has no corners", box.Category)
	}
	minX, minY := math32.Inf(1), math32.Inf(1)
	maxX, maxY := math32.Inf(-1), math32.Inf(-1)
	for _, p := range box.Corners {
		x := p.X*r.cfg.Scale + r.cfg.Offset
		y := p.Y*r.cfg.Scale + r.cfg.Offset
		minX, maxX = math32.Min(minX, x), math32.Max(maxX, x)
		minY, maxY = math32.Min(minY, y), math32.Max(maxY, y)
	}
	return Rect{
		X1: int(math32.Floor(minX)),
		Y1: int(math32.Floor(minY)),
		X2: int(math32.Ceil(maxX)),
		Y2: int(math32.Ceil(maxY)),
	}, nil
}

// Rasterize stamps every box of an annotation into a fresh grid filled with the
// background label.
//
// Row i of a box rectangle lands on grid row (Size - i) mod Size, i.e. rows are counted
// from the end of the axis and row 0 stays row 0. Boxes are applied in input order, so a
// later box overwrites an earlier one where they overlap.
//
// Arguments:
//   - annotation: The boxes of one sample.
//
// Returns:
//   - *Grid: A Size x Size grid.
//   - error: common.ErrOutOfRange under RejectOutOfRange when a box leaves the grid, or
//     common.ErrConfiguration for a box without corners.
func (r *Rasterizer) Rasterize(annotation Annotation) (*Grid, error) {
	size := r.cfg.Size
	g := NewGrid(size, size, r.cfg.Background)
	bounds := g.Bounds()

	for idx, box := range annotation.Boxes {
		rect, err := r.BoxRect(box)
		if err != nil {
			return nil, errors.Wrapf(err, "box %d", idx)
		}
		if !rect.In(bounds) {
			if r.cfg.Policy == RejectOutOfRange {
				return nil, errors.Wrapf(common.ErrOutOfRange,
					"box %d covers cols [%d,%d) rows [%d,%d), grid is %dx%d",
					idx, rect.X1, rect.X2, rect.Y1, rect.Y2, size, size)
			}
			rect = rect.Intersect(bounds)
		}
		if rect.Empty() {
			continue
		}
		for i := rect.Y1; i < rect.Y2; i++ {
			row := (size - i) % size
			base := row * size
			for j := rect.X1; j < rect.X2; j++ {
				g.Cells[base+j] = box.Category
			}
		}
	}
	return g, nil
}

// RasterizeBatch rasterizes one annotation per sample and stacks the grids.
//
// Returns:
//   - *tensor.Dense: A (B, Size, Size) int tensor.
//   - error: Any rasterization error, or common.ErrConfiguration for an empty batch.
func (r *Rasterizer) RasterizeBatch(annotations []Annotation) (*tensor.Dense, error) {
	grids := make([]*Grid, len(annotations))
	for i, a := range annotations {
		g, err := r.Rasterize(a)
		if err != nil {
			return nil, errors.Wrapf(err, "sample %d", i)
		}
		grids[i] = g
	}
	return Stack(grids)
}
