package models

import (
	"context"

	"github.com/nvr-ai/go-bev/common"
	"gorgonia.org/tensor"
)

// BackgroundModel is a baseline that never predicts road and assigns every cell to the
// background class. Scoring it gives the floor a trained model has to beat.
type BackgroundModel struct {
	gridSize   int
	classes    int
	background int
}

// NewBackgroundModel creates a baseline model.
//
// Arguments:
//   - gridSize: The output grid size G.
//   - classes: The number of box classes K.
//   - background: The class index set to 1 in every cell.
//
// Returns:
//   - *BackgroundModel: The model.
//   - error: ErrConfiguration if a size is not positive or background is not a class.
func NewBackgroundModel(gridSize, classes, background int) (*BackgroundModel, error) {
	if gridSize <= 0 || classes <= 0 {
		return nil, common.Configf("grid size and classes must be positive, got %d and %d", gridSize, classes)
	}
	if background < 0 || background >= classes {
		return nil, common.Configf("background class %d outside [0, %d)", background, classes)
	}
	return &BackgroundModel{gridSize: gridSize, classes: classes, background: background}, nil
}

func (m *BackgroundModel) batch(cameras []*tensor.Dense) (int, error) {
	if len(cameras) == 0 || cameras[0] == nil || cameras[0].Dims() == 0 {
		return 0, common.Configf("no camera tensors")
	}
	return cameras[0].Shape()[0], nil
}

// InferLane returns all-zero road scores.
func (m *BackgroundModel) InferLane(ctx context.Context, cameras []*tensor.Dense) (*tensor.Dense, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b, err := m.batch(cameras)
	if err != nil {
		return nil, err
	}
	g := m.gridSize
	return tensor.New(tensor.WithShape(b, 1, g, g), tensor.WithBacking(make([]float32, b*g*g))), nil
}

// InferBoxes returns one-hot background scores.
func (m *BackgroundModel) InferBoxes(ctx context.Context, cameras []*tensor.Dense) (*tensor.Dense, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b, err := m.batch(cameras)
	if err != nil {
		return nil, err
	}
	cells := m.gridSize * m.gridSize
	data := make([]float32, b*m.classes*cells)
	for s := 0; s < b; s++ {
		plane := data[(s*m.classes+m.background)*cells:][:cells]
		for i := range plane {
			plane[i] = 1
		}
	}
	return tensor.New(tensor.WithShape(b, m.classes, m.gridSize, m.gridSize), tensor.WithBacking(data)), nil
}
