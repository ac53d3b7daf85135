package evaluation

import (
	"github.com/nvr-ai/go-bev/common"
	"gorgonia.org/tensor"
)

// StackCameras turns sample-major camera images into camera-major batches.
//
// samples[s][c] is the (3, H, W) image of camera c in sample s. The result holds one
// (B, 3, H, W) tensor per camera, where B is len(samples).
//
// Arguments:
//   - samples: The per-sample camera images.
//   - camerasPerSample: The number of cameras every sample must carry.
//
// Returns:
//   - []*tensor.Dense: camerasPerSample stacks, in camera order.
//   - error: common.ErrConfiguration on an empty batch, a wrong camera count, a non-float32
//     image or a shape that differs from the first sample's camera.
func StackCameras(samples [][]*tensor.Dense, camerasPerSample int) ([]*tensor.Dense, error) {
	if camerasPerSample <= 0 {
		return nil, common.Configf("cameras per sample must be positive, got %d", camerasPerSample)
	}
	if len(samples) == 0 {
		return nil, common.Configf("cannot stack an empty batch")
	}
	for s, cams := range samples {
		if len(cams) != camerasPerSample {
			return nil, common.Configf("sample %d has %d cameras, expected %d", s, len(cams), camerasPerSample)
		}
	}

	stacks := make([]*tensor.Dense, camerasPerSample)
	for c := 0; c < camerasPerSample; c++ {
		first := samples[0][c]
		if first == nil {
			return nil, common.Configf("sample 0 camera %d is missing", c)
		}
		shape := first.Shape().Clone()
		per := shape.TotalSize()
		data := make([]float32, 0, per*len(samples))
		for s := range samples {
			img := samples[s][c]
			if img == nil || !img.Shape().Eq(shape) {
				return nil, common.Configf("sample %d camera %d does not match shape %v", s, c, shape)
			}
			src, ok := img.Data().([]float32)
			if !ok {
				return nil, common.Configf("sample %d camera %d: expected float32, got %v", s, c, img.Dtype())
			}
			data = append(data, src...)
		}
		stacks[c] = tensor.New(tensor.WithShape(append([]int{len(samples)}, shape...)...), tensor.WithBacking(data))
	}
	return stacks, nil
}

// StackMasks stacks (H, W) bool masks into a (B, H, W) tensor.
func StackMasks(masks []*tensor.Dense) (*tensor.Dense, error) {
	if len(masks) == 0 {
		return nil, common.Configf("cannot stack an empty batch")
	}
	if masks[0] == nil || masks[0].Dims() != 2 {
		return nil, common.Configf("road masks must be (H, W)")
	}
	shape := masks[0].Shape().Clone()
	data := make([]bool, 0, shape.TotalSize()*len(masks))
	for i, m := range masks {
		if m == nil || !m.Shape().Eq(shape) {
			return nil, common.Configf("road mask %d does not match shape %v", i, shape)
		}
		src, ok := m.Data().([]bool)
		if !ok {
			return nil, common.Configf("road mask %d: expected bool, got %v", i, m.Dtype())
		}
		data = append(data, src...)
	}
	return tensor.New(tensor.WithShape(len(masks), shape[0], shape[1]), tensor.WithBacking(data)), nil
}
