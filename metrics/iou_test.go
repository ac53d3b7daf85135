package metrics

import (
	"testing"

	"github.com/nvr-ai/go-bev/common"
	"github.com/nvr-ai/go-bev/grid"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorgonia.org/tensor"
)

// naiveMeanIoU mirrors the metric definition class by class.
func naiveMeanIoU(labels, predictions []int, nClasses int, mode IoUMode) float64 {
	present := func(v, c int) bool {
		if mode == ClassIoU {
			return v == c
		}
		return v != c
	}
	sum := 0.0
	seen := 0
	for c := 0; c < nClasses; c++ {
		var l, p, both int
		for i := range labels {
			lc, pc := present(labels[i], c), present(predictions[i], c)
			if lc {
				l++
			}
			if pc {
				p++
			}
			if lc && pc {
				both++
			}
		}
		if l > 0 || p > 0 {
			seen++
			sum += float64(both) / float64(l+p-both)
		}
	}
	if seen == 0 {
		return 0
	}
	return sum / float64(seen)
}

func TestMeanIoU_Identical(t *testing.T) {
	labels := []int{0, 1, 2, 9, 9, 3, 3, 9}
	for _, mode := range []IoUMode{ComplementIoU, ClassIoU} {
		t.Run(string(mode), func(t *testing.T) {
			iou, err := MeanIoU(labels, labels, DefaultClasses, mode)
			require.NoError(t, err)
			assert.InDelta(t, 1.0, iou, 1e-12)
		})
	}
}

func TestMeanIoU_ComplementSemantics(t *testing.T) {
	// Labels only use class 1, predictions only use class 2.
	labels := []int{1, 1, 1, 1}
	predictions := []int{2, 2, 2, 2}

	t.Run("Complement", func(t *testing.T) {
		// Class 1: labels present nowhere, predictions present everywhere -> IoU 0.
		// Class 2: labels everywhere, predictions nowhere -> IoU 0.
		// Every other class: both present everywhere -> IoU 1 (8 classes).
		iou, err := MeanIoU(labels, predictions, 10, ComplementIoU)
		require.NoError(t, err)
		assert.InDelta(t, 8.0/10.0, iou, 1e-12)
	})

	t.Run("Class", func(t *testing.T) {
		// Only classes 1 and 2 are seen, each with IoU 0.
		iou, err := MeanIoU(labels, predictions, 10, ClassIoU)
		require.NoError(t, err)
		assert.Equal(t, 0.0, iou)
	})
}

func TestMeanIoU_AgainstDefinition(t *testing.T) {
	labels := []int{9, 9, 1, 1, 2, 2, 2, 9, 0, 4, 4, 9}
	predictions := []int{9, 1, 1, 2, 2, 2, 9, 9, 0, 0, 4, 11}

	for _, mode := range []IoUMode{ComplementIoU, ClassIoU} {
		for _, n := range []int{1, 3, 10, 12} {
			got, err := MeanIoU(labels, predictions, n, mode)
			require.NoError(t, err)
			assert.InDelta(t, naiveMeanIoU(labels, predictions, n, mode), got, 1e-12, "mode=%s n=%d", mode, n)
		}
	}
}

func TestMeanIoU_NoSeenClasses(t *testing.T) {
	// Class mode with labels outside [0, n) sees nothing.
	iou, err := MeanIoU([]int{9, 9}, []int{9, 9}, 3, ClassIoU)
	require.NoError(t, err)
	assert.Equal(t, 0.0, iou)

	iou, err = MeanIoU(nil, nil, DefaultClasses, ComplementIoU)
	require.NoError(t, err)
	assert.Equal(t, 0.0, iou)
}

func TestMeanIoU_Errors(t *testing.T) {
	tests := []struct {
		name        string
		labels      []int
		predictions []int
		n           int
		mode        IoUMode
	}{
		{"Length mismatch", []int{1, 2}, []int{1}, 10, ComplementIoU},
		{"Zero classes", []int{1}, []int{1}, 0, ComplementIoU},
		{"Negative classes", []int{1}, []int{1}, -3, ClassIoU},
		{"Unknown mode", []int{1}, []int{1}, 10, "dice"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := MeanIoU(tt.labels, tt.predictions, tt.n, tt.mode)
			assert.True(t, errors.Is(err, common.ErrConfiguration))
		})
	}
}

func TestGridIoU(t *testing.T) {
	a := grid.NewGrid(4, 4, grid.Background)
	a.Set(1, 1, 3)

	iou, err := GridIoU(a, a, DefaultClasses, "")
	require.NoError(t, err)
	assert.InDelta(t, 1.0, iou, 1e-12)

	_, err = GridIoU(a, grid.NewGrid(4, 5, grid.Background), DefaultClasses, ComplementIoU)
	assert.True(t, errors.Is(err, common.ErrConfiguration))
}

func TestDenseIoU(t *testing.T) {
	labels := tensor.New(tensor.WithShape(2, 2, 2), tensor.WithBacking([]int{9, 9, 1, 1, 9, 2, 2, 9}))
	same := tensor.New(tensor.WithShape(2, 2, 2), tensor.WithBacking([]int{9, 9, 1, 1, 9, 2, 2, 9}))

	iou, err := DenseIoU(labels, same, DefaultClasses, ComplementIoU)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, iou, 1e-12)

	other := tensor.New(tensor.WithShape(2, 4), tensor.WithBacking([]int{9, 9, 1, 1, 9, 2, 2, 9}))
	_, err = DenseIoU(labels, other, DefaultClasses, ComplementIoU)
	assert.True(t, errors.Is(err, common.ErrConfiguration))

	floats := tensor.New(tensor.WithShape(2, 2, 2), tensor.WithBacking(make([]float32, 8)))
	_, err = DenseIoU(labels, floats, DefaultClasses, ComplementIoU)
	assert.True(t, errors.Is(err, common.ErrConfiguration))
}
