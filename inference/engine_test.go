package inference

import (
	"testing"
	"time"

	"github.com/cyclopcam/logs"
	"github.com/nvr-ai/go-bev/common"
	"github.com/nvr-ai/go-bev/inference/providers"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"gorgonia.org/tensor"
)

func testHead(cameras int) HeadConfig {
	inputs := make([]string, cameras)
	for i := range inputs {
		inputs[i] = "image"
	}
	return HeadConfig{Path: "bev.onnx", Inputs: inputs, Output: "scores", Channels: 10}
}

func TestHeadConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(h *HeadConfig)
		wantErr bool
	}{
		{"Valid", func(h *HeadConfig) {}, false},
		{"No path", func(h *HeadConfig) { h.Path = "" }, true},
		{"Wrong input count", func(h *HeadConfig) { h.Inputs = h.Inputs[:2] }, true},
		{"No output", func(h *HeadConfig) { h.Output = "" }, true},
		{"Zero channels", func(h *HeadConfig) { h.Channels = 0 }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := testHead(6)
			tt.mutate(&h)
			err := h.Validate(6)
			if tt.wantErr {
				assert.True(t, errors.Is(err, common.ErrConfiguration))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestConfig_Validate(t *testing.T) {
	cfg := Config{Lane: testHead(2), Boxes: testHead(2), GridSize: 800, Provider: providers.DefaultConfig()}
	assert.NoError(t, cfg.Validate(2))

	cfg.GridSize = 0
	assert.True(t, errors.Is(cfg.Validate(2), common.ErrConfiguration))

	cfg.GridSize = 800
	assert.True(t, errors.Is(cfg.Validate(3), common.ErrConfiguration))
}

func TestModelBuilder_Errors(t *testing.T) {
	log := logs.NewTestingLog(t)

	_, err := NewModelBuilder(log).WithProvider(providers.Config{Backend: "tpu"}).
		WithGrid(800, 6).WithLaneHead(testHead(6)).WithBoxHead(testHead(6)).Build()
	assert.True(t, errors.Is(err, common.ErrConfiguration))

	_, err = NewModelBuilder(log).WithProvider(providers.DefaultConfig()).
		WithLaneHead(testHead(6)).Build()
	assert.ErrorContains(t, err, "grid must be set first")

	_, err = NewModelBuilder(log).WithProvider(providers.DefaultConfig()).
		WithGrid(800, 6).WithLaneHead(testHead(6)).Build()
	assert.ErrorContains(t, err, "both heads")

	_, err = NewModelBuilder(log).WithGrid(800, 6).WithLaneHead(testHead(6)).WithBoxHead(testHead(6)).Build()
	assert.ErrorContains(t, err, "provider not configured")

	b := NewModelBuilder(log).WithGrid(0, 6)
	assert.True(t, b.HasError())
	// The first error sticks.
	b.WithProvider(providers.Config{Backend: "tpu"})
	_, err = b.Build()
	assert.ErrorContains(t, err, "grid size and camera count")
}

func TestBatchSize(t *testing.T) {
	cam := func(b int) *tensor.Dense {
		return tensor.New(tensor.WithShape(b, 3, 2, 2), tensor.WithBacking(make([]float32, b*12)))
	}

	n, err := batchSize([]*tensor.Dense{cam(4), cam(4)}, 2)
	assert.NoError(t, err)
	assert.Equal(t, 4, n)

	_, err = batchSize([]*tensor.Dense{cam(4)}, 2)
	assert.True(t, errors.Is(err, common.ErrConfiguration))

	_, err = batchSize([]*tensor.Dense{cam(4), cam(3)}, 2)
	assert.True(t, errors.Is(err, common.ErrConfiguration))

	flat := tensor.New(tensor.WithShape(12), tensor.WithBacking(make([]float32, 12)))
	_, err = batchSize([]*tensor.Dense{flat}, 1)
	assert.True(t, errors.Is(err, common.ErrConfiguration))
}

func TestSessionStats_Mean(t *testing.T) {
	assert.Equal(t, time.Duration(0), SessionStats{}.Mean())
	assert.Equal(t, 2*time.Millisecond, SessionStats{Runs: 3, Total: 6 * time.Millisecond}.Mean())
	assert.Equal(t, []int64{2, 3, 800, 800}, int64Shape([]int{2, 3, 800, 800}))
}
