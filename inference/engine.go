// Package inference - ONNX Runtime backed BEV model.
package inference

import (
	"context"

	"github.com/cyclopcam/logs"
	"github.com/nvr-ai/go-bev/common"
	"github.com/nvr-ai/go-bev/inference/providers"
	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

// Config describes the two heads of the model and where they run.
type Config struct {
	// Lane is the road-map segmentation graph.
	Lane HeadConfig `json:"lane" yaml:"lane"`
	// Boxes is the per-cell class score graph.
	Boxes HeadConfig `json:"boxes" yaml:"boxes"`
	// GridSize is the spatial size of both outputs.
	GridSize int `json:"grid_size" yaml:"grid_size"`
	// Provider applies to both sessions.
	Provider providers.Config `json:"provider" yaml:"provider"`
}

// Validate checks both heads against the camera count.
func (c Config) Validate(cameras int) error {
	if c.GridSize <= 0 {
		return common.Configf("grid size must be positive, got %d", c.GridSize)
	}
	if err := c.Lane.Validate(cameras); err != nil {
		return errors.Wrap(err, "lane head")
	}
	if err := c.Boxes.Validate(cameras); err != nil {
		return errors.Wrap(err, "boxes head")
	}
	return c.Provider.Validate()
}

// ModelBuilder assembles an ONNXModel. The first error sticks and is returned by Build.
type ModelBuilder struct {
	log      logs.Log
	provider *providers.Config
	lane     *HeadConfig
	boxes    *HeadConfig
	gridSize int
	cameras  int
	err      error
}

// NewModelBuilder creates a new model builder.
//
// Arguments:
//   - log: The logger handed to the model.
//
// Returns:
//   - *ModelBuilder: The model builder.
func NewModelBuilder(log logs.Log) *ModelBuilder {
	return &ModelBuilder{log: log}
}

// WithProvider sets the execution provider for both sessions.
func (b *ModelBuilder) WithProvider(cfg providers.Config) *ModelBuilder {
	if b.HasError() {
		return b
	}
	if err := cfg.Validate(); err != nil {
		b.err = err
		return b
	}
	b.provider = &cfg
	return b
}

// WithGrid sets the output grid size and the number of cameras fed per sample.
func (b *ModelBuilder) WithGrid(size, cameras int) *ModelBuilder {
	if b.HasError() {
		return b
	}
	if size <= 0 || cameras <= 0 {
		b.err = common.Configf("grid size and camera count must be positive, got %d and %d", size, cameras)
		return b
	}
	b.gridSize = size
	b.cameras = cameras
	return b
}

// WithLaneHead sets the road-map graph.
func (b *ModelBuilder) WithLaneHead(head HeadConfig) *ModelBuilder {
	return b.withHead(&b.lane, head, "lane head")
}

// WithBoxHead sets the box classification graph.
func (b *ModelBuilder) WithBoxHead(head HeadConfig) *ModelBuilder {
	return b.withHead(&b.boxes, head, "boxes head")
}

func (b *ModelBuilder) withHead(dst **HeadConfig, head HeadConfig, name string) *ModelBuilder {
	if b.HasError() {
		return b
	}
	if b.cameras == 0 {
		b.err = common.Configf("%s: grid must be set first", name)
		return b
	}
	if err := head.Validate(b.cameras); err != nil {
		b.err = errors.Wrap(err, name)
		return b
	}
	*dst = &head
	return b
}

// HasError checks if the builder has errors.
//
// Returns:
//   - bool: True if there are errors, false otherwise.
func (b *ModelBuilder) HasError() bool {
	return b.err != nil
}

// Build loads the runtime and opens both sessions.
//
// Returns:
//   - *ONNXModel: The model.
//   - error: The first builder error, a missing part, or a runtime failure.
func (b *ModelBuilder) Build() (*ONNXModel, error) {
	if b.HasError() {
		return nil, b.err
	}
	if b.provider == nil {
		return nil, common.Configf("provider not configured")
	}
	if b.lane == nil || b.boxes == nil {
		return nil, common.Configf("both heads must be configured")
	}

	if err := providers.Initialize(*b.provider); err != nil {
		return nil, err
	}

	lane, err := NewSession(*b.lane, b.gridSize, *b.provider)
	if err != nil {
		return nil, err
	}
	boxes, err := NewSession(*b.boxes, b.gridSize, *b.provider)
	if err != nil {
		lane.Close()
		return nil, err
	}

	b.log.Infof("Loaded BEV model (lane %v, boxes %v) on %v", b.lane.Path, b.boxes.Path, b.provider.Backend)
	return &ONNXModel{log: b.log, lane: lane, boxes: boxes}, nil
}

// NewONNXModel builds a model from a configuration.
//
// Arguments:
//   - cfg: The model configuration.
//   - cameras: The number of cameras per sample.
//   - log: The logger.
//
// Returns:
//   - *ONNXModel: The model.
//   - error: An error if the configuration is invalid or a session cannot be opened.
func NewONNXModel(cfg Config, cameras int, log logs.Log) (*ONNXModel, error) {
	return NewModelBuilder(log).
		WithProvider(cfg.Provider).
		WithGrid(cfg.GridSize, cameras).
		WithLaneHead(cfg.Lane).
		WithBoxHead(cfg.Boxes).
		Build()
}

// ONNXModel runs the lane and box heads with onnxruntime.
type ONNXModel struct {
	log   logs.Log
	lane  *Session
	boxes *Session
}

// InferLane returns the (B, 1, G, G) road-map output.
func (m *ONNXModel) InferLane(ctx context.Context, cameras []*tensor.Dense) (*tensor.Dense, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return m.lane.Run(cameras)
}

// InferBoxes returns the (B, K, G, G) class scores.
func (m *ONNXModel) InferBoxes(ctx context.Context, cameras []*tensor.Dense) (*tensor.Dense, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return m.boxes.Run(cameras)
}

// Close logs the session timings and releases both sessions.
func (m *ONNXModel) Close() error {
	for name, s := range map[string]*Session{"lane": m.lane, "boxes": m.boxes} {
		st := s.Stats()
		m.log.Infof("%v head: %v runs, mean %v", name, st.Runs, st.Mean())
	}
	errLane := m.lane.Close()
	errBoxes := m.boxes.Close()
	if errLane != nil {
		return errLane
	}
	return errBoxes
}
