package inference

import (
	"sync"
	"time"

	"github.com/nvr-ai/go-bev/common"
	"github.com/nvr-ai/go-bev/inference/providers"
	"github.com/pkg/errors"
	ort "github.com/yalue/onnxruntime_go"
	"gorgonia.org/tensor"
)

// HeadConfig describes one ONNX graph of the BEV model.
type HeadConfig struct {
	// Path is the .onnx file.
	Path string `json:"path" yaml:"path"`
	// Inputs names one graph input per camera, in camera order.
	Inputs []string `json:"inputs" yaml:"inputs"`
	// Output is the single graph output, shaped (B, Channels, G, G).
	Output string `json:"output" yaml:"output"`
	// Channels is the channel dimension of the output.
	Channels int `json:"channels" yaml:"channels"`
}

// Validate checks the head against the expected camera count.
func (h HeadConfig) Validate(cameras int) error {
	if h.Path == "" {
		return common.Configf("model path is required")
	}
	if len(h.Inputs) != cameras {
		return common.Configf("%s: %d input names for %d cameras", h.Path, len(h.Inputs), cameras)
	}
	if h.Output == "" {
		return common.Configf("%s: output name is required", h.Path)
	}
	if h.Channels <= 0 {
		return common.Configf("%s: channels must be positive, got %d", h.Path, h.Channels)
	}
	return nil
}

// SessionStats summarizes the runs of a session.
type SessionStats struct {
	Runs  int64
	Total time.Duration
}

// Mean returns the average run time, or 0 before the first run.
func (s SessionStats) Mean() time.Duration {
	if s.Runs == 0 {
		return 0
	}
	return s.Total / time.Duration(s.Runs)
}

// Session wraps a dynamic onnxruntime session for one head. Tensors are allocated per
// call, so the batch dimension may change between runs.
type Session struct {
	session  *ort.DynamicAdvancedSession
	head     HeadConfig
	gridSize int

	mu    sync.Mutex
	stats SessionStats
}

// NewSession creates a session for a head.
//
// Arguments:
//   - head: The graph description.
//   - gridSize: The spatial size G of the output.
//   - provider: The execution provider configuration.
//
// Returns:
//   - *Session: The session.
//   - error: An error if the options or the session cannot be created.
func NewSession(head HeadConfig, gridSize int, provider providers.Config) (*Session, error) {
	options, err := providers.NewSessionOptions(provider)
	if err != nil {
		return nil, err
	}
	defer options.Destroy()

	session, err := ort.NewDynamicAdvancedSession(head.Path, head.Inputs, []string{head.Output}, options)
	if err != nil {
		return nil, errors.Wrapf(err, "error creating session for %s", head.Path)
	}

	return &Session{session: session, head: head, gridSize: gridSize}, nil
}

// Run feeds one (B, 3, H, W) float32 tensor per camera and returns the (B, Channels, G, G)
// output.
func (s *Session) Run(cameras []*tensor.Dense) (*tensor.Dense, error) {
	batch, err := batchSize(cameras, len(s.head.Inputs))
	if err != nil {
		return nil, err
	}

	inputs := make([]ort.Value, 0, len(cameras))
	defer func() {
		for _, v := range inputs {
			v.Destroy()
		}
	}()
	for i, c := range cameras {
		data, ok := c.Data().([]float32)
		if !ok {
			return nil, common.Configf("camera %d: expected float32 data, got %T", i, c.Data())
		}
		in, err := ort.NewTensor(ort.NewShape(int64Shape(c.Shape())...), data)
		if err != nil {
			return nil, errors.Wrapf(err, "error creating input tensor for camera %d", i)
		}
		inputs = append(inputs, in)
	}

	outShape := []int{batch, s.head.Channels, s.gridSize, s.gridSize}
	out, err := ort.NewEmptyTensor[float32](ort.NewShape(int64Shape(outShape)...))
	if err != nil {
		return nil, errors.Wrap(err, "error creating output tensor")
	}
	defer out.Destroy()

	start := time.Now()
	if err := s.session.Run(inputs, []ort.Value{out}); err != nil {
		return nil, errors.Wrapf(err, "error running %s", s.head.Path)
	}
	s.record(time.Since(start))

	data := append([]float32(nil), out.GetData()...)
	return tensor.New(tensor.WithShape(outShape...), tensor.WithBacking(data)), nil
}

func (s *Session) record(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats.Runs++
	s.stats.Total += d
}

// Stats returns the run counters.
func (s *Session) Stats() SessionStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// Close releases the session.
func (s *Session) Close() error {
	if s.session == nil {
		return nil
	}
	err := s.session.Destroy()
	s.session = nil
	return err
}

// batchSize checks the camera stacks and returns their common batch dimension.
func batchSize(cameras []*tensor.Dense, want int) (int, error) {
	if len(cameras) != want {
		return 0, common.Configf("expected %d camera tensors, got %d", want, len(cameras))
	}
	batch := -1
	for i, c := range cameras {
		if c == nil || c.Dims() != 4 {
			return 0, common.Configf("camera %d: expected a (B, C, H, W) tensor", i)
		}
		if batch == -1 {
			batch = c.Shape()[0]
		} else if c.Shape()[0] != batch {
			return 0, common.Configf("camera %d: batch %d, expected %d", i, c.Shape()[0], batch)
		}
	}
	return batch, nil
}

func int64Shape(shape []int) []int64 {
	out := make([]int64, len(shape))
	for i, d := range shape {
		out[i] = int64(d)
	}
	return out
}
