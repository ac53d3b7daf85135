// Package providers - Execution providers (device placement) for ONNX Runtime sessions.
package providers

import (
	"github.com/nvr-ai/go-bev/common"
	"github.com/pkg/errors"
	ort "github.com/yalue/onnxruntime_go"
)

// ProviderBackend represents an ONNX Runtime execution provider.
type ProviderBackend string

const (
	// CPUProviderBackend runs the graph on the default CPU provider.
	CPUProviderBackend ProviderBackend = "cpu"
	// CUDAProviderBackend uses NVIDIA CUDA for inference.
	CUDAProviderBackend ProviderBackend = "cuda"
)

// Config selects where sessions run. It applies uniformly to every session of a model.
type Config struct {
	// Backend is the execution provider.
	Backend ProviderBackend `json:"backend" yaml:"backend"`
	// LibraryPath overrides the onnxruntime shared library location.
	LibraryPath string `json:"library_path" yaml:"library_path"`
	// IntraOpThreads bounds parallelism inside a node (0 lets the runtime decide).
	IntraOpThreads int `json:"intra_op_threads" yaml:"intra_op_threads"`
	// InterOpThreads bounds parallelism across independent nodes (0 lets the runtime decide).
	InterOpThreads int `json:"inter_op_threads" yaml:"inter_op_threads"`
	// CUDA holds the CUDA provider options, used when Backend is "cuda".
	CUDA CUDAOptions `json:"cuda" yaml:"cuda"`
}

// DefaultConfig returns a CPU configuration.
func DefaultConfig() Config {
	return Config{Backend: CPUProviderBackend}
}

// Validate checks the backend and thread counts.
func (c Config) Validate() error {
	switch c.Backend {
	case CPUProviderBackend, CUDAProviderBackend:
	default:
		return common.Configf("unsupported provider backend %q", c.Backend)
	}
	if c.IntraOpThreads < 0 || c.InterOpThreads < 0 {
		return common.Configf("thread counts must not be negative, got intra=%d inter=%d", c.IntraOpThreads, c.InterOpThreads)
	}
	return nil
}

// NewSessionOptions builds session options for the configured provider.
//
// **The caller must Destroy the returned options once the session is created.**
//
// Arguments:
//   - cfg: The provider configuration.
//
// Returns:
//   - *ort.SessionOptions: Options with threading, graph optimization and the provider applied.
//   - error: An error if the options cannot be created or the provider cannot be enabled.
func NewSessionOptions(cfg Config) (*ort.SessionOptions, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	options, err := ort.NewSessionOptions()
	if err != nil {
		return nil, errors.Wrap(err, "error creating ORT session options")
	}

	if err := options.SetIntraOpNumThreads(cfg.IntraOpThreads); err != nil {
		options.Destroy()
		return nil, errors.Wrap(err, "error setting intra-op threads")
	}
	if err := options.SetInterOpNumThreads(cfg.InterOpThreads); err != nil {
		options.Destroy()
		return nil, errors.Wrap(err, "error setting inter-op threads")
	}
	if err := options.SetGraphOptimizationLevel(ort.GraphOptimizationLevelEnableExtended); err != nil {
		options.Destroy()
		return nil, errors.Wrap(err, "error setting graph optimization level")
	}

	if cfg.Backend == CUDAProviderBackend {
		cuda, err := cfg.CUDA.ToNativeProviderOptions()
		if err != nil {
			options.Destroy()
			return nil, errors.Wrap(err, "error converting CUDA options")
		}
		defer cuda.Destroy()
		if err := options.AppendExecutionProviderCUDA(cuda); err != nil {
			options.Destroy()
			return nil, errors.Wrap(err, "error enabling CUDA")
		}
	}

	return options, nil
}
