// Package config - YAML configuration of an evaluation run.
package config

import (
	"io"
	"os"

	"github.com/nvr-ai/go-bev/common"
	"github.com/nvr-ai/go-bev/dataset"
	"github.com/nvr-ai/go-bev/evaluation"
	"github.com/nvr-ai/go-bev/grid"
	"github.com/nvr-ai/go-bev/inference"
	"github.com/nvr-ai/go-bev/inference/providers"
	"github.com/nvr-ai/go-bev/metrics"
	"github.com/nvr-ai/go-bev/models"
	"github.com/nvr-ai/go-bev/report"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// DatasetConfig locates the samples and sets how they are batched.
type DatasetConfig struct {
	dataset.DirOptions `yaml:",inline"`
	// BatchSize is the number of samples per batch.
	BatchSize int `json:"batch_size" yaml:"batch_size"`
	// DropLast skips a trailing partial batch.
	DropLast bool `json:"drop_last" yaml:"drop_last"`
	// Seed fixes the batch order; 0 draws one from the clock.
	Seed uint64 `json:"seed" yaml:"seed"`
}

// MetricsConfig selects how predictions are scored.
type MetricsConfig struct {
	Classes   int                    `json:"classes" yaml:"classes"`
	IoUMode   metrics.IoUMode        `json:"iou_mode" yaml:"iou_mode"`
	RoadMap   evaluation.RoadMapMode `json:"road_map" yaml:"road_map"`
	Threshold float32                `json:"threshold" yaml:"threshold"`
	LogEvery  int                    `json:"log_every" yaml:"log_every"`
	KeepGrids int                    `json:"keep_grids" yaml:"keep_grids"`
}

// ModelConfig selects the model implementation.
type ModelConfig struct {
	Name models.Name      `json:"name" yaml:"name"`
	ONNX inference.Config `json:"onnx" yaml:"onnx"`
}

// Config is the whole configuration of an evaluation run.
type Config struct {
	Dataset DatasetConfig  `json:"dataset" yaml:"dataset"`
	Grid    grid.Config    `json:"grid" yaml:"grid"`
	Metrics MetricsConfig  `json:"metrics" yaml:"metrics"`
	Model   ModelConfig    `json:"model" yaml:"model"`
	Report  report.Options `json:"report" yaml:"report"`
}

// Default returns the reference setup: six cameras, 800x800 grid, ten classes, the
// background model on the CPU provider and a report in ./bev_results.
func Default() Config {
	eval := evaluation.DefaultOptions()
	return Config{
		Dataset: DatasetConfig{
			DirOptions: dataset.DirOptions{
				Cameras:      dataset.DefaultCameras,
				CameraPrefix: dataset.DefaultCameraPrefix,
			},
			BatchSize: 4,
		},
		Grid: grid.DefaultConfig(),
		Metrics: MetricsConfig{
			Classes:   eval.Classes,
			IoUMode:   eval.IoUMode,
			RoadMap:   eval.RoadMap,
			Threshold: eval.Threshold,
			LogEvery:  eval.LogEvery,
		},
		Model: ModelConfig{
			Name: models.ModelNameBackground,
			ONNX: inference.Config{
				Provider: providers.DefaultConfig(),
			},
		},
		Report: report.DefaultOptions(),
	}
}

// Load reads a YAML file over Default and validates the result.
//
// Arguments:
//   - path: The YAML file.
//
// Returns:
//   - Config: The configuration.
//   - error: A read or parse error, or common.ErrConfiguration.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, errors.Wrap(err, "failed to read config file")
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, errors.Wrapf(common.ErrConfiguration, "failed to parse %s: %v", path, err)
	}
	return cfg, cfg.Validate()
}

// Save writes the configuration as YAML.
func (c Config) Save(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "failed to create config file")
	}
	defer f.Close()
	return c.Write(f)
}

// Write encodes the configuration as YAML.
func (c Config) Write(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return errors.Wrap(err, "failed to marshal config")
	}
	return errors.Wrap(enc.Close(), "failed to write config")
}

// Validate checks every section. The dataset root is checked separately by the dataset.
func (c Config) Validate() error {
	if c.Dataset.BatchSize <= 0 {
		return common.Configf("dataset.batch_size must be positive, got %d", c.Dataset.BatchSize)
	}
	if c.Dataset.Cameras <= 0 {
		return common.Configf("dataset.cameras must be positive, got %d", c.Dataset.Cameras)
	}
	if c.Dataset.GridSize != 0 && c.Dataset.GridSize != c.Grid.Size {
		return common.Configf("dataset.grid_size %d differs from grid.size %d", c.Dataset.GridSize, c.Grid.Size)
	}
	if err := c.Evaluation().Validate(); err != nil {
		return errors.Wrap(err, "metrics")
	}
	if err := c.Report.Validate(); err != nil {
		return errors.Wrap(err, "report")
	}
	switch c.Model.Name {
	case models.ModelNameBackground:
	case models.ModelNameONNX:
		if c.Model.ONNX.GridSize != 0 && c.Model.ONNX.GridSize != c.Grid.Size {
			return common.Configf("model.onnx.grid_size %d differs from grid.size %d", c.Model.ONNX.GridSize, c.Grid.Size)
		}
		if err := c.ModelArgs().ONNX.Validate(c.Dataset.Cameras); err != nil {
			return errors.Wrap(err, "model")
		}
	default:
		return common.Configf("unsupported model name %q", c.Model.Name)
	}
	return nil
}

// Evaluation returns the evaluator options.
func (c Config) Evaluation() evaluation.Options {
	return evaluation.Options{
		Cameras:   c.Dataset.Cameras,
		Grid:      c.Grid,
		Classes:   c.Metrics.Classes,
		IoUMode:   c.Metrics.IoUMode,
		RoadMap:   c.Metrics.RoadMap,
		Threshold: c.Metrics.Threshold,
		LogEvery:  c.Metrics.LogEvery,
		KeepGrids: c.Metrics.KeepGrids,
	}
}

// DatasetOptions returns the dataset options with road maps sized to the grid unless a
// size was set explicitly.
func (c Config) DatasetOptions() dataset.DirOptions {
	opts := c.Dataset.DirOptions
	if opts.GridSize == 0 {
		opts.GridSize = c.Grid.Size
	}
	return opts
}

// ModelArgs returns the arguments for models.NewModel. The ONNX output size follows the
// grid unless set explicitly.
func (c Config) ModelArgs() models.NewModelArgs {
	onnx := c.Model.ONNX
	if onnx.GridSize == 0 {
		onnx.GridSize = c.Grid.Size
	}
	return models.NewModelArgs{
		Name:       c.Model.Name,
		Cameras:    c.Dataset.Cameras,
		GridSize:   c.Grid.Size,
		Classes:    c.Metrics.Classes,
		Background: c.Grid.Background,
		ONNX:       onnx,
	}
}
