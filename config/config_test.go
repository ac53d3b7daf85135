package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/nvr-ai/go-bev/common"
	"github.com/nvr-ai/go-bev/evaluation"
	"github.com/nvr-ai/go-bev/inference/providers"
	"github.com/nvr-ai/go-bev/metrics"
	"github.com/nvr-ai/go-bev/models"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 800, cfg.Grid.Size)
	assert.Equal(t, 9, cfg.Grid.Background)
	assert.Equal(t, 6, cfg.Dataset.Cameras)
	assert.Equal(t, metrics.ComplementIoU, cfg.Metrics.IoUMode)

	args := cfg.ModelArgs()
	assert.Equal(t, models.ModelNameBackground, args.Name)
	assert.Equal(t, 10, args.Classes)
	assert.Equal(t, 9, args.Background)
}

const sample = `
dataset:
  root: /data/val
  cameras: 2
  image_width: 306
  image_height: 256
  batch_size: 8
  drop_last: true
  seed: 42
grid:
  size: 200
  scale: 2.5
  offset: 100
  background: 9
  policy: reject
metrics:
  iou_mode: class
  road_map: argmax
model:
  name: onnx
  onnx:
    lane:
      path: lane.onnx
      inputs: [front, back]
      output: road
      channels: 2
    boxes:
      path: boxes.onnx
      inputs: [front, back]
      output: classes
      channels: 10
    provider:
      backend: cuda
      cuda:
        deviceID: 1
report:
  dir: /tmp/out
  maps: true
  map_format: webp
`

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bev.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/data/val", cfg.Dataset.Root)
	assert.Equal(t, 2, cfg.Dataset.Cameras)
	assert.Equal(t, "CAM_", cfg.Dataset.CameraPrefix)
	assert.Equal(t, 306, cfg.Dataset.ImageWidth)
	assert.Equal(t, 8, cfg.Dataset.BatchSize)
	assert.True(t, cfg.Dataset.DropLast)
	assert.Equal(t, uint64(42), cfg.Dataset.Seed)
	assert.Equal(t, float32(2.5), cfg.Grid.Scale)
	assert.Equal(t, 200, cfg.DatasetOptions().GridSize)
	assert.Equal(t, 200, cfg.ModelArgs().ONNX.GridSize)

	opts := cfg.Evaluation()
	assert.Equal(t, metrics.ClassIoU, opts.IoUMode)
	assert.Equal(t, evaluation.RoadMapArgmax, opts.RoadMap)
	assert.Equal(t, 10, opts.Classes)
	assert.Equal(t, float32(metrics.DefaultThreshold), opts.Threshold)

	assert.Equal(t, providers.CUDAProviderBackend, cfg.Model.ONNX.Provider.Backend)
	assert.Equal(t, 1, cfg.Model.ONNX.Provider.CUDA.DeviceID)
	assert.Equal(t, []string{"front", "back"}, cfg.Model.ONNX.Boxes.Inputs)
	assert.True(t, cfg.Report.Maps)
	assert.True(t, cfg.Report.Plots)

	// The written file loads back to the same configuration.
	out := filepath.Join(t.TempDir(), "saved.yaml")
	require.NoError(t, cfg.Save(out))
	again, err := Load(out)
	require.NoError(t, err)
	assert.Equal(t, cfg, again)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("dataset: [1, 2"), 0o644))
	_, err = Load(path)
	assert.True(t, errors.Is(err, common.ErrConfiguration))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"Zero batch", func(c *Config) { c.Dataset.BatchSize = 0 }},
		{"Zero cameras", func(c *Config) { c.Dataset.Cameras = 0 }},
		{"Road map size mismatch", func(c *Config) { c.Dataset.GridSize = 400 }},
		{"Zero classes", func(c *Config) { c.Metrics.Classes = 0 }},
		{"Unknown IoU mode", func(c *Config) { c.Metrics.IoUMode = "dice" }},
		{"Bad grid", func(c *Config) { c.Grid.Scale = 0 }},
		{"No report dir", func(c *Config) { c.Report.Dir = "" }},
		{"Unknown model", func(c *Config) { c.Model.Name = "yolo" }},
		{"Model grid mismatch", func(c *Config) { c.Model.Name = models.ModelNameONNX; c.Model.ONNX.GridSize = 400 }},
		{"ONNX without heads", func(c *Config) { c.Model.Name = models.ModelNameONNX }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			assert.True(t, errors.Is(cfg.Validate(), common.ErrConfiguration))
		})
	}
}
