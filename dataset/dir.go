package dataset

import (
	"context"
	"os"
	"path/filepath"

	"github.com/cyclopcam/logs"
	"github.com/nfnt/resize"
	"github.com/nvr-ai/go-bev/common"
	"github.com/nvr-ai/go-bev/grid"
	"github.com/nvr-ai/go-bev/images"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
	"gorgonia.org/tensor"
)

const (
	// RoadMapFile is the road-map ground truth inside a sample directory.
	RoadMapFile = "road_map.png"
	// BoxesFile is the box annotation inside a sample directory.
	BoxesFile = "boxes.yaml"
	// DefaultCameraPrefix selects the camera frames of a sample directory.
	DefaultCameraPrefix = "CAM_"
	// DefaultCameras is the number of cameras of the rig.
	DefaultCameras = 6
)

// DirOptions configures a DirDataset.
type DirOptions struct {
	// Root holds one directory per scene, each holding one directory per sample.
	Root string `json:"root" yaml:"root"`
	// Cameras is the number of frames expected per sample.
	Cameras int `json:"cameras" yaml:"cameras"`
	// CameraPrefix selects camera frames by file name.
	CameraPrefix string `json:"camera_prefix" yaml:"camera_prefix"`
	// ImageWidth and ImageHeight resize camera frames; 0 keeps the stored size.
	ImageWidth  int `json:"image_width" yaml:"image_width"`
	ImageHeight int `json:"image_height" yaml:"image_height"`
	// GridSize resizes the road map; 0 keeps the stored size.
	GridSize int `json:"grid_size" yaml:"grid_size"`
}

// Validate checks the options.
func (o DirOptions) Validate() error {
	if o.Root == "" {
		return common.Configf("dataset root is required")
	}
	if o.Cameras <= 0 {
		return common.Configf("cameras must be positive, got %d", o.Cameras)
	}
	if o.ImageWidth < 0 || o.ImageHeight < 0 || o.GridSize < 0 {
		return common.Configf("sizes must not be negative")
	}
	return nil
}

type sampleDir struct {
	scene  string
	sample string
	path   string
}

// DirDataset reads samples laid out as <root>/<scene>/<sample>/ with the camera frames,
// RoadMapFile and BoxesFile. Samples are ordered by scene then sample name.
type DirDataset struct {
	log     logs.Log
	opts    DirOptions
	samples []sampleDir
}

// NewDirDataset scans the root directory.
//
// Arguments:
//   - opts: The dataset options.
//   - log: The logger.
//
// Returns:
//   - *DirDataset: The dataset.
//   - error: An error if the options are invalid or the root cannot be listed.
func NewDirDataset(opts DirOptions, log logs.Log) (*DirDataset, error) {
	if opts.CameraPrefix == "" {
		opts.CameraPrefix = DefaultCameraPrefix
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	scenes, err := subdirs(opts.Root)
	if err != nil {
		return nil, err
	}
	d := &DirDataset{log: log, opts: opts}
	for _, scene := range scenes {
		samples, err := subdirs(filepath.Join(opts.Root, scene))
		if err != nil {
			return nil, err
		}
		for _, s := range samples {
			d.samples = append(d.samples, sampleDir{scene: scene, sample: s, path: filepath.Join(opts.Root, scene, s)})
		}
	}
	log.Infof("Found %v samples in %v scenes under %v", len(d.samples), len(scenes), opts.Root)
	return d, nil
}

// Len returns the number of samples.
func (d *DirDataset) Len() int {
	return len(d.samples)
}

// Get loads sample i from disk.
func (d *DirDataset) Get(ctx context.Context, i int) (*Sample, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if i < 0 || i >= len(d.samples) {
		return nil, common.Configf("sample index %d outside [0, %d)", i, len(d.samples))
	}
	dir := d.samples[i]

	cameras, err := d.loadCameras(dir.path)
	if err != nil {
		return nil, err
	}
	road, err := d.loadRoadMap(filepath.Join(dir.path, RoadMapFile))
	if err != nil {
		return nil, err
	}
	target, err := LoadAnnotation(filepath.Join(dir.path, BoxesFile))
	if err != nil {
		return nil, err
	}

	return &Sample{
		Cameras:   cameras,
		Target:    target,
		RoadImage: road,
		Extra: map[string]any{
			"scene":  dir.scene,
			"sample": dir.sample,
			"path":   dir.path,
		},
	}, nil
}

func (d *DirDataset) loadCameras(dir string) ([]*tensor.Dense, error) {
	files, err := LoadDirectoryImageFiles(dir, d.opts.CameraPrefix)
	if err != nil {
		return nil, err
	}
	if len(files) != d.opts.Cameras {
		return nil, common.Configf("%s: found %d camera frames, expected %d", dir, len(files), d.opts.Cameras)
	}
	out := make([]*tensor.Dense, len(files))
	for i, f := range files {
		img, err := images.DecodeResized(f.Data, f.Format, d.opts.ImageWidth, d.opts.ImageHeight, resize.Lanczos3)
		if err != nil {
			return nil, errors.Wrap(err, f.Path)
		}
		out[i] = images.ToCHW(img)
	}
	return out, nil
}

func (d *DirDataset) loadRoadMap(path string) (*tensor.Dense, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read %s", path)
	}
	format, ok := images.FormatFromPath(path)
	if !ok {
		return nil, common.Configf("%s: not an image", path)
	}
	img, err := images.DecodeResized(data, format, d.opts.GridSize, d.opts.GridSize, resize.NearestNeighbor)
	if err != nil {
		return nil, errors.Wrap(err, path)
	}
	return images.ToMask(img), nil
}

// LoadAnnotation reads a YAML box annotation. A missing file means no boxes.
func LoadAnnotation(path string) (grid.Annotation, error) {
	var a grid.Annotation
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return a, nil
	} else if err != nil {
		return a, errors.Wrapf(err, "failed to read %s", path)
	}
	if err := yaml.Unmarshal(data, &a); err != nil {
		return a, errors.Wrapf(err, "failed to parse %s", path)
	}
	return a, nil
}

// WriteAnnotation stores a box annotation as YAML.
func WriteAnnotation(path string, a grid.Annotation) error {
	data, err := yaml.Marshal(a)
	if err != nil {
		return errors.Wrap(err, "failed to encode annotation")
	}
	return errors.Wrapf(os.WriteFile(path, data, 0o644), "failed to write %s", path)
}
