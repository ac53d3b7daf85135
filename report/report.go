// Package report - Writes evaluation results to disk: a JSON summary, plots, predicted
// road maps and box-grid heatmaps.
package report

import (
	"os"
	"path/filepath"

	"github.com/cyclopcam/logs"
	"github.com/nvr-ai/go-bev/common"
	"github.com/nvr-ai/go-bev/evaluation"
	"github.com/nvr-ai/go-bev/images"
	"github.com/pkg/errors"
)

const (
	// SummaryFile is the name of the JSON summary.
	SummaryFile = "summary.json"
	// IoUPlotFile is the per-batch IoU line plot.
	IoUPlotFile = "batch_iou.png"
	// ThreatPlotFile is the threat-score histogram.
	ThreatPlotFile = "threat_scores.png"
	// MapsDir holds the predicted road maps.
	MapsDir = "maps"
	// HeatmapsDir holds the box-grid heatmaps.
	HeatmapsDir = "heatmaps"
)

// Options selects what a Writer produces.
type Options struct {
	// Dir is the output directory, created when missing.
	Dir string `json:"dir" yaml:"dir"`
	// Plots writes IoUPlotFile and ThreatPlotFile.
	Plots bool `json:"plots" yaml:"plots"`
	// Maps writes every predicted road map to MapsDir.
	Maps bool `json:"maps" yaml:"maps"`
	// MapFormat is png or webp.
	MapFormat images.ImageFormat `json:"map_format" yaml:"map_format"`
	// Heatmaps writes the kept box grids to HeatmapsDir.
	Heatmaps bool `json:"heatmaps" yaml:"heatmaps"`
	// Classes spreads labels over the colormap.
	Classes int `json:"classes" yaml:"classes"`
}

// DefaultOptions writes the summary and plots to ./bev_results.
func DefaultOptions() Options {
	return Options{
		Dir:       "./bev_results",
		Plots:     true,
		MapFormat: images.FormatPNG,
		Classes:   10,
	}
}

// Validate checks the options.
func (o Options) Validate() error {
	if o.Dir == "" {
		return common.Configf("report directory is required")
	}
	switch o.MapFormat {
	case images.FormatPNG, images.FormatWebP:
	default:
		return common.Configf("road maps must be png or webp, got %q", o.MapFormat)
	}
	if o.Classes <= 0 {
		return common.Configf("classes must be positive, got %d", o.Classes)
	}
	return nil
}

// Writer writes reports.
type Writer struct {
	log  logs.Log
	opts Options
}

// NewWriter creates a report writer.
func NewWriter(opts Options, log logs.Log) (*Writer, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return &Writer{log: log, opts: opts}, nil
}

// Write stores everything the options ask for and returns the summary.
//
// Arguments:
//   - res: The evaluation result.
//
// Returns:
//   - Summary: The summary written to SummaryFile.
//   - error: The first write error.
func (w *Writer) Write(res *evaluation.Result) (Summary, error) {
	if err := os.MkdirAll(w.opts.Dir, 0o755); err != nil {
		return Summary{}, errors.Wrapf(err, "failed to create %s", w.opts.Dir)
	}

	summary := NewSummary(res)
	if err := WriteSummary(filepath.Join(w.opts.Dir, SummaryFile), summary); err != nil {
		return summary, err
	}

	if w.opts.Plots {
		if err := PlotBatchIoU(filepath.Join(w.opts.Dir, IoUPlotFile), res.BatchIoUs); err != nil {
			return summary, err
		}
		if err := PlotThreatHistogram(filepath.Join(w.opts.Dir, ThreatPlotFile), res.ThreatScores, 20); err != nil {
			return summary, err
		}
	}

	if w.opts.Maps {
		paths, err := WritePredictedMaps(filepath.Join(w.opts.Dir, MapsDir), res.PredictedMaps, w.opts.MapFormat)
		if err != nil {
			return summary, err
		}
		w.log.Infof("Wrote %v predicted road maps", len(paths))
	}

	if w.opts.Heatmaps && len(res.Grids) > 0 {
		if err := w.writeHeatmaps(res.Grids); err != nil {
			return summary, err
		}
	}

	w.log.Infof("Report for %v written to %v", res.RunID, w.opts.Dir)
	return summary, nil
}

func (w *Writer) writeHeatmaps(pairs []evaluation.GridPair) error {
	dir := filepath.Join(w.opts.Dir, HeatmapsDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrapf(err, "failed to create %s", dir)
	}
	for i, p := range pairs {
		if err := WriteGridHeatmap(filepath.Join(dir, sampleName("truth", i)), p.Truth, w.opts.Classes); err != nil {
			return err
		}
		if err := WriteGridHeatmap(filepath.Join(dir, sampleName("predicted", i)), p.Predicted, w.opts.Classes); err != nil {
			return err
		}
	}
	return nil
}
