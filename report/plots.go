package report

import (
	"image/color"
	"math"

	"github.com/nvr-ai/go-bev/common"
	"github.com/pkg/errors"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// PlotBatchIoU writes a line plot of the mean IoU of every batch.
func PlotBatchIoU(path string, ious []float64) error {
	p := plot.New()
	p.Title.Text = "Mean IoU per batch"
	p.X.Label.Text = "batch"
	p.Y.Label.Text = "mean IoU"
	p.Y.Min = 0
	p.Y.Max = 1

	xys := make(plotter.XYs, len(ious))
	for i, v := range ious {
		xys[i] = plotter.XY{X: float64(i), Y: v}
	}
	if len(xys) > 0 {
		line, err := plotter.NewLine(xys)
		if err != nil {
			return errors.Wrap(err, "failed to build IoU line")
		}
		line.Color = color.RGBA{R: 20, G: 80, B: 200, A: 255}
		line.Width = vg.Points(1)
		p.Add(line)
	}
	p.Add(plotter.NewGrid())

	return errors.Wrapf(p.Save(8*vg.Inch, 4*vg.Inch, path), "failed to save %s", path)
}

// PlotThreatHistogram writes a histogram of the defined threat scores. NaN scores are
// left out.
func PlotThreatHistogram(path string, scores []float64, bins int) error {
	if bins <= 0 {
		return common.Configf("histogram bins must be positive, got %d", bins)
	}
	p := plot.New()
	p.Title.Text = "Road-map threat scores"
	p.X.Label.Text = "threat score"
	p.Y.Label.Text = "samples"
	p.X.Min = 0
	p.X.Max = 1

	var values plotter.Values
	for _, s := range scores {
		if !math.IsNaN(s) {
			values = append(values, s)
		}
	}
	if len(values) > 0 {
		h, err := plotter.NewHist(values, bins)
		if err != nil {
			return errors.Wrap(err, "failed to build threat histogram")
		}
		h.FillColor = color.RGBA{R: 40, G: 120, B: 40, A: 200}
		p.Add(h)
	}

	return errors.Wrapf(p.Save(6*vg.Inch, 4*vg.Inch, path), "failed to save %s", path)
}
