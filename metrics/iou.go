// Package metrics - Overlap metrics for bird's-eye-view predictions.
package metrics

import (
	"github.com/nvr-ai/go-bev/common"
	"github.com/nvr-ai/go-bev/grid"
	"gorgonia.org/tensor"
)

// DefaultClasses is the number of box categories scored by MeanIoU, background included.
const DefaultClasses = 10

// IoUMode selects which cells count as "present" for a class.
type IoUMode string

const (
	// ComplementIoU treats every cell whose label differs from the class as present.
	// This is the historical behaviour of the box-grid metric and the default.
	ComplementIoU IoUMode = "complement"
	// ClassIoU treats cells carrying the class label as present.
	ClassIoU IoUMode = "class"
)

// classCounts holds per-class label, prediction and agreement histograms.
type classCounts struct {
	total int
	label []int
	pred  []int
	both  []int
}

func countClasses(labels, predictions []int, nClasses int) classCounts {
	cc := classCounts{
		total: len(labels),
		label: make([]int, nClasses),
		pred:  make([]int, nClasses),
		both:  make([]int, nClasses),
	}
	for i, l := range labels {
		p := predictions[i]
		if l >= 0 && l < nClasses {
			cc.label[l]++
			if l == p {
				cc.both[l]++
			}
		}
		if p >= 0 && p < nClasses {
			cc.pred[p]++
		}
	}
	return cc
}

// presence returns the sizes of the label mask, prediction mask and their intersection for
// class c under the given mode.
func (cc classCounts) presence(c int, mode IoUMode) (labelSum, predSum, intersect int) {
	if mode == ClassIoU {
		return cc.label[c], cc.pred[c], cc.both[c]
	}
	labelSum = cc.total - cc.label[c]
	predSum = cc.total - cc.pred[c]
	intersect = cc.total - cc.label[c] - cc.pred[c] + cc.both[c]
	return labelSum, predSum, intersect
}

// MeanIoU computes the intersection over union averaged across the classes seen in
// either input.
//
// For each class c in [0, nClasses) a presence mask is built for both inputs (see
// IoUMode). The class is seen when either mask is non-empty, and its IoU is
// |labels ∩ predictions| / |labels ∪ predictions|. The result is the mean over seen
// classes, or 0 when no class is seen.
//
// Arguments:
//   - labels: Ground-truth labels, one per cell.
//   - predictions: Predicted labels, one per cell.
//   - nClasses: The number of classes to score.
//   - mode: ComplementIoU (default when empty) or ClassIoU.
//
// Returns:
//   - float64: The mean IoU in [0, 1].
//   - error: common.ErrConfiguration for a length mismatch, nClasses <= 0 or an unknown mode.
func MeanIoU(labels, predictions []int, nClasses int, mode IoUMode) (float64, error) {
	if len(labels) != len(predictions) {
		return 0, common.Configf("label count %d does not match prediction count %d", len(labels), len(predictions))
	}
	if nClasses <= 0 {
		return 0, common.Configf("class count must be positive, got %d", nClasses)
	}
	switch mode {
	case "":
		mode = ComplementIoU
	case ComplementIoU, ClassIoU:
	default:
		return 0, common.Configf("unknown IoU mode %q", mode)
	}

	cc := countClasses(labels, predictions, nClasses)

	meanIoU := 0.0
	seen := 0
	for c := 0; c < nClasses; c++ {
		labelSum, predSum, intersect := cc.presence(c, mode)
		if labelSum == 0 && predSum == 0 {
			continue
		}
		seen++
		union := labelSum + predSum - intersect
		meanIoU += float64(intersect) / float64(union)
	}
	if seen == 0 {
		return 0, nil
	}
	return meanIoU / float64(seen), nil
}

// GridIoU computes MeanIoU between two occupancy grids of the same shape.
func GridIoU(labels, predictions *grid.Grid, nClasses int, mode IoUMode) (float64, error) {
	if labels.Height != predictions.Height || labels.Width != predictions.Width {
		return 0, common.Configf("grid shapes differ: %dx%d vs %dx%d",
			labels.Height, labels.Width, predictions.Height, predictions.Width)
	}
	return MeanIoU(labels.Cells, predictions.Cells, nClasses, mode)
}

// DenseIoU computes MeanIoU over two same-shape int tensors, typically whole stacked
// batches of shape (B, H, W).
func DenseIoU(labels, predictions *tensor.Dense, nClasses int, mode IoUMode) (float64, error) {
	if !labels.Shape().Eq(predictions.Shape()) {
		return 0, common.Configf("label shape %v does not match prediction shape %v", labels.Shape(), predictions.Shape())
	}
	l, ok := labels.Data().([]int)
	if !ok {
		return 0, common.Configf("labels must be int, got %v", labels.Dtype())
	}
	p, ok := predictions.Data().([]int)
	if !ok {
		return 0, common.Configf("predictions must be int, got %v", predictions.Dtype())
	}
	return MeanIoU(l, p, nClasses, mode)
}
