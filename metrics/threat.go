package metrics

import (
	"github.com/nvr-ai/go-bev/common"
	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

// DefaultThreshold separates road from background in a binary road-map output.
const DefaultThreshold = 0.5

// ThreatScorer scores one predicted road mask against its ground truth. Both slices hold
// one flag per cell and have the same length.
type ThreatScorer func(predicted, truth []bool) float64

// RoadMapThreatScore is the threat score tp / (|predicted| + |truth| - tp). When both
// masks are empty the score is NaN; aggregate with NaNMean.
func RoadMapThreatScore(predicted, truth []bool) float64 {
	var tp, p, t int
	for i, v := range predicted {
		if v {
			p++
			if truth[i] {
				tp++
			}
		}
		if truth[i] {
			t++
		}
	}
	return float64(tp) / float64(p+t-tp)
}

// BinaryRoadMaps thresholds a dense road-map output into per-sample boolean masks.
//
// Arguments:
//   - output: Model output holding B*size*size float32 or float64 scores in any layout
//     (for example (B, 1, size, size) or (B, size*size)).
//   - size: The mask height and width.
//   - threshold: Scores strictly greater than this are road.
//
// Returns:
//   - *tensor.Dense: A (B, size, size) bool tensor.
//   - error: common.ErrConfiguration if the element count is not a positive multiple of
//     size*size or the dtype is not floating point.
func BinaryRoadMaps(output *tensor.Dense, size int, threshold float32) (*tensor.Dense, error) {
	if size <= 0 {
		return nil, common.Configf("mask size must be positive, got %d", size)
	}
	cells := size * size
	var mask []bool
	switch data := output.Data().(type) {
	case []float32:
		mask = make([]bool, len(data))
		for i, v := range data {
			mask[i] = v > threshold
		}
	case []float64:
		mask = make([]bool, len(data))
		for i, v := range data {
			mask[i] = v > float64(threshold)
		}
	default:
		return nil, common.Configf("road-map output must be float32 or float64, got %v", output.Dtype())
	}
	if len(mask) == 0 || len(mask)%cells != 0 {
		return nil, common.Configf("road-map output of shape %v cannot be viewed as (-1, %d, %d)", output.Shape(), size, size)
	}
	return tensor.New(tensor.WithShape(len(mask)/cells, size, size), tensor.WithBacking(mask)), nil
}

// ArgmaxRoadMaps reduces a (B, C, H, W) class-score output to boolean masks by taking the
// arg-max class of each pixel; any class other than 0 counts as road.
//
// Returns:
//   - *tensor.Dense: A (B, H, W) bool tensor.
//   - error: common.ErrConfiguration if output is not 4-D.
func ArgmaxRoadMaps(output *tensor.Dense) (*tensor.Dense, error) {
	classes, err := ArgmaxClasses(output)
	if err != nil {
		return nil, err
	}
	idx := classes.Data().([]int)
	mask := make([]bool, len(idx))
	for i, c := range idx {
		mask[i] = c != 0
	}
	return tensor.New(tensor.WithShape(classes.Shape().Clone()...), tensor.WithBacking(mask)), nil
}

// ArgmaxClasses returns the arg-max over the class axis of a (B, C, H, W) output as a
// (B, H, W) int tensor.
func ArgmaxClasses(output *tensor.Dense) (*tensor.Dense, error) {
	if output.Dims() != 4 {
		return nil, common.Configf("class output must be (B, C, H, W), got shape %v", output.Shape())
	}
	classes, err := output.Argmax(1)
	if err != nil {
		return nil, errors.Wrap(err, "argmax over class axis")
	}
	return classes, nil
}

// BatchThreatScores scores every sample of a batch.
//
// Arguments:
//   - predicted: (B, H, W) bool predicted masks.
//   - truth: (B, H, W) bool ground-truth masks.
//   - scorer: The per-sample score; RoadMapThreatScore when nil.
//
// Returns:
//   - []float64: One score per sample, in batch order.
//   - error: common.ErrConfiguration if the shapes differ or the masks are not boolean.
func BatchThreatScores(predicted, truth *tensor.Dense, scorer ThreatScorer) ([]float64, error) {
	if scorer == nil {
		scorer = RoadMapThreatScore
	}
	if !predicted.Shape().Eq(truth.Shape()) {
		return nil, common.Configf("predicted road maps %v do not match ground truth %v", predicted.Shape(), truth.Shape())
	}
	if predicted.Dims() != 3 {
		return nil, common.Configf("road maps must be (B, H, W), got %v", predicted.Shape())
	}
	p, ok := predicted.Data().([]bool)
	if !ok {
		return nil, common.Configf("predicted road maps must be bool, got %v", predicted.Dtype())
	}
	t, ok := truth.Data().([]bool)
	if !ok {
		return nil, common.Configf("ground-truth road maps must be bool, got %v", truth.Dtype())
	}

	shape := predicted.Shape()
	per := shape[1] * shape[2]
	scores := make([]float64, shape[0])
	for i := range scores {
		lo, hi := i*per, (i+1)*per
		scores[i] = scorer(p[lo:hi], t[lo:hi])
	}
	return scores, nil
}

// ThreatScoresBinary thresholds a road-map output at threshold and scores it against truth.
//
// Returns:
//   - []float64: Per-sample threat scores.
//   - *tensor.Dense: The (B, size, size) predicted masks.
//   - error: Any shape or dtype error.
func ThreatScoresBinary(output, truth *tensor.Dense, size int, threshold float32, scorer ThreatScorer) ([]float64, *tensor.Dense, error) {
	predicted, err := BinaryRoadMaps(output, size, threshold)
	if err != nil {
		return nil, nil, err
	}
	scores, err := BatchThreatScores(predicted, truth, scorer)
	if err != nil {
		return nil, nil, err
	}
	return scores, predicted, nil
}

// ThreatScoresArgmax reduces a multi-class road-map output with ArgmaxRoadMaps and scores
// it against truth.
func ThreatScoresArgmax(output, truth *tensor.Dense, scorer ThreatScorer) ([]float64, *tensor.Dense, error) {
	predicted, err := ArgmaxRoadMaps(output)
	if err != nil {
		return nil, nil, err
	}
	scores, err := BatchThreatScores(predicted, truth, scorer)
	if err != nil {
		return nil, nil, err
	}
	return scores, predicted, nil
}
