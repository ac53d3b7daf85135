// Package evaluation - The evaluation loop that scores a BEV model over a data source.
package evaluation

import (
	"context"
	"io"
	"math"
	"time"

	"github.com/cyclopcam/logs"
	"github.com/google/uuid"
	"github.com/nvr-ai/go-bev/common"
	"github.com/nvr-ai/go-bev/dataset"
	"github.com/nvr-ai/go-bev/grid"
	"github.com/nvr-ai/go-bev/metrics"
	"github.com/nvr-ai/go-bev/models"
	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

// RoadMapMode selects how the lane output is turned into a road mask.
type RoadMapMode string

const (
	// RoadMapBinary thresholds a single-channel road probability.
	RoadMapBinary RoadMapMode = "binary"
	// RoadMapArgmax takes the arg-max of a multi-class road output; any non-zero class is road.
	RoadMapArgmax RoadMapMode = "argmax"
)

// DefaultCameras is the number of cameras per sample of the reference rig.
const DefaultCameras = 6

// Options configures an Evaluator.
type Options struct {
	// Cameras is the number of cameras every sample carries.
	Cameras int `json:"cameras" yaml:"cameras"`
	// Grid configures box rasterization; Grid.Size is also the road-map size.
	Grid grid.Config `json:"grid" yaml:"grid"`
	// Classes is the number of box classes scored by the IoU.
	Classes int `json:"classes" yaml:"classes"`
	// IoUMode selects the IoU variant.
	IoUMode metrics.IoUMode `json:"iou_mode" yaml:"iou_mode"`
	// RoadMap selects the road-mask reduction.
	RoadMap RoadMapMode `json:"road_map" yaml:"road_map"`
	// Threshold is the road probability cut for RoadMapBinary.
	Threshold float32 `json:"threshold" yaml:"threshold"`
	// LogEvery logs progress every n batches; 0 disables progress logs.
	LogEvery int `json:"log_every" yaml:"log_every"`
	// KeepGrids keeps the truth and predicted box grids of the first n samples.
	KeepGrids int `json:"keep_grids" yaml:"keep_grids"`
	// Scorer scores one road mask; nil means metrics.RoadMapThreatScore.
	Scorer metrics.ThreatScorer `json:"-" yaml:"-"`
}

// DefaultOptions returns the reference setup: six cameras, an 800x800 grid, ten classes
// and complement IoU.
func DefaultOptions() Options {
	return Options{
		Cameras:   DefaultCameras,
		Grid:      grid.DefaultConfig(),
		Classes:   metrics.DefaultClasses,
		IoUMode:   metrics.ComplementIoU,
		RoadMap:   RoadMapBinary,
		Threshold: metrics.DefaultThreshold,
		LogEvery:  10,
	}
}

// Validate checks the options.
func (o Options) Validate() error {
	if o.Cameras <= 0 {
		return common.Configf("cameras must be positive, got %d", o.Cameras)
	}
	if o.Classes <= 0 {
		return common.Configf("classes must be positive, got %d", o.Classes)
	}
	switch o.IoUMode {
	case metrics.ComplementIoU, metrics.ClassIoU:
	default:
		return common.Configf("unknown IoU mode %q", o.IoUMode)
	}
	switch o.RoadMap {
	case RoadMapBinary, RoadMapArgmax:
	default:
		return common.Configf("unknown road-map mode %q", o.RoadMap)
	}
	if o.LogEvery < 0 || o.KeepGrids < 0 {
		return common.Configf("log_every and keep_grids must not be negative, got %d and %d", o.LogEvery, o.KeepGrids)
	}
	return o.Grid.Validate()
}

// GridPair holds the rasterized truth and the arg-max prediction of one sample.
type GridPair struct {
	Truth     *grid.Grid
	Predicted *grid.Grid
}

// Result is the outcome of one evaluation pass.
type Result struct {
	RunID string
	// MeanThreatScore ignores NaN scores; it is 0 when no score is defined.
	MeanThreatScore float64
	// ThreatScores holds one score per sample, in evaluation order.
	ThreatScores []float64
	// PredictedMaps holds one (B, G, G) bool road mask per batch.
	PredictedMaps []*tensor.Dense
	// BatchIoUs holds one mean IoU per batch.
	BatchIoUs []float64
	// Grids holds up to Options.KeepGrids sample grids, in evaluation order.
	Grids    []GridPair
	Batches  int
	Samples  int
	Duration time.Duration
	Timings  StageTimings
	Memory   MemoryMetrics
}

// MeanIoU averages the per-batch IoUs, or returns 0 when there are none.
func (r *Result) MeanIoU() float64 {
	return metrics.NaNMean(r.BatchIoUs)
}

// Evaluator runs evaluation passes. It holds no per-pass state, so one Evaluator can run
// several passes one after another.
type Evaluator struct {
	log        logs.Log
	opts       Options
	rasterizer *grid.Rasterizer
}

// NewEvaluator creates an evaluator.
//
// Arguments:
//   - opts: The evaluation options.
//   - log: The logger.
//
// Returns:
//   - *Evaluator: The evaluator.
//   - error: common.ErrConfiguration if the options are invalid.
func NewEvaluator(opts Options, log logs.Log) (*Evaluator, error) {
	if opts.Scorer == nil {
		opts.Scorer = metrics.RoadMapThreatScore
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	r, err := grid.NewRasterizer(opts.Grid)
	if err != nil {
		return nil, err
	}
	return &Evaluator{log: log, opts: opts, rasterizer: r}, nil
}

// Options returns the effective options.
func (e *Evaluator) Options() Options {
	return e.opts
}

// Evaluate runs model over every batch of source once.
//
// Model failures come back as *common.InferenceError with the model's error as cause;
// every other failure is returned as is. Either way the pass is aborted and no partial
// result is returned.
//
// Arguments:
//   - ctx: Checked between batches.
//   - model: The model under evaluation.
//   - source: The batches; io.EOF ends the pass.
//
// Returns:
//   - *Result: The aggregated scores.
//   - error: The first error encountered.
func (e *Evaluator) Evaluate(ctx context.Context, model models.Model, source dataset.Source) (*Result, error) {
	res := &Result{
		RunID:         uuid.NewString(),
		ThreatScores:  []float64{},
		PredictedMaps: []*tensor.Dense{},
		BatchIoUs:     []float64{},
	}
	e.log.Infof("Evaluation %v started", res.RunID)
	start := time.Now()

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		stopLoad := track(&res.Timings.Load)
		batch, err := source.Next(ctx)
		stopLoad()
		if err == io.EOF {
			break
		} else if err != nil {
			return nil, err
		}

		if err := e.evaluateBatch(ctx, model, batch, res); err != nil {
			return nil, err
		}
		res.Batches++
		res.Samples += batch.Len()

		if e.opts.LogEvery > 0 && res.Batches%e.opts.LogEvery == 0 {
			e.log.Infof("Evaluated %v batches (%v samples), running threat score %.4f", res.Batches, res.Samples, metrics.NaNMean(res.ThreatScores))
		}
	}

	res.MeanThreatScore = metrics.NaNMean(res.ThreatScores)
	res.Duration = time.Since(start)
	res.Memory = readMemory()
	e.log.Infof("Evaluation %v finished: %v batches, %v samples, threat score %.4f, mean IoU %.4f in %v",
		res.RunID, res.Batches, res.Samples, res.MeanThreatScore, res.MeanIoU(), res.Duration)
	return res, nil
}

func (e *Evaluator) evaluateBatch(ctx context.Context, model models.Model, batch *dataset.Batch, res *Result) error {
	batchIndex := res.Batches

	stop := track(&res.Timings.Stack)
	cameras, err := StackCameras(batch.Samples, e.opts.Cameras)
	if err != nil {
		stop()
		return errors.Wrapf(err, "batch %d", batchIndex)
	}
	roads, err := StackMasks(batch.RoadImages)
	stop()
	if err != nil {
		return errors.Wrapf(err, "batch %d", batchIndex)
	}

	stop = track(&res.Timings.Rasterize)
	truth, err := e.rasterizer.RasterizeBatch(batch.Targets)
	stop()
	if err != nil {
		return errors.Wrapf(err, "batch %d", batchIndex)
	}

	stop = track(&res.Timings.InferLane)
	lane, err := model.InferLane(ctx, cameras)
	stop()
	if err != nil {
		return &common.InferenceError{Mode: common.InferenceLane, Batch: batchIndex, Err: err}
	}

	stop = track(&res.Timings.InferBox)
	boxes, err := model.InferBoxes(ctx, cameras)
	stop()
	if err != nil {
		return &common.InferenceError{Mode: common.InferenceBoxes, Batch: batchIndex, Err: err}
	}

	defer track(&res.Timings.Score)()

	var (
		scores    []float64
		predicted *tensor.Dense
	)
	switch e.opts.RoadMap {
	case RoadMapArgmax:
		scores, predicted, err = metrics.ThreatScoresArgmax(lane, roads, e.opts.Scorer)
	default:
		scores, predicted, err = metrics.ThreatScoresBinary(lane, roads, e.opts.Grid.Size, e.opts.Threshold, e.opts.Scorer)
	}
	if err != nil {
		return errors.Wrapf(err, "batch %d road maps", batchIndex)
	}
	for i, s := range scores {
		if math.IsNaN(s) {
			e.log.Debugf("Batch %v sample %v: empty prediction and ground truth, threat score undefined", batchIndex, i)
		}
	}

	classes, err := metrics.ArgmaxClasses(boxes)
	if err != nil {
		return errors.Wrapf(err, "batch %d boxes", batchIndex)
	}
	iou, err := metrics.DenseIoU(truth, classes, e.opts.Classes, e.opts.IoUMode)
	if err != nil {
		return errors.Wrapf(err, "batch %d boxes", batchIndex)
	}

	e.keepGrids(truth, classes, res)
	res.ThreatScores = append(res.ThreatScores, scores...)
	res.PredictedMaps = append(res.PredictedMaps, predicted)
	res.BatchIoUs = append(res.BatchIoUs, iou)
	return nil
}

// keepGrids copies sample grids out of the (B, G, G) truth and prediction stacks until
// KeepGrids pairs are held.
func (e *Evaluator) keepGrids(truth, predicted *tensor.Dense, res *Result) {
	t, tok := truth.Data().([]int)
	p, pok := predicted.Data().([]int)
	if !tok || !pok {
		return
	}
	size := e.opts.Grid.Size
	cells := size * size
	for s := 0; s < truth.Shape()[0] && len(res.Grids) < e.opts.KeepGrids; s++ {
		res.Grids = append(res.Grids, GridPair{
			Truth:     &grid.Grid{Height: size, Width: size, Cells: append([]int(nil), t[s*cells:(s+1)*cells]...)},
			Predicted: &grid.Grid{Height: size, Width: size, Cells: append([]int(nil), p[s*cells:(s+1)*cells]...)},
		})
	}
}
