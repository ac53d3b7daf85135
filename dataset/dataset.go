// Package dataset - Samples, batches and the data sources the evaluator pulls from.
package dataset

import (
	"context"

	"github.com/nvr-ai/go-bev/common"
	"github.com/nvr-ai/go-bev/grid"
	"gorgonia.org/tensor"
)

// Sample is one scene snapshot.
type Sample struct {
	// Cameras holds one (3, H, W) float32 image per camera, in camera order.
	Cameras []*tensor.Dense
	// Target is the box annotation in world coordinates.
	Target grid.Annotation
	// RoadImage is the (G, G) bool road-map ground truth.
	RoadImage *tensor.Dense
	// Extra carries passthrough metadata such as the scene and sample names.
	Extra map[string]any
}

// Dataset is random access to samples.
type Dataset interface {
	Len() int
	Get(ctx context.Context, i int) (*Sample, error)
}

// Batch is a collated group of samples. All slices have one entry per sample.
type Batch struct {
	Samples    [][]*tensor.Dense
	Targets    []grid.Annotation
	RoadImages []*tensor.Dense
	Extra      []map[string]any
}

// Len returns the number of samples in the batch.
func (b *Batch) Len() int {
	return len(b.Samples)
}

// Source yields batches until it returns io.EOF.
type Source interface {
	Next(ctx context.Context) (*Batch, error)
}

// Collate groups samples into a batch.
func Collate(samples []*Sample) *Batch {
	b := &Batch{
		Samples:    make([][]*tensor.Dense, len(samples)),
		Targets:    make([]grid.Annotation, len(samples)),
		RoadImages: make([]*tensor.Dense, len(samples)),
		Extra:      make([]map[string]any, len(samples)),
	}
	for i, s := range samples {
		b.Samples[i] = s.Cameras
		b.Targets[i] = s.Target
		b.RoadImages[i] = s.RoadImage
		b.Extra[i] = s.Extra
	}
	return b
}

// SliceDataset serves samples held in memory.
type SliceDataset []*Sample

// Len returns the number of samples.
func (d SliceDataset) Len() int {
	return len(d)
}

// Get returns sample i.
func (d SliceDataset) Get(ctx context.Context, i int) (*Sample, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if i < 0 || i >= len(d) {
		return nil, common.Configf("sample index %d outside [0, %d)", i, len(d))
	}
	return d[i], nil
}
