package dataset

import (
	"context"
	"io"
	"iter"
	"math/rand/v2"

	"github.com/cyclopcam/logs"
	"github.com/nvr-ai/go-bev/sampler"
	"github.com/pkg/errors"
)

// Loader serves a Dataset in batches drawn by a sampler.BatchSampler. It implements
// Source. A Loader is not safe for concurrent use.
type Loader struct {
	log     logs.Log
	dataset Dataset
	sampler *sampler.BatchSampler
	next    func() ([]int, bool)
	stop    func()
}

// NewLoader creates a loader over the whole dataset.
//
// Arguments:
//   - ds: The dataset.
//   - batchSize: The number of samples per batch.
//   - dropLast: Whether a trailing partial batch is skipped.
//   - rng: The batch order source; nil seeds one from the clock.
//   - log: The logger.
//
// Returns:
//   - *Loader: The loader, positioned at the start of a traversal.
//   - error: ErrConfiguration if the batch size is not positive.
func NewLoader(ds Dataset, batchSize int, dropLast bool, rng *rand.Rand, log logs.Log) (*Loader, error) {
	s, err := sampler.NewBatchSampler(sampler.SequentialSampler{N: ds.Len()}, batchSize, dropLast, rng)
	if err != nil {
		return nil, err
	}
	l := &Loader{log: log, dataset: ds, sampler: s}
	l.Reset()
	return l, nil
}

// Len returns the number of batches per traversal.
func (l *Loader) Len() int {
	return l.sampler.Len()
}

// Reset starts a new traversal with a fresh batch order.
func (l *Loader) Reset() {
	if l.stop != nil {
		l.stop()
	}
	l.next, l.stop = iter.Pull(l.sampler.Batches())
}

// Next loads and collates the next batch. It returns io.EOF after the last batch until
// Reset is called.
func (l *Loader) Next(ctx context.Context) (*Batch, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	indices, ok := l.next()
	if !ok {
		return nil, io.EOF
	}
	samples := make([]*Sample, len(indices))
	for i, idx := range indices {
		s, err := l.dataset.Get(ctx, idx)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to load sample %d", idx)
		}
		samples[i] = s
	}
	l.log.Debugf("Loaded batch of %v samples starting at %v", len(indices), indices[0])
	return Collate(samples), nil
}

// Close releases the traversal.
func (l *Loader) Close() {
	if l.stop != nil {
		l.stop()
		l.stop = nil
	}
}
