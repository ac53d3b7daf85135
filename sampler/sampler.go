// Package sampler - Batch sampling that keeps sequential samples together.
//
// Consecutive camera captures of one scene are strongly correlated, so batches are cut
// from contiguous runs of the index sequence while the order in which those batches are
// visited is shuffled on every traversal.
package sampler

import (
	"iter"
	"math/rand/v2"
	"time"

	"github.com/nvr-ai/go-bev/common"
)

// IndexSampler produces the dataset indices to draw batches from.
type IndexSampler interface {
	// Len returns the number of indices a traversal yields.
	Len() int
	// Indices yields the indices in traversal order.
	Indices() iter.Seq[int]
}

// SequentialSampler yields 0..N-1 in order.
type SequentialSampler struct {
	N int
}

// Len returns N.
func (s SequentialSampler) Len() int {
	return max(s.N, 0)
}

// Indices yields 0..N-1.
func (s SequentialSampler) Indices() iter.Seq[int] {
	return func(yield func(int) bool) {
		for i := 0; i < s.N; i++ {
			if !yield(i) {
				return
			}
		}
	}
}

// BatchSampler partitions an index sequence into contiguous batches and yields those
// batches in a freshly shuffled order on every traversal.
//
// When getting inputs of [0, 1, 2, 3, 4, 5, 6, 7, 8] with a batch size of 2, a traversal
// yields [4 5] [0 1] [8] [2 3] [6 7] in some random order.
type BatchSampler struct {
	source    IndexSampler
	batchSize int
	dropLast  bool
	rng       *rand.Rand
}

// NewBatchSampler creates a batch sampler.
//
// Arguments:
//   - source: The index sequence to partition.
//   - batchSize: The maximum number of indices per batch. Must be positive.
//   - dropLast: If true, a trailing batch shorter than batchSize is discarded.
//   - rng: The random source used to order batches. If nil, a time-seeded source is used.
//
// Returns:
//   - *BatchSampler: The sampler.
//   - error: common.ErrConfiguration if the source is nil or the batch size is not positive.
func NewBatchSampler(source IndexSampler, batchSize int, dropLast bool, rng *rand.Rand) (*BatchSampler, error) {
	if source == nil {
		return nil, common.Configf("batch sampler requires an index source")
	}
	if batchSize <= 0 {
		return nil, common.Configf("batch size must be positive, got %d", batchSize)
	}
	if rng == nil {
		seed := uint64(time.Now().UnixNano())
		rng = rand.New(rand.NewPCG(seed, seed>>1))
	}
	return &BatchSampler{
		source:    source,
		batchSize: batchSize,
		dropLast:  dropLast,
		rng:       rng,
	}, nil
}

// NewSeededBatchSampler creates a batch sampler whose batch order is reproducible for a
// given seed.
func NewSeededBatchSampler(source IndexSampler, batchSize int, dropLast bool, seed uint64) (*BatchSampler, error) {
	return NewBatchSampler(source, batchSize, dropLast, rand.New(rand.NewPCG(seed, seed)))
}

// BatchSize returns the configured batch size.
func (s *BatchSampler) BatchSize() int {
	return s.batchSize
}

// Partition cuts the index sequence into contiguous batches in traversal order.
//
// Returns:
//   - [][]int: The batches. The trailing partial batch is included unless dropLast is set.
func (s *BatchSampler) Partition() [][]int {
	all := make([][]int, 0, s.Len())
	batch := make([]int, 0, s.batchSize)
	for idx := range s.source.Indices() {
		batch = append(batch, idx)
		if len(batch) == s.batchSize {
			all = append(all, batch)
			batch = make([]int, 0, s.batchSize)
		}
	}
	if len(batch) > 0 && !s.dropLast {
		all = append(all, batch)
	}
	return all
}

// Batches yields the partition in a random order. Each call starts a new traversal with a
// new permutation; the batch contents never change between traversals.
func (s *BatchSampler) Batches() iter.Seq[[]int] {
	return func(yield func([]int) bool) {
		all := s.Partition()
		for _, i := range s.rng.Perm(len(all)) {
			if !yield(all[i]) {
				return
			}
		}
	}
}

// Len returns the number of batches per traversal: ceil(N/B) when partial batches are
// kept, floor(N/B) otherwise.
func (s *BatchSampler) Len() int {
	n := s.source.Len()
	if s.dropLast {
		return n / s.batchSize
	}
	return (n + s.batchSize - 1) / s.batchSize
}
