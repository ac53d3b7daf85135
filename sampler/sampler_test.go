package sampler

import (
	"fmt"
	"iter"
	"math/rand/v2"
	"slices"
	"sort"
	"testing"

	"github.com/nvr-ai/go-bev/common"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type listSampler []int

func (l listSampler) Len() int { return len(l) }

func (l listSampler) Indices() iter.Seq[int] { return slices.Values(l) }

func collect(s *BatchSampler) [][]int {
	var out [][]int
	for b := range s.Batches() {
		out = append(out, b)
	}
	return out
}

func TestNewBatchSampler_Validation(t *testing.T) {
	for _, size := range []int{0, -1, -64} {
		_, err := NewBatchSampler(SequentialSampler{N: 4}, size, false, nil)
		require.Error(t, err)
		assert.True(t, errors.Is(err, common.ErrConfiguration), "batch size %d", size)
	}

	_, err := NewBatchSampler(nil, 2, false, nil)
	assert.True(t, errors.Is(err, common.ErrConfiguration))
}

func TestBatchSampler_Counts(t *testing.T) {
	for n := 0; n <= 23; n++ {
		for b := 1; b <= 7; b++ {
			t.Run(fmt.Sprintf("n=%d,b=%d", n, b), func(t *testing.T) {
				keep, err := NewSeededBatchSampler(SequentialSampler{N: n}, b, false, 1)
				require.NoError(t, err)
				batches := collect(keep)
				assert.Len(t, batches, (n+b-1)/b)
				assert.Equal(t, len(batches), keep.Len())

				var seen []int
				for _, batch := range batches {
					assert.LessOrEqual(t, len(batch), b)
					seen = append(seen, batch...)
				}
				sort.Ints(seen)
				want := make([]int, n)
				for i := range want {
					want[i] = i
				}
				assert.Equal(t, want, append([]int{}, seen...))

				drop, err := NewSeededBatchSampler(SequentialSampler{N: n}, b, true, 1)
				require.NoError(t, err)
				batches = collect(drop)
				assert.Len(t, batches, n/b)
				assert.Equal(t, n/b, drop.Len())

				total := 0
				maxIdx := -1
				for _, batch := range batches {
					assert.Len(t, batch, b)
					total += len(batch)
					for _, idx := range batch {
						maxIdx = max(maxIdx, idx)
					}
				}
				assert.Equal(t, b*(n/b), total)
				assert.Less(t, maxIdx, b*(n/b))
			})
		}
	}
}

func TestBatchSampler_PartitionIsContiguous(t *testing.T) {
	s, err := NewSeededBatchSampler(SequentialSampler{N: 9}, 2, false, 7)
	require.NoError(t, err)

	assert.Equal(t, [][]int{{0, 1}, {2, 3}, {4, 5}, {6, 7}, {8}}, s.Partition())

	for _, batch := range collect(s) {
		for i := 1; i < len(batch); i++ {
			assert.Equal(t, batch[i-1]+1, batch[i])
		}
	}
}

func TestBatchSampler_FollowsSourceOrder(t *testing.T) {
	s, err := NewSeededBatchSampler(listSampler{5, 3, 9, 1, 0}, 2, true, 3)
	require.NoError(t, err)
	assert.Equal(t, [][]int{{5, 3}, {9, 1}}, s.Partition())
}

func TestBatchSampler_SamePartitionNewOrder(t *testing.T) {
	s, err := NewSeededBatchSampler(SequentialSampler{N: 100}, 3, false, 42)
	require.NoError(t, err)

	key := func(batches [][]int) []string {
		keys := make([]string, len(batches))
		for i, b := range batches {
			keys[i] = fmt.Sprint(b)
		}
		return keys
	}

	first := key(collect(s))
	differentOrder := 0
	for trial := 0; trial < 20; trial++ {
		next := key(collect(s))
		if !slices.Equal(first, next) {
			differentOrder++
		}
		a := slices.Clone(first)
		b := slices.Clone(next)
		sort.Strings(a)
		sort.Strings(b)
		assert.Equal(t, a, b, "partition must not change between traversals")
	}
	assert.Greater(t, differentOrder, 15)
}

func TestBatchSampler_SeedIsReproducible(t *testing.T) {
	a, err := NewBatchSampler(SequentialSampler{N: 50}, 4, false, rand.New(rand.NewPCG(9, 9)))
	require.NoError(t, err)
	b, err := NewSeededBatchSampler(SequentialSampler{N: 50}, 4, false, 9)
	require.NoError(t, err)

	assert.Equal(t, collect(a), collect(b))
}

func TestBatchSampler_EarlyBreak(t *testing.T) {
	s, err := NewSeededBatchSampler(SequentialSampler{N: 10}, 2, false, 1)
	require.NoError(t, err)

	count := 0
	for range s.Batches() {
		count++
		if count == 2 {
			break
		}
	}
	assert.Equal(t, 2, count)
}
