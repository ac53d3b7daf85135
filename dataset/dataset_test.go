package dataset

import (
	"context"
	"image"
	"image/color"
	"io"
	"math/rand/v2"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/cyclopcam/logs"
	"github.com/nvr-ai/go-bev/common"
	"github.com/nvr-ai/go-bev/grid"
	"github.com/nvr-ai/go-bev/images"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func numberedSamples(n int) SliceDataset {
	ds := make(SliceDataset, n)
	for i := range ds {
		ds[i] = &Sample{Extra: map[string]any{"index": i}}
	}
	return ds
}

func drain(t *testing.T, l *Loader) [][]int {
	t.Helper()
	var batches [][]int
	for {
		b, err := l.Next(context.Background())
		if err == io.EOF {
			return batches
		}
		require.NoError(t, err)
		var idx []int
		for _, e := range b.Extra {
			idx = append(idx, e["index"].(int))
		}
		assert.Len(t, b.Samples, b.Len())
		assert.Len(t, b.Targets, b.Len())
		assert.Len(t, b.RoadImages, b.Len())
		batches = append(batches, idx)
	}
}

func TestLoader(t *testing.T) {
	tests := []struct {
		name     string
		n        int
		batch    int
		dropLast bool
		batches  int
		covered  int
	}{
		{"Even", 8, 4, false, 2, 8},
		{"Partial kept", 10, 4, false, 3, 10},
		{"Partial dropped", 10, 4, true, 2, 8},
		{"Empty", 0, 4, false, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, err := NewLoader(numberedSamples(tt.n), tt.batch, tt.dropLast, rand.New(rand.NewPCG(1, 2)), logs.NewTestingLog(t))
			require.NoError(t, err)
			defer l.Close()
			assert.Equal(t, tt.batches, l.Len())

			batches := drain(t, l)
			assert.Len(t, batches, tt.batches)

			var all []int
			for _, b := range batches {
				all = append(all, b...)
			}
			sort.Ints(all)
			assert.Len(t, all, tt.covered)
			for i, v := range all {
				assert.Equal(t, i, v)
			}

			// Exhausted loaders keep returning EOF until reset.
			_, err = l.Next(context.Background())
			assert.Equal(t, io.EOF, err)
			l.Reset()
			assert.Len(t, drain(t, l), tt.batches)
		})
	}

	_, err := NewLoader(numberedSamples(3), 0, false, nil, logs.NewTestingLog(t))
	assert.True(t, errors.Is(err, common.ErrConfiguration))
}

type failingDataset struct{ SliceDataset }

func (failingDataset) Get(context.Context, int) (*Sample, error) {
	return nil, errors.New("disk on fire")
}

func TestLoader_Errors(t *testing.T) {
	l, err := NewLoader(failingDataset{numberedSamples(2)}, 2, false, nil, logs.NewTestingLog(t))
	require.NoError(t, err)
	_, err = l.Next(context.Background())
	assert.ErrorContains(t, err, "disk on fire")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = l.Next(ctx)
	assert.ErrorIs(t, err, context.Canceled)

	_, err = numberedSamples(2).Get(context.Background(), 2)
	assert.True(t, errors.Is(err, common.ErrConfiguration))
}

func writeImage(t *testing.T, path string, img image.Image, format images.ImageFormat) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, images.Encode(f, img, format))
}

func writeSample(t *testing.T, dir string, cameras int) {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0o755))
	for i := 0; i < cameras; i++ {
		img := image.NewRGBA(image.Rect(0, 0, 8, 6))
		writeImage(t, filepath.Join(dir, "CAM_"+string(rune('A'+i))+".png"), img, images.FormatPNG)
	}
	road := image.NewGray(image.Rect(0, 0, 4, 4))
	road.SetGray(1, 0, color.Gray{Y: 255})
	writeImage(t, filepath.Join(dir, RoadMapFile), road, images.FormatPNG)

	box, err := grid.NewBox([]float32{1, 2, 1, 2}, []float32{-1, -1, 1, 1}, 3)
	require.NoError(t, err)
	require.NoError(t, WriteAnnotation(filepath.Join(dir, BoxesFile), grid.Annotation{Boxes: []grid.Box{box}}))
}

func TestDirDataset(t *testing.T) {
	root := t.TempDir()
	writeSample(t, filepath.Join(root, "scene-b", "0001"), 2)
	writeSample(t, filepath.Join(root, "scene-a", "0002"), 2)
	writeSample(t, filepath.Join(root, "scene-a", "0001"), 2)
	require.NoError(t, os.WriteFile(filepath.Join(root, "README"), []byte("ignored"), 0o644))

	ds, err := NewDirDataset(DirOptions{Root: root, Cameras: 2, ImageWidth: 4, ImageHeight: 2}, logs.NewTestingLog(t))
	require.NoError(t, err)
	require.Equal(t, 3, ds.Len())

	s, err := ds.Get(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, "scene-a", s.Extra["scene"])
	assert.Equal(t, "0001", s.Extra["sample"])
	require.Len(t, s.Cameras, 2)
	assert.Equal(t, []int{3, 2, 4}, []int(s.Cameras[0].Shape()))
	assert.Equal(t, []int{4, 4}, []int(s.RoadImage.Shape()))
	mask := s.RoadImage.Data().([]bool)
	assert.True(t, mask[1])
	assert.False(t, mask[0])
	require.Len(t, s.Target.Boxes, 1)
	assert.Equal(t, 3, s.Target.Boxes[0].Category)
	assert.Equal(t, grid.Point{X: 2, Y: 1}, s.Target.Boxes[0].Corners[3])

	last, err := ds.Get(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, "scene-b", last.Extra["scene"])

	_, err = ds.Get(context.Background(), 3)
	assert.True(t, errors.Is(err, common.ErrConfiguration))
}

func TestDirDataset_Errors(t *testing.T) {
	log := logs.NewTestingLog(t)

	_, err := NewDirDataset(DirOptions{Cameras: 6}, log)
	assert.True(t, errors.Is(err, common.ErrConfiguration))

	_, err = NewDirDataset(DirOptions{Root: filepath.Join(t.TempDir(), "missing"), Cameras: 6}, log)
	assert.Error(t, err)

	root := t.TempDir()
	writeSample(t, filepath.Join(root, "scene", "0001"), 3)
	ds, err := NewDirDataset(DirOptions{Root: root, Cameras: 6}, log)
	require.NoError(t, err)
	_, err = ds.Get(context.Background(), 0)
	assert.True(t, errors.Is(err, common.ErrConfiguration))
}

func TestLoadAnnotation_Missing(t *testing.T) {
	a, err := LoadAnnotation(filepath.Join(t.TempDir(), BoxesFile))
	require.NoError(t, err)
	assert.Empty(t, a.Boxes)
}
