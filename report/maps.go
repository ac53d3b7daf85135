package report

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/nvr-ai/go-bev/common"
	"github.com/nvr-ai/go-bev/images"
	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

// EncodeMask writes an (H, W) bool mask as a black and white image.
func EncodeMask(w io.Writer, mask *tensor.Dense, format images.ImageFormat) error {
	img, err := images.FromMask(mask)
	if err != nil {
		return err
	}
	return images.Encode(w, img, format)
}

// WritePredictedMaps writes every sample of every (B, H, W) batch stack to dir as
// batch-NNNN-sample-NN.<format>.
//
// Returns:
//   - []string: The written paths, in evaluation order.
//   - error: The first encode or write error.
func WritePredictedMaps(dir string, maps []*tensor.Dense, format images.ImageFormat) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "failed to create %s", dir)
	}
	var paths []string
	for b, stack := range maps {
		if stack.Dims() != 3 {
			return paths, common.Configf("batch %d: road maps must be (B, H, W), got %v", b, stack.Shape())
		}
		data, ok := stack.Data().([]bool)
		if !ok {
			return paths, common.Configf("batch %d: road maps must be bool, got %v", b, stack.Dtype())
		}
		h, w := stack.Shape()[1], stack.Shape()[2]
		for s := 0; s < stack.Shape()[0]; s++ {
			mask := tensor.New(tensor.WithShape(h, w), tensor.WithBacking(data[s*h*w:(s+1)*h*w]))
			path := filepath.Join(dir, fmt.Sprintf("batch-%04d-sample-%02d.%s", b, s, format))
			if err := writeMask(path, mask, format); err != nil {
				return paths, err
			}
			paths = append(paths, path)
		}
	}
	return paths, nil
}

func writeMask(path string, mask *tensor.Dense, format images.ImageFormat) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "failed to create %s", path)
	}
	defer f.Close()
	return errors.Wrap(EncodeMask(f, mask, format), path)
}

func sampleName(kind string, i int) string {
	return fmt.Sprintf("%s-%04d.png", kind, i)
}
