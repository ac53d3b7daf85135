package report

import (
	"github.com/nvr-ai/go-bev/common"
	"github.com/nvr-ai/go-bev/grid"
	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

// GridLevels maps class labels onto 0..255 so that every class gets its own colour band.
func GridLevels(g *grid.Grid, classes int) []byte {
	levels := make([]byte, len(g.Cells))
	step := 255 / max(classes-1, 1)
	for i, c := range g.Cells {
		c = min(max(c, 0), classes-1)
		levels[i] = byte(c * step)
	}
	return levels
}

// WriteGridHeatmap writes a class grid as a jet colour-mapped image. The file type follows
// the extension of path.
func WriteGridHeatmap(path string, g *grid.Grid, classes int) error {
	if classes <= 0 {
		return common.Configf("classes must be positive, got %d", classes)
	}
	gray, err := gocv.NewMatFromBytes(g.Height, g.Width, gocv.MatTypeCV8U, GridLevels(g, classes))
	if err != nil {
		return errors.Wrap(err, "failed to build grid mat")
	}
	defer gray.Close()

	colored := gocv.NewMat()
	defer colored.Close()
	gocv.ApplyColorMap(gray, &colored, gocv.ColormapJet)

	if !gocv.IMWrite(path, colored) {
		return errors.Errorf("failed to write %s", path)
	}
	return nil
}
