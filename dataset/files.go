package dataset

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/nvr-ai/go-bev/images"
	"github.com/pkg/errors"
)

// LoadDirectoryImageFiles reads the image files of a directory whose names start with
// prefix, sorted by name.
//
// Arguments:
//   - dir: Directory path containing image files.
//   - prefix: The file name prefix, e.g. "CAM_". Empty matches every image.
//
// Returns:
//   - []images.Image: The encoded images.
//   - error: Error if loading fails.
func LoadDirectoryImageFiles(dir, prefix string) ([]images.Image, error) {
	files, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read %s", dir)
	}

	var out []images.Image
	for _, file := range files {
		if file.IsDir() || !strings.HasPrefix(file.Name(), prefix) {
			continue
		}
		format, ok := images.FormatFromPath(file.Name())
		if !ok {
			continue
		}
		imgPath := filepath.Join(dir, file.Name())
		data, err := os.ReadFile(imgPath)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to read %s", imgPath)
		}
		out = append(out, images.Image{Path: imgPath, Format: format, Data: data})
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].Path < out[j].Path
	})

	return out, nil
}

// subdirs returns the sorted names of the directories directly under dir.
func subdirs(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read %s", dir)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}
