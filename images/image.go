// Package images - Image decoding, encoding and tensor conversion for camera frames and
// road maps.
package images

import (
	"path/filepath"
	"strings"
)

// Image represents an encoded image read from disk.
type Image struct {
	// The path the image was read from.
	Path string `json:"path" yaml:"path"`
	// The format of the image.
	Format ImageFormat `json:"format" yaml:"format"`
	// The encoded bytes.
	Data []byte `json:"-" yaml:"-"`
}

// ImageFormat represents supported image formats
type ImageFormat string

// ImageFormat constants
const (
	// FormatJPEG is the JPEG image format.
	FormatJPEG ImageFormat = "jpeg"
	// FormatWebP is the WebP image format.
	FormatWebP ImageFormat = "webp"
	// FormatPNG is the PNG image format.
	FormatPNG ImageFormat = "png"
)

// FormatFromPath maps a file extension to a format.
//
// Arguments:
//   - path: The file name or path.
//
// Returns:
//   - ImageFormat: The format.
//   - bool: False if the extension is not a supported image type.
func FormatFromPath(path string) (ImageFormat, bool) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		return FormatJPEG, true
	case ".png":
		return FormatPNG, true
	case ".webp":
		return FormatWebP, true
	}
	return "", false
}
