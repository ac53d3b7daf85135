package images

import (
	"bytes"
	"image"
	"image/jpeg"
	"image/png"
	"io"

	"github.com/chai2010/webp"
	"github.com/nfnt/resize"
	"github.com/nvr-ai/go-bev/common"
	"github.com/pkg/errors"
)

// Decode decodes encoded bytes of a known format.
func Decode(data []byte, format ImageFormat) (image.Image, error) {
	if len(data) == 0 {
		return nil, errors.New("empty image data")
	}
	r := bytes.NewReader(data)
	var (
		img image.Image
		err error
	)
	switch format {
	case FormatJPEG:
		img, err = jpeg.Decode(r)
	case FormatPNG:
		img, err = png.Decode(r)
	case FormatWebP:
		img, err = webp.Decode(r)
	default:
		return nil, common.Configf("unsupported image format: %q", format)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to decode %s", format)
	}
	return img, nil
}

// DecodeResized decodes an image and resizes it to width x height. Camera frames use
// Lanczos3; masks pass nearest neighbour so labels are not blended.
//
// Arguments:
//   - data: The encoded image.
//   - format: The encoding.
//   - width: The target width (0 keeps the decoded size).
//   - height: The target height (0 keeps the decoded size).
//   - filter: The interpolation function.
//
// Returns:
//   - image.Image: The decoded, resized image.
//   - error: An error if the image cannot be decoded.
func DecodeResized(data []byte, format ImageFormat, width, height int, filter resize.InterpolationFunction) (image.Image, error) {
	img, err := Decode(data, format)
	if err != nil {
		return nil, err
	}
	if width <= 0 || height <= 0 {
		return img, nil
	}
	b := img.Bounds()
	if b.Dx() == width && b.Dy() == height {
		return img, nil
	}
	return resize.Resize(uint(width), uint(height), img, filter), nil
}

// Encode writes img in the requested format. WebP output is lossless so masks survive a
// round trip.
func Encode(w io.Writer, img image.Image, format ImageFormat) error {
	var err error
	switch format {
	case FormatPNG:
		err = png.Encode(w, img)
	case FormatWebP:
		err = webp.Encode(w, img, &webp.Options{Lossless: true})
	case FormatJPEG:
		err = jpeg.Encode(w, img, &jpeg.Options{Quality: 95})
	default:
		return common.Configf("unsupported image format: %q", format)
	}
	return errors.Wrapf(err, "failed to encode %s", format)
}
