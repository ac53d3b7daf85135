package images

import (
	"image"
	"image/color"

	"github.com/nvr-ai/go-bev/common"
	"gorgonia.org/tensor"
)

// ToCHW converts an image to a (3, H, W) float32 tensor with values in [0, 1].
func ToCHW(img image.Image) *tensor.Dense {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	channelSize := w * h
	data := make([]float32, 3*channelSize)
	red := data[0:channelSize]
	green := data[channelSize : channelSize*2]
	blue := data[channelSize*2 : channelSize*3]

	i := 0
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, _ := img.At(x, y).RGBA()
			red[i] = float32(r>>8) / 255.0
			green[i] = float32(g>>8) / 255.0
			blue[i] = float32(bl>>8) / 255.0
			i++
		}
	}
	return tensor.New(tensor.WithShape(3, h, w), tensor.WithBacking(data))
}

// ToMask converts an image to an (H, W) bool tensor, true where the gray level is not
// zero.
func ToMask(img image.Image) *tensor.Dense {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	data := make([]bool, w*h)
	i := 0
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			data[i] = color.GrayModel.Convert(img.At(x, y)).(color.Gray).Y != 0
			i++
		}
	}
	return tensor.New(tensor.WithShape(h, w), tensor.WithBacking(data))
}

// FromMask renders an (H, W) bool tensor as a black and white image.
func FromMask(mask *tensor.Dense) (*image.Gray, error) {
	data, ok := mask.Data().([]bool)
	if !ok || mask.Dims() != 2 {
		return nil, common.Configf("expected a 2-D bool mask, got %v %T", mask.Shape(), mask.Data())
	}
	h, w := mask.Shape()[0], mask.Shape()[1]
	img := image.NewGray(image.Rect(0, 0, w, h))
	for i, v := range data {
		if v {
			img.Pix[i] = 255
		}
	}
	return img, nil
}
