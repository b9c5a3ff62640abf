package mri

import (
	"bytes"
	"image"
	"image/color"
	_ "image/jpeg"
	_ "image/png"
	"path/filepath"
	"strings"

	"golang.org/x/image/draw"

	"neurod/internal/apperr"
)

// DefaultInputSize is the side of the square network input.
const DefaultInputSize = 224

// DefaultMaxPixels caps width*height of an accepted upload. Decoders allocate
// the whole frame from the header before reading pixel data.
const DefaultMaxPixels = 40_000_000

// ImageNet channel statistics used at training time.
var (
	channelMean = [3]float64{0.485, 0.456, 0.406}
	channelStd  = [3]float64{0.229, 0.224, 0.225}
)

var allowedExt = map[string]bool{".jpg": true, ".jpeg": true, ".png": true}

// AllowedFile reports whether name has an accepted image extension.
func AllowedFile(name string) bool {
	return allowedExt[strings.ToLower(filepath.Ext(name))]
}

// Decode parses JPEG or PNG bytes. Images whose header declares more than
// maxPixels pixels are rejected before decoding; maxPixels <= 0 uses
// DefaultMaxPixels.
func Decode(data []byte, maxPixels int) (image.Image, error) {
	if len(data) == 0 {
		return nil, apperr.InvalidInput("empty image")
	}
	if maxPixels <= 0 {
		maxPixels = DefaultMaxPixels
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, apperr.WrapInvalidInput(err, "decode image")
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || cfg.Width > maxPixels/cfg.Height {
		return nil, apperr.InvalidInput("image is %dx%d, limit is %d pixels", cfg.Width, cfg.Height, maxPixels)
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, apperr.WrapInvalidInput(err, "decode image")
	}
	return img, nil
}

// Preprocess drops alpha, resizes img to size x size with bilinear
// interpolation, scales to [0, 1] and normalises each channel. The result is
// (3, size, size).
func Preprocess(img image.Image, size int) []float64 {
	src := opaque(img)
	dst := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.BiLinear.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)

	plane := size * size
	out := make([]float64, 3*plane)
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			i := dst.PixOffset(x, y)
			p := y*size + x
			for c := 0; c < 3; c++ {
				v := float64(dst.Pix[i+c]) / 255
				out[c*plane+p] = (v - channelMean[c]) / channelStd[c]
			}
		}
	}
	return out
}

// opaque returns img with every pixel's straight (non-premultiplied) colour
// and full alpha, the way an RGB conversion discards transparency.
func opaque(img image.Image) image.Image {
	switch img.(type) {
	case *image.YCbCr, *image.Gray, *image.Gray16, *image.CMYK:
		return img
	}
	b := img.Bounds()
	out := image.NewRGBA(b)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
			i := out.PixOffset(x, y)
			out.Pix[i], out.Pix[i+1], out.Pix[i+2], out.Pix[i+3] = c.R, c.G, c.B, 0xff
		}
	}
	return out
}
