package model

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg"
	_ "image/png"
	"slices"

	"github.com/nfnt/resize"

	"github.com/Brownie44l1/anidex/internal/conf"
	"github.com/Brownie44l1/anidex/internal/errors"
)

// supportedFormats limits decoding to these formats even when other image
// decoders are registered in the binary.
var supportedFormats = []string{"png", "jpeg"}

// DecodeImage decodes PNG or JPEG bytes.
func DecodeImage(data []byte) (image.Image, string, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", errors.New(fmt.Errorf("invalid image format, supported: JPEG, PNG: %w", err)).
			Component("model").
			Category(errors.CategoryPreprocessing).
			Context("size_bytes", len(data)).
			Build()
	}
	if !slices.Contains(supportedFormats, format) {
		return nil, "", errors.Newf("unsupported image format %q, supported: JPEG, PNG", format).
			Component("model").
			Category(errors.CategoryPreprocessing).
			Context("format", format).
			Build()
	}
	return img, format, nil
}

// Preprocess converts img to 3-channel RGB, resizes it to size x size with
// Lanczos3 and scales to [0,1] in the requested tensor layout.
func Preprocess(img image.Image, size int, layout string) ([]float32, error) {
	b := img.Bounds()
	if b.Dx() == 0 || b.Dy() == 0 || size <= 0 {
		return nil, errors.Newf("cannot preprocess %dx%d image to %d", b.Dx(), b.Dy(), size).
			Component("model").
			Category(errors.CategoryPreprocessing).
			Build()
	}

	// alpha is dropped, not blended
	rgb := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
			rgb.SetRGBA(x-b.Min.X, y-b.Min.Y, color.RGBA{R: c.R, G: c.G, B: c.B, A: 255})
		}
	}

	resized, ok := resize.Resize(uint(size), uint(size), rgb, resize.Lanczos3).(*image.RGBA)
	if !ok {
		return nil, errors.Newf("unexpected resize output type").
			Component("model").
			Category(errors.CategoryPreprocessing).
			Build()
	}

	plane := size * size
	out := make([]float32, 3*plane)
	for y := 0; y < size; y++ {
		row := resized.Pix[y*resized.Stride:]
		for x := 0; x < size; x++ {
			px := row[x*4 : x*4+3]
			idx := y*size + x
			for c := 0; c < 3; c++ {
				v := float32(px[c]) / 255.0
				if layout == conf.LayoutNCHW {
					out[c*plane+idx] = v
				} else {
					out[idx*3+c] = v
				}
			}
		}
	}
	return out, nil
}
