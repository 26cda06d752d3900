package model

import (
	"bytes"
	"image"
	"image/color"
	"image/gif"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Brownie44l1/anidex/internal/conf"
	"github.com/Brownie44l1/anidex/internal/errors"
)

func TestDecodeImageAcceptsPNG(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, solid(color.NRGBA{1, 2, 3, 255}, 2, 2)))

	_, format, err := DecodeImage(buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, "png", format)
}

func TestDecodeImageRejectsRegisteredNonUploadFormat(t *testing.T) {
	// importing image/gif registers its decoder in this binary
	var buf bytes.Buffer
	require.NoError(t, gif.Encode(&buf, solid(color.NRGBA{1, 2, 3, 255}, 2, 2), nil))

	_, _, err := DecodeImage(buf.Bytes())
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrPreprocessing)
	assert.Contains(t, err.Error(), `"gif"`)
}

func solid(c color.Color, w, h int) image.Image {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func TestPreprocessLayouts(t *testing.T) {
	img := solid(color.NRGBA{255, 0, 0, 255}, 10, 6)

	nhwc, err := Preprocess(img, 4, conf.LayoutNHWC)
	require.NoError(t, err)
	require.Len(t, nhwc, 3*4*4)
	assert.InDelta(t, 1.0, nhwc[0], 0.01)
	assert.InDelta(t, 0.0, nhwc[1], 0.01)
	assert.InDelta(t, 0.0, nhwc[2], 0.01)
	assert.InDelta(t, 1.0, nhwc[3], 0.01)

	nchw, err := Preprocess(img, 4, conf.LayoutNCHW)
	require.NoError(t, err)
	require.Len(t, nchw, 3*4*4)
	for i := 0; i < 16; i++ {
		assert.InDelta(t, 1.0, nchw[i], 0.01)
		assert.InDelta(t, 0.0, nchw[16+i], 0.01)
		assert.InDelta(t, 0.0, nchw[32+i], 0.01)
	}
}

func TestPreprocessDropsAlpha(t *testing.T) {
	img := solid(color.NRGBA{0, 0, 255, 0}, 4, 4)

	out, err := Preprocess(img, 2, conf.LayoutNHWC)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, out[2], 0.01)
}

func TestPreprocessValuesInRange(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 9, 9))
	for i := range img.Pix {
		img.Pix[i] = uint8(i * 7)
	}

	out, err := Preprocess(img, 5, conf.LayoutNHWC)
	require.NoError(t, err)
	for _, v := range out {
		assert.GreaterOrEqual(t, v, float32(0))
		assert.LessOrEqual(t, v, float32(1))
	}
}

func TestPreprocessEmptyImage(t *testing.T) {
	_, err := Preprocess(image.NewRGBA(image.Rect(0, 0, 0, 0)), 4, conf.LayoutNHWC)
	assert.Error(t, err)
}
