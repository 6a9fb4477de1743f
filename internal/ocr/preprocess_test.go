package ocr

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/require"
)

func grayImage(w, h int, fill uint8) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetGray(x, y, color.Gray{Y: fill})
		}
	}
	return img
}

func TestMedianDenoiseRemovesSpeckle(t *testing.T) {
	img := grayImage(9, 9, 200)
	img.SetGray(4, 4, color.Gray{Y: 0})

	out := medianDenoise(img)
	require.EqualValues(t, 200, out.GrayAt(4, 4).Y)
	require.EqualValues(t, 200, out.GrayAt(0, 0).Y)
}

func TestAdaptiveThresholdBinarizes(t *testing.T) {
	img := grayImage(32, 32, 200)
	for x := 10; x < 16; x++ {
		img.SetGray(x, 12, color.Gray{Y: 30})
	}

	out := adaptiveThreshold(img)
	for y := 0; y < 32; y++ {
		for x := 0; x < 32; x++ {
			v := out.GrayAt(x, y).Y
			require.Truef(t, v == 0 || v == 255, "pixel (%d,%d) is %d", x, y, v)
		}
	}
	require.EqualValues(t, 0, out.GrayAt(12, 12).Y)
	require.EqualValues(t, 255, out.GrayAt(2, 2).Y)
}

func TestAdaptiveThresholdHandlesUnevenLighting(t *testing.T) {
	// Dark glyphs on a bright half and on a shadowed half must both survive
	// binarization; a single global cutoff would smear one side.
	img := grayImage(40, 20, 220)
	for y := 0; y < 20; y++ {
		for x := 20; x < 40; x++ {
			img.SetGray(x, y, color.Gray{Y: 120})
		}
	}
	img.SetGray(8, 10, color.Gray{Y: 40})
	img.SetGray(30, 10, color.Gray{Y: 20})

	out := adaptiveThreshold(img)
	require.EqualValues(t, 0, out.GrayAt(8, 10).Y)
	require.EqualValues(t, 0, out.GrayAt(30, 10).Y)
	require.EqualValues(t, 255, out.GrayAt(4, 4).Y)
	require.EqualValues(t, 255, out.GrayAt(36, 4).Y)
}

func TestPrepareForOCROutputIsBinary(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 24, 24))
	for y := 0; y < 24; y++ {
		for x := 0; x < 24; x++ {
			img.Set(x, y, color.RGBA{R: 230, G: 225, B: 210, A: 255})
		}
	}
	for x := 6; x < 18; x++ {
		img.Set(x, 11, color.RGBA{R: 25, G: 20, B: 20, A: 255})
	}

	out := toGray(PrepareForOCR(img))
	seen := map[uint8]struct{}{}
	for y := 0; y < 24; y++ {
		for x := 0; x < 24; x++ {
			seen[out.GrayAt(x, y).Y] = struct{}{}
		}
	}
	for v := range seen {
		require.Truef(t, v == 0 || v == 255, "non-binary pixel value %d", v)
	}
}
