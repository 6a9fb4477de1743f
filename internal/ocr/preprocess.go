package ocr

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"sort"

	"github.com/disintegration/imaging"

	"github.com/pkruczek/spizarka-backend/pkg/storage"
)

// maxDimension caps receipt photos before OCR. Phone cameras produce images
// far larger than tesseract needs.
const maxDimension = 2400

// Adaptive threshold window and offset. The block covers roughly one printed
// character; the offset keeps faint paper texture out of the foreground.
const (
	thresholdBlock  = 11
	thresholdOffset = 2
)

// Preprocess writes an OCR-friendly copy of the image next to the original
// and returns its path: grayscale, contrast boost, mild sharpening, median
// denoise and an adaptive threshold, at capped resolution.
func Preprocess(imagePath string) (string, error) {
	img, err := imaging.Open(imagePath, imaging.AutoOrientation(true))
	if err != nil {
		return "", fmt.Errorf("opening image: %w", err)
	}

	out := storage.ProcessedPath(imagePath)
	if err := imaging.Save(PrepareForOCR(img), out); err != nil {
		return "", fmt.Errorf("saving processed image: %w", err)
	}
	return out, nil
}

// PrepareForOCR runs the full preprocessing chain on an already decoded
// image.
func PrepareForOCR(img image.Image) image.Image {
	bounds := img.Bounds()
	if bounds.Dx() > maxDimension || bounds.Dy() > maxDimension {
		img = imaging.Fit(img, maxDimension, maxDimension, imaging.Lanczos)
	}

	img = imaging.Grayscale(img)
	img = imaging.AdjustContrast(img, 20)
	img = imaging.Sharpen(img, 1.0)

	gray := toGray(img)
	gray = medianDenoise(gray)
	return adaptiveThreshold(gray)
}

func toGray(img image.Image) *image.Gray {
	if gray, ok := img.(*image.Gray); ok {
		return gray
	}
	gray := image.NewGray(img.Bounds())
	draw.Draw(gray, gray.Bounds(), img, img.Bounds().Min, draw.Src)
	return gray
}

// medianDenoise replaces every pixel with the median of its 3x3 window,
// killing the salt-and-pepper speckle thermal receipts pick up.
func medianDenoise(src *image.Gray) *image.Gray {
	bounds := src.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	dst := image.NewGray(bounds)

	window := make([]uint8, 0, 9)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			window = window[:0]
			for dy := -1; dy <= 1; dy++ {
				for dx := -1; dx <= 1; dx++ {
					ny, nx := clamp(y+dy, h), clamp(x+dx, w)
					window = append(window, src.GrayAt(bounds.Min.X+nx, bounds.Min.Y+ny).Y)
				}
			}
			sort.Slice(window, func(i, j int) bool { return window[i] < window[j] })
			dst.SetGray(bounds.Min.X+x, bounds.Min.Y+y, color.Gray{Y: window[4]})
		}
	}
	return dst
}

// adaptiveThreshold binarizes against the local mean of a thresholdBlock
// square window. A pixel becomes white when it is brighter than the window
// mean minus thresholdOffset, so uneven receipt lighting does not smear whole
// regions to black. The window means come from an integral image.
func adaptiveThreshold(src *image.Gray) *image.Gray {
	bounds := src.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	dst := image.NewGray(bounds)

	integral := make([]uint64, (w+1)*(h+1))
	stride := w + 1
	for y := 0; y < h; y++ {
		var rowSum uint64
		for x := 0; x < w; x++ {
			rowSum += uint64(src.GrayAt(bounds.Min.X+x, bounds.Min.Y+y).Y)
			integral[(y+1)*stride+x+1] = integral[y*stride+x+1] + rowSum
		}
	}

	half := thresholdBlock / 2
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			x0, y0 := max(0, x-half), max(0, y-half)
			x1, y1 := min(w-1, x+half), min(h-1, y+half)
			count := uint64((x1 - x0 + 1) * (y1 - y0 + 1))

			sum := integral[(y1+1)*stride+x1+1] -
				integral[y0*stride+x1+1] -
				integral[(y1+1)*stride+x0] +
				integral[y0*stride+x0]
			mean := sum / count

			var out uint8
			if uint64(src.GrayAt(bounds.Min.X+x, bounds.Min.Y+y).Y)+thresholdOffset > mean {
				out = 255
			}
			dst.SetGray(bounds.Min.X+x, bounds.Min.Y+y, color.Gray{Y: out})
		}
	}
	return dst
}

func clamp(v, limit int) int {
	if v < 0 {
		return 0
	}
	if v >= limit {
		return limit - 1
	}
	return v
}
