package recognition

import (
	"image"
)

// Empirical quality gates for reference images. Images failing any of these
// produce unreliable encodings, so they are skipped with a reason rather than
// encoded badly.
const (
	minImageSize      = 100   // pixels, either dimension
	minBlurVariance   = 100.0 // Laplacian variance below this means too blurry
	minMeanBrightness = 50.0
	maxMeanBrightness = 200.0
)

// CheckImageQuality validates that an image is usable as a recognition
// reference. Returns ok and a human-readable reason when it is not.
func CheckImageQuality(img image.Image) (bool, string) {
	bounds := img.Bounds()
	if bounds.Dx() < minImageSize || bounds.Dy() < minImageSize {
		return false, "image too small"
	}

	gray := grayValues(img)

	if laplacianVariance(gray, bounds.Dx(), bounds.Dy()) < minBlurVariance {
		return false, "image too blurry"
	}

	brightness := mean(gray)
	if brightness < minMeanBrightness {
		return false, "image too dark"
	}
	if brightness > maxMeanBrightness {
		return false, "image too bright"
	}
	return true, "ok"
}

// grayValues converts an image to a row-major slice of luma values in 0-255.
func grayValues(img image.Image) []float64 {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	out := make([]float64, w*h)
	i := 0
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, _ := img.At(x, y).RGBA()
			out[i] = (0.299*float64(r) + 0.587*float64(g) + 0.114*float64(b)) / 257.0
			i++
		}
	}
	return out
}

// laplacianVariance measures image sharpness: the variance of the 4-neighbor
// Laplacian response. Blurry images have weak second derivatives everywhere.
func laplacianVariance(gray []float64, w, h int) float64 {
	if w < 3 || h < 3 {
		return 0
	}
	lap := make([]float64, 0, (w-2)*(h-2))
	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			center := gray[y*w+x]
			response := gray[(y-1)*w+x] + gray[(y+1)*w+x] + gray[y*w+x-1] + gray[y*w+x+1] - 4*center
			lap = append(lap, response)
		}
	}
	return variance(lap)
}

func mean(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	var sum float64
	for _, v := range vals {
		sum += v
	}
	return sum / float64(len(vals))
}

func variance(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	m := mean(vals)
	var sum float64
	for _, v := range vals {
		d := v - m
		sum += d * d
	}
	return sum / float64(len(vals))
}
