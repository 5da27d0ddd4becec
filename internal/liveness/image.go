package liveness

import (
	"image"
	"image/color"
	"math"

	"golang.org/x/image/draw"

	"github.com/kozaktomas/face-sentry/internal/facedet"
)

// textureSize is the fixed resolution texture analysis runs at. Normalizing
// the face crop keeps the variance threshold meaningful across face sizes.
const textureSize = 64

// faceRegion extracts the face crop as RGBA for pixel analysis. Returns nil
// when the clamped box is degenerate.
func faceRegion(frame image.Image, box facedet.BoundingBox) *image.RGBA {
	rect := box.Clamp(frame.Bounds()).Rect()
	if rect.Dx() < 2 || rect.Dy() < 2 {
		return nil
	}
	region := image.NewRGBA(image.Rect(0, 0, rect.Dx(), rect.Dy()))
	draw.Draw(region, region.Bounds(), frame, rect.Min, draw.Src)
	return region
}

// gradientVariance resizes the region to textureSize squared and returns the
// variance of the Sobel gradient magnitude over its luma plane.
func gradientVariance(region *image.RGBA) float64 {
	small := image.NewRGBA(image.Rect(0, 0, textureSize, textureSize))
	draw.ApproxBiLinear.Scale(small, small.Bounds(), region, region.Bounds(), draw.Src, nil)

	gray := make([]float64, textureSize*textureSize)
	for y := 0; y < textureSize; y++ {
		for x := 0; x < textureSize; x++ {
			i := small.PixOffset(x, y)
			r := float64(small.Pix[i])
			g := float64(small.Pix[i+1])
			b := float64(small.Pix[i+2])
			gray[y*textureSize+x] = 0.299*r + 0.587*g + 0.114*b
		}
	}

	var sum, sumSq float64
	n := 0
	for y := 1; y < textureSize-1; y++ {
		for x := 1; x < textureSize-1; x++ {
			gx := gray[(y-1)*textureSize+x+1] + 2*gray[y*textureSize+x+1] + gray[(y+1)*textureSize+x+1] -
				gray[(y-1)*textureSize+x-1] - 2*gray[y*textureSize+x-1] - gray[(y+1)*textureSize+x-1]
			gy := gray[(y+1)*textureSize+x-1] + 2*gray[(y+1)*textureSize+x] + gray[(y+1)*textureSize+x+1] -
				gray[(y-1)*textureSize+x-1] - 2*gray[(y-1)*textureSize+x] - gray[(y-1)*textureSize+x+1]
			g := math.Sqrt(gx*gx + gy*gy)
			sum += g
			sumSq += g * g
			n++
		}
	}
	mean := sum / float64(n)
	variance := sumSq/float64(n) - mean*mean
	if variance < 0 {
		variance = 0
	}
	return variance
}

// chromaStdDevSum converts the region to YCbCr and returns the sum of the
// standard deviations of the two chroma channels. Screens and prints
// reproduce skin with a narrower chroma spread than a live face.
func chromaStdDevSum(region *image.RGBA) float64 {
	b := region.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == 0 || h == 0 {
		return 0
	}

	var sumCb, sumCbSq, sumCr, sumCrSq float64
	n := 0
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := region.PixOffset(x, y)
			_, cb, cr := color.RGBToYCbCr(region.Pix[i], region.Pix[i+1], region.Pix[i+2])
			fcb, fcr := float64(cb), float64(cr)
			sumCb += fcb
			sumCbSq += fcb * fcb
			sumCr += fcr
			sumCrSq += fcr * fcr
			n++
		}
	}

	return stdDev(sumCb, sumCbSq, n) + stdDev(sumCr, sumCrSq, n)
}

func stdDev(sum, sumSq float64, n int) float64 {
	mean := sum / float64(n)
	variance := sumSq/float64(n) - mean*mean
	if variance < 0 {
		variance = 0
	}
	return math.Sqrt(variance)
}

// eyeAspectRatio computes the EAR of a 6-point eye contour: the mean of the
// two vertical lid distances over the horizontal eye width. Values drop
// sharply when the eye closes.
func eyeAspectRatio(eye []image.Point) float64 {
	a := pointDistance(eye[1], eye[5])
	b := pointDistance(eye[2], eye[4])
	c := pointDistance(eye[0], eye[3])
	if c == 0 {
		return 0
	}
	return (a + b) / (2.0 * c)
}

func pointDistance(a, b image.Point) float64 {
	dx := float64(a.X - b.X)
	dy := float64(a.Y - b.Y)
	return math.Sqrt(dx*dx + dy*dy)
}
