// Package facedet defines the boundary with the face detection, landmark and
// encoding capability. The recognition pipeline only depends on the Detector
// interface; the concrete implementation (an HTTP sidecar wrapping a dlib or
// InsightFace model) is swappable.
package facedet

import (
	"image"
	"math"
)

// EncodingDim is the fixed length of a face encoding vector.
const EncodingDim = 128

// Encoding is a fixed-length feature vector representing one face.
// Immutable once produced.
type Encoding []float32

// EuclideanDistance computes the Euclidean distance between two encodings.
// Mismatched or empty vectors report the maximum useful distance so they
// never win a nearest-neighbor comparison.
func EuclideanDistance(a, b Encoding) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return math.MaxFloat64
	}
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}

// BoundingBox is a face location in (top, right, bottom, left) pixel
// coordinates, matching the detector's native output order.
type BoundingBox struct {
	Top    int `json:"top"`
	Right  int `json:"right"`
	Bottom int `json:"bottom"`
	Left   int `json:"left"`
}

// Width returns the box width in pixels.
func (b BoundingBox) Width() int { return b.Right - b.Left }

// Height returns the box height in pixels.
func (b BoundingBox) Height() int { return b.Bottom - b.Top }

// Centroid returns the geometric center of the box.
func (b BoundingBox) Centroid() (float64, float64) {
	return float64(b.Left+b.Right) / 2.0, float64(b.Top+b.Bottom) / 2.0
}

// Scale multiplies all coordinates by f. Used to map detections made on a
// downscaled frame back into full-frame coordinates.
func (b BoundingBox) Scale(f float64) BoundingBox {
	return BoundingBox{
		Top:    int(float64(b.Top) * f),
		Right:  int(float64(b.Right) * f),
		Bottom: int(float64(b.Bottom) * f),
		Left:   int(float64(b.Left) * f),
	}
}

// Clamp restricts the box to the given image bounds.
func (b BoundingBox) Clamp(bounds image.Rectangle) BoundingBox {
	out := b
	if out.Top < bounds.Min.Y {
		out.Top = bounds.Min.Y
	}
	if out.Left < bounds.Min.X {
		out.Left = bounds.Min.X
	}
	if out.Bottom > bounds.Max.Y {
		out.Bottom = bounds.Max.Y
	}
	if out.Right > bounds.Max.X {
		out.Right = bounds.Max.X
	}
	return out
}

// Rect converts the box to a stdlib image.Rectangle.
func (b BoundingBox) Rect() image.Rectangle {
	return image.Rect(b.Left, b.Top, b.Right, b.Bottom)
}

// EyeLandmarks holds the eye contour points for one face. Each eye is a
// 6-point contour ordered from the outer corner, as produced by the 68-point
// dlib shape model.
type EyeLandmarks struct {
	LeftEye  []image.Point `json:"left_eye"`
	RightEye []image.Point `json:"right_eye"`
}

// EyeCenters returns the centroid of each eye contour as (x, y) pairs.
func (l *EyeLandmarks) EyeCenters() (left, right [2]float64) {
	left = pointCentroid(l.LeftEye)
	right = pointCentroid(l.RightEye)
	return left, right
}

func pointCentroid(pts []image.Point) [2]float64 {
	if len(pts) == 0 {
		return [2]float64{}
	}
	var sx, sy float64
	for _, p := range pts {
		sx += float64(p.X)
		sy += float64(p.Y)
	}
	n := float64(len(pts))
	return [2]float64{sx / n, sy / n}
}
