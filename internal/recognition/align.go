package recognition

import (
	"image"
	"math"

	"golang.org/x/image/draw"
	"golang.org/x/image/math/f64"

	"github.com/kozaktomas/face-sentry/internal/facedet"
)

// AlignFace rotates the image so the line between the eye centers is
// horizontal, which makes encodings of the same person more consistent
// across head tilts. When no landmarks are available the image is returned
// unchanged; alignment is an optimization, not a requirement.
func AlignFace(img image.Image, landmarks *facedet.EyeLandmarks) image.Image {
	if landmarks == nil || len(landmarks.LeftEye) == 0 || len(landmarks.RightEye) == 0 {
		return img
	}

	left, right := landmarks.EyeCenters()
	dx := right[0] - left[0]
	dy := right[1] - left[1]
	angle := math.Atan2(dy, dx)
	if angle == 0 {
		return img
	}

	// Rotate by -angle about the midpoint between the eyes. In image
	// coordinates (y down) this maps the eye line onto the horizontal.
	cx := (left[0] + right[0]) / 2
	cy := (left[1] + right[1]) / 2
	cos := math.Cos(angle)
	sin := math.Sin(angle)

	m := f64.Aff3{
		cos, sin, cx - cos*cx - sin*cy,
		-sin, cos, cy + sin*cx - cos*cy,
	}

	bounds := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.BiLinear.Transform(dst, m, img, bounds, draw.Src, nil)
	return dst
}
