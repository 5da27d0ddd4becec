package recognition

import (
	"image"
	"image/color"
	"testing"

	"github.com/kozaktomas/face-sentry/internal/facedet"
)

func TestAlignFace_NoLandmarks(t *testing.T) {
	img := noisyImage(64, 64, color.RGBA{120, 120, 120, 255}, 20)

	if got := AlignFace(img, nil); got != img {
		t.Error("expected unchanged image for nil landmarks")
	}

	empty := &facedet.EyeLandmarks{}
	if got := AlignFace(img, empty); got != img {
		t.Error("expected unchanged image for empty landmarks")
	}
}

func TestAlignFace_AlreadyHorizontal(t *testing.T) {
	img := noisyImage(64, 64, color.RGBA{120, 120, 120, 255}, 20)
	landmarks := &facedet.EyeLandmarks{
		LeftEye:  []image.Point{{20, 30}},
		RightEye: []image.Point{{44, 30}},
	}

	if got := AlignFace(img, landmarks); got != img {
		t.Error("expected unchanged image when the eye line is horizontal")
	}
}

func TestAlignFace_RotatesTiltedFace(t *testing.T) {
	img := noisyImage(64, 64, color.RGBA{120, 120, 120, 255}, 20)
	landmarks := &facedet.EyeLandmarks{
		LeftEye:  []image.Point{{20, 25}},
		RightEye: []image.Point{{44, 35}},
	}

	got := AlignFace(img, landmarks)
	if got == img {
		t.Fatal("expected a rotated copy for tilted eyes")
	}
	if got.Bounds().Dx() != 64 || got.Bounds().Dy() != 64 {
		t.Errorf("rotated image bounds = %v, want 64x64", got.Bounds())
	}
}
