package liveness

import (
	"image"
	"image/color"
	"testing"

	"github.com/kozaktomas/face-sentry/internal/facedet"
)

// texturedFrame tiles 8px blocks of saturated red and blue: strong gradients
// at the block edges and a wide chroma spread, so texture and color checks
// pass.
func texturedFrame(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if (x/8+y/8)%2 == 0 {
				img.SetRGBA(x, y, color.RGBA{200, 30, 30, 255})
			} else {
				img.SetRGBA(x, y, color.RGBA{40, 40, 200, 255})
			}
		}
	}
	return img
}

// flatFrame is a uniform gray surface, the signature of a printed photo or
// a screen held up to the camera.
func flatFrame(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, color.RGBA{128, 128, 128, 255})
		}
	}
	return img
}

func fullBox(img image.Image) facedet.BoundingBox {
	b := img.Bounds()
	return facedet.BoundingBox{Top: b.Min.Y, Right: b.Max.X, Bottom: b.Max.Y, Left: b.Min.X}
}

// eyes builds 6-point contours with the given vertical lid opening. With
// width 10 and opening 6 the EAR is 0.6 (open); opening 2 gives 0.2 (closed).
func eyes(opening int) *facedet.EyeLandmarks {
	contour := func(ox int) []image.Point {
		mid := 5
		return []image.Point{
			{ox, mid},
			{ox + 3, mid - opening/2}, {ox + 7, mid - opening/2},
			{ox + 10, mid},
			{ox + 7, mid + opening/2}, {ox + 3, mid + opening/2},
		}
	}
	return &facedet.EyeLandmarks{LeftEye: contour(20), RightEye: contour(50)}
}

func newTestDetector() *Detector {
	return New(true, 0.25, 80.0, 15.0, 1)
}

func TestCheck_Disabled(t *testing.T) {
	d := New(false, 0.25, 80.0, 15.0, 1)

	result := d.Check(flatFrame(64, 64), fullBox(flatFrame(64, 64)), nil, 1)
	if !result.IsLive {
		t.Error("disabled detector must report live")
	}
	if result.Confidence != 1.0 {
		t.Errorf("Confidence = %f, want 1.0", result.Confidence)
	}
}

func TestCheck_LiveFaceWithBlink(t *testing.T) {
	d := newTestDetector()
	frame := texturedFrame(64, 64)
	box := fullBox(frame)

	// Open, closed, open: one full blink across three samples.
	d.Check(frame, box, eyes(6), 1)
	d.Check(frame, box, eyes(2), 1)
	result := d.Check(frame, box, eyes(6), 1)

	if result.Checks["texture"] != 1.0 {
		t.Errorf("texture score = %f, want 1.0", result.Checks["texture"])
	}
	if result.Checks["color"] != 1.0 {
		t.Errorf("color score = %f, want 1.0", result.Checks["color"])
	}
	if result.Checks["blink"] != 1.0 {
		t.Errorf("blink score = %f, want 1.0", result.Checks["blink"])
	}
	if !result.IsLive {
		t.Errorf("expected live, confidence %f", result.Confidence)
	}
}

func TestCheck_FlatSurfaceIsSpoof(t *testing.T) {
	d := newTestDetector()
	frame := flatFrame(64, 64)
	box := fullBox(frame)

	result := d.Check(frame, box, nil, 1)

	if result.Checks["texture"] != textureFailScore {
		t.Errorf("texture score = %f, want %f", result.Checks["texture"], textureFailScore)
	}
	if result.Checks["color"] != colorFailScore {
		t.Errorf("color score = %f, want %f", result.Checks["color"], colorFailScore)
	}
	if result.Checks["blink"] != blinkNoLandmarksScore {
		t.Errorf("blink score = %f, want %f", result.Checks["blink"], blinkNoLandmarksScore)
	}
	if result.IsLive {
		t.Errorf("expected spoof, confidence %f", result.Confidence)
	}
}

func TestCheck_NoBlinkStaysInconclusive(t *testing.T) {
	d := newTestDetector()
	frame := texturedFrame(64, 64)
	box := fullBox(frame)

	// Eyes open for many frames, never a blink.
	var result Result
	for i := 0; i < 10; i++ {
		result = d.Check(frame, box, eyes(6), 1)
	}

	if result.Checks["blink"] != blinkFailScore {
		t.Errorf("blink score = %f, want %f", result.Checks["blink"], blinkFailScore)
	}
}

func TestCheck_BlinkRequiresReopening(t *testing.T) {
	d := newTestDetector()
	frame := texturedFrame(64, 64)
	box := fullBox(frame)

	// Eyes closed and staying closed is not a blink.
	d.Check(frame, box, eyes(6), 1)
	d.Check(frame, box, eyes(2), 1)
	result := d.Check(frame, box, eyes(2), 1)

	if result.Checks["blink"] != blinkFailScore {
		t.Errorf("blink score = %f, want %f (no reopening yet)", result.Checks["blink"], blinkFailScore)
	}

	// Reopening completes the blink.
	result = d.Check(frame, box, eyes(6), 1)
	if result.Checks["blink"] != blinkPassScore {
		t.Errorf("blink score = %f, want %f after reopening", result.Checks["blink"], blinkPassScore)
	}
}

func TestCheck_ReopeningAtTrackStartNotCounted(t *testing.T) {
	d := newTestDetector()
	frame := texturedFrame(64, 64)
	box := fullBox(frame)

	// The track begins mid-blink: closed, then reopening. With only two
	// samples of history the edge must not count as a blink.
	d.Check(frame, box, eyes(2), 1)
	d.Check(frame, box, eyes(6), 1)
	result := d.Check(frame, box, eyes(6), 1)

	if result.Checks["blink"] != blinkFailScore {
		t.Errorf("blink score = %f, want %f (edge before three samples)",
			result.Checks["blink"], blinkFailScore)
	}
}

func TestCheck_StateIsPerTrack(t *testing.T) {
	d := newTestDetector()
	frame := texturedFrame(64, 64)
	box := fullBox(frame)

	// Track 1 blinks; track 2 only watches.
	d.Check(frame, box, eyes(6), 1)
	d.Check(frame, box, eyes(2), 1)
	r1 := d.Check(frame, box, eyes(6), 1)

	d.Check(frame, box, eyes(6), 2)
	d.Check(frame, box, eyes(6), 2)
	r2 := d.Check(frame, box, eyes(6), 2)

	if r1.Checks["blink"] != blinkPassScore {
		t.Errorf("track 1 blink score = %f, want pass", r1.Checks["blink"])
	}
	if r2.Checks["blink"] != blinkFailScore {
		t.Errorf("track 2 blink score = %f, want fail", r2.Checks["blink"])
	}
}

func TestReset_DropsBlinkState(t *testing.T) {
	d := newTestDetector()
	frame := texturedFrame(64, 64)
	box := fullBox(frame)

	d.Check(frame, box, eyes(6), 1)
	d.Check(frame, box, eyes(2), 1)
	d.Check(frame, box, eyes(6), 1)

	d.Reset(1)

	// The id was recycled by a new face; its blink history must start over.
	result := d.Check(frame, box, eyes(6), 1)
	if result.Checks["blink"] != blinkFailScore {
		t.Errorf("blink score after Reset = %f, want %f", result.Checks["blink"], blinkFailScore)
	}
}

func TestEyeAspectRatio(t *testing.T) {
	open := eyes(6)
	closed := eyes(2)

	if ear := eyeAspectRatio(open.LeftEye); ear < 0.5 || ear > 0.7 {
		t.Errorf("open EAR = %f, want ~0.6", ear)
	}
	if ear := eyeAspectRatio(closed.LeftEye); ear > 0.25 {
		t.Errorf("closed EAR = %f, want below 0.25", ear)
	}
}
