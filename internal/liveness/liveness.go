// Package liveness estimates whether a detected face belongs to a live
// person or a presentation attack (photo, screen replay). Three weak signals
// are fused: surface texture, color diversity and blink activity. Each signal
// votes with a score in [0, 1]; the face is live when the mean vote clears
// the fusion threshold.
package liveness

import (
	"image"
	"sync"

	"github.com/kozaktomas/face-sentry/internal/facedet"
)

// Score values per signal outcome. Failing signals vote low but never zero;
// a single weak check must not be able to veto two strong ones.
const (
	texturePassScore = 1.0
	textureFailScore = 0.3

	colorPassScore = 1.0
	colorFailScore = 0.4

	blinkPassScore          = 1.0
	blinkFailScore          = 0.5
	blinkNoLandmarksScore   = 0.3
	blinkMinSamples         = 3
	earHistorySize          = 30
	fusionLivenessThreshold = 0.6
)

// Result is the fused liveness verdict for one face in one frame.
type Result struct {
	IsLive     bool               `json:"is_live"`
	Confidence float64            `json:"confidence"`
	Checks     map[string]float64 `json:"checks"`
}

// trackState is the temporal blink state for one tracked face.
type trackState struct {
	earHistory []float64
	blinks     int
}

// Detector fuses anti-spoofing signals. Blink detection is stateful per
// track id; callers must Reset ids when their tracks die, otherwise state
// from a departed face leaks into whoever inherits the id.
type Detector struct {
	enabled          bool
	blinkThreshold   float64
	textureThreshold float64
	colorThreshold   float64
	minBlinks        int

	mu     sync.Mutex
	states map[int]*trackState
}

// New creates a liveness detector. A disabled detector reports every face as
// live with full confidence.
func New(enabled bool, blinkThreshold, textureThreshold, colorThreshold float64, minBlinks int) *Detector {
	return &Detector{
		enabled:          enabled,
		blinkThreshold:   blinkThreshold,
		textureThreshold: textureThreshold,
		colorThreshold:   colorThreshold,
		minBlinks:        minBlinks,
		states:           make(map[int]*trackState),
	}
}

// Check evaluates one face. The box is in frame coordinates; landmarks may be
// nil when the model could not produce them, which degrades the blink signal
// rather than failing the check. trackID keys the temporal blink state.
func (d *Detector) Check(frame image.Image, box facedet.BoundingBox, landmarks *facedet.EyeLandmarks, trackID int) Result {
	if !d.enabled {
		return Result{IsLive: true, Confidence: 1.0, Checks: map[string]float64{}}
	}

	region := faceRegion(frame, box)

	checks := map[string]float64{
		"texture": d.textureScore(region),
		"color":   d.colorScore(region),
		"blink":   d.blinkScore(landmarks, trackID),
	}

	var sum float64
	for _, score := range checks {
		sum += score
	}
	confidence := sum / float64(len(checks))

	return Result{
		IsLive:     confidence > fusionLivenessThreshold,
		Confidence: confidence,
		Checks:     checks,
	}
}

// Reset drops the blink state for one track id.
func (d *Detector) Reset(trackID int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.states, trackID)
}

// ResetAll drops all blink state.
func (d *Detector) ResetAll() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.states = make(map[int]*trackState)
}

// textureScore measures surface detail at a fixed small resolution. Printed
// photos and screens are noticeably smoother than live skin, so low gradient
// variance votes spoof.
func (d *Detector) textureScore(region *image.RGBA) float64 {
	if region == nil {
		return textureFailScore
	}
	if gradientVariance(region) > d.textureThreshold {
		return texturePassScore
	}
	return textureFailScore
}

// colorScore measures chroma diversity. Reproductions compress the color
// range of real skin.
func (d *Detector) colorScore(region *image.RGBA) float64 {
	if region == nil {
		return colorFailScore
	}
	if chromaStdDevSum(region) > d.colorThreshold {
		return colorPassScore
	}
	return colorFailScore
}

// blinkScore tracks the eye aspect ratio over time and looks for a full
// close-and-reopen cycle. A static reproduction never blinks.
func (d *Detector) blinkScore(landmarks *facedet.EyeLandmarks, trackID int) float64 {
	if landmarks == nil || len(landmarks.LeftEye) < 6 || len(landmarks.RightEye) < 6 {
		return blinkNoLandmarksScore
	}

	ear := (eyeAspectRatio(landmarks.LeftEye) + eyeAspectRatio(landmarks.RightEye)) / 2.0

	d.mu.Lock()
	defer d.mu.Unlock()

	state, ok := d.states[trackID]
	if !ok {
		state = &trackState{}
		d.states[trackID] = state
	}

	state.earHistory = append(state.earHistory, ear)
	if len(state.earHistory) > earHistorySize {
		state.earHistory = state.earHistory[len(state.earHistory)-earHistorySize:]
	}

	// A blink is the reopening edge: the previous sample below the threshold,
	// the current one back above it. The edge only counts with at least
	// three samples of history, so a track first seen mid-blink starts clean.
	if n := len(state.earHistory); n >= 3 &&
		state.earHistory[n-2] < d.blinkThreshold && state.earHistory[n-1] > d.blinkThreshold {
		state.blinks++
	}

	if len(state.earHistory) < blinkMinSamples {
		return blinkFailScore
	}
	if state.blinks >= d.minBlinks {
		return blinkPassScore
	}
	return blinkFailScore
}
