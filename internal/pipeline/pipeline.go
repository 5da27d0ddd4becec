// Package pipeline drives the recognition loop: pull a frame, detect faces
// on a downscaled copy, match identities, associate them across frames and
// check liveness, then fan the results out to the store, attendance log and
// notifier.
package pipeline

import (
	"context"
	"errors"
	"image"
	"io"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/image/draw"

	"github.com/kozaktomas/face-sentry/internal/attendance"
	"github.com/kozaktomas/face-sentry/internal/config"
	"github.com/kozaktomas/face-sentry/internal/facedet"
	"github.com/kozaktomas/face-sentry/internal/liveness"
	"github.com/kozaktomas/face-sentry/internal/notify"
	"github.com/kozaktomas/face-sentry/internal/recognition"
	"github.com/kozaktomas/face-sentry/internal/store"
	"github.com/kozaktomas/face-sentry/internal/tracker"
)

// Observation is one face in the latest processed frame.
type Observation struct {
	TrackID       int                 `json:"track_id"`
	Name          string              `json:"name"`
	Confidence    float64             `json:"confidence"`
	Box           facedet.BoundingBox `json:"box"`
	IsLive        bool                `json:"is_live"`
	LivenessScore float64             `json:"liveness_score"`
}

// Snapshot is the pipeline's latest published state, served by the web API.
type Snapshot struct {
	RunID       string        `json:"run_id"`
	FrameNumber uint64        `json:"frame_number"`
	ProcessedAt time.Time     `json:"processed_at"`
	Faces       []Observation `json:"faces"`
}

// Pipeline wires the recognition stages together. One Run call owns the
// loop; Snapshot may be read concurrently from other goroutines.
type Pipeline struct {
	cfg        *config.Config
	detector   facedet.Detector
	engine     *recognition.Engine
	tracker    *tracker.Tracker
	liveness   *liveness.Detector
	store      store.Store
	attendance *attendance.Logger
	notifier   *notify.Notifier

	runID      string
	frameCount uint64

	mu     sync.RWMutex
	latest Snapshot
}

// New assembles a pipeline. store, attendance and notifier may be nil when
// the corresponding feature is disabled. The tracker's deregistration hook is
// wired to the liveness detector so blink state dies with its track.
func New(
	cfg *config.Config,
	detector facedet.Detector,
	engine *recognition.Engine,
	trk *tracker.Tracker,
	live *liveness.Detector,
	st store.Store,
	att *attendance.Logger,
	ntf *notify.Notifier,
) *Pipeline {
	trk.OnDeregister = live.Reset

	return &Pipeline{
		cfg:        cfg,
		detector:   detector,
		engine:     engine,
		tracker:    trk,
		liveness:   live,
		store:      st,
		attendance: att,
		notifier:   ntf,
		runID:      uuid.NewString(),
	}
}

// RunID identifies this pipeline instance in stored detections.
func (p *Pipeline) RunID() string {
	return p.runID
}

// Run consumes the source until it is exhausted or the context is canceled.
// Frame skipping applies here: only every N-th frame goes through the full
// recognition path, the rest are dropped to keep up with a live source.
func (p *Pipeline) Run(ctx context.Context, src FrameSource) error {
	defer src.Close()

	log.Printf("pipeline %s started", p.runID)
	skip := p.cfg.Recognition.SkipFrames
	if skip < 1 {
		skip = 1
	}

	for {
		frame, err := src.NextFrame(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) {
				log.Printf("pipeline %s: source exhausted after %d frames", p.runID, p.frameCount)
				return nil
			}
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			log.Printf("pipeline %s: frame error: %v", p.runID, err)
			continue
		}

		p.frameCount++
		if (p.frameCount-1)%uint64(skip) != 0 {
			continue
		}

		if err := p.processFrame(ctx, frame); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			log.Printf("pipeline %s: processing frame %d: %v", p.runID, p.frameCount, err)
		}
	}
}

// Snapshot returns the latest published state.
func (p *Pipeline) Snapshot() Snapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.latest
}

func (p *Pipeline) processFrame(ctx context.Context, frame image.Image) error {
	boxes, err := p.detectFaces(ctx, frame)
	if err != nil {
		return err
	}

	names := make([]string, len(boxes))
	confidences := make([]float64, len(boxes))
	matches := make(map[facedet.BoundingBox]recognition.Match, len(boxes))
	if len(boxes) > 0 {
		encodings, err := p.detector.EncodeFaces(ctx, frame, boxes)
		if err != nil {
			return err
		}
		for i, box := range boxes {
			if i < len(encodings) && encodings[i] != nil {
				m := p.engine.Match(encodings[i])
				names[i] = m.Name
				confidences[i] = m.Confidence
				matches[box] = m
			} else {
				names[i] = recognition.UnknownName
				matches[box] = recognition.Match{Name: recognition.UnknownName, Distance: 1}
			}
		}
	}

	tracked := p.tracker.Update(boxes, names, confidences)

	observations := make([]Observation, 0, len(tracked))
	for _, obj := range tracked {
		landmarks, err := p.detector.EyeLandmarks(ctx, frame, obj.Box)
		if err != nil {
			landmarks = nil
		}
		result := p.liveness.Check(frame, obj.Box, landmarks, obj.ID)

		// Name and confidence come from the tracker, which keeps the last
		// recognized values across frames where recognition came up short.
		obs := Observation{
			TrackID:       obj.ID,
			Name:          obj.Name,
			Confidence:    obj.Confidence,
			Box:           obj.Box,
			IsLive:        result.IsLive,
			LivenessScore: result.Confidence,
		}
		observations = append(observations, obs)

		// A track missing from this frame carries its last-known box, which
		// has no detection behind it; it stays in the snapshot but produces
		// no stored detection, alert or attendance.
		if match, detected := matches[obj.Box]; detected {
			p.handleObservation(ctx, obs, match.Distance)
		}
	}

	p.mu.Lock()
	p.latest = Snapshot{
		RunID:       p.runID,
		FrameNumber: p.frameCount,
		ProcessedAt: time.Now(),
		Faces:       observations,
	}
	p.mu.Unlock()

	return nil
}

// detectFaces runs detection on a downscaled copy of the frame and maps the
// boxes back to full-frame coordinates, dropping faces below the size gate.
func (p *Pipeline) detectFaces(ctx context.Context, frame image.Image) ([]facedet.BoundingBox, error) {
	scale := p.cfg.Recognition.FrameScale
	detectImg := frame
	if scale > 0 && scale < 1 {
		detectImg = downscale(frame, scale)
	}

	boxes, err := p.detector.DetectFaces(ctx, detectImg)
	if err != nil {
		return nil, err
	}

	minSize := p.cfg.Recognition.MinFaceSize
	out := make([]facedet.BoundingBox, 0, len(boxes))
	for _, box := range boxes {
		if scale > 0 && scale < 1 {
			box = box.Scale(1 / scale)
		}
		box = box.Clamp(frame.Bounds())
		if box.Width() < minSize || box.Height() < minSize {
			continue
		}
		out = append(out, box)
	}
	return out, nil
}

// handleObservation fans one face out to persistence, attendance and alerts.
func (p *Pipeline) handleObservation(ctx context.Context, obs Observation, distance float64) {
	known := obs.Name != recognition.UnknownName && obs.Name != ""
	now := time.Now()

	if p.store != nil {
		d := store.Detection{
			RunID:         p.runID,
			Name:          obs.Name,
			Confidence:    obs.Confidence,
			Distance:      distance,
			IsLive:        obs.IsLive,
			LivenessScore: obs.LivenessScore,
			Box:           obs.Box,
			DetectedAt:    now,
		}
		if err := p.store.RecordDetection(ctx, d); err != nil {
			log.Printf("could not record detection: %v", err)
		}
	}

	if !known {
		if p.notifier != nil {
			p.notifier.UnknownFace(now)
		}
		return
	}

	if !obs.IsLive {
		if p.notifier != nil {
			p.notifier.SpoofAttempt(obs.Name, now)
		}
		// A face failing liveness never earns attendance.
		return
	}

	if p.attendance != nil {
		if recorded, err := p.attendance.Mark(obs.Name); err != nil {
			log.Printf("could not mark attendance for %s: %v", obs.Name, err)
		} else if recorded {
			log.Printf("attendance recorded for %s", obs.Name)
		}
	}
}

// downscale resizes the frame by the given factor using a cheap filter;
// detection quality tolerates it and the speedup is what matters.
func downscale(img image.Image, factor float64) image.Image {
	b := img.Bounds()
	w := int(float64(b.Dx()) * factor)
	h := int(float64(b.Dy()) * factor)
	if w < 1 || h < 1 {
		return img
	}
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst
}
