package facedet

import (
	"context"
	"image"
)

// Detector is the abstraction over the face detection/encoding model.
// Implementations must be safe for sequential use from a single pipeline
// goroutine; they are not required to support concurrent calls.
type Detector interface {
	// DetectFaces finds face bounding boxes in the image, ordered by the
	// model's own ranking (first is the primary face).
	DetectFaces(ctx context.Context, img image.Image) ([]BoundingBox, error)

	// EncodeFaces produces one encoding per box. The returned slice is
	// parallel to boxes; a box the model could not encode yields a nil entry.
	EncodeFaces(ctx context.Context, img image.Image, boxes []BoundingBox) ([]Encoding, error)

	// EyeLandmarks extracts eye contours for a face. Returns (nil, nil) when
	// the model cannot produce landmarks for the box; that is a degraded
	// signal, not an error.
	EyeLandmarks(ctx context.Context, img image.Image, box BoundingBox) (*EyeLandmarks, error)
}
