package pipeline

import (
	"context"
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/kozaktomas/face-sentry/internal/facedet"
)

// FrameSource delivers frames to the pipeline. NextFrame returns io.EOF when
// the source is exhausted; live sources never are.
type FrameSource interface {
	NextFrame(ctx context.Context) (image.Image, error)
	Close() error
}

// CameraSource pulls frames from the detection sidecar's camera endpoint at
// a fixed interval.
type CameraSource struct {
	client   *facedet.Client
	index    int
	width    int
	height   int
	interval time.Duration
	last     time.Time
}

// NewCameraSource creates a live source capped at the given frame rate.
func NewCameraSource(client *facedet.Client, index, width, height int, fps int) *CameraSource {
	if fps <= 0 {
		fps = 15
	}
	return &CameraSource{
		client:   client,
		index:    index,
		width:    width,
		height:   height,
		interval: time.Second / time.Duration(fps),
	}
}

func (s *CameraSource) NextFrame(ctx context.Context) (image.Image, error) {
	if wait := s.interval - time.Since(s.last); wait > 0 {
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	s.last = time.Now()
	return s.client.CaptureFrame(ctx, s.index, s.width, s.height)
}

func (s *CameraSource) Close() error { return nil }

// DirSource replays still images from a directory in lexical order. Used for
// offline processing and testing.
type DirSource struct {
	paths []string
	pos   int
}

// NewDirSource lists the supported images in dir.
func NewDirSource(dir string) (*DirSource, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading frame directory: %w", err)
	}

	var paths []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".jpg", ".jpeg", ".png", ".bmp", ".webp":
			paths = append(paths, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(paths)
	if len(paths) == 0 {
		return nil, fmt.Errorf("no images found in %s", dir)
	}
	return &DirSource{paths: paths}, nil
}

func (s *DirSource) NextFrame(ctx context.Context) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.pos >= len(s.paths) {
		return nil, io.EOF
	}
	path := s.paths[s.pos]
	s.pos++

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening frame %s: %w", path, err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decoding frame %s: %w", path, err)
	}
	return img, nil
}

func (s *DirSource) Close() error { return nil }
