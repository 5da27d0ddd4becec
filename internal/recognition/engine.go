// Package recognition implements nearest-neighbor identity matching over a
// directory of reference images. Encodings are loaded through a persistent
// cache and matched either by exhaustive scan or through an HNSW index once
// the corpus is large enough to benefit.
package recognition

import (
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"

	"github.com/kozaktomas/face-sentry/internal/enccache"
	"github.com/kozaktomas/face-sentry/internal/facedet"
)

// exhaustiveScanLimit is the corpus size below which a linear scan beats the
// index. Below it no index is built at all.
const exhaustiveScanLimit = 32

// imageExtensions lists the reference image formats the engine accepts.
var imageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".bmp":  true,
	".webp": true,
}

// UnknownName is the identity reported when no encoding is close enough.
const UnknownName = "Unknown"

// Match is the result of one identity lookup.
type Match struct {
	Name       string  `json:"name"`
	Confidence float64 `json:"confidence"`
	Distance   float64 `json:"distance"`
}

// PersonStore is the subset of the event store the engine records person
// state to. A nil store disables persistence.
type PersonStore interface {
	UpsertPerson(ctx context.Context, name string, imageCount int) error
	RemovePerson(ctx context.Context, name string) error
}

// Engine matches face encodings against a set of known people. The in-memory
// state is a flat encoding list with a parallel name list; Load rebuilds both
// atomically, so Match always sees a consistent snapshot.
type Engine struct {
	dir       string
	threshold float64
	detector  facedet.Detector
	cache     *enccache.Cache
	store     PersonStore

	// OnProgress, when set, is called after each person is processed during
	// Load. Must be set before the first Load call.
	OnProgress func(done, total int)

	mu          sync.RWMutex
	names       []string
	encodings   []facedet.Encoding
	index       *Index
	imageCounts map[string]int
}

// New creates an engine over the given reference directory. The store may be
// nil when persistence is not configured.
func New(dir string, threshold float64, detector facedet.Detector, cache *enccache.Cache, store PersonStore) *Engine {
	return &Engine{
		dir:         dir,
		threshold:   threshold,
		detector:    detector,
		cache:       cache,
		store:       store,
		imageCounts: make(map[string]int),
	}
}

// Load scans the reference directory and (re)builds the full matching state.
// Two layouts are supported and may be mixed: one image per person as a flat
// "name.jpg" file, and one directory per person holding several images.
// Cached encodings are reused whenever the underlying files are unchanged.
func (e *Engine) Load(ctx context.Context) error {
	people, err := listReferenceImages(e.dir)
	if err != nil {
		return fmt.Errorf("scanning known faces directory: %w", err)
	}

	names := make([]string, 0, len(people))
	for name := range people {
		names = append(names, name)
	}
	sort.Strings(names)

	var flatNames []string
	var flatEncodings []facedet.Encoding
	counts := make(map[string]int, len(people))

	for i, name := range names {
		if err := ctx.Err(); err != nil {
			return err
		}

		paths := people[name]
		encodings, needsUpdate := e.cache.GetEncodings(name, paths)
		if needsUpdate {
			encodings = e.encodePerson(ctx, name, paths)
			if len(encodings) > 0 {
				if err := e.cache.StoreEncodings(name, paths, encodings); err != nil {
					log.Printf("could not cache encodings for %s: %v", name, err)
				}
			}
		}

		if len(encodings) == 0 {
			log.Printf("no usable reference images for %s, skipping", name)
			continue
		}

		for _, enc := range encodings {
			flatNames = append(flatNames, name)
			flatEncodings = append(flatEncodings, enc)
		}
		counts[name] = len(paths)

		if e.store != nil {
			if err := e.store.UpsertPerson(ctx, name, len(paths)); err != nil {
				log.Printf("could not persist person %s: %v", name, err)
			}
		}
		if e.OnProgress != nil {
			e.OnProgress(i+1, len(names))
		}
	}

	var idx *Index
	if len(flatEncodings) >= exhaustiveScanLimit {
		idx = BuildIndex(flatEncodings)
	}

	e.mu.Lock()
	e.names = flatNames
	e.encodings = flatEncodings
	e.index = idx
	e.imageCounts = counts
	e.mu.Unlock()

	log.Printf("loaded %d encodings for %d people", len(flatEncodings), len(counts))
	return nil
}

// encodePerson computes encodings for all of a person's reference images.
// Individual images that fail quality checks or contain no face are skipped
// with a logged reason; one bad image never blocks the rest.
func (e *Engine) encodePerson(ctx context.Context, name string, paths []string) []facedet.Encoding {
	var out []facedet.Encoding
	for _, path := range paths {
		enc, err := e.encodeReferenceImage(ctx, path)
		if err != nil {
			log.Printf("skipping %s: %v", path, err)
			continue
		}
		out = append(out, enc)
	}
	return out
}

// encodeReferenceImage produces the encoding of the primary face in one
// reference image: quality gate, eye alignment, then encoding.
func (e *Engine) encodeReferenceImage(ctx context.Context, path string) (facedet.Encoding, error) {
	img, err := decodeImageFile(path)
	if err != nil {
		return nil, err
	}

	if ok, reason := CheckImageQuality(img); !ok {
		return nil, fmt.Errorf("quality check failed: %s", reason)
	}

	boxes, err := e.detector.DetectFaces(ctx, img)
	if err != nil {
		return nil, fmt.Errorf("detecting faces: %w", err)
	}
	if len(boxes) == 0 {
		return nil, fmt.Errorf("no face found")
	}

	// Only the primary face counts; reference images with bystanders would
	// otherwise poison the person's encoding set.
	primary := boxes[0]

	landmarks, err := e.detector.EyeLandmarks(ctx, img, primary)
	if err != nil {
		return nil, fmt.Errorf("extracting landmarks: %w", err)
	}
	aligned := AlignFace(img, landmarks)
	if aligned != img {
		// Rotation moved the face; detect again in the aligned frame.
		boxes, err = e.detector.DetectFaces(ctx, aligned)
		if err != nil {
			return nil, fmt.Errorf("detecting faces after alignment: %w", err)
		}
		if len(boxes) == 0 {
			return nil, fmt.Errorf("face lost during alignment")
		}
		primary = boxes[0]
	}

	encodings, err := e.detector.EncodeFaces(ctx, aligned, []facedet.BoundingBox{primary})
	if err != nil {
		return nil, fmt.Errorf("encoding face: %w", err)
	}
	if len(encodings) == 0 || encodings[0] == nil {
		return nil, fmt.Errorf("face could not be encoded")
	}
	return encodings[0], nil
}

// Match finds the closest known encoding. A face matches only when its
// distance is strictly below the threshold; anything else is UnknownName
// with zero confidence. An empty corpus reports the worst-case distance of
// 1. Confidence is 1 - distance, clamped at zero.
func (e *Engine) Match(encoding facedet.Encoding) Match {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if len(e.encodings) == 0 {
		return Match{Name: UnknownName, Distance: 1}
	}

	var best int
	var bestDist float64
	if e.index != nil {
		pos, dist, err := e.index.Nearest(encoding)
		if err == nil {
			best, bestDist = pos, dist
		} else {
			best, bestDist = e.scanNearest(encoding)
		}
	} else {
		best, bestDist = e.scanNearest(encoding)
	}

	if bestDist >= e.threshold {
		return Match{Name: UnknownName, Distance: bestDist}
	}

	confidence := 1.0 - bestDist
	if confidence < 0 {
		confidence = 0
	}
	return Match{Name: e.names[best], Confidence: confidence, Distance: bestDist}
}

// scanNearest is the exhaustive fallback. Callers must hold e.mu.
func (e *Engine) scanNearest(encoding facedet.Encoding) (int, float64) {
	best := 0
	bestDist := facedet.EuclideanDistance(encoding, e.encodings[0])
	for i := 1; i < len(e.encodings); i++ {
		if d := facedet.EuclideanDistance(encoding, e.encodings[i]); d < bestDist {
			best, bestDist = i, d
		}
	}
	return best, bestDist
}

// Register adds a new reference image for a person and reloads the engine.
// A capture without a usable face returns false, not an error; errors are
// reserved for I/O and detector failures.
func (e *Engine) Register(ctx context.Context, img image.Image, name string) (bool, error) {
	name = NormalizePersonName(name)
	if name == "" {
		return false, fmt.Errorf("person name must not be empty")
	}

	if ok, reason := CheckImageQuality(img); !ok {
		log.Printf("register %s: image rejected: %s", name, reason)
		return false, nil
	}
	boxes, err := e.detector.DetectFaces(ctx, img)
	if err != nil {
		return false, fmt.Errorf("detecting faces: %w", err)
	}
	if len(boxes) == 0 {
		log.Printf("register %s: no face detected in image", name)
		return false, nil
	}

	personDir := filepath.Join(e.dir, name)
	if err := os.MkdirAll(personDir, 0o750); err != nil {
		return false, fmt.Errorf("creating person directory: %w", err)
	}

	path, err := nextImagePath(personDir, name)
	if err != nil {
		return false, err
	}
	f, err := os.Create(path)
	if err != nil {
		return false, fmt.Errorf("creating reference image: %w", err)
	}
	if err := jpeg.Encode(f, img, &jpeg.Options{Quality: 95}); err != nil {
		f.Close()
		os.Remove(path)
		return false, fmt.Errorf("writing reference image: %w", err)
	}
	if err := f.Close(); err != nil {
		return false, fmt.Errorf("writing reference image: %w", err)
	}

	return true, e.Load(ctx)
}

// RemovePerson deletes a person's reference images, cache entry and store
// record, then reloads the engine so the matcher state reflects the removal.
func (e *Engine) RemovePerson(ctx context.Context, name string) error {
	name = NormalizePersonName(name)

	e.mu.RLock()
	_, known := e.imageCounts[name]
	e.mu.RUnlock()
	if !known {
		return fmt.Errorf("unknown person %q", name)
	}

	people, err := listReferenceImages(e.dir)
	if err != nil {
		return fmt.Errorf("scanning known faces directory: %w", err)
	}
	for _, path := range people[name] {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("removing reference image %s: %w", path, err)
		}
	}
	// Drop the per-person directory when that layout was used.
	personDir := filepath.Join(e.dir, name)
	if info, err := os.Stat(personDir); err == nil && info.IsDir() {
		if err := os.RemoveAll(personDir); err != nil {
			return fmt.Errorf("removing person directory: %w", err)
		}
	}

	if err := e.cache.RemovePerson(name); err != nil {
		return fmt.Errorf("removing cache entry for %s: %w", name, err)
	}
	if e.store != nil {
		if err := e.store.RemovePerson(ctx, name); err != nil {
			log.Printf("could not remove person %s from store: %v", name, err)
		}
	}
	return e.Load(ctx)
}

// Names returns the distinct known person names, sorted.
func (e *Engine) Names() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()

	names := make([]string, 0, len(e.imageCounts))
	for name := range e.imageCounts {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ImageCount returns how many reference images a person has loaded.
func (e *Engine) ImageCount(name string) int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.imageCounts[NormalizePersonName(name)]
}

// EncodingCount returns the total number of loaded encodings.
func (e *Engine) EncodingCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.encodings)
}

// Validate checks internal consistency: parallel slices in sync and every
// encoding carrying the expected dimensionality.
func (e *Engine) Validate() error {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if len(e.names) != len(e.encodings) {
		return fmt.Errorf("name/encoding list mismatch: %d vs %d", len(e.names), len(e.encodings))
	}
	for i, enc := range e.encodings {
		if len(enc) != facedet.EncodingDim {
			return fmt.Errorf("encoding %d for %s has dimension %d, want %d",
				i, e.names[i], len(enc), facedet.EncodingDim)
		}
	}
	if e.threshold <= 0 {
		return fmt.Errorf("threshold must be positive, got %f", e.threshold)
	}
	return nil
}

// listReferenceImages maps normalized person names to their image paths.
// Flat files use the filename stem as the name; directories use the
// directory name and contribute all images inside.
func listReferenceImages(dir string) (map[string][]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string][]string{}, nil
		}
		return nil, err
	}

	people := make(map[string][]string)
	for _, entry := range entries {
		if entry.IsDir() {
			name := NormalizePersonName(entry.Name())
			sub, err := os.ReadDir(filepath.Join(dir, entry.Name()))
			if err != nil {
				return nil, err
			}
			for _, img := range sub {
				if img.IsDir() || !imageExtensions[strings.ToLower(filepath.Ext(img.Name()))] {
					continue
				}
				people[name] = append(people[name], filepath.Join(dir, entry.Name(), img.Name()))
			}
			continue
		}

		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if !imageExtensions[ext] {
			continue
		}
		name := NormalizePersonName(strings.TrimSuffix(entry.Name(), filepath.Ext(entry.Name())))
		people[name] = append(people[name], filepath.Join(dir, entry.Name()))
	}

	for _, paths := range people {
		sort.Strings(paths)
	}
	return people, nil
}

// nextImagePath finds the first unused "<name>_<n>.jpg" slot in dir.
func nextImagePath(dir, name string) (string, error) {
	base := strings.ReplaceAll(name, " ", "_")
	for n := 1; n < 10000; n++ {
		path := filepath.Join(dir, fmt.Sprintf("%s_%d.jpg", base, n))
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return path, nil
		}
	}
	return "", fmt.Errorf("too many reference images for %s", name)
}

func decodeImageFile(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening image: %w", err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decoding image: %w", err)
	}
	return img, nil
}
