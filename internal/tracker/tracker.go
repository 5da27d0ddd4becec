// Package tracker associates face detections across frames by centroid
// proximity, so an identity established once keeps its numeric id while the
// person moves through the scene.
package tracker

import (
	"math"
	"sort"
	"sync"

	"github.com/kozaktomas/face-sentry/internal/facedet"
)

// Object is one tracked face as of the latest Update call. Box and
// Confidence are the last-known values; for a track missing from the current
// frame they date from the frame it was last detected in.
type Object struct {
	ID         int                 `json:"id"`
	Box        facedet.BoundingBox `json:"box"`
	Name       string              `json:"name"`
	Confidence float64             `json:"confidence"`
}

const unknownName = "Unknown"

type trackedFace struct {
	centroid    [2]float64
	box         facedet.BoundingBox
	name        string
	confidence  float64
	disappeared int
}

// Tracker implements centroid tracking: each new detection set is greedily
// matched against the existing tracks by ascending centroid distance, bounded
// by maxDistance. Tracks missing for more than maxDisappeared consecutive
// updates are deregistered.
//
// Methods are safe for concurrent use, though the pipeline calls Update from
// a single goroutine.
type Tracker struct {
	mu             sync.Mutex
	enabled        bool
	maxDisappeared int
	maxDistance    float64
	nextID         int
	faces          map[int]*trackedFace

	// OnDeregister, when set, is called with the id of every track that is
	// dropped. The pipeline uses it to release per-track liveness state.
	OnDeregister func(id int)
}

// New creates a tracker. When enabled is false, Update degrades to a
// stateless passthrough with frame-local ids.
func New(enabled bool, maxDisappeared int, maxDistance float64) *Tracker {
	return &Tracker{
		enabled:        enabled,
		maxDisappeared: maxDisappeared,
		maxDistance:    maxDistance,
		faces:          make(map[int]*trackedFace),
	}
}

// Update advances the tracker by one frame. boxes, names and confidences are
// parallel; names may be unknown. The returned objects carry the stable ids
// and the best name and confidence seen so far for each track, including
// tracks missing from this frame that are still within the grace period. A
// recognized name updates the track's name and confidence together; an
// unknown result never erases either.
func (t *Tracker) Update(boxes []facedet.BoundingBox, names []string, confidences []float64) []Object {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.enabled {
		out := make([]Object, len(boxes))
		for i, box := range boxes {
			out[i] = Object{ID: i, Box: box, Name: nameOrUnknown(names, i), Confidence: confidenceAt(confidences, i)}
		}
		return out
	}

	if len(boxes) == 0 {
		for id, face := range t.faces {
			face.disappeared++
			if face.disappeared > t.maxDisappeared {
				t.deregister(id)
			}
		}
		return t.snapshot()
	}

	centroids := make([][2]float64, len(boxes))
	for i, box := range boxes {
		x, y := box.Centroid()
		centroids[i] = [2]float64{x, y}
	}

	if len(t.faces) == 0 {
		for i := range boxes {
			t.register(centroids[i], boxes[i], nameOrUnknown(names, i), confidenceAt(confidences, i))
		}
		return t.snapshot()
	}

	ids := make([]int, 0, len(t.faces))
	for id := range t.faces {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	// Distance matrix between existing tracks (rows) and detections (cols).
	dist := make([][]float64, len(ids))
	for r, id := range ids {
		dist[r] = make([]float64, len(centroids))
		for c, ct := range centroids {
			dist[r][c] = euclidean(t.faces[id].centroid, ct)
		}
	}

	// Greedy assignment: rows in order of their closest detection, each
	// claiming its nearest free column when within range.
	rows := make([]int, len(ids))
	for i := range rows {
		rows[i] = i
	}
	sort.Slice(rows, func(a, b int) bool {
		return minOf(dist[rows[a]]) < minOf(dist[rows[b]])
	})

	usedRows := make(map[int]bool, len(rows))
	usedCols := make(map[int]bool, len(centroids))
	for _, r := range rows {
		c := argmin(dist[r])
		if usedCols[c] || dist[r][c] > t.maxDistance {
			continue
		}
		face := t.faces[ids[r]]
		face.centroid = centroids[c]
		face.box = boxes[c]
		face.disappeared = 0
		if name := nameOrUnknown(names, c); name != unknownName {
			face.name = name
			face.confidence = confidenceAt(confidences, c)
		}
		usedRows[r] = true
		usedCols[c] = true
	}

	for r, id := range ids {
		if usedRows[r] {
			continue
		}
		face := t.faces[id]
		face.disappeared++
		if face.disappeared > t.maxDisappeared {
			t.deregister(id)
		}
	}
	for c := range centroids {
		if !usedCols[c] {
			t.register(centroids[c], boxes[c], nameOrUnknown(names, c), confidenceAt(confidences, c))
		}
	}

	return t.snapshot()
}

// Reset drops all tracks, firing OnDeregister for each.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for id := range t.faces {
		t.deregister(id)
	}
}

// Count returns the number of live tracks.
func (t *Tracker) Count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.faces)
}

func (t *Tracker) register(centroid [2]float64, box facedet.BoundingBox, name string, confidence float64) {
	t.faces[t.nextID] = &trackedFace{centroid: centroid, box: box, name: name, confidence: confidence}
	t.nextID++
}

func (t *Tracker) deregister(id int) {
	delete(t.faces, id)
	if t.OnDeregister != nil {
		t.OnDeregister(id)
	}
}

// snapshot returns every live track, sorted by id. A track missing from the
// current frame is still reported with its last-known box until the grace
// period deregisters it.
func (t *Tracker) snapshot() []Object {
	out := make([]Object, 0, len(t.faces))
	for id, face := range t.faces {
		out = append(out, Object{ID: id, Box: face.box, Name: face.name, Confidence: face.confidence})
	}
	sort.Slice(out, func(a, b int) bool { return out[a].ID < out[b].ID })
	return out
}

func nameOrUnknown(names []string, i int) string {
	if i < len(names) && names[i] != "" {
		return names[i]
	}
	return unknownName
}

func confidenceAt(confidences []float64, i int) float64 {
	if i < len(confidences) {
		return confidences[i]
	}
	return 0
}

func euclidean(a, b [2]float64) float64 {
	dx := a[0] - b[0]
	dy := a[1] - b[1]
	return math.Sqrt(dx*dx + dy*dy)
}

func minOf(vals []float64) float64 {
	m := vals[0]
	for _, v := range vals[1:] {
		if v < m {
			m = v
		}
	}
	return m
}

func argmin(vals []float64) int {
	best := 0
	for i, v := range vals {
		if v < vals[best] {
			best = i
		}
	}
	return best
}
