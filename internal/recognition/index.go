package recognition

import (
	"errors"

	"github.com/coder/hnsw"

	"github.com/kozaktomas/face-sentry/internal/facedet"
)

// HNSW graph parameters for 128-dim face encodings.
const (
	hnswMaxNeighbors = 16

	// hnswCandidates is how many neighbors we request per query. The
	// candidates are re-ranked by exact distance before the winner is
	// picked, so the reported metric matches the exhaustive path.
	hnswCandidates = 16
)

// Index is the accelerated nearest-neighbor index over the engine's flat
// encoding list. Keys are positions in that list, so a lookup result maps
// straight back to the parallel name slice.
type Index struct {
	graph *hnsw.Graph[int]
	size  int
}

// BuildIndex constructs a fresh index from the full encoding set. A nil index
// is returned for an empty set; callers fall back to the exhaustive scan.
func BuildIndex(encodings []facedet.Encoding) *Index {
	if len(encodings) == 0 {
		return nil
	}

	g := hnsw.NewGraph[int]()
	g.M = hnswMaxNeighbors
	g.Ml = 1.0 / float64(hnswMaxNeighbors) // standard HNSW level formula
	g.Distance = hnsw.EuclideanDistance

	// A candidate pool spanning the whole corpus makes the graph search
	// exact, never approximate: an in-gallery face must not come back as a
	// stranger. At the corpus sizes this engine serves the per-query cost
	// stays far below a single detector round-trip.
	g.EfSearch = len(encodings)

	for i, enc := range encodings {
		if len(enc) == 0 {
			continue
		}
		g.Add(hnsw.MakeNode(i, enc))
	}

	return &Index{graph: g, size: len(encodings)}
}

// Nearest returns the position and exact Euclidean distance of the closest
// indexed encoding. The distance is recomputed from the stored vector rather
// than trusted from the graph, so the metric is identical to the exhaustive
// path regardless of what the graph computes internally.
func (idx *Index) Nearest(query facedet.Encoding) (int, float64, error) {
	if idx == nil || idx.graph == nil {
		return 0, 0, errors.New("index not initialized")
	}

	k := hnswCandidates
	if k > idx.size {
		k = idx.size
	}
	neighbors := idx.graph.Search(query, k)
	if len(neighbors) == 0 {
		return 0, 0, errors.New("index returned no candidates")
	}

	best := -1
	bestDist := 0.0
	for _, n := range neighbors {
		d := facedet.EuclideanDistance(query, n.Value)
		if best == -1 || d < bestDist {
			best = n.Key
			bestDist = d
		}
	}
	return best, bestDist, nil
}

// Size returns the number of encodings the index was built from.
func (idx *Index) Size() int {
	if idx == nil {
		return 0
	}
	return idx.size
}
