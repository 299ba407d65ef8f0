// Package vector provides an exact nearest-neighbor index over chunk
// embeddings. Corpus sizes are personal-scale (thousands of chunks, not
// billions), so brute-force cosine scan is the whole implementation;
// determinism matters more than speed here.
package vector

import (
	"math"
	"sort"
	"sync"

	"github.com/feedgraph/feedgraph/pkg/model"
	"github.com/m-mizutani/goerr/v2"
)

type entry struct {
	chunkID model.ChunkID
	vec     []float32
	norm    float64
	order   int
	deleted bool
}

// Index is a cosine-similarity index with a corpus-wide fixed
// dimensionality. The dimension is set at creation, or pinned by the first
// insert when created with dimension 0; changing it requires a full
// rebuild.
type Index struct {
	mu      sync.RWMutex
	dim     int
	entries []entry
	byChunk map[model.ChunkID]int
	nextOrd int
}

func New(dimension int) *Index {
	return &Index{
		dim:     dimension,
		byChunk: map[model.ChunkID]int{},
	}
}

// Dimension returns the fixed dimensionality, 0 if not yet pinned.
func (x *Index) Dimension() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.dim
}

// Len returns the number of live entries.
func (x *Index) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.byChunk)
}

// Insert adds one chunk vector. Re-inserting an existing chunk replaces
// its vector but keeps its original insertion order, so search tie-breaks
// stay stable across corrections.
func (x *Index) Insert(chunkID model.ChunkID, vec []float32) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	if x.dim == 0 {
		if len(vec) == 0 {
			return goerr.Wrap(model.ErrDimensionMismatch, "empty vector", goerr.V("chunk", chunkID))
		}
		x.dim = len(vec)
	}
	if len(vec) != x.dim {
		return goerr.Wrap(model.ErrDimensionMismatch, "insert",
			goerr.V("chunk", chunkID), goerr.V("want", x.dim), goerr.V("got", len(vec)))
	}

	stored := make([]float32, len(vec))
	copy(stored, vec)

	if i, ok := x.byChunk[chunkID]; ok {
		x.entries[i].vec = stored
		x.entries[i].norm = norm(stored)
		return nil
	}

	x.entries = append(x.entries, entry{
		chunkID: chunkID,
		vec:     stored,
		norm:    norm(stored),
		order:   x.nextOrd,
	})
	x.byChunk[chunkID] = len(x.entries) - 1
	x.nextOrd++
	return nil
}

// Remove deletes a chunk from the index. Unknown chunks are a no-op.
func (x *Index) Remove(chunkID model.ChunkID) {
	x.mu.Lock()
	defer x.mu.Unlock()
	if i, ok := x.byChunk[chunkID]; ok {
		x.entries[i].deleted = true
		x.entries[i].vec = nil
		delete(x.byChunk, chunkID)
	}
}

// Hit is one search result.
type Hit struct {
	ChunkID    model.ChunkID
	Similarity float64
}

// Search returns up to k chunks ordered by descending cosine similarity to
// the query vector. Ties break by insertion order, so identical index
// state and query always yield identical output.
func (x *Index) Search(query []float32, k int) ([]Hit, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	if x.dim != 0 && len(query) != x.dim {
		return nil, goerr.Wrap(model.ErrDimensionMismatch, "search",
			goerr.V("want", x.dim), goerr.V("got", len(query)))
	}
	if k <= 0 || len(x.byChunk) == 0 {
		return nil, nil
	}

	qn := norm(query)
	type scored struct {
		sim   float64
		order int
		idx   int
	}
	candidates := make([]scored, 0, len(x.byChunk))
	for i := range x.entries {
		e := &x.entries[i]
		if e.deleted {
			continue
		}
		candidates = append(candidates, scored{
			sim:   cosine(query, qn, e.vec, e.norm),
			order: e.order,
			idx:   i,
		})
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].sim != candidates[j].sim {
			return candidates[i].sim > candidates[j].sim
		}
		return candidates[i].order < candidates[j].order
	})

	if k > len(candidates) {
		k = len(candidates)
	}
	hits := make([]Hit, k)
	for i := 0; i < k; i++ {
		hits[i] = Hit{
			ChunkID:    x.entries[candidates[i].idx].chunkID,
			Similarity: candidates[i].sim,
		}
	}
	return hits, nil
}

func norm(v []float32) float64 {
	var s float64
	for _, f := range v {
		s += float64(f) * float64(f)
	}
	return math.Sqrt(s)
}

func cosine(a []float32, an float64, b []float32, bn float64) float64 {
	if an == 0 || bn == 0 {
		return 0
	}
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot / (an * bn)
}
