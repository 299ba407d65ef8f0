package vector

import (
	"encoding/json"
	"io"

	"github.com/feedgraph/feedgraph/pkg/model"
	"github.com/m-mizutani/goerr/v2"
)

type chunkRecord struct {
	ChunkID string    `json:"chunk_id"`
	Vector  []float32 `json:"vector"`
}

type snapshot struct {
	Dimension int           `json:"dimension"`
	Chunks    []chunkRecord `json:"chunks"`
}

// Save writes all live entries as a JSON snapshot in insertion order.
func (x *Index) Save(w io.Writer) error {
	x.mu.RLock()
	defer x.mu.RUnlock()

	snap := snapshot{Dimension: x.dim}
	for i := range x.entries {
		e := &x.entries[i]
		if e.deleted {
			continue
		}
		snap.Chunks = append(snap.Chunks, chunkRecord{
			ChunkID: string(e.chunkID),
			Vector:  e.vec,
		})
	}
	if err := json.NewEncoder(w).Encode(&snap); err != nil {
		return goerr.Wrap(err, "failed to encode index snapshot")
	}
	return nil
}

// Load rebuilds an index from a snapshot. Insertion order, and with it
// search tie-breaking, follows snapshot order.
func Load(r io.Reader) (*Index, error) {
	var snap snapshot
	if err := json.NewDecoder(r).Decode(&snap); err != nil {
		return nil, goerr.Wrap(err, "failed to decode index snapshot")
	}

	x := New(snap.Dimension)
	for _, rec := range snap.Chunks {
		if err := x.Insert(model.ChunkID(rec.ChunkID), rec.Vector); err != nil {
			return nil, err
		}
	}
	return x, nil
}
