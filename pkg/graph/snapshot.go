package graph

import (
	"encoding/json"
	"io"

	"github.com/feedgraph/feedgraph/pkg/model"
	"github.com/m-mizutani/goerr/v2"
)

type entityRecord struct {
	Name     string   `json:"name"`
	Type     string   `json:"type"`
	Articles []string `json:"articles"`
}

type relationRecord struct {
	Source   int      `json:"source"`
	Target   int      `json:"target"`
	Type     string   `json:"type"`
	Articles []string `json:"articles"`
}

type snapshot struct {
	Entities  []entityRecord   `json:"entities"`
	Relations []relationRecord `json:"relations"`
}

// Save writes the whole graph as a JSON snapshot. Arena order is
// preserved, so entity IDs survive a Save/Load round trip.
func (g *Graph) Save(w io.Writer) error {
	g.mu.RLock()
	defer g.mu.RUnlock()

	snap := snapshot{
		Entities:  make([]entityRecord, 0, len(g.entities)),
		Relations: make([]relationRecord, 0, len(g.relations)),
	}
	for i := range g.entities {
		e := &g.entities[i]
		snap.Entities = append(snap.Entities, entityRecord{
			Name:     e.Name,
			Type:     e.Type,
			Articles: articleStrings(e.Articles),
		})
	}
	for i := range g.relations {
		r := &g.relations[i]
		snap.Relations = append(snap.Relations, relationRecord{
			Source:   int(r.Source),
			Target:   int(r.Target),
			Type:     r.Type,
			Articles: articleStrings(r.Articles),
		})
	}

	if err := json.NewEncoder(w).Encode(&snap); err != nil {
		return goerr.Wrap(err, "failed to encode graph snapshot")
	}
	return nil
}

// Load replaces the graph content with a snapshot previously written by
// Save.
func Load(r io.Reader) (*Graph, error) {
	var snap snapshot
	if err := json.NewDecoder(r).Decode(&snap); err != nil {
		return nil, goerr.Wrap(err, "failed to decode graph snapshot")
	}

	g := New()
	for _, rec := range snap.Entities {
		norm := NormalizeName(rec.Name)
		if norm == "" {
			return nil, goerr.New("graph snapshot contains empty entity name")
		}
		for _, a := range rec.Articles {
			g.upsertEntityLocked(rec.Name, norm, NormalizeName(rec.Type), model.ArticleID(a))
		}
	}
	for _, rec := range snap.Relations {
		src, dst := EntityID(rec.Source), EntityID(rec.Target)
		if !g.validLocked(src) || !g.validLocked(dst) {
			return nil, goerr.Wrap(model.ErrDanglingReference, "graph snapshot",
				goerr.V("source", rec.Source), goerr.V("target", rec.Target))
		}
		for _, a := range rec.Articles {
			g.upsertRelationLocked(src, dst, rec.Type, model.ArticleID(a))
		}
	}
	return g, nil
}

func articleStrings(ids []model.ArticleID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = string(id)
	}
	return out
}
