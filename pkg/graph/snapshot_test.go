package graph_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/feedgraph/feedgraph/pkg/graph"
	"github.com/m-mizutani/gt"
)

func TestSnapshotRoundTrip(t *testing.T) {
	g := graph.New()
	gt.NoError(t, g.Apply("a1", graph.Extraction{
		Entities: []graph.EntityCandidate{
			{Name: "Anthropic", Type: "organization"},
			{Name: "Claude", Type: "product"},
		},
		Relations: []graph.RelationCandidate{
			{Source: "Anthropic", SourceType: "organization", Target: "Claude", TargetType: "product", Type: "released"},
		},
	}))
	gt.NoError(t, g.Apply("a2", graph.Extraction{
		Entities: []graph.EntityCandidate{
			{Name: "Claude", Type: "product"},
			{Name: "RAG", Type: "concept"},
		},
	}))

	var buf bytes.Buffer
	gt.NoError(t, g.Save(&buf))

	loaded, err := graph.Load(&buf)
	gt.NoError(t, err)

	gt.Equal(t, loaded.Stats(), g.Stats())
	gt.Equal(t, loaded.Names(), g.Names())

	// Entity IDs survive the round trip, so saved relation endpoints and
	// downstream references stay valid.
	origID, ok := g.Lookup("claude", "product")
	gt.True(t, ok)
	loadedID, ok := loaded.Lookup("claude", "product")
	gt.True(t, ok)
	gt.Equal(t, origID, loadedID)
	gt.Equal(t, loaded.ArticlesFor(loadedID), g.ArticlesFor(origID))

	dist := loaded.Neighbors(loadedID, 1)
	gt.Equal(t, len(dist), 2)
}

func TestSnapshotLoadRejectsDanglingRelation(t *testing.T) {
	bad := `{"entities":[{"name":"a","type":"concept","articles":["a1"]}],` +
		`"relations":[{"source":0,"target":5,"type":"related_to","articles":["a1"]}]}`
	_, err := graph.Load(strings.NewReader(bad))
	gt.Error(t, err)
}

func TestSnapshotLoadEmptyGraph(t *testing.T) {
	g := graph.New()
	var buf bytes.Buffer
	gt.NoError(t, g.Save(&buf))

	loaded, err := graph.Load(&buf)
	gt.NoError(t, err)
	gt.Equal(t, loaded.Stats(), graph.Stats{})
}
