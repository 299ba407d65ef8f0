package graph_test

import (
	"testing"

	"github.com/feedgraph/feedgraph/pkg/graph"
	"github.com/m-mizutani/gt"
)

func TestMatchNames(t *testing.T) {
	g := graph.New()
	ai, err := g.UpsertEntity("AI", "concept", "a1")
	gt.NoError(t, err)
	openai, err := g.UpsertEntity("OpenAI", "organization", "a1")
	gt.NoError(t, err)
	_, err = g.UpsertEntity("Rust", "technology", "a1")
	gt.NoError(t, err)

	matched := g.MatchNames("What did OpenAI announce about AI safety?")
	gt.Equal(t, matched, []graph.EntityID{ai, openai})
}

func TestMatchNamesWordBoundary(t *testing.T) {
	g := graph.New()
	_, err := g.UpsertEntity("AI", "concept", "a1")
	gt.NoError(t, err)

	gt.Equal(t, len(g.MatchNames("how to maintain a garden")), 0)
}

func TestMatchNamesPunctuation(t *testing.T) {
	g := graph.New()
	id, err := g.UpsertEntity("OpenAI", "organization", "a1")
	gt.NoError(t, err)

	gt.Equal(t, g.MatchNames("OpenAI's latest release"), []graph.EntityID{id})
	gt.Equal(t, g.MatchNames("(openai)"), []graph.EntityID{id})
}

func TestMatchNamesMultiWord(t *testing.T) {
	g := graph.New()
	id, err := g.UpsertEntity("Large Language Model", "concept", "a1")
	gt.NoError(t, err)

	matched := g.MatchNames("training a large language model from scratch")
	gt.Equal(t, matched, []graph.EntityID{id})
	gt.Equal(t, len(g.MatchNames("large models of language")), 0)
}

func TestMatchNamesEmpty(t *testing.T) {
	g := graph.New()
	gt.Equal(t, len(g.MatchNames("   ")), 0)
	gt.Equal(t, len(g.MatchNames("anything")), 0)
}
