package discover_test

import (
	"context"
	"testing"
	"time"

	"github.com/feedgraph/feedgraph/pkg/graph"
	"github.com/feedgraph/feedgraph/pkg/model"
	"github.com/feedgraph/feedgraph/pkg/repository"
	"github.com/feedgraph/feedgraph/pkg/usecase/discover"
	"github.com/m-mizutani/gt"
)

var t0 = time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)

func putIngested(t *testing.T, repo repository.Repository, id model.ArticleID, published time.Time) {
	ctx := context.Background()
	ingested := published.Add(time.Hour)
	gt.NoError(t, repo.PutArticle(ctx, &model.Article{
		ID: id, Title: string(id), Link: "https://x/" + string(id),
		PublishedAt: published, IngestedAt: &ingested,
	}))
}

func mark(t *testing.T, repo repository.Repository, id model.ArticleID, action model.ReadAction) {
	gt.NoError(t, repo.AddReadingEvent(context.Background(), &model.ReadingEvent{
		ArticleID: id, Action: action, At: time.Now(),
	}))
}

func apply(t *testing.T, g *graph.Graph, articleID model.ArticleID, names ...string) {
	ext := graph.Extraction{}
	for _, name := range names {
		ext.Entities = append(ext.Entities, graph.EntityCandidate{Name: name, Type: "concept"})
	}
	gt.NoError(t, g.Apply(articleID, ext))
}

func TestDiscoverAffinityRanking(t *testing.T) {
	repo := repository.NewMemory()
	g := graph.New()

	// "read" shares entity X with "close"; "far" has only unrelated
	// entities.
	putIngested(t, repo, "read", t0)
	putIngested(t, repo, "close", t0.Add(time.Minute))
	putIngested(t, repo, "far", t0.Add(2*time.Minute))
	apply(t, g, "read", "X")
	apply(t, g, "close", "X", "Y")
	apply(t, g, "far", "Z")
	mark(t, repo, "read", model.ActionRead)

	uc := discover.New(repo, g, discover.WithBeta(1))
	result, err := uc.Discover(context.Background(), 10)
	gt.NoError(t, err)
	gt.False(t, result.ColdStart)

	gt.Equal(t, len(result.Recommendations), 2)
	top := result.Recommendations[0]
	gt.Equal(t, top.Article.ID, model.ArticleID("close"))
	gt.Equal(t, top.Affinity, 0.5)
	gt.Equal(t, top.SharedEntities, []string{"X"})
	gt.Equal(t, top.BridgingEntities, []string{"Y"})

	gt.Equal(t, result.Recommendations[1].Affinity, 0.0)
}

func TestDiscoverReadArticlesExcluded(t *testing.T) {
	repo := repository.NewMemory()
	g := graph.New()

	putIngested(t, repo, "read", t0)
	putIngested(t, repo, "unread", t0)
	apply(t, g, "read", "X")
	apply(t, g, "unread", "X")
	mark(t, repo, "read", model.ActionRead)

	result, err := discover.New(repo, g).Discover(context.Background(), 10)
	gt.NoError(t, err)
	gt.Equal(t, len(result.Recommendations), 1)
	gt.Equal(t, result.Recommendations[0].Article.ID, model.ArticleID("unread"))
}

func TestDiscoverDismissedNeverRecommended(t *testing.T) {
	repo := repository.NewMemory()
	g := graph.New()

	putIngested(t, repo, "read", t0)
	putIngested(t, repo, "dismissed", t0)
	apply(t, g, "read", "X")
	apply(t, g, "dismissed", "X")
	mark(t, repo, "read", model.ActionRead)
	mark(t, repo, "dismissed", model.ActionDismissed)

	result, err := discover.New(repo, g).Discover(context.Background(), 10)
	gt.NoError(t, err)
	gt.Equal(t, len(result.Recommendations), 0)
}

func TestDiscoverOpenedStillCandidate(t *testing.T) {
	repo := repository.NewMemory()
	g := graph.New()

	putIngested(t, repo, "read", t0)
	putIngested(t, repo, "glanced", t0)
	apply(t, g, "read", "X")
	apply(t, g, "glanced", "X")
	mark(t, repo, "read", model.ActionRead)
	mark(t, repo, "glanced", model.ActionOpened)

	result, err := discover.New(repo, g).Discover(context.Background(), 10)
	gt.NoError(t, err)
	gt.Equal(t, len(result.Recommendations), 1)
	gt.Equal(t, result.Recommendations[0].Article.ID, model.ArticleID("glanced"))
}

func TestDiscoverColdStart(t *testing.T) {
	repo := repository.NewMemory()
	g := graph.New()

	putIngested(t, repo, "a", t0)
	putIngested(t, repo, "b", t0.Add(time.Minute))
	apply(t, g, "a", "X")
	apply(t, g, "b", "Y")

	result, err := discover.New(repo, g).Discover(context.Background(), 10)
	gt.NoError(t, err)
	gt.True(t, result.ColdStart)
	gt.Equal(t, len(result.Recommendations), 2)

	// With no read history everything is novel; scores tie at 1 and order
	// falls back to published date, newest first.
	gt.Equal(t, result.Recommendations[0].Article.ID, model.ArticleID("b"))
	gt.Equal(t, result.Recommendations[0].Score, 1.0)
	gt.Equal(t, result.Recommendations[0].Novelty, 1.0)
}

func TestDiscoverStarBoost(t *testing.T) {
	g := graph.New()
	// Two candidates one hop from read history; candA's linking entity
	// comes from a starred article, candB's from a merely read one.
	apply(t, g, "star", "S")
	apply(t, g, "plain", "P")
	gt.NoError(t, g.Apply("candA", graph.Extraction{
		Entities: []graph.EntityCandidate{{Name: "A1", Type: "concept"}},
		Relations: []graph.RelationCandidate{
			{Source: "A1", SourceType: "concept", Target: "S", TargetType: "concept", Type: "related_to"},
		},
	}))
	gt.NoError(t, g.Apply("candB", graph.Extraction{
		Entities: []graph.EntityCandidate{{Name: "B1", Type: "concept"}},
		Relations: []graph.RelationCandidate{
			{Source: "B1", SourceType: "concept", Target: "P", TargetType: "concept", Type: "related_to"},
		},
	}))

	repo := repository.NewMemory()
	putIngested(t, repo, "star", t0)
	putIngested(t, repo, "plain", t0)
	// candA is older, so only the boost can put it first.
	putIngested(t, repo, "candA", t0)
	putIngested(t, repo, "candB", t0.Add(time.Hour))
	mark(t, repo, "star", model.ActionStarred)
	mark(t, repo, "plain", model.ActionRead)

	uc := discover.New(repo, g, discover.WithBeta(1), discover.WithStarBoost(1.5))
	result, err := uc.Discover(context.Background(), 10)
	gt.NoError(t, err)
	gt.Equal(t, len(result.Recommendations), 2)
	gt.Equal(t, result.Recommendations[0].Article.ID, model.ArticleID("candA"))
	gt.True(t, result.Recommendations[0].Affinity > result.Recommendations[1].Affinity)
}

func TestDiscoverPendingArticlesExcluded(t *testing.T) {
	repo := repository.NewMemory()
	g := graph.New()

	putIngested(t, repo, "read", t0)
	apply(t, g, "read", "X")
	mark(t, repo, "read", model.ActionRead)
	// Stored but never ingested: no graph state, not a candidate.
	gt.NoError(t, repo.PutArticle(context.Background(), &model.Article{
		ID: "pending", Title: "pending", Link: "https://x/pending", PublishedAt: t0,
	}))

	result, err := discover.New(repo, g).Discover(context.Background(), 10)
	gt.NoError(t, err)
	gt.Equal(t, len(result.Recommendations), 0)
}

func TestDiscoverLimit(t *testing.T) {
	repo := repository.NewMemory()
	g := graph.New()
	for i, id := range []model.ArticleID{"a", "b", "c"} {
		putIngested(t, repo, id, t0.Add(time.Duration(i)*time.Minute))
		apply(t, g, id, "E"+string(id))
	}

	result, err := discover.New(repo, g).Discover(context.Background(), 2)
	gt.NoError(t, err)
	gt.Equal(t, len(result.Recommendations), 2)
}
