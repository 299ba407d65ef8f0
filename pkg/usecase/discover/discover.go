// Package discover ranks unread articles against the user's reading
// history, balancing topical affinity (graph proximity to what was read)
// against novelty (bridging into entities the reader has not met yet).
package discover

import (
	"context"
	"sort"

	"github.com/feedgraph/feedgraph/pkg/graph"
	"github.com/feedgraph/feedgraph/pkg/model"
	"github.com/feedgraph/feedgraph/pkg/repository"
	"github.com/feedgraph/feedgraph/pkg/utils/logging"
)

const (
	defaultBeta      = 0.7
	defaultDepth     = 3
	defaultStarBoost = 1.5
	maxExplainNames  = 5
)

// UseCase provides reading recommendations
type UseCase struct {
	repo  repository.Repository
	graph *graph.Graph

	beta      float64
	depth     int
	starBoost float64
}

// Option is a functional option for UseCase
type Option func(*UseCase)

// WithBeta sets the affinity/novelty blend: 1 ranks purely by affinity,
// 0 purely by novelty.
func WithBeta(beta float64) Option {
	return func(uc *UseCase) {
		if beta >= 0 && beta <= 1 {
			uc.beta = beta
		}
	}
}

// WithDepth bounds graph expansion from read entities.
func WithDepth(depth int) Option {
	return func(uc *UseCase) {
		if depth > 0 {
			uc.depth = depth
		}
	}
}

// WithStarBoost sets the weight multiplier for entities reachable from
// starred articles' entities.
func WithStarBoost(boost float64) Option {
	return func(uc *UseCase) {
		if boost >= 1 {
			uc.starBoost = boost
		}
	}
}

// New creates a new discover UseCase instance
func New(repo repository.Repository, g *graph.Graph, opts ...Option) *UseCase {
	uc := &UseCase{
		repo:      repo,
		graph:     g,
		beta:      defaultBeta,
		depth:     defaultDepth,
		starBoost: defaultStarBoost,
	}

	for _, opt := range opts {
		opt(uc)
	}

	return uc
}

// Recommendation is one ranked unread article with its explanation
// payload: the entities it shares with read history and the new ones it
// would introduce. Explanation text generation is a downstream LLM
// concern.
type Recommendation struct {
	Article  *model.Article
	Score    float64
	Affinity float64
	Novelty  float64

	SharedEntities   []string
	BridgingEntities []string
}

// Result is a completed discovery pass.
type Result struct {
	Recommendations []*Recommendation

	// ColdStart is set when there was no read history; the ranking is
	// novelty-only in that case.
	ColdStart bool
}

// Discover returns the top unread articles by blended affinity/novelty
// score. Dismissed articles never appear, whatever the history looks
// like. Zero read history is not an error: the scorer falls back to a
// novelty-only ranking flagged as cold start.
func (u *UseCase) Discover(ctx context.Context, limit int) (*Result, error) {
	events, err := u.repo.ListReadingEvents(ctx)
	if err != nil {
		return nil, err
	}
	states := model.ReduceEventLog(events)

	articles, err := u.repo.ListArticles(ctx, 0, 0)
	if err != nil {
		return nil, err
	}

	var readIDs []model.ArticleID
	starred := map[model.ArticleID]bool{}
	var candidates []*model.Article
	for _, article := range articles {
		state := states[article.ID]
		switch {
		case state.Read():
			readIDs = append(readIDs, article.ID)
			if state == model.StateStarred {
				starred[article.ID] = true
			}
		case state == model.StateDismissed:
			// Explicit negative signal: never a candidate.
		case article.Ingested():
			candidates = append(candidates, article)
		}
	}

	result := &Result{ColdStart: len(readIDs) == 0}

	readEntities := map[graph.EntityID]bool{}
	var readList, starList []graph.EntityID
	for _, id := range readIDs {
		for _, eid := range u.graph.EntitiesFor(id) {
			if !readEntities[eid] {
				readEntities[eid] = true
				readList = append(readList, eid)
			}
			if starred[id] {
				starList = append(starList, eid)
			}
		}
	}
	dist := u.graph.Distances(readList, u.depth)
	starDist := u.graph.Distances(starList, u.depth)

	logging.From(ctx).Debug("discovery scoring",
		"candidates", len(candidates),
		"read", len(readIDs),
		"read_entities", len(readList),
		"cold_start", result.ColdStart,
	)

	for _, candidate := range candidates {
		rec := u.score(candidate, readEntities, dist, starDist, result.ColdStart)
		result.Recommendations = append(result.Recommendations, rec)
	}

	sort.Slice(result.Recommendations, func(i, j int) bool {
		a, b := result.Recommendations[i], result.Recommendations[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if !a.Article.PublishedAt.Equal(b.Article.PublishedAt) {
			return a.Article.PublishedAt.After(b.Article.PublishedAt)
		}
		return a.Article.ID < b.Article.ID
	})
	if limit > 0 && limit < len(result.Recommendations) {
		result.Recommendations = result.Recommendations[:limit]
	}
	return result, nil
}

// score computes one candidate's affinity and novelty.
//
// Affinity is the mean, over the candidate's entities, of inverse
// distance to the nearest read entity (1 at distance 0, fading per hop,
// 0 beyond the traversal bound). Entities also reachable from starred
// articles' entities get their weight multiplied by starBoost, capped at
// 1. Novelty is the fraction of the candidate's entities absent from the
// exact read-entity set.
func (u *UseCase) score(
	candidate *model.Article,
	readEntities map[graph.EntityID]bool,
	dist, starDist map[graph.EntityID]int,
	coldStart bool,
) *Recommendation {
	rec := &Recommendation{Article: candidate}

	entities := u.graph.EntitiesFor(candidate.ID)
	if len(entities) == 0 {
		return rec
	}

	var affinitySum float64
	novel := 0
	for _, eid := range entities {
		entity, ok := u.graph.Entity(eid)
		if !ok {
			continue
		}

		if d, reachable := dist[eid]; reachable {
			w := 1.0 / float64(1+d)
			if _, nearStar := starDist[eid]; nearStar {
				w *= u.starBoost
				if w > 1 {
					w = 1
				}
			}
			affinitySum += w
		}

		if readEntities[eid] {
			if len(rec.SharedEntities) < maxExplainNames {
				rec.SharedEntities = append(rec.SharedEntities, entity.Name)
			}
		} else {
			novel++
			if len(rec.BridgingEntities) < maxExplainNames {
				rec.BridgingEntities = append(rec.BridgingEntities, entity.Name)
			}
		}
	}

	rec.Affinity = affinitySum / float64(len(entities))
	rec.Novelty = float64(novel) / float64(len(entities))
	if coldStart {
		rec.Score = rec.Novelty
	} else {
		rec.Score = u.beta*rec.Affinity + (1-u.beta)*rec.Novelty
	}
	return rec
}
