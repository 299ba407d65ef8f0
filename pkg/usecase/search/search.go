// Package search plans and executes queries across the vector index and
// the knowledge graph, merging both retrieval modalities into one ranked
// article list.
package search

import (
	"context"
	"sort"

	"github.com/feedgraph/feedgraph/pkg/adapter"
	"github.com/feedgraph/feedgraph/pkg/graph"
	"github.com/feedgraph/feedgraph/pkg/model"
	"github.com/feedgraph/feedgraph/pkg/repository"
	"github.com/feedgraph/feedgraph/pkg/utils/logging"
	"github.com/feedgraph/feedgraph/pkg/vector"
	"github.com/m-mizutani/goerr/v2"
)

// Mode selects which retrieval halves run.
type Mode string

const (
	ModeVector Mode = "vector"
	ModeGraph  Mode = "graph"
	ModeHybrid Mode = "hybrid"
)

// ParseMode validates a mode string, defaulting empty to hybrid.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case "":
		return ModeHybrid, nil
	case ModeVector, ModeGraph, ModeHybrid:
		return Mode(s), nil
	default:
		return "", goerr.New("unknown query mode", goerr.V("mode", s))
	}
}

const (
	defaultTopK  = 20
	defaultAlpha = 0.5
	defaultDepth = 3
)

// WarnPartialRetrieval flags a degraded but completed query.
const WarnPartialRetrieval = "embedding service unavailable; degraded to graph-only retrieval"

// UseCase provides query planning and execution
type UseCase struct {
	repo      repository.Repository
	graph     *graph.Graph
	index     *vector.Index
	embedder  adapter.Embedder
	extractor adapter.Extractor

	topK  int
	alpha float64
	depth int
}

// Option is a functional option for UseCase
type Option func(*UseCase)

// WithExtractor sets an extraction service for query entity mentions;
// without one, seeds come from lexical matching only.
func WithExtractor(e adapter.Extractor) Option {
	return func(uc *UseCase) {
		uc.extractor = e
	}
}

// WithTopK sets how many chunk candidates vector search contributes.
func WithTopK(k int) Option {
	return func(uc *UseCase) {
		if k > 0 {
			uc.topK = k
		}
	}
}

// WithAlpha sets the vector/graph blend: 1 ranks purely by vector
// similarity, 0 purely by graph proximity.
func WithAlpha(alpha float64) Option {
	return func(uc *UseCase) {
		if alpha >= 0 && alpha <= 1 {
			uc.alpha = alpha
		}
	}
}

// WithDepth bounds the graph expansion from query seed entities.
func WithDepth(depth int) Option {
	return func(uc *UseCase) {
		if depth > 0 {
			uc.depth = depth
		}
	}
}

// New creates a new search UseCase instance
func New(
	repo repository.Repository,
	g *graph.Graph,
	index *vector.Index,
	embedder adapter.Embedder,
	opts ...Option,
) *UseCase {
	uc := &UseCase{
		repo:     repo,
		graph:    g,
		index:    index,
		embedder: embedder,
		topK:     defaultTopK,
		alpha:    defaultAlpha,
		depth:    defaultDepth,
	}

	for _, opt := range opts {
		opt(uc)
	}

	return uc
}

// Ranked is one scored article in a query result.
type Ranked struct {
	Article     *model.Article
	Score       float64
	VectorScore float64
	GraphScore  float64

	// MatchedEntities are graph entities connecting this article to the
	// query seeds, nearest first.
	MatchedEntities []string
}

// Result is a completed (possibly degraded) query.
type Result struct {
	Query    string
	Mode     Mode
	Articles []*Ranked
	Warnings []string
}

// Query runs one retrieval pass. Hybrid and vector modes degrade to
// graph-only with a warning when the embedding service fails; the query
// itself never fails for that reason.
func (u *UseCase) Query(ctx context.Context, text string, mode Mode, limit int) (*Result, error) {
	logger := logging.From(ctx)
	result := &Result{Query: text, Mode: mode}

	vectorScores := map[model.ArticleID]float64{}
	if mode != ModeGraph {
		scores, err := u.vectorCandidates(ctx, text)
		if err != nil {
			logger.Warn("vector retrieval degraded", "error", err)
			result.Warnings = append(result.Warnings, WarnPartialRetrieval)
			mode = ModeGraph
		} else {
			vectorScores = scores
		}
	}

	graphScores := map[model.ArticleID]float64{}
	matched := map[model.ArticleID][]string{}
	if mode != ModeVector {
		graphScores, matched = u.graphCandidates(ctx, text)
	}

	ranked := u.merge(ctx, mode, vectorScores, graphScores, matched)
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		a, b := ranked[i].Article, ranked[j].Article
		if !a.PublishedAt.Equal(b.PublishedAt) {
			return a.PublishedAt.After(b.PublishedAt)
		}
		return a.ID < b.ID
	})
	if limit > 0 && limit < len(ranked) {
		ranked = ranked[:limit]
	}
	result.Articles = ranked
	return result, nil
}

// vectorCandidates embeds the query and maps chunk hits onto per-article
// scores, min-max normalized across the candidate set.
func (u *UseCase) vectorCandidates(ctx context.Context, text string) (map[model.ArticleID]float64, error) {
	vec, err := u.embedder.Embed(ctx, text)
	if err != nil {
		return nil, goerr.Wrap(model.ErrDependencyUnavailable, err.Error(),
			goerr.V("collaborator", "embedding"))
	}

	hits, err := u.index.Search(vec, u.topK)
	if err != nil {
		return nil, err
	}

	raw := map[model.ArticleID]float64{}
	for _, hit := range hits {
		chunk, err := u.repo.GetChunk(ctx, hit.ChunkID)
		if err != nil {
			// Index and chunk store drifted; skip rather than fail the query.
			logging.From(ctx).Warn("chunk missing from repository", "chunk", hit.ChunkID)
			continue
		}
		if cur, ok := raw[chunk.ArticleID]; !ok || hit.Similarity > cur {
			raw[chunk.ArticleID] = hit.Similarity
		}
	}
	return normalize(raw), nil
}

// graphCandidates extracts seed entities from the query (extraction
// service first, lexical match as fallback), expands them through the
// graph and scores each supporting article by inverse distance to its
// nearest seed.
func (u *UseCase) graphCandidates(ctx context.Context, text string) (map[model.ArticleID]float64, map[model.ArticleID][]string) {
	seeds := u.querySeeds(ctx, text)
	if len(seeds) == 0 {
		return nil, nil
	}

	dist := u.graph.Distances(seeds, u.depth)

	type entityHit struct {
		name string
		dist int
	}
	scores := map[model.ArticleID]float64{}
	hits := map[model.ArticleID][]entityHit{}
	for id, d := range dist {
		entity, ok := u.graph.Entity(id)
		if !ok {
			continue
		}
		score := 1.0 / float64(1+d)
		for _, articleID := range entity.Articles {
			if score > scores[articleID] {
				scores[articleID] = score
			}
			hits[articleID] = append(hits[articleID], entityHit{name: entity.Name, dist: d})
		}
	}

	matched := make(map[model.ArticleID][]string, len(hits))
	for articleID, ehs := range hits {
		sort.Slice(ehs, func(i, j int) bool {
			if ehs[i].dist != ehs[j].dist {
				return ehs[i].dist < ehs[j].dist
			}
			return ehs[i].name < ehs[j].name
		})
		names := make([]string, 0, len(ehs))
		for _, eh := range ehs {
			names = append(names, eh.name)
		}
		matched[articleID] = names
	}
	return scores, matched
}

func (u *UseCase) querySeeds(ctx context.Context, text string) []graph.EntityID {
	if u.extractor != nil {
		if ext, err := u.extractor.Extract(ctx, text); err == nil {
			var seeds []graph.EntityID
			seen := map[graph.EntityID]bool{}
			for _, e := range ext.Entities {
				if id, ok := u.graph.Lookup(e.Name, e.Type); ok && !seen[id] {
					seen[id] = true
					seeds = append(seeds, id)
				}
			}
			if len(seeds) > 0 {
				return seeds
			}
		} else {
			logging.From(ctx).Warn("query entity extraction failed, using lexical match", "error", err)
		}
	}
	return u.graph.MatchNames(text)
}

// merge unions both candidate sets and blends their normalized scores.
func (u *UseCase) merge(
	ctx context.Context,
	mode Mode,
	vectorScores, graphScores map[model.ArticleID]float64,
	matched map[model.ArticleID][]string,
) []*Ranked {
	union := map[model.ArticleID]bool{}
	for id := range vectorScores {
		union[id] = true
	}
	for id := range graphScores {
		union[id] = true
	}

	logger := logging.From(ctx)
	ranked := make([]*Ranked, 0, len(union))
	for id := range union {
		article, err := u.repo.GetArticle(ctx, id)
		if err != nil {
			logger.Warn("candidate article missing from repository", "article", id)
			continue
		}

		vs, gs := vectorScores[id], graphScores[id]
		var score float64
		switch mode {
		case ModeVector:
			score = vs
		case ModeGraph:
			score = gs
		default:
			score = u.alpha*vs + (1-u.alpha)*gs
		}

		ranked = append(ranked, &Ranked{
			Article:         article,
			Score:           score,
			VectorScore:     vs,
			GraphScore:      gs,
			MatchedEntities: matched[id],
		})
	}
	return ranked
}

// normalize min-max scales scores into [0,1]; a single candidate (or a
// flat field) maps to 1.
func normalize(scores map[model.ArticleID]float64) map[model.ArticleID]float64 {
	if len(scores) == 0 {
		return scores
	}
	first := true
	var lo, hi float64
	for _, s := range scores {
		if first {
			lo, hi = s, s
			first = false
			continue
		}
		if s < lo {
			lo = s
		}
		if s > hi {
			hi = s
		}
	}

	out := make(map[model.ArticleID]float64, len(scores))
	for id, s := range scores {
		if hi == lo {
			out[id] = 1
		} else {
			out[id] = (s - lo) / (hi - lo)
		}
	}
	return out
}
