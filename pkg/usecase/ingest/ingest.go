// Package ingest turns stored article text into graph and index state.
// One ingestion is all-or-nothing: every external call (extraction, chunk
// embeddings) completes and is validated before the first mutation, so a
// failed article leaves graph, index and repository exactly as they were.
package ingest

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/feedgraph/feedgraph/pkg/adapter"
	"github.com/feedgraph/feedgraph/pkg/graph"
	"github.com/feedgraph/feedgraph/pkg/model"
	"github.com/feedgraph/feedgraph/pkg/repository"
	"github.com/feedgraph/feedgraph/pkg/utils/logging"
	"github.com/feedgraph/feedgraph/pkg/vector"
	"github.com/m-mizutani/goerr/v2"
)

const (
	defaultChunkTokens   = 1200
	defaultOverlapTokens = 100
	defaultWorkers       = 4
)

// UseCase provides article ingestion
type UseCase struct {
	repo      repository.Repository
	graph     *graph.Graph
	index     *vector.Index
	embedder  adapter.Embedder
	extractor adapter.Extractor

	chunkTokens   int
	overlapTokens int
	workers       int
}

// Option is a functional option for UseCase
type Option func(*UseCase)

// WithChunking overrides chunk size and overlap (in tokens).
func WithChunking(size, overlap int) Option {
	return func(uc *UseCase) {
		if size > 0 {
			uc.chunkTokens = size
		}
		if overlap >= 0 {
			uc.overlapTokens = overlap
		}
	}
}

// WithWorkers caps concurrent embedding calls per article.
func WithWorkers(n int) Option {
	return func(uc *UseCase) {
		if n > 0 {
			uc.workers = n
		}
	}
}

// New creates a new ingest UseCase instance
func New(
	repo repository.Repository,
	g *graph.Graph,
	index *vector.Index,
	embedder adapter.Embedder,
	extractor adapter.Extractor,
	opts ...Option,
) *UseCase {
	uc := &UseCase{
		repo:          repo,
		graph:         g,
		index:         index,
		embedder:      embedder,
		extractor:     extractor,
		chunkTokens:   defaultChunkTokens,
		overlapTokens: defaultOverlapTokens,
		workers:       defaultWorkers,
	}

	for _, opt := range opts {
		opt(uc)
	}

	return uc
}

// Result describes one ingested article.
type Result struct {
	ArticleID model.ArticleID
	Title     string
	Skipped   bool
	Chunks    int
	Entities  int
	Relations int
}

// Ingest commits one article into the repository, knowledge graph and
// vector index. Idempotent per article ID: an already-ingested article is
// reported as skipped.
func (u *UseCase) Ingest(ctx context.Context, article *model.Article) (*Result, error) {
	logger := logging.From(ctx)

	stored, err := u.repo.GetArticle(ctx, article.ID)
	switch {
	case err == nil:
		if stored.Ingested() {
			return &Result{ArticleID: article.ID, Title: stored.Title, Skipped: true}, nil
		}
		article = stored
	case errors.Is(err, model.ErrArticleNotFound):
		if err := u.repo.PutArticle(ctx, article); err != nil {
			return nil, err
		}
	default:
		return nil, err
	}

	text := StripHTML(article.Text)
	doc := article.Title + "\n\n" + text

	ext, err := u.extractor.Extract(ctx, doc)
	if err != nil {
		return nil, goerr.Wrap(model.ErrDependencyUnavailable, err.Error(),
			goerr.V("collaborator", "extraction"), goerr.V("article", article.ID))
	}

	spans := Split(text, u.chunkTokens, u.overlapTokens)
	chunks := make([]*model.Chunk, len(spans))
	for i, span := range spans {
		chunks[i] = &model.Chunk{
			ID:        model.NewChunkID(),
			ArticleID: article.ID,
			Seq:       i,
			Text:      span,
		}
	}

	vectors, err := u.embedChunks(ctx, chunks)
	if err != nil {
		return nil, err
	}

	// Validate dimensions before touching any state.
	dim := u.index.Dimension()
	for i, vec := range vectors {
		if dim == 0 {
			dim = len(vec)
		}
		if len(vec) == 0 || len(vec) != dim {
			return nil, goerr.Wrap(model.ErrDimensionMismatch, "chunk embedding",
				goerr.V("article", article.ID), goerr.V("seq", i),
				goerr.V("want", dim), goerr.V("got", len(vec)))
		}
	}

	candidates := toCandidates(ext)
	if err := u.graph.Apply(article.ID, candidates); err != nil {
		return nil, err
	}
	for i, c := range chunks {
		if err := u.index.Insert(c.ID, vectors[i]); err != nil {
			return nil, err
		}
	}
	if err := u.repo.PutChunks(ctx, chunks); err != nil {
		return nil, err
	}
	if err := u.repo.MarkIngested(ctx, article.ID, time.Now()); err != nil {
		return nil, err
	}

	logger.Info("ingested article",
		"id", article.ID,
		"title", article.Title,
		"chunks", len(chunks),
		"entities", len(candidates.Entities),
		"relations", len(candidates.Relations),
	)

	return &Result{
		ArticleID: article.ID,
		Title:     article.Title,
		Chunks:    len(chunks),
		Entities:  len(candidates.Entities),
		Relations: len(candidates.Relations),
	}, nil
}

// IngestPending ingests stored articles that are not yet part of the
// graph/index state, newest first. Failures stop the batch; already
// committed articles stay committed.
func (u *UseCase) IngestPending(ctx context.Context, limit int) ([]*Result, error) {
	pending, err := u.repo.ListPendingArticles(ctx, limit)
	if err != nil {
		return nil, err
	}

	results := make([]*Result, 0, len(pending))
	for _, article := range pending {
		result, err := u.Ingest(ctx, article)
		if err != nil {
			return results, err
		}
		results = append(results, result)
	}
	return results, nil
}

// embedChunks runs chunk embeddings on a capped worker pool. The first
// error cancels the rest.
func (u *UseCase) embedChunks(ctx context.Context, chunks []*model.Chunk) ([][]float32, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	vectors := make([][]float32, len(chunks))
	errs := make([]error, len(chunks))
	sem := make(chan struct{}, u.workers)
	var wg sync.WaitGroup

	for i, chunk := range chunks {
		wg.Add(1)
		go func(i int, text string) {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				errs[i] = ctx.Err()
				return
			}

			vec, err := u.embedder.Embed(ctx, text)
			if err != nil {
				errs[i] = err
				cancel()
				return
			}
			vectors[i] = vec
		}(i, chunk.Text)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil && !errors.Is(err, context.Canceled) {
			return nil, goerr.Wrap(model.ErrDependencyUnavailable, err.Error(),
				goerr.V("collaborator", "embedding"), goerr.V("seq", i))
		}
	}
	for _, err := range errs {
		if err != nil {
			return nil, goerr.Wrap(model.ErrDependencyUnavailable, "embedding canceled",
				goerr.V("collaborator", "embedding"))
		}
	}
	return vectors, nil
}

func toCandidates(ext *adapter.Extraction) graph.Extraction {
	out := graph.Extraction{
		Entities:  make([]graph.EntityCandidate, 0, len(ext.Entities)),
		Relations: make([]graph.RelationCandidate, 0, len(ext.Relations)),
	}
	// Extractors are sloppy about repeating the exact entity type on
	// relation endpoints; resolve endpoint types by name against the
	// entity list so a case difference does not dangle the relation.
	typeByName := map[string]string{}
	for _, e := range ext.Entities {
		out.Entities = append(out.Entities, graph.EntityCandidate{Name: e.Name, Type: e.Type})
		norm := graph.NormalizeName(e.Name)
		if _, ok := typeByName[norm]; !ok {
			typeByName[norm] = e.Type
		}
	}
	for _, r := range ext.Relations {
		srcType, dstType := r.SourceType, r.TargetType
		if t, ok := typeByName[graph.NormalizeName(r.Source)]; ok {
			srcType = t
		}
		if t, ok := typeByName[graph.NormalizeName(r.Target)]; ok {
			dstType = t
		}
		out.Relations = append(out.Relations, graph.RelationCandidate{
			Source:     r.Source,
			SourceType: srcType,
			Target:     r.Target,
			TargetType: dstType,
			Type:       r.Type,
		})
	}
	return out
}
