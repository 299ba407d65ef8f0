package cli

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/feedgraph/feedgraph/pkg/adapter"
	"github.com/feedgraph/feedgraph/pkg/costs"
	"github.com/feedgraph/feedgraph/pkg/graph"
	"github.com/feedgraph/feedgraph/pkg/model"
	"github.com/feedgraph/feedgraph/pkg/repository"
	"github.com/feedgraph/feedgraph/pkg/usecase/ingest"
	"github.com/feedgraph/feedgraph/pkg/vector"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gt"
)

type stubEmbedder struct {
	mu        sync.Mutex
	calls     int
	failAfter int
}

func (s *stubEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.calls > s.failAfter {
		return nil, goerr.New("embedding quota exceeded")
	}
	return []float32{1, 0}, nil
}

type stubExtractor struct{}

func (s *stubExtractor) Extract(ctx context.Context, text string) (*adapter.Extraction, error) {
	return &adapter.Extraction{
		Entities: []adapter.ExtractedEntity{{Name: "Go", Type: "technology"}},
	}, nil
}

func newTestEngine(t *testing.T) *engine {
	return &engine{
		dataDir: t.TempDir(),
		repo:    repository.NewMemory(),
		graph:   graph.New(),
		index:   vector.New(0),
		tracker: costs.New(),
	}
}

// A batch that fails partway through must still snapshot the articles
// committed before the failure: they are already marked ingested in the
// repository, so a later run skips them and only the snapshots carry
// their graph/index state.
func TestIngestPartialBatchFailurePersistsSnapshots(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)

	uc := ingest.New(e.repo, e.graph, e.index,
		&stubEmbedder{failAfter: 1}, &stubExtractor{},
		ingest.WithWorkers(1),
	)

	t0 := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	articles := []*model.Article{
		{ID: "a1", Title: "first", Link: "https://x/1", Text: "some article text", PublishedAt: t0},
		{ID: "a2", Title: "second", Link: "https://x/2", Text: "more article text", PublishedAt: t0},
	}

	results, runErr := ingestArticles(ctx, uc, articles)
	gt.True(t, errors.Is(runErr, model.ErrDependencyUnavailable))
	gt.Equal(t, len(results), 1)
	gt.Equal(t, results[0].ArticleID, model.ArticleID("a1"))

	pending, err := e.repo.ListPendingArticles(ctx, 0)
	gt.NoError(t, err)
	gt.Equal(t, len(pending), 1)
	gt.Equal(t, pending[0].ID, model.ArticleID("a2"))

	gt.Equal(t, persistIngest(ctx, e, runErr), runErr)

	f, err := os.Open(filepath.Join(e.dataDir, graphFile))
	gt.NoError(t, err)
	defer f.Close()
	g, err := graph.Load(f)
	gt.NoError(t, err)
	gt.Equal(t, g.Stats().Entities, 1)

	fi, err := os.Open(filepath.Join(e.dataDir, indexFile))
	gt.NoError(t, err)
	defer fi.Close()
	x, err := vector.Load(fi)
	gt.NoError(t, err)
	gt.Equal(t, x.Len(), 1)
}

func TestIngestFullBatchPersistsSnapshots(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)

	uc := ingest.New(e.repo, e.graph, e.index,
		&stubEmbedder{failAfter: 10}, &stubExtractor{},
		ingest.WithWorkers(1),
	)

	t0 := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	articles := []*model.Article{
		{ID: "a1", Title: "first", Link: "https://x/1", Text: "some article text", PublishedAt: t0},
		{ID: "a2", Title: "second", Link: "https://x/2", Text: "more article text", PublishedAt: t0},
	}

	results, runErr := ingestArticles(ctx, uc, articles)
	gt.NoError(t, runErr)
	gt.Equal(t, len(results), 2)
	gt.NoError(t, persistIngest(ctx, e, runErr))

	fi, err := os.Open(filepath.Join(e.dataDir, indexFile))
	gt.NoError(t, err)
	defer fi.Close()
	x, err := vector.Load(fi)
	gt.NoError(t, err)
	gt.Equal(t, x.Len(), 2)
}
