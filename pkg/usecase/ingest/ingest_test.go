package ingest_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/feedgraph/feedgraph/pkg/adapter"
	"github.com/feedgraph/feedgraph/pkg/graph"
	"github.com/feedgraph/feedgraph/pkg/model"
	"github.com/feedgraph/feedgraph/pkg/repository"
	"github.com/feedgraph/feedgraph/pkg/usecase/ingest"
	"github.com/feedgraph/feedgraph/pkg/vector"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gt"
)

type mockEmbedder struct {
	mu    sync.Mutex
	calls int
	vec   []float32
	// failAfter > 0 fails every call past that count.
	failAfter int
}

func (m *mockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.failAfter > 0 && m.calls > m.failAfter {
		return nil, goerr.New("embedding quota exceeded")
	}
	vec := make([]float32, len(m.vec))
	copy(vec, m.vec)
	return vec, nil
}

type mockExtractor struct {
	extraction *adapter.Extraction
	err        error
}

func (m *mockExtractor) Extract(ctx context.Context, text string) (*adapter.Extraction, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.extraction, nil
}

func simpleExtraction() *adapter.Extraction {
	return &adapter.Extraction{
		Entities: []adapter.ExtractedEntity{
			{Name: "Anthropic", Type: "organization"},
			{Name: "Claude", Type: "product"},
		},
		Relations: []adapter.ExtractedRelation{
			{Source: "Anthropic", SourceType: "organization", Target: "Claude", TargetType: "product", Type: "released"},
		},
	}
}

func article(id model.ArticleID, text string) *model.Article {
	return &model.Article{
		ID:          id,
		Title:       "Title " + string(id),
		Link:        "https://x/" + string(id),
		Text:        text,
		PublishedAt: time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC),
		FetchedAt:   time.Now(),
	}
}

func TestIngest(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemory()
	g := graph.New()
	x := vector.New(0)
	uc := ingest.New(repo, g, x,
		&mockEmbedder{vec: []float32{1, 0}},
		&mockExtractor{extraction: simpleExtraction()},
	)

	result, err := uc.Ingest(ctx, article("a1", "Anthropic released Claude."))
	gt.NoError(t, err)
	gt.False(t, result.Skipped)
	gt.Equal(t, result.Chunks, 1)
	gt.Equal(t, result.Entities, 2)
	gt.Equal(t, result.Relations, 1)

	gt.Equal(t, g.Stats(), graph.Stats{Entities: 2, Relations: 1, Articles: 1})
	gt.Equal(t, x.Len(), 1)

	stored, err := repo.GetArticle(ctx, "a1")
	gt.NoError(t, err)
	gt.True(t, stored.Ingested())

	chunks, err := repo.ListChunks(ctx, "a1")
	gt.NoError(t, err)
	gt.Equal(t, len(chunks), 1)
	gt.Equal(t, chunks[0].ArticleID, model.ArticleID("a1"))
}

func TestIngestIdempotent(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemory()
	g := graph.New()
	x := vector.New(0)
	embedder := &mockEmbedder{vec: []float32{1, 0}}
	uc := ingest.New(repo, g, x, embedder, &mockExtractor{extraction: simpleExtraction()})

	a := article("a1", "Anthropic released Claude.")
	_, err := uc.Ingest(ctx, a)
	gt.NoError(t, err)
	callsAfterFirst := embedder.calls

	result, err := uc.Ingest(ctx, a)
	gt.NoError(t, err)
	gt.True(t, result.Skipped)

	gt.Equal(t, embedder.calls, callsAfterFirst)
	gt.Equal(t, x.Len(), 1)
	gt.Equal(t, g.Stats().Articles, 1)
}

func TestIngestExtractionFailureLeavesNoState(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemory()
	g := graph.New()
	x := vector.New(0)
	uc := ingest.New(repo, g, x,
		&mockEmbedder{vec: []float32{1, 0}},
		&mockExtractor{err: goerr.New("model overloaded")},
	)

	_, err := uc.Ingest(ctx, article("a1", "some text"))
	gt.Error(t, err)
	gt.True(t, errors.Is(err, model.ErrDependencyUnavailable))

	gt.Equal(t, g.Stats(), graph.Stats{})
	gt.Equal(t, x.Len(), 0)

	// The article stays stored but pending, so a later retry can pick it
	// up.
	stored, err := repo.GetArticle(ctx, "a1")
	gt.NoError(t, err)
	gt.False(t, stored.Ingested())
	chunks, err := repo.ListChunks(ctx, "a1")
	gt.NoError(t, err)
	gt.Equal(t, len(chunks), 0)
}

func TestIngestEmbeddingFailureLeavesNoState(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemory()
	g := graph.New()
	x := vector.New(0)

	// Long text to force multiple chunks; the second embedding call fails.
	text := strings.Repeat("word ", 3000)
	uc := ingest.New(repo, g, x,
		&mockEmbedder{vec: []float32{1, 0}, failAfter: 1},
		&mockExtractor{extraction: simpleExtraction()},
		ingest.WithChunking(300, 0),
		ingest.WithWorkers(1),
	)

	_, err := uc.Ingest(ctx, article("a1", text))
	gt.Error(t, err)
	gt.True(t, errors.Is(err, model.ErrDependencyUnavailable))

	gt.Equal(t, g.Stats(), graph.Stats{})
	gt.Equal(t, x.Len(), 0)
	stored, err := repo.GetArticle(ctx, "a1")
	gt.NoError(t, err)
	gt.False(t, stored.Ingested())
}

func TestIngestRelationEndpointTypeFixup(t *testing.T) {
	ctx := context.Background()
	g := graph.New()
	uc := ingest.New(repository.NewMemory(), g, vector.New(0),
		&mockEmbedder{vec: []float32{1, 0}},
		&mockExtractor{extraction: &adapter.Extraction{
			Entities: []adapter.ExtractedEntity{
				{Name: "Go", Type: "technology"},
				{Name: "Google", Type: "organization"},
			},
			Relations: []adapter.ExtractedRelation{
				// Endpoint types disagree with the entity list; resolution
				// by name must keep the relation from dangling.
				{Source: "google", SourceType: "company", Target: "GO", TargetType: "language", Type: "released"},
			},
		}},
	)

	_, err := uc.Ingest(ctx, article("a1", "Google released Go."))
	gt.NoError(t, err)
	gt.Equal(t, g.Stats(), graph.Stats{Entities: 2, Relations: 1, Articles: 1})
}

func TestIngestPending(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemory()
	g := graph.New()
	x := vector.New(0)
	uc := ingest.New(repo, g, x,
		&mockEmbedder{vec: []float32{1, 0}},
		&mockExtractor{extraction: simpleExtraction()},
	)

	gt.NoError(t, repo.PutArticle(ctx, article("a1", "first")))
	gt.NoError(t, repo.PutArticle(ctx, article("a2", "second")))

	results, err := uc.IngestPending(ctx, 0)
	gt.NoError(t, err)
	gt.Equal(t, len(results), 2)

	// Nothing left to do on a second pass.
	results, err = uc.IngestPending(ctx, 0)
	gt.NoError(t, err)
	gt.Equal(t, len(results), 0)
}

func TestIngestPendingLimit(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemory()
	uc := ingest.New(repo, graph.New(), vector.New(0),
		&mockEmbedder{vec: []float32{1, 0}},
		&mockExtractor{extraction: simpleExtraction()},
	)

	gt.NoError(t, repo.PutArticle(ctx, article("a1", "first")))
	gt.NoError(t, repo.PutArticle(ctx, article("a2", "second")))

	results, err := uc.IngestPending(ctx, 1)
	gt.NoError(t, err)
	gt.Equal(t, len(results), 1)

	stats, err := repo.Stats(ctx)
	gt.NoError(t, err)
	gt.Equal(t, stats.Pending, 1)
}
