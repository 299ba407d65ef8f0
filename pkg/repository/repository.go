package repository

import (
	"context"
	"time"

	"github.com/feedgraph/feedgraph/pkg/model"
)

// Repository defines persistence for feed/article metadata, chunk text and
// the reading-history log. Graph and vector state live outside the
// repository (see pkg/graph and pkg/vector snapshots).
type Repository interface {
	// PutFeed saves a feed record, keeping the existing one on URL conflict
	PutFeed(ctx context.Context, feed *model.Feed) error

	// GetFeed retrieves a feed by ID
	GetFeed(ctx context.Context, id model.FeedID) (*model.Feed, error)

	// GetFeedByURL retrieves a feed by its URL
	GetFeedByURL(ctx context.Context, url string) (*model.Feed, error)

	// ListFeeds retrieves feeds, optionally only active ones
	ListFeeds(ctx context.Context, activeOnly bool) ([]*model.Feed, error)

	// SetFeedActive toggles a feed's active flag
	SetFeedActive(ctx context.Context, id model.FeedID, active bool) error

	// PutArticle saves an article; saving an existing ID is a no-op
	PutArticle(ctx context.Context, article *model.Article) error

	// GetArticle retrieves an article by ID
	GetArticle(ctx context.Context, id model.ArticleID) (*model.Article, error)

	// GetArticleByLink retrieves an article by its link
	GetArticleByLink(ctx context.Context, link string) (*model.Article, error)

	// ListArticles retrieves articles ordered by published_at descending
	ListArticles(ctx context.Context, offset, limit int) ([]*model.Article, error)

	// ListPendingArticles retrieves articles not yet ingested
	ListPendingArticles(ctx context.Context, limit int) ([]*model.Article, error)

	// MarkIngested records the graph/index commit time of an article
	MarkIngested(ctx context.Context, id model.ArticleID, at time.Time) error

	// PutChunks saves an article's chunk sequence
	PutChunks(ctx context.Context, chunks []*model.Chunk) error

	// GetChunk retrieves a chunk by ID
	GetChunk(ctx context.Context, id model.ChunkID) (*model.Chunk, error)

	// ListChunks retrieves an article's chunks in sequence order
	ListChunks(ctx context.Context, articleID model.ArticleID) ([]*model.Chunk, error)

	// AddReadingEvent appends to the reading-history log
	AddReadingEvent(ctx context.Context, event *model.ReadingEvent) error

	// ListReadingEvents retrieves the full log, oldest first
	ListReadingEvents(ctx context.Context) ([]model.ReadingEvent, error)

	// Stats summarizes stored record counts
	Stats(ctx context.Context) (*Stats, error)

	// Close releases underlying resources
	Close() error
}

// Stats summarizes repository content.
type Stats struct {
	Feeds    int
	Articles int
	Ingested int
	Pending  int
	Events   int
}
