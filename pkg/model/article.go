package model

import (
	"crypto/md5"
	"encoding/hex"
	"time"

	"github.com/google/uuid"
)

type FeedID string

// NewFeedID generates a new unique FeedID
func NewFeedID() FeedID {
	return FeedID(uuid.New().String())
}

// Feed is a registered article source. Fetching and parsing the feed is an
// external concern; feedgraph only keeps the registry.
type Feed struct {
	ID        FeedID
	URL       string
	Title     string
	Active    bool
	CreatedAt time.Time
}

type ArticleID string

// NewArticleID generates a new unique ArticleID
func NewArticleID() ArticleID {
	return ArticleID(uuid.New().String())
}

// DeriveArticleID returns a stable ArticleID for an article link, so that
// re-ingesting the same article is a no-op regardless of who fetched it.
func DeriveArticleID(link string) ArticleID {
	sum := md5.Sum([]byte(link))
	return ArticleID(hex.EncodeToString(sum[:]))
}

// Article is an ingested (or pending) article. Immutable once ingested;
// articles are archived, never deleted. Read state lives in the
// ReadingEvent log, not here.
type Article struct {
	ID          ArticleID
	FeedID      FeedID
	Title       string
	Link        string
	Text        string
	PublishedAt time.Time
	FetchedAt   time.Time

	// IngestedAt is nil until the article has been committed to the
	// knowledge graph and vector index.
	IngestedAt *time.Time
}

// Ingested reports whether the article is part of the graph/index state.
func (a *Article) Ingested() bool {
	return a.IngestedAt != nil
}

type ChunkID string

// NewChunkID generates a new unique ChunkID
func NewChunkID() ChunkID {
	return ChunkID(uuid.New().String())
}

// Chunk is a bounded span of article text embedded as one vector. The
// embedding itself is owned by the vector index, keyed by ChunkID.
type Chunk struct {
	ID        ChunkID
	ArticleID ArticleID
	Seq       int
	Text      string
}
