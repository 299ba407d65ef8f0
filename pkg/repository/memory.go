package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/feedgraph/feedgraph/pkg/model"
	"github.com/m-mizutani/goerr/v2"
)

// memoryRepo is an in-memory Repository, used by tests and ephemeral runs.
type memoryRepo struct {
	mu       sync.RWMutex
	feeds    map[model.FeedID]*model.Feed
	articles map[model.ArticleID]*model.Article
	chunks   map[model.ChunkID]*model.Chunk
	events   []model.ReadingEvent
}

var _ Repository = (*memoryRepo)(nil)

// NewMemory creates an empty in-memory repository.
func NewMemory() Repository {
	return &memoryRepo{
		feeds:    map[model.FeedID]*model.Feed{},
		articles: map[model.ArticleID]*model.Article{},
		chunks:   map[model.ChunkID]*model.Chunk{},
	}
}

func (r *memoryRepo) Close() error { return nil }

func (r *memoryRepo) PutFeed(_ context.Context, feed *model.Feed) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, f := range r.feeds {
		if f.URL == feed.URL {
			return nil
		}
	}
	cp := *feed
	r.feeds[feed.ID] = &cp
	return nil
}

func (r *memoryRepo) GetFeed(_ context.Context, id model.FeedID) (*model.Feed, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if f, ok := r.feeds[id]; ok {
		cp := *f
		return &cp, nil
	}
	return nil, goerr.Wrap(model.ErrFeedNotFound, "get feed", goerr.V("id", id))
}

func (r *memoryRepo) GetFeedByURL(_ context.Context, url string) (*model.Feed, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, f := range r.feeds {
		if f.URL == url {
			cp := *f
			return &cp, nil
		}
	}
	return nil, goerr.Wrap(model.ErrFeedNotFound, "get feed by url", goerr.V("url", url))
}

func (r *memoryRepo) ListFeeds(_ context.Context, activeOnly bool) ([]*model.Feed, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var feeds []*model.Feed
	for _, f := range r.feeds {
		if activeOnly && !f.Active {
			continue
		}
		cp := *f
		feeds = append(feeds, &cp)
	}
	sort.Slice(feeds, func(i, j int) bool { return feeds[i].CreatedAt.Before(feeds[j].CreatedAt) })
	return feeds, nil
}

func (r *memoryRepo) SetFeedActive(_ context.Context, id model.FeedID, active bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	f, ok := r.feeds[id]
	if !ok {
		return goerr.Wrap(model.ErrFeedNotFound, "set feed active", goerr.V("id", id))
	}
	f.Active = active
	return nil
}

func (r *memoryRepo) PutArticle(_ context.Context, article *model.Article) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.articles[article.ID]; ok {
		return nil
	}
	cp := *article
	r.articles[article.ID] = &cp
	return nil
}

func (r *memoryRepo) GetArticle(_ context.Context, id model.ArticleID) (*model.Article, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if a, ok := r.articles[id]; ok {
		cp := *a
		return &cp, nil
	}
	return nil, goerr.Wrap(model.ErrArticleNotFound, "get article", goerr.V("id", id))
}

func (r *memoryRepo) GetArticleByLink(_ context.Context, link string) (*model.Article, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, a := range r.articles {
		if a.Link == link {
			cp := *a
			return &cp, nil
		}
	}
	return nil, goerr.Wrap(model.ErrArticleNotFound, "get article by link", goerr.V("link", link))
}

func (r *memoryRepo) sortedArticles(filter func(*model.Article) bool) []*model.Article {
	var articles []*model.Article
	for _, a := range r.articles {
		if filter != nil && !filter(a) {
			continue
		}
		cp := *a
		articles = append(articles, &cp)
	}
	sort.Slice(articles, func(i, j int) bool {
		if !articles[i].PublishedAt.Equal(articles[j].PublishedAt) {
			return articles[i].PublishedAt.After(articles[j].PublishedAt)
		}
		return articles[i].ID < articles[j].ID
	})
	return articles
}

func (r *memoryRepo) ListArticles(_ context.Context, offset, limit int) ([]*model.Article, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	articles := r.sortedArticles(nil)
	if offset >= len(articles) {
		return nil, nil
	}
	articles = articles[offset:]
	if limit > 0 && limit < len(articles) {
		articles = articles[:limit]
	}
	return articles, nil
}

func (r *memoryRepo) ListPendingArticles(_ context.Context, limit int) ([]*model.Article, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	articles := r.sortedArticles(func(a *model.Article) bool { return !a.Ingested() })
	if limit > 0 && limit < len(articles) {
		articles = articles[:limit]
	}
	return articles, nil
}

func (r *memoryRepo) MarkIngested(_ context.Context, id model.ArticleID, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.articles[id]
	if !ok {
		return goerr.Wrap(model.ErrArticleNotFound, "mark ingested", goerr.V("id", id))
	}
	t := at
	a.IngestedAt = &t
	return nil
}

func (r *memoryRepo) PutChunks(_ context.Context, chunks []*model.Chunk) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range chunks {
		if _, ok := r.chunks[c.ID]; ok {
			continue
		}
		cp := *c
		r.chunks[c.ID] = &cp
	}
	return nil
}

func (r *memoryRepo) GetChunk(_ context.Context, id model.ChunkID) (*model.Chunk, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if c, ok := r.chunks[id]; ok {
		cp := *c
		return &cp, nil
	}
	return nil, goerr.New("chunk not found", goerr.V("id", id))
}

func (r *memoryRepo) ListChunks(_ context.Context, articleID model.ArticleID) ([]*model.Chunk, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var chunks []*model.Chunk
	for _, c := range r.chunks {
		if c.ArticleID == articleID {
			cp := *c
			chunks = append(chunks, &cp)
		}
	}
	sort.Slice(chunks, func(i, j int) bool { return chunks[i].Seq < chunks[j].Seq })
	return chunks, nil
}

func (r *memoryRepo) AddReadingEvent(_ context.Context, event *model.ReadingEvent) error {
	if err := event.Action.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, *event)
	return nil
}

func (r *memoryRepo) ListReadingEvents(_ context.Context) ([]model.ReadingEvent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	events := make([]model.ReadingEvent, len(r.events))
	copy(events, r.events)
	return events, nil
}

func (r *memoryRepo) Stats(_ context.Context) (*Stats, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	stats := &Stats{
		Feeds:    len(r.feeds),
		Articles: len(r.articles),
		Events:   len(r.events),
	}
	for _, a := range r.articles {
		if a.Ingested() {
			stats.Ingested++
		} else {
			stats.Pending++
		}
	}
	return stats, nil
}
