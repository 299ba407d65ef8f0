package repository

import (
	"context"
	"database/sql"
	_ "embed"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/feedgraph/feedgraph/pkg/model"
	"github.com/m-mizutani/goerr/v2"
	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schema string

// sqliteRepo implements Repository on a local SQLite file.
type sqliteRepo struct {
	db *sql.DB
}

var _ Repository = (*sqliteRepo)(nil)

// NewSQLite opens (and initializes if needed) the database at path.
// ":memory:" works for ephemeral use.
func NewSQLite(path string) (Repository, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to open database", goerr.V("path", path))
	}
	if _, err := db.Exec(schema); err != nil {
		return nil, goerr.Wrap(err, "failed to init schema")
	}
	return &sqliteRepo{db: db}, nil
}

func (r *sqliteRepo) Close() error {
	return r.db.Close()
}

func (r *sqliteRepo) PutFeed(ctx context.Context, feed *model.Feed) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO feeds (id, url, title, active, created_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(url) DO NOTHING`,
		string(feed.ID), feed.URL, feed.Title, feed.Active, feed.CreatedAt)
	if err != nil {
		return goerr.Wrap(err, "failed to insert feed")
	}
	return nil
}

func (r *sqliteRepo) GetFeed(ctx context.Context, id model.FeedID) (*model.Feed, error) {
	return r.getFeed(ctx, sq.Eq{"id": string(id)})
}

func (r *sqliteRepo) GetFeedByURL(ctx context.Context, url string) (*model.Feed, error) {
	return r.getFeed(ctx, sq.Eq{"url": url})
}

func (r *sqliteRepo) getFeed(ctx context.Context, pred any) (*model.Feed, error) {
	query, args, err := sq.Select("id", "url", "title", "active", "created_at").
		From("feeds").Where(pred).ToSql()
	if err != nil {
		return nil, goerr.Wrap(err, "failed to build query")
	}

	var feed model.Feed
	var id string
	err = r.db.QueryRowContext(ctx, query, args...).
		Scan(&id, &feed.URL, &feed.Title, &feed.Active, &feed.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, goerr.Wrap(model.ErrFeedNotFound, "get feed")
	}
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get feed")
	}
	feed.ID = model.FeedID(id)
	return &feed, nil
}

func (r *sqliteRepo) ListFeeds(ctx context.Context, activeOnly bool) ([]*model.Feed, error) {
	builder := sq.Select("id", "url", "title", "active", "created_at").
		From("feeds").OrderBy("created_at ASC")
	if activeOnly {
		builder = builder.Where(sq.Eq{"active": true})
	}
	query, args, err := builder.ToSql()
	if err != nil {
		return nil, goerr.Wrap(err, "failed to build query")
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list feeds")
	}
	defer rows.Close()

	var feeds []*model.Feed
	for rows.Next() {
		var feed model.Feed
		var id string
		if err := rows.Scan(&id, &feed.URL, &feed.Title, &feed.Active, &feed.CreatedAt); err != nil {
			return nil, goerr.Wrap(err, "failed to scan feed")
		}
		feed.ID = model.FeedID(id)
		feeds = append(feeds, &feed)
	}
	return feeds, rows.Err()
}

func (r *sqliteRepo) SetFeedActive(ctx context.Context, id model.FeedID, active bool) error {
	res, err := r.db.ExecContext(ctx, `UPDATE feeds SET active = ? WHERE id = ?`, active, string(id))
	if err != nil {
		return goerr.Wrap(err, "failed to update feed")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return goerr.Wrap(model.ErrFeedNotFound, "set feed active", goerr.V("id", id))
	}
	return nil
}

func (r *sqliteRepo) PutArticle(ctx context.Context, article *model.Article) error {
	var ingested sql.NullTime
	if article.IngestedAt != nil {
		ingested = sql.NullTime{Time: *article.IngestedAt, Valid: true}
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO articles (id, feed_id, title, link, content, published_at, fetched_at, ingested_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO NOTHING`,
		string(article.ID), string(article.FeedID), article.Title, article.Link,
		article.Text, article.PublishedAt, article.FetchedAt, ingested)
	if err != nil {
		return goerr.Wrap(err, "failed to insert article")
	}
	return nil
}

const articleColumns = "id, feed_id, title, link, content, published_at, fetched_at, ingested_at"

func scanArticle(row interface{ Scan(...any) error }) (*model.Article, error) {
	var a model.Article
	var id, feedID string
	var ingested sql.NullTime
	if err := row.Scan(&id, &feedID, &a.Title, &a.Link, &a.Text,
		&a.PublishedAt, &a.FetchedAt, &ingested); err != nil {
		return nil, err
	}
	a.ID = model.ArticleID(id)
	a.FeedID = model.FeedID(feedID)
	if ingested.Valid {
		t := ingested.Time
		a.IngestedAt = &t
	}
	return &a, nil
}

func (r *sqliteRepo) GetArticle(ctx context.Context, id model.ArticleID) (*model.Article, error) {
	return r.getArticle(ctx, sq.Eq{"id": string(id)})
}

func (r *sqliteRepo) GetArticleByLink(ctx context.Context, link string) (*model.Article, error) {
	return r.getArticle(ctx, sq.Eq{"link": link})
}

func (r *sqliteRepo) getArticle(ctx context.Context, pred any) (*model.Article, error) {
	query, args, err := sq.Select(articleColumns).From("articles").Where(pred).ToSql()
	if err != nil {
		return nil, goerr.Wrap(err, "failed to build query")
	}

	article, err := scanArticle(r.db.QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return nil, goerr.Wrap(model.ErrArticleNotFound, "get article")
	}
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get article")
	}
	return article, nil
}

func (r *sqliteRepo) ListArticles(ctx context.Context, offset, limit int) ([]*model.Article, error) {
	builder := sq.Select(articleColumns).From("articles").
		OrderBy("published_at DESC", "id ASC").
		Offset(uint64(offset))
	if limit > 0 {
		builder = builder.Limit(uint64(limit))
	}
	return r.listArticles(ctx, builder)
}

func (r *sqliteRepo) ListPendingArticles(ctx context.Context, limit int) ([]*model.Article, error) {
	builder := sq.Select(articleColumns).From("articles").
		Where(sq.Eq{"ingested_at": nil}).
		OrderBy("published_at DESC", "id ASC")
	if limit > 0 {
		builder = builder.Limit(uint64(limit))
	}
	return r.listArticles(ctx, builder)
}

func (r *sqliteRepo) listArticles(ctx context.Context, builder sq.SelectBuilder) ([]*model.Article, error) {
	query, args, err := builder.ToSql()
	if err != nil {
		return nil, goerr.Wrap(err, "failed to build query")
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list articles")
	}
	defer rows.Close()

	var articles []*model.Article
	for rows.Next() {
		article, err := scanArticle(rows)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to scan article")
		}
		articles = append(articles, article)
	}
	return articles, rows.Err()
}

func (r *sqliteRepo) MarkIngested(ctx context.Context, id model.ArticleID, at time.Time) error {
	res, err := r.db.ExecContext(ctx, `UPDATE articles SET ingested_at = ? WHERE id = ?`, at, string(id))
	if err != nil {
		return goerr.Wrap(err, "failed to mark ingested")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return goerr.Wrap(model.ErrArticleNotFound, "mark ingested", goerr.V("id", id))
	}
	return nil
}

func (r *sqliteRepo) PutChunks(ctx context.Context, chunks []*model.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return goerr.Wrap(err, "failed to begin tx")
	}
	for _, c := range chunks {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO chunks (id, article_id, seq, content) VALUES (?, ?, ?, ?)
			 ON CONFLICT(id) DO NOTHING`,
			string(c.ID), string(c.ArticleID), c.Seq, c.Text); err != nil {
			_ = tx.Rollback()
			return goerr.Wrap(err, "failed to insert chunk")
		}
	}
	if err := tx.Commit(); err != nil {
		return goerr.Wrap(err, "failed to commit chunks")
	}
	return nil
}

func (r *sqliteRepo) GetChunk(ctx context.Context, id model.ChunkID) (*model.Chunk, error) {
	var c model.Chunk
	var cid, articleID string
	err := r.db.QueryRowContext(ctx,
		`SELECT id, article_id, seq, content FROM chunks WHERE id = ?`, string(id)).
		Scan(&cid, &articleID, &c.Seq, &c.Text)
	if err == sql.ErrNoRows {
		return nil, goerr.New("chunk not found", goerr.V("id", id))
	}
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get chunk")
	}
	c.ID = model.ChunkID(cid)
	c.ArticleID = model.ArticleID(articleID)
	return &c, nil
}

func (r *sqliteRepo) ListChunks(ctx context.Context, articleID model.ArticleID) ([]*model.Chunk, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, article_id, seq, content FROM chunks WHERE article_id = ? ORDER BY seq ASC`,
		string(articleID))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list chunks")
	}
	defer rows.Close()

	var chunks []*model.Chunk
	for rows.Next() {
		var c model.Chunk
		var cid, aid string
		if err := rows.Scan(&cid, &aid, &c.Seq, &c.Text); err != nil {
			return nil, goerr.Wrap(err, "failed to scan chunk")
		}
		c.ID = model.ChunkID(cid)
		c.ArticleID = model.ArticleID(aid)
		chunks = append(chunks, &c)
	}
	return chunks, rows.Err()
}

func (r *sqliteRepo) AddReadingEvent(ctx context.Context, event *model.ReadingEvent) error {
	if err := event.Action.Validate(); err != nil {
		return err
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO reading_history (article_id, action, at, duration_ms) VALUES (?, ?, ?, ?)`,
		string(event.ArticleID), string(event.Action), event.At, event.Duration.Milliseconds())
	if err != nil {
		return goerr.Wrap(err, "failed to insert reading event")
	}
	return nil
}

func (r *sqliteRepo) ListReadingEvents(ctx context.Context) ([]model.ReadingEvent, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT article_id, action, at, duration_ms FROM reading_history ORDER BY at ASC, id ASC`)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list reading events")
	}
	defer rows.Close()

	var events []model.ReadingEvent
	for rows.Next() {
		var ev model.ReadingEvent
		var articleID, action string
		var durationMS int64
		if err := rows.Scan(&articleID, &action, &ev.At, &durationMS); err != nil {
			return nil, goerr.Wrap(err, "failed to scan reading event")
		}
		ev.ArticleID = model.ArticleID(articleID)
		ev.Action = model.ReadAction(action)
		ev.Duration = time.Duration(durationMS) * time.Millisecond
		events = append(events, ev)
	}
	return events, rows.Err()
}

func (r *sqliteRepo) Stats(ctx context.Context) (*Stats, error) {
	var stats Stats
	counts := []struct {
		query string
		dst   *int
	}{
		{"SELECT COUNT(*) FROM feeds", &stats.Feeds},
		{"SELECT COUNT(*) FROM articles", &stats.Articles},
		{"SELECT COUNT(*) FROM articles WHERE ingested_at IS NOT NULL", &stats.Ingested},
		{"SELECT COUNT(*) FROM articles WHERE ingested_at IS NULL", &stats.Pending},
		{"SELECT COUNT(*) FROM reading_history", &stats.Events},
	}
	for _, c := range counts {
		if err := r.db.QueryRowContext(ctx, c.query).Scan(c.dst); err != nil {
			return nil, goerr.Wrap(err, "failed to count", goerr.V("query", c.query))
		}
	}
	return &stats, nil
}
