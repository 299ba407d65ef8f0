package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/briandowns/spinner"
	"github.com/feedgraph/feedgraph/pkg/model"
	"github.com/feedgraph/feedgraph/pkg/usecase/ingest"
	"github.com/feedgraph/feedgraph/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

// articleInput is the JSON shape accepted by `ingest --input`: a single
// object or an array of them. Fetchers are external; this is the handoff
// format.
type articleInput struct {
	FeedURL     string    `json:"feed_url"`
	Title       string    `json:"title"`
	Link        string    `json:"link"`
	Content     string    `json:"content"`
	PublishedAt time.Time `json:"published_at"`
}

func ingestCommand() *cli.Command {
	var (
		cfg     config
		input   string
		pending bool
		limit   int64
	)

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "input",
			Aliases:     []string{"i"},
			Usage:       "Path to JSON file containing article(s) to store and ingest",
			Destination: &input,
		},
		&cli.BoolFlag{
			Name:        "pending",
			Aliases:     []string{"p"},
			Usage:       "Ingest stored articles that are not yet in the graph/index",
			Destination: &pending,
		},
		&cli.IntFlag{
			Name:        "limit",
			Aliases:     []string{"l"},
			Usage:       "Maximum number of pending articles to ingest (0 = all)",
			Destination: &limit,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)
	flags = append(flags, llmFlags(&cfg)...)

	return &cli.Command{
		Name:  "ingest",
		Usage: "Ingest articles into the knowledge graph and vector index",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			if input == "" && !pending {
				return goerr.New("either --input or --pending is required")
			}

			e, err := cfg.openEngine(ctx, true)
			if err != nil {
				return err
			}
			defer e.close()

			uc := ingest.New(e.repo, e.graph, e.index, e.embedder, e.extractor,
				ingest.WithChunking(cfg.tunables.Chunking.Size, cfg.tunables.Chunking.Overlap),
				ingest.WithWorkers(cfg.tunables.Workers),
			)

			sp := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
			sp.Suffix = " ingesting..."
			sp.Start()
			defer sp.Stop()

			var results []*ingest.Result
			var runErr error
			if input != "" {
				articles, err := readArticles(ctx, e, input)
				if err != nil {
					return err
				}
				results, runErr = ingestArticles(ctx, uc, articles)
			} else {
				results, runErr = uc.IngestPending(ctx, int(limit))
			}
			sp.Stop()

			reportResults(c, results)
			return persistIngest(ctx, e, runErr)
		},
	}
}

func ingestArticles(ctx context.Context, uc *ingest.UseCase, articles []*model.Article) ([]*ingest.Result, error) {
	results := make([]*ingest.Result, 0, len(articles))
	for _, article := range articles {
		result, err := uc.Ingest(ctx, article)
		if err != nil {
			return results, err
		}
		results = append(results, result)
	}
	return results, nil
}

// persistIngest writes the snapshots after an ingest run, including the
// failure path: articles committed before the failure are already marked
// ingested in the repository and will never be re-ingested, so their
// graph/index state is lost unless the snapshots are written now.
func persistIngest(ctx context.Context, e *engine, runErr error) error {
	if err := e.save(); err != nil {
		if runErr == nil {
			return err
		}
		logging.From(ctx).Warn("failed to persist snapshots after ingest failure", "error", err)
	}
	return runErr
}

func reportResults(c *cli.Command, results []*ingest.Result) {
	ingested, skipped := 0, 0
	for _, r := range results {
		if r.Skipped {
			skipped++
			continue
		}
		ingested++
		fmt.Fprintf(c.Root().Writer, "Ingested %s: %d chunks, %d entities, %d relations\n",
			r.Title, r.Chunks, r.Entities, r.Relations)
	}
	fmt.Fprintf(c.Root().Writer, "%d ingested, %d skipped\n", ingested, skipped)
}

// readArticles parses the input file and stores the articles, resolving
// (or registering) their feeds by URL.
func readArticles(ctx context.Context, e *engine, path string) ([]*model.Article, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read input file", goerr.V("path", path))
	}

	var inputs []articleInput
	if err := json.Unmarshal(raw, &inputs); err != nil {
		var single articleInput
		if err := json.Unmarshal(raw, &single); err != nil {
			return nil, goerr.Wrap(err, "failed to parse input file", goerr.V("path", path))
		}
		inputs = []articleInput{single}
	}

	articles := make([]*model.Article, 0, len(inputs))
	for _, in := range inputs {
		if in.Link == "" {
			return nil, goerr.New("article link is required", goerr.V("title", in.Title))
		}

		feedID, err := resolveFeed(ctx, e, in.FeedURL)
		if err != nil {
			return nil, err
		}
		articles = append(articles, &model.Article{
			ID:          model.DeriveArticleID(in.Link),
			FeedID:      feedID,
			Title:       in.Title,
			Link:        in.Link,
			Text:        in.Content,
			PublishedAt: in.PublishedAt,
			FetchedAt:   time.Now(),
		})
	}
	return articles, nil
}

func resolveFeed(ctx context.Context, e *engine, feedURL string) (model.FeedID, error) {
	if feedURL == "" {
		feedURL = "manual"
	}
	if feed, err := e.repo.GetFeedByURL(ctx, feedURL); err == nil {
		return feed.ID, nil
	}

	feed := &model.Feed{
		ID:        model.NewFeedID(),
		URL:       feedURL,
		Active:    true,
		CreatedAt: time.Now(),
	}
	if err := e.repo.PutFeed(ctx, feed); err != nil {
		return "", err
	}
	return feed.ID, nil
}
