package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/feedgraph/feedgraph/pkg/model"
	"github.com/feedgraph/feedgraph/pkg/usecase/search"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

func queryCommand() *cli.Command {
	var (
		cfg       config
		mode      string
		limit     int64
		summarize bool
	)

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "mode",
			Aliases:     []string{"m"},
			Usage:       "Retrieval mode (hybrid, vector, graph)",
			Value:       "hybrid",
			Sources:     cli.EnvVars("FEEDGRAPH_QUERY_MODE"),
			Destination: &mode,
		},
		&cli.IntFlag{
			Name:        "limit",
			Aliases:     []string{"l"},
			Usage:       "Maximum number of articles to return",
			Value:       10,
			Destination: &limit,
		},
		&cli.BoolFlag{
			Name:        "summarize",
			Aliases:     []string{"s"},
			Usage:       "Summarize the ranked results with the LLM",
			Destination: &summarize,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)
	flags = append(flags, llmFlags(&cfg)...)

	return &cli.Command{
		Name:      "query",
		Usage:     "Search the corpus with hybrid vector/graph retrieval",
		ArgsUsage: "<query text>",
		Flags:     flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			text := strings.Join(c.Args().Slice(), " ")
			if text == "" {
				return goerr.New("query text is required")
			}

			queryMode, err := search.ParseMode(mode)
			if err != nil {
				return err
			}

			e, err := cfg.openEngine(ctx, true)
			if err != nil {
				return err
			}
			defer e.close()

			uc := search.New(e.repo, e.graph, e.index, e.embedder,
				search.WithExtractor(e.extractor),
				search.WithTopK(cfg.tunables.Search.TopK),
				search.WithAlpha(cfg.tunables.Search.Alpha),
				search.WithDepth(cfg.tunables.Search.Depth),
			)

			sp := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
			sp.Suffix = " searching..."
			sp.Start()
			result, err := uc.Query(ctx, text, queryMode, int(limit))
			sp.Stop()
			if err != nil {
				return err
			}

			for _, warning := range result.Warnings {
				fmt.Fprintf(c.Root().Writer, "Warning: %s\n", warning)
			}
			if len(result.Articles) == 0 {
				fmt.Fprintln(c.Root().Writer, "No matching articles.")
				return e.saveCosts()
			}

			for i, ranked := range result.Articles {
				fmt.Fprintf(c.Root().Writer, "%d. [%.3f] %s\n", i+1, ranked.Score, ranked.Article.Title)
				fmt.Fprintf(c.Root().Writer, "   %s\n", ranked.Article.Link)
				if len(ranked.MatchedEntities) > 0 {
					names := ranked.MatchedEntities
					if len(names) > 5 {
						names = names[:5]
					}
					fmt.Fprintf(c.Root().Writer, "   entities: %s\n", strings.Join(names, ", "))
				}
			}

			if summarize {
				articles := make([]*model.Article, 0, len(result.Articles))
				for _, ranked := range result.Articles {
					articles = append(articles, ranked.Article)
				}

				sp.Suffix = " summarizing..."
				sp.Start()
				summary, err := e.summarizer.Summarize(ctx, text, articles)
				sp.Stop()
				if err != nil {
					return goerr.Wrap(model.ErrDependencyUnavailable, err.Error(),
						goerr.V("collaborator", "summarization"))
				}
				fmt.Fprintf(c.Root().Writer, "\nSummary:\n%s\n", summary)
			}

			return e.saveCosts()
		},
	}
}
