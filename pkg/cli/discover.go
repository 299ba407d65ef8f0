package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/feedgraph/feedgraph/pkg/usecase/discover"
	"github.com/urfave/cli/v3"
)

func discoverCommand() *cli.Command {
	var (
		cfg     config
		limit   int64
		explain bool
	)

	flags := []cli.Flag{
		&cli.IntFlag{
			Name:        "limit",
			Aliases:     []string{"l"},
			Usage:       "Maximum number of recommendations",
			Value:       5,
			Destination: &limit,
		},
		&cli.BoolFlag{
			Name:        "explain",
			Aliases:     []string{"e"},
			Usage:       "Generate an LLM explanation for each recommendation",
			Destination: &explain,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)
	flags = append(flags, llmFlags(&cfg)...)

	return &cli.Command{
		Name:  "discover",
		Usage: "Recommend unread articles based on reading history",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			// Explanations are the only LLM use here; ranking never is.
			e, err := cfg.openEngine(ctx, explain)
			if err != nil {
				return err
			}
			defer e.close()

			uc := discover.New(e.repo, e.graph,
				discover.WithBeta(cfg.tunables.Discovery.Beta),
				discover.WithDepth(cfg.tunables.Discovery.Depth),
				discover.WithStarBoost(cfg.tunables.Discovery.StarBoost),
			)

			result, err := uc.Discover(ctx, int(limit))
			if err != nil {
				return err
			}

			if result.ColdStart {
				fmt.Fprintln(c.Root().Writer, "No reading history yet; ranking by novelty only.")
			}
			if len(result.Recommendations) == 0 {
				fmt.Fprintln(c.Root().Writer, "Nothing unread to recommend. Ingest more articles first.")
				return nil
			}

			var sp *spinner.Spinner
			if explain {
				sp = spinner.New(spinner.CharSets[14], 100*time.Millisecond)
				sp.Suffix = " explaining..."
			}

			for i, rec := range result.Recommendations {
				fmt.Fprintf(c.Root().Writer, "%d. [%.3f] %s\n", i+1, rec.Score, rec.Article.Title)
				fmt.Fprintf(c.Root().Writer, "   %s\n", rec.Article.Link)
				fmt.Fprintf(c.Root().Writer, "   id: %s  affinity: %.3f  novelty: %.3f\n",
					rec.Article.ID, rec.Affinity, rec.Novelty)
				if len(rec.SharedEntities) > 0 {
					fmt.Fprintf(c.Root().Writer, "   shared: %s\n", strings.Join(rec.SharedEntities, ", "))
				}
				if len(rec.BridgingEntities) > 0 {
					fmt.Fprintf(c.Root().Writer, "   new: %s\n", strings.Join(rec.BridgingEntities, ", "))
				}

				if explain {
					sp.Start()
					text, err := e.summarizer.Explain(ctx, rec.Article, rec.SharedEntities)
					sp.Stop()
					if err == nil {
						fmt.Fprintf(c.Root().Writer, "   why: %s\n", strings.TrimSpace(text))
					}
				}
			}

			if explain {
				return e.saveCosts()
			}
			return nil
		},
	}
}
