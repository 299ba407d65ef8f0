package cli

import (
	"context"
	"fmt"
	"sort"

	"github.com/urfave/cli/v3"
)

func statsCommand() *cli.Command {
	var cfg config

	return &cli.Command{
		Name:  "stats",
		Usage: "Show corpus, graph and index statistics",
		Flags: globalFlags(&cfg),
		Action: func(ctx context.Context, c *cli.Command) error {
			e, err := cfg.openEngine(ctx, false)
			if err != nil {
				return err
			}
			defer e.close()

			repoStats, err := e.repo.Stats(ctx)
			if err != nil {
				return err
			}
			graphStats := e.graph.Stats()

			w := c.Root().Writer
			fmt.Fprintf(w, "Feeds:      %d\n", repoStats.Feeds)
			fmt.Fprintf(w, "Articles:   %d (%d ingested, %d pending)\n",
				repoStats.Articles, repoStats.Ingested, repoStats.Pending)
			fmt.Fprintf(w, "Events:     %d\n", repoStats.Events)
			fmt.Fprintf(w, "Entities:   %d\n", graphStats.Entities)
			fmt.Fprintf(w, "Relations:  %d\n", graphStats.Relations)
			fmt.Fprintf(w, "Vectors:    %d\n", e.index.Len())
			return nil
		},
	}
}

func costsCommand() *cli.Command {
	var cfg config

	return &cli.Command{
		Name:  "costs",
		Usage: "Show accumulated token usage and estimated spend",
		Flags: globalFlags(&cfg),
		Action: func(ctx context.Context, c *cli.Command) error {
			e, err := cfg.openEngine(ctx, false)
			if err != nil {
				return err
			}
			defer e.close()

			sum := e.tracker.Summarize()
			w := c.Root().Writer
			fmt.Fprintf(w, "API calls:      %d\n", sum.Calls)
			fmt.Fprintf(w, "Input tokens:   %d\n", sum.InputTokens)
			fmt.Fprintf(w, "Output tokens:  %d\n", sum.OutputTokens)
			fmt.Fprintf(w, "Estimated cost: $%.4f\n", sum.CostUSD)

			if len(sum.ByOperation) > 0 {
				ops := make([]string, 0, len(sum.ByOperation))
				for op := range sum.ByOperation {
					ops = append(ops, op)
				}
				sort.Strings(ops)
				for _, op := range ops {
					fmt.Fprintf(w, "  %-12s $%.4f\n", op, sum.ByOperation[op])
				}
			}
			return nil
		},
	}
}
