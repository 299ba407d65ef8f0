package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/feedgraph/feedgraph/pkg/model"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

func markCommand() *cli.Command {
	var (
		cfg      config
		duration time.Duration
	)

	flags := []cli.Flag{
		&cli.DurationFlag{
			Name:        "duration",
			Aliases:     []string{"d"},
			Usage:       "Time spent on the article (e.g. 3m20s)",
			Destination: &duration,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)

	return &cli.Command{
		Name:      "mark",
		Usage:     "Record a reading action (opened, read, starred, dismissed)",
		ArgsUsage: "<article-id> <action>",
		Flags:     flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			id := c.Args().Get(0)
			action := model.ReadAction(c.Args().Get(1))
			if id == "" || action == "" {
				return goerr.New("article id and action are required")
			}
			if err := action.Validate(); err != nil {
				return goerr.Wrap(err, "unknown action", goerr.V("action", string(action)))
			}

			e, err := cfg.openEngine(ctx, false)
			if err != nil {
				return err
			}
			defer e.close()

			article, err := e.repo.GetArticle(ctx, model.ArticleID(id))
			if err != nil {
				return err
			}

			event := &model.ReadingEvent{
				ArticleID: article.ID,
				Action:    action,
				At:        time.Now(),
				Duration:  duration,
			}
			if err := e.repo.AddReadingEvent(ctx, event); err != nil {
				return err
			}

			fmt.Fprintf(c.Root().Writer, "Marked %s as %s\n", article.Title, action)
			return nil
		},
	}
}

func historyCommand() *cli.Command {
	var (
		cfg   config
		limit int64
	)

	flags := []cli.Flag{
		&cli.IntFlag{
			Name:        "limit",
			Aliases:     []string{"l"},
			Usage:       "Maximum number of events to show (0 = all)",
			Destination: &limit,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)

	return &cli.Command{
		Name:  "history",
		Usage: "Show the reading history log, newest first",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			e, err := cfg.openEngine(ctx, false)
			if err != nil {
				return err
			}
			defer e.close()

			events, err := e.repo.ListReadingEvents(ctx)
			if err != nil {
				return err
			}
			if len(events) == 0 {
				fmt.Fprintln(c.Root().Writer, "No reading history.")
				return nil
			}

			// The log is stored oldest first; show newest first.
			shown := 0
			for i := len(events) - 1; i >= 0; i-- {
				if limit > 0 && int64(shown) >= limit {
					break
				}
				ev := events[i]
				title := string(ev.ArticleID)
				if article, err := e.repo.GetArticle(ctx, ev.ArticleID); err == nil {
					title = article.Title
				}
				line := fmt.Sprintf("%s  %-9s %s", ev.At.Format(time.RFC3339), ev.Action, title)
				if ev.Duration > 0 {
					line += fmt.Sprintf(" (%s)", ev.Duration)
				}
				fmt.Fprintln(c.Root().Writer, line)
				shown++
			}
			return nil
		},
	}
}
