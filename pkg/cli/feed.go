package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/feedgraph/feedgraph/pkg/model"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

func feedCommand() *cli.Command {
	return &cli.Command{
		Name:  "feed",
		Usage: "Manage the feed registry",
		Commands: []*cli.Command{
			feedAddCommand(),
			feedListCommand(),
			feedSetActiveCommand("enable", true),
			feedSetActiveCommand("disable", false),
		},
	}
}

func feedAddCommand() *cli.Command {
	var (
		cfg   config
		title string
	)

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "title",
			Aliases:     []string{"t"},
			Usage:       "Feed title",
			Destination: &title,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)

	return &cli.Command{
		Name:      "add",
		Usage:     "Register a feed URL",
		ArgsUsage: "<url>",
		Flags:     flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			url := c.Args().First()
			if url == "" {
				return goerr.New("feed url is required")
			}

			e, err := cfg.openEngine(ctx, false)
			if err != nil {
				return err
			}
			defer e.close()

			feed := &model.Feed{
				ID:        model.NewFeedID(),
				URL:       url,
				Title:     title,
				Active:    true,
				CreatedAt: time.Now(),
			}
			if err := e.repo.PutFeed(ctx, feed); err != nil {
				return err
			}

			stored, err := e.repo.GetFeedByURL(ctx, url)
			if err != nil {
				return err
			}
			fmt.Fprintf(c.Root().Writer, "Feed registered: %s (%s)\n", stored.URL, stored.ID)
			return nil
		},
	}
}

func feedListCommand() *cli.Command {
	var (
		cfg config
		all bool
	)

	flags := []cli.Flag{
		&cli.BoolFlag{
			Name:        "all",
			Aliases:     []string{"a"},
			Usage:       "Include disabled feeds",
			Destination: &all,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)

	return &cli.Command{
		Name:  "list",
		Usage: "List registered feeds",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			e, err := cfg.openEngine(ctx, false)
			if err != nil {
				return err
			}
			defer e.close()

			feeds, err := e.repo.ListFeeds(ctx, !all)
			if err != nil {
				return err
			}
			if len(feeds) == 0 {
				fmt.Fprintln(c.Root().Writer, "No feeds registered.")
				return nil
			}
			for _, feed := range feeds {
				state := "active"
				if !feed.Active {
					state = "disabled"
				}
				title := feed.Title
				if title == "" {
					title = "(untitled)"
				}
				fmt.Fprintf(c.Root().Writer, "%s  %-8s %s  %s\n", feed.ID, state, title, feed.URL)
			}
			return nil
		},
	}
}

func feedSetActiveCommand(name string, active bool) *cli.Command {
	var cfg config

	return &cli.Command{
		Name:      name,
		Usage:     fmt.Sprintf("%s a feed", name),
		ArgsUsage: "<feed-id>",
		Flags:     globalFlags(&cfg),
		Action: func(ctx context.Context, c *cli.Command) error {
			id := c.Args().First()
			if id == "" {
				return goerr.New("feed id is required")
			}

			e, err := cfg.openEngine(ctx, false)
			if err != nil {
				return err
			}
			defer e.close()

			if err := e.repo.SetFeedActive(ctx, model.FeedID(id), active); err != nil {
				return err
			}
			fmt.Fprintf(c.Root().Writer, "Feed %s %sd\n", id, name)
			return nil
		},
	}
}
