package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/feedgraph/feedgraph/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

type Error struct {
	Code    int
	Message string
}

func Run(ctx context.Context, argv []string) *Error {
	cmd := &cli.Command{
		Name:  "feedgraph",
		Usage: "Hybrid retrieval and discovery over your newsletter/RSS corpus",
		Commands: []*cli.Command{
			feedCommand(),
			ingestCommand(),
			queryCommand(),
			discoverCommand(),
			markCommand(),
			historyCommand(),
			statsCommand(),
			costsCommand(),
		},
	}

	if err := cmd.Run(ctx, argv); err != nil {
		logging.Default().Error("command failed", "error", err)
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return &Error{
			Code:    1,
			Message: err.Error(),
		}
	}

	return nil
}
