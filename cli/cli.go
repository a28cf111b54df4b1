// Package cli wires the memory system and chat engine into the membank
// command line tool.
package cli

import (
	"context"

	"github.com/urfave/cli/v3"
)

// Error carries the process exit code alongside the failure message.
type Error struct {
	Code    int
	Message string
}

// Run executes the membank command line tool.
func Run(ctx context.Context, argv []string) *Error {
	cmd := &cli.Command{
		Name:  "membank",
		Usage: "Conversational assistant with persistent memory",
		Commands: []*cli.Command{
			chatCommand(),
			factsCommand(),
			rememberCommand(),
			forgetCommand(),
			searchCommand(),
			historyCommand(),
			statusCommand(),
			clearCommand(),
		},
	}

	if err := cmd.Run(ctx, argv); err != nil {
		return &Error{
			Code:    1,
			Message: err.Error(),
		}
	}

	return nil
}
