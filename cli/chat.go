package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"

	"github.com/lethanhdat/membank/engine"
)

func chatCommand() *cli.Command {
	var cfg config

	flags := globalFlags(&cfg)
	flags = append(flags, embeddingFlags(&cfg)...)
	flags = append(flags, llmFlags(&cfg)...)

	return &cli.Command{
		Name:  "chat",
		Usage: "Interactive conversation with persistent memory",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx = cfg.loggerContext(ctx)

			if cfg.anthropicAPIKey == "" {
				return goerr.New("anthropic-api-key is required")
			}

			mgr, cleanup, err := cfg.newManager(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			client := anthropic.NewClient(option.WithAPIKey(cfg.anthropicAPIKey))

			var opts []engine.Option
			if cfg.model != "" {
				opts = append(opts, engine.WithModel(cfg.model))
			}
			bot := engine.New(&client, mgr, opts...)

			fmt.Fprintf(c.Root().Writer, "Chat session started (user=%s, session=%s). Type 'exit' to quit.\n",
				cfg.userID, cfg.sessionID)

			chatLoop(ctx, c.Root().Writer, os.Stdin, bot.Chat)

			fmt.Fprintf(c.Root().Writer, "\nChat session ended\n")
			return nil
		},
	}
}

// chatLoop reads messages from r until "exit" or EOF and prints each reply
// to w. A failed send does not end the session, the error is reported and
// the loop keeps going.
func chatLoop(ctx context.Context, w io.Writer, r io.Reader, send func(context.Context, string) (string, error)) {
	scanner := bufio.NewScanner(r)
	for {
		fmt.Fprintf(w, "> ")
		if !scanner.Scan() {
			return
		}

		message := scanner.Text()
		if message == "exit" {
			return
		}
		if message == "" {
			continue
		}

		reply, err := send(ctx, message)
		if err != nil {
			fmt.Fprintf(w, "Xin lỗi, đã có lỗi xảy ra: %v\n", err)
			continue
		}
		fmt.Fprintf(w, "%s\n", reply)
	}
}
