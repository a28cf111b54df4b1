package cli

import (
	"context"
	"fmt"
	"sort"

	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"

	"github.com/lethanhdat/membank/memory"
)

func factsCommand() *cli.Command {
	var cfg config

	return &cli.Command{
		Name:  "facts",
		Usage: "Show everything known about the user",
		Flags: globalFlags(&cfg),
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx = cfg.loggerContext(ctx)

			mgr, cleanup, err := cfg.newManager(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			all := mgr.Facts().All(ctx)
			if len(all) == 0 {
				fmt.Fprintf(c.Root().Writer, "No facts recorded for %s\n", cfg.userID)
				return nil
			}

			entities := make([]string, 0, len(all))
			for entity := range all {
				entities = append(entities, entity)
			}
			sort.Strings(entities)

			for _, entity := range entities {
				fmt.Fprintf(c.Root().Writer, "%s:\n", entity)
				for _, value := range all[entity] {
					fmt.Fprintf(c.Root().Writer, "  - %s\n", value)
				}
			}
			return nil
		},
	}
}

func rememberCommand() *cli.Command {
	var (
		cfg    config
		entity string
		value  string
	)

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "entity",
			Aliases:     []string{"e"},
			Usage:       "Entity key (e.g. tên, sở thích)",
			Required:    true,
			Destination: &entity,
		},
		&cli.StringFlag{
			Name:        "value",
			Aliases:     []string{"v"},
			Usage:       "Fact to remember",
			Required:    true,
			Destination: &value,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)
	flags = append(flags, embeddingFlags(&cfg)...)

	return &cli.Command{
		Name:  "remember",
		Usage: "Record a fact about the user",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx = cfg.loggerContext(ctx)

			mgr, cleanup, err := cfg.newManager(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			if err := mgr.RecordFact(ctx, entity, value); err != nil {
				return goerr.Wrap(err, "failed to record fact")
			}

			fmt.Fprintf(c.Root().Writer, "Remembered %s: %s\n", entity, value)
			return nil
		},
	}
}

func forgetCommand() *cli.Command {
	var (
		cfg    config
		entity string
		value  string
	)

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "entity",
			Aliases:     []string{"e"},
			Usage:       "Entity key",
			Required:    true,
			Destination: &entity,
		},
		&cli.StringFlag{
			Name:        "value",
			Aliases:     []string{"v"},
			Usage:       "Fact to remove (omit to drop the whole entity)",
			Destination: &value,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)

	return &cli.Command{
		Name:  "forget",
		Usage: "Remove a recorded fact",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx = cfg.loggerContext(ctx)

			mgr, cleanup, err := cfg.newManager(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			if value == "" {
				for _, v := range mgr.Facts().Facts(ctx, entity) {
					if err := mgr.Facts().RemoveFact(ctx, entity, v); err != nil {
						return goerr.Wrap(err, "failed to remove fact")
					}
				}
				fmt.Fprintf(c.Root().Writer, "Forgot everything about %s\n", entity)
				return nil
			}

			if err := mgr.Facts().RemoveFact(ctx, entity, value); err != nil {
				return goerr.Wrap(err, "failed to remove fact")
			}
			fmt.Fprintf(c.Root().Writer, "Forgot %s: %s\n", entity, value)
			return nil
		},
	}
}

func searchCommand() *cli.Command {
	var (
		cfg   config
		limit int64
	)

	flags := []cli.Flag{
		&cli.IntFlag{
			Name:        "limit",
			Aliases:     []string{"n"},
			Usage:       "Maximum number of results",
			Value:       int64(memory.DefaultRetrievedMemories),
			Destination: &limit,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)
	flags = append(flags, embeddingFlags(&cfg)...)

	return &cli.Command{
		Name:      "search",
		Usage:     "Search memories by meaning",
		ArgsUsage: "<query>",
		Flags:     flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx = cfg.loggerContext(ctx)

			query := c.Args().First()
			if query == "" {
				return goerr.New("query is required")
			}

			mgr, cleanup, err := cfg.newManager(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			records := mgr.Semantic().Search(ctx, query, int(limit))
			if len(records) == 0 {
				fmt.Fprintf(c.Root().Writer, "%s\n", memory.NoRelevantMemory)
				return nil
			}

			for i, rec := range records {
				fmt.Fprintf(c.Root().Writer, "%d. [%s] (%.2f) %s\n",
					i+1, rec.Type, rec.Similarity, rec.Content)
			}
			return nil
		},
	}
}

func historyCommand() *cli.Command {
	var (
		cfg   config
		limit int64
		grep  string
	)

	flags := []cli.Flag{
		&cli.IntFlag{
			Name:        "limit",
			Aliases:     []string{"n"},
			Usage:       "Maximum number of turns to show",
			Value:       20,
			Destination: &limit,
		},
		&cli.StringFlag{
			Name:        "grep",
			Usage:       "Only show turns containing this text",
			Destination: &grep,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)

	return &cli.Command{
		Name:  "history",
		Usage: "Show the conversation history of a session",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx = cfg.loggerContext(ctx)

			mgr, cleanup, err := cfg.newManager(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			var turns []memory.Turn
			if grep != "" {
				turns = mgr.SearchHistory(ctx, grep, int(limit))
			} else {
				turns = mgr.History().Recent(ctx, int(limit))
			}

			if len(turns) == 0 {
				fmt.Fprintf(c.Root().Writer, "Chưa có cuộc trò chuyện nào.\n")
				return nil
			}

			for _, turn := range turns {
				label := "Người dùng"
				if turn.Role == memory.RoleAssistant {
					label = "AI"
				}
				fmt.Fprintf(c.Root().Writer, "[%s] %s: %s\n",
					turn.CreatedAt.Local().Format("2006-01-02 15:04"), label, turn.Content)
			}
			return nil
		},
	}
}

func statusCommand() *cli.Command {
	var cfg config

	return &cli.Command{
		Name:  "status",
		Usage: "Summarize what the memory holds",
		Flags: globalFlags(&cfg),
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx = cfg.loggerContext(ctx)

			mgr, cleanup, err := cfg.newManager(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			ov := mgr.Overview(ctx)
			fmt.Fprintf(c.Root().Writer, "User: %s\n", ov.UserID)
			fmt.Fprintf(c.Root().Writer, "Session: %s\n", ov.SessionID)
			fmt.Fprintf(c.Root().Writer, "Known entities: %d\n", ov.TotalEntities)
			entities := make([]string, 0, len(ov.Entities))
			for entity := range ov.Entities {
				entities = append(entities, entity)
			}
			sort.Strings(entities)
			for _, entity := range entities {
				fmt.Fprintf(c.Root().Writer, "  - %s\n", entity)
			}
			fmt.Fprintf(c.Root().Writer, "\n%s\n", ov.ConversationSummary)
			return nil
		},
	}
}

func clearCommand() *cli.Command {
	var (
		cfg config
		all bool
	)

	flags := []cli.Flag{
		&cli.BoolFlag{
			Name:        "all",
			Usage:       "Clear facts and semantic memories too, not just the session history",
			Destination: &all,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)
	flags = append(flags, embeddingFlags(&cfg)...)

	return &cli.Command{
		Name:  "clear",
		Usage: "Erase memory for a user or session",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx = cfg.loggerContext(ctx)

			mgr, cleanup, err := cfg.newManager(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			if all {
				if err := mgr.ResetAll(ctx); err != nil {
					return goerr.Wrap(err, "failed to clear memory")
				}
				fmt.Fprintf(c.Root().Writer, "Cleared all memory for %s\n", cfg.userID)
				return nil
			}

			if err := mgr.ResetSession(ctx); err != nil {
				return goerr.Wrap(err, "failed to clear session history")
			}
			fmt.Fprintf(c.Root().Writer, "Cleared history for session %s\n", cfg.sessionID)
			return nil
		},
	}
}
