package commands

import (
	"context"
	"fmt"

	"github.com/alecthomas/kingpin/v2"

	"github.com/slok/mobydemux/internal/app/historyremove"
)

type HistoryRmCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	ids   []string
	force bool
}

// NewHistoryRmCommand returns the history rm command.
func NewHistoryRmCommand(rootCmd *RootCommand, historyCmd *kingpin.CmdClause) *HistoryRmCommand {
	c := &HistoryRmCommand{rootCmd: rootCmd}

	c.Cmd = historyCmd.Command("rm", "Remove recorded sessions.")
	c.Cmd.Arg("ids", "Session IDs.").Required().StringsVar(&c.ids)
	c.Cmd.Flag("force", "Remove sessions that are still running.").Short('f').BoolVar(&c.force)

	return c
}

func (c HistoryRmCommand) Name() string { return c.Cmd.FullCommand() }

func (c HistoryRmCommand) Run(ctx context.Context) error {
	logger := c.rootCmd.Logger

	if c.rootCmd.NoHistory {
		return fmt.Errorf("history is disabled")
	}
	repo, closeRepo, err := c.rootCmd.newRepository(ctx)
	if err != nil {
		return err
	}
	defer closeRepo()

	svc, err := historyremove.NewService(historyremove.ServiceConfig{
		Repository: repo,
		Logger:     logger,
	})
	if err != nil {
		return fmt.Errorf("could not create service: %w", err)
	}

	if err := svc.Run(ctx, historyremove.Request{IDs: c.ids, Force: c.force}); err != nil {
		return fmt.Errorf("could not remove sessions: %w", err)
	}

	return nil
}
