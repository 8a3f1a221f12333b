package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/alecthomas/kingpin/v2"

	"github.com/slok/mobydemux/internal/app/history"
	"github.com/slok/mobydemux/internal/model"
)

// NewHistoryCommand returns the parent command of the history subcommands.
func NewHistoryCommand(app *kingpin.Application) *kingpin.CmdClause {
	return app.Command("history", "Manage the recorded demux sessions.")
}

type HistoryListCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	id          string
	operation   string
	stateFilter string
	limit       int
	format      string
}

// NewHistoryListCommand returns the history list command.
func NewHistoryListCommand(rootCmd *RootCommand, historyCmd *kingpin.CmdClause) *HistoryListCommand {
	c := &HistoryListCommand{rootCmd: rootCmd}

	c.Cmd = historyCmd.Command("list", "List the recorded sessions, newest first.").Default()
	c.Cmd.Arg("id", "Show the details of a single session.").StringVar(&c.id)
	c.Cmd.Flag("operation", "Filter by operation (attach, exec, run, decode).").EnumVar(&c.operation, "attach", "exec", "run", "decode")
	c.Cmd.Flag("state", "Filter by state (running, completed, failed, cancelled).").StringVar(&c.stateFilter)
	c.Cmd.Flag("limit", "Maximum number of sessions, 0 shows all.").Short('n').Default("20").IntVar(&c.limit)
	c.Cmd.Flag("format", "Output format (table, json, yaml).").Default("table").EnumVar(&c.format, "table", "json", "yaml")

	return c
}

func (c HistoryListCommand) Name() string { return c.Cmd.FullCommand() }

func (c HistoryListCommand) Run(ctx context.Context) error {
	logger := c.rootCmd.Logger

	// Parse state filter if provided.
	var stateFilter *model.SessionState
	if c.stateFilter != "" {
		state := model.SessionState(strings.ToLower(c.stateFilter))
		switch state {
		case model.SessionStateRunning, model.SessionStateCompleted, model.SessionStateFailed, model.SessionStateCancelled:
			stateFilter = &state
		default:
			return fmt.Errorf("invalid state filter: %s (must be: running, completed, failed, cancelled)", c.stateFilter)
		}
	}

	if c.rootCmd.NoHistory {
		return fmt.Errorf("history is disabled")
	}
	repo, closeRepo, err := c.rootCmd.newRepository(ctx)
	if err != nil {
		return err
	}
	defer closeRepo()

	svc, err := history.NewService(history.ServiceConfig{
		Repository: repo,
		Logger:     logger,
	})
	if err != nil {
		return fmt.Errorf("could not create service: %w", err)
	}

	sessions, err := svc.Run(ctx, history.Request{
		ID:          c.id,
		Limit:       c.limit,
		Operation:   c.operation,
		StateFilter: stateFilter,
	})
	if err != nil {
		return fmt.Errorf("could not list sessions: %w", err)
	}

	p := newPrinter(c.format, c.rootCmd.Stdout)
	if c.id != "" && len(sessions) == 1 {
		if err := p.PrintSession(sessions[0]); err != nil {
			return fmt.Errorf("could not print session: %w", err)
		}
		return nil
	}

	if err := p.PrintHistory(sessions); err != nil {
		return fmt.Errorf("could not print history: %w", err)
	}

	return nil
}
