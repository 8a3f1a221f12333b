package commands

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/alecthomas/kingpin/v2"

	"github.com/slok/mobydemux/internal/app/decode"
)

type DecodeCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	path     string
	raw      bool
	combined bool
}

// NewDecodeCommand returns the decode command.
func NewDecodeCommand(rootCmd *RootCommand, app *kingpin.Application) *DecodeCommand {
	c := &DecodeCommand{rootCmd: rootCmd}

	c.Cmd = app.Command("decode", "Decode a captured multiplexed stream into stdout and stderr.")
	c.Cmd.Arg("file", "Captured stream file, use - to read from stdin.").Default("-").StringVar(&c.path)
	c.Cmd.Flag("raw", "The input is a raw (TTY) stream.").BoolVar(&c.raw)
	c.Cmd.Flag("combined", "Write the stderr frames on stdout.").BoolVar(&c.combined)

	return c
}

func (c DecodeCommand) Name() string { return c.Cmd.FullCommand() }

func (c DecodeCommand) Run(ctx context.Context) error {
	logger := c.rootCmd.Logger

	var input io.ReadCloser
	if c.path == "-" {
		input = io.NopCloser(c.rootCmd.Stdin)
	} else {
		f, err := os.Open(c.path)
		if err != nil {
			return fmt.Errorf("could not open input: %w", err)
		}
		input = f
	}

	repo, closeRepo, err := c.rootCmd.newRepository(ctx)
	if err != nil {
		_ = input.Close()
		return err
	}
	defer closeRepo()

	svc, err := decode.NewService(decode.ServiceConfig{
		Repository: repo,
		Logger:     logger,
	})
	if err != nil {
		_ = input.Close()
		return fmt.Errorf("could not create service: %w", err)
	}

	req := decode.Request{
		Name:   c.path,
		Input:  input,
		Raw:    c.raw,
		Stdout: c.rootCmd.Stdout,
	}
	if !c.combined {
		req.Stderr = c.rootCmd.Stderr
	}

	if _, err := svc.Run(ctx, req); err != nil {
		return fmt.Errorf("could not decode: %w", err)
	}

	return nil
}
