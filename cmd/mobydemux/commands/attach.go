package commands

import (
	"context"
	"fmt"

	"github.com/alecthomas/kingpin/v2"

	"github.com/slok/mobydemux/internal/app/attach"
	"github.com/slok/mobydemux/internal/demux"
	"github.com/slok/mobydemux/internal/moby"
)

type AttachCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	containerID string
	noStdin     bool
	tty         bool
	combined    bool
	websocket   bool
	logs        bool
	detachKeys  string
}

// NewAttachCommand returns the attach command.
func NewAttachCommand(rootCmd *RootCommand, app *kingpin.Application) *AttachCommand {
	c := &AttachCommand{rootCmd: rootCmd}

	c.Cmd = app.Command("attach", "Attach local standard input, output, and error streams to a running container.")
	c.Cmd.Arg("container", "Container name or ID.").Required().StringVar(&c.containerID)
	c.Cmd.Flag("no-stdin", "Do not attach stdin.").BoolVar(&c.noStdin)
	c.Cmd.Flag("tty", "Set the local terminal in raw mode (use with TTY containers).").Short('t').BoolVar(&c.tty)
	c.Cmd.Flag("combined", "Write the container stderr on the local stdout.").BoolVar(&c.combined)
	c.Cmd.Flag("websocket", "Attach using one websocket per stream instead of the hijacked connection.").BoolVar(&c.websocket)
	c.Cmd.Flag("logs", "Replay the container logs before streaming.").BoolVar(&c.logs)
	c.Cmd.Flag("detach-keys", "Override the key sequence for detaching a container.").StringVar(&c.detachKeys)

	return c
}

func (c AttachCommand) Name() string { return c.Cmd.FullCommand() }

func (c AttachCommand) Run(ctx context.Context) error {
	logger := c.rootCmd.Logger

	repo, closeRepo, err := c.rootCmd.newRepository(ctx)
	if err != nil {
		return err
	}
	defer closeRepo()

	client, err := moby.NewClient(moby.Config{Logger: logger})
	if err != nil {
		return fmt.Errorf("could not create docker client: %w", err)
	}

	svc, err := attach.NewService(attach.ServiceConfig{
		Client:     client,
		Repository: repo,
		Logger:     logger,
	})
	if err != nil {
		return fmt.Errorf("could not create service: %w", err)
	}

	req := attach.Request{
		ContainerID: c.containerID,
		Stdout:      c.rootCmd.Stdout,
		Websocket:   c.websocket,
		Logs:        c.logs,
		DetachKeys:  c.detachKeys,
	}
	if !c.noStdin {
		req.Stdin = demux.NewContextSource(ctx, c.rootCmd.Stdin)
	}
	if !c.combined {
		req.Stderr = c.rootCmd.Stderr
	}

	if c.tty {
		restore, err := c.rootCmd.rawTerminal()
		if err != nil {
			return err
		}
		defer restore()
	}

	resp, err := svc.Run(ctx, req)
	if err != nil {
		return fmt.Errorf("could not attach: %w", err)
	}

	logger.Debugf("Session %s ended (stdout: %d bytes)", resp.Session.ID, resp.Session.StdoutBytes)

	return nil
}
