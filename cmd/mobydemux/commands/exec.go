package commands

import (
	"context"
	"fmt"

	"github.com/alecthomas/kingpin/v2"

	"github.com/slok/mobydemux/internal/app/exec"
	"github.com/slok/mobydemux/internal/demux"
	"github.com/slok/mobydemux/internal/moby"
)

type ExecCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	containerID string
	command     []string
	workingDir  string
	user        string
	envSpecs    []string
	envFiles    []string
	interactive bool
	tty         bool
	combined    bool
}

// NewExecCommand returns the exec command.
func NewExecCommand(rootCmd *RootCommand, app *kingpin.Application) *ExecCommand {
	c := &ExecCommand{rootCmd: rootCmd}

	c.Cmd = app.Command("exec", "Execute a command in a running container.")
	c.Cmd.Arg("container", "Container name or ID.").Required().StringVar(&c.containerID)
	c.Cmd.Arg("command", "Command to execute (use -- before command).").Required().StringsVar(&c.command)
	c.Cmd.Flag("workdir", "Working directory for command execution.").Short('w').StringVar(&c.workingDir)
	c.Cmd.Flag("user", "Username or UID (format: <name|uid>[:<group|gid>]).").Short('u').StringVar(&c.user)
	c.Cmd.Flag("env", "Environment variables (KEY=VALUE or KEY from current environment). Can be repeated.").Short('e').StringsVar(&c.envSpecs)
	c.Cmd.Flag("env-file", "Read environment variables from a file, --env values take precedence. Can be repeated.").ExistingFilesVar(&c.envFiles)
	c.Cmd.Flag("interactive", "Keep stdin attached.").Short('i').BoolVar(&c.interactive)
	c.Cmd.Flag("tty", "Allocate a pseudo-TTY.").Short('t').BoolVar(&c.tty)
	c.Cmd.Flag("combined", "Write the command stderr on the local stdout.").BoolVar(&c.combined)

	return c
}

func (c ExecCommand) Name() string { return c.Cmd.FullCommand() }

func (c ExecCommand) Run(ctx context.Context) error {
	logger := c.rootCmd.Logger

	cmdEnv, err := commandEnv(c.envFiles, c.envSpecs)
	if err != nil {
		return fmt.Errorf("invalid environment: %w", err)
	}

	repo, closeRepo, err := c.rootCmd.newRepository(ctx)
	if err != nil {
		return err
	}
	defer closeRepo()

	client, err := moby.NewClient(moby.Config{Logger: logger})
	if err != nil {
		return fmt.Errorf("could not create docker client: %w", err)
	}

	svc, err := exec.NewService(exec.ServiceConfig{
		Client:     client,
		Repository: repo,
		Logger:     logger,
	})
	if err != nil {
		return fmt.Errorf("could not create service: %w", err)
	}

	req := exec.Request{
		ContainerID: c.containerID,
		Command:     c.command,
		Env:         cmdEnv,
		WorkingDir:  c.workingDir,
		User:        c.user,
		Tty:         c.tty,
		Stdout:      c.rootCmd.Stdout,
	}
	if c.interactive {
		req.Stdin = demux.NewContextSource(ctx, c.rootCmd.Stdin)
	}
	if !c.combined {
		req.Stderr = c.rootCmd.Stderr
	}

	// Restore the terminal before returning the exit code.
	result, err := func() (*exec.Response, error) {
		if c.tty && c.interactive {
			restore, err := c.rootCmd.rawTerminal()
			if err != nil {
				return nil, err
			}
			defer restore()
		}
		return svc.Run(ctx, req)
	}()
	if err != nil {
		return fmt.Errorf("could not execute command: %w", err)
	}

	// Exit with the command's exit code.
	return exitCode(result.ExitCode)
}
