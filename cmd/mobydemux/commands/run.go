package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/alecthomas/kingpin/v2"

	"github.com/slok/mobydemux/internal/app/run"
	"github.com/slok/mobydemux/internal/demux"
	"github.com/slok/mobydemux/internal/moby"
	"github.com/slok/mobydemux/internal/model"
	storageio "github.com/slok/mobydemux/internal/storage/io"
	utilsenv "github.com/slok/mobydemux/internal/utils/env"
)

type RunCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	profilePath string
	image       string
	command     []string
	name        string
	envSpecs    []string
	envFiles    []string
	interactive bool
	tty         bool
	pull        bool
	autoRemove  bool
	combined    bool
}

// NewRunCommand returns the run command.
func NewRunCommand(rootCmd *RootCommand, app *kingpin.Application) *RunCommand {
	c := &RunCommand{rootCmd: rootCmd}

	c.Cmd = app.Command("run", "Run a command in a new container and demux its streams.")
	c.Cmd.Arg("image", "Image to run (not required with --profile).").StringVar(&c.image)
	c.Cmd.Arg("command", "Command to run (use -- before command).").StringsVar(&c.command)
	c.Cmd.Flag("profile", "YAML run profile file, flags override its values.").Short('f').StringVar(&c.profilePath)
	c.Cmd.Flag("name", "Container name.").StringVar(&c.name)
	c.Cmd.Flag("env", "Environment variables (KEY=VALUE or KEY from current environment). Can be repeated.").Short('e').StringsVar(&c.envSpecs)
	c.Cmd.Flag("env-file", "Read environment variables from a file, --env values take precedence. Can be repeated.").ExistingFilesVar(&c.envFiles)
	c.Cmd.Flag("interactive", "Keep stdin attached.").Short('i').BoolVar(&c.interactive)
	c.Cmd.Flag("tty", "Allocate a pseudo-TTY.").Short('t').BoolVar(&c.tty)
	c.Cmd.Flag("pull", "Pull the image before running.").BoolVar(&c.pull)
	c.Cmd.Flag("rm", "Remove the container when it exits.").BoolVar(&c.autoRemove)
	c.Cmd.Flag("combined", "Write the container stderr on the local stdout.").BoolVar(&c.combined)

	return c
}

func (c RunCommand) Name() string { return c.Cmd.FullCommand() }

func (c RunCommand) Run(ctx context.Context) error {
	logger := c.rootCmd.Logger

	profile, err := c.profile(ctx)
	if err != nil {
		return err
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

	svc, err := run.NewService(run.ServiceConfig{
		Client:     client,
		Repository: repo,
		Logger:     logger,
	})
	if err != nil {
		return fmt.Errorf("could not create service: %w", err)
	}

	req := run.Request{
		Profile: profile,
		Stdout:  c.rootCmd.Stdout,
	}
	if profile.OpenStdin {
		req.Stdin = demux.NewContextSource(ctx, c.rootCmd.Stdin)
	}
	if !c.combined {
		req.Stderr = c.rootCmd.Stderr
	}

	// Restore the terminal before returning the exit code.
	result, err := func() (*run.Response, error) {
		if profile.Tty && profile.OpenStdin {
			restore, err := c.rootCmd.rawTerminal()
			if err != nil {
				return nil, err
			}
			defer restore()
		}
		return svc.Run(ctx, req)
	}()
	if err != nil {
		return fmt.Errorf("could not run container: %w", err)
	}

	logger.Debugf("Container %s exited with %d", result.ContainerID, result.ExitCode)

	return exitCode(result.ExitCode)
}

// profile loads the profile file (if any) and overrides it with the flags.
func (c RunCommand) profile(ctx context.Context) (model.RunProfile, error) {
	p := model.RunProfile{}
	if c.profilePath != "" {
		abs, err := filepath.Abs(c.profilePath)
		if err != nil {
			return p, fmt.Errorf("invalid profile path: %w", err)
		}
		repo := storageio.NewProfileYAMLRepository(os.DirFS(filepath.Dir(abs)))
		p, err = repo.GetProfile(ctx, filepath.Base(abs))
		if err != nil {
			return p, fmt.Errorf("could not load profile: %w", err)
		}
	}

	cliEnv, err := commandEnv(c.envFiles, c.envSpecs)
	if err != nil {
		return p, fmt.Errorf("invalid environment: %w", err)
	}
	p.Env = utilsenv.MergeMaps(p.Env, cliEnv)

	if c.image != "" {
		p.Image = c.image
	}
	if len(c.command) > 0 {
		p.Cmd = c.command
	}
	if c.name != "" {
		p.Name = c.name
	}
	p.Tty = p.Tty || c.tty
	p.OpenStdin = p.OpenStdin || c.interactive
	p.Pull = p.Pull || c.pull
	p.AutoRemove = p.AutoRemove || c.autoRemove

	if err := p.Validate(); err != nil {
		return p, fmt.Errorf("invalid run options: %w", err)
	}

	return p, nil
}
