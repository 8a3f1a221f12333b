package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/alecthomas/kingpin/v2"
	"golang.org/x/term"
	"k8s.io/client-go/util/homedir"

	"github.com/slok/mobydemux/internal/log"
	"github.com/slok/mobydemux/internal/printer"
	"github.com/slok/mobydemux/internal/storage"
	"github.com/slok/mobydemux/internal/storage/sqlite"
	utilsenv "github.com/slok/mobydemux/internal/utils/env"
)

const (
	// LoggerTypeDefault is the logger default type.
	LoggerTypeDefault = "default"
	// LoggerTypeJSON is the logger json type.
	LoggerTypeJSON = "json"
)

// Command represents an application command, all commands that want to be executed
// should implement and setup on main.
type Command interface {
	Name() string
	Run(ctx context.Context) error
}

// RootCommand represents the root command configuration and global configuration
// for all the commands.
type RootCommand struct {
	// Global flags.
	Debug      bool
	NoLog      bool
	NoColor    bool
	LoggerType string
	DBPath     string
	NoHistory  bool

	// Global instances.
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
	Logger log.Logger
}

// NewRootCommand initializes the main root configuration.
func NewRootCommand(app *kingpin.Application) *RootCommand {
	c := &RootCommand{}

	app.Flag("debug", "Enable debug mode.").BoolVar(&c.Debug)
	app.Flag("no-log", "Disable logger.").BoolVar(&c.NoLog)
	app.Flag("no-color", "Disable logger color.").BoolVar(&c.NoColor)
	app.Flag("logger", "Selects the logger type.").Default(LoggerTypeDefault).EnumVar(&c.LoggerType, LoggerTypeDefault, LoggerTypeJSON)

	defaultDBPath := filepath.Join(homedir.HomeDir(), ".mobydemux", "history.db")
	app.Flag("db-path", "Path to the SQLite session history database file.").Envar("MOBYDEMUX_DB_PATH").Default(defaultDBPath).StringVar(&c.DBPath)
	app.Flag("no-history", "Don't record the session on the history.").BoolVar(&c.NoHistory)

	return c
}

// ExitCodeError is returned by the commands that need to exit with a specific code
// (e.g the exit code of the container process).
type ExitCodeError struct {
	Code int
}

func (e ExitCodeError) Error() string { return fmt.Sprintf("exit code %d", e.Code) }

func exitCode(code int) error {
	if code == 0 {
		return nil
	}
	return ExitCodeError{Code: code}
}

// newRepository returns the session history repository, nil when the history is disabled.
// The returned close func is always safe to call.
func (r *RootCommand) newRepository(ctx context.Context) (storage.SessionRepository, func(), error) {
	if r.NoHistory {
		return nil, func() {}, nil
	}

	repo, err := sqlite.NewRepository(ctx, sqlite.RepositoryConfig{
		DBPath: r.DBPath,
		Logger: r.Logger,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("could not create repository: %w", err)
	}

	return repo, func() {
		if err := repo.Close(); err != nil {
			r.Logger.Warningf("Could not close repository: %s", err)
		}
	}, nil
}

// commandEnv loads the env files in order and sets the env specs on top of them.
func commandEnv(files, specs []string) (map[string]string, error) {
	envs := make([]map[string]string, 0, len(files)+1)
	for _, path := range files {
		env, err := readEnvFile(path)
		if err != nil {
			return nil, err
		}
		envs = append(envs, env)
	}

	env, err := utilsenv.ParseSpecs(specs)
	if err != nil {
		return nil, fmt.Errorf("invalid --env value: %w", err)
	}
	envs = append(envs, env)

	return utilsenv.MergeMaps(envs...), nil
}

func readEnvFile(path string) (map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("could not open env file: %w", err)
	}
	defer f.Close()

	env, err := utilsenv.ParseFile(f)
	if err != nil {
		return nil, fmt.Errorf("invalid env file %s: %w", path, err)
	}

	return env, nil
}

func newPrinter(format string, w io.Writer) printer.Printer {
	switch format {
	case "json":
		return printer.NewJSONPrinter(w)
	case "yaml":
		return printer.NewYAMLPrinter(w)
	default: // table
		return printer.NewTablePrinter(w)
	}
}

// rawTerminal sets the local terminal in raw mode so the keys reach the container TTY
// unprocessed. The returned func restores the terminal state.
func (r *RootCommand) rawTerminal() (restore func(), err error) {
	f, ok := r.Stdin.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		r.Logger.Debugf("Stdin is not a terminal, raw mode not set")
		return func() {}, nil
	}

	state, err := term.MakeRaw(int(f.Fd()))
	if err != nil {
		return nil, fmt.Errorf("could not set terminal in raw mode: %w", err)
	}

	return func() {
		if err := term.Restore(int(f.Fd()), state); err != nil {
			r.Logger.Warningf("Could not restore terminal: %s", err)
		}
	}, nil
}
