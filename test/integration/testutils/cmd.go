package testutils

import (
	"bytes"
	"context"
	"io"
	"os"
	"os/exec"
)

// Cmd is an invocation of the mobydemux binary.
type Cmd struct {
	Binary string
	Args   []string
	// Env is set on top of the current environment.
	Env []string
	// Stdin is optional.
	Stdin io.Reader
	// NoLog disables the CLI logger so stderr only has the container stderr.
	NoLog bool
}

// Run executes the command and returns what it wrote on stdout and stderr.
// A non zero exit status is returned as an *exec.ExitError.
func (c Cmd) Run(ctx context.Context) (stdout, stderr []byte, err error) {
	var outData, errData bytes.Buffer
	cmd := exec.CommandContext(ctx, c.Binary, c.Args...)
	cmd.Stdin = c.Stdin
	cmd.Stdout = &outData
	cmd.Stderr = &errData

	// Duplicated keys use the last value.
	env := append(os.Environ(), c.Env...)
	if c.NoLog {
		env = append(env, "MOBYDEMUX_NO_LOG=true")
	}
	cmd.Env = env

	err = cmd.Run()

	return outData.Bytes(), errData.Bytes(), err
}

// ExitCode returns the exit status of a Cmd.Run error, -1 when the command couldn't run.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	if exitErr, ok := err.(*exec.ExitError); ok {
		return exitErr.ExitCode()
	}
	return -1
}
