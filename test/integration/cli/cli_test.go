package cli_test

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	intcli "github.com/slok/mobydemux/test/integration/cli"
	"github.com/slok/mobydemux/test/integration/testutils"
)

func TestRun(t *testing.T) {
	config := intcli.NewConfig(t)
	testutils.NewDockerHelper(t).PullImage(t, config.Image)

	tests := map[string]struct {
		args        []string
		stdin       string
		expStdout   string
		expStderr   string
		expExitCode int
	}{
		"Stdout and stderr should be separated.": {
			args:      []string{"run", "--rm", config.Image, "--", "sh", "-c", "echo OK; echo ERR >&2"},
			expStdout: "OK\n",
			expStderr: "ERR\n",
		},

		"Combined output should go to stdout.": {
			args:      []string{"run", "--rm", "--combined", config.Image, "--", "sh", "-c", "echo OK; sleep 0.1; echo ERR >&2"},
			expStdout: "OK\nERR\n",
		},

		"The container exit code should be returned.": {
			args:        []string{"run", "--rm", config.Image, "--", "sh", "-c", "exit 3"},
			expExitCode: 3,
		},

		"Stdin should reach the container.": {
			args:      []string{"run", "--rm", "-i", config.Image, "--", "cat"},
			stdin:     "hello from stdin",
			expStdout: "hello from stdin",
		},

		"A TTY container should return the raw output.": {
			args:      []string{"run", "--rm", "-t", config.Image, "--", "printf", "tty"},
			expStdout: "tty",
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert := assert.New(t)

			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
			defer cancel()

			dbPath := filepath.Join(t.TempDir(), "history.db")
			stdout, stderr, err := config.Run(ctx, dbPath, test.args, strings.NewReader(test.stdin))

			assert.Equal(test.expExitCode, testutils.ExitCode(err), "stderr: %s", stderr)
			assert.Equal(test.expStdout, string(stdout))
			if test.expStderr != "" {
				assert.Equal(test.expStderr, string(stderr))
			}
		})
	}
}

func TestExecAndHistory(t *testing.T) {
	config := intcli.NewConfig(t)
	assert := assert.New(t)
	require := require.New(t)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	docker := testutils.NewDockerHelper(t)
	containerID := docker.StartIdleContainer(t, config.Image)
	dbPath := filepath.Join(t.TempDir(), "history.db")

	stdout, stderr, err := config.Run(ctx, dbPath, []string{"exec", containerID, "--", "sh", "-c", "echo out; echo err >&2; exit 4"}, nil)
	assert.Equal(4, testutils.ExitCode(err))
	assert.Equal("out\n", string(stdout))
	assert.Equal("err\n", string(stderr))

	stdout, stderr, err = config.Run(ctx, dbPath, []string{"history", "list", "--format", "json"}, nil)
	require.NoError(err, "stderr: %s", stderr)

	var sessions []struct {
		Operation string `json:"operation"`
		State     string `json:"state"`
		ExitCode  *int   `json:"exit_code"`
	}
	require.NoError(json.Unmarshal(stdout, &sessions))
	require.Len(sessions, 1)
	assert.Equal("exec", sessions[0].Operation)
	assert.Equal("completed", sessions[0].State)
	if assert.NotNil(sessions[0].ExitCode) {
		assert.Equal(4, *sessions[0].ExitCode)
	}
}

func TestDecode(t *testing.T) {
	config := intcli.NewConfig(t)
	assert := assert.New(t)

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	// stdout frame "a", stderr frame "b".
	capture := []byte{1, 0, 0, 0, 0, 0, 0, 1, 'a', 2, 0, 0, 0, 0, 0, 0, 1, 'b'}

	dbPath := filepath.Join(t.TempDir(), "history.db")
	stdout, stderr, err := config.Run(ctx, dbPath, []string{"decode", "-"}, bytes.NewReader(capture))
	assert.NoError(err)
	assert.Equal("a", string(stdout))
	assert.Equal("b", string(stderr))
}
