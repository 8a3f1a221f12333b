package env_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slok/mobydemux/internal/model"
	"github.com/slok/mobydemux/internal/utils/env"
)

func TestParseSpecs(t *testing.T) {
	t.Setenv("FROM_HOST", "host-value")

	tests := map[string]struct {
		specs  []string
		expEnv map[string]string
		expErr bool
	}{
		"KEY=VALUE should parse": {
			specs:  []string{"FOO=bar"},
			expEnv: map[string]string{"FOO": "bar"},
		},
		"KEY= should parse an empty value": {
			specs:  []string{"FOO="},
			expEnv: map[string]string{"FOO": ""},
		},
		"KEY should inherit from host": {
			specs:  []string{"FROM_HOST"},
			expEnv: map[string]string{"FROM_HOST": "host-value"},
		},
		"Later entries should override earlier ones": {
			specs:  []string{"FOO=one", "FOO=two"},
			expEnv: map[string]string{"FOO": "two"},
		},
		"Missing inherited var should fail": {
			specs:  []string{"DOES_NOT_EXIST_MOBYDEMUX"},
			expErr: true,
		},
		"Invalid key should fail": {
			specs:  []string{"1INVALID=value"},
			expErr: true,
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			got, err := env.ParseSpecs(tc.specs)

			if tc.expErr {
				assert.ErrorIs(t, err, model.ErrNotValid)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tc.expEnv, got)
		})
	}
}

func TestParseFile(t *testing.T) {
	t.Setenv("FROM_HOST", "host-value")

	tests := map[string]struct {
		file   string
		expEnv map[string]string
		expErr bool
	}{
		"An empty file should return an empty env.": {
			file:   "",
			expEnv: map[string]string{},
		},

		"Comments and blank lines should be ignored.": {
			file:   "# comment\n\nFOO=bar\n  # indented comment\nBAZ=a b c\n",
			expEnv: map[string]string{"FOO": "bar", "BAZ": "a b c"},
		},

		"Bare keys should inherit from host.": {
			file:   "FROM_HOST\n",
			expEnv: map[string]string{"FROM_HOST": "host-value"},
		},

		"Later lines should override earlier ones.": {
			file:   "FOO=one\nFOO=two",
			expEnv: map[string]string{"FOO": "two"},
		},

		"Invalid lines should fail.": {
			file:   "FOO=bar\nNOT VALID=1\n",
			expErr: true,
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			got, err := env.ParseFile(strings.NewReader(tc.file))

			if tc.expErr {
				assert.ErrorIs(t, err, model.ErrNotValid)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tc.expEnv, got)
		})
	}
}

func TestMergeMaps(t *testing.T) {
	got := env.MergeMaps(map[string]string{"A": "1", "B": "1"}, map[string]string{"B": "2"})
	assert.Equal(t, map[string]string{"A": "1", "B": "2"}, got)
	assert.Equal(t, map[string]string{}, env.MergeMaps(nil, nil))
	assert.Equal(t, map[string]string{"A": "3"}, env.MergeMaps(map[string]string{"A": "1"}, nil, map[string]string{"A": "3"}))
}

func TestToList(t *testing.T) {
	assert.Equal(t, []string{"A=1", "B=", "C=x=y"}, env.ToList(map[string]string{"C": "x=y", "A": "1", "B": ""}))
	assert.Empty(t, env.ToList(nil))
}
