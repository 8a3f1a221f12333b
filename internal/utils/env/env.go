// Package env handles the environment variables passed to container processes.
package env

import (
	"bufio"
	"fmt"
	"io"
	"maps"
	"os"
	"regexp"
	"slices"
	"strings"

	"github.com/slok/mobydemux/internal/model"
)

var keyRegexp = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ParseSpecs parses KEY=VALUE specs, a bare KEY takes its value from the local environment.
// Later specs override earlier ones.
func ParseSpecs(specs []string) (map[string]string, error) {
	env := make(map[string]string, len(specs))
	for _, spec := range specs {
		k, v, err := parseSpec(spec)
		if err != nil {
			return nil, err
		}
		env[k] = v
	}

	return env, nil
}

// ParseFile parses an env file in the docker `--env-file` format: one spec per line,
// blank lines and lines starting with `#` are ignored.
func ParseFile(r io.Reader) (map[string]string, error) {
	env := map[string]string{}

	s := bufio.NewScanner(r)
	for n := 1; s.Scan(); n++ {
		line := strings.TrimLeft(s.Text(), " \t")
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		k, v, err := parseSpec(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", n, err)
		}
		env[k] = v
	}
	if err := s.Err(); err != nil {
		return nil, fmt.Errorf("could not read env file: %w", err)
	}

	return env, nil
}

func parseSpec(spec string) (key, value string, err error) {
	if spec == "" {
		return "", "", fmt.Errorf("environment variable spec can't be empty: %w", model.ErrNotValid)
	}

	key, value, hasValue := strings.Cut(spec, "=")
	if !keyRegexp.MatchString(key) {
		return "", "", fmt.Errorf("invalid environment variable key %q: %w", key, model.ErrNotValid)
	}
	if hasValue {
		return key, value, nil
	}

	value, ok := os.LookupEnv(key)
	if !ok {
		return "", "", fmt.Errorf("environment variable %q is not set: %w", key, model.ErrNotValid)
	}

	return key, value, nil
}

// MergeMaps returns a new map with the maps merged in order, later maps win.
func MergeMaps(envs ...map[string]string) map[string]string {
	merged := map[string]string{}
	for _, env := range envs {
		maps.Copy(merged, env)
	}

	return merged
}

// ToList returns the env vars in KEY=VALUE form sorted by key, the format container
// engines expect.
func ToList(env map[string]string) []string {
	list := make([]string, 0, len(env))
	for _, k := range slices.Sorted(maps.Keys(env)) {
		list = append(list, k+"="+env[k])
	}

	return list
}
