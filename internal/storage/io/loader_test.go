package io

import (
	"context"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"

	"github.com/slok/mobydemux/internal/model"
)

func TestProfileYAMLRepositoryGetProfile(t *testing.T) {
	tests := map[string]struct {
		fs         fstest.MapFS
		path       string
		expProfile model.RunProfile
		expErr     bool
	}{
		"A full profile should load successfully": {
			fs: fstest.MapFS{
				"profile.yaml": &fstest.MapFile{
					Data: []byte(`name: dev
image: alpine:3.20
cmd: ["sh", "-c", "echo hello"]
env:
  FOO: bar
tty: true
stdin: true
pull: true
auto_remove: true
`),
				},
			},
			path: "profile.yaml",
			expProfile: model.RunProfile{
				Name:       "dev",
				Image:      "alpine:3.20",
				Cmd:        []string{"sh", "-c", "echo hello"},
				Env:        map[string]string{"FOO": "bar"},
				Tty:        true,
				OpenStdin:  true,
				Pull:       true,
				AutoRemove: true,
			},
		},

		"A minimal profile should load successfully": {
			fs: fstest.MapFS{
				"profile.yaml": &fstest.MapFile{Data: []byte("image: busybox\n")},
			},
			path:       "profile.yaml",
			expProfile: model.RunProfile{Image: "busybox"},
		},

		"A profile without image should fail": {
			fs: fstest.MapFS{
				"profile.yaml": &fstest.MapFile{Data: []byte("name: dev\n")},
			},
			path:   "profile.yaml",
			expErr: true,
		},

		"Invalid YAML should fail": {
			fs: fstest.MapFS{
				"profile.yaml": &fstest.MapFile{Data: []byte("image: [\n")},
			},
			path:   "profile.yaml",
			expErr: true,
		},

		"A missing file should fail": {
			fs:     fstest.MapFS{},
			path:   "missing.yaml",
			expErr: true,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert := assert.New(t)

			repo := NewProfileYAMLRepository(test.fs)
			gotProfile, err := repo.GetProfile(context.Background(), test.path)

			if test.expErr {
				assert.Error(err)
			} else if assert.NoError(err) {
				assert.Equal(test.expProfile, gotProfile)
			}
		})
	}
}
