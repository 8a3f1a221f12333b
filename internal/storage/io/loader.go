package io

import (
	"context"
	"fmt"
	"io/fs"

	"gopkg.in/yaml.v3"

	"github.com/slok/mobydemux/internal/model"
)

// ProfileYAMLRepository loads run profiles from YAML files.
type ProfileYAMLRepository struct {
	fs fs.FS
}

// NewProfileYAMLRepository creates a new YAML profile repository.
func NewProfileYAMLRepository(filesystem fs.FS) *ProfileYAMLRepository {
	return &ProfileYAMLRepository{fs: filesystem}
}

// GetProfile loads a run profile from a YAML file and returns a validated domain model.
func (r *ProfileYAMLRepository) GetProfile(ctx context.Context, path string) (model.RunProfile, error) {
	data, err := fs.ReadFile(r.fs, path)
	if err != nil {
		return model.RunProfile{}, fmt.Errorf("reading profile file: %w", err)
	}

	if ctx.Err() != nil {
		return model.RunProfile{}, ctx.Err()
	}

	var p RunProfile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return model.RunProfile{}, fmt.Errorf("parsing YAML: %w", err)
	}

	mp := p.toModel()
	if err := mp.Validate(); err != nil {
		return model.RunProfile{}, fmt.Errorf("invalid profile: %w", err)
	}

	return mp, nil
}

// RunProfile represents the YAML structure of a run profile.
type RunProfile struct {
	Name       string            `yaml:"name"`
	Image      string            `yaml:"image"`
	Cmd        []string          `yaml:"cmd"`
	Env        map[string]string `yaml:"env"`
	Tty        bool              `yaml:"tty"`
	Stdin      bool              `yaml:"stdin"`
	Pull       bool              `yaml:"pull"`
	AutoRemove bool              `yaml:"auto_remove"`
}

func (p RunProfile) toModel() model.RunProfile {
	return model.RunProfile{
		Name:       p.Name,
		Image:      p.Image,
		Cmd:        p.Cmd,
		Env:        p.Env,
		Tty:        p.Tty,
		OpenStdin:  p.Stdin,
		Pull:       p.Pull,
		AutoRemove: p.AutoRemove,
	}
}
