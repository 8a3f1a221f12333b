package model

import "fmt"

// RunProfile is a reusable description of a container run.
type RunProfile struct {
	// Name is the container name, optional.
	Name       string
	Image      string
	Cmd        []string
	Env        map[string]string
	Tty        bool
	OpenStdin  bool
	Pull       bool
	AutoRemove bool
}

// Validate validates the run profile.
func (p RunProfile) Validate() error {
	if p.Image == "" {
		return fmt.Errorf("image is required: %w", ErrNotValid)
	}
	for k := range p.Env {
		if k == "" {
			return fmt.Errorf("env var names can't be empty: %w", ErrNotValid)
		}
	}
	return nil
}
