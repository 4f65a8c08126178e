// Package config manages hostconf configuration and filesystem paths.
//
// The default root is ~/.hostconf/ and holds the configuration file, the
// desired state file and the run records. HOSTCONF_ROOT overrides it.
package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// Paths contains all the filesystem paths used by hostconf.
type Paths struct {
	// Root is the base directory for all hostconf data (default: ~/.hostconf)
	Root string

	// Runs is the directory holding one record per apply run
	Runs string

	// Config is the path to the config file
	Config string

	// Desired is the default desired state file
	Desired string
}

// DefaultPaths returns the default paths for hostconf.
// Paths can be overridden with environment variables:
// - HOSTCONF_ROOT: Override the root directory
func DefaultPaths() (*Paths, error) {
	root := os.Getenv("HOSTCONF_ROOT")
	if root == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get user home directory: %w", err)
		}
		root = filepath.Join(home, ".hostconf")
	}
	return PathsAt(root), nil
}

// PathsAt returns the paths below root. A config.toml is preferred over
// config.yaml when only the former exists.
func PathsAt(root string) *Paths {
	cfg := filepath.Join(root, "config.yaml")
	if _, err := os.Stat(cfg); os.IsNotExist(err) {
		if _, err := os.Stat(filepath.Join(root, "config.toml")); err == nil {
			cfg = filepath.Join(root, "config.toml")
		}
	}
	return &Paths{
		Root:    root,
		Runs:    filepath.Join(root, "runs"),
		Config:  cfg,
		Desired: filepath.Join(root, "desired.yaml"),
	}
}

// EnsureDirectories creates all necessary directories if they don't exist.
func (p *Paths) EnsureDirectories() error {
	for _, dir := range []string{p.Root, p.Runs} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}
