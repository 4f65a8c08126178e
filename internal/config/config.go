package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/bmatcuk/doublestar/v4"
	"gopkg.in/yaml.v3"

	"github.com/danieljhkim/hostconf/internal/backend/command"
)

// Paranoia selects how instructions are applied.
type Paranoia string

const (
	ParanoiaSilent      Paranoia = "silent"
	ParanoiaInteractive Paranoia = "interactive"
	ParanoiaDryRun      Paranoia = "dry-run"
)

// LeftOnly selects what happens to state present on the system but absent
// from the desired state.
type LeftOnly string

const (
	LeftOnlyReport LeftOnly = "report"
	LeftOnlyRevert LeftOnly = "revert"
)

// Config is the complete hostconf configuration.
type Config struct {
	// Desired is the desired state file. Relative paths are resolved
	// against the directory of the config file.
	Desired string `yaml:"desired" toml:"desired"`

	Backends []BackendConfig `yaml:"backends" toml:"backends"`

	Apply ApplyConfig `yaml:"apply" toml:"apply"`
	Scan  ScanConfig  `yaml:"scan" toml:"scan"`
	Diff  DiffConfig  `yaml:"diff" toml:"diff"`
	Log   LogConfig   `yaml:"log" toml:"log"`
}

// BackendConfig enables one package manager. Commands, when set, override
// the preset's commands field by field.
type BackendConfig struct {
	Name     string           `yaml:"name" toml:"name"`
	Preset   string           `yaml:"preset" toml:"preset"`
	Commands command.Commands `yaml:"commands" toml:"commands"`
}

type ApplyConfig struct {
	Paranoia     Paranoia `yaml:"paranoia" toml:"paranoia"`
	LeftOnly     LeftOnly `yaml:"left_only" toml:"left_only"`
	RemoveUnused bool     `yaml:"remove_unused" toml:"remove_unused"`
}

type ScanConfig struct {
	// Roots are walked for files no package or desired entry accounts for.
	Roots []string `yaml:"roots" toml:"roots"`
	// Ignore globs are never reported as unexpected.
	Ignore []string `yaml:"ignore" toml:"ignore"`
	// Allow globs are reported but never removed.
	Allow       []string `yaml:"allow" toml:"allow"`
	Concurrency int      `yaml:"concurrency" toml:"concurrency"`
}

type DiffConfig struct {
	// Tool is an external diff command; the old and new files are appended.
	Tool []string `yaml:"tool" toml:"tool"`
	// Pager receives rendered output longer than PageLimit lines.
	Pager     []string `yaml:"pager" toml:"pager"`
	PageLimit int      `yaml:"page_limit" toml:"page_limit"`
}

type LogConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"`
}

// Default returns the configuration used when no config file exists.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Load reads and parses the configuration file. The format is chosen by
// extension: .toml is TOML, anything else YAML.
func Load(path string) (*Config, error) {
	path = os.ExpandEnv(path)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		if _, err := toml.Decode(string(data), &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	} else {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	cfg.expandEnv()
	if cfg.Desired != "" && !filepath.IsAbs(cfg.Desired) {
		cfg.Desired = filepath.Join(filepath.Dir(path), cfg.Desired)
	}
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// LoadOrDefault loads path, falling back to Default when it does not exist.
func LoadOrDefault(path string) (*Config, error) {
	if _, err := os.Stat(os.ExpandEnv(path)); os.IsNotExist(err) {
		return Default(), nil
	}
	return Load(path)
}

func (c *Config) expandEnv() {
	c.Desired = os.ExpandEnv(c.Desired)
	for i := range c.Scan.Roots {
		c.Scan.Roots[i] = os.ExpandEnv(c.Scan.Roots[i])
	}
}

func (c *Config) applyDefaults() {
	if c.Apply.Paranoia == "" {
		c.Apply.Paranoia = ParanoiaInteractive
	}
	if c.Apply.LeftOnly == "" {
		c.Apply.LeftOnly = LeftOnlyReport
	}
	if c.Diff.PageLimit == 0 {
		c.Diff.PageLimit = 40
	}
	if len(c.Diff.Pager) == 0 {
		if pager := os.Getenv("PAGER"); pager != "" {
			c.Diff.Pager = strings.Fields(pager)
		} else {
			c.Diff.Pager = []string{"less", "-R"}
		}
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "console"
	}
	for i := range c.Backends {
		if c.Backends[i].Preset == "" {
			c.Backends[i].Preset = c.Backends[i].Name
		}
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	switch c.Apply.Paranoia {
	case ParanoiaSilent, ParanoiaInteractive, ParanoiaDryRun:
	default:
		return fmt.Errorf("invalid apply.paranoia: %s (must be silent, interactive, or dry-run)", c.Apply.Paranoia)
	}
	switch c.Apply.LeftOnly {
	case LeftOnlyReport, LeftOnlyRevert:
	default:
		return fmt.Errorf("invalid apply.left_only: %s (must be report or revert)", c.Apply.LeftOnly)
	}

	seen := make(map[string]bool)
	for _, b := range c.Backends {
		if b.Name == "" {
			return fmt.Errorf("backends: name is required")
		}
		if seen[b.Name] {
			return fmt.Errorf("backends: duplicate name %s", b.Name)
		}
		seen[b.Name] = true
		if _, ok := command.Preset(b.Preset); !ok && len(b.Commands.Files) == 0 {
			return fmt.Errorf("backends: %s has no known preset and no files command", b.Name)
		}
	}

	for _, root := range c.Scan.Roots {
		if !filepath.IsAbs(root) {
			return fmt.Errorf("scan.roots must be absolute paths: %s", root)
		}
	}
	for _, group := range [][]string{c.Scan.Ignore, c.Scan.Allow} {
		for _, pattern := range group {
			if !doublestar.ValidatePattern(pattern) {
				return fmt.Errorf("invalid glob pattern: %q", pattern)
			}
		}
	}
	if c.Scan.Concurrency < 0 {
		return fmt.Errorf("scan.concurrency must not be negative")
	}
	if c.Diff.PageLimit < 0 {
		return fmt.Errorf("diff.page_limit must not be negative")
	}
	return nil
}

// BackendCommands returns the commands for b: its preset with any
// configured command replacing the preset's.
func (b BackendConfig) BackendCommands() command.Commands {
	cmds, _ := command.Preset(b.Preset)
	o := b.Commands
	override := func(dst *[]string, src []string) {
		if len(src) > 0 {
			*dst = src
		}
	}
	override(&cmds.Files, o.Files)
	override(&cmds.Packages, o.Packages)
	override(&cmds.Explicit, o.Explicit)
	override(&cmds.Owner, o.Owner)
	override(&cmds.Original, o.Original)
	override(&cmds.Install, o.Install)
	override(&cmds.Uninstall, o.Uninstall)
	override(&cmds.MarkDependency, o.MarkDependency)
	override(&cmds.MarkExplicit, o.MarkExplicit)
	override(&cmds.ListUnused, o.ListUnused)
	override(&cmds.RemoveUnused, o.RemoveUnused)
	override(&cmds.NoConfirm, o.NoConfirm)
	return cmds
}
