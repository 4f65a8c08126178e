package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/fatih/color"
	"github.com/rs/zerolog"

	"github.com/danieljhkim/hostconf/internal/apply"
	"github.com/danieljhkim/hostconf/internal/backend"
	"github.com/danieljhkim/hostconf/internal/backend/command"
	"github.com/danieljhkim/hostconf/internal/clock"
	"github.com/danieljhkim/hostconf/internal/config"
	"github.com/danieljhkim/hostconf/internal/confirm"
	"github.com/danieljhkim/hostconf/internal/desired"
	"github.com/danieljhkim/hostconf/internal/engine"
	"github.com/danieljhkim/hostconf/internal/fsops"
	"github.com/danieljhkim/hostconf/internal/hash"
	"github.com/danieljhkim/hostconf/internal/ids"
	"github.com/danieljhkim/hostconf/internal/logging"
	"github.com/danieljhkim/hostconf/internal/state"
)

// session holds everything a command needs, built from the config file and
// the global flags.
type session struct {
	cfg      *config.Config
	paths    *config.Paths
	log      zerolog.Logger
	fs       fsops.FS
	resolver ids.Resolver
	backends *backend.Registry
	engine   *engine.Engine
}

// newSession loads the configuration and creates an engine with real
// implementations of all dependencies.
func newSession() (*session, error) {
	paths, err := config.DefaultPaths()
	if err != nil {
		return nil, fmt.Errorf("failed to get config paths: %w", err)
	}
	if err := paths.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("failed to ensure directories: %w", err)
	}

	path := configPath
	if path == "" {
		path = paths.Config
	}
	cfg, err := config.LoadOrDefault(path)
	if err != nil {
		return nil, err
	}

	log, err := newLogger(cfg)
	if err != nil {
		return nil, err
	}

	backends, err := newRegistry(cfg.Backends)
	if err != nil {
		return nil, err
	}

	fsys := fsops.NewRealFS()
	resolver := ids.NewResolver()
	runs := state.NewFileRunStore(fsys, paths.Runs)
	eng := engine.New(backends, fsys, hash.NewSHA256Hasher(), resolver, clock.RealClock{}, runs, engine.Options{
		Ignore:      cfg.Scan.Ignore,
		Allow:       cfg.Scan.Allow,
		Concurrency: cfg.Scan.Concurrency,
	}, log)

	return &session{
		cfg:      cfg,
		paths:    paths,
		log:      log,
		fs:       fsys,
		resolver: resolver,
		backends: backends,
		engine:   eng,
	}, nil
}

// newLogger builds the logger, letting the flags override the config.
func newLogger(cfg *config.Config) (zerolog.Logger, error) {
	level, format := cfg.Log.Level, cfg.Log.Format
	if logLevel != "" {
		level = logLevel
	}
	if logFormat != "" {
		format = logFormat
	}
	return logging.New(logging.Options{
		Level:   level,
		Format:  logging.Format(format),
		NoColor: color.NoColor,
	})
}

// newRegistry registers one command backend per configured backend.
func newRegistry(cfgs []config.BackendConfig) (*backend.Registry, error) {
	reg := backend.NewRegistry()
	for _, b := range cfgs {
		if err := reg.Register(command.New(b.Name, b.BackendCommands(), command.ExecRunner{})); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

// loadDesired reads the desired state file. A missing file is an error: an
// empty desired state would plan the removal of everything.
func (s *session) loadDesired() (*desired.State, error) {
	path := s.cfg.Desired
	if path == "" {
		path = s.paths.Desired
	}
	want, err := desired.Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w (create it or set desired in the config)", err)
	}
	return want, err
}

// newApplicator returns the applicator for a paranoia level.
func (s *session) newApplicator(paranoia config.Paranoia, removeUnused bool) (apply.Applicator, error) {
	inProcess := func() *apply.InProcess {
		return apply.NewInProcess(s.fs, s.backends, s.resolver, apply.Options{
			RemoveUnused: removeUnused,
		}, s.log)
	}

	switch paranoia {
	case config.ParanoiaDryRun:
		return apply.NewNoop(s.log), nil
	case config.ParanoiaSilent:
		return inProcess(), nil
	case config.ParanoiaInteractive:
		term, err := confirm.OpenTTY()
		if err != nil {
			return nil, fmt.Errorf("interactive apply needs a terminal (use --paranoia silent or dry-run): %w", err)
		}
		pager := apply.Pager{Command: s.cfg.Diff.Pager, Limit: s.cfg.Diff.PageLimit}
		differ := apply.NewDiffer(s.fs, s.cfg.Diff.Tool)
		return apply.NewInteractive(inProcess(), term, differ, pager, s.log), nil
	}
	return nil, fmt.Errorf("unknown paranoia level %q: must be silent, interactive, or dry-run", paranoia)
}

// formatError formats an error for display.
func formatError(err error) string {
	return errorColor.Sprintf("Error: %v", err)
}

// outputJSON writes a value as indented JSON to stdout.
func outputJSON(v any) error {
	return writeJSON(os.Stdout, v)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
