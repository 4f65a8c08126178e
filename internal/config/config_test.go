package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_YAML(t *testing.T) {
	t.Setenv("HOSTCONF_TEST_ROOT", "/srv")
	path := writeConfig(t, "config.yaml", `
desired: desired.yaml
backends:
  - name: pacman
  - name: aur
    preset: pacman
    commands:
      install: [paru, -S, --needed]
apply:
  left_only: revert
  remove_unused: true
scan:
  roots: [/etc, $HOSTCONF_TEST_ROOT/app]
  ignore: ["/etc/**/*.pacnew"]
diff:
  tool: [delta]
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Desired != filepath.Join(filepath.Dir(path), "desired.yaml") {
		t.Errorf("Desired = %s, want path next to config", cfg.Desired)
	}
	if cfg.Apply.Paranoia != ParanoiaInteractive {
		t.Errorf("Paranoia default = %s", cfg.Apply.Paranoia)
	}
	if cfg.Apply.LeftOnly != LeftOnlyRevert || !cfg.Apply.RemoveUnused {
		t.Errorf("Apply = %+v", cfg.Apply)
	}
	if cfg.Scan.Roots[1] != "/srv/app" {
		t.Errorf("env not expanded in roots: %v", cfg.Scan.Roots)
	}
	if cfg.Diff.PageLimit != 40 {
		t.Errorf("PageLimit default = %d", cfg.Diff.PageLimit)
	}
	if len(cfg.Backends) != 2 || cfg.Backends[0].Preset != "pacman" {
		t.Fatalf("Backends = %+v", cfg.Backends)
	}

	cmds := cfg.Backends[1].BackendCommands()
	if strings.Join(cmds.Install, " ") != "paru -S --needed" {
		t.Errorf("install override = %v", cmds.Install)
	}
	if strings.Join(cmds.Files, " ") != "pacman -Ql" {
		t.Errorf("files should come from the preset, got %v", cmds.Files)
	}
}

func TestLoad_TOML(t *testing.T) {
	path := writeConfig(t, "config.toml", `
desired = "/etc/hostconf/desired.yaml"

[apply]
paranoia = "dry-run"

[[backends]]
name = "apt"

[log]
level = "debug"
format = "json"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Desired != "/etc/hostconf/desired.yaml" {
		t.Errorf("Desired = %s", cfg.Desired)
	}
	if cfg.Apply.Paranoia != ParanoiaDryRun {
		t.Errorf("Paranoia = %s", cfg.Apply.Paranoia)
	}
	if len(cfg.Backends) != 1 || cfg.Backends[0].Name != "apt" {
		t.Errorf("Backends = %+v", cfg.Backends)
	}
	if cfg.Log.Level != "debug" || cfg.Log.Format != "json" {
		t.Errorf("Log = %+v", cfg.Log)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{name: "paranoia", content: "apply:\n  paranoia: yolo\n", wantErr: "apply.paranoia"},
		{name: "left only", content: "apply:\n  left_only: delete\n", wantErr: "apply.left_only"},
		{name: "relative root", content: "scan:\n  roots: [etc]\n", wantErr: "scan.roots"},
		{name: "bad glob", content: "scan:\n  allow: [\"[a\"]\n", wantErr: "glob"},
		{name: "duplicate backend", content: "backends:\n  - name: apt\n  - name: apt\n", wantErr: "duplicate"},
		{name: "unknown backend", content: "backends:\n  - name: portage\n", wantErr: "no known preset"},
		{name: "bad yaml", content: "apply: [\n", wantErr: "parse"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, "config.yaml", tt.content))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoadOrDefault(t *testing.T) {
	cfg, err := LoadOrDefault(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("LoadOrDefault failed: %v", err)
	}
	if cfg.Apply.LeftOnly != LeftOnlyReport || cfg.Apply.Paranoia != ParanoiaInteractive {
		t.Errorf("defaults not applied: %+v", cfg.Apply)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config invalid: %v", err)
	}
}
