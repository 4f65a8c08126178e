package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestNew_JSON(t *testing.T) {
	var buf bytes.Buffer
	log, err := New(Options{Level: "debug", Format: FormatJSON, Out: &buf})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	log.Debug().Str("path", "/etc/foo").Msg("would apply")

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("output is not JSON: %v: %q", err, buf.String())
	}
	if rec["message"] != "would apply" || rec["path"] != "/etc/foo" || rec["app"] != "hostconf" {
		t.Errorf("unexpected record %v", rec)
	}
}

func TestNew_LevelFilters(t *testing.T) {
	var buf bytes.Buffer
	log, err := New(Options{Level: "WARN", Format: FormatJSON, Out: &buf})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	log.Info().Msg("hidden")
	log.Warn().Msg("shown")

	if strings.Contains(buf.String(), "hidden") || !strings.Contains(buf.String(), "shown") {
		t.Errorf("level filtering wrong: %q", buf.String())
	}
}

func TestNew_Console(t *testing.T) {
	var buf bytes.Buffer
	log, err := New(Options{Out: &buf, NoColor: true})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	log.Info().Str("backend", "pacman").Msg("collected")

	out := buf.String()
	if !strings.Contains(out, "collected") || !strings.Contains(out, "backend=pacman") {
		t.Errorf("console output = %q", out)
	}
}

func TestNew_Invalid(t *testing.T) {
	if _, err := New(Options{Level: "loud"}); err == nil {
		t.Error("expected error for bad level")
	}
	if _, err := New(Options{Format: "xml"}); err == nil {
		t.Error("expected error for bad format")
	}
}
