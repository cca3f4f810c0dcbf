package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"longbtc-go/internal/config"
)

func TestParseGrid(t *testing.T) {
	grid, err := parseGrid([]string{"momentum_threshold=-0.002, -0.004", "trailing_stop_pct=0.03"})
	if err != nil {
		t.Fatalf("parseGrid returned error: %v", err)
	}
	if got := grid["momentum_threshold"]; len(got) != 2 || got[1] != -0.004 {
		t.Fatalf("unexpected momentum axis %v", got)
	}
	if got := grid["trailing_stop_pct"]; len(got) != 1 || got[0] != 0.03 {
		t.Fatalf("unexpected trailing axis %v", got)
	}

	for _, bad := range [][]string{{"nothing"}, {"=1"}, {"a=x"}, {"a="}, {"a=1", "a=2"}} {
		if _, err := parseGrid(bad); err == nil {
			t.Fatalf("expected error for %v", bad)
		}
	}
}

func TestParseDate(t *testing.T) {
	got, err := parseDate("2024-03-01")
	if err != nil || !got.Equal(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("parseDate = %v, %v", got, err)
	}
	got, err = parseDate("2024-03-01T12:00:00+02:00")
	if err != nil || !got.Equal(time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)) {
		t.Fatalf("parseDate = %v, %v", got, err)
	}
	if _, err := parseDate("March 1st"); err == nil {
		t.Fatalf("expected error for free-form date")
	}
}

func TestLoadConfigFallsBackToDefaults(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "absent.yaml")
	cfg, err := loadConfig(missing, false)
	if err != nil {
		t.Fatalf("loadConfig returned error: %v", err)
	}
	if cfg.Strategy.Preset != config.Default().Strategy.Preset {
		t.Fatalf("expected defaults, got preset %s", cfg.Strategy.Preset)
	}
	if _, err := loadConfig(missing, true); err == nil {
		t.Fatalf("expected error for explicit missing config")
	}
}

func TestPresetsAndConfigInit(t *testing.T) {
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"presets", "--config", filepath.Join(t.TempDir(), "none.yaml")})
	// an explicit missing config is an error
	if err := rootCmd.Execute(); err == nil {
		t.Fatalf("expected missing config error")
	}

	path := filepath.Join(t.TempDir(), "longbtc.yaml")
	out.Reset()
	rootCmd.SetArgs([]string{"config", "init", path, "--config", path + ".missing", "--log-level", "error"})
	if err := rootCmd.Execute(); err == nil {
		t.Fatalf("expected error when --config points nowhere")
	}

	t.Setenv(config.EnvConfig, "")
	if err := config.Save(path, config.Default()); err != nil {
		t.Fatalf("Save returned error: %v", err)
	}
	out.Reset()
	rootCmd.SetArgs([]string{"presets", "--config", path, "--log-level", "error"})
	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("presets returned error: %v", err)
	}
	for _, name := range []string{"reversal", "filtered_reversal", "vol_forecast", "adaptive_vol"} {
		if !strings.Contains(out.String(), name) {
			t.Fatalf("presets output missing %s:\n%s", name, out.String())
		}
	}

	initPath := filepath.Join(t.TempDir(), "new.yaml")
	rootCmd.SetArgs([]string{"config", "init", initPath, "--config", path, "--log-level", "error"})
	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("config init returned error: %v", err)
	}
	if _, err := os.Stat(initPath); err != nil {
		t.Fatalf("config init did not write %s: %v", initPath, err)
	}
	if _, err := config.Load(initPath); err != nil {
		t.Fatalf("written config does not load: %v", err)
	}
}
