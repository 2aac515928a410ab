package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type testConfig struct {
	Name  string `yaml:"name"`
	Port  int    `yaml:"port"`
	Limit int    `yaml:"limit"`
}

func (c *testConfig) Validate() error {
	if c.Port <= 0 {
		return errors.New("port must be positive")
	}
	return nil
}

func writeFile(t *testing.T, data string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(p, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestLoad_ExpandsEnvAndKeepsDefaults(t *testing.T) {
	t.Setenv("TEST_CFG_NAME", "rules")
	p := writeFile(t, "name: ${TEST_CFG_NAME}\nport: ${TEST_CFG_PORT:-8081}\n")

	cfg := testConfig{Limit: 5}
	if err := Load(p, &cfg); err != nil {
		t.Fatal(err)
	}
	if cfg.Name != "rules" || cfg.Port != 8081 || cfg.Limit != 5 {
		t.Errorf("cfg = %+v", cfg)
	}
}

func TestLoad_UnknownKey(t *testing.T) {
	p := writeFile(t, "port: 1\nprot: 2\n")
	cfg := testConfig{}
	err := Load(p, &cfg)
	if err == nil || !strings.Contains(err.Error(), "failed to parse") {
		t.Fatalf("err = %v, want parse error", err)
	}
}

func TestLoad_ValidationError(t *testing.T) {
	p := writeFile(t, "name: x\n")
	cfg := testConfig{}
	err := Load(p, &cfg)
	if err == nil || !strings.Contains(err.Error(), "port must be positive") {
		t.Fatalf("err = %v", err)
	}
}

func TestLoad_EmptyFile(t *testing.T) {
	p := writeFile(t, "")
	cfg := testConfig{Port: 80}
	if err := Load(p, &cfg); err != nil {
		t.Fatalf("empty file should keep defaults: %v", err)
	}
}

func TestLoadOptional_MissingFile(t *testing.T) {
	cfg := testConfig{Port: 80}
	if err := LoadOptional(filepath.Join(t.TempDir(), "nope.yaml"), &cfg); err != nil {
		t.Fatal(err)
	}
	if err := Load(filepath.Join(t.TempDir(), "nope.yaml"), &cfg); err == nil {
		t.Error("Load should fail on a missing file")
	}
}

func TestExpand(t *testing.T) {
	t.Setenv("TEST_EXPAND_SET", "v")
	t.Setenv("TEST_EXPAND_EMPTY", "")
	tests := []struct {
		in, want string
	}{
		{"${TEST_EXPAND_SET}", "v"},
		{"$TEST_EXPAND_SET/x", "v/x"},
		{"${TEST_EXPAND_EMPTY:-d}", "d"},
		{"${TEST_EXPAND_UNSET_X:-a:b}", "a:b"},
		{"${TEST_EXPAND_UNSET_X}", ""},
	}
	for _, tt := range tests {
		if got := Expand(tt.in); got != tt.want {
			t.Errorf("Expand(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
