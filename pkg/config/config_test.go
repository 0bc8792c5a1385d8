package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type sample struct {
	Name  string `yaml:"name"`
	Port  int    `yaml:"port"`
	Level string `yaml:"level"`
}

func (s *sample) Validate() error {
	if s.Port <= 0 {
		return errors.New("port must be positive")
	}
	return nil
}

func writeFile(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestLoadExpandsEnvironment(t *testing.T) {
	t.Setenv("SCRIBE_CFG_NAME", "scribe")
	t.Setenv("SCRIBE_CFG_EMPTY", "")
	p := writeFile(t, "name: ${SCRIBE_CFG_NAME}\nport: ${SCRIBE_CFG_PORT:-8080}\nlevel: ${SCRIBE_CFG_EMPTY:-info}\n")

	var s sample
	if err := Load(p, &s); err != nil {
		t.Fatal(err)
	}
	if s.Name != "scribe" || s.Port != 8080 || s.Level != "info" {
		t.Errorf("got %+v", s)
	}
}

func TestLoadKeepsDefaults(t *testing.T) {
	p := writeFile(t, "name: x\n")
	s := sample{Port: 9000, Level: "debug"}
	if err := Load(p, &s); err != nil {
		t.Fatal(err)
	}
	if s.Port != 9000 || s.Level != "debug" || s.Name != "x" {
		t.Errorf("got %+v", s)
	}
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	p := writeFile(t, "name: x\nport: 1\nprot: 2\n")
	var s sample
	if err := Load(p, &s); err == nil {
		t.Fatal("unknown key accepted")
	}
}

func TestLoadRunsValidator(t *testing.T) {
	p := writeFile(t, "name: x\n")
	var s sample
	err := Load(p, &s)
	if err == nil || !strings.Contains(err.Error(), "port must be positive") {
		t.Fatalf("err = %v", err)
	}
}

func TestLoadEmptyFileValidates(t *testing.T) {
	p := writeFile(t, "")
	s := sample{Port: 1}
	if err := Load(p, &s); err != nil {
		t.Fatal(err)
	}
}

func TestLoadWithDefaults(t *testing.T) {
	fallback := writeFile(t, "port: 7\n")
	var s sample
	if err := LoadWithDefaults(filepath.Join(t.TempDir(), "missing.yaml"), fallback, &s); err != nil {
		t.Fatal(err)
	}
	if s.Port != 7 {
		t.Errorf("port = %d", s.Port)
	}
	if err := LoadWithDefaults(filepath.Join(t.TempDir(), "missing.yaml"), "", &s); err == nil {
		t.Error("missing file without fallback accepted")
	}
}

func TestMustLoadPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("MustLoad did not panic")
		}
	}()
	var s sample
	MustLoad(filepath.Join(t.TempDir(), "missing.yaml"), &s)
}
