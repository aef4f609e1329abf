package config

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func TestSaveToWritesConfigAndCreatesParentDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	cfg := Default()
	cfg.Libraries["/github"] = LibraryConfig{
		Command: "npx",
		Args:    []string{"-y", "@modelcontextprotocol/server-github"},
	}

	if err := SaveTo(path, cfg); err != nil {
		t.Fatalf("SaveTo() error = %v", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	text := string(raw)
	if !strings.Contains(text, `[libraries."/github"]`) {
		t.Fatalf("saved config missing library section: %q", text)
	}
	if !strings.Contains(text, `command = "npx"`) {
		t.Fatalf("saved config missing command: %q", text)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat() error = %v", err)
	}
	if got := info.Mode().Perm(); got != 0o600 {
		t.Fatalf("config mode = %o, want 600", got)
	}
}

func TestSaveToRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	cfg := Default()
	cfg.Port = 9000
	cfg.AllowStop = false
	cfg.Libraries["/http"] = LibraryConfig{
		URL:         "https://example.com/mcp",
		Headers:     map[string]string{"X-Key": "v"},
		IdleTimeout: "2m",
	}
	if err := SaveTo(path, cfg); err != nil {
		t.Fatalf("SaveTo() error = %v", err)
	}
	got, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom() error = %v", err)
	}
	if !reflect.DeepEqual(got, cfg) {
		t.Fatalf("round trip = %+v, want %+v", got, cfg)
	}
}

func TestMarshalStartsWithHeader(t *testing.T) {
	data, err := Marshal(nil)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	if !strings.HasPrefix(string(data), "# rfremote configuration.") {
		t.Fatalf("Marshal() = %q, want header", data)
	}
	if !strings.Contains(string(data), "port = 8270") {
		t.Fatalf("Marshal() = %q, want default port", data)
	}
}
