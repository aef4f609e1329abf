package paths

import (
	"os"
	"path/filepath"
)

func homeDir() string {
	if h := os.Getenv("HOME"); h != "" {
		return h
	}
	h, _ := os.UserHomeDir()
	return h
}

func xdgDir(envVar, fallbackSuffix string) string {
	if v := os.Getenv(envVar); v != "" {
		return filepath.Join(v, "rfremote")
	}
	return filepath.Join(homeDir(), fallbackSuffix, "rfremote")
}

// ConfigDir returns the rfremote config directory ($XDG_CONFIG_HOME/rfremote).
func ConfigDir() string {
	return xdgDir("XDG_CONFIG_HOME", ".config")
}

// StateDir returns the rfremote state directory ($XDG_STATE_HOME/rfremote).
func StateDir() string {
	return xdgDir("XDG_STATE_HOME", filepath.Join(".local", "state"))
}

// ConfigFile returns the path to config.toml.
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.toml")
}

// PortFile returns the path where a running server records its bound port.
func PortFile() string {
	return filepath.Join(StateDir(), "port")
}

// EnsureDir creates a directory and parents if needed.
func EnsureDir(dir string) error {
	return os.MkdirAll(dir, 0700)
}
