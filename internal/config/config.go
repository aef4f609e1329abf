package config

import (
	"fmt"
	"os"
	"regexp"

	"github.com/BurntSushi/toml"

	"github.com/lydakis/rfremote/internal/paths"
)

var envVarRe = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// Load reads the default config file. A missing file yields Default().
func Load() (*Config, error) {
	return LoadFrom(paths.ConfigFile())
}

// LoadFrom reads and parses a config file at the given path. Keys absent
// from the file keep their defaults.
func LoadFrom(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	if cfg.Libraries == nil {
		cfg.Libraries = make(map[string]LibraryConfig)
	}
	expandConfigEnvVars(cfg)
	return cfg, nil
}

// ExampleConfigPath returns the default config file path (for help messages).
func ExampleConfigPath() string {
	return paths.ConfigFile()
}

func expandConfigEnvVars(cfg *Config) {
	if cfg == nil {
		return
	}
	cfg.Host = expandEnvVars(cfg.Host)
	for path, lib := range cfg.Libraries {
		cfg.Libraries[path] = expandLibraryEnvVars(lib)
	}
}

func expandLibraryEnvVars(lib LibraryConfig) LibraryConfig {
	lib.Command = expandEnvVars(lib.Command)
	lib.URL = expandEnvVars(lib.URL)

	for i := range lib.Args {
		lib.Args[i] = expandEnvVars(lib.Args[i])
	}
	for k, v := range lib.Env {
		lib.Env[k] = expandEnvVars(v)
	}
	for k, v := range lib.Headers {
		lib.Headers[k] = expandEnvVars(v)
	}
	return lib
}

// expandEnvVars replaces ${VAR_NAME} with the value of the environment variable.
func expandEnvVars(s string) string {
	return envVarRe.ReplaceAllStringFunc(s, func(match string) string {
		name := envVarRe.FindStringSubmatch(match)[1]
		if val, ok := os.LookupEnv(name); ok {
			return val
		}
		return match // leave unresolved vars as-is
	})
}
