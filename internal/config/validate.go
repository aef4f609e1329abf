package config

import (
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/lydakis/rfremote/pkg/registry"
)

// Validate checks configuration invariants and returns actionable errors.
func Validate(cfg *Config) error {
	if cfg == nil {
		return nil
	}

	var errs []error
	if strings.TrimSpace(cfg.Host) == "" {
		errs = append(errs, errors.New("host: must not be empty"))
	}
	if cfg.Port < 0 || cfg.Port > 65535 {
		errs = append(errs, fmt.Errorf("port: must be between 0 and 65535, got %d", cfg.Port))
	}
	if cfg.MCPPath != "" {
		if _, err := registry.Clean(cfg.MCPPath); err != nil {
			errs = append(errs, fmt.Errorf("mcp_path: %w", err))
		}
	}
	if cfg.LogLevel != "" {
		if _, err := zerolog.ParseLevel(strings.ToLower(cfg.LogLevel)); err != nil {
			errs = append(errs, fmt.Errorf("log_level: unknown level %q", cfg.LogLevel))
		}
	}
	switch strings.ToLower(cfg.LogFormat) {
	case "", "console", "json":
	default:
		errs = append(errs, fmt.Errorf("log_format: must be console or json, got %q", cfg.LogFormat))
	}

	paths := make([]string, 0, len(cfg.Libraries))
	for path := range cfg.Libraries {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	seen := make(map[string]string, len(paths))
	for _, path := range paths {
		errs = append(errs, validateLibrary(path, cfg.Libraries[path])...)
		clean, err := registry.Clean(path)
		if err != nil {
			continue
		}
		if other, ok := seen[clean]; ok {
			errs = append(errs, fmt.Errorf("libraries.%q: same path as libraries.%q", path, other))
		}
		seen[clean] = path
		if cfg.MCPPath != "" && clean == strings.TrimSuffix(cfg.MCPPath, "/") {
			errs = append(errs, fmt.Errorf("libraries.%q: path is used by mcp_path", path))
		}
	}

	return errors.Join(errs...)
}

func validateLibrary(path string, lib LibraryConfig) []error {
	var errs []error

	if _, err := registry.Clean(path); err != nil {
		errs = append(errs, fmt.Errorf("libraries.%q: %w", path, err))
	}

	hasCommand := strings.TrimSpace(lib.Command) != ""
	hasURL := strings.TrimSpace(lib.URL) != ""

	switch {
	case hasCommand && hasURL:
		errs = append(errs, fmt.Errorf("libraries.%q: configure either command (stdio) or url (http), not both", path))
	case !hasCommand && !hasURL:
		errs = append(errs, fmt.Errorf("libraries.%q: missing transport, set command (stdio) or url (http)", path))
	}

	if hasURL {
		if _, err := url.ParseRequestURI(lib.URL); err != nil {
			errs = append(errs, fmt.Errorf("libraries.%q.url: invalid URL %q: %w", path, lib.URL, err))
		}
	}

	if lib.IdleTimeout != "" {
		d, err := time.ParseDuration(lib.IdleTimeout)
		if err != nil {
			errs = append(errs, fmt.Errorf("libraries.%q.idle_timeout: invalid duration %q: %w", path, lib.IdleTimeout, err))
		} else if d <= 0 {
			errs = append(errs, fmt.Errorf("libraries.%q.idle_timeout: must be > 0, got %q", path, lib.IdleTimeout))
		}
	}

	return errs
}
