package config

import "time"

// Defaults applied before the config file is decoded.
const (
	DefaultHost        = "127.0.0.1"
	DefaultPort        = 8270
	DefaultMCPPath     = "/_mcp"
	DefaultLogLevel    = "info"
	DefaultLogFormat   = "console"
	DefaultIdleTimeout = 60 * time.Second
)

// Config is the top-level rfremote configuration.
type Config struct {
	Host      string `toml:"host"`
	Port      int    `toml:"port"`
	AllowStop bool   `toml:"allow_stop"`
	MCPPath   string `toml:"mcp_path"` // empty disables the MCP endpoint
	LogLevel  string `toml:"log_level"`
	LogFormat string `toml:"log_format"`

	Libraries map[string]LibraryConfig `toml:"libraries"`
}

// LibraryConfig describes a keyword library backed by an MCP server,
// keyed by the request path it is served at.
type LibraryConfig struct {
	// Stdio transport
	Command string            `toml:"command,omitempty"`
	Args    []string          `toml:"args,omitempty"`
	Env     map[string]string `toml:"env,omitempty"`

	// HTTP transport
	URL     string            `toml:"url,omitempty"`
	Headers map[string]string `toml:"headers,omitempty"`

	// IdleTimeout closes the connection after this long without calls.
	IdleTimeout string `toml:"idle_timeout,omitempty"`
}

// Default returns a config with every default set and no libraries.
func Default() *Config {
	return &Config{
		Host:      DefaultHost,
		Port:      DefaultPort,
		AllowStop: true,
		MCPPath:   DefaultMCPPath,
		LogLevel:  DefaultLogLevel,
		LogFormat: DefaultLogFormat,
		Libraries: make(map[string]LibraryConfig),
	}
}

// IsStdio returns true if the library uses stdio transport.
func (l LibraryConfig) IsStdio() bool {
	return l.Command != ""
}

// IsHTTP returns true if the library uses HTTP transport.
func (l LibraryConfig) IsHTTP() bool {
	return l.URL != ""
}

// IdleTimeoutDuration returns the configured idle timeout or the default.
// Invalid values are rejected by Validate.
func (l LibraryConfig) IdleTimeoutDuration() time.Duration {
	if l.IdleTimeout == "" {
		return DefaultIdleTimeout
	}
	d, err := time.ParseDuration(l.IdleTimeout)
	if err != nil || d <= 0 {
		return DefaultIdleTimeout
	}
	return d
}
