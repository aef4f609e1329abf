package config

import (
	"bytes"
	"fmt"

	"github.com/BurntSushi/toml"

	"github.com/lydakis/rfremote/internal/paths"
)

const fileHeader = `# rfremote configuration.
# Libraries are keyed by the path they are served at, e.g.
#
#   [libraries."/github"]
#   command = "npx"
#   args = ["-y", "@modelcontextprotocol/server-github"]

`

// Marshal renders cfg as a commented TOML document.
func Marshal(cfg *Config) ([]byte, error) {
	if cfg == nil {
		cfg = Default()
	}
	if cfg.Libraries == nil {
		cfg.Libraries = make(map[string]LibraryConfig)
	}
	var buf bytes.Buffer
	buf.WriteString(fileHeader)
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return nil, fmt.Errorf("encoding config: %w", err)
	}
	return buf.Bytes(), nil
}

// SaveTo writes cfg to path atomically with owner-only permissions.
func SaveTo(path string, cfg *Config) error {
	data, err := Marshal(cfg)
	if err != nil {
		return err
	}
	if err := paths.WriteFileAtomic(path, data, 0o600); err != nil {
		return fmt.Errorf("saving config: %w", err)
	}
	return nil
}
