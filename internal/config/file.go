package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadFile overlays a YAML config file onto cfg. Keys present in the
// file win over whatever cfg already holds; an explicitly supplied file
// therefore beats ambient environment values. A missing file is not an
// error when optional is true.
func LoadFile(cfg *Config, path string, optional bool) error {
	data, err := os.ReadFile(path) // #nosec G304 -- operator-supplied path
	if err != nil {
		if optional && os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}
