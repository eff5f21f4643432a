// Package config provides configuration helpers and TOML parsing.
package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// FileConfig represents the TOML configuration file.
type FileConfig struct {
	Trainer   TrainerConfig   `toml:"trainer"`
	Selection SelectionConfig `toml:"selection"`
	Engine    EngineConfig    `toml:"engine"`
	Sparring  SparringConfig  `toml:"sparring"`
	Store     StoreConfig     `toml:"store"`
	Log       LogConfig       `toml:"log"`
}

// TrainerConfig maps drill settings.
type TrainerConfig struct {
	Mode     *string `toml:"mode"`
	Category *string `toml:"category"`
	Catalog  *string `toml:"catalog"`
}

// SelectionConfig maps challenge-mode tuning.
type SelectionConfig struct {
	RepeatDamping *float64 `toml:"repeat-damping"`
	HintPenalty   *float64 `toml:"hint-penalty"`
}

// EngineConfig maps analysis engine settings.
type EngineConfig struct {
	Path             *string `toml:"path"`
	Depth            *int    `toml:"depth"`
	EvalLines        *int    `toml:"eval-lines"`
	StreamLines      *int    `toml:"stream-lines"`
	StreamMoveTimeMs *int    `toml:"stream-movetime-ms"`
	ThrottleMs       *int    `toml:"throttle-ms"`
	EvalTimeoutMs    *int    `toml:"eval-timeout-ms"`
	InitTimeoutMs    *int    `toml:"init-timeout-ms"`
}

// SparringConfig maps open-drill settings.
type SparringConfig struct {
	Moves       *int    `toml:"moves"`
	StabilizeMs *int    `toml:"stabilize-ms"`
	Player      *string `toml:"player"`
}

// StoreConfig maps persistence settings.
type StoreConfig struct {
	Backend *string `toml:"backend"`
	Path    *string `toml:"path"`
}

// LogConfig maps diagnostics settings.
type LogConfig struct {
	Level *string `toml:"level"`
	File  *string `toml:"file"`
}

// LoadConfig reads a TOML config from the given path. Missing file is not an error.
func LoadConfig(path string) (FileConfig, error) {
	if path == "" {
		return FileConfig{}, fmt.Errorf("config path is empty")
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return FileConfig{}, nil
		}
		return FileConfig{}, fmt.Errorf("failed to stat config: %w", err)
	}
	var cfg FileConfig
	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return FileConfig{}, fmt.Errorf("failed to decode config: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return FileConfig{}, fmt.Errorf("unknown config key %q", undecoded[0].String())
	}
	return cfg, nil
}
