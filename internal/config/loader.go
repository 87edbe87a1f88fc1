package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

// Config holds runtime parameters for the daemon and the chat REPL.
// Zero values mean "unspecified" and are replaced by ApplyDefaults.
type Config struct {
	Addr      string `json:"addr" yaml:"addr" toml:"addr"`
	ModelsDir string `json:"models_dir" yaml:"models_dir" toml:"models_dir"`
	Model     string `json:"model" yaml:"model" toml:"model"`

	Template     string `json:"template" yaml:"template" toml:"template"`
	SystemPrompt string `json:"system_prompt" yaml:"system_prompt" toml:"system_prompt"`
	StopSequence string `json:"stop_sequence" yaml:"stop_sequence" toml:"stop_sequence"`

	TopK         int     `json:"top_k" yaml:"top_k" toml:"top_k"`
	TopP         float64 `json:"top_p" yaml:"top_p" toml:"top_p"`
	Temperature  float64 `json:"temperature" yaml:"temperature" toml:"temperature"`
	Seed         uint32  `json:"seed" yaml:"seed" toml:"seed"`
	HistoryLimit int     `json:"history_limit" yaml:"history_limit" toml:"history_limit"`
	MaxTokens    int     `json:"max_tokens" yaml:"max_tokens" toml:"max_tokens"`
	BatchSize    int     `json:"batch_size" yaml:"batch_size" toml:"batch_size"`
	Threads      int     `json:"threads" yaml:"threads" toml:"threads"`
	GPULayers    int     `json:"gpu_layers" yaml:"gpu_layers" toml:"gpu_layers"`
	KeepPartial  bool    `json:"keep_partial" yaml:"keep_partial" toml:"keep_partial"`
	FallbackText string  `json:"fallback_text" yaml:"fallback_text" toml:"fallback_text"`
	StreamBuffer int     `json:"stream_buffer" yaml:"stream_buffer" toml:"stream_buffer"`

	DBPath              string `json:"db_path" yaml:"db_path" toml:"db_path"`
	SnapshotCompression string `json:"snapshot_compression" yaml:"snapshot_compression" toml:"snapshot_compression"`

	LogLevel              string   `json:"log_level" yaml:"log_level" toml:"log_level"`
	MaxBodyBytes          int64    `json:"max_body_bytes" yaml:"max_body_bytes" toml:"max_body_bytes"`
	RespondTimeoutSeconds int      `json:"respond_timeout_seconds" yaml:"respond_timeout_seconds" toml:"respond_timeout_seconds"`
	RespondRatePerSec     float64  `json:"respond_rate_per_sec" yaml:"respond_rate_per_sec" toml:"respond_rate_per_sec"`
	RespondBurst          int      `json:"respond_burst" yaml:"respond_burst" toml:"respond_burst"`
	CORSEnabled           bool     `json:"cors_enabled" yaml:"cors_enabled" toml:"cors_enabled"`
	CORSOrigins           []string `json:"cors_origins" yaml:"cors_origins" toml:"cors_origins"`
}

// Load reads a configuration file based on its extension.
// Supports: .yaml/.yml, .json, .jsonc, .toml
func Load(path string) (Config, error) {
	var cfg Config
	if path == "" {
		return cfg, fmt.Errorf("empty config path")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".json", ".jsonc":
		// comments and trailing commas are tolerated in both
		if err := json.Unmarshal(jsonc.ToJSON(b), &cfg); err != nil {
			return cfg, err
		}
	case ".toml":
		if err := toml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	default:
		return cfg, fmt.Errorf("unsupported config extension: %s", ext)
	}
	return cfg, nil
}
