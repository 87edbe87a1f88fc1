package config

import (
	"fmt"
	"strings"

	"chatd/internal/session"
	"chatd/internal/state"
	"chatd/internal/template"
)

// Default values for the daemon-level settings. Sampling and window defaults
// come from the session package.
const (
	DefaultAddr                  = ":8080"
	DefaultModelsDir             = "~/models/llm"
	DefaultDBPath                = "~/.local/share/chatd/chatd.db"
	DefaultLogLevel              = "info"
	DefaultMaxBodyBytes          = 1 << 20
	DefaultRespondTimeoutSeconds = 300
	DefaultRespondRatePerSec     = 2
	DefaultRespondBurst          = 4
)

// Defaults returns a fully populated configuration.
func Defaults() Config {
	var c Config
	c.ApplyDefaults()
	return c
}

// ApplyDefaults fills every unset field.
func (c *Config) ApplyDefaults() {
	if c.Addr == "" {
		c.Addr = DefaultAddr
	}
	if c.ModelsDir == "" {
		c.ModelsDir = DefaultModelsDir
	}
	if c.Template == "" {
		c.Template = string(template.Default)
	}
	if c.TopK <= 0 {
		c.TopK = session.DefaultTopK
	}
	if c.TopP <= 0 {
		c.TopP = session.DefaultTopP
	}
	if c.Temperature <= 0 {
		c.Temperature = session.DefaultTemperature
	}
	if c.HistoryLimit <= 0 {
		c.HistoryLimit = session.DefaultHistoryLimit
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = session.DefaultMaxTokenCount
	}
	if c.FallbackText == "" {
		c.FallbackText = session.DefaultFallbackText
	}
	if c.StreamBuffer <= 0 {
		c.StreamBuffer = session.DefaultStreamBuffer
	}
	if c.DBPath == "" {
		c.DBPath = DefaultDBPath
	}
	if c.SnapshotCompression == "" {
		c.SnapshotCompression = string(state.CompressionZstd)
	}
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
	if c.MaxBodyBytes <= 0 {
		c.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if c.RespondTimeoutSeconds <= 0 {
		c.RespondTimeoutSeconds = DefaultRespondTimeoutSeconds
	}
	if c.RespondRatePerSec <= 0 {
		c.RespondRatePerSec = DefaultRespondRatePerSec
	}
	if c.RespondBurst <= 0 {
		c.RespondBurst = DefaultRespondBurst
	}
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	if _, err := template.ParsePreset(c.Template); err != nil {
		return err
	}
	if _, err := state.ParseCompression(c.SnapshotCompression); err != nil {
		return err
	}
	if c.TopP < 0 || c.TopP > 1 {
		return fmt.Errorf("top_p %v out of range (0,1]", c.TopP)
	}
	if c.HistoryLimit != 0 && c.HistoryLimit < 2 {
		return fmt.Errorf("history_limit %d must hold at least one exchange", c.HistoryLimit)
	}
	if c.BatchSize < 0 || c.Threads < 0 || c.GPULayers < 0 {
		return fmt.Errorf("batch_size, threads and gpu_layers must not be negative")
	}
	switch strings.ToLower(c.LogLevel) {
	case "", "trace", "debug", "info", "warn", "error", "off":
	default:
		return fmt.Errorf("unknown log_level %q", c.LogLevel)
	}
	return nil
}

// SessionConfig builds the session tunables, resolving the template preset
// and attaching the system prompt.
func (c Config) SessionConfig() (session.Config, error) {
	p, err := template.ParsePreset(c.Template)
	if err != nil {
		return session.Config{}, err
	}
	tpl, err := template.ForPreset(p)
	if err != nil {
		return session.Config{}, err
	}
	return session.Config{
		Template:      tpl.WithSystemPrompt(c.SystemPrompt),
		StopSequence:  c.StopSequence,
		TopK:          c.TopK,
		TopP:          float32(c.TopP),
		Temperature:   float32(c.Temperature),
		Seed:          c.Seed,
		HistoryLimit:  c.HistoryLimit,
		MaxTokenCount: c.MaxTokens,
		BatchSize:     c.BatchSize,
		Threads:       c.Threads,
		KeepPartial:   c.KeepPartial,
		FallbackText:  c.FallbackText,
		StreamBuffer:  c.StreamBuffer,
	}, nil
}

// Compression resolves SnapshotCompression.
func (c Config) Compression() (state.Compression, error) {
	return state.ParseCompression(c.SnapshotCompression)
}
