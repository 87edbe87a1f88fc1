package session

import (
	"fmt"

	"chatd/internal/template"
)

// Defaults applied when the corresponding Config fields are unset.
const (
	DefaultTopK          = 40
	DefaultTopP          = 0.95
	DefaultTemperature   = 0.8
	DefaultHistoryLimit  = 8
	DefaultMaxTokenCount = 2048
	DefaultStreamBuffer  = 16
	DefaultFallbackText  = "tl;dr"
)

// Config holds the tunables fixed at session construction.
type Config struct {
	Template template.Template
	// StopSequence overrides the template's stop marker when non-empty.
	StopSequence string

	TopK        int
	TopP        float32
	Temperature float32
	// Seed 0 picks a random seed.
	Seed uint32

	// HistoryLimit is the maximum number of turns kept.
	HistoryLimit int
	// MaxTokenCount caps the context window; the model's trained window
	// applies when it is smaller or when the cap is unset.
	MaxTokenCount int
	BatchSize     int
	Threads       int

	// KeepPartial appends the trimmed partial answer of a stopped turn to
	// the history. Superseded turns are always discarded.
	KeepPartial bool
	// FallbackText is emitted by the default recovery hook when the input
	// cannot fit the window.
	FallbackText string
	// StreamBuffer is the capacity of the fragment channel.
	StreamBuffer int
}

// DefaultConfig returns a config using the default template preset.
func DefaultConfig() Config {
	tpl, _ := template.ForPreset(template.Default)
	c := Config{Template: tpl}
	c.applyDefaults()
	return c
}

func (c *Config) applyDefaults() {
	if c.Template.Preset == "" {
		c.Template, _ = template.ForPreset(template.Default)
	}
	if c.TopK <= 0 {
		c.TopK = DefaultTopK
	}
	if c.TopP <= 0 {
		c.TopP = DefaultTopP
	}
	if c.Temperature <= 0 {
		c.Temperature = DefaultTemperature
	}
	if c.HistoryLimit <= 0 {
		c.HistoryLimit = DefaultHistoryLimit
	}
	if c.MaxTokenCount <= 0 {
		c.MaxTokenCount = DefaultMaxTokenCount
	}
	if c.StreamBuffer <= 0 {
		c.StreamBuffer = DefaultStreamBuffer
	}
	if c.FallbackText == "" {
		c.FallbackText = DefaultFallbackText
	}
}

func (c Config) validate() error {
	if c.TopP > 1 {
		return fmt.Errorf("top_p %v out of range (0,1]", c.TopP)
	}
	if c.HistoryLimit < 2 {
		return fmt.Errorf("history limit %d must hold at least one exchange", c.HistoryLimit)
	}
	if c.BatchSize < 0 || c.Threads < 0 {
		return fmt.Errorf("batch size and threads must not be negative")
	}
	return nil
}

func (c Config) stopSequence() string {
	if c.StopSequence != "" {
		return c.StopSequence
	}
	return c.Template.StopSequence
}
