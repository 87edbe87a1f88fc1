package template

import (
	"fmt"
	"strings"
)

// Preset names a built-in template.
type Preset string

const (
	OLMoE   Preset = "olmoe"
	ChatML  Preset = "chatml"
	Alpaca  Preset = "alpaca"
	Llama   Preset = "llama"
	Mistral Preset = "mistral"
)

// Default is used when no preset is configured.
const Default = OLMoE

// Presets lists the built-in presets.
func Presets() []Preset { return []Preset{OLMoE, ChatML, Alpaca, Llama, Mistral} }

// ParsePreset resolves a preset name case-insensitively. An empty name
// selects Default.
func ParsePreset(name string) (Preset, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	if n == "" {
		return Default, nil
	}
	for _, p := range Presets() {
		if string(p) == n {
			return p, nil
		}
	}
	return "", fmt.Errorf("unknown template preset %q", name)
}

// ForPreset returns the marker set of a built-in preset.
func ForPreset(p Preset) (Template, error) {
	switch p {
	case OLMoE:
		return Template{
			Preset:       p,
			Prefix:       "<|endoftext|>",
			System:       Affix{"<|system|>\n", "\n"},
			User:         Affix{"<|user|>\n", "\n"},
			Bot:          Affix{"<|assistant|>\n", "\n"},
			StopSequence: "<|endoftext|>",
		}, nil
	case ChatML:
		return Template{
			Preset:       p,
			System:       Affix{"<|im_start|>system\n", "<|im_end|>\n"},
			User:         Affix{"<|im_start|>user\n", "<|im_end|>\n"},
			Bot:          Affix{"<|im_start|>assistant\n", "<|im_end|>\n"},
			StopSequence: "<|im_end|>",
		}, nil
	case Alpaca:
		return Template{
			Preset:       p,
			System:       Affix{"", "\n\n"},
			User:         Affix{"### Instruction:\n", "\n\n"},
			Bot:          Affix{"### Response:\n", "\n\n"},
			StopSequence: "###",
		}, nil
	case Llama:
		return Template{
			Preset:         p,
			Prefix:         "[INST] ",
			System:         Affix{"<<SYS>>\n", "\n<</SYS>>\n\n"},
			User:           Affix{"", " [/INST]"},
			Bot:            Affix{" ", "</s><s>[INST] "},
			StopSequence:   "</s>",
			ShouldDropLast: true,
		}, nil
	case Mistral:
		return Template{
			Preset:       p,
			User:         Affix{"[INST] ", " [/INST]"},
			Bot:          Affix{"", "</s> "},
			StopSequence: "</s>",
		}, nil
	}
	return Template{}, fmt.Errorf("unknown template preset %q", p)
}

// Named parses name and returns its template.
func Named(name string) (Template, error) {
	p, err := ParsePreset(name)
	if err != nil {
		return Template{}, err
	}
	return ForPreset(p)
}
