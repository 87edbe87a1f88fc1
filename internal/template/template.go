// Package template renders conversations into model prompts.
package template

import (
	"strings"
	"unicode/utf8"

	"chatd/pkg/types"
)

// Affix is a role-specific pair of markers around content.
type Affix struct {
	Prefix string
	Suffix string
}

// Wrap surrounds content with the affix markers.
func (a Affix) Wrap(content string) string { return a.Prefix + content + a.Suffix }

// Template describes how a model expects a conversation to be laid out.
type Template struct {
	Preset       Preset
	Prefix       string
	System       Affix
	User         Affix
	Bot          Affix
	StopSequence string
	SystemPrompt string
	// ShouldDropLast omits the last character of Bot.Prefix before generation.
	ShouldDropLast bool
}

// WithSystemPrompt returns a copy using prompt as the system prompt.
func (t Template) WithSystemPrompt(prompt string) Template {
	t.SystemPrompt = prompt
	return t
}

// Render produces the text to feed the engine. With resident set the engine
// already holds the earlier conversation, so only the new turn is emitted.
func (t Template) Render(history []types.Turn, input string, resident bool) string {
	var b strings.Builder
	if !resident {
		b.WriteString(t.Prefix)
		if t.SystemPrompt != "" {
			b.WriteString(t.System.Wrap(t.SystemPrompt))
		}
		for _, turn := range history {
			b.WriteString(t.affix(turn.Role).Wrap(turn.Content))
		}
	}
	b.WriteString(t.User.Wrap(input))
	b.WriteString(t.botPrefix())
	return b.String()
}

// Closing is the text that ends an assistant turn in a full render.
func (t Template) Closing() string { return t.Bot.Suffix }

// Resumable reports whether a generated turn followed by Closing reproduces the
// full render of that turn. It does not when the bot prefix is shortened for
// generation, since the full render keeps the dropped character.
func (t Template) Resumable() bool { return !t.ShouldDropLast || t.Bot.Prefix == "" }

func (t Template) botPrefix() string {
	if t.ShouldDropLast && t.Bot.Prefix != "" {
		_, size := utf8.DecodeLastRuneInString(t.Bot.Prefix)
		return t.Bot.Prefix[:len(t.Bot.Prefix)-size]
	}
	return t.Bot.Prefix
}

func (t Template) affix(r types.Role) Affix {
	if r == types.RoleAssistant {
		return t.Bot
	}
	return t.User
}
