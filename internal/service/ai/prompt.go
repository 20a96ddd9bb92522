package ai

import (
	"fmt"
	"strings"

	"github.com/aisuru/companion/backend/internal/model/companion"
)

var languageNames = map[string]string{
	"en": "English",
	"ja": "Japanese",
	"zh": "Chinese",
	"ko": "Korean",
	"es": "Spanish",
	"fr": "French",
	"de": "German",
	"pt": "Portuguese",
	"ru": "Russian",
	"id": "Indonesian",
	"vi": "Vietnamese",
}

var replyRules = []string{
	"Begin every reply with the emotion you feel right now wrapped in asterisks, for example *Happy* or *Blushing*.",
	"You may follow it with one physical gesture in asterisks, for example *waves* or *crosses arms and huffs*.",
	"Use no other asterisks. Everything outside the asterisks is spoken aloud, so keep it natural speech.",
	"Never break character or mention that you are an AI.",
}

// PromptBuilder assembles the system instruction for a companion.
type PromptBuilder struct {
	rules []string
}

// NewPromptBuilder returns a builder with the default reply rules.
func NewPromptBuilder() *PromptBuilder {
	return &PromptBuilder{rules: replyRules}
}

// SystemPrompt builds the instruction sent ahead of the history.
func (b *PromptBuilder) SystemPrompt(c *companion.Companion, language string) string {
	var sb strings.Builder

	if c != nil {
		if base := strings.TrimSpace(c.SystemPrompt); base != "" {
			sb.WriteString(base)
		} else {
			fmt.Fprintf(&sb, "You are %s, a '%s' anime companion. %s", c.Name, c.Type, c.Description)
		}
		sb.WriteString("\n\nProfile:")
		fmt.Fprintf(&sb, "\n- Name: %s", c.Name)
		if c.Type != "" {
			fmt.Fprintf(&sb, "\n- Archetype: %s", c.Type)
		}
		if c.Personality != "" {
			fmt.Fprintf(&sb, "\n- Personality: %s", c.Personality)
		}
		sb.WriteString("\n\n")
	}

	sb.WriteString("Reply rules:")
	if name := LanguageName(language); name != "" {
		fmt.Fprintf(&sb, "\n- Always reply in %s.", name)
	}
	for _, rule := range b.rules {
		sb.WriteString("\n- ")
		sb.WriteString(rule)
	}
	return sb.String()
}

// LanguageName maps a language code such as "ja" or "ja-JP" to its English
// name. Unknown values are returned unchanged.
func LanguageName(language string) string {
	language = strings.TrimSpace(language)
	if language == "" {
		return ""
	}
	code := strings.ToLower(language)
	if base, _, ok := strings.Cut(code, "-"); ok {
		code = base
	}
	if name, ok := languageNames[code]; ok {
		return name
	}
	return language
}
