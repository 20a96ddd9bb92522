package ai

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/aisuru/companion/backend/internal/model/companion"
)

func TestSystemPromptIncludesCompanionAndRules(t *testing.T) {
	c := companion.Seed()[0]
	prompt := NewPromptBuilder().SystemPrompt(&c, "ja")

	assert.Contains(t, prompt, c.SystemPrompt)
	assert.Contains(t, prompt, "- Name: Yuki")
	assert.Contains(t, prompt, "- Archetype: Dandere")
	assert.Contains(t, prompt, "Always reply in Japanese.")
	assert.Contains(t, prompt, "*Happy*")
}

func TestSystemPromptFallsBackWithoutInstruction(t *testing.T) {
	c := companion.Companion{Name: "Mio", Type: "Kuudere", Description: "Calm and collected."}
	prompt := NewPromptBuilder().SystemPrompt(&c, "")

	assert.Contains(t, prompt, "You are Mio, a 'Kuudere' anime companion. Calm and collected.")
	assert.NotContains(t, prompt, "Always reply in")
}

func TestLanguageName(t *testing.T) {
	cases := map[string]string{
		"":          "",
		"en":        "English",
		"ja-JP":     "Japanese",
		" ZH ":      "Chinese",
		"Klingon":   "Klingon",
		"pt-BR":     "Portuguese",
		"esperanto": "esperanto",
	}
	for in, want := range cases {
		assert.Equal(t, want, LanguageName(in), "input %q", in)
	}
}
