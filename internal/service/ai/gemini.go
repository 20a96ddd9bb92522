package ai

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"google.golang.org/genai"

	"github.com/aisuru/companion/backend/internal/model/chat"
)

// GeminiGenerator generates replies with the Gemini API.
type GeminiGenerator struct {
	client  *genai.Client
	model   string
	params  Params
	prompts *PromptBuilder
}

// NewGeminiGenerator wraps an existing client.
func NewGeminiGenerator(client *genai.Client, model string, params Params) *GeminiGenerator {
	return &GeminiGenerator{
		client:  client,
		model:   model,
		params:  params,
		prompts: NewPromptBuilder(),
	}
}

// Generate implements Generator.
func (g *GeminiGenerator) Generate(ctx context.Context, req GenerateRequest) (string, error) {
	resp, err := g.client.Models.GenerateContent(ctx, g.model, g.contents(req), g.config(req))
	if err != nil {
		return "", errors.Wrap(err, "gemini generate content")
	}

	text := responseText(resp)
	log.Debug().
		Str("component", "ai").
		Str("provider", "gemini").
		Int("length", len(text)).
		Msg("generated reply")
	return text, nil
}

func (g *GeminiGenerator) config(req GenerateRequest) *genai.GenerateContentConfig {
	temperature, topP, topK := g.params.Temperature, g.params.TopP, g.params.TopK
	return &genai.GenerateContentConfig{
		SystemInstruction: &genai.Content{
			Parts: []*genai.Part{genai.NewPartFromText(g.prompts.SystemPrompt(req.Companion, req.Language))},
		},
		Temperature: &temperature,
		TopP:        &topP,
		TopK:        &topK,
	}
}

func (g *GeminiGenerator) contents(req GenerateRequest) []*genai.Content {
	var (
		contents []*genai.Content
		last     *genai.Content
	)
	appendParts := func(role string, parts []*genai.Part) {
		if len(parts) == 0 {
			return
		}
		if last != nil && last.Role == role {
			last.Parts = append(last.Parts, parts...)
			return
		}
		last = &genai.Content{Role: role, Parts: parts}
		contents = append(contents, last)
	}

	for _, turn := range req.History {
		role := "user"
		if turn.Role == chat.RoleModel {
			role = "model"
		}
		if strings.TrimSpace(turn.Content) == "" {
			continue
		}
		appendParts(role, []*genai.Part{genai.NewPartFromText(turn.Content)})
	}

	var current []*genai.Part
	if req.Prompt != "" {
		current = append(current, genai.NewPartFromText(req.Prompt))
	}
	if img, ok := ParseImage(req.ImageRef); ok {
		current = append(current, genai.NewPartFromBytes(img.Data, img.MIMEType))
	}
	appendParts("user", current)
	return contents
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part == nil || part.Thought {
			continue
		}
		sb.WriteString(part.Text)
	}
	return sb.String()
}
