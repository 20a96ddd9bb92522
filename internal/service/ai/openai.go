package ai

import (
	"context"

	"github.com/pkg/errors"
	"github.com/sashabaranov/go-openai"

	"github.com/aisuru/companion/backend/internal/config"
	"github.com/aisuru/companion/backend/internal/model/chat"
)

// OpenAIGenerator targets any OpenAI-compatible chat completion endpoint.
type OpenAIGenerator struct {
	client  *openai.Client
	model   string
	params  Params
	prompts *PromptBuilder
}

// NewOpenAIGenerator creates a client from cfg.
func NewOpenAIGenerator(cfg config.OpenAIConfig, params Params) *OpenAIGenerator {
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}

	return &OpenAIGenerator{
		client:  openai.NewClientWithConfig(clientConfig),
		model:   cfg.Model,
		params:  params,
		prompts: NewPromptBuilder(),
	}
}

// Generate implements Generator.
func (g *OpenAIGenerator) Generate(ctx context.Context, req GenerateRequest) (string, error) {
	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       g.model,
		Messages:    g.messages(req),
		Temperature: g.params.Temperature,
		TopP:        g.params.TopP,
	})
	if err != nil {
		return "", errors.Wrap(err, "openai chat completion")
	}
	if len(resp.Choices) == 0 {
		return "", nil
	}
	return resp.Choices[0].Message.Content, nil
}

func (g *OpenAIGenerator) messages(req GenerateRequest) []openai.ChatCompletionMessage {
	messages := make([]openai.ChatCompletionMessage, 0, len(req.History)+2)
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleSystem,
		Content: g.prompts.SystemPrompt(req.Companion, req.Language),
	})

	for _, turn := range req.History {
		role := openai.ChatMessageRoleUser
		if turn.Role == chat.RoleModel {
			role = openai.ChatMessageRoleAssistant
		}
		messages = append(messages, openai.ChatCompletionMessage{Role: role, Content: turn.Content})
	}

	img, ok := ParseImage(req.ImageRef)
	if !ok {
		return append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleUser,
			Content: req.Prompt,
		})
	}

	return append(messages, openai.ChatCompletionMessage{
		Role: openai.ChatMessageRoleUser,
		MultiContent: []openai.ChatMessagePart{
			{Type: openai.ChatMessagePartTypeText, Text: req.Prompt},
			{
				Type: openai.ChatMessagePartTypeImageURL,
				ImageURL: &openai.ChatMessageImageURL{
					URL:    img.DataURI(),
					Detail: openai.ImageURLDetailAuto,
				},
			},
		},
	})
}
