package ai

import (
	"context"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/aisuru/companion/backend/internal/model/chat"
)

// ArkGenerator runs replies through an eino chain: chat template, then model.
type ArkGenerator struct {
	chain   compose.Runnable[map[string]any, *schema.Message]
	prompts *PromptBuilder
}

// NewArkGenerator compiles the chain around chatModel. Sampling parameters
// are configured on the model itself.
func NewArkGenerator(ctx context.Context, chatModel model.ChatModel) (*ArkGenerator, error) {
	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage("{system}"),
		schema.MessagesPlaceholder("history", true),
		schema.UserMessage("{query}"),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "compile chat chain")
	}

	return &ArkGenerator{chain: runnable, prompts: NewPromptBuilder()}, nil
}

// Generate implements Generator. Image attachments are not forwarded.
func (g *ArkGenerator) Generate(ctx context.Context, req GenerateRequest) (string, error) {
	if req.ImageRef != "" {
		log.Debug().Str("component", "ai").Str("provider", "ark").Msg("image attachment ignored")
	}

	response, err := g.chain.Invoke(ctx, g.chainInput(req))
	if err != nil {
		return "", errors.Wrap(err, "run ark chain")
	}
	if response == nil {
		return "", nil
	}
	return response.Content, nil
}

func (g *ArkGenerator) chainInput(req GenerateRequest) map[string]any {
	return map[string]any{
		"system":  g.prompts.SystemPrompt(req.Companion, req.Language),
		"history": historyMessages(req.History),
		"query":   req.Prompt,
	}
}

func historyMessages(turns []chat.Turn) []*schema.Message {
	if len(turns) == 0 {
		return nil
	}

	history := make([]*schema.Message, 0, len(turns))
	for _, turn := range turns {
		switch turn.Role {
		case chat.RoleUser:
			history = append(history, schema.UserMessage(turn.Content))
		case chat.RoleModel:
			history = append(history, schema.AssistantMessage(turn.Content, nil))
		}
	}
	return history
}
