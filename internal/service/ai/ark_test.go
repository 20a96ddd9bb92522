package ai

import (
	"context"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aisuru/companion/backend/internal/model/chat"
	"github.com/aisuru/companion/backend/internal/model/companion"
)

type recordingChatModel struct {
	input []*schema.Message
	reply string
}

func (m *recordingChatModel) Generate(_ context.Context, input []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	m.input = input
	return schema.AssistantMessage(m.reply, nil), nil
}

func (m *recordingChatModel) Stream(_ context.Context, input []*schema.Message, _ ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	m.input = input
	return schema.StreamReaderFromArray([]*schema.Message{schema.AssistantMessage(m.reply, nil)}), nil
}

func (m *recordingChatModel) BindTools([]*schema.ToolInfo) error { return nil }

func TestArkGeneratorRunsChain(t *testing.T) {
	chatModel := &recordingChatModel{reply: "*Excited* Let's go running!"}
	g, err := NewArkGenerator(context.Background(), chatModel)
	require.NoError(t, err)

	c := companion.Seed()[2]
	reply, err := g.Generate(context.Background(), GenerateRequest{
		Prompt:    "good morning {not a var}",
		Companion: &c,
		Language:  "en",
		History: []chat.Turn{
			{Role: chat.RoleUser, Content: "hi"},
			{Role: chat.RoleModel, Content: "*Happy* hey!"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "*Excited* Let's go running!", reply)

	require.Len(t, chatModel.input, 4)
	assert.Equal(t, schema.System, chatModel.input[0].Role)
	assert.Contains(t, chatModel.input[0].Content, "Haruka")
	assert.Equal(t, schema.User, chatModel.input[1].Role)
	assert.Equal(t, schema.Assistant, chatModel.input[2].Role)
	assert.Equal(t, "good morning {not a var}", chatModel.input[3].Content)
}
