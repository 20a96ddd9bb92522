package ai

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/aisuru/companion/backend/internal/model/chat"
	"github.com/aisuru/companion/backend/internal/model/companion"
)

func TestGeminiContentsMergesRolesAndAttachesImage(t *testing.T) {
	g := NewGeminiGenerator(nil, "gemini-test", Params{})
	contents := g.contents(GenerateRequest{
		Prompt: "look at this",
		History: []chat.Turn{
			{Role: chat.RoleUser, Content: "hello"},
			{Role: chat.RoleUser, Content: ""},
			{Role: chat.RoleModel, Content: "*Happy* hi!"},
			{Role: chat.RoleUser, Content: "one more"},
		},
		ImageRef: "data:image/png;base64,iVBORw==",
	})

	require.Len(t, contents, 3)
	assert.Equal(t, "user", contents[0].Role)
	assert.Equal(t, "model", contents[1].Role)
	assert.Equal(t, "user", contents[2].Role)

	// The trailing history turn and the new prompt share one user content.
	last := contents[2].Parts
	require.Len(t, last, 3)
	assert.Equal(t, "one more", last[0].Text)
	assert.Equal(t, "look at this", last[1].Text)
	require.NotNil(t, last[2].InlineData)
	assert.Equal(t, "image/png", last[2].InlineData.MIMEType)
}

func TestGeminiGenerateOverHTTP(t *testing.T) {
	var captured map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "models/gemini-test:generateContent"), r.URL.Path)
		body, _ := io.ReadAll(r.Body)
		assert.NoError(t, json.Unmarshal(body, &captured))

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"candidates":[{"content":{"role":"model","parts":[{"text":"*Happy* "},{"text":"Welcome back!"}]}}]}`)
	}))
	defer srv.Close()

	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:      "test-key",
		Backend:     genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{BaseURL: srv.URL},
	})
	require.NoError(t, err)

	c := companion.Seed()[0]
	g := NewGeminiGenerator(client, "gemini-test", Params{Temperature: 0.9, TopP: 0.95, TopK: 40})
	reply, err := g.Generate(context.Background(), GenerateRequest{Prompt: "hi", Companion: &c, Language: "en"})
	require.NoError(t, err)
	assert.Equal(t, "*Happy* Welcome back!", reply)

	require.NotNil(t, captured)
	assert.Contains(t, captured, "systemInstruction")
	gen, ok := captured["generationConfig"].(map[string]any)
	require.True(t, ok)
	assert.InDelta(t, 40, gen["topK"], 1e-6)
}

func TestResponseTextSkipsThoughts(t *testing.T) {
	resp := &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{
		Content: &genai.Content{Parts: []*genai.Part{
			{Text: "thinking...", Thought: true},
			{Text: "*Blushing* o-okay"},
		}},
	}}}
	assert.Equal(t, "*Blushing* o-okay", responseText(resp))
	assert.Equal(t, "", responseText(nil))
	assert.Equal(t, "", responseText(&genai.GenerateContentResponse{}))
}
