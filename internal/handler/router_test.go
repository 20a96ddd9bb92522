package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/aisuru/companion/backend/internal/audio/pcm"
	"github.com/aisuru/companion/backend/internal/model/companion"
	"github.com/aisuru/companion/backend/internal/service/ai"
	chatService "github.com/aisuru/companion/backend/internal/service/chat"
	"github.com/aisuru/companion/backend/internal/service/speech"
	"github.com/aisuru/companion/backend/internal/store"
)

func TestRouterMountsAPI(t *testing.T) {
	companions := companion.NewMemoryStore(companion.Seed())
	chats := chatService.NewService(
		companions,
		ai.GeneratorFunc(func(context.Context, ai.GenerateRequest) (string, error) { return "hi", nil }),
		speech.Disabled{},
		store.NewMemoryStore(),
		chatService.Options{},
	)
	t.Cleanup(chats.Close)

	router := NewRouter(Deps{
		Companions:  companions,
		Chats:       chats,
		Synthesizer: speech.Disabled{},
		Format:      pcm.L16Mono24K,
	})

	cases := []struct {
		method string
		path   string
		status int
	}{
		{http.MethodGet, "/healthz", http.StatusOK},
		{http.MethodGet, "/api/companions", http.StatusOK},
		{http.MethodGet, "/api/companions/yuki-01", http.StatusOK},
		{http.MethodGet, "/api/chats/u1/yuki-01/", http.StatusOK},
		{http.MethodGet, "/api/speech/voices", http.StatusOK},
		{http.MethodPost, "/api/speech/transcribe", http.StatusServiceUnavailable},
		{http.MethodOptions, "/api/companions", http.StatusNoContent},
		{http.MethodGet, "/api/nowhere", http.StatusNotFound},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(tc.method, tc.path, nil))
		assert.Equal(t, tc.status, rec.Code, "%s %s", tc.method, tc.path)
		assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"), tc.path)
	}
}
