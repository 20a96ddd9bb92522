package chat

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aisuru/companion/backend/internal/audio/pcm"
	"github.com/aisuru/companion/backend/internal/model/chat"
	"github.com/aisuru/companion/backend/internal/model/companion"
	"github.com/aisuru/companion/backend/internal/service/ai"
	chatService "github.com/aisuru/companion/backend/internal/service/chat"
	"github.com/aisuru/companion/backend/internal/service/speech"
	"github.com/aisuru/companion/backend/internal/store"
)

func newTestRouter(t *testing.T, gen ai.GeneratorFunc, synth speech.SynthesizerFunc) (http.Handler, *chatService.Service) {
	t.Helper()
	var ids atomic.Int32
	var synthesizer speech.Synthesizer = speech.Disabled{}
	if synth != nil {
		synthesizer = synth
	}
	svc := chatService.NewService(
		companion.NewMemoryStore(companion.Seed()),
		gen,
		synthesizer,
		store.NewMemoryStore(),
		chatService.Options{
			Now:   func() time.Time { return time.UnixMilli(1700000000000) },
			NewID: func() string { return fmt.Sprintf("turn-%d", ids.Add(1)) },
		},
	)
	t.Cleanup(svc.Close)

	r := chi.NewRouter()
	New(svc, pcm.L16Mono24K).RegisterRoutes(r)
	return r, svc
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func pcmPayload(samples ...int16) string {
	raw := make([]byte, 2*len(samples))
	for i, s := range samples {
		raw[2*i] = byte(uint16(s))
		raw[2*i+1] = byte(uint16(s) >> 8)
	}
	return pcm.DataURIPrefix + base64.StdEncoding.EncodeToString(raw)
}

func TestSendReturnsUserAndReply(t *testing.T) {
	gen := ai.GeneratorFunc(func(context.Context, ai.GenerateRequest) (string, error) {
		return "*Blushing* *fidgets* Oh, hello...", nil
	})
	synth := speech.SynthesizerFunc(func(context.Context, string, string) (string, error) {
		return pcmPayload(0, 1000, -1000), nil
	})
	router, _ := newTestRouter(t, gen, synth)

	rec := doJSON(t, router, http.MethodPost, "/chats/u1/yuki-01/messages", map[string]string{"text": "hi"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp SendResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, chat.RoleUser, resp.User.Role)
	assert.Equal(t, "hi", resp.User.Content)
	require.NotNil(t, resp.Reply)
	assert.Equal(t, "Oh, hello...", resp.Reply.Content)
	assert.Equal(t, "Blushing", resp.Reply.Emotion)
	assert.Equal(t, "fidgets", resp.Reply.Gesture)
	assert.True(t, resp.Reply.Autoplay)
	require.NotNil(t, resp.Reply.Expression)

	rec = doJSON(t, router, http.MethodGet, "/chats/u1/yuki-01/", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var transcript TranscriptResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &transcript))
	require.Len(t, transcript.Turns, 2)
	assert.False(t, transcript.Turns[1].Autoplay, "a rendered reply must not autoplay again")
	assert.False(t, transcript.Typing)
}

func TestSendErrorsMapToStatus(t *testing.T) {
	failing := ai.GeneratorFunc(func(context.Context, ai.GenerateRequest) (string, error) {
		return "", errors.New("upstream down")
	})
	router, _ := newTestRouter(t, failing, nil)

	rec := doJSON(t, router, http.MethodPost, "/chats/u1/yuki-01/messages", map[string]string{"text": "   "})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/chats/u1/nobody/messages", map[string]string{"text": "hi"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/chats/u1/yuki-01/messages", map[string]string{"text": "hi"})
	require.Equal(t, http.StatusBadGateway, rec.Code)
	var resp SendResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "hi", resp.User.Content)
	assert.Nil(t, resp.Reply)
	assert.NotEmpty(t, resp.Error)

	req := httptest.NewRequest(http.MethodPost, "/chats/u1/yuki-01/messages", strings.NewReader("{"))
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestErrorStatus(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{chatService.ErrEmptyMessage, http.StatusBadRequest},
		{chatService.ErrUserRequired, http.StatusBadRequest},
		{errors.Wrap(chatService.ErrCompanionNotFound, "companion x"), http.StatusNotFound},
		{chatService.ErrReplyPending, http.StatusConflict},
		{chatService.ErrStaleSession, http.StatusConflict},
		{chatService.ErrSessionClosed, http.StatusGone},
		{errors.Wrap(chatService.ErrGenerationFailed, "boom"), http.StatusBadGateway},
		{chatService.ErrEmptyReply, http.StatusBadGateway},
		{errors.New("other"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		status, msg := ErrorStatus(tc.err)
		assert.Equal(t, tc.status, status, tc.err.Error())
		assert.NotEmpty(t, msg)
	}

	wrapped := fmt.Errorf("%w: %w", chatService.ErrGenerationFailed, errors.New("api key AIza-secret rejected"))
	status, msg := ErrorStatus(wrapped)
	assert.Equal(t, http.StatusBadGateway, status)
	assert.Equal(t, chatService.ErrGenerationFailed.Error(), msg)
}

func TestOpenResetAndClose(t *testing.T) {
	gen := ai.GeneratorFunc(func(context.Context, ai.GenerateRequest) (string, error) { return "Hi!", nil })
	router, svc := newTestRouter(t, gen, nil)

	rec := doJSON(t, router, http.MethodPost, "/chats/u1/rin-02/open", map[string]string{"language": "ja"})
	require.Equal(t, http.StatusOK, rec.Code)
	var transcript TranscriptResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &transcript))
	assert.Equal(t, "ja", transcript.Language)
	assert.Equal(t, "rin-02", transcript.CompanionID)
	assert.Empty(t, transcript.Turns)

	rec = doJSON(t, router, http.MethodPost, "/chats/u1/rin-02/messages", map[string]string{"text": "hi"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/chats/u1/rin-02/reset", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &transcript))
	assert.Empty(t, transcript.Turns)

	rec = doJSON(t, router, http.MethodPost, "/chats/u1/rin-02/close", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	_, ok := svc.Lookup("u1", "rin-02")
	assert.False(t, ok)
}

func TestTurnAudioServesWAV(t *testing.T) {
	gen := ai.GeneratorFunc(func(context.Context, ai.GenerateRequest) (string, error) { return "Hello", nil })
	synth := speech.SynthesizerFunc(func(context.Context, string, string) (string, error) {
		return pcmPayload(0, 16384, -16384, 0), nil
	})
	router, _ := newTestRouter(t, gen, synth)

	rec := doJSON(t, router, http.MethodPost, "/chats/u1/yuki-01/messages", map[string]string{"text": "hi"})
	require.Equal(t, http.StatusOK, rec.Code)
	var resp SendResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotNil(t, resp.Reply)

	rec = doJSON(t, router, http.MethodGet, "/chats/u1/yuki-01/turns/"+resp.Reply.ID+"/audio.wav", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "audio/wav", rec.Header().Get("Content-Type"))
	body := rec.Body.Bytes()
	require.Greater(t, len(body), 44)
	assert.Equal(t, "RIFF", string(body[:4]))
	assert.Equal(t, "WAVE", string(body[8:12]))

	rec = doJSON(t, router, http.MethodGet, "/chats/u1/yuki-01/turns/"+resp.User.ID+"/audio.wav", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/chats/u1/yuki-01/turns/missing/audio.wav", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSendSurvivesClientDisconnect(t *testing.T) {
	gen := ai.GeneratorFunc(func(ctx context.Context, _ ai.GenerateRequest) (string, error) {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		return "*Calm* Still here.", nil
	})
	router, svc := newTestRouter(t, gen, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest(http.MethodPost, "/chats/u1/yuki-01/messages", strings.NewReader(`{"text":"hi"}`)).WithContext(ctx)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	sess, ok := svc.Lookup("u1", "yuki-01")
	require.True(t, ok)
	transcript := sess.Transcript()
	require.Len(t, transcript, 2)
	assert.Equal(t, "Still here.", transcript[1].Content)
}
