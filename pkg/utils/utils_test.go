package utils

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRespondError(t *testing.T) {
	rec := httptest.NewRecorder()
	RespondError(rec, http.StatusConflict, "busy")

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"error":"busy"}`, rec.Body.String())
}

func TestSendSSEEvent(t *testing.T) {
	rec := httptest.NewRecorder()
	SetupSSEHeaders(rec)
	require.NoError(t, SendSSEEvent(rec, rec, "typing", map[string]bool{"typing": true}))

	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	assert.Equal(t, "event: typing\ndata: {\"typing\":true}\n\n", rec.Body.String())
	assert.True(t, rec.Flushed)
}
