package store

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/aisuru/companion/backend/internal/model/chat"
)

func sampleHistory(user, companion string) chat.History {
	return chat.History{
		UserID:      user,
		CompanionID: companion,
		Language:    "ja",
		Messages: []chat.Turn{
			{ID: "t1", Role: chat.RoleUser, Content: "hi", Timestamp: 1700000000000},
			{ID: "t2", Role: chat.RoleModel, Content: "Hello!", Timestamp: 1700000001000, Emotion: "Happy", Gesture: "waves", AudioRef: "data:audio/pcm;base64,AAA="},
		},
		LastUpdated: time.UnixMilli(1700000001000).UTC(),
	}
}

// exerciseTranscriptStore checks the behaviour every TranscriptStore shares.
func exerciseTranscriptStore(t *testing.T, s TranscriptStore) {
	t.Helper()
	ctx := context.Background()
	key := chat.SessionKey{UserID: "u1", CompanionID: "yuki-01"}

	_, err := s.Load(ctx, key)
	require.True(t, errors.Is(err, ErrNotFound), "got %v", err)

	h := sampleHistory("u1", "yuki-01")
	require.NoError(t, s.Save(ctx, h))

	got, err := s.Load(ctx, key)
	require.NoError(t, err)
	require.Equal(t, h.UserID, got.UserID)
	require.Equal(t, h.CompanionID, got.CompanionID)
	require.Equal(t, "ja", got.Language)
	require.Equal(t, h.Messages, got.Messages)
	require.True(t, h.LastUpdated.Equal(got.LastUpdated))

	// Overwrite with a longer transcript.
	h.Messages = append(h.Messages, chat.Turn{ID: "t3", Role: chat.RoleUser, Content: "again", Timestamp: 1700000002000})
	h.Language = "en"
	require.NoError(t, s.Save(ctx, h))
	got, err = s.Load(ctx, key)
	require.NoError(t, err)
	require.Len(t, got.Messages, 3)
	require.Equal(t, "en", got.Language)

	// Other companions are separate documents.
	_, err = s.Load(ctx, chat.SessionKey{UserID: "u1", CompanionID: "rin-02"})
	require.True(t, errors.Is(err, ErrNotFound))

	require.ErrorIs(t, s.Save(ctx, chat.History{UserID: "u1"}), ErrInvalidKey)
	_, err = s.Load(ctx, chat.SessionKey{CompanionID: "x"})
	require.ErrorIs(t, err, ErrInvalidKey)
}

func TestMemoryStore(t *testing.T) {
	exerciseTranscriptStore(t, NewMemoryStore())
}

func TestMemoryStoreIsolatesCallers(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	h := sampleHistory("u1", "yuki-01")
	require.NoError(t, s.Save(ctx, h))

	h.Messages[0].Content = "mutated"
	got, err := s.Load(ctx, h.Key())
	require.NoError(t, err)
	require.Equal(t, "hi", got.Messages[0].Content)
}

func TestMemoryStoreKeysByUserAndCompanion(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, s.Save(ctx, sampleHistory("a_b", "c")))

	// Same document id, different key.
	_, err := s.Load(ctx, chat.SessionKey{UserID: "a", CompanionID: "b_c"})
	require.ErrorIs(t, err, ErrNotFound)
}
