// Package store persists chat transcripts, one document per user and companion.
package store

import (
	"context"

	"github.com/pkg/errors"

	"github.com/aisuru/companion/backend/internal/model/chat"
)

var (
	// ErrNotFound is returned when no transcript exists for a key.
	ErrNotFound = errors.New("transcript not found")
	// ErrPermission is returned when the backend refuses access.
	ErrPermission = errors.New("transcript store permission denied")
	// ErrInvalidKey is returned for keys missing a user or companion id.
	ErrInvalidKey = errors.New("invalid session key")
)

// TranscriptStore loads and saves whole transcripts.
type TranscriptStore interface {
	Load(ctx context.Context, key chat.SessionKey) (chat.History, error)
	Save(ctx context.Context, history chat.History) error
	Close() error
}

func cloneHistory(h chat.History) chat.History {
	if h.Messages != nil {
		msgs := make([]chat.Turn, len(h.Messages))
		copy(msgs, h.Messages)
		h.Messages = msgs
	}
	return h
}
