package chat

import (
	"strings"
	"time"
)

// SessionKey scopes a transcript to one user talking to one companion.
type SessionKey struct {
	UserID      string `json:"userId"`
	CompanionID string `json:"companionId"`
}

// Valid reports whether both halves of the key are present.
func (k SessionKey) Valid() bool {
	return strings.TrimSpace(k.UserID) != "" && strings.TrimSpace(k.CompanionID) != ""
}

// DocumentID is the identifier transcripts are stored under. Companion ids
// never contain an underscore, so the last one splits the two halves.
func (k SessionKey) DocumentID() string {
	return k.UserID + "_" + k.CompanionID
}

func (k SessionKey) String() string {
	return k.DocumentID()
}

// History is the persisted form of a transcript.
type History struct {
	UserID      string    `json:"userId"`
	CompanionID string    `json:"characterId"`
	Language    string    `json:"language"`
	Messages    []Turn    `json:"messages"`
	LastUpdated time.Time `json:"lastUpdated"`
}

// Key returns the session key the history belongs to.
func (h History) Key() SessionKey {
	return SessionKey{UserID: h.UserID, CompanionID: h.CompanionID}
}
