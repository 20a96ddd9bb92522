package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"

	"github.com/aisuru/companion/backend/internal/model/chat"
)

// SQLiteStore keeps one row per transcript document.
type SQLiteStore struct {
	db *sql.DB
}

var _ TranscriptStore = &SQLiteStore{}

// SQLiteDSNForFile builds a DSN with WAL and a busy timeout for path.
func SQLiteDSNForFile(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", errors.New("sqlite transcript store: empty path")
	}
	return fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000", path), nil
}

// NewSQLiteStore opens dsn and creates the schema when missing.
func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, errors.New("sqlite transcript store: empty dsn")
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, err
	}
	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Close implements TranscriptStore.
func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteStore) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS transcripts (
			doc_id TEXT NOT NULL PRIMARY KEY,
			user_id TEXT NOT NULL,
			companion_id TEXT NOT NULL,
			language TEXT NOT NULL DEFAULT '',
			messages_json TEXT NOT NULL DEFAULT '[]',
			updated_at_ms INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS transcripts_by_user ON transcripts(user_id, updated_at_ms DESC);`,
	}
	for _, st := range stmts {
		if _, err := s.db.Exec(st); err != nil {
			return errors.Wrap(err, "sqlite transcript store: migrate")
		}
	}
	return nil
}

// Load implements TranscriptStore.
func (s *SQLiteStore) Load(ctx context.Context, key chat.SessionKey) (chat.History, error) {
	if !key.Valid() {
		return chat.History{}, ErrInvalidKey
	}

	var (
		h            chat.History
		messagesJSON string
		updatedAtMs  int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT user_id, companion_id, language, messages_json, updated_at_ms FROM transcripts WHERE doc_id = ?`,
		key.DocumentID(),
	).Scan(&h.UserID, &h.CompanionID, &h.Language, &messagesJSON, &updatedAtMs)
	if errors.Is(err, sql.ErrNoRows) {
		return chat.History{}, errors.Wrapf(ErrNotFound, "sqlite store: %s", key)
	}
	if err != nil {
		return chat.History{}, errors.Wrap(err, "sqlite transcript store: load")
	}

	if err := json.Unmarshal([]byte(messagesJSON), &h.Messages); err != nil {
		return chat.History{}, errors.Wrapf(err, "sqlite transcript store: decode messages of %s", key)
	}
	h.LastUpdated = time.UnixMilli(updatedAtMs).UTC()
	return h, nil
}

// Save implements TranscriptStore.
func (s *SQLiteStore) Save(ctx context.Context, history chat.History) error {
	key := history.Key()
	if !key.Valid() {
		return ErrInvalidKey
	}

	messages := history.Messages
	if messages == nil {
		messages = []chat.Turn{}
	}
	messagesJSON, err := json.Marshal(messages)
	if err != nil {
		return errors.Wrap(err, "sqlite transcript store: encode messages")
	}

	updated := history.LastUpdated
	if updated.IsZero() {
		updated = time.Now()
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO transcripts (doc_id, user_id, companion_id, language, messages_json, updated_at_ms)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(doc_id) DO UPDATE SET
			language = excluded.language,
			messages_json = excluded.messages_json,
			updated_at_ms = excluded.updated_at_ms`,
		key.DocumentID(), history.UserID, history.CompanionID, history.Language, string(messagesJSON), updated.UnixMilli(),
	)
	if err != nil {
		return errors.Wrap(err, "sqlite transcript store: save")
	}
	return nil
}
