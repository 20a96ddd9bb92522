package chat

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"github.com/aisuru/companion/backend/internal/model/chat"
	"github.com/aisuru/companion/backend/internal/model/companion"
	"github.com/aisuru/companion/backend/internal/service/ai"
	"github.com/aisuru/companion/backend/internal/service/speech"
	"github.com/aisuru/companion/backend/internal/store"
)

var (
	ErrUserRequired      = errors.New("user id is required")
	ErrCompanionRequired = errors.New("companion id is required")
	ErrCompanionNotFound = errors.New("companion not found")
	ErrSessionClosed     = errors.New("session closed")
	ErrEmptyMessage      = errors.New("message is empty")
	ErrReplyPending      = errors.New("a reply is still pending")
	ErrGenerationFailed  = errors.New("reply generation failed")
	ErrEmptyReply        = errors.New("reply was empty")
	ErrStaleSession      = errors.New("session changed while the reply was generated")
)

const (
	defaultHistoryLimit = 10
	defaultLanguage     = "en"
	persistTimeout      = 5 * time.Second
)

// Options tunes a Service. Zero values pick the defaults.
type Options struct {
	HistoryLimit int
	Now          func() time.Time
	NewID        func() string
}

// Service owns the open chat sessions, at most one per user.
type Service struct {
	companions  companion.Store
	generator   ai.Generator
	synthesizer speech.Synthesizer
	transcripts store.TranscriptStore
	opts        Options
	logger      zerolog.Logger

	group singleflight.Group

	mu       sync.Mutex
	sessions map[chat.SessionKey]*Session
	active   map[string]chat.SessionKey // user id -> open key
}

// NewService wires the chat pipeline. A nil synthesizer disables voice.
func NewService(companions companion.Store, generator ai.Generator, synthesizer speech.Synthesizer, transcripts store.TranscriptStore, opts Options) *Service {
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = defaultHistoryLimit
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}
	if synthesizer == nil {
		synthesizer = speech.Disabled{}
	}
	if transcripts == nil {
		transcripts = store.NewMemoryStore()
	}

	return &Service{
		companions:  companions,
		generator:   generator,
		synthesizer: synthesizer,
		transcripts: transcripts,
		opts:        opts,
		logger:      log.With().Str("component", "chat").Logger(),
		sessions:    make(map[chat.SessionKey]*Session),
		active:      make(map[string]chat.SessionKey),
	}
}

// Open returns the session for userID and companionID, resuming its stored
// transcript. Opening a different companion closes the user's previous
// session. An empty language keeps the stored one.
func (s *Service) Open(ctx context.Context, userID, companionID, language string) (*Session, error) {
	key := chat.SessionKey{UserID: strings.TrimSpace(userID), CompanionID: strings.TrimSpace(companionID)}
	if key.UserID == "" {
		return nil, ErrUserRequired
	}
	if key.CompanionID == "" {
		return nil, ErrCompanionRequired
	}

	profile, ok := s.companions.FindByID(key.CompanionID)
	if !ok {
		return nil, errors.Wrapf(ErrCompanionNotFound, "companion %q", key.CompanionID)
	}

	v, err, _ := s.group.Do(flightKey(key), func() (any, error) {
		return s.open(ctx, key, profile)
	})
	if err != nil {
		return nil, err
	}

	sess := v.(*Session)
	sess.setLanguage(strings.TrimSpace(language))
	return sess, nil
}

func (s *Service) open(ctx context.Context, key chat.SessionKey, profile companion.Companion) (*Session, error) {
	s.mu.Lock()
	if sess, ok := s.sessions[key]; ok {
		s.mu.Unlock()
		return sess, nil
	}
	s.mu.Unlock()

	history, err := s.transcripts.Load(ctx, key)
	switch {
	case err == nil:
	case errors.Is(err, store.ErrNotFound):
		history = chat.History{UserID: key.UserID, CompanionID: key.CompanionID}
	default:
		s.logger.Warn().Err(err).Str("session", key.String()).Msg("load transcript failed, starting empty")
		history = chat.History{UserID: key.UserID, CompanionID: key.CompanionID}
	}
	if history.Language == "" {
		history.Language = defaultLanguage
	}

	sess := newSession(s, key, profile, history)

	s.mu.Lock()
	var previous *Session
	if prevKey, ok := s.active[key.UserID]; ok && prevKey != key {
		previous = s.sessions[prevKey]
		delete(s.sessions, prevKey)
	}
	s.sessions[key] = sess
	s.active[key.UserID] = key
	s.mu.Unlock()

	if previous != nil {
		previous.shutdown()
		s.logger.Info().Str("closed", previous.Key().String()).Str("opened", key.String()).Msg("switched companion")
	}

	s.logger.Info().
		Str("session", key.String()).
		Int("turns", len(history.Messages)).
		Msg("session opened")
	return sess, nil
}

// Lookup returns an already open session.
func (s *Service) Lookup(userID, companionID string) (*Session, bool) {
	key := chat.SessionKey{UserID: userID, CompanionID: companionID}
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[key]
	return sess, ok
}

// Close shuts every open session down.
func (s *Service) Close() {
	s.mu.Lock()
	open := make([]*Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		open = append(open, sess)
	}
	s.sessions = make(map[chat.SessionKey]*Session)
	s.active = make(map[string]chat.SessionKey)
	s.mu.Unlock()

	for _, sess := range open {
		sess.shutdown()
	}
}

func (s *Service) unregister(sess *Session) {
	key := sess.Key()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sessions[key] == sess {
		delete(s.sessions, key)
	}
	if s.active[key.UserID] == key {
		delete(s.active, key.UserID)
	}
}

// flightKey length-prefixes the user id so that no two keys collide.
func flightKey(k chat.SessionKey) string {
	return strconv.Itoa(len(k.UserID)) + ":" + k.UserID + k.CompanionID
}

func (s *Service) persist(ctx context.Context, history chat.History) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()
	if err := s.transcripts.Save(ctx, history); err != nil {
		s.logger.Warn().Err(err).Str("session", history.Key().String()).Msg("persist transcript failed")
	}
}
