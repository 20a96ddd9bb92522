package chat

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/aisuru/companion/backend/internal/analysis/annotation"
	"github.com/aisuru/companion/backend/internal/audio/playback"
	"github.com/aisuru/companion/backend/internal/model/chat"
	"github.com/aisuru/companion/backend/internal/model/companion"
	"github.com/aisuru/companion/backend/internal/service/ai"
	"github.com/aisuru/companion/backend/internal/service/speech"
)

// Session is one user's conversation with one companion. Its transcript only
// grows; Reset starts a fresh one.
type Session struct {
	svc       *Service
	key       chat.SessionKey
	companion companion.Companion
	logger    zerolog.Logger

	mu         sync.Mutex
	language   string
	turns      []chat.Turn
	typing     bool
	closed     bool
	generation uint64
	autoplay   *playback.Autoplay
	watchers   map[int]chan Event
	nextWatch  int
	version    uint64 // bumped by every snapshot

	persistMu sync.Mutex
	persisted uint64 // newest snapshot version handed to the store
}

func newSession(svc *Service, key chat.SessionKey, profile companion.Companion, history chat.History) *Session {
	turns := append([]chat.Turn(nil), history.Messages...)
	return &Session{
		svc:       svc,
		key:       key,
		companion: profile,
		logger:    svc.logger.With().Str("session", key.String()).Logger(),
		language:  history.Language,
		turns:     turns,
		autoplay:  playback.NewAutoplay(turns),
		watchers:  make(map[int]chan Event),
	}
}

// SendInput is one user submission.
type SendInput struct {
	Text     string
	ImageRef string
}

// SendResult holds the turns a successful send appended.
type SendResult struct {
	User     chat.Turn
	Reply    chat.Turn
	Autoplay bool
}

// Key identifies the session.
func (s *Session) Key() chat.SessionKey { return s.key }

// Companion returns the companion profile the session talks to.
func (s *Session) Companion() companion.Companion { return s.companion }

// Language returns the reply language.
func (s *Session) Language() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.language
}

func (s *Session) setLanguage(language string) {
	if language == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.language = language
}

// Transcript returns a copy of the turns in insertion order.
func (s *Session) Transcript() []chat.Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]chat.Turn(nil), s.turns...)
}

// Turn looks a turn up by id.
func (s *Session) Turn(id string) (chat.Turn, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.turns {
		if t.ID == id {
			return t, true
		}
	}
	return chat.Turn{}, false
}

// IsTyping reports whether a reply is pending.
func (s *Session) IsTyping() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.typing
}

// Closed reports whether the session has been closed.
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Render returns the transcript as views with autoplay flags. Turns already
// rendered, including everything loaded from storage, never autoplay.
func (s *Session) Render() []TurnView {
	s.mu.Lock()
	defer s.mu.Unlock()
	autoplayID := s.autoplay.Render(s.turns)
	views := make([]TurnView, len(s.turns))
	for i, t := range s.turns {
		views[i] = NewTurnView(t, t.ID == autoplayID)
	}
	return views
}

// Send appends the user turn, waits for the reply and its voice, then appends
// the model turn. A failed generation leaves the user turn in place.
func (s *Session) Send(ctx context.Context, in SendInput) (*SendResult, error) {
	text := strings.TrimSpace(in.Text)
	image := strings.TrimSpace(in.ImageRef)
	if text == "" && image == "" {
		return nil, ErrEmptyMessage
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrSessionClosed
	}
	if s.typing {
		s.mu.Unlock()
		return nil, ErrReplyPending
	}
	history := ai.RecentHistory(s.turns, s.svc.opts.HistoryLimit)
	userTurn := chat.Turn{
		ID:        s.svc.opts.NewID(),
		Role:      chat.RoleUser,
		Content:   text,
		Timestamp: s.svc.opts.Now().UnixMilli(),
		ImageRef:  image,
	}
	s.turns = append(s.turns, userTurn)
	s.typing = true
	generation := s.generation
	language := s.language
	snapshot, version := s.snapshotLocked()
	s.mu.Unlock()

	result := &SendResult{User: userTurn}
	s.publish(Event{Type: EventUser, Turn: viewPtr(NewTurnView(userTurn, false))})
	s.publish(Event{Type: EventTyping, Typing: true})
	s.persist(ctx, snapshot, version)

	raw, err := s.svc.generator.Generate(ctx, ai.GenerateRequest{
		Prompt:    text,
		History:   history,
		Companion: &s.companion,
		Language:  language,
		ImageRef:  image,
	})
	if err != nil {
		s.logger.Error().Err(err).Msg("generate reply")
		s.stopTyping(generation)
		return result, fmt.Errorf("%w: %w", ErrGenerationFailed, err)
	}
	if strings.TrimSpace(raw) == "" {
		s.logger.Warn().Msg("generator returned an empty reply")
		s.stopTyping(generation)
		return result, ErrEmptyReply
	}

	ann := annotation.Extract(raw)
	var audio string
	if ann.CleanedText != "" {
		audio, err = s.svc.synthesizer.Synthesize(ctx, ann.CleanedText, speech.ResolveVoice(s.companion.VoiceName))
		if err != nil {
			s.logger.Warn().Err(err).Msg("synthesize reply, continuing without voice")
			audio = ""
		}
	}

	reply := chat.Turn{
		ID:        s.svc.opts.NewID(),
		Role:      chat.RoleModel,
		Content:   annotation.DisplayText(ann.CleanedText),
		Timestamp: s.svc.opts.Now().UnixMilli(),
		AudioRef:  audio,
		Emotion:   ann.Emotion,
		Gesture:   ann.Gesture,
	}

	s.mu.Lock()
	if s.closed || s.generation != generation {
		s.mu.Unlock()
		s.logger.Info().Str("turn", reply.ID).Msg("dropping reply for a stale session")
		return result, ErrStaleSession
	}
	s.turns = append(s.turns, reply)
	s.typing = false
	autoplay := s.autoplay.Render(s.turns) == reply.ID
	snapshot, version = s.snapshotLocked()
	s.mu.Unlock()

	s.publish(Event{Type: EventTurn, Turn: viewPtr(NewTurnView(reply, autoplay))})
	s.publish(Event{Type: EventTyping, Typing: false})
	s.persist(ctx, snapshot, version)

	result.Reply = reply
	result.Autoplay = autoplay
	s.logger.Info().
		Str("turn", reply.ID).
		Str("emotion", reply.Emotion).
		Str("gesture", reply.Gesture).
		Bool("voice", reply.HasAudio()).
		Msg("reply appended")
	return result, nil
}

func (s *Session) stopTyping(generation uint64) {
	s.mu.Lock()
	stale := s.closed || s.generation != generation
	if !stale {
		s.typing = false
	}
	s.mu.Unlock()
	if !stale {
		s.publish(Event{Type: EventTyping, Typing: false})
	}
}

// Reset discards the transcript and starts over. Replies still being
// generated for the old transcript are dropped.
func (s *Session) Reset(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	s.generation++
	s.turns = nil
	s.typing = false
	s.autoplay = playback.NewAutoplay(nil)
	snapshot, version := s.snapshotLocked()
	s.mu.Unlock()

	s.publish(Event{Type: EventReset})
	s.persist(ctx, snapshot, version)
	return nil
}

// Close ends the session. In-flight replies are discarded.
func (s *Session) Close() {
	s.shutdown()
	s.svc.unregister(s)
}

func (s *Session) shutdown() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.generation++
	s.typing = false
	watchers := s.watchers
	s.watchers = make(map[int]chan Event)
	s.mu.Unlock()

	for _, ch := range watchers {
		select {
		case ch <- Event{Type: EventClosed}:
		default:
		}
		close(ch)
	}
}

// snapshotLocked copies the transcript for persistence. Versions order the
// snapshots so that a slow save never overwrites a newer one.
func (s *Session) snapshotLocked() (chat.History, uint64) {
	s.version++
	return chat.History{
		UserID:      s.key.UserID,
		CompanionID: s.key.CompanionID,
		Language:    s.language,
		Messages:    append([]chat.Turn(nil), s.turns...),
		LastUpdated: s.svc.opts.Now().UTC(),
	}, s.version
}

// persist writes snapshots one at a time per session and drops any snapshot
// older than one already written.
func (s *Session) persist(ctx context.Context, history chat.History, version uint64) {
	s.persistMu.Lock()
	defer s.persistMu.Unlock()
	if version <= s.persisted {
		s.logger.Debug().Uint64("version", version).Uint64("persisted", s.persisted).Msg("skipping superseded snapshot")
		return
	}
	s.persisted = version
	s.svc.persist(ctx, history)
}
