package store

import (
	"context"
	"sync/atomic"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/aisuru/companion/backend/internal/model/chat"
)

// FallbackStore pairs a remote document store with a local copy. Every save
// lands locally; the remote is written until it refuses access, after which
// the store stays local-only for the rest of the process.
type FallbackStore struct {
	remote   TranscriptStore
	local    TranscriptStore
	degraded atomic.Bool
	logger   zerolog.Logger
}

var _ TranscriptStore = &FallbackStore{}

// NewFallbackStore combines remote and local.
func NewFallbackStore(remote, local TranscriptStore) *FallbackStore {
	return &FallbackStore{
		remote: remote,
		local:  local,
		logger: log.With().Str("component", "store").Logger(),
	}
}

// Degraded reports whether the remote has been abandoned.
func (s *FallbackStore) Degraded() bool {
	return s.degraded.Load()
}

func (s *FallbackStore) degrade(err error) {
	if s.degraded.CompareAndSwap(false, true) {
		s.logger.Warn().Err(err).Msg("remote transcript store refused access, using local storage only")
	}
}

// Load implements TranscriptStore. A remote hit is mirrored locally.
func (s *FallbackStore) Load(ctx context.Context, key chat.SessionKey) (chat.History, error) {
	if !s.Degraded() {
		h, err := s.remote.Load(ctx, key)
		switch {
		case err == nil:
			if err := s.local.Save(ctx, h); err != nil {
				s.logger.Warn().Err(err).Str("key", key.String()).Msg("mirror transcript locally")
			}
			return h, nil
		case errors.Is(err, ErrPermission):
			s.degrade(err)
		case errors.Is(err, ErrNotFound), errors.Is(err, ErrInvalidKey):
		default:
			s.logger.Warn().Err(err).Str("key", key.String()).Msg("remote load failed, reading local copy")
		}
	}
	return s.local.Load(ctx, key)
}

// Save implements TranscriptStore. It succeeds when either side accepts the
// transcript.
func (s *FallbackStore) Save(ctx context.Context, history chat.History) error {
	localErr := s.local.Save(ctx, history)
	if localErr != nil {
		s.logger.Warn().Err(localErr).Str("key", history.Key().String()).Msg("local save failed")
	}
	if s.Degraded() {
		return localErr
	}

	remoteErr := s.remote.Save(ctx, history)
	if remoteErr == nil {
		return nil
	}
	if errors.Is(remoteErr, ErrPermission) {
		s.degrade(remoteErr)
	} else {
		s.logger.Warn().Err(remoteErr).Str("key", history.Key().String()).Msg("remote save failed")
	}
	if localErr != nil {
		return errors.Wrap(remoteErr, "save transcript")
	}
	return nil
}

// Close closes both sides.
func (s *FallbackStore) Close() error {
	remoteErr := s.remote.Close()
	localErr := s.local.Close()
	if remoteErr != nil {
		return remoteErr
	}
	return localErr
}
