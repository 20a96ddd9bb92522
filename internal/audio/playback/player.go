package playback

import (
	"context"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/aisuru/companion/backend/internal/audio/pcm"
)

const watchBuffer = 8

// Player is the playback control for one turn's voice payload.
type Player struct {
	payload string
	format  pcm.Format
	sink    Sink
	logger  zerolog.Logger

	mu       sync.Mutex
	playing  bool
	watchers []chan bool
}

// Option configures a Player.
type Option func(*Player)

// WithFormat overrides the PCM format, L16Mono24K by default.
func WithFormat(f pcm.Format) Option {
	return func(p *Player) { p.format = f }
}

// WithLogger sets the logger used for playback failures.
func WithLogger(l zerolog.Logger) Option {
	return func(p *Player) { p.logger = l }
}

// NewPlayer builds a control for payload that plays through sink.
func NewPlayer(payload string, sink Sink, opts ...Option) *Player {
	p := &Player{
		payload: payload,
		format:  pcm.L16Mono24K,
		sink:    sink,
		logger:  log.Logger,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.With().Str("component", "playback").Logger()
	return p
}

// Available reports whether there is anything to play. Controls without a
// payload are not rendered.
func (p *Player) Available() bool {
	return strings.TrimSpace(p.payload) != "" && p.sink != nil
}

// IsPlaying reports whether a playback is in flight.
func (p *Player) IsPlaying() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.playing
}

// Watch returns a channel receiving every isPlaying transition. Slow readers
// miss transitions rather than block playback.
func (p *Player) Watch() <-chan bool {
	ch := make(chan bool, watchBuffer)
	p.mu.Lock()
	p.watchers = append(p.watchers, ch)
	p.mu.Unlock()
	return ch
}

// Trigger starts playback. It is a no-op, returning started=false, when the
// payload is empty or a playback is already in flight. done closes after
// isPlaying has returned to false.
func (p *Player) Trigger(ctx context.Context) (done <-chan struct{}, started bool) {
	if !p.Available() {
		return nil, false
	}

	p.mu.Lock()
	if p.playing {
		p.mu.Unlock()
		return nil, false
	}
	p.setPlayingLocked(true)
	p.mu.Unlock()

	finished := make(chan struct{})
	go p.run(ctx, finished)
	return finished, true
}

func (p *Player) run(ctx context.Context, finished chan<- struct{}) {
	defer close(finished)
	defer p.finish()
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error().Interface("panic", r).Msg("playback setup panicked")
		}
	}()

	buf := p.format.DecodePayload(p.payload)
	select {
	case err := <-p.sink.Play(ctx, buf):
		if err != nil && !errors.Is(err, context.Canceled) {
			p.logger.Warn().Err(err).Dur("duration", buf.Duration()).Msg("playback failed")
		}
	case <-ctx.Done():
		p.logger.Debug().Err(ctx.Err()).Msg("playback abandoned")
	}
}

func (p *Player) finish() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.setPlayingLocked(false)
}

func (p *Player) setPlayingLocked(playing bool) {
	p.playing = playing
	for _, ch := range p.watchers {
		select {
		case ch <- playing:
		default:
		}
	}
}
