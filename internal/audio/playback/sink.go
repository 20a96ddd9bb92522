package playback

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/aisuru/companion/backend/internal/audio/pcm"
)

// Sink drives an audio output. Play returns immediately; the channel yields
// exactly one value, nil on natural completion, once the buffer stops playing.
// Implementations must stop promptly when ctx is cancelled.
type Sink interface {
	Play(ctx context.Context, buf *pcm.Buffer) <-chan error
}

// SinkFunc adapts a blocking function to Sink.
type SinkFunc func(ctx context.Context, buf *pcm.Buffer) error

// Play runs f in its own goroutine.
func (f SinkFunc) Play(ctx context.Context, buf *pcm.Buffer) <-chan error {
	result := make(chan error, 1)
	go func() {
		result <- f(ctx, buf)
	}()
	return result
}

// DiscardSink drops samples. With Pace set it holds the output for the
// buffer's real duration, the way a speaker would.
type DiscardSink struct {
	Pace bool
}

// Play implements Sink.
func (s DiscardSink) Play(ctx context.Context, buf *pcm.Buffer) <-chan error {
	return SinkFunc(func(ctx context.Context, buf *pcm.Buffer) error {
		if !s.Pace {
			return ctx.Err()
		}
		timer := time.NewTimer(buf.Duration())
		defer timer.Stop()
		select {
		case <-timer.C:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}).Play(ctx, buf)
}

// WAVSink writes each played buffer to W as a complete WAV stream.
type WAVSink struct {
	W  io.Writer
	mu sync.Mutex
}

// Play implements Sink.
func (s *WAVSink) Play(ctx context.Context, buf *pcm.Buffer) <-chan error {
	return SinkFunc(func(ctx context.Context, buf *pcm.Buffer) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		return buf.WriteWAV(s.W)
	}).Play(ctx, buf)
}
