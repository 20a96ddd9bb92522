package playback

import (
	"context"

	"github.com/aisuru/companion/backend/internal/audio/pcm"
)

// Device guards a shared audio output so that only one buffer drives it at a
// time. Plays queue behind the current one; a play whose context ends while
// queued never reaches the sink.
type Device struct {
	sink Sink
	slot chan struct{}
}

// NewDevice wraps sink.
func NewDevice(sink Sink) *Device {
	return &Device{sink: sink, slot: make(chan struct{}, 1)}
}

// Play implements Sink.
func (d *Device) Play(ctx context.Context, buf *pcm.Buffer) <-chan error {
	result := make(chan error, 1)
	go func() {
		select {
		case d.slot <- struct{}{}:
		case <-ctx.Done():
			result <- ctx.Err()
			return
		}
		defer func() { <-d.slot }()
		result <- <-d.sink.Play(ctx, buf)
	}()
	return result
}
