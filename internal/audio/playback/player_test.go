package playback

import (
	"bytes"
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aisuru/companion/backend/internal/audio/pcm"
)

// gateSink blocks every play until release is closed.
type gateSink struct {
	release chan struct{}
	plays   atomic.Int32
	last    atomic.Pointer[pcm.Buffer]
}

func newGateSink() *gateSink { return &gateSink{release: make(chan struct{})} }

func (s *gateSink) Play(ctx context.Context, buf *pcm.Buffer) <-chan error {
	s.plays.Add(1)
	s.last.Store(buf)
	return SinkFunc(func(ctx context.Context, _ *pcm.Buffer) error {
		select {
		case <-s.release:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}).Play(ctx, buf)
}

type panicSink struct{}

func (panicSink) Play(context.Context, *pcm.Buffer) <-chan error { panic("device unplugged") }

func waitDone(t *testing.T, done <-chan struct{}) {
	t.Helper()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("playback did not finish")
	}
}

func TestPlayerEmptyPayloadIsNoop(t *testing.T) {
	for _, payload := range []string{"", "   "} {
		sink := newGateSink()
		p := NewPlayer(payload, sink)
		assert.False(t, p.Available())

		done, started := p.Trigger(context.Background())
		assert.False(t, started)
		assert.Nil(t, done)
		assert.False(t, p.IsPlaying())
		assert.Zero(t, sink.plays.Load())
	}
}

func TestPlayerLifecycle(t *testing.T) {
	sink := newGateSink()
	payload := pcm.DataURIPrefix + "AAAAAAAAAAA=" // four silent samples
	p := NewPlayer(payload, sink)
	watch := p.Watch()

	done, started := p.Trigger(context.Background())
	require.True(t, started)
	assert.True(t, p.IsPlaying())
	assert.True(t, <-watch)

	buf := sink.last.Load()
	require.NotNil(t, buf)
	assert.Equal(t, pcm.L16Mono24K, buf.Format)
	assert.Equal(t, 4, buf.Frames())

	close(sink.release)
	waitDone(t, done)
	assert.False(t, p.IsPlaying())
	assert.False(t, <-watch)
}

func TestPlayerIgnoresTriggerWhilePlaying(t *testing.T) {
	sink := newGateSink()
	p := NewPlayer("AAAA", sink)

	done, started := p.Trigger(context.Background())
	require.True(t, started)

	again, startedAgain := p.Trigger(context.Background())
	assert.False(t, startedAgain)
	assert.Nil(t, again)

	close(sink.release)
	waitDone(t, done)
	assert.EqualValues(t, 1, sink.plays.Load())

	// A finished player can be replayed.
	done, started = p.Trigger(context.Background())
	require.True(t, started)
	waitDone(t, done)
	assert.EqualValues(t, 2, sink.plays.Load())
}

func TestPlayerConcurrentTriggersStartOnce(t *testing.T) {
	sink := newGateSink()
	p := NewPlayer("AAAA", sink)

	var wg sync.WaitGroup
	var starts atomic.Int32
	dones := make(chan (<-chan struct{}), 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if done, ok := p.Trigger(context.Background()); ok {
				starts.Add(1)
				dones <- done
			}
		}()
	}
	wg.Wait()
	close(dones)

	assert.EqualValues(t, 1, starts.Load())
	close(sink.release)
	for done := range dones {
		waitDone(t, done)
	}
}

func TestPlayerMalformedPayloadPlaysSilence(t *testing.T) {
	sink := newGateSink()
	close(sink.release)
	p := NewPlayer("%%%not-base64", sink)

	done, started := p.Trigger(context.Background())
	require.True(t, started)
	waitDone(t, done)

	buf := sink.last.Load()
	require.NotNil(t, buf)
	assert.Equal(t, 1, buf.Frames())
	assert.True(t, buf.IsSilent())
	assert.False(t, p.IsPlaying())
}

func TestPlayerCancelResetsPlaying(t *testing.T) {
	sink := newGateSink()
	p := NewPlayer("AAAA", sink)

	ctx, cancel := context.WithCancel(context.Background())
	done, started := p.Trigger(ctx)
	require.True(t, started)
	cancel()
	waitDone(t, done)
	assert.False(t, p.IsPlaying())
}

func TestPlayerRecoversFromSinkPanic(t *testing.T) {
	p := NewPlayer("AAAA", panicSink{})
	watch := p.Watch()

	done, started := p.Trigger(context.Background())
	require.True(t, started)
	waitDone(t, done)

	assert.False(t, p.IsPlaying())
	assert.True(t, <-watch)
	assert.False(t, <-watch)
	select {
	case v := <-watch:
		t.Fatalf("unexpected extra transition %v", v)
	default:
	}
}

func TestDeviceSerializesPlays(t *testing.T) {
	var active, peak atomic.Int32
	inner := SinkFunc(func(ctx context.Context, buf *pcm.Buffer) error {
		n := active.Add(1)
		for {
			old := peak.Load()
			if n <= old || peak.CompareAndSwap(old, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		active.Add(-1)
		return nil
	})
	device := NewDevice(inner)

	results := make([]<-chan error, 0, 8)
	for i := 0; i < 8; i++ {
		results = append(results, device.Play(context.Background(), pcm.L16Mono24K.Silence(1)))
	}
	for _, r := range results {
		require.NoError(t, <-r)
	}
	assert.EqualValues(t, 1, peak.Load())
}

func TestDeviceQueuedPlayHonoursCancel(t *testing.T) {
	gate := newGateSink()
	device := NewDevice(gate)

	first := device.Play(context.Background(), pcm.L16Mono24K.Silence(1))

	ctx, cancel := context.WithCancel(context.Background())
	second := device.Play(ctx, pcm.L16Mono24K.Silence(1))
	cancel()
	assert.ErrorIs(t, <-second, context.Canceled)

	close(gate.release)
	assert.NoError(t, <-first)
}

func TestDiscardSinkPacing(t *testing.T) {
	buf := pcm.L16Mono24K.Silence(2400) // 100ms

	start := time.Now()
	require.NoError(t, <-DiscardSink{Pace: true}.Play(context.Background(), buf))
	assert.GreaterOrEqual(t, time.Since(start), 90*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, <-DiscardSink{Pace: true}.Play(ctx, buf), context.Canceled)

	assert.NoError(t, <-DiscardSink{}.Play(context.Background(), buf))
}

func TestWAVSinkWritesStream(t *testing.T) {
	var out bytes.Buffer
	sink := &WAVSink{W: &out}

	require.NoError(t, <-sink.Play(context.Background(), pcm.L16Mono24K.Silence(10)))
	assert.Equal(t, 44+20, out.Len())
	assert.Equal(t, "RIFF", out.String()[:4])
}
