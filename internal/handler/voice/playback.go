package voice

import (
	"context"
	"time"

	"github.com/aisuru/companion/backend/internal/audio/pcm"
	"github.com/aisuru/companion/backend/internal/audio/playback"
)

// play 播放 turnID 的语音。每条回复在连接期间只有一个播放控制，
// 播放中重复的请求会被忽略。
func (c *connection) play(turnID string) {
	player, err := c.player(turnID)
	if err != nil {
		c.sendError(err.Error(), 0)
		return
	}
	if _, started := player.Trigger(c.ctx); !started {
		c.logger.Debug().Str("turn", turnID).Msg("playback already in flight")
	}
}

func (c *connection) player(turnID string) (*playback.Player, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if p, ok := c.players[turnID]; ok {
		return p, nil
	}

	turn, ok := c.sess.Turn(turnID)
	if !ok {
		return nil, errTurnNotFound
	}
	p := playback.NewPlayer(turn.AudioRef, c.device,
		playback.WithFormat(c.opts.Format),
		playback.WithLogger(c.logger.With().Str("turn", turnID).Logger()),
	)
	if !p.Available() {
		return nil, errNoVoice
	}
	c.players[turnID] = p
	go c.watchPlayer(turnID, p.Watch())
	return p, nil
}

func (c *connection) watchPlayer(turnID string, updates <-chan bool) {
	for {
		select {
		case <-c.ctx.Done():
			return
		case playing := <-updates:
			c.writeJSON(TypePlayback, PlaybackData{TurnID: turnID, Playing: playing})
		}
	}
}

// frameSink 将音频缓冲以二进制 PCM16 帧写入连接
type frameSink struct {
	conn *connection
}

// Play 实现 playback.Sink。
func (s *frameSink) Play(ctx context.Context, buf *pcm.Buffer) <-chan error {
	return playback.SinkFunc(s.stream).Play(ctx, buf)
}

func (s *frameSink) stream(ctx context.Context, buf *pcm.Buffer) error {
	c := s.conn
	c.writeJSON(TypeAudio, AudioData{
		SampleRate: buf.Format.Rate(),
		Channels:   buf.Format.NumChannels(),
		Frames:     buf.Frames(),
	})

	data := buf.PCM16()
	step := buf.Format.BytesInDuration(c.opts.Chunk)
	if step <= 0 {
		step = len(data)
	}
	for off := 0; off < len(data); off += step {
		if err := ctx.Err(); err != nil {
			return err
		}
		end := min(off+step, len(data))
		if err := c.writeBinary(data[off:end]); err != nil {
			return err
		}
		if c.opts.Pace {
			if err := wait(ctx, buf.Format.Duration(buf.Format.Frames(end-off))); err != nil {
				return err
			}
		}
	}
	return nil
}

func wait(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
