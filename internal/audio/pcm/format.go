package pcm

import (
	"fmt"
	"time"
)

// Format describes interleaved signed 16-bit PCM.
type Format struct {
	SampleRate int `json:"sampleRate"`
	Channels   int `json:"channels"`
}

// L16Mono24K is audio/L16; rate=24000; channels=1, the speech synthesis output format.
var L16Mono24K = Format{SampleRate: 24000, Channels: 1}

const (
	bytesPerSample = 2
	bitDepth       = 16
)

// NumChannels returns the channel count, treating a zero value as mono.
func (f Format) NumChannels() int {
	if f.Channels < 1 {
		return 1
	}
	return f.Channels
}

// Rate returns the sample rate, treating a zero value as 24 kHz.
func (f Format) Rate() int {
	if f.SampleRate < 1 {
		return L16Mono24K.SampleRate
	}
	return f.SampleRate
}

// BytesPerFrame returns the size of one sample across all channels.
func (f Format) BytesPerFrame() int {
	return bytesPerSample * f.NumChannels()
}

// Frames returns how many whole frames fit in n bytes.
func (f Format) Frames(n int) int {
	return n / bytesPerSample / f.NumChannels()
}

// Duration returns the play time of the given number of frames.
func (f Format) Duration(frames int) time.Duration {
	return time.Duration(frames) * time.Second / time.Duration(f.Rate())
}

// BytesInDuration returns the number of bytes covering d.
func (f Format) BytesInDuration(d time.Duration) int {
	frames := int(time.Duration(f.Rate()) * d / time.Second)
	return frames * f.BytesPerFrame()
}

// Silence returns a zeroed buffer of the given length, at least one frame.
func (f Format) Silence(frames int) *Buffer {
	if frames < 1 {
		frames = 1
	}
	channels := make([][]float32, f.NumChannels())
	for i := range channels {
		channels[i] = make([]float32, frames)
	}
	return &Buffer{Format: f, Channels: channels}
}

func (f Format) String() string {
	return fmt.Sprintf("audio/L16; rate=%d; channels=%d", f.Rate(), f.NumChannels())
}
