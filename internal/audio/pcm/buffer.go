package pcm

import (
	"encoding/binary"
	"io"
	"time"

	"github.com/pkg/errors"
)

// Buffer holds decoded samples, one slice per channel.
type Buffer struct {
	Format   Format
	Channels [][]float32
}

// Frames returns the number of samples per channel.
func (b *Buffer) Frames() int {
	if b == nil || len(b.Channels) == 0 {
		return 0
	}
	return len(b.Channels[0])
}

// Duration returns the play time of the buffer.
func (b *Buffer) Duration() time.Duration {
	if b == nil {
		return 0
	}
	return b.Format.Duration(b.Frames())
}

// IsSilent reports whether every sample is zero.
func (b *Buffer) IsSilent() bool {
	if b == nil {
		return true
	}
	for _, ch := range b.Channels {
		for _, v := range ch {
			if v != 0 {
				return false
			}
		}
	}
	return true
}

// PCM16 interleaves and re-quantises the buffer into int16 little-endian bytes.
func (b *Buffer) PCM16() []byte {
	frames := b.Frames()
	numChannels := len(b.Channels)
	out := make([]byte, frames*numChannels*bytesPerSample)
	for i := 0; i < frames; i++ {
		for c := 0; c < numChannels; c++ {
			offset := (i*numChannels + c) * bytesPerSample
			binary.LittleEndian.PutUint16(out[offset:], uint16(quantize(b.Channels[c][i])))
		}
	}
	return out
}

type wavHeader struct {
	RIFF          [4]byte
	FileSize      uint32
	WAVE          [4]byte
	FmtID         [4]byte
	FmtSize       uint32
	AudioFormat   uint16
	NumChannels   uint16
	SampleRate    uint32
	ByteRate      uint32
	BlockAlign    uint16
	BitsPerSample uint16
	DataID        [4]byte
	DataSize      uint32
}

// WriteWAV writes the buffer as a 16-bit PCM RIFF/WAVE stream.
func (b *Buffer) WriteWAV(w io.Writer) error {
	data := b.PCM16()
	numChannels := len(b.Channels)
	if numChannels == 0 {
		numChannels = 1
	}
	rate := b.Format.Rate()
	blockAlign := numChannels * bytesPerSample

	header := wavHeader{
		RIFF:          [4]byte{'R', 'I', 'F', 'F'},
		FileSize:      uint32(36 + len(data)),
		WAVE:          [4]byte{'W', 'A', 'V', 'E'},
		FmtID:         [4]byte{'f', 'm', 't', ' '},
		FmtSize:       16,
		AudioFormat:   1,
		NumChannels:   uint16(numChannels),
		SampleRate:    uint32(rate),
		ByteRate:      uint32(rate * blockAlign),
		BlockAlign:    uint16(blockAlign),
		BitsPerSample: bitDepth,
		DataID:        [4]byte{'d', 'a', 't', 'a'},
		DataSize:      uint32(len(data)),
	}
	if err := binary.Write(w, binary.LittleEndian, header); err != nil {
		return errors.Wrap(err, "write wav header")
	}
	if _, err := w.Write(data); err != nil {
		return errors.Wrap(err, "write wav data")
	}
	return nil
}
