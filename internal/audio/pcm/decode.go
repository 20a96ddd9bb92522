package pcm

import (
	"encoding/base64"
	"encoding/binary"
	"math"
	"strings"
)

// DataURIPrefix is prepended to synthesized payloads so clients can recognise them.
const DataURIPrefix = "data:audio/pcm;base64,"

// StripDataURI removes a leading "data:<mime>;base64," prefix if present.
func StripDataURI(payload string) string {
	payload = strings.TrimSpace(payload)
	if !strings.HasPrefix(payload, "data:") {
		return payload
	}
	if idx := strings.IndexByte(payload, ','); idx >= 0 {
		return payload[idx+1:]
	}
	return ""
}

// DecodeBase64 decodes a standard-alphabet base64 payload, with or without a
// data URI prefix or padding. Malformed input yields an empty slice.
func DecodeBase64(payload string) []byte {
	raw := strings.TrimRight(StripDataURI(payload), "=")
	data, err := base64.RawStdEncoding.DecodeString(raw)
	if err != nil {
		return []byte{}
	}
	return data
}

// Decode reinterprets data as interleaved int16 little-endian samples normalised
// to [-1, 1). Trailing bytes that do not complete a frame are ignored. When no
// whole frame is present a one-frame silent buffer is returned.
func (f Format) Decode(data []byte) *Buffer {
	frames := f.Frames(len(data))
	if frames == 0 {
		return f.Silence(1)
	}

	numChannels := f.NumChannels()
	buf := &Buffer{Format: f, Channels: make([][]float32, numChannels)}
	for c := range buf.Channels {
		buf.Channels[c] = make([]float32, frames)
	}

	for i := 0; i < frames; i++ {
		for c := 0; c < numChannels; c++ {
			offset := (i*numChannels + c) * bytesPerSample
			sample := int16(binary.LittleEndian.Uint16(data[offset:]))
			buf.Channels[c][i] = float32(sample) / 32768.0
		}
	}
	return buf
}

// DecodePayload strips, base64-decodes and decodes a synthesized payload.
func (f Format) DecodePayload(payload string) *Buffer {
	return f.Decode(DecodeBase64(payload))
}

// Encode quantises interleaved samples back to int16 little-endian bytes.
func (f Format) Encode(buf *Buffer) []byte {
	if buf == nil {
		return nil
	}
	return buf.PCM16()
}

// EncodePayload renders raw PCM bytes as a data URI payload.
func EncodePayload(data []byte) string {
	if len(data) == 0 {
		return ""
	}
	return DataURIPrefix + base64.StdEncoding.EncodeToString(data)
}

func quantize(v float32) int16 {
	scaled := math.Round(float64(v) * 32768.0)
	if scaled > math.MaxInt16 {
		return math.MaxInt16
	}
	if scaled < math.MinInt16 {
		return math.MinInt16
	}
	return int16(scaled)
}
