// Package pcm decodes the base64 PCM payloads produced by speech synthesis into
// sample buffers ready for playback.
//
// Payloads carry signed 16-bit little-endian samples, optionally behind a data
// URI prefix:
//
//	data:audio/pcm;base64,AAABAP//...
//
// Decoding never fails. Malformed base64 yields no bytes, and a payload with no
// whole frame yields a one-frame silent buffer, so playback code always gets a
// buffer to work with.
//
//	buf := pcm.L16Mono24K.DecodePayload(turn.AudioRef)
//	_ = buf.WriteWAV(w)
package pcm
