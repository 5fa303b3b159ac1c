// Package encoder converts captured float sample windows into the 16-bit PCM
// representation consumed by the recognizer and the WAV writer.
package encoder

import "math"

const (
	BitsPerSample = 16
	bytesPerSamp  = BitsPerSample / 8
)

// Frame converts a float window in [-1.0, 1.0] to signed 16-bit PCM using
// floor semantics: sample_i16 = floor(sample_f32 * 32767).
//
// Precondition: input samples are within [-1.0, 1.0]. Out-of-range input is
// the caller's bug and is not re-clamped here.
func Frame(window []float32) []int16 {
	out := make([]int16, len(window))
	for i, s := range window {
		out[i] = int16(math.Floor(float64(s) * 32767))
	}
	return out
}

// Bytes serializes a PCM frame as little-endian bytes, the layout the
// recognizer engine and the WAV data chunk share.
func Bytes(frame []int16) []byte {
	out := make([]byte, len(frame)*bytesPerSamp)
	for i, s := range frame {
		out[i*2] = byte(s)
		out[i*2+1] = byte(s >> 8)
	}
	return out
}

// Samples decodes little-endian 16-bit PCM bytes. Trailing odd bytes are
// ignored.
func Samples(pcm []byte) []int16 {
	n := len(pcm) / bytesPerSamp
	out := make([]int16, n)
	for i := 0; i < n; i++ {
		out[i] = int16(pcm[i*2]) | int16(pcm[i*2+1])<<8
	}
	return out
}
