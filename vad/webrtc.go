package vad

import (
	"fmt"

	webrtcvad "github.com/maxhawkins/go-webrtcvad"

	"hark/encoder"
)

const (
	webrtcMode     = 3
	webrtcFrameMs  = 20
	webrtcDebounce = 3 // consecutive speech frames to confirm voice
)

// WebRTC wraps the WebRTC voice activity detector as a Gate detector. It
// re-frames arbitrary window sizes into the fixed 20ms chunks the detector
// requires, carrying the remainder between calls.
type WebRTC struct {
	vad        *webrtcvad.VAD
	sampleRate int
	frameBytes int

	buf       []byte
	speechRun int
	confirmed bool
}

func NewWebRTC(sampleRate int) (*WebRTC, error) {
	v, err := webrtcvad.New()
	if err != nil {
		return nil, fmt.Errorf("webrtcvad init: %w", err)
	}
	if err := v.SetMode(webrtcMode); err != nil {
		return nil, fmt.Errorf("webrtcvad mode: %w", err)
	}
	return &WebRTC{
		vad:        v,
		sampleRate: sampleRate,
		frameBytes: sampleRate * webrtcFrameMs / 1000 * 2,
	}, nil
}

func (w *WebRTC) IsSpeech(window []float32) bool {
	w.buf = append(w.buf, encoder.Bytes(encoder.Frame(window))...)

	voice := false
	for len(w.buf) >= w.frameBytes {
		chunk := w.buf[:w.frameBytes]
		w.buf = w.buf[w.frameBytes:]

		active, err := w.vad.Process(w.sampleRate, chunk)
		if err != nil {
			continue
		}
		if !active {
			w.speechRun = 0
			continue
		}
		w.speechRun++
		if w.confirmed || w.speechRun >= webrtcDebounce {
			w.confirmed = true
			voice = true
		}
	}
	return voice
}

func (w *WebRTC) Reset() {
	w.buf = w.buf[:0]
	w.speechRun = 0
	w.confirmed = false
}
