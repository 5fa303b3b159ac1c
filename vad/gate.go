// Package vad decides, window by window, whether captured audio counts as
// speech. The Gate combines a pluggable per-window Detector with a
// silence-timeout state machine, so brief in-utterance dips below the
// threshold keep the gate open until the timeout fires.
package vad

import "time"

type State int

const (
	Silent State = iota
	Speaking
)

func (s State) String() string {
	if s == Speaking {
		return "speaking"
	}
	return "silent"
}

// Event marks a one-shot state edge. Start fires on Silent→Speaking; End
// fires on Speaking→Silent after speech had been detected at least once.
type Event int

const (
	EventNone Event = iota
	EventSpeechStart
	EventSpeechEnd
)

// Detector reports whether a single window contains speech right now.
type Detector interface {
	IsSpeech(window []float32) bool
}

// Amplitude is the default detector: peak absolute amplitude against a
// threshold in [0, 1].
type Amplitude struct {
	Threshold float32
}

func (a Amplitude) IsSpeech(window []float32) bool {
	var peak float32
	for _, s := range window {
		if s < 0 {
			s = -s
		}
		if s > peak {
			peak = s
		}
	}
	return peak >= a.Threshold
}

type Gate struct {
	detector Detector
	timeout  time.Duration
	enabled  bool
	clock    func() time.Time

	state     State
	lastVoice time.Time
}

// NewGate builds a gate. With enabled false the gate is a passthrough: every
// window evaluates as Speaking and only the initial start edge is emitted.
func NewGate(detector Detector, silenceTimeout time.Duration, enabled bool) *Gate {
	return &Gate{
		detector: detector,
		timeout:  silenceTimeout,
		enabled:  enabled,
		clock:    time.Now,
	}
}

// Evaluate classifies one window and returns the resulting state plus any
// edge event. State flips to Silent only after the silence timeout has
// elapsed since the last detected voice, and it flips exactly once per run.
func (g *Gate) Evaluate(window []float32) (State, Event) {
	if !g.enabled {
		return g.transition(Speaking)
	}

	now := g.clock()
	if g.detector.IsSpeech(window) {
		g.lastVoice = now
		return g.transition(Speaking)
	}

	if g.state == Speaking && now.Sub(g.lastVoice) > g.timeout {
		return g.transition(Silent)
	}
	return g.state, EventNone
}

func (g *Gate) transition(to State) (State, Event) {
	from := g.state
	g.state = to
	switch {
	case from == Silent && to == Speaking:
		return to, EventSpeechStart
	case from == Speaking && to == Silent:
		return to, EventSpeechEnd
	}
	return to, EventNone
}

// Forwarding reports whether frames should be handed to the encoder: true
// for the whole contiguous speech run, including sub-threshold dips that
// have not yet outlasted the timeout. Silence before the first utterance is
// never forwarded.
func (g *Gate) Forwarding() bool {
	return g.state == Speaking
}

func (g *Gate) State() State {
	return g.state
}

// Reset returns the gate to Silent for a fresh recording.
func (g *Gate) Reset() {
	g.state = Silent
	g.lastVoice = time.Time{}
	if r, ok := g.detector.(interface{ Reset() }); ok {
		r.Reset()
	}
}
