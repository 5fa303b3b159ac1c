package recognizer

import (
	"fmt"
	"sync"
)

// FakeEngine is a scripted engine for pipeline tests: it reports an
// utterance boundary every BoundaryEvery frames and replays canned result
// payloads in order.
type FakeEngine struct {
	BoundaryEvery int      // frames per utterance; 0 = boundaries never fire
	Results       []string // payloads returned at successive boundaries
	FinalPayload  string   // payload for FinalResult
	FailSession   error    // returned by NewSession when non-nil

	mu       sync.Mutex
	sessions int
}

func (e *FakeEngine) Name() string { return "fake" }

func (e *FakeEngine) NewSession(cfg SessionConfig) (Session, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if e.FailSession != nil {
		return nil, e.FailSession
	}
	e.mu.Lock()
	e.sessions++
	e.mu.Unlock()
	return &fakeSession{engine: e}, nil
}

// Sessions reports how many sessions were constructed; the worker contract
// allows exactly one.
func (e *FakeEngine) Sessions() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sessions
}

func (e *FakeEngine) Close() {}

type fakeSession struct {
	engine *FakeEngine

	mu         sync.Mutex
	frames     int
	boundaries int
	closed     bool
	FrameLens  []int
}

func (s *fakeSession) AcceptFrame(frame []int16) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false, fmt.Errorf("session closed")
	}
	s.frames++
	s.FrameLens = append(s.FrameLens, len(frame))
	if s.engine.BoundaryEvery > 0 && s.frames%s.engine.BoundaryEvery == 0 {
		return true, nil
	}
	return false, nil
}

func (s *fakeSession) Result() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.boundaries < len(s.engine.Results) {
		res := s.engine.Results[s.boundaries]
		s.boundaries++
		return res
	}
	s.boundaries++
	return `{"text":""}`
}

func (s *fakeSession) FinalResult() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.engine.FinalPayload != "" {
		return s.engine.FinalPayload
	}
	return `{"text":""}`
}

func (s *fakeSession) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
}
