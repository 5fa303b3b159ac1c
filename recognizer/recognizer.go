// Package recognizer is the boundary to the speech-recognition engine. An
// Engine turns a loaded model into Sessions; a Session consumes fixed-size
// PCM frames and reports recognized text at utterance boundaries it detects
// internally. The real engine is Vosk; a scripted fake backs the tests.
package recognizer

import "fmt"

// SessionConfig keys a recognizer session. Sessions are stateful and must
// not be shared across goroutines.
type SessionConfig struct {
	SampleRate      int
	Grammar         string // JSON phrase list from BuildGrammar, "" = unrestricted
	MaxAlternatives int    // 0 = single best result without confidence ranking
}

func (c SessionConfig) validate() error {
	if c.SampleRate <= 0 {
		return fmt.Errorf("sample rate must be positive, got %d", c.SampleRate)
	}
	if c.MaxAlternatives < 0 {
		return fmt.Errorf("max alternatives must not be negative, got %d", c.MaxAlternatives)
	}
	return nil
}

type Engine interface {
	// NewSession builds a recognizer session for the given sample rate and
	// grammar. Construction is expensive; callers create one session per
	// capture pipeline and reuse it across recordings.
	NewSession(cfg SessionConfig) (Session, error)
	Name() string
	Close()
}

type Session interface {
	// AcceptFrame feeds one PCM frame. It returns true when the engine
	// judged the accumulated audio to form a complete utterance, at which
	// point Result returns its transcription.
	AcceptFrame(frame []int16) (bool, error)

	// Result returns the result payload for the utterance just completed.
	Result() string

	// FinalResult flushes and returns any partial utterance; used once when
	// a recording stops.
	FinalResult() string

	Close()
}
