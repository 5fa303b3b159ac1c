package recognizer

import (
	"fmt"
	"os"
	"sync"

	vosk "github.com/alphacep/vosk-api/go"

	"hark/encoder"
)

// VoskEngine wraps a Vosk acoustic model. The model is loaded once per
// process; sessions share it and only hold per-utterance recognizer state.
type VoskEngine struct {
	model *vosk.VoskModel
}

// NewVoskEngine loads the model from a pre-extracted model directory. A
// failure here is fatal for the pipeline: there is no retry path.
func NewVoskEngine(modelDir string) (*VoskEngine, error) {
	if _, err := os.Stat(modelDir); err != nil {
		return nil, fmt.Errorf("model directory %s: %w", modelDir, err)
	}
	model, err := vosk.NewModel(modelDir)
	if err != nil {
		return nil, fmt.Errorf("loading model from %s: %w", modelDir, err)
	}
	return &VoskEngine{model: model}, nil
}

func (e *VoskEngine) Name() string { return "vosk" }

func (e *VoskEngine) NewSession(cfg SessionConfig) (Session, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	var rec *vosk.VoskRecognizer
	var err error
	if cfg.Grammar != "" {
		rec, err = vosk.NewRecognizerGrm(e.model, float64(cfg.SampleRate), cfg.Grammar)
	} else {
		rec, err = vosk.NewRecognizer(e.model, float64(cfg.SampleRate))
	}
	if err != nil {
		return nil, fmt.Errorf("creating recognizer: %w", err)
	}
	if cfg.MaxAlternatives > 0 {
		rec.SetMaxAlternatives(cfg.MaxAlternatives)
	}
	return &voskSession{rec: rec}, nil
}

func (e *VoskEngine) Close() {
	if e.model != nil {
		e.model.Free()
		e.model = nil
	}
}

type voskSession struct {
	mu  sync.Mutex
	rec *vosk.VoskRecognizer
}

func (s *voskSession) AcceptFrame(frame []int16) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.rec == nil {
		return false, fmt.Errorf("session closed")
	}
	return s.rec.AcceptWaveform(encoder.Bytes(frame)) != 0, nil
}

func (s *voskSession) Result() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.rec == nil {
		return ""
	}
	return s.rec.Result()
}

func (s *voskSession) FinalResult() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.rec == nil {
		return ""
	}
	res := s.rec.FinalResult()
	// Reset so the session can serve the next recording.
	s.rec.Reset()
	return res
}

func (s *voskSession) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.rec != nil {
		s.rec.Free()
		s.rec = nil
	}
}
