// Package capture owns the recording pipeline: the tick-driven capture
// session draining the ring buffer, the recognition worker on its own
// goroutine, and the observer registry that surfaces events to the caller.
package capture

import (
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"hark/audio"
	"hark/encoder"
	"hark/log"
	"hark/metrics"
	"hark/queue"
	"hark/vad"
)

type State int32

const (
	Idle State = iota
	Recording
	StoppingFlush
	Stopped
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Recording:
		return "recording"
	case StoppingFlush:
		return "stopping"
	default:
		return "stopped"
	}
}

// Config is immutable for the life of a recording. Starting with a different
// config while recording stops the current recording first and restarts with
// the new parameters once finalization completes.
type Config struct {
	SampleRate  int           // Hz, > 0
	FrameLength int           // samples per frame, > 0
	Channels    int           // defaults to mono
	AutoDetect  bool          // gate frames on detected speech
	Threshold   float32       // minimum speaking amplitude, [0, 1]
	Silence     time.Duration // speech-run timeout, >= 0
	MaxDuration time.Duration // recording cap, 0 = uncapped
	OutputDir   string        // WAV destination directory
	BaseName    string        // WAV filename prefix

	// Detector overrides the amplitude detector, e.g. with the WebRTC VAD.
	Detector vad.Detector
}

func (c Config) Validate() error {
	if c.SampleRate <= 0 {
		return fmt.Errorf("sample rate must be positive, got %d", c.SampleRate)
	}
	if c.FrameLength <= 0 {
		return fmt.Errorf("frame length must be positive, got %d", c.FrameLength)
	}
	if c.Threshold < 0 || c.Threshold > 1 {
		return fmt.Errorf("speaking threshold must be in [0, 1], got %f", c.Threshold)
	}
	if c.Silence < 0 {
		return fmt.Errorf("silence timeout must not be negative, got %v", c.Silence)
	}
	if c.MaxDuration < 0 {
		return fmt.Errorf("max duration must not be negative, got %v", c.MaxDuration)
	}
	return nil
}

func (c Config) channels() int {
	if c.Channels <= 0 {
		return 1
	}
	return c.Channels
}

// equivalent ignores the detector: a restart is needed only when device
// parameters change.
func (c Config) equivalent(o Config) bool {
	return c.SampleRate == o.SampleRate &&
		c.FrameLength == o.FrameLength &&
		c.channels() == o.channels() &&
		c.AutoDetect == o.AutoDetect &&
		c.Threshold == o.Threshold &&
		c.Silence == o.Silence &&
		c.MaxDuration == o.MaxDuration
}

// Session drives one capture device. Start, Stop and IsRecording may be
// called from any goroutine; Tick must be called from a single goroutine at
// the caller's scheduling cadence and performs all sample processing.
type Session struct {
	ctx    audio.Context
	dev    *audio.DeviceInfo
	frames *queue.FIFO[[]int16]
	events *Notifier
	stats  *metrics.Metrics

	state atomic.Int32
	stop  atomic.Bool

	mu      sync.Mutex
	pending *Config // one-shot restart continuation, newest wins

	// Owned by the Tick goroutine while not Idle.
	cfg     Config
	device  audio.CaptureDevice
	ring    *audio.Ring
	reader  *audio.Reader
	gate    *vad.Gate
	window  []float32
	samples []float32 // live recording buffer, append-only
}

func NewSession(ctx audio.Context, dev *audio.DeviceInfo, frames *queue.FIFO[[]int16], events *Notifier, stats *metrics.Metrics) *Session {
	if events == nil {
		events = NewNotifier()
	}
	return &Session{
		ctx:    ctx,
		dev:    dev,
		frames: frames,
		events: events,
		stats:  stats,
	}
}

// Start begins recording with cfg. While already recording, an equivalent
// config is a no-op; a differing config requests a stop and queues a
// restart that fires once finalization completes. Only one restart may be
// pending; newer requests replace it.
func (s *Session) Start(cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	// The Idle check, the pending store and the stop request happen under
	// one lock so a concurrent finalize cannot consume pending in between
	// and leave the continuation to fire after some later recording.
	s.mu.Lock()
	if State(s.state.Load()) != Idle {
		if cfg.equivalent(s.cfg) && !s.stop.Load() {
			s.mu.Unlock()
			log.Info("start ignored: already recording with same config")
			return nil
		}
		s.pending = &cfg
		s.Stop()
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	return s.begin(cfg)
}

func (s *Session) begin(cfg Config) error {
	device, err := s.ctx.NewCapture(s.dev, audio.CaptureConfig{
		SampleRate: uint32(cfg.SampleRate),
		Channels:   uint32(cfg.channels()),
	})
	if err != nil {
		s.events.emitStatus(fmt.Sprintf("capture device error: %v", err))
		return fmt.Errorf("opening capture device: %w", err)
	}

	detector := cfg.Detector
	if detector == nil {
		detector = vad.Amplitude{Threshold: cfg.Threshold}
	}

	// Ring sized for one second of audio: ample headroom for a tick cadence
	// in the tens of milliseconds.
	ring := audio.NewRing(cfg.SampleRate * cfg.channels())

	s.mu.Lock()
	s.cfg = cfg
	s.mu.Unlock()
	s.device = device
	s.ring = ring
	s.reader = audio.NewReader(ring)
	s.gate = vad.NewGate(detector, cfg.Silence, cfg.AutoDetect)
	s.window = make([]float32, cfg.FrameLength)
	s.samples = s.samples[:0]
	s.stop.Store(false)

	device.SetCallback(func(data []byte, _ uint32) {
		ring.WritePCM(data)
	})
	if err := device.Start(); err != nil {
		device.ClearCallback()
		device.Close()
		s.device = nil
		s.events.emitStatus(fmt.Sprintf("capture start error: %v", err))
		return fmt.Errorf("starting capture: %w", err)
	}

	s.state.Store(int32(Recording))
	log.SessionStart("capture", device.DeviceName(), cfg.SampleRate)
	s.events.emitStatus("recording started")
	return nil
}

// Stop requests the recording to end. It is idempotent and a no-op when not
// recording. Finalization happens on the next Tick; IsRecording stays true
// until it completes.
func (s *Session) Stop() {
	if s.state.CompareAndSwap(int32(Recording), int32(StoppingFlush)) {
		s.stop.Store(true)
		log.Info("recording_stop_requested")
	}
}

// IsRecording reports whether the session holds the capture device,
// including the finalization window between a stop request and the flush.
func (s *Session) IsRecording() bool {
	st := State(s.state.Load())
	return st == Recording || st == StoppingFlush
}

func (s *Session) State() State {
	return State(s.state.Load())
}

// recordedSeconds reports the length of the live buffer, in seconds.
func (s *Session) recordedSeconds() float64 {
	return float64(len(s.samples)) / float64(s.cfg.SampleRate*s.cfg.channels())
}

// Tick drains every complete window currently available, gates and publishes
// speech frames, and performs finalization when a stop was requested. It
// never blocks on the device.
func (s *Session) Tick() {
	switch State(s.state.Load()) {
	case Idle, Stopped:
		return
	}

	s.drain()

	if s.cfg.MaxDuration > 0 && s.recordedSeconds() >= s.cfg.MaxDuration.Seconds() {
		if s.state.CompareAndSwap(int32(Recording), int32(StoppingFlush)) {
			s.stop.Store(true)
			log.Info("max_duration_reached")
			s.events.emitStatus("maximum recording duration reached")
		}
	}

	if s.stop.Load() {
		s.finalize()
	}
}

// drain consumes full frame-length windows until fewer than one remains. A
// partial window stays in the ring for the next tick.
func (s *Session) drain() {
	for s.reader.ReadWindow(s.window) {
		s.stats.IncWindowsRead()
		s.samples = append(s.samples, s.window...)

		_, event := s.gate.Evaluate(s.window)
		switch event {
		case vad.EventSpeechStart:
			log.Info("speech_start")
			s.events.emitSpeaking(true)
		case vad.EventSpeechEnd:
			log.Info("speech_end")
			s.events.emitSpeaking(false)
		}

		if s.gate.Forwarding() {
			s.frames.Enqueue(encoder.Frame(s.window))
			s.stats.IncFramesPublished()
		}
		s.stats.SetFrameQueueDepth(s.frames.Len())
		s.stats.SetAudioLevel(rms(s.window))
	}
}

// finalize persists the live buffer, releases the device, clears in-memory
// state and, when a restart continuation is pending, starts over with the
// new config.
func (s *Session) finalize() {
	if len(s.samples) > 0 {
		path := encoder.TimestampedPath(s.cfg.OutputDir, s.cfg.BaseName)
		if err := encoder.WriteWAV(path, s.samples, s.cfg.channels(), s.cfg.SampleRate); err != nil {
			// Recording is lost but the pipeline stays usable.
			log.Errorf("wav write failed: %v", err)
			s.events.emitStatus(fmt.Sprintf("failed to save recording: %v", err))
		} else {
			log.RecordingSaved(path, s.recordedSeconds())
			s.stats.IncWAVWritten()
			s.events.emitSaved(path)
		}
	}

	s.device.Stop()
	s.device.ClearCallback()
	s.device.Close()
	s.device = nil
	s.ring = nil
	s.reader = nil
	s.gate = nil
	s.samples = nil
	s.stop.Store(false)

	s.mu.Lock()
	s.state.Store(int32(Idle))
	pending := s.pending
	s.pending = nil
	s.mu.Unlock()
	s.events.emitStatus("recording stopped")
	if pending != nil {
		log.Info("restarting with pending config")
		if err := s.begin(*pending); err != nil {
			log.Errorf("pending restart failed: %v", err)
		}
	}
}

func rms(window []float32) float64 {
	if len(window) == 0 {
		return 0
	}
	var sum float64
	for _, v := range window {
		sum += float64(v) * float64(v)
	}
	return math.Sqrt(sum / float64(len(window)))
}
