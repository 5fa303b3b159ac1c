package capture

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"hark/audio"
	"hark/encoder"
	"hark/queue"
	"hark/vad"
)

// tonePCM renders a 440 Hz sine as little-endian 16-bit PCM.
func tonePCM(samples, sampleRate int, amplitude float64) []byte {
	frame := make([]int16, samples)
	for i := range frame {
		frame[i] = int16(amplitude * math.Sin(2*math.Pi*440*float64(i)/float64(sampleRate)))
	}
	return encoder.Bytes(frame)
}

func testConfig(dir string) Config {
	return Config{
		SampleRate:  16000,
		FrameLength: 512,
		AutoDetect:  false,
		Silence:     time.Second,
		OutputDir:   dir,
		BaseName:    "rec",
	}
}

func tickUntilIdle(t *testing.T, s *Session) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for s.IsRecording() {
		s.Tick()
		select {
		case <-deadline:
			t.Fatal("session did not finalize")
		case <-time.After(time.Millisecond):
		}
	}
}

func TestSessionRecordStopSavesWAV(t *testing.T) {
	const clipSamples = 8000 // half a second at 16 kHz
	pcm := tonePCM(clipSamples, 16000, 12000)
	ctx := audio.NewFakeContext(pcm, 16000, false)

	dir := t.TempDir()
	frames := queue.New[[]int16]()
	events := NewNotifier()
	var saved []string
	events.OnSaved(func(path string) { saved = append(saved, path) })

	s := NewSession(ctx, nil, frames, events, nil)
	if err := s.Start(testConfig(dir)); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if !s.IsRecording() {
		t.Fatal("not recording after Start")
	}

	s.Tick()
	if frames.Len() < clipSamples/512 {
		t.Fatalf("frames published = %d, want at least %d", frames.Len(), clipSamples/512)
	}

	s.Stop()
	tickUntilIdle(t, s)

	if len(saved) != 1 {
		t.Fatalf("saved events = %d, want 1", len(saved))
	}
	if got := filepath.Dir(saved[0]); got != dir {
		t.Errorf("recording dir = %q, want %q", got, dir)
	}

	data, err := os.ReadFile(saved[0])
	if err != nil {
		t.Fatalf("reading recording: %v", err)
	}
	samples, rate, channels, err := encoder.DecodeWAV(data)
	if err != nil {
		t.Fatalf("decoding recording: %v", err)
	}
	if rate != 16000 || channels != 1 {
		t.Errorf("rate, channels = %d, %d, want 16000, 1", rate, channels)
	}
	if len(samples) < clipSamples-512 {
		t.Fatalf("recording has %d samples, want at least %d", len(samples), clipSamples-512)
	}

	// The head of the recording is the tone itself, within quantization of
	// the float round trip.
	tone := encoder.Samples(pcm)
	for i := 0; i < 100; i++ {
		diff := int(samples[i]) - int(tone[i])
		if diff < -2 || diff > 2 {
			t.Fatalf("sample %d = %d, want %d within 2", i, samples[i], tone[i])
		}
	}

	// The first published frame matches the head of the clip too.
	frame, ok := frames.TryDequeue()
	if !ok {
		t.Fatal("no frame in queue")
	}
	if len(frame) != 512 {
		t.Fatalf("frame length = %d, want 512", len(frame))
	}
	diff := int(frame[1]) - int(tone[1])
	if diff < -2 || diff > 2 {
		t.Errorf("frame[1] = %d, want %d within 2", frame[1], tone[1])
	}
}

func TestStartWhileRecordingSameConfigIsNoop(t *testing.T) {
	ctx := audio.NewFakeContext(tonePCM(1024, 16000, 8000), 16000, false)
	events := NewNotifier()
	started := 0
	events.OnStatus(func(msg string) {
		if msg == "recording started" {
			started++
		}
	})

	s := NewSession(ctx, nil, queue.New[[]int16](), events, nil)
	cfg := testConfig(t.TempDir())
	if err := s.Start(cfg); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := s.Start(cfg); err != nil {
		t.Fatalf("second Start: %v", err)
	}

	if started != 1 {
		t.Errorf("recording started %d times, want 1", started)
	}
	if s.State() != Recording {
		t.Errorf("state = %s, want recording", s.State())
	}

	s.Stop()
	tickUntilIdle(t, s)
}

func TestStartWhileRecordingNewConfigRestarts(t *testing.T) {
	ctx := audio.NewFakeContext(tonePCM(2048, 16000, 8000), 16000, false)
	events := NewNotifier()
	started := 0
	events.OnStatus(func(msg string) {
		if msg == "recording started" {
			started++
		}
	})

	s := NewSession(ctx, nil, queue.New[[]int16](), events, nil)
	dir := t.TempDir()
	cfgA := testConfig(dir)
	cfgB := testConfig(dir)
	cfgB.FrameLength = 256

	if err := s.Start(cfgA); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := s.Start(cfgB); err != nil {
		t.Fatalf("restart Start: %v", err)
	}
	if !s.stop.Load() {
		t.Fatal("differing config did not request a stop")
	}

	s.Tick() // finalizes the first recording and begins with cfgB

	if s.State() != Recording {
		t.Fatalf("state after restart = %s, want recording", s.State())
	}
	if started != 2 {
		t.Errorf("recording started %d times, want 2", started)
	}
	if got := s.cfg.FrameLength; got != 256 {
		t.Errorf("frame length after restart = %d, want 256", got)
	}

	s.Stop()
	tickUntilIdle(t, s)
}

func TestRestartLeavesNoStalePending(t *testing.T) {
	ctx := audio.NewFakeContext(tonePCM(2048, 16000, 8000), 16000, false)
	events := NewNotifier()
	started := 0
	events.OnStatus(func(msg string) {
		if msg == "recording started" {
			started++
		}
	})

	s := NewSession(ctx, nil, queue.New[[]int16](), events, nil)
	dir := t.TempDir()
	cfgA := testConfig(dir)
	cfgB := testConfig(dir)
	cfgB.FrameLength = 256

	if err := s.Start(cfgA); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := s.Start(cfgB); err != nil {
		t.Fatalf("restart Start: %v", err)
	}
	s.Tick() // finalize + restart with cfgB

	s.mu.Lock()
	stale := s.pending
	s.mu.Unlock()
	if stale != nil {
		t.Fatal("pending config left behind after restart fired")
	}

	// A later full stop must not resurrect the continuation.
	s.Stop()
	tickUntilIdle(t, s)
	if s.State() != Idle {
		t.Fatalf("state = %s, want idle", s.State())
	}
	if started != 2 {
		t.Errorf("recording started %d times, want 2", started)
	}
}

func TestStopIsIdempotent(t *testing.T) {
	ctx := audio.NewFakeContext(tonePCM(1024, 16000, 8000), 16000, false)
	events := NewNotifier()
	var saved int
	events.OnSaved(func(string) { saved++ })

	s := NewSession(ctx, nil, queue.New[[]int16](), events, nil)
	if err := s.Start(testConfig(t.TempDir())); err != nil {
		t.Fatalf("Start: %v", err)
	}

	s.Stop()
	s.Stop()
	tickUntilIdle(t, s)
	s.Tick() // no-op once idle

	if saved != 1 {
		t.Errorf("recordings saved = %d, want 1", saved)
	}
	if s.State() != Idle {
		t.Errorf("state = %s, want idle", s.State())
	}
}

func TestAutoDetectGatesSilence(t *testing.T) {
	silence := make([]byte, 8000*2)
	ctx := audio.NewFakeContext(silence, 16000, false)
	events := NewNotifier()
	spoke := false
	events.OnSpeaking(func(bool) { spoke = true })

	frames := queue.New[[]int16]()
	s := NewSession(ctx, nil, frames, events, nil)
	cfg := testConfig(t.TempDir())
	cfg.AutoDetect = true
	cfg.Threshold = 0.1
	if err := s.Start(cfg); err != nil {
		t.Fatalf("Start: %v", err)
	}

	s.Tick()

	if frames.Len() != 0 {
		t.Errorf("silence published %d frames, want 0", frames.Len())
	}
	if spoke {
		t.Error("speaking event fired for silence")
	}

	s.Stop()
	tickUntilIdle(t, s)
}

func TestAutoDetectForwardsSpeech(t *testing.T) {
	ctx := audio.NewFakeContext(tonePCM(8000, 16000, 12000), 16000, false)
	events := NewNotifier()
	var speaking []bool
	events.OnSpeaking(func(on bool) { speaking = append(speaking, on) })

	frames := queue.New[[]int16]()
	s := NewSession(ctx, nil, frames, events, nil)
	cfg := testConfig(t.TempDir())
	cfg.AutoDetect = true
	cfg.Threshold = 0.1
	if err := s.Start(cfg); err != nil {
		t.Fatalf("Start: %v", err)
	}

	s.Tick()

	if frames.Len() == 0 {
		t.Error("no frames published for speech")
	}
	if len(speaking) == 0 || !speaking[0] {
		t.Errorf("speaking events = %v, want leading true", speaking)
	}

	s.Stop()
	tickUntilIdle(t, s)
}

func TestMaxDurationStopsRecording(t *testing.T) {
	ctx := audio.NewFakeContext(tonePCM(8000, 16000, 8000), 16000, false)
	events := NewNotifier()
	var saved int
	var statuses []string
	events.OnSaved(func(string) { saved++ })
	events.OnStatus(func(msg string) { statuses = append(statuses, msg) })

	s := NewSession(ctx, nil, queue.New[[]int16](), events, nil)
	cfg := testConfig(t.TempDir())
	cfg.MaxDuration = 100 * time.Millisecond
	if err := s.Start(cfg); err != nil {
		t.Fatalf("Start: %v", err)
	}

	tickUntilIdle(t, s)

	if saved != 1 {
		t.Fatalf("recordings saved = %d, want 1", saved)
	}
	found := false
	for _, msg := range statuses {
		if msg == "maximum recording duration reached" {
			found = true
		}
	}
	if !found {
		t.Errorf("no max-duration status, got %v", statuses)
	}
}

func TestStartValidatesConfig(t *testing.T) {
	s := NewSession(audio.NewFakeContext(nil, 16000, false), nil, queue.New[[]int16](), nil, nil)

	bad := []Config{
		{SampleRate: 0, FrameLength: 512},
		{SampleRate: 16000, FrameLength: 0},
		{SampleRate: 16000, FrameLength: 512, Threshold: 1.5},
		{SampleRate: 16000, FrameLength: 512, Silence: -time.Second},
		{SampleRate: 16000, FrameLength: 512, MaxDuration: -time.Second},
	}
	for i, cfg := range bad {
		if err := s.Start(cfg); err == nil {
			t.Errorf("config %d accepted, want error", i)
			s.Stop()
			tickUntilIdle(t, s)
		}
	}
}

type failingContext struct{}

func (failingContext) Devices() ([]audio.DeviceInfo, error) { return nil, nil }
func (failingContext) Close()                               {}
func (failingContext) NewCapture(*audio.DeviceInfo, audio.CaptureConfig) (audio.CaptureDevice, error) {
	return nil, errors.New("no such device")
}

func TestStartDeviceFailure(t *testing.T) {
	events := NewNotifier()
	var statuses []string
	events.OnStatus(func(msg string) { statuses = append(statuses, msg) })

	s := NewSession(failingContext{}, nil, queue.New[[]int16](), events, nil)
	if err := s.Start(testConfig(t.TempDir())); err == nil {
		t.Fatal("Start succeeded with a failing device")
	}
	if s.State() != Idle {
		t.Errorf("state = %s, want idle", s.State())
	}
	if len(statuses) == 0 {
		t.Error("no status event for device failure")
	}
}

func TestWebRTCDetectorOverride(t *testing.T) {
	cfg := testConfig(t.TempDir())
	cfg.Detector = vad.Amplitude{Threshold: 0.5}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	other := cfg
	other.Detector = nil
	if !cfg.equivalent(other) {
		t.Error("detector choice must not force a device restart")
	}
}
