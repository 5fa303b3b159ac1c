package main

import (
	"flag"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"path/filepath"
	"runtime/debug"
	"strings"
	"time"

	"hark/audio"
	"hark/capture"
	"hark/config"
	"hark/doctor"
	"hark/log"
	"hark/metrics"
	"hark/queue"
	"hark/recognizer"
	"hark/shutdown"
	"hark/vad"
)

var version = "dev"

const tickInterval = 20 * time.Millisecond

func main() {
	configFlag := flag.String("config", "", "Path to YAML config file")
	modelFlag := flag.String("model", "", "Path to recognition model directory (overrides config)")
	deviceFlag := flag.String("device", "", "Use named microphone device (overrides config)")
	setupFlag := flag.Bool("setup", false, "Select microphone device (otherwise uses system default)")
	outputFlag := flag.String("output", "", "Recording output directory (overrides config)")
	logPathFlag := flag.String("logpath", "", "log directory path (default: OS-specific location, use ./ for current dir)")
	profileFlag := flag.String("profile", "", "Enable pprof profiling server (e.g., :6060 or localhost:6060)")
	metricsFlag := flag.String("metrics", "", "Enable Prometheus metrics endpoint (e.g., localhost:9090)")
	versionFlag := flag.Bool("version", false, "Print version and exit")
	doctorFlag := flag.Bool("doctor", false, "Run system diagnostics and exit")
	testFlag := flag.String("test", "", "Replay a WAV file through the pipeline instead of live capture")
	debugFlag := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	if *versionFlag {
		fmt.Printf("hark %s\n", version)
		os.Exit(0)
	}

	cfg := config.Default()
	if *configFlag != "" {
		loaded, err := config.Load(*configFlag)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		cfg = loaded
	}
	if *modelFlag != "" {
		cfg.Recognition.ModelPath = *modelFlag
	}
	if *deviceFlag != "" {
		cfg.Audio.Device = *deviceFlag
	}
	if *outputFlag != "" {
		cfg.Output.Dir = *outputFlag
	}
	if *metricsFlag != "" {
		cfg.Metrics.Enabled = true
		cfg.Metrics.Address = *metricsFlag
	}

	// Resolve log directory early
	logPath, err := log.ResolveDir(*logPathFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to resolve log directory: %v\n", err)
		os.Exit(1)
	}
	log.SetDir(logPath)
	if err := log.EnsureDir(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not create log directory: %v\n", err)
	}

	crashPath := filepath.Join(log.Dir(), "crash_log.txt")
	crashFile, err := os.OpenFile(crashPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err == nil {
		fmt.Fprintf(crashFile, "\n=== Session %s [pid=%d] ===\n", time.Now().Format("2006-01-02 15:04:05"), os.Getpid())
		debug.SetCrashOutput(crashFile, debug.CrashOptions{})
	}

	if err := log.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not init logging: %v\n", err)
	}
	log.SetDebug(*debugFlag)

	if *doctorFlag {
		os.Exit(doctor.Run(cfg.Recognition.ModelPath))
	}

	if *profileFlag != "" {
		go func() {
			fmt.Fprintf(os.Stderr, "pprof server listening on http://%s/debug/pprof/\n", *profileFlag)
			if err := http.ListenAndServe(*profileFlag, nil); err != nil {
				fmt.Fprintf(os.Stderr, "pprof server error: %v\n", err)
			}
		}()
	}

	var stats *metrics.Metrics
	if cfg.Metrics.Enabled {
		stats = metrics.New()
		go func() {
			if err := metrics.Serve(cfg.Metrics.Address); err != nil {
				log.Errorf("metrics server error: %v", err)
			}
		}()
	}

	if cfg.Output.Dir == "" {
		cfg.Output.Dir = log.Dir()
	}

	var ctx audio.Context
	replay := *testFlag != ""
	if replay {
		// Paced delivery: a burst would lap the one-second capture ring.
		ctx, err = audio.NewFakeContextFromWAV(*testFlag, cfg.Audio.SampleRate, true)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: cannot open %s: %v\n", *testFlag, err)
			os.Exit(1)
		}
	} else {
		ctx, err = audio.NewContext()
		if err != nil {
			log.Errorf("audio context init error: %v", err)
			fmt.Fprintf(os.Stderr, "Error initializing audio context: %v\n", err)
			os.Exit(1)
		}
	}
	defer ctx.Close()

	selectedDevice, err := resolveDevice(ctx, cfg.Audio.Device, *setupFlag && !replay)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	engine, err := recognizer.NewVoskEngine(cfg.Recognition.ModelPath)
	if err != nil {
		log.Errorf("recognizer init error: %v", err)
		fmt.Fprintf(os.Stderr, "Error loading recognition model: %v\n", err)
		os.Exit(1)
	}
	defer engine.Close()

	var detector vad.Detector
	if cfg.VAD.Detector == config.DetectorWebRTC {
		detector, err = vad.NewWebRTC(cfg.Audio.SampleRate)
		if err != nil {
			log.Warnf("webrtc detector unavailable, using amplitude: %v", err)
			detector = nil
		}
	}

	frames := queue.New[[]int16]()
	results := queue.New[string]()
	events := capture.NewNotifier()
	events.OnResult(func(text string) { fmt.Println(text) })
	events.OnSaved(func(path string) { fmt.Printf("saved %s\n", path) })
	events.OnSpeaking(func(on bool) {
		if on {
			fmt.Println("[speech]")
		} else {
			fmt.Println("[silence]")
		}
	})
	events.OnStatus(func(msg string) { log.Info(msg) })

	session := capture.NewSession(ctx, selectedDevice, frames, events, stats)
	worker := capture.NewWorker(engine, recognizer.SessionConfig{
		SampleRate:      cfg.Audio.SampleRate,
		Grammar:         recognizer.BuildGrammar(cfg.Recognition.KeyPhrases),
		MaxAlternatives: cfg.Recognition.MaxAlternatives,
	}, frames, results, events, stats)
	pump := capture.NewResultPump(results, events)

	go worker.Run()

	captureConfig := capture.Config{
		SampleRate:  cfg.Audio.SampleRate,
		FrameLength: cfg.Audio.FrameLength,
		Channels:    cfg.Audio.Channels,
		AutoDetect:  cfg.VAD.AutoDetect && !replay,
		Threshold:   cfg.VAD.Threshold,
		Silence:     cfg.VAD.GetSilenceTimeout(),
		MaxDuration: cfg.Audio.GetMaxDuration(),
		OutputDir:   cfg.Output.Dir,
		BaseName:    cfg.Output.BaseName,
		Detector:    detector,
	}
	if err := session.Start(captureConfig); err != nil {
		log.Errorf("recording start error: %v", err)
		fmt.Fprintf(os.Stderr, "Error starting recording: %v\n", err)
		os.Exit(1)
	}

	sig := make(chan os.Signal, 1)
	shutdown.Notify(sig)

	var replayDeadline <-chan time.Time
	if replay {
		replayDeadline = time.After(replayDuration(*testFlag, cfg.Audio.SampleRate))
	}

	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	fmt.Println("Recording. Press Ctrl+C to stop.")
	recordings := 0
	events.OnSaved(func(string) { recordings++ })

running:
	for {
		select {
		case <-sig:
			break running
		case <-replayDeadline:
			break running
		case <-ticker.C:
			session.Tick()
			pump.Poll()
		}
	}

	session.Stop()
	for session.IsRecording() {
		session.Tick()
		time.Sleep(tickInterval)
	}

	worker.RequestStop()
	<-worker.Done()
	pump.Poll()

	log.SessionEnd(recordings)
	log.Close()
}

// resolveDevice maps the configured device name to a capture device. A nil
// result means the system default.
func resolveDevice(ctx audio.Context, name string, setup bool) (*audio.DeviceInfo, error) {
	if setup {
		dev, err := audio.SelectDevice(ctx)
		if err != nil {
			log.Warnf("device selection failed: %v", err)
			fmt.Println("Falling back to default device")
			return nil, nil
		}
		return dev, nil
	}
	if name == "" {
		return nil, nil
	}
	devices, err := ctx.Devices()
	if err != nil {
		return nil, fmt.Errorf("listing devices: %w", err)
	}
	for i := range devices {
		if strings.Contains(strings.ToLower(devices[i].Name), strings.ToLower(name)) {
			if audio.IsBluetooth(devices[i].Name) {
				log.Warn("bluetooth microphone selected, capture quality may be reduced")
			}
			return &devices[i], nil
		}
	}
	return nil, fmt.Errorf("no capture device matching %q", name)
}

// replayDuration estimates the clip length from the file size plus a grace
// period for recognition to catch up.
func replayDuration(path string, sampleRate int) time.Duration {
	info, err := os.Stat(path)
	if err != nil || info.Size() <= 44 {
		return time.Second
	}
	samples := (info.Size() - 44) / 2
	clip := time.Duration(samples) * time.Second / time.Duration(sampleRate)
	return clip + time.Second
}
