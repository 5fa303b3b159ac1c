// Package doctor runs interactive system diagnostics: model files, audio
// capture and WAV persistence, each reported as PASS/FAIL.
package doctor

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"hark/audio"
	"hark/encoder"
)

const (
	checkSampleRate = 16000
	checkSeconds    = 2
)

// Run executes the diagnostic checks and returns an exit code (0=all pass,
// 1=any fail). modelPath may be empty to skip the model check.
func Run(modelPath string) int {
	resetTerminal()
	setupInterruptHandler()

	fmt.Println("hark doctor - system diagnostics")
	fmt.Println("================================")

	allPass := true

	if modelPath != "" && !checkModel(modelPath) {
		allPass = false
	}
	if !checkMicrophone() {
		allPass = false
	}
	if !checkWAV() {
		allPass = false
	}

	fmt.Println()
	if allPass {
		fmt.Println("All checks passed!")
		return 0
	}
	fmt.Println("Some checks failed. See details above.")
	return 1
}

func checkModel(modelPath string) bool {
	fmt.Println()
	fmt.Println("[1/3] Recognition model")

	info, err := os.Stat(modelPath)
	if err != nil {
		fmt.Printf("  FAIL: model path %s: %v\n", modelPath, err)
		return false
	}
	if !info.IsDir() {
		fmt.Printf("  FAIL: model path %s is not a directory\n", modelPath)
		return false
	}
	entries, err := os.ReadDir(modelPath)
	if err != nil || len(entries) == 0 {
		fmt.Printf("  FAIL: model directory %s is empty\n", modelPath)
		return false
	}
	fmt.Printf("  PASS: model directory found (%d entries)\n", len(entries))
	return true
}

func checkMicrophone() bool {
	fmt.Println()
	fmt.Println("[2/3] Microphone capture")

	ctx, err := audio.NewContext()
	if err != nil {
		fmt.Printf("  FAIL: cannot connect to audio: %v\n", err)
		return false
	}
	defer ctx.Close()

	devices, err := ctx.Devices()
	if err != nil {
		fmt.Printf("  FAIL: cannot list devices: %v\n", err)
		return false
	}
	if len(devices) == 0 {
		fmt.Println("  FAIL: no capture devices found")
		return false
	}
	for _, d := range devices {
		note := ""
		if audio.IsBluetooth(d.Name) {
			note = " (bluetooth)"
		}
		fmt.Printf("  device: %s%s\n", d.Name, note)
	}

	fmt.Printf("  Speak into the microphone for %d seconds...\n", checkSeconds)
	pcm, err := recordAudio(ctx, nil, checkSeconds*time.Second)
	if err != nil {
		fmt.Printf("  FAIL: recording failed: %v\n", err)
		return false
	}

	samples := encoder.Samples(pcm)
	var peak int16
	for _, s := range samples {
		if s > peak {
			peak = s
		}
		if -s > peak {
			peak = -s
		}
	}
	level := float64(peak) / 32768
	if level < 0.01 {
		fmt.Printf("  FAIL: no signal detected (peak level %.4f)\n", level)
		return false
	}
	fmt.Printf("  PASS: captured %d samples, peak level %.2f\n", len(samples), level)
	return true
}

func checkWAV() bool {
	fmt.Println()
	fmt.Println("[3/3] Recording persistence")

	dir, err := os.MkdirTemp("", "hark-doctor")
	if err != nil {
		fmt.Printf("  FAIL: cannot create temp directory: %v\n", err)
		return false
	}
	defer os.RemoveAll(dir)

	samples := make([]float32, checkSampleRate)
	for i := range samples {
		samples[i] = 0.25
	}
	path := filepath.Join(dir, "check.wav")
	if err := encoder.WriteWAV(path, samples, 1, checkSampleRate); err != nil {
		fmt.Printf("  FAIL: cannot write WAV: %v\n", err)
		return false
	}

	data, err := os.ReadFile(path)
	if err != nil {
		fmt.Printf("  FAIL: cannot read WAV back: %v\n", err)
		return false
	}
	decoded, rate, channels, err := encoder.DecodeWAV(data)
	if err != nil {
		fmt.Printf("  FAIL: invalid WAV produced: %v\n", err)
		return false
	}
	if rate != checkSampleRate || channels != 1 || len(decoded) != len(samples) {
		fmt.Printf("  FAIL: WAV header mismatch (rate=%d channels=%d samples=%d)\n", rate, channels, len(decoded))
		return false
	}
	fmt.Println("  PASS: WAV round trip ok")
	return true
}

func recordAudio(ctx audio.Context, device *audio.DeviceInfo, duration time.Duration) ([]byte, error) {
	var pcmBuf []byte
	var bufMu sync.Mutex

	captureDevice, err := ctx.NewCapture(device, audio.CaptureConfig{
		SampleRate: checkSampleRate,
		Channels:   1,
	})
	if err != nil {
		return nil, err
	}
	defer captureDevice.Close()

	captureDevice.SetCallback(func(data []byte, _ uint32) {
		bufMu.Lock()
		pcmBuf = append(pcmBuf, data...)
		bufMu.Unlock()
	})

	if err := captureDevice.Start(); err != nil {
		return nil, err
	}

	fmt.Print("  Recording")
	deadline := time.After(duration)
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()
loop:
	for {
		select {
		case <-deadline:
			break loop
		case <-ticker.C:
			fmt.Print(".")
		}
	}
	captureDevice.Stop()
	captureDevice.ClearCallback()
	fmt.Println(" done")

	bufMu.Lock()
	raw := pcmBuf
	bufMu.Unlock()
	return raw, nil
}
