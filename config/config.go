// Package config loads and validates the YAML configuration. Every value
// has a working default so the program runs without a config file; flags
// override whatever was loaded.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DetectorAmplitude = "amplitude"
	DetectorWebRTC    = "webrtc"
)

// Config is the complete application configuration.
type Config struct {
	Audio       AudioConfig       `yaml:"audio"`
	VAD         VADConfig         `yaml:"vad"`
	Recognition RecognitionConfig `yaml:"recognition"`
	Output      OutputConfig      `yaml:"output"`
	Metrics     MetricsConfig     `yaml:"metrics"`
}

// AudioConfig holds the capture device parameters.
type AudioConfig struct {
	SampleRate  int     `yaml:"sample_rate"`
	Channels    int     `yaml:"channels"`
	FrameLength int     `yaml:"frame_length"` // samples per recognition frame
	Device      string  `yaml:"device"`       // substring of the device name, "" = default
	MaxDuration float64 `yaml:"max_duration"` // seconds, 0 = uncapped
}

// VADConfig holds the speech-gating parameters.
type VADConfig struct {
	AutoDetect     bool    `yaml:"auto_detect"`
	Detector       string  `yaml:"detector"`        // amplitude or webrtc
	Threshold      float32 `yaml:"threshold"`       // amplitude detector only
	SilenceTimeout float64 `yaml:"silence_timeout"` // seconds
}

// RecognitionConfig holds the recognizer parameters.
type RecognitionConfig struct {
	ModelPath       string   `yaml:"model_path"`
	KeyPhrases      []string `yaml:"key_phrases"` // restricts the grammar when non-empty
	MaxAlternatives int      `yaml:"max_alternatives"`
}

// OutputConfig holds the recording destination.
type OutputConfig struct {
	Dir      string `yaml:"dir"` // "" = alongside the logs
	BaseName string `yaml:"base_name"`
}

// MetricsConfig holds the optional Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Address string `yaml:"address"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Audio: AudioConfig{
			SampleRate:  16000,
			Channels:    1,
			FrameLength: 512,
		},
		VAD: VADConfig{
			AutoDetect:     true,
			Detector:       DetectorAmplitude,
			Threshold:      0.02,
			SilenceTimeout: 2.0,
		},
		Recognition: RecognitionConfig{
			ModelPath: "model",
		},
		Output: OutputConfig{
			BaseName: "recording",
		},
		Metrics: MetricsConfig{
			Address: "localhost:9090",
		},
	}
}

// Load reads path over the defaults and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

func (c *Config) Validate() error {
	if err := c.Audio.Validate(); err != nil {
		return fmt.Errorf("audio config: %w", err)
	}
	if err := c.VAD.Validate(); err != nil {
		return fmt.Errorf("vad config: %w", err)
	}
	if err := c.Recognition.Validate(); err != nil {
		return fmt.Errorf("recognition config: %w", err)
	}
	if err := c.Metrics.Validate(); err != nil {
		return fmt.Errorf("metrics config: %w", err)
	}
	return nil
}

func (a *AudioConfig) Validate() error {
	if a.SampleRate < 8000 || a.SampleRate > 48000 {
		return fmt.Errorf("sample_rate must be between 8000 and 48000 Hz, got %d", a.SampleRate)
	}
	if a.Channels < 1 || a.Channels > 2 {
		return fmt.Errorf("channels must be 1 or 2, got %d", a.Channels)
	}
	if a.FrameLength < 1 {
		return fmt.Errorf("frame_length must be at least 1 sample, got %d", a.FrameLength)
	}
	if a.MaxDuration < 0 {
		return fmt.Errorf("max_duration must not be negative, got %f", a.MaxDuration)
	}
	return nil
}

func (v *VADConfig) Validate() error {
	switch v.Detector {
	case DetectorAmplitude, DetectorWebRTC:
	default:
		return fmt.Errorf("detector must be %q or %q, got %q", DetectorAmplitude, DetectorWebRTC, v.Detector)
	}
	if v.Threshold < 0 || v.Threshold > 1 {
		return fmt.Errorf("threshold must be between 0 and 1, got %f", v.Threshold)
	}
	if v.SilenceTimeout < 0 {
		return fmt.Errorf("silence_timeout must not be negative, got %f", v.SilenceTimeout)
	}
	return nil
}

func (r *RecognitionConfig) Validate() error {
	if r.ModelPath == "" {
		return fmt.Errorf("model_path cannot be empty")
	}
	if r.MaxAlternatives < 0 {
		return fmt.Errorf("max_alternatives must not be negative, got %d", r.MaxAlternatives)
	}
	for _, phrase := range r.KeyPhrases {
		if strings.TrimSpace(phrase) == "" {
			return fmt.Errorf("key_phrases must not contain empty entries")
		}
	}
	return nil
}

func (m *MetricsConfig) Validate() error {
	if m.Enabled && m.Address == "" {
		return fmt.Errorf("address cannot be empty when metrics are enabled")
	}
	return nil
}

func (a *AudioConfig) GetMaxDuration() time.Duration {
	return time.Duration(a.MaxDuration * float64(time.Second))
}

func (v *VADConfig) GetSilenceTimeout() time.Duration {
	return time.Duration(v.SilenceTimeout * float64(time.Second))
}
