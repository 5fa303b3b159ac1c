// Package metrics exposes Prometheus instrumentation for the capture and
// recognition pipeline. A nil *Metrics disables collection, so callers never
// need to branch on whether metrics are enabled.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	WindowsRead     prometheus.Counter
	FramesPublished prometheus.Counter
	FramesFed       prometheus.Counter
	ResultsEmitted  prometheus.Counter
	WAVWritten      prometheus.Counter
	FrameQueueDepth prometheus.Gauge
	AudioLevel      prometheus.Gauge
}

func New() *Metrics {
	return &Metrics{
		WindowsRead: promauto.NewCounter(prometheus.CounterOpts{
			Name: "hark_capture_windows_read_total",
			Help: "Sample windows drained from the capture ring buffer",
		}),
		FramesPublished: promauto.NewCounter(prometheus.CounterOpts{
			Name: "hark_frames_published_total",
			Help: "Speech frames published to the recognition queue",
		}),
		FramesFed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "hark_frames_recognized_total",
			Help: "Frames fed to the recognizer session",
		}),
		ResultsEmitted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "hark_results_emitted_total",
			Help: "Recognition results enqueued for the caller",
		}),
		WAVWritten: promauto.NewCounter(prometheus.CounterOpts{
			Name: "hark_wav_files_written_total",
			Help: "Completed WAV recordings written to disk",
		}),
		FrameQueueDepth: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "hark_frame_queue_depth",
			Help: "Frames waiting in the capture-to-recognition queue",
		}),
		AudioLevel: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "hark_audio_level_rms",
			Help: "RMS level of the most recent capture window",
		}),
	}
}

// Serve exposes /metrics on addr. It blocks, so run it on its own goroutine.
func Serve(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return http.ListenAndServe(addr, mux)
}

func (m *Metrics) IncWindowsRead() {
	if m != nil {
		m.WindowsRead.Inc()
	}
}

func (m *Metrics) IncFramesPublished() {
	if m != nil {
		m.FramesPublished.Inc()
	}
}

func (m *Metrics) IncFramesFed() {
	if m != nil {
		m.FramesFed.Inc()
	}
}

func (m *Metrics) IncResultsEmitted() {
	if m != nil {
		m.ResultsEmitted.Inc()
	}
}

func (m *Metrics) IncWAVWritten() {
	if m != nil {
		m.WAVWritten.Inc()
	}
}

func (m *Metrics) SetFrameQueueDepth(depth int) {
	if m != nil {
		m.FrameQueueDepth.Set(float64(depth))
	}
}

func (m *Metrics) SetAudioLevel(rms float64) {
	if m != nil {
		m.AudioLevel.Set(rms)
	}
}
