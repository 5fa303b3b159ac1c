package capture

import (
	"fmt"
	"sync/atomic"
	"time"

	"hark/log"
	"hark/metrics"
	"hark/queue"
	"hark/recognizer"
)

type WorkerState int32

const (
	WorkerUninitialized WorkerState = iota
	WorkerInitializing
	WorkerReady
	WorkerDraining
	WorkerStopped
	WorkerFailed
)

func (s WorkerState) String() string {
	switch s {
	case WorkerUninitialized:
		return "uninitialized"
	case WorkerInitializing:
		return "initializing"
	case WorkerReady:
		return "ready"
	case WorkerDraining:
		return "draining"
	case WorkerFailed:
		return "failed"
	default:
		return "stopped"
	}
}

const defaultPollInterval = 100 * time.Millisecond

// Worker runs the recognition loop on its own goroutine: it lazily builds
// the recognizer session once, consumes audio frames from the capture queue,
// and publishes result payloads to the text queue. A failed session build is
// fatal; the worker never retries.
type Worker struct {
	engine  recognizer.Engine
	cfg     recognizer.SessionConfig
	frames  *queue.FIFO[[]int16]
	results *queue.FIFO[string]
	events  *Notifier
	stats   *metrics.Metrics

	poll    time.Duration
	state   atomic.Int32
	stop    atomic.Bool
	done    chan struct{}
	session recognizer.Session
}

func NewWorker(engine recognizer.Engine, cfg recognizer.SessionConfig, frames *queue.FIFO[[]int16], results *queue.FIFO[string], events *Notifier, stats *metrics.Metrics) *Worker {
	if events == nil {
		events = NewNotifier()
	}
	return &Worker{
		engine:  engine,
		cfg:     cfg,
		frames:  frames,
		results: results,
		events:  events,
		stats:   stats,
		poll:    defaultPollInterval,
		done:    make(chan struct{}),
	}
}

// Init constructs the recognizer session exactly once. Concurrent or
// repeated calls are rejected; a construction failure is terminal for this
// worker.
func (w *Worker) Init() error {
	if !w.state.CompareAndSwap(int32(WorkerUninitialized), int32(WorkerInitializing)) {
		return fmt.Errorf("recognizer already initialized (state %s)", w.State())
	}

	session, err := w.engine.NewSession(w.cfg)
	if err != nil {
		w.state.Store(int32(WorkerFailed))
		log.Errorf("recognizer init failed: %v", err)
		w.events.emitStatus(fmt.Sprintf("recognizer unavailable: %v", err))
		return fmt.Errorf("building recognizer session: %w", err)
	}
	w.session = session
	w.state.Store(int32(WorkerReady))
	log.Info("recognizer_ready")
	w.events.emitReady()
	return nil
}

func (w *Worker) State() WorkerState {
	return WorkerState(w.state.Load())
}

// RequestStop asks the loop to drain, flush a final result and exit. The
// flag is observed at the top of the next iteration.
func (w *Worker) RequestStop() {
	w.stop.Store(true)
}

// Done closes when the loop has exited.
func (w *Worker) Done() <-chan struct{} {
	return w.done
}

// Run executes the recognition loop until RequestStop, then drains queued
// frames, flushes the final partial result and exits. Run initializes the
// session lazily; a model failure ends the loop immediately.
func (w *Worker) Run() {
	defer close(w.done)

	if w.State() == WorkerUninitialized {
		if err := w.Init(); err != nil {
			return
		}
	}
	if w.State() != WorkerReady {
		return
	}

	for !w.stop.Load() {
		frame, ok := w.frames.TryDequeue()
		if !ok {
			// Deliberate polling backoff, not a busy spin.
			time.Sleep(w.poll)
			continue
		}
		w.feed(frame)
	}

	w.state.Store(int32(WorkerDraining))
	for {
		frame, ok := w.frames.TryDequeue()
		if !ok {
			break
		}
		w.feed(frame)
	}

	final := w.session.FinalResult()
	w.results.Enqueue(final)
	w.stats.IncResultsEmitted()
	w.session.Close()

	w.state.Store(int32(WorkerStopped))
	log.Info("recognizer_stopped")
}

func (w *Worker) feed(frame []int16) {
	boundary, err := w.session.AcceptFrame(frame)
	w.stats.IncFramesFed()
	if err != nil {
		// A single bad frame is recoverable; the session keeps its state.
		log.Warnf("recognizer rejected frame: %v", err)
		return
	}
	if boundary {
		w.results.Enqueue(w.session.Result())
		w.stats.IncResultsEmitted()
	}
}
