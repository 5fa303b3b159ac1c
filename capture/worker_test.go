package capture

import (
	"errors"
	"testing"
	"time"

	"hark/queue"
	"hark/recognizer"
)

func newTestWorker(engine recognizer.Engine) (*Worker, *queue.FIFO[[]int16], *queue.FIFO[string]) {
	frames := queue.New[[]int16]()
	results := queue.New[string]()
	w := NewWorker(engine, recognizer.SessionConfig{SampleRate: 16000}, frames, results, NewNotifier(), nil)
	w.poll = time.Millisecond
	return w, frames, results
}

func drainResults(results *queue.FIFO[string]) []string {
	var got []string
	for {
		res, ok := results.TryDequeue()
		if !ok {
			return got
		}
		got = append(got, res)
	}
}

func TestWorkerBoundariesAndFinalFlush(t *testing.T) {
	engine := &recognizer.FakeEngine{
		BoundaryEvery: 2,
		Results:       []string{`{"text":"one"}`, `{"text":"two"}`},
		FinalPayload:  `{"text":"tail"}`,
	}
	w, frames, results := newTestWorker(engine)

	for i := 0; i < 5; i++ {
		frames.Enqueue(make([]int16, 512))
	}

	go w.Run()

	deadline := time.After(2 * time.Second)
	for frames.Len() > 0 {
		select {
		case <-deadline:
			t.Fatal("worker did not consume queued frames")
		case <-time.After(time.Millisecond):
		}
	}

	w.RequestStop()
	select {
	case <-w.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop")
	}

	got := drainResults(results)
	want := []string{`{"text":"one"}`, `{"text":"two"}`, `{"text":"tail"}`}
	if len(got) != len(want) {
		t.Fatalf("results = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("results[%d] = %q, want %q", i, got[i], want[i])
		}
	}

	if n := engine.Sessions(); n != 1 {
		t.Errorf("sessions built = %d, want 1", n)
	}
	if st := w.State(); st != WorkerStopped {
		t.Errorf("state = %s, want stopped", st)
	}
}

func TestWorkerDrainsBacklogOnStop(t *testing.T) {
	engine := &recognizer.FakeEngine{BoundaryEvery: 1, FinalPayload: `{"text":""}`}
	w, frames, results := newTestWorker(engine)

	for i := 0; i < 3; i++ {
		frames.Enqueue(make([]int16, 512))
	}

	// Stop is requested before the loop even starts: everything queued must
	// still be fed before the final flush.
	w.RequestStop()
	w.Run()

	got := drainResults(results)
	if len(got) != 4 {
		t.Fatalf("got %d results, want 3 boundaries + 1 final", len(got))
	}
	if frames.Len() != 0 {
		t.Errorf("frames left in queue = %d, want 0", frames.Len())
	}
}

func TestWorkerDoubleInitRejected(t *testing.T) {
	engine := &recognizer.FakeEngine{}
	w, _, _ := newTestWorker(engine)

	if err := w.Init(); err != nil {
		t.Fatalf("first Init: %v", err)
	}
	if err := w.Init(); err == nil {
		t.Fatal("second Init succeeded, want error")
	}
	if n := engine.Sessions(); n != 1 {
		t.Errorf("sessions built = %d, want 1", n)
	}
}

func TestWorkerInitFailureIsFatal(t *testing.T) {
	engine := &recognizer.FakeEngine{FailSession: errors.New("model missing")}
	w, _, results := newTestWorker(engine)

	var status []string
	w.events.OnStatus(func(msg string) { status = append(status, msg) })

	w.Run()

	select {
	case <-w.Done():
	default:
		t.Fatal("Done not closed after fatal init")
	}
	if st := w.State(); st != WorkerFailed {
		t.Errorf("state = %s, want failed", st)
	}
	if got := drainResults(results); len(got) != 0 {
		t.Errorf("results after failed init = %v, want none", got)
	}
	if len(status) == 0 {
		t.Error("no status event for failed init")
	}
}

func TestWorkerReadyEvent(t *testing.T) {
	engine := &recognizer.FakeEngine{}
	w, _, _ := newTestWorker(engine)

	ready := false
	w.events.OnReady(func() { ready = true })

	if err := w.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if !ready {
		t.Error("ready event not emitted")
	}
	if st := w.State(); st != WorkerReady {
		t.Errorf("state = %s, want ready", st)
	}
}
