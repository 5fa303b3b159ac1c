package capture

import "sync"

// Notifier is an explicit observer registry for pipeline events. Handlers
// run synchronously on the emitting goroutine in registration order, so they
// must return quickly and never block on the capture or recognition path.
type Notifier struct {
	mu       sync.Mutex
	ready    []func()
	result   []func(text string)
	saved    []func(path string)
	speaking []func(on bool)
	status   []func(msg string)
}

func NewNotifier() *Notifier {
	return &Notifier{}
}

// OnReady registers a handler for recognizer-initialization completion.
func (n *Notifier) OnReady(f func()) {
	n.mu.Lock()
	n.ready = append(n.ready, f)
	n.mu.Unlock()
}

// OnResult registers a handler for recognized text.
func (n *Notifier) OnResult(f func(text string)) {
	n.mu.Lock()
	n.result = append(n.result, f)
	n.mu.Unlock()
}

// OnSaved registers a handler for completed WAV recordings.
func (n *Notifier) OnSaved(f func(path string)) {
	n.mu.Lock()
	n.saved = append(n.saved, f)
	n.mu.Unlock()
}

// OnSpeaking registers a handler for speech-detection edges.
func (n *Notifier) OnSpeaking(f func(on bool)) {
	n.mu.Lock()
	n.speaking = append(n.speaking, f)
	n.mu.Unlock()
}

// OnStatus registers a handler for human-readable status updates.
func (n *Notifier) OnStatus(f func(msg string)) {
	n.mu.Lock()
	n.status = append(n.status, f)
	n.mu.Unlock()
}

func (n *Notifier) emitReady() {
	n.mu.Lock()
	handlers := n.ready
	n.mu.Unlock()
	for _, f := range handlers {
		f()
	}
}

func (n *Notifier) emitResult(text string) {
	n.mu.Lock()
	handlers := n.result
	n.mu.Unlock()
	for _, f := range handlers {
		f(text)
	}
}

func (n *Notifier) emitSaved(path string) {
	n.mu.Lock()
	handlers := n.saved
	n.mu.Unlock()
	for _, f := range handlers {
		f(path)
	}
}

func (n *Notifier) emitSpeaking(on bool) {
	n.mu.Lock()
	handlers := n.speaking
	n.mu.Unlock()
	for _, f := range handlers {
		f(on)
	}
}

func (n *Notifier) emitStatus(msg string) {
	n.mu.Lock()
	handlers := n.status
	n.mu.Unlock()
	for _, f := range handlers {
		f(msg)
	}
}
