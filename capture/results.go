package capture

import (
	"hark/log"
	"hark/queue"
	"hark/recognizer"
)

// ResultPump drains recognizer payloads from the text queue, picks the most
// confident phrase of each and surfaces it through the notifier. Empty
// results, which the engine reports for silence, are dropped.
type ResultPump struct {
	results *queue.FIFO[string]
	events  *Notifier
}

func NewResultPump(results *queue.FIFO[string], events *Notifier) *ResultPump {
	if events == nil {
		events = NewNotifier()
	}
	return &ResultPump{results: results, events: events}
}

// Poll processes everything queued right now and returns the number of
// phrases surfaced. It never blocks.
func (p *ResultPump) Poll() int {
	emitted := 0
	for {
		raw, ok := p.results.TryDequeue()
		if !ok {
			return emitted
		}
		phrases, err := recognizer.ParseResult(raw)
		if err != nil {
			log.Warnf("unparseable recognizer payload: %v", err)
			continue
		}
		top, ok := recognizer.TopPhrase(phrases)
		if !ok {
			continue
		}
		log.RecognitionResult(top.Text, top.Confidence, false)
		log.TranscriptText(top.Text)
		p.events.emitResult(top.Text)
		emitted++
	}
}
