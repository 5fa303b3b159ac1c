package recognizer

import (
	"encoding/json"
	"fmt"
)

// Phrase is one ranked transcription alternative.
type Phrase struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

// resultPayload covers both engine result shapes: a ranked "alternatives"
// array when max-alternatives is set, or a flat "text" field otherwise.
type resultPayload struct {
	Alternatives []Phrase `json:"alternatives"`
	Text         *string  `json:"text"`
}

// ParseResult extracts the ranked phrase list from a raw engine result
// payload. A flat single-text payload becomes a one-phrase list with zero
// confidence; empty text yields an empty list.
func ParseResult(raw string) ([]Phrase, error) {
	if raw == "" {
		return nil, nil
	}
	var payload resultPayload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return nil, fmt.Errorf("parsing result payload: %w", err)
	}
	if payload.Alternatives != nil {
		phrases := make([]Phrase, 0, len(payload.Alternatives))
		for _, p := range payload.Alternatives {
			if p.Text != "" {
				phrases = append(phrases, p)
			}
		}
		return phrases, nil
	}
	if payload.Text != nil && *payload.Text != "" {
		return []Phrase{{Text: *payload.Text}}, nil
	}
	return nil, nil
}

// TopPhrase returns the phrase with the strictly greatest confidence; the
// first seen wins ties. ok is false for an empty list.
func TopPhrase(phrases []Phrase) (top Phrase, ok bool) {
	for i, p := range phrases {
		if i == 0 || p.Confidence > top.Confidence {
			top = p
		}
	}
	return top, len(phrases) > 0
}
