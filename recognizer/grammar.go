package recognizer

import (
	"encoding/json"
	"strings"
)

// UnknownToken is the catch-all the engine maps out-of-grammar speech to.
const UnknownToken = "[unknown]"

// BuildGrammar turns configured key phrases into the engine's grammar
// string: a JSON array of normalized lowercase phrases plus the unknown
// sentinel. An empty phrase list yields "", meaning unrestricted vocabulary.
func BuildGrammar(phrases []string) string {
	normalized := make([]string, 0, len(phrases)+1)
	for _, p := range phrases {
		p = strings.ToLower(strings.TrimSpace(p))
		if p != "" {
			normalized = append(normalized, p)
		}
	}
	if len(normalized) == 0 {
		return ""
	}
	normalized = append(normalized, UnknownToken)

	data, err := json.Marshal(normalized)
	if err != nil {
		// []string marshalling cannot fail; keep the engine unrestricted if
		// it somehow does.
		return ""
	}
	return string(data)
}
