package llm

import (
	"encoding/json"
	"strings"

	"github.com/oaklog/eventagent/internal/event"
)

// stripFences removes markdown code-fence wrapping from a model response, so
// that a reply like "```json\n{...}\n```" parses as plain JSON.
func stripFences(text string) string {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```") {
		parts := strings.Split(text, "```")
		if len(parts) > 1 {
			text = parts[1]
		}
		if strings.HasPrefix(text, "json") {
			text = text[4:]
		}
		text = strings.TrimSpace(text)
	}
	return text
}

// decodeEvent parses raw model output into an Event. When the payload is
// malformed it attempts two repairs in order: truncating to the last closing
// brace, then appending missing closing braces. The boolean reports whether a
// repair was needed. When both repairs fail the original parse error is
// returned so the retry loop can act on it.
func decodeEvent(raw string) (event.Event, bool, error) {
	var evt event.Event
	origErr := json.Unmarshal([]byte(raw), &evt)
	if origErr == nil {
		return evt, false, nil
	}

	if i := strings.LastIndexByte(raw, '}'); i >= 0 {
		var repaired event.Event
		if err := json.Unmarshal([]byte(raw[:i+1]), &repaired); err == nil {
			return repaired, true, nil
		}
	}

	open := strings.Count(raw, "{")
	closed := strings.Count(raw, "}")
	if open > closed {
		var repaired event.Event
		balanced := raw + strings.Repeat("}", open-closed)
		if err := json.Unmarshal([]byte(balanced), &repaired); err == nil {
			return repaired, true, nil
		}
	}

	return event.Event{}, false, origErr
}

// truncate bounds s for inclusion in diagnostic notes.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
