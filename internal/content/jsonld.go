package content

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog/log"
)

// StructuredEventData scans the page for JSON-LD blocks and returns the first
// Event-typed node found, or nil when the page carries none. Malformed markup
// and unparseable script bodies are skipped silently; this function never
// fails.
func StructuredEventData(rawHTML []byte) map[string]any {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(rawHTML))
	if err != nil {
		log.Debug().Err(err).Msg("structured data scan: unparseable html")
		return nil
	}

	var found map[string]any
	doc.Find(`script[type="application/ld+json"]`).EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		var payload any
		if err := json.Unmarshal([]byte(sel.Text()), &payload); err != nil {
			return true
		}
		if node := firstEventNode(payload); node != nil {
			found = node
			return false
		}
		return true
	})
	return found
}

// firstEventNode walks a decoded JSON-LD payload, descending into arrays and
// @graph containers, and returns the first node whose @type is Event or an
// Event subtype like MusicEvent.
func firstEventNode(payload any) map[string]any {
	switch v := payload.(type) {
	case []any:
		for _, item := range v {
			if node := firstEventNode(item); node != nil {
				return node
			}
		}
	case map[string]any:
		if isEventType(v["@type"]) {
			return v
		}
		if graph, ok := v["@graph"]; ok {
			return firstEventNode(graph)
		}
	}
	return nil
}

func isEventType(t any) bool {
	switch v := t.(type) {
	case string:
		return strings.HasSuffix(v, "Event")
	case []any:
		for _, item := range v {
			if s, ok := item.(string); ok && strings.HasSuffix(s, "Event") {
				return true
			}
		}
	}
	return false
}

// renderStructured serializes the structured block for inclusion in the
// prompt document.
func renderStructured(data map[string]any) string {
	b, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return ""
	}
	return string(b)
}
