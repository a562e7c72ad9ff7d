// Package reconcile overrides model-extracted event fields with authoritative
// JSON-LD structured data. Structured markup is more reliable than model
// output for dates, venue, address, and organizer, especially on ticketing
// platforms that publish schema.org Event blocks.
package reconcile

import (
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/oaklog/eventagent/internal/event"
)

// Apply returns a copy of evt with fields overridden from data, a parsed
// schema.org Event node. A nil or empty map returns the record unchanged.
// Every applied override is named in the audit trail; a malformed value is
// logged and skipped rather than failing the record.
func Apply(evt event.Event, data map[string]any) event.Event {
	if len(data) == 0 {
		return evt
	}
	out := evt.Clone()
	var overrides []string

	if t, ok := overrideTime(data, "startDate"); ok {
		out.StartDatetime = t
		overrides = append(overrides, "dates")
	}
	if t, ok := overrideTime(data, "endDate"); ok {
		out.EndDatetime = t
		if len(overrides) == 0 || overrides[len(overrides)-1] != "dates" {
			overrides = append(overrides, "dates")
		}
	}

	if loc, ok := data["location"].(map[string]any); ok {
		if name := stringField(loc, "name"); len([]rune(name)) > 1 {
			if out.Location == nil {
				out.Location = &event.Location{Type: event.LocationPhysical}
			}
			out.Location.Venue = name
			overrides = append(overrides, "venue")
		}
		if addr := parseAddress(loc["address"]); addr != "" {
			if out.Location == nil {
				out.Location = &event.Location{Type: event.LocationPhysical}
			}
			out.Location.Address = addr
			overrides = append(overrides, "address")
		}
	}

	if org, ok := data["organizer"].(map[string]any); ok {
		if name := stringField(org, "name"); len([]rune(name)) > 1 {
			if out.Organizer == nil {
				out.Organizer = &event.Organizer{}
			}
			out.Organizer.Name = name
			overrides = append(overrides, "organizer")
		}
	}

	if len(overrides) > 0 {
		note := "JSON-LD overrides: " + strings.Join(overrides, ", ") + "."
		out.ExtractionNotes = event.PrependNote(note, out.ExtractionNotes)
	}
	return out
}

// overrideTime reads a schema.org date field. Some publishers emit a
// fractional ".000" second segment that the flexible parser does not accept,
// so it is stripped first.
func overrideTime(data map[string]any, key string) (*event.Time, bool) {
	raw, ok := data[key].(string)
	if !ok || raw == "" {
		return nil, false
	}
	cleaned := strings.ReplaceAll(raw, ".000", "")
	t, err := event.ParseTime(cleaned)
	if err != nil {
		log.Warn().Str("field", key).Str("value", raw).Err(err).Msg("unparseable JSON-LD date, keeping extracted value")
		return nil, false
	}
	return &t, true
}

// parseAddress handles both forms schema.org allows: a plain string or a
// PostalAddress object.
func parseAddress(v any) string {
	switch addr := v.(type) {
	case string:
		return strings.TrimSpace(addr)
	case map[string]any:
		var parts []string
		for _, key := range []string{"streetAddress", "addressLocality", "addressRegion"} {
			if p := stringField(addr, key); p != "" {
				parts = append(parts, p)
			}
		}
		return strings.Join(parts, ", ")
	default:
		return ""
	}
}

func stringField(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return strings.TrimSpace(s)
}
