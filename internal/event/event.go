package event

import "strings"

// Reserved title values. TitleUnknown is substituted when a model returns a
// null or missing title. TitleFailed marks a terminal extraction failure and
// is never a real title; downstream stages must not keep working on a record
// that carries it.
const (
	TitleUnknown = "Unknown Event"
	TitleFailed  = "Extraction Failed"
)

// Location types.
const (
	LocationPhysical = "physical"
	LocationVirtual  = "virtual"
	LocationHybrid   = "hybrid"
)

// Location describes where an event takes place.
type Location struct {
	Type    string `json:"type,omitempty"`
	Venue   string `json:"venue,omitempty"`
	Address string `json:"address,omitempty"`
	City    string `json:"city,omitempty"`
	URL     string `json:"url,omitempty"`
}

// Organizer describes who runs an event.
type Organizer struct {
	Name    string `json:"name,omitempty"`
	Contact string `json:"contact,omitempty"`
	URL     string `json:"url,omitempty"`
}

// Event is the structured record produced by the extraction pipeline. Stages
// never mutate a caller's Event in place: each stage works on a Clone and
// hands back the new value.
type Event struct {
	Title           string     `json:"title"`
	Description     string     `json:"description,omitempty"`
	StartDatetime   *Time      `json:"start_datetime,omitempty"`
	EndDatetime     *Time      `json:"end_datetime,omitempty"`
	Timezone        string     `json:"timezone,omitempty"`
	Location        *Location  `json:"location,omitempty"`
	Organizer       *Organizer `json:"organizer,omitempty"`
	RegistrationURL string     `json:"registration_url,omitempty"`
	Price           string     `json:"price,omitempty"`
	Tags            []string   `json:"tags,omitempty"`
	ImageURL        string     `json:"image_url,omitempty"`
	SourceURL       string     `json:"source_url,omitempty"`

	// ConfidenceScore is the extraction certainty in [0,1]. Once set it is
	// only ever lowered by later stages, never raised.
	ConfidenceScore *float64 `json:"confidence_score,omitempty"`

	// ExtractionNotes is an accumulated audit trail. Stages append or prepend
	// their own segment and must preserve whatever is already there.
	ExtractionNotes string `json:"extraction_notes,omitempty"`
}

// Failed reports whether the record carries the terminal failure sentinel.
func (e Event) Failed() bool {
	return e.Title == TitleFailed
}

// Clone returns a deep copy. Pointer fields and the tags slice are duplicated
// so that edits on the copy cannot leak into the original.
func (e Event) Clone() Event {
	out := e
	if e.StartDatetime != nil {
		t := *e.StartDatetime
		out.StartDatetime = &t
	}
	if e.EndDatetime != nil {
		t := *e.EndDatetime
		out.EndDatetime = &t
	}
	if e.Location != nil {
		loc := *e.Location
		out.Location = &loc
	}
	if e.Organizer != nil {
		org := *e.Organizer
		out.Organizer = &org
	}
	if e.ConfidenceScore != nil {
		s := *e.ConfidenceScore
		out.ConfidenceScore = &s
	}
	if e.Tags != nil {
		out.Tags = append([]string(nil), e.Tags...)
	}
	return out
}

// Score is a convenience for building a *float64 confidence literal.
func Score(v float64) *float64 {
	return &v
}

// PrependNote puts note ahead of existing, keeping the existing segment
// intact. Used by stages whose finding should lead the audit trail.
func PrependNote(note, existing string) string {
	return strings.TrimSpace(note + " " + existing)
}

// AppendNote adds note after existing, keeping the existing segment intact.
func AppendNote(existing, note string) string {
	if existing == "" {
		return note
	}
	return existing + " " + note
}
