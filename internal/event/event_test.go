package event

import (
	"encoding/json"
	"testing"
	"time"
)

func TestCloneIsDeep(t *testing.T) {
	start, err := ParseTime("2026-05-01T18:00:00-07:00")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	orig := Event{
		Title:           "Launch Party",
		StartDatetime:   &start,
		Location:        &Location{Type: LocationPhysical, Venue: "Old Hall"},
		Organizer:       &Organizer{Name: "Oakland Review"},
		Tags:            []string{"music"},
		ConfidenceScore: Score(0.9),
	}
	cp := orig.Clone()
	cp.Location.Venue = "New Hall"
	cp.Organizer.Name = "Someone Else"
	cp.Tags[0] = "art"
	*cp.ConfidenceScore = 0.1
	*cp.StartDatetime = Time{}

	if orig.Location.Venue != "Old Hall" {
		t.Fatalf("location leaked into original: %q", orig.Location.Venue)
	}
	if orig.Organizer.Name != "Oakland Review" {
		t.Fatalf("organizer leaked into original: %q", orig.Organizer.Name)
	}
	if orig.Tags[0] != "music" {
		t.Fatalf("tags leaked into original: %v", orig.Tags)
	}
	if *orig.ConfidenceScore != 0.9 {
		t.Fatalf("confidence leaked into original: %v", *orig.ConfidenceScore)
	}
	if orig.StartDatetime.IsZero() {
		t.Fatalf("start datetime leaked into original")
	}
}

func TestFailedSentinel(t *testing.T) {
	if (Event{Title: "Launch Party"}).Failed() {
		t.Fatalf("ordinary title must not read as failed")
	}
	if !(Event{Title: TitleFailed}).Failed() {
		t.Fatalf("sentinel title must read as failed")
	}
}

func TestNoteHelpers(t *testing.T) {
	if got := PrependNote("JSON-LD overrides: dates.", ""); got != "JSON-LD overrides: dates." {
		t.Fatalf("prepend onto empty: %q", got)
	}
	if got := PrependNote("First.", "Second."); got != "First. Second." {
		t.Fatalf("prepend: %q", got)
	}
	if got := AppendNote("", "Validation: ok."); got != "Validation: ok." {
		t.Fatalf("append onto empty: %q", got)
	}
	if got := AppendNote("Earlier.", "Validation: ok."); got != "Earlier. Validation: ok." {
		t.Fatalf("append: %q", got)
	}
}

func TestParseTimeVariants(t *testing.T) {
	cases := []struct {
		in    string
		naive bool
	}{
		{"2026-06-01T20:00:00-07:00", false},
		{"2026-06-01T20:00:00.000-07:00", false},
		{"2026-06-01T20:00:00Z", false},
		{"2026-06-01T20:00:00", true},
		{"2026-06-01 20:00:00", true},
		{"2026-06-01", true},
	}
	for _, c := range cases {
		got, err := ParseTime(c.in)
		if err != nil {
			t.Fatalf("ParseTime(%q): %v", c.in, err)
		}
		if got.Naive != c.naive {
			t.Fatalf("ParseTime(%q): naive=%v, want %v", c.in, got.Naive, c.naive)
		}
	}
	if _, err := ParseTime("next Tuesday"); err == nil {
		t.Fatalf("expected error for prose timestamp")
	}
}

func TestTimeInAnchorsNaiveOnly(t *testing.T) {
	la, err := time.LoadLocation("America/Los_Angeles")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	naive, _ := ParseTime("2026-06-01T20:00:00")
	anchored := naive.In(la)
	if anchored.Naive {
		t.Fatalf("anchoring must clear the naive flag")
	}
	if got := anchored.Format("2006-01-02T15:04:05-07:00"); got != "2026-06-01T20:00:00-07:00" {
		t.Fatalf("anchored time: %q", got)
	}

	fixed, _ := ParseTime("2026-06-01T20:00:00+02:00")
	if got := fixed.In(la); !got.Equal(fixed.Time) || got.Naive {
		t.Fatalf("offset-carrying time must pass through unchanged")
	}
}

func TestTimeJSONRoundTrip(t *testing.T) {
	var e Event
	payload := `{"title":"Launch Party","start_datetime":"2026-05-01T18:00:00-07:00","end_datetime":null}`
	if err := json.Unmarshal([]byte(payload), &e); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if e.StartDatetime == nil || e.StartDatetime.String() != "2026-05-01T18:00:00-07:00" {
		t.Fatalf("start datetime: %+v", e.StartDatetime)
	}
	if e.EndDatetime != nil {
		t.Fatalf("null end datetime must stay nil")
	}
	out, err := json.Marshal(e.StartDatetime)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(out) != `"2026-05-01T18:00:00-07:00"` {
		t.Fatalf("marshal: %s", out)
	}
}
