package llm

import (
	"strings"
	"testing"
)

func TestStripFences(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{`{"title": "Plain"}`, `{"title": "Plain"}`},
		{"```json\n{\"title\": \"Fenced\"}\n```", `{"title": "Fenced"}`},
		{"```\n{\"title\": \"Bare fence\"}\n```", `{"title": "Bare fence"}`},
		{"  {\"title\": \"Padded\"}  ", `{"title": "Padded"}`},
	}
	for _, c := range cases {
		if got := stripFences(c.in); got != c.want {
			t.Fatalf("stripFences(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestDecodeEventClean(t *testing.T) {
	evt, repaired, err := decodeEvent(`{"title": "Launch Party", "confidence_score": 0.9}`)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if repaired {
		t.Fatalf("clean payload must not report repair")
	}
	if evt.Title != "Launch Party" || evt.ConfidenceScore == nil || *evt.ConfidenceScore != 0.9 {
		t.Fatalf("decoded event: %+v", evt)
	}
}

func TestDecodeEventMissingClosingBrace(t *testing.T) {
	evt, repaired, err := decodeEvent(`{"title": "Truncated Event", "confidence_score": 0.7`)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !repaired {
		t.Fatalf("expected repair to be reported")
	}
	if evt.Title != "Truncated Event" {
		t.Fatalf("title: %q", evt.Title)
	}
}

func TestDecodeEventTrailingJunk(t *testing.T) {
	evt, repaired, err := decodeEvent(`{"title": "Event"} and then the model kept talking`)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !repaired || evt.Title != "Event" {
		t.Fatalf("repaired=%v event=%+v", repaired, evt)
	}
}

func TestDecodeEventUnrepairable(t *testing.T) {
	_, _, err := decodeEvent(`no json here at all`)
	if err == nil {
		t.Fatalf("expected the original parse error")
	}
}

func TestDecodeEventNestedUnbalanced(t *testing.T) {
	evt, repaired, err := decodeEvent(`{"title": "Nested", "location": {"type": "physical", "venue": "Hall"`)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !repaired || evt.Location == nil || evt.Location.Venue != "Hall" {
		t.Fatalf("repaired=%v event=%+v", repaired, evt)
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate(strings.Repeat("x", 400), 300); len(got) != 300 {
		t.Fatalf("truncate length: %d", len(got))
	}
	if got := truncate("short", 300); got != "short" {
		t.Fatalf("short strings must pass through: %q", got)
	}
}
