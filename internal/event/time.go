package event

import (
	"fmt"
	"strings"
	"time"
)

// Time is a timestamp that tolerates the formats language models actually
// emit: RFC 3339 with or without fractional seconds, and naive timestamps
// with no offset at all. Naive records that the source text carried no
// offset; the validator re-anchors such values in the configured default
// zone before comparing them against the clock.
type Time struct {
	time.Time
	Naive bool
}

const naiveLayout = "2006-01-02T15:04:05"

var parseLayouts = []struct {
	layout string
	naive  bool
}{
	{time.RFC3339Nano, false},
	{"2006-01-02T15:04:05.999999999", true},
	{"2006-01-02 15:04:05", true},
	{"2006-01-02", true},
}

// ParseTime parses a timestamp string, accepting offset-carrying and naive
// forms. Naive values are held in UTC until a stage anchors them.
func ParseTime(s string) (Time, error) {
	s = strings.TrimSpace(s)
	for _, l := range parseLayouts {
		if t, err := time.Parse(l.layout, s); err == nil {
			return Time{Time: t, Naive: l.naive}, nil
		}
	}
	return Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

// In re-anchors a naive time in loc, keeping its wall-clock components.
// Offset-carrying times are returned unchanged.
func (t Time) In(loc *time.Location) Time {
	if !t.Naive || loc == nil {
		return t
	}
	tt := t.Time
	anchored := time.Date(tt.Year(), tt.Month(), tt.Day(), tt.Hour(), tt.Minute(), tt.Second(), tt.Nanosecond(), loc)
	return Time{Time: anchored}
}

// String renders RFC 3339 for offset-carrying times and the bare wall-clock
// form for naive ones.
func (t Time) String() string {
	if t.Naive {
		return t.Time.Format(naiveLayout)
	}
	return t.Time.Format(time.RFC3339)
}

// MarshalJSON emits the same representation String does, quoted.
func (t Time) MarshalJSON() ([]byte, error) {
	return []byte(`"` + t.String() + `"`), nil
}

// UnmarshalJSON accepts null, an RFC 3339 string, or a naive timestamp
// string. Anything else is a parse error, which the extraction adapter
// treats the same as malformed JSON.
func (t *Time) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "null" || s == `""` {
		*t = Time{}
		return nil
	}
	if len(s) < 2 || s[0] != '"' || s[len(s)-1] != '"' {
		return fmt.Errorf("timestamp must be a JSON string, got %s", s)
	}
	parsed, err := ParseTime(s[1 : len(s)-1])
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}
