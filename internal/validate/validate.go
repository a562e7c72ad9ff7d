// Package validate checks extracted events for plausibility. Validation warns
// but never rejects: implausible records lose confidence and gain audit notes,
// and only a provably wrong end time is ever removed.
package validate

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/oaklog/eventagent/internal/event"
)

// baselineConfidence substitutes for a missing confidence score so that
// penalties have something to subtract from.
const baselineConfidence = 0.5

const (
	penaltyTitle    = 0.3
	penaltyPast     = 0.2
	penaltyFuture   = 0.2
	penaltyEndOrder = 0.1
)

// Date windows a real upcoming event should fall inside.
const (
	maxPastDays   = 365
	maxFutureDays = 730
)

// Policy holds the validation environment. DefaultZone anchors timestamps
// that arrived without an offset; Now is injectable for tests and defaults to
// time.Now.
type Policy struct {
	DefaultZone *time.Location
	Now         func() time.Time
}

func (p Policy) now() time.Time {
	if p.Now != nil {
		return p.Now()
	}
	return time.Now()
}

func (p Policy) zone() *time.Location {
	if p.DefaultZone != nil {
		return p.DefaultZone
	}
	return time.UTC
}

// Validate returns a copy of evt with confidence adjusted and issues noted.
// The record always comes back; an implausible record only gets cheaper.
func (p Policy) Validate(evt event.Event) event.Event {
	out := evt.Clone()
	var issues []string
	penalty := 0.0
	now := p.now()

	if strings.TrimSpace(out.Title) == "" || out.Title == event.TitleFailed {
		issues = append(issues, "Missing or failed title")
		penalty += penaltyTitle
	}

	var start time.Time
	if out.StartDatetime != nil && !out.StartDatetime.IsZero() {
		start = out.StartDatetime.In(p.zone()).Time

		if start.Before(now.AddDate(0, 0, -maxPastDays)) {
			issues = append(issues, fmt.Sprintf("Start date %s is more than 1 year in the past", start.Format("2006-01-02")))
			penalty += penaltyPast
		}
		if start.After(now.AddDate(0, 0, maxFutureDays)) {
			issues = append(issues, fmt.Sprintf("Start date %s is more than 2 years in the future", start.Format("2006-01-02")))
			penalty += penaltyFuture
		}
	}

	if !start.IsZero() && out.EndDatetime != nil && !out.EndDatetime.IsZero() {
		end := out.EndDatetime.In(p.zone()).Time
		if end.Before(start) {
			issues = append(issues, fmt.Sprintf("End datetime (%s) is before start datetime (%s), removing end time",
				end.Format(time.RFC3339), start.Format(time.RFC3339)))
			out.EndDatetime = nil
			penalty += penaltyEndOrder
		}
	}

	if penalty > 0 {
		current := baselineConfidence
		if out.ConfidenceScore != nil {
			current = *out.ConfidenceScore
		}
		adjusted := math.Max(0, current-penalty)
		out.ConfidenceScore = event.Score(math.Round(adjusted*100) / 100)
	}

	if len(issues) > 0 {
		note := "Validation: " + strings.Join(issues, "; ") + "."
		out.ExtractionNotes = event.AppendNote(out.ExtractionNotes, note)
		log.Info().Str("title", out.Title).Strs("issues", issues).Msg("validation issues")
	}
	return out
}
