// Package pipeline wires fetch, content processing, extraction,
// reconciliation, and validation into the two user-facing operations: scrape
// a URL, or analyze an image.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/oaklog/eventagent/internal/content"
	"github.com/oaklog/eventagent/internal/event"
	"github.com/oaklog/eventagent/internal/llm"
	"github.com/oaklog/eventagent/internal/metrics"
	"github.com/oaklog/eventagent/internal/pagesource"
	"github.com/oaklog/eventagent/internal/reconcile"
	"github.com/oaklog/eventagent/internal/validate"
)

// lowConfidenceThreshold marks the score below which a successful extraction
// still carries a warning.
const lowConfidenceThreshold = 0.3

// Pipeline stage names recorded in response metadata.
const (
	stageFetch      = "fetch"
	stageExtraction = "extraction"
	stageCompleted  = "completed"
	stageUnknown    = "unknown"
)

// Run outcomes recorded in metrics.
const (
	outcomeSuccess          = "success"
	outcomeFetchFailed      = "fetch_failed"
	outcomeExtractionFailed = "extraction_failed"
	outcomeLowConfidence    = "low_confidence"
	outcomePanic            = "panic"
)

// ContentSource produces pages for the scrape path. The plain HTTP client in
// pagesource satisfies it; a browser-backed source would too.
type ContentSource interface {
	Fetch(ctx context.Context, url string) (pagesource.Page, error)
}

// Response is the terminal result of one pipeline run. A failed run still
// carries the failure-sentinel event when one exists, so callers always see
// what the model last produced.
type Response struct {
	Success  bool           `json:"success"`
	Event    *event.Event   `json:"event,omitempty"`
	Error    string         `json:"error,omitempty"`
	Metadata map[string]any `json:"metadata"`
}

// Orchestrator runs the extraction pipeline. Metrics may be nil.
type Orchestrator struct {
	Source     ContentSource
	Extractor  llm.Extractor
	Normalizer content.Normalizer
	Validator  validate.Policy
	Metrics    *metrics.Collector
}

// ScrapeEvent runs the full pipeline for a URL: fetch, normalize, extract,
// apply structured-data overrides, validate, classify. It never returns an
// error to the caller; every failure mode is folded into the Response.
func (o *Orchestrator) ScrapeEvent(ctx context.Context, url string) (resp Response) {
	started := time.Now()
	meta := map[string]any{
		"url":    url,
		"run_id": uuid.NewString(),
	}
	defer func() {
		if r := recover(); r != nil {
			log.Error().Str("url", url).Any("panic", r).Msg("pipeline panic")
			meta["stage"] = stageUnknown
			resp = Response{
				Success:  false,
				Error:    fmt.Sprintf("Unexpected error in scraping pipeline: %v", r),
				Metadata: meta,
			}
			o.Metrics.ObserveRun("scrape", outcomePanic, time.Since(started), nil)
		}
	}()

	page, err := o.Source.Fetch(ctx, url)
	if err == nil && !page.Success {
		err = fmt.Errorf("%s", page.Error)
	}
	if err != nil {
		meta["stage"] = stageFetch
		o.Metrics.ObserveRun("scrape", outcomeFetchFailed, time.Since(started), nil)
		return Response{Success: false, Error: err.Error(), Metadata: meta}
	}

	doc := o.Normalizer.Normalize(page.HTML, page.Text, page.Title)
	if doc.Title != "" {
		meta["page_title"] = doc.Title
	}
	meta["content_length"] = len(doc.Text)

	evt, err := o.Extractor.ExtractText(ctx, url, doc.Text, page.Screenshot)
	if err != nil {
		meta["stage"] = stageExtraction
		o.Metrics.ObserveRun("scrape", outcomeExtractionFailed, time.Since(started), nil)
		return Response{Success: false, Error: err.Error(), Metadata: meta}
	}

	if doc.Structured != nil {
		evt = reconcile.Apply(evt, doc.Structured)
	}
	evt = o.Validator.Validate(evt)
	if evt.ConfidenceScore != nil {
		meta["confidence_score"] = *evt.ConfidenceScore
	}

	return o.classify(&evt, meta, "scrape",
		"LLM extraction failed",
		"Low confidence extraction - data may be incomplete",
		started)
}

// AnalyzeImage extracts an event from an image such as a poster or flyer. No
// fetch or content processing is involved; the bytes go straight to the
// extractor and the result is validated like any other record.
func (o *Orchestrator) AnalyzeImage(ctx context.Context, image []byte, sourceDescription string) (resp Response) {
	started := time.Now()
	meta := map[string]any{
		"parse_mode": "image",
		"run_id":     uuid.NewString(),
		"image_size": len(image),
	}
	if sourceDescription != "" {
		meta["source_description"] = sourceDescription
	}
	defer func() {
		if r := recover(); r != nil {
			log.Error().Any("panic", r).Msg("pipeline panic")
			meta["stage"] = stageUnknown
			resp = Response{
				Success:  false,
				Error:    fmt.Sprintf("Unexpected error in scraping pipeline: %v", r),
				Metadata: meta,
			}
			o.Metrics.ObserveRun("image", outcomePanic, time.Since(started), nil)
		}
	}()

	evt, err := o.Extractor.ExtractImage(ctx, image, sourceDescription)
	if err != nil {
		meta["stage"] = stageExtraction
		o.Metrics.ObserveRun("image", outcomeExtractionFailed, time.Since(started), nil)
		return Response{Success: false, Error: err.Error(), Metadata: meta}
	}

	evt = o.Validator.Validate(evt)
	if evt.ConfidenceScore != nil {
		meta["confidence_score"] = *evt.ConfidenceScore
	}

	return o.classify(&evt, meta, "image",
		"Image extraction failed",
		"Low confidence extraction - image may be unclear",
		started)
}

// classify turns a validated record into the terminal response: failed
// sentinel, low-confidence success, or full success.
func (o *Orchestrator) classify(evt *event.Event, meta map[string]any, mode, failMsg, lowMsg string, started time.Time) Response {
	if evt.Failed() {
		meta["stage"] = stageExtraction
		o.Metrics.ObserveRun(mode, outcomeExtractionFailed, time.Since(started), evt.ConfidenceScore)
		return Response{Success: false, Event: evt, Error: failMsg, Metadata: meta}
	}

	if evt.ConfidenceScore != nil && *evt.ConfidenceScore < lowConfidenceThreshold {
		meta["stage"] = stageCompleted
		meta["warning"] = "low_confidence"
		o.Metrics.ObserveRun(mode, outcomeLowConfidence, time.Since(started), evt.ConfidenceScore)
		return Response{Success: true, Event: evt, Error: lowMsg, Metadata: meta}
	}

	meta["stage"] = stageCompleted
	o.Metrics.ObserveRun(mode, outcomeSuccess, time.Since(started), evt.ConfidenceScore)
	return Response{Success: true, Event: evt, Metadata: meta}
}
