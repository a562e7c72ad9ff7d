package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/rs/zerolog/log"

	"github.com/oaklog/eventagent/internal/event"
	"github.com/oaklog/eventagent/internal/prompt"
)

// Retry constants. Ceilings are fixed rather than configurable per call to
// bound worst-case latency.
const (
	defaultMaxRetries = 3
	defaultBaseDelay  = 2 * time.Second
)

const noteRepaired = "JSON parsing required repair."

// ChatExtractor extracts events through an OpenAI-compatible chat endpoint.
// It is text-only: screenshots are ignored on the text path and the image
// path reports the capability gap. One ChatExtractor serves any number of
// concurrent calls; no state persists across them.
type ChatExtractor struct {
	Client  Client
	Model   string
	Prompts prompt.Builder

	// MaxRetries and BaseDelay default to the package constants when zero.
	MaxRetries int
	BaseDelay  time.Duration

	// Sleep allows tests to intercept backoff waits. Nil means a
	// context-aware sleep.
	Sleep func(ctx context.Context, d time.Duration) error
}

func (e *ChatExtractor) session() session {
	return session{
		client:     e.Client,
		model:      e.Model,
		maxRetries: e.MaxRetries,
		baseDelay:  e.BaseDelay,
		sleep:      e.Sleep,
	}
}

// ExtractText implements Extractor. A provided screenshot is logged and
// dropped; most OpenAI-compatible endpoints are not multimodal.
func (e *ChatExtractor) ExtractText(ctx context.Context, url, content string, screenshot []byte) (event.Event, error) {
	if screenshot != nil {
		log.Info().Str("url", url).Msg("screenshot provided but ignored; provider is text-only")
	}
	s := e.session()
	msgs := []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleUser, Content: e.Prompts.Extraction(url, content)},
	}
	evt, raw, ok, err := s.generate(ctx, msgs, "extraction for "+url)
	if err != nil {
		return event.Event{}, err
	}
	if !ok {
		return failureEvent(url, raw, s.retries()), nil
	}
	return finalize(evt, url), nil
}

// ExtractImage implements Extractor by reporting the capability gap: this
// provider cannot see images, so the caller is pointed at the text path.
func (e *ChatExtractor) ExtractImage(_ context.Context, _ []byte, sourceDescription string) (event.Event, error) {
	log.Warn().Msg("image extraction not supported for this provider")
	notes := "Image extraction not supported for this LLM provider. Please submit a URL with text content instead."
	if sourceDescription != "" {
		notes += " Source: " + sourceDescription
	}
	return event.Event{
		Title:           event.TitleFailed,
		ConfidenceScore: event.Score(0),
		ExtractionNotes: notes,
	}, nil
}

// session bundles the per-call retry parameters shared by all provider
// variants.
type session struct {
	client     Client
	model      string
	maxRetries int
	baseDelay  time.Duration
	sleep      func(ctx context.Context, d time.Duration) error
}

func (s session) retries() int {
	if s.maxRetries > 0 {
		return s.maxRetries
	}
	return defaultMaxRetries
}

func (s session) delay() time.Duration {
	if s.baseDelay > 0 {
		return s.baseDelay
	}
	return defaultBaseDelay
}

func (s session) wait(ctx context.Context, d time.Duration) error {
	if s.sleep != nil {
		return s.sleep(ctx, d)
	}
	return sleepCtx(ctx, d)
}

// generate runs the retry loop: call the model, strip fences, parse with
// repair, and back off between attempts. It returns ok=false once all
// attempts are exhausted, with raw holding the last response text for
// diagnosis. The error return is non-nil only when the context ends.
func (s session) generate(ctx context.Context, msgs []openai.ChatCompletionMessage, errCtx string) (evt event.Event, raw string, ok bool, err error) {
	if s.client == nil || strings.TrimSpace(s.model) == "" {
		return event.Event{}, "", false, errors.New("extractor not configured")
	}
	req := openai.ChatCompletionRequest{
		Model:       s.model,
		Messages:    msgs,
		Temperature: 0.1,
		N:           1,
	}

	retries := s.retries()
	var lastErr error
	for attempt := 0; attempt < retries; attempt++ {
		resp, callErr := s.client.CreateChatCompletion(ctx, req)
		if callErr == nil && len(resp.Choices) == 0 {
			callErr = errors.New("no choices in response")
		}
		if callErr == nil {
			raw = stripFences(resp.Choices[0].Message.Content)
			parsed, repaired, parseErr := decodeEvent(raw)
			if parseErr == nil {
				if repaired {
					log.Info().Str("context", errCtx).Msg("json repair successful")
					parsed.ExtractionNotes = event.PrependNote(noteRepaired, parsed.ExtractionNotes)
				}
				if parsed.Location != nil && parsed.Location.Type == "" {
					parsed.Location.Type = event.LocationPhysical
				}
				return parsed, raw, true, nil
			}
			log.Warn().Str("context", errCtx).Err(parseErr).Msg("json parse failed after repair attempts")
			callErr = parseErr
		}

		lastErr = callErr
		if attempt == retries-1 {
			break
		}
		d := backoffFor(callErr, attempt, s.delay())
		log.Warn().
			Str("context", errCtx).
			Err(callErr).
			Dur("backoff", d).
			Int("attempt", attempt+1).
			Int("max_attempts", retries).
			Msg("model call failed, retrying")
		if waitErr := s.wait(ctx, d); waitErr != nil {
			return event.Event{}, raw, false, waitErr
		}
	}

	log.Error().Str("context", errCtx).Err(lastErr).Int("attempts", retries).Msg("extraction failed")
	return event.Event{}, raw, false, nil
}

// backoffFor classifies a failure and picks the wait before the next attempt:
// exponential for rate limits and quota exhaustion, doubled again for
// model-loading cold starts, and a flat second for everything else.
func backoffFor(err error, attempt int, base time.Duration) time.Duration {
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "503") || strings.Contains(msg, "loading"):
		return base * time.Duration(1<<attempt) * 2
	case strings.Contains(msg, "429") || strings.Contains(msg, "rate") || strings.Contains(msg, "quota"):
		return base * time.Duration(1<<attempt)
	default:
		return time.Second
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// finalize applies post-success normalization shared by every provider: the
// source URL always comes from the request, never from the model, and a
// missing title gets the fallback sentinel.
func finalize(evt event.Event, sourceURL string) event.Event {
	evt.SourceURL = sourceURL
	if strings.TrimSpace(evt.Title) == "" {
		evt.Title = event.TitleUnknown
	}
	return evt
}

// failureEvent builds the terminal sentinel returned when every attempt has
// been exhausted. The last raw response rides along, truncated, for
// diagnosis.
func failureEvent(sourceURL, raw string, attempts int) event.Event {
	notes := fmt.Sprintf("Failed after %d attempts", attempts)
	if raw != "" {
		notes += "\nLast response: " + truncate(raw, 300)
	}
	return event.Event{
		Title:           event.TitleFailed,
		SourceURL:       sourceURL,
		ConfidenceScore: event.Score(0),
		ExtractionNotes: notes,
	}
}
