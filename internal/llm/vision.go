package llm

import (
	"context"
	"encoding/base64"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/oaklog/eventagent/internal/event"
	"github.com/oaklog/eventagent/internal/prompt"
)

// VisionExtractor extracts events through an OpenAI-compatible multimodal
// endpoint. Screenshots accompany the text prompt, and the image path sends
// the poster or flyer directly.
type VisionExtractor struct {
	Client  Client
	Model   string
	Prompts prompt.Builder

	MaxRetries int
	BaseDelay  time.Duration
	Sleep      func(ctx context.Context, d time.Duration) error
}

func (e *VisionExtractor) session() session {
	return session{
		client:     e.Client,
		model:      e.Model,
		maxRetries: e.MaxRetries,
		baseDelay:  e.BaseDelay,
		sleep:      e.Sleep,
	}
}

// ExtractText implements Extractor. When a screenshot is present it is
// attached alongside the prompt so the model can read content the text
// extraction missed.
func (e *VisionExtractor) ExtractText(ctx context.Context, url, content string, screenshot []byte) (event.Event, error) {
	s := e.session()
	text := e.Prompts.Extraction(url, content)

	var msg openai.ChatCompletionMessage
	if len(screenshot) > 0 {
		msg = openai.ChatCompletionMessage{
			Role: openai.ChatMessageRoleUser,
			MultiContent: []openai.ChatMessagePart{
				{Type: openai.ChatMessagePartTypeText, Text: text},
				imagePart(screenshot),
			},
		}
	} else {
		msg = openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: text}
	}

	evt, raw, ok, err := s.generate(ctx, []openai.ChatCompletionMessage{msg}, "extraction for "+url)
	if err != nil {
		return event.Event{}, err
	}
	if !ok {
		return failureEvent(url, raw, s.retries()), nil
	}
	return finalize(evt, url), nil
}

// ExtractImage implements Extractor by sending the image with the dedicated
// image-extraction prompt. The resulting record carries no source URL.
func (e *VisionExtractor) ExtractImage(ctx context.Context, image []byte, sourceDescription string) (event.Event, error) {
	if len(image) == 0 {
		return event.Event{
			Title:           event.TitleFailed,
			ConfidenceScore: event.Score(0),
			ExtractionNotes: "Failed to decode image: empty payload",
		}, nil
	}

	s := e.session()
	msg := openai.ChatCompletionMessage{
		Role: openai.ChatMessageRoleUser,
		MultiContent: []openai.ChatMessagePart{
			{Type: openai.ChatMessagePartTypeText, Text: e.Prompts.ImageExtraction()},
			imagePart(image),
		},
	}

	evt, raw, ok, err := s.generate(ctx, []openai.ChatCompletionMessage{msg}, "image extraction")
	if err != nil {
		return event.Event{}, err
	}
	if !ok {
		return failureEvent("", raw, s.retries()), nil
	}
	evt = finalize(evt, "")
	if sourceDescription != "" {
		evt.ExtractionNotes = event.PrependNote("Source: "+sourceDescription+".", evt.ExtractionNotes)
	}
	return evt, nil
}

// imagePart wraps raw image bytes as a base64 data URL part, sniffing the
// content type from the payload.
func imagePart(image []byte) openai.ChatMessagePart {
	mime := http.DetectContentType(image)
	return openai.ChatMessagePart{
		Type: openai.ChatMessagePartTypeImageURL,
		ImageURL: &openai.ChatMessageImageURL{
			URL: "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(image),
		},
	}
}
