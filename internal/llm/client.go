package llm

import (
	"context"

	openai "github.com/sashabaranov/go-openai"

	"github.com/oaklog/eventagent/internal/event"
)

// Client is the minimal interface needed to call a chat model. It mirrors the
// CreateChatCompletion method of the go-openai client so that any
// OpenAI-compatible backend, or a test fake, can stand in.
type Client interface {
	CreateChatCompletion(ctx context.Context, request openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Extractor is the capability interface over LLM providers. Both operations
// return a failure-sentinel Event rather than an error when the model cannot
// be made to produce a usable record; the error return is reserved for caller
// cancellation (context expiry), so a cancelled run stops instead of burning
// through retries.
//
// Providers without image support must still implement ExtractImage, as a
// fixed low-confidence failure explaining the capability gap.
type Extractor interface {
	// ExtractText extracts an event record from normalized page content.
	// screenshot may be nil; providers that cannot use it ignore it.
	ExtractText(ctx context.Context, url, content string, screenshot []byte) (event.Event, error)

	// ExtractImage extracts an event record from a raw image such as a
	// poster or flyer. sourceDescription, when non-empty, records where the
	// image came from.
	ExtractImage(ctx context.Context, image []byte, sourceDescription string) (event.Event, error)
}
