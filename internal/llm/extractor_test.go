package llm

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/oaklog/eventagent/internal/event"
)

// fakeClient replays scripted responses and errors in order, repeating the
// last entry once the script runs out.
type fakeClient struct {
	responses []openai.ChatCompletionResponse
	errs      []error
	calls     int
	lastReq   openai.ChatCompletionRequest
}

func (f *fakeClient) CreateChatCompletion(_ context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	f.lastReq = req
	i := f.calls
	f.calls++
	if i >= len(f.responses) {
		i = len(f.responses) - 1
	}
	if i < 0 {
		return openai.ChatCompletionResponse{}, errors.New("no script")
	}
	var err error
	if i < len(f.errs) {
		err = f.errs[i]
	}
	return f.responses[i], err
}

func respText(content string) openai.ChatCompletionResponse {
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Content: content}},
		},
	}
}

// noSleep keeps retry tests instant while recording requested backoffs.
func noSleep(got *[]time.Duration) func(ctx context.Context, d time.Duration) error {
	return func(_ context.Context, d time.Duration) error {
		*got = append(*got, d)
		return nil
	}
}

func TestChatExtractorSuccess(t *testing.T) {
	client := &fakeClient{responses: []openai.ChatCompletionResponse{
		respText("```json\n{\"title\": \"Launch Party\", \"confidence_score\": 0.9}\n```"),
	}}
	e := &ChatExtractor{Client: client, Model: "test-model"}

	evt, err := e.ExtractText(context.Background(), "https://example.com/ev", "page text", nil)
	if err != nil {
		t.Fatalf("ExtractText: %v", err)
	}
	if evt.Title != "Launch Party" {
		t.Fatalf("title: %q", evt.Title)
	}
	if evt.SourceURL != "https://example.com/ev" {
		t.Fatalf("source url must come from the request, got %q", evt.SourceURL)
	}
	if client.calls != 1 {
		t.Fatalf("calls: %d", client.calls)
	}
	if client.lastReq.Temperature != 0.1 {
		t.Fatalf("temperature: %v", client.lastReq.Temperature)
	}
}

func TestChatExtractorTitleFallback(t *testing.T) {
	client := &fakeClient{responses: []openai.ChatCompletionResponse{
		respText(`{"title": null, "description": "something"}`),
	}}
	e := &ChatExtractor{Client: client, Model: "test-model"}

	evt, err := e.ExtractText(context.Background(), "https://example.com", "text", nil)
	if err != nil {
		t.Fatalf("ExtractText: %v", err)
	}
	if evt.Title != event.TitleUnknown {
		t.Fatalf("title: %q", evt.Title)
	}
}

func TestChatExtractorRepairNote(t *testing.T) {
	client := &fakeClient{responses: []openai.ChatCompletionResponse{
		respText(`{"title": "Truncated Event", "confidence_score": 0.7`),
	}}
	e := &ChatExtractor{Client: client, Model: "test-model"}

	evt, err := e.ExtractText(context.Background(), "https://example.com", "text", nil)
	if err != nil {
		t.Fatalf("ExtractText: %v", err)
	}
	if evt.Title != "Truncated Event" {
		t.Fatalf("title: %q", evt.Title)
	}
	if !strings.Contains(evt.ExtractionNotes, noteRepaired) {
		t.Fatalf("notes missing repair marker: %q", evt.ExtractionNotes)
	}
}

func TestChatExtractorLocationTypeDefault(t *testing.T) {
	client := &fakeClient{responses: []openai.ChatCompletionResponse{
		respText(`{"title": "Meetup", "location": {"venue": "Hall"}}`),
	}}
	e := &ChatExtractor{Client: client, Model: "test-model"}

	evt, err := e.ExtractText(context.Background(), "https://example.com", "text", nil)
	if err != nil {
		t.Fatalf("ExtractText: %v", err)
	}
	if evt.Location == nil || evt.Location.Type != event.LocationPhysical {
		t.Fatalf("location: %+v", evt.Location)
	}
}

func TestChatExtractorExhaustsRetries(t *testing.T) {
	client := &fakeClient{
		responses: []openai.ChatCompletionResponse{{}},
		errs:      []error{errors.New("500 internal error")},
	}
	var slept []time.Duration
	e := &ChatExtractor{Client: client, Model: "test-model", Sleep: noSleep(&slept)}

	evt, err := e.ExtractText(context.Background(), "https://example.com", "text", nil)
	if err != nil {
		t.Fatalf("ExtractText: %v", err)
	}
	if evt.Title != event.TitleFailed {
		t.Fatalf("title: %q", evt.Title)
	}
	if evt.ConfidenceScore == nil || *evt.ConfidenceScore != 0 {
		t.Fatalf("confidence: %v", evt.ConfidenceScore)
	}
	if !strings.Contains(evt.ExtractionNotes, "Failed after 3 attempts") {
		t.Fatalf("notes: %q", evt.ExtractionNotes)
	}
	if client.calls != defaultMaxRetries {
		t.Fatalf("calls: %d", client.calls)
	}
	// Generic failures wait a flat second between attempts.
	if len(slept) != 2 || slept[0] != time.Second || slept[1] != time.Second {
		t.Fatalf("sleeps: %v", slept)
	}
}

func TestChatExtractorRecoversOnRetry(t *testing.T) {
	client := &fakeClient{
		responses: []openai.ChatCompletionResponse{
			{},
			respText(`{"title": "Second Try"}`),
		},
		errs: []error{errors.New("429 rate limit exceeded"), nil},
	}
	var slept []time.Duration
	e := &ChatExtractor{Client: client, Model: "test-model", Sleep: noSleep(&slept)}

	evt, err := e.ExtractText(context.Background(), "https://example.com", "text", nil)
	if err != nil {
		t.Fatalf("ExtractText: %v", err)
	}
	if evt.Title != "Second Try" {
		t.Fatalf("title: %q", evt.Title)
	}
	if len(slept) != 1 || slept[0] != defaultBaseDelay {
		t.Fatalf("sleeps: %v", slept)
	}
}

func TestBackoffClassification(t *testing.T) {
	base := 2 * time.Second
	cases := []struct {
		err     string
		attempt int
		want    time.Duration
	}{
		{"503 model is loading", 0, 4 * time.Second},
		{"503 model is loading", 1, 8 * time.Second},
		{"429 too many requests", 0, 2 * time.Second},
		{"rate limit exceeded", 1, 4 * time.Second},
		{"quota exhausted", 2, 8 * time.Second},
		{"connection refused", 0, time.Second},
		{"connection refused", 2, time.Second},
	}
	for _, c := range cases {
		if got := backoffFor(errors.New(c.err), c.attempt, base); got != c.want {
			t.Fatalf("backoffFor(%q, %d) = %v, want %v", c.err, c.attempt, got, c.want)
		}
	}
}

func TestChatExtractorContextCancelled(t *testing.T) {
	client := &fakeClient{
		responses: []openai.ChatCompletionResponse{{}},
		errs:      []error{errors.New("500 internal error")},
	}
	ctx, cancel := context.WithCancel(context.Background())
	e := &ChatExtractor{
		Client: client,
		Model:  "test-model",
		Sleep: func(ctx context.Context, _ time.Duration) error {
			cancel()
			return ctx.Err()
		},
	}

	_, err := e.ExtractText(ctx, "https://example.com", "text", nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

func TestChatExtractorImageNotSupported(t *testing.T) {
	e := &ChatExtractor{Client: &fakeClient{}, Model: "test-model"}

	evt, err := e.ExtractImage(context.Background(), []byte{0x89}, "poster.png")
	if err != nil {
		t.Fatalf("ExtractImage: %v", err)
	}
	if evt.Title != event.TitleFailed {
		t.Fatalf("title: %q", evt.Title)
	}
	if !strings.Contains(evt.ExtractionNotes, "not supported") {
		t.Fatalf("notes: %q", evt.ExtractionNotes)
	}
	if !strings.Contains(evt.ExtractionNotes, "poster.png") {
		t.Fatalf("notes missing source: %q", evt.ExtractionNotes)
	}
}

func TestVisionExtractorSendsImagePart(t *testing.T) {
	client := &fakeClient{responses: []openai.ChatCompletionResponse{
		respText(`{"title": "Poster Event"}`),
	}}
	e := &VisionExtractor{Client: client, Model: "vision-model"}

	evt, err := e.ExtractImage(context.Background(), []byte("\x89PNG\r\n\x1a\nfake"), "flyer from newsletter")
	if err != nil {
		t.Fatalf("ExtractImage: %v", err)
	}
	if evt.Title != "Poster Event" {
		t.Fatalf("title: %q", evt.Title)
	}
	if evt.SourceURL != "" {
		t.Fatalf("image records carry no source URL, got %q", evt.SourceURL)
	}
	if !strings.Contains(evt.ExtractionNotes, "flyer from newsletter") {
		t.Fatalf("notes: %q", evt.ExtractionNotes)
	}

	parts := client.lastReq.Messages[0].MultiContent
	if len(parts) != 2 {
		t.Fatalf("parts: %d", len(parts))
	}
	if parts[1].Type != openai.ChatMessagePartTypeImageURL {
		t.Fatalf("part type: %q", parts[1].Type)
	}
	if !strings.HasPrefix(parts[1].ImageURL.URL, "data:image/png;base64,") {
		t.Fatalf("image url: %q", parts[1].ImageURL.URL)
	}
}

func TestVisionExtractorEmptyImage(t *testing.T) {
	client := &fakeClient{}
	e := &VisionExtractor{Client: client, Model: "vision-model"}

	evt, err := e.ExtractImage(context.Background(), nil, "")
	if err != nil {
		t.Fatalf("ExtractImage: %v", err)
	}
	if evt.Title != event.TitleFailed {
		t.Fatalf("title: %q", evt.Title)
	}
	if client.calls != 0 {
		t.Fatalf("no model call expected, got %d", client.calls)
	}
}

func TestVisionExtractorScreenshotAttached(t *testing.T) {
	client := &fakeClient{responses: []openai.ChatCompletionResponse{
		respText(`{"title": "From Screenshot"}`),
	}}
	e := &VisionExtractor{Client: client, Model: "vision-model"}

	_, err := e.ExtractText(context.Background(), "https://example.com", "text", []byte("\xff\xd8\xfffake"))
	if err != nil {
		t.Fatalf("ExtractText: %v", err)
	}
	parts := client.lastReq.Messages[0].MultiContent
	if len(parts) != 2 || parts[1].Type != openai.ChatMessagePartTypeImageURL {
		t.Fatalf("screenshot not attached: %+v", parts)
	}
}
