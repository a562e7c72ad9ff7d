package prompt

import (
	"fmt"
	"strings"
	"time"
)

// DefaultTimezoneName is the zone assumed when a source is silent about
// timezone.
const DefaultTimezoneName = "America/Los_Angeles"

// Builder produces the instruction templates sent to the model. Given
// identical content and a frozen clock, output is byte-identical.
type Builder struct {
	// Location resolves the default timezone offset. Nil means UTC.
	Location *time.Location
	// TimezoneName is the label quoted in the instructions, e.g.
	// "America/Los_Angeles".
	TimezoneName string
	// Now allows tests to freeze the clock. Nil means time.Now.
	Now func() time.Time
}

type timeContext struct {
	currentDate string
	currentYear int
	nextYear    int
	offset      string
	zoneName    string
}

func (b Builder) timeContext() timeContext {
	now := time.Now
	if b.Now != nil {
		now = b.Now
	}
	t := now()
	if b.Location != nil {
		t = t.In(b.Location)
	}
	name := b.TimezoneName
	if name == "" {
		name = DefaultTimezoneName
	}
	return timeContext{
		currentDate: t.Format("2006-01-02"),
		currentYear: t.Year(),
		nextYear:    t.Year() + 1,
		offset:      t.Format("-07:00"),
		zoneName:    name,
	}
}

// schema renders the exact output schema the model must follow, with the
// current offset and zone label substituted in.
func (c timeContext) schema() string {
	return fmt.Sprintf(`{
  "title": "string (required - the event name/title)",
  "description": "string or null (event description/details)",
  "start_datetime": "ISO 8601 datetime WITH timezone offset (e.g., '2026-01-20T18:30:00%[1]s')",
  "end_datetime": "ISO 8601 datetime WITH timezone offset or null (e.g., '2026-01-20T21:00:00%[1]s')",
  "timezone": "string or null (e.g., '%[2]s', 'PST') - also include offset in datetimes above",
  "location": {
    "type": "physical" | "virtual" | "hybrid",
    "venue": "string or null (venue name)",
    "address": "string or null (full address)",
    "city": "string or null",
    "url": "string or null (for virtual events)"
  } or null,
  "organizer": {
    "name": "string or null",
    "contact": "string or null (email or phone)",
    "url": "string or null"
  } or null,
  "registration_url": "string or null (link to register/buy tickets)",
  "price": "string or null (e.g., 'Free', '$20', '$10-$25')",
  "tags": ["array", "of", "strings"],
  "image_url": "string or null (main event image URL)",
  "confidence_score": number between 0 and 1 (your confidence in this extraction),
  "extraction_notes": "string or null (any issues, ambiguities, or important notes)"
}`, c.offset, c.zoneName)
}

// Extraction builds the prompt for extracting an event from page content.
func (b Builder) Extraction(url, content string) string {
	ctx := b.timeContext()
	var sb strings.Builder
	sb.WriteString("You are an expert at extracting structured event information from web pages.\n\n")
	sb.WriteString("Today's date is: ")
	sb.WriteString(ctx.currentDate)
	sb.WriteString("\n\nI will provide you with content from a webpage at: ")
	sb.WriteString(url)
	sb.WriteString("\n\nYour task is to extract event information and return it as valid JSON matching this exact schema:\n\n")
	sb.WriteString(ctx.schema())
	sb.WriteString("\n\nIMPORTANT INSTRUCTIONS:\n")
	sb.WriteString("1. Return ONLY valid JSON, no markdown code blocks or other text\n")
	sb.WriteString("2. Use null for any fields you cannot determine\n")
	sb.WriteString("3. For dates/times:\n")
	sb.WriteString("   - PREFER dates found in \"STRUCTURED EVENT DATA\" section if available - these are authoritative\n")
	fmt.Fprintf(&sb, "   - Use %d as the year unless a different year is explicitly shown\n", ctx.currentYear)
	fmt.Fprintf(&sb, "   - Exception: In Nov/Dec, if the event is for Jan/Feb without a year, use %d\n", ctx.nextYear)
	fmt.Fprintf(&sb, "   - When in doubt, assume the current year (%d)\n", ctx.currentYear)
	sb.WriteString("4. For timezone:\n")
	sb.WriteString("   - ALWAYS include timezone offset in the datetime string\n")
	fmt.Fprintf(&sb, "   - Default to %s: %s (current offset, accounts for DST)\n", ctx.zoneName, ctx.offset)
	sb.WriteString("   - Only use a different timezone if explicitly stated in the content\n")
	sb.WriteString("5. If the page contains MULTIPLE events, extract the PRIMARY or FIRST event\n")
	sb.WriteString("6. Set confidence_score based on how complete and certain the information is\n")
	sb.WriteString("7. Use extraction_notes to explain any assumptions, missing data, or ambiguities\n")
	sb.WriteString("\nWEBPAGE CONTENT:\n")
	sb.WriteString(content)
	sb.WriteString("\n\nReturn your JSON response now:")
	return sb.String()
}

// ImageExtraction builds the prompt for extracting an event from an attached
// image such as a poster or flyer.
func (b Builder) ImageExtraction() string {
	ctx := b.timeContext()
	var sb strings.Builder
	sb.WriteString("You are an expert at extracting event information from images such as event posters, flyers, screenshots, and promotional materials.\n\n")
	sb.WriteString("Today's date is: ")
	sb.WriteString(ctx.currentDate)
	sb.WriteString("\n\nAnalyze the attached image and extract event information. Return valid JSON matching this exact schema:\n\n")
	sb.WriteString(ctx.schema())
	sb.WriteString("\n\nIMPORTANT INSTRUCTIONS:\n")
	sb.WriteString("1. Return ONLY valid JSON, no markdown code blocks or other text\n")
	sb.WriteString("2. Use null for any fields you cannot determine from the image\n")
	sb.WriteString("3. For dates/times:\n")
	sb.WriteString("   - If only a date is shown without time, set a reasonable time based on context (evening events ~19:00)\n")
	fmt.Fprintf(&sb, "   - Use %d as the year unless a different year is explicitly shown\n", ctx.currentYear)
	fmt.Fprintf(&sb, "   - Exception: In Nov/Dec, if the event is for Jan/Feb without a year, use %d\n", ctx.nextYear)
	fmt.Fprintf(&sb, "   - When in doubt, assume the current year (%d)\n", ctx.currentYear)
	sb.WriteString("4. For timezone:\n")
	fmt.Fprintf(&sb, "   - ALWAYS include timezone offset in datetime (e.g., '2026-01-20T19:00:00%s')\n", ctx.offset)
	fmt.Fprintf(&sb, "   - Default to %s: %s (current offset, accounts for DST)\n", ctx.zoneName, ctx.offset)
	sb.WriteString("   - Only use a different timezone if explicitly stated in the image\n")
	sb.WriteString("5. Read ALL text in the image carefully - event details are often in smaller text\n")
	sb.WriteString("6. Set confidence_score LOWER if:\n")
	sb.WriteString("   - Text is blurry, small, or hard to read\n")
	sb.WriteString("   - Information appears cut off or partially visible\n")
	sb.WriteString("   - Image quality is poor\n")
	sb.WriteString("   - You had to make assumptions about unclear text\n")
	sb.WriteString("7. Use extraction_notes to document:\n")
	sb.WriteString("   - Any text you couldn't read clearly\n")
	sb.WriteString("   - Assumptions you made\n")
	sb.WriteString("   - Parts of the image that seem cut off\n")
	sb.WriteString("\nReturn your JSON response now:")
	return sb.String()
}
