package content

import (
	"bytes"
	"strings"

	"golang.org/x/net/html"
)

// DefaultMaxChars bounds the combined document sent to the model.
const DefaultMaxChars = 15000

// Document is the canonical textual representation of a page, ready for
// prompting, plus any authoritative structured data found on it.
type Document struct {
	Title      string
	Text       string
	Structured map[string]any
	Truncated  bool
}

// Normalizer reduces raw page content into a bounded Document. It never
// fails: malformed HTML yields whatever text could be recovered, and a page
// without structured data yields a nil Structured map.
type Normalizer struct {
	// MaxChars caps the combined text. Zero means DefaultMaxChars.
	MaxChars int
}

// Normalize builds the Document from raw HTML plus any pre-extracted plain
// text and page title supplied by the content source. When the source
// provides no text or title, both are recovered from the HTML.
func (n Normalizer) Normalize(rawHTML []byte, text, title string) Document {
	htmlTitle, htmlText := fromHTML(rawHTML)
	if strings.TrimSpace(title) == "" {
		title = htmlTitle
	}
	if strings.TrimSpace(text) == "" {
		text = htmlText
	}

	structured := StructuredEventData(rawHTML)

	var b strings.Builder
	if structured != nil {
		b.WriteString("STRUCTURED EVENT DATA:\n")
		b.WriteString(renderStructured(structured))
		b.WriteString("\n\n")
	}
	if strings.TrimSpace(title) != "" {
		b.WriteString("PAGE TITLE: ")
		b.WriteString(strings.TrimSpace(title))
		b.WriteString("\n\n")
	}
	b.WriteString("PAGE TEXT:\n")
	b.WriteString(strings.TrimSpace(text))

	doc := Document{Title: strings.TrimSpace(title), Text: b.String(), Structured: structured}

	max := n.MaxChars
	if max <= 0 {
		max = DefaultMaxChars
	}
	if len(doc.Text) > max {
		doc.Text = doc.Text[:max] + "\n[content truncated]"
		doc.Truncated = true
	}
	return doc
}

// fromHTML extracts the title and readable text from HTML, preferring <main>
// or <article> and falling back to <body>. Headings, paragraphs, and list
// items keep their line structure; <nav>, <footer>, and script/style noise
// is skipped.
func fromHTML(input []byte) (title, text string) {
	node, err := html.Parse(bytes.NewReader(input))
	if err != nil || node == nil {
		return "", ""
	}

	title = strings.TrimSpace(findTitle(node))

	content := findFirst(node, "main")
	if content == nil {
		content = findFirst(node, "article")
	}
	if content == nil {
		content = findFirst(node, "body")
	}
	var b strings.Builder
	if content != nil {
		collectText(&b, content)
	}
	return title, normalizeWhitespace(b.String())
}

func findTitle(n *html.Node) string {
	head := findFirst(n, "head")
	if head == nil {
		return ""
	}
	t := findFirst(head, "title")
	if t == nil || t.FirstChild == nil {
		return ""
	}
	return t.FirstChild.Data
}

func findFirst(n *html.Node, tag string) *html.Node {
	var res *html.Node
	var dfs func(*html.Node)
	dfs = func(cur *html.Node) {
		if res != nil {
			return
		}
		if cur.Type == html.ElementNode && strings.EqualFold(cur.Data, tag) {
			res = cur
			return
		}
		for c := cur.FirstChild; c != nil; c = c.NextSibling {
			dfs(c)
			if res != nil {
				return
			}
		}
	}
	dfs(n)
	return res
}

func collectText(b *strings.Builder, n *html.Node) {
	if n.Type == html.ElementNode {
		name := strings.ToLower(n.Data)
		switch name {
		case "script", "style", "noscript", "nav", "footer", "aside", "iframe":
			return
		case "br", "hr":
			b.WriteString("\n")
		case "p", "h1", "h2", "h3", "h4", "h5", "h6", "li", "ul", "ol":
			b.WriteString("\n")
		}
	}

	if n.Type == html.TextNode {
		data := strings.ReplaceAll(n.Data, "\t", " ")
		data = strings.ReplaceAll(data, "\r", " ")
		b.WriteString(data)
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectText(b, c)
	}

	if n.Type == html.ElementNode {
		switch strings.ToLower(n.Data) {
		case "p", "h1", "h2", "h3", "h4", "h5", "h6":
			b.WriteString("\n\n")
		case "li":
			b.WriteString("\n")
		}
	}
}

func normalizeWhitespace(s string) string {
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			// Keep at most one consecutive blank
			if len(out) > 0 && out[len(out)-1] == "" {
				continue
			}
			if len(out) > 0 {
				out = append(out, "")
			}
			continue
		}
		out = append(out, collapseSpaces(trimmed))
	}
	for len(out) > 0 && out[len(out)-1] == "" {
		out = out[:len(out)-1]
	}
	return strings.Join(out, "\n")
}

func collapseSpaces(s string) string {
	var b strings.Builder
	lastSpace := false
	for _, r := range s {
		if r == ' ' || r == '\t' || r == '\n' || r == '\r' {
			if !lastSpace {
				b.WriteByte(' ')
				lastSpace = true
			}
			continue
		}
		b.WriteRune(r)
		lastSpace = false
	}
	return b.String()
}
