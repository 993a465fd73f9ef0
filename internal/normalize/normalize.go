// Package normalize converts backend summary payloads into the forms the
// engine stores and indexes. Summaries arrive as HTML fragments; we keep
// Markdown for display, plain text for the search index, and folded terms
// for query matching.
package normalize

import (
	"regexp"
	"strings"
	"unicode"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"golang.org/x/net/html"
	"golang.org/x/text/unicode/norm"
)

// htmlTagPattern matches common HTML tags to detect if a string contains HTML.
// Looks for opening tags like <p>, <br>, <div>, <b>, etc.
var htmlTagPattern = regexp.MustCompile(`<(p|br|div|span|b|i|strong|em|a|ul|ol|li|h[1-6]|blockquote)[\s>/]`)

// ContainsHTML checks if a string appears to contain HTML markup.
func ContainsHTML(s string) bool {
	return htmlTagPattern.MatchString(strings.ToLower(s))
}

// Markdown converts an HTML summary fragment to Markdown.
// Plain-text input is returned unchanged apart from sanitization.
func Markdown(s string) string {
	s = sanitizeString(s)
	if s == "" || !ContainsHTML(s) {
		return strings.TrimSpace(s)
	}

	markdown, err := htmltomarkdown.ConvertString(s)
	if err != nil {
		// If conversion fails, keep the original string.
		return strings.TrimSpace(s)
	}

	return strings.TrimSpace(markdown)
}

// PlainText strips HTML tags and returns the text content.
// Handles common HTML entities and collapses whitespace.
func PlainText(s string) string {
	s = sanitizeString(s)
	if s == "" {
		return ""
	}
	if !ContainsHTML(s) {
		return strings.TrimSpace(collapseWhitespace(html.UnescapeString(s)))
	}

	doc, err := html.Parse(strings.NewReader(s))
	if err != nil {
		// If parsing fails, fall back to regex stripping.
		return strings.TrimSpace(stripHTMLFallback(s))
	}

	var buf strings.Builder
	extractText(doc, &buf)

	return strings.TrimSpace(collapseWhitespace(buf.String()))
}

// extractText recursively extracts text content from HTML nodes.
func extractText(n *html.Node, buf *strings.Builder) {
	if n.Type == html.TextNode {
		buf.WriteString(n.Data)
	}

	// Block elements act as word boundaries.
	if n.Type == html.ElementNode {
		switch n.Data {
		case "p", "div", "br", "li", "h1", "h2", "h3", "h4", "h5", "h6":
			buf.WriteString(" ")
		}
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		extractText(c, buf)
	}

	if n.Type == html.ElementNode {
		switch n.Data {
		case "p", "div", "li", "h1", "h2", "h3", "h4", "h5", "h6":
			buf.WriteString(" ")
		}
	}
}

// stripHTMLFallback uses regex when parsing fails.
var htmlTagRegex = regexp.MustCompile(`<[^>]*>`)

func stripHTMLFallback(s string) string {
	s = htmlTagRegex.ReplaceAllString(s, " ")
	s = html.UnescapeString(s)
	return collapseWhitespace(s)
}

// collapseWhitespace replaces multiple whitespace with single space.
var whitespaceRegex = regexp.MustCompile(`\s+`)

func collapseWhitespace(s string) string {
	return whitespaceRegex.ReplaceAllString(s, " ")
}

// FoldTerm normalizes a search term for matching: Unicode decomposition,
// combining marks dropped, lowercased, whitespace collapsed.
// "Café Müller" -> "cafe muller".
func FoldTerm(s string) string {
	s = norm.NFKD.String(sanitizeString(s))

	s = strings.Map(func(r rune) rune {
		if unicode.Is(unicode.Mn, r) { // combining mark
			return -1
		}
		return r
	}, s)

	return strings.TrimSpace(collapseWhitespace(strings.ToLower(s)))
}

// sanitizeString removes null bytes, which can break JSON parsing and
// the search index. Some upstream payloads include null terminators.
func sanitizeString(s string) string {
	return strings.Map(func(r rune) rune {
		if r == 0 { // null byte
			return -1
		}
		return r
	}, s)
}
