package server

import (
	"bytes"
	"html"

	"github.com/yuin/goldmark"
)

// renderHTML converts model output (often markdown-ish) to HTML for display.
// On conversion failure the escaped raw text is returned.
func renderHTML(md string) string {
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(md), &buf); err != nil {
		return "<pre>" + html.EscapeString(md) + "</pre>"
	}
	return buf.String()
}
