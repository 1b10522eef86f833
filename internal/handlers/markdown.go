package handlers

import (
	"bytes"
	"html/template"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

// Raw HTML in reports is escaped (goldmark's default without html.WithUnsafe).
var reportMarkdown = goldmark.New(
	goldmark.WithExtensions(extension.GFM),
	goldmark.WithRendererOptions(html.WithHardWraps()),
)

// renderReport turns the model's markdown-ish report into safe HTML.
func renderReport(report string) template.HTML {
	if strings.TrimSpace(report) == "" {
		return ""
	}

	var buf bytes.Buffer
	if err := reportMarkdown.Convert([]byte(report), &buf); err != nil {
		escaped := template.HTMLEscapeString(report)
		return template.HTML("<p>" + strings.ReplaceAll(escaped, "\n", "<br>") + "</p>")
	}
	return template.HTML(buf.String())
}
