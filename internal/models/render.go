package models

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
	highlighting "github.com/yuin/goldmark-highlighting"
)

var markdown = goldmark.New(
	goldmark.WithExtensions(
		extension.GFM,
		highlighting.NewHighlighting(
			highlighting.WithStyle("monokai"),
		),
	),
	goldmark.WithRendererOptions(
		html.WithHardWraps(),
		html.WithXHTML(),
	),
)

// RenderMarkdown converts markdown text into HTML.
func RenderMarkdown(text string) (string, error) {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(text), &buf); err != nil {
		return "", fmt.Errorf("failed to render markdown: %w", err)
	}
	return buf.String(), nil
}

// RenderAnswer converts a finalized assistant answer into HTML. Citation markers that
// resolve against sources become links targeting the matching source card anchor,
// unresolved markers stay inert text.
func RenderAnswer(text string, sources []SourceRecord) (string, error) {
	segs := ResolveCitations(text, sources)
	var sb strings.Builder
	for _, seg := range segs {
		if seg.SourceID > 0 {
			fmt.Fprintf(&sb, "[\\[%d\\]](#%s)", seg.SourceID, SourceAnchor(seg.SourceID))
			continue
		}
		sb.WriteString(seg.Text)
	}
	return RenderMarkdown(sb.String())
}

// SourceAnchor returns the DOM anchor id of the source card with the given effective id.
func SourceAnchor(id int) string {
	return fmt.Sprintf("source-%d", id)
}
