// markdown.go - Markdown view of OCR and chat results

package render

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

// Renderer converts result markdown to HTML. Raw HTML in the input is
// dropped and only image data URIs goldmark considers safe are kept.
type Renderer struct {
	md goldmark.Markdown
}

// NewRenderer creates a GitHub-flavoured markdown renderer
func NewRenderer() *Renderer {
	return &Renderer{
		md: goldmark.New(goldmark.WithExtensions(extension.GFM)),
	}
}

// Render inlines images and converts text to HTML
func (r *Renderer) Render(text string, images map[string]string) (template.HTML, error) {
	var buf bytes.Buffer
	if err := r.md.Convert([]byte(InlineImages(text, images)), &buf); err != nil {
		return "", fmt.Errorf("failed to render markdown: %w", err)
	}
	return template.HTML(buf.String()), nil
}

// InlineImages points image references like ![img-0.jpeg](img-0.jpeg)
// at the data URI extracted for that id.
func InlineImages(markdown string, images map[string]string) string {
	for id, dataURI := range images {
		if dataURI == "" {
			continue
		}
		markdown = strings.ReplaceAll(markdown, fmt.Sprintf("![%s](%s)", id, id), fmt.Sprintf("![%s](%s)", id, dataURI))
	}
	return markdown
}
