// interface.go - Gateway interface shared by the OCR/LLM providers

package ai

import (
	"context"
	"strings"

	"github.com/bosocmputer/ocr_translate/internal/common"
	"github.com/bosocmputer/ocr_translate/internal/document"
)

// NoResultFound replaces an OCR result with no text
const NoResultFound = "⚠️ No result found"

// Gateway performs exactly one remote call per method invocation.
// Implementations never retry.
type Gateway interface {
	// OCR sends the document reference to the OCR endpoint
	OCR(ctx context.Context, ref document.Reference, reqCtx *common.RequestContext) (*OCRResult, error)

	// Complete submits prompt as a single user turn and returns the first choice
	Complete(ctx context.Context, prompt string, reqCtx *common.RequestContext) (*ChatResult, error)

	// ProviderName returns the name of the provider (e.g., "gemini", "mistral")
	ProviderName() string

	// Close releases the underlying client
	Close() error
}

// Factory builds a Gateway for an operator-supplied API key
type Factory func(apiKey string) (Gateway, error)

// PageImage is an image the OCR service extracted from a page
type PageImage struct {
	ID      string `json:"id"`
	DataURI string `json:"data_uri,omitempty"`
}

// Page is one page of OCR output
type Page struct {
	Index    int         `json:"index"`
	Markdown string      `json:"markdown"`
	Images   []PageImage `json:"images,omitempty"`
}

// OCRResult is the parsed OCR response
type OCRResult struct {
	Model          string             `json:"model"`
	Pages          []Page             `json:"pages"`
	PagesProcessed int                `json:"pages_processed"`
	Usage          *common.TokenUsage `json:"usage,omitempty"`
}

// Text joins page markdown in page order with a blank line between pages.
// A result without any text yields NoResultFound.
func (r *OCRResult) Text() string {
	if r == nil {
		return NoResultFound
	}
	return JoinPages(r.Pages)
}

// Images returns every extracted image keyed by its id
func (r *OCRResult) Images() map[string]string {
	images := make(map[string]string)
	if r == nil {
		return images
	}
	for _, page := range r.Pages {
		for _, img := range page.Images {
			if img.ID != "" && img.DataURI != "" {
				images[img.ID] = img.DataURI
			}
		}
	}
	return images
}

// JoinPages concatenates page markdown with "\n\n"; whitespace-only output becomes NoResultFound.
func JoinPages(pages []Page) string {
	parts := make([]string, 0, len(pages))
	for _, page := range pages {
		parts = append(parts, page.Markdown)
	}

	joined := strings.Join(parts, "\n\n")
	if strings.TrimSpace(joined) == "" {
		return NoResultFound
	}
	return joined
}

// ChatResult is the first choice of a chat completion
type ChatResult struct {
	Model   string             `json:"model"`
	Content string             `json:"content"`
	Usage   *common.TokenUsage `json:"usage,omitempty"`
}
