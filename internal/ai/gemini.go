// gemini.go - Gemini client for OCR transcription and chat completion

package ai

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"mime"
	"net"
	"net/http"
	"net/url"
	"strings"
	"syscall"
	"time"

	"github.com/bosocmputer/ocr_translate/configs"
	"github.com/bosocmputer/ocr_translate/internal/common"
	"github.com/bosocmputer/ocr_translate/internal/document"
	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

const providerGemini = "gemini"

// maxRemoteDocument bounds documents fetched from operator-supplied URLs
const maxRemoteDocument = 50 << 20

var errBlockedAddress = errors.New("refusing to fetch from a loopback or private address")

// GeminiGateway implements Gateway for Google Gemini
type GeminiGateway struct {
	client     *genai.Client
	modelName  string
	httpClient *http.Client
}

// NewGeminiGateway creates a Gemini client for apiKey
func NewGeminiGateway(ctx context.Context, apiKey string, cfg *configs.Config) (*GeminiGateway, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("gemini API key is empty")
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &GeminiGateway{
		client:     client,
		modelName:  cfg.GeminiModel,
		httpClient: newFetchClient(cfg.FetchAllowPrivate),
	}, nil
}

// newFetchClient builds the client used to download operator URLs. Unless
// allowPrivate is set, connections to loopback, private, link-local and
// unspecified addresses are refused at dial time, after DNS resolution.
func newFetchClient(allowPrivate bool) *http.Client {
	if allowPrivate {
		return &http.Client{}
	}

	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
		Control:   rejectPrivateAddress,
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.Proxy = nil
	transport.DialContext = dialer.DialContext
	return &http.Client{Transport: transport}
}

func rejectPrivateAddress(network, address string, _ syscall.RawConn) error {
	host, _, err := net.SplitHostPort(address)
	if err != nil {
		return err
	}
	ip := net.ParseIP(host)
	if ip == nil || ip.IsLoopback() || ip.IsPrivate() || ip.IsUnspecified() ||
		ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() {
		return fmt.Errorf("%w: %s", errBlockedAddress, host)
	}
	return nil
}

// ProviderName returns "gemini"
func (g *GeminiGateway) ProviderName() string {
	return providerGemini
}

// Close releases the Gemini client
func (g *GeminiGateway) Close() error {
	return g.client.Close()
}

// OCR asks Gemini to transcribe the document as markdown. URL references are
// downloaded first because Gemini only reads inline bytes or its own file store.
func (g *GeminiGateway) OCR(ctx context.Context, ref document.Reference, reqCtx *common.RequestContext) (*OCRResult, error) {
	reqCtx.LogInfo("🔵 Using Gemini OCR (model: %s) | %s", g.modelName, ref.Describe())

	data, mimeType, err := g.documentBytes(ctx, ref, reqCtx)
	if err != nil {
		return nil, err
	}

	model := g.client.GenerativeModel(g.modelName)
	model.SetTemperature(0)

	reqCtx.StartSubStep("gemini_call")
	resp, err := model.GenerateContent(ctx,
		genai.Text(geminiOCRPrompt),
		genai.Blob{MIMEType: mimeType, Data: data},
	)
	if err != nil {
		reqCtx.EndSubStep("❌ FAILED")
		return nil, categorizeError(providerGemini, err)
	}
	reqCtx.EndSubStep("")

	text, err := responseText(resp)
	if err != nil {
		return nil, err
	}

	pages := splitGeminiPages(text)
	result := &OCRResult{
		Model:          g.modelName,
		Pages:          pages,
		PagesProcessed: len(pages),
		Usage:          usageFromGemini(resp),
	}
	reqCtx.LogInfo("✅ Extracted text from %d page(s), length: %d characters", len(pages), len(result.Text()))
	return result, nil
}

// Complete sends a single user turn to Gemini
func (g *GeminiGateway) Complete(ctx context.Context, prompt string, reqCtx *common.RequestContext) (*ChatResult, error) {
	reqCtx.LogInfo("💬 Using Gemini chat (model: %s) | prompt: %d characters", g.modelName, len(prompt))

	model := g.client.GenerativeModel(g.modelName)

	reqCtx.StartSubStep("gemini_call")
	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		reqCtx.EndSubStep("❌ FAILED")
		return nil, categorizeError(providerGemini, err)
	}
	reqCtx.EndSubStep("")

	text, err := responseText(resp)
	if err != nil {
		return nil, err
	}

	return &ChatResult{
		Model:   g.modelName,
		Content: text,
		Usage:   usageFromGemini(resp),
	}, nil
}

// documentBytes returns the raw document and its MIME type
func (g *GeminiGateway) documentBytes(ctx context.Context, ref document.Reference, reqCtx *common.RequestContext) ([]byte, string, error) {
	if ref.IsInline() {
		data, err := base64.StdEncoding.DecodeString(ref.Data)
		if err != nil {
			return nil, "", fmt.Errorf("failed to decode inline document: %w", err)
		}
		return data, ref.MIMEType, nil
	}

	reqCtx.StartSubStep("fetch_document")
	data, contentType, err := g.fetchDocument(ctx, ref.URL)
	if err != nil {
		reqCtx.EndSubStep("❌ FAILED")
		return nil, "", err
	}
	reqCtx.EndSubStep(fmt.Sprintf("%d bytes", len(data)))

	return data, remoteMIMEType(ref, contentType, data), nil
}

// fetchDocument downloads a document from a URL into memory
func (g *GeminiGateway) fetchDocument(ctx context.Context, rawURL string) ([]byte, string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, "", fmt.Errorf("failed to download document: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, "", fmt.Errorf("failed to download document: unsupported URL scheme %q", u.Scheme)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, "", fmt.Errorf("failed to download document: %w", err)
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("failed to download document: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("failed to download document: HTTP %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxRemoteDocument+1))
	if err != nil {
		return nil, "", fmt.Errorf("failed to read document: %w", err)
	}
	if len(data) > maxRemoteDocument {
		return nil, "", fmt.Errorf("remote document exceeds %d bytes", maxRemoteDocument)
	}

	return data, resp.Header.Get("Content-Type"), nil
}

// remoteMIMEType picks the MIME type for a downloaded document: the server's
// Content-Type when specific, otherwise sniffed, otherwise by reference kind.
func remoteMIMEType(ref document.Reference, contentType string, data []byte) string {
	if mediaType, _, err := mime.ParseMediaType(contentType); err == nil &&
		mediaType != "application/octet-stream" && mediaType != "binary/octet-stream" {
		return mediaType
	}
	if sniffed := http.DetectContentType(data); sniffed != "application/octet-stream" && !strings.HasPrefix(sniffed, "text/") {
		return strings.SplitN(sniffed, ";", 2)[0]
	}
	if ref.Kind == document.KindDocumentURL {
		return "application/pdf"
	}
	return "image/jpeg"
}

// responseText concatenates the text parts of the first candidate
func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", &ProviderError{Provider: providerGemini, Category: "empty_response", Message: "no candidates returned"}
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			sb.WriteString(string(text))
		}
	}
	return sb.String(), nil
}

// splitGeminiPages turns a transcription into pages at the page marker
func splitGeminiPages(text string) []Page {
	if strings.TrimSpace(text) == "" {
		return []Page{}
	}

	chunks := strings.Split(text, geminiPageMarker)
	pages := make([]Page, 0, len(chunks))
	for _, chunk := range chunks {
		chunk = strings.TrimSpace(chunk)
		if chunk == "" {
			continue
		}
		pages = append(pages, Page{Index: len(pages), Markdown: chunk})
	}
	return pages
}

func usageFromGemini(resp *genai.GenerateContentResponse) *common.TokenUsage {
	if resp == nil || resp.UsageMetadata == nil {
		return nil
	}
	return &common.TokenUsage{
		InputTokens:  int(resp.UsageMetadata.PromptTokenCount),
		OutputTokens: int(resp.UsageMetadata.CandidatesTokenCount),
		TotalTokens:  int(resp.UsageMetadata.TotalTokenCount),
	}
}
