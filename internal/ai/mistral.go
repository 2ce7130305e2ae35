// mistral.go - Mistral AI client for OCR and chat completion

package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"github.com/bosocmputer/ocr_translate/configs"
	"github.com/bosocmputer/ocr_translate/internal/common"
	"github.com/bosocmputer/ocr_translate/internal/document"
	sdk "github.com/gage-technologies/mistral-go"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/mistral"
)

const providerMistral = "mistral"

// maxErrorBody bounds how much of an error response is read
const maxErrorBody = 64 << 10

// MistralGateway implements Gateway for Mistral AI
type MistralGateway struct {
	apiKey             string
	baseURL            string
	ocrModel           string
	chatModel          string
	includeImageBase64 bool
	pricePerPageUSD    float64
	client             *http.Client
	chat               llms.Model
}

// sdkErrorPattern matches the error text mistral-go builds from a non-2xx reply
var sdkErrorPattern = regexp.MustCompile(`(?s)^\(HTTP Error (\d{3})\) (.*)$`)

// NewMistralGateway creates a new Mistral AI gateway. The OCR client has no
// timeout of its own; calls are bounded by the request context.
func NewMistralGateway(apiKey string, cfg *configs.Config) (*MistralGateway, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("mistral API key is empty")
	}

	// mistral-go appends /v1/... itself. One attempt means no resend; a zero
	// timeout would fall back to its 120s default, so the SDK default is kept.
	chat, err := mistral.New(
		mistral.WithModel(cfg.MistralChatModel),
		mistral.WithAPIKey(apiKey),
		mistral.WithEndpoint(chatEndpoint(cfg.MistralBaseURL)),
		mistral.WithMaxRetries(1),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create Mistral chat client: %w", err)
	}

	return &MistralGateway{
		apiKey:             apiKey,
		baseURL:            cfg.MistralBaseURL,
		ocrModel:           cfg.MistralOCRModel,
		chatModel:          cfg.MistralChatModel,
		includeImageBase64: cfg.IncludeImageBase64,
		pricePerPageUSD:    cfg.OCRPricePerPageUSD,
		client:             &http.Client{},
		chat:               chat,
	}, nil
}

// chatEndpoint strips the /v1 suffix from the configured base URL
func chatEndpoint(baseURL string) string {
	endpoint := strings.TrimSuffix(strings.TrimRight(baseURL, "/"), "/v1")
	if endpoint == "" {
		return sdk.Endpoint
	}
	return endpoint
}

// ProviderName returns "mistral"
func (m *MistralGateway) ProviderName() string {
	return providerMistral
}

// Close is a no-op; the HTTP clients hold no per-gateway resources
func (m *MistralGateway) Close() error {
	return nil
}

// Mistral OCR API request/response structures
type mistralOCRDocument struct {
	Type        string `json:"type"`                   // "image_url" or "document_url"
	ImageURL    string `json:"image_url,omitempty"`    // URL or base64 data URL for type="image_url"
	DocumentURL string `json:"document_url,omitempty"` // URL or base64 data URL for type="document_url"
}

type mistralOCRRequest struct {
	Model              string             `json:"model"`
	Document           mistralOCRDocument `json:"document"`
	IncludeImageBase64 bool               `json:"include_image_base64"`
}

type mistralOCRImage struct {
	ID          string `json:"id"`
	ImageBase64 string `json:"image_base64"`
}

type mistralOCRPageDimensions struct {
	DPI    int `json:"dpi"`
	Height int `json:"height"`
	Width  int `json:"width"`
}

type mistralOCRPage struct {
	Index      int                      `json:"index"`
	Markdown   string                   `json:"markdown"`
	Images     []mistralOCRImage        `json:"images"`
	Dimensions mistralOCRPageDimensions `json:"dimensions"`
}

type mistralOCRUsageInfo struct {
	PagesProcessed int `json:"pages_processed"`
	DocSizeBytes   int `json:"doc_size_bytes,omitempty"`
}

type mistralOCRResponse struct {
	Model     string              `json:"model"`
	Pages     []mistralOCRPage    `json:"pages"`
	UsageInfo mistralOCRUsageInfo `json:"usage_info"`
}

// mistralErrorResponse covers both error shapes the API returns
type mistralErrorResponse struct {
	Message json.RawMessage `json:"message"`
	Detail  json.RawMessage `json:"detail"`
	Error   *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// buildOCRRequest maps a document Reference onto the OCR request body
func (m *MistralGateway) buildOCRRequest(ref document.Reference) (mistralOCRRequest, error) {
	doc := mistralOCRDocument{Type: string(ref.Kind)}
	switch ref.Kind {
	case document.KindDocumentURL:
		doc.DocumentURL = ref.Location()
	case document.KindImageURL:
		doc.ImageURL = ref.Location()
	default:
		return mistralOCRRequest{}, fmt.Errorf("unsupported document reference kind: %q", ref.Kind)
	}

	return mistralOCRRequest{
		Model:              m.ocrModel,
		Document:           doc,
		IncludeImageBase64: m.includeImageBase64,
	}, nil
}

// OCR processes the document using Mistral OCR
func (m *MistralGateway) OCR(ctx context.Context, ref document.Reference, reqCtx *common.RequestContext) (*OCRResult, error) {
	reqCtx.LogInfo("🔷 Using Mistral OCR (model: %s) | %s", m.ocrModel, ref.Describe())

	request, err := m.buildOCRRequest(ref)
	if err != nil {
		return nil, err
	}

	reqCtx.StartSubStep("mistral_ocr_call")
	response, err := m.callMistralOCRAPI(ctx, request)
	if err != nil {
		reqCtx.EndSubStep("❌ FAILED")
		return nil, err
	}
	reqCtx.EndSubStep(fmt.Sprintf("%d page(s)", len(response.Pages)))

	result := &OCRResult{
		Model:          response.Model,
		PagesProcessed: response.UsageInfo.PagesProcessed,
		Pages:          make([]Page, 0, len(response.Pages)),
	}
	for _, p := range response.Pages {
		page := Page{Index: p.Index, Markdown: p.Markdown}
		for _, img := range p.Images {
			page.Images = append(page.Images, PageImage{ID: img.ID, DataURI: imageDataURI(img.ID, img.ImageBase64)})
		}
		result.Pages = append(result.Pages, page)
	}

	// Mistral bills per processed page
	pages := response.UsageInfo.PagesProcessed
	result.Usage = &common.TokenUsage{
		InputTokens: pages,
		TotalTokens: pages,
		CostUSD:     float64(pages) * m.pricePerPageUSD,
	}

	reqCtx.LogInfo("✅ Extracted text from %d page(s), length: %d characters", len(result.Pages), len(result.Text()))
	return result, nil
}

// callMistralOCRAPI makes HTTP request to Mistral OCR API
func (m *MistralGateway) callMistralOCRAPI(ctx context.Context, request mistralOCRRequest) (*mistralOCRResponse, error) {
	requestBody, err := json.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.baseURL+"/ocr", bytes.NewReader(requestBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+m.apiKey)

	resp, err := m.client.Do(req)
	if err != nil {
		return nil, categorizeError(providerMistral, fmt.Errorf("failed to send request: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, newStatusError(providerMistral, resp.StatusCode, parseMistralError(body))
	}

	var response mistralOCRResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("failed to parse OCR response: %w", err)
	}

	return &response, nil
}

// parseMistralError extracts a human-readable message from an error body
func parseMistralError(body []byte) string {
	var errorResp mistralErrorResponse
	if err := json.Unmarshal(body, &errorResp); err == nil {
		if errorResp.Error != nil && errorResp.Error.Message != "" {
			return errorResp.Error.Message
		}
		if msg := rawMessage(errorResp.Message); msg != "" {
			return msg
		}
		if msg := rawMessage(errorResp.Detail); msg != "" {
			return msg
		}
	}
	return strings.TrimSpace(string(body))
}

// rawMessage renders a JSON string as-is and any other JSON value compactly
func rawMessage(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return string(raw)
	}
	return buf.String()
}

// imageDataURI normalizes extracted images to data URIs
func imageDataURI(id, b64 string) string {
	if b64 == "" || strings.HasPrefix(b64, "data:") {
		return b64
	}
	mimeType := "image/jpeg"
	if strings.HasSuffix(strings.ToLower(id), ".png") {
		mimeType = "image/png"
	}
	return "data:" + mimeType + ";base64," + b64
}

// Complete sends a single user turn to the Mistral chat model
func (m *MistralGateway) Complete(ctx context.Context, prompt string, reqCtx *common.RequestContext) (*ChatResult, error) {
	reqCtx.LogInfo("💬 Using Mistral chat (model: %s) | prompt: %d characters", m.chatModel, len(prompt))

	if err := ctx.Err(); err != nil {
		return nil, categorizeError(providerMistral, err)
	}

	reqCtx.StartSubStep("mistral_chat_call")
	resp, err := m.generate(ctx, prompt)
	if err != nil {
		reqCtx.EndSubStep("❌ FAILED")
		return nil, categorizeChatError(err)
	}
	reqCtx.EndSubStep("")

	if resp == nil || len(resp.Choices) == 0 || resp.Choices[0] == nil {
		return nil, &ProviderError{Provider: providerMistral, Category: "empty_response", Message: "no choices returned"}
	}

	choice := resp.Choices[0]
	return &ChatResult{
		Model:   m.chatModel,
		Content: choice.Content,
		Usage:   usageFromGenerationInfo(choice.GenerationInfo),
	}, nil
}

type generateResult struct {
	resp *llms.ContentResponse
	err  error
}

// generate runs the chat call and returns when ctx is done. mistral-go does
// not take a context, so an abandoned call finishes on its own client timeout.
func (m *MistralGateway) generate(ctx context.Context, prompt string) (*llms.ContentResponse, error) {
	done := make(chan generateResult, 1)
	go func() {
		resp, err := m.chat.GenerateContent(ctx, []llms.MessageContent{
			llms.TextParts(llms.ChatMessageTypeHuman, prompt),
		})
		done <- generateResult{resp: resp, err: err}
	}()

	select {
	case res := <-done:
		return res.resp, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// categorizeChatError recovers the status code and API message from a
// mistral-go error
func categorizeChatError(err error) *ProviderError {
	if match := sdkErrorPattern.FindStringSubmatch(err.Error()); match != nil {
		code, _ := strconv.Atoi(match[1])
		pe := newStatusError(providerMistral, code, parseMistralError([]byte(match[2])))
		pe.Err = err
		return pe
	}
	return categorizeError(providerMistral, err)
}

// usageFromGenerationInfo reads token counts langchaingo reports, if any
func usageFromGenerationInfo(info map[string]any) *common.TokenUsage {
	if info == nil {
		return nil
	}
	usage := &common.TokenUsage{
		InputTokens:  intField(info, "PromptTokens"),
		OutputTokens: intField(info, "CompletionTokens"),
		TotalTokens:  intField(info, "TotalTokens"),
	}
	if u, ok := info["usage"].(sdk.UsageInfo); ok {
		usage.InputTokens = u.PromptTokens
		usage.OutputTokens = u.CompletionTokens
		usage.TotalTokens = u.TotalTokens
	}
	if usage.TotalTokens == 0 {
		usage.TotalTokens = usage.InputTokens + usage.OutputTokens
	}
	if usage.TotalTokens == 0 {
		return nil
	}
	return usage
}

func intField(m map[string]any, key string) int {
	switch v := m[key].(type) {
	case int:
		return v
	case int32:
		return int(v)
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return 0
}
