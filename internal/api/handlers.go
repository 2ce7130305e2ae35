// handlers.go - HTTP handlers for the OCR form

package api

import (
	"context"
	"embed"
	"errors"
	"html/template"
	"io"
	"net/http"
	"strings"

	"github.com/bosocmputer/ocr_translate/configs"
	"github.com/bosocmputer/ocr_translate/internal/ai"
	"github.com/bosocmputer/ocr_translate/internal/common"
	"github.com/bosocmputer/ocr_translate/internal/document"
	"github.com/bosocmputer/ocr_translate/internal/render"
	"github.com/bosocmputer/ocr_translate/internal/storage"
	"github.com/bosocmputer/ocr_translate/internal/workflow"
	"github.com/gin-gonic/gin"
)

//go:embed templates/*.html
var templateFS embed.FS

// multipartOverhead leaves room for the form fields around an upload
const multipartOverhead = 1 << 20

// MsgSessionEnded confirms an explicit reset
const MsgSessionEnded = "✅ Session ended. Saved key and results were cleared."

// Handler serves the form and its actions
type Handler struct {
	cfg      *configs.Config
	runner   *workflow.Runner
	sessions *storage.SessionCache
	renderer *render.Renderer
}

// NewHandler creates a Handler
func NewHandler(cfg *configs.Config, runner *workflow.Runner, sessions *storage.SessionCache, renderer *render.Renderer) *Handler {
	return &Handler{
		cfg:      cfg,
		runner:   runner,
		sessions: sessions,
		renderer: renderer,
	}
}

// Register installs the page template and routes on r
func (h *Handler) Register(r *gin.Engine) {
	r.SetHTMLTemplate(template.Must(template.New("").ParseFS(templateFS, "templates/*.html")))
	r.MaxMultipartMemory = h.cfg.MaxUploadBytes + multipartOverhead

	r.GET("/", h.IndexHandler)
	r.GET("/health", h.HealthHandler)
	r.POST("/api-key", h.SaveKeyHandler)
	r.POST("/process", h.ProcessHandler)
	r.POST("/refine", h.RefineHandler)
	r.POST("/translate", h.TranslateHandler)
	r.POST("/summarize", h.SummarizeHandler)
	r.POST("/session/reset", h.ResetHandler)
}

// HealthHandler handles GET /health
func (h *Handler) HealthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":   "ok",
		"service":  "ocr-translate",
		"provider": h.cfg.OCRProvider,
		"version":  "1.0.0",
	})
}

// IndexHandler handles GET / and shows the latest OCR result, if any
func (h *Handler) IndexHandler(c *gin.Context) {
	id := sessionID(c, h.cfg.SessionTTL)
	entry, _ := h.sessions.Get(id)

	out := workflow.Outcome{State: entry.State, Kind: workflow.KindSuccess}
	if entry.State.HasOCR() {
		out.Title = workflow.TitleOCR
		out.Text = entry.State.OCRText()
		out.Images = entry.State.OCRResult.Images()
	}
	h.respond(c, out, nil, formValues{})
}

// SaveKeyHandler handles POST /api-key
func (h *Handler) SaveKeyHandler(c *gin.Context) {
	id := sessionID(c, h.cfg.SessionTTL)
	entry, _ := h.sessions.Get(id)
	reqCtx := common.NewRequestContext(id, string(workflow.ActionSaveKey))

	out := h.runner.SaveKey(entry.State, c.PostForm("api_key"), reqCtx)
	if out.OK() {
		// Put closes the handle being replaced
		h.sessions.Put(id, storage.Entry{State: out.State, Gateway: out.Gateway})
	}
	h.respond(c, out, reqCtx, formValues{})
}

// ProcessHandler handles POST /process (multipart: file_type, source, url, file)
func (h *Handler) ProcessHandler(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.cfg.MaxUploadBytes+multipartOverhead)

	id := sessionID(c, h.cfg.SessionTTL)
	entry, exists := h.sessions.Get(id)
	reqCtx := common.NewRequestContext(id, string(workflow.ActionProcess))

	if err := parseForm(c, h.cfg.MaxUploadBytes); err != nil {
		reqCtx.LogWarning("Form rejected: %v", err)
		h.respond(c, inputError(entry.State, err), reqCtx, formValues{})
		return
	}

	form := formValues{
		FileType: c.PostForm("file_type"),
		Source:   c.PostForm("source"),
		URL:      c.PostForm("url"),
	}

	// Parse failures leave the zero value, which the preparer rejects after
	// the API key check.
	fileType, _ := document.ParseFileType(form.FileType)
	source, _ := document.ParseSource(form.Source)
	in := document.Input{FileType: fileType, Source: source, URL: form.URL}

	if source == document.SourceUpload {
		filename, data, err := readUpload(c, h.cfg.MaxUploadBytes)
		if err != nil {
			reqCtx.LogWarning("Upload rejected: %v", err)
			h.respond(c, inputError(entry.State, err), reqCtx, form)
			return
		}
		in.Filename = filename
		in.Data = data
	}

	out := h.runner.Process(c.Request.Context(), entry.State, entry.Gateway, in, reqCtx)
	h.store(id, entry, exists, out, reqCtx)
	h.respond(c, out, reqCtx, form)
}

// RefineHandler handles POST /refine
func (h *Handler) RefineHandler(c *gin.Context) {
	h.chatAction(c, workflow.ActionRefine, h.runner.Refine)
}

// TranslateHandler handles POST /translate
func (h *Handler) TranslateHandler(c *gin.Context) {
	h.chatAction(c, workflow.ActionTranslate, h.runner.Translate)
}

// SummarizeHandler handles POST /summarize
func (h *Handler) SummarizeHandler(c *gin.Context) {
	h.chatAction(c, workflow.ActionSummarize, h.runner.Summarize)
}

// ResetHandler handles POST /session/reset
func (h *Handler) ResetHandler(c *gin.Context) {
	id := sessionID(c, h.cfg.SessionTTL)
	h.sessions.Delete(id)
	common.Logger().WithField("session_id", id[:8]).Info("🧹 Session ended")

	h.respond(c, workflow.Outcome{Kind: workflow.KindSuccess, Message: MsgSessionEnded}, nil, formValues{})
}

type chatFunc func(ctx context.Context, state workflow.State, gw ai.Gateway, reqCtx *common.RequestContext) workflow.Outcome

func (h *Handler) chatAction(c *gin.Context, action workflow.Action, run chatFunc) {
	id := sessionID(c, h.cfg.SessionTTL)
	entry, exists := h.sessions.Get(id)
	reqCtx := common.NewRequestContext(id, string(action))

	out := run(c.Request.Context(), entry.State, entry.Gateway, reqCtx)
	h.store(id, entry, exists, out, reqCtx)
	h.respond(c, out, reqCtx, formValues{})
}

// store writes the outcome's state back. Failed actions only refresh an
// existing session. A key saved or a reset made while the action ran wins.
func (h *Handler) store(id string, entry storage.Entry, exists bool, out workflow.Outcome, reqCtx *common.RequestContext) {
	if !out.OK() && !exists {
		return
	}
	if !h.sessions.Update(id, entry.Gateway, out.State) {
		reqCtx.LogWarning("Session changed while %s ran, result not stored", out.Action)
	}
}

// parseForm parses a multipart or urlencoded body, reporting an oversized
// body as document.ErrFileTooLarge.
func parseForm(c *gin.Context, maxMemory int64) error {
	err := c.Request.ParseMultipartForm(maxMemory)
	if err == nil || errors.Is(err, http.ErrNotMultipart) {
		return nil
	}
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return document.ErrFileTooLarge
	}
	return err
}

func inputError(state workflow.State, err error) workflow.Outcome {
	return workflow.Outcome{
		State:   state,
		Action:  workflow.ActionProcess,
		Kind:    workflow.KindInputError,
		Message: document.UserMessage(err),
	}
}

// readUpload reads the "file" part. A missing part is not an error here;
// the preparer reports it.
func readUpload(c *gin.Context, maxBytes int64) (string, []byte, error) {
	header, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return "", nil, document.ErrFileTooLarge
		}
		if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
			return "", nil, nil
		}
		return "", nil, err
	}
	if header.Size > maxBytes {
		return "", nil, document.ErrFileTooLarge
	}

	file, err := header.Open()
	if err != nil {
		return "", nil, err
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxBytes+1))
	if err != nil {
		return "", nil, err
	}
	return header.Filename, data, nil
}

// statusFor maps an outcome kind to the HTTP status
func statusFor(kind workflow.Kind) int {
	switch kind {
	case workflow.KindInputError, workflow.KindFormatError:
		return http.StatusBadRequest
	case workflow.KindRemoteError:
		return http.StatusBadGateway
	}
	return http.StatusOK
}

// respond writes the page, or JSON when the client prefers it
func (h *Handler) respond(c *gin.Context, out workflow.Outcome, reqCtx *common.RequestContext, form formValues) {
	status := statusFor(out.Kind)

	var rendered template.HTML
	if out.Text != "" {
		html, err := h.renderer.Render(out.Text, out.Images)
		if err != nil {
			common.Logger().Warnf("⚠️  %v", err)
		}
		rendered = html
	}

	requestID := ""
	if reqCtx != nil {
		requestID = reqCtx.RequestID
	}

	switch c.NegotiateFormat(gin.MIMEHTML, gin.MIMEJSON) {
	case gin.MIMEJSON:
		body := gin.H{
			"action":     out.Action,
			"kind":       out.Kind,
			"title":      out.Title,
			"text":       out.Text,
			"html":       string(rendered),
			"message":    out.Message,
			"request_id": requestID,
			"state": gin.H{
				"has_key":         out.State.HasKey(),
				"has_ocr":         out.State.HasOCR(),
				"has_translation": out.State.HasTranslation(),
			},
		}
		if reqCtx != nil {
			body["processing_summary"] = reqCtx.GetSummary()
		}
		c.JSON(status, body)
	default:
		if reqCtx != nil {
			reqCtx.GetSummary()
		}
		c.HTML(status, "index.html", h.pageView(out, rendered, requestID, form))
	}
}

// formValues echoes the process form back to the page
type formValues struct {
	FileType string
	Source   string
	URL      string
}

type resultView struct {
	Title string
	Text  string
	HTML  template.HTML
}

type pageView struct {
	ProviderLabel  string
	HasKey         bool
	HasOCR         bool
	HasTranslation bool
	TargetLanguage string
	FileType       string
	Source         string
	URL            string
	Accept         string
	Message        string
	IsError        bool
	Result         *resultView
	RequestID      string
}

func (h *Handler) pageView(out workflow.Outcome, rendered template.HTML, requestID string, form formValues) pageView {
	view := pageView{
		ProviderLabel:  providerLabel(h.cfg.OCRProvider),
		HasKey:         out.State.HasKey(),
		HasOCR:         out.State.HasOCR(),
		HasTranslation: out.State.HasTranslation(),
		TargetLanguage: h.runner.TargetLanguage(),
		FileType:       string(document.FilePDF),
		Source:         string(document.SourceURL),
		URL:            form.URL,
		Accept:         acceptList(),
		Message:        out.Message,
		IsError:        !out.OK(),
		RequestID:      requestID,
	}
	if ft, err := document.ParseFileType(form.FileType); err == nil {
		view.FileType = string(ft)
	}
	if src, err := document.ParseSource(form.Source); err == nil {
		view.Source = string(src)
	}
	if out.Text != "" {
		view.Result = &resultView{Title: out.Title, Text: out.Text, HTML: rendered}
	}
	return view
}

func providerLabel(provider string) string {
	switch provider {
	case configs.ProviderGemini:
		return "Gemini"
	default:
		return "Mistral"
	}
}

// acceptList is the file input's accept attribute, e.g. ".png,.jpg,..."
func acceptList() string {
	exts := make([]string, 0, len(document.AllowedExtensions))
	for _, ext := range document.AllowedExtensions {
		exts = append(exts, "."+ext)
	}
	return strings.Join(exts, ",")
}
