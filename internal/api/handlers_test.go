package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/bosocmputer/ocr_translate/configs"
	"github.com/bosocmputer/ocr_translate/internal/ai"
	"github.com/bosocmputer/ocr_translate/internal/common"
	"github.com/bosocmputer/ocr_translate/internal/document"
	"github.com/bosocmputer/ocr_translate/internal/render"
	"github.com/bosocmputer/ocr_translate/internal/storage"
	"github.com/bosocmputer/ocr_translate/internal/workflow"
	"github.com/gin-gonic/gin"
)

type fakeGateway struct {
	calls       int
	closed      int
	lastRef     document.Reference
	completeErr error
	// onOCR runs while the OCR call is in flight
	onOCR func()
}

func (f *fakeGateway) OCR(ctx context.Context, ref document.Reference, reqCtx *common.RequestContext) (*ai.OCRResult, error) {
	f.calls++
	f.lastRef = ref
	if f.onOCR != nil {
		f.onOCR()
	}
	return &ai.OCRResult{Pages: []ai.Page{{Markdown: "# Bonjour\n\nle monde"}}, PagesProcessed: 1}, nil
}

func (f *fakeGateway) Complete(ctx context.Context, prompt string, reqCtx *common.RequestContext) (*ai.ChatResult, error) {
	f.calls++
	if f.completeErr != nil {
		return nil, f.completeErr
	}
	return &ai.ChatResult{Content: "Hello world"}, nil
}

func (f *fakeGateway) ProviderName() string { return "fake" }
func (f *fakeGateway) Close() error         { f.closed++; return nil }

type testServer struct {
	router   *gin.Engine
	gateway  *fakeGateway
	sessions *storage.SessionCache
	cookie   *http.Cookie
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &configs.Config{
		OCRProvider:    configs.ProviderMistral,
		AllowedOrigins: "*",
		MaxUploadBytes: 1 << 20,
		SessionTTL:     time.Hour,
	}
	gw := &fakeGateway{}
	factory := func(apiKey string) (ai.Gateway, error) {
		if apiKey == "bad" {
			return nil, errors.New("rejected")
		}
		return gw, nil
	}

	preparer := document.NewPreparer(document.Options{MaxUploadBytes: cfg.MaxUploadBytes})
	runner := workflow.NewRunner(preparer, factory, nil, "English")
	sessions := storage.NewSessionCache(cfg.SessionTTL)

	r := gin.New()
	r.Use(CORSMiddleware(cfg.AllowedOrigins))
	NewHandler(cfg, runner, sessions, render.NewRenderer()).Register(r)

	return &testServer{router: r, gateway: gw, sessions: sessions}
}

// do sends req as a JSON-preferring client and keeps the session cookie
func (s *testServer) do(t *testing.T, req *http.Request) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req.Header.Set("Accept", "application/json")
	if s.cookie != nil {
		req.AddCookie(s.cookie)
	}

	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	for _, c := range w.Result().Cookies() {
		if c.Name == SessionCookie {
			s.cookie = c
		}
	}

	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("expected JSON body, got %q", w.Body.String())
	}
	return w, body
}

func (s *testServer) postForm(t *testing.T, path string, values url.Values) (*httptest.ResponseRecorder, map[string]any) {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return s.do(t, req)
}

func stateField(body map[string]any, key string) bool {
	state, _ := body["state"].(map[string]any)
	v, _ := state[key].(bool)
	return v
}

func TestHealthHandler(t *testing.T) {
	s := newTestServer(t)

	w, body := s.do(t, httptest.NewRequest(http.MethodGet, "/health", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	if body["status"] != "ok" || body["provider"] != "mistral" {
		t.Errorf("unexpected body: %v", body)
	}
}

func TestIndexHandler_RendersForm(t *testing.T) {
	s := newTestServer(t)

	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	html := w.Body.String()
	for _, want := range []string{`action="/api-key"`, `action="/process"`, `accept=".png,.jpg,.jpeg,.gif,.bmp,.pdf"`, "Mistral API Key"} {
		if !strings.Contains(html, want) {
			t.Errorf("expected page to contain %q", want)
		}
	}
	if strings.Contains(html, "Advanced Process") {
		t.Error("summarize control must be hidden before translation")
	}
	if !strings.Contains(w.Header().Get("Set-Cookie"), SessionCookie+"=") {
		t.Error("expected session cookie")
	}
}

func TestProcessHandler_NoKey(t *testing.T) {
	s := newTestServer(t)

	w, body := s.postForm(t, "/process", url.Values{
		"file_type": {"PDF"},
		"source":    {"URL"},
		"url":       {"https://example.com/a.pdf"},
	})

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", w.Code)
	}
	if body["message"] != workflow.MsgMissingKey {
		t.Errorf("unexpected message: %v", body["message"])
	}
	if s.gateway.calls != 0 {
		t.Errorf("expected zero remote calls, got %d", s.gateway.calls)
	}
}

func TestSaveKeyHandler_Errors(t *testing.T) {
	s := newTestServer(t)

	w, body := s.postForm(t, "/api-key", url.Values{"api_key": {""}})
	if w.Code != http.StatusBadRequest || body["message"] != workflow.MsgMissingKey {
		t.Errorf("expected missing key error, got %d %v", w.Code, body["message"])
	}

	w, body = s.postForm(t, "/api-key", url.Values{"api_key": {"bad"}})
	if w.Code != http.StatusBadRequest || !strings.Contains(body["message"].(string), "rejected") {
		t.Errorf("expected factory error, got %d %v", w.Code, body["message"])
	}
}

func TestFullFlow(t *testing.T) {
	s := newTestServer(t)

	w, body := s.postForm(t, "/api-key", url.Values{"api_key": {"secret"}})
	if w.Code != http.StatusOK || body["message"] != workflow.MsgKeySaved || !stateField(body, "has_key") {
		t.Fatalf("expected key saved, got %d %v", w.Code, body)
	}

	w, body = s.postForm(t, "/process", url.Values{
		"file_type": {"Image"},
		"source":    {"URL"},
		"url":       {"https://example.com/scan.png"},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %v", w.Code, body)
	}
	if body["text"] != "# Bonjour\n\nle monde" || !strings.Contains(body["html"].(string), "<h1>Bonjour</h1>") {
		t.Errorf("unexpected OCR output: %v", body)
	}
	if s.gateway.lastRef.Kind != document.KindImageURL {
		t.Errorf("expected image_url reference, got %s", s.gateway.lastRef.Kind)
	}

	w, body = s.postForm(t, "/summarize", nil)
	if w.Code != http.StatusBadRequest || body["message"] != workflow.MsgMissingTranslation {
		t.Errorf("expected summarize to need a translation, got %d %v", w.Code, body["message"])
	}

	s.gateway.completeErr = errors.New("upstream exploded")
	w, body = s.postForm(t, "/translate", nil)
	if w.Code != http.StatusBadGateway {
		t.Fatalf("expected status 502, got %d", w.Code)
	}
	if !strings.Contains(body["message"].(string), "upstream exploded") || !stateField(body, "has_ocr") {
		t.Errorf("expected failure message and kept OCR result, got %v", body)
	}

	s.gateway.completeErr = nil
	w, body = s.postForm(t, "/translate", nil)
	if w.Code != http.StatusOK || body["text"] != "Hello world" || !stateField(body, "has_translation") {
		t.Fatalf("expected translation, got %d %v", w.Code, body)
	}

	w, body = s.postForm(t, "/summarize", nil)
	if w.Code != http.StatusOK || body["title"] != workflow.TitleSummary {
		t.Errorf("expected summary, got %d %v", w.Code, body)
	}

	w, body = s.postForm(t, "/session/reset", nil)
	if w.Code != http.StatusOK || stateField(body, "has_key") {
		t.Errorf("expected cleared session, got %d %v", w.Code, body)
	}
	if s.sessions.Len() != 0 {
		t.Errorf("expected no stored sessions, got %d", s.sessions.Len())
	}
}

func TestProcessHandler_KeySavedDuringOCRWins(t *testing.T) {
	s := newTestServer(t)
	s.postForm(t, "/api-key", url.Values{"api_key": {"first"}})
	id := s.cookie.Value

	second := &fakeGateway{}
	s.gateway.onOCR = func() {
		s.sessions.Put(id, storage.Entry{State: workflow.State{APIKey: "second"}, Gateway: second})
	}

	w, body := s.postForm(t, "/process", url.Values{
		"file_type": {"Image"},
		"source":    {"URL"},
		"url":       {"https://example.com/scan.png"},
	})
	if w.Code != http.StatusOK || body["text"] != "# Bonjour\n\nle monde" {
		t.Fatalf("expected the OCR result to be shown, got %d %v", w.Code, body)
	}

	entry, ok := s.sessions.Get(id)
	if !ok || entry.Gateway != ai.Gateway(second) || entry.State.APIKey != "second" {
		t.Fatalf("expected the newer key and gateway to stay, got %+v", entry)
	}
	if entry.State.HasOCR() {
		t.Error("expected the stale OCR result not to be stored")
	}
	if second.closed != 0 {
		t.Errorf("expected the current gateway to stay open, closed=%d", second.closed)
	}
}

func TestProcessHandler_Upload(t *testing.T) {
	s := newTestServer(t)
	s.postForm(t, "/api-key", url.Values{"api_key": {"secret"}})

	var img bytes.Buffer
	if err := png.Encode(&img, image.NewRGBA(image.Rect(0, 0, 2, 2))); err != nil {
		t.Fatalf("failed to encode png: %v", err)
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	mw.WriteField("file_type", "Image")
	mw.WriteField("source", "Local Upload")
	part, _ := mw.CreateFormFile("file", "scan.png")
	part.Write(img.Bytes())
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/process", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w, body := s.do(t, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %v", w.Code, body)
	}
	if s.gateway.lastRef.MIMEType != "image/png" || !strings.HasPrefix(s.gateway.lastRef.Location(), "data:image/png;base64,") {
		t.Errorf("unexpected reference: %+v", s.gateway.lastRef)
	}
}

func TestProcessHandler_UploadMissingFile(t *testing.T) {
	s := newTestServer(t)
	s.postForm(t, "/api-key", url.Values{"api_key": {"secret"}})

	w, body := s.postForm(t, "/process", url.Values{"file_type": {"PDF"}, "source": {"upload"}})
	if w.Code != http.StatusBadRequest || body["message"] != "❌ Please upload a valid file." {
		t.Errorf("expected missing file error, got %d %v", w.Code, body["message"])
	}
	if s.gateway.calls != 0 {
		t.Errorf("expected zero remote calls, got %d", s.gateway.calls)
	}
}

func TestCORSPreflight(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodOptions, "/process", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)

	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Errorf("expected status 204, got %d", w.Code)
	}
	if w.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Errorf("expected CORS header, got %q", w.Header().Get("Access-Control-Allow-Origin"))
	}
}

func TestSplitOrigins(t *testing.T) {
	got := splitOrigins(" https://a.example , ,https://b.example")
	if len(got) != 2 || got[0] != "https://a.example" || got[1] != "https://b.example" {
		t.Errorf("unexpected origins: %v", got)
	}
}
