// runner.go - Form actions: save key, process, refine, translate, summarize

package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bosocmputer/ocr_translate/internal/ai"
	"github.com/bosocmputer/ocr_translate/internal/common"
	"github.com/bosocmputer/ocr_translate/internal/document"
	"github.com/bosocmputer/ocr_translate/internal/ratelimit"
)

// Action names one operator interaction
type Action string

const (
	ActionSaveKey   Action = "save_key"
	ActionProcess   Action = "process"
	ActionRefine    Action = "refine"
	ActionTranslate Action = "translate"
	ActionSummarize Action = "summarize"
)

// Kind classifies an Outcome
type Kind string

const (
	KindSuccess     Kind = "success"
	KindInputError  Kind = "input_error"
	KindFormatError Kind = "format_error"
	KindRemoteError Kind = "remote_error"
)

// Messages shown on the form
const (
	MsgKeySaved           = "✅ API Key saved for this session!"
	MsgMissingKey         = "❌ Please enter and save a valid API Key."
	MsgMissingOCR         = "❌ Please process a document first."
	MsgMissingTranslation = "❌ Please translate the text first."
)

// Result titles
const (
	TitleOCR        = "📃 OCR Result:"
	TitleRefined    = "📑 Refined OCR Text:"
	TitleTranslated = "🌍 Translated Text:"
	TitleSummary    = "📌 Key Takeaways:"
)

// Outcome is the result of one action. State is the state to keep: the
// new one on success, the one passed in otherwise.
type Outcome struct {
	State   State             `json:"-"`
	Gateway ai.Gateway        `json:"-"` // set by SaveKey only
	Action  Action            `json:"action"`
	Kind    Kind              `json:"kind"`
	Title   string            `json:"title,omitempty"`
	Text    string            `json:"text,omitempty"`
	Images  map[string]string `json:"-"`
	Message string            `json:"message,omitempty"`
}

// OK reports whether the action succeeded
func (o Outcome) OK() bool {
	return o.Kind == KindSuccess
}

// Runner executes form actions against a session's gateway
type Runner struct {
	preparer       *document.Preparer
	factory        ai.Factory
	limiter        *ratelimit.RateLimiter
	targetLanguage string
}

// NewRunner creates a Runner. limiter may be nil.
func NewRunner(preparer *document.Preparer, factory ai.Factory, limiter *ratelimit.RateLimiter, targetLanguage string) *Runner {
	return &Runner{
		preparer:       preparer,
		factory:        factory,
		limiter:        limiter,
		targetLanguage: targetLanguage,
	}
}

// TargetLanguage is the language Translate asks for
func (r *Runner) TargetLanguage() string {
	if r.targetLanguage == "" {
		return ai.DefaultTargetLanguage
	}
	return r.targetLanguage
}

// SaveKey builds the gateway for key. The caller owns the returned
// Outcome.Gateway and closes whatever handle it replaces.
func (r *Runner) SaveKey(state State, key string, reqCtx *common.RequestContext) Outcome {
	key = strings.TrimSpace(key)
	if key == "" {
		return failure(ActionSaveKey, state, KindInputError, MsgMissingKey)
	}

	gw, err := r.factory(key)
	if err != nil {
		reqCtx.LogWarning("Gateway creation failed: %v", err)
		return failure(ActionSaveKey, state, KindInputError, "❌ Invalid API Key: "+err.Error())
	}
	reqCtx.LogInfo("🔑 API key saved | provider: %s", gw.ProviderName())

	return Outcome{
		State:   state.WithAPIKey(key),
		Gateway: gw,
		Action:  ActionSaveKey,
		Kind:    KindSuccess,
		Message: MsgKeySaved,
	}
}

// Process prepares the submitted document and runs OCR on it
func (r *Runner) Process(ctx context.Context, state State, gw ai.Gateway, in document.Input, reqCtx *common.RequestContext) Outcome {
	if !state.HasKey() || gw == nil {
		return failure(ActionProcess, state, KindInputError, MsgMissingKey)
	}

	reqCtx.StartStep("prepare_document")
	ref, err := r.preparer.Prepare(in, reqCtx)
	if err != nil {
		reqCtx.EndStep("failed", nil, err)
		return failure(ActionProcess, state, preparerKind(err), document.UserMessage(err))
	}
	reqCtx.EndStep("success", nil, nil)

	reqCtx.StartStep("ocr")
	if err := r.wait(ctx, reqCtx); err != nil {
		reqCtx.EndStep("failed", nil, err)
		return failure(ActionProcess, state, KindRemoteError, "❌ Error: "+err.Error())
	}
	result, err := gw.OCR(ctx, ref, reqCtx)
	if err != nil {
		reqCtx.EndStep("failed", nil, err)
		return failure(ActionProcess, state, KindRemoteError, "❌ Error: "+err.Error())
	}
	reqCtx.EndStep("success", result.Usage, nil)

	return Outcome{
		State:  state.WithOCRResult(result),
		Action: ActionProcess,
		Kind:   KindSuccess,
		Title:  TitleOCR,
		Text:   result.Text(),
		Images: result.Images(),
	}
}

// Refine asks the chat model to tidy up the OCR text without translating it
func (r *Runner) Refine(ctx context.Context, state State, gw ai.Gateway, reqCtx *common.RequestContext) Outcome {
	if !state.HasKey() || gw == nil {
		return failure(ActionRefine, state, KindInputError, MsgMissingKey)
	}
	if !state.HasOCR() {
		return failure(ActionRefine, state, KindInputError, MsgMissingOCR)
	}

	text, err := r.complete(ctx, gw, ai.IntentRefine, state.OCRText(), reqCtx)
	if err != nil {
		return failure(ActionRefine, state, KindRemoteError, "❌ Refinement error: "+err.Error())
	}

	return Outcome{
		State:  state.WithRefinedText(text),
		Action: ActionRefine,
		Kind:   KindSuccess,
		Title:  TitleRefined,
		Text:   text,
		Images: state.OCRResult.Images(),
	}
}

// Translate asks the chat model to translate the OCR text
func (r *Runner) Translate(ctx context.Context, state State, gw ai.Gateway, reqCtx *common.RequestContext) Outcome {
	if !state.HasKey() || gw == nil {
		return failure(ActionTranslate, state, KindInputError, MsgMissingKey)
	}
	if !state.HasOCR() {
		return failure(ActionTranslate, state, KindInputError, MsgMissingOCR)
	}

	text, err := r.complete(ctx, gw, ai.IntentTranslate, state.OCRText(), reqCtx)
	if err != nil {
		return failure(ActionTranslate, state, KindRemoteError, "❌ Translation error: "+err.Error())
	}

	return Outcome{
		State:  state.WithTranslatedText(text),
		Action: ActionTranslate,
		Kind:   KindSuccess,
		Title:  TitleTranslated,
		Text:   text,
		Images: state.OCRResult.Images(),
	}
}

// Summarize condenses the translation into key points. The summary is
// shown but not kept in the state.
func (r *Runner) Summarize(ctx context.Context, state State, gw ai.Gateway, reqCtx *common.RequestContext) Outcome {
	if !state.HasKey() || gw == nil {
		return failure(ActionSummarize, state, KindInputError, MsgMissingKey)
	}
	if !state.HasTranslation() {
		return failure(ActionSummarize, state, KindInputError, MsgMissingTranslation)
	}

	text, err := r.complete(ctx, gw, ai.IntentSummarize, state.TranslatedText, reqCtx)
	if err != nil {
		return failure(ActionSummarize, state, KindRemoteError, "❌ Summary error: "+err.Error())
	}

	return Outcome{
		State:  state,
		Action: ActionSummarize,
		Kind:   KindSuccess,
		Title:  TitleSummary,
		Text:   text,
	}
}

// complete runs one chat turn for intent as its own step
func (r *Runner) complete(ctx context.Context, gw ai.Gateway, intent ai.Intent, text string, reqCtx *common.RequestContext) (string, error) {
	prompt, err := ai.BuildPrompt(intent, text, r.TargetLanguage())
	if err != nil {
		return "", err
	}

	reqCtx.StartStep(string(intent))
	if err := r.wait(ctx, reqCtx); err != nil {
		reqCtx.EndStep("failed", nil, err)
		return "", err
	}

	result, err := gw.Complete(ctx, prompt, reqCtx)
	if err != nil {
		reqCtx.EndStep("failed", nil, err)
		return "", err
	}
	reqCtx.EndStep("success", result.Usage, nil)

	return result.Content, nil
}

// wait takes a limiter token, blocking while the bucket is empty
func (r *Runner) wait(ctx context.Context, reqCtx *common.RequestContext) error {
	if r.limiter == nil || r.limiter.TryTake() {
		return nil
	}

	reqCtx.StartSubStep("wait_rate_limit")
	if err := r.limiter.Wait(ctx); err != nil {
		reqCtx.EndSubStep("❌ FAILED")
		return fmt.Errorf("rate limit wait: %w", err)
	}
	reqCtx.EndSubStep("")
	return nil
}

func failure(action Action, state State, kind Kind, message string) Outcome {
	return Outcome{State: state, Action: action, Kind: kind, Message: message}
}

// preparerKind separates bad documents from missing input
func preparerKind(err error) Kind {
	switch {
	case errors.Is(err, document.ErrUnsupportedFormat),
		errors.Is(err, document.ErrUnsupportedFileType),
		errors.Is(err, document.ErrUnreadableImage),
		errors.Is(err, document.ErrUnreadablePDF),
		errors.Is(err, document.ErrFileTooLarge):
		return KindFormatError
	}
	return KindInputError
}
