// request_context.go - Request tracking and logging system

package common

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// RequestContext tracks one form interaction with timing and usage
type RequestContext struct {
	RequestID           string
	SessionID           string
	Action              string
	StartTime           time.Time
	Steps               []StepLog
	TotalUsage          TokenUsage
	CurrentStep         string
	CurrentStepStart    time.Time
	CurrentSubSteps     []SubStepLog
	CurrentSubStep      string
	CurrentSubStepStart time.Time

	log *logrus.Entry
}

// StepLog represents a single processing step
type StepLog struct {
	Name      string       `json:"name"`
	StartTime time.Time    `json:"start_time"`
	Duration  int64        `json:"duration_ms"`
	Status    string       `json:"status"` // "success", "failed", "skipped"
	Usage     *TokenUsage  `json:"usage,omitempty"`
	Error     string       `json:"error,omitempty"`
	SubSteps  []SubStepLog `json:"sub_steps,omitempty"`
}

// SubStepLog represents a detailed sub-operation within a step
type SubStepLog struct {
	Name      string    `json:"name"`
	StartTime time.Time `json:"start_time"`
	Duration  int64     `json:"duration_ms"`
	Details   string    `json:"details,omitempty"`
}

// TokenUsage tracks API consumption. For OCR calls the page count is
// stored in InputTokens.
type TokenUsage struct {
	InputTokens  int     `json:"input_tokens"`
	OutputTokens int     `json:"output_tokens"`
	TotalTokens  int     `json:"total_tokens"`
	CostUSD      float64 `json:"cost_usd"`
}

// Add accumulates another usage record into u.
func (u *TokenUsage) Add(other *TokenUsage) {
	if other == nil {
		return
	}
	u.InputTokens += other.InputTokens
	u.OutputTokens += other.OutputTokens
	u.TotalTokens += other.TotalTokens
	u.CostUSD += other.CostUSD
}

// NewRequestContext creates a new request tracking context
func NewRequestContext(sessionID, action string) *RequestContext {
	reqID := uuid.New().String()
	now := time.Now()

	entry := Logger().WithFields(logrus.Fields{
		"request_id": reqID,
		"session_id": shortID(sessionID),
		"action":     action,
	})
	entry.Infof("🚀 New request | time: %s", now.Format("15:04:05"))

	return &RequestContext{
		RequestID: reqID,
		SessionID: sessionID,
		Action:    action,
		StartTime: now,
		Steps:     []StepLog{},
		log:       entry,
	}
}

// StartStep begins tracking a new processing step
func (rc *RequestContext) StartStep(stepName string) {
	rc.CurrentStep = stepName
	rc.CurrentStepStart = time.Now()

	stepDescriptions := map[string]string{
		"prepare_document": "📁 Preparing document",
		"ocr":              "🔍 Running OCR",
		"refine":           "🔧 Refining OCR text",
		"translate":        "🌎 Translating",
		"summarize":        "⚡ Summarizing into key points",
	}

	desc := stepDescriptions[stepName]
	if desc == "" {
		desc = stepName
	}

	rc.log.Infof("┌── %s", desc)
}

// EndStep completes the current step and records timing
func (rc *RequestContext) EndStep(status string, usage *TokenUsage, err error) {
	duration := time.Since(rc.CurrentStepStart).Milliseconds()

	stepLog := StepLog{
		Name:      rc.CurrentStep,
		StartTime: rc.CurrentStepStart,
		Duration:  duration,
		Status:    status,
		Usage:     usage,
		SubSteps:  rc.CurrentSubSteps,
	}

	if err != nil {
		stepLog.Error = err.Error()
		rc.log.WithError(err).Errorf("❌ FAILED - %s (%.2fs)", rc.CurrentStep, float64(duration)/1000)
	} else {
		logMsg := fmt.Sprintf("└── ✅ done: %.2fs", float64(duration)/1000)

		if usage != nil {
			rc.TotalUsage.Add(usage)
			logMsg += fmt.Sprintf(" | 🪙 Usage: %d in + %d out = %d | 💰 $%.4f",
				usage.InputTokens, usage.OutputTokens, usage.TotalTokens, usage.CostUSD)
		}

		if len(rc.CurrentSubSteps) > 0 {
			logMsg += fmt.Sprintf(" | sub-steps: %d", len(rc.CurrentSubSteps))
		}

		rc.log.Info(logMsg)
	}

	rc.Steps = append(rc.Steps, stepLog)
	rc.CurrentStep = ""
	rc.CurrentSubSteps = []SubStepLog{}
}

// StartSubStep begins tracking a detailed sub-operation
func (rc *RequestContext) StartSubStep(subStepName string) {
	rc.CurrentSubStep = subStepName
	rc.CurrentSubStepStart = time.Now()

	subStepDesc := map[string]string{
		"decode_image":      "🖼️ Detecting image format",
		"image_downscale":   "🔧 Downscaling image",
		"read_pdf":          "📄 Reading PDF",
		"wait_rate_limit":   "⏳ Waiting for rate limit",
		"mistral_ocr_call":  "🚀 Calling Mistral OCR",
		"mistral_chat_call": "💬 Calling Mistral chat",
		"gemini_call":       "🚀 Calling Gemini",
		"fetch_document":    "📥 Fetching remote document",
	}

	desc := subStepDesc[subStepName]
	if desc == "" {
		desc = subStepName
	}

	rc.log.Infof("   ├─ %s...", desc)
}

// EndSubStep completes the current sub-step and records timing
func (rc *RequestContext) EndSubStep(details string) {
	if rc.CurrentSubStep == "" {
		return
	}

	duration := time.Since(rc.CurrentSubStepStart).Milliseconds()

	rc.CurrentSubSteps = append(rc.CurrentSubSteps, SubStepLog{
		Name:      rc.CurrentSubStep,
		StartTime: rc.CurrentSubStepStart,
		Duration:  duration,
		Details:   details,
	})

	detailsMsg := ""
	if details != "" {
		detailsMsg = " | " + details
	}
	rc.log.Infof("   └─ ✅ %.2fs%s", float64(duration)/1000, detailsMsg)

	rc.CurrentSubStep = ""
}

// LogInfo logs info-level message with request ID prefix
func (rc *RequestContext) LogInfo(format string, args ...interface{}) {
	rc.log.Infof("ℹ️  "+format, args...)
}

// LogWarning logs warning-level message with request ID prefix
func (rc *RequestContext) LogWarning(format string, args ...interface{}) {
	rc.log.Warnf("⚠️  "+format, args...)
}

// LogError logs error-level message with request ID prefix
func (rc *RequestContext) LogError(format string, args ...interface{}) {
	rc.log.Errorf("❌ "+format, args...)
}

// GetSummary returns a final summary of the entire request
func (rc *RequestContext) GetSummary() map[string]interface{} {
	totalDuration := time.Since(rc.StartTime).Milliseconds()

	stepBreakdown := make(map[string]int64)
	for _, step := range rc.Steps {
		stepBreakdown[step.Name] = step.Duration
	}

	summary := map[string]interface{}{
		"request_id":         rc.RequestID,
		"action":             rc.Action,
		"total_duration_ms":  totalDuration,
		"total_duration_sec": float64(totalDuration) / 1000,
		"step_breakdown":     stepBreakdown,
		"total_steps":        len(rc.Steps),
		"usage": map[string]interface{}{
			"input_tokens":  rc.TotalUsage.InputTokens,
			"output_tokens": rc.TotalUsage.OutputTokens,
			"total_tokens":  rc.TotalUsage.TotalTokens,
			"cost_usd":      fmt.Sprintf("$%.4f", rc.TotalUsage.CostUSD),
		},
	}

	rc.log.Infof("═══ 🎯 Summary ═══ ⏱️  %.2fs | 📝 steps: %d | 🪙 %s in + %s out = %s | 💰 $%.4f",
		float64(totalDuration)/1000,
		len(rc.Steps),
		formatNumber(rc.TotalUsage.InputTokens),
		formatNumber(rc.TotalUsage.OutputTokens),
		formatNumber(rc.TotalUsage.TotalTokens),
		rc.TotalUsage.CostUSD)

	return summary
}

// shortID keeps session ids out of logs in full
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// formatNumber adds comma separators to numbers
func formatNumber(n int) string {
	if n < 1000 {
		return fmt.Sprintf("%d", n)
	}
	if n < 1000000 {
		return fmt.Sprintf("%d,%03d", n/1000, n%1000)
	}
	return fmt.Sprintf("%d,%03d,%03d", n/1000000, (n%1000000)/1000, n%1000)
}
