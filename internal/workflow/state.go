// state.go - Per-session form state

package workflow

import "github.com/bosocmputer/ocr_translate/internal/ai"

// State is what one session has accumulated so far. It is a value: actions
// return a new State and never modify the one they were given. The OCR
// result is shared between copies and must not be mutated.
type State struct {
	APIKey         string        `json:"-"`
	OCRResult      *ai.OCRResult `json:"ocr_result,omitempty"`
	RefinedText    string        `json:"refined_text,omitempty"`
	TranslatedText string        `json:"translated_text,omitempty"`
}

// HasKey reports whether an API key was saved
func (s State) HasKey() bool {
	return s.APIKey != ""
}

// HasOCR reports whether a document was processed
func (s State) HasOCR() bool {
	return s.OCRResult != nil
}

// HasTranslation reports whether the OCR text was translated
func (s State) HasTranslation() bool {
	return s.TranslatedText != ""
}

// OCRText is the joined OCR output, or "" when nothing was processed yet
func (s State) OCRText() string {
	if s.OCRResult == nil {
		return ""
	}
	return s.OCRResult.Text()
}

// WithAPIKey returns a copy holding key
func (s State) WithAPIKey(key string) State {
	s.APIKey = key
	return s
}

// WithOCRResult returns a copy holding result. Text derived from the
// previous document no longer applies and is dropped.
func (s State) WithOCRResult(result *ai.OCRResult) State {
	s.OCRResult = result
	s.RefinedText = ""
	s.TranslatedText = ""
	return s
}

// WithRefinedText returns a copy holding text as the refinement
func (s State) WithRefinedText(text string) State {
	s.RefinedText = text
	return s
}

// WithTranslatedText returns a copy holding text as the translation
func (s State) WithTranslatedText(text string) State {
	s.TranslatedText = text
	return s
}
