// prompts.go - Instructions sent to the chat model

package ai

import "fmt"

// Intent is the kind of remote request an action performs
type Intent string

const (
	IntentOCR       Intent = "ocr"
	IntentRefine    Intent = "refine"
	IntentTranslate Intent = "translate"
	IntentSummarize Intent = "summarize"
)

// DefaultTargetLanguage is used when no translation target is configured
const DefaultTargetLanguage = "English"

// BuildPrompt prefixes text with the instruction for intent.
// targetLanguage only applies to IntentTranslate.
func BuildPrompt(intent Intent, text, targetLanguage string) (string, error) {
	switch intent {
	case IntentRefine:
		return "Improve the structure and readability of the following text in its original language without translating it:\n\n" + text, nil
	case IntentTranslate:
		if targetLanguage == "" {
			targetLanguage = DefaultTargetLanguage
		}
		return fmt.Sprintf("Translate the following text to %s:\n\n%s", targetLanguage, text), nil
	case IntentSummarize:
		return "Summarize the following translated text into 5 key bullet points:\n\n" + text, nil
	default:
		return "", fmt.Errorf("no chat prompt for intent %q", intent)
	}
}

// geminiPageMarker separates pages in Gemini transcriptions
const geminiPageMarker = "<<<PAGE_BREAK>>>"

// geminiOCRPrompt asks Gemini for a Mistral-style markdown transcription
var geminiOCRPrompt = `Transcribe all text in the attached document as Markdown.
- Preserve reading order, headings, lists and tables (use Markdown tables).
- Keep the original language. Do not translate, summarize, correct or comment.
- If the document has several pages, put the line ` + geminiPageMarker + ` between pages.
- If there is no readable text, return an empty response.`
