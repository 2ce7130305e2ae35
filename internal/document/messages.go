package document

import "errors"

// UserMessage maps preparer errors to the message shown on the form.
func UserMessage(err error) string {
	switch {
	case errors.Is(err, ErrMissingURL):
		return "❌ Please enter a valid URL."
	case errors.Is(err, ErrMissingFile):
		return "❌ Please upload a valid file."
	case errors.Is(err, ErrFileTooLarge):
		return "❌ The uploaded file is too large."
	case errors.Is(err, ErrUnsupportedFileType):
		return "❌ Unsupported file type. Allowed: png, jpg, jpeg, gif, bmp, pdf."
	case errors.Is(err, ErrUnsupportedFormat):
		return "❌ Unsupported image format."
	case errors.Is(err, ErrUnreadableImage):
		return "❌ The uploaded image could not be read."
	case errors.Is(err, ErrUnreadablePDF):
		return "❌ The uploaded PDF could not be read."
	case errors.Is(err, ErrInvalidFileType):
		return "❌ Please select a file type (PDF or Image)."
	case errors.Is(err, ErrInvalidSource):
		return "❌ Please select an input source (URL or Upload)."
	case err != nil:
		return "❌ Error: " + err.Error()
	}
	return ""
}
