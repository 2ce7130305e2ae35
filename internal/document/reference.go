// reference.go - Document reference sent to the OCR service

package document

import (
	"fmt"
	"strings"
)

// FileType is what the operator says the document is
type FileType string

const (
	FilePDF   FileType = "pdf"
	FileImage FileType = "image"
)

// Source is where the document comes from
type Source string

const (
	SourceURL    Source = "url"
	SourceUpload Source = "upload"
)

// Kind is the reference tag understood by the OCR service
type Kind string

const (
	KindDocumentURL Kind = "document_url"
	KindImageURL    Kind = "image_url"
)

// ParseFileType accepts the form values "PDF"/"Image" in any case.
func ParseFileType(s string) (FileType, error) {
	switch FileType(strings.ToLower(strings.TrimSpace(s))) {
	case FilePDF:
		return FilePDF, nil
	case FileImage:
		return FileImage, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidFileType, s)
}

// ParseSource accepts "URL", "Upload" and "Local Upload".
func ParseSource(s string) (Source, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	switch {
	case v == string(SourceURL):
		return SourceURL, nil
	case v == string(SourceUpload), v == "local upload", v == "local_upload":
		return SourceUpload, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidSource, s)
}

// Reference is either a remote URL or an inline base64 payload. Exactly one
// of URL and Data is set.
type Reference struct {
	Kind     Kind     `json:"type"`
	FileType FileType `json:"file_type"`
	URL      string   `json:"url,omitempty"`
	Data     string   `json:"-"` // base64, no data: prefix
	MIMEType string   `json:"mime_type,omitempty"`
	Pages    int      `json:"pages,omitempty"` // known page count for uploaded PDFs
	Size     int      `json:"size,omitempty"`  // decoded payload size in bytes
}

// IsInline reports whether the reference carries the document bytes.
func (r Reference) IsInline() bool {
	return r.Data != ""
}

// Location returns the value placed in the service's document_url/image_url field:
// the literal URL, or a data URI for inline payloads.
func (r Reference) Location() string {
	if r.IsInline() {
		return fmt.Sprintf("data:%s;base64,%s", r.MIMEType, r.Data)
	}
	return r.URL
}

// Describe is a short log-friendly description that never includes the payload.
func (r Reference) Describe() string {
	if r.IsInline() {
		return fmt.Sprintf("%s inline %s (%.2f KB)", r.Kind, r.MIMEType, float64(r.Size)/1024.0)
	}
	return fmt.Sprintf("%s %s", r.Kind, r.URL)
}
