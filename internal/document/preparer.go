// preparer.go - Turns an uploaded file or a URL into a Reference

package document

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"path/filepath"
	"strings"

	// Decoders registered for format detection. webp and tiff are detected
	// so they can be rejected as unsupported instead of unreadable.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/bosocmputer/ocr_translate/internal/common"
	"github.com/bosocmputer/ocr_translate/internal/processor"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

var (
	ErrInvalidFileType     = errors.New("invalid file type")
	ErrInvalidSource       = errors.New("invalid input source")
	ErrMissingURL          = errors.New("missing URL")
	ErrMissingFile         = errors.New("missing file")
	ErrFileTooLarge        = errors.New("file too large")
	ErrUnsupportedFileType = errors.New("unsupported file type")
	ErrUnreadableImage     = errors.New("unreadable image")
	ErrUnsupportedFormat   = errors.New("unsupported image format")
	ErrUnreadablePDF       = errors.New("unreadable PDF")
)

const (
	pdfHeader       = "%PDF-"
	pdfHeaderWindow = 1024
)

// SupportedImageFormats are the decoded formats the OCR service accepts inline
var SupportedImageFormats = map[string]bool{
	"jpeg": true,
	"png":  true,
	"bmp":  true,
	"gif":  true,
}

// AllowedExtensions mirrors the upload control's accept list
var AllowedExtensions = []string{"png", "jpg", "jpeg", "gif", "bmp", "pdf"}

func init() {
	// pdfcpu would otherwise create a config dir under the user's home
	api.DisableConfigDir()
}

// Input is what the operator submitted
type Input struct {
	FileType FileType
	Source   Source
	URL      string
	Filename string
	Data     []byte
}

// Options control upload handling
type Options struct {
	MaxUploadBytes    int64
	Preprocess        bool
	MaxImageDimension int
}

// Preparer builds References from operator input
type Preparer struct {
	opts Options
}

// NewPreparer creates a Preparer
func NewPreparer(opts Options) *Preparer {
	return &Preparer{opts: opts}
}

// Prepare validates the input and builds the Reference. reqCtx may be nil.
func (p *Preparer) Prepare(in Input, reqCtx *common.RequestContext) (Reference, error) {
	switch in.Source {
	case SourceURL:
		return p.fromURL(in)
	case SourceUpload:
		return p.fromUpload(in, reqCtx)
	default:
		return Reference{}, fmt.Errorf("%w: %q", ErrInvalidSource, in.Source)
	}
}

func (p *Preparer) fromURL(in Input) (Reference, error) {
	url := strings.TrimSpace(in.URL)
	if url == "" {
		return Reference{}, ErrMissingURL
	}

	switch in.FileType {
	case FilePDF:
		return Reference{Kind: KindDocumentURL, FileType: FilePDF, URL: url}, nil
	case FileImage:
		return Reference{Kind: KindImageURL, FileType: FileImage, URL: url}, nil
	default:
		return Reference{}, fmt.Errorf("%w: %q", ErrInvalidFileType, in.FileType)
	}
}

func (p *Preparer) fromUpload(in Input, reqCtx *common.RequestContext) (Reference, error) {
	if len(in.Data) == 0 {
		return Reference{}, ErrMissingFile
	}
	if p.opts.MaxUploadBytes > 0 && int64(len(in.Data)) > p.opts.MaxUploadBytes {
		return Reference{}, fmt.Errorf("%w: %d bytes (max %d)", ErrFileTooLarge, len(in.Data), p.opts.MaxUploadBytes)
	}
	if in.Filename != "" && !allowedExtension(in.Filename) {
		return Reference{}, fmt.Errorf("%w: %s", ErrUnsupportedFileType, filepath.Ext(in.Filename))
	}

	switch in.FileType {
	case FilePDF:
		return p.pdfPayload(in.Data, reqCtx)
	case FileImage:
		return p.imagePayload(in.Data, reqCtx)
	default:
		return Reference{}, fmt.Errorf("%w: %q", ErrInvalidFileType, in.FileType)
	}
}

func (p *Preparer) pdfPayload(data []byte, reqCtx *common.RequestContext) (Reference, error) {
	if !hasPDFHeader(data) {
		return Reference{}, fmt.Errorf("%w: missing %s header", ErrUnreadablePDF, pdfHeader)
	}

	// The page count is informational; the OCR service parses the file itself.
	startSubStep(reqCtx, "read_pdf")
	pages, err := countPages(data)
	if err != nil {
		endSubStep(reqCtx, "page count unavailable")
		if reqCtx != nil {
			reqCtx.LogWarning("Could not count PDF pages, sending as-is: %v", err)
		} else {
			common.Logger().Warnf("Could not count PDF pages, sending as-is: %v", err)
		}
	} else {
		endSubStep(reqCtx, fmt.Sprintf("%d page(s)", pages))
	}

	return Reference{
		Kind:     KindDocumentURL,
		FileType: FilePDF,
		Data:     base64.StdEncoding.EncodeToString(data),
		MIMEType: "application/pdf",
		Pages:    pages,
		Size:     len(data),
	}, nil
}

func (p *Preparer) imagePayload(data []byte, reqCtx *common.RequestContext) (Reference, error) {
	startSubStep(reqCtx, "decode_image")
	cfg, format, err := DetectImageFormat(data)
	if err != nil {
		endSubStep(reqCtx, "failed")
		return Reference{}, err
	}
	endSubStep(reqCtx, fmt.Sprintf("%s %dx%d", format, cfg.Width, cfg.Height))

	if !SupportedImageFormats[format] {
		return Reference{}, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}

	if p.opts.Preprocess && processor.NeedsDownscale(cfg.Width, cfg.Height, p.opts.MaxImageDimension) {
		startSubStep(reqCtx, "image_downscale")
		resized, err := processor.Downscale(data, format, p.opts.MaxImageDimension)
		if err != nil {
			// keep the original bytes; the service accepts them as-is
			endSubStep(reqCtx, "skipped")
			if reqCtx != nil {
				reqCtx.LogWarning("Downscale failed, sending original: %v", err)
			}
		} else {
			endSubStep(reqCtx, fmt.Sprintf("%d → %d bytes", len(data), len(resized)))
			data = resized
		}
	}

	return Reference{
		Kind:     KindImageURL,
		FileType: FileImage,
		Data:     base64.StdEncoding.EncodeToString(data),
		MIMEType: "image/" + format,
		Size:     len(data),
	}, nil
}

// DetectImageFormat decodes the image header and returns its real format name.
func DetectImageFormat(data []byte) (image.Config, string, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return image.Config{}, "", fmt.Errorf("%w: %v", ErrUnreadableImage, err)
	}
	return cfg, strings.ToLower(format), nil
}

func allowedExtension(filename string) bool {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
	for _, allowed := range AllowedExtensions {
		if ext == allowed {
			return true
		}
	}
	return false
}

// hasPDFHeader reports whether the %PDF- marker appears in the first KiB
func hasPDFHeader(data []byte) bool {
	head := data
	if len(head) > pdfHeaderWindow {
		head = head[:pdfHeaderWindow]
	}
	return bytes.Contains(head, []byte(pdfHeader))
}

// countPages asks pdfcpu for the page count. pdfcpu can panic on damaged
// files, which is reported as an error.
func countPages(data []byte) (pages int, err error) {
	defer func() {
		if r := recover(); r != nil {
			pages, err = 0, fmt.Errorf("pdfcpu: %v", r)
		}
	}()
	return api.PageCount(bytes.NewReader(data), pdfConfig())
}

func pdfConfig() *model.Configuration {
	cfg := model.NewDefaultConfiguration()
	cfg.ValidationMode = model.ValidationRelaxed
	return cfg
}

func startSubStep(reqCtx *common.RequestContext, name string) {
	if reqCtx != nil {
		reqCtx.StartSubStep(name)
	}
}

func endSubStep(reqCtx *common.RequestContext, details string) {
	if reqCtx != nil {
		reqCtx.EndSubStep(details)
	}
}
