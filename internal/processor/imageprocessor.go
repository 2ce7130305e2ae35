// imageprocessor.go - Image downscaling before inline upload to the OCR service

package processor

import (
	"bytes"
	"fmt"
	"image"

	"github.com/disintegration/imaging"
)

// jpegQuality is used when a JPEG has to be re-encoded after resizing
const jpegQuality = 95

// NeedsDownscale reports whether an image of the given size exceeds maxDimension on its longest side.
func NeedsDownscale(width, height, maxDimension int) bool {
	return maxDimension > 0 && (width > maxDimension || height > maxDimension)
}

// Downscale shrinks the image so its longest side equals maxDimension and
// re-encodes it in the same format it was decoded from. The format name is
// the one reported by image.DecodeConfig ("jpeg", "png", "gif", "bmp").
// Images already within bounds are returned unchanged.
func Downscale(data []byte, format string, maxDimension int) ([]byte, error) {
	outFormat, err := imaging.FormatFromExtension(format)
	if err != nil {
		return nil, fmt.Errorf("unsupported image format for resize: %s", format)
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	bounds := img.Bounds()
	if !NeedsDownscale(bounds.Dx(), bounds.Dy(), maxDimension) {
		return data, nil
	}

	img = resizeLongestSide(img, maxDimension)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, outFormat, imaging.JPEGQuality(jpegQuality)); err != nil {
		return nil, fmt.Errorf("failed to encode processed image: %w", err)
	}

	return buf.Bytes(), nil
}

// resizeLongestSide keeps the aspect ratio while bounding the longest side
func resizeLongestSide(img image.Image, maxDimension int) image.Image {
	bounds := img.Bounds()
	if bounds.Dx() > bounds.Dy() {
		return imaging.Resize(img, maxDimension, 0, imaging.Lanczos)
	}
	return imaging.Resize(img, 0, maxDimension, imaging.Lanczos)
}
