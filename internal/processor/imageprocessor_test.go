package processor

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"
)

func encodePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, x%h, color.Black)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("failed to encode png: %v", err)
	}
	return buf.Bytes()
}

func TestDownscale_ShrinksLongestSideAndKeepsFormat(t *testing.T) {
	data := encodePNG(t, 400, 200)

	out, err := Downscale(data, "png", 100)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("failed to decode output: %v", err)
	}
	if format != "png" {
		t.Errorf("expected png output, got %s", format)
	}
	if cfg.Width != 100 || cfg.Height != 50 {
		t.Errorf("expected 100x50, got %dx%d", cfg.Width, cfg.Height)
	}
}

func TestDownscale_SmallImageUnchanged(t *testing.T) {
	data := encodePNG(t, 40, 30)

	out, err := Downscale(data, "png", 100)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !bytes.Equal(out, data) {
		t.Error("expected image within bounds to be returned as-is")
	}
}

func TestDownscale_UnknownFormat(t *testing.T) {
	if _, err := Downscale([]byte("x"), "webp", 100); err == nil {
		t.Fatal("expected error for format imaging cannot encode")
	}
}

func TestNeedsDownscale(t *testing.T) {
	if NeedsDownscale(100, 100, 100) {
		t.Error("100x100 with max 100 should not need downscale")
	}
	if !NeedsDownscale(101, 10, 100) {
		t.Error("101 wide with max 100 should need downscale")
	}
	if NeedsDownscale(5000, 5000, 0) {
		t.Error("max 0 disables downscaling")
	}
}
