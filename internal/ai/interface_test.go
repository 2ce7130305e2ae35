package ai

import (
	"strings"
	"testing"
)

func TestJoinPages_EmptyIsSentinel(t *testing.T) {
	if got := JoinPages(nil); got != NoResultFound {
		t.Errorf("expected %q, got %q", NoResultFound, got)
	}
	if got := JoinPages([]Page{{Markdown: "  "}, {Markdown: "\n"}}); got != NoResultFound {
		t.Errorf("expected sentinel for whitespace pages, got %q", got)
	}
}

func TestJoinPages_PageOrder(t *testing.T) {
	got := JoinPages([]Page{{Index: 0, Markdown: "p1"}, {Index: 1, Markdown: "p2"}})
	if got != "p1\n\np2" {
		t.Errorf("expected %q, got %q", "p1\n\np2", got)
	}
}

func TestOCRResult_NilAndImages(t *testing.T) {
	var r *OCRResult
	if r.Text() != NoResultFound {
		t.Errorf("expected sentinel for nil result")
	}
	if len(r.Images()) != 0 {
		t.Errorf("expected no images for nil result")
	}

	r = &OCRResult{Pages: []Page{
		{Markdown: "a", Images: []PageImage{{ID: "img-0.jpeg", DataURI: "data:image/jpeg;base64,AA"}, {ID: "img-1.jpeg"}}},
		{Markdown: "b", Images: []PageImage{{ID: "img-2.png", DataURI: "data:image/png;base64,BB"}}},
	}}
	images := r.Images()
	if len(images) != 2 {
		t.Fatalf("expected 2 images with data, got %d", len(images))
	}
	if !strings.HasPrefix(images["img-2.png"], "data:image/png") {
		t.Errorf("unexpected image uri %q", images["img-2.png"])
	}
}
