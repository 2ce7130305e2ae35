package render

import (
	"strings"
	"testing"
)

func TestInlineImages(t *testing.T) {
	md := "# Title\n\n![img-0.jpeg](img-0.jpeg)\n\n![img-1.png](img-1.png)"
	images := map[string]string{
		"img-0.jpeg": "data:image/jpeg;base64,AAAA",
		"img-1.png":  "",
	}

	got := InlineImages(md, images)
	if !strings.Contains(got, "![img-0.jpeg](data:image/jpeg;base64,AAAA)") {
		t.Errorf("expected inlined image, got %q", got)
	}
	if !strings.Contains(got, "![img-1.png](img-1.png)") {
		t.Errorf("expected reference without data to stay, got %q", got)
	}
}

func TestRender_GFM(t *testing.T) {
	r := NewRenderer()
	html, err := r.Render("| a | b |\n|---|---|\n| 1 | 2 |\n\n~~old~~", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	out := string(html)
	if !strings.Contains(out, "<table>") || !strings.Contains(out, "<td>1</td>") {
		t.Errorf("expected table, got %s", out)
	}
	if !strings.Contains(out, "<del>old</del>") {
		t.Errorf("expected strikethrough, got %s", out)
	}
}

func TestRender_ImagesAndRawHTML(t *testing.T) {
	r := NewRenderer()
	html, err := r.Render("![img-0.jpeg](img-0.jpeg)\n\n<script>alert(1)</script>", map[string]string{
		"img-0.jpeg": "data:image/jpeg;base64,AAAA",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	out := string(html)
	if !strings.Contains(out, `<img src="data:image/jpeg;base64,AAAA" alt="img-0.jpeg">`) {
		t.Errorf("expected inlined image tag, got %s", out)
	}
	if strings.Contains(out, "<script>") {
		t.Errorf("raw HTML must not be rendered, got %s", out)
	}
}
