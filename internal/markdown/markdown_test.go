package markdown

import (
	"errors"
	"reflect"
	"strings"
	"testing"
)

func TestRenderGFM(t *testing.T) {
	html, err := Render([]byte("# Title\n\n| a | b |\n| --- | --- |\n| 1 | 2 |\n\n~~gone~~ **bold**"))
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	out := string(html)
	for _, want := range []string{"<h1>Title</h1>", "<table>", "<del>gone</del>", "<strong>bold</strong>"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in %s", want, out)
		}
	}
}

func TestRenderDropsRawHTML(t *testing.T) {
	html, err := Render([]byte("hello <script>alert(1)</script>"))
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if strings.Contains(string(html), "<script>") {
		t.Fatalf("raw html leaked: %s", html)
	}
}

func TestTitle(t *testing.T) {
	if got := Title([]byte("intro\n\n## sub\n\n# Main `code` title\n")); got != "Main code title" {
		t.Fatalf("unexpected title %q", got)
	}
	if got := Title([]byte("no heading")); got != "" {
		t.Fatalf("expected empty title, got %q", got)
	}
}

func TestEmbeddedPages(t *testing.T) {
	if got, want := Pages(), []string{"docs", "privacy", "terms"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected pages %v", got)
	}
	titles := map[string]string{"docs": "帮助文档", "privacy": "隐私政策", "terms": "服务条款"}
	for name, title := range titles {
		doc, err := Page(name)
		if err != nil {
			t.Fatalf("page %s: %v", name, err)
		}
		if doc.Title != title {
			t.Fatalf("page %s: expected title %q, got %q", name, title, doc.Title)
		}
		if !strings.Contains(string(doc.HTML), "<h2") {
			t.Fatalf("page %s: expected sections", name)
		}
	}
}

func TestPageRejectsUnknownNames(t *testing.T) {
	for _, name := range []string{"", "missing", "../markdown", "pages/docs", "docs.md"} {
		if _, err := Page(name); !errors.Is(err, ErrPageNotFound) {
			t.Fatalf("%q: expected not found, got %v", name, err)
		}
	}
}
