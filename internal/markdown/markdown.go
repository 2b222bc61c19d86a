// Package markdown renders the static documentation pages bundled with the
// binary.
package markdown

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"sort"
	"strings"
	"sync"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/text"
)

//go:embed pages/*.md
var pageFS embed.FS

// ErrPageNotFound is returned for names without an embedded page.
var ErrPageNotFound = errors.New("markdown page not found")

// Document is a rendered page.
type Document struct {
	Name  string
	Title string
	HTML  template.HTML
}

var (
	engine     goldmark.Markdown
	engineOnce sync.Once
)

func markdownEngine() goldmark.Markdown {
	engineOnce.Do(func() {
		engine = goldmark.New(
			goldmark.WithExtensions(
				extension.GFM,
				extension.DefinitionList,
			),
		)
	})
	return engine
}

// Render converts Markdown to HTML. Raw HTML in the source is dropped.
func Render(source []byte) (template.HTML, error) {
	var buf bytes.Buffer
	if err := markdownEngine().Convert(source, &buf); err != nil {
		return "", err
	}
	return template.HTML(buf.String()), nil
}

// Title returns the text of the first level-one heading, or "".
func Title(source []byte) string {
	doc := markdownEngine().Parser().Parse(text.NewReader(source))
	var title string
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		heading, ok := n.(*ast.Heading)
		if !ok || heading.Level != 1 {
			return ast.WalkContinue, nil
		}
		title = plainText(heading, source)
		return ast.WalkStop, nil
	})
	return title
}

// Page renders the embedded page called name (docs, terms, privacy).
func Page(name string) (Document, error) {
	name = strings.Trim(strings.TrimSpace(name), "/")
	if name == "" || strings.ContainsAny(name, "/.") {
		return Document{}, ErrPageNotFound
	}
	source, err := pageFS.ReadFile("pages/" + name + ".md")
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Document{}, ErrPageNotFound
		}
		return Document{}, err
	}
	html, err := Render(source)
	if err != nil {
		return Document{}, fmt.Errorf("render %s: %w", name, err)
	}
	return Document{Name: name, Title: Title(source), HTML: html}, nil
}

// Pages lists the embedded page names.
func Pages() []string {
	entries, err := pageFS.ReadDir("pages")
	if err != nil {
		return nil
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if name, ok := strings.CutSuffix(entry.Name(), ".md"); ok {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

func plainText(n ast.Node, source []byte) string {
	var b strings.Builder
	for child := n.FirstChild(); child != nil; child = child.NextSibling() {
		switch node := child.(type) {
		case *ast.Text:
			b.Write(node.Segment.Value(source))
		case *ast.String:
			b.Write(node.Value)
		default:
			b.WriteString(plainText(child, source))
		}
	}
	return b.String()
}
