// Package pagemeta holds the title, description, keyword and social card
// metadata of every shell page, plus the sidebar navigation.
package pagemeta

import (
	"slices"
	"strings"
)

// FallbackTitle names pages missing from the table.
const FallbackTitle = "页面"

// Site is the site-wide part of the metadata.
type Site struct {
	Name            string
	Separator       string
	Author          string
	Homepage        string
	Description     string
	DefaultKeywords []string
}

// DefaultSite returns the HaloLight site metadata.
func DefaultSite() Site {
	return Site{
		Name:        "HaloLight",
		Separator:   " · ",
		Author:      "h7ml",
		Homepage:    "https://halolight.h7ml.cn",
		Description: "Halolight 后台管理系统",
		DefaultKeywords: []string{
			"后台管理系统",
			"管理后台",
			"Admin Dashboard",
			"中文后台",
			"Go",
		},
	}
}

// Tag is one <meta> element. Exactly one of Name and Property is set.
type Tag struct {
	Name     string `json:"name,omitempty"`
	Property string `json:"property,omitempty"`
	Content  string `json:"content"`
}

// Meta is the rendered metadata of a page.
type Meta struct {
	Path        string   `json:"path"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Keywords    []string `json:"keywords"`
	Tags        []Tag    `json:"tags"`
}

// Catalog resolves page metadata for a site.
type Catalog struct {
	site Site
}

// New returns a catalog for site. Empty fields take the HaloLight defaults.
func New(site Site) *Catalog {
	def := DefaultSite()
	if strings.TrimSpace(site.Name) == "" {
		site.Name = def.Name
	}
	if site.Separator == "" {
		site.Separator = def.Separator
	}
	if site.Author == "" {
		site.Author = def.Author
	}
	if site.Homepage == "" {
		site.Homepage = def.Homepage
	}
	if site.Description == "" {
		site.Description = def.Description
	}
	if len(site.DefaultKeywords) == 0 {
		site.DefaultKeywords = def.DefaultKeywords
	}
	site.Homepage = strings.TrimRight(site.Homepage, "/")
	return &Catalog{site: site}
}

// Site returns the resolved site metadata.
func (c *Catalog) Site() Site {
	return c.site
}

// PageTitle appends the site name to a page title.
func (c *Catalog) PageTitle(title string) string {
	if title == "" {
		return c.site.Name
	}
	return title + c.site.Separator + c.site.Name
}

// Lookup returns the table entry for path. Unknown paths get the fallback
// title and the site description, with ok=false.
func (c *Catalog) Lookup(path string) (Page, bool) {
	page, ok := pages[path]
	if !ok {
		return Page{Title: FallbackTitle, Description: c.site.Description}, false
	}
	page.Keywords = slices.Clone(page.Keywords)
	return page, true
}

// Generate renders the metadata for path. Non-empty override fields replace
// the table entry.
func (c *Catalog) Generate(path string, override *Page) Meta {
	page, _ := c.Lookup(path)
	if override != nil {
		if override.Title != "" {
			page.Title = override.Title
		}
		if override.Description != "" {
			page.Description = override.Description
		}
		if len(override.Keywords) > 0 {
			page.Keywords = slices.Clone(override.Keywords)
		}
	}
	keywords := append(page.Keywords, c.site.DefaultKeywords...)
	title := c.PageTitle(page.Title)
	return Meta{
		Path:        path,
		Title:       title,
		Description: page.Description,
		Keywords:    keywords,
		Tags: []Tag{
			{Name: "description", Content: page.Description},
			{Name: "keywords", Content: strings.Join(keywords, ", ")},
			{Property: "og:title", Content: title},
			{Property: "og:description", Content: page.Description},
			{Property: "og:type", Content: "website"},
			{Property: "og:site_name", Content: c.site.Name},
			{Property: "og:url", Content: c.site.Homepage + path},
			{Name: "twitter:card", Content: "summary_large_image"},
			{Name: "twitter:title", Content: title},
			{Name: "twitter:description", Content: page.Description},
			{Name: "author", Content: c.site.Author},
			{Name: "robots", Content: "index, follow"},
		},
	}
}

// Known reports whether path is a page of the shell.
func Known(path string) bool {
	_, ok := pages[path]
	return ok
}

// Public reports whether path renders without a signed-in user.
func Public(path string) bool {
	return publicPages[path]
}

// Nav returns the sidebar entries in display order.
func Nav() []NavItem {
	return slices.Clone(nav)
}

// UserMenu returns the entries of the avatar menu.
func UserMenu() []NavItem {
	return slices.Clone(userMenu)
}
