package httpapi

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"
	"unicode/utf8"

	"pkt.systems/halolight/internal/logx"
	"pkt.systems/halolight/internal/markdown"
	"pkt.systems/halolight/internal/pagemeta"
	"pkt.systems/halolight/schema"
)

//go:embed templates/*.html assets/*
var webFS embed.FS

// assetsFS serves the stylesheet and script under /assets/.
var assetsFS = mustSub(webFS, "assets")

func mustSub(fsys fs.FS, dir string) fs.FS {
	sub, err := fs.Sub(fsys, dir)
	if err != nil {
		panic(err)
	}
	return sub
}

// Page templates. Each is layout.html plus one body file.
var pageTemplates = []string{"shell", "auth", "doc", "notfound"}

// authHeadings are the form titles.
var authHeadings = map[string]string{
	"login":           "登录",
	"register":        "注册",
	"forgot-password": "忘记密码",
	"reset-password":  "重置密码",
}

type pageData struct {
	Meta        pagemeta.Meta
	Site        SiteConfig
	BaseHref    string
	BasePath    string
	Path        string
	Heading     string
	Description string
	User        *schema.User
	Accounts    []schema.Account
	Nav         []pagemeta.NavItem
	UserMenu    []pagemeta.NavItem
	Tabs        []schema.TabSnapshot
	ActiveTab   schema.TabID
	Settings    schema.UISettings
	Skins       []schema.SkinPreset
	Doc         *markdown.Document
	Form        string
	Auth        authForm
	Year        int
}

// authForm is what an auth page echoes back. Passwords never are.
type authForm struct {
	Email     string
	Name      string
	Company   string
	Token     string
	Redirect  string
	Remember  bool
	Error     string
	Message   string
	ResetLink string
}

func parseTemplates(urlFor func(string) string) (map[string]*template.Template, error) {
	funcs := template.FuncMap{
		"url": urlFor,
		"initial": func(name string) string {
			r, size := utf8.DecodeRuneInString(name)
			if size == 0 {
				return "?"
			}
			return string(r)
		},
	}
	base, err := template.New("layout.html").Funcs(funcs).ParseFS(webFS, "templates/layout.html")
	if err != nil {
		return nil, fmt.Errorf("parse layout: %w", err)
	}
	out := make(map[string]*template.Template, len(pageTemplates))
	for _, name := range pageTemplates {
		clone, err := base.Clone()
		if err != nil {
			return nil, err
		}
		tmpl, err := clone.ParseFS(webFS, "templates/"+name+".html")
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", name, err)
		}
		out[name] = tmpl
	}
	return out, nil
}

func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, page string, data pageData) {
	tmpl, ok := s.templates[page]
	if !ok {
		http.Error(w, "template not found", http.StatusInternalServerError)
		return
	}
	data.Site = s.cfg.Site
	data.BaseHref = s.mount.Href
	data.BasePath = s.mount.Prefix
	data.Year = s.clock.Now().Year()
	if data.Settings.Skin == "" {
		data.Settings = schema.DefaultUISettings()
	}
	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "layout", data); err != nil {
		logx.Ctx(r.Context()).Error("http render failed", "page", page, "err", err)
		http.Error(w, "render failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

// handlePage serves the shell for every known page, the public markdown
// pages and the 404 page.
func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	pagePath := path.Clean("/" + r.URL.Path)
	log := logx.WithPath(logx.Ctx(r.Context()), pagePath)

	if pagePath == "/terms" || pagePath == "/privacy" {
		s.renderDoc(w, r, pagePath)
		return
	}
	if !pagemeta.Known(pagePath) || pagemeta.Public(pagePath) {
		s.renderNotFound(w, r, pagePath)
		return
	}

	token := s.requestToken(r)
	user, err := s.auth.Resolve(token)
	if err != nil {
		target := pagePath
		if r.URL.RawQuery != "" {
			target += "?" + r.URL.RawQuery
		}
		http.Redirect(w, r, s.url("/login")+"?redirect="+url.QueryEscape(target), http.StatusFound)
		return
	}
	r = s.withSession(w, r, log, user)
	ctx := r.Context()

	page, _ := s.pages.Lookup(pagePath)
	data := pageData{
		Meta:        s.pages.Generate(pagePath, nil),
		Path:        pagePath,
		Heading:     page.Title,
		Description: page.Description,
		User:        &user,
		Nav:         pagemeta.Nav(),
		UserMenu:    pagemeta.UserMenu(),
		Skins:       schema.AvailableSkins(),
	}
	if pagePath == "/docs" {
		doc, err := markdown.Page("docs")
		if err != nil {
			log.Error("http docs render failed", "err", err)
		} else {
			data.Doc = &doc
		}
	}

	if _, err := s.service.AddTab(ctx, schema.AddTabRequest{UserID: user.ID, Title: page.Title, Path: pagePath}); err != nil {
		log.Warn("http page tab failed", "err", err)
	}
	s.sessions.persist()
	if resp, err := s.service.ListTabs(ctx, schema.ListTabsRequest{UserID: user.ID}); err == nil {
		data.Tabs = resp.Tabs
		data.ActiveTab = resp.ActiveTab
	}
	if resp, err := s.service.GetSettings(ctx, schema.GetSettingsRequest{UserID: user.ID}); err == nil {
		data.Settings = resp.Settings
	}
	if sess, ok := s.accountBook(r, user, token); ok {
		data.Accounts = sess.book.List()
	}
	s.render(w, r, http.StatusOK, "shell", data)
}

func (s *Server) renderDoc(w http.ResponseWriter, r *http.Request, pagePath string) {
	doc, err := markdown.Page(strings.TrimPrefix(pagePath, "/"))
	if err != nil {
		logx.Ctx(r.Context()).Error("http markdown page failed", "path", pagePath, "err", err)
		s.renderNotFound(w, r, pagePath)
		return
	}
	page, _ := s.pages.Lookup(pagePath)
	s.render(w, r, http.StatusOK, "doc", pageData{
		Meta:        s.pages.Generate(pagePath, nil),
		Path:        pagePath,
		Heading:     doc.Title,
		Description: page.Description,
		Doc:         &doc,
	})
}

func (s *Server) renderNotFound(w http.ResponseWriter, r *http.Request, pagePath string) {
	s.render(w, r, http.StatusNotFound, "notfound", pageData{
		Meta:    s.pages.Generate(pagePath, &pagemeta.Page{Title: "页面未找到"}),
		Path:    pagePath,
		Heading: "页面未找到",
	})
}

// handleAuthPage renders one of the sign-in forms. Signed-in users skip the
// login and register forms.
func (s *Server) handleAuthPage(form string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if form == "login" || form == "register" {
			if _, err := s.auth.Resolve(s.requestToken(r)); err == nil {
				http.Redirect(w, r, s.url(safeRedirect(r.URL.Query().Get("redirect"))), http.StatusFound)
				return
			}
		}
		data := s.authFormFromRequest(r)
		if r.URL.Query().Get("reset") == "1" {
			data.Message = "密码已重置，请使用新密码登录"
		}
		s.renderAuthPage(w, r, http.StatusOK, form, data)
	}
}

func (s *Server) renderAuthPage(w http.ResponseWriter, r *http.Request, status int, form string, auth authForm) {
	pagePath := "/" + form
	page, _ := s.pages.Lookup(pagePath)
	s.render(w, r, status, "auth", pageData{
		Meta:        s.pages.Generate(pagePath, nil),
		Path:        pagePath,
		Heading:     authHeadings[form],
		Description: page.Description,
		Form:        form,
		Auth:        auth,
	})
}

func (s *Server) authFormFromRequest(r *http.Request) authForm {
	query := r.URL.Query()
	form := authForm{
		Redirect: query.Get("redirect"),
		Token:    query.Get("token"),
	}
	if r.PostForm != nil {
		form.Email = r.PostForm.Get("email")
		form.Name = r.PostForm.Get("name")
		form.Company = r.PostForm.Get("company")
		form.Remember = r.PostForm.Get("remember") != ""
		if v := r.PostForm.Get("redirect"); v != "" {
			form.Redirect = v
		}
		if v := r.PostForm.Get("token"); v != "" {
			form.Token = v
		}
	}
	if form.Email == "" && s.cfg.Site.ShowDemoHint {
		form.Email = s.cfg.Site.DemoEmail
	}
	return form
}

// cacheControl is applied to the embedded static assets.
func cacheControl(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", fmt.Sprintf("public, max-age=%d", int((time.Hour).Seconds())))
		next.ServeHTTP(w, r)
	})
}
