package httpapi

import (
	"net/http"
	"strings"
)

// mount describes where the app lives: Prefix is the path the handler is
// served under ("" at the root), Href the absolute or root-relative <base>
// the templates emit.
type mount struct {
	Prefix string
	Href   string
}

func newMount(baseURL, basePath string) mount {
	prefix := cleanPrefix(basePath)
	origin := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	m := mount{Prefix: prefix}
	if origin != "" || prefix != "" {
		m.Href = origin + prefix + "/"
	}
	return m
}

// cleanPrefix turns "admin/", "/admin" and "admin" into "/admin"; the root
// collapses to "".
func cleanPrefix(value string) string {
	parts := strings.FieldsFunc(value, func(r rune) bool { return r == '/' })
	var kept []string
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			kept = append(kept, part)
		}
	}
	if len(kept) == 0 {
		return ""
	}
	return "/" + strings.Join(kept, "/")
}

// url prefixes a site-local path.
func (m mount) url(path string) string {
	if path == "" {
		path = "/"
	}
	return m.Prefix + path
}

// wrap serves handler under the prefix. The bare prefix redirects to the
// prefix with a trailing slash.
func (m mount) wrap(handler http.Handler) http.Handler {
	if m.Prefix == "" {
		return handler
	}
	root := http.NewServeMux()
	root.Handle(m.Prefix+"/", http.StripPrefix(m.Prefix, handler))
	root.HandleFunc(m.Prefix, func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, m.Prefix+"/", http.StatusTemporaryRedirect)
	})
	return root
}
