package httpapi

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"

	"pkt.systems/halolight/schema"
)

// defaultAuthMaxAge is the cookie lifetime used by authResponse.
const defaultAuthMaxAge = 24 * time.Hour

// setAuthCookies writes auth_token (HttpOnly) and user_data (readable by the
// page scripts) with the same Max-Age.
func (s *Server) setAuthCookies(w http.ResponseWriter, token string, user schema.User, ttl time.Duration) {
	maxAge := int(ttl / time.Second)
	if maxAge <= 0 {
		maxAge = int(defaultAuthMaxAge / time.Second)
	}
	http.SetCookie(w, &http.Cookie{
		Name:     s.cfg.AuthCookie,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.cfg.SecureCookies,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   maxAge,
	})
	http.SetCookie(w, &http.Cookie{
		Name:     s.cfg.UserCookie,
		Value:    encodeUserData(user),
		Path:     "/",
		Secure:   s.cfg.SecureCookies,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   maxAge,
	})
}

// clearAuthCookies expires both auth cookies.
func (s *Server) clearAuthCookies(w http.ResponseWriter) {
	for _, name := range []string{s.cfg.AuthCookie, s.cfg.UserCookie} {
		http.SetCookie(w, &http.Cookie{
			Name:     name,
			Value:    "",
			Path:     "/",
			HttpOnly: name == s.cfg.AuthCookie,
			Secure:   s.cfg.SecureCookies,
			MaxAge:   -1,
		})
	}
}

func (s *Server) expireSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.cfg.SessionCookie,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   s.cfg.SecureCookies,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
	})
}

// authResponse signs the browser in and redirects to redirectTo ("/" when
// empty or not a local path).
func (s *Server) authResponse(w http.ResponseWriter, r *http.Request, token string, user schema.User, ttl time.Duration, redirectTo string) {
	if ttl <= 0 {
		ttl = defaultAuthMaxAge
	}
	s.setAuthCookies(w, token, user, ttl)
	http.Redirect(w, r, s.url(safeRedirect(redirectTo)), http.StatusFound)
}

// logoutResponse expires the auth cookies and redirects to the login page.
func (s *Server) logoutResponse(w http.ResponseWriter, r *http.Request) {
	s.clearAuthCookies(w)
	http.Redirect(w, r, s.url("/login"), http.StatusFound)
}

// requestToken returns the bearer token from the Authorization header or the
// auth cookie, in that order.
func (s *Server) requestToken(r *http.Request) string {
	if header := strings.TrimSpace(r.Header.Get("Authorization")); header != "" {
		if token, ok := strings.CutPrefix(header, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
	}
	cookie, err := r.Cookie(s.cfg.AuthCookie)
	if err != nil {
		return ""
	}
	return cookie.Value
}

func encodeUserData(user schema.User) string {
	data, err := json.Marshal(user)
	if err != nil {
		return ""
	}
	return url.PathEscape(string(data))
}

func decodeUserData(value string) (schema.User, error) {
	raw, err := url.PathUnescape(value)
	if err != nil {
		return schema.User{}, err
	}
	var user schema.User
	if err := json.Unmarshal([]byte(raw), &user); err != nil {
		return schema.User{}, err
	}
	return user, nil
}

// safeRedirect keeps redirects on this site.
func safeRedirect(target string) string {
	target = strings.TrimSpace(target)
	if target == "" || !strings.HasPrefix(target, "/") || strings.HasPrefix(target, "//") || strings.Contains(target, "\\") {
		return "/"
	}
	return target
}
