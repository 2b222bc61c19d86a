package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"

	"pkt.systems/halolight/core"
	"pkt.systems/halolight/internal/auth"
	"pkt.systems/halolight/internal/eventbus"
	"pkt.systems/halolight/internal/logx"
	"pkt.systems/halolight/internal/metrics"
	"pkt.systems/halolight/internal/pagemeta"
	"pkt.systems/halolight/internal/sessionprefs"
	"pkt.systems/halolight/schema"
	"pkt.systems/pslog"
)

// maxBodyBytes bounds JSON and form request bodies.
const maxBodyBytes = 1 << 20

// Deps are the collaborators of the HTTP server. Bus and Metrics are
// optional: without a bus /api/ws is not served, without metrics /metrics is
// not served.
type Deps struct {
	Service core.Service
	Auth    *auth.Service
	Hub     *Hub
	Bus     *eventbus.Bus
	Pages   *pagemeta.Catalog
	Metrics *metrics.Metrics
	Clock   clockwork.Clock
}

// Server serves the JSON API, the HTML shell and the event streams.
type Server struct {
	cfg       Config
	service   core.Service
	auth      *auth.Service
	sessions  *sessionStore
	hub       *Hub
	bus       *eventbus.Bus
	pages     *pagemeta.Catalog
	metrics   *metrics.Metrics
	limiter   *loginLimiter
	clock     clockwork.Clock
	templates map[string]*template.Template
	mount     mount
}

// NewServer constructs an HTTP server.
func NewServer(cfg Config, deps Deps) (*Server, error) {
	if deps.Service == nil || deps.Auth == nil {
		return nil, errors.New("httpapi: service and auth are required")
	}
	cfg = cfg.withDefaults()
	if deps.Clock == nil {
		deps.Clock = clockwork.NewRealClock()
	}
	if deps.Hub == nil {
		deps.Hub = NewHub(cfg.StreamHistory, deps.Clock)
	}
	if deps.Pages == nil {
		deps.Pages = pagemeta.New(pagemeta.Site{})
	}
	s := &Server{
		cfg:      cfg,
		service:  deps.Service,
		auth:     deps.Auth,
		sessions: newSessionStore(time.Duration(cfg.SessionTTLHours)*time.Hour, cfg.SessionStorePath, deps.Clock),
		hub:      deps.Hub,
		bus:      deps.Bus,
		pages:    deps.Pages,
		metrics:  deps.Metrics,
		limiter:  newLoginLimiter(cfg.LoginRatePerMin, cfg.LoginBurst, deps.Clock),
		clock:    deps.Clock,
		mount:    newMount(cfg.BaseURL, cfg.BasePath),
	}
	tmpl, err := parseTemplates(s.url)
	if err != nil {
		return nil, err
	}
	s.templates = tmpl
	return s, nil
}

// Hub returns the SSE hub fed by the server's event sinks.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Handler returns an http.Handler for the server.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /", s.handlePage)
	mux.Handle("GET /assets/", cacheControl(http.StripPrefix("/assets/", http.FileServer(http.FS(assetsFS)))))
	mux.HandleFunc("GET /healthz", s.handleHealth)

	mux.HandleFunc("GET /login", s.handleAuthPage("login"))
	mux.HandleFunc("GET /register", s.handleAuthPage("register"))
	mux.HandleFunc("GET /forgot-password", s.handleAuthPage("forgot-password"))
	mux.HandleFunc("GET /reset-password", s.handleAuthPage("reset-password"))
	mux.HandleFunc("GET /logout", s.handleLogout)

	mux.HandleFunc("POST /api/auth/login", s.limited("login", s.handleLogin))
	mux.HandleFunc("POST /api/auth/logout", s.handleLogout)
	mux.HandleFunc("POST /api/auth/register", s.limited("register", s.handleRegister))
	mux.HandleFunc("POST /api/auth/forgot-password", s.limited("forgot-password", s.handleForgotPassword))
	mux.HandleFunc("POST /api/auth/reset-password", s.limited("reset-password", s.handleResetPassword))
	mux.HandleFunc("GET /api/auth/me", s.requireAuth(s.handleMe))
	mux.HandleFunc("POST /api/auth/password", s.requireAuth(s.handleChangePassword))

	mux.HandleFunc("GET /api/accounts", s.requireAuth(s.handleAccounts))
	mux.HandleFunc("POST /api/accounts/switch", s.requireAuth(s.handleSwitchAccount))
	mux.HandleFunc("DELETE /api/accounts/{id}", s.requireAuth(s.handleRemoveAccount))

	mux.HandleFunc("GET /api/tabs", s.requireAuth(s.handleListTabs))
	mux.HandleFunc("POST /api/tabs", s.requireAuth(s.handleAddTab))
	mux.HandleFunc("GET /api/tabs/lookup", s.requireAuth(s.handleLookupTab))
	mux.HandleFunc("POST /api/tabs/clear", s.requireAuth(s.handleClearTabs))
	mux.HandleFunc("GET /api/tabs/{id}", s.requireAuth(s.handleGetTab))
	mux.HandleFunc("PATCH /api/tabs/{id}", s.requireAuth(s.handleUpdateTab))
	mux.HandleFunc("DELETE /api/tabs/{id}", s.requireAuth(s.handleRemoveTab))
	mux.HandleFunc("POST /api/tabs/{id}/activate", s.requireAuth(s.handleActivateTab))

	mux.HandleFunc("GET /api/settings", s.requireAuth(s.handleGetSettings))
	mux.HandleFunc("PATCH /api/settings", s.requireAuth(s.handleUpdateSettings))
	mux.HandleFunc("POST /api/settings/reset", s.requireAuth(s.handleResetSettings))

	mux.HandleFunc("GET /api/meta", s.handleMeta)
	mux.HandleFunc("GET /api/nav", s.handleNav)
	mux.HandleFunc("GET /api/stream", s.requireAuth(s.handleStream))
	if s.bus != nil {
		mux.HandleFunc("GET /api/ws", s.requireAuth(s.handleWebSocket))
	}
	if s.metrics != nil && s.cfg.EnableMetrics {
		mux.Handle("GET /metrics", s.metrics.Handler())
	}

	var handler http.Handler = mux
	if s.metrics != nil {
		handler = s.metrics.Middleware(handler)
	}
	handler = s.logRequests(handler, s.lookupSession)
	return s.mount.wrap(handler)
}

// url prefixes a site-local path with the base path.
func (s *Server) url(path string) string {
	return s.mount.url(path)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// authedHandler receives the resolved user and the token it was resolved from.
type authedHandler func(http.ResponseWriter, *http.Request, schema.User, string)

// requireAuth resolves the request token and responds 401 Unauthorized when
// it is missing or unknown.
func (s *Server) requireAuth(next authedHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log := logx.Ctx(r.Context()).With("remote", s.clientIP(r))
		token := s.requestToken(r)
		user, err := s.auth.Resolve(token)
		if err != nil {
			if token != "" {
				log.Warn("http token rejected", "err", err)
			}
			writeError(w, http.StatusUnauthorized, schema.ErrUnauthorized)
			return
		}
		r = s.withSession(w, r, log, user)
		next(w, r, user, token)
	}
}

// withSession binds the browser session, its active-tab prefs and a user
// scoped logger to the request context.
func (s *Server) withSession(w http.ResponseWriter, r *http.Request, log pslog.Logger, user schema.User) *http.Request {
	_, sess := s.ensureSession(w, r)
	log = logx.WithAccount(log, user).With("http_session", sess.id)
	ctx := logx.ContextWithUserLogger(r.Context(), log, user.ID)
	ctx = sessionprefs.WithContext(ctx, sess.prefs)
	ctx = withSessionContext(ctx, sess)
	return r.WithContext(ctx)
}

// ensureSession returns the caller's browser session, creating one and
// setting its cookie when missing or expired.
func (s *Server) ensureSession(w http.ResponseWriter, r *http.Request) (string, session) {
	if token := s.sessionToken(r); token != "" {
		if entry, ok := s.sessions.get(token); ok {
			return token, entry
		}
	}
	token, entry := s.sessions.create()
	http.SetCookie(w, &http.Cookie{
		Name:     s.cfg.SessionCookie,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.cfg.SecureCookies,
		SameSite: http.SameSiteLaxMode,
		Expires:  entry.expiresAt,
	})
	return token, entry
}

// limited applies the per-client login limiter.
func (s *Server) limited(route string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.allow(s.clientIP(r)) {
			logx.Ctx(r.Context()).Warn("http rate limited", "route", route, "remote", s.clientIP(r))
			if s.metrics != nil {
				s.metrics.ObserveRateLimited(route)
			}
			w.Header().Set("Retry-After", "60")
			s.fail(w, r, route, errTooManyRequests)
			return
		}
		next(w, r)
	}
}

type sessionContextKey struct{}

func withSessionContext(ctx context.Context, sess session) context.Context {
	if ctx == nil {
		return ctx
	}
	return context.WithValue(ctx, sessionContextKey{}, sess)
}

func sessionFromContext(ctx context.Context) (session, bool) {
	if ctx == nil {
		return session{}, false
	}
	sess, ok := ctx.Value(sessionContextKey{}).(session)
	return sess, ok
}

func (s *Server) sessionToken(r *http.Request) string {
	cookie, err := r.Cookie(s.cfg.SessionCookie)
	if err != nil {
		return ""
	}
	return cookie.Value
}

func (s *Server) lookupSession(r *http.Request) (schema.UserID, string) {
	if s == nil || r == nil {
		return "", ""
	}
	var userID schema.UserID
	if user, err := s.auth.Resolve(s.requestToken(r)); err == nil {
		userID = user.ID
	}
	token := s.sessionToken(r)
	if token == "" {
		return userID, ""
	}
	entry, ok := s.sessions.get(token)
	if !ok {
		return userID, ""
	}
	return userID, entry.id
}

// wantsJSON reports whether the request came from a script rather than an
// HTML form.
func wantsJSON(r *http.Request) bool {
	if mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type")); err == nil && mediaType == "application/json" {
		return true
	}
	return strings.Contains(r.Header.Get("Accept"), "application/json")
}

// decodeRequest fills target from a JSON body or, for HTML forms, from the
// form values via their json field names.
func decodeRequest(w http.ResponseWriter, r *http.Request, target any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "application/x-www-form-urlencoded":
		if err := r.ParseForm(); err != nil {
			return fmt.Errorf("%w: %v", schema.ErrInvalidRequest, err)
		}
		values := make(map[string]string, len(r.PostForm))
		for key := range r.PostForm {
			values[key] = r.PostForm.Get(key)
		}
		data, err := json.Marshal(values)
		if err != nil {
			return err
		}
		if err := json.Unmarshal(data, target); err != nil {
			return fmt.Errorf("%w: %v", schema.ErrInvalidRequest, err)
		}
		return nil
	default:
		return decodeJSON(r.Body, target)
	}
}

// flag is a bool that also accepts the string forms an HTML checkbox posts.
type flag bool

func (f *flag) UnmarshalJSON(data []byte) error {
	var value bool
	if err := json.Unmarshal(data, &value); err == nil {
		*f = flag(value)
		return nil
	}
	var text string
	if err := json.Unmarshal(data, &text); err != nil {
		return err
	}
	switch strings.ToLower(strings.TrimSpace(text)) {
	case "on", "true", "1", "yes":
		*f = true
	default:
		*f = false
	}
	return nil
}

func decodeJSON(body io.Reader, target any) error {
	decoder := json.NewDecoder(body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(target); err != nil {
		return fmt.Errorf("%w: %v", schema.ErrInvalidRequest, err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	data, _ := json.Marshal(payload)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]any{"error": err.Error()})
}

// writeServiceError maps a service error to its status code.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	log := logx.Ctx(r.Context())
	if status >= http.StatusInternalServerError {
		log.Error("http request failed", "err", err)
	} else {
		log.Debug("http request rejected", "status", status, "err", err)
	}
	writeError(w, status, err)
}

func writeSSEvent(w http.ResponseWriter, event StreamEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	if event.Seq > 0 {
		_, _ = fmt.Fprintf(w, "id: %d\n", event.Seq)
	}
	_, err = fmt.Fprintf(w, "data: %s\n\n", data)
	return err
}

func parseUint(value string) uint64 {
	if value == "" {
		return 0
	}
	parsed, err := strconv.ParseUint(value, 10, 64)
	if err != nil {
		return 0
	}
	return parsed
}
