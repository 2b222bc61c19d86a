package httpapi

import (
	"net"
	"net/http"
	"net/url"
	"strings"

	"pkt.systems/halolight/schema"
	"pkt.systems/pslog"
)

// sensitiveParams are redacted from logged query strings.
var sensitiveParams = []string{"token", "password"}

// statusWriter records the status and size of a response.
type statusWriter struct {
	http.ResponseWriter
	status int
	bytes  int64
}

func (w *statusWriter) WriteHeader(status int) {
	if w.status == 0 {
		w.status = status
	}
	w.ResponseWriter.WriteHeader(status)
}

func (w *statusWriter) Write(p []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	n, err := w.ResponseWriter.Write(p)
	w.bytes += int64(n)
	return n, err
}

func (w *statusWriter) Flush() {
	_ = http.NewResponseController(w.ResponseWriter).Flush()
}

// Unwrap lets http.ResponseController and the websocket upgrader reach the
// underlying connection.
func (w *statusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

type sessionLookupFunc func(*http.Request) (userID schema.UserID, sessionID string)

// logRequests binds a request logger (remote, user, session) to the context
// and writes one line per request. Server errors log at warn.
func (s *Server) logRequests(next http.Handler, lookup sessionLookupFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := s.clock.Now()
		kv := []any{"remote", s.clientIP(r)}
		if lookup != nil {
			if userID, sessionID := lookup(r); userID != "" || sessionID != "" {
				if userID != "" {
					kv = append(kv, "user", userID)
				}
				if sessionID != "" {
					kv = append(kv, "http_session", sessionID)
				}
			}
		}
		logger := pslog.Ctx(r.Context()).With(kv...)
		sw := &statusWriter{ResponseWriter: w}
		next.ServeHTTP(sw, r.WithContext(pslog.ContextWithLogger(r.Context(), logger)))

		status := sw.status
		if status == 0 {
			status = http.StatusOK
		}
		fields := []any{
			"method", r.Method,
			"path", loggedPath(r.URL),
			"status", status,
			"bytes", sw.bytes,
			"duration_ms", s.clock.Since(start).Milliseconds(),
		}
		if status >= http.StatusInternalServerError {
			logger.Warn("http request", fields...)
		} else {
			logger.Info("http request", fields...)
		}
		logger.Debug("http request details", "ua", r.UserAgent())
	})
}

// loggedPath is the request path plus its query with secrets masked.
func loggedPath(u *url.URL) string {
	if u.RawQuery == "" {
		return u.Path
	}
	query, err := url.ParseQuery(u.RawQuery)
	if err != nil {
		return u.Path
	}
	for _, key := range sensitiveParams {
		if query.Has(key) {
			query.Set(key, "REDACTED")
		}
	}
	return u.Path + "?" + query.Encode()
}

// clientIP keys logging and login rate limiting. X-Forwarded-For counts
// only with TrustProxy set.
func (s *Server) clientIP(r *http.Request) string {
	if r == nil {
		return ""
	}
	if s.cfg.TrustProxy {
		if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
			first, _, _ := strings.Cut(forwarded, ",")
			if first = strings.TrimSpace(first); first != "" {
				return first
			}
		}
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
