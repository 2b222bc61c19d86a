package httpapi

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"pkt.systems/halolight/internal/accounts"
	"pkt.systems/halolight/internal/logx"
	"pkt.systems/halolight/internal/persist"
	"pkt.systems/halolight/internal/sessionprefs"
	"pkt.systems/halolight/schema"
)

const sessionFileVersion = 3

// session is one browser: its signed-in accounts and the tab each of them
// last had open.
type session struct {
	id        string
	expiresAt time.Time
	prefs     *sessionprefs.Prefs
	book      *accounts.Book
}

// sessionStore maps session cookies to sessions. Only a SHA-256 digest of
// each cookie is kept, in memory and on disk.
type sessionStore struct {
	ttl   time.Duration
	clock clockwork.Clock
	path  string

	mu    sync.Mutex
	items map[string]session

	// saveMu orders file writes; a snapshot is taken and written under it.
	saveMu sync.Mutex
}

type sessionRecord struct {
	Digest     string                         `json:"digest"`
	SessionID  string                         `json:"session_id"`
	ExpiresAt  time.Time                      `json:"expires_at"`
	ActiveTabs map[schema.UserID]schema.TabID `json:"active_tabs,omitempty"`
	Accounts   accounts.Snapshot              `json:"accounts"`
}

type sessionFile struct {
	Version  int             `json:"version"`
	Sessions []sessionRecord `json:"sessions"`
}

func newSessionStore(ttl time.Duration, path string, clock clockwork.Clock) *sessionStore {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	store := &sessionStore{
		ttl:   ttl,
		clock: clock,
		path:  strings.TrimSpace(path),
		items: make(map[string]session),
	}
	if err := store.load(); err != nil {
		logx.Ctx(context.Background()).Warn("session store load failed", "err", err)
	}
	return store
}

// create starts a session and returns its cookie value.
func (s *sessionStore) create() (string, session) {
	token := randomToken(32)
	entry := session{
		id:        uuid.NewString(),
		expiresAt: s.clock.Now().Add(s.ttl),
		prefs:     sessionprefs.New(),
		book:      accounts.New(),
	}
	s.mu.Lock()
	s.items[digest(token)] = entry
	swept := s.sweepLocked()
	s.mu.Unlock()
	s.persist()
	logx.Ctx(context.Background()).With("http_session", entry.id).Info("session created", "expires", entry.expiresAt.Format(time.RFC3339), "swept", swept)
	return token, entry
}

func (s *sessionStore) get(token string) (session, bool) {
	if token == "" {
		return session{}, false
	}
	key := digest(token)
	s.mu.Lock()
	entry, ok := s.items[key]
	expired := ok && s.clock.Now().After(entry.expiresAt)
	if expired {
		delete(s.items, key)
	}
	s.mu.Unlock()
	if expired {
		logx.Ctx(context.Background()).With("http_session", entry.id).Info("session expired")
		s.persist()
		return session{}, false
	}
	return entry, ok
}

func (s *sessionStore) delete(token string) {
	key := digest(token)
	s.mu.Lock()
	entry, ok := s.items[key]
	delete(s.items, key)
	s.mu.Unlock()
	if ok {
		logx.Ctx(context.Background()).With("http_session", entry.id).Info("session deleted")
		s.persist()
	}
}

// sweepLocked drops expired sessions and returns how many went.
func (s *sessionStore) sweepLocked() int {
	now := s.clock.Now()
	swept := 0
	for key, entry := range s.items {
		if now.After(entry.expiresAt) {
			delete(s.items, key)
			swept++
		}
	}
	return swept
}

func (s *sessionStore) load() error {
	if s.path == "" {
		return nil
	}
	var file sessionFile
	ok, err := persist.ReadJSON(s.path, &file)
	if err != nil || !ok {
		return err
	}
	now := s.clock.Now()
	items := make(map[string]session, len(file.Sessions))
	for _, record := range file.Sessions {
		// Files before version 3 stored raw cookies; those sessions cannot be
		// matched any more and are dropped.
		if file.Version < sessionFileVersion || record.Digest == "" || now.After(record.ExpiresAt) {
			continue
		}
		items[record.Digest] = session{
			id:        record.SessionID,
			expiresAt: record.ExpiresAt,
			prefs:     sessionprefs.Restore(record.ActiveTabs),
			book:      accounts.Restore(record.Accounts),
		}
	}
	s.mu.Lock()
	s.items = items
	s.mu.Unlock()
	if len(items) != len(file.Sessions) {
		s.persist()
	}
	logx.Ctx(context.Background()).Info("session store loaded", "sessions", len(items), "dropped", len(file.Sessions)-len(items))
	return nil
}

// persist writes every session, including the account books and active tabs
// mutated since the last write.
func (s *sessionStore) persist() {
	if s.path == "" {
		return
	}
	s.saveMu.Lock()
	defer s.saveMu.Unlock()
	s.mu.Lock()
	file := sessionFile{Version: sessionFileVersion, Sessions: make([]sessionRecord, 0, len(s.items))}
	for key, entry := range s.items {
		file.Sessions = append(file.Sessions, sessionRecord{
			Digest:     key,
			SessionID:  entry.id,
			ExpiresAt:  entry.expiresAt,
			ActiveTabs: entry.prefs.Snapshot(),
			Accounts:   entry.book.Snapshot(),
		})
	}
	s.mu.Unlock()
	if err := persist.WriteJSON(s.path, file); err != nil {
		logx.Ctx(context.Background()).Warn("session store save failed", "err", err)
	}
}

func digest(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func randomToken(size int) string {
	buf := make([]byte, size)
	if _, err := rand.Read(buf); err != nil {
		return ""
	}
	return base64.RawURLEncoding.EncodeToString(buf)
}
