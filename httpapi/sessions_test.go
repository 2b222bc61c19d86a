package httpapi

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"pkt.systems/halolight/schema"
)

func TestSessionStoreCreateGetDelete(t *testing.T) {
	store := newSessionStore(time.Hour, "", nil)
	token, sess := store.create()
	if token == "" {
		t.Fatalf("expected token")
	}
	if sess.prefs == nil || sess.book == nil {
		t.Fatalf("expected session prefs and account book")
	}
	if _, ok := store.get(token); !ok {
		t.Fatalf("expected session to be found")
	}
	store.delete(token)
	if _, ok := store.get(token); ok {
		t.Fatalf("expected session to be deleted")
	}
}

func TestSessionStoreExpiration(t *testing.T) {
	clock := clockwork.NewFakeClock()
	store := newSessionStore(time.Minute, "", clock)
	token, _ := store.create()
	clock.Advance(2 * time.Minute)
	if _, ok := store.get(token); ok {
		t.Fatalf("expected expired session")
	}
}

func TestSessionStorePersistsAccountsAndActiveTab(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sessions.json")
	store := newSessionStore(time.Hour, path, nil)
	token, sess := store.create()
	if err := sess.book.Add(schema.Account{User: schema.User{ID: "1", Name: "管理员"}, Token: "mock-token-1-1"}); err != nil {
		t.Fatalf("add account: %v", err)
	}
	sess.prefs.SetActiveTab("1", "tab-x")
	store.persist()

	loaded := newSessionStore(time.Hour, path, nil)
	got, ok := loaded.get(token)
	if !ok {
		t.Fatalf("expected session to be loaded")
	}
	if got.id != sess.id {
		t.Fatalf("expected session id %q, got %q", sess.id, got.id)
	}
	active, ok := got.book.Active()
	if !ok || active.Token != "mock-token-1-1" {
		t.Fatalf("expected restored account, got %+v", active)
	}
	if got.prefs.ActiveTab("1") != "tab-x" {
		t.Fatalf("expected restored active tab, got %q", got.prefs.ActiveTab("1"))
	}
}

func TestSessionStorePersistsExpiration(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sessions.json")
	clock := clockwork.NewFakeClock()
	store := newSessionStore(time.Minute, path, clock)
	token, _ := store.create()
	clock.Advance(2 * time.Minute)
	if _, ok := store.get(token); ok {
		t.Fatalf("expected session to expire")
	}
	loaded := newSessionStore(time.Hour, path, clock)
	if _, ok := loaded.get(token); ok {
		t.Fatalf("expected expired session to be removed from persistence")
	}
}

func TestSessionStoreKeepsOnlyDigests(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sessions.json")
	store := newSessionStore(time.Hour, path, nil)
	token, _ := store.create()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read session file: %v", err)
	}
	if strings.Contains(string(data), token) {
		t.Fatal("session cookie written to disk")
	}
	if !strings.Contains(string(data), digest(token)) {
		t.Fatalf("expected cookie digest in session file:\n%s", data)
	}
}

func TestSessionStoreDropsLegacyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sessions.json")
	legacy := `{"version":2,"sessions":[{"token":"abc","session_id":"s1","expires_at":"2999-01-01T00:00:00Z","accounts":{}}]}`
	if err := os.WriteFile(path, []byte(legacy), 0o600); err != nil {
		t.Fatalf("write legacy file: %v", err)
	}
	store := newSessionStore(time.Hour, path, nil)
	if _, ok := store.get("abc"); ok {
		t.Fatal("expected legacy session to be dropped")
	}
}

func TestSessionStoreConcurrentCreatesAllPersist(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sessions.json")
	store := newSessionStore(time.Hour, path, nil)
	const n = 16
	tokens := make([]string, n)
	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tokens[i], _ = store.create()
		}()
	}
	wg.Wait()

	loaded := newSessionStore(time.Hour, path, nil)
	for i, token := range tokens {
		if _, ok := loaded.get(token); !ok {
			t.Fatalf("session %d missing from the last write", i)
		}
	}
}
