package accounts

import (
	"errors"
	"testing"

	"pkt.systems/halolight/schema"
)

func account(id, token string) schema.Account {
	return schema.Account{User: schema.User{ID: schema.UserID(id), Name: "user " + id}, Token: token}
}

func TestBookAddReplacesSameUser(t *testing.T) {
	book := New()
	if err := book.Add(account("1", "t1")); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := book.Add(account("2", "t2")); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := book.Add(account("1", "t1b")); err != nil {
		t.Fatalf("add: %v", err)
	}
	list := book.List()
	if len(list) != 2 {
		t.Fatalf("expected 2 accounts, got %d", len(list))
	}
	if list[0].Token != "t1b" {
		t.Fatalf("expected replaced token, got %q", list[0].Token)
	}
	active, ok := book.Active()
	if !ok || active.User.ID != "1" {
		t.Fatalf("expected account 1 active, got %+v", active)
	}
	if err := book.Add(schema.Account{User: schema.User{ID: "3"}}); !errors.Is(err, schema.ErrInvalidUser) {
		t.Fatalf("expected tokenless account to be rejected, got %v", err)
	}
}

func TestBookSwitch(t *testing.T) {
	book := New()
	_ = book.Add(account("1", "t1"))
	_ = book.Add(account("2", "t2"))
	acc, err := book.Switch("1")
	if err != nil {
		t.Fatalf("switch: %v", err)
	}
	if acc.Token != "t1" {
		t.Fatalf("unexpected account %+v", acc)
	}
	if _, err := book.Switch("9"); !errors.Is(err, schema.ErrAccountNotFound) {
		t.Fatalf("expected 账号不存在, got %v", err)
	}
	if active, _ := book.Active(); active.User.ID != "1" {
		t.Fatalf("failed switch must keep active account, got %q", active.User.ID)
	}
}

func TestBookRemoveFallsBackToFirst(t *testing.T) {
	book := New()
	_ = book.Add(account("1", "t1"))
	_ = book.Add(account("2", "t2"))
	_ = book.Add(account("3", "t3"))
	active, ok, err := book.Remove("3")
	if err != nil {
		t.Fatalf("remove: %v", err)
	}
	if !ok || active.User.ID != "1" {
		t.Fatalf("expected fallback to first account, got %+v", active)
	}
	active, ok, err = book.Remove("2")
	if err != nil || !ok || active.User.ID != "1" {
		t.Fatalf("removing inactive account changed active: %+v %v %v", active, ok, err)
	}
	if _, ok, _ := book.Remove("1"); ok {
		t.Fatalf("expected empty book after last removal")
	}
	if _, _, err := book.Remove("1"); !errors.Is(err, schema.ErrAccountNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestBookLoadResolutionOrder(t *testing.T) {
	accounts := []schema.Account{account("1", "t1"), account("2", "t2")}

	book := New()
	_ = book.Add(account("2", "old"))
	active, ok := book.Load(accounts, "t1", nil)
	if !ok || active.User.ID != "2" {
		t.Fatalf("expected previous active id to win, got %+v", active)
	}

	book = New()
	active, ok = book.Load(accounts, "t1", nil)
	if !ok || active.User.ID != "1" {
		t.Fatalf("expected token match, got %+v", active)
	}

	current := account("7", "t7")
	book = New()
	active, ok = book.Load(accounts, "missing", &current)
	if !ok || active.User.ID != "7" {
		t.Fatalf("expected current user fallback, got %+v", active)
	}
	if len(book.List()) != 3 {
		t.Fatalf("expected current user to join the book")
	}

	book = New()
	if _, ok := book.Load(accounts, "", nil); ok {
		t.Fatalf("expected signed out book")
	}
}

func TestBookSnapshotRestore(t *testing.T) {
	book := New()
	_ = book.Add(account("1", "t1"))
	_ = book.Add(account("2", "t2"))
	restored := Restore(book.Snapshot())
	active, ok := restored.Active()
	if !ok || active.User.ID != "2" {
		t.Fatalf("expected account 2 active after restore, got %+v", active)
	}
	stale := Restore(Snapshot{Accounts: []schema.Account{account("1", "t1")}, ActiveID: "5"})
	if active, _ := stale.Active(); active.User.ID != "1" {
		t.Fatalf("expected stale active id to fall back, got %q", active.User.ID)
	}
	book.Clear()
	if len(book.List()) != 0 {
		t.Fatalf("expected cleared book")
	}
}
