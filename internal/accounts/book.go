// Package accounts keeps the signed-in accounts of one browser session so the
// user can hop between them without logging in again.
package accounts

import (
	"slices"
	"sync"

	"pkt.systems/halolight/schema"
)

// Book is the set of accounts a browser session has signed in with, plus the
// one currently in use.
type Book struct {
	mu       sync.Mutex
	accounts []schema.Account
	activeID schema.UserID
}

// Snapshot is the persisted form of a Book.
type Snapshot struct {
	Accounts []schema.Account `json:"accounts"`
	ActiveID schema.UserID    `json:"active_id,omitempty"`
}

// New returns an empty book.
func New() *Book {
	return &Book{}
}

// Restore rebuilds a book from a snapshot. An active id that no longer names
// an account falls back to the first one.
func Restore(snap Snapshot) *Book {
	b := &Book{}
	for _, acc := range snap.Accounts {
		if acc.User.ID == "" || acc.Token == "" {
			continue
		}
		b.putLocked(acc)
	}
	b.activeID = snap.ActiveID
	if b.indexLocked(b.activeID) < 0 {
		b.activeID = b.firstIDLocked()
	}
	return b
}

// Add stores the account, replacing an earlier one for the same user, and
// makes it active.
func (b *Book) Add(acc schema.Account) error {
	if acc.User.ID == "" || acc.Token == "" {
		return schema.ErrInvalidUser
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.putLocked(acc)
	b.activeID = acc.User.ID
	return nil
}

// Switch makes id the active account.
func (b *Book) Switch(id schema.UserID) (schema.Account, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	idx := b.indexLocked(id)
	if idx < 0 {
		return schema.Account{}, schema.ErrAccountNotFound
	}
	b.activeID = id
	return b.accounts[idx], nil
}

// Remove drops id. When it was active the first remaining account becomes
// active; the returned bool is false once the book is empty.
func (b *Book) Remove(id schema.UserID) (schema.Account, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	idx := b.indexLocked(id)
	if idx < 0 {
		return schema.Account{}, false, schema.ErrAccountNotFound
	}
	b.accounts = slices.Delete(b.accounts, idx, idx+1)
	if b.activeID == id {
		b.activeID = b.firstIDLocked()
	}
	active, ok := b.activeLocked()
	return active, ok, nil
}

// Active returns the account in use.
func (b *Book) Active() (schema.Account, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.activeLocked()
}

// List returns the accounts in the order they were first added.
func (b *Book) List() []schema.Account {
	b.mu.Lock()
	defer b.mu.Unlock()
	return slices.Clone(b.accounts)
}

// Load replaces the account list with a freshly resolved one and picks the
// active account: the previously active id, then the account holding token,
// then current. No match leaves the book signed out.
func (b *Book) Load(accounts []schema.Account, token string, current *schema.Account) (schema.Account, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	previous := b.activeID
	b.accounts = nil
	for _, acc := range accounts {
		if acc.User.ID == "" || acc.Token == "" {
			continue
		}
		b.putLocked(acc)
	}
	b.activeID = ""
	switch {
	case previous != "" && b.indexLocked(previous) >= 0:
		b.activeID = previous
	case token != "" && b.indexByTokenLocked(token) >= 0:
		b.activeID = b.accounts[b.indexByTokenLocked(token)].User.ID
	case current != nil && current.User.ID != "" && current.Token != "":
		b.putLocked(*current)
		b.activeID = current.User.ID
	}
	return b.activeLocked()
}

// Clear signs every account out.
func (b *Book) Clear() {
	b.mu.Lock()
	b.accounts = nil
	b.activeID = ""
	b.mu.Unlock()
}

// Snapshot returns the persisted form of the book.
func (b *Book) Snapshot() Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	return Snapshot{Accounts: slices.Clone(b.accounts), ActiveID: b.activeID}
}

func (b *Book) putLocked(acc schema.Account) {
	if idx := b.indexLocked(acc.User.ID); idx >= 0 {
		b.accounts[idx] = acc
		return
	}
	b.accounts = append(b.accounts, acc)
}

func (b *Book) activeLocked() (schema.Account, bool) {
	idx := b.indexLocked(b.activeID)
	if idx < 0 {
		return schema.Account{}, false
	}
	return b.accounts[idx], true
}

func (b *Book) indexLocked(id schema.UserID) int {
	if id == "" {
		return -1
	}
	return slices.IndexFunc(b.accounts, func(acc schema.Account) bool { return acc.User.ID == id })
}

func (b *Book) indexByTokenLocked(token string) int {
	return slices.IndexFunc(b.accounts, func(acc schema.Account) bool { return acc.Token == token })
}

func (b *Book) firstIDLocked() schema.UserID {
	if len(b.accounts) == 0 {
		return ""
	}
	return b.accounts[0].User.ID
}
