// Package sessionprefs carries per-browser state through request contexts.
// A browser session can hold several signed-in accounts, so its active tab is
// remembered per user: switching accounts and back lands on the tab that was
// open before, and two windows of one user can look at different tabs.
package sessionprefs

import (
	"context"
	"maps"
	"sync"

	"pkt.systems/halolight/schema"
)

// Prefs is safe for concurrent use.
type Prefs struct {
	mu     sync.Mutex
	active map[schema.UserID]schema.TabID
}

type prefsKey struct{}

// New returns empty prefs.
func New() *Prefs {
	return &Prefs{active: make(map[schema.UserID]schema.TabID)}
}

// Restore returns prefs seeded from a Snapshot.
func Restore(active map[schema.UserID]schema.TabID) *Prefs {
	p := New()
	for user, tab := range active {
		if user != "" && tab != "" {
			p.active[user] = tab
		}
	}
	return p
}

// ActiveTab returns the tab this session last activated for user, or "".
func (p *Prefs) ActiveTab(user schema.UserID) schema.TabID {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.active[user]
}

// SetActiveTab records the active tab for user. An empty id forgets it.
func (p *Prefs) SetActiveTab(user schema.UserID, id schema.TabID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if id == "" {
		delete(p.active, user)
		return
	}
	p.active[user] = id
}

// Forget drops everything remembered for user, e.g. when the account is
// signed out of this session.
func (p *Prefs) Forget(user schema.UserID) {
	p.SetActiveTab(user, "")
}

// Reset forgets every user, as on logout.
func (p *Prefs) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	clear(p.active)
}

// Snapshot copies the per-user active tabs for persistence.
func (p *Prefs) Snapshot() map[schema.UserID]schema.TabID {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.active) == 0 {
		return nil
	}
	return maps.Clone(p.active)
}

// WithContext stores prefs in the context.
func WithContext(ctx context.Context, prefs *Prefs) context.Context {
	if ctx == nil || prefs == nil {
		return ctx
	}
	return context.WithValue(ctx, prefsKey{}, prefs)
}

// FromContext returns the prefs stored in the context, if any.
func FromContext(ctx context.Context) *Prefs {
	if ctx == nil {
		return nil
	}
	prefs, _ := ctx.Value(prefsKey{}).(*Prefs)
	return prefs
}
