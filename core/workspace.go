package core

import (
	"context"
	"sync"

	"pkt.systems/halolight/internal/persist"
	"pkt.systems/halolight/internal/sessionprefs"
	"pkt.systems/halolight/schema"
	"pkt.systems/pslog"
)

// workspace is one user's tab bar and settings. Its mutex serializes every
// operation on the user, including the snapshot write that follows it.
type workspace struct {
	mu       sync.Mutex
	user     schema.UserID
	tabs     *tabSet
	settings schema.UISettings
	dirty    bool
}

func newWorkspace(user schema.UserID, cfg schema.ServiceConfig) *workspace {
	return &workspace{
		user:     user,
		tabs:     newTabSet(cfg.HomeTitle),
		settings: defaultSettings(cfg.DefaultSkin),
	}
}

// bind points the tab set at the calling session's active tab. A session that
// has not picked a tab yet, or whose tab was closed elsewhere, inherits the
// workspace's last active tab.
func (ws *workspace) bind(ctx context.Context) schema.TabID {
	prefs := sessionprefs.FromContext(ctx)
	if prefs == nil {
		return ws.tabs.active
	}
	if id := prefs.ActiveTab(ws.user); id != "" && ws.tabs.activate(id) {
		return id
	}
	prefs.SetActiveTab(ws.user, ws.tabs.active)
	return ws.tabs.active
}

// commit records the active tab on the calling session and marks the
// workspace for persistence.
func (ws *workspace) commit(ctx context.Context) schema.TabID {
	if prefs := sessionprefs.FromContext(ctx); prefs != nil {
		prefs.SetActiveTab(ws.user, ws.tabs.active)
	}
	ws.dirty = true
	return ws.tabs.active
}

func (ws *workspace) snapshot() persist.UserSnapshot {
	out := persist.UserSnapshot{
		Tabs:   make([]persist.TabSnapshot, len(ws.tabs.tabs)),
		Active: ws.tabs.active,
	}
	for i, t := range ws.tabs.tabs {
		out.Tabs[i] = persist.TabSnapshot{ID: t.ID, Title: t.Title, Path: t.Path, Closable: t.Closable}
	}
	settings := ws.settings
	out.Settings = &settings
	return out
}

// restore replaces the workspace state with a persisted snapshot. Tabs with
// paths that no longer normalize are dropped, and an unknown skin falls back
// to the configured default.
func (ws *workspace) restore(snap persist.UserSnapshot, cfg schema.ServiceConfig) {
	saved := make([]tab, 0, len(snap.Tabs))
	for _, t := range snap.Tabs {
		path, err := schema.NormalizeTabPath(t.Path)
		if err != nil {
			continue
		}
		saved = append(saved, tab{ID: t.ID, Title: t.Title, Path: path, Closable: t.Closable})
	}
	ws.tabs = restoreTabSet(cfg.HomeTitle, saved, snap.Active)
	if snap.Settings == nil {
		return
	}
	settings := *snap.Settings
	skin, ok := schema.NormalizeSkin(string(settings.Skin))
	if !ok {
		skin = cfg.DefaultSkin
	}
	settings.Skin = skin
	ws.settings = settings
}

// workspace returns the cached workspace of userID, loading it from the store
// on first use.
func (s *service) workspace(userID schema.UserID) *workspace {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ws, ok := s.users[userID]; ok {
		return ws
	}
	ws := newWorkspace(userID, s.cfg)
	snap, ok, err := s.store.Load(userID)
	switch {
	case err != nil:
		s.logger.Warn("service state load failed", "user", userID, "err", err)
	case ok:
		ws.restore(snap, s.cfg)
		s.logger.Debug("service state loaded", "user", userID, "tabs", len(ws.tabs.tabs))
	}
	s.users[userID] = ws
	return ws
}

// flush writes a dirty workspace. Failures are logged and the in-memory
// state stays authoritative.
func (s *service) flush(log pslog.Logger, ws *workspace) {
	if !ws.dirty {
		return
	}
	ws.dirty = false
	if err := s.store.Save(ws.user, ws.snapshot()); err != nil {
		log.Warn("service persist failed", "err", err)
		return
	}
	log.Trace("service state persisted", "tabs", len(ws.tabs.tabs))
}
