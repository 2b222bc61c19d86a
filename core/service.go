package core

import (
	"context"
	"errors"
	"strings"
	"sync"

	"pkt.systems/halolight/internal/logx"
	"pkt.systems/halolight/internal/persist"
	"pkt.systems/halolight/schema"
	"pkt.systems/pslog"
)

// EventSink receives tab and settings events from the core service.
type EventSink interface {
	OnTabEvent(event schema.TabEvent)
	OnSettingsEvent(event schema.SettingsEvent)
}

// ServiceDeps captures optional dependencies for the core service.
type ServiceDeps struct {
	EventSink EventSink
	Logger    pslog.Logger
}

type service struct {
	cfg    schema.ServiceConfig
	sink   EventSink
	store  *persist.Store
	logger pslog.Logger

	mu    sync.Mutex
	users map[schema.UserID]*workspace
}

// NewService builds the tab and settings service. Workspaces persist under
// StateDir, which defaults to ~/.halolight/state.
func NewService(cfg schema.ServiceConfig, deps ServiceDeps) (Service, error) {
	cfg, err := schema.NormalizeServiceConfig(cfg)
	if err != nil {
		return nil, err
	}
	s := &service{
		cfg:    cfg,
		sink:   deps.EventSink,
		logger: deps.Logger,
		users:  make(map[schema.UserID]*workspace),
	}
	if s.logger == nil {
		s.logger = pslog.Ctx(context.Background())
	}
	if s.store, err = persist.NewStoreWithLogger(cfg.StateDir, deps.Logger); err != nil {
		return nil, err
	}
	return s, nil
}

// withWorkspace runs fn with the workspace of userID locked and bound to the
// caller's session. State changes flagged by fn are persisted before the lock
// is released; events fn queues are emitted after that.
func (s *service) withWorkspace(ctx context.Context, userID schema.UserID, fn func(ws *workspace, out *outbox) error) error {
	if err := schema.ValidateUserID(userID); err != nil {
		return schema.ErrInvalidUser
	}
	ws := s.workspace(userID)
	var out outbox
	ws.mu.Lock()
	err := fn(ws, &out)
	if err == nil {
		s.flush(logx.WithUser(ctx, userID), ws)
	}
	ws.mu.Unlock()
	if err == nil {
		out.deliver(s.sink, userID)
	}
	return err
}

// outbox collects events raised under a workspace lock.
type outbox struct {
	tabs     []schema.TabEvent
	settings *schema.UISettings
}

func (o *outbox) tab(kind schema.TabEventType, t schema.TabSnapshot, active schema.TabID) {
	o.tabs = append(o.tabs, schema.TabEvent{Type: kind, Tab: t, ActiveTab: active})
}

func (o *outbox) deliver(sink EventSink, userID schema.UserID) {
	if sink == nil {
		return
	}
	for _, event := range o.tabs {
		event.UserID = userID
		sink.OnTabEvent(event)
	}
	if o.settings != nil {
		sink.OnSettingsEvent(schema.SettingsEvent{UserID: userID, Settings: *o.settings})
	}
}

func (s *service) ListTabs(ctx context.Context, req schema.ListTabsRequest) (resp schema.ListTabsResponse, err error) {
	err = s.withWorkspace(ctx, req.UserID, func(ws *workspace, _ *outbox) error {
		resp.ActiveTab = ws.bind(ctx)
		resp.Tabs = ws.tabs.snapshots()
		return nil
	})
	if err == nil {
		logx.WithUser(ctx, req.UserID).Trace("service tabs listed", "count", len(resp.Tabs), "active", resp.ActiveTab)
	}
	return resp, err
}

func (s *service) AddTab(ctx context.Context, req schema.AddTabRequest) (resp schema.AddTabResponse, err error) {
	if ctx == nil {
		return resp, errors.New("missing context")
	}
	path, err := schema.NormalizeTabPath(req.Path)
	if err != nil {
		return resp, err
	}
	title := strings.TrimSpace(req.Title)
	if title == "" {
		title = path
	}
	closable := req.Closable == nil || *req.Closable
	log := logx.WithPath(logx.WithUser(ctx, req.UserID), path)

	var evicted []tab
	err = s.withWorkspace(ctx, req.UserID, func(ws *workspace, out *outbox) error {
		ws.bind(ctx)
		id, created := ws.tabs.add(tab{ID: newTabID(), Title: title, Path: path, Closable: closable})
		if created {
			evicted = ws.tabs.evictOverflow(s.cfg.MaxTabs, id)
		}
		active := ws.commit(ctx)
		for _, closed := range evicted {
			out.tab(schema.TabEventClosed, closed.Snapshot(false), active)
		}
		added, _ := ws.tabs.get(id)
		resp = schema.AddTabResponse{Tab: added.Snapshot(true), Created: created}
		kind := schema.TabEventActivated
		if created {
			kind = schema.TabEventCreated
		}
		out.tab(kind, resp.Tab, active)
		return nil
	})
	if err != nil {
		return schema.AddTabResponse{}, err
	}
	for _, closed := range evicted {
		log.Debug("service tab evicted", "tab", closed.ID, "limit", s.cfg.MaxTabs)
	}
	if resp.Created {
		log.Info("service tab added", "tab", resp.Tab.ID, "title", title)
	} else {
		log.Debug("service tab reused", "tab", resp.Tab.ID)
	}
	return resp, nil
}

func (s *service) RemoveTab(ctx context.Context, req schema.RemoveTabRequest) (resp schema.RemoveTabResponse, err error) {
	log := logx.WithUserTab(ctx, req.UserID, req.TabID)
	err = s.withWorkspace(ctx, req.UserID, func(ws *workspace, out *outbox) error {
		ws.bind(ctx)
		removed, err := ws.tabs.remove(req.TabID)
		if err != nil {
			return err
		}
		resp = schema.RemoveTabResponse{Tab: removed.Snapshot(false), ActiveTab: ws.commit(ctx)}
		out.tab(schema.TabEventClosed, resp.Tab, resp.ActiveTab)
		return nil
	})
	if err != nil {
		log.Warn("service tab close failed", "err", err)
		return schema.RemoveTabResponse{}, err
	}
	log.Info("service tab closed", "active", resp.ActiveTab)
	return resp, nil
}

func (s *service) ActivateTab(ctx context.Context, req schema.ActivateTabRequest) (resp schema.ActivateTabResponse, err error) {
	log := logx.WithUserTab(ctx, req.UserID, req.TabID)
	err = s.withWorkspace(ctx, req.UserID, func(ws *workspace, out *outbox) error {
		resp.ActiveTab = ws.bind(ctx)
		if !ws.tabs.activate(req.TabID) {
			return nil
		}
		resp = schema.ActivateTabResponse{ActiveTab: ws.commit(ctx), Changed: true}
		activated, _ := ws.tabs.get(resp.ActiveTab)
		out.tab(schema.TabEventActivated, activated.Snapshot(true), resp.ActiveTab)
		return nil
	})
	switch {
	case err != nil:
	case resp.Changed:
		log.Info("service tab activated")
	default:
		log.Debug("service tab activate ignored", "reason", "unknown tab")
	}
	return resp, err
}

func (s *service) UpdateTab(ctx context.Context, req schema.UpdateTabRequest) (resp schema.UpdateTabResponse, err error) {
	patch := req.Patch
	if patch.Path != nil {
		path, err := schema.NormalizeTabPath(*patch.Path)
		if err != nil {
			return resp, err
		}
		patch.Path = &path
	}
	log := logx.WithUserTab(ctx, req.UserID, req.TabID)
	err = s.withWorkspace(ctx, req.UserID, func(ws *workspace, out *outbox) error {
		active := ws.bind(ctx)
		updated, found, err := ws.tabs.update(req.TabID, patch)
		if err != nil || !found {
			return err
		}
		ws.dirty = true
		resp = schema.UpdateTabResponse{Tab: updated.Snapshot(updated.ID == active), Found: true}
		out.tab(schema.TabEventUpdated, resp.Tab, active)
		return nil
	})
	switch {
	case err != nil:
		log.Warn("service tab update failed", "err", err)
		return schema.UpdateTabResponse{}, err
	case resp.Found:
		log.Info("service tab updated", "title", resp.Tab.Title, "path", resp.Tab.Path)
	default:
		log.Debug("service tab update ignored", "reason", "unknown tab")
	}
	return resp, nil
}

func (s *service) ClearTabs(ctx context.Context, req schema.ClearTabsRequest) (resp schema.ClearTabsResponse, err error) {
	err = s.withWorkspace(ctx, req.UserID, func(ws *workspace, out *outbox) error {
		ws.tabs.clear()
		active := ws.commit(ctx)
		home, _ := ws.tabs.get(schema.HomeTabID)
		out.tab(schema.TabEventCleared, home.Snapshot(true), active)
		resp.Tabs = ws.tabs.snapshots()
		return nil
	})
	if err == nil {
		logx.WithUser(ctx, req.UserID).Info("service tabs cleared")
	}
	return resp, err
}

func (s *service) GetTab(ctx context.Context, req schema.GetTabRequest) (schema.GetTabResponse, error) {
	return s.lookupTab(ctx, req.UserID, func(set *tabSet) (tab, bool) { return set.get(req.TabID) })
}

func (s *service) GetTabByPath(ctx context.Context, req schema.GetTabByPathRequest) (schema.GetTabResponse, error) {
	path, err := schema.NormalizeTabPath(req.Path)
	if err != nil {
		return schema.GetTabResponse{}, err
	}
	return s.lookupTab(ctx, req.UserID, func(set *tabSet) (tab, bool) { return set.getByPath(path) })
}

func (s *service) lookupTab(ctx context.Context, userID schema.UserID, find func(*tabSet) (tab, bool)) (resp schema.GetTabResponse, err error) {
	err = s.withWorkspace(ctx, userID, func(ws *workspace, _ *outbox) error {
		active := ws.bind(ctx)
		found, ok := find(ws.tabs)
		if !ok {
			return schema.ErrTabNotFound
		}
		resp.Tab = found.Snapshot(found.ID == active)
		return nil
	})
	return resp, err
}

func (s *service) GetSettings(ctx context.Context, req schema.GetSettingsRequest) (resp schema.SettingsResponse, err error) {
	err = s.withWorkspace(ctx, req.UserID, func(ws *workspace, _ *outbox) error {
		resp.Settings = ws.settings
		return nil
	})
	return resp, err
}

func (s *service) UpdateSettings(ctx context.Context, req schema.UpdateSettingsRequest) (resp schema.SettingsResponse, err error) {
	log := logx.WithUser(ctx, req.UserID)
	changed := false
	err = s.withWorkspace(ctx, req.UserID, func(ws *workspace, out *outbox) error {
		next, err := applySettingsPatch(ws.settings, req.Patch)
		if err != nil {
			return err
		}
		resp.Settings = next
		if next == ws.settings {
			return nil
		}
		ws.settings, ws.dirty, changed = next, true, true
		out.settings = &next
		return nil
	})
	if err != nil {
		log.Warn("service settings update failed", "err", err)
		return schema.SettingsResponse{}, err
	}
	if changed {
		log.Info("service settings updated", "skin", resp.Settings.Skin, "show_footer", resp.Settings.ShowFooter, "show_tab_bar", resp.Settings.ShowTabBar)
	}
	return resp, nil
}

func (s *service) ResetSettings(ctx context.Context, req schema.ResetSettingsRequest) (resp schema.SettingsResponse, err error) {
	err = s.withWorkspace(ctx, req.UserID, func(ws *workspace, out *outbox) error {
		ws.settings, ws.dirty = defaultSettings(s.cfg.DefaultSkin), true
		resp.Settings = ws.settings
		out.settings = &resp.Settings
		return nil
	})
	if err == nil {
		logx.WithUser(ctx, req.UserID).Info("service settings reset")
	}
	return resp, err
}

func (s *service) DropWorkspace(ctx context.Context, req schema.DropWorkspaceRequest) (schema.DropWorkspaceResponse, error) {
	if err := schema.ValidateUserID(req.UserID); err != nil {
		return schema.DropWorkspaceResponse{}, schema.ErrInvalidUser
	}
	s.mu.Lock()
	delete(s.users, req.UserID)
	s.mu.Unlock()
	removed, err := s.store.Delete(req.UserID)
	if err != nil {
		return schema.DropWorkspaceResponse{}, err
	}
	logx.WithUser(ctx, req.UserID).Info("service workspace dropped", "removed", removed)
	return schema.DropWorkspaceResponse{Removed: removed}, nil
}
