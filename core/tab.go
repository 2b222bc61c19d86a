package core

import (
	"github.com/google/uuid"

	"pkt.systems/halolight/schema"
)

func newTabID() schema.TabID {
	return schema.TabID("tab-" + uuid.NewString())
}

// tab is a single entry in the tab bar.
type tab struct {
	ID       schema.TabID
	Title    string
	Path     string
	Closable bool
}

// Snapshot returns a transport-friendly view of the tab.
func (t tab) Snapshot(active bool) schema.TabSnapshot {
	return schema.TabSnapshot{
		ID:       t.ID,
		Title:    t.Title,
		Path:     t.Path,
		Closable: t.Closable,
		Active:   active,
	}
}

func homeTab(title string) tab {
	return tab{ID: schema.HomeTabID, Title: title, Path: schema.HomeTabPath, Closable: false}
}

// tabSet is the ordered tab list plus the active tab. The home tab is always
// at index 0 and is the only tab allowed to hold its id.
type tabSet struct {
	tabs      []tab
	active    schema.TabID
	homeTitle string
}

func newTabSet(homeTitle string) *tabSet {
	return &tabSet{tabs: []tab{homeTab(homeTitle)}, active: schema.HomeTabID, homeTitle: homeTitle}
}

// restoreTabSet rebuilds a set from persisted tabs, repairing anything that
// would break the home or unique-path invariants.
func restoreTabSet(homeTitle string, saved []tab, active schema.TabID) *tabSet {
	set := newTabSet(homeTitle)
	seenPath := map[string]bool{schema.HomeTabPath: true}
	seenID := map[schema.TabID]bool{schema.HomeTabID: true}
	for _, t := range saved {
		if t.ID == schema.HomeTabID {
			if t.Title != "" {
				set.tabs[0].Title = t.Title
			}
			continue
		}
		if t.ID == "" || seenID[t.ID] || seenPath[t.Path] {
			continue
		}
		seenID[t.ID] = true
		seenPath[t.Path] = true
		set.tabs = append(set.tabs, t)
	}
	if set.index(active) >= 0 {
		set.active = active
	}
	return set
}

func (s *tabSet) index(id schema.TabID) int {
	for i, t := range s.tabs {
		if t.ID == id {
			return i
		}
	}
	return -1
}

func (s *tabSet) indexByPath(path string) int {
	for i, t := range s.tabs {
		if t.Path == path {
			return i
		}
	}
	return -1
}

func (s *tabSet) get(id schema.TabID) (tab, bool) {
	if i := s.index(id); i >= 0 {
		return s.tabs[i], true
	}
	return tab{}, false
}

func (s *tabSet) getByPath(path string) (tab, bool) {
	if i := s.indexByPath(path); i >= 0 {
		return s.tabs[i], true
	}
	return tab{}, false
}

// add activates the tab already showing path, or appends a new tab and
// activates it. created reports which of the two happened.
func (s *tabSet) add(t tab) (id schema.TabID, created bool) {
	if i := s.indexByPath(t.Path); i >= 0 {
		s.active = s.tabs[i].ID
		return s.active, false
	}
	s.tabs = append(s.tabs, t)
	s.active = t.ID
	return t.ID, true
}

// remove closes a tab. When the closed tab was active the previous tab in
// order takes over.
func (s *tabSet) remove(id schema.TabID) (tab, error) {
	i := s.index(id)
	if i < 0 {
		return tab{}, schema.ErrTabNotFound
	}
	removed := s.tabs[i]
	if !removed.Closable {
		return tab{}, schema.ErrTabNotClosable
	}
	s.tabs = append(s.tabs[:i:i], s.tabs[i+1:]...)
	if s.active == id {
		next := i - 1
		if next < 0 {
			next = 0
		}
		s.active = s.tabs[next].ID
	}
	return removed, nil
}

// activate is a no-op for unknown ids.
func (s *tabSet) activate(id schema.TabID) bool {
	if s.index(id) < 0 {
		return false
	}
	s.active = id
	return true
}

// update applies a patch. The home tab keeps its route and stays pinned.
func (s *tabSet) update(id schema.TabID, patch schema.TabPatch) (tab, bool, error) {
	i := s.index(id)
	if i < 0 {
		return tab{}, false, nil
	}
	next := s.tabs[i]
	if patch.Title != nil {
		next.Title = *patch.Title
	}
	if patch.Path != nil && id != schema.HomeTabID {
		if j := s.indexByPath(*patch.Path); j >= 0 && j != i {
			return tab{}, true, schema.ErrTabPathExists
		}
		next.Path = *patch.Path
	}
	if patch.Closable != nil && id != schema.HomeTabID {
		next.Closable = *patch.Closable
	}
	s.tabs[i] = next
	return next, true, nil
}

// clear drops every tab except home and activates it.
func (s *tabSet) clear() {
	home := s.tabs[0]
	home.Title = s.homeTitle
	s.tabs = []tab{home}
	s.active = schema.HomeTabID
}

func (s *tabSet) snapshots() []schema.TabSnapshot {
	out := make([]schema.TabSnapshot, 0, len(s.tabs))
	for _, t := range s.tabs {
		out = append(out, t.Snapshot(t.ID == s.active))
	}
	return out
}

// evictOverflow closes the oldest closable tab other than keep while the set
// holds more than limit tabs. A limit of zero disables eviction.
func (s *tabSet) evictOverflow(limit int, keep schema.TabID) []tab {
	var evicted []tab
	for limit > 0 && len(s.tabs) > limit {
		victim := -1
		for i, t := range s.tabs {
			if t.Closable && t.ID != keep && t.ID != s.active {
				victim = i
				break
			}
		}
		if victim < 0 {
			break
		}
		evicted = append(evicted, s.tabs[victim])
		s.tabs = append(s.tabs[:victim:victim], s.tabs[victim+1:]...)
	}
	return evicted
}
