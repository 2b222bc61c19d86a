package schema

// Tabs.

// ListTabsRequest describes a request to list tabs.
type ListTabsRequest struct {
	UserID UserID
}

// ListTabsResponse reports tabs in order and the active tab.
type ListTabsResponse struct {
	Tabs      []TabSnapshot `json:"tabs"`
	ActiveTab TabID         `json:"activeTab"`
}

// AddTabRequest opens a tab for a route, or focuses the tab already showing it.
type AddTabRequest struct {
	UserID UserID
	Title  string
	Path   string
	// Closable defaults to true when nil.
	Closable *bool
}

// AddTabResponse reports the tab that is now active.
type AddTabResponse struct {
	Tab     TabSnapshot `json:"tab"`
	Created bool        `json:"created"`
}

// RemoveTabRequest describes a request to close a tab.
type RemoveTabRequest struct {
	UserID UserID
	TabID  TabID
}

// RemoveTabResponse reports the closed tab and the tab that is active afterwards.
type RemoveTabResponse struct {
	Tab       TabSnapshot `json:"tab"`
	ActiveTab TabID       `json:"activeTab"`
}

// ActivateTabRequest describes a request to activate a tab.
type ActivateTabRequest struct {
	UserID UserID
	TabID  TabID
}

// ActivateTabResponse reports the active tab. Changed is false when the id was unknown.
type ActivateTabResponse struct {
	ActiveTab TabID `json:"activeTab"`
	Changed   bool  `json:"changed"`
}

// UpdateTabRequest applies a partial update to a tab.
type UpdateTabRequest struct {
	UserID UserID
	TabID  TabID
	Patch  TabPatch
}

// UpdateTabResponse reports the tab after the update. Found is false for unknown ids.
type UpdateTabResponse struct {
	Tab   TabSnapshot `json:"tab"`
	Found bool        `json:"found"`
}

// ClearTabsRequest resets the tab list to the home tab.
type ClearTabsRequest struct {
	UserID UserID
}

// ClearTabsResponse reports the remaining tabs.
type ClearTabsResponse struct {
	Tabs []TabSnapshot `json:"tabs"`
}

// GetTabRequest looks up a tab by id.
type GetTabRequest struct {
	UserID UserID
	TabID  TabID
}

// GetTabByPathRequest looks up a tab by route.
type GetTabByPathRequest struct {
	UserID UserID
	Path   string
}

// GetTabResponse reports a single tab.
type GetTabResponse struct {
	Tab TabSnapshot `json:"tab"`
}

// Settings.

// GetSettingsRequest reads a user's UI settings.
type GetSettingsRequest struct {
	UserID UserID
}

// UpdateSettingsRequest applies a partial settings update.
type UpdateSettingsRequest struct {
	UserID UserID
	Patch  UISettingsPatch
}

// ResetSettingsRequest restores the default settings.
type ResetSettingsRequest struct {
	UserID UserID
}

// SettingsResponse reports the settings in effect.
type SettingsResponse struct {
	Settings UISettings `json:"settings"`
}

// Workspace.

// DropWorkspaceRequest forgets all state held for a user.
type DropWorkspaceRequest struct {
	UserID UserID
}

// DropWorkspaceResponse reports whether persisted state was removed.
type DropWorkspaceResponse struct {
	Removed bool `json:"removed"`
}
