package core

import (
	"context"

	"pkt.systems/halolight/schema"
)

// Service is the transport-agnostic API for a user's tab bar and UI settings.
type Service interface {
	ListTabs(ctx context.Context, req schema.ListTabsRequest) (schema.ListTabsResponse, error)
	AddTab(ctx context.Context, req schema.AddTabRequest) (schema.AddTabResponse, error)
	RemoveTab(ctx context.Context, req schema.RemoveTabRequest) (schema.RemoveTabResponse, error)
	ActivateTab(ctx context.Context, req schema.ActivateTabRequest) (schema.ActivateTabResponse, error)
	UpdateTab(ctx context.Context, req schema.UpdateTabRequest) (schema.UpdateTabResponse, error)
	ClearTabs(ctx context.Context, req schema.ClearTabsRequest) (schema.ClearTabsResponse, error)
	GetTab(ctx context.Context, req schema.GetTabRequest) (schema.GetTabResponse, error)
	GetTabByPath(ctx context.Context, req schema.GetTabByPathRequest) (schema.GetTabResponse, error)

	GetSettings(ctx context.Context, req schema.GetSettingsRequest) (schema.SettingsResponse, error)
	UpdateSettings(ctx context.Context, req schema.UpdateSettingsRequest) (schema.SettingsResponse, error)
	ResetSettings(ctx context.Context, req schema.ResetSettingsRequest) (schema.SettingsResponse, error)

	DropWorkspace(ctx context.Context, req schema.DropWorkspaceRequest) (schema.DropWorkspaceResponse, error)
}
