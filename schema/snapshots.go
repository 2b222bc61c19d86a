package schema

// HomeTabID is the id of the permanent home tab.
const HomeTabID TabID = "home"

// HomeTabPath is the route of the home tab.
const HomeTabPath = "/"

// DefaultHomeTitle is the home tab title.
const DefaultHomeTitle = "首页"

// TabSnapshot is a read-only view of tab state for transports.
type TabSnapshot struct {
	ID       TabID  `json:"id"`
	Title    string `json:"title"`
	Path     string `json:"path"`
	Closable bool   `json:"closable"`
	Active   bool   `json:"active"`
}

// UISettings are the per-user shell preferences.
type UISettings struct {
	Skin              SkinPreset `json:"skin"`
	ShowFooter        bool       `json:"showFooter"`
	ShowTabBar        bool       `json:"showTabBar"`
	MobileHeaderFixed bool       `json:"mobileHeaderFixed"`
	MobileTabBarFixed bool       `json:"mobileTabBarFixed"`
}

// DefaultUISettings returns the settings applied on first use and on reset.
func DefaultUISettings() UISettings {
	return UISettings{
		Skin:              DefaultSkin,
		ShowFooter:        true,
		ShowTabBar:        true,
		MobileHeaderFixed: true,
		MobileTabBarFixed: true,
	}
}

// UISettingsPatch carries the fields to change; nil fields are left as is.
type UISettingsPatch struct {
	Skin              *SkinPreset `json:"skin,omitempty"`
	ShowFooter        *bool       `json:"showFooter,omitempty"`
	ShowTabBar        *bool       `json:"showTabBar,omitempty"`
	MobileHeaderFixed *bool       `json:"mobileHeaderFixed,omitempty"`
	MobileTabBarFixed *bool       `json:"mobileTabBarFixed,omitempty"`
}

// Empty reports whether the patch changes nothing.
func (p UISettingsPatch) Empty() bool {
	return p.Skin == nil && p.ShowFooter == nil && p.ShowTabBar == nil && p.MobileHeaderFixed == nil && p.MobileTabBarFixed == nil
}

// TabPatch carries the tab fields to change; nil fields are left as is.
type TabPatch struct {
	Title    *string `json:"title,omitempty"`
	Path     *string `json:"path,omitempty"`
	Closable *bool   `json:"closable,omitempty"`
}
