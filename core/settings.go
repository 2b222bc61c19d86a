package core

import "pkt.systems/halolight/schema"

// applySettingsPatch returns the settings with the patch applied. Unknown
// skins are rejected before anything changes.
func applySettingsPatch(current schema.UISettings, patch schema.UISettingsPatch) (schema.UISettings, error) {
	next := current
	if patch.Skin != nil {
		skin, ok := schema.NormalizeSkin(string(*patch.Skin))
		if !ok {
			return current, schema.ErrInvalidSkin
		}
		next.Skin = skin
	}
	if patch.ShowFooter != nil {
		next.ShowFooter = *patch.ShowFooter
	}
	if patch.ShowTabBar != nil {
		next.ShowTabBar = *patch.ShowTabBar
	}
	if patch.MobileHeaderFixed != nil {
		next.MobileHeaderFixed = *patch.MobileHeaderFixed
	}
	if patch.MobileTabBarFixed != nil {
		next.MobileTabBarFixed = *patch.MobileTabBarFixed
	}
	return next, nil
}

func defaultSettings(skin schema.SkinPreset) schema.UISettings {
	settings := schema.DefaultUISettings()
	if skin != "" {
		settings.Skin = skin
	}
	return settings
}
