package schema

import "strings"

// DefaultSkin is the skin used when none is chosen.
const DefaultSkin SkinPreset = "default"

var skinPresets = []SkinPreset{
	"default",
	"blue",
	"emerald",
	"amber",
	"violet",
	"rose",
	"teal",
	"slate",
	"ocean",
	"sunset",
	"aurora",
}

// AvailableSkins returns the supported skin presets in display order.
func AvailableSkins() []SkinPreset {
	out := make([]SkinPreset, len(skinPresets))
	copy(out, skinPresets)
	return out
}

// NormalizeSkin returns the canonical preset for name if supported.
func NormalizeSkin(name string) (SkinPreset, bool) {
	normalized := SkinPreset(strings.ToLower(strings.TrimSpace(name)))
	for _, skin := range skinPresets {
		if skin == normalized {
			return skin, true
		}
	}
	return "", false
}
