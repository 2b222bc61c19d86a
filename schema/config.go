package schema

import (
	"os"
	"path/filepath"
	"strings"
)

// ServiceConfig defines defaults for the workspace service.
type ServiceConfig struct {
	StateDir    string
	DefaultSkin SkinPreset
	HomeTitle   string
	// MaxTabs caps the number of open tabs per user; zero means unlimited.
	MaxTabs int
}

// NormalizeServiceConfig applies defaults and validates the config.
func NormalizeServiceConfig(cfg ServiceConfig) (ServiceConfig, error) {
	if cfg.StateDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ServiceConfig{}, err
		}
		cfg.StateDir = filepath.Join(home, ".halolight", "state")
	}
	if cfg.DefaultSkin == "" {
		cfg.DefaultSkin = DefaultSkin
	}
	skin, ok := NormalizeSkin(string(cfg.DefaultSkin))
	if !ok {
		return ServiceConfig{}, ErrInvalidSkin
	}
	cfg.DefaultSkin = skin
	if strings.TrimSpace(cfg.HomeTitle) == "" {
		cfg.HomeTitle = DefaultHomeTitle
	}
	if cfg.MaxTabs < 0 {
		cfg.MaxTabs = 0
	}
	return cfg, nil
}
