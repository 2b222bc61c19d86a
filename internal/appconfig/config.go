package appconfig

import (
	"os"
	"path/filepath"

	"pkt.systems/halolight/schema"
)

// Config is the top-level application configuration.
type Config struct {
	ConfigVersion int                `mapstructure:"config_version" yaml:"config_version"`
	StateDir      string             `mapstructure:"state_dir" yaml:"state_dir"`
	Service       ServiceConfig      `mapstructure:"service" yaml:"service"`
	HTTP          HTTPConfig         `mapstructure:"http" yaml:"http"`
	Auth          AuthConfig         `mapstructure:"auth" yaml:"auth"`
	Notifications NotificationConfig `mapstructure:"notifications" yaml:"notifications"`
	Site          SiteConfig         `mapstructure:"site" yaml:"site"`
}

// CurrentConfigVersion marks the supported config version.
const CurrentConfigVersion = 1

// ServiceConfig controls the tab and settings service.
type ServiceConfig struct {
	DefaultSkin string `mapstructure:"default_skin" yaml:"default_skin"`
	HomeTitle   string `mapstructure:"home_title" yaml:"home_title"`
	MaxTabs     int    `mapstructure:"max_tabs" yaml:"max_tabs"`
}

// HTTPConfig configures the HTTP server.
type HTTPConfig struct {
	Addr             string  `mapstructure:"addr" yaml:"addr"`
	BaseURL          string  `mapstructure:"base_url" yaml:"base_url"`
	BasePath         string  `mapstructure:"base_path" yaml:"base_path"`
	SessionCookie    string  `mapstructure:"session_cookie" yaml:"session_cookie"`
	SessionTTLHours  int     `mapstructure:"session_ttl_hours" yaml:"session_ttl_hours"`
	SessionStorePath string  `mapstructure:"session_store_path" yaml:"session_store_path"`
	AuthCookie       string  `mapstructure:"auth_cookie" yaml:"auth_cookie"`
	UserCookie       string  `mapstructure:"user_cookie" yaml:"user_cookie"`
	AuthTTLHours     int     `mapstructure:"auth_ttl_hours" yaml:"auth_ttl_hours"`
	RememberTTLHours int     `mapstructure:"remember_ttl_hours" yaml:"remember_ttl_hours"`
	SecureCookies    bool    `mapstructure:"secure_cookies" yaml:"secure_cookies"`
	LoginRatePerMin  float64 `mapstructure:"login_rate_per_minute" yaml:"login_rate_per_minute"`
	LoginBurst       int     `mapstructure:"login_burst" yaml:"login_burst"`
	TrustProxy       bool    `mapstructure:"trust_proxy" yaml:"trust_proxy"`
	StreamHistory    int     `mapstructure:"stream_history" yaml:"stream_history"`
	EnableMetrics    bool    `mapstructure:"enable_metrics" yaml:"enable_metrics"`
}

// AuthConfig configures the user store, token format and seed users.
type AuthConfig struct {
	UserFile          string     `mapstructure:"user_file" yaml:"user_file"`
	TokenFormat       string     `mapstructure:"token_format" yaml:"token_format"`
	JWTSecret         string     `mapstructure:"jwt_secret" yaml:"jwt_secret"`
	JWTIssuer         string     `mapstructure:"jwt_issuer" yaml:"jwt_issuer"`
	LoginLatencyMS    int        `mapstructure:"login_latency_ms" yaml:"login_latency_ms"`
	SessionLatencyMS  int        `mapstructure:"session_latency_ms" yaml:"session_latency_ms"`
	ResetTokenMinutes int        `mapstructure:"reset_token_minutes" yaml:"reset_token_minutes"`
	SeedUsers         []SeedUser `mapstructure:"seed_users" yaml:"seed_users"`
}

// SeedUser seeds a user record in the auth store. Password is hashed when
// the store is first created; PasswordHash wins when both are set.
type SeedUser struct {
	ID           string   `mapstructure:"id" yaml:"id"`
	Email        string   `mapstructure:"email" yaml:"email"`
	Name         string   `mapstructure:"name" yaml:"name"`
	Avatar       string   `mapstructure:"avatar" yaml:"avatar,omitempty"`
	Role         string   `mapstructure:"role" yaml:"role"`
	Permissions  []string `mapstructure:"permissions" yaml:"permissions"`
	Password     string   `mapstructure:"password" yaml:"password,omitempty"`
	PasswordHash string   `mapstructure:"password_hash" yaml:"password_hash,omitempty"`
	TOTPSecret   string   `mapstructure:"totp_secret" yaml:"totp_secret,omitempty"`
}

// NotificationConfig controls the simulated real-time notification feed.
type NotificationConfig struct {
	Enabled         bool    `mapstructure:"enabled" yaml:"enabled"`
	IntervalSeconds int     `mapstructure:"interval_seconds" yaml:"interval_seconds"`
	Probability     float64 `mapstructure:"probability" yaml:"probability"`
}

// SiteConfig holds branding and page metadata defaults.
type SiteConfig struct {
	AppTitle       string `mapstructure:"app_title" yaml:"app_title"`
	AppDescription string `mapstructure:"app_description" yaml:"app_description"`
	BrandName      string `mapstructure:"brand_name" yaml:"brand_name"`
	Homepage       string `mapstructure:"homepage" yaml:"homepage"`
	ShowDemoHint   bool   `mapstructure:"show_demo_hint" yaml:"show_demo_hint"`
	DemoEmail      string `mapstructure:"demo_email" yaml:"demo_email"`
	DemoPassword   string `mapstructure:"demo_password" yaml:"demo_password"`
}

// DemoPassword is the password of every default seed user.
const DemoPassword = "123456"

// DefaultSeedUsers returns the demo accounts.
func DefaultSeedUsers() []SeedUser {
	return []SeedUser{
		{
			ID:          "1",
			Email:       "admin@halolight.h7ml.cn",
			Name:        "管理员",
			Avatar:      "https://images.unsplash.com/photo-1472099645785-5658abf4ff4e?w=64&h=64&fit=crop&crop=face",
			Role:        string(schema.RoleAdmin),
			Permissions: []string{"read", "write", "delete", "manage"},
			Password:    DemoPassword,
		},
		{
			ID:          "2",
			Email:       "user@halolight.h7ml.cn",
			Name:        "普通用户",
			Avatar:      "https://images.unsplash.com/photo-1494790108755-2616b612b5bc?w=64&h=64&fit=crop&crop=face",
			Role:        string(schema.RoleUser),
			Permissions: []string{"read"},
			Password:    DemoPassword,
		},
		{
			ID:          "3",
			Email:       "manager@halolight.h7ml.cn",
			Name:        "部门经理",
			Avatar:      "https://images.unsplash.com/photo-1507003211169-0a1dd7228f2d?w=64&h=64&fit=crop&crop=face",
			Role:        string(schema.RoleManager),
			Permissions: []string{"read", "write"},
			Password:    DemoPassword,
		},
	}
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() (Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return Config{}, err
	}
	root := filepath.Join(home, ".halolight")
	return Config{
		ConfigVersion: CurrentConfigVersion,
		StateDir:      filepath.Join(root, "state"),
		Service: ServiceConfig{
			DefaultSkin: string(schema.DefaultSkin),
			HomeTitle:   schema.DefaultHomeTitle,
			MaxTabs:     0,
		},
		HTTP: HTTPConfig{
			Addr:             ":5173",
			BaseURL:          "",
			BasePath:         "",
			SessionCookie:    "halolight_session",
			SessionTTLHours:  720,
			SessionStorePath: filepath.Join(root, "state", "sessions.json"),
			AuthCookie:       "auth_token",
			UserCookie:       "user_data",
			AuthTTLHours:     24,
			RememberTTLHours: 24 * 7,
			SecureCookies:    false,
			LoginRatePerMin:  10,
			LoginBurst:       5,
			TrustProxy:       false,
			StreamHistory:    256,
			EnableMetrics:    true,
		},
		Auth: AuthConfig{
			UserFile:          filepath.Join(root, "users.json"),
			TokenFormat:       "mock",
			JWTSecret:         "",
			JWTIssuer:         "halolight",
			LoginLatencyMS:    500,
			SessionLatencyMS:  200,
			ResetTokenMinutes: 60,
			SeedUsers:         DefaultSeedUsers(),
		},
		Notifications: NotificationConfig{
			Enabled:         true,
			IntervalSeconds: 10,
			Probability:     0.2,
		},
		Site: SiteConfig{
			AppTitle:       "Admin Pro",
			AppDescription: "Halolight 后台管理系统",
			BrandName:      "Halolight",
			Homepage:       "https://halolight.h7ml.cn",
			ShowDemoHint:   false,
			DemoEmail:      "admin@halolight.h7ml.cn",
			DemoPassword:   DemoPassword,
		},
	}, nil
}

// DefaultConfigPath returns the standard config path.
func DefaultConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".halolight", "config.yaml"), nil
}
