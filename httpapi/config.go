package httpapi

// Config defines HTTP API and UI settings.
type Config struct {
	Addr             string
	BaseURL          string
	BasePath         string
	SessionCookie    string
	SessionTTLHours  int
	SessionStorePath string
	AuthCookie       string
	UserCookie       string
	SecureCookies    bool
	LoginRatePerMin  float64
	LoginBurst       int
	// TrustProxy takes the client address from X-Forwarded-For. Enable it
	// only behind a reverse proxy that overwrites the header.
	TrustProxy    bool
	StreamHistory int
	EnableMetrics bool
	Site          SiteConfig
}

// SiteConfig carries the branding shown in the page chrome.
type SiteConfig struct {
	AppTitle       string
	AppDescription string
	BrandName      string
	ShowDemoHint   bool
	DemoEmail      string
	DemoPassword   string
}

func (c Config) withDefaults() Config {
	if c.SessionCookie == "" {
		c.SessionCookie = "halolight_session"
	}
	if c.SessionTTLHours <= 0 {
		c.SessionTTLHours = 720
	}
	if c.AuthCookie == "" {
		c.AuthCookie = "auth_token"
	}
	if c.UserCookie == "" {
		c.UserCookie = "user_data"
	}
	if c.LoginBurst <= 0 {
		c.LoginBurst = 5
	}
	if c.StreamHistory <= 0 {
		c.StreamHistory = 256
	}
	if c.Site.AppTitle == "" {
		c.Site.AppTitle = "Admin Pro"
	}
	if c.Site.BrandName == "" {
		c.Site.BrandName = "Halolight"
	}
	if c.Site.AppDescription == "" {
		c.Site.AppDescription = "Halolight 后台管理系统"
	}
	return c
}
