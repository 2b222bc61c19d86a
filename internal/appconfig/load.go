package appconfig

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"pkt.systems/halolight/internal/persist"
	"pkt.systems/halolight/schema"
)

// EnvPrefix prefixes environment overrides, e.g. HALOLIGHT_HTTP_ADDR.
const EnvPrefix = "HALOLIGHT"

// Load resolves the config from defaults, the YAML file at path (or
// DefaultConfigPath) and HALOLIGHT_* environment variables, in that order of
// precedence from lowest to highest. A missing file is not an error.
func Load(path string) (Config, error) {
	path, err := resolvePath(path)
	if err != nil {
		return Config{}, err
	}
	defaults, err := DefaultConfig()
	if err != nil {
		return Config{}, err
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := registerDefaults(v, defaults); err != nil {
		return Config{}, err
	}

	switch err := v.ReadInConfig(); {
	case err == nil:
		if err := checkVersion(v); err != nil {
			return Config{}, fmt.Errorf("%s: %w", path, err)
		}
	case !isConfigNotFound(err):
		return Config{}, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	cfg.expandEnv()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func resolvePath(path string) (string, error) {
	if strings.TrimSpace(path) != "" {
		return path, nil
	}
	return DefaultConfigPath()
}

// registerDefaults declares every key of cfg as a viper default. Env lookups
// only happen for declared keys, so this is also what makes each key
// overridable through HALOLIGHT_*.
func registerDefaults(v *viper.Viper, cfg Config) error {
	raw, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	var tree map[string]any
	if err := yaml.Unmarshal(raw, &tree); err != nil {
		return err
	}
	var walk func(prefix string, node map[string]any)
	walk = func(prefix string, node map[string]any) {
		for key, value := range node {
			if prefix != "" {
				key = prefix + "." + key
			}
			if child, ok := value.(map[string]any); ok {
				walk(key, child)
				continue
			}
			v.SetDefault(key, value)
		}
	}
	walk("", tree)
	return nil
}

func checkVersion(v *viper.Viper) error {
	if !v.InConfig("config_version") {
		return fmt.Errorf("config_version is required; expected %d", CurrentConfigVersion)
	}
	if got := v.GetInt("config_version"); got != CurrentConfigVersion {
		return fmt.Errorf("unsupported config_version %d; expected %d", got, CurrentConfigVersion)
	}
	return nil
}

// isConfigNotFound treats a missing explicit config file like a missing
// search result.
func isConfigNotFound(err error) bool {
	var notFound viper.ConfigFileNotFoundError
	return errors.As(err, &notFound) || errors.Is(err, fs.ErrNotExist)
}

// Validate reports every invalid setting at once.
func (c Config) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}

	if raw := strings.TrimSpace(c.HTTP.BaseURL); raw != "" {
		parsed, err := url.Parse(raw)
		check(err == nil && parsed.Scheme != "" && parsed.Host != "", "http.base_url must include scheme and host (e.g. https://example.com)")
	}
	if prefix := strings.TrimSpace(c.HTTP.BasePath); prefix != "" {
		check(!strings.Contains(prefix, "://"), "http.base_path must be a path prefix, not a URL")
		check(!strings.ContainsAny(prefix, "?#"), "http.base_path must not include query or fragment")
	}
	check(strings.TrimSpace(c.HTTP.AuthCookie) != "" && strings.TrimSpace(c.HTTP.UserCookie) != "", "http.auth_cookie and http.user_cookie are required")
	check(c.HTTP.AuthTTLHours > 0 && c.HTTP.RememberTTLHours > 0, "http.auth_ttl_hours and http.remember_ttl_hours must be positive")

	switch c.Auth.TokenFormat {
	case "mock":
	case "jwt":
		check(len(c.Auth.JWTSecret) >= 16, "auth.jwt_secret must be at least 16 bytes when auth.token_format is jwt")
	default:
		check(false, "unsupported auth.token_format %q", c.Auth.TokenFormat)
	}
	ids := make(map[string]bool, len(c.Auth.SeedUsers))
	for _, seed := range c.Auth.SeedUsers {
		check(schema.ValidateUserID(schema.UserID(seed.ID)) == nil, "auth.seed_users: invalid id %q", seed.ID)
		check(schema.ValidateEmail(seed.Email) == nil, "auth.seed_users: invalid email %q", seed.Email)
		check(!ids[seed.ID], "auth.seed_users: duplicate id %q", seed.ID)
		ids[seed.ID] = true
	}

	_, skinOK := schema.NormalizeSkin(c.Service.DefaultSkin)
	check(skinOK, "unsupported service.default_skin %q", c.Service.DefaultSkin)
	check(c.Notifications.Probability >= 0 && c.Notifications.Probability <= 1, "notifications.probability must be between 0 and 1")
	return errors.Join(errs...)
}

// expandEnv resolves $VAR references in path-like and secret values.
func (c *Config) expandEnv() {
	for _, field := range []*string{&c.StateDir, &c.HTTP.SessionStorePath, &c.Auth.UserFile, &c.Auth.JWTSecret} {
		*field = expandEnv(*field)
	}
}

// expandEnv keeps unknown references verbatim. UID and GID fall back to the
// process ids so compose-style configs work outside compose.
func expandEnv(value string) string {
	if !strings.Contains(value, "$") {
		return value
	}
	return os.Expand(value, func(key string) string {
		if val, ok := os.LookupEnv(key); ok {
			return val
		}
		switch key {
		case "":
			return ""
		case "UID":
			return strconv.Itoa(os.Getuid())
		case "GID":
			return strconv.Itoa(os.Getgid())
		}
		return "$" + key
	})
}

// WriteDefault writes the default config to path (or DefaultConfigPath) and
// returns where it went.
func WriteDefault(path string, overwrite bool) (string, error) {
	path, err := resolvePath(path)
	if err != nil {
		return "", err
	}
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return "", fmt.Errorf("config already exists at %s", path)
		}
	}
	cfg, err := DefaultConfig()
	if err != nil {
		return "", err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return "", err
	}
	if err := persist.WriteFile(path, data); err != nil {
		return "", err
	}
	return path, nil
}
