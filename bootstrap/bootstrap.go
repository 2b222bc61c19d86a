// Package bootstrap writes a host config plus a container bundle
// (config, docker-compose.yaml, Containerfile and .env) for running halolight.
package bootstrap

import (
	"bytes"
	"crypto/rand"
	"embed"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"text/template"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"pkt.systems/halolight/internal/appconfig"
	"pkt.systems/halolight/internal/auth"
	"pkt.systems/halolight/internal/version"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

var templates = template.Must(template.ParseFS(templateFS, "templates/*.tmpl"))

const (
	containerConfigName       = "config-for-container.yaml"
	composeName               = "docker-compose.yaml"
	containerfileName         = "Containerfile"
	composeEnvName            = ".env"
	jwtSecretEnv              = "HALOLIGHT_JWT_SECRET"
	defaultServerImage        = "docker.io/pktsystems/halolight"
	defaultHostStateTemplate  = "${HOME}/.halolight/state"
	defaultHostConfigTemplate = "${HOME}/.halolight/" + containerConfigName
	defaultHostPort           = 5173
	unknownImageTag           = "v0.0.0-unknown"
)

// Files holds the rendered container bundle.
type Files struct {
	ConfigYAML    []byte
	ComposeYAML   []byte
	Containerfile []byte
}

// Options controls what the bundle contains.
type Options struct {
	// SeedUsers keeps the demo accounts in the generated configs.
	SeedUsers bool
	// JWT switches the container config to signed tokens.
	JWT       bool
	ImageTag  string
	HostPort  int
	Overrides []ConfigOverride
}

// BundlePaths lists where WriteFiles put the bundle.
type BundlePaths struct {
	ConfigPath        string
	ComposePath       string
	ContainerfilePath string
}

// Paths reports everything WriteBootstrap wrote.
type Paths struct {
	HostConfigPath string
	Bundle         BundlePaths
	EnvPath        string
	UserFile       string
}

// mounts describes how the compose file binds host paths into /hl.
type mounts struct {
	ConfigFile     string
	HostConfigPath string
	HostStateDir   string
	HostPort       int
	ServerImage    string
	Version        string
}

// ContainerConfig returns the config the container reads from /hl.
func ContainerConfig(opts Options) (appconfig.Config, error) {
	return baseConfig(opts, func(cfg *appconfig.Config) {
		cfg.StateDir = "/hl/state/workspaces"
		cfg.HTTP.Addr = ":5173"
		cfg.HTTP.SessionStorePath = "/hl/state/sessions.json"
		cfg.Auth.UserFile = "/hl/state/users.json"
		if opts.JWT {
			cfg.Auth.TokenFormat = "jwt"
			cfg.Auth.JWTSecret = "${" + jwtSecretEnv + "}"
		}
	})
}

// HostConfig returns the config written to ~/.halolight/config.yaml with the
// host-scoped overrides applied.
func HostConfig(opts Options) (appconfig.Config, error) {
	cfg, err := baseConfig(opts, nil)
	if err != nil {
		return appconfig.Config{}, err
	}
	raw, err := yaml.Marshal(cfg)
	if err != nil {
		return appconfig.Config{}, err
	}
	if raw, err = overrideYAML(raw, opts.Overrides, OverrideHost); err != nil {
		return appconfig.Config{}, err
	}
	var out appconfig.Config
	if err := yaml.Unmarshal(raw, &out); err != nil {
		return appconfig.Config{}, fmt.Errorf("host config override: %w", err)
	}
	return out, nil
}

func baseConfig(opts Options, adjust func(*appconfig.Config)) (appconfig.Config, error) {
	cfg, err := appconfig.DefaultConfig()
	if err != nil {
		return appconfig.Config{}, err
	}
	cfg.ConfigVersion = appconfig.CurrentConfigVersion
	if !opts.SeedUsers {
		cfg.Auth.SeedUsers = nil
	}
	if adjust != nil {
		adjust(&cfg)
	}
	return cfg, nil
}

// DefaultRepoBundle renders the bundle with ${HOME} placeholders so it can be
// committed next to the sources.
func DefaultRepoBundle(opts Options) (Files, error) {
	return render(opts, mounts{
		ConfigFile:     containerConfigName,
		HostConfigPath: defaultHostConfigTemplate,
		HostStateDir:   defaultHostStateTemplate,
	})
}

func render(opts Options, m mounts) (Files, error) {
	cfg, err := ContainerConfig(opts)
	if err != nil {
		return Files{}, err
	}
	configYAML, err := yaml.Marshal(cfg)
	if err != nil {
		return Files{}, err
	}
	if configYAML, err = overrideYAML(configYAML, opts.Overrides, OverrideContainer); err != nil {
		return Files{}, err
	}
	m.Version = imageTag(opts.ImageTag)
	m.ServerImage = defaultServerImage + ":" + m.Version
	m.HostPort = opts.HostPort
	if m.HostPort <= 0 {
		m.HostPort = defaultHostPort
	}
	files := Files{ConfigYAML: configYAML}
	if files.ComposeYAML, err = execute("docker-compose.yaml.tmpl", m); err != nil {
		return Files{}, err
	}
	if files.Containerfile, err = execute("Containerfile.tmpl", m); err != nil {
		return Files{}, err
	}
	return files, nil
}

func execute(name string, m mounts) ([]byte, error) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, m); err != nil {
		return nil, fmt.Errorf("render %s: %w", name, err)
	}
	return buf.Bytes(), nil
}

type artifact struct {
	path string
	data []byte
	mode fs.FileMode
}

// writeArtifacts refuses to touch anything unless overwrite is set or none of
// the targets exist yet.
func writeArtifacts(overwrite bool, items ...artifact) error {
	if !overwrite {
		for _, item := range items {
			if _, err := os.Stat(item.path); err == nil {
				return fmt.Errorf("file already exists: %s", item.path)
			} else if !errors.Is(err, fs.ErrNotExist) {
				return err
			}
		}
	}
	for _, item := range items {
		if err := os.MkdirAll(filepath.Dir(item.path), 0o755); err != nil {
			return err
		}
		if err := os.WriteFile(item.path, item.data, item.mode); err != nil {
			return err
		}
	}
	return nil
}

// WriteFiles writes the bundle into outputDir.
func WriteFiles(outputDir string, files Files, overwrite bool) (BundlePaths, error) {
	paths, items, err := bundleArtifacts(outputDir, files)
	if err != nil {
		return BundlePaths{}, err
	}
	if err := writeArtifacts(overwrite, items...); err != nil {
		return BundlePaths{}, err
	}
	return paths, nil
}

func bundleArtifacts(outputDir string, files Files) (BundlePaths, []artifact, error) {
	if strings.TrimSpace(outputDir) == "" {
		return BundlePaths{}, nil, errors.New("output directory is required")
	}
	paths := BundlePaths{
		ConfigPath:        filepath.Join(outputDir, containerConfigName),
		ComposePath:       filepath.Join(outputDir, composeName),
		ContainerfilePath: filepath.Join(outputDir, containerfileName),
	}
	return paths, []artifact{
		{paths.ConfigPath, files.ConfigYAML, 0o644},
		{paths.ComposePath, files.ComposeYAML, 0o644},
		{paths.ContainerfilePath, files.Containerfile, 0o644},
	}, nil
}

// WriteBootstrap writes the host config, seeds the host user store and
// writes the container bundle plus its .env into outputDir.
func WriteBootstrap(outputDir string, overwrite bool, opts Options) (Paths, error) {
	hostCfg, err := HostConfig(opts)
	if err != nil {
		return Paths{}, err
	}
	hostPath, err := appconfig.DefaultConfigPath()
	if err != nil {
		return Paths{}, err
	}
	hostYAML, err := yaml.Marshal(hostCfg)
	if err != nil {
		return Paths{}, err
	}
	root, err := filepath.Abs(outputDir)
	if err != nil {
		root = outputDir
	}
	stateDir := filepath.Join(root, "state")
	files, err := render(opts, mounts{
		ConfigFile:     containerConfigName,
		HostConfigPath: filepath.Join(root, containerConfigName),
		HostStateDir:   stateDir,
	})
	if err != nil {
		return Paths{}, err
	}
	envPath := filepath.Join(outputDir, composeEnvName)
	env, err := composeEnv(envPath, overwrite)
	if err != nil {
		return Paths{}, err
	}

	bundle, items, err := bundleArtifacts(outputDir, files)
	if err != nil {
		return Paths{}, err
	}
	items = append(items, artifact{hostPath, hostYAML, 0o600}, artifact{envPath, env, 0o600})
	if err := writeArtifacts(overwrite, items...); err != nil {
		return Paths{}, err
	}
	if err := os.MkdirAll(stateDir, 0o755); err != nil {
		return Paths{}, err
	}
	if _, err := auth.NewStore(hostCfg.Auth.UserFile, hostCfg.Auth.SeedUsers); err != nil {
		return Paths{}, fmt.Errorf("seed user store: %w", err)
	}
	return Paths{
		HostConfigPath: hostPath,
		Bundle:         bundle,
		EnvPath:        envPath,
		UserFile:       hostCfg.Auth.UserFile,
	}, nil
}

// composeEnv renders UID, GID and the JWT secret for docker compose. An
// existing secret is kept so issued tokens stay valid across an overwrite.
func composeEnv(path string, overwrite bool) ([]byte, error) {
	existing := map[string]string{}
	if _, err := os.Stat(path); err == nil {
		if !overwrite {
			return nil, fmt.Errorf("file already exists: %s", path)
		}
		if existing, err = godotenv.Read(path); err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
	}
	secret := existing[jwtSecretEnv]
	if secret == "" {
		buf := make([]byte, 32)
		if _, err := rand.Read(buf); err != nil {
			return nil, err
		}
		secret = hex.EncodeToString(buf)
	}
	content, err := godotenv.Marshal(map[string]string{
		"UID":        strconv.Itoa(os.Getuid()),
		"GID":        strconv.Itoa(os.Getgid()),
		jwtSecretEnv: secret,
	})
	if err != nil {
		return nil, err
	}
	return []byte(content + "\n"), nil
}

func imageTag(override string) string {
	for _, candidate := range []string{override, version.Current()} {
		if tag := strings.TrimSpace(candidate); tag != "" {
			return tag
		}
	}
	return unknownImageTag
}
