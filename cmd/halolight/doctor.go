package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"pkt.systems/halolight"
	"pkt.systems/halolight/internal/appconfig"
	"pkt.systems/halolight/internal/auth"
	"pkt.systems/pslog"
)

func newDoctorCmd() *cobra.Command {
	var cfgPath string
	var probeURL string
	var probeTimeout time.Duration
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Run halolight diagnostics",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := pslog.Ctx(cmd.Context())

			cfg, err := appconfig.Load(cfgPath)
			if err != nil {
				return err
			}
			configPath := cfgPath
			if strings.TrimSpace(configPath) == "" {
				if configPath, err = appconfig.DefaultConfigPath(); err != nil {
					return err
				}
			}
			logger.Info("doctor start", "config", configPath)

			for _, dir := range []string{cfg.StateDir, filepath.Dir(cfg.HTTP.SessionStorePath), filepath.Dir(cfg.Auth.UserFile)} {
				if err := checkWritableDir(dir); err != nil {
					return err
				}
				logger.Info("doctor dir ok", "dir", dir)
			}

			store, err := auth.NewStoreWithLogger(cfg.Auth.UserFile, cfg.Auth.SeedUsers, logger)
			if err != nil {
				return err
			}
			users := store.LoadUsers()
			if len(users) == 0 {
				logger.Warn("doctor user store empty", "path", cfg.Auth.UserFile, "hint", "halolight users add <email>")
			} else {
				logger.Info("doctor user store ok", "path", cfg.Auth.UserFile, "users", len(users))
			}

			authCfg := toAuthConfig(cfg.Auth, cfg.HTTP)
			codec, err := halolight.NewTokenCodec(authCfg, nil)
			if err != nil {
				return err
			}
			if len(users) > 0 {
				token, err := codec.Issue(users[0].Public(), authCfg.TokenTTL)
				if err != nil {
					return fmt.Errorf("doctor token issue: %w", err)
				}
				if id, err := codec.Parse(token); err != nil || id != users[0].ID {
					return fmt.Errorf("doctor token round trip failed: %v", err)
				}
				logger.Info("doctor token ok", "format", cfg.Auth.TokenFormat)
			}

			if strings.TrimSpace(probeURL) != "" {
				if err := probeHealth(cmd.Context(), probeURL, probeTimeout); err != nil {
					return err
				}
				logger.Info("doctor probe ok", "url", probeURL)
			}
			logger.Info("doctor complete")
			return nil
		},
	}
	cmd.Flags().StringVarP(&cfgPath, "config", "c", "", "path to config file")
	cmd.Flags().StringVar(&probeURL, "probe", "", "base URL of a running server to probe /healthz on")
	cmd.Flags().DurationVar(&probeTimeout, "probe-timeout", 5*time.Second, "timeout for the health probe")
	return cmd
}

func checkWritableDir(dir string) error {
	if strings.TrimSpace(dir) == "" {
		return errors.New("doctor: empty directory in config")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("doctor dir %s: %w", dir, err)
	}
	f, err := os.CreateTemp(dir, ".doctor-*")
	if err != nil {
		return fmt.Errorf("doctor dir %s not writable: %w", dir, err)
	}
	name := f.Name()
	_ = f.Close()
	return os.Remove(name)
}

func probeHealth(ctx context.Context, baseURL string, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	url := strings.TrimSuffix(baseURL, "/") + "/healthz"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("doctor probe %s: %w", url, err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("doctor probe %s: status %d", url, resp.StatusCode)
	}
	return nil
}
