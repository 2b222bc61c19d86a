package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"pkt.systems/halolight"
	"pkt.systems/halolight/httpapi"
	"pkt.systems/halolight/internal/appconfig"
	"pkt.systems/halolight/internal/pagemeta"
	"pkt.systems/halolight/schema"
	"pkt.systems/pslog"
)

const stopTimeout = 10 * time.Second

func newServeCmd() *cobra.Command {
	var cfgPath string
	var addr string
	var noWebSocket bool
	var noNotifications bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the halolight HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := pslog.Ctx(cmd.Context())
			cfg, err := appconfig.Load(cfgPath)
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.HTTP.Addr = addr
			}
			if noNotifications {
				cfg.Notifications.Enabled = false
			}

			serverCfg := toServerConfig(cfg)
			opts := serverOptions(cfg, !noWebSocket)
			server, err := halolight.New(serverCfg, halolight.ServerDeps{Logger: logger}, opts...)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			go func() {
				<-ctx.Done()
				stopCtx, cancel := context.WithTimeout(context.Background(), stopTimeout)
				defer cancel()
				if err := server.Stop(stopCtx); err != nil {
					logger.Warn("server stop failed", "err", err)
				}
			}()
			logger.Info("http server listening", "addr", serverCfg.HTTP.Addr, "token_format", cfg.Auth.TokenFormat, "users", len(cfg.Auth.SeedUsers))
			if err := server.Start(ctx); err != nil {
				return err
			}
			return server.Wait()
		},
	}
	cmd.Flags().StringVarP(&cfgPath, "config", "c", "", "path to config file")
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides http.addr)")
	cmd.Flags().BoolVar(&noWebSocket, "no-websocket", false, "disable the /api/ws event stream")
	cmd.Flags().BoolVar(&noNotifications, "no-notifications", false, "disable the mock notification feed")
	return cmd
}

func serverOptions(cfg appconfig.Config, websocket bool) []halolight.ServerOption {
	var opts []halolight.ServerOption
	if websocket {
		opts = append(opts, halolight.WithWebSocket())
	}
	if cfg.Notifications.Enabled {
		opts = append(opts, halolight.WithNotifications())
	}
	if cfg.HTTP.EnableMetrics {
		opts = append(opts, halolight.WithMetrics())
	}
	return opts
}

func toServerConfig(cfg appconfig.Config) halolight.ServerConfig {
	return halolight.ServerConfig{
		Service: schema.ServiceConfig{
			StateDir:    cfg.StateDir,
			DefaultSkin: schema.SkinPreset(cfg.Service.DefaultSkin),
			HomeTitle:   cfg.Service.HomeTitle,
			MaxTabs:     cfg.Service.MaxTabs,
		},
		HTTP: toHTTPConfig(cfg.HTTP, cfg.Site),
		Auth: toAuthConfig(cfg.Auth, cfg.HTTP),
		Notifications: halolight.NotificationConfig{
			Interval:    time.Duration(cfg.Notifications.IntervalSeconds) * time.Second,
			Probability: cfg.Notifications.Probability,
		},
		Site: pagemeta.Site{
			Name:        cfg.Site.AppTitle,
			Homepage:    cfg.Site.Homepage,
			Description: cfg.Site.AppDescription,
		},
	}
}

func toHTTPConfig(cfg appconfig.HTTPConfig, site appconfig.SiteConfig) httpapi.Config {
	return httpapi.Config{
		Addr:             cfg.Addr,
		BaseURL:          cfg.BaseURL,
		BasePath:         cfg.BasePath,
		SessionCookie:    cfg.SessionCookie,
		SessionTTLHours:  cfg.SessionTTLHours,
		SessionStorePath: cfg.SessionStorePath,
		AuthCookie:       cfg.AuthCookie,
		UserCookie:       cfg.UserCookie,
		SecureCookies:    cfg.SecureCookies,
		LoginRatePerMin:  cfg.LoginRatePerMin,
		LoginBurst:       cfg.LoginBurst,
		TrustProxy:       cfg.TrustProxy,
		StreamHistory:    cfg.StreamHistory,
		EnableMetrics:    cfg.EnableMetrics,
		Site: httpapi.SiteConfig{
			AppTitle:       site.AppTitle,
			AppDescription: site.AppDescription,
			BrandName:      site.BrandName,
			ShowDemoHint:   site.ShowDemoHint,
			DemoEmail:      site.DemoEmail,
			DemoPassword:   site.DemoPassword,
		},
	}
}

func toAuthConfig(cfg appconfig.AuthConfig, httpCfg appconfig.HTTPConfig) halolight.AuthConfig {
	return halolight.AuthConfig{
		UserFile:       cfg.UserFile,
		TokenFormat:    cfg.TokenFormat,
		JWTSecret:      cfg.JWTSecret,
		JWTIssuer:      cfg.JWTIssuer,
		LoginLatency:   time.Duration(cfg.LoginLatencyMS) * time.Millisecond,
		SessionLatency: time.Duration(cfg.SessionLatencyMS) * time.Millisecond,
		TokenTTL:       time.Duration(httpCfg.AuthTTLHours) * time.Hour,
		RememberTTL:    time.Duration(httpCfg.RememberTTLHours) * time.Hour,
		ResetTTL:       time.Duration(cfg.ResetTokenMinutes) * time.Minute,
		SeedUsers:      cfg.SeedUsers,
	}
}
