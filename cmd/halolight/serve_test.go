package main

import (
	"testing"
	"time"

	"pkt.systems/halolight/internal/appconfig"
	"pkt.systems/halolight/schema"
)

func TestToServerConfig(t *testing.T) {
	cfg, err := appconfig.DefaultConfig()
	if err != nil {
		t.Fatalf("default config: %v", err)
	}
	cfg.Service.DefaultSkin = "blue"
	cfg.HTTP.BasePath = "/admin"
	cfg.Site.ShowDemoHint = true

	got := toServerConfig(cfg)
	if got.Service.DefaultSkin != schema.SkinPreset("blue") || got.Service.StateDir != cfg.StateDir {
		t.Fatalf("unexpected service config %+v", got.Service)
	}
	if got.HTTP.BasePath != "/admin" || got.HTTP.AuthCookie != "auth_token" || got.HTTP.UserCookie != "user_data" {
		t.Fatalf("unexpected http config %+v", got.HTTP)
	}
	if !got.HTTP.Site.ShowDemoHint || got.HTTP.Site.DemoEmail != "admin@halolight.h7ml.cn" {
		t.Fatalf("unexpected site config %+v", got.HTTP.Site)
	}
	if got.Auth.TokenTTL != 24*time.Hour || got.Auth.RememberTTL != 7*24*time.Hour {
		t.Fatalf("unexpected token ttl %v / %v", got.Auth.TokenTTL, got.Auth.RememberTTL)
	}
	if got.Auth.LoginLatency != 500*time.Millisecond || got.Auth.SessionLatency != 200*time.Millisecond {
		t.Fatalf("unexpected latency %v / %v", got.Auth.LoginLatency, got.Auth.SessionLatency)
	}
	if got.Auth.ResetTTL != time.Hour {
		t.Fatalf("unexpected reset ttl %v", got.Auth.ResetTTL)
	}
	if got.Notifications.Interval != 10*time.Second || got.Notifications.Probability != 0.2 {
		t.Fatalf("unexpected notifications %+v", got.Notifications)
	}
	if got.Site.Name != "Admin Pro" {
		t.Fatalf("unexpected site name %q", got.Site.Name)
	}
}

func TestServerOptions(t *testing.T) {
	cfg, err := appconfig.DefaultConfig()
	if err != nil {
		t.Fatalf("default config: %v", err)
	}
	if got := len(serverOptions(cfg, true)); got != 3 {
		t.Fatalf("expected websocket, notifications and metrics, got %d options", got)
	}
	cfg.Notifications.Enabled = false
	cfg.HTTP.EnableMetrics = false
	if got := len(serverOptions(cfg, false)); got != 0 {
		t.Fatalf("expected no options, got %d", got)
	}
}
