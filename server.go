package halolight

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"pkt.systems/halolight/core"
	"pkt.systems/halolight/httpapi"
	"pkt.systems/halolight/internal/appconfig"
	"pkt.systems/halolight/internal/auth"
	"pkt.systems/halolight/internal/eventbus"
	"pkt.systems/halolight/internal/metrics"
	"pkt.systems/halolight/internal/notify"
	"pkt.systems/halolight/internal/pagemeta"
	"pkt.systems/halolight/schema"
	"pkt.systems/pslog"
)

// Server composes the HTTP surface and the notification feed.
type Server interface {
	Start(ctx context.Context) error
	Wait() error
	Stop(ctx context.Context) error
}

// ServerConfig configures the compositor.
type ServerConfig struct {
	Service       schema.ServiceConfig
	HTTP          httpapi.Config
	Auth          AuthConfig
	Notifications NotificationConfig
	Site          pagemeta.Site
}

// AuthConfig defines the user store and token settings.
type AuthConfig struct {
	UserFile       string
	TokenFormat    string
	JWTSecret      string
	JWTIssuer      string
	LoginLatency   time.Duration
	SessionLatency time.Duration
	TokenTTL       time.Duration
	RememberTTL    time.Duration
	ResetTTL       time.Duration
	SeedUsers      []appconfig.SeedUser
}

// NotificationConfig controls the mock notification feed.
type NotificationConfig struct {
	Interval    time.Duration
	Probability float64
}

// ServerDeps captures dependencies required to build the server.
type ServerDeps struct {
	Logger pslog.Logger
	Clock  clockwork.Clock
	// Rand seeds the notification generator. Nil uses a time-seeded source.
	Rand notify.Random
	// EventSink receives tab and settings events next to the streams.
	EventSink core.EventSink
}

// ServerOption toggles compositor components.
type ServerOption func(*serverOptions)

type serverOptions struct {
	enableWebSocket     bool
	enableNotifications bool
	enableMetrics       bool
}

// WithWebSocket serves /api/ws next to the SSE stream.
func WithWebSocket() ServerOption {
	return func(o *serverOptions) { o.enableWebSocket = true }
}

// WithNotifications runs the mock notification generator.
func WithNotifications() ServerOption {
	return func(o *serverOptions) { o.enableNotifications = true }
}

// WithMetrics records Prometheus metrics and serves /metrics.
func WithMetrics() ServerOption {
	return func(o *serverOptions) { o.enableMetrics = true }
}

// New constructs a composable halolight server.
func New(cfg ServerConfig, deps ServerDeps, opts ...ServerOption) (Server, error) {
	options := serverOptions{}
	for _, opt := range opts {
		opt(&options)
	}
	if deps.Clock == nil {
		deps.Clock = clockwork.NewRealClock()
	}
	logger := deps.Logger
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}

	normalized, err := schema.NormalizeServiceConfig(cfg.Service)
	if err != nil {
		return nil, err
	}
	cfg.Service = normalized

	hub := httpapi.NewHub(cfg.HTTP.StreamHistory, deps.Clock)
	var bus *eventbus.Bus
	if options.enableWebSocket {
		bus = eventbus.New(logger)
	}
	var m *metrics.Metrics
	if options.enableMetrics {
		m = metrics.New()
		cfg.HTTP.EnableMetrics = true
	} else {
		cfg.HTTP.EnableMetrics = false
	}

	fanout := newEventFanout(deps.EventSink, hub, bus, m)
	service, err := core.NewService(cfg.Service, core.ServiceDeps{EventSink: fanout, Logger: logger})
	if err != nil {
		return nil, err
	}

	store, err := auth.NewStoreWithLogger(cfg.Auth.UserFile, cfg.Auth.SeedUsers, logger)
	if err != nil {
		return nil, err
	}
	codec, err := NewTokenCodec(cfg.Auth, deps.Clock)
	if err != nil {
		return nil, err
	}
	authService := auth.NewService(store, auth.Options{
		Codec:          codec,
		Clock:          deps.Clock,
		LoginLatency:   cfg.Auth.LoginLatency,
		SessionLatency: cfg.Auth.SessionLatency,
		TokenTTL:       cfg.Auth.TokenTTL,
		RememberTTL:    cfg.Auth.RememberTTL,
		ResetTTL:       cfg.Auth.ResetTTL,
	})

	httpSrv, err := httpapi.NewServer(cfg.HTTP, httpapi.Deps{
		Service: service,
		Auth:    authService,
		Hub:     hub,
		Bus:     bus,
		Pages:   pagemeta.New(cfg.Site),
		Metrics: m,
		Clock:   deps.Clock,
	})
	if err != nil {
		return nil, err
	}

	var generator *notify.Generator
	if options.enableNotifications {
		generator = notify.New(notify.Options{
			Interval:    cfg.Notifications.Interval,
			Probability: cfg.Notifications.Probability,
			Clock:       deps.Clock,
			Rand:        deps.Rand,
			Recipients:  connectedUsers(hub, bus),
			Sink:        fanout,
		})
	}

	return &compositeServer{
		cfg:       cfg,
		options:   options,
		httpSrv:   httpSrv,
		generator: generator,
		listening: make(chan struct{}),
	}, nil
}

// NewTokenCodec picks the token format. "mock" is the default.
func NewTokenCodec(cfg AuthConfig, clock clockwork.Clock) (auth.TokenCodec, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.TokenFormat)) {
	case "", "mock":
		return auth.MockTokens{Clock: clock}, nil
	case "jwt":
		if strings.TrimSpace(cfg.JWTSecret) == "" {
			return nil, errors.New("auth.jwt_secret is required when auth.token_format is jwt")
		}
		return auth.JWTTokens{Secret: []byte(cfg.JWTSecret), Issuer: cfg.JWTIssuer, Clock: clock}, nil
	default:
		return nil, fmt.Errorf("unknown token format %q", cfg.TokenFormat)
	}
}

// connectedUsers merges the users with an open SSE or WebSocket stream.
func connectedUsers(hub *httpapi.Hub, bus *eventbus.Bus) func() []schema.UserID {
	return func() []schema.UserID {
		seen := make(map[schema.UserID]struct{})
		var out []schema.UserID
		add := func(ids []schema.UserID) {
			for _, id := range ids {
				if _, ok := seen[id]; ok {
					continue
				}
				seen[id] = struct{}{}
				out = append(out, id)
			}
		}
		if hub != nil {
			add(hub.Connected())
		}
		if bus != nil {
			add(bus.Users())
		}
		return out
	}
}

type compositeServer struct {
	cfg       ServerConfig
	options   serverOptions
	httpSrv   *httpapi.Server
	generator *notify.Generator
	logger    pslog.Logger

	listening chan struct{}
	addr      net.Addr

	mu      sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	errCh   chan error
	done    chan struct{}
	started bool
}

func (s *compositeServer) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		pslog.Ctx(ctx).Warn("server start rejected", "reason", "already started")
		return errors.New("server already started")
	}
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.errCh = make(chan error, 2)
	s.done = make(chan struct{})
	s.started = true
	s.logger = pslog.Ctx(s.ctx)
	s.mu.Unlock()

	log := s.logger
	log.Info(
		"server start",
		"http_addr", s.cfg.HTTP.Addr,
		"http_base_url", s.cfg.HTTP.BaseURL,
		"http_base_path", s.cfg.HTTP.BasePath,
		"websocket", s.options.enableWebSocket,
		"notifications", s.options.enableNotifications,
		"metrics", s.options.enableMetrics,
	)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		onListen := httpapi.WithOnListen(func(addr net.Addr) {
			s.addr = addr
			close(s.listening)
		})
		if err := httpapi.ListenAndServe(s.ctx, s.cfg.HTTP.Addr, s.httpSrv.Handler(), onListen); err != nil {
			log.Error("http server failed", "err", err)
			s.errCh <- err
		}
	}()
	if s.generator != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := s.generator.Run(s.ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("notify generator failed", "err", err)
				s.errCh <- err
			}
		}()
	}
	go func() {
		wg.Wait()
		close(s.done)
	}()
	return nil
}

// Addr blocks until the HTTP listener is bound and returns its address, or
// returns nil when ctx ends first.
func (s *compositeServer) Addr(ctx context.Context) net.Addr {
	select {
	case <-s.listening:
		return s.addr
	case <-ctx.Done():
		return nil
	}
}

func (s *compositeServer) Wait() error {
	s.mu.Lock()
	ctx := s.ctx
	errCh := s.errCh
	started := s.started
	s.mu.Unlock()
	if !started {
		return errors.New("server not started")
	}

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		if err != nil {
			pslog.Ctx(ctx).Error("server stopped", "err", err)
			_ = s.Stop(context.Background())
			return err
		}
		return nil
	}
}

func (s *compositeServer) Stop(ctx context.Context) error {
	s.mu.Lock()
	cancel := s.cancel
	done := s.done
	started := s.started
	log := s.logger
	s.mu.Unlock()
	if !started {
		return nil
	}
	if log == nil {
		log = pslog.Ctx(context.Background())
	}
	log.Info("server stop requested")
	if cancel != nil {
		cancel()
	}
	if ctx == nil {
		log.Info("server stop completed")
		return nil
	}
	select {
	case <-ctx.Done():
		log.Warn("server stop timed out", "err", ctx.Err())
		return ctx.Err()
	case <-done:
		log.Info("server stopped")
		return nil
	}
}
