package httpapi

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"pkt.systems/pslog"
)

type serveConfig struct {
	shutdownTimeout   time.Duration
	readHeaderTimeout time.Duration
	onListen          func(net.Addr)
}

// ServeOption tunes ListenAndServe and Serve.
type ServeOption func(*serveConfig)

// WithShutdownTimeout bounds how long open requests may drain after ctx is
// cancelled. SSE and WebSocket streams end with ctx, so the default is short.
func WithShutdownTimeout(d time.Duration) ServeOption {
	return func(c *serveConfig) {
		if d > 0 {
			c.shutdownTimeout = d
		}
	}
}

// WithOnListen reports the bound address, useful with ":0".
func WithOnListen(fn func(net.Addr)) ServeOption {
	return func(c *serveConfig) { c.onListen = fn }
}

// ListenAndServe listens on addr and serves until ctx is cancelled.
func ListenAndServe(ctx context.Context, addr string, handler http.Handler, opts ...ServeOption) error {
	var lc net.ListenConfig
	listener, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return err
	}
	return Serve(ctx, listener, handler, opts...)
}

// Serve runs handler on listener until ctx is cancelled, then shuts down
// gracefully. A cancelled ctx is a clean exit and returns nil.
func Serve(ctx context.Context, listener net.Listener, handler http.Handler, opts ...ServeOption) error {
	cfg := serveConfig{shutdownTimeout: 10 * time.Second, readHeaderTimeout: 10 * time.Second}
	for _, opt := range opts {
		opt(&cfg)
	}
	logger := pslog.Ctx(ctx)
	server := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: cfg.readHeaderTimeout,
		ErrorLog:          pslog.LogLoggerWithLevel(logger, pslog.ErrorLevel),
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	logger.Info("http listening", "addr", listener.Addr().String())
	if cfg.onListen != nil {
		cfg.onListen(listener.Addr())
	}

	errCh := make(chan error, 1)
	go func() { errCh <- server.Serve(listener) }()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown incomplete", "err", err)
		_ = server.Close()
	}
	logger.Info("http stopped")
	return nil
}
