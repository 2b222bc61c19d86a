// Package logx adds halolight's identifiers to pslog loggers. Request
// handlers attach a logger that already carries the user; the helpers here
// skip the user field when the context says it is present.
package logx

import (
	"context"

	"pkt.systems/halolight/schema"
	"pkt.systems/pslog"
)

type boundUserKey struct{}

// Ctx returns the logger bound to ctx.
func Ctx(ctx context.Context) pslog.Logger {
	return pslog.Ctx(ctx)
}

// WithUser returns the context logger with a user field.
func WithUser(ctx context.Context, userID schema.UserID) pslog.Logger {
	log := pslog.Ctx(ctx)
	if userID == "" || boundUser(ctx) == userID {
		return log
	}
	return log.With("user", userID)
}

// WithUserTab is WithUser plus a tab field.
func WithUserTab(ctx context.Context, userID schema.UserID, tabID schema.TabID) pslog.Logger {
	log := WithUser(ctx, userID)
	if tabID != "" {
		log = log.With("tab", tabID)
	}
	return log
}

// WithPath adds the page or route path.
func WithPath(log pslog.Logger, path string) pslog.Logger {
	if path == "" {
		return log
	}
	return log.With("path", path)
}

// WithAccount adds the signed-in account's email and role.
func WithAccount(log pslog.Logger, user schema.User) pslog.Logger {
	var kv []any
	if user.Email != "" {
		kv = append(kv, "email", user.Email)
	}
	if user.Role != "" {
		kv = append(kv, "role", user.Role)
	}
	if len(kv) == 0 {
		return log
	}
	return log.With(kv...)
}

// ContextWithUserLogger binds log to ctx and records that it carries userID.
func ContextWithUserLogger(ctx context.Context, log pslog.Logger, userID schema.UserID) context.Context {
	ctx = pslog.ContextWithLogger(ctx, log)
	if userID == "" {
		return ctx
	}
	return context.WithValue(ctx, boundUserKey{}, userID)
}

func boundUser(ctx context.Context) schema.UserID {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(boundUserKey{}).(schema.UserID)
	return id
}
