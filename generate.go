//go:generate go run ./internal/tools/bootstrapgen -o deploy -force

// Package halolight composes the admin shell server: the workspace service,
// mock auth, the HTTP surface and the notification feed.
package halolight
