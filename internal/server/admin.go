package server

import (
	"context"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// AdminPasswordHeader carries the admin password in gRPC metadata.
const AdminPasswordHeader = "x-admin-password"

type adminKey struct{}

// WithAdmin marks ctx as carrying verified admin credentials.
func WithAdmin(ctx context.Context) context.Context {
	return context.WithValue(ctx, adminKey{}, true)
}

// IsAdmin reports whether ctx carries verified admin credentials.
func IsAdmin(ctx context.Context) bool {
	ok, _ := ctx.Value(adminKey{}).(bool)
	return ok
}

// AdminAuthenticator checks passwords against the configured bcrypt hash.
type AdminAuthenticator struct {
	hash []byte
}

// NewAdminAuthenticator returns an authenticator for hash. An empty hash
// disables admin access.
func NewAdminAuthenticator(hash string) *AdminAuthenticator {
	return &AdminAuthenticator{hash: []byte(strings.TrimSpace(hash))}
}

// Enabled reports whether a hash is configured.
func (a *AdminAuthenticator) Enabled() bool {
	return len(a.hash) > 0
}

// Verify reports whether password matches the configured hash.
func (a *AdminAuthenticator) Verify(password string) bool {
	if !a.Enabled() || password == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword(a.hash, []byte(password)) == nil
}
