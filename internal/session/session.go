// Package session carries the authenticated caller through a request.
package session

import (
	"context"
	"strconv"
)

// Session is the authenticated caller. The access token is forwarded to the
// backend as a bearer token on every call made on the caller's behalf.
type Session struct {
	AccessToken string
	Subject     string
	TenantID    string
	Scopes      []string
}

type (
	contextKey     struct{}
	correlationKey struct{}
)

// WithContext returns a copy of ctx carrying s.
func WithContext(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, contextKey{}, s)
}

// FromContext returns the session stored in ctx, or nil.
func FromContext(ctx context.Context) *Session {
	s, _ := ctx.Value(contextKey{}).(*Session)
	return s
}

// Valid reports whether s can authenticate a backend call.
func (s *Session) Valid() bool {
	return s != nil && s.AccessToken != ""
}

// Key identifies the caller's workspace. Both parts are quoted so that no
// pair of tenant and subject values can produce the key of another pair.
func (s *Session) Key() string {
	return strconv.Quote(s.TenantID) + "/" + strconv.Quote(s.Subject)
}

// HasScope checks if the session has a specific scope.
func (s *Session) HasScope(scope string) bool {
	if s == nil {
		return false
	}
	for _, sc := range s.Scopes {
		if sc == scope {
			return true
		}
	}
	return false
}

// WithCorrelationID returns a copy of ctx carrying the request correlation id.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationKey{}, id)
}

// CorrelationID returns the correlation id stored in ctx, or "".
func CorrelationID(ctx context.Context) string {
	id, _ := ctx.Value(correlationKey{}).(string)
	return id
}
