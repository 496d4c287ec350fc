package types

import (
	"context"
	"time"
)

// Issued is the raw result of a successful credential source call.
type Issued struct {
	// Value is the credential itself (for example a signed embed URL).
	Value string

	// Message is an optional human readable note returned by the source.
	Message string
}

// Credential is a cached credential together with its freshness metadata.
//
// A Credential must never be handed to a consumer once Expired reports true.
type Credential struct {
	Value    string
	Message  string
	IssuedAt time.Time
	TTL      time.Duration
}

// IsZero reports whether the credential carries no value.
func (c Credential) IsZero() bool {
	return c.Value == ""
}

// ExpiresAt returns the instant at which the credential stops being usable.
func (c Credential) ExpiresAt() time.Time {
	return c.IssuedAt.Add(c.TTL)
}

// Expired reports whether now is at or past the credential expiry.
func (c Credential) Expired(now time.Time) bool {
	return !now.Before(c.ExpiresAt())
}

// Remaining returns how long the credential stays valid from now, or zero.
func (c Credential) Remaining(now time.Time) time.Duration {
	d := c.ExpiresAt().Sub(now)
	if d < 0 {
		return 0
	}

	return d
}

// CredentialSource issues fresh credentials.
//
// Implementations must be safe for concurrent use. Errors wrapping
// ErrUnauthenticated signal that the caller's session is no longer valid.
type CredentialSource interface {
	// FetchCredential performs one authenticated issue call.
	FetchCredential(ctx context.Context) (Issued, error)
}

// Session supplies the bearer token for credential source calls and
// announces when the user's session ends.
type Session interface {
	// Token returns the current bearer token, or ErrUnauthenticated if none.
	Token(ctx context.Context) (string, error)

	// LoggedOut returns a channel closed once the session has ended.
	LoggedOut() <-chan struct{}
}
