package source

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/arloliu/credshare/types"
)

// Static implements a credential source that returns a fixed value.
type Static struct {
	mu     sync.RWMutex
	issued types.Issued
	err    error
	calls  atomic.Int64
}

var _ types.CredentialSource = (*Static)(nil)

// NewStatic creates a new static credential source.
//
// The source returns the same value on every call until Update or SetError
// changes it. Useful for testing and for demos without an issue endpoint.
//
// Parameters:
//   - value: Credential value to return
//
// Returns:
//   - *Static: Initialized static source
//
// Example:
//
//	src := source.NewStatic("https://embed.example.com/report?sig=abc")
//	coord, err := credshare.NewCoordinator(&cfg, nc, src)
//	if err != nil { /* handle */ }
func NewStatic(value string) *Static {
	return &Static{issued: types.Issued{Value: value}}
}

// FetchCredential returns the current value, or the injected error.
//
// Returns:
//   - types.Issued: The fixed credential
//   - error: Error set by SetError, ErrEmptyCredential for an empty value,
//     or the context error
func (s *Static) FetchCredential(ctx context.Context) (types.Issued, error) {
	s.calls.Add(1)

	if err := ctx.Err(); err != nil {
		return types.Issued{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.err != nil {
		return types.Issued{}, s.err
	}
	if s.issued.Value == "" {
		return types.Issued{}, types.ErrEmptyCredential
	}

	return s.issued, nil
}

// Update replaces the returned value.
//
// This allows the static source to simulate the issuer minting a new
// credential, which is useful for testing refresh scenarios.
//
// Parameters:
//   - value: New credential value
//   - message: Optional note returned alongside the value
func (s *Static) Update(value, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.issued = types.Issued{Value: value, Message: message}
}

// SetError makes every subsequent call fail with err. Pass nil to recover.
func (s *Static) SetError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.err = err
}

// Calls returns how many times FetchCredential was invoked.
func (s *Static) Calls() int64 {
	return s.calls.Load()
}
