package types

import "errors"

// Sentinel errors for the credshare library.
//
// These errors provide type-safe error checking using errors.Is() and errors.As().
// All components should use these sentinel errors for known error conditions
// and wrap external errors with context using fmt.Errorf("%s: %w", msg, err).
//
// Error Naming Convention:
//   - Use descriptive names with Err prefix
//   - Group by component (Coordinator, Cache, Bus, ClaimStore, Source)
//   - Use consistent messages across similar error types

// Coordinator errors - Public API errors returned by the Coordinator.
var (
	// ErrInvalidConfig is returned when the configuration is invalid.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrNATSConnectionRequired is returned when no NATS connection is given
	// and no custom bus or claim store replaces the NATS defaults.
	ErrNATSConnectionRequired = errors.New("NATS connection is required")

	// ErrCredentialSourceRequired is returned when the credential source is nil.
	ErrCredentialSourceRequired = errors.New("credential source is required")

	// ErrAlreadyStarted is returned when Start is called on a running coordinator.
	ErrAlreadyStarted = errors.New("coordinator already started")

	// ErrNotStarted is returned when operations require a started coordinator.
	ErrNotStarted = errors.New("coordinator not started")

	// ErrStopped is returned when a stopped coordinator is used again.
	ErrStopped = errors.New("coordinator stopped")

	// ErrStartupTimeout is returned when the first election does not settle in time.
	ErrStartupTimeout = errors.New("startup timeout waiting for election")

	// ErrLoggedOut is returned by operations issued after the session logged out.
	ErrLoggedOut = errors.New("session logged out")
)

// Cache errors - returned to consumers reading the credential.
var (
	// ErrNoCredential is returned when no credential has been obtained yet.
	ErrNoCredential = errors.New("no credential available")

	// ErrCredentialExpired is returned when the cached credential passed its TTL.
	ErrCredentialExpired = errors.New("credential expired")
)

// Bus errors - message encoding and validation.
var (
	// ErrInvalidMessage is returned for malformed bus messages.
	ErrInvalidMessage = errors.New("invalid bus message")

	// ErrUnknownKind is returned for messages with an unknown kind.
	ErrUnknownKind = errors.New("unknown message kind")

	// ErrUnknownCodec is returned when a codec name is not recognized.
	ErrUnknownCodec = errors.New("unknown codec")

	// ErrBusClosed is returned when publishing on a closed bus.
	ErrBusClosed = errors.New("bus closed")
)

// ClaimStore errors.
var (
	// ErrStoreClosed is returned when a closed claim store is used.
	ErrStoreClosed = errors.New("claim store closed")

	// ErrInvalidClaim is returned when a stored claim cannot be decoded.
	ErrInvalidClaim = errors.New("invalid claim record")
)

// Source errors - returned by credential sources and sessions.
var (
	// ErrUnauthenticated is returned when the session token is missing or rejected.
	ErrUnauthenticated = errors.New("unauthenticated")

	// ErrEmptyCredential is returned when the source answered without a value.
	ErrEmptyCredential = errors.New("empty credential in response")
)
