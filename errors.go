package credshare

import "github.com/arloliu/credshare/types"

// Sentinel errors returned by the Coordinator.
//
// They are the same values as in package types, so errors.Is works with
// either name.
var (
	// ErrInvalidConfig is returned when the configuration is invalid.
	ErrInvalidConfig = types.ErrInvalidConfig

	// ErrNATSConnectionRequired is returned when the NATS connection is nil
	// and no custom bus and claim store were provided.
	ErrNATSConnectionRequired = types.ErrNATSConnectionRequired

	// ErrCredentialSourceRequired is returned when the credential source is nil.
	ErrCredentialSourceRequired = types.ErrCredentialSourceRequired

	// ErrAlreadyStarted is returned when Start is called on a running coordinator.
	ErrAlreadyStarted = types.ErrAlreadyStarted

	// ErrNotStarted is returned when an operation needs a started coordinator.
	ErrNotStarted = types.ErrNotStarted

	// ErrStopped is returned when a stopped coordinator is used again.
	ErrStopped = types.ErrStopped

	// ErrStartupTimeout is returned when the first election does not settle in time.
	ErrStartupTimeout = types.ErrStartupTimeout

	// ErrLoggedOut is returned once the session has logged out.
	ErrLoggedOut = types.ErrLoggedOut

	// ErrNoCredential is returned while no credential has been obtained.
	ErrNoCredential = types.ErrNoCredential

	// ErrCredentialExpired is returned when the cached credential passed its TTL.
	ErrCredentialExpired = types.ErrCredentialExpired

	// ErrUnauthenticated is returned by sources when the session is rejected.
	ErrUnauthenticated = types.ErrUnauthenticated

	// ErrEmptyCredential is returned by sources that answered without a value.
	ErrEmptyCredential = types.ErrEmptyCredential

	// ErrInvalidMessage is returned for malformed bus messages.
	ErrInvalidMessage = types.ErrInvalidMessage

	// ErrUnknownKind is returned for bus messages of an unknown kind.
	ErrUnknownKind = types.ErrUnknownKind

	// ErrStoreClosed is returned when a closed claim store is used.
	ErrStoreClosed = types.ErrStoreClosed
)
