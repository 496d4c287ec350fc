package credshare

import "github.com/arloliu/credshare/types"

// Re-export types from the internal types package.
//
// This file provides a stable public API for the library's core types and
// interfaces. It uses type aliases to re-export definitions from the `types`
// subpackage, which contains the actual implementations.
//
// This pattern avoids import cycles: bus, claimstore and source depend on
// `types` without depending on the root `credshare` package, while users
// still get a convenient `credshare.Role`, `credshare.Logger`, etc.
type (
	Role              = types.Role
	Claim             = types.Claim
	ClaimEvent        = types.ClaimEvent
	Credential        = types.Credential
	CredentialPayload = types.CredentialPayload
	Issued            = types.Issued
	Message           = types.Message
	Kind              = types.Kind
)

// Re-export interfaces from the internal types package for convenience.
type (
	Bus              = types.Bus
	ClaimStore       = types.ClaimStore
	CredentialSource = types.CredentialSource
	Session          = types.Session
	Subscription     = types.Subscription
	Clock            = types.Clock
	MetricsCollector = types.MetricsCollector
	Logger           = types.Logger
	Hooks            = types.Hooks
)

// Re-export Role constants from the internal types package.
const (
	RoleIdle      = types.RoleIdle
	RoleCandidate = types.RoleCandidate
	RoleLeader    = types.RoleLeader
	RoleFollower  = types.RoleFollower
)
