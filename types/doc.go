// Package types provides core type definitions and interfaces for the credshare library.
//
// This package contains shared types that are used across multiple packages in the
// credshare library. By keeping these types in a separate package, we avoid import
// cycles between the main credshare package and its transports, claim stores and
// credential sources.
//
// Key types:
//   - Role: Peer role in the election protocol
//   - Credential: Cached credential with freshness metadata
//   - Message: Bus message (closed set of kinds)
//   - Claim: Advisory leadership record held by a ClaimStore
//   - Bus, ClaimStore, CredentialSource, Session: Collaborator interfaces
//   - Logger: Structured logging interface
//   - MetricsCollector: Metrics recording interface
package types
