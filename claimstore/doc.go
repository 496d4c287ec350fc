// Package claimstore provides types.ClaimStore implementations.
//
// A claim store holds one advisory leadership record per session. Peers
// consult it only when the bus leaves an election ambiguous, and a Leader
// renews its record periodically so others can tell a live leader from a
// crashed one.
//
// Backends:
//   - NATSKV: JetStream key/value bucket (the default)
//   - Redis: string key plus a pub/sub channel for change notifications
//   - Bolt: bbolt file, for single-process deployments that want the claim
//     to survive restarts
//   - Memory: in-process, with failure injection for tests
//
// Every backend stores the claim as JSON {"peerId": ..., "claimedAt": ...}.
package claimstore
