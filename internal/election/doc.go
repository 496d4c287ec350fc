// Package election provides the validated role state machine of a peer.
//
// The election algorithm itself (jitter window, claim check, grace period,
// commit) runs on the coordinator event loop; this package only guards
// which role changes are legal and fans role updates out to subscribers.
package election
