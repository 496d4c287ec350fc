// Package hash derives transport names from session identifiers.
package hash

import (
	"strconv"

	"github.com/zeebo/xxh3"
)

// SessionToken returns a stable 16 hex digit token for sessionID.
//
// Session identifiers are user controlled and may contain characters that
// are not valid in NATS subjects, KV keys or Redis channel names; the token
// is safe in all of them and keeps raw identifiers out of the transport.
//
// Parameters:
//   - sessionID: Logical session identifier
//
// Returns:
//   - string: Lowercase hex encoding of the 64-bit xxh3 hash, zero padded
func SessionToken(sessionID string) string {
	s := strconv.FormatUint(xxh3.HashString(sessionID), 16)
	if len(s) < 16 {
		s = "0000000000000000"[len(s):] + s
	}

	return s
}

// Subject returns the bus subject for a session under prefix.
func Subject(prefix, sessionID string) string {
	return prefix + "." + SessionToken(sessionID)
}

// ClaimKey returns the claim store key for a session.
func ClaimKey(sessionID string) string {
	return "claim." + SessionToken(sessionID)
}
