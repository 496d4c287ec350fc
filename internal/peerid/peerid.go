// Package peerid generates process-unique peer identifiers.
package peerid

import (
	"strings"

	"github.com/google/uuid"
)

// Prefix is prepended to every generated peer ID.
const Prefix = "peer-"

// New returns a fresh peer ID of the form "peer-<uuid v7>".
//
// Version 7 UUIDs are time ordered, so when a claim store is unreachable and
// peers fall back to comparing IDs, the longest-running peer wins.
func New() string {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}

	return Prefix + id.String()
}

// Valid reports whether id looks like a generated peer ID.
func Valid(id string) bool {
	rest, ok := strings.CutPrefix(id, Prefix)
	if !ok {
		return false
	}

	_, err := uuid.Parse(rest)

	return err == nil
}
