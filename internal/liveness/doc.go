// Package liveness detects visibility changes, user inactivity and process
// suspension for one peer.
//
// The Monitor does not act on what it sees; it turns visibility signals and
// heartbeat measurements into Events for the coordinator loop:
//
//   - EventHidden / EventVisible follow SetVisible calls. EventVisible carries
//     how long the user had been inactive.
//   - EventTick is emitted every heartbeat interval.
//   - EventSuspended replaces a tick when the wall clock advanced much more
//     than one interval since the previous beat, which is what a machine
//     waking from sleep looks like to a process that was frozen.
package liveness
