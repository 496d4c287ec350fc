package types

// Role represents the role a peer currently plays in the election protocol.
//
// Roles follow this progression during normal operation:
//
//	RoleIdle → RoleCandidate → RoleLeader | RoleFollower
//
// A Leader falls back to RoleCandidate for a re-validation pass after
// suspension or long inactivity, to RoleFollower when it yields to another
// leader, and to RoleIdle on refresh failure, logout or teardown. A Follower
// re-enters RoleCandidate whenever its leader disappears.
type Role int32

const (
	// RoleIdle is the initial role and the role after logout or failure.
	RoleIdle Role = iota

	// RoleCandidate indicates an election (or re-validation pass) is running.
	RoleCandidate

	// RoleLeader indicates this peer fetches and redistributes the credential.
	RoleLeader

	// RoleFollower indicates this peer defers to another peer's leadership.
	RoleFollower
)

// String returns the string representation of the role.
func (r Role) String() string {
	switch r {
	case RoleIdle:
		return "Idle"
	case RoleCandidate:
		return "Candidate"
	case RoleLeader:
		return "Leader"
	case RoleFollower:
		return "Follower"
	default:
		return "Unknown"
	}
}
