package credshare

import (
	"github.com/arloliu/credshare/types"
)

// handleMessage dispatches one inbound bus message. Messages from this
// peer never reach here.
func (c *Coordinator) handleMessage(st *peerState, msg Message) {
	role := c.sm.Role()

	c.logger.Debug("bus message received",
		"kind", msg.Kind.String(),
		"sender", msg.SenderID,
		"role", role.String(),
	)

	switch msg.Kind {
	case types.KindLeaderRequest:
		if role == RoleLeader {
			c.announce()
		}

	case types.KindLeaderAnnounce:
		c.onLeaderMessage(st, role, msg, false)

	case types.KindRefresh:
		c.onLeaderMessage(st, role, msg, true)

	case types.KindLeaderFailed, types.KindLeaderLeft:
		if role != RoleFollower && role != RoleIdle {
			return
		}
		if leader := c.LeaderID(); role == RoleFollower && leader != "" && leader != msg.SenderID {
			// A failed candidate or an old leader; ours is still around.
			return
		}
		if c.inCooldown(st) {
			return
		}
		c.startElection(st, msg.Kind.String())

	case types.KindLogout:
		c.logout(st, "logout_message")
	}
}

// onLeaderMessage handles LeaderAnnounce and Refresh, both of which name
// the sender as leader.
func (c *Coordinator) onLeaderMessage(st *peerState, role Role, msg Message, refreshed bool) {
	switch role {
	case RoleLeader:
		c.logger.Warn("another peer claims leadership", "other", msg.SenderID)
		c.resolveConflict(st, msg.SenderID)

	case RoleCandidate, RoleIdle:
		c.becomeFollower(st, msg.SenderID, msg.Payload, msg.Kind.String())

	case RoleFollower:
		if c.LeaderID() != msg.SenderID {
			c.becomeFollower(st, msg.SenderID, msg.Payload, msg.Kind.String())
			return
		}
		if c.cfg.CredentialMode == CredentialModePush {
			if msg.Payload != nil {
				c.adoptPayload(msg.Payload)
			}
			c.ensureCredential(st)

			return
		}
		if refreshed {
			c.pullNow(st)
			return
		}
		c.ensureCredential(st)
	}
}

// pullNow fetches the follower's own credential after a leader refresh,
// regardless of what is cached.
func (c *Coordinator) pullNow(st *peerState) {
	if st.fetching {
		return
	}
	c.startFetch(st, purposePull)
}
