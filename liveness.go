package credshare

import (
	"github.com/arloliu/credshare/internal/liveness"
)

// handleLiveness reacts to visibility changes, suspensions and the
// heartbeat.
func (c *Coordinator) handleLiveness(st *peerState, ev liveness.Event) {
	role := c.sm.Role()

	switch ev.Kind {
	case liveness.EventHidden:
		if role == RoleLeader {
			c.pauseRefresh(st)
		}

	case liveness.EventVisible:
		if ev.Inactive >= c.cfg.RefreshInterval+c.cfg.Liveness.InactivityBuffer {
			c.logger.Info("peer visible after long inactivity", "inactive", ev.Inactive, "role", role.String())
			c.afterGap(st, role, "inactive")

			return
		}
		if role == RoleLeader {
			c.resumeRefresh(st)
		}

	case liveness.EventSuspended:
		c.logger.Info("process suspension detected", "gap", ev.Gap, "role", role.String())
		c.afterGap(st, role, "suspended")

	case liveness.EventTick:
		if role != RoleFollower && role != RoleIdle {
			return
		}
		if c.monitor.Visible() {
			c.checkLeaderAlive(st, "leader_lost")
		}
		if c.sm.Role() == RoleFollower && !c.cache.FreshFor(0) {
			c.ensureCredential(st)
		}
	}
}

// afterGap re-checks leadership once the peer may have missed bus traffic.
func (c *Coordinator) afterGap(st *peerState, role Role, reason string) {
	switch role {
	case RoleLeader:
		c.revalidate(st, reason)
	case RoleFollower, RoleIdle:
		c.checkLeaderAlive(st, reason)
		c.ensureCredential(st)
	case RoleCandidate:
	}
}
