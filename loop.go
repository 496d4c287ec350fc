package credshare

import (
	"context"
	"errors"
	"time"

	"github.com/arloliu/credshare/internal/liveness"
	"github.com/arloliu/credshare/types"
)

type commandKind int

const (
	cmdRefresh commandKind = iota + 1
	cmdLogout
	cmdStop
)

// command is a request from a public method to the event loop.
type command struct {
	kind  commandKind
	ctx   context.Context //nolint:containedctx // carries the caller's deadline into the loop
	reply chan error
}

// electionPhase tracks where a Candidate is in the election algorithm.
type electionPhase int

const (
	phaseNone electionPhase = iota
	// phaseJitter waits for a LeaderAnnounce after LeaderRequest.
	phaseJitter
	// phaseGrace waits for racing claim writers after writing the own claim.
	phaseGrace
	// phaseCommit waits for the leadership fetch.
	phaseCommit
)

// peerState is owned by the event loop goroutine. Nothing else reads it.
type peerState struct {
	// epoch increments on every role change; fetch results from an older
	// epoch are discarded.
	epoch uint64

	phase           electionPhase
	electionTimer   *time.Timer
	electionStarted time.Time

	refreshTicker *time.Ticker
	renewTicker   *time.Ticker
	refreshPaused bool

	fetching    bool
	fetchCancel context.CancelFunc

	// claimWritten is true while the store may hold this peer's claim.
	claimWritten bool

	// failedAt starts the failure cooldown.
	failedAt time.Time

	// pullFailedAt rate-limits follower pulls while the source is down.
	pullFailedAt time.Time

	loggedOut bool
}

func timerC(t *time.Timer) <-chan time.Time {
	if t == nil {
		return nil
	}

	return t.C
}

func tickerC(t *time.Ticker) <-chan time.Time {
	if t == nil {
		return nil
	}

	return t.C
}

// run is the event loop. It owns peerState and is the only goroutine that
// changes the role.
func (c *Coordinator) run() {
	defer close(c.loopDone)

	st := &peerState{}
	defer c.stopTimers(st)

	var sessionDone <-chan struct{}
	if c.session != nil {
		sessionDone = c.session.LoggedOut()
	}

	c.startElection(st, "startup")

	for {
		select {
		case <-c.ctx.Done():
			c.cancelFetch(st)
			return

		case cmd := <-c.commands:
			if c.handleCommand(st, cmd) {
				return
			}

		case msg := <-c.inbox:
			if st.loggedOut {
				continue
			}
			c.handleMessage(st, msg)

		case ev := <-c.claimEvents:
			if st.loggedOut {
				continue
			}
			c.handleClaimEvent(st, ev)

		case res := <-c.results:
			c.handleFetchResult(st, res)

		case ev := <-c.monitor.Events():
			if st.loggedOut {
				continue
			}
			c.handleLiveness(st, ev)

		case <-timerC(st.electionTimer):
			st.electionTimer = nil
			c.handleElectionTimer(st)

		case <-tickerC(st.refreshTicker):
			c.refreshNow(st, "scheduled")

		case <-tickerC(st.renewTicker):
			c.renewClaim(st)

		case <-sessionDone:
			sessionDone = nil
			c.logout(st, "session_logged_out")
		}
	}
}

// handleCommand runs a public method request. It reports whether the loop must exit.
func (c *Coordinator) handleCommand(st *peerState, cmd command) bool {
	switch cmd.kind {
	case cmdRefresh:
		if st.loggedOut {
			cmd.reply <- ErrLoggedOut
			return false
		}
		c.requestRefresh(st)
		cmd.reply <- nil

	case cmdLogout:
		err := c.publish(cmd.ctx, types.NewLogout(c.id, c.now()))
		c.logout(st, "broadcast")
		cmd.reply <- err

	case cmdStop:
		c.teardown(st, cmd.ctx)
		cmd.reply <- nil

		return true
	}

	return false
}

// setRole moves to role to and starts a new epoch.
//
// Leaving Leader stops the leader timers; every role change cancels the
// in-flight fetch and the election timer.
func (c *Coordinator) setRole(st *peerState, to Role, reason string) bool {
	from, err := c.sm.Transition(to)
	if err != nil {
		c.logger.Warn("refusing role transition", "from", from.String(), "to", to.String(), "reason", reason, "error", err)
		return false
	}

	st.epoch++
	st.phase = phaseNone
	c.stopElectionTimer(st)
	c.cancelFetch(st)
	if from == RoleLeader {
		c.stopLeaderTimers(st)
	}

	switch to {
	case RoleLeader:
		c.leaderID.Store(c.id)
		c.metrics.RecordLeadershipChange(c.id)
	case RoleIdle, RoleCandidate:
		c.leaderID.Store("")
	}
	if from == RoleLeader {
		c.metrics.RecordLeadershipChange("")
	}

	c.logger.Info("role changed",
		"from", from.String(),
		"to", to.String(),
		"reason", reason,
		"epoch", st.epoch,
	)
	c.hooks.RoleChanged(c.ctx, from, to)

	return true
}

func (c *Coordinator) stopElectionTimer(st *peerState) {
	if st.electionTimer != nil {
		st.electionTimer.Stop()
		st.electionTimer = nil
	}
}

func (c *Coordinator) stopLeaderTimers(st *peerState) {
	if st.refreshTicker != nil {
		st.refreshTicker.Stop()
		st.refreshTicker = nil
	}
	if st.renewTicker != nil {
		st.renewTicker.Stop()
		st.renewTicker = nil
	}
	st.refreshPaused = false
}

func (c *Coordinator) stopTimers(st *peerState) {
	c.stopElectionTimer(st)
	c.stopLeaderTimers(st)
}

func (c *Coordinator) cancelFetch(st *peerState) {
	if st.fetchCancel != nil {
		st.fetchCancel()
		st.fetchCancel = nil
	}
	st.fetching = false
}

// inCooldown reports whether a recent failure keeps this peer out of elections.
func (c *Coordinator) inCooldown(st *peerState) bool {
	if st.failedAt.IsZero() {
		return false
	}

	return c.now().Sub(st.failedAt) < c.cfg.Election.FailureCooldown
}

// publish sends msg on the bus. Failures are logged; the bus is best effort.
func (c *Coordinator) publish(parent context.Context, msg Message) error {
	if parent == nil {
		parent = c.ctx
	}
	ctx, cancel := c.withTimeout(parent)
	defer cancel()

	if err := c.bus.Publish(ctx, msg); err != nil {
		c.logger.Warn("failed to publish bus message", "kind", msg.Kind.String(), "error", err)
		c.hooks.Error(c.ctx, err)

		return err
	}
	c.metrics.RecordBusMessage(msg.Kind.String(), "out")

	return nil
}

// logout resets the peer after the session ended. The peer ignores all
// further bus traffic until Stop.
func (c *Coordinator) logout(st *peerState, reason string) {
	if st.loggedOut {
		return
	}
	st.loggedOut = true
	c.loggedOut.Store(true)

	c.cancelFetch(st)
	c.stopTimers(st)
	c.clearOwnClaim(st, c.ctx)
	if c.sm.Role() != RoleIdle {
		c.setRole(st, RoleIdle, "logout")
	}
	c.leaderID.Store("")
	c.clearCache()

	if err := c.monitor.Stop(); err != nil && !errors.Is(err, liveness.ErrNotStarted) {
		c.logger.Warn("failed to stop liveness monitor", "error", err)
	}

	c.logger.Info("session logged out", "reason", reason)
	c.settle()
}

// teardown runs the Stop sequence on the loop.
func (c *Coordinator) teardown(st *peerState, ctx context.Context) {
	if c.sm.Role() == RoleLeader {
		_ = c.publish(ctx, types.NewLeaderLeft(c.id, c.now()))
	}

	c.cancelFetch(st)
	c.stopTimers(st)
	c.clearOwnClaim(st, ctx)
	if c.sm.Role() != RoleIdle {
		c.setRole(st, RoleIdle, "stop")
	}
	c.clearCache()
}

func (c *Coordinator) clearCache() {
	if c.cache.Clear() {
		c.hooks.CredentialChanged(c.ctx, Credential{})
	}
}
