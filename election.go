package credshare

import (
	"context"
	"time"

	"github.com/arloliu/credshare/internal/backoff"
	"github.com/arloliu/credshare/internal/natsutil"
	"github.com/arloliu/credshare/types"
)

// Election outcomes recorded by metrics.
const (
	outcomeLeader   = "leader"
	outcomeFollower = "follower"
	outcomeFailed   = "failed"
)

// startElection enters Candidate and publishes LeaderRequest. The claim
// check runs when the jitter timer fires, unless a leader answers first.
func (c *Coordinator) startElection(st *peerState, reason string) {
	if st.loggedOut {
		return
	}

	role := c.sm.Role()
	if role == RoleCandidate || role == RoleLeader {
		return
	}

	if !c.setRole(st, RoleCandidate, reason) {
		return
	}
	st.electionStarted = time.Now()

	_ = c.publish(c.ctx, types.NewLeaderRequest(c.id, c.now()))

	wait := backoff.Uniform(c.cfg.Election.JitterMin, c.cfg.Election.JitterMax, c.rng)
	st.phase = phaseJitter
	st.electionTimer = time.NewTimer(wait)

	c.logger.Debug("election started", "reason", reason, "jitter", wait, "epoch", st.epoch)
}

// revalidate confirms leadership after a suspension or long inactivity.
//
// The peer enters Candidate and runs the claim check directly, without a
// LeaderRequest round: a live leader elsewhere is visible through its claim.
func (c *Coordinator) revalidate(st *peerState, reason string) {
	if st.loggedOut {
		return
	}

	c.metrics.RecordRevalidation(reason)
	if c.sm.Role() != RoleCandidate {
		if !c.setRole(st, RoleCandidate, "revalidate_"+reason) {
			return
		}
	}
	st.electionStarted = time.Now()

	c.contestClaim(st)
}

func (c *Coordinator) handleElectionTimer(st *peerState) {
	if c.sm.Role() != RoleCandidate {
		return
	}

	switch st.phase {
	case phaseJitter:
		c.contestClaim(st)
	case phaseGrace:
		c.confirmClaim(st)
	case phaseNone, phaseCommit:
	}
}

// contestClaim consults the claim store and, if no live leader holds it,
// writes the own claim and waits out the grace period.
//
// A store error counts as "no claim": the peer falls through to commit and
// accepts the risk of a duplicate leader during a store outage.
func (c *Coordinator) contestClaim(st *peerState) {
	claim, ok, err := c.getClaim()
	if err == nil && ok && claim.PeerID != c.id && claim.Fresh(c.now(), c.cfg.Election.ClaimFreshnessWindow) {
		c.logger.Debug("fresh claim held by another peer", "leader", claim.PeerID)
		c.becomeFollower(st, claim.PeerID, nil, "fresh_claim")

		return
	}

	c.setOwnClaim(st)

	st.phase = phaseGrace
	st.electionTimer = time.NewTimer(c.cfg.Election.GracePeriod)
}

// confirmClaim re-reads the store after the grace period and commits if the
// claim is still this peer's (or absent).
func (c *Coordinator) confirmClaim(st *peerState) {
	claim, ok, err := c.getClaim()
	if err == nil && ok && claim.PeerID != c.id {
		c.metrics.RecordClaimConflict()
		c.logger.Info("benign election race, another peer claimed last", "leader", claim.PeerID)
		c.becomeFollower(st, claim.PeerID, nil, "claim_race")

		return
	}

	st.phase = phaseCommit
	c.startFetch(st, purposeCommit)
}

// commitLeadership turns a successful leadership fetch into leadership.
func (c *Coordinator) commitLeadership(st *peerState, cred Credential) {
	c.storeCredential(cred)

	if !c.setRole(st, RoleLeader, "commit") {
		return
	}

	// The claim was written before the fetch; rewrite it so it is fresh.
	c.setOwnClaim(st)

	st.refreshTicker = time.NewTicker(c.cfg.RefreshInterval)
	st.renewTicker = time.NewTicker(c.cfg.Election.ClaimRenewInterval)
	st.refreshPaused = false
	if !c.monitor.Visible() {
		c.pauseRefresh(st)
	}

	c.announce()
	c.metrics.RecordElection(outcomeLeader, time.Since(st.electionStarted).Seconds())
	c.settle()
}

// abandonLeadership handles an exhausted leadership fetch.
func (c *Coordinator) abandonLeadership(st *peerState, err error) {
	c.logger.Warn("leadership attempt failed, credential source unavailable", "error", err)
	c.hooks.Error(c.ctx, err)

	_ = c.publish(c.ctx, types.NewLeaderFailed(c.id, c.now()))
	c.clearOwnClaim(st, c.ctx)
	c.setRole(st, RoleIdle, "commit_failed")
	st.failedAt = c.now()

	c.metrics.RecordElection(outcomeFailed, time.Since(st.electionStarted).Seconds())
	c.settle()
}

// becomeFollower adopts leaderID as leader.
//
// payload is the credential carried by the leader's message, if any.
func (c *Coordinator) becomeFollower(st *peerState, leaderID string, payload *CredentialPayload, reason string) {
	role := c.sm.Role()
	if role == RoleCandidate && st.phase != phaseNone {
		c.metrics.RecordElection(outcomeFollower, time.Since(st.electionStarted).Seconds())
	}

	if role != RoleFollower {
		if !c.setRole(st, RoleFollower, reason) {
			return
		}
	}

	// A yielding candidate may have written its claim already.
	c.clearOwnClaim(st, c.ctx)

	if c.LeaderID() != leaderID {
		c.leaderID.Store(leaderID)
		c.logger.Info("following leader", "leader", leaderID, "reason", reason)
	}

	c.settle()

	if payload != nil && c.cfg.CredentialMode == CredentialModePush {
		c.adoptPayload(payload)
	}
	c.ensureCredential(st)
}

// resolveConflict settles a Leader seeing signs of another leader. The
// claim store decides; when it cannot be read the lower peer ID wins.
func (c *Coordinator) resolveConflict(st *peerState, other string) {
	c.metrics.RecordClaimConflict()

	claim, ok, err := c.getClaim()
	switch {
	case err != nil:
		if other < c.id {
			c.logger.Info("benign leadership race, yielding to lower peer ID", "leader", other)
			c.becomeFollower(st, other, nil, "conflict_peer_id")
		} else {
			c.announce()
		}

	case ok && claim.PeerID == c.id:
		c.logger.Info("benign leadership race, claim confirms this peer", "other", other)
		c.announce()

	case ok && claim.Fresh(c.now(), c.cfg.Election.ClaimFreshnessWindow):
		c.logger.Info("benign leadership race, yielding to claim holder", "leader", claim.PeerID)
		c.becomeFollower(st, claim.PeerID, nil, "conflict_claim")

	default:
		c.setOwnClaim(st)
		c.announce()
	}
}

// announce publishes LeaderAnnounce, with the credential in push mode.
func (c *Coordinator) announce() {
	_ = c.publish(c.ctx, types.NewLeaderAnnounce(c.id, c.now(), c.outgoingPayload()))
}

// checkLeaderAlive starts an election when no live leader holds the claim.
// Store errors are ignored so an outage never triggers elections.
func (c *Coordinator) checkLeaderAlive(st *peerState, reason string) {
	role := c.sm.Role()
	if role != RoleFollower && role != RoleIdle {
		return
	}
	if c.inCooldown(st) {
		return
	}

	claim, ok, err := c.getClaim()
	if err != nil {
		return
	}

	if ok && claim.PeerID != c.id && claim.Fresh(c.now(), c.cfg.Election.ClaimFreshnessWindow) {
		if role == RoleIdle || c.LeaderID() != claim.PeerID {
			c.becomeFollower(st, claim.PeerID, nil, "fresh_claim")
		}

		return
	}

	c.startElection(st, reason)
}

func (c *Coordinator) handleClaimEvent(st *peerState, ev ClaimEvent) {
	if c.sm.Role() != RoleLeader {
		return
	}

	if ev.Deleted {
		// Only the owner clears a claim, so this is an expiry of our own.
		c.setOwnClaim(st)
		return
	}

	if ev.Claim.PeerID != c.id {
		c.resolveConflict(st, ev.Claim.PeerID)
	}
}

func (c *Coordinator) getClaim() (Claim, bool, error) {
	ctx, cancel := c.withTimeout(c.ctx)
	defer cancel()

	claim, ok, err := c.store.Get(ctx)
	if err != nil {
		c.storeError("get", err)
	}

	return claim, ok, err
}

func (c *Coordinator) setOwnClaim(st *peerState) {
	ctx, cancel := c.withTimeout(c.ctx)
	defer cancel()

	if err := c.store.Set(ctx, Claim{PeerID: c.id, ClaimedAt: c.now()}); err != nil {
		c.storeError("set", err)
		return
	}
	st.claimWritten = true
}

func (c *Coordinator) clearOwnClaim(st *peerState, parent context.Context) {
	if !st.claimWritten {
		return
	}
	if parent == nil || parent.Err() != nil {
		parent = context.Background()
	}

	ctx, cancel := c.withTimeout(parent)
	defer cancel()

	if err := c.store.Clear(ctx, c.id); err != nil {
		c.storeError("clear", err)
		return
	}
	st.claimWritten = false
}

// renewClaim keeps a Leader's claim fresh.
func (c *Coordinator) renewClaim(st *peerState) {
	if c.sm.Role() != RoleLeader {
		return
	}
	c.setOwnClaim(st)
}

func (c *Coordinator) storeError(op string, err error) {
	c.metrics.RecordClaimStoreError(op)
	if natsutil.IsConnectivityError(err) {
		c.logger.Warn("claim store unreachable", "operation", op, "error", err)
		return
	}
	c.logger.Error("claim store operation failed", "operation", op, "error", err)
	c.hooks.Error(c.ctx, err)
}
