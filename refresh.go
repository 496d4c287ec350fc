package credshare

import (
	"context"
	"errors"
	"time"

	"github.com/arloliu/credshare/internal/backoff"
	"github.com/arloliu/credshare/types"
)

// fetchPurpose tells the loop what a fetch result is for.
type fetchPurpose int

const (
	// purposeCommit is the leadership fetch of a Candidate.
	purposeCommit fetchPurpose = iota + 1
	// purposeRefresh is a Leader's scheduled or requested refresh.
	purposeRefresh
	// purposePull is a refetch-mode Follower getting its own credential.
	purposePull
)

func (p fetchPurpose) String() string {
	switch p {
	case purposeCommit:
		return "commit"
	case purposeRefresh:
		return "refresh"
	case purposePull:
		return "pull"
	default:
		return "unknown"
	}
}

// fetchResult is reported by a fetch goroutine to the loop.
type fetchResult struct {
	purpose fetchPurpose
	epoch   uint64
	role    Role
	cred    Credential
	err     error
}

// startFetch calls the credential source in a goroutine.
//
// The result carries the current epoch and role so the loop can discard it
// if the peer changed role meanwhile.
func (c *Coordinator) startFetch(st *peerState, purpose fetchPurpose) {
	ctx, cancel := context.WithCancel(c.ctx)
	st.fetchCancel = cancel
	st.fetching = true

	res := fetchResult{purpose: purpose, epoch: st.epoch, role: c.sm.Role()}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer cancel()

		res.cred, res.err = c.fetch(ctx, purpose)

		select {
		case c.results <- res:
		case <-c.ctx.Done():
		}
	}()
}

// fetch performs one credential fetch with bounded retries.
// ErrUnauthenticated is final: retrying with a rejected session is pointless.
func (c *Coordinator) fetch(ctx context.Context, purpose fetchPurpose) (Credential, error) {
	started := time.Now()

	var issued Issued
	attempts, err := backoff.Retry(ctx, c.cfg.Fetch.Attempts, c.policy,
		func(err error) bool { return errors.Is(err, ErrUnauthenticated) },
		func(ctx context.Context, attempt int) error {
			callCtx, cancel := context.WithTimeout(ctx, c.cfg.Fetch.Timeout)
			defer cancel()

			got, err := c.source.FetchCredential(callCtx)
			if err == nil && got.Value == "" {
				err = ErrEmptyCredential
			}
			if err != nil {
				c.logger.Debug("credential fetch attempt failed", "purpose", purpose.String(), "attempt", attempt, "error", err)
				return err
			}
			issued = got

			return nil
		},
	)

	c.metrics.RecordCredentialFetch(purpose.String(), err == nil, time.Since(started).Seconds())
	if err != nil {
		c.logger.Debug("credential fetch failed", "purpose", purpose.String(), "attempts", attempts, "error", err)
		return Credential{}, err
	}

	return Credential{
		Value:    issued.Value,
		Message:  issued.Message,
		IssuedAt: c.now(),
		TTL:      c.cfg.CredentialTTL,
	}, nil
}

// handleFetchResult applies a completed fetch. Results from an older epoch
// or role are dropped, a rejected session included: the next fetch of the
// current epoch sees the same rejection.
func (c *Coordinator) handleFetchResult(st *peerState, res fetchResult) {
	if st.loggedOut || res.epoch != st.epoch || res.role != c.sm.Role() {
		c.logger.Debug("discarding stale fetch result",
			"purpose", res.purpose.String(),
			"result_epoch", res.epoch,
			"epoch", st.epoch,
		)

		return
	}

	st.fetching = false
	st.fetchCancel = nil

	if res.err != nil && errors.Is(res.err, ErrUnauthenticated) {
		c.logger.Warn("credential source rejected the session", "purpose", res.purpose.String(), "error", res.err)
		c.logout(st, "unauthenticated")

		return
	}

	switch res.purpose {
	case purposeCommit:
		if res.err != nil {
			c.abandonLeadership(st, res.err)
			return
		}
		c.commitLeadership(st, res.cred)

	case purposeRefresh:
		if res.err != nil {
			c.relinquish(st, "refresh_failed", res.err)
			return
		}
		c.storeCredential(res.cred)
		_ = c.publish(c.ctx, types.NewRefresh(c.id, c.now(), c.outgoingPayload()))

	case purposePull:
		if res.err != nil {
			st.pullFailedAt = c.now()
			c.logger.Warn("failed to pull credential", "error", res.err)
			c.hooks.Error(c.ctx, res.err)

			return
		}
		st.pullFailedAt = time.Time{}
		c.storeCredential(res.cred)
	}
}

// refreshNow runs one refresh on a Leader. Overlapping refreshes are skipped.
func (c *Coordinator) refreshNow(st *peerState, reason string) {
	if c.sm.Role() != RoleLeader || st.loggedOut {
		return
	}
	if st.fetching {
		c.metrics.RecordRefreshSkipped()
		c.logger.Debug("skipping refresh, fetch in flight", "reason", reason)

		return
	}

	c.logger.Debug("refreshing credential", "reason", reason)
	c.startFetch(st, purposeRefresh)
}

// requestRefresh serves RequestRefresh.
func (c *Coordinator) requestRefresh(st *peerState) {
	switch c.sm.Role() {
	case RoleLeader:
		c.refreshNow(st, "requested")
	case RoleFollower:
		if c.cfg.CredentialMode == CredentialModePush {
			_ = c.publish(c.ctx, types.NewLeaderRequest(c.id, c.now()))
			return
		}
		if !st.fetching {
			c.startFetch(st, purposePull)
		}
	case RoleIdle:
		c.checkLeaderAlive(st, "requested")
	case RoleCandidate:
	}
}

// relinquish gives up leadership after a failed refresh so another peer
// can take over instead of everyone silently going stale.
func (c *Coordinator) relinquish(st *peerState, reason string, err error) {
	c.logger.Warn("relinquishing leadership", "reason", reason, "error", err)
	c.hooks.Error(c.ctx, err)
	c.metrics.RecordRelinquish(reason)

	c.stopLeaderTimers(st)
	c.clearOwnClaim(st, c.ctx)
	_ = c.publish(c.ctx, types.NewLeaderFailed(c.id, c.now()))
	c.setRole(st, RoleIdle, reason)
	st.failedAt = c.now()
}

// ensureCredential makes a Follower obtain a credential when it has none.
func (c *Coordinator) ensureCredential(st *peerState) {
	if c.sm.Role() != RoleFollower || c.cache.FreshFor(0) {
		return
	}

	if c.cfg.CredentialMode == CredentialModePush {
		_ = c.publish(c.ctx, types.NewLeaderRequest(c.id, c.now()))
		return
	}

	if st.fetching {
		return
	}
	if !st.pullFailedAt.IsZero() && c.now().Sub(st.pullFailedAt) < c.cfg.Election.FailureCooldown {
		return
	}
	c.startFetch(st, purposePull)
}

// adoptPayload caches a credential pushed by the leader.
func (c *Coordinator) adoptPayload(p *CredentialPayload) {
	cred := p.Credential()
	if cred.IsZero() || cred.Expired(c.now()) {
		return
	}
	c.storeCredential(cred)
}

// storeCredential caches cred and fires CredentialChanged when the value
// actually changed.
func (c *Coordinator) storeCredential(cred Credential) {
	prev, err := c.cache.Get()
	if !c.cache.Store(cred) {
		return
	}
	if err == nil && prev.Value == cred.Value && prev.IssuedAt.Equal(cred.IssuedAt) {
		return
	}
	c.hooks.CredentialChanged(c.ctx, cred)
}

// outgoingPayload is the credential a Leader puts on the bus: the cached
// value in push mode, nothing in refetch mode.
func (c *Coordinator) outgoingPayload() *CredentialPayload {
	if c.cfg.CredentialMode != CredentialModePush {
		return nil
	}

	cred, err := c.cache.Get()
	if err != nil {
		return nil
	}

	return types.NewCredentialPayload(cred)
}

// pauseRefresh stops the refresh ticker while the peer is hidden. The
// claim keeps being renewed so followers still see a live leader.
func (c *Coordinator) pauseRefresh(st *peerState) {
	if st.refreshTicker == nil || st.refreshPaused {
		return
	}
	st.refreshTicker.Stop()
	st.refreshPaused = true
	c.logger.Debug("refresh paused while hidden")
}

// resumeRefresh restarts the refresh ticker and refreshes at once if the
// cached credential would expire before the next tick.
func (c *Coordinator) resumeRefresh(st *peerState) {
	if st.refreshTicker == nil || !st.refreshPaused {
		return
	}
	st.refreshTicker.Reset(c.cfg.RefreshInterval)
	st.refreshPaused = false
	c.logger.Debug("refresh resumed")

	if !c.cache.FreshFor(c.cfg.RefreshInterval) {
		c.refreshNow(st, "resume")
	}
}
