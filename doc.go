// Package credshare lets several instances of one client session share a
// single short-lived credential (for example a signed dashboard embed URL)
// so that only one of them talks to the issuing backend.
//
// Every instance of a session runs a Coordinator. The coordinators elect one
// Leader over a broadcast bus and a single-slot claim store. The Leader
// fetches the credential, refreshes it before it expires and tells the
// others. Followers either pull their own copy when told (refetch mode) or
// take the copy carried on the bus (push mode). Leadership moves on its own
// when the leader stops, fails to refresh, logs out, or is suspended.
//
// # Quick Start
//
// Basic usage with default settings:
//
//	import "github.com/arloliu/credshare"
//
//	cfg := credshare.DefaultConfig()
//	cfg.SessionID = sessionID
//
//	session := source.NewTokenSession(token)
//	src := source.NewHTTP("https://backend.example.com/embed-url", session)
//
//	coord, err := credshare.NewCoordinator(&cfg, natsConn, src,
//	    credshare.WithSession(session),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := coord.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer coord.Stop(context.Background())
//
//	cred, err := coord.Credential()
//
// # Key Features
//
//   - One issue call per refresh interval for the whole session, not per instance
//   - Claim store arbitration so racing candidates settle on one leader
//   - Failover on LeaderLeft, LeaderFailed, or a stale claim
//   - Sleep and inactivity detection that re-validates leadership
//   - Session-wide logout
//
// # Roles
//
// A peer is always in one role:
//
//	Idle → Candidate → Leader | Follower
//
// Candidates ask for a leader, wait a random jitter, check the claim store,
// write their own claim, wait a grace period, re-check, and only then call
// the credential source. A failed leadership fetch puts the peer in Idle
// for a cooldown.
//
// # Backends
//
// The bus defaults to core NATS and the claim store to a JetStream KV
// bucket. The bus and claimstore packages also provide Redis and
// in-process implementations, and claimstore adds a bbolt file store:
//
//	coord, err := credshare.NewCoordinator(&cfg, nil, src,
//	    credshare.WithBus(bus.NewRedis(rdb, "credshare.bus."+sessionID, codec, logger)),
//	    credshare.WithClaimStore(claimstore.NewRedis(rdb, key, 30*time.Second, logger)),
//	)
//
// See the examples/ directory for complete working examples.
package credshare
