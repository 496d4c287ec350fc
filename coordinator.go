package credshare

import (
	"context"
	"errors"
	"fmt"
	rand "math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/arloliu/credshare/bus"
	"github.com/arloliu/credshare/claimstore"
	"github.com/arloliu/credshare/internal/backoff"
	"github.com/arloliu/credshare/internal/cache"
	"github.com/arloliu/credshare/internal/clock"
	"github.com/arloliu/credshare/internal/election"
	"github.com/arloliu/credshare/internal/hash"
	"github.com/arloliu/credshare/internal/hooks"
	"github.com/arloliu/credshare/internal/liveness"
	"github.com/arloliu/credshare/internal/logging"
	"github.com/arloliu/credshare/internal/metrics"
	"github.com/arloliu/credshare/internal/peerid"
)

// Coordinator is one peer of a credential-sharing session.
//
// All peers of a session run the same protocol over a broadcast bus and a
// single-slot claim store. Exactly one peer becomes Leader and refreshes
// the credential; the others follow it. Leadership moves on its own when
// the leader stops, fails, logs out or is suspended.
//
// Thread Safety:
//   - All public methods are safe for concurrent use
//   - Peer state is owned by a single event loop goroutine
//   - Getters read atomics or the credential cache, never loop state
//
// Lifecycle:
//   - Create with NewCoordinator()
//   - Call Start() to join the session; it returns once the first election settled
//   - Read Credential() whenever the consumer needs the value
//   - Call Stop() on teardown
type Coordinator struct {
	cfg    Config
	conn   *nats.Conn
	source CredentialSource

	id      string
	logger  Logger
	metrics MetricsCollector
	hooks   *hooks.Runner
	clock   Clock
	session Session
	rng     *rand.Rand

	bus       Bus
	ownsBus   bool
	store     ClaimStore
	ownsStore bool

	sm      *election.StateMachine
	cache   *cache.Cache
	monitor *liveness.Monitor
	policy  backoff.Policy

	inbox       chan Message
	claimEvents chan ClaimEvent
	commands    chan command
	results     chan fetchResult

	leaderID  atomic.Value // string
	loggedOut atomic.Bool

	settled    chan struct{}
	settleOnce sync.Once

	// Lifecycle management
	mu       sync.Mutex
	started  bool
	stopped  bool
	ctx      context.Context
	cancel   context.CancelFunc
	loopDone chan struct{}
	wg       sync.WaitGroup
	busSub   Subscription
	claimSub Subscription
}

// NewCoordinator creates a new Coordinator instance with the provided configuration.
//
// By default the peer talks over core NATS on conn and keeps its claim in a
// JetStream KV bucket. WithBus and WithClaimStore replace either backend;
// conn may be nil when both are replaced.
//
// Returns a concrete *Coordinator struct following the "accept interfaces, return structs" principle.
//
// Parameters:
//   - cfg: Configuration (missing values are defaulted in place)
//   - conn: NATS connection for the default bus and claim store
//   - source: Credential source called by the leader (and by followers in refetch mode)
//   - opts: Optional configuration (hooks, metrics, logger, bus, claim store, clock, session)
//
// Returns:
//   - *Coordinator: Initialized coordinator instance
//   - error: Validation error if configuration or dependencies are invalid
//
// Example:
//
//	cfg := credshare.DefaultConfig()
//	cfg.SessionID = user.SessionID
//	session := source.NewTokenSession(user.Token)
//	src := source.NewHTTP(issueURL, session)
//	coord, err := credshare.NewCoordinator(&cfg, nc, src, credshare.WithSession(session))
func NewCoordinator(cfg *Config, conn *nats.Conn, source CredentialSource, opts ...Option) (*Coordinator, error) {
	if cfg == nil {
		return nil, ErrInvalidConfig
	}
	if source == nil {
		return nil, ErrCredentialSourceRequired
	}

	options := &coordinatorOptions{}
	for _, opt := range opts {
		opt(options)
	}

	if conn == nil && (options.bus == nil || options.claimStore == nil) {
		return nil, ErrNATSConnectionRequired
	}

	SetDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	// Provide safe defaults for optional dependencies to avoid nil checks everywhere
	metricsCollector := options.metrics
	if metricsCollector == nil {
		metricsCollector = metrics.NewNop()
	}

	baseLogger := options.logger
	if baseLogger == nil {
		baseLogger = logging.NewNop()
	}
	cfg.ValidateWithWarnings(baseLogger)

	clk := options.clock
	if clk == nil {
		clk = clock.Real{}
	}

	id := options.peerID
	if id == "" {
		id = peerid.New()
	}
	logger := logging.With(baseLogger, "peer_id", id)

	c := &Coordinator{
		cfg:         *cfg,
		conn:        conn,
		source:      source,
		id:          id,
		logger:      logger,
		metrics:     metricsCollector,
		hooks:       hooks.NewRunner(options.hooks, logger),
		clock:       clk,
		session:     options.session,
		rng:         backoff.NewRNG(options.jitterSeed),
		bus:         options.bus,
		store:       options.claimStore,
		sm:          election.NewStateMachine(logger, metricsCollector),
		cache:       cache.New(clk),
		monitor:     liveness.New(clk, cfg.Liveness.HeartbeatInterval, cfg.Liveness.SuspendThreshold, metricsCollector),
		inbox:       make(chan Message, cfg.MessageBuffer),
		claimEvents: make(chan ClaimEvent, cfg.MessageBuffer),
		commands:    make(chan command),
		results:     make(chan fetchResult, 1),
		settled:     make(chan struct{}),
		policy: backoff.Policy{
			Base:       cfg.Fetch.Backoff,
			Multiplier: 3,
			Cap:        cfg.Fetch.MaxBackoff,
		},
	}
	c.leaderID.Store("")

	if c.bus == nil {
		codec, err := bus.CodecByName(cfg.Codec)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
		}
		c.bus = bus.NewNATS(conn, hash.Subject(cfg.SubjectPrefix, cfg.SessionID), codec, logger)
		c.ownsBus = true
	}

	return c, nil
}

// Start joins the session and runs the first election.
//
// Blocks until the first election settled (this peer is Leader, Follower, or
// Idle after a failed attempt), the startup timeout elapses, or ctx is done.
// On ErrStartupTimeout the coordinator keeps running; call Stop to tear it down.
//
// Parameters:
//   - ctx: Context for cancellation of the startup wait
//
// Returns:
//   - error: Startup error, ErrStartupTimeout, or context cancellation
func (c *Coordinator) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return ErrStopped
	}
	if c.started {
		c.mu.Unlock()
		return ErrAlreadyStarted
	}
	c.started = true
	c.ctx, c.cancel = context.WithCancel(context.Background())
	c.loopDone = make(chan struct{})
	c.mu.Unlock()

	startupCtx, cancel := context.WithTimeout(ctx, c.cfg.StartupTimeout)
	defer cancel()

	if err := c.openBackends(startupCtx); err != nil {
		c.abortStart()
		return err
	}

	if err := c.monitor.Start(); err != nil {
		c.abortStart()
		return fmt.Errorf("failed to start liveness monitor: %w", err)
	}

	go c.run()

	c.logger.Info("coordinator started",
		"session", hash.SessionToken(c.cfg.SessionID),
		"mode", c.cfg.CredentialMode,
	)

	select {
	case <-c.settled:
		return nil
	case <-startupCtx.Done():
		if errors.Is(startupCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return ErrStartupTimeout
		}

		return ctx.Err()
	}
}

// openBackends opens the default claim store and subscribes the bus and the claim watch.
func (c *Coordinator) openBackends(ctx context.Context) error {
	if c.store == nil {
		js, err := jetstream.New(c.conn)
		if err != nil {
			return fmt.Errorf("failed to create jetstream context: %w", err)
		}

		store, err := claimstore.OpenNATSKV(ctx, js, c.cfg.ClaimBucket, hash.ClaimKey(c.cfg.SessionID), c.cfg.ClaimTTL, c.logger)
		if err != nil {
			return fmt.Errorf("failed to open claim store: %w", err)
		}
		c.store = store
		c.ownsStore = true
	}

	busSub, err := c.bus.Subscribe(c.enqueueMessage)
	if err != nil {
		return fmt.Errorf("failed to subscribe to bus: %w", err)
	}
	c.busSub = busSub

	claimSub, err := c.store.Watch(c.ctx, c.enqueueClaimEvent)
	if err != nil {
		return fmt.Errorf("failed to watch claim: %w", err)
	}
	c.claimSub = claimSub

	return nil
}

// abortStart releases whatever Start acquired before failing. A
// coordinator whose Start failed cannot be started again.
func (c *Coordinator) abortStart() {
	c.releaseBackends()

	c.mu.Lock()
	c.stopped = true
	c.cancel()
	close(c.loopDone)
	c.mu.Unlock()
}

// Stop leaves the session.
//
// A Leader publishes LeaderLeft so the others elect a successor at once.
// The own claim is cleared, timers stop, the cache is emptied and the role
// returns to Idle. Backends created by the coordinator are closed.
//
// Parameters:
//   - ctx: Context for shutdown timeout (ShutdownTimeout applies if it has no deadline)
//
// Returns:
//   - error: ErrNotStarted, ErrStopped, or shutdown timeout
func (c *Coordinator) Stop(ctx context.Context) error {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return ErrStopped
	}
	if !c.started {
		c.mu.Unlock()
		return ErrNotStarted
	}
	c.stopped = true
	c.mu.Unlock()

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.ShutdownTimeout)
		defer cancel()
	}

	var shutdownErr error

	// Step 1: Teardown inside the loop (LeaderLeft, claim, timers, cache)
	if err := c.send(ctx, command{kind: cmdStop, ctx: ctx}); err != nil {
		shutdownErr = fmt.Errorf("teardown failed: %w", err)
	}

	// Step 2: Stop the loop and wait for it and any fetch goroutines
	c.cancel()
	select {
	case <-c.loopDone:
	case <-ctx.Done():
		c.logger.Error("shutdown timeout exceeded, event loop still running")
		if shutdownErr == nil {
			shutdownErr = ctx.Err()
		}
	}

	if err := c.monitor.Stop(); err != nil && !errors.Is(err, liveness.ErrNotStarted) {
		c.logger.Warn("failed to stop liveness monitor", "error", err)
	}

	// Step 3: Release subscriptions and owned backends
	c.releaseBackends()
	c.sm.Close()

	// Step 4: Drain queued hooks; none are queued once the loop is gone
	if err := c.hooks.Close(ctx); err != nil {
		c.logger.Warn("hooks still running at shutdown", "error", err)
		if shutdownErr == nil {
			shutdownErr = err
		}
	}

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		c.logger.Info("coordinator stopped")
		return shutdownErr
	case <-ctx.Done():
		if shutdownErr == nil {
			return ctx.Err()
		}

		return shutdownErr
	}
}

func (c *Coordinator) releaseBackends() {
	if c.busSub != nil {
		if err := c.busSub.Unsubscribe(); err != nil {
			c.logger.Warn("failed to unsubscribe from bus", "error", err)
		}
	}
	if c.claimSub != nil {
		if err := c.claimSub.Unsubscribe(); err != nil {
			c.logger.Warn("failed to stop claim watch", "error", err)
		}
	}
	if c.ownsBus {
		if err := c.bus.Close(); err != nil {
			c.logger.Warn("failed to close bus", "error", err)
		}
	}
	if c.ownsStore && c.store != nil {
		if err := c.store.Close(); err != nil {
			c.logger.Warn("failed to close claim store", "error", err)
		}
	}
}

// PeerID returns this peer's ID.
func (c *Coordinator) PeerID() string {
	return c.id
}

// Role returns the current role.
func (c *Coordinator) Role() Role {
	return c.sm.Role()
}

// IsLeader returns true if this peer is the current leader.
func (c *Coordinator) IsLeader() bool {
	return c.sm.Role() == RoleLeader
}

// LeaderID returns the ID of the peer this peer considers leader.
//
// Returns:
//   - string: Own ID when Leader, the followed leader when Follower, empty otherwise
func (c *Coordinator) LeaderID() string {
	if id, ok := c.leaderID.Load().(string); ok {
		return id
	}

	return ""
}

// Credential returns the current credential.
//
// The value is never returned once its TTL has passed.
//
// Returns:
//   - Credential: The cached credential
//   - error: ErrNoCredential before the first value arrived, ErrCredentialExpired
//     once it expired, ErrLoggedOut after logout
func (c *Coordinator) Credential() (Credential, error) {
	if c.loggedOut.Load() {
		return Credential{}, ErrLoggedOut
	}

	return c.cache.Get()
}

// LoggedOut reports whether the session logged out.
func (c *Coordinator) LoggedOut() bool {
	return c.loggedOut.Load()
}

// SetVisible reports whether the consumer is visible to the user.
//
// A hidden Leader pauses its refresh timer. Coming back after a long
// inactivity re-validates leadership before the timer resumes.
func (c *Coordinator) SetVisible(visible bool) {
	c.monitor.SetVisible(visible)
}

// Touch records user activity. It never triggers an election by itself.
func (c *Coordinator) Touch() {
	c.monitor.Touch()
}

// RequestRefresh asks for a fresh credential now.
//
// A Leader refreshes immediately. A Follower pulls its own credential in
// refetch mode, or asks the leader to re-announce in push mode.
//
// Returns:
//   - error: ErrNotStarted, ErrStopped or ErrLoggedOut
func (c *Coordinator) RequestRefresh() error {
	if c.loggedOut.Load() {
		return ErrLoggedOut
	}

	return c.send(context.Background(), command{kind: cmdRefresh})
}

// BroadcastLogout logs every peer of the session out, this one included.
//
// Parameters:
//   - ctx: Context for the publish
//
// Returns:
//   - error: ErrNotStarted, ErrStopped, or the publish error (the local
//     logout happens regardless)
func (c *Coordinator) BroadcastLogout(ctx context.Context) error {
	return c.send(ctx, command{kind: cmdLogout, ctx: ctx})
}

// SubscribeRole returns a channel that receives role updates.
//
// The channel receives the current role immediately. A slow subscriber
// misses intermediate roles but always sees the latest one. The channel is
// closed on Stop.
//
// Returns:
//   - <-chan Role: Role updates
//   - func(): Unsubscribe function
func (c *Coordinator) SubscribeRole() (<-chan Role, func()) {
	return c.sm.Subscribe()
}

// WaitRole waits for the coordinator to reach the expected role within the timeout period.
//
// The method returns a read-only channel that will receive exactly one value:
//   - nil if the expected role is reached within the timeout
//   - context.DeadlineExceeded if the timeout expires before reaching the role
//   - ErrStopped if the coordinator stops first
//
// The channel is closed after sending the result, allowing safe use in select statements.
//
// Parameters:
//   - expected: The role to wait for
//   - timeout: Maximum duration to wait for the role
//
// Returns:
//   - <-chan error: A channel that receives the result
//
// Example:
//
//	if err := <-coord.WaitRole(credshare.RoleLeader, 2*time.Second); err != nil {
//	    log.Printf("not leader: %v", err)
//	}
func (c *Coordinator) WaitRole(expected Role, timeout time.Duration) <-chan error {
	ch := make(chan error, 1) // Buffered to prevent goroutine leak

	roles, unsubscribe := c.sm.Subscribe()
	go func() {
		defer close(ch)
		defer unsubscribe()

		timer := time.NewTimer(timeout)
		defer timer.Stop()

		for {
			select {
			case role, ok := <-roles:
				if !ok {
					ch <- ErrStopped
					return
				}
				if role == expected {
					ch <- nil
					return
				}
			case <-timer.C:
				ch <- context.DeadlineExceeded
				return
			}
		}
	}()

	return ch
}

// send delivers cmd to the loop and waits for its reply.
func (c *Coordinator) send(ctx context.Context, cmd command) error {
	c.mu.Lock()
	started, stopped, loopDone := c.started, c.stopped, c.loopDone
	c.mu.Unlock()

	if !started {
		return ErrNotStarted
	}
	if stopped && cmd.kind != cmdStop {
		return ErrStopped
	}

	cmd.reply = make(chan error, 1)
	select {
	case c.commands <- cmd:
	case <-loopDone:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-cmd.reply:
		return err
	case <-loopDone:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// settle releases Start once the first election has an outcome.
func (c *Coordinator) settle() {
	c.settleOnce.Do(func() { close(c.settled) })
}

// enqueueMessage is the bus handler. It never blocks.
func (c *Coordinator) enqueueMessage(msg Message) {
	if msg.SenderID == c.id {
		return
	}

	c.metrics.RecordBusMessage(msg.Kind.String(), "in")

	select {
	case c.inbox <- msg:
	default:
		c.metrics.RecordBusMessageDropped()
		c.logger.Warn("dropping bus message, event loop is behind", "kind", msg.Kind.String(), "sender", msg.SenderID)
	}
}

// enqueueClaimEvent is the claim watch handler. It never blocks.
func (c *Coordinator) enqueueClaimEvent(ev ClaimEvent) {
	if !ev.Deleted && ev.Claim.PeerID == c.id {
		return
	}

	select {
	case c.claimEvents <- ev:
	default:
		c.logger.Warn("dropping claim event, event loop is behind")
	}
}

// withTimeout bounds a bus or store call made from the loop.
func (c *Coordinator) withTimeout(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, c.cfg.OperationTimeout)
}

// now returns the wall-clock time without its monotonic reading.
func (c *Coordinator) now() time.Time {
	return c.clock.Now().Round(0)
}
