package credshare

// Option configures a Coordinator with optional dependencies.
type Option func(*coordinatorOptions)

// coordinatorOptions holds optional Coordinator configuration.
type coordinatorOptions struct {
	hooks      *Hooks
	metrics    MetricsCollector
	logger     Logger
	bus        Bus
	claimStore ClaimStore
	clock      Clock
	session    Session
	peerID     string
	jitterSeed int64
}

// WithHooks sets lifecycle event hooks.
//
// Parameters:
//   - hooks: Hooks structure with callback functions
//
// Returns:
//   - Option: Functional option for NewCoordinator
//
// Example:
//
//	hooks := &credshare.Hooks{
//	    OnRoleChanged: func(ctx context.Context, from, to credshare.Role) error {
//	        log.Printf("role %s -> %s", from, to)
//	        return nil
//	    },
//	}
//	coord, err := credshare.NewCoordinator(&cfg, nc, src, credshare.WithHooks(hooks))
func WithHooks(hooks *Hooks) Option {
	return func(o *coordinatorOptions) {
		o.hooks = hooks
	}
}

// WithMetrics sets a metrics collector.
//
// Parameters:
//   - metrics: MetricsCollector implementation
//
// Returns:
//   - Option: Functional option for NewCoordinator
//
// Example:
//
//	collector := credshare.NewPrometheusMetrics(prometheus.DefaultRegisterer, "")
//	coord, err := credshare.NewCoordinator(&cfg, nc, src, credshare.WithMetrics(collector))
func WithMetrics(metrics MetricsCollector) Option {
	return func(o *coordinatorOptions) {
		o.metrics = metrics
	}
}

// WithLogger sets a logger.
//
// Parameters:
//   - logger: Logger implementation (compatible with zap.SugaredLogger)
//
// Returns:
//   - Option: Functional option for NewCoordinator
//
// Example:
//
//	logger := zap.NewExample().Sugar()
//	coord, err := credshare.NewCoordinator(&cfg, nc, src, credshare.WithLogger(logger))
func WithLogger(logger Logger) Option {
	return func(o *coordinatorOptions) {
		o.logger = logger
	}
}

// WithBus replaces the default NATS bus.
//
// The caller keeps ownership: Stop unsubscribes but never closes b.
//
// Example:
//
//	hub := bus.NewMemory(0)
//	coord, err := credshare.NewCoordinator(&cfg, nil, src,
//	    credshare.WithBus(hub), credshare.WithClaimStore(claimstore.NewMemory()))
func WithBus(b Bus) Option {
	return func(o *coordinatorOptions) {
		o.bus = b
	}
}

// WithClaimStore replaces the default JetStream KV claim store.
//
// The caller keeps ownership: Stop stops the watch but never closes s.
func WithClaimStore(s ClaimStore) Option {
	return func(o *coordinatorOptions) {
		o.claimStore = s
	}
}

// WithClock sets the wall clock used for claim freshness, credential
// expiry and suspend detection. Tests pass an adjustable clock.
func WithClock(clock Clock) Option {
	return func(o *coordinatorOptions) {
		o.clock = clock
	}
}

// WithSession sets the session whose LoggedOut signal logs the peer out.
func WithSession(session Session) Option {
	return func(o *coordinatorOptions) {
		o.session = session
	}
}

// WithPeerID overrides the generated peer ID.
//
// Peer IDs must be unique among the peers of a session.
func WithPeerID(id string) Option {
	return func(o *coordinatorOptions) {
		o.peerID = id
	}
}

// WithJitterSeed makes the election jitter deterministic. Zero keeps the
// default random source.
func WithJitterSeed(seed int64) Option {
	return func(o *coordinatorOptions) {
		o.jitterSeed = seed
	}
}
