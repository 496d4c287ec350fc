package credshare

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/arloliu/credshare/bus"
)

// Credential modes select the trust boundary between peers.
const (
	// CredentialModeRefetch makes every follower pull its own credential
	// from the source when the leader announces or refreshes. The credential
	// stays bound to each peer's own session.
	CredentialModeRefetch = "refetch"

	// CredentialModePush makes the leader embed its credential in
	// LeaderAnnounce and Refresh messages. Followers never call the source.
	CredentialModePush = "push"
)

// ElectionConfig controls the leader election timings.
type ElectionConfig struct {
	// JitterMin and JitterMax bound the random wait after LeaderRequest.
	// Peers starting together spread their claim checks over this window.
	JitterMin time.Duration `yaml:"jitterMin"`
	JitterMax time.Duration `yaml:"jitterMax"`

	// GracePeriod is the wait between writing a claim and re-reading it.
	// A racing writer whose claim lands inside the window wins.
	GracePeriod time.Duration `yaml:"gracePeriod"`

	// ClaimFreshnessWindow is how long a claim counts as proof of a live leader.
	ClaimFreshnessWindow time.Duration `yaml:"claimFreshnessWindow"`

	// ClaimRenewInterval is how often a leader rewrites its claim.
	//
	// Default: ClaimFreshnessWindow / 3
	// Constraint: Must be < ClaimFreshnessWindow
	ClaimRenewInterval time.Duration `yaml:"claimRenewInterval"`

	// FailureCooldown is how long a peer whose leadership attempt or refresh
	// failed stays out of elections triggered by LeaderFailed, LeaderLeft or
	// heartbeat checks. It bounds source calls while the source is down.
	FailureCooldown time.Duration `yaml:"failureCooldown"`
}

// FetchConfig controls credential source calls.
type FetchConfig struct {
	// Attempts is the number of calls made before a fetch counts as failed.
	Attempts int `yaml:"attempts"`

	// Backoff is the first delay between attempts.
	Backoff time.Duration `yaml:"backoff"`

	// MaxBackoff caps the delay between attempts.
	MaxBackoff time.Duration `yaml:"maxBackoff"`

	// Timeout bounds a single source call.
	Timeout time.Duration `yaml:"timeout"`
}

// LivenessConfig controls visibility, inactivity and suspend detection.
type LivenessConfig struct {
	// HeartbeatInterval is the period of the liveness ticker. Followers check
	// the leader's claim on every beat.
	HeartbeatInterval time.Duration `yaml:"heartbeatInterval"`

	// SuspendThreshold is the beat-to-beat wall-clock gap treated as a
	// process suspension.
	//
	// Default: 3 * HeartbeatInterval
	SuspendThreshold time.Duration `yaml:"suspendThreshold"`

	// InactivityBuffer is added to RefreshInterval to get the inactivity
	// after which a peer coming back to view re-validates leadership.
	//
	// Default: RefreshInterval
	InactivityBuffer time.Duration `yaml:"inactivityBuffer"`
}

// Config is the configuration for the Coordinator.
//
// All duration fields accept standard Go duration strings like "30s", "5m", "1h".
type Config struct {
	// SessionID identifies the logical session whose peers share one credential.
	// Peers with the same SessionID coordinate; different sessions never interact.
	SessionID string `yaml:"sessionId"`

	// SubjectPrefix is the bus subject (or channel) prefix. The session's
	// subject is "<SubjectPrefix>.<hash(SessionID)>".
	SubjectPrefix string `yaml:"subjectPrefix"`

	// ClaimBucket is the JetStream KV bucket holding leader claims.
	ClaimBucket string `yaml:"claimBucket"`

	// ClaimTTL is the bucket-level entry expiry (0 keeps claims until cleared).
	ClaimTTL time.Duration `yaml:"claimTtl"`

	// Codec is the bus wire codec: "json" or "msgpack".
	Codec string `yaml:"codec"`

	// CredentialMode is CredentialModeRefetch or CredentialModePush.
	CredentialMode string `yaml:"credentialMode"`

	// RefreshInterval is how often the leader fetches a new credential.
	RefreshInterval time.Duration `yaml:"refreshInterval"`

	// CredentialTTL is how long a fetched credential stays usable.
	// The source does not report a lifetime; the TTL is agreed out of band.
	CredentialTTL time.Duration `yaml:"credentialTtl"`

	// MessageBuffer bounds the queue between the bus and the event loop.
	// Messages arriving while the queue is full are dropped.
	MessageBuffer int `yaml:"messageBuffer"`

	// OperationTimeout bounds each bus publish and claim store call.
	OperationTimeout time.Duration `yaml:"operationTimeout"`

	// StartupTimeout bounds how long Start waits for the first election.
	StartupTimeout time.Duration `yaml:"startupTimeout"`

	// ShutdownTimeout bounds Stop when the caller's context has no deadline.
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`

	// Election controls leader election timings.
	Election ElectionConfig `yaml:"election"`

	// Fetch controls credential source calls.
	Fetch FetchConfig `yaml:"fetch"`

	// Liveness controls visibility and suspend detection.
	Liveness LivenessConfig `yaml:"liveness"`
}

// DefaultConfig returns a Config with sensible defaults.
//
// SessionID has no default and must be set by the caller.
//
// Returns:
//   - Config: Configuration with default values
func DefaultConfig() Config {
	return Config{
		SubjectPrefix:    "credshare.bus",
		ClaimBucket:      "credshare-claims",
		Codec:            bus.CodecNameJSON,
		CredentialMode:   CredentialModeRefetch,
		RefreshInterval:  45 * time.Minute,
		CredentialTTL:    60 * time.Minute,
		MessageBuffer:    256,
		OperationTimeout: 2 * time.Second,
		StartupTimeout:   10 * time.Second,
		ShutdownTimeout:  5 * time.Second,
		Election: ElectionConfig{
			JitterMin:            50 * time.Millisecond,
			JitterMax:            250 * time.Millisecond,
			GracePeriod:          50 * time.Millisecond,
			ClaimFreshnessWindow: 5 * time.Second,
			ClaimRenewInterval:   5 * time.Second / 3,
			FailureCooldown:      30 * time.Second,
		},
		Fetch: FetchConfig{
			Attempts:   3,
			Backoff:    200 * time.Millisecond,
			MaxBackoff: time.Second,
			Timeout:    10 * time.Second,
		},
		Liveness: LivenessConfig{
			HeartbeatInterval: 5 * time.Second,
			SuspendThreshold:  15 * time.Second,
			InactivityBuffer:  45 * time.Minute,
		},
	}
}

// SetDefaults fills in missing configuration values with production defaults.
//
// Derived values (ClaimRenewInterval, SuspendThreshold, InactivityBuffer)
// are computed from the already defaulted fields they depend on.
//
// Parameters:
//   - cfg: Config to apply defaults to (modified in place)
func SetDefaults(cfg *Config) {
	defaults := DefaultConfig()

	if cfg.SubjectPrefix == "" {
		cfg.SubjectPrefix = defaults.SubjectPrefix
	}
	if cfg.ClaimBucket == "" {
		cfg.ClaimBucket = defaults.ClaimBucket
	}
	if cfg.Codec == "" {
		cfg.Codec = defaults.Codec
	}
	if cfg.CredentialMode == "" {
		cfg.CredentialMode = defaults.CredentialMode
	}
	if cfg.RefreshInterval == 0 {
		cfg.RefreshInterval = defaults.RefreshInterval
	}
	if cfg.CredentialTTL == 0 {
		cfg.CredentialTTL = defaults.CredentialTTL
	}
	if cfg.MessageBuffer == 0 {
		cfg.MessageBuffer = defaults.MessageBuffer
	}
	if cfg.OperationTimeout == 0 {
		cfg.OperationTimeout = defaults.OperationTimeout
	}
	if cfg.StartupTimeout == 0 {
		cfg.StartupTimeout = defaults.StartupTimeout
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = defaults.ShutdownTimeout
	}

	if cfg.Election.JitterMin == 0 && cfg.Election.JitterMax == 0 {
		cfg.Election.JitterMin = defaults.Election.JitterMin
		cfg.Election.JitterMax = defaults.Election.JitterMax
	}
	if cfg.Election.GracePeriod == 0 {
		cfg.Election.GracePeriod = defaults.Election.GracePeriod
	}
	if cfg.Election.ClaimFreshnessWindow == 0 {
		cfg.Election.ClaimFreshnessWindow = defaults.Election.ClaimFreshnessWindow
	}
	if cfg.Election.ClaimRenewInterval == 0 {
		cfg.Election.ClaimRenewInterval = cfg.Election.ClaimFreshnessWindow / 3
	}
	if cfg.Election.FailureCooldown == 0 {
		cfg.Election.FailureCooldown = defaults.Election.FailureCooldown
	}

	if cfg.Fetch.Attempts == 0 {
		cfg.Fetch.Attempts = defaults.Fetch.Attempts
	}
	if cfg.Fetch.Backoff == 0 {
		cfg.Fetch.Backoff = defaults.Fetch.Backoff
	}
	if cfg.Fetch.MaxBackoff == 0 {
		cfg.Fetch.MaxBackoff = defaults.Fetch.MaxBackoff
	}
	if cfg.Fetch.Timeout == 0 {
		cfg.Fetch.Timeout = defaults.Fetch.Timeout
	}

	if cfg.Liveness.HeartbeatInterval == 0 {
		cfg.Liveness.HeartbeatInterval = defaults.Liveness.HeartbeatInterval
	}
	if cfg.Liveness.SuspendThreshold == 0 {
		cfg.Liveness.SuspendThreshold = 3 * cfg.Liveness.HeartbeatInterval
	}
	if cfg.Liveness.InactivityBuffer == 0 {
		cfg.Liveness.InactivityBuffer = cfg.RefreshInterval
	}
}

// Validate checks configuration constraints and returns error for invalid values.
//
// Hard Validation Rules:
//   - SessionID is set
//   - CredentialMode is "refetch" or "push"; Codec is a known codec
//   - RefreshInterval > 0 and CredentialTTL >= RefreshInterval (no gap without a valid value)
//   - 0 <= JitterMin <= JitterMax
//   - ClaimRenewInterval < ClaimFreshnessWindow (a live leader's claim never goes stale)
//   - SuspendThreshold > HeartbeatInterval (a normal beat is never a suspension)
//   - Fetch.Attempts >= 1
//
// Returns:
//   - error: Validation error wrapping ErrInvalidConfig, nil if valid
func (cfg *Config) Validate() error {
	if cfg.SessionID == "" {
		return fmt.Errorf("%w: sessionId is required", ErrInvalidConfig)
	}

	if cfg.CredentialMode != CredentialModeRefetch && cfg.CredentialMode != CredentialModePush {
		return fmt.Errorf("%w: credentialMode must be %q or %q, got %q",
			ErrInvalidConfig, CredentialModeRefetch, CredentialModePush, cfg.CredentialMode)
	}

	if _, err := bus.CodecByName(cfg.Codec); err != nil {
		return fmt.Errorf("%w: codec: %w", ErrInvalidConfig, err)
	}

	if cfg.RefreshInterval <= 0 {
		return fmt.Errorf("%w: refreshInterval must be > 0, got %v", ErrInvalidConfig, cfg.RefreshInterval)
	}

	if cfg.CredentialTTL < cfg.RefreshInterval {
		return fmt.Errorf(
			"%w: credentialTtl (%v) must be >= refreshInterval (%v) so a value stays usable until the next refresh",
			ErrInvalidConfig, cfg.CredentialTTL, cfg.RefreshInterval,
		)
	}

	if cfg.MessageBuffer < 1 {
		return fmt.Errorf("%w: messageBuffer must be >= 1, got %d", ErrInvalidConfig, cfg.MessageBuffer)
	}

	if cfg.Election.JitterMin < 0 || cfg.Election.JitterMax < cfg.Election.JitterMin {
		return fmt.Errorf(
			"%w: election jitter window [%v, %v] is invalid",
			ErrInvalidConfig, cfg.Election.JitterMin, cfg.Election.JitterMax,
		)
	}

	if cfg.Election.ClaimRenewInterval >= cfg.Election.ClaimFreshnessWindow {
		return fmt.Errorf(
			"%w: claimRenewInterval (%v) must be < claimFreshnessWindow (%v)",
			ErrInvalidConfig, cfg.Election.ClaimRenewInterval, cfg.Election.ClaimFreshnessWindow,
		)
	}

	if cfg.Liveness.SuspendThreshold <= cfg.Liveness.HeartbeatInterval {
		return fmt.Errorf(
			"%w: suspendThreshold (%v) must be > heartbeatInterval (%v)",
			ErrInvalidConfig, cfg.Liveness.SuspendThreshold, cfg.Liveness.HeartbeatInterval,
		)
	}

	if cfg.Fetch.Attempts < 1 {
		return fmt.Errorf("%w: fetch attempts must be >= 1, got %d", ErrInvalidConfig, cfg.Fetch.Attempts)
	}

	return nil
}

// ValidateWithWarnings checks configuration and logs warnings for non-recommended values.
//
// This is called after Validate() in NewCoordinator() to provide operator guidance.
//
// Parameters:
//   - logger: Logger instance for warning output
func (cfg *Config) ValidateWithWarnings(logger Logger) {
	if cfg.Election.ClaimFreshnessWindow < cfg.Liveness.HeartbeatInterval {
		logger.Warn(
			"claimFreshnessWindow is shorter than heartbeatInterval, followers may see a live leader as crashed",
			"claimFreshnessWindow", cfg.Election.ClaimFreshnessWindow,
			"heartbeatInterval", cfg.Liveness.HeartbeatInterval,
		)
	}

	if cfg.Election.GracePeriod < 10*time.Millisecond {
		logger.Warn(
			"gracePeriod is very short, racing claims may both commit",
			"gracePeriod", cfg.Election.GracePeriod,
			"recommended", "50ms or higher",
		)
	}

	if cfg.CredentialMode == CredentialModePush {
		logger.Warn(
			"push credential mode: followers trust credentials sent by the leader",
			"credentialMode", cfg.CredentialMode,
		)
	}

	if cfg.Election.FailureCooldown < cfg.Election.ClaimFreshnessWindow {
		logger.Warn(
			"failureCooldown is shorter than claimFreshnessWindow, a down source may be hammered",
			"failureCooldown", cfg.Election.FailureCooldown,
			"claimFreshnessWindow", cfg.Election.ClaimFreshnessWindow,
		)
	}
}

// TestConfig returns a configuration optimized for fast test execution.
//
// Test timings are 100-1000x faster than production defaults to enable
// rapid iteration without sacrificing test coverage. Use DefaultConfig()
// for production deployments.
//
// Returns:
//   - Config: Configuration with fast timings for tests
//
// Example:
//
//	cfg := credshare.TestConfig()
//	cfg.SessionID = "session-" + t.Name()
//	coord, err := credshare.NewCoordinator(&cfg, nc, src)
func TestConfig() Config {
	cfg := DefaultConfig()

	cfg.RefreshInterval = 2 * time.Second
	cfg.CredentialTTL = 3 * time.Second
	cfg.StartupTimeout = 3 * time.Second
	cfg.ShutdownTimeout = 2 * time.Second
	cfg.Election.JitterMin = 10 * time.Millisecond
	cfg.Election.JitterMax = 50 * time.Millisecond
	cfg.Election.GracePeriod = 20 * time.Millisecond
	cfg.Election.ClaimFreshnessWindow = 600 * time.Millisecond
	cfg.Election.ClaimRenewInterval = 200 * time.Millisecond
	cfg.Election.FailureCooldown = 500 * time.Millisecond
	cfg.Fetch.Backoff = 10 * time.Millisecond
	cfg.Fetch.MaxBackoff = 50 * time.Millisecond
	cfg.Fetch.Timeout = time.Second
	cfg.Liveness.HeartbeatInterval = 100 * time.Millisecond
	cfg.Liveness.SuspendThreshold = 300 * time.Millisecond
	cfg.Liveness.InactivityBuffer = 2 * time.Second

	return cfg
}

// ParseConfig decodes a YAML document, applies defaults and validates it.
//
// Parameters:
//   - data: YAML document
//
// Returns:
//   - Config: Decoded and defaulted configuration
//   - error: Decode or validation error
//
// Example:
//
//	cfg, err := credshare.ParseConfig([]byte(`
//	sessionId: user-42
//	refreshInterval: 30m
//	election:
//	  jitterMax: 500ms
//	`))
func ParseConfig(data []byte) (Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	SetDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// LoadConfig reads and parses the YAML file at path. See ParseConfig.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	return ParseConfig(data)
}
