package credshare

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	require.Equal(t, "credshare.bus", cfg.SubjectPrefix)
	require.Equal(t, "credshare-claims", cfg.ClaimBucket)
	require.Equal(t, "json", cfg.Codec)
	require.Equal(t, CredentialModeRefetch, cfg.CredentialMode)
	require.Equal(t, 45*time.Minute, cfg.RefreshInterval)
	require.Equal(t, 60*time.Minute, cfg.CredentialTTL)
	require.Equal(t, 256, cfg.MessageBuffer)
	require.Equal(t, 50*time.Millisecond, cfg.Election.JitterMin)
	require.Equal(t, 250*time.Millisecond, cfg.Election.JitterMax)
	require.Equal(t, 50*time.Millisecond, cfg.Election.GracePeriod)
	require.Equal(t, 5*time.Second, cfg.Election.ClaimFreshnessWindow)
	require.Less(t, cfg.Election.ClaimRenewInterval, cfg.Election.ClaimFreshnessWindow)
	require.Equal(t, 30*time.Second, cfg.Election.FailureCooldown)
	require.Equal(t, 3, cfg.Fetch.Attempts)
	require.Equal(t, 5*time.Second, cfg.Liveness.HeartbeatInterval)
	require.Equal(t, 15*time.Second, cfg.Liveness.SuspendThreshold)

	// Everything but the session is ready to use.
	require.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
	cfg.SessionID = "s"
	require.NoError(t, cfg.Validate())
}

func TestSetDefaults(t *testing.T) {
	t.Run("applies defaults to empty config", func(t *testing.T) {
		cfg := Config{SessionID: "s"}
		SetDefaults(&cfg)

		require.Equal(t, "credshare.bus", cfg.SubjectPrefix)
		require.Equal(t, 45*time.Minute, cfg.RefreshInterval)
		require.Equal(t, 5*time.Second/3, cfg.Election.ClaimRenewInterval)
		require.Equal(t, 15*time.Second, cfg.Liveness.SuspendThreshold)
		require.Equal(t, 45*time.Minute, cfg.Liveness.InactivityBuffer)
		require.NoError(t, cfg.Validate())
	})

	t.Run("derives dependent values from custom ones", func(t *testing.T) {
		cfg := Config{
			SessionID:       "s",
			RefreshInterval: 10 * time.Minute,
			CredentialTTL:   15 * time.Minute,
			Election:        ElectionConfig{ClaimFreshnessWindow: 3 * time.Second},
			Liveness:        LivenessConfig{HeartbeatInterval: time.Second},
		}
		SetDefaults(&cfg)

		require.Equal(t, time.Second, cfg.Election.ClaimRenewInterval)
		require.Equal(t, 3*time.Second, cfg.Liveness.SuspendThreshold)
		require.Equal(t, 10*time.Minute, cfg.Liveness.InactivityBuffer)
	})

	t.Run("preserves custom values", func(t *testing.T) {
		cfg := Config{
			SessionID:      "s",
			Codec:          "msgpack",
			CredentialMode: CredentialModePush,
			MessageBuffer:  8,
			Election: ElectionConfig{
				JitterMin:   0,
				JitterMax:   time.Second,
				GracePeriod: 200 * time.Millisecond,
			},
			Fetch: FetchConfig{Attempts: 5},
		}
		SetDefaults(&cfg)

		require.Equal(t, "msgpack", cfg.Codec)
		require.Equal(t, CredentialModePush, cfg.CredentialMode)
		require.Equal(t, 8, cfg.MessageBuffer)
		require.Equal(t, time.Duration(0), cfg.Election.JitterMin)
		require.Equal(t, time.Second, cfg.Election.JitterMax)
		require.Equal(t, 200*time.Millisecond, cfg.Election.GracePeriod)
		require.Equal(t, 5, cfg.Fetch.Attempts)
	})
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing session", func(c *Config) { c.SessionID = "" }},
		{"unknown mode", func(c *Config) { c.CredentialMode = "broadcast" }},
		{"unknown codec", func(c *Config) { c.Codec = "xml" }},
		{"ttl below refresh", func(c *Config) { c.CredentialTTL = c.RefreshInterval - time.Second }},
		{"zero buffer", func(c *Config) { c.MessageBuffer = 0 }},
		{"inverted jitter", func(c *Config) { c.Election.JitterMin, c.Election.JitterMax = time.Second, time.Millisecond }},
		{"renew not below window", func(c *Config) { c.Election.ClaimRenewInterval = c.Election.ClaimFreshnessWindow }},
		{"suspend threshold below heartbeat", func(c *Config) { c.Liveness.SuspendThreshold = c.Liveness.HeartbeatInterval }},
		{"no fetch attempts", func(c *Config) { c.Fetch.Attempts = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := TestConfig()
			cfg.SessionID = "s"
			tt.mutate(&cfg)
			require.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
		})
	}

	t.Run("test config is valid", func(t *testing.T) {
		cfg := TestConfig()
		cfg.SessionID = "s"
		require.NoError(t, cfg.Validate())
	})
}

func TestConfig_ValidateWithWarnings(t *testing.T) {
	t.Run("quiet for defaults", func(t *testing.T) {
		logger := &warnRecorder{}
		cfg := DefaultConfig()
		cfg.ValidateWithWarnings(logger)
		require.Empty(t, logger.messages())
	})

	t.Run("warns for risky values", func(t *testing.T) {
		logger := &warnRecorder{}
		cfg := DefaultConfig()
		cfg.CredentialMode = CredentialModePush
		cfg.Election.GracePeriod = time.Millisecond
		cfg.Election.FailureCooldown = time.Second
		cfg.Election.ClaimFreshnessWindow = 2 * time.Second
		cfg.ValidateWithWarnings(logger)
		require.Len(t, logger.messages(), 4)
	})
}

// TestConfig_YAML demonstrates that time.Duration works directly with YAML unmarshaling
func TestConfig_YAML(t *testing.T) {
	yamlConfig := `
sessionId: "user-42"
subjectPrefix: "app.credentials"
codec: msgpack
credentialMode: push
refreshInterval: 30m
credentialTtl: 40m
election:
  jitterMin: 100ms
  jitterMax: 400ms
  claimFreshnessWindow: 6s
fetch:
  attempts: 4
  timeout: 5s
liveness:
  heartbeatInterval: 2s
`

	var cfg Config
	err := yaml.Unmarshal([]byte(yamlConfig), &cfg)
	require.NoError(t, err)

	require.Equal(t, "user-42", cfg.SessionID)
	require.Equal(t, "app.credentials", cfg.SubjectPrefix)
	require.Equal(t, "msgpack", cfg.Codec)
	require.Equal(t, CredentialModePush, cfg.CredentialMode)
	require.Equal(t, 30*time.Minute, cfg.RefreshInterval)
	require.Equal(t, 40*time.Minute, cfg.CredentialTTL)
	require.Equal(t, 100*time.Millisecond, cfg.Election.JitterMin)
	require.Equal(t, 400*time.Millisecond, cfg.Election.JitterMax)
	require.Equal(t, 6*time.Second, cfg.Election.ClaimFreshnessWindow)
	require.Equal(t, 4, cfg.Fetch.Attempts)
	require.Equal(t, 5*time.Second, cfg.Fetch.Timeout)
	require.Equal(t, 2*time.Second, cfg.Liveness.HeartbeatInterval)
}

func TestParseConfig(t *testing.T) {
	t.Run("partial document gets defaults", func(t *testing.T) {
		cfg, err := ParseConfig([]byte("sessionId: abc\nrefreshInterval: 10m\ncredentialTtl: 20m\n"))
		require.NoError(t, err)

		require.Equal(t, "abc", cfg.SessionID)
		require.Equal(t, 10*time.Minute, cfg.RefreshInterval)
		require.Equal(t, 10*time.Minute, cfg.Liveness.InactivityBuffer)
		require.Equal(t, 250*time.Millisecond, cfg.Election.JitterMax)
	})

	t.Run("invalid document", func(t *testing.T) {
		_, err := ParseConfig([]byte("sessionId: [unterminated"))
		require.ErrorIs(t, err, ErrInvalidConfig)
	})

	t.Run("fails validation", func(t *testing.T) {
		_, err := ParseConfig([]byte("credentialMode: push\n"))
		require.ErrorIs(t, err, ErrInvalidConfig)
	})
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credshare.yaml")
	require.NoError(t, os.WriteFile(path, []byte("sessionId: from-file\ncodec: msgpack\n"), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.Equal(t, "from-file", cfg.SessionID)
	require.Equal(t, "msgpack", cfg.Codec)

	_, err = LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

// warnRecorder is a Logger that keeps warning messages.
type warnRecorder struct {
	mu    sync.Mutex
	warns []string
}

func (r *warnRecorder) Debug(string, ...any) {}
func (r *warnRecorder) Info(string, ...any)  {}
func (r *warnRecorder) Error(string, ...any) {}
func (r *warnRecorder) Fatal(string, ...any) {}

func (r *warnRecorder) Warn(msg string, _ ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.warns = append(r.warns, msg)
}

func (r *warnRecorder) messages() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]string(nil), r.warns...)
}
