package claimstore

import (
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/require"

	"github.com/arloliu/credshare/internal/hash"
	credtest "github.com/arloliu/credshare/testing"
	"github.com/arloliu/credshare/types"
)

type storeFactory func(t *testing.T) types.ClaimStore

func backends() map[string]storeFactory {
	return map[string]storeFactory{
		"memory": func(t *testing.T) types.ClaimStore {
			return NewMemory()
		},
		"bolt": func(t *testing.T) types.ClaimStore {
			s, err := OpenBolt(filepath.Join(t.TempDir(), "claims.db"), hash.ClaimKey("session-1"), time.Second)
			require.NoError(t, err)

			return s
		},
		"natskv": func(t *testing.T) types.ClaimStore {
			_, nc := credtest.StartEmbeddedNATS(t)
			js, err := jetstream.New(nc)
			require.NoError(t, err)

			s, err := OpenNATSKV(t.Context(), js, "", hash.ClaimKey("session-1"), 0, credtest.NewTestLogger(t))
			require.NoError(t, err)

			return s
		},
		"redis": func(t *testing.T) types.ClaimStore {
			client := credtest.RedisClient(t)
			return NewRedis(client, hash.ClaimKey("session-1"), time.Minute, credtest.NewTestLogger(t))
		},
	}
}

type eventLog struct {
	mu     sync.Mutex
	events []types.ClaimEvent
}

func (l *eventLog) handle(ev types.ClaimEvent) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, ev)
}

func (l *eventLog) snapshot() []types.ClaimEvent {
	l.mu.Lock()
	defer l.mu.Unlock()

	return append([]types.ClaimEvent(nil), l.events...)
}

func claimAt(peer string, ms int64) types.Claim {
	return types.Claim{PeerID: peer, ClaimedAt: time.UnixMilli(ms)}
}

func TestClaimStore_Contract(t *testing.T) {
	for name, factory := range backends() {
		t.Run(name, func(t *testing.T) {
			t.Run("GetEmpty", func(t *testing.T) {
				s := factory(t)
				defer func() { _ = s.Close() }()

				_, ok, err := s.Get(t.Context())
				require.NoError(t, err)
				require.False(t, ok)
			})

			t.Run("SetThenGet", func(t *testing.T) {
				s := factory(t)
				defer func() { _ = s.Close() }()

				want := claimAt("peer-a", 1_700_000_000_000)
				require.NoError(t, s.Set(t.Context(), want))

				got, ok, err := s.Get(t.Context())
				require.NoError(t, err)
				require.True(t, ok)
				require.Equal(t, "peer-a", got.PeerID)
				require.Equal(t, want.ClaimedAt.UnixMilli(), got.ClaimedAt.UnixMilli())
			})

			t.Run("SetOverwrites", func(t *testing.T) {
				s := factory(t)
				defer func() { _ = s.Close() }()

				require.NoError(t, s.Set(t.Context(), claimAt("peer-a", 1_000)))
				require.NoError(t, s.Set(t.Context(), claimAt("peer-b", 2_000)))

				got, ok, err := s.Get(t.Context())
				require.NoError(t, err)
				require.True(t, ok)
				require.Equal(t, "peer-b", got.PeerID)
			})

			t.Run("ClearOnlyOwnClaim", func(t *testing.T) {
				s := factory(t)
				defer func() { _ = s.Close() }()

				require.NoError(t, s.Set(t.Context(), claimAt("peer-a", 1_000)))

				require.NoError(t, s.Clear(t.Context(), "peer-b"))
				got, ok, err := s.Get(t.Context())
				require.NoError(t, err)
				require.True(t, ok)
				require.Equal(t, "peer-a", got.PeerID)

				require.NoError(t, s.Clear(t.Context(), "peer-a"))
				_, ok, err = s.Get(t.Context())
				require.NoError(t, err)
				require.False(t, ok)

				// Clearing an absent claim is a no-op.
				require.NoError(t, s.Clear(t.Context(), "peer-a"))
			})

			t.Run("WatchSeesSetAndClear", func(t *testing.T) {
				s := factory(t)
				defer func() { _ = s.Close() }()

				var log eventLog
				sub, err := s.Watch(t.Context(), log.handle)
				require.NoError(t, err)
				defer func() { _ = sub.Unsubscribe() }()

				require.NoError(t, s.Set(t.Context(), claimAt("peer-a", 1_000)))
				require.NoError(t, s.Clear(t.Context(), "peer-a"))

				require.Eventually(t, func() bool {
					return len(log.snapshot()) == 2
				}, 5*time.Second, 10*time.Millisecond)

				events := log.snapshot()
				require.False(t, events[0].Deleted)
				require.Equal(t, "peer-a", events[0].Claim.PeerID)
				require.True(t, events[1].Deleted)
			})

			t.Run("UnsubscribeStopsEvents", func(t *testing.T) {
				s := factory(t)
				defer func() { _ = s.Close() }()

				var log eventLog
				sub, err := s.Watch(t.Context(), log.handle)
				require.NoError(t, err)
				require.NoError(t, sub.Unsubscribe())
				require.NoError(t, sub.Unsubscribe())

				require.NoError(t, s.Set(t.Context(), claimAt("peer-a", 1_000)))
				time.Sleep(100 * time.Millisecond)
				require.Empty(t, log.snapshot())
			})

			t.Run("ClosedStore", func(t *testing.T) {
				s := factory(t)
				require.NoError(t, s.Close())
				require.NoError(t, s.Close())

				_, _, err := s.Get(t.Context())
				require.ErrorIs(t, err, types.ErrStoreClosed)
				require.ErrorIs(t, s.Set(t.Context(), claimAt("peer-a", 1)), types.ErrStoreClosed)
				_, err = s.Watch(t.Context(), func(types.ClaimEvent) {})
				require.ErrorIs(t, err, types.ErrStoreClosed)
			})
		})
	}
}

func TestMemory_SetFailure(t *testing.T) {
	s := NewMemory()
	boom := types.ErrStoreClosed

	s.SetFailure(boom)
	_, _, err := s.Get(t.Context())
	require.ErrorIs(t, err, boom)
	require.ErrorIs(t, s.Set(t.Context(), claimAt("peer-a", 1)), boom)

	s.SetFailure(nil)
	require.NoError(t, s.Set(t.Context(), claimAt("peer-a", 1)))
}

func TestBolt_SurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "claims.db")
	key := hash.ClaimKey("session-1")

	s, err := OpenBolt(path, key, time.Second)
	require.NoError(t, err)
	require.NoError(t, s.Set(t.Context(), claimAt("peer-a", 42_000)))
	require.NoError(t, s.Close())

	s, err = OpenBolt(path, key, time.Second)
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	got, ok, err := s.Get(t.Context())
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "peer-a", got.PeerID)
	require.EqualValues(t, 42_000, got.ClaimedAt.UnixMilli())
}

func TestBolt_KeysAreIndependent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "claims.db")
	a, err := OpenBolt(path, hash.ClaimKey("session-a"), time.Second)
	require.NoError(t, err)
	defer func() { _ = a.Close() }()

	b, err := NewBolt(a.db, hash.ClaimKey("session-b"))
	require.NoError(t, err)
	defer func() { _ = b.Close() }()

	require.NoError(t, a.Set(t.Context(), claimAt("peer-a", 1)))

	_, ok, err := b.Get(t.Context())
	require.NoError(t, err)
	require.False(t, ok)
}

func TestDecodeClaim_Invalid(t *testing.T) {
	_, err := decodeClaim([]byte("not json"))
	require.ErrorIs(t, err, types.ErrInvalidClaim)

	_, err = decodeClaim([]byte(`{"claimedAt":"2024-01-01T00:00:00Z"}`))
	require.ErrorIs(t, err, types.ErrInvalidClaim)
}
