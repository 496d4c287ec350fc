package kvutil

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/require"

	credtest "github.com/arloliu/credshare/testing"
)

func TestEnsureBucket_Concurrent(t *testing.T) {
	_, nc := credtest.StartEmbeddedNATS(t)

	js, err := jetstream.New(nc)
	require.NoError(t, err)

	const peers = 8
	cfg := jetstream.KeyValueConfig{Bucket: "claims-concurrent", History: 1, Storage: jetstream.MemoryStorage}

	var wg sync.WaitGroup
	errs := make(chan error, peers)
	for range peers {
		wg.Go(func() {
			kv, err := EnsureBucket(t.Context(), js, cfg, 5)
			if err == nil && kv == nil {
				err = context.Canceled
			}
			errs <- err
		})
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}
}

func TestEnsureBucket_DifferentConfigOpensExisting(t *testing.T) {
	_, nc := credtest.StartEmbeddedNATS(t)

	js, err := jetstream.New(nc)
	require.NoError(t, err)

	_, err = EnsureBucket(t.Context(), js, jetstream.KeyValueConfig{Bucket: "claims", History: 1, Storage: jetstream.MemoryStorage}, 3)
	require.NoError(t, err)

	kv, err := EnsureBucket(t.Context(), js, jetstream.KeyValueConfig{
		Bucket:  "claims",
		History: 1,
		TTL:     time.Hour,
		Storage: jetstream.MemoryStorage,
	}, 3)
	require.NoError(t, err)
	require.Equal(t, "claims", kv.Bucket())
}

func TestEnsureBucket_CanceledContext(t *testing.T) {
	_, nc := credtest.StartEmbeddedNATS(t)

	js, err := jetstream.New(nc)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	_, err = EnsureBucket(ctx, js, jetstream.KeyValueConfig{Bucket: "never"}, 3)
	require.Error(t, err)
}
