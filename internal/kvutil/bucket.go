// Package kvutil provides utilities for working with NATS JetStream KeyValue stores.
package kvutil

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/arloliu/credshare/internal/backoff"
)

// EnsureBucket creates or opens a KV bucket with retry logic.
//
// All peers of a session race to create the claim bucket on startup. A
// create that loses the race (or finds a bucket created with a different
// config) falls back to opening the existing bucket.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - js: JetStream context
//   - config: KV bucket configuration
//   - attempts: Maximum number of attempts (values <= 0 mean 3)
//
// Returns:
//   - jetstream.KeyValue: The KV bucket instance
//   - error: Last error after all attempts
//
// Example:
//
//	kv, err := kvutil.EnsureBucket(ctx, js, jetstream.KeyValueConfig{
//	    Bucket:  "credshare-claims",
//	    History: 1,
//	}, 3)
func EnsureBucket(
	ctx context.Context,
	js jetstream.JetStream,
	config jetstream.KeyValueConfig,
	attempts int,
) (jetstream.KeyValue, error) {
	if attempts <= 0 {
		attempts = 3
	}

	var kv jetstream.KeyValue
	policy := backoff.Policy{Base: 10 * time.Millisecond, Multiplier: 2, Cap: 200 * time.Millisecond}

	n, err := backoff.Retry(ctx, attempts, policy, nil, func(ctx context.Context, _ int) error {
		created, err := js.CreateKeyValue(ctx, config)
		if err == nil {
			kv = created
			return nil
		}
		if !errors.Is(err, jetstream.ErrBucketExists) {
			return err
		}

		existing, err := js.KeyValue(ctx, config.Bucket)
		if err != nil {
			return fmt.Errorf("bucket exists but failed to open: %w", err)
		}
		kv = existing

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create/open KV bucket %s after %d attempts: %w", config.Bucket, n, err)
	}

	return kv, nil
}
