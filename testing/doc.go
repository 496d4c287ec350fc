// Package testing provides test utilities for the credshare library.
//
// This package offers helpers for setting up test environments, particularly
// embedded NATS servers for integration testing. It follows Go's convention
// of providing testing utilities in a dedicated package (similar to net/http/httptest).
//
// Key utilities:
//   - StartEmbeddedNATS: Single NATS server with JetStream
//   - Connect: Extra client connection, one per simulated peer process
//   - CreateJetStreamKV: Convenience wrapper for KV bucket creation
//   - RedisClient: Client for an external Redis named by CREDSHARE_REDIS_ADDR
//   - NewTestLogger: types.Logger writing to t.Logf
//
// Example usage:
//
//	import (
//	    "testing"
//	    credtest "github.com/arloliu/credshare/testing"
//	)
//
//	func TestMyComponent(t *testing.T) {
//	    _, nc := credtest.StartEmbeddedNATS(t)
//	    // Use nc for your tests
//	}
package testing
