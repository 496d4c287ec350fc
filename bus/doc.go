// Package bus provides types.Bus implementations.
//
// All peers of one session must use the same backend, channel and codec:
//
//   - NATS: core NATS pub/sub on one subject per session (the default)
//   - Redis: Redis pub/sub on one channel per session
//   - Memory: in-process hub for tests and single-process simulations
//
// Delivery is best effort in every backend. Messages published while a
// peer is disconnected or suspended are lost for that peer, which the
// election protocol tolerates.
package bus
