// Package metrics provides types.MetricsCollector implementations.
package metrics

import "github.com/arloliu/credshare/types"

// NopMetrics implements a no-op metrics collector.
//
// All metrics are discarded. Useful for testing or when external
// metrics collection is used.
type NopMetrics struct{}

// Compile-time assertion that NopMetrics implements MetricsCollector.
var _ types.MetricsCollector = (*NopMetrics)(nil)

// NewNop creates a new no-op metrics collector.
//
// Example:
//
//	coord, err := credshare.NewCoordinator(&cfg, nc, src, credshare.WithMetrics(metrics.NewNop()))
func NewNop() *NopMetrics {
	return &NopMetrics{}
}

// ElectionMetrics implementation

// RecordRoleTransition discards the role transition metric.
func (n *NopMetrics) RecordRoleTransition(_ /* from */, _ /* to */ types.Role, _ /* duration */ float64) {
	// No-op
}

// RecordLeadershipChange discards the leadership change metric.
func (n *NopMetrics) RecordLeadershipChange(_ /* newLeader */ string) {
	// No-op
}

// RecordElection discards the election outcome metric.
func (n *NopMetrics) RecordElection(_ /* outcome */ string, _ /* duration */ float64) {
	// No-op
}

// RecordClaimConflict discards the claim conflict metric.
func (n *NopMetrics) RecordClaimConflict() {
	// No-op
}

// RefreshMetrics implementation

// RecordCredentialFetch discards the credential fetch metric.
func (n *NopMetrics) RecordCredentialFetch(_ /* purpose */ string, _ /* success */ bool, _ /* duration */ float64) {
	// No-op
}

// RecordRefreshSkipped discards the skipped refresh metric.
func (n *NopMetrics) RecordRefreshSkipped() {
	// No-op
}

// RecordRelinquish discards the relinquish metric.
func (n *NopMetrics) RecordRelinquish(_ /* reason */ string) {
	// No-op
}

// TransportMetrics implementation

// RecordBusMessage discards the bus message metric.
func (n *NopMetrics) RecordBusMessage(_ /* kind */ string, _ /* direction */ string) {
	// No-op
}

// RecordBusMessageDropped discards the dropped message metric.
func (n *NopMetrics) RecordBusMessageDropped() {
	// No-op
}

// RecordClaimStoreError discards the claim store error metric.
func (n *NopMetrics) RecordClaimStoreError(_ /* operation */ string) {
	// No-op
}

// LivenessMetrics implementation

// RecordSuspendDetected discards the suspend metric.
func (n *NopMetrics) RecordSuspendDetected(_ /* gap */ float64) {
	// No-op
}

// RecordRevalidation discards the revalidation metric.
func (n *NopMetrics) RecordRevalidation(_ /* reason */ string) {
	// No-op
}
