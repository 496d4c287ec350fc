package metrics

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/credshare/types"
)

func TestNopMetrics_DoesNotPanic(t *testing.T) {
	m := NewNop()

	require.NotPanics(t, func() {
		m.RecordRoleTransition(types.RoleIdle, types.RoleLeader, 1.5)
		m.RecordRoleTransition(types.Role(99), types.Role(100), -1)
		m.RecordLeadershipChange("peer-1")
		m.RecordElection("leader", 0.2)
		m.RecordClaimConflict()
		m.RecordCredentialFetch("commit", true, 0.1)
		m.RecordRefreshSkipped()
		m.RecordRelinquish("refresh_failed")
		m.RecordBusMessage("refresh", "out")
		m.RecordBusMessageDropped()
		m.RecordClaimStoreError("get")
		m.RecordSuspendDetected(90)
		m.RecordRevalidation("suspended")
	})
}
