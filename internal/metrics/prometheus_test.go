package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/arloliu/credshare/types"
)

func TestPrometheusCollector_LazyRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_ = NewPrometheus(reg, "test")

	families, err := reg.Gather()
	require.NoError(t, err)
	require.Empty(t, families)
}

func TestPrometheusCollector_Records(t *testing.T) {
	reg := prometheus.NewRegistry()
	p := NewPrometheus(reg, "test")

	p.RecordRoleTransition(types.RoleCandidate, types.RoleLeader, 0.3)
	p.RecordCredentialFetch("refresh", true, 0.05)
	p.RecordCredentialFetch("refresh", false, 0.05)
	p.RecordCredentialFetch("refresh", false, 0.07)
	p.RecordBusMessageDropped()
	p.RecordRevalidation("inactive")

	require.InDelta(t, 1, testutil.ToFloat64(p.roleTransitions.WithLabelValues("Candidate", "Leader")), 0)
	require.InDelta(t, 2, testutil.ToFloat64(p.fetches.WithLabelValues("refresh", "failure")), 0)
	require.InDelta(t, 1, testutil.ToFloat64(p.busDropped), 0)
	require.InDelta(t, 1, testutil.ToFloat64(p.revalidations.WithLabelValues("inactive")), 0)

	count, err := testutil.GatherAndCount(reg, "test_refresh_fetches_total")
	require.NoError(t, err)
	require.Equal(t, 2, count)
}
