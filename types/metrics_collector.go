package types

// MetricsCollector defines methods for recording operational metrics.
//
// Implementations should be non-blocking and handle failures gracefully.
// All methods are called from internal goroutines and must be thread-safe.
//
// This interface composes smaller, domain-focused interfaces for better modularity.
type MetricsCollector interface {
	ElectionMetrics
	RefreshMetrics
	TransportMetrics
	LivenessMetrics
}

// ElectionMetrics defines metrics for the election state machine.
type ElectionMetrics interface {
	// RecordRoleTransition records a role transition and the time spent in the previous role.
	RecordRoleTransition(from, to Role, duration float64)

	// RecordLeadershipChange records that the peer adopted a new leader.
	RecordLeadershipChange(newLeader string)

	// RecordElection records the outcome of an election round.
	//
	// Parameters:
	//   - outcome: "leader", "follower" or "failed"
	//   - duration: Time from entering Candidate to the outcome, in seconds
	RecordElection(outcome string, duration float64)

	// RecordClaimConflict records a detected double leadership.
	RecordClaimConflict()
}

// RefreshMetrics defines metrics for credential fetching.
type RefreshMetrics interface {
	// RecordCredentialFetch records one credential source call.
	//
	// Parameters:
	//   - purpose: "commit", "refresh" or "pull"
	//   - success: true if the call returned a credential
	//   - duration: Call latency in seconds
	RecordCredentialFetch(purpose string, success bool, duration float64)

	// RecordRefreshSkipped records a refresh tick skipped because a fetch was in flight.
	RecordRefreshSkipped()

	// RecordRelinquish records the leader giving up leadership.
	//
	// Parameters:
	//   - reason: "refresh_failed", "conflict", "logout" or "shutdown"
	RecordRelinquish(reason string)
}

// TransportMetrics defines metrics for the bus and claim store.
type TransportMetrics interface {
	// RecordBusMessage records a bus message.
	//
	// Parameters:
	//   - kind: Message kind name
	//   - direction: "in" or "out"
	RecordBusMessage(kind string, direction string)

	// RecordBusMessageDropped records an inbound message dropped because the inbox was full.
	RecordBusMessageDropped()

	// RecordClaimStoreError records a failed claim store operation.
	//
	// Parameters:
	//   - operation: "get", "set", "clear" or "watch"
	RecordClaimStoreError(operation string)
}

// LivenessMetrics defines metrics for the liveness monitor.
type LivenessMetrics interface {
	// RecordSuspendDetected records a detected process suspension and its gap in seconds.
	RecordSuspendDetected(gap float64)

	// RecordRevalidation records a leadership re-validation pass.
	//
	// Parameters:
	//   - reason: "suspended" or "inactive"
	RecordRevalidation(reason string)
}
