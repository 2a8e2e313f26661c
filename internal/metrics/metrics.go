// Package metrics provides lightweight hooks for instrumentation.
package metrics

import "time"

// Recorder captures metric events for the application.
// Implementations can expose these to Prometheus, StatsD, etc.
type Recorder interface {
	// Registration metrics
	IncUserRegistered()
	IncRegistrationRejected(reason string) // reason: "validation" or "duplicate"

	// Login metrics
	IncLoginSuccess()
	IncLoginFailure(reason string) // reason: "credentials" or "inactive"
	ObserveLoginDuration(duration time.Duration)

	// Token metrics
	IncTokenIssued(class string) // class: "access" or "refresh"
	IncTokenRefreshed()

	// Request authentication metrics
	IncIdentityResolved()
	IncIdentityRejected()
}

// Snapshotter exposes a snapshot of current metrics.
type Snapshotter interface {
	Snapshot() Snapshot
}
