package metrics

import (
	"sync/atomic"
	"time"
)

// Snapshot captures current in-memory counters.
type Snapshot struct {
	UsersRegistered         uint64
	RegistrationsRejected   uint64
	LoginSuccesses          uint64
	LoginFailures           uint64
	LoginDurationCount      uint64
	LoginDurationTotalNs    int64
	AccessTokensIssued      uint64
	RefreshTokensIssued     uint64
	TokensRefreshed         uint64
	IdentitiesResolved      uint64
	IdentitiesRejected      uint64
}

// InMemoryRecorder stores metrics in memory for tests.
type InMemoryRecorder struct {
	usersRegistered       uint64
	registrationsRejected uint64
	loginSuccesses        uint64
	loginFailures         uint64
	loginDurationCount    uint64
	loginDurationTotalNs  int64
	accessTokensIssued    uint64
	refreshTokensIssued   uint64
	tokensRefreshed       uint64
	identitiesResolved    uint64
	identitiesRejected    uint64
}

// NewInMemory returns a Recorder that stores counters in memory.
func NewInMemory() *InMemoryRecorder {
	return &InMemoryRecorder{}
}

// Snapshot returns a copy of the counters.
func (m *InMemoryRecorder) Snapshot() Snapshot {
	return Snapshot{
		UsersRegistered:       atomic.LoadUint64(&m.usersRegistered),
		RegistrationsRejected: atomic.LoadUint64(&m.registrationsRejected),
		LoginSuccesses:        atomic.LoadUint64(&m.loginSuccesses),
		LoginFailures:         atomic.LoadUint64(&m.loginFailures),
		LoginDurationCount:    atomic.LoadUint64(&m.loginDurationCount),
		LoginDurationTotalNs:  atomic.LoadInt64(&m.loginDurationTotalNs),
		AccessTokensIssued:    atomic.LoadUint64(&m.accessTokensIssued),
		RefreshTokensIssued:   atomic.LoadUint64(&m.refreshTokensIssued),
		TokensRefreshed:       atomic.LoadUint64(&m.tokensRefreshed),
		IdentitiesResolved:    atomic.LoadUint64(&m.identitiesResolved),
		IdentitiesRejected:    atomic.LoadUint64(&m.identitiesRejected),
	}
}

// IncUserRegistered increments the registration counter.
func (m *InMemoryRecorder) IncUserRegistered() {
	atomic.AddUint64(&m.usersRegistered, 1)
}

// IncRegistrationRejected increments the rejected-registration counter.
func (m *InMemoryRecorder) IncRegistrationRejected(reason string) {
	atomic.AddUint64(&m.registrationsRejected, 1)
}

// IncLoginSuccess increments the successful-login counter.
func (m *InMemoryRecorder) IncLoginSuccess() {
	atomic.AddUint64(&m.loginSuccesses, 1)
}

// IncLoginFailure increments the failed-login counter.
func (m *InMemoryRecorder) IncLoginFailure(reason string) {
	atomic.AddUint64(&m.loginFailures, 1)
}

// ObserveLoginDuration records how long a credential check took.
func (m *InMemoryRecorder) ObserveLoginDuration(duration time.Duration) {
	atomic.AddUint64(&m.loginDurationCount, 1)
	atomic.AddInt64(&m.loginDurationTotalNs, duration.Nanoseconds())
}

// IncTokenIssued increments the issued-token counter for a token class.
func (m *InMemoryRecorder) IncTokenIssued(class string) {
	switch class {
	case "refresh":
		atomic.AddUint64(&m.refreshTokensIssued, 1)
	default:
		atomic.AddUint64(&m.accessTokensIssued, 1)
	}
}

// IncTokenRefreshed increments the refresh-grant counter.
func (m *InMemoryRecorder) IncTokenRefreshed() {
	atomic.AddUint64(&m.tokensRefreshed, 1)
}

// IncIdentityResolved increments the resolved-identity counter.
func (m *InMemoryRecorder) IncIdentityResolved() {
	atomic.AddUint64(&m.identitiesResolved, 1)
}

// IncIdentityRejected increments the rejected-identity counter.
func (m *InMemoryRecorder) IncIdentityRejected() {
	atomic.AddUint64(&m.identitiesRejected, 1)
}
