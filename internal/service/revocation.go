package service

import "context"

// RevocationGate answers whether a token id has been invalidated before
// its natural expiry. The check must be idempotent. The shipped default
// fails open (nothing is revoked); production deployments substitute a
// store-backed implementation without touching resolver logic.
type RevocationGate interface {
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

// NoopRevocations is the fail-open default: no token is ever revoked.
type NoopRevocations struct{}

// IsRevoked always reports false.
func (NoopRevocations) IsRevoked(ctx context.Context, jti string) (bool, error) {
	return false, nil
}
