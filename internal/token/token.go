// Package token builds and parses signed JWTs for the authentication core.
// Tokens are RS256-signed; the private key mints, the public key verifies.
package token

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/oklog/ulid/v2"

	"github.com/authgate/authgate/internal/model"
)

// Token classes. A refresh token must never authorize an API request,
// and an access token must never mint a new pair.
const (
	TypeAccess  = "access"
	TypeRefresh = "refresh"
)

// signingMethod is pinned. Tokens whose header declares anything else are
// rejected regardless of signature validity (algorithm confusion defense).
var signingMethod = jwt.SigningMethodRS256

// ErrInvalidToken is returned for every verification failure: bad
// signature, wrong algorithm, expired, wrong issuer or audience, malformed
// structure, or wrong token class. Callers get one opaque signal so the
// response cannot be used as an oracle; the wrapped detail is for logs only.
var ErrInvalidToken = errors.New("invalid token")

// Pair bundles the tokens minted at login.
type Pair struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    time.Duration
}

// Codec issues and verifies tokens with process-wide key material.
// Keys are loaded once at startup and never mutated, so a single Codec is
// safe for unbounded concurrent use.
type Codec struct {
	privateKey *rsa.PrivateKey
	publicKey  *rsa.PublicKey
	issuer     string
	audience   string
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

// Config holds the deployment-fixed token parameters.
type Config struct {
	PrivateKey *rsa.PrivateKey
	PublicKey  *rsa.PublicKey
	Issuer     string
	Audience   string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	// Now overrides the clock. Nil uses time.Now.
	Now func() time.Time
}

// NewCodec creates a Codec. The public key may be derived from the
// private key when only the latter is configured.
func NewCodec(cfg Config) (*Codec, error) {
	if cfg.PrivateKey == nil {
		return nil, errors.New("token: private key is required")
	}
	pub := cfg.PublicKey
	if pub == nil {
		pub = &cfg.PrivateKey.PublicKey
	}
	if cfg.Issuer == "" || cfg.Audience == "" {
		return nil, errors.New("token: issuer and audience are required")
	}
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 {
		return nil, errors.New("token: TTLs must be positive")
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Codec{
		privateKey: cfg.PrivateKey,
		publicKey:  pub,
		issuer:     cfg.Issuer,
		audience:   cfg.Audience,
		accessTTL:  cfg.AccessTTL,
		refreshTTL: cfg.RefreshTTL,
		now:        now,
	}, nil
}

// AccessTTL returns the configured access-token lifetime.
func (c *Codec) AccessTTL() time.Duration {
	return c.accessTTL
}

// IssueAccess mints a short-lived access token for the user.
// The claims carry the user id as `sub`, a ULID `jti`, and the user's
// elevation flag as `access`.
func (c *Codec) IssueAccess(user *model.User) (string, error) {
	claims := c.baseClaims(user.ID.String(), TypeAccess, c.accessTTL)
	claims.Access = user.Access
	return c.sign(claims)
}

// IssueRefresh mints a long-lived refresh token. Refresh tokens carry the
// narrower claim set: no elevation flag.
func (c *Codec) IssueRefresh(user *model.User) (string, error) {
	return c.sign(c.baseClaims(user.ID.String(), TypeRefresh, c.refreshTTL))
}

// IssuePair mints the access/refresh pair returned at login.
func (c *Codec) IssuePair(user *model.User) (*Pair, error) {
	access, err := c.IssueAccess(user)
	if err != nil {
		return nil, err
	}
	refresh, err := c.IssueRefresh(user)
	if err != nil {
		return nil, err
	}
	return &Pair{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    c.accessTTL,
	}, nil
}

// VerifyAccess verifies a raw token and requires the access class.
func (c *Codec) VerifyAccess(raw string) (*Claims, error) {
	return c.verify(raw, TypeAccess)
}

// VerifyRefresh verifies a raw token and requires the refresh class.
func (c *Codec) VerifyRefresh(raw string) (*Claims, error) {
	return c.verify(raw, TypeRefresh)
}

func (c *Codec) baseClaims(subject, tokenType string, ttl time.Duration) *Claims {
	now := c.now().UTC()
	return &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    c.issuer,
			Subject:   subject,
			Audience:  jwt.ClaimStrings{c.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        ulid.Make().String(),
		},
		TokenType: tokenType,
	}
}

func (c *Codec) sign(claims *Claims) (string, error) {
	raw, err := jwt.NewWithClaims(signingMethod, claims).SignedString(c.privateKey)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return raw, nil
}

// verify parses and validates a raw token. Signature and algorithm checks
// happen inside ParseWithClaims; temporal and deployment claims are checked
// here against the injected clock so tests can pin time.
func (c *Codec) verify(raw, wantType string) (*Claims, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (any, error) {
		return c.publicKey, nil
	},
		jwt.WithValidMethods([]string{signingMethod.Alg()}),
		jwt.WithoutClaimsValidation(),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	if claims.Issuer != c.issuer {
		return nil, fmt.Errorf("%w: issuer mismatch", ErrInvalidToken)
	}
	if !audienceContains(claims.Audience, c.audience) {
		return nil, fmt.Errorf("%w: audience mismatch", ErrInvalidToken)
	}
	if claims.ExpiresAt == nil || !claims.ExpiresAt.Time.After(c.now()) {
		return nil, fmt.Errorf("%w: expired", ErrInvalidToken)
	}
	if claims.NotBefore != nil && c.now().Before(claims.NotBefore.Time) {
		return nil, fmt.Errorf("%w: not yet valid", ErrInvalidToken)
	}
	if claims.TokenType != wantType {
		return nil, fmt.Errorf("%w: wrong token class", ErrInvalidToken)
	}
	return &claims, nil
}

func audienceContains(aud jwt.ClaimStrings, want string) bool {
	for _, a := range aud {
		if a == want {
			return true
		}
	}
	return false
}
