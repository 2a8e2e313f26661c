package token

import (
	"encoding/json"

	"github.com/golang-jwt/jwt/v5"
)

// Claims is the fixed token claim schema. Named fields cover everything the
// core reads; Extra preserves any custom claims a deployment attaches so
// they survive an issue/verify round trip without schema changes.
type Claims struct {
	jwt.RegisteredClaims

	// TokenType distinguishes the access and refresh classes.
	TokenType string `json:"token_type,omitempty"`

	// Access mirrors the user's elevation flag. Only set on access tokens.
	Access bool `json:"access,omitempty"`

	// Extra holds custom claims outside the fixed schema.
	Extra map[string]any `json:"-"`
}

// knownClaimKeys are the JSON keys owned by the fixed schema.
var knownClaimKeys = map[string]struct{}{
	"iss": {}, "sub": {}, "aud": {}, "exp": {}, "nbf": {}, "iat": {}, "jti": {},
	"token_type": {}, "access": {},
}

// fixedClaims avoids MarshalJSON/UnmarshalJSON recursion.
type fixedClaims Claims

// MarshalJSON flattens Extra into the claim object alongside the fixed
// fields. Fixed fields win on key collision.
func (c Claims) MarshalJSON() ([]byte, error) {
	fixed, err := json.Marshal(fixedClaims(c))
	if err != nil {
		return nil, err
	}
	if len(c.Extra) == 0 {
		return fixed, nil
	}

	merged := make(map[string]json.RawMessage, len(c.Extra)+len(knownClaimKeys))
	for k, v := range c.Extra {
		if _, reserved := knownClaimKeys[k]; reserved {
			continue
		}
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		merged[k] = raw
	}
	if err := json.Unmarshal(fixed, &merged); err != nil {
		return nil, err
	}
	return json.Marshal(merged)
}

// UnmarshalJSON decodes the fixed fields and collects everything else
// into Extra.
func (c *Claims) UnmarshalJSON(data []byte) error {
	var fixed fixedClaims
	if err := json.Unmarshal(data, &fixed); err != nil {
		return err
	}

	var all map[string]json.RawMessage
	if err := json.Unmarshal(data, &all); err != nil {
		return err
	}

	*c = Claims(fixed)
	for k, raw := range all {
		if _, reserved := knownClaimKeys[k]; reserved {
			continue
		}
		var v any
		if err := json.Unmarshal(raw, &v); err != nil {
			return err
		}
		if c.Extra == nil {
			c.Extra = make(map[string]any)
		}
		c.Extra[k] = v
	}
	return nil
}
