// Package password provides one-way password hashing and verification.
// Hashes are Argon2id PHC strings that embed their own salt and cost
// parameters, so stored hashes stay verifiable across parameter changes.
package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

// Argon2id parameters (OWASP recommended minimum).
const (
	hashTime    = 3
	hashMemory  = 64 * 1024 // 64 MB
	hashThreads = 4
	hashKeyLen  = 32
	hashSaltLen = 16
)

// Hash creates an Argon2id hash of the given password in PHC string
// format: $argon2id$v=19$m=65536,t=3,p=4$<salt>$<hash>.
// The salt is generated internally, so hashing the same password twice
// yields two different strings that both verify.
func Hash(password string) (string, error) {
	salt := make([]byte, hashSaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}

	key := argon2.IDKey([]byte(password), salt, hashTime, hashMemory, hashThreads, hashKeyLen)

	b64Salt := base64.RawStdEncoding.EncodeToString(salt)
	b64Key := base64.RawStdEncoding.EncodeToString(key)

	return fmt.Sprintf(
		"$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, hashMemory, hashTime, hashThreads, b64Salt, b64Key,
	), nil
}

// Verify reports whether the password matches the stored hash.
// It recomputes the key with the salt and cost parameters embedded in the
// stored string and compares in constant time. A malformed stored hash is
// treated as a mismatch, never an error, so callers cannot be tricked
// into a distinguishable failure path by corrupt data.
func Verify(password, stored string) bool {
	salt, expected, time, memory, threads, ok := parseHash(stored)
	if !ok {
		return false
	}

	computed := argon2.IDKey([]byte(password), salt, time, memory, threads, uint32(len(expected)))

	return subtle.ConstantTimeCompare(computed, expected) == 1
}

// DummyVerify burns the same work as a real verification against a
// throwaway hash. Callers use it on the user-not-found path so that a
// missing account costs the same as a wrong password.
func DummyVerify(password string) {
	Verify(password, dummyHash)
}

// dummyHash is a valid hash of an unguessable random string,
// used only to equalize timing.
const dummyHash = "$argon2id$v=19$m=65536,t=3,p=4$qj+iSdXYSyTCRZaLSYzeow$L3nSmJvJ/b0ZHj2xh9hHQqavE8Byg1mROnWbSFNd9N0"

// parseHash splits a PHC-format Argon2id string into its components.
func parseHash(stored string) (salt, key []byte, time, memory uint32, threads uint8, ok bool) {
	parts := strings.Split(stored, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		return nil, nil, 0, 0, 0, false
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != argon2.Version {
		return nil, nil, 0, 0, 0, false
	}

	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &time, &threads); err != nil {
		return nil, nil, 0, 0, 0, false
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return nil, nil, 0, 0, 0, false
	}

	key, err = base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil || len(key) == 0 {
		return nil, nil, 0, 0, 0, false
	}

	return salt, key, time, memory, threads, true
}
