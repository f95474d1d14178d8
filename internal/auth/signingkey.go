package auth

import (
	"fmt"
	"unicode/utf16"

	jwt "github.com/golang-jwt/jwt/v5"
)

// Minimum HMAC key sizes in bytes, per RFC 7518 section 3.2.
const (
	minKeyLenHS256 = 32
	minKeyLenHS384 = 48
	minKeyLenHS512 = 64
)

// DeriveSigningKey turns the configured passphrase into HMAC key material.
// The bytes are the UTF-16 encoding of the passphrase, byte order mark
// first, code units big-endian. Tokens issued by earlier deployments were
// signed with exactly this byte sequence, so the derivation is part of the
// wire format and cannot change.
func DeriveSigningKey(passphrase string) ([]byte, error) {
	units := utf16.Encode([]rune(passphrase))

	key := make([]byte, 0, 2+2*len(units))
	key = append(key, 0xFE, 0xFF)
	for _, unit := range units {
		key = append(key, byte(unit>>8), byte(unit))
	}

	if len(key) < minKeyLenHS256 {
		return nil, fmt.Errorf("signing passphrase too short: %d key bytes, need at least %d", len(key), minKeyLenHS256)
	}
	return key, nil
}

// signingMethodFor picks the strongest HMAC method the key size allows.
func signingMethodFor(key []byte) *jwt.SigningMethodHMAC {
	switch {
	case len(key) >= minKeyLenHS512:
		return jwt.SigningMethodHS512
	case len(key) >= minKeyLenHS384:
		return jwt.SigningMethodHS384
	default:
		return jwt.SigningMethodHS256
	}
}
