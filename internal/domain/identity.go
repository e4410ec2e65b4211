package domain

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// Identity is a 20-byte secp256k1-derived signing identity.
// Giveaway escrows are seeded by the issuer's identity, and claim
// signatures must recover to it.
type Identity [20]byte

// ParseIdentity decodes a 40-character hex string (with or without 0x prefix).
func ParseIdentity(s string) (Identity, error) {
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	raw, err := hex.DecodeString(s)
	if err != nil {
		return Identity{}, fmt.Errorf("decode identity hex: %w", err)
	}
	if len(raw) != 20 {
		return Identity{}, fmt.Errorf("identity must be 20 bytes, got %d", len(raw))
	}
	var id Identity
	copy(id[:], raw)
	return id, nil
}

// Hex returns the lowercase hex encoding without prefix.
func (id Identity) Hex() string {
	return hex.EncodeToString(id[:])
}

// IsZero reports whether the identity is all zeroes.
func (id Identity) IsZero() bool {
	return id == Identity{}
}
