// Package pda derives deterministic program addresses from seed bytes.
//
// Derivation follows the Solana program-derived-address algorithm:
// SHA256(seeds ∥ bump ∥ programID ∥ "ProgramDerivedAddress"), searching
// bump seeds downward from 255 until the hash is not a valid ed25519
// curve point. The program ID acts as the namespace discriminator, so
// distinct deployments cannot collide.
package pda

import (
	"crypto/sha256"
	"errors"
	"fmt"

	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"
)

const derivedAddressMarker = "ProgramDerivedAddress"

// Solana seed constraints.
const (
	maxSeeds      = 16
	maxSeedLength = 32
)

var (
	// ErrNoBumpFound is returned when every bump seed yields an on-curve point.
	ErrNoBumpFound = errors.New("no valid bump seed found")

	// ErrInvalidSeed is returned when seeds violate length constraints.
	ErrInvalidSeed = errors.New("invalid seed")
)

// Deriver computes addresses within one program's namespace.
type Deriver struct {
	programID []byte // 32-byte program key
}

// NewDeriver creates a Deriver for a base58-encoded program ID.
func NewDeriver(programID string) (*Deriver, error) {
	raw, err := base58.Decode(programID)
	if err != nil {
		return nil, fmt.Errorf("decode program id: %w", err)
	}
	if len(raw) != 32 {
		return nil, fmt.Errorf("program id must be 32 bytes, got %d", len(raw))
	}
	return &Deriver{programID: raw}, nil
}

// Derive returns the deterministic address and disambiguation bump for the
// given seeds. Identical inputs always yield identical output.
func (d *Deriver) Derive(seeds ...[]byte) (string, byte, error) {
	if len(seeds) > maxSeeds {
		return "", 0, fmt.Errorf("%w: too many seeds (%d)", ErrInvalidSeed, len(seeds))
	}
	for i, seed := range seeds {
		if len(seed) > maxSeedLength {
			return "", 0, fmt.Errorf("%w: seed %d exceeds %d bytes", ErrInvalidSeed, i, maxSeedLength)
		}
	}

	for bump := byte(255); bump > 0; bump-- {
		data := make([]byte, 0)
		for _, seed := range seeds {
			data = append(data, seed...)
		}
		data = append(data, bump)
		data = append(data, d.programID...)
		data = append(data, []byte(derivedAddressMarker)...)

		hash := sha256.Sum256(data)

		// A derived address must not be a valid curve point, so no
		// keypair can ever sign for it.
		if !isOnCurve(hash[:]) {
			return base58.Encode(hash[:]), bump, nil
		}
	}

	return "", 0, ErrNoBumpFound
}

// DeriveString derives an address from a single UTF-8 label seed.
func (d *Deriver) DeriveString(label string) (string, byte, error) {
	return d.Derive([]byte(label))
}

func isOnCurve(point []byte) bool {
	if len(point) != 32 {
		return false
	}
	_, err := new(edwards25519.Point).SetBytes(point)
	return err == nil
}
