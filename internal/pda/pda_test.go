package pda

import (
	"bytes"
	"errors"
	"testing"

	"github.com/mr-tron/base58"
)

const testProgramID = "paytGwzjKgffkpCPPTzMbKJV1miozAjuXpzjZx6it5T"

func TestNewDeriver_InvalidProgramID(t *testing.T) {
	if _, err := NewDeriver("not-base58-!!!"); err == nil {
		t.Error("expected error for malformed program id")
	}
	// Valid base58 but wrong length
	if _, err := NewDeriver(base58.Encode([]byte("short"))); err == nil {
		t.Error("expected error for short program id")
	}
}

func TestDerive_Deterministic(t *testing.T) {
	d, err := NewDeriver(testProgramID)
	if err != nil {
		t.Fatalf("NewDeriver failed: %v", err)
	}

	addr1, bump1, err := d.DeriveString("admin")
	if err != nil {
		t.Fatalf("Derive failed: %v", err)
	}
	addr2, bump2, err := d.DeriveString("admin")
	if err != nil {
		t.Fatalf("Derive failed: %v", err)
	}

	if addr1 != addr2 {
		t.Errorf("derivation not stable: %s != %s", addr1, addr2)
	}
	if bump1 != bump2 {
		t.Errorf("bump not stable: %d != %d", bump1, bump2)
	}
	if addr1 == "" {
		t.Error("expected non-empty address")
	}
}

func TestDerive_DistinctSeedsDistinctAddresses(t *testing.T) {
	d, err := NewDeriver(testProgramID)
	if err != nil {
		t.Fatalf("NewDeriver failed: %v", err)
	}

	seen := make(map[string]string)
	for _, label := range []string{"admin", "put_pool", "usdt_pool", "btc_pool", "eth_pool"} {
		addr, _, err := d.DeriveString(label)
		if err != nil {
			t.Fatalf("Derive(%q) failed: %v", label, err)
		}
		if prev, dup := seen[addr]; dup {
			t.Errorf("address collision between %q and %q: %s", prev, label, addr)
		}
		seen[addr] = label
	}
}

func TestDerive_NamespaceSeparation(t *testing.T) {
	// Same seed under different program IDs must not collide.
	d1, err := NewDeriver(testProgramID)
	if err != nil {
		t.Fatalf("NewDeriver failed: %v", err)
	}
	d2, err := NewDeriver("3Lkno95uimuGtwLXv3oNBhqraJmiaeFMiDakDfo449R4")
	if err != nil {
		t.Fatalf("NewDeriver failed: %v", err)
	}

	addr1, _, err := d1.DeriveString("admin")
	if err != nil {
		t.Fatalf("Derive failed: %v", err)
	}
	addr2, _, err := d2.DeriveString("admin")
	if err != nil {
		t.Fatalf("Derive failed: %v", err)
	}

	if addr1 == addr2 {
		t.Errorf("expected distinct addresses across namespaces, both %s", addr1)
	}
}

func TestDerive_MultiSeed(t *testing.T) {
	d, err := NewDeriver(testProgramID)
	if err != nil {
		t.Fatalf("NewDeriver failed: %v", err)
	}

	funder := bytes.Repeat([]byte{0x11}, 32)
	mint := bytes.Repeat([]byte{0x22}, 32)

	addr, _, err := d.Derive(funder, mint)
	if err != nil {
		t.Fatalf("Derive failed: %v", err)
	}

	// Order of seeds matters
	addrSwapped, _, err := d.Derive(mint, funder)
	if err != nil {
		t.Fatalf("Derive failed: %v", err)
	}
	if addr == addrSwapped {
		t.Error("expected seed order to affect derived address")
	}

	decoded, err := base58.Decode(addr)
	if err != nil {
		t.Fatalf("derived address is not base58: %v", err)
	}
	if len(decoded) != 32 {
		t.Errorf("expected 32-byte address, got %d", len(decoded))
	}
}

func TestDerive_SeedConstraints(t *testing.T) {
	d, err := NewDeriver(testProgramID)
	if err != nil {
		t.Fatalf("NewDeriver failed: %v", err)
	}

	// Seed longer than 32 bytes
	_, _, err = d.Derive(bytes.Repeat([]byte{0x01}, 33))
	if !errors.Is(err, ErrInvalidSeed) {
		t.Errorf("expected ErrInvalidSeed for long seed, got %v", err)
	}

	// Too many seeds
	many := make([][]byte, 17)
	for i := range many {
		many[i] = []byte{byte(i)}
	}
	_, _, err = d.Derive(many...)
	if !errors.Is(err, ErrInvalidSeed) {
		t.Errorf("expected ErrInvalidSeed for too many seeds, got %v", err)
	}
}

func TestDerive_OffCurve(t *testing.T) {
	d, err := NewDeriver(testProgramID)
	if err != nil {
		t.Fatalf("NewDeriver failed: %v", err)
	}

	addr, _, err := d.DeriveString("put_pool")
	if err != nil {
		t.Fatalf("Derive failed: %v", err)
	}
	raw, err := base58.Decode(addr)
	if err != nil {
		t.Fatalf("decode derived address: %v", err)
	}
	if isOnCurve(raw) {
		t.Error("derived address must be off the ed25519 curve")
	}
}
