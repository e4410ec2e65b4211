// Package sigverify implements the claim-authorization protocol: fixed
// byte-packed claim messages and secp256k1 signature recovery.
//
// The two claim flows pack fields in different orders and widths and use
// different digests. Each packing is a frozen wire contract; changing
// field order or width is a breaking protocol change.
package sigverify

import (
	"encoding/binary"

	"reelpay-ledger/internal/domain"
)

// Packed message sizes.
const (
	nativeClaimMessageLen = 20 + 32 + 8 + 16
	tokenClaimMessageLen  = 32 + 20 + 8 + 16
)

// NativeClaimMessage packs the native-flow claim message:
// issuer(20B) ∥ receiver(32B) ∥ amount u64 BE ∥ timestamp u128 BE.
// The signer applies the personal-message prefix over these raw bytes.
func NativeClaimMessage(issuer domain.Identity, receiver [32]byte, amount, timestamp uint64) []byte {
	msg := make([]byte, 0, nativeClaimMessageLen)
	msg = append(msg, issuer[:]...)
	msg = append(msg, receiver[:]...)
	msg = appendUint64(msg, amount)
	msg = appendUint128(msg, timestamp)
	return msg
}

// TokenClaimMessage packs the token-flow claim message:
// receiver(32B) ∥ issuer(20B) ∥ timestamp u64 BE ∥ amount u128 BE.
// The signer signs the keccak256 of these bytes directly, without prefix.
func TokenClaimMessage(receiver [32]byte, issuer domain.Identity, timestamp, amount uint64) []byte {
	msg := make([]byte, 0, tokenClaimMessageLen)
	msg = append(msg, receiver[:]...)
	msg = append(msg, issuer[:]...)
	msg = appendUint64(msg, timestamp)
	msg = appendUint128(msg, amount)
	return msg
}

func appendUint64(dst []byte, v uint64) []byte {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], v)
	return append(dst, buf[:]...)
}

// appendUint128 writes v as a 16-byte big-endian field. Values above 64
// bits never occur in this deployment, but the wire width is fixed.
func appendUint128(dst []byte, v uint64) []byte {
	var buf [16]byte
	binary.BigEndian.PutUint64(buf[8:], v)
	return append(dst, buf[:]...)
}
