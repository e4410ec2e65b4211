package sigverify

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/crypto"

	"reelpay-ledger/internal/domain"
)

// SignatureLength is R(32) ∥ S(32) ∥ V(1) with V ∈ {27, 28}.
const SignatureLength = 65

// ErrInvalidSignature is returned when a signature is malformed or does
// not correspond to a recoverable key.
var ErrInvalidSignature = errors.New("invalid signature")

const personalMessagePrefix = "\x19Ethereum Signed Message:\n"

// RecoverPersonal recovers the signer identity from a signature over the
// personal-message digest of message (prefix ∥ len ∥ message, keccak256).
// Used by the native claim flow.
func RecoverPersonal(message, signature []byte) (domain.Identity, error) {
	digest := personalDigest(message)
	return recoverIdentity(digest, signature)
}

// RecoverKeccak recovers the signer identity from a signature over
// keccak256(message) with no prefix. Used by the token claim flow.
func RecoverKeccak(message, signature []byte) (domain.Identity, error) {
	return recoverIdentity(crypto.Keccak256(message), signature)
}

func personalDigest(message []byte) []byte {
	prefixed := fmt.Sprintf("%s%d", personalMessagePrefix, len(message))
	return crypto.Keccak256([]byte(prefixed), message)
}

func recoverIdentity(digest, signature []byte) (domain.Identity, error) {
	if len(signature) != SignatureLength {
		return domain.Identity{}, fmt.Errorf("%w: length %d", ErrInvalidSignature, len(signature))
	}
	v := signature[64]
	if v != 27 && v != 28 {
		return domain.Identity{}, fmt.Errorf("%w: recovery id %d", ErrInvalidSignature, v)
	}

	// go-ethereum expects the recovery id in [0, 1].
	normalized := make([]byte, SignatureLength)
	copy(normalized, signature)
	normalized[64] = v - 27

	pub, err := crypto.SigToPub(digest, normalized)
	if err != nil {
		return domain.Identity{}, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	return domain.Identity(crypto.PubkeyToAddress(*pub)), nil
}
