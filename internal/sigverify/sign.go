package sigverify

import (
	"crypto/ecdsa"
	"fmt"

	"github.com/ethereum/go-ethereum/crypto"

	"reelpay-ledger/internal/domain"
)

// The signing side of the claim contracts. Issuers sign off-chain; the
// ledger only ever verifies. Wire signatures carry V ∈ {27, 28}.

// SignPersonal signs the personal-message digest of message (native flow).
func SignPersonal(message []byte, key *ecdsa.PrivateKey) ([]byte, error) {
	return sign(personalDigest(message), key)
}

// SignKeccak signs keccak256(message) with no prefix (token flow).
func SignKeccak(message []byte, key *ecdsa.PrivateKey) ([]byte, error) {
	return sign(crypto.Keccak256(message), key)
}

// SignerIdentity returns the 20-byte identity for a signing key.
func SignerIdentity(key *ecdsa.PrivateKey) domain.Identity {
	return domain.Identity(crypto.PubkeyToAddress(key.PublicKey))
}

func sign(digest []byte, key *ecdsa.PrivateKey) ([]byte, error) {
	sig, err := crypto.Sign(digest, key)
	if err != nil {
		return nil, fmt.Errorf("sign digest: %w", err)
	}
	sig[64] += 27
	return sig, nil
}
