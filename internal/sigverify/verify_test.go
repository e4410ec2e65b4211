package sigverify

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/crypto"

	"reelpay-ledger/internal/domain"
)

func testReceiver() [32]byte {
	var r [32]byte
	for i := range r {
		r[i] = byte(i + 1)
	}
	return r
}

func TestNativeClaimMessage_Layout(t *testing.T) {
	issuer := domain.Identity{0xAA, 0xBB}
	receiver := testReceiver()
	msg := NativeClaimMessage(issuer, receiver, 1_000_000_000, 1735689600)

	if len(msg) != 76 {
		t.Fatalf("expected 76-byte message, got %d", len(msg))
	}
	if !bytes.Equal(msg[:20], issuer[:]) {
		t.Error("issuer bytes not at offset 0")
	}
	if !bytes.Equal(msg[20:52], receiver[:]) {
		t.Error("receiver bytes not at offset 20")
	}
	if got := binary.BigEndian.Uint64(msg[52:60]); got != 1_000_000_000 {
		t.Errorf("amount field: got %d", got)
	}
	// timestamp occupies a 16-byte field, value in the low 8 bytes
	if !bytes.Equal(msg[60:68], make([]byte, 8)) {
		t.Error("timestamp high bytes must be zero")
	}
	if got := binary.BigEndian.Uint64(msg[68:76]); got != 1735689600 {
		t.Errorf("timestamp field: got %d", got)
	}
}

func TestTokenClaimMessage_Layout(t *testing.T) {
	issuer := domain.Identity{0xAA, 0xBB}
	receiver := testReceiver()
	msg := TokenClaimMessage(receiver, issuer, 1735689600, 300000)

	if len(msg) != 76 {
		t.Fatalf("expected 76-byte message, got %d", len(msg))
	}
	if !bytes.Equal(msg[:32], receiver[:]) {
		t.Error("receiver bytes not at offset 0")
	}
	if !bytes.Equal(msg[32:52], issuer[:]) {
		t.Error("issuer bytes not at offset 32")
	}
	if got := binary.BigEndian.Uint64(msg[52:60]); got != 1735689600 {
		t.Errorf("timestamp field: got %d", got)
	}
	if got := binary.BigEndian.Uint64(msg[68:76]); got != 300000 {
		t.Errorf("amount field: got %d", got)
	}
}

func TestClaimMessages_NotInterchangeable(t *testing.T) {
	issuer := domain.Identity{0x01}
	receiver := testReceiver()
	native := NativeClaimMessage(issuer, receiver, 500, 600)
	token := TokenClaimMessage(receiver, issuer, 600, 500)
	if bytes.Equal(native, token) {
		t.Error("native and token packings must differ")
	}
}

func TestRecoverPersonal_Roundtrip(t *testing.T) {
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey failed: %v", err)
	}
	issuer := SignerIdentity(key)
	msg := NativeClaimMessage(issuer, testReceiver(), 1_000_000_000, 1735689600)

	sig, err := SignPersonal(msg, key)
	if err != nil {
		t.Fatalf("SignPersonal failed: %v", err)
	}
	if len(sig) != SignatureLength {
		t.Fatalf("expected %d-byte signature, got %d", SignatureLength, len(sig))
	}
	if sig[64] != 27 && sig[64] != 28 {
		t.Fatalf("expected wire recovery id 27/28, got %d", sig[64])
	}

	got, err := RecoverPersonal(msg, sig)
	if err != nil {
		t.Fatalf("RecoverPersonal failed: %v", err)
	}
	if got != issuer {
		t.Errorf("recovered %s, want %s", got.Hex(), issuer.Hex())
	}
}

func TestRecoverKeccak_Roundtrip(t *testing.T) {
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey failed: %v", err)
	}
	issuer := SignerIdentity(key)
	msg := TokenClaimMessage(testReceiver(), issuer, 1735689600, 300000)

	sig, err := SignKeccak(msg, key)
	if err != nil {
		t.Fatalf("SignKeccak failed: %v", err)
	}

	got, err := RecoverKeccak(msg, sig)
	if err != nil {
		t.Fatalf("RecoverKeccak failed: %v", err)
	}
	if got != issuer {
		t.Errorf("recovered %s, want %s", got.Hex(), issuer.Hex())
	}
}

func TestRecover_DigestSchemesDiffer(t *testing.T) {
	// A native-flow signature must not verify under the token-flow digest.
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey failed: %v", err)
	}
	issuer := SignerIdentity(key)
	msg := NativeClaimMessage(issuer, testReceiver(), 100, 200)

	sig, err := SignPersonal(msg, key)
	if err != nil {
		t.Fatalf("SignPersonal failed: %v", err)
	}

	got, err := RecoverKeccak(msg, sig)
	if err == nil && got == issuer {
		t.Error("signature verified under the wrong digest scheme")
	}
}

func TestRecover_TamperedMessage(t *testing.T) {
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey failed: %v", err)
	}
	issuer := SignerIdentity(key)
	msg := NativeClaimMessage(issuer, testReceiver(), 100, 200)

	sig, err := SignPersonal(msg, key)
	if err != nil {
		t.Fatalf("SignPersonal failed: %v", err)
	}

	// Bump the amount field by one
	tampered := NativeClaimMessage(issuer, testReceiver(), 101, 200)
	got, err := RecoverPersonal(tampered, sig)
	if err == nil && got == issuer {
		t.Error("tampered message recovered the issuer identity")
	}
}

func TestRecover_Malformed(t *testing.T) {
	msg := []byte("payload")

	tests := []struct {
		name string
		sig  []byte
	}{
		{"empty", nil},
		{"short", make([]byte, 64)},
		{"long", make([]byte, 66)},
		{"bad recovery id", append(make([]byte, 64), 99)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := RecoverPersonal(msg, tt.sig)
			if !errors.Is(err, ErrInvalidSignature) {
				t.Errorf("expected ErrInvalidSignature, got %v", err)
			}
			_, err = RecoverKeccak(msg, tt.sig)
			if !errors.Is(err, ErrInvalidSignature) {
				t.Errorf("expected ErrInvalidSignature, got %v", err)
			}
		})
	}
}
