package crypto

import (
	"bytes"
	"errors"
	"testing"
)

func TestSigningKeypair_SignVerify(t *testing.T) {
	kp, err := GenerateSigningKeypair()
	if err != nil {
		t.Fatalf("GenerateSigningKeypair() error = %v", err)
	}

	msg := []byte("encrypted entity payload")
	sig := kp.Sign(msg)

	if err := VerifySignature(kp.PublicKey, msg, sig); err != nil {
		t.Errorf("VerifySignature() error = %v", err)
	}

	if err := VerifySignature(kp.PublicKey, []byte("tampered"), sig); !errors.Is(err, ErrSignatureVerificationFailed) {
		t.Errorf("expected ErrSignatureVerificationFailed, got %v", err)
	}

	other, _ := GenerateSigningKeypair()
	if err := VerifySignature(other.PublicKey, msg, sig); !errors.Is(err, ErrSignatureVerificationFailed) {
		t.Errorf("expected ErrSignatureVerificationFailed for wrong key, got %v", err)
	}
}

func TestSigningKeypairFromSecretKey(t *testing.T) {
	kp, _ := GenerateSigningKeypair()

	restored, err := SigningKeypairFromSecretKey(kp.SecretKey)
	if err != nil {
		t.Fatalf("SigningKeypairFromSecretKey() error = %v", err)
	}
	if !bytes.Equal(restored.PublicKey, kp.PublicKey) {
		t.Error("restored public key differs from original")
	}

	if _, err := SigningKeypairFromSecretKey(make([]byte, 32)); !errors.Is(err, ErrInvalidKeySize) {
		t.Errorf("expected ErrInvalidKeySize, got %v", err)
	}
}
