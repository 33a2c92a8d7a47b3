package crypto

import (
	"crypto/sha256"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
	"golang.org/x/crypto/pbkdf2"
)

// DeriveMasterKey derives the in-memory master key from an account password
// and a stored salt using PBKDF2-SHA-256 with PBKDF2Iterations rounds.
// The derivation is deterministic: the same password and salt always yield
// the same key. The master key is never persisted.
func DeriveMasterKey(password string, salt []byte) ([]byte, error) {
	if len(salt) != SaltSize {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrInvalidSaltSize, len(salt), SaltSize)
	}
	return pbkdf2.Key([]byte(password), salt, PBKDF2Iterations, KeySize, sha256.New), nil
}

// DeriveKEK derives a key-encrypting-key from a master key via HKDF-SHA-256
// with a fixed domain-separation label. The second derivation step decouples
// the wrapping capability from the master key itself, so one remembered
// secret roots independent capabilities.
func DeriveKEK(masterKey []byte, label string) ([]byte, error) {
	if len(masterKey) != KeySize {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrInvalidKeySize, len(masterKey), KeySize)
	}
	if label == "" {
		return nil, fmt.Errorf("empty domain label")
	}

	reader := hkdf.New(sha256.New, masterKey, nil, []byte(label))
	kek := make([]byte, KeySize)
	if _, err := io.ReadFull(reader, kek); err != nil {
		return nil, fmt.Errorf("derive kek: %w", err)
	}
	return kek, nil
}

// DeriveKeyFromPassword runs the full two-step pipeline: password -> master
// key -> KEK under the given label.
func DeriveKeyFromPassword(password string, salt []byte, label string) ([]byte, error) {
	master, err := DeriveMasterKey(password, salt)
	if err != nil {
		return nil, err
	}
	defer Zero(master)
	return DeriveKEK(master, label)
}
