package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"fmt"
)

// Encrypt encrypts plaintext with AES-256-GCM under a fresh random nonce.
// The authentication tag is split off the ciphertext so the stored blob
// carries {iv, ciphertext, tag} as independent fields.
func Encrypt(key, plaintext []byte) (*EncryptedBlob, error) {
	aead, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	nonce, err := RandomBytes(NonceSize)
	if err != nil {
		return nil, err
	}

	sealed := aead.Seal(nil, nonce, plaintext, nil)
	tagStart := len(sealed) - TagSize

	return &EncryptedBlob{
		IV:         nonce,
		Ciphertext: sealed[:tagStart],
		Tag:        sealed[tagStart:],
		Algorithm:  AlgAESGCM,
	}, nil
}

// Decrypt decrypts an EncryptedBlob. Any single-bit corruption of the
// ciphertext or tag causes ErrIntegrityFailure; corrupted plaintext is
// never returned.
func Decrypt(key []byte, blob *EncryptedBlob) ([]byte, error) {
	if blob == nil {
		return nil, ErrInvalidPayload
	}
	if blob.Algorithm != AlgAESGCM {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAlgorithm, blob.Algorithm)
	}
	if len(blob.IV) != NonceSize {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrInvalidNonceSize, len(blob.IV), NonceSize)
	}
	if len(blob.Tag) != TagSize {
		return nil, ErrIntegrityFailure
	}

	aead, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	sealed := make([]byte, 0, len(blob.Ciphertext)+len(blob.Tag))
	sealed = append(sealed, blob.Ciphertext...)
	sealed = append(sealed, blob.Tag...)

	plaintext, err := aead.Open(nil, blob.IV, sealed, nil)
	if err != nil {
		return nil, ErrIntegrityFailure
	}
	return plaintext, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrInvalidKeySize, len(key), KeySize)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
