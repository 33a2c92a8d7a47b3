package crypto

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestEncrypt_Decrypt_RoundTrip(t *testing.T) {
	tests := []struct {
		name      string
		plaintext []byte
	}{
		{"empty", []byte{}},
		{"simple", []byte("hello world")},
		{"unicode", []byte("héllo wörld — привет 世界 🗒️")},
		{"binary", []byte{0x00, 0xff, 0x7f, 0x80}},
		{"large", []byte(strings.Repeat("0123456789abcdef", 8192))}, // 128 KiB
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dek, err := GenerateDEK()
			if err != nil {
				t.Fatal(err)
			}

			blob, err := Encrypt(dek, tt.plaintext)
			if err != nil {
				t.Fatalf("Encrypt() error = %v", err)
			}

			if len(blob.IV) != NonceSize {
				t.Errorf("IV length = %d, want %d", len(blob.IV), NonceSize)
			}
			if len(blob.Tag) != TagSize {
				t.Errorf("Tag length = %d, want %d", len(blob.Tag), TagSize)
			}
			if len(blob.Ciphertext) != len(tt.plaintext) {
				t.Errorf("ciphertext length = %d, want %d", len(blob.Ciphertext), len(tt.plaintext))
			}
			if blob.Algorithm != AlgAESGCM {
				t.Errorf("algorithm = %q, want %q", blob.Algorithm, AlgAESGCM)
			}

			got, err := Decrypt(dek, blob)
			if err != nil {
				t.Fatalf("Decrypt() error = %v", err)
			}
			if !bytes.Equal(got, tt.plaintext) {
				t.Errorf("decrypted = %q, want %q", got, tt.plaintext)
			}
		})
	}
}

func TestEncrypt_FreshNoncePerCall(t *testing.T) {
	dek, err := GenerateDEK()
	if err != nil {
		t.Fatal(err)
	}

	a, err := Encrypt(dek, []byte("same plaintext"))
	if err != nil {
		t.Fatal(err)
	}
	b, err := Encrypt(dek, []byte("same plaintext"))
	if err != nil {
		t.Fatal(err)
	}

	if bytes.Equal(a.IV, b.IV) {
		t.Error("two encryptions reused a nonce")
	}
	if bytes.Equal(a.Ciphertext, b.Ciphertext) {
		t.Error("two encryptions produced identical ciphertext")
	}
}

func TestDecrypt_WrongKey(t *testing.T) {
	dek1, _ := GenerateDEK()
	dek2, _ := GenerateDEK()

	blob, err := Encrypt(dek1, []byte("secret"))
	if err != nil {
		t.Fatal(err)
	}

	got, err := Decrypt(dek2, blob)
	if !errors.Is(err, ErrIntegrityFailure) {
		t.Errorf("expected ErrIntegrityFailure, got %v", err)
	}
	if got != nil {
		t.Errorf("wrong-key decrypt returned plaintext %q", got)
	}
}

func TestDecrypt_Tampering(t *testing.T) {
	dek, _ := GenerateDEK()
	blob, err := Encrypt(dek, []byte("integrity matters"))
	if err != nil {
		t.Fatal(err)
	}

	// Flip each byte of the ciphertext and tag in turn; decryption must
	// always reject, never return corrupted plaintext.
	for i := range blob.Ciphertext {
		mutated := *blob
		mutated.Ciphertext = bytes.Clone(blob.Ciphertext)
		mutated.Ciphertext[i] ^= 0x01
		if _, err := Decrypt(dek, &mutated); !errors.Is(err, ErrIntegrityFailure) {
			t.Fatalf("ciphertext byte %d: expected ErrIntegrityFailure, got %v", i, err)
		}
	}
	for i := range blob.Tag {
		mutated := *blob
		mutated.Tag = bytes.Clone(blob.Tag)
		mutated.Tag[i] ^= 0x01
		if _, err := Decrypt(dek, &mutated); !errors.Is(err, ErrIntegrityFailure) {
			t.Fatalf("tag byte %d: expected ErrIntegrityFailure, got %v", i, err)
		}
	}
}

func TestDecrypt_InvalidInputs(t *testing.T) {
	dek, _ := GenerateDEK()
	blob, err := Encrypt(dek, []byte("x"))
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		mutate  func(*EncryptedBlob)
		wantErr error
	}{
		{"nil blob", nil, ErrInvalidPayload},
		{"bad algorithm", func(b *EncryptedBlob) { b.Algorithm = "ROT13" }, ErrInvalidAlgorithm},
		{"short nonce", func(b *EncryptedBlob) { b.IV = b.IV[:8] }, ErrInvalidNonceSize},
		{"short tag", func(b *EncryptedBlob) { b.Tag = b.Tag[:15] }, ErrIntegrityFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var in *EncryptedBlob
			if tt.mutate != nil {
				mutated := *blob
				mutated.IV = bytes.Clone(blob.IV)
				mutated.Tag = bytes.Clone(blob.Tag)
				tt.mutate(&mutated)
				in = &mutated
			}
			if _, err := Decrypt(dek, in); !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestEncrypt_InvalidKeySize(t *testing.T) {
	for _, size := range []int{0, 16, 31, 33, 64} {
		key := make([]byte, size)
		if _, err := Encrypt(key, []byte("x")); !errors.Is(err, ErrInvalidKeySize) {
			t.Errorf("key size %d: expected ErrInvalidKeySize, got %v", size, err)
		}
	}
}
