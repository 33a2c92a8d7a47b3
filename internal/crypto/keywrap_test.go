package crypto

import (
	"bytes"
	"encoding/hex"
	"errors"
	"testing"
)

func mustHex(t *testing.T, s string) []byte {
	t.Helper()
	b, err := hex.DecodeString(s)
	if err != nil {
		t.Fatal(err)
	}
	return b
}

// RFC 3394 §4 test vectors for a 256-bit KEK.
func TestWrapKey_RFC3394Vectors(t *testing.T) {
	kek := mustHex(t, "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f")

	tests := []struct {
		name    string
		key     string
		wrapped string
	}{
		{
			// §4.3: 128 bits of key data with a 256-bit KEK
			"128-bit key data",
			"00112233445566778899aabbccddeeff",
			"64e8c3f9ce0f5ba263e9777905818a2a93c8191e7d6e8ae7",
		},
		{
			// §4.6: 256 bits of key data with a 256-bit KEK
			"256-bit key data",
			"00112233445566778899aabbccddeeff000102030405060708090a0b0c0d0e0f",
			"28c9f404c4b810f4cbccb35cfb87f8263f5786e2d80ed326cbc7f0e71a99f43bfb988b9b7a02dd21",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key := mustHex(t, tt.key)
			want := mustHex(t, tt.wrapped)

			got, err := WrapKey(kek, key)
			if err != nil {
				t.Fatalf("WrapKey() error = %v", err)
			}
			if !bytes.Equal(got, want) {
				t.Errorf("wrapped = %x, want %x", got, want)
			}

			unwrapped, err := UnwrapKey(kek, got)
			if err != nil {
				t.Fatalf("UnwrapKey() error = %v", err)
			}
			if !bytes.Equal(unwrapped, key) {
				t.Errorf("unwrapped = %x, want %x", unwrapped, key)
			}
		})
	}
}

func TestWrapKey_Deterministic(t *testing.T) {
	kek, _ := RandomBytes(KeySize)
	dek, _ := GenerateDEK()

	a, err := WrapKey(kek, dek)
	if err != nil {
		t.Fatal(err)
	}
	b, err := WrapKey(kek, dek)
	if err != nil {
		t.Fatal(err)
	}

	if !bytes.Equal(a, b) {
		t.Error("wrapping the same key under the same KEK produced different bytes")
	}
}

func TestUnwrapKey_WrongKEK(t *testing.T) {
	kek1, _ := RandomBytes(KeySize)
	kek2, _ := RandomBytes(KeySize)
	dek, _ := GenerateDEK()

	wrapped, err := WrapKey(kek1, dek)
	if err != nil {
		t.Fatal(err)
	}

	got, err := UnwrapKey(kek2, wrapped)
	if !errors.Is(err, ErrAuthenticationFailed) {
		t.Errorf("expected ErrAuthenticationFailed, got %v", err)
	}
	if got != nil {
		t.Errorf("wrong-KEK unwrap returned key material %x", got)
	}
}

func TestUnwrapKey_CorruptedWrap(t *testing.T) {
	kek, _ := RandomBytes(KeySize)
	dek, _ := GenerateDEK()

	wrapped, err := WrapKey(kek, dek)
	if err != nil {
		t.Fatal(err)
	}

	for i := range wrapped {
		mutated := bytes.Clone(wrapped)
		mutated[i] ^= 0x01
		if _, err := UnwrapKey(kek, mutated); !errors.Is(err, ErrAuthenticationFailed) {
			t.Fatalf("byte %d: expected ErrAuthenticationFailed, got %v", i, err)
		}
	}
}

func TestWrapKey_InvalidSizes(t *testing.T) {
	kek, _ := RandomBytes(KeySize)

	tests := []struct {
		name    string
		keyLen  int
		wantErr error
	}{
		{"empty", 0, ErrInvalidKeySize},
		{"too short", 8, ErrInvalidKeySize},
		{"not multiple of 8", 33, ErrInvalidKeySize},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := WrapKey(kek, make([]byte, tt.keyLen)); !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}

	if _, err := UnwrapKey(kek, make([]byte, 17)); !errors.Is(err, ErrInvalidWrappedKeySize) {
		t.Errorf("expected ErrInvalidWrappedKeySize, got %v", err)
	}
}
