package crypto

import (
	"crypto/aes"
	"crypto/subtle"
	"encoding/binary"
	"fmt"
)

// rfc3394IV is the default initial value from RFC 3394 §2.2.3. The unwrap
// integrity check compares against it in constant time.
var rfc3394IV = []byte{0xA6, 0xA6, 0xA6, 0xA6, 0xA6, 0xA6, 0xA6, 0xA6}

// WrapKey wraps key material under kek using RFC 3394 AES Key Wrap.
// The construction is deterministic: no IV or nonce is consumed, so
// wrapping the same key under the same KEK always yields the same bytes.
func WrapKey(kek, key []byte) ([]byte, error) {
	if len(kek) != KeySize {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrInvalidKeySize, len(kek), KeySize)
	}
	if len(key) < 16 || len(key)%8 != 0 {
		return nil, fmt.Errorf("%w: key material must be a multiple of 8 bytes, at least 16", ErrInvalidKeySize)
	}

	block, err := aes.NewCipher(kek)
	if err != nil {
		return nil, err
	}

	n := len(key) / 8
	// A || R[1] .. R[n]
	buf := make([]byte, 8*(n+1))
	copy(buf[:8], rfc3394IV)
	copy(buf[8:], key)

	var b [16]byte
	for j := 0; j <= 5; j++ {
		for i := 1; i <= n; i++ {
			copy(b[:8], buf[:8])
			copy(b[8:], buf[8*i:8*i+8])
			block.Encrypt(b[:], b[:])
			t := uint64(n*j + i)
			binary.BigEndian.PutUint64(buf[:8], binary.BigEndian.Uint64(b[:8])^t)
			copy(buf[8*i:8*i+8], b[8:])
		}
	}
	return buf, nil
}

// UnwrapKey reverses WrapKey. It fails closed with ErrAuthenticationFailed
// when the unwrapping key does not match the wrapping key.
func UnwrapKey(kek, wrapped []byte) ([]byte, error) {
	if len(kek) != KeySize {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrInvalidKeySize, len(kek), KeySize)
	}
	if len(wrapped) < 24 || len(wrapped)%8 != 0 {
		return nil, ErrInvalidWrappedKeySize
	}

	block, err := aes.NewCipher(kek)
	if err != nil {
		return nil, err
	}

	n := len(wrapped)/8 - 1
	buf := make([]byte, len(wrapped))
	copy(buf, wrapped)

	var b [16]byte
	for j := 5; j >= 0; j-- {
		for i := n; i >= 1; i-- {
			t := uint64(n*j + i)
			binary.BigEndian.PutUint64(b[:8], binary.BigEndian.Uint64(buf[:8])^t)
			copy(b[8:], buf[8*i:8*i+8])
			block.Decrypt(b[:], b[:])
			copy(buf[:8], b[:8])
			copy(buf[8*i:8*i+8], b[8:])
		}
	}

	if subtle.ConstantTimeCompare(buf[:8], rfc3394IV) != 1 {
		return nil, ErrAuthenticationFailed
	}

	key := make([]byte, 8*n)
	copy(key, buf[8:])
	return key, nil
}
