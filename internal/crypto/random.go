package crypto

import (
	"crypto/rand"
	"io"
)

// randReader is the random source used for key and nonce generation.
// It defaults to nil (which uses crypto/rand) but can be overridden for testing.
var randReader io.Reader

func randomSource() io.Reader {
	if randReader != nil {
		return randReader
	}
	return rand.Reader
}

// RandomBytes returns n cryptographically secure random bytes.
func RandomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := io.ReadFull(randomSource(), b); err != nil {
		return nil, err
	}
	return b, nil
}

// NewSalt returns a fresh random KDF salt.
func NewSalt() ([]byte, error) {
	return RandomBytes(SaltSize)
}

// Zero overwrites b with zeros. Used to wipe key material once a session
// or derivation scope ends.
func Zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
