package crypto

// GenerateDEK returns a fresh random 256-bit data-encrypting-key. Every
// content entity gets its own DEK, limiting the blast radius of a single
// key exposure to that one entity.
func GenerateDEK() ([]byte, error) {
	return RandomBytes(KeySize)
}

// WrapDEK wraps a DEK under a KEK. A DEK is created once per entity and is
// only ever rewrapped, never re-derived, when the KEK changes.
func WrapDEK(dek, kek []byte) (*WrappedKey, error) {
	wrapped, err := WrapKey(kek, dek)
	if err != nil {
		return nil, err
	}
	return &WrappedKey{Key: wrapped, Algorithm: AlgAESKW}, nil
}

// UnwrapDEK recovers the raw DEK bytes from a wrapped key. It returns
// ErrAuthenticationFailed when kek is not the key the DEK was wrapped with.
func UnwrapDEK(w *WrappedKey, kek []byte) ([]byte, error) {
	if w == nil {
		return nil, ErrInvalidPayload
	}
	if w.Algorithm != AlgAESKW {
		return nil, ErrInvalidAlgorithm
	}
	return UnwrapKey(kek, w.Key)
}

// RewrapDEK moves a DEK from one KEK to another without touching the
// content ciphertext it protects. Cost is independent of content size.
func RewrapDEK(w *WrappedKey, oldKEK, newKEK []byte) (*WrappedKey, error) {
	dek, err := UnwrapDEK(w, oldKEK)
	if err != nil {
		return nil, err
	}
	defer Zero(dek)
	return WrapDEK(dek, newKEK)
}
