package crypto

import "errors"

var (
	// ErrAuthenticationFailed is returned when a key unwrap is attempted
	// with the wrong key-encrypting-key. This failure is the mechanism by
	// which a wrong password is detected.
	ErrAuthenticationFailed = errors.New("key authentication failed")

	// ErrIntegrityFailure is returned when an authentication tag does not
	// match, meaning the ciphertext or tag was corrupted or tampered with.
	ErrIntegrityFailure = errors.New("message authentication failed")

	// ErrInvalidKeySize is returned when a key is not KeySize bytes.
	ErrInvalidKeySize = errors.New("invalid key size")

	// ErrInvalidNonceSize is returned when a nonce is not NonceSize bytes.
	ErrInvalidNonceSize = errors.New("invalid nonce size")

	// ErrInvalidSaltSize is returned when a KDF salt is not SaltSize bytes.
	ErrInvalidSaltSize = errors.New("invalid salt size")

	// ErrInvalidPayload is returned when a persisted payload is structurally
	// invalid: malformed JSON, an unknown kind tag, or missing fields.
	ErrInvalidPayload = errors.New("invalid payload")

	// ErrInvalidAlgorithm is returned when a payload names an unrecognized
	// or unsupported algorithm.
	ErrInvalidAlgorithm = errors.New("invalid algorithm")

	// ErrInvalidWrappedKeySize is returned when wrapped key material has an
	// impossible length for RFC 3394 output.
	ErrInvalidWrappedKeySize = errors.New("invalid wrapped key size")

	// ErrSignatureVerificationFailed is returned when an entity signature
	// does not verify against the device public key.
	ErrSignatureVerificationFailed = errors.New("signature verification failed")
)
