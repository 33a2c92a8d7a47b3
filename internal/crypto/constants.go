package crypto

const (
	// KeySize is the size of all symmetric keys in bytes. Master keys,
	// KEKs and DEKs are all 256-bit.
	KeySize = 32
	// NonceSize is the size of an AES-GCM nonce in bytes.
	NonceSize = 12
	// TagSize is the size of an AES-GCM authentication tag in bytes.
	TagSize = 16
	// SaltSize is the size of a KDF salt in bytes.
	SaltSize = 16

	// PBKDF2Iterations is the iteration count for password-based key
	// derivation. Changing it breaks derivation of existing master keys.
	PBKDF2Iterations = 600_000
)

// HKDF domain-separation labels. Each label roots an independent key
// capability from the same master key; a note password that is textually
// identical to the account password still derives a different KEK.
const (
	// LabelAccountKEK derives the account key-encrypting-key.
	LabelAccountKEK = "zeronotes:kek:account:v1"
	// LabelNotePasswordKEK derives a KEK from a secondary note/folder password.
	LabelNotePasswordKEK = "zeronotes:kek:note-password:v1"
	// LabelRecoveryKEK derives a KEK from a recovery phrase.
	LabelRecoveryKEK = "zeronotes:kek:recovery:v1"
	// LabelAuthVerifier derives the login verifier sent to the server.
	// Domain separation keeps the verifier useless for decrypting anything.
	LabelAuthVerifier = "zeronotes:auth:verifier:v1"
)

// Algorithm identifiers carried inside persisted payloads.
const (
	// AlgAESGCM identifies AES-256-GCM authenticated encryption.
	AlgAESGCM = "AES-256-GCM"
	// AlgAESKW identifies RFC 3394 AES key wrap.
	AlgAESKW = "AES-KW"
)
