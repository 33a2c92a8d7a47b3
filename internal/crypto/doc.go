// Package crypto implements the key hierarchy and primitives for the
// zeronotes zero-knowledge protocol.
//
// # Key Hierarchy
//
// A single remembered secret (the account password) roots the hierarchy:
//
//	password --PBKDF2--> master key --HKDF(label)--> KEK --AES-KW--> DEK
//
//   - The master key is derived with PBKDF2-SHA-256 (600,000 iterations)
//     from the password and a stored per-account salt. It exists only in
//     memory and is never persisted.
//
//   - KEKs (key-encrypting-keys) are derived from the master key with
//     HKDF-SHA-256 under fixed domain-separation labels. Distinct labels
//     keep the account KEK, note-password KEKs and recovery KEKs
//     semantically independent even when the underlying secrets collide.
//
//   - DEKs (data-encrypting-keys) are fresh random 256-bit keys, one per
//     content entity. Only their wrapped form is persisted. A DEK is
//     rewrapped, never re-derived, when a password changes.
//
// # Algorithm Suite
//
//   - AES-256-GCM: authenticated encryption of note and folder content.
//     A fresh random nonce per call; the tag is stored split from the
//     ciphertext. Any corruption causes decryption to reject.
//
//   - AES-KW (RFC 3394): deterministic key wrap for DEKs. No IV is
//     consumed, and unwrap fails closed when the KEK is wrong — this
//     failure is how an incorrect password is detected.
//
//   - Ed25519: per-device signing of encrypted entity payloads so a
//     tampering server is detectable across devices.
//
// # Payloads
//
// Persisted cryptographic state is a closed union: [EncryptedBlob] for
// sealed content and [WrappedKey] for wrapped keys, both carrying an
// explicit algorithm tag. [DecodePayload] matches exhaustively and rejects
// unknown kinds.
//
// Key material handed out by this package should be wiped with [Zero]
// once its scope ends.
package crypto
