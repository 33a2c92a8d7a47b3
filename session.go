package zeronotes

import (
	"crypto/sha256"
	"encoding/base64"

	"github.com/zeronotes/client-go/internal/crypto"
)

// keyCheckPlaintext is the fixed plaintext sealed under the account KEK
// at registration. Decrypting it successfully proves the derived KEK is
// right before any real data is touched.
const keyCheckPlaintext = "zeronotes:keycheck:v1"

// session holds the in-memory key material of an authenticated account.
// Nothing in it is ever persisted; Logout and Close zero it.
type session struct {
	email       string
	kdfSalt     []byte
	accountKEK  []byte
	recoveryKEK []byte
	verifier    string
	signer      *crypto.SigningKeypair

	// unlockedDEKs caches DEKs of protected entities unlocked with their
	// secondary password, keyed by entity ID. Cleared on lock and logout.
	unlockedDEKs map[string][]byte
}

func newSession(email string, kdfSalt, accountKEK []byte, signer *crypto.SigningKeypair, recoveryKEK []byte, verifier string) *session {
	return &session{
		email:        email,
		kdfSalt:      kdfSalt,
		accountKEK:   accountKEK,
		recoveryKEK:  recoveryKEK,
		verifier:     verifier,
		signer:       signer,
		unlockedDEKs: make(map[string][]byte),
	}
}

// zero wipes all key material.
func (s *session) zero() {
	crypto.Zero(s.accountKEK)
	s.accountKEK = nil
	crypto.Zero(s.recoveryKEK)
	s.recoveryKEK = nil
	s.verifier = ""
	for id, dek := range s.unlockedDEKs {
		crypto.Zero(dek)
		delete(s.unlockedDEKs, id)
	}
	if s.signer != nil {
		crypto.Zero(s.signer.SecretKey)
		s.signer = nil
	}
}

// accountSecrets is the payload sealed under both the account KEK and
// the recovery KEK. It carries what a fresh device needs beyond the
// password itself: the device-independent signing key and the recovery
// KEK used to keep every note reachable through the recovery phrase.
type accountSecrets struct {
	SigningSecretKey []byte `json:"signingSecretKey"`
	RecoveryKEK      []byte `json:"recoveryKEK"`
}

// hashKEK produces the stored one-way check value for a derived KEK.
func hashKEK(kek []byte) string {
	sum := sha256.Sum256(kek)
	return base64.RawURLEncoding.EncodeToString(sum[:])
}
