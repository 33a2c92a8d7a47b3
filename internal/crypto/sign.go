package crypto

import (
	"github.com/cloudflare/circl/sign/ed25519"
)

// Ed25519 key and signature sizes in bytes.
const (
	SigningPublicKeySize = ed25519.PublicKeySize
	SigningSecretKeySize = ed25519.PrivateKeySize
	SignatureSize        = ed25519.SignatureSize
)

// SigningKeypair is a per-device Ed25519 keypair. Devices sign the
// encrypted payload of every pushed entity so peers can detect a server
// that tampers with ciphertext in transit or at rest.
type SigningKeypair struct {
	// PublicKey is the raw Ed25519 public key bytes.
	PublicKey []byte
	// SecretKey is the raw Ed25519 secret key bytes.
	SecretKey []byte
}

// GenerateSigningKeypair creates a new Ed25519 device keypair.
func GenerateSigningKeypair() (*SigningKeypair, error) {
	pub, priv, err := ed25519.GenerateKey(randomSource())
	if err != nil {
		return nil, err
	}
	return &SigningKeypair{
		PublicKey: []byte(pub),
		SecretKey: []byte(priv),
	}, nil
}

// SigningKeypairFromSecretKey reconstructs a keypair from the secret key.
func SigningKeypairFromSecretKey(secretKey []byte) (*SigningKeypair, error) {
	if len(secretKey) != SigningSecretKeySize {
		return nil, ErrInvalidKeySize
	}
	priv := ed25519.PrivateKey(secretKey)
	pub := priv.Public().(ed25519.PublicKey)
	return &SigningKeypair{
		PublicKey: []byte(pub),
		SecretKey: secretKey,
	}, nil
}

// Sign returns a detached signature over message.
func (k *SigningKeypair) Sign(message []byte) []byte {
	return ed25519.Sign(ed25519.PrivateKey(k.SecretKey), message)
}

// VerifySignature checks a detached signature against a device public key.
func VerifySignature(publicKey, message, signature []byte) error {
	if len(publicKey) != SigningPublicKeySize || len(signature) != SignatureSize {
		return ErrSignatureVerificationFailed
	}
	if !ed25519.Verify(ed25519.PublicKey(publicKey), message, signature) {
		return ErrSignatureVerificationFailed
	}
	return nil
}
