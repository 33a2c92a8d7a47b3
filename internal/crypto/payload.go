package crypto

import (
	"encoding/json"
	"fmt"
)

// PayloadKind discriminates the two persisted cryptographic payload forms.
type PayloadKind string

const (
	// KindEncrypted marks the output of authenticated encryption.
	KindEncrypted PayloadKind = "encrypted"
	// KindWrapped marks the output of key wrapping.
	KindWrapped PayloadKind = "wrapped"
)

// Payload is the closed union of persisted cryptographic payloads.
// Only EncryptedBlob and WrappedKey implement it.
type Payload interface {
	Kind() PayloadKind
}

// EncryptedBlob is the output of authenticated encryption: a fresh IV,
// the ciphertext, and the authentication tag, plus the algorithm that
// produced them.
type EncryptedBlob struct {
	IV         []byte `json:"iv"`
	Ciphertext []byte `json:"ciphertext"`
	Tag        []byte `json:"tag"`
	Algorithm  string `json:"algorithm"`
}

// Kind implements Payload.
func (*EncryptedBlob) Kind() PayloadKind { return KindEncrypted }

// WrappedKey is the output of deterministic key wrapping.
type WrappedKey struct {
	Key       []byte `json:"wrappedKey"`
	Algorithm string `json:"algorithm"`
}

// Kind implements Payload.
func (*WrappedKey) Kind() PayloadKind { return KindWrapped }

// payloadEnvelope is the on-disk/wire shape of a Payload.
type payloadEnvelope struct {
	Kind       PayloadKind `json:"kind"`
	IV         []byte      `json:"iv,omitempty"`
	Ciphertext []byte      `json:"ciphertext,omitempty"`
	Tag        []byte      `json:"tag,omitempty"`
	Key        []byte      `json:"wrappedKey,omitempty"`
	Algorithm  string      `json:"algorithm"`
}

// EncodePayload serializes a payload with its kind tag.
func EncodePayload(p Payload) ([]byte, error) {
	var env payloadEnvelope
	switch v := p.(type) {
	case *EncryptedBlob:
		env = payloadEnvelope{
			Kind:       KindEncrypted,
			IV:         v.IV,
			Ciphertext: v.Ciphertext,
			Tag:        v.Tag,
			Algorithm:  v.Algorithm,
		}
	case *WrappedKey:
		env = payloadEnvelope{
			Kind:      KindWrapped,
			Key:       v.Key,
			Algorithm: v.Algorithm,
		}
	default:
		return nil, fmt.Errorf("%w: unknown payload type %T", ErrInvalidPayload, p)
	}
	return json.Marshal(env)
}

// DecodePayload deserializes a payload, matching exhaustively on the kind
// tag. Unknown kinds are rejected rather than passed through.
func DecodePayload(data []byte) (Payload, error) {
	var env payloadEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	switch env.Kind {
	case KindEncrypted:
		if env.Algorithm == "" || len(env.IV) == 0 {
			return nil, ErrInvalidPayload
		}
		return &EncryptedBlob{
			IV:         env.IV,
			Ciphertext: env.Ciphertext,
			Tag:        env.Tag,
			Algorithm:  env.Algorithm,
		}, nil
	case KindWrapped:
		if env.Algorithm == "" || len(env.Key) == 0 {
			return nil, ErrInvalidPayload
		}
		return &WrappedKey{
			Key:       env.Key,
			Algorithm: env.Algorithm,
		}, nil
	default:
		return nil, fmt.Errorf("%w: unknown kind %q", ErrInvalidPayload, env.Kind)
	}
}
