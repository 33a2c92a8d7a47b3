// Package recovery implements the 24-word recovery phrase: generation from
// a fixed wordlist, validation, one-way hashing for server-side
// verification, and derivation of a recovery KEK.
package recovery

import (
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/zeronotes/client-go/internal/crypto"
)

// WordCount is the exact number of words in a recovery phrase.
const WordCount = 24

var (
	// ErrInvalidWordCount is returned when a phrase does not have exactly
	// WordCount words.
	ErrInvalidWordCount = errors.New("recovery phrase must have exactly 24 words")

	// ErrUnknownWord is returned when a phrase contains a word absent from
	// the fixed wordlist.
	ErrUnknownWord = errors.New("recovery phrase contains an unknown word")
)

// fixedSalt is the fixed, non-secret salt used for recovery-key derivation.
// No per-user salt is available before authentication, so all entropy comes
// from the 24-word phrase itself. Derived from a versioned label so it can
// be rotated alongside the label if the scheme ever changes.
var fixedSalt = func() []byte {
	sum := sha256.Sum256([]byte("zeronotes:recovery:salt:v1"))
	return sum[:crypto.SaltSize]
}()

// wordSet indexes the wordlist for O(1) membership checks.
var wordSet = func() map[string]struct{} {
	s := make(map[string]struct{}, len(wordList))
	for _, w := range wordList {
		s[w] = struct{}{}
	}
	return s
}()

// GeneratePhrase draws WordCount words, with replacement, from the fixed
// wordlist using cryptographically secure randomness. The wordlist has
// exactly 256 entries, so a single random byte indexes it uniformly.
func GeneratePhrase() ([]string, error) {
	idx, err := crypto.RandomBytes(WordCount)
	if err != nil {
		return nil, err
	}
	words := make([]string, WordCount)
	for i, b := range idx {
		words[i] = wordList[b]
	}
	return words, nil
}

// Normalize lower-cases and trims each word and joins them with single
// spaces. Hashing and derivation both operate on the normalized form so
// case and spacing differences never matter.
func Normalize(words []string) string {
	normalized := make([]string, len(words))
	for i, w := range words {
		normalized[i] = strings.ToLower(strings.TrimSpace(w))
	}
	return strings.Join(normalized, " ")
}

// Validate rejects a phrase before any cryptographic work runs: the word
// count must be exactly WordCount and every word must be on the fixed
// wordlist, case-insensitively.
func Validate(words []string) error {
	if len(words) != WordCount {
		return fmt.Errorf("%w: got %d", ErrInvalidWordCount, len(words))
	}
	for _, w := range words {
		normalized := strings.ToLower(strings.TrimSpace(w))
		if _, ok := wordSet[normalized]; !ok {
			return fmt.Errorf("%w: %q", ErrUnknownWord, w)
		}
	}
	return nil
}

// HashPhrase returns the one-way hash of the normalized phrase. The server
// stores only this value; the phrase itself never leaves the device.
func HashPhrase(words []string) string {
	sum := sha256.Sum256([]byte(Normalize(words)))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

// DeriveKey validates the phrase and derives the recovery KEK from it,
// using the same password-based pipeline as account keys but over the
// normalized phrase with the fixed salt and the recovery domain label.
func DeriveKey(words []string) ([]byte, error) {
	if err := Validate(words); err != nil {
		return nil, err
	}
	master, err := crypto.DeriveMasterKey(Normalize(words), fixedSalt)
	if err != nil {
		return nil, err
	}
	defer crypto.Zero(master)
	return crypto.DeriveKEK(master, crypto.LabelRecoveryKEK)
}
