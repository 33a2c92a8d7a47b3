package recovery

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestGeneratePhrase(t *testing.T) {
	words, err := GeneratePhrase()
	if err != nil {
		t.Fatalf("GeneratePhrase() error = %v", err)
	}
	if len(words) != WordCount {
		t.Fatalf("word count = %d, want %d", len(words), WordCount)
	}
	if err := Validate(words); err != nil {
		t.Errorf("generated phrase failed validation: %v", err)
	}
}

func TestGeneratePhrase_Unique(t *testing.T) {
	seen := make(map[string]struct{})
	for i := 0; i < 32; i++ {
		words, err := GeneratePhrase()
		if err != nil {
			t.Fatal(err)
		}
		phrase := Normalize(words)
		if _, dup := seen[phrase]; dup {
			t.Fatal("two independently generated phrases were equal")
		}
		seen[phrase] = struct{}{}
	}
}

func TestValidate(t *testing.T) {
	valid, err := GeneratePhrase()
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		words   []string
		wantErr error
	}{
		{"valid", valid, nil},
		{"uppercase valid", func() []string {
			up := make([]string, len(valid))
			for i, w := range valid {
				up[i] = strings.ToUpper(w)
			}
			return up
		}(), nil},
		{"too few", valid[:23], ErrInvalidWordCount},
		{"too many", append(append([]string{}, valid...), "maple"), ErrInvalidWordCount},
		{"empty", nil, ErrInvalidWordCount},
		{"unknown word", func() []string {
			bad := append([]string{}, valid...)
			bad[7] = "xylophone"
			return bad
		}(), ErrUnknownWord},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.words)
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("Validate() error = %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestDeriveKey_Interoperable(t *testing.T) {
	words, err := GeneratePhrase()
	if err != nil {
		t.Fatal(err)
	}

	a, err := DeriveKey(words)
	if err != nil {
		t.Fatalf("DeriveKey() error = %v", err)
	}

	// Same phrase with different casing and whitespace derives the same key.
	shuffledCase := make([]string, len(words))
	for i, w := range words {
		shuffledCase[i] = "  " + strings.ToUpper(w) + " "
	}
	b, err := DeriveKey(shuffledCase)
	if err != nil {
		t.Fatal(err)
	}

	if !bytes.Equal(a, b) {
		t.Error("same phrase derived non-interoperable keys")
	}
}

func TestDeriveKey_RejectsBeforeDerivation(t *testing.T) {
	if _, err := DeriveKey([]string{"maple", "stone"}); !errors.Is(err, ErrInvalidWordCount) {
		t.Errorf("expected ErrInvalidWordCount, got %v", err)
	}
}

func TestHashPhrase(t *testing.T) {
	words, _ := GeneratePhrase()

	h1 := HashPhrase(words)
	upper := make([]string, len(words))
	for i, w := range words {
		upper[i] = strings.ToUpper(w)
	}
	h2 := HashPhrase(upper)

	if h1 != h2 {
		t.Error("hash is not case-insensitive")
	}

	other, _ := GeneratePhrase()
	if HashPhrase(other) == h1 {
		t.Error("distinct phrases hashed equal")
	}
}
