package cursor

import (
	"encoding/base64"
	"errors"
	"testing"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	original := New(42, true, `type = "round.started"`)

	token, err := Encode(original)
	if err != nil {
		t.Fatalf("encode cursor: %v", err)
	}
	decoded, err := Decode(token)
	if err != nil {
		t.Fatalf("decode cursor: %v", err)
	}
	if decoded != original {
		t.Fatalf("cursor mismatch: %+v != %+v", decoded, original)
	}
}

func TestDecodeRejectsGarbage(t *testing.T) {
	tests := []string{"", "not-base64@@", base64.RawURLEncoding.EncodeToString([]byte("{"))}
	for _, token := range tests {
		if _, err := Decode(token); !errors.Is(err, ErrInvalidToken) {
			t.Fatalf("decode(%q) err = %v, want %v", token, err, ErrInvalidToken)
		}
	}
}

func TestHashFilter(t *testing.T) {
	if HashFilter("  ") != "" {
		t.Fatal("expected empty hash for empty filter")
	}
	hash := HashFilter("foo")
	if len(hash) != 16 {
		t.Fatalf("expected 16-char hash, got %d", len(hash))
	}
	if hash == HashFilter("bar") {
		t.Fatal("expected different hashes for different filters")
	}
}

func TestValidate(t *testing.T) {
	c := New(10, false, "seq > 3")
	if err := Validate(c, false, "seq > 3"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := Validate(c, false, "seq > 4"); !errors.Is(err, ErrFilterChanged) {
		t.Fatalf("err = %v, want %v", err, ErrFilterChanged)
	}
	if err := Validate(c, true, "seq > 3"); !errors.Is(err, ErrFilterChanged) {
		t.Fatalf("err = %v, want %v", err, ErrFilterChanged)
	}
}
