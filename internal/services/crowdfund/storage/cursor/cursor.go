// Package cursor encodes opaque page tokens for journal and listing queries.
package cursor

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidToken indicates a page token that cannot be decoded.
	ErrInvalidToken = errors.New("invalid page token")
	// ErrFilterChanged indicates a page token issued for a different query.
	ErrFilterChanged = errors.New("page token does not match filter")
)

// Cursor marks the position after which the next page starts.
type Cursor struct {
	// Position is the last seq (or listing position) already returned.
	Position   uint64 `json:"p"`
	Descending bool   `json:"d,omitempty"`
	FilterHash string `json:"f,omitempty"`
}

// New builds a cursor for the query described by filter and order.
func New(position uint64, descending bool, filter string) Cursor {
	return Cursor{Position: position, Descending: descending, FilterHash: HashFilter(filter)}
}

// Encode returns the opaque token for c.
func Encode(c Cursor) (string, error) {
	raw, err := json.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("encode cursor: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

// Decode parses a token produced by Encode.
func Decode(token string) (Cursor, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Cursor{}, ErrInvalidToken
	}
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return Cursor{}, ErrInvalidToken
	}
	var c Cursor
	if err := json.Unmarshal(raw, &c); err != nil {
		return Cursor{}, ErrInvalidToken
	}
	return c, nil
}

// HashFilter returns a short stable digest of a filter expression.
func HashFilter(filter string) string {
	filter = strings.TrimSpace(filter)
	if filter == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(filter))
	return hex.EncodeToString(sum[:8])
}

// Validate checks that c was issued for the same filter and order.
func Validate(c Cursor, descending bool, filter string) error {
	if c.FilterHash != HashFilter(filter) || c.Descending != descending {
		return ErrFilterChanged
	}
	return nil
}
