// Package integrity seals journal events into a tamper-evident chain and
// verifies it: each event carries its content hash, the chain hash linking it
// to its predecessor, and an HMAC signature with a per-campaign derived key.
package integrity

import (
	"crypto/hkdf"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// DefaultKeyID names a single configured key.
const DefaultKeyID = "v1"

// Keyring stores root HMAC keys and the active signing key id.
type Keyring struct {
	keys        map[string][]byte
	activeKeyID string
}

// NewKeyring constructs a keyring for signing and verification.
func NewKeyring(keys map[string][]byte, activeKeyID string) (*Keyring, error) {
	if len(keys) == 0 {
		return nil, fmt.Errorf("hmac keys are required")
	}
	activeKeyID = strings.TrimSpace(activeKeyID)
	if activeKeyID == "" {
		return nil, fmt.Errorf("active hmac key id is required")
	}
	if _, ok := keys[activeKeyID]; !ok {
		return nil, fmt.Errorf("active hmac key id is not configured")
	}
	return &Keyring{keys: keys, activeKeyID: activeKeyID}, nil
}

// ParseKeyring builds a keyring from either a single secret or a
// comma-separated "id=secret" list. The list wins when both are set.
func ParseKeyring(secret, keySpec, activeKeyID string) (*Keyring, error) {
	activeKeyID = strings.TrimSpace(activeKeyID)
	if activeKeyID == "" {
		activeKeyID = DefaultKeyID
	}
	keySpec = strings.TrimSpace(keySpec)
	if keySpec == "" {
		secret = strings.TrimSpace(secret)
		if secret == "" {
			return nil, fmt.Errorf("event hmac key is required")
		}
		return NewKeyring(map[string][]byte{activeKeyID: []byte(secret)}, activeKeyID)
	}

	keys := make(map[string][]byte)
	for _, entry := range strings.Split(keySpec, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		id, value, ok := strings.Cut(entry, "=")
		id, value = strings.TrimSpace(id), strings.TrimSpace(value)
		if !ok || id == "" || value == "" {
			return nil, fmt.Errorf("invalid hmac key entry %q", id)
		}
		keys[id] = []byte(value)
	}
	return NewKeyring(keys, activeKeyID)
}

// ActiveKeyID returns the configured signing key id.
func (k *Keyring) ActiveKeyID() string {
	if k == nil {
		return ""
	}
	return k.activeKeyID
}

// SignChainHash signs a chain hash with the active key.
func (k *Keyring) SignChainHash(campaignID, chainHash string) (signature, keyID string, err error) {
	if k == nil {
		return "", "", fmt.Errorf("hmac keyring is not configured")
	}
	key, err := campaignKey(k.keys[k.activeKeyID], campaignID)
	if err != nil {
		return "", "", err
	}
	return hmacHex(key, chainHash), k.activeKeyID, nil
}

// VerifyChainHash validates a chain hash signature with the key it names.
func (k *Keyring) VerifyChainHash(campaignID, chainHash, signature, keyID string) error {
	if k == nil {
		return fmt.Errorf("hmac keyring is not configured")
	}
	root, ok := k.keys[strings.TrimSpace(keyID)]
	if !ok {
		return fmt.Errorf("signature key id %q is unknown", keyID)
	}
	key, err := campaignKey(root, campaignID)
	if err != nil {
		return err
	}
	if !hmac.Equal([]byte(hmacHex(key, chainHash)), []byte(signature)) {
		return fmt.Errorf("signature mismatch")
	}
	return nil
}

func campaignKey(root []byte, campaignID string) ([]byte, error) {
	campaignID = strings.TrimSpace(campaignID)
	if campaignID == "" {
		return nil, fmt.Errorf("campaign id is required")
	}
	key, err := hkdf.Key(sha256.New, root, nil, "campaign:"+campaignID, 32)
	if err != nil {
		return nil, fmt.Errorf("derive campaign key: %w", err)
	}
	return key, nil
}

func hmacHex(key []byte, value string) string {
	mac := hmac.New(sha256.New, key)
	_, _ = mac.Write([]byte(value))
	return hex.EncodeToString(mac.Sum(nil))
}
