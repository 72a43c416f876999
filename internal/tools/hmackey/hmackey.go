// Package hmackey generates event journal signing keys.
package hmackey

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"
)

// Config holds configuration for HMAC key generation.
type Config struct {
	Bytes int
	// KeyID, when set, emits a keyring entry for CROWDSHARE_EVENT_HMAC_KEYS
	// instead of a single key.
	KeyID string
}

// ParseConfig parses flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	cfg := Config{Bytes: 32}
	fs.IntVar(&cfg.Bytes, "bytes", cfg.Bytes, "number of random bytes")
	fs.StringVar(&cfg.KeyID, "key-id", cfg.KeyID, "emit an id=secret keyring entry for rotation")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run generates the key and writes it to out as an env assignment.
func Run(cfg Config, out io.Writer, reader io.Reader) error {
	if cfg.Bytes < 16 {
		return errors.New("bytes must be at least 16")
	}
	if out == nil {
		return errors.New("output is required")
	}
	if reader == nil {
		reader = rand.Reader
	}
	keyID := strings.TrimSpace(cfg.KeyID)
	if strings.ContainsAny(keyID, "=, ") {
		return fmt.Errorf("key id %q must not contain '=', ',' or spaces", keyID)
	}

	buf := make([]byte, cfg.Bytes)
	if _, err := io.ReadFull(reader, buf); err != nil {
		return fmt.Errorf("generate random bytes: %w", err)
	}
	secret := hex.EncodeToString(buf)
	if keyID == "" {
		_, err := fmt.Fprintf(out, "CROWDSHARE_EVENT_HMAC_KEY=%s\n", secret)
		return err
	}
	_, err := fmt.Fprintf(out, "CROWDSHARE_EVENT_HMAC_KEYS=%s=%s\nCROWDSHARE_EVENT_HMAC_KEY_ID=%s\n", keyID, secret, keyID)
	return err
}
