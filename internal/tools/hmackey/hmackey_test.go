package hmackey

import (
	"bytes"
	"errors"
	"flag"
	"strings"
	"testing"

	"github.com/louisbranch/crowdshare/internal/services/crowdfund/storage/integrity"
)

func TestParseConfig(t *testing.T) {
	fs := flag.NewFlagSet("hmackey", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, []string{"-bytes", "24", "-key-id", "k2"})
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.Bytes != 24 || cfg.KeyID != "k2" {
		t.Fatalf("config = %+v, want bytes 24 key k2", cfg)
	}
}

func TestRunRejectsInvalidConfig(t *testing.T) {
	cases := []struct {
		name string
		cfg  Config
		out  *bytes.Buffer
	}{
		{name: "short key", cfg: Config{Bytes: 8}, out: &bytes.Buffer{}},
		{name: "nil output", cfg: Config{Bytes: 16}},
		{name: "bad key id", cfg: Config{Bytes: 16, KeyID: "a=b"}, out: &bytes.Buffer{}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var err error
			if tc.out == nil {
				err = Run(tc.cfg, nil, nil)
			} else {
				err = Run(tc.cfg, tc.out, nil)
			}
			if err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestRunWritesSingleKey(t *testing.T) {
	buf := &bytes.Buffer{}
	if err := Run(Config{Bytes: 16}, buf, bytes.NewReader(bytes.Repeat([]byte{0xab}, 16))); err != nil {
		t.Fatalf("run: %v", err)
	}
	want := "CROWDSHARE_EVENT_HMAC_KEY=" + strings.Repeat("ab", 16)
	if got := strings.TrimSpace(buf.String()); got != want {
		t.Fatalf("output = %q, want %q", got, want)
	}
}

func TestRunKeyringEntryParses(t *testing.T) {
	buf := &bytes.Buffer{}
	if err := Run(Config{Bytes: 32, KeyID: "2026-10"}, buf, nil); err != nil {
		t.Fatalf("run: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("lines = %q", lines)
	}
	spec := strings.TrimPrefix(lines[0], "CROWDSHARE_EVENT_HMAC_KEYS=")
	keyring, err := integrity.ParseKeyring("", spec, "2026-10")
	if err != nil {
		t.Fatalf("parse keyring: %v", err)
	}
	if keyring.ActiveKeyID() != "2026-10" {
		t.Fatalf("active key = %q", keyring.ActiveKeyID())
	}
}

type errReader struct{}

func (errReader) Read([]byte) (int, error) { return 0, errors.New("read error") }

func TestRunReaderError(t *testing.T) {
	if err := Run(Config{Bytes: 16}, &bytes.Buffer{}, errReader{}); err == nil {
		t.Fatal("expected reader error")
	}
}
