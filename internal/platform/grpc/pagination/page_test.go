package pagination

import (
	"errors"
	"testing"
)

func TestPageSize(t *testing.T) {
	cfg := Config{DefaultPageSize: 20, MaxPageSize: 100}
	tests := []struct {
		in, want int
	}{
		{0, 20},
		{-5, 20},
		{7, 7},
		{500, 100},
	}
	for _, tt := range tests {
		if got := cfg.PageSize(tt.in); got != tt.want {
			t.Fatalf("PageSize(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
	if got := (Config{}).PageSize(0); got != 1 {
		t.Fatalf("PageSize with empty config = %d, want 1", got)
	}
}

func TestOrder(t *testing.T) {
	cfg := Config{DefaultOrder: "seq", Orders: map[string]bool{"seq": false, "seq desc": true}}
	tests := []struct {
		in       string
		want     string
		wantDesc bool
	}{
		{"", "seq", false},
		{"  SEQ   desc ", "seq desc", true},
		{"seq", "seq", false},
	}
	for _, tt := range tests {
		got, desc, err := cfg.Order(tt.in)
		if err != nil {
			t.Fatalf("Order(%q): %v", tt.in, err)
		}
		if got != tt.want || desc != tt.wantDesc {
			t.Fatalf("Order(%q) = %q/%v, want %q/%v", tt.in, got, desc, tt.want, tt.wantDesc)
		}
	}
	if _, _, err := cfg.Order("ts"); !errors.Is(err, ErrInvalidOrderBy) {
		t.Fatalf("Order(ts) err = %v, want ErrInvalidOrderBy", err)
	}
}
