package fuzzy

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

type fixedHasher struct {
	name   string
	digest string
	err    error
}

func (h fixedHasher) Name() string { return h.name }

func (h fixedHasher) HashFile(string) (string, error) { return h.digest, h.err }

func TestRegistryLookup(t *testing.T) {
	Register(fixedHasher{name: "Fixed", digest: "AA"})
	if _, ok := Lookup("fixed"); !ok {
		t.Fatal("lookup must be case-insensitive")
	}
	if _, ok := Lookup("absent"); ok {
		t.Fatal("unexpected hasher")
	}
}

func TestFingerprintFileOmitsFailures(t *testing.T) {
	Register(fixedHasher{name: "ok", digest: "AABB"})
	Register(fixedHasher{name: "broken", err: fmt.Errorf("boom")})

	prints := FingerprintFile("ignored", []string{"ok", "broken", "unregistered"})
	if len(prints) != 1 || prints["ok"] != "AABB" {
		t.Fatalf("unexpected prints: %v", prints)
	}
}

func TestTLSHRegisteredAndHashesRealFile(t *testing.T) {
	if _, ok := Lookup("tlsh"); !ok {
		t.Fatal("tlsh must self-register")
	}
	// TLSH needs a reasonable amount of varied input to produce a digest.
	path := filepath.Join(t.TempDir(), "sample.bin")
	data := make([]byte, 4096)
	for i := range data {
		data[i] = byte(i*31 + i/7)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		t.Fatalf("write: %v", err)
	}
	prints := FingerprintFile(path, []string{"tlsh"})
	if prints["tlsh"] == "" {
		t.Fatalf("expected tlsh digest, got %v", prints)
	}
}
