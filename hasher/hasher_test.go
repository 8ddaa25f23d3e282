package hasher

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTemp(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "evidence.bin")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("write: %v", err)
	}
	return path
}

func TestComputeHashesKnownVectors(t *testing.T) {
	path := writeTemp(t, "abc")
	hashes := ComputeHashes(path, []string{"md5", "sha1", "sha256", "blake3"})

	if got := hashes["md5"]; got != "900150983cd24fb0d6963f7d28e17f72" {
		t.Fatalf("md5 mismatch: %s", got)
	}
	if got := hashes["sha1"]; got != "a9993e364706816aba3e25717850c26c9cd0d89d" {
		t.Fatalf("sha1 mismatch: %s", got)
	}
	if got := hashes["sha256"]; got != "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad" {
		t.Fatalf("sha256 mismatch: %s", got)
	}
	if got := hashes["blake3"]; len(got) != 64 {
		t.Fatalf("blake3 digest length: %d", len(got))
	}
}

func TestComputeHashesSkipsUnknownAlgorithms(t *testing.T) {
	path := writeTemp(t, "data")
	hashes := ComputeHashes(path, []string{"sha256", "whirlpool"})
	if _, ok := hashes["whirlpool"]; ok {
		t.Fatal("unknown algorithm must be skipped")
	}
	if _, ok := hashes["sha256"]; !ok {
		t.Fatal("sha256 missing")
	}
}

func TestFileSHA256Sentinel(t *testing.T) {
	if got := FileSHA256(filepath.Join(t.TempDir(), "missing.bin")); got != HashCalculationFailed {
		t.Fatalf("expected sentinel, got %s", got)
	}
	path := writeTemp(t, "abc")
	if got := FileSHA256(path); got != "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad" {
		t.Fatalf("sha256 mismatch: %s", got)
	}
}

func TestSumSHA256AvalancheProperty(t *testing.T) {
	a := SumSHA256([]byte(`{"prediction":"fake"}`))
	b := SumSHA256([]byte(`{"prediction":"fakf"}`))
	if a == b {
		t.Fatal("single-character change must change the digest")
	}
	if a != SumSHA256([]byte(`{"prediction":"fake"}`)) {
		t.Fatal("digest must be stable for identical input")
	}
}
