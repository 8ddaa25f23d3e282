package utils

import (
	"path/filepath"
	"testing"
)

func TestIsPathWithin(t *testing.T) {
	root := t.TempDir()
	inside := filepath.Join(root, "a", "b.txt")
	if !IsPathWithin(inside, []string{root}) {
		t.Fatalf("expected %s within %s", inside, root)
	}
	if IsPathWithin(filepath.Join(root, "..", "escape.txt"), []string{root}) {
		t.Fatal("parent escape must not be within root")
	}
	if IsPathWithin("/etc/passwd", []string{root}) {
		t.Fatal("unrelated path must not be within root")
	}
}

func TestSanitizeFilename(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"report.pdf", "report.pdf"},
		{"../../etc/passwd", "passwd"},
		{"..\\..\\evil.exe", "evil.exe"},
		{"my photo (1).jpg", "my_photo_1_.jpg"},
		{"", "file"},
		{"...", "file"},
	}
	for _, tc := range cases {
		if got := SanitizeFilename(tc.in); got != tc.want {
			t.Fatalf("SanitizeFilename(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestExtension(t *testing.T) {
	if got := Extension("/tmp/Clip.MOV"); got != "mov" {
		t.Fatalf("unexpected extension: %q", got)
	}
	if got := Extension("noext"); got != "" {
		t.Fatalf("expected empty extension, got %q", got)
	}
}
