package fuzzy

import "strings"

// Hasher defines a fuzzy (similarity) hashing implementation used to
// fingerprint uploaded evidence files.
type Hasher interface {
	Name() string
	HashFile(path string) (string, error)
}

var registry = map[string]Hasher{}

// Register adds a fuzzy hasher to the registry.
func Register(hasher Hasher) {
	if hasher == nil {
		return
	}
	registry[strings.ToLower(hasher.Name())] = hasher
}

// Lookup returns a registered hasher by name.
func Lookup(name string) (Hasher, bool) {
	hasher, ok := registry[strings.ToLower(name)]
	return hasher, ok
}

// Available returns the names of registered hashers.
func Available() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	return names
}

// FingerprintFile runs every requested algorithm against the file and returns
// the digests that succeeded. Small or low-entropy files may not produce a
// digest for every algorithm; those are silently omitted.
func FingerprintFile(path string, algorithms []string) map[string]string {
	prints := make(map[string]string, len(algorithms))
	for _, name := range algorithms {
		hasher, ok := Lookup(name)
		if !ok {
			continue
		}
		digest, err := hasher.HashFile(path)
		if err != nil || digest == "" {
			continue
		}
		prints[hasher.Name()] = digest
	}
	return prints
}
