package digest

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"io"
	"os"
	"sort"
	"strings"
)

// ErrUnsupportedAlgorithm is returned when an algorithm name has no
// registered constructor.
var ErrUnsupportedAlgorithm = errors.New("unsupported hash algorithm")

const fallbackChunkSize = 8192

var algorithms = map[string]func() hash.Hash{
	"md5":    md5.New,
	"sha1":   sha1.New,
	"sha224": sha256.New224,
	"sha256": sha256.New,
	"sha384": sha512.New384,
	"sha512": sha512.New,
}

// New returns a fresh hash for the named algorithm.
func New(algorithm string) (hash.Hash, error) {
	newHash, ok := algorithms[strings.ToLower(algorithm)]
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrUnsupportedAlgorithm, algorithm)
	}
	return newHash(), nil
}

// Size returns the hex digest length for the named algorithm.
func Size(algorithm string) (int, error) {
	h, err := New(algorithm)
	if err != nil {
		return 0, err
	}
	return hex.EncodedLen(h.Size()), nil
}

// Algorithms lists the supported algorithm names in sorted order.
func Algorithms() []string {
	names := make([]string, 0, len(algorithms))
	for name := range algorithms {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Stream hashes r in chunkSize reads and returns the lowercase hex digest.
func Stream(r io.Reader, algorithm string, chunkSize int) (string, error) {
	h, err := New(algorithm)
	if err != nil {
		return "", err
	}
	if chunkSize <= 0 {
		chunkSize = fallbackChunkSize
	}
	if _, err := io.CopyBuffer(h, r, make([]byte, chunkSize)); err != nil {
		return "", err
	}
	return fmt.Sprintf("%x", h.Sum(nil)), nil
}

// File hashes the file at path. See Stream.
func File(path string, algorithm string, chunkSize int) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	return Stream(f, algorithm, chunkSize)
}
