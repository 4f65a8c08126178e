// Package hash provides the checksum provider used to identify file contents.
//
// hostconf uses SHA-256 digests as the identity of file contents: two
// contents with the same checksum are treated as the same content. The
// package provides a real implementation using crypto/sha256 and a fake
// implementation for testing.
package hash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
)

// Size is the length of a Checksum in bytes.
const Size = sha256.Size

// Checksum is a fixed-size SHA-256 digest.
type Checksum [Size]byte

// String returns the lowercase hex encoding of the checksum.
func (c Checksum) String() string {
	return hex.EncodeToString(c[:])
}

// Short returns the first 12 hex characters, for display.
func (c Checksum) Short() string {
	return c.String()[:12]
}

// IsZero reports whether c is the zero checksum.
func (c Checksum) IsZero() bool {
	return c == Checksum{}
}

// Parse decodes a hex encoded checksum.
func Parse(s string) (Checksum, error) {
	var c Checksum
	raw, err := hex.DecodeString(s)
	if err != nil {
		return c, fmt.Errorf("invalid checksum %q: %w", s, err)
	}
	if len(raw) != Size {
		return c, fmt.Errorf("invalid checksum %q: want %d bytes, got %d", s, Size, len(raw))
	}
	copy(c[:], raw)
	return c, nil
}

// Sum computes the checksum of data.
func Sum(data []byte) Checksum {
	return sha256.Sum256(data)
}

// SumReader computes the checksum of everything read from r.
func SumReader(r io.Reader) (Checksum, error) {
	var c Checksum
	h := sha256.New()
	if _, err := io.Copy(h, r); err != nil {
		return c, fmt.Errorf("failed to read: %w", err)
	}
	copy(c[:], h.Sum(nil))
	return c, nil
}

// Hasher provides an abstraction for file hashing operations.
type Hasher interface {
	// HashFile computes the checksum of the file at the given path.
	HashFile(path string) (Checksum, error)
}

// SHA256Hasher implements Hasher using SHA-256.
type SHA256Hasher struct{}

// NewSHA256Hasher creates a new SHA256Hasher.
func NewSHA256Hasher() *SHA256Hasher {
	return &SHA256Hasher{}
}

// HashFile computes the SHA-256 checksum of the file at the given path.
func (h *SHA256Hasher) HashFile(path string) (Checksum, error) {
	file, err := os.Open(path)
	if err != nil {
		return Checksum{}, fmt.Errorf("failed to open file: %w", err)
	}
	defer func() {
		_ = file.Close()
	}()

	return SumReader(file)
}

// FakeHasher implements Hasher with predetermined checksums for testing.
type FakeHasher struct {
	sums map[string]Checksum
}

// NewFakeHasher creates a new FakeHasher.
func NewFakeHasher() *FakeHasher {
	return &FakeHasher{
		sums: make(map[string]Checksum),
	}
}

// SetContent records the checksum of content for path.
func (h *FakeHasher) SetContent(path string, content []byte) {
	h.sums[path] = Sum(content)
}

// HashFile returns the predetermined checksum for the given path.
func (h *FakeHasher) HashFile(path string) (Checksum, error) {
	if sum, ok := h.sums[path]; ok {
		return sum, nil
	}
	return Checksum{}, fmt.Errorf("no checksum recorded for %s: %w", path, os.ErrNotExist)
}
