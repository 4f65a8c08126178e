package instr

import (
	"bytes"
	"fmt"
	"io"
	"slices"

	"golang.org/x/exp/mmap"

	"github.com/danieljhkim/hostconf/internal/hash"
)

// FileContents is the content of a file to be created.
//
// It is either a literal byte slice or a reference to an existing file on
// disk (for large data). In both cases the identity of the value is its
// checksum alone: equality and ordering never look at the representation.
type FileContents struct {
	checksum hash.Checksum
	size     int64
	literal  []byte
	path     string
}

// FromLiteral returns contents holding a copy of data.
func FromLiteral(data []byte) FileContents {
	return FileContents{
		checksum: hash.Sum(data),
		size:     int64(len(data)),
		literal:  slices.Clone(data),
	}
}

// FromFile returns contents referring to the file at path. The file is read
// once to compute its checksum; it must not change until the contents have
// been written.
func FromFile(path string) (FileContents, error) {
	r, err := mmap.Open(path)
	if err != nil {
		return FileContents{}, fmt.Errorf("failed to map %s: %w", path, err)
	}
	defer func() {
		_ = r.Close()
	}()

	sum, err := hash.SumReader(io.NewSectionReader(r, 0, int64(r.Len())))
	if err != nil {
		return FileContents{}, fmt.Errorf("failed to checksum %s: %w", path, err)
	}
	return FileContents{
		checksum: sum,
		size:     int64(r.Len()),
		path:     path,
	}, nil
}

// Checksum returns the identity of the contents.
func (c FileContents) Checksum() hash.Checksum {
	return c.checksum
}

// Size returns the length of the contents in bytes.
func (c FileContents) Size() int64 {
	return c.size
}

// Path returns the referenced file, or "" for literal contents.
func (c FileContents) Path() string {
	return c.path
}

// IsLiteral reports whether the contents are held in memory.
func (c FileContents) IsLiteral() bool {
	return c.path == ""
}

// Open returns a reader over the contents.
func (c FileContents) Open() (io.ReadCloser, error) {
	if c.IsLiteral() {
		return io.NopCloser(bytes.NewReader(c.literal)), nil
	}
	r, err := mmap.Open(c.path)
	if err != nil {
		return nil, fmt.Errorf("failed to map %s: %w", c.path, err)
	}
	return &mappedReader{
		SectionReader: io.NewSectionReader(r, 0, int64(r.Len())),
		closer:        r,
	}, nil
}

// Bytes returns the full contents.
func (c FileContents) Bytes() ([]byte, error) {
	if c.IsLiteral() {
		return slices.Clone(c.literal), nil
	}
	rc, err := c.Open()
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = rc.Close()
	}()
	return io.ReadAll(rc)
}

// Equal reports whether both contents have the same checksum.
func (c FileContents) Equal(other FileContents) bool {
	return c.checksum == other.checksum
}

// Compare orders contents by checksum.
func (c FileContents) Compare(other FileContents) int {
	return bytes.Compare(c.checksum[:], other.checksum[:])
}

// String describes the contents for display.
func (c FileContents) String() string {
	return fmt.Sprintf("sha256:%s, %d bytes", c.checksum.Short(), c.size)
}

type mappedReader struct {
	*io.SectionReader
	closer io.Closer
}

func (m *mappedReader) Close() error {
	return m.closer.Close()
}
