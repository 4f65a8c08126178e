package instr

import (
	"bytes"
	"crypto/sha256"
	"io"
	"os"
	"path/filepath"
	"testing"
)

func TestFromLiteral_RoundTrip(t *testing.T) {
	data := []byte("line one\nline two\n")
	contents := FromLiteral(data)

	got, err := contents.Bytes()
	if err != nil {
		t.Fatalf("Bytes failed: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Errorf("Bytes() = %q, want %q", got, data)
	}

	want := sha256.Sum256(data)
	if contents.Checksum() != want {
		t.Errorf("Checksum() = %x, want %x", contents.Checksum(), want)
	}
	if contents.Size() != int64(len(data)) {
		t.Errorf("Size() = %d, want %d", contents.Size(), len(data))
	}
	if !contents.IsLiteral() {
		t.Error("literal contents reported as file reference")
	}

	// Mutating the caller's slice must not change the contents.
	data[0] = 'X'
	again, _ := contents.Bytes()
	if again[0] != 'l' {
		t.Error("FromLiteral did not copy its input")
	}
}

func TestFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "big.bin")
	data := bytes.Repeat([]byte("0123456789"), 4096)
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}

	contents, err := FromFile(path)
	if err != nil {
		t.Fatalf("FromFile failed: %v", err)
	}
	if contents.IsLiteral() {
		t.Error("file contents reported as literal")
	}
	if contents.Path() != path {
		t.Errorf("Path() = %q, want %q", contents.Path(), path)
	}

	rc, err := contents.Open()
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	read, err := io.ReadAll(rc)
	_ = rc.Close()
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if !bytes.Equal(read, data) {
		t.Error("Open() did not return the file data")
	}

	// Identity is the checksum only, whatever the representation.
	literal := FromLiteral(data)
	if !contents.Equal(literal) || contents.Compare(literal) != 0 {
		t.Error("file reference and literal with same data should be equal")
	}
	if contents.Equal(FromLiteral([]byte("other"))) {
		t.Error("different data should not be equal")
	}
}

func TestFromFile_Missing(t *testing.T) {
	if _, err := FromFile(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestFromFile_Empty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty")
	if err := os.WriteFile(path, nil, 0644); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}

	contents, err := FromFile(path)
	if err != nil {
		t.Fatalf("FromFile failed: %v", err)
	}
	if !contents.Equal(FromLiteral(nil)) {
		t.Error("empty file should equal empty literal")
	}
}
