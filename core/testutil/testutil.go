// Package testutil provides byte sources and fixtures shared by archive tests.
package testutil

import (
	"io"
	"math/rand/v2"
	"os"
	"path/filepath"
	"sync"
	"testing"
)

// MockByteSource implements a simple in-memory byte source for tests.
// It records every ReadAt call so tests can assert which ranges were read.
type MockByteSource struct {
	data []byte

	mu    sync.Mutex
	reads []Range
}

// Range is one recorded ReadAt call.
type Range struct {
	Off int64
	Len int
}

// NewMockByteSource returns a byte source backed by the provided data.
func NewMockByteSource(data []byte) *MockByteSource {
	return &MockByteSource{data: data}
}

// ReadAt implements io.ReaderAt semantics over the backing slice.
func (m *MockByteSource) ReadAt(p []byte, off int64) (int, error) {
	m.mu.Lock()
	m.reads = append(m.reads, Range{Off: off, Len: len(p)})
	m.mu.Unlock()

	if off < 0 {
		return 0, io.ErrUnexpectedEOF
	}
	if off >= int64(len(m.data)) {
		return 0, io.EOF
	}
	n := copy(p, m.data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// Size returns the total size of the backing data.
func (m *MockByteSource) Size() int64 {
	return int64(len(m.data))
}

// Bytes returns the backing slice for tests that need to mutate data.
func (m *MockByteSource) Bytes() []byte {
	return m.data
}

// Reads returns the ranges read so far.
func (m *MockByteSource) Reads() []Range {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Range(nil), m.reads...)
}

// ReadsFrom returns how many recorded reads touched bytes at or after off.
func (m *MockByteSource) ReadsFrom(off int64) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, r := range m.reads {
		if r.Off+int64(r.Len) > off {
			n++
		}
	}
	return n
}

// ResetReads forgets the recorded reads.
func (m *MockByteSource) ResetReads() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reads = nil
}

// WriteFiles creates a directory under t.TempDir holding files and returns
// its path.
func WriteFiles(t testing.TB, files map[string][]byte) string {
	t.Helper()
	dir := t.TempDir()
	for name, data := range files {
		if err := os.WriteFile(filepath.Join(dir, name), data, 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	return dir
}

// RandomBytes returns n deterministic pseudo-random bytes for seed.
// The output does not compress.
func RandomBytes(seed uint64, n int) []byte {
	rng := rand.New(rand.NewPCG(seed, seed^0x9E3779B97F4A7C15))
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(rng.Uint32())
	}
	return b
}
