package zsdb

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/meigma/zsdb/core/internal/codec"
	"github.com/meigma/zsdb/core/internal/layout"
	"github.com/meigma/zsdb/core/testutil"
)

// buildArchive builds files into a fresh archive and returns its path.
func buildArchive(t *testing.T, files map[string][]byte, opts ...BuildOption) (string, *BuildResult) {
	t.Helper()
	src := testutil.WriteFiles(t, files)
	dest := filepath.Join(t.TempDir(), "test.zsdb")
	res, err := Build(context.Background(), dest, src, opts...)
	require.NoError(t, err)
	return dest, res
}

// openArchive builds files and opens the result.
func openArchive(t *testing.T, files map[string][]byte, opts ...BuildOption) *Reader {
	t.Helper()
	path, _ := buildArchive(t, files, opts...)
	r, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })
	return r
}

// archiveParts is a decoded archive without a dictionary.
type archiveParts struct {
	entries []byte // decoded entry section including the sentinel
	num     uint64
	names   []byte
	stream  []byte
}

// splitArchive decodes the sections of a dictionary-less archive.
func splitArchive(t *testing.T, data []byte) archiveParts {
	t.Helper()
	var h layout.Header
	require.NoError(t, h.UnmarshalBinary(data))
	require.Zero(t, h.DictLength)

	dec, err := codec.NewDecoder(nil)
	require.NoError(t, err)
	defer dec.Close()

	entries, err := dec.Decompress(data[h.EntryOffset : h.EntryOffset+h.EntryLength])
	require.NoError(t, err)
	var names []byte
	if h.FileNameLength > 0 {
		names, err = dec.Decompress(data[h.FileNameOffset : h.FileNameOffset+h.FileNameLength])
		require.NoError(t, err)
	}
	return archiveParts{
		entries: entries,
		num:     h.EntryNum,
		names:   names,
		stream:  data[h.StreamOffset : h.StreamOffset+h.StreamLength],
	}
}

// assemble lays out p as an archive, compressing the entry and name
// sections the way Build does.
func (p archiveParts) assemble(t *testing.T) []byte {
	t.Helper()
	enc, err := codec.NewEncoder(nil)
	require.NoError(t, err)
	defer enc.Close()

	entrySec, err := enc.Compress(p.entries)
	require.NoError(t, err)
	nameSec, err := enc.Compress(p.names)
	require.NoError(t, err)

	h := layout.NewHeader()
	require.NoError(t, h.Place(0, uint64(len(entrySec)), uint64(len(nameSec)), uint64(len(p.stream))))
	h.EntryNum = p.num
	hb, err := h.MarshalBinary()
	require.NoError(t, err)

	var buf bytes.Buffer
	for _, part := range [][]byte{hb, entrySec, nameSec, p.stream} {
		buf.Write(part)
	}
	return buf.Bytes()
}

// rawArchive assembles an archive from hand-written entries.
func rawArchive(t *testing.T, entries []layout.Entry, names, stream []byte) []byte {
	t.Helper()
	raw, err := layout.EncodeEntries(entries)
	require.NoError(t, err)
	return archiveParts{
		entries: raw,
		num:     uint64(len(entries)),
		names:   names,
		stream:  stream,
	}.assemble(t)
}

// readArchive returns the bytes of the archive at path.
func readArchive(t *testing.T, path string) []byte {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return data
}

// monsterRecord returns a small JSON document shaped like game data.
func monsterRecord(i int) []byte {
	return fmt.Appendf(nil,
		`{"id":%d,"name":"monster-%03d","kind":"slime","hp":%d,"mp":%d,"drops":["gel","potion"],"spawn":{"map":"field%02d","x":%d,"y":%d}}`,
		i, i, 100+i%17, 20+i%5, i%12, i*7%640, i*13%480)
}

// trainingSample is monsterRecord plus a per-sample random tag, so samples
// held out of a dictionary's history still carry unseen bytes.
func trainingSample(i int) []byte {
	rec := monsterRecord(i)
	return fmt.Appendf(rec[:len(rec)-1], `,"tag":"%x"}`, testutil.RandomBytes(uint64(i)+1, 8))
}
