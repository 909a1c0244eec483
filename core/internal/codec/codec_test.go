package codec

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/zsdb/core/internal/dbtype"
)

func newCodec(t *testing.T, dict *Dictionary, opts ...DecoderOption) (*Encoder, *Decoder) {
	t.Helper()
	enc, err := NewEncoder(dict)
	require.NoError(t, err)
	t.Cleanup(func() { _ = enc.Close() })
	dec, err := NewDecoder(dict, opts...)
	require.NoError(t, err)
	t.Cleanup(dec.Close)
	return enc, dec
}

func monsterRecord(i int) []byte {
	return fmt.Appendf(nil, `{"kind":"monster","id":%d,"name":"skeleton warrior","hp":%d,"mp":0,"speed":1200,"drops":["bone","rusty sword"]}`, i, 100+i)
}

func TestCompressRoundTrip(t *testing.T) {
	t.Parallel()

	enc, dec := newCodec(t, nil)
	tests := []struct {
		name string
		data []byte
	}{
		{"short text", []byte("hello")},
		{"zero run", make([]byte, 1024)},
		{"record", monsterRecord(7)},
		{"large", bytes.Repeat([]byte("abcdefgh"), 64<<10)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			frame, err := enc.Compress(tt.data)
			require.NoError(t, err)
			require.True(t, IsFrame(frame))

			size, err := FrameContentSize(frame)
			require.NoError(t, err)
			assert.Equal(t, uint64(len(tt.data)), size)

			got, err := dec.Decompress(frame)
			require.NoError(t, err)
			assert.Equal(t, tt.data, got)
		})
	}
}

func TestCompressDeclaresSizeOfSmallFrames(t *testing.T) {
	t.Parallel()

	dict, err := ParseDictionary(bytes.Repeat([]byte(`"kind":"monster","name":`), 8))
	require.NoError(t, err)
	for _, d := range []*Dictionary{nil, dict} {
		enc, dec := newCodec(t, d)
		for _, n := range []int{1, 5, 32, 100, 255, 256, 1023, 1024, 1025} {
			data := bytes.Repeat([]byte{'z'}, n)
			frame, err := enc.Compress(data)
			require.NoError(t, err, n)

			size, err := FrameContentSize(frame)
			require.NoError(t, err, n)
			assert.Equal(t, uint64(n), size)

			got, err := dec.Decompress(frame)
			require.NoError(t, err, n)
			assert.Equal(t, data, got)
		}
	}
}

func TestCompressEmptyInput(t *testing.T) {
	t.Parallel()

	enc, _ := newCodec(t, nil)
	out, err := enc.Compress(nil)
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestDecompressRejectsGarbage(t *testing.T) {
	t.Parallel()

	enc, dec := newCodec(t, nil)

	_, err := dec.Decompress(nil)
	require.ErrorIs(t, err, dbtype.ErrCompression)

	_, err = dec.Decompress([]byte("definitely not a zstd frame"))
	require.ErrorIs(t, err, dbtype.ErrCompression)

	frame, err := enc.Compress(bytes.Repeat([]byte("payload "), 512))
	require.NoError(t, err)
	_, err = dec.Decompress(frame[:len(frame)/2])
	require.ErrorIs(t, err, dbtype.ErrCompression)
}

func TestDecompressMaxSize(t *testing.T) {
	t.Parallel()

	enc, dec := newCodec(t, nil, WithMaxSize(100))
	frame, err := enc.Compress(make([]byte, 101))
	require.NoError(t, err)

	_, err = dec.Decompress(frame)
	require.ErrorIs(t, err, dbtype.ErrCompression)
}

func TestRawDictionary(t *testing.T) {
	t.Parallel()

	var history []byte
	for i := range 16 {
		history = append(history, monsterRecord(i)...)
	}
	dict, err := ParseDictionary(history)
	require.NoError(t, err)
	assert.False(t, dict.Formatted())
	assert.Equal(t, RawDictionaryID, dict.ID())

	dictEnc, dictDec := newCodec(t, dict)
	plainEnc, plainDec := newCodec(t, nil)

	sample := monsterRecord(99)
	withDict, err := dictEnc.Compress(sample)
	require.NoError(t, err)
	without, err := plainEnc.Compress(sample)
	require.NoError(t, err)
	assert.Less(t, len(withDict), len(without))

	got, err := dictDec.Decompress(withDict)
	require.NoError(t, err)
	assert.Equal(t, sample, got)

	// Frames without a dictionary decode through a dictionary context too.
	got, err = dictDec.Decompress(without)
	require.NoError(t, err)
	assert.Equal(t, sample, got)

	// A dictionary frame cannot be decoded without the dictionary.
	_, err = plainDec.Decompress(withDict)
	require.ErrorIs(t, err, dbtype.ErrCompression)
}

func TestParseDictionary(t *testing.T) {
	t.Parallel()

	_, err := ParseDictionary([]byte("short"))
	require.ErrorIs(t, err, dbtype.ErrDictionary)

	formatted := append([]byte{}, dictMagic...)
	formatted = binary.LittleEndian.AppendUint32(formatted, 0)
	_, err = ParseDictionary(formatted)
	require.ErrorIs(t, err, dbtype.ErrDictionary)

	_, err = ParseDictionary(dictMagic)
	require.ErrorIs(t, err, dbtype.ErrDictionary)

	enc, _ := newCodec(t, nil)
	frame, err := enc.Compress(bytes.Repeat([]byte("history "), 16))
	require.NoError(t, err)
	_, err = ParseDictionary(frame)
	require.ErrorIs(t, err, dbtype.ErrDictionary)
}

func TestIsFrame(t *testing.T) {
	t.Parallel()

	assert.False(t, IsFrame(nil))
	assert.False(t, IsFrame([]byte("ZSDB")))
	assert.True(t, IsFrame([]byte{0x28, 0xB5, 0x2F, 0xFD, 0x00}))
}
