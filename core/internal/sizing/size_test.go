package sizing

import (
	"bytes"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errOverflow = errors.New("overflow")

func TestToInt(t *testing.T) {
	t.Parallel()

	n, err := ToInt(42, errOverflow)
	require.NoError(t, err)
	assert.Equal(t, 42, n)

	_, err = ToInt(math.MaxUint64, errOverflow)
	require.ErrorIs(t, err, errOverflow)
}

func TestToInt64(t *testing.T) {
	t.Parallel()

	n, err := ToInt64(math.MaxInt64, errOverflow)
	require.NoError(t, err)
	assert.Equal(t, int64(math.MaxInt64), n)

	_, err = ToInt64(math.MaxInt64+1, errOverflow)
	require.ErrorIs(t, err, errOverflow)
}

func TestAddMulUint64(t *testing.T) {
	t.Parallel()

	sum, ok := AddUint64(1, 2)
	assert.True(t, ok)
	assert.Equal(t, uint64(3), sum)

	_, ok = AddUint64(math.MaxUint64, 1)
	assert.False(t, ok)

	prod, ok := MulUint64(33, 32)
	assert.True(t, ok)
	assert.Equal(t, uint64(1056), prod)

	prod, ok = MulUint64(0, math.MaxUint64)
	assert.True(t, ok)
	assert.Zero(t, prod)

	_, ok = MulUint64(math.MaxUint64/2, 3)
	assert.False(t, ok)
}

func TestWithin(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name               string
		off, length, limit uint64
		want               bool
	}{
		{"inside", 10, 5, 20, true},
		{"touches end", 15, 5, 20, true},
		{"past end", 16, 5, 20, false},
		{"empty at end", 20, 0, 20, true},
		{"overflow", math.MaxUint64, 2, math.MaxUint64, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, Within(tt.off, tt.length, tt.limit))
		})
	}
}

func TestReadAllWithLimit(t *testing.T) {
	t.Parallel()

	data, err := ReadAllWithLimit(bytes.NewReader([]byte("hello")), 5, errOverflow)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), data)

	_, err = ReadAllWithLimit(bytes.NewReader([]byte("hello!")), 5, errOverflow)
	require.ErrorIs(t, err, errOverflow)
}
