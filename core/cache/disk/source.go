package disk

import (
	"fmt"
	"io"
	"math"

	"github.com/meigma/zsdb/core/cache"
)

const maxBlockSize = math.MaxInt32

// cachedSource serves ReadAt from cache blocks of its underlying source.
type cachedSource struct {
	src              cache.ByteSource
	cache            *BlockCache
	id               string
	blockSize        int64
	maxBlocksPerRead int
}

func (s *cachedSource) ReadAt(p []byte, off int64) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	if off < 0 {
		return 0, fmt.Errorf("read at %d: negative offset", off)
	}
	size := s.src.Size()
	if off >= size {
		return 0, io.EOF
	}
	want := min(int64(len(p)), size-off)

	first := off / s.blockSize
	last := (off + want - 1) / s.blockSize
	if s.maxBlocksPerRead > 0 && last-first+1 > int64(s.maxBlocksPerRead) {
		return s.src.ReadAt(p, off)
	}

	var n int64
	for index := first; index <= last; index++ {
		start := index * s.blockSize
		end := min(start+s.blockSize, size)
		data, err := s.cache.block(blockKey(s.id, s.blockSize, index), end-start, func() ([]byte, error) {
			return s.fetch(start, end-start)
		})
		if err != nil {
			return int(n), err
		}
		from := max(off, start)
		to := min(off+want, end)
		n += int64(copy(p[from-off:to-off], data[from-start:to-start]))
	}
	if want < int64(len(p)) {
		return int(n), io.EOF
	}
	return int(n), nil
}

func (s *cachedSource) Size() int64 {
	return s.src.Size()
}

// SourceID lets a cached source be wrapped again under the same identity.
func (s *cachedSource) SourceID() string {
	return s.id
}

func (s *cachedSource) fetch(off, length int64) ([]byte, error) {
	buf := make([]byte, length)
	n, err := s.src.ReadAt(buf, off)
	if err != nil && err != io.EOF {
		return nil, err
	}
	if int64(n) != length {
		return nil, io.ErrUnexpectedEOF
	}
	return buf, nil
}
