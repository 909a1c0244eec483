package zsdb

import (
	"fmt"

	"github.com/klauspost/compress/zstd"

	"github.com/meigma/zsdb/core/internal/codec"
)

// DefaultDictionarySize is the default history size of a trained dictionary (112KB).
const DefaultDictionarySize = 112 << 10

// DefaultDictionaryID is the dictionary ID written by TrainDictionary unless
// TrainWithID is set.
const DefaultDictionaryID uint32 = 0x5A534401

type trainConfig struct {
	maxSize int
	id      uint32
}

// TrainOption configures TrainDictionary.
type TrainOption func(*trainConfig)

// TrainWithMaxSize bounds the history kept in the dictionary to n bytes.
// Values <= 0 use DefaultDictionarySize.
func TrainWithMaxSize(n int) TrainOption {
	return func(c *trainConfig) {
		c.maxSize = n
	}
}

// TrainWithID sets the dictionary ID. It must not be 0.
func TrainWithID(id uint32) TrainOption {
	return func(c *trainConfig) {
		c.id = id
	}
}

// TrainDictionary builds a formatted zstd dictionary from sample payloads,
// suitable for BuildWithDictionary.
//
// At least two non-empty samples are required. The first quarter of the
// samples (at least one) is held out; the history is the tail of the
// concatenated remaining samples, at most the configured size. Entropy
// tables are tuned on every sample for the level Build compresses at, so
// the held-out samples must carry content the history does not. Empty
// samples are ignored.
func TrainDictionary(samples [][]byte, opts ...TrainOption) (dict []byte, err error) {
	cfg := trainConfig{maxSize: DefaultDictionarySize, id: DefaultDictionaryID}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.maxSize <= 0 {
		cfg.maxSize = DefaultDictionarySize
	}
	if cfg.id == 0 {
		return nil, fmt.Errorf("%w: dictionary id 0 is reserved", ErrDictionary)
	}

	contents := make([][]byte, 0, len(samples))
	for _, s := range samples {
		if len(s) == 0 {
			continue
		}
		contents = append(contents, s)
	}
	if len(contents) < 2 {
		return nil, fmt.Errorf("%w: need at least 2 samples, got %d", ErrDictionary, len(contents))
	}

	history := trainingHistory(contents[max(len(contents)/4, 1):], cfg.maxSize)
	if len(history) < 8 {
		return nil, fmt.Errorf("%w: %d bytes of samples is too little history", ErrDictionary, len(history))
	}

	// BuildDict panics when the samples leave no literals to model.
	defer func() {
		if p := recover(); p != nil {
			dict, err = nil, fmt.Errorf("%w: samples add nothing to the history: %v", ErrDictionary, p)
		}
	}()
	dict, err = zstd.BuildDict(zstd.BuildDictOptions{
		ID:       cfg.id,
		Contents: contents,
		History:  history,
		Offsets:  [3]int{1, 4, 8},
		Level:    zstd.EncoderLevelFromZstd(codec.Level),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDictionary, err)
	}
	return dict, nil
}

// trainingHistory concatenates the tail of samples, keeping at most
// maxSize bytes.
func trainingHistory(samples [][]byte, maxSize int) []byte {
	var tail [][]byte
	n := 0
	for i := len(samples) - 1; i >= 0 && n < maxSize; i-- {
		s := samples[i]
		if room := maxSize - n; len(s) > room {
			s = s[len(s)-room:]
		}
		tail = append(tail, s)
		n += len(s)
	}
	history := make([]byte, 0, n)
	for i := len(tail) - 1; i >= 0; i-- {
		history = append(history, tail[i]...)
	}
	return history
}
