package compression

import (
	"github.com/klauspost/compress/zstd"
)

// ZstdCompressor implements Zstandard compression
type ZstdCompressor struct {
	level zstd.EncoderLevel
}

// NewZstdCompressor creates a new Zstd compressor. The encoder only has four
// speed tiers, so the 1-9 scale is folded onto them.
func NewZstdCompressor(level Level) (*ZstdCompressor, error) {
	if err := level.Validate(); err != nil {
		return nil, err
	}

	var zstdLevel zstd.EncoderLevel
	switch {
	case level == LevelCodecDefault:
		zstdLevel = zstd.SpeedDefault
	case level < LevelDefault:
		zstdLevel = zstd.SpeedFastest
	case level < 6:
		zstdLevel = zstd.SpeedDefault
	case level < LevelBest:
		zstdLevel = zstd.SpeedBetterCompression
	default:
		zstdLevel = zstd.SpeedBestCompression
	}

	return &ZstdCompressor{level: zstdLevel}, nil
}

// Algorithm returns the algorithm name
func (c *ZstdCompressor) Algorithm() Algorithm {
	return AlgorithmZstd
}

// Compress compresses data using Zstandard
func (c *ZstdCompressor) Compress(data []byte) ([]byte, error) {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(c.level))
	if err != nil {
		return nil, err
	}
	defer func() { _ = enc.Close() }()

	return enc.EncodeAll(data, nil), nil
}

// Decompress decompresses Zstandard data
func (c *ZstdCompressor) Decompress(data []byte) ([]byte, error) {
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, err
	}
	defer dec.Close()

	out, err := dec.DecodeAll(data, nil)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []byte{}
	}

	return out, nil
}

var _ Compressor = (*ZstdCompressor)(nil)
