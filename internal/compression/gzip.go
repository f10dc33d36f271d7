package compression

import (
	"bytes"
	"io"

	"github.com/klauspost/compress/gzip"
)

// GzipCompressor implements Gzip compression.
type GzipCompressor struct {
	level int
}

// NewGzipCompressor creates a new Gzip compressor. Levels 1-9 are passed
// through; 0 selects gzip.DefaultCompression.
func NewGzipCompressor(level Level) (*GzipCompressor, error) {
	if err := level.Validate(); err != nil {
		return nil, err
	}

	gzipLevel := gzip.DefaultCompression
	if level != LevelCodecDefault {
		gzipLevel = int(level)
	}

	return &GzipCompressor{level: gzipLevel}, nil
}

// Algorithm returns the algorithm name.
func (c *GzipCompressor) Algorithm() Algorithm {
	return AlgorithmGzip
}

// Compress compresses data using Gzip.
func (c *GzipCompressor) Compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer

	writer, err := gzip.NewWriterLevel(&buf, c.level)
	if err != nil {
		return nil, err
	}

	if _, err := writer.Write(data); err != nil {
		return nil, err
	}

	if err := writer.Close(); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// Decompress decompresses Gzip data.
func (c *GzipCompressor) Decompress(data []byte) ([]byte, error) {
	reader, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}

	defer func() { _ = reader.Close() }()

	return io.ReadAll(reader)
}

var _ Compressor = (*GzipCompressor)(nil)
