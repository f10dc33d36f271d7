// Package compression compresses objects before they are segmented and encoded.
//
// Supported algorithms:
//
//   - Zstandard (zstd): best ratio with fast decompression (recommended)
//   - LZ4: fastest, moderate ratio
//   - Gzip: wide compatibility
//
// Compression is skipped for small inputs and whenever it does not shrink the
// data, so callers must record the algorithm Apply reports and hand it back to
// Restore.
package compression

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Algorithm represents a compression algorithm
type Algorithm string

const (
	// AlgorithmNone disables compression
	AlgorithmNone Algorithm = "none"
	// AlgorithmZstd uses Zstandard compression (recommended)
	AlgorithmZstd Algorithm = "zstd"
	// AlgorithmLZ4 uses LZ4 compression (faster, less compression)
	AlgorithmLZ4 Algorithm = "lz4"
	// AlgorithmGzip uses Gzip compression (widely compatible)
	AlgorithmGzip Algorithm = "gzip"
)

// Level represents compression level on a 1 (fastest) to 9 (best) scale.
// Zero selects each codec's own default.
type Level int

const (
	// LevelCodecDefault lets each codec pick its default level
	LevelCodecDefault Level = 0
	// LevelFastest prioritizes speed over compression ratio
	LevelFastest Level = 1
	// LevelDefault balances speed and compression
	LevelDefault Level = 3
	// LevelBest prioritizes compression ratio over speed
	LevelBest Level = 9
)

// Validate checks that the level is on the 0-9 scale.
func (l Level) Validate() error {
	if l < LevelCodecDefault || l > LevelBest {
		return fmt.Errorf("%w: %d (want 0-%d)", ErrInvalidLevel, l, LevelBest)
	}

	return nil
}

// Compression errors.
var (
	ErrUnknownAlgorithm = errors.New("unknown compression algorithm")
	ErrInvalidLevel     = errors.New("invalid compression level")
)

// ParseAlgorithm converts a name into an Algorithm. The empty string means none.
func ParseAlgorithm(name string) (Algorithm, error) {
	switch a := Algorithm(strings.ToLower(name)); a {
	case "", AlgorithmNone:
		return AlgorithmNone, nil
	case AlgorithmZstd, AlgorithmLZ4, AlgorithmGzip:
		return a, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnknownAlgorithm, name)
	}
}

// Config holds compression configuration
type Config struct {
	// Algorithm to use for compression
	Algorithm Algorithm `json:"algorithm" mapstructure:"algorithm"`
	// Level controls compression ratio vs speed trade-off
	Level Level `json:"level" mapstructure:"level"`
	// MinSize is the minimum input size to compress (bytes)
	MinSize int `json:"min_size" mapstructure:"min_size"`
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Algorithm: AlgorithmZstd,
		Level:     LevelDefault,
		MinSize:   1024, // 1KB minimum
	}
}

// Compressor handles compression/decompression
type Compressor interface {
	// Compress compresses data and returns compressed bytes
	Compress(data []byte) ([]byte, error)
	// Decompress decompresses data and returns original bytes
	Decompress(data []byte) ([]byte, error)
	// Algorithm returns the algorithm name
	Algorithm() Algorithm
}

// New returns the compressor for an algorithm. AlgorithmNone has no
// compressor and yields nil.
func New(algorithm Algorithm, level Level) (Compressor, error) {
	if err := level.Validate(); err != nil {
		return nil, err
	}

	switch algorithm {
	case AlgorithmNone, "":
		return nil, nil //nolint:nilnil // none means no compressor
	case AlgorithmZstd:
		return NewZstdCompressor(level)
	case AlgorithmLZ4:
		return NewLZ4Compressor(level)
	case AlgorithmGzip:
		return NewGzipCompressor(level)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownAlgorithm, algorithm)
	}
}

// Apply compresses data according to cfg. It returns the bytes to store, the
// algorithm that was actually used and statistics about the attempt.
func Apply(cfg Config, data []byte) ([]byte, *Stats, error) {
	stats := &Stats{Algorithm: AlgorithmNone, OriginalSize: len(data), CompressedSize: len(data)}

	comp, err := New(cfg.Algorithm, cfg.Level)
	if err != nil {
		return nil, nil, err
	}

	// Skip small objects
	if comp == nil || len(data) < cfg.MinSize {
		stats.CalculateRatio()
		return data, stats, nil
	}

	start := time.Now()

	compressed, err := comp.Compress(data)
	if err != nil {
		return nil, nil, fmt.Errorf("compression failed: %w", err)
	}

	stats.Duration = time.Since(start)

	// Only use compression if it actually reduces size
	if len(compressed) >= len(data) {
		stats.CalculateRatio()
		return data, stats, nil
	}

	stats.Algorithm = comp.Algorithm()
	stats.CompressedSize = len(compressed)
	stats.CalculateRatio()

	return compressed, stats, nil
}

// Restore reverses Apply given the algorithm it reported.
func Restore(algorithm Algorithm, data []byte) ([]byte, error) {
	comp, err := New(algorithm, LevelDefault)
	if err != nil {
		return nil, err
	}

	if comp == nil {
		return data, nil
	}

	out, err := comp.Decompress(data)
	if err != nil {
		return nil, fmt.Errorf("decompression failed: %w", err)
	}

	return out, nil
}

// Stats holds statistics about compression effectiveness
type Stats struct {
	Algorithm        Algorithm
	OriginalSize     int
	CompressedSize   int
	CompressionRatio float64
	Duration         time.Duration
}

// CalculateRatio computes the compression ratio
func (s *Stats) CalculateRatio() {
	if s.OriginalSize > 0 {
		s.CompressionRatio = float64(s.CompressedSize) / float64(s.OriginalSize)
	}
}

// SpaceSaved returns bytes saved by compression
func (s *Stats) SpaceSaved() int {
	return s.OriginalSize - s.CompressedSize
}

// SpaceSavedPercent returns percentage of space saved
func (s *Stats) SpaceSavedPercent() float64 {
	if s.OriginalSize > 0 {
		return (1 - s.CompressionRatio) * 100
	}
	return 0
}
