package compression

import (
	"bytes"
	"crypto/rand"
	"testing"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompressors(t *testing.T) {
	testData := []byte("Hello, World! This is some test data that should be compressed.")

	// Create repetitive data that compresses well
	repetitiveData := bytes.Repeat([]byte("AAAAAAAAAA"), 1000)

	algorithms := []Algorithm{AlgorithmZstd, AlgorithmLZ4, AlgorithmGzip}
	levels := []Level{LevelFastest, LevelDefault, LevelBest}

	for _, alg := range algorithms {
		for _, level := range levels {
			for name, data := range map[string][]byte{"small": testData, "repetitive": repetitiveData, "empty": {}} {
				t.Run(string(alg)+"-"+name, func(t *testing.T) {
					comp, err := New(alg, level)
					require.NoError(t, err)
					assert.Equal(t, alg, comp.Algorithm())

					compressed, err := comp.Compress(data)
					require.NoError(t, err)
					if len(data) > 0 {
						assert.NotEmpty(t, compressed)
					}

					decompressed, err := comp.Decompress(compressed)
					require.NoError(t, err)
					assert.True(t, bytes.Equal(data, decompressed), "decompressed data doesn't match original")
				})
			}
		}
	}
}

func TestCompressionLevels(t *testing.T) {
	data := bytes.Repeat([]byte("Test data for compression level comparison. "), 200)

	for _, alg := range []Algorithm{AlgorithmZstd, AlgorithmLZ4, AlgorithmGzip} {
		for level := LevelCodecDefault; level <= LevelBest; level++ {
			comp, err := New(alg, level)
			require.NoError(t, err, "%s level %d", alg, level)

			compressed, err := comp.Compress(data)
			require.NoError(t, err)
			assert.Less(t, len(compressed), len(data), "%s level %d", alg, level)

			decompressed, err := comp.Decompress(compressed)
			require.NoError(t, err)
			assert.Equal(t, data, decompressed, "%s level %d", alg, level)
		}

		for _, level := range []Level{-1, LevelBest + 1} {
			_, err := New(alg, level)
			assert.ErrorIs(t, err, ErrInvalidLevel, "%s level %d", alg, level)
		}
	}

	gz, err := NewGzipCompressor(LevelFastest)
	require.NoError(t, err)
	assert.Equal(t, 1, gz.level)

	lz, err := NewLZ4Compressor(LevelCodecDefault)
	require.NoError(t, err)
	assert.Equal(t, lz4.Fast, lz.level)

	zstdTiers := map[Level]zstd.EncoderLevel{
		LevelCodecDefault: zstd.SpeedDefault,
		LevelFastest:      zstd.SpeedFastest,
		LevelDefault:      zstd.SpeedDefault,
		7:                 zstd.SpeedBetterCompression,
		LevelBest:         zstd.SpeedBestCompression,
	}
	for level, want := range zstdTiers {
		zs, err := NewZstdCompressor(level)
		require.NoError(t, err)
		assert.Equal(t, want, zs.level, "level %d", level)
	}
}

func TestParseAlgorithm(t *testing.T) {
	tests := []struct {
		in      string
		want    Algorithm
		wantErr bool
	}{
		{"", AlgorithmNone, false},
		{"none", AlgorithmNone, false},
		{"ZSTD", AlgorithmZstd, false},
		{"lz4", AlgorithmLZ4, false},
		{"gzip", AlgorithmGzip, false},
		{"brotli", "", true},
	}

	for _, tt := range tests {
		got, err := ParseAlgorithm(tt.in)
		if tt.wantErr {
			assert.ErrorIs(t, err, ErrUnknownAlgorithm)
			continue
		}

		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}
}

func TestNewNone(t *testing.T) {
	comp, err := New(AlgorithmNone, LevelDefault)
	require.NoError(t, err)
	assert.Nil(t, comp)

	_, err = New("brotli", LevelDefault)
	assert.ErrorIs(t, err, ErrUnknownAlgorithm)
}

func TestApplyRestore(t *testing.T) {
	compressible := bytes.Repeat([]byte("Compressible data pattern. "), 100)

	random := make([]byte, 4096)
	_, _ = rand.Read(random)

	t.Run("Compressible", func(t *testing.T) {
		out, stats, err := Apply(DefaultConfig(), compressible)
		require.NoError(t, err)
		assert.Equal(t, AlgorithmZstd, stats.Algorithm)
		assert.Less(t, len(out), len(compressible))
		assert.Equal(t, len(compressible), stats.OriginalSize)
		assert.Equal(t, len(out), stats.CompressedSize)
		assert.Positive(t, stats.SpaceSaved())
		assert.Greater(t, stats.SpaceSavedPercent(), 50.0)

		restored, err := Restore(stats.Algorithm, out)
		require.NoError(t, err)
		assert.Equal(t, compressible, restored)
	})

	t.Run("BelowMinSize", func(t *testing.T) {
		small := []byte("tiny")
		out, stats, err := Apply(DefaultConfig(), small)
		require.NoError(t, err)
		assert.Equal(t, AlgorithmNone, stats.Algorithm)
		assert.Equal(t, small, out)
	})

	t.Run("Incompressible", func(t *testing.T) {
		out, stats, err := Apply(Config{Algorithm: AlgorithmGzip, Level: LevelBest}, random)
		require.NoError(t, err)
		assert.Equal(t, AlgorithmNone, stats.Algorithm)
		assert.Equal(t, random, out)
		assert.Zero(t, stats.SpaceSaved())
	})

	t.Run("Disabled", func(t *testing.T) {
		out, stats, err := Apply(Config{Algorithm: AlgorithmNone}, compressible)
		require.NoError(t, err)
		assert.Equal(t, AlgorithmNone, stats.Algorithm)
		assert.Equal(t, compressible, out)

		restored, err := Restore(AlgorithmNone, out)
		require.NoError(t, err)
		assert.Equal(t, compressible, restored)
	})

	t.Run("UnknownAlgorithm", func(t *testing.T) {
		_, _, err := Apply(Config{Algorithm: "brotli"}, compressible)
		assert.ErrorIs(t, err, ErrUnknownAlgorithm)
	})

	t.Run("CorruptInput", func(t *testing.T) {
		_, err := Restore(AlgorithmZstd, []byte("not zstd"))
		assert.Error(t, err)
	})
}

func TestStats(t *testing.T) {
	s := &Stats{OriginalSize: 1000, CompressedSize: 250}
	s.CalculateRatio()
	assert.InDelta(t, 0.25, s.CompressionRatio, 0.0001)
	assert.Equal(t, 750, s.SpaceSaved())
	assert.InDelta(t, 75.0, s.SpaceSavedPercent(), 0.0001)

	empty := &Stats{}
	empty.CalculateRatio()
	assert.Zero(t, empty.SpaceSavedPercent())
}
