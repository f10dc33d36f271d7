package driver_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/piwi3910/nebulaec/internal/erasure/driver"
	"github.com/piwi3910/nebulaec/internal/erasure/engine"
	"github.com/piwi3910/nebulaec/internal/testutil"
)

func newECDriver(t *testing.T, k, m int, alg engine.Algorithm, checksum engine.ChecksumType) *driver.ECDriver {
	t.Helper()

	d, err := driver.NewECDriver(driver.Config{
		DataFragments:   k,
		ParityFragments: m,
		Algorithm:       alg,
		Checksum:        checksum,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Close() })

	return d
}

func TestECDriverRoundTrip(t *testing.T) {
	configs := []struct{ k, m int }{{1, 0}, {1, 1}, {3, 0}, {4, 2}, {10, 4}, {12, 3}}
	sizes := []int{0, 1, 3, 4, 1000, 4097}

	for _, cfg := range configs {
		for _, checksum := range engine.ChecksumTypes {
			t.Run(fmt.Sprintf("%d+%d/%s", cfg.k, cfg.m, checksum), func(t *testing.T) {
				d := newECDriver(t, cfg.k, cfg.m, engine.AlgorithmRSVand, checksum)

				for _, size := range sizes {
					data := testutil.SeededBytes(uint64(size), size)

					fragments, err := d.Encode(data)
					require.NoError(t, err)
					require.Len(t, fragments, cfg.k+cfg.m)

					out, err := d.Decode(fragments)
					require.NoError(t, err)
					assert.Equal(t, data, out, "size %d", size)
				}
			})
		}
	}
}

func TestECDriverDecodeAnyKSurvivors(t *testing.T) {
	for _, alg := range engine.Algorithms {
		t.Run(string(alg), func(t *testing.T) {
			d := newECDriver(t, 4, 2, alg, engine.ChecksumInline)
			data := testutil.RandomBytes(t, 3000)

			fragments, err := d.Encode(data)
			require.NoError(t, err)

			for _, lost := range testutil.Subsets(6, 2) {
				out, err := d.Decode(testutil.DropFragments(fragments, lost...))
				require.NoError(t, err, "lost %v", lost)
				assert.Equal(t, data, out, "lost %v", lost)
			}
		})
	}
}

func TestECDriverDecodeWithNilSlots(t *testing.T) {
	d := newECDriver(t, 4, 2, engine.AlgorithmJerasureRSVand, engine.ChecksumAlgSig)
	data := testutil.RandomBytes(t, 999)

	fragments, err := d.Encode(data)
	require.NoError(t, err)

	out, err := d.Decode(testutil.NilFragments(fragments, 0, 3))
	require.NoError(t, err)
	assert.Equal(t, data, out)
}

func TestECDriverDecodeTooFew(t *testing.T) {
	d := newECDriver(t, 4, 2, engine.AlgorithmRSVand, engine.ChecksumNone)

	fragments, err := d.Encode(testutil.RandomBytes(t, 100))
	require.NoError(t, err)

	_, err = d.Decode(testutil.DropFragments(fragments, 0, 2, 5))
	require.Error(t, err)
	assert.ErrorIs(t, err, driver.ErrDecode)
	assert.ErrorIs(t, err, engine.ErrInsufficientFragments)
}

func TestECDriverReconstructEachIndex(t *testing.T) {
	for _, alg := range engine.Algorithms {
		for _, checksum := range engine.ChecksumTypes {
			t.Run(fmt.Sprintf("%s/%s", alg, checksum), func(t *testing.T) {
				d := newECDriver(t, 6, 3, alg, checksum)
				data := testutil.SeededBytes(7, 5000)

				fragments, err := d.Encode(data)
				require.NoError(t, err)

				for i := range fragments {
					out, err := d.Reconstruct(context.Background(), testutil.DropFragments(fragments, i), []int{i})
					require.NoError(t, err, "index %d", i)
					require.Len(t, out, 1)
					assert.Equal(t, fragments[i], out[0], "index %d", i)
				}
			})
		}
	}
}

func TestECDriverReconstructPairs(t *testing.T) {
	for _, alg := range engine.Algorithms {
		t.Run(string(alg), func(t *testing.T) {
			// The same driver serves every loss pattern in turn.
			d := newECDriver(t, 4, 2, alg, engine.ChecksumInline)

			fragments, err := d.Encode(testutil.SeededBytes(3000, 3000))
			require.NoError(t, err)

			for _, lost := range testutil.Subsets(6, 2) {
				out, err := d.Reconstruct(context.Background(), testutil.DropFragments(fragments, lost...), lost)
				require.NoError(t, err, "lost %v", lost)
				testutil.AssertFragmentsEqual(t, [][]byte{fragments[lost[0]], fragments[lost[1]]}, out)
			}
		})
	}
}

func TestECDriverReconstructScenario(t *testing.T) {
	d := newECDriver(t, 4, 2, engine.AlgorithmRSVand, engine.ChecksumInline)
	data := testutil.RandomBytes(t, 1000)

	fragments, err := d.Encode(data)
	require.NoError(t, err)
	require.Len(t, fragments, 6)

	survivors := testutil.DropFragments(fragments, 1, 4)

	// Targets are processed in ascending order regardless of how they are given.
	out, err := d.Reconstruct(context.Background(), survivors, []int{4, 1})
	require.NoError(t, err)
	testutil.AssertFragmentsEqual(t, [][]byte{fragments[1], fragments[4]}, out)

	restored := [][]byte{fragments[0], out[0], fragments[2], fragments[3], out[1], fragments[5]}
	decoded, err := d.Decode(restored)
	require.NoError(t, err)
	assert.Equal(t, data, decoded)
}

func TestECDriverReconstructErrors(t *testing.T) {
	d := newECDriver(t, 4, 2, engine.AlgorithmRSVand, engine.ChecksumNone)

	fragments, err := d.Encode(testutil.RandomBytes(t, 400))
	require.NoError(t, err)

	t.Run("TooFewSurvivors", func(t *testing.T) {
		_, err := d.Reconstruct(context.Background(), testutil.DropFragments(fragments, 0, 1, 2), []int{0})
		assert.ErrorIs(t, err, driver.ErrReconstructionImpossible)
	})

	t.Run("IndexOutOfRange", func(t *testing.T) {
		_, err := d.Reconstruct(context.Background(), fragments, []int{9})
		assert.ErrorIs(t, err, driver.ErrDecode)
		assert.ErrorIs(t, err, engine.ErrInvalidIndex)
	})

	t.Run("Cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := d.Reconstruct(ctx, testutil.DropFragments(fragments, 2), []int{2})
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestECDriverFragmentsNeeded(t *testing.T) {
	d := newECDriver(t, 4, 2, engine.AlgorithmRSVand, engine.ChecksumInline)
	data := testutil.RandomBytes(t, 2048)

	fragments, err := d.Encode(data)
	require.NoError(t, err)

	for _, missing := range [][]int{nil, {0}, {1, 4}, {0, 3}, {4, 5}} {
		needed, err := d.FragmentsNeeded(missing)
		require.NoError(t, err)
		require.Len(t, needed, 4)

		fetched := make([][]byte, 0, len(needed))
		for _, idx := range needed {
			assert.NotContains(t, missing, idx)
			fetched = append(fetched, fragments[idx])
		}

		out, err := d.Decode(fetched)
		require.NoError(t, err, "missing %v", missing)
		assert.Equal(t, data, out)
	}

	_, err = d.FragmentsNeeded([]int{0, 1, 2})
	assert.ErrorIs(t, err, driver.ErrReconstructionImpossible)
}

func TestECDriverVerifyStripeMetadata(t *testing.T) {
	d := newECDriver(t, 4, 2, engine.AlgorithmRSVand, engine.ChecksumAlgSig)

	metadataOf := func(fragments [][]byte) [][]byte {
		out := make([][]byte, len(fragments))
		for i, frag := range fragments {
			md, err := d.GetMetadata(frag)
			require.NoError(t, err)
			out[i] = md
		}
		return out
	}

	a, err := d.Encode(testutil.RandomBytes(t, 800))
	require.NoError(t, err)
	b, err := d.Encode(testutil.RandomBytes(t, 800))
	require.NoError(t, err)

	mdA := metadataOf(a)
	ok, err := d.VerifyStripeMetadata(mdA)
	require.NoError(t, err)
	assert.True(t, ok)

	swapped := metadataOf(a)
	swapped[3] = metadataOf(b)[3]
	ok, err = d.VerifyStripeMetadata(swapped)
	require.NoError(t, err)
	assert.False(t, ok)

	other := newECDriver(t, 4, 2, engine.AlgorithmJerasureRSCauchy, engine.ChecksumAlgSig)
	c, err := other.Encode(testutil.RandomBytes(t, 800))
	require.NoError(t, err)
	mdC, err := other.GetMetadata(c[0])
	require.NoError(t, err)

	swapped = metadataOf(a)
	swapped[0] = mdC
	ok, err = d.VerifyStripeMetadata(swapped)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestECDriverSegmentInfo(t *testing.T) {
	d := newECDriver(t, 4, 2, engine.AlgorithmRSVand, engine.ChecksumNone)

	info, err := d.GetSegmentInfo(1<<20+100, 1<<18)
	require.NoError(t, err)
	assert.Equal(t, 5, info.NumSegments)
	assert.Equal(t, 1<<18, info.SegmentSize)
	assert.Equal(t, 100, info.LastSegmentSize)
	assert.Equal(t, engine.HeaderSize+(1<<16), info.FragmentSize)
	assert.Equal(t, engine.HeaderSize+25, info.LastFragmentSize)
}

func TestNewECDriverConfigErrors(t *testing.T) {
	tests := []struct {
		name string
		cfg  driver.Config
	}{
		{"UnknownAlgorithm", driver.Config{DataFragments: 4, ParityFragments: 2, Algorithm: "flat_xor_hd", Checksum: engine.ChecksumNone}},
		{"UnknownChecksum", driver.Config{DataFragments: 4, ParityFragments: 2, Algorithm: engine.AlgorithmRSVand, Checksum: "md5"}},
		{"NoDataFragments", driver.Config{DataFragments: 0, ParityFragments: 2, Algorithm: engine.AlgorithmRSVand, Checksum: engine.ChecksumNone}},
		{"TooManyFragments", driver.Config{DataFragments: 250, ParityFragments: 10, Algorithm: engine.AlgorithmRSVand, Checksum: engine.ChecksumNone}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := driver.NewECDriver(tt.cfg)
			assert.ErrorIs(t, err, driver.ErrConfiguration)
		})
	}
}

func TestECDriverClosed(t *testing.T) {
	d, err := driver.NewECDriver(testutil.NewTestConfig())
	require.NoError(t, err)
	require.NoError(t, d.Close())

	_, err = d.Encode([]byte("data"))
	assert.ErrorIs(t, err, engine.ErrClosed)
}
