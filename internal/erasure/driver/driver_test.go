package driver_test

import (
	"context"
	"testing"

	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/piwi3910/nebulaec/internal/erasure/driver"
	"github.com/piwi3910/nebulaec/internal/erasure/engine"
	"github.com/piwi3910/nebulaec/internal/metrics"
	"github.com/piwi3910/nebulaec/internal/testutil"
)

func TestConfig(t *testing.T) {
	t.Run("DefaultConfig", func(t *testing.T) {
		cfg := driver.DefaultConfig()
		assert.Equal(t, driver.TypeErasure, cfg.Type)
		assert.Equal(t, 10, cfg.DataFragments)
		assert.Equal(t, 4, cfg.ParityFragments)
		assert.Equal(t, 14, cfg.TotalFragments())
		assert.Equal(t, 4, cfg.MaxLoss())
		assert.InDelta(t, 40.0, cfg.StorageOverhead(), 0.001)
	})

	t.Run("ConfigFromPreset", func(t *testing.T) {
		tests := []struct {
			preset driver.Preset
			k, m   int
		}{
			{driver.PresetMinimal, 4, 2},
			{driver.PresetStandard, 10, 4},
			{driver.PresetMaximum, 8, 8},
			{"unknown", 10, 4},
		}

		for _, tt := range tests {
			cfg := driver.ConfigFromPreset(tt.preset)
			assert.Equal(t, tt.k, cfg.DataFragments, "preset %s", tt.preset)
			assert.Equal(t, tt.m, cfg.ParityFragments, "preset %s", tt.preset)
		}
	})
}

func TestNew(t *testing.T) {
	t.Run("Erasure", func(t *testing.T) {
		d, err := driver.New(testutil.NewTestConfig())
		require.NoError(t, err)
		defer func() { _ = d.Close() }()
		assert.IsType(t, &driver.ECDriver{}, d)
	})

	t.Run("Striping", func(t *testing.T) {
		d, err := driver.New(driver.Config{Type: driver.TypeStriping, DataFragments: 3})
		require.NoError(t, err)
		assert.IsType(t, &driver.StripingDriver{}, d)
	})

	t.Run("StripingWithParity", func(t *testing.T) {
		_, err := driver.New(driver.Config{Type: driver.TypeStriping, DataFragments: 3, ParityFragments: 1})
		assert.ErrorIs(t, err, driver.ErrConfiguration)
	})

	t.Run("Null", func(t *testing.T) {
		d, err := driver.New(driver.Config{Type: driver.TypeNull})
		require.NoError(t, err)
		assert.IsType(t, &driver.NullDriver{}, d)
	})

	t.Run("Unknown", func(t *testing.T) {
		_, err := driver.New(driver.Config{Type: "raid6"})
		assert.ErrorIs(t, err, driver.ErrConfiguration)
	})
}

func TestNullDriver(t *testing.T) {
	d := driver.NewNullDriver(4, 2)

	fragments, err := d.Encode([]byte("ignored"))
	assert.NoError(t, err)
	assert.Nil(t, fragments)

	data, err := d.Decode([][]byte{{1}, {2}})
	assert.NoError(t, err)
	assert.Nil(t, data)

	out, err := d.Reconstruct(context.Background(), nil, []int{0, 99})
	assert.NoError(t, err)
	assert.Nil(t, out)

	needed, err := d.FragmentsNeeded([]int{-1})
	assert.NoError(t, err)
	assert.Nil(t, needed)

	md, err := d.GetMetadata(nil)
	assert.NoError(t, err)
	assert.Nil(t, md)

	ok, err := d.VerifyStripeMetadata(nil)
	assert.NoError(t, err)
	assert.False(t, ok)

	info, err := d.GetSegmentInfo(-1, 0)
	assert.NoError(t, err)
	assert.Zero(t, info)

	assert.NoError(t, d.Close())
}

func TestInstrument(t *testing.T) {
	metrics.DriverOperationsTotal.Reset()
	metrics.BytesEncoded.Reset()
	metrics.FragmentsReconstructed.Reset()

	inner, err := driver.NewECDriver(testutil.NewTestConfig())
	require.NoError(t, err)

	d := driver.Instrument(inner, "erasure")
	defer func() { _ = d.Close() }()

	data := testutil.RandomBytes(t, 1000)
	fragments, err := d.Encode(data)
	require.NoError(t, err)

	_, err = d.Reconstruct(context.Background(), testutil.DropFragments(fragments, 0), []int{0})
	require.NoError(t, err)

	_, err = d.Decode(fragments[:2])
	require.Error(t, err)

	assert.Equal(t, float64(1), promtestutil.ToFloat64(metrics.DriverOperationsTotal.WithLabelValues("erasure", "encode", "success")))
	assert.Equal(t, float64(1), promtestutil.ToFloat64(metrics.DriverOperationsTotal.WithLabelValues("erasure", "decode", "error")))
	assert.Equal(t, float64(1000), promtestutil.ToFloat64(metrics.BytesEncoded.WithLabelValues("erasure")))
	assert.Equal(t, float64(1), promtestutil.ToFloat64(metrics.FragmentsReconstructed.WithLabelValues("erasure")))

	// Calls that are not instrumented still reach the wrapped driver.
	info, err := d.GetSegmentInfo(1000, 4096)
	require.NoError(t, err)
	assert.Equal(t, engine.HeaderSize+250, info.FragmentSize)
}
