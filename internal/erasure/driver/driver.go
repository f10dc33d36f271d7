// Package driver implements the fragmenting drivers used by NebulaEC.
//
// A Driver turns a buffer into an ordered set of fragments and rebuilds the
// buffer, or individual fragments, from whatever subset survives. Three
// variants share the Driver interface:
//
//   - ECDriver: k data + m parity fragments through the codec engine; any k of
//     the k+m fragments are enough to decode
//   - StripingDriver: k data fragments and no redundancy (m = 0), RAID 0 style
//   - NullDriver: every operation is a no-op; keeps the call surface when
//     erasure coding is disabled
//
// Typical configurations:
//   - 4+2: 50% overhead, tolerates 2 failures (minimum viable)
//   - 8+4: 50% overhead, tolerates 4 failures (balanced)
//   - 10+4: 40% overhead, tolerates 4 failures (recommended production)
//
// A driver owns its codec handle exclusively. Drivers must not be shared
// between goroutines that need to run in parallel; create one driver per worker.
package driver

import (
	"context"
	"fmt"

	"github.com/piwi3910/nebulaec/internal/erasure/engine"
)

// SegmentInfo is the sizing plan returned by GetSegmentInfo.
type SegmentInfo = engine.SegmentInfo

// Driver is the contract shared by every driver variant.
type Driver interface {
	// Encode splits data into k+m fragments, data fragments first.
	Encode(data []byte) ([][]byte, error)

	// Decode rebuilds the original buffer from the fragments held.
	Decode(fragments [][]byte) ([]byte, error)

	// Reconstruct rebuilds the fragments at indexes, in ascending index order,
	// from the supplied survivors.
	Reconstruct(ctx context.Context, fragments [][]byte, indexes []int) ([][]byte, error)

	// FragmentsNeeded returns the fragment indices to fetch when the given
	// indices are missing.
	FragmentsNeeded(missing []int) ([]int, error)

	// GetMetadata returns the opaque metadata of a fragment.
	GetMetadata(fragment []byte) ([]byte, error)

	// VerifyStripeMetadata reports whether all metadata entries come from a
	// single encode operation.
	VerifyStripeMetadata(metadata [][]byte) (bool, error)

	// GetSegmentInfo returns the sizing plan for an object of dataLen bytes
	// split into segments of segmentSize bytes.
	GetSegmentInfo(dataLen, segmentSize int) (SegmentInfo, error)

	// Close releases resources held by the driver.
	Close() error
}

// Type selects a driver variant.
type Type string

const (
	// TypeErasure is the Reed-Solomon erasure-coded driver.
	TypeErasure Type = "erasure"
	// TypeStriping splits data without redundancy.
	TypeStriping Type = "striping"
	// TypeNull disables fragmenting.
	TypeNull Type = "null"
)

// Config holds driver configuration.
type Config struct {
	// Type is the driver variant (default: erasure)
	Type Type `json:"type" mapstructure:"type"`

	// DataFragments is the number of data fragments, k (default: 10)
	DataFragments int `json:"k" mapstructure:"k"`

	// ParityFragments is the number of parity fragments, m (default: 4)
	ParityFragments int `json:"m" mapstructure:"m"`

	// Algorithm is the coding matrix used by the erasure driver
	Algorithm engine.Algorithm `json:"algorithm" mapstructure:"algorithm"`

	// Checksum selects the integrity data embedded in fragment headers
	Checksum engine.ChecksumType `json:"checksum" mapstructure:"checksum"`
}

// DefaultConfig returns the default driver configuration.
func DefaultConfig() Config {
	return Config{
		Type:            TypeErasure,
		DataFragments:   10,
		ParityFragments: 4,
		Algorithm:       engine.AlgorithmRSVand,
		Checksum:        engine.ChecksumInline,
	}
}

// Preset represents a pre-configured erasure coding setup.
type Preset string

const (
	// PresetMinimal uses 4+2 configuration (can lose 2 fragments)
	PresetMinimal Preset = "minimal"

	// PresetStandard uses 10+4 configuration (can lose 4 fragments)
	PresetStandard Preset = "standard"

	// PresetMaximum uses 8+8 configuration (can lose 8 fragments, 100% overhead)
	PresetMaximum Preset = "maximum"
)

// ConfigFromPreset returns an erasure configuration based on a preset name.
// Unknown presets fall back to standard.
func ConfigFromPreset(preset Preset) Config {
	cfg := DefaultConfig()

	switch preset {
	case PresetMinimal:
		cfg.DataFragments = 4
		cfg.ParityFragments = 2
	case PresetMaximum:
		cfg.DataFragments = 8
		cfg.ParityFragments = 8
	default:
		cfg.DataFragments = 10
		cfg.ParityFragments = 4
	}

	return cfg
}

// TotalFragments returns the total number of fragments (data + parity).
func (c Config) TotalFragments() int {
	return c.DataFragments + c.ParityFragments
}

// MaxLoss returns the maximum number of fragments that can be lost.
func (c Config) MaxLoss() int {
	return c.ParityFragments
}

// StorageOverhead returns the storage overhead as a percentage.
func (c Config) StorageOverhead() float64 {
	return float64(c.ParityFragments) / float64(c.DataFragments) * 100
}

// New creates the driver selected by cfg.Type.
func New(cfg Config) (Driver, error) {
	switch cfg.Type {
	case TypeErasure, "":
		return NewECDriver(cfg)
	case TypeStriping:
		return NewStripingDriver(cfg.DataFragments, cfg.ParityFragments)
	case TypeNull:
		return NewNullDriver(cfg.DataFragments, cfg.ParityFragments), nil
	default:
		return nil, fmt.Errorf("%w: unknown driver type %q", ErrConfiguration, cfg.Type)
	}
}
