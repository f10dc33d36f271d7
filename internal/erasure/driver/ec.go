package driver

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/rs/zerolog/log"

	"github.com/piwi3910/nebulaec/internal/erasure/engine"
)

// ECDriver is the erasure-coded driver. It owns one codec engine and drives
// the decode and reconstruct protocols on top of it.
type ECDriver struct {
	cfg    Config
	engine *engine.Engine
}

// NewECDriver validates cfg and acquires a codec engine for it.
func NewECDriver(cfg Config) (_ *ECDriver, err error) {
	// The engine must never see an unrecognized enum, so validate here first.
	if _, err := engine.ParseAlgorithm(string(cfg.Algorithm)); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfiguration, err)
	}
	if _, err := engine.ParseChecksumType(string(cfg.Checksum)); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfiguration, err)
	}

	eng, err := engine.New(engine.Config{
		DataFragments:   cfg.DataFragments,
		ParityFragments: cfg.ParityFragments,
		Algorithm:       cfg.Algorithm,
		Checksum:        cfg.Checksum,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfiguration, err)
	}
	defer func() {
		if err != nil {
			_ = eng.Close()
		}
	}()

	if got := eng.Config(); got.DataFragments != cfg.DataFragments || got.ParityFragments != cfg.ParityFragments {
		return nil, fmt.Errorf("%w: codec reports %d+%d, requested %d+%d",
			ErrConfiguration, got.DataFragments, got.ParityFragments, cfg.DataFragments, cfg.ParityFragments)
	}

	cfg.Type = TypeErasure

	log.Info().
		Int("data_fragments", cfg.DataFragments).
		Int("parity_fragments", cfg.ParityFragments).
		Str("algorithm", string(cfg.Algorithm)).
		Str("checksum", string(cfg.Checksum)).
		Msg("Created erasure coding driver")

	return &ECDriver{cfg: cfg, engine: eng}, nil
}

// Config returns the driver configuration.
func (d *ECDriver) Config() Config {
	return d.cfg
}

// Encode implements Driver.
func (d *ECDriver) Encode(data []byte) ([][]byte, error) {
	fragments, err := d.engine.Encode(data)
	if err != nil {
		return nil, fmt.Errorf("failed to encode: %w", err)
	}

	return fragments, nil
}

// Decode implements Driver. The held fragments are first reassembled directly;
// only when a data fragment is missing are the missing data fragments rebuilt
// from the parity fragments.
func (d *ECDriver) Decode(fragments [][]byte) ([]byte, error) {
	data, err := d.engine.Reassemble(fragments)
	if err == nil {
		return data, nil
	}
	if !errors.Is(err, engine.ErrNeedsReconstruction) {
		return nil, decodeError("reassemble", err)
	}

	dataFrags, parityFrags, missing, err := d.engine.Partition(fragments)
	if err != nil {
		return nil, decodeError("partition", err)
	}

	log.Debug().
		Ints("missing", missing).
		Msg("Reconstructing missing data fragments")

	rebuilt, err := d.engine.BulkReconstruct(dataFrags, parityFrags, missing, fragmentSize(dataFrags, parityFrags))
	if err != nil {
		return nil, decodeError("reconstruct", err)
	}

	data, err = d.engine.Reassemble(rebuilt)
	if err != nil {
		return nil, decodeError("reassemble", err)
	}

	return data, nil
}

// Reconstruct implements Driver. Targets are processed in ascending order and
// every target is rebuilt from the supplied fragments only; fragments rebuilt
// earlier in the call are not fed back. ctx is checked between targets.
func (d *ECDriver) Reconstruct(ctx context.Context, fragments [][]byte, indexes []int) ([][]byte, error) {
	targets := slices.Clone(indexes)
	slices.Sort(targets)

	out := make([][]byte, 0, len(targets))
	for _, idx := range targets {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		data, parity, missing, err := d.engine.Partition(fragments)
		if err != nil {
			return nil, reconstructError(idx, err)
		}

		frag, err := d.engine.SingleReconstruct(data, parity, missing, idx, fragmentSize(data, parity))
		if err != nil {
			return nil, reconstructError(idx, err)
		}

		log.Debug().Int("index", idx).Msg("Reconstructed fragment")
		out = append(out, frag)
	}

	return out, nil
}

// FragmentsNeeded implements Driver.
func (d *ECDriver) FragmentsNeeded(missing []int) ([]int, error) {
	needed, err := d.engine.RequiredFragments(missing)
	if err != nil {
		if errors.Is(err, engine.ErrInsufficientFragments) {
			return nil, fmt.Errorf("%w: %w", ErrReconstructionImpossible, err)
		}
		return nil, fmt.Errorf("failed to compute required fragments: %w", err)
	}

	return needed, nil
}

// GetMetadata implements Driver.
func (d *ECDriver) GetMetadata(fragment []byte) ([]byte, error) {
	md, err := d.engine.Metadata(fragment)
	if err != nil {
		return nil, fmt.Errorf("failed to read fragment metadata: %w", err)
	}

	return md, nil
}

// VerifyStripeMetadata implements Driver.
func (d *ECDriver) VerifyStripeMetadata(metadata [][]byte) (bool, error) {
	ok, err := d.engine.CheckMetadata(metadata)
	if err != nil {
		return false, fmt.Errorf("failed to verify stripe metadata: %w", err)
	}

	return ok, nil
}

// GetSegmentInfo implements Driver.
func (d *ECDriver) GetSegmentInfo(dataLen, segmentSize int) (SegmentInfo, error) {
	return d.engine.SegmentInfo(dataLen, segmentSize)
}

// Close releases the codec engine.
func (d *ECDriver) Close() error {
	return d.engine.Close()
}

// fragmentSize returns the length of the first held fragment.
func fragmentSize(data, parity [][]byte) int {
	for _, frag := range slices.Concat(data, parity) {
		if frag != nil {
			return len(frag)
		}
	}

	return 0
}
