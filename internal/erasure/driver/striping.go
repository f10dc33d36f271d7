package driver

import (
	"bytes"
	"context"
	"fmt"
	"slices"

	"github.com/piwi3910/nebulaec/internal/erasure/engine"
)

// StripingDriver splits a buffer into k fragments without redundancy. There is
// no header: fragments are raw byte ranges of the input.
type StripingDriver struct {
	k int
}

// NewStripingDriver creates a striping driver. m must be zero.
func NewStripingDriver(k, m int) (*StripingDriver, error) {
	if m != 0 {
		return nil, fmt.Errorf("%w: striping supports m=0 only, got m=%d", ErrConfiguration, m)
	}
	if k < 1 {
		return nil, fmt.Errorf("%w: striping needs k >= 1, got k=%d", ErrConfiguration, k)
	}

	return &StripingDriver{k: k}, nil
}

// fragmentSize is ceil(n/k), the length of every fragment but the last.
func (d *StripingDriver) fragmentSize(n int) int {
	return (n + d.k - 1) / d.k
}

// Encode implements Driver. The first k-1 fragments hold ceil(L/k) bytes and
// the last holds whatever remains, so the lengths always sum to L. Trailing
// fragments are empty when L is smaller than k.
func (d *StripingDriver) Encode(data []byte) ([][]byte, error) {
	size := d.fragmentSize(len(data))

	fragments := make([][]byte, d.k)
	for i := range d.k {
		start := min(i*size, len(data))
		end := min(start+size, len(data))
		if i == d.k-1 {
			end = len(data)
		}

		fragments[i] = bytes.Clone(data[start:end])
		if fragments[i] == nil {
			fragments[i] = []byte{}
		}
	}

	return fragments, nil
}

// present counts the non-nil fragments. A nil slot is a lost fragment; an
// empty non-nil slice is a legitimately empty one.
func present(fragments [][]byte) int {
	n := 0
	for _, frag := range fragments {
		if frag != nil {
			n++
		}
	}

	return n
}

// Decode implements Driver. Exactly k fragments are required, in index order.
func (d *StripingDriver) Decode(fragments [][]byte) ([]byte, error) {
	if len(fragments) != d.k || present(fragments) != d.k {
		return nil, decodeError("decode",
			fmt.Errorf("%w: decode requires %d fragments, %d given", ErrFragmentCount, d.k, present(fragments)))
	}

	n := 0
	for _, frag := range fragments {
		n += len(frag)
	}

	out := make([]byte, 0, n)
	for _, frag := range fragments {
		out = append(out, frag...)
	}

	return out, nil
}

// Reconstruct implements Driver. Without redundancy nothing can be rebuilt, so
// the call only succeeds when all k fragments are supplied.
func (d *StripingDriver) Reconstruct(ctx context.Context, fragments [][]byte, indexes []int) ([][]byte, error) {
	if len(fragments) != d.k || present(fragments) != d.k {
		return nil, fmt.Errorf("%w: reconstruction requires %d fragments, %d given",
			ErrReconstructionImpossible, d.k, present(fragments))
	}

	targets := slices.Clone(indexes)
	slices.Sort(targets)

	out := make([][]byte, 0, len(targets))
	for _, idx := range targets {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if idx < 0 || idx >= d.k {
			return nil, decodeError("reconstruct", fmt.Errorf("%w: %d", engine.ErrInvalidIndex, idx))
		}

		out = append(out, bytes.Clone(fragments[idx]))
	}

	return out, nil
}

// FragmentsNeeded implements Driver. Every missing fragment is needed.
func (d *StripingDriver) FragmentsNeeded(missing []int) ([]int, error) {
	return slices.Clone(missing), nil
}

// GetMetadata implements Driver. Striped fragments carry no metadata.
func (d *StripingDriver) GetMetadata([]byte) ([]byte, error) {
	return []byte{}, nil
}

// VerifyStripeMetadata implements Driver. There is nothing to compare, so the
// stripe is always consistent.
func (d *StripingDriver) VerifyStripeMetadata([][]byte) (bool, error) {
	return true, nil
}

// GetSegmentInfo implements Driver using plain arithmetic.
func (d *StripingDriver) GetSegmentInfo(dataLen, segmentSize int) (SegmentInfo, error) {
	info, err := engine.PlanSegments(dataLen, segmentSize, d.k)
	if err != nil {
		return info, err
	}

	info.FragmentSize = d.fragmentSize(info.SegmentSize)
	info.LastFragmentSize = d.fragmentSize(info.LastSegmentSize)

	return info, nil
}

// Close implements Driver.
func (d *StripingDriver) Close() error {
	return nil
}
