package engine

import (
	"fmt"
	"slices"

	"github.com/rs/zerolog/log"
)

// collect validates the supplied fragments and places them by index. Fragments
// that cannot be used (bad header, corrupt payload, foreign configuration) are
// skipped; usable fragments that disagree on stripe identity are an error.
func (e *Engine) collect(fragments [][]byte) ([][]byte, header, int, error) {
	held := make([][]byte, e.cfg.TotalFragments())

	var (
		tmpl  header
		count int
	)

	for pos, frag := range fragments {
		if frag == nil {
			continue
		}

		h, err := e.checkFragment(frag)
		if err != nil {
			log.Warn().Err(err).Int("position", pos).Msg("Ignoring unusable fragment")
			continue
		}

		if count == 0 {
			tmpl = h
		} else if !tmpl.sameStripe(h) {
			return nil, tmpl, 0, fmt.Errorf("%w: fragment %d does not match fragment %d", ErrInconsistentFragments, h.Index, tmpl.Index)
		}

		if held[h.Index] != nil {
			continue
		}

		held[h.Index] = frag
		count++
	}

	return held, tmpl, count, nil
}

// Reassemble joins the data fragments into the original buffer. It returns
// ErrNeedsReconstruction when at least k usable fragments are held but some
// data fragment is absent.
func (e *Engine) Reassemble(fragments [][]byte) ([]byte, error) {
	if err := e.acquire(); err != nil {
		return nil, err
	}
	defer e.mu.Unlock()

	held, tmpl, count, err := e.collect(fragments)
	if err != nil {
		return nil, err
	}

	k := e.cfg.DataFragments
	if count < k {
		return nil, fmt.Errorf("%w: need %d, have %d", ErrInsufficientFragments, k, count)
	}

	for i := range k {
		if held[i] == nil {
			return nil, ErrNeedsReconstruction
		}
	}

	out := make([]byte, 0, tmpl.PayloadSize*k)
	for i := range k {
		out = append(out, held[i][HeaderSize:]...)
	}

	if tmpl.OriginalSize > int64(len(out)) {
		return nil, fmt.Errorf("%w: original size %d exceeds %d payload bytes", ErrInvalidFragment, tmpl.OriginalSize, len(out))
	}

	return out[:tmpl.OriginalSize], nil
}

// Partition splits fragments into data fragments (length k), parity fragments
// (length m) and the ascending list of indices that are absent. Absent slots in
// the data and parity slices are nil.
func (e *Engine) Partition(fragments [][]byte) ([][]byte, [][]byte, []int, error) {
	if err := e.acquire(); err != nil {
		return nil, nil, nil, err
	}
	defer e.mu.Unlock()

	held, _, _, err := e.collect(fragments)
	if err != nil {
		return nil, nil, nil, err
	}

	k := e.cfg.DataFragments
	missing := make([]int, 0)
	for i, frag := range held {
		if frag == nil {
			missing = append(missing, i)
		}
	}

	return held[:k:k], held[k:], missing, nil
}

// shards converts a partition into payload shards for reedsolomon. Slots listed
// in missing are treated as absent even when a fragment is present.
func (e *Engine) shards(data, parity [][]byte, missing []int, fragmentSize int) ([][]byte, header, error) {
	var tmpl header

	k, m := e.cfg.DataFragments, e.cfg.ParityFragments
	if len(data) != k || len(parity) != m {
		return nil, tmpl, fmt.Errorf("%w: expected %d data and %d parity slots, got %d and %d",
			ErrInvalidFragment, k, m, len(data), len(parity))
	}
	for _, idx := range missing {
		if idx < 0 || idx >= k+m {
			return nil, tmpl, fmt.Errorf("%w: %d", ErrInvalidIndex, idx)
		}
	}

	shards := make([][]byte, k+m)
	present := 0
	for i := range k + m {
		var frag []byte
		if i < k {
			frag = data[i]
		} else {
			frag = parity[i-k]
		}
		if frag == nil || slices.Contains(missing, i) {
			continue
		}
		if len(frag) != fragmentSize {
			return nil, tmpl, fmt.Errorf("%w: fragment %d is %d bytes, expected %d", ErrFragmentSizeMismatch, i, len(frag), fragmentSize)
		}

		h, err := e.checkFragment(frag)
		if err != nil {
			return nil, tmpl, err
		}
		if h.Index != i {
			return nil, tmpl, fmt.Errorf("%w: fragment with index %d in slot %d", ErrInvalidFragment, h.Index, i)
		}
		if present == 0 {
			tmpl = h
		} else if !tmpl.sameStripe(h) {
			return nil, tmpl, fmt.Errorf("%w: fragment %d does not match fragment %d", ErrInconsistentFragments, i, tmpl.Index)
		}

		shards[i] = frag[HeaderSize:]
		present++
	}

	if present < k {
		return nil, tmpl, fmt.Errorf("%w: need %d, have %d", ErrInsufficientFragments, k, present)
	}

	return shards, tmpl, nil
}

// BulkReconstruct rebuilds every missing data fragment and returns the k data
// fragments in index order.
func (e *Engine) BulkReconstruct(data, parity [][]byte, missing []int, fragmentSize int) ([][]byte, error) {
	if err := e.acquire(); err != nil {
		return nil, err
	}
	defer e.mu.Unlock()

	shards, tmpl, err := e.shards(data, parity, missing, fragmentSize)
	if err != nil {
		return nil, err
	}

	k := e.cfg.DataFragments
	complete := !slices.ContainsFunc(shards[:k], func(s []byte) bool { return s == nil })
	if !complete {
		// Reconstruct rather than ReconstructData: the leopard codec returns
		// wrong data shards from ReconstructData without an error.
		if err := e.rs.Reconstruct(shards); err != nil {
			return nil, fmt.Errorf("failed to reconstruct data fragments: %w", err)
		}
	}

	out := make([][]byte, k)
	for i := range k {
		if data[i] != nil && !slices.Contains(missing, i) {
			out[i] = data[i]
			continue
		}

		out[i] = e.buildFragment(tmpl, i, shards[i])
	}

	return out, nil
}

// SingleReconstruct rebuilds the fragment at target.
func (e *Engine) SingleReconstruct(data, parity [][]byte, missing []int, target, fragmentSize int) ([]byte, error) {
	if err := e.acquire(); err != nil {
		return nil, err
	}
	defer e.mu.Unlock()

	if target < 0 || target >= e.cfg.TotalFragments() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidIndex, target)
	}

	shards, tmpl, err := e.shards(data, parity, missing, fragmentSize)
	if err != nil {
		return nil, err
	}

	if shards[target] == nil {
		if err := e.rs.Reconstruct(shards); err != nil {
			return nil, fmt.Errorf("failed to reconstruct fragment %d: %w", target, err)
		}
	}

	return e.buildFragment(tmpl, target, shards[target]), nil
}
