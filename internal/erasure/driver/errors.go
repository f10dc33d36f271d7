package driver

import (
	"errors"
	"fmt"

	"github.com/piwi3910/nebulaec/internal/erasure/engine"
)

// Driver errors. Returned errors wrap one of these together with the
// underlying cause, so errors.Is matches both.
var (
	// ErrConfiguration indicates an invalid driver configuration. It is only
	// returned from constructors.
	ErrConfiguration = errors.New("invalid driver configuration")

	// ErrDecode indicates a failure while reassembling or reconstructing.
	ErrDecode = errors.New("decode failed")

	// ErrReconstructionImpossible indicates too few fragments survive.
	ErrReconstructionImpossible = errors.New("reconstruction impossible")

	// ErrFragmentCount indicates a driver was handed the wrong number of fragments.
	ErrFragmentCount = errors.New("fragment count mismatch")
)

func decodeError(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrDecode, op, err)
}

// reconstructError maps an engine failure while rebuilding index to the
// driver taxonomy.
func reconstructError(index int, err error) error {
	if errors.Is(err, engine.ErrInsufficientFragments) {
		return fmt.Errorf("%w: fragment %d: %w", ErrReconstructionImpossible, index, err)
	}

	return decodeError(fmt.Sprintf("reconstruct fragment %d", index), err)
}
