package engine

import "errors"

// Configuration errors.
var (
	ErrInvalidConfig    = errors.New("invalid codec configuration")
	ErrUnknownAlgorithm = errors.New("unknown erasure coding algorithm")
	ErrUnknownChecksum  = errors.New("unknown checksum type")
	ErrClosed           = errors.New("codec handle is closed")
)

// ErrNeedsReconstruction is returned by Reassemble when enough fragments are
// held but at least one data fragment is missing. It is not a failure.
var ErrNeedsReconstruction = errors.New("fragments need reconstruction")

// Fragment errors.
var (
	ErrInvalidFragment        = errors.New("invalid fragment")
	ErrInsufficientFragments  = errors.New("insufficient fragments")
	ErrInconsistentFragments  = errors.New("fragments belong to different stripes")
	ErrFragmentSizeMismatch   = errors.New("fragment size mismatch")
	ErrInvalidIndex           = errors.New("fragment index out of range")
	ErrInvalidMetadata        = errors.New("invalid fragment metadata")
	ErrInvalidSegmentArgument = errors.New("invalid segment arguments")
)
