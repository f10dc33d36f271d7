// Package engine implements the codec engine used by the erasure-coded driver.
//
// An Engine is bound to one (k, m, algorithm, checksum) configuration and turns a
// buffer into k data fragments and m parity fragments. Every fragment carries a
// fixed-size header (see header.go) so that fragments are self-describing: the
// engine can tell which index a fragment has, how long the original buffer was
// and whether the fragment belongs to the same stripe as its siblings.
//
// The matrix math is delegated to github.com/klauspost/reedsolomon. Supported
// algorithms:
//   - rs_vand: Vandermonde-derived Reed-Solomon matrix (default)
//   - jerasure_rs_vand: Jerasure-compatible Vandermonde matrix
//   - jerasure_rs_cauchy: Cauchy matrix
//   - leopard: Leopard FFT codec (GF(2^8), or GF(2^16) above 256 fragments)
//
// Checksum types:
//   - none: no integrity data
//   - inline: per-fragment xxhash64 of the payload, plus a stripe fingerprint
//   - algsig: blake3-256 stripe signature over the original buffer
package engine

import (
	"fmt"
	"sync"

	"github.com/klauspost/reedsolomon"
)

// Algorithm identifies the coding matrix used by the engine.
type Algorithm string

const (
	AlgorithmRSVand           Algorithm = "rs_vand"
	AlgorithmJerasureRSVand   Algorithm = "jerasure_rs_vand"
	AlgorithmJerasureRSCauchy Algorithm = "jerasure_rs_cauchy"
	AlgorithmLeopard          Algorithm = "leopard"
)

// Algorithms lists every supported algorithm.
var Algorithms = []Algorithm{
	AlgorithmRSVand,
	AlgorithmJerasureRSVand,
	AlgorithmJerasureRSCauchy,
	AlgorithmLeopard,
}

// ChecksumType selects how integrity data is embedded in fragment headers.
type ChecksumType string

const (
	ChecksumNone   ChecksumType = "none"
	ChecksumInline ChecksumType = "inline"
	ChecksumAlgSig ChecksumType = "algsig"
)

// ChecksumTypes lists every supported checksum type.
var ChecksumTypes = []ChecksumType{ChecksumNone, ChecksumInline, ChecksumAlgSig}

// Fragment count limits.
const (
	maxTotalFragments        = 256
	maxLeopardTotalFragments = 65536
)

// Config is the immutable configuration an Engine is bound to.
type Config struct {
	DataFragments   int
	ParityFragments int
	Algorithm       Algorithm
	Checksum        ChecksumType
}

// ParseAlgorithm returns the Algorithm named by s.
func ParseAlgorithm(s string) (Algorithm, error) {
	for _, a := range Algorithms {
		if string(a) == s {
			return a, nil
		}
	}

	return "", fmt.Errorf("%w: %q", ErrUnknownAlgorithm, s)
}

// ParseChecksumType returns the ChecksumType named by s.
func ParseChecksumType(s string) (ChecksumType, error) {
	for _, c := range ChecksumTypes {
		if string(c) == s {
			return c, nil
		}
	}

	return "", fmt.Errorf("%w: %q", ErrUnknownChecksum, s)
}

// Validate checks the configuration against the engine's limits.
func (c Config) Validate() error {
	if _, err := ParseAlgorithm(string(c.Algorithm)); err != nil {
		return err
	}
	if _, err := ParseChecksumType(string(c.Checksum)); err != nil {
		return err
	}
	if c.DataFragments < 1 {
		return fmt.Errorf("%w: data fragments must be at least 1, got %d", ErrInvalidConfig, c.DataFragments)
	}
	if c.ParityFragments < 0 {
		return fmt.Errorf("%w: parity fragments must not be negative, got %d", ErrInvalidConfig, c.ParityFragments)
	}

	limit := maxTotalFragments
	if c.Algorithm == AlgorithmLeopard {
		limit = maxLeopardTotalFragments
	}
	if c.TotalFragments() > limit {
		return fmt.Errorf("%w: total fragments must be at most %d, got %d", ErrInvalidConfig, limit, c.TotalFragments())
	}

	return nil
}

// TotalFragments returns k+m.
func (c Config) TotalFragments() int {
	return c.DataFragments + c.ParityFragments
}

// Engine is a codec handle for one configuration. Calls are serialized
// internally; callers that need parallelism should use separate engines.
type Engine struct {
	cfg      Config
	rs       reedsolomon.Encoder
	multiple int

	mu     sync.Mutex
	closed bool
}

// New creates an engine for cfg.
func New(cfg Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	e := &Engine{cfg: cfg, multiple: 1}

	// With no parity there is nothing to compute and reedsolomon is never consulted.
	if cfg.ParityFragments > 0 {
		rs, err := reedsolomon.New(cfg.DataFragments, cfg.ParityFragments, matrixOptions(cfg.Algorithm)...)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to create codec: %w", ErrInvalidConfig, err)
		}

		e.rs = rs
		if ext, ok := rs.(interface{ ShardSizeMultiple() int }); ok && ext.ShardSizeMultiple() > 1 {
			e.multiple = ext.ShardSizeMultiple()
		}
	}

	return e, nil
}

func matrixOptions(a Algorithm) []reedsolomon.Option {
	switch a {
	case AlgorithmJerasureRSVand:
		return []reedsolomon.Option{reedsolomon.WithJerasureMatrix()}
	case AlgorithmJerasureRSCauchy:
		return []reedsolomon.Option{reedsolomon.WithCauchyMatrix()}
	case AlgorithmLeopard:
		return []reedsolomon.Option{reedsolomon.WithLeopardGF(true)}
	default:
		return nil
	}
}

// Config returns the engine configuration.
func (e *Engine) Config() Config {
	return e.cfg
}

// Close releases the handle. It is safe to call more than once.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.closed = true
	e.rs = nil

	return nil
}

// acquire locks the engine and reports ErrClosed after Close.
func (e *Engine) acquire() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return ErrClosed
	}

	return nil
}

// payloadSize returns the per-fragment payload length for a buffer of n bytes.
func (e *Engine) payloadSize(n int) int {
	size := (n + e.cfg.DataFragments - 1) / e.cfg.DataFragments
	if size == 0 {
		size = 1
	}
	if rem := size % e.multiple; rem != 0 {
		size += e.multiple - rem
	}

	return size
}

// checkPayloadSize rejects payloads the fragment header cannot describe.
func checkPayloadSize(size int) error {
	if int64(size) > MaxPayloadSize {
		return fmt.Errorf("%w: payload of %d bytes exceeds the %d byte limit", ErrInvalidSegmentArgument, size, MaxPayloadSize)
	}

	return nil
}

// Encode splits data into k data fragments followed by m parity fragments.
func (e *Engine) Encode(data []byte) ([][]byte, error) {
	if err := e.acquire(); err != nil {
		return nil, err
	}
	defer e.mu.Unlock()

	k, total := e.cfg.DataFragments, e.cfg.TotalFragments()
	size := e.payloadSize(len(data))
	if err := checkPayloadSize(size); err != nil {
		return nil, err
	}

	// One contiguous allocation; shards are views into it.
	payloads := make([][]byte, total)
	backing := make([]byte, size*total)
	for i := range total {
		payloads[i] = backing[i*size : (i+1)*size : (i+1)*size]
	}
	for i := range k {
		start := min(i*size, len(data))
		end := min(start+size, len(data))
		copy(payloads[i], data[start:end])
	}

	if e.rs != nil {
		if err := e.rs.Encode(payloads); err != nil {
			return nil, fmt.Errorf("failed to encode parity: %w", err)
		}
	}

	tmpl := e.stripeHeader(data, size)
	fragments := make([][]byte, total)
	for i, p := range payloads {
		fragments[i] = e.buildFragment(tmpl, i, p)
	}

	return fragments, nil
}
