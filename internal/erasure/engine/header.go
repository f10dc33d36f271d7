package engine

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/cespare/xxhash/v2"
	"github.com/zeebo/blake3"
)

// Fragment header layout (little endian):
//
//	0  magic            uint32
//	4  version          uint8
//	5  algorithm        uint8
//	6  checksum type    uint8
//	7  reserved         uint8
//	8  index            uint32
//	12 data fragments   uint32
//	16 parity fragments uint32
//	20 payload size     uint32
//	24 original size    uint64
//	32 payload checksum uint64
//	40 stripe signature [32]byte
//	72 header checksum  uint64
const (
	HeaderSize = 80

	headerMagic   uint32 = 0x4e454346 // "NECF"
	headerVersion uint8  = 1

	signatureSize     = 32
	headerChecksumOff = 72

	// MaxPayloadSize is the largest payload the uint32 size field can describe.
	MaxPayloadSize = math.MaxUint32
)

var algorithmCodes = map[Algorithm]uint8{
	AlgorithmRSVand:           1,
	AlgorithmJerasureRSVand:   2,
	AlgorithmJerasureRSCauchy: 3,
	AlgorithmLeopard:          4,
}

var checksumCodes = map[ChecksumType]uint8{
	ChecksumNone:   0,
	ChecksumInline: 1,
	ChecksumAlgSig: 2,
}

// header is the decoded form of a fragment header.
type header struct {
	Algorithm       uint8
	Checksum        uint8
	Index           int
	DataFragments   int
	ParityFragments int
	PayloadSize     int
	OriginalSize    int64
	PayloadChecksum uint64
	Signature       [signatureSize]byte
}

// sameStripe reports whether two headers describe fragments of one encode call.
func (h header) sameStripe(o header) bool {
	return h.PayloadSize == o.PayloadSize &&
		h.OriginalSize == o.OriginalSize &&
		h.Signature == o.Signature
}

// stripeHeader builds the header fields shared by every fragment of one encode.
func (e *Engine) stripeHeader(data []byte, payloadSize int) header {
	h := header{
		Algorithm:       algorithmCodes[e.cfg.Algorithm],
		Checksum:        checksumCodes[e.cfg.Checksum],
		DataFragments:   e.cfg.DataFragments,
		ParityFragments: e.cfg.ParityFragments,
		PayloadSize:     payloadSize,
		OriginalSize:    int64(len(data)),
	}

	switch e.cfg.Checksum {
	case ChecksumInline:
		binary.LittleEndian.PutUint64(h.Signature[:8], xxhash.Sum64(data))
	case ChecksumAlgSig:
		h.Signature = blake3.Sum256(data)
	}

	return h
}

// buildFragment serializes tmpl with the given index followed by payload.
func (e *Engine) buildFragment(tmpl header, index int, payload []byte) []byte {
	h := tmpl
	h.Index = index
	h.PayloadChecksum = 0
	if e.cfg.Checksum == ChecksumInline {
		h.PayloadChecksum = xxhash.Sum64(payload)
	}

	frag := make([]byte, HeaderSize+len(payload))
	h.marshal(frag[:HeaderSize])
	copy(frag[HeaderSize:], payload)

	return frag
}

func (h header) marshal(b []byte) {
	le := binary.LittleEndian
	le.PutUint32(b[0:], headerMagic)
	b[4] = headerVersion
	b[5] = h.Algorithm
	b[6] = h.Checksum
	b[7] = 0
	le.PutUint32(b[8:], uint32(h.Index))
	le.PutUint32(b[12:], uint32(h.DataFragments))
	le.PutUint32(b[16:], uint32(h.ParityFragments))
	le.PutUint32(b[20:], uint32(h.PayloadSize))
	le.PutUint64(b[24:], uint64(h.OriginalSize))
	le.PutUint64(b[32:], h.PayloadChecksum)
	copy(b[40:headerChecksumOff], h.Signature[:])
	le.PutUint64(b[headerChecksumOff:], xxhash.Sum64(b[:headerChecksumOff]))
}

// parseHeader decodes and validates the header of frag. It does not check the
// payload checksum.
func parseHeader(frag []byte) (header, error) {
	var h header
	if len(frag) < HeaderSize {
		return h, fmt.Errorf("%w: %d bytes is shorter than the header", ErrInvalidFragment, len(frag))
	}

	le := binary.LittleEndian
	if le.Uint32(frag[0:]) != headerMagic {
		return h, fmt.Errorf("%w: bad magic", ErrInvalidFragment)
	}
	if frag[4] != headerVersion {
		return h, fmt.Errorf("%w: unsupported header version %d", ErrInvalidFragment, frag[4])
	}
	if le.Uint64(frag[headerChecksumOff:]) != xxhash.Sum64(frag[:headerChecksumOff]) {
		return h, fmt.Errorf("%w: header checksum mismatch", ErrInvalidFragment)
	}

	h.Algorithm = frag[5]
	h.Checksum = frag[6]
	h.Index = int(le.Uint32(frag[8:]))
	h.DataFragments = int(le.Uint32(frag[12:]))
	h.ParityFragments = int(le.Uint32(frag[16:]))
	h.PayloadSize = int(le.Uint32(frag[20:]))
	h.OriginalSize = int64(le.Uint64(frag[24:]))
	h.PayloadChecksum = le.Uint64(frag[32:])
	copy(h.Signature[:], frag[40:headerChecksumOff])

	if len(frag)-HeaderSize != h.PayloadSize {
		return h, fmt.Errorf("%w: payload is %d bytes, header says %d", ErrFragmentSizeMismatch, len(frag)-HeaderSize, h.PayloadSize)
	}

	return h, nil
}

// checkFragment parses frag and verifies it was produced under this engine's
// configuration and, for inline checksums, that the payload is intact.
func (e *Engine) checkFragment(frag []byte) (header, error) {
	h, err := parseHeader(frag)
	if err != nil {
		return h, err
	}

	if h.Algorithm != algorithmCodes[e.cfg.Algorithm] || h.Checksum != checksumCodes[e.cfg.Checksum] ||
		h.DataFragments != e.cfg.DataFragments || h.ParityFragments != e.cfg.ParityFragments {
		return h, fmt.Errorf("%w: fragment was encoded with a different configuration", ErrInvalidFragment)
	}
	if h.Index < 0 || h.Index >= e.cfg.TotalFragments() {
		return h, fmt.Errorf("%w: %d", ErrInvalidIndex, h.Index)
	}
	if !h.payloadIntact(frag) {
		return h, fmt.Errorf("%w: payload checksum mismatch at index %d", ErrInvalidFragment, h.Index)
	}

	return h, nil
}

func (h header) payloadIntact(frag []byte) bool {
	if h.Checksum != checksumCodes[ChecksumInline] {
		return true
	}

	return xxhash.Sum64(frag[HeaderSize:]) == h.PayloadChecksum
}

func algorithmName(code uint8) Algorithm {
	for a, c := range algorithmCodes {
		if c == code {
			return a
		}
	}

	return ""
}

func checksumName(code uint8) ChecksumType {
	for t, c := range checksumCodes {
		if c == code {
			return t
		}
	}

	return ""
}
