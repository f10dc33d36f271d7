package engine

import (
	"fmt"
	"slices"

	"github.com/fxamacker/cbor/v2"
)

// FragmentMetadata is the decoded form of the blob returned by Metadata.
type FragmentMetadata struct {
	Index            int          `cbor:"1,keyasint"`
	PayloadSize      int          `cbor:"2,keyasint"`
	OriginalSize     int64        `cbor:"3,keyasint"`
	DataFragments    int          `cbor:"4,keyasint"`
	ParityFragments  int          `cbor:"5,keyasint"`
	Algorithm        Algorithm    `cbor:"6,keyasint"`
	Checksum         ChecksumType `cbor:"7,keyasint"`
	PayloadChecksum  uint64       `cbor:"8,keyasint,omitempty"`
	Signature        []byte       `cbor:"9,keyasint,omitempty"`
	ChecksumMismatch bool         `cbor:"10,keyasint,omitempty"`
}

var metadataEncMode = func() cbor.EncMode {
	em, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
	return em
}()

// DecodeMetadata parses a blob produced by Metadata.
func DecodeMetadata(blob []byte) (*FragmentMetadata, error) {
	var md FragmentMetadata
	if err := cbor.Unmarshal(blob, &md); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidMetadata, err)
	}

	return &md, nil
}

// Metadata returns the CBOR-encoded header of frag. A corrupt inline payload
// does not fail the call; it is reported through ChecksumMismatch.
func (e *Engine) Metadata(frag []byte) ([]byte, error) {
	if err := e.acquire(); err != nil {
		return nil, err
	}
	defer e.mu.Unlock()

	h, err := parseHeader(frag)
	if err != nil {
		return nil, err
	}

	md := FragmentMetadata{
		Index:            h.Index,
		PayloadSize:      h.PayloadSize,
		OriginalSize:     h.OriginalSize,
		DataFragments:    h.DataFragments,
		ParityFragments:  h.ParityFragments,
		Algorithm:        algorithmName(h.Algorithm),
		Checksum:         checksumName(h.Checksum),
		PayloadChecksum:  h.PayloadChecksum,
		ChecksumMismatch: !h.payloadIntact(frag),
	}
	if h.Signature != ([signatureSize]byte{}) {
		md.Signature = h.Signature[:]
	}

	blob, err := metadataEncMode.Marshal(md)
	if err != nil {
		return nil, fmt.Errorf("failed to encode fragment metadata: %w", err)
	}

	return blob, nil
}

// CheckMetadata reports whether every blob describes a fragment of the same
// encode call under this engine's configuration.
func (e *Engine) CheckMetadata(blobs [][]byte) (bool, error) {
	if err := e.acquire(); err != nil {
		return false, err
	}
	defer e.mu.Unlock()

	if len(blobs) == 0 {
		return false, fmt.Errorf("%w: no metadata supplied", ErrInvalidMetadata)
	}

	seen := make(map[int]struct{}, len(blobs))

	var first *FragmentMetadata
	for _, blob := range blobs {
		md, err := DecodeMetadata(blob)
		if err != nil {
			return false, err
		}

		if md.ChecksumMismatch || !e.ownsMetadata(md) {
			return false, nil
		}
		if _, dup := seen[md.Index]; dup {
			return false, nil
		}
		seen[md.Index] = struct{}{}

		if first == nil {
			first = md
			continue
		}
		if md.OriginalSize != first.OriginalSize || md.PayloadSize != first.PayloadSize ||
			!slices.Equal(md.Signature, first.Signature) {
			return false, nil
		}
	}

	return true, nil
}

func (e *Engine) ownsMetadata(md *FragmentMetadata) bool {
	return md.DataFragments == e.cfg.DataFragments &&
		md.ParityFragments == e.cfg.ParityFragments &&
		md.Algorithm == e.cfg.Algorithm &&
		md.Checksum == e.cfg.Checksum &&
		md.Index >= 0 && md.Index < e.cfg.TotalFragments()
}

// RequiredFragments returns the indices that must be fetched to decode when
// the given indices are missing: the first k surviving indices, data first.
func (e *Engine) RequiredFragments(missing []int) ([]int, error) {
	if err := e.acquire(); err != nil {
		return nil, err
	}
	defer e.mu.Unlock()

	total := e.cfg.TotalFragments()
	for _, idx := range missing {
		if idx < 0 || idx >= total {
			return nil, fmt.Errorf("%w: %d", ErrInvalidIndex, idx)
		}
	}

	k := e.cfg.DataFragments
	required := make([]int, 0, k)
	for i := 0; i < total && len(required) < k; i++ {
		if !slices.Contains(missing, i) {
			required = append(required, i)
		}
	}

	if len(required) < k {
		return nil, fmt.Errorf("%w: need %d, only %d survive", ErrInsufficientFragments, k, len(required))
	}

	return required, nil
}

// SegmentInfo describes how an object is split into independently encoded
// segments and how large the resulting fragments are.
type SegmentInfo struct {
	SegmentSize      int `json:"segment_size"`
	LastSegmentSize  int `json:"last_segment_size"`
	FragmentSize     int `json:"fragment_size"`
	LastFragmentSize int `json:"last_fragment_size"`
	NumSegments      int `json:"num_segments"`
}

// PlanSegments computes segment boundaries for dataLen bytes. A trailing
// segment shorter than minSegment is folded into the one before it.
func PlanSegments(dataLen, segmentSize, minSegment int) (SegmentInfo, error) {
	if dataLen < 0 || segmentSize <= 0 {
		return SegmentInfo{}, fmt.Errorf("%w: data length %d, segment size %d", ErrInvalidSegmentArgument, dataLen, segmentSize)
	}

	if dataLen <= segmentSize {
		return SegmentInfo{SegmentSize: dataLen, LastSegmentSize: dataLen, NumSegments: 1}, nil
	}

	num := (dataLen + segmentSize - 1) / segmentSize
	last := dataLen - (num-1)*segmentSize
	if last < minSegment {
		num--
		last += segmentSize
	}

	return SegmentInfo{SegmentSize: segmentSize, LastSegmentSize: last, NumSegments: num}, nil
}

// SegmentInfo returns the segment plan for dataLen bytes with fragment sizes
// including the header.
func (e *Engine) SegmentInfo(dataLen, segmentSize int) (SegmentInfo, error) {
	if err := e.acquire(); err != nil {
		return SegmentInfo{}, err
	}
	defer e.mu.Unlock()

	info, err := PlanSegments(dataLen, segmentSize, e.cfg.DataFragments)
	if err != nil {
		return info, err
	}

	payload, lastPayload := e.payloadSize(info.SegmentSize), e.payloadSize(info.LastSegmentSize)
	if err := checkPayloadSize(max(payload, lastPayload)); err != nil {
		return SegmentInfo{}, err
	}

	info.FragmentSize = HeaderSize + payload
	info.LastFragmentSize = HeaderSize + lastPayload

	return info, nil
}
