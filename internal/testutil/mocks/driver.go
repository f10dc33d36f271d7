// Package mocks provides thread-safe mock implementations for tests.
package mocks

import (
	"bytes"
	"context"
	"sync"

	"github.com/piwi3910/nebulaec/internal/erasure/driver"
)

// MockDriver implements driver.Driver for testing. It stripes data like the
// striping driver and supports error injection and call counting.
type MockDriver struct {
	mu sync.Mutex

	k int

	// Call counts
	encodeCalls int
	decodeCalls int
	closeCalls  int

	// Error injection
	encodeErr error
	decodeErr error
	closeErr  error
}

// NewMockDriver creates a MockDriver with k fragments.
func NewMockDriver(k int) *MockDriver {
	return &MockDriver{k: k}
}

// SetEncodeError sets the error to return on Encode calls.
func (m *MockDriver) SetEncodeError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.encodeErr = err
}

// SetDecodeError sets the error to return on Decode calls.
func (m *MockDriver) SetDecodeError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.decodeErr = err
}

// SetCloseError sets the error to return on Close calls.
func (m *MockDriver) SetCloseError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closeErr = err
}

// EncodeCalls returns how many times Encode was called.
func (m *MockDriver) EncodeCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.encodeCalls
}

// DecodeCalls returns how many times Decode was called.
func (m *MockDriver) DecodeCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.decodeCalls
}

// CloseCalls returns how many times Close was called.
func (m *MockDriver) CloseCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closeCalls
}

// Encode splits data into k equal-or-shorter pieces.
func (m *MockDriver) Encode(data []byte) ([][]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.encodeCalls++
	if m.encodeErr != nil {
		return nil, m.encodeErr
	}

	size := (len(data) + m.k - 1) / m.k
	out := make([][]byte, m.k)
	for i := range m.k {
		start := min(i*size, len(data))
		end := min(start+size, len(data))
		out[i] = bytes.Clone(data[start:end])
	}

	return out, nil
}

// Decode concatenates the fragments.
func (m *MockDriver) Decode(fragments [][]byte) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.decodeCalls++
	if m.decodeErr != nil {
		return nil, m.decodeErr
	}

	out := make([]byte, 0)
	for _, frag := range fragments {
		out = append(out, frag...)
	}

	return out, nil
}

// Reconstruct returns the requested fragments from the supplied set.
func (m *MockDriver) Reconstruct(_ context.Context, fragments [][]byte, indexes []int) ([][]byte, error) {
	out := make([][]byte, 0, len(indexes))
	for _, idx := range indexes {
		if idx < 0 || idx >= len(fragments) {
			return nil, driver.ErrReconstructionImpossible
		}
		out = append(out, fragments[idx])
	}

	return out, nil
}

// FragmentsNeeded returns missing unchanged.
func (m *MockDriver) FragmentsNeeded(missing []int) ([]int, error) {
	return missing, nil
}

// GetMetadata returns an empty blob.
func (m *MockDriver) GetMetadata([]byte) ([]byte, error) {
	return []byte{}, nil
}

// VerifyStripeMetadata always reports a consistent stripe.
func (m *MockDriver) VerifyStripeMetadata([][]byte) (bool, error) {
	return true, nil
}

// GetSegmentInfo returns a plan with segmentSize-sized segments.
func (m *MockDriver) GetSegmentInfo(dataLen, segmentSize int) (driver.SegmentInfo, error) {
	if dataLen <= segmentSize {
		return driver.SegmentInfo{SegmentSize: dataLen, LastSegmentSize: dataLen, NumSegments: 1}, nil
	}

	num := (dataLen + segmentSize - 1) / segmentSize

	return driver.SegmentInfo{
		SegmentSize:     segmentSize,
		LastSegmentSize: dataLen - (num-1)*segmentSize,
		NumSegments:     num,
	}, nil
}

// Close records the call.
func (m *MockDriver) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closeCalls++
	return m.closeErr
}

var _ driver.Driver = (*MockDriver)(nil)
