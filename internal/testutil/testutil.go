// Package testutil provides testing utilities and mock implementations
// for NebulaEC unit tests.
//
// This package centralizes common testing infrastructure to:
// - Generate reproducible and random input buffers
// - Drop fragments the way failed storage nodes would
// - Standardize on testify assertions
// - Provide a thread-safe mock driver with error injection
//
// Usage:
//
//	import (
//		"github.com/piwi3910/nebulaec/internal/testutil"
//		"github.com/piwi3910/nebulaec/internal/testutil/mocks"
//		"github.com/stretchr/testify/require"
//	)
//
//	func TestSomething(t *testing.T) {
//		data := testutil.RandomBytes(t, 1000)
//		survivors := testutil.DropFragments(fragments, 1, 4)
//		d := mocks.NewMockDriver(4)
//		d.SetDecodeError(someError)
//		...
//	}
package testutil

import (
	cryptorand "crypto/rand"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/require"
)

// RandomBytes returns n cryptographically random bytes.
func RandomBytes(t testing.TB, n int) []byte {
	t.Helper()

	b := make([]byte, n)
	_, err := cryptorand.Read(b)
	require.NoError(t, err)

	return b
}

// SeededBytes returns n pseudo-random bytes that are identical for equal seeds.
func SeededBytes(seed uint64, n int) []byte {
	r := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))

	b := make([]byte, n)
	for i := range b {
		b[i] = byte(r.Uint32())
	}

	return b
}
