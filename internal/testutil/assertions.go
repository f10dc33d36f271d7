package testutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// AssertFragmentsEqual asserts that two fragment sets are bit-identical.
func AssertFragmentsEqual(t *testing.T, expected, actual [][]byte) {
	t.Helper()
	require.Len(t, actual, len(expected), "fragment counts should match")

	for i := range expected {
		assert.Equal(t, expected[i], actual[i], "fragment %d should match", i)
	}
}

// AssertTotalLength asserts that the fragment lengths sum to n.
func AssertTotalLength(t *testing.T, fragments [][]byte, n int) {
	t.Helper()

	total := 0
	for _, frag := range fragments {
		total += len(frag)
	}

	assert.Equal(t, n, total, "fragment lengths should sum to the input length")
}
