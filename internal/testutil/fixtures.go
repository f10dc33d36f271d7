package testutil

import (
	"slices"

	"github.com/piwi3910/nebulaec/internal/erasure/driver"
	"github.com/piwi3910/nebulaec/internal/erasure/engine"
)

// Test fixture constants.
const (
	// DefaultTestDataFragments is the default k for tests.
	DefaultTestDataFragments = 4
	// DefaultTestParityFragments is the default m for tests.
	DefaultTestParityFragments = 2
)

// NewTestConfig returns an erasure driver configuration with test defaults.
func NewTestConfig() driver.Config {
	return driver.Config{
		Type:            driver.TypeErasure,
		DataFragments:   DefaultTestDataFragments,
		ParityFragments: DefaultTestParityFragments,
		Algorithm:       engine.AlgorithmRSVand,
		Checksum:        engine.ChecksumInline,
	}
}

// DropFragments returns the fragments that survive when the given indices are
// lost, preserving order.
func DropFragments(fragments [][]byte, drop ...int) [][]byte {
	survivors := make([][]byte, 0, len(fragments))
	for i, frag := range fragments {
		if !slices.Contains(drop, i) {
			survivors = append(survivors, frag)
		}
	}

	return survivors
}

// NilFragments returns a copy of fragments with the given indices set to nil,
// keeping every fragment in its slot.
func NilFragments(fragments [][]byte, drop ...int) [][]byte {
	out := slices.Clone(fragments)
	for _, i := range drop {
		out[i] = nil
	}

	return out
}

// Subsets returns every subset of size n of the indices [0, total), in
// lexicographic order.
func Subsets(total, n int) [][]int {
	var (
		out [][]int
		cur []int
	)

	var walk func(start int)
	walk = func(start int) {
		if len(cur) == n {
			out = append(out, slices.Clone(cur))
			return
		}
		for i := start; i < total; i++ {
			cur = append(cur, i)
			walk(i + 1)
			cur = cur[:len(cur)-1]
		}
	}
	walk(0)

	return out
}
