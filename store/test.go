package store

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/outofforest/replica/slab"
)

// TestConfig is the store configuration used in tests.
var TestConfig = Config{
	Slab:          slab.TestConfig,
	IndexCapacity: 16,
}

// NewForTest creates store released when test finishes.
func NewForTest(t testing.TB, config Config) *Store {
	s, err := New(config)
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s
}
