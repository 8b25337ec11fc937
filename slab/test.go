package slab

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// TestConfig is the arena configuration with small pages used in tests.
var TestConfig = Config{
	MinChunkSize:     32,
	MaxChunkSize:     4096,
	PageSize:         4096,
	MinChunksPerPage: 4,
}

// NewForTest creates arena released when test finishes.
func NewForTest(t testing.TB, config Config) *Arena {
	a, err := New(config)
	require.NoError(t, err)
	t.Cleanup(a.Close)
	return a
}
