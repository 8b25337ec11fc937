package slab

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/outofforest/replica/types"
)

func newPool(t *testing.T, chunkSize, chunksPerPage uint64) *Pool {
	p, err := NewPool(3, chunkSize, chunksPerPage, false)
	require.NoError(t, err)
	t.Cleanup(p.Close)
	return p
}

func TestPoolStartsWithoutPages(t *testing.T) {
	requireT := require.New(t)

	p := newPool(t, 64, 4)
	requireT.EqualValues(0, p.Pages())
	requireT.Empty(p.Utilization())
}

func TestPoolServesChunksInOrder(t *testing.T) {
	requireT := require.New(t)

	p := newPool(t, 64, 4)
	for i := range 6 {
		ptr, err := p.Allocate()
		requireT.NoError(err)
		requireT.Equal(Location{
			Class: 3,
			Page:  types.PageID(i / 4),
			Chunk: types.ChunkID(i % 4),
		}, Decode(ptr))
	}
	requireT.EqualValues(2, p.Pages())
	requireT.Equal([]float64{1, 0.5}, p.Utilization())
	requireT.EqualValues(6, p.Allocated())
}

func TestPoolReusesFreedChunk(t *testing.T) {
	requireT := require.New(t)

	p := newPool(t, 64, 4)
	ptr1, err := p.Allocate()
	requireT.NoError(err)
	ptr2, err := p.Allocate()
	requireT.NoError(err)

	p.Free(ptr1)
	requireT.Equal([]float64{0.25}, p.Utilization())

	ptr3, err := p.Allocate()
	requireT.NoError(err)
	requireT.Equal(ptr1, ptr3)
	requireT.NotEqual(ptr2, ptr3)
	requireT.EqualValues(1, p.Pages())
}

func TestPoolChunksDoNotOverlap(t *testing.T) {
	requireT := require.New(t)

	p := newPool(t, 32, 8)
	ptrs := make([]types.Pointer, 0, 8)
	for i := range 8 {
		ptr, err := p.Allocate()
		requireT.NoError(err)
		chunk := p.Chunk(ptr)
		requireT.Len(chunk, 32)
		for j := range chunk {
			chunk[j] = byte(i)
		}
		ptrs = append(ptrs, ptr)
	}

	for i, ptr := range ptrs {
		for _, b := range p.Chunk(ptr) {
			requireT.Equal(byte(i), b)
		}
	}
}

func TestPoolRejectsInvalidGeometry(t *testing.T) {
	requireT := require.New(t)

	_, err := NewPool(0, 48, 4, false)
	requireT.Error(err)

	_, err = NewPool(0, 64, 3, false)
	requireT.Error(err)
}
