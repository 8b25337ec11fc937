package index

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/require"

	"github.com/outofforest/replica/types"
)

func TestPutGetRemove(t *testing.T) {
	requireT := require.New(t)

	i := New(0)
	_, exists := i.Get(1)
	requireT.False(exists)

	i.Put(1, 10)
	i.Put(-1, 20)
	requireT.EqualValues(2, i.Len())

	p, exists := i.Get(1)
	requireT.True(exists)
	requireT.Equal(types.Pointer(10), p)

	p, exists = i.Get(-1)
	requireT.True(exists)
	requireT.Equal(types.Pointer(20), p)

	p, exists = i.Remove(1)
	requireT.True(exists)
	requireT.Equal(types.Pointer(10), p)
	requireT.EqualValues(1, i.Len())

	_, exists = i.Remove(1)
	requireT.False(exists)
}

func TestPutOverwrites(t *testing.T) {
	requireT := require.New(t)

	i := New(0)
	i.Put(5, 1)
	i.Put(5, 2)

	requireT.EqualValues(1, i.Len())
	p, exists := i.Get(5)
	requireT.True(exists)
	requireT.Equal(types.Pointer(2), p)
}

func TestRemoveKeepsProbeChain(t *testing.T) {
	requireT := require.New(t)

	i := New(0)
	requireT.EqualValues(minCapacity, i.Capacity())

	// All these hashes start probing in the same slot.
	hashes := []types.KeyHash{3, 3 + minCapacity, 3 + 2*minCapacity, 4, 3 + 3*minCapacity}
	for j, h := range hashes {
		i.Put(h, types.Pointer(j))
	}

	_, exists := i.Remove(3 + minCapacity)
	requireT.True(exists)

	for j, h := range hashes {
		p, exists := i.Get(h)
		if h == 3+minCapacity {
			requireT.False(exists)
			continue
		}
		requireT.True(exists)
		requireT.Equal(types.Pointer(j), p)
	}
}

func TestWrapAround(t *testing.T) {
	requireT := require.New(t)

	i := New(0)
	hashes := []types.KeyHash{minCapacity - 1, 2*minCapacity - 1, 0, 3*minCapacity - 1}
	for j, h := range hashes {
		i.Put(h, types.Pointer(j))
	}

	_, exists := i.Remove(minCapacity - 1)
	requireT.True(exists)

	for j, h := range hashes[1:] {
		p, exists := i.Get(h)
		requireT.True(exists)
		requireT.Equal(types.Pointer(j+1), p)
	}
}

func TestResizePreservesEntries(t *testing.T) {
	requireT := require.New(t)

	i := New(0)
	for j := range 1000 {
		i.Put(types.KeyHash(j*7919), types.Pointer(j))
	}
	requireT.EqualValues(1000, i.Len())
	requireT.Greater(i.Capacity(), uint64(1000))

	for j := range 1000 {
		p, exists := i.Get(types.KeyHash(j * 7919))
		requireT.True(exists)
		requireT.Equal(types.Pointer(j), p)
	}

	collected := map[types.KeyHash]types.Pointer{}
	for h, p := range i.Iterator() {
		collected[h] = p
	}
	requireT.Len(collected, 1000)
}

func TestNewReservesCapacity(t *testing.T) {
	requireT := require.New(t)

	i := New(100)
	capacity := i.Capacity()
	for j := range 100 {
		i.Put(types.KeyHash(j), types.Pointer(j))
	}
	requireT.Equal(capacity, i.Capacity())
}

func TestBehavesLikeMap(t *testing.T) {
	properties := gopter.NewProperties(gopter.DefaultTestParameters())

	properties.Property("index matches map", prop.ForAll(
		func(ops []int16) bool {
			i := New(0)
			m := map[types.KeyHash]types.Pointer{}

			for j, op := range ops {
				// Narrow key space forces collisions and removals of existing entries.
				h := types.KeyHash(op / 4 % 64)
				if op%2 == 0 {
					i.Put(h, types.Pointer(j))
					m[h] = types.Pointer(j)
					continue
				}
				p, exists := i.Remove(h)
				mp, mExists := m[h]
				if exists != mExists || (exists && p != mp) {
					return false
				}
				delete(m, h)
			}

			if i.Len() != uint64(len(m)) {
				return false
			}
			for h, mp := range m {
				if p, exists := i.Get(h); !exists || p != mp {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.Int16()),
	))

	properties.TestingRun(t)
}
