package index

import (
	"iter"
	"math/bits"

	"github.com/outofforest/replica/types"
)

const (
	minCapacity = 16

	// Table grows when it becomes loaded more than loadNumerator/loadDenominator.
	loadNumerator   = 3
	loadDenominator = 4
)

type entry struct {
	Hash    types.KeyHash
	Pointer types.Pointer
}

// New creates new hash index able to keep at least capacity entries without resizing.
func New(capacity uint64) *Index {
	size := uint64(minCapacity)
	if required := capacity * loadDenominator / loadNumerator; required > size {
		size = 1 << bits.Len64(required-1)
	}

	return &Index{
		entries: newEntries(size),
		mask:    size - 1,
	}
}

// Index maps key hashes to slab pointers using open addressing with linear probing.
type Index struct {
	entries []entry
	mask    uint64
	count   uint64
}

// Put stores pointer under the hash, replacing the existing one.
func (i *Index) Put(hash types.KeyHash, pointer types.Pointer) {
	if (i.count+1)*loadDenominator > uint64(len(i.entries))*loadNumerator {
		i.resize(uint64(len(i.entries)) * 2)
	}

	slot := i.find(hash)
	if i.entries[slot].Pointer == types.NullPointer {
		i.count++
	}
	i.entries[slot] = entry{Hash: hash, Pointer: pointer}
}

// Get returns the pointer stored under the hash.
func (i *Index) Get(hash types.KeyHash) (types.Pointer, bool) {
	e := i.entries[i.find(hash)]
	return e.Pointer, e.Pointer != types.NullPointer
}

// Remove deletes the hash and returns the pointer stored under it.
func (i *Index) Remove(hash types.KeyHash) (types.Pointer, bool) {
	slot := i.find(hash)
	previous := i.entries[slot].Pointer
	if previous == types.NullPointer {
		return types.NullPointer, false
	}

	// Entries following the removed one are shifted back so probe sequences stay unbroken.
	for next := (slot + 1) & i.mask; i.entries[next].Pointer != types.NullPointer; next = (next + 1) & i.mask {
		e := i.entries[next]
		if (next-i.home(e.Hash))&i.mask >= (next-slot)&i.mask {
			i.entries[slot] = e
			slot = next
		}
	}

	i.entries[slot] = entry{Pointer: types.NullPointer}
	i.count--
	return previous, true
}

// Len returns the number of entries.
func (i *Index) Len() uint64 {
	return i.count
}

// Capacity returns the number of slots in the table.
func (i *Index) Capacity() uint64 {
	return uint64(len(i.entries))
}

// Iterator iterates over entries in unspecified order.
func (i *Index) Iterator() iter.Seq2[types.KeyHash, types.Pointer] {
	return func(yield func(types.KeyHash, types.Pointer) bool) {
		for _, e := range i.entries {
			if e.Pointer == types.NullPointer {
				continue
			}
			if !yield(e.Hash, e.Pointer) {
				return
			}
		}
	}
}

// find returns the slot keeping the hash or the empty slot where it should be inserted.
func (i *Index) find(hash types.KeyHash) uint64 {
	slot := i.home(hash)
	for {
		e := i.entries[slot]
		if e.Pointer == types.NullPointer || e.Hash == hash {
			return slot
		}
		slot = (slot + 1) & i.mask
	}
}

func (i *Index) home(hash types.KeyHash) uint64 {
	return uint64(uint32(hash)) & i.mask
}

func (i *Index) resize(size uint64) {
	entries := i.entries
	i.entries = newEntries(size)
	i.mask = size - 1
	for _, e := range entries {
		if e.Pointer != types.NullPointer {
			i.entries[i.find(e.Hash)] = e
		}
	}
}

func newEntries(size uint64) []entry {
	entries := make([]entry, size)
	for j := range entries {
		entries[j].Pointer = types.NullPointer
	}
	return entries
}
