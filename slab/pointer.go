package slab

import "github.com/outofforest/replica/types"

const (
	chunkBits    = 28
	pageBits     = 28
	classBits    = 7
	reservedBits = 1

	pageShift  = chunkBits
	classShift = chunkBits + pageBits

	chunkMask = 1<<chunkBits - 1
	pageMask  = 1<<pageBits - 1
	classMask = 1<<classBits - 1

	// MaxClasses is the maximum number of size classes addressable by pointer.
	MaxClasses = 1 << classBits

	// MaxPages is the maximum number of pages in a size class.
	MaxPages = 1 << pageBits

	// MaxChunksPerPage is the maximum number of chunks in a page.
	MaxChunksPerPage = 1 << chunkBits
)

// Bit fields must cover exactly 64 bits. The top bit stays zero so valid pointer never equals types.NullPointer.
var _ [0]struct{} = [64 - chunkBits - pageBits - classBits - reservedBits]struct{}{}

// Location is the decoded form of the pointer.
type Location struct {
	Class types.ClassID
	Page  types.PageID
	Chunk types.ChunkID
}

// Encode packs location into the pointer.
func Encode(l Location) types.Pointer {
	return types.Pointer(uint64(l.Class)&classMask)<<classShift |
		types.Pointer(uint64(l.Page)&pageMask)<<pageShift |
		types.Pointer(uint64(l.Chunk)&chunkMask)
}

// Decode unpacks location from the pointer.
func Decode(p types.Pointer) Location {
	return Location{
		Class: types.ClassID(p >> classShift & classMask),
		Page:  types.PageID(p >> pageShift & pageMask),
		Chunk: types.ChunkID(p & chunkMask),
	}
}
