package types

import "math"

const (
	// UInt64Length is the number of bytes taken by uint64.
	UInt64Length = 8

	// FormatVersion is the format tag written at the beginning of every header blob.
	FormatVersion int32 = 2000
)

type (
	// Version identifies a fully consistent state of the record set.
	Version int64

	// KeyHash is the type for key hash.
	KeyHash int32

	// Pointer is the opaque location of a record stored in the slab arena.
	Pointer uint64

	// Tag is the randomized identifier of a producer cycle used to detect mismatched blob chains.
	Tag int64

	// ClassID identifies a size class of the slab arena.
	ClassID uint8

	// PageID identifies a page within a size class.
	PageID uint32

	// ChunkID identifies a chunk within a page.
	ChunkID uint32
)

const (
	// VersionNull means there is no version.
	VersionNull Version = -1

	// VersionLatest requests the latest available version.
	VersionLatest Version = math.MaxInt64

	// NullPointer means there is no record.
	NullPointer Pointer = math.MaxUint64

	// NullTag is the tag of the state preceding the first producer cycle.
	NullTag Tag = 0
)

// ChangeType defines the kind of change applied to a record.
type ChangeType uint8

// Change types.
const (
	ChangePut ChangeType = iota + 1
	ChangeRemove
)

// Registration maps class name to its numeric identifier.
type Registration struct {
	Name string
	ID   int32
}

// HashLength is the number of bytes taken by digest.
const HashLength = 32

// Hash represents digest of a published artifact.
type Hash [HashLength]byte
