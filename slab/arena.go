package slab

import (
	"math/bits"
	"unsafe"

	"github.com/pkg/errors"

	"github.com/outofforest/photon"
	"github.com/outofforest/replica/types"
)

// ErrPayloadTooLarge is returned if payload does not fit into any size class.
var ErrPayloadTooLarge = errors.New("payload too large")

// Config stores configuration of the slab arena.
type Config struct {
	MinChunkSize     uint64 `yaml:"minChunkSize" validate:"required,pow2"`
	MaxChunkSize     uint64 `yaml:"maxChunkSize" validate:"required,pow2,gtefield=MinChunkSize"`
	PageSize         uint64 `yaml:"pageSize" validate:"required,pow2"`
	MinChunksPerPage uint64 `yaml:"minChunksPerPage" validate:"required,pow2"`
	UseHugePages     bool   `yaml:"useHugePages"`
}

// DefaultConfig is the default arena configuration.
var DefaultConfig = Config{
	MinChunkSize:     32,
	MaxChunkSize:     4 * 1024 * 1024,
	PageSize:         64 * 1024,
	MinChunksPerPage: 128,
}

type chunkHeader struct {
	Length uint32
}

const chunkHeaderSize = uint64(unsafe.Sizeof(chunkHeader{}))

// New creates new slab arena.
func New(config Config) (*Arena, error) {
	for _, v := range []uint64{config.MinChunkSize, config.MaxChunkSize, config.PageSize, config.MinChunksPerPage} {
		if bits.OnesCount64(v) != 1 {
			return nil, errors.Errorf("arena parameter %d is not a power of two", v)
		}
	}
	if config.MinChunkSize <= chunkHeaderSize {
		return nil, errors.Errorf("minimum chunk size must be greater than %d", chunkHeaderSize)
	}
	if config.MaxChunkSize < config.MinChunkSize {
		return nil, errors.New("maximum chunk size is smaller than minimum one")
	}
	if config.MaxChunkSize-chunkHeaderSize > uint64(^uint32(0)) {
		return nil, errors.New("maximum chunk size exceeds length header capacity")
	}

	minShift := bits.TrailingZeros64(config.MinChunkSize)
	numOfClasses := bits.TrailingZeros64(config.MaxChunkSize) - minShift + 1
	if numOfClasses > MaxClasses {
		return nil, errors.Errorf("too many size classes: %d", numOfClasses)
	}

	a := &Arena{
		minShift: uint8(minShift),
		pools:    make([]*Pool, 0, numOfClasses),
	}
	for i := range numOfClasses {
		chunkSize := config.MinChunkSize << i
		pool, err := NewPool(types.ClassID(i), chunkSize,
			max(config.PageSize/chunkSize, config.MinChunksPerPage), config.UseHugePages)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.pools = append(a.pools, pool)
	}

	return a, nil
}

// Arena routes payloads to the smallest size class they fit in.
// It is not safe for concurrent use.
type Arena struct {
	minShift       uint8
	pools          []*Pool
	allocatedBytes uint64
}

// Fits returns true if payload of the size might be stored in the arena.
func (a *Arena) Fits(size uint64) bool {
	return size <= a.MaxPayloadSize()
}

// MaxPayloadSize returns the size of the largest payload the arena accepts.
func (a *Arena) MaxPayloadSize() uint64 {
	return a.pools[len(a.pools)-1].ChunkSize() - chunkHeaderSize
}

// Reserve allocates chunk for the payload of the size and returns the bytes to fill.
func (a *Arena) Reserve(size uint64) (types.Pointer, []byte, error) {
	if !a.Fits(size) {
		return types.NullPointer, nil, errors.Wrapf(ErrPayloadTooLarge, "payload size: %d, max: %d", size,
			a.MaxPayloadSize())
	}

	pool := a.pools[a.class(size+chunkHeaderSize)]
	ptr, err := pool.Allocate()
	if err != nil {
		return types.NullPointer, nil, err
	}
	a.allocatedBytes += pool.ChunkSize()

	chunk := pool.Chunk(ptr)
	photon.FromBytes[chunkHeader](chunk).Length = uint32(size)

	return ptr, chunk[chunkHeaderSize : chunkHeaderSize+size], nil
}

// Allocate stores copy of the payload.
func (a *Arena) Allocate(payload []byte) (types.Pointer, error) {
	ptr, data, err := a.Reserve(uint64(len(payload)))
	if err != nil {
		return types.NullPointer, err
	}
	copy(data, payload)
	return ptr, nil
}

// Get returns the payload stored under the pointer.
// Returned slice is valid until the pointer is freed.
func (a *Arena) Get(ptr types.Pointer) []byte {
	chunk := a.pools[Decode(ptr).Class].Chunk(ptr)
	length := uint64(photon.FromBytes[chunkHeader](chunk).Length)
	return chunk[chunkHeaderSize : chunkHeaderSize+length : chunkHeaderSize+length]
}

// Free releases the chunk.
func (a *Arena) Free(ptr types.Pointer) {
	pool := a.pools[Decode(ptr).Class]
	pool.Free(ptr)
	a.allocatedBytes -= pool.ChunkSize()
}

// ClassStats stores stats of one size class.
type ClassStats struct {
	Class           types.ClassID
	ChunkSize       uint64
	ChunksPerPage   uint64
	Pages           uint64
	AllocatedChunks uint64
}

// Stats returns stats of all the size classes.
func (a *Arena) Stats() []ClassStats {
	stats := make([]ClassStats, 0, len(a.pools))
	for i, p := range a.pools {
		stats = append(stats, ClassStats{
			Class:           types.ClassID(i),
			ChunkSize:       p.ChunkSize(),
			ChunksPerPage:   p.ChunksPerPage(),
			Pages:           p.Pages(),
			AllocatedChunks: p.Allocated(),
		})
	}
	return stats
}

// Pool returns pool of the size class.
func (a *Arena) Pool(class types.ClassID) *Pool {
	return a.pools[class]
}

// AllocatedBytes returns the number of bytes taken by allocated chunks.
func (a *Arena) AllocatedBytes() uint64 {
	return a.allocatedBytes
}

// ReservedBytes returns the number of bytes taken by all the pages.
func (a *Arena) ReservedBytes() uint64 {
	var reserved uint64
	for _, p := range a.pools {
		reserved += p.Pages() * p.ChunksPerPage() * p.ChunkSize()
	}
	return reserved
}

// Close releases the memory.
func (a *Arena) Close() {
	for _, p := range a.pools {
		p.Close()
	}
}

func (a *Arena) class(size uint64) types.ClassID {
	if size <= 1<<a.minShift {
		return 0
	}
	return types.ClassID(bits.Len64(size-1) - int(a.minShift))
}
