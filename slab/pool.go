package slab

import (
	"math/bits"

	"github.com/pkg/errors"

	"github.com/outofforest/replica/types"
)

// NewPool creates new size-class pool.
func NewPool(class types.ClassID, chunkSize, chunksPerPage uint64, useHugePages bool) (*Pool, error) {
	if bits.OnesCount64(chunkSize) != 1 {
		return nil, errors.Errorf("chunk size %d is not a power of two", chunkSize)
	}
	if bits.OnesCount64(chunksPerPage) != 1 || chunksPerPage > MaxChunksPerPage {
		return nil, errors.Errorf("invalid number of chunks per page: %d", chunksPerPage)
	}

	return &Pool{
		class:         class,
		chunkSize:     chunkSize,
		chunkShift:    uint8(bits.TrailingZeros64(chunkSize)),
		chunksPerPage: chunksPerPage,
		useHugePages:  useHugePages,
	}, nil
}

type page struct {
	data      []byte
	allocated uint64
	release   func()
}

// Pool allocates and deallocates chunks of one size.
type Pool struct {
	class         types.ClassID
	chunkSize     uint64
	chunkShift    uint8
	chunksPerPage uint64
	useHugePages  bool

	pages []page
	free  []types.Pointer
}

// Allocate allocates single chunk.
func (p *Pool) Allocate() (types.Pointer, error) {
	if len(p.free) == 0 {
		if err := p.addPage(); err != nil {
			return types.NullPointer, err
		}
	}

	ptr := p.free[len(p.free)-1]
	p.free = p.free[:len(p.free)-1]
	p.pages[Decode(ptr).Page].allocated++

	return ptr, nil
}

// Free returns chunk to the pool.
func (p *Pool) Free(ptr types.Pointer) {
	p.pages[Decode(ptr).Page].allocated--
	p.free = append(p.free, ptr)
}

// Chunk returns the bytes of the chunk.
func (p *Pool) Chunk(ptr types.Pointer) []byte {
	l := Decode(ptr)
	offset := uint64(l.Chunk) << p.chunkShift
	return p.pages[l.Page].data[offset : offset+p.chunkSize : offset+p.chunkSize]
}

// ChunkSize returns the size of chunks managed by the pool.
func (p *Pool) ChunkSize() uint64 {
	return p.chunkSize
}

// ChunksPerPage returns the number of chunks in each page.
func (p *Pool) ChunksPerPage() uint64 {
	return p.chunksPerPage
}

// Pages returns the number of pages allocated so far.
func (p *Pool) Pages() uint64 {
	return uint64(len(p.pages))
}

// Allocated returns the number of chunks in use.
func (p *Pool) Allocated() uint64 {
	var allocated uint64
	for _, pg := range p.pages {
		allocated += pg.allocated
	}
	return allocated
}

// Utilization returns the ratio of allocated chunks for each page.
func (p *Pool) Utilization() []float64 {
	u := make([]float64, 0, len(p.pages))
	for _, pg := range p.pages {
		u = append(u, float64(pg.allocated)/float64(p.chunksPerPage))
	}
	return u
}

// Close releases all the pages.
func (p *Pool) Close() {
	for _, pg := range p.pages {
		pg.release()
	}
	p.pages = nil
	p.free = nil
}

func (p *Pool) addPage() error {
	if len(p.pages) == MaxPages {
		return errors.Errorf("page limit reached in class %d", p.class)
	}

	data, release, err := Mmap(p.chunkSize*p.chunksPerPage, p.useHugePages)
	if err != nil {
		return err
	}

	pageID := types.PageID(len(p.pages))
	p.pages = append(p.pages, page{
		data:    data,
		release: release,
	})

	if uint64(cap(p.free)) < p.chunksPerPage {
		p.free = make([]types.Pointer, 0, p.chunksPerPage)
	}
	for chunk := p.chunksPerPage; chunk > 0; chunk-- {
		p.free = append(p.free, Encode(Location{
			Class: p.class,
			Page:  pageID,
			Chunk: types.ChunkID(chunk - 1),
		}))
	}

	return nil
}
