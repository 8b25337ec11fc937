package producer

import (
	"encoding/binary"

	"github.com/google/uuid"

	"github.com/outofforest/replica/types"
)

// Minter mints versions of the producer cycles.
type Minter interface {
	Mint() types.Version
}

// NewSequencedMinter creates minter returning consecutive versions starting from 0.
func NewSequencedMinter() *SequencedMinter {
	return &SequencedMinter{}
}

// SequencedMinter mints consecutive versions.
type SequencedMinter struct {
	next types.Version
}

// Mint returns next version.
func (m *SequencedMinter) Mint() types.Version {
	v := m.next
	m.next++
	return v
}

// newTag generates random non-null cycle tag.
func newTag() types.Tag {
	for {
		id := uuid.New()
		if tag := types.Tag(binary.BigEndian.Uint64(id[:])); tag != types.NullTag {
			return tag
		}
	}
}
