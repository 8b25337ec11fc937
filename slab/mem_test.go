package slab

import (
	"os"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/require"
)

func TestMmap(t *testing.T) {
	const size = 1000

	requireT := require.New(t)

	b, release, err := Mmap(size, false)
	requireT.NoError(err)
	t.Cleanup(release)

	requireT.Len(b, size)
	for i := range size {
		requireT.Zero(b[i])
		b[i] = byte(i)
	}
	for i := range size {
		requireT.Equal(byte(i), b[i])
	}
}

func TestMmapIsPageAligned(t *testing.T) {
	requireT := require.New(t)

	b, release, err := Mmap(uint64(3*os.Getpagesize()), false)
	requireT.NoError(err)
	t.Cleanup(release)

	requireT.Zero(uintptr(unsafe.Pointer(unsafe.SliceData(b))) % uintptr(os.Getpagesize()))
}
