package slab

import (
	"os"
	"unsafe"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"

	"github.com/outofforest/photon"
)

// Mmap allocates page-aligned memory outside the go heap.
func Mmap(size uint64, useHugePages bool) ([]byte, func(), error) {
	opts := unix.MAP_PRIVATE | unix.MAP_ANONYMOUS | unix.MAP_NORESERVE
	if useHugePages {
		// When using huge pages, the size must be a multiple of the hugepage size. Otherwise, munmap fails.
		opts |= unix.MAP_HUGETLB
	}
	dataP, err := unix.MmapPtr(-1, 0, nil, uintptr(size), unix.PROT_READ|unix.PROT_WRITE, opts)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "memory allocation of %d bytes failed", size)
	}

	return photon.SliceFromPointer[byte](dataP, int(size)), func() {
		// munmap requires the size rounded up to the page size used by the mapping.
		if useHugePages {
			// 2MB hugepages.
			if err := unmap(dataP, uintptr(size), 2*1024*1024); err == nil {
				return
			}

			// 1GB hugepages.
			if err := unmap(dataP, uintptr(size), 1024*1024*1024); err == nil {
				return
			}
		}

		_ = unmap(dataP, uintptr(size), uintptr(os.Getpagesize()))
	}, nil
}

func unmap(ptr unsafe.Pointer, size, pageSize uintptr) error {
	return unix.MunmapPtr(ptr, (size+pageSize-1)/pageSize*pageSize)
}
