//go:build linux

package ringbuffer

import (
	"fmt"
	"os"
	"unsafe"

	"golang.org/x/sys/unix"
)

// doubleMapping implements mapping using memfd_create + two MAP_FIXED
// mmaps of the same file descriptor into adjacent virtual regions, the
// same technique used by the original C ringbuffer.c (memfd_create,
// ftruncate, mmap(PROT_NONE) reservation, then two MAP_SHARED|MAP_FIXED
// mmaps over it).
type doubleMapping struct {
	fd   int
	cap  uint64
	view []byte // length 2*cap; view[i] and view[i+cap] are the same page.
}

func newMapping(capacity int) (mapping, error) {
	pageSize := os.Getpagesize()
	if capacity%pageSize != 0 {
		return nil, fmt.Errorf("capacity %d is not a multiple of the page size %d", capacity, pageSize)
	}

	fd, err := unix.MemfdCreate("misrc-ringbuffer", 0)
	if err != nil {
		return nil, fmt.Errorf("memfd_create: %w", err)
	}
	if err := unix.Ftruncate(fd, int64(capacity)); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("ftruncate: %w", err)
	}

	// Reserve a 2*capacity region so both mappings land contiguously,
	// then replace each half with a MAP_FIXED mapping of the same fd.
	reservation, err := unix.Mmap(-1, 0, 2*capacity, unix.PROT_NONE, unix.MAP_PRIVATE|unix.MAP_ANONYMOUS)
	if err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("resource exhausted: reservation mmap: %w", err)
	}
	base := uintptr(unsafe.Pointer(&reservation[0]))

	if err := mmapFixed(base, uintptr(capacity), fd); err != nil {
		unix.Munmap(reservation)
		unix.Close(fd)
		return nil, fmt.Errorf("resource exhausted: first mapping: %w", err)
	}
	if err := mmapFixed(base+uintptr(capacity), uintptr(capacity), fd); err != nil {
		unix.Munmap(reservation)
		unix.Close(fd)
		return nil, fmt.Errorf("resource exhausted: second mapping: %w", err)
	}

	return &doubleMapping{fd: fd, cap: uint64(capacity), view: reservation}, nil
}

// mmapFixed replaces the PROT_NONE reservation at addr with a
// MAP_SHARED|MAP_FIXED mapping of fd[0:length].
func mmapFixed(addr, length uintptr, fd int) error {
	_, _, errno := unix.Syscall6(
		unix.SYS_MMAP,
		addr,
		length,
		uintptr(unix.PROT_READ|unix.PROT_WRITE),
		uintptr(unix.MAP_SHARED|unix.MAP_FIXED),
		uintptr(fd),
		0,
	)
	if errno != 0 {
		return errno
	}
	return nil
}

func (m *doubleMapping) prepareWrite(off, n uint64) []byte {
	return m.view[off : off+n]
}

func (m *doubleMapping) commitWrite(off, n uint64, buf []byte) {
	// The view is already the backing store; nothing to publish.
}

func (m *doubleMapping) prepareRead(off, n uint64) []byte {
	return m.view[off : off+n]
}

func (m *doubleMapping) close() error {
	if err := unix.Munmap(m.view); err != nil {
		return err
	}
	return unix.Close(m.fd)
}
