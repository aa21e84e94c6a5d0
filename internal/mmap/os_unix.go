//go:build unix

package mmap

import (
	"os"

	"golang.org/x/sys/unix"
)

// osMap maps f read-only. Table files are read page by page, so the
// kernel is told to skip readahead.
func osMap(f *os.File, size int) ([]byte, func([]byte) error, error) {
	data, err := unix.Mmap(int(f.Fd()), 0, size, unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return nil, nil, err
	}
	// EINVAL only means the hint was refused.
	if err := unix.Madvise(data, unix.MADV_RANDOM); err != nil && err != unix.EINVAL {
		_ = unix.Munmap(data)
		return nil, nil, err
	}
	return data, unix.Munmap, nil
}
