//go:build unix

package mmap

import (
	"os"

	"golang.org/x/sys/unix"
)

func osMap(f *os.File, size int) ([]byte, func([]byte) error, error) {
	data, err := unix.Mmap(int(f.Fd()), 0, size, unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return nil, nil, err
	}
	return data, unix.Munmap, nil
}

func osAdvise(data []byte, advice Advice) error {
	var flag int
	switch advice {
	case Sequential:
		flag = unix.MADV_SEQUENTIAL
	case Random:
		flag = unix.MADV_RANDOM
	case WillNeed:
		flag = unix.MADV_WILLNEED
	default:
		flag = unix.MADV_NORMAL
	}
	// madvise rejects starts that are not page aligned, which is the
	// common case for a payload after an npy header.
	if err := unix.Madvise(data, flag); err != nil && err != unix.EINVAL {
		return err
	}
	return nil
}
