//go:build unix

package mmap

import (
	"os"

	"golang.org/x/sys/unix"
)

func osMapRW(f *os.File, size int) ([]byte, func([]byte) error, func([]byte) error, error) {
	data, err := unix.Mmap(int(f.Fd()), 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, nil, nil, err
	}

	sync := func(b []byte) error {
		return unix.Msync(b, unix.MS_SYNC)
	}

	return data, unix.Munmap, sync, nil
}
