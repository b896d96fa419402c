//go:build !unix

package mmap

import "os"

func osMapRW(_ *os.File, _ int) ([]byte, func([]byte) error, func([]byte) error, error) {
	return nil, nil, nil, ErrUnsupported
}
