package blockdev

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFile_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flash.img")

	dev, err := CreateFile(path, testSize, testEraseBlock)
	require.NoError(t, err)
	require.NoError(t, dev.Write(10, []byte("hello")))
	require.NoError(t, dev.Sync())
	require.NoError(t, dev.Close())

	fi, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, int64(testSize), fi.Size())

	dev, err = OpenFile(path, testEraseBlock)
	require.NoError(t, err)
	defer dev.Close()

	assert.Equal(t, uint32(testSize), dev.Size())
	got := make([]byte, 5)
	require.NoError(t, dev.Read(10, got))
	assert.Equal(t, "hello", string(got))
}

func TestFile_OpenRejectsBadSize(t *testing.T) {
	path := filepath.Join(t.TempDir(), "odd.img")
	require.NoError(t, os.WriteFile(path, make([]byte, testEraseBlock+3), 0o644))

	_, err := OpenFile(path, testEraseBlock)
	assert.ErrorIs(t, err, ErrInvalidGeometry)
}

func TestFile_ClosedDevice(t *testing.T) {
	dev, err := CreateFile(filepath.Join(t.TempDir(), "flash.img"), testSize, testEraseBlock)
	require.NoError(t, err)
	require.NoError(t, dev.Close())
	require.NoError(t, dev.Close())

	assert.ErrorIs(t, dev.Read(0, make([]byte, 1)), ErrClosed)
	assert.ErrorIs(t, dev.Write(0, []byte{0}), ErrClosed)
	assert.ErrorIs(t, dev.Erase(0, testEraseBlock), ErrClosed)
}

type shortBacking struct{ data []byte }

func (b *shortBacking) ReadAt(p []byte, off int64) (int, error) {
	if off >= int64(len(b.data)) {
		return 0, nil
	}
	return copy(p, b.data[off:]), nil
}

func (b *shortBacking) WriteAt(p []byte, off int64) (int, error) {
	return copy(b.data[off:], p), nil
}

func TestFile_ShortBackingRead(t *testing.T) {
	dev, err := NewFile(&shortBacking{data: make([]byte, 10)}, testEraseBlock, testEraseBlock)
	require.NoError(t, err)

	err = dev.Read(0, make([]byte, 20))
	assert.ErrorContains(t, err, "short read")
}
