package engine

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/flashfs/blockdev"
	"github.com/hupe1980/flashfs/hal"
	"github.com/hupe1980/flashfs/testutil"
)

const (
	testBlocks = 8
	testBlock  = 4096
	testPage   = 256
)

type harness struct {
	mem *blockdev.Memory
	dev *blockdev.Faulty
	cfg Config
}

func newHarness(t *testing.T, blocks uint32) *harness {
	t.Helper()
	mem, err := blockdev.NewMemory(blocks*testBlock, testBlock)
	require.NoError(t, err)

	dev := blockdev.NewFaulty(mem)
	return &harness{
		mem: mem,
		dev: dev,
		cfg: Config{
			PhysSize:       blocks * testBlock,
			PhysEraseBlock: testBlock,
			LogPageSize:    testPage,
			LogBlockSize:   testBlock,
			Callbacks:      hal.NewAdapter(dev).Callbacks(),
		},
	}
}

func (h *harness) mount(t *testing.T) *FS {
	t.Helper()
	fs, st := Mount(h.cfg)
	require.Equal(t, hal.StatusOK, st)
	return fs
}

func writeFile(t *testing.T, fs *FS, name string, data []byte) {
	t.Helper()
	fd := fs.Open(name, FlagCreat|FlagTrunc|FlagWrOnly)
	require.Positive(t, fd)
	require.Equal(t, int32(len(data)), fs.Write(fd, data))
	require.Equal(t, hal.StatusOK, fs.Close(fd))
}

func readFile(t *testing.T, fs *FS, name string) []byte {
	t.Helper()
	fd := fs.Open(name, FlagRdOnly)
	require.Positive(t, fd, "open %s: %s", name, hal.Status(fd))
	defer fs.Close(fd)

	var st Stat
	require.Equal(t, hal.StatusOK, fs.Fstat(fd, &st))
	buf := make([]byte, st.Size)
	require.Equal(t, int32(st.Size), fs.Read(fd, buf))
	return buf
}

func list(t *testing.T, fs *FS) map[string]uint32 {
	t.Helper()
	out := make(map[string]uint32)
	require.Equal(t, hal.StatusOK, fs.Dir(func(name string, size, _ uint32) {
		out[name] = size
	}))
	return out
}

func TestConfig_Layout(t *testing.T) {
	cbs := hal.Callbacks{
		Read:  func(uint32, uint32, []byte) hal.Status { return hal.StatusOK },
		Write: func(uint32, uint32, []byte) hal.Status { return hal.StatusOK },
		Erase: func(uint32, uint32) hal.Status { return hal.StatusOK },
	}
	valid := Config{PhysSize: 8 * testBlock, PhysEraseBlock: testBlock, LogPageSize: testPage, LogBlockSize: testBlock, Callbacks: cbs}

	tests := []struct {
		name   string
		mutate func(*Config)
		want   hal.Status
	}{
		{"valid", func(*Config) {}, hal.StatusOK},
		{"zero size", func(c *Config) { c.PhysSize = 0 }, hal.StatusNotConfigured},
		{"size not multiple of erase", func(c *Config) { c.PhysSize += 100 }, hal.StatusNotConfigured},
		{"page does not divide block", func(c *Config) { c.LogPageSize = 300 }, hal.StatusNotConfigured},
		{"block smaller than erase", func(c *Config) { c.LogBlockSize = testBlock / 2 }, hal.StatusNotConfigured},
		{"page too small", func(c *Config) { c.LogPageSize = 32 }, hal.StatusNotConfigured},
		{"misaligned base", func(c *Config) { c.PhysAddr = 100 }, hal.StatusNotConfigured},
		{"missing callback", func(c *Config) { c.Callbacks.Erase = nil }, hal.StatusNotConfigured},
		{"negative fds", func(c *Config) { c.MaxOpenFiles = -1 }, hal.StatusNotConfigured},
		{"one block", func(c *Config) { c.PhysSize = testBlock }, hal.StatusProbeTooFewBlocks},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := valid
			tc.mutate(&cfg)
			_, st := cfg.layout()
			assert.Equal(t, tc.want, st)
		})
	}
}

func TestMount_BlankDevice(t *testing.T) {
	h := newHarness(t, testBlocks)
	fs := h.mount(t)

	assert.Empty(t, list(t, fs))
	total, used, st := fs.Info()
	require.Equal(t, hal.StatusOK, st)
	assert.Equal(t, uint32((testBlocks-1)*testBlock), total)
	assert.Zero(t, used)
}

func TestMount_NotAFilesystem(t *testing.T) {
	h := newHarness(t, testBlocks)
	require.NoError(t, h.mem.Write(0, make([]byte, testBlock)))

	_, st := Mount(h.cfg)
	assert.Equal(t, hal.StatusNotAFilesystem, st)

	require.Equal(t, hal.StatusOK, Format(h.cfg))
	_, st = Mount(h.cfg)
	assert.Equal(t, hal.StatusOK, st)
}

func TestMount_CallbackFailure(t *testing.T) {
	h := newHarness(t, testBlocks)
	h.dev.SetFault(blockdev.Fault{FailAfterOps: -1, FailAfterBytes: -1, FailOnRead: true})

	_, st := Mount(h.cfg)
	assert.Equal(t, hal.StatusCallbackFailed, st)
}

func TestFile_RoundTripAcrossPages(t *testing.T) {
	h := newHarness(t, testBlocks)
	fs := h.mount(t)

	data := testutil.NewRNG(1).Bytes(3*testPage + 17)
	writeFile(t, fs, "blob", data)

	assert.Equal(t, data, readFile(t, fs, "blob"))
	assert.Equal(t, map[string]uint32{"blob": uint32(len(data))}, list(t, fs))
}

func TestFile_PersistsAcrossMount(t *testing.T) {
	h := newHarness(t, testBlocks)
	fs := h.mount(t)

	rng := testutil.NewRNG(2)
	files := map[string][]byte{
		"a":     rng.Bytes(10),
		"b":     rng.Bytes(testPage * 2),
		"empty": {},
	}
	for name, data := range files {
		writeFile(t, fs, name, data)
	}
	require.Equal(t, hal.StatusOK, fs.Unmount())

	fs = h.mount(t)
	for name, data := range files {
		got := readFile(t, fs, name)
		assert.True(t, bytes.Equal(data, got), name)
	}
	assert.Len(t, list(t, fs), 3)
}

func TestOpen_Semantics(t *testing.T) {
	h := newHarness(t, testBlocks)
	fs := h.mount(t)

	assert.Equal(t, int32(hal.StatusNotFound), fs.Open("missing", FlagRdOnly))
	assert.Equal(t, int32(hal.StatusNameTooLong), fs.Open(strings.Repeat("x", MaxNameLen+1), FlagCreat|FlagWrOnly))
	assert.Equal(t, int32(hal.StatusNotFound), fs.Open("", FlagCreat|FlagWrOnly))

	writeFile(t, fs, "f", []byte("hello"))
	assert.Equal(t, int32(hal.StatusFileExists), fs.Open("f", FlagCreat|FlagExcl|FlagWrOnly))

	fd := fs.Open("f", FlagWrOnly|FlagTrunc)
	require.Positive(t, fd)
	require.Equal(t, hal.StatusOK, fs.Close(fd))
	assert.Empty(t, readFile(t, fs, "f"))

	name := strings.Repeat("n", MaxNameLen)
	writeFile(t, fs, name, []byte("ok"))
	assert.Equal(t, []byte("ok"), readFile(t, fs, name))
}

func TestOpen_DescriptorExhaustion(t *testing.T) {
	h := newHarness(t, testBlocks)
	fs := h.mount(t)

	var fds []int32
	for i := 0; i < DefaultMaxOpenFiles; i++ {
		fd := fs.Open(string(rune('a'+i)), FlagCreat|FlagRdWr)
		require.Positive(t, fd)
		fds = append(fds, fd)
	}

	assert.Equal(t, int32(hal.StatusOutOfFileDescriptors), fs.Open("z", FlagCreat|FlagRdWr))

	for _, fd := range fds {
		assert.Equal(t, int32(3), fs.Write(fd, []byte("abc")))
	}

	require.Equal(t, hal.StatusOK, fs.Close(fds[0]))
	assert.Positive(t, fs.Open("z", FlagCreat|FlagRdWr))
}

func TestDescriptor_Errors(t *testing.T) {
	h := newHarness(t, testBlocks)
	fs := h.mount(t)

	assert.Equal(t, int32(hal.StatusBadDescriptor), fs.Tell(0))
	assert.Equal(t, int32(hal.StatusBadDescriptor), fs.Tell(99))
	assert.Equal(t, int32(hal.StatusFileClosed), fs.Tell(1))

	fd := fs.Open("f", FlagCreat|FlagWrOnly)
	require.Positive(t, fd)
	assert.Equal(t, int32(hal.StatusNotReadable), fs.Read(fd, make([]byte, 1)))
	require.Equal(t, hal.StatusOK, fs.Close(fd))
	assert.Equal(t, hal.StatusFileClosed, fs.Close(fd))

	fd = fs.Open("f", FlagRdOnly)
	require.Positive(t, fd)
	assert.Equal(t, int32(hal.StatusNotWritable), fs.Write(fd, []byte("x")))
}

func TestRead_AtEOF(t *testing.T) {
	h := newHarness(t, testBlocks)
	fs := h.mount(t)
	writeFile(t, fs, "f", []byte("12345"))

	fd := fs.Open("f", FlagRdOnly)
	buf := make([]byte, 10)
	assert.Equal(t, int32(5), fs.Read(fd, buf))
	assert.Equal(t, int32(0), fs.Read(fd, buf))
}

func TestLseek(t *testing.T) {
	h := newHarness(t, testBlocks)
	fs := h.mount(t)
	writeFile(t, fs, "f", []byte("0123456789"))

	fd := fs.Open("f", FlagRdWr)
	require.Positive(t, fd)

	assert.Equal(t, int32(4), fs.Lseek(fd, 4, SeekSet))
	assert.Equal(t, int32(6), fs.Lseek(fd, 2, SeekCur))
	assert.Equal(t, int32(7), fs.Lseek(fd, -3, SeekEnd))
	assert.Equal(t, int32(hal.StatusSeekBounds), fs.Lseek(fd, -1, SeekSet))
	assert.Equal(t, int32(7), fs.Tell(fd), "failed seek keeps position")
	assert.Equal(t, int32(hal.StatusSeekBounds), fs.Lseek(fd, 0, 9))

	assert.Equal(t, int32(hal.StatusEndOfObject), fs.Lseek(fd, 50, SeekSet))
	assert.Equal(t, int32(10), fs.Tell(fd))

	fs.Lseek(fd, 2, SeekSet)
	assert.Equal(t, int32(3), fs.Write(fd, []byte("abc")))
	fs.Lseek(fd, 0, SeekSet)
	buf := make([]byte, 10)
	assert.Equal(t, int32(10), fs.Read(fd, buf))
	assert.Equal(t, "01abc56789", string(buf))
}

func TestWrite_Append(t *testing.T) {
	h := newHarness(t, testBlocks)
	fs := h.mount(t)
	writeFile(t, fs, "log", []byte("one "))

	fd := fs.Open("log", FlagWrOnly|FlagAppend)
	require.Positive(t, fd)
	fs.Lseek(fd, 0, SeekSet)
	require.Equal(t, int32(4), fs.Write(fd, []byte("two ")))
	require.Equal(t, hal.StatusOK, fs.Close(fd))

	assert.Equal(t, "one two ", string(readFile(t, fs, "log")))
}

func TestRemove(t *testing.T) {
	h := newHarness(t, testBlocks)
	fs := h.mount(t)
	writeFile(t, fs, "Testfile", []byte("data"))

	fd := fs.Open("Testfile", FlagRdOnly)
	require.Positive(t, fd)

	require.Equal(t, hal.StatusOK, fs.Remove("Testfile"))
	assert.NotContains(t, list(t, fs), "Testfile")
	assert.Equal(t, int32(hal.StatusNotFound), fs.Open("Testfile", FlagRdOnly))
	assert.Equal(t, hal.StatusNotFound, fs.Remove("Testfile"))

	assert.Equal(t, int32(hal.StatusFileDeleted), fs.Read(fd, make([]byte, 4)))
	assert.Equal(t, hal.StatusOK, fs.Close(fd))

	require.Equal(t, hal.StatusOK, fs.Unmount())
	fs = h.mount(t)
	assert.Empty(t, list(t, fs))
}

func TestRename(t *testing.T) {
	h := newHarness(t, testBlocks)
	fs := h.mount(t)
	writeFile(t, fs, "old", []byte("payload"))
	writeFile(t, fs, "other", []byte("x"))

	assert.Equal(t, hal.StatusConflictingName, fs.Rename("old", "other"))
	assert.Equal(t, hal.StatusNotFound, fs.Rename("nope", "new"))
	assert.Equal(t, hal.StatusNameTooLong, fs.Rename("old", strings.Repeat("y", 40)))

	require.Equal(t, hal.StatusOK, fs.Rename("old", "new"))
	var st Stat
	assert.Equal(t, hal.StatusNotFound, fs.Stat("old", &st))
	require.Equal(t, hal.StatusOK, fs.Stat("new", &st))
	assert.Equal(t, uint32(7), st.Size)
	assert.Equal(t, "new", st.Name)

	require.Equal(t, hal.StatusOK, fs.Unmount())
	fs = h.mount(t)
	assert.Equal(t, "payload", string(readFile(t, fs, "new")))
}

func TestGC_Churn(t *testing.T) {
	h := newHarness(t, 4)
	fs := h.mount(t)
	rng := testutil.NewRNG(3)

	keep := rng.Bytes(testPage * 3)
	writeFile(t, fs, "keep", keep)

	var last []byte
	for i := 0; i < 200; i++ {
		last = rng.Bytes(rng.Intn(testPage*4) + 1)
		writeFile(t, fs, "churn", last)
	}

	assert.Positive(t, fs.GCRuns())
	assert.Equal(t, keep, readFile(t, fs, "keep"))
	assert.Equal(t, last, readFile(t, fs, "churn"))

	require.Equal(t, hal.StatusOK, fs.Unmount())
	fs = h.mount(t)
	assert.Equal(t, keep, readFile(t, fs, "keep"))
	assert.Equal(t, last, readFile(t, fs, "churn"))
}

func TestWrite_Full(t *testing.T) {
	h := newHarness(t, 3)
	fs := h.mount(t)

	fd := fs.Open("big", FlagCreat|FlagWrOnly)
	require.Positive(t, fd)

	data := make([]byte, 3*testBlock)
	n := fs.Write(fd, data)
	require.Positive(t, n, "partial count is reported")
	assert.Less(t, n, int32(len(data)))

	assert.Equal(t, int32(hal.StatusFull), fs.Write(fd, data))

	total, used, _ := fs.Info()
	assert.LessOrEqual(t, used, total)
}

func TestScan_UnfinishedPageIsIgnored(t *testing.T) {
	h := newHarness(t, testBlocks)
	fs := h.mount(t)
	writeFile(t, fs, "f", []byte("ok"))
	require.Equal(t, hal.StatusOK, fs.Unmount())

	// A header page that was programmed but never finalized.
	img := make([]byte, headerSize+4)
	pageHeader{flags: 0xFF &^ flagUsed, typ: typeHeader, id: 9, length: 4}.encode(img)
	copy(img[headerSize:], "half")
	require.NoError(t, h.mem.Write(testBlock*5, img))

	fs = h.mount(t)
	assert.Equal(t, map[string]uint32{"f": 2}, list(t, fs))
}

func TestUnmount(t *testing.T) {
	h := newHarness(t, testBlocks)
	fs := h.mount(t)
	fd := fs.Open("f", FlagCreat|FlagRdWr)
	require.Positive(t, fd)

	require.Equal(t, hal.StatusOK, fs.Unmount())
	assert.False(t, fs.Mounted())
	assert.Equal(t, hal.StatusNotMounted, fs.Unmount())
	assert.Equal(t, int32(hal.StatusNotMounted), fs.Open("f", FlagRdOnly))
	assert.Equal(t, int32(hal.StatusNotMounted), fs.Write(fd, []byte("x")))
	assert.Equal(t, hal.StatusNotMounted, fs.Close(fd))
	assert.Equal(t, hal.StatusNotMounted, fs.Dir(func(string, uint32, uint32) {}))
	_, _, st := fs.Info()
	assert.Equal(t, hal.StatusNotMounted, st)
}

func TestWrite_CallbackFailureMidway(t *testing.T) {
	h := newHarness(t, testBlocks)
	fs := h.mount(t)

	fd := fs.Open("f", FlagCreat|FlagWrOnly)
	require.Positive(t, fd)

	h.dev.SetFault(blockdev.Fault{FailAfterOps: 2, FailAfterBytes: -1})
	n := fs.Write(fd, make([]byte, 3*(testPage-headerSize)))
	assert.Equal(t, int32(testPage-headerSize), n)

	h.dev.SetFault(blockdev.Fault{FailAfterOps: 0, FailAfterBytes: -1})
	assert.Equal(t, int32(hal.StatusCallbackFailed), fs.Write(fd, []byte("x")))
}
