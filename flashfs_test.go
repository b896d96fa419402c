package flashfs

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/flashfs/blockdev"
	"github.com/hupe1980/flashfs/testutil"
)

const (
	smallSize  = 64 * 1024
	smallBlock = 4096
)

func smallGeometry() Geometry {
	return Geometry{
		PhysSize:       smallSize,
		PhysEraseBlock: smallBlock,
		LogPageSize:    256,
		LogBlockSize:   smallBlock,
	}
}

func newSmall(t *testing.T, opts ...Option) (*FS, *blockdev.Faulty) {
	t.Helper()
	mem, err := blockdev.NewMemory(smallSize, smallBlock)
	require.NoError(t, err)
	dev := blockdev.NewFaulty(mem)

	fs, err := Mount(smallGeometry(), dev, opts...)
	require.NoError(t, err)
	return fs, dev
}

func names(t *testing.T, fs *FS) []string {
	t.Helper()
	entries, err := fs.List()
	require.NoError(t, err)
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Name)
	}
	return out
}

func TestScenario_HelloWorld(t *testing.T) {
	const size = 4 << 20
	dev, err := blockdev.NewMemory(size, 65536)
	require.NoError(t, err)

	fs, err := Mount(DefaultGeometry(size), dev)
	require.NoError(t, err)
	defer fs.Unmount()

	fd, err := fs.OpenFile("Hello", Creat|WrOnly)
	require.NoError(t, err)

	n, err := fs.Write(fd, []byte("Hello World"))
	require.NoError(t, err)
	assert.Equal(t, 11, n)
	require.NoError(t, fs.Close(fd))

	entries, err := fs.List()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "Hello", entries[0].Name)
	assert.Equal(t, uint32(11), entries[0].Size)
}

func TestScenario_LinesRoundTrip(t *testing.T) {
	fs, _ := newSmall(t)
	lines := testutil.Lines(100)

	f, err := fs.Open("Testfile", ModeWrite)
	require.NoError(t, err)
	for _, line := range lines {
		_, err := f.WriteString(line)
		require.NoError(t, err)
	}
	require.NoError(t, f.Close())

	f, err = fs.Open("Testfile", ModeRead)
	require.NoError(t, err)
	defer f.Close()

	got, err := f.ReadN(-1)
	require.NoError(t, err)
	assert.Equal(t, strings.Join(lines, ""), string(got))
}

func TestScenario_RemoveThenList(t *testing.T) {
	fs, _ := newSmall(t)

	require.NoError(t, fs.WithFile("Testfile", ModeWrite, func(f *File) error {
		_, err := f.WriteString("payload")
		return err
	}))
	require.Contains(t, names(t, fs), "Testfile")

	require.NoError(t, fs.Remove("Testfile"))
	assert.NotContains(t, names(t, fs), "Testfile")

	_, err := fs.OpenFile("Testfile", RdOnly)
	require.ErrorIs(t, err, ErrNotFound)

	var ee *EngineError
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, "open", ee.Op)
	assert.Equal(t, "Testfile", ee.Path)
	assert.Equal(t, "ERR_NOT_FOUND", ee.Symbol)
	assert.Equal(t, int32(-10002), int32(ee.Code))
}

func TestScenario_DescriptorExhaustion(t *testing.T) {
	fs, _ := newSmall(t)

	var files []*File
	for i := 0; i < 4; i++ {
		f, err := fs.Open(string(rune('a'+i)), ModeWriteRead)
		require.NoError(t, err)
		files = append(files, f)
	}

	_, err := fs.Open("e", ModeWriteRead)
	require.ErrorIs(t, err, ErrOutOfFileDescriptors)

	for _, f := range files {
		_, err := f.WriteString("still usable")
		require.NoError(t, err)
		_, err = f.Seek(0, io.SeekStart)
		require.NoError(t, err)
		got, err := f.ReadN(-1)
		require.NoError(t, err)
		assert.Equal(t, "still usable", string(got))
		require.NoError(t, f.Close())
	}
}

func TestMaxOpenFilesOption(t *testing.T) {
	fs, _ := newSmall(t, WithMaxOpenFiles(1))

	f, err := fs.Open("a", ModeWrite)
	require.NoError(t, err)
	_, err = fs.Open("b", ModeWrite)
	assert.ErrorIs(t, err, ErrOutOfFileDescriptors)
	require.NoError(t, f.Close())
}

func TestMount_Geometry(t *testing.T) {
	mem, err := blockdev.NewMemory(smallSize, smallBlock)
	require.NoError(t, err)

	geo := smallGeometry()
	geo.PhysSize = 2 * smallSize
	_, err = Mount(geo, mem)
	assert.ErrorIs(t, err, ErrInvalidGeometry)

	geo = smallGeometry()
	geo.LogPageSize = 100
	_, err = Mount(geo, mem)
	assert.ErrorIs(t, err, ErrInvalidGeometry)

	geo = smallGeometry()
	geo.LogPageSize = 32
	_, err = Mount(geo, mem)
	assert.ErrorIs(t, err, ErrNotConfigured)

	geo = smallGeometry()
	geo.PhysSize = smallBlock
	_, err = Mount(geo, mem)
	assert.ErrorIs(t, err, ErrProbeTooFewBlocks)

	fs, err := Mount(smallGeometry(), mem)
	require.NoError(t, err)
	assert.Equal(t, smallGeometry(), fs.Geometry())
	assert.Same(t, mem, fs.Device())
}

func TestMount_NotAFilesystem(t *testing.T) {
	mem, err := blockdev.NewMemory(smallSize, smallBlock)
	require.NoError(t, err)
	require.NoError(t, mem.Write(0, make([]byte, 512)))

	_, err = Mount(smallGeometry(), mem)
	require.ErrorIs(t, err, ErrNotAFilesystem)
	var ee *EngineError
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, "mount", ee.Op)

	require.NoError(t, Format(smallGeometry(), mem))
	_, err = Mount(smallGeometry(), mem)
	assert.NoError(t, err)
}

func TestCallbackFailureIsAttached(t *testing.T) {
	fs, dev := newSmall(t)
	dev.SetFault(blockdev.Fault{FailAfterOps: -1, FailAfterBytes: -1, FailOnWrite: true})

	_, err := fs.OpenFile("x", Creat|WrOnly)
	require.ErrorIs(t, err, ErrCallbackFailed)
	require.ErrorIs(t, err, blockdev.ErrInjected)

	var cf *CallbackFailure
	require.ErrorAs(t, err, &cf)
	assert.Equal(t, blockdev.OpWrite, cf.Op)
}

func TestCallbackPanicIsContained(t *testing.T) {
	fs, dev := newSmall(t)
	dev.SetFault(blockdev.Fault{FailAfterOps: -1, FailAfterBytes: -1, FailOnWrite: true, Panic: true})

	require.NotPanics(t, func() {
		_, err := fs.OpenFile("x", Creat|WrOnly)
		assert.ErrorIs(t, err, ErrCallbackFailed)
	})
}

func TestShortWrite(t *testing.T) {
	fs, dev := newSmall(t)

	fd, err := fs.OpenFile("short", Creat|WrOnly)
	require.NoError(t, err)

	dev.SetFault(blockdev.Fault{FailAfterOps: 2, FailAfterBytes: -1})
	data := make([]byte, 1000)
	n, err := fs.Write(fd, data)

	var sw *ShortWriteError
	require.ErrorAs(t, err, &sw)
	assert.Equal(t, 1000, sw.Requested)
	assert.Equal(t, n, sw.Written)
	assert.Positive(t, n)
	assert.Less(t, n, 1000)
	assert.Equal(t, "short", sw.Path)
	assert.ErrorIs(t, err, ErrCallbackFailed)
	assert.ErrorIs(t, err, blockdev.ErrInjected)
}

func TestUnmount(t *testing.T) {
	fs, _ := newSmall(t)
	f, err := fs.Open("f", ModeWrite)
	require.NoError(t, err)

	require.NoError(t, fs.Unmount())

	_, err = f.WriteString("x")
	assert.ErrorIs(t, err, ErrNotMounted)
	assert.ErrorIs(t, f.Close(), ErrNotMounted)
	_, err = fs.List()
	assert.ErrorIs(t, err, ErrNotMounted)
	_, err = fs.Info()
	assert.ErrorIs(t, err, ErrNotMounted)
	assert.ErrorIs(t, fs.Remove("f"), ErrNotMounted)

	err = fs.Unmount()
	var ee *EngineError
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, "unmount", ee.Op)
}

func TestFile_DoubleClose(t *testing.T) {
	fs, _ := newSmall(t)
	f, err := fs.Open("f", ModeWrite)
	require.NoError(t, err)

	require.NoError(t, f.Close())
	assert.ErrorIs(t, f.Close(), ErrFileClosed)
	_, err = f.Read(make([]byte, 1))
	assert.ErrorIs(t, err, ErrFileClosed)
}

func TestWithFile_ClosesOnEveryPath(t *testing.T) {
	fs, _ := newSmall(t, WithMaxOpenFiles(1))
	boom := errors.New("boom")

	err := fs.WithFile("f", ModeWrite, func(*File) error { return boom })
	assert.ErrorIs(t, err, boom)

	assert.Panics(t, func() {
		_ = fs.WithFile("f", ModeWrite, func(*File) error { panic("fail") })
	})

	// The single descriptor slot is free again.
	require.NoError(t, fs.WithFile("f", ModeRead, func(*File) error { return nil }))
}

func TestWithFile_JoinsCloseError(t *testing.T) {
	fs, _ := newSmall(t)
	err := fs.WithFile("f", ModeWrite, func(f *File) error {
		return f.Close()
	})
	assert.ErrorIs(t, err, ErrFileClosed)
}

func TestOpen_Modes(t *testing.T) {
	fs, _ := newSmall(t)

	_, err := fs.Open("f", ModeRead)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = fs.Open("f", ModeAppend)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, fs.WithFile("f", ModeWrite, func(f *File) error {
		_, err := f.WriteString("abc")
		return err
	}))

	require.NoError(t, fs.WithFile("f", ModeAppend, func(f *File) error {
		pos, err := f.Tell()
		require.NoError(t, err)
		assert.Equal(t, int64(3), pos)
		_, err = f.WriteString("def")
		return err
	}))

	require.NoError(t, fs.WithFile("f", ModeAppendRead, func(f *File) error {
		_, err := f.Seek(0, io.SeekStart)
		require.NoError(t, err)
		got, err := io.ReadAll(f)
		require.NoError(t, err)
		assert.Equal(t, "abcdef", string(got))
		return nil
	}))

	require.NoError(t, fs.WithFile("f", ModeReadWrite, func(f *File) error {
		_, err := f.WriteString("X")
		return err
	}))

	f, err := fs.OpenString("f", "rb")
	require.NoError(t, err)
	got, err := f.ReadN(-1)
	require.NoError(t, err)
	assert.Equal(t, "Xbcdef", string(got))
	_, err = f.WriteString("no")
	assert.ErrorIs(t, err, ErrNotWritable)
	require.NoError(t, f.Close())

	require.NoError(t, fs.WithFile("f", ModeWriteRead, func(f *File) error {
		got, err := f.ReadN(-1)
		require.NoError(t, err)
		assert.Empty(t, got, "w+ truncates")
		return nil
	}))

	_, err = fs.OpenString("f", "rw")
	assert.ErrorIs(t, err, ErrInvalidMode)
	_, err = fs.Open("f", OpenMode("x"))
	assert.ErrorIs(t, err, ErrInvalidMode)
}

func TestFile_Seek(t *testing.T) {
	fs, _ := newSmall(t)
	require.NoError(t, fs.WithFile("f", ModeWrite, func(f *File) error {
		_, err := f.WriteString("0123456789")
		return err
	}))

	f, err := fs.Open("f", ModeRead)
	require.NoError(t, err)
	defer f.Close()

	pos, err := f.Seek(-4, io.SeekEnd)
	require.NoError(t, err)
	assert.Equal(t, int64(6), pos)

	got, err := f.ReadN(2)
	require.NoError(t, err)
	assert.Equal(t, "67", string(got))

	_, err = f.Seek(-100, io.SeekCurrent)
	assert.ErrorIs(t, err, ErrSeekBounds)

	_, err = f.Seek(100, io.SeekStart)
	assert.ErrorIs(t, err, ErrEndOfObject)
	pos, err = f.Tell()
	require.NoError(t, err)
	assert.Equal(t, int64(10), pos)

	_, err = f.Seek(1<<40, io.SeekStart)
	assert.ErrorIs(t, err, ErrSeekBounds)

	n, err := f.Read(make([]byte, 4))
	assert.Zero(t, n)
	assert.ErrorIs(t, err, io.EOF)

	empty, err := f.ReadN(5)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestRead_NegativeCount(t *testing.T) {
	fs, _ := newSmall(t)
	fd, err := fs.OpenFile("f", Creat|RdWr)
	require.NoError(t, err)
	_, err = fs.Read(fd, -1)
	assert.ErrorIs(t, err, ErrNegativeCount)
}

func TestRead_CountBeyondEnd(t *testing.T) {
	fs, _ := newSmall(t)
	fd, err := fs.OpenFile("f", Creat|RdWr)
	require.NoError(t, err)
	_, err = fs.Write(fd, []byte("abc"))
	require.NoError(t, err)
	_, err = fs.Seek(fd, 1, SeekSet)
	require.NoError(t, err)

	var got []byte
	require.NotPanics(t, func() {
		got, err = fs.Read(fd, 1<<50)
	})
	require.NoError(t, err)
	assert.Equal(t, "bc", string(got))

	got, err = fs.Read(fd, 1<<50)
	require.NoError(t, err)
	assert.Empty(t, got)

	_, err = fs.Read(FD(77), 1<<50)
	assert.ErrorIs(t, err, ErrBadDescriptor)
}

func TestFile_ReadNFromMiddle(t *testing.T) {
	fs, _ := newSmall(t)
	data := []byte(strings.Join(testutil.Lines(100), "\n"))
	require.NoError(t, fs.WithFile("lines", ModeWrite, func(f *File) error {
		_, err := f.Write(data)
		return err
	}))

	f, err := fs.Open("lines", ModeRead)
	require.NoError(t, err)
	defer f.Close()

	mid := int64(len(data) / 2)
	_, err = f.Seek(mid, io.SeekStart)
	require.NoError(t, err)

	got, err := f.ReadN(-1)
	require.NoError(t, err)
	assert.Equal(t, data[mid:], got)

	pos, err := f.Tell()
	require.NoError(t, err)
	assert.Equal(t, int64(len(data)), pos)

	n, err := f.Read(make([]byte, 1))
	assert.Zero(t, n)
	assert.ErrorIs(t, err, io.EOF)
}

func TestDescriptorErrors(t *testing.T) {
	fs, _ := newSmall(t)

	_, err := fs.Tell(FD(42))
	assert.ErrorIs(t, err, ErrBadDescriptor)
	assert.ErrorIs(t, fs.Close(FD(1)), ErrFileClosed)
}

func TestEntries(t *testing.T) {
	fs, _ := newSmall(t)
	seq := fs.Entries()

	count := func() int {
		n := 0
		for _, err := range seq {
			require.NoError(t, err)
			n++
		}
		return n
	}

	assert.Zero(t, count())
	for _, name := range []string{"a", "b", "c"} {
		require.NoError(t, fs.WithFile(name, ModeWrite, func(*File) error { return nil }))
	}
	assert.Equal(t, 3, count(), "sequence is recomputed per iteration")

	for e, err := range seq {
		require.NoError(t, err)
		assert.Equal(t, "a", e.Name)
		break
	}

	require.NoError(t, fs.Unmount())
	for _, err := range seq {
		assert.ErrorIs(t, err, ErrNotMounted)
	}
}

func TestStatRenameInfo(t *testing.T) {
	fs, _ := newSmall(t)

	before, err := fs.Info()
	require.NoError(t, err)
	assert.Equal(t, uint32(smallSize-smallBlock), before.Total)
	assert.Zero(t, before.Used)

	require.NoError(t, fs.WithFile("old", ModeWrite, func(f *File) error {
		_, err := f.Write(bytes.Repeat([]byte{'z'}, 600))
		require.NoError(t, err)
		st, err := f.Stat()
		require.NoError(t, err)
		assert.Equal(t, uint32(600), st.Size)
		return nil
	}))

	require.NoError(t, fs.Rename("old", "new"))
	_, err = fs.Stat("old")
	assert.ErrorIs(t, err, ErrNotFound)

	st, err := fs.Stat("new")
	require.NoError(t, err)
	assert.Equal(t, "new", st.Name)
	assert.Equal(t, uint32(600), st.Size)
	assert.NotZero(t, st.ID)

	require.NoError(t, fs.WithFile("other", ModeWrite, func(*File) error { return nil }))
	assert.ErrorIs(t, fs.Rename("new", "other"), ErrConflictingName)
	assert.ErrorIs(t, fs.Rename("new", strings.Repeat("n", 32)), ErrNameTooLong)

	after, err := fs.Info()
	require.NoError(t, err)
	assert.Positive(t, after.Used)
	assert.Equal(t, after.Total-after.Used, after.Free())
}

func TestGarbageCollectionUnderChurn(t *testing.T) {
	fs, _ := newSmall(t)
	rng := testutil.NewRNG(11)

	var last []byte
	for i := 0; i < 300; i++ {
		last = rng.Bytes(rng.Intn(2048) + 1)
		require.NoError(t, fs.WithFile("churn", ModeWrite, func(f *File) error {
			_, err := f.Write(last)
			return err
		}))
	}
	assert.Positive(t, fs.GCRuns())

	f, err := fs.Open("churn", ModeRead)
	require.NoError(t, err)
	got, err := f.ReadN(-1)
	require.NoError(t, err)
	assert.Equal(t, last, got)
}

func TestFull(t *testing.T) {
	fs, _ := newSmall(t)
	f, err := fs.Open("big", ModeWrite)
	require.NoError(t, err)

	_, err = f.Write(make([]byte, smallSize))
	var sw *ShortWriteError
	require.ErrorAs(t, err, &sw)
	assert.ErrorIs(t, err, ErrFull)
	assert.Contains(t, err.Error(), "wrote")

	_, err = f.Write([]byte("more"))
	assert.ErrorIs(t, err, ErrFull)
}

func TestFileBackedMountPersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flash.img")
	dev, err := blockdev.CreateFile(path, smallSize, smallBlock)
	require.NoError(t, err)

	fs, err := Mount(smallGeometry(), dev)
	require.NoError(t, err)
	require.NoError(t, fs.WithFile("persist", ModeWrite, func(f *File) error {
		_, err := f.WriteString("across reopen")
		return err
	}))
	require.NoError(t, fs.Unmount())
	require.NoError(t, dev.Close())

	dev, err = blockdev.OpenFile(path, smallBlock)
	require.NoError(t, err)
	defer dev.Close()

	fs, err = Mount(smallGeometry(), dev)
	require.NoError(t, err)
	f, err := fs.Open("persist", ModeRead)
	require.NoError(t, err)
	got, err := f.ReadN(-1)
	require.NoError(t, err)
	assert.Equal(t, "across reopen", string(got))
}

func TestMountAtOffset(t *testing.T) {
	mem, err := blockdev.NewMemory(2*smallSize, smallBlock)
	require.NoError(t, err)

	geo := smallGeometry()
	geo.PhysAddr = smallSize
	fs, err := Mount(geo, mem)
	require.NoError(t, err)
	require.NoError(t, fs.WithFile("f", ModeWrite, func(f *File) error {
		_, err := f.WriteString("high")
		return err
	}))

	raw := mem.Bytes()
	assert.Equal(t, testutil.Filled(smallSize, 0xFF), raw[:smallSize], "lower half untouched")
}

func TestMetricsAndLogging(t *testing.T) {
	var buf bytes.Buffer
	metrics := &BasicMetricsCollector{}
	logger := NewLogger(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	fs, dev := newSmall(t, WithMetricsCollector(metrics), WithLogger(logger))

	require.NoError(t, fs.WithFile("m", ModeWrite, func(f *File) error {
		_, err := f.WriteString("metrics")
		return err
	}))
	_, err := fs.Open("missing", ModeRead)
	require.Error(t, err)
	require.NoError(t, fs.Remove("m"))
	require.Error(t, fs.Rename("missing", "other"))
	require.Error(t, fs.Close(FD(99)))

	dev.SetFault(blockdev.Fault{FailAfterOps: -1, FailAfterBytes: -1, FailOnRead: true})
	_, err = fs.OpenFile("m2", Creat|RdWr)
	require.NoError(t, err, "create does not read")

	stats := metrics.GetStats()
	assert.Equal(t, int64(1), stats.MountCount)
	assert.Equal(t, int64(3), stats.OpenCount)
	assert.Equal(t, int64(1), stats.OpenErrors)
	assert.Equal(t, int64(1), stats.WriteCount)
	assert.Equal(t, int64(7), stats.WriteBytes)
	assert.Equal(t, int64(1), stats.RemoveCount)
	assert.Positive(t, stats.DeviceReads)
	assert.Positive(t, stats.DeviceWrites)

	out := buf.String()
	assert.Contains(t, out, "msg=mounted")
	assert.Contains(t, out, "msg=opened")
	assert.Contains(t, out, "msg=\"open failed\"")
	assert.Contains(t, out, "msg=removed")
	assert.Contains(t, out, "msg=\"rename failed\" path=missing to=other")
	assert.Contains(t, out, "msg=\"close failed\" fd=99")
}

func TestEngineError_Message(t *testing.T) {
	fs, _ := newSmall(t)
	_, err := fs.OpenFile("nope", RdOnly)
	assert.EqualError(t, err, "flashfs: open nope: not found (ERR_NOT_FOUND, -10002)")

	assert.Equal(t, "flashfs: not mounted (ERR_NOT_MOUNTED, -10000)", ErrNotMounted.Error())
	assert.False(t, errors.Is(err, ErrFull))
}
