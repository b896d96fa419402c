package hal

import (
	"bytes"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/flashfs/blockdev"
)

type mockDevice struct {
	mock.Mock
}

func (m *mockDevice) Read(addr uint32, dst []byte) error {
	args := m.Called(addr, dst)
	return args.Error(0)
}

func (m *mockDevice) Write(addr uint32, src []byte) error {
	args := m.Called(addr, src)
	return args.Error(0)
}

func (m *mockDevice) Erase(addr, size uint32) error {
	args := m.Called(addr, size)
	return args.Error(0)
}

func (m *mockDevice) Size() uint32           { return 4096 }
func (m *mockDevice) EraseBlockSize() uint32 { return 1024 }

func newMemory(t *testing.T) *blockdev.Memory {
	t.Helper()
	mem, err := blockdev.NewMemory(8*1024, 1024)
	require.NoError(t, err)
	return mem
}

func TestAdapter_RoundTrip(t *testing.T) {
	a := NewAdapter(newMemory(t))
	cbs := a.Callbacks()

	require.Equal(t, StatusOK, cbs.Write(100, 5, []byte("hello world")))

	dst := make([]byte, 8)
	require.Equal(t, StatusOK, cbs.Read(100, 5, dst))
	assert.Equal(t, []byte("hello"), dst[:5])
	assert.Equal(t, []byte{0, 0, 0}, dst[5:], "bytes beyond size untouched")

	require.Equal(t, StatusOK, cbs.Erase(0, 1024))
	require.Equal(t, StatusOK, cbs.Read(100, 5, dst))
	assert.Equal(t, bytes.Repeat([]byte{0xFF}, 5), dst[:5])

	assert.Nil(t, a.TakeFailure())
	assert.Zero(t, a.Failures())
}

func TestAdapter_DeviceErrorBecomesStatus(t *testing.T) {
	a := NewAdapter(newMemory(t))

	st := a.Callbacks().Erase(100, 1024)
	assert.Equal(t, StatusCallbackFailed, st)

	f := a.TakeFailure()
	require.NotNil(t, f)
	assert.Equal(t, blockdev.OpErase, f.Op)
	assert.Equal(t, uint32(100), f.Addr)
	assert.ErrorIs(t, f, blockdev.ErrMisaligned)
	assert.Equal(t, uint64(1), a.Failures())

	assert.Nil(t, a.TakeFailure(), "failure is cleared once taken")
}

func TestAdapter_ShortBuffer(t *testing.T) {
	a := NewAdapter(newMemory(t))

	assert.Equal(t, StatusCallbackFailed, a.Callbacks().Read(0, 16, make([]byte, 4)))
	assert.ErrorIs(t, a.TakeFailure(), ErrShortBuffer)

	assert.Equal(t, StatusCallbackFailed, a.Callbacks().Write(0, 16, make([]byte, 4)))
	assert.ErrorIs(t, a.TakeFailure(), ErrShortBuffer)
}

func TestAdapter_RecoversPanic(t *testing.T) {
	boom := errors.New("bus fault")
	dev := blockdev.NewFaulty(newMemory(t))
	dev.SetFault(blockdev.Fault{FailAfterOps: -1, FailAfterBytes: -1, FailOnWrite: true, Panic: true, Err: boom})

	a := NewAdapter(dev)

	var st Status
	require.NotPanics(t, func() {
		st = a.Callbacks().Write(0, 1, []byte{0})
	})
	assert.Equal(t, StatusCallbackFailed, st)

	f := a.TakeFailure()
	require.NotNil(t, f)
	assert.ErrorIs(t, f, ErrCallbackPanic)
	assert.ErrorIs(t, f, boom)
}

func TestAdapter_RecoversNonErrorPanic(t *testing.T) {
	dev := &mockDevice{}
	dev.On("Read", uint32(0), mock.Anything).Run(func(mock.Arguments) {
		panic("index out of range")
	})

	a := NewAdapter(dev)
	assert.Equal(t, StatusCallbackFailed, a.Callbacks().Read(0, 1, make([]byte, 1)))

	f := a.TakeFailure()
	require.NotNil(t, f)
	assert.ErrorIs(t, f, ErrCallbackPanic)
	assert.Contains(t, f.Error(), "index out of range")
}

func TestAdapter_PassesExactSlice(t *testing.T) {
	dev := &mockDevice{}
	dev.On("Write", uint32(64), []byte{1, 2}).Return(nil).Once()
	dev.On("Erase", uint32(1024), uint32(2048)).Return(nil).Once()

	a := NewAdapter(dev)
	assert.Equal(t, StatusOK, a.Callbacks().Write(64, 2, []byte{1, 2, 3}))
	assert.Equal(t, StatusOK, a.Callbacks().Erase(1024, 2048))

	dev.AssertExpectations(t)
}

func TestAdapter_LogsFailures(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	a := NewAdapter(newMemory(t), WithLogger(logger))
	a.Callbacks().Read(8*1024, 1, make([]byte, 1))

	out := buf.String()
	assert.Contains(t, out, "level=WARN")
	assert.Contains(t, out, "device callback failed")
	assert.Contains(t, out, "op=read")
}

func TestAdapter_Observer(t *testing.T) {
	type call struct {
		op   blockdev.Op
		size uint32
		err  bool
	}
	var calls []call

	a := NewAdapter(newMemory(t), WithObserver(func(op blockdev.Op, size uint32, _ time.Duration, err error) {
		calls = append(calls, call{op, size, err != nil})
	}))

	cbs := a.Callbacks()
	cbs.Write(0, 4, make([]byte, 4))
	cbs.Read(0, 4, make([]byte, 4))
	cbs.Erase(3, 1024)

	assert.Equal(t, []call{
		{blockdev.OpWrite, 4, false},
		{blockdev.OpRead, 4, false},
		{blockdev.OpErase, 1024, true},
	}, calls)
}

func TestAdapter_CallbacksAreStable(t *testing.T) {
	mem := newMemory(t)
	a := NewAdapter(mem)
	assert.Same(t, mem, a.Device())

	first := a.Callbacks()
	second := a.Callbacks()
	assert.Equal(t, StatusOK, first.Write(0, 1, []byte{0x0F}))

	dst := make([]byte, 1)
	assert.Equal(t, StatusOK, second.Read(0, 1, dst))
	assert.Equal(t, byte(0x0F), dst[0])
}
