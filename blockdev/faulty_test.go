package blockdev

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFaulty(t *testing.T) (*Faulty, *Memory) {
	t.Helper()
	mem, err := NewMemory(testSize, testEraseBlock)
	require.NoError(t, err)
	return NewFaulty(mem), mem
}

func TestFaulty_FailAfterOps(t *testing.T) {
	f, _ := newFaulty(t)
	f.SetFault(Fault{FailAfterOps: 2, FailAfterBytes: -1})

	buf := make([]byte, 4)
	require.NoError(t, f.Read(0, buf))
	require.NoError(t, f.Write(0, buf))
	assert.ErrorIs(t, f.Read(0, buf), ErrInjected)
	assert.Equal(t, 2, f.Ops())
}

func TestFaulty_FailOnKind(t *testing.T) {
	f, mem := newFaulty(t)
	custom := errors.New("bus error")
	f.SetFault(Fault{FailAfterOps: -1, FailAfterBytes: -1, FailOnErase: true, Err: custom})

	require.NoError(t, f.Write(0, []byte{0}))
	assert.ErrorIs(t, f.Erase(0, testEraseBlock), custom)

	// The failed erase never reached the device.
	assert.Equal(t, byte(0), mem.Bytes()[0])
}

func TestFaulty_FailAfterBytes(t *testing.T) {
	f, mem := newFaulty(t)
	f.SetFault(Fault{FailAfterOps: -1, FailAfterBytes: 6})

	require.NoError(t, f.Write(0, []byte{1, 2, 3, 4}))
	assert.ErrorIs(t, f.Write(4, []byte{5, 6, 7}), ErrInjected)
	require.NoError(t, f.Write(4, []byte{5, 6}))

	assert.Equal(t, []byte{1, 2, 3, 4, 5, 6, Erased}, mem.Bytes()[:7])
}

func TestFaulty_Panic(t *testing.T) {
	f, _ := newFaulty(t)
	f.SetFault(Fault{FailAfterOps: -1, FailAfterBytes: -1, FailOnRead: true, Panic: true})

	assert.PanicsWithValue(t, ErrInjected, func() {
		_ = f.Read(0, make([]byte, 1))
	})
}

func TestFaulty_SetFaultResetsCounters(t *testing.T) {
	f, _ := newFaulty(t)
	f.SetFault(Fault{FailAfterOps: 1, FailAfterBytes: -1})
	require.NoError(t, f.Read(0, make([]byte, 1)))
	require.Error(t, f.Read(0, make([]byte, 1)))

	f.SetFault(NoFault)
	assert.Equal(t, 0, f.Ops())
	assert.NoError(t, f.Read(0, make([]byte, 1)))
}
