package blockdev

import (
	"errors"
	"sync"
)

// ErrInjected is the default error returned by Faulty.
var ErrInjected = errors.New("blockdev: injected fault")

// Fault defines when a Faulty device fails.
type Fault struct {
	FailAfterOps   int   // Fail every operation once this many have succeeded. -1 to disable.
	FailAfterBytes int64 // Fail writes that would exceed this many bytes written. -1 to disable.
	FailOnRead     bool
	FailOnWrite    bool
	FailOnErase    bool
	Panic          bool // Panic with Err instead of returning it.
	Err            error
}

// NoFault is a Fault that never triggers.
var NoFault = Fault{FailAfterOps: -1, FailAfterBytes: -1}

// Faulty is a Device wrapper that can inject errors and panics. A failing
// operation never reaches the wrapped device.
type Faulty struct {
	dev Device

	mu      sync.Mutex
	fault   Fault
	ops     int
	written int64
}

// NewFaulty wraps dev with fault injection disabled.
func NewFaulty(dev Device) *Faulty {
	return &Faulty{dev: dev, fault: NoFault}
}

// SetFault replaces the active fault and resets the counters.
func (f *Faulty) SetFault(fault Fault) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fault = fault
	f.ops = 0
	f.written = 0
}

// Ops returns the number of operations that reached the wrapped device.
func (f *Faulty) Ops() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ops
}

// Read implements Device.
func (f *Faulty) Read(addr uint32, dst []byte) error {
	if err := f.admit(OpRead, 0); err != nil {
		return err
	}
	return f.dev.Read(addr, dst)
}

// Write implements Device.
func (f *Faulty) Write(addr uint32, src []byte) error {
	if err := f.admit(OpWrite, len(src)); err != nil {
		return err
	}
	return f.dev.Write(addr, src)
}

// Erase implements Device.
func (f *Faulty) Erase(addr, size uint32) error {
	if err := f.admit(OpErase, 0); err != nil {
		return err
	}
	return f.dev.Erase(addr, size)
}

// Size implements Device.
func (f *Faulty) Size() uint32 { return f.dev.Size() }

// EraseBlockSize implements Device.
func (f *Faulty) EraseBlockSize() uint32 { return f.dev.EraseBlockSize() }

func (f *Faulty) admit(op Op, n int) error {
	f.mu.Lock()
	fault := f.fault

	fail := false
	switch {
	case fault.FailAfterOps >= 0 && f.ops >= fault.FailAfterOps:
		fail = true
	case op == OpRead && fault.FailOnRead,
		op == OpWrite && fault.FailOnWrite,
		op == OpErase && fault.FailOnErase:
		fail = true
	case op == OpWrite && fault.FailAfterBytes >= 0 && f.written+int64(n) > fault.FailAfterBytes:
		fail = true
	}

	if !fail {
		f.ops++
		if op == OpWrite {
			f.written += int64(n)
		}
	}
	f.mu.Unlock()

	if !fail {
		return nil
	}

	err := fault.Err
	if err == nil {
		err = ErrInjected
	}
	if fault.Panic {
		panic(err)
	}
	return err
}
