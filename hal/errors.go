package hal

import (
	"errors"
	"fmt"

	"github.com/hupe1980/flashfs/blockdev"
)

var (
	// ErrCallbackPanic is wrapped by failures recovered from a panicking backend.
	ErrCallbackPanic = errors.New("hal: device callback panicked")
	// ErrShortBuffer is returned when the engine passes a buffer smaller than size.
	ErrShortBuffer = errors.New("hal: buffer shorter than requested size")
)

// CallbackFailure records a read, write or erase callback that did not
// succeed.
type CallbackFailure struct {
	Op   blockdev.Op
	Addr uint32
	Size uint32
	Err  error
}

func (e *CallbackFailure) Error() string {
	return fmt.Sprintf("hal: %s callback at %#x (+%d bytes) failed: %v", e.Op, e.Addr, e.Size, e.Err)
}

func (e *CallbackFailure) Unwrap() error {
	return e.Err
}
