package hal

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hupe1980/flashfs/blockdev"
)

// Observer is notified after every callback.
type Observer func(op blockdev.Op, size uint32, elapsed time.Duration, err error)

// AdapterOption configures an Adapter.
type AdapterOption func(*Adapter)

// WithLogger sets the logger used for callback failures.
func WithLogger(l *slog.Logger) AdapterOption {
	return func(a *Adapter) {
		if l != nil {
			a.logger = l
		}
	}
}

// WithObserver installs a per-callback observer.
func WithObserver(o Observer) AdapterOption {
	return func(a *Adapter) {
		a.observer = o
	}
}

// Adapter owns a device and the callback closures bound to it. The closures
// are created once in NewAdapter and stay valid for the adapter's lifetime.
type Adapter struct {
	dev      blockdev.Device
	logger   *slog.Logger
	observer Observer
	cbs      Callbacks

	mu       sync.Mutex
	last     *CallbackFailure
	failures uint64
}

// NewAdapter binds dev to a fresh callback triple.
func NewAdapter(dev blockdev.Device, opts ...AdapterOption) *Adapter {
	a := &Adapter{
		dev:    dev,
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(a)
	}

	a.cbs = Callbacks{
		Read: func(addr, size uint32, dst []byte) Status {
			return a.call(blockdev.OpRead, addr, size, func() error {
				if uint64(len(dst)) < uint64(size) {
					return ErrShortBuffer
				}
				return a.dev.Read(addr, dst[:size])
			})
		},
		Write: func(addr, size uint32, src []byte) Status {
			return a.call(blockdev.OpWrite, addr, size, func() error {
				if uint64(len(src)) < uint64(size) {
					return ErrShortBuffer
				}
				return a.dev.Write(addr, src[:size])
			})
		},
		Erase: func(addr, size uint32) Status {
			return a.call(blockdev.OpErase, addr, size, func() error {
				return a.dev.Erase(addr, size)
			})
		},
	}

	return a
}

// Callbacks returns the callback triple bound to the device.
func (a *Adapter) Callbacks() Callbacks {
	return a.cbs
}

// Device returns the wrapped device.
func (a *Adapter) Device() blockdev.Device {
	return a.dev
}

// TakeFailure returns the most recent callback failure and clears it.
func (a *Adapter) TakeFailure() *CallbackFailure {
	a.mu.Lock()
	defer a.mu.Unlock()

	f := a.last
	a.last = nil
	return f
}

// Failures returns the number of failed callbacks since creation.
func (a *Adapter) Failures() uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.failures
}

func (a *Adapter) call(op blockdev.Op, addr, size uint32, fn func() error) (status Status) {
	start := time.Now()

	var err error
	defer func() {
		if r := recover(); r != nil {
			if e, ok := r.(error); ok {
				err = fmt.Errorf("%w: %w", ErrCallbackPanic, e)
			} else {
				err = fmt.Errorf("%w: %v", ErrCallbackPanic, r)
			}
		}

		if a.observer != nil {
			a.observer(op, size, time.Since(start), err)
		}

		if err == nil {
			status = StatusOK
			return
		}

		a.fail(&CallbackFailure{Op: op, Addr: addr, Size: size, Err: err})
		status = StatusCallbackFailed
	}()

	err = fn()

	return StatusOK
}

func (a *Adapter) fail(f *CallbackFailure) {
	a.mu.Lock()
	a.last = f
	a.failures++
	a.mu.Unlock()

	a.logger.LogAttrs(context.Background(), slog.LevelWarn, "device callback failed",
		slog.String("op", f.Op.String()),
		slog.Uint64("addr", uint64(f.Addr)),
		slog.Uint64("size", uint64(f.Size)),
		slog.String("error", f.Err.Error()),
	)
}
