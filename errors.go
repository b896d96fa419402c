package flashfs

import (
	"errors"
	"fmt"

	"github.com/hupe1980/flashfs/hal"
)

var (
	// ErrInvalidMode is returned for an unrecognized open mode string.
	ErrInvalidMode = errors.New("flashfs: invalid open mode")
	// ErrInvalidGeometry is returned when a Geometry is inconsistent or does
	// not fit the device.
	ErrInvalidGeometry = errors.New("flashfs: invalid geometry")
	// ErrNegativeCount is returned by FS.Read for a negative byte count.
	ErrNegativeCount = errors.New("flashfs: negative read count")
)

// Sentinels for the engine statuses callers most often branch on. They match
// any *EngineError with the same code through errors.Is.
var (
	ErrNotMounted           = sentinel(hal.StatusNotMounted)
	ErrFull                 = sentinel(hal.StatusFull)
	ErrNotFound             = sentinel(hal.StatusNotFound)
	ErrEndOfObject          = sentinel(hal.StatusEndOfObject)
	ErrOutOfFileDescriptors = sentinel(hal.StatusOutOfFileDescriptors)
	ErrFileClosed           = sentinel(hal.StatusFileClosed)
	ErrFileDeleted          = sentinel(hal.StatusFileDeleted)
	ErrBadDescriptor        = sentinel(hal.StatusBadDescriptor)
	ErrNotWritable          = sentinel(hal.StatusNotWritable)
	ErrNotReadable          = sentinel(hal.StatusNotReadable)
	ErrConflictingName      = sentinel(hal.StatusConflictingName)
	ErrNotConfigured        = sentinel(hal.StatusNotConfigured)
	ErrNotAFilesystem       = sentinel(hal.StatusNotAFilesystem)
	ErrFileExists           = sentinel(hal.StatusFileExists)
	ErrProbeTooFewBlocks    = sentinel(hal.StatusProbeTooFewBlocks)
	ErrNameTooLong          = sentinel(hal.StatusNameTooLong)
	ErrSeekBounds           = sentinel(hal.StatusSeekBounds)
	ErrCallbackFailed       = sentinel(hal.StatusCallbackFailed)
)

func sentinel(code hal.Status) *EngineError {
	return &EngineError{Code: code, Symbol: code.Symbol()}
}

// CallbackFailure is the detail of a failed device callback. It is reachable
// with errors.As from an EngineError whose code is hal.StatusCallbackFailed.
type CallbackFailure = hal.CallbackFailure

// EngineError reports a negative engine status.
//
// Code is the raw status and Symbol its registry name. When the status stems
// from a failed device callback, the *CallbackFailure can be accessed via
// errors.Unwrap.
type EngineError struct {
	Op     string
	Path   string
	Code   hal.Status
	Symbol string
	cause  error
}

func (e *EngineError) Error() string {
	var prefix string
	switch {
	case e.Op != "" && e.Path != "":
		prefix = fmt.Sprintf("flashfs: %s %s: ", e.Op, e.Path)
	case e.Op != "":
		prefix = fmt.Sprintf("flashfs: %s: ", e.Op)
	default:
		prefix = "flashfs: "
	}

	msg := fmt.Sprintf("%s%s (%s, %d)", prefix, e.Code, e.Symbol, int32(e.Code))
	if e.cause != nil {
		msg += ": " + e.cause.Error()
	}
	return msg
}

func (e *EngineError) Unwrap() error { return e.cause }

// Is matches any *EngineError carrying the same code.
func (e *EngineError) Is(target error) bool {
	t, ok := target.(*EngineError)
	return ok && t.Code == e.Code
}

// ShortWriteError reports a write the engine accepted only partially.
type ShortWriteError struct {
	Path      string
	Requested int
	Written   int
	cause     error
}

func (e *ShortWriteError) Error() string {
	msg := fmt.Sprintf("flashfs: short write %s: wrote %d of %d bytes", e.Path, e.Written, e.Requested)
	if e.cause != nil {
		msg += ": " + e.cause.Error()
	}
	return msg
}

func (e *ShortWriteError) Unwrap() error { return e.cause }

// translateStatus turns a raw engine result into an error. Non-negative
// results are success.
func (fs *FS) translateStatus(op, path string, code int32) error {
	if code >= 0 {
		return nil
	}

	st := hal.Status(code)
	e := &EngineError{Op: op, Path: path, Code: st, Symbol: st.Symbol()}
	if st == hal.StatusCallbackFailed {
		if f := fs.adapter.TakeFailure(); f != nil {
			e.cause = f
		}
	}
	return e
}
