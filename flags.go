package flashfs

import (
	"fmt"
	"strings"

	"github.com/hupe1980/flashfs/internal/engine"
)

// Flags is the open flag bit-set passed to OpenFile.
type Flags uint32

// Open flags.
const (
	Append Flags = Flags(engine.FlagAppend)
	Trunc  Flags = Flags(engine.FlagTrunc)
	Creat  Flags = Flags(engine.FlagCreat)
	RdOnly Flags = Flags(engine.FlagRdOnly)
	WrOnly Flags = Flags(engine.FlagWrOnly)
	RdWr   Flags = RdOnly | WrOnly
	Direct Flags = Flags(engine.FlagDirect)
	Excl   Flags = Flags(engine.FlagExcl)
)

func (f Flags) String() string {
	if f == 0 {
		return "0"
	}
	names := []struct {
		bit  Flags
		name string
	}{
		{Append, "APPEND"}, {Trunc, "TRUNC"}, {Creat, "CREAT"}, {RdOnly, "RDONLY"},
		{WrOnly, "WRONLY"}, {Direct, "DIRECT"}, {Excl, "EXCL"},
	}
	var parts []string
	for _, n := range names {
		if f&n.bit != 0 {
			parts = append(parts, n.name)
			f &^= n.bit
		}
	}
	if f != 0 {
		parts = append(parts, fmt.Sprintf("%#x", uint32(f)))
	}
	return strings.Join(parts, "|")
}

// OpenMode is a stdio-style open mode.
type OpenMode string

// Supported open modes.
const (
	ModeRead       OpenMode = "r"
	ModeReadWrite  OpenMode = "r+"
	ModeWrite      OpenMode = "w"
	ModeWriteRead  OpenMode = "w+"
	ModeAppend     OpenMode = "a"
	ModeAppendRead OpenMode = "a+"
)

// ParseOpenMode parses a mode string such as "r", "w+" or "ab". The binary
// marker b is accepted and ignored.
func ParseOpenMode(s string) (OpenMode, error) {
	m := OpenMode(strings.ReplaceAll(s, "b", ""))
	if _, ok := m.flags(); !ok {
		return "", fmt.Errorf("%w: %q", ErrInvalidMode, s)
	}
	return m, nil
}

// Flags returns the flag set for m, or 0 if m is not a known mode.
func (m OpenMode) Flags() Flags {
	f, _ := m.flags()
	return f
}

func (m OpenMode) flags() (Flags, bool) {
	switch m {
	case ModeRead:
		return RdOnly, true
	case ModeReadWrite:
		return RdWr, true
	case ModeWrite:
		return WrOnly | Trunc | Creat, true
	case ModeWriteRead:
		return RdWr | Trunc | Creat, true
	case ModeAppend:
		return WrOnly, true
	case ModeAppendRead:
		return RdWr, true
	}
	return 0, false
}

// seeksToEnd reports whether the cursor starts at end of file.
func (m OpenMode) seeksToEnd() bool {
	return m == ModeAppend || m == ModeAppendRead
}

// Whence is the origin of a seek.
type Whence int

// Seek origins. They have the values of io.SeekStart, io.SeekCurrent and
// io.SeekEnd.
const (
	SeekSet Whence = engine.SeekSet
	SeekCur Whence = engine.SeekCur
	SeekEnd Whence = engine.SeekEnd
)

// FD is an open file descriptor.
type FD int32
