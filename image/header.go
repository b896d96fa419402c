package image

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// HeaderSize is the encoded size of Header.
const HeaderSize = 16

// Version is the format version written by Save.
const Version = 1

var magic = [4]byte{'F', 'L', 'I', 'M'}

var (
	// ErrBadMagic is returned when a blob does not start with the image magic.
	ErrBadMagic = errors.New("image: bad magic")
	// ErrUnsupportedVersion is returned for images written by a newer format.
	ErrUnsupportedVersion = errors.New("image: unsupported version")
	// ErrUnknownCompression is returned for an unknown compression byte.
	ErrUnknownCompression = errors.New("image: unknown compression")
	// ErrChecksum is returned when the decoded image does not match its CRC.
	ErrChecksum = errors.New("image: checksum mismatch")
	// ErrSizeMismatch is returned when the image and the device differ in size.
	ErrSizeMismatch = errors.New("image: size mismatch")
	// ErrTruncated is returned for blobs shorter than a header.
	ErrTruncated = errors.New("image: truncated")
)

// Compression selects how the payload is encoded.
type Compression uint8

const (
	// CompressionNone stores the raw image.
	CompressionNone Compression = 0
	// CompressionLZ4 stores an LZ4 block.
	CompressionLZ4 Compression = 1
	// CompressionZSTD stores a ZSTD frame.
	CompressionZSTD Compression = 2
)

func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionLZ4:
		return "lz4"
	case CompressionZSTD:
		return "zstd"
	default:
		return fmt.Sprintf("compression(%d)", uint8(c))
	}
}

func (c Compression) valid() bool {
	return c <= CompressionZSTD
}

// Header describes a stored image.
type Header struct {
	Version     uint8
	Compression Compression
	RawSize     uint32
	Checksum    uint32
}

// MarshalBinary encodes the header.
func (h Header) MarshalBinary() ([]byte, error) {
	buf := make([]byte, HeaderSize)
	copy(buf, magic[:])
	buf[4] = h.Version
	buf[5] = byte(h.Compression)
	binary.LittleEndian.PutUint32(buf[8:], h.RawSize)
	binary.LittleEndian.PutUint32(buf[12:], h.Checksum)
	return buf, nil
}

// UnmarshalBinary decodes and validates a header.
func (h *Header) UnmarshalBinary(buf []byte) error {
	if len(buf) < HeaderSize {
		return ErrTruncated
	}
	if [4]byte(buf[:4]) != magic {
		return ErrBadMagic
	}
	if buf[4] == 0 || buf[4] > Version {
		return fmt.Errorf("%w: %d", ErrUnsupportedVersion, buf[4])
	}
	c := Compression(buf[5])
	if !c.valid() {
		return fmt.Errorf("%w: %d", ErrUnknownCompression, buf[5])
	}

	*h = Header{
		Version:     buf[4],
		Compression: c,
		RawSize:     binary.LittleEndian.Uint32(buf[8:]),
		Checksum:    binary.LittleEndian.Uint32(buf[12:]),
	}
	return nil
}
