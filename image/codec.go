package image

import (
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

var (
	zstdEncoderPool sync.Pool
	zstdDecoderPool sync.Pool
)

func getZstdEncoder() (*zstd.Encoder, error) {
	if v := zstdEncoderPool.Get(); v != nil {
		return v.(*zstd.Encoder), nil
	}
	return zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
}

func getZstdDecoder() (*zstd.Decoder, error) {
	if v := zstdDecoderPool.Get(); v != nil {
		return v.(*zstd.Decoder), nil
	}
	return zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
}

// encode compresses raw. It reports CompressionNone when the requested
// codec does not shrink the image.
func encode(raw []byte, c Compression) ([]byte, Compression, error) {
	var (
		out []byte
		err error
	)
	switch c {
	case CompressionNone:
		return raw, CompressionNone, nil
	case CompressionLZ4:
		out, err = encodeLZ4(raw)
	case CompressionZSTD:
		out, err = encodeZSTD(raw)
	default:
		return nil, 0, fmt.Errorf("%w: %d", ErrUnknownCompression, uint8(c))
	}
	if err != nil {
		return nil, 0, err
	}
	if len(out) == 0 || len(out) >= len(raw) {
		return raw, CompressionNone, nil
	}
	return out, c, nil
}

func encodeLZ4(raw []byte) ([]byte, error) {
	dst := make([]byte, lz4.CompressBlockBound(len(raw)))
	var c lz4.Compressor
	n, err := c.CompressBlock(raw, dst)
	if err != nil {
		return nil, err
	}
	// n == 0 means incompressible.
	return dst[:n], nil
}

func encodeZSTD(raw []byte) ([]byte, error) {
	enc, err := getZstdEncoder()
	if err != nil {
		return nil, err
	}
	defer zstdEncoderPool.Put(enc)
	return enc.EncodeAll(raw, nil), nil
}

// decode expands payload into exactly rawSize bytes.
func decode(payload []byte, c Compression, rawSize uint32) ([]byte, error) {
	switch c {
	case CompressionNone:
		if uint32(len(payload)) != rawSize {
			return nil, fmt.Errorf("%w: payload %d, header %d", ErrSizeMismatch, len(payload), rawSize)
		}
		return payload, nil

	case CompressionLZ4:
		out := make([]byte, rawSize)
		n, err := lz4.UncompressBlock(payload, out)
		if err != nil {
			return nil, fmt.Errorf("image: lz4: %w", err)
		}
		if uint32(n) != rawSize {
			return nil, fmt.Errorf("%w: decoded %d, header %d", ErrSizeMismatch, n, rawSize)
		}
		return out, nil

	case CompressionZSTD:
		dec, err := getZstdDecoder()
		if err != nil {
			return nil, err
		}
		defer zstdDecoderPool.Put(dec)

		out, err := dec.DecodeAll(payload, make([]byte, 0, rawSize))
		if err != nil {
			return nil, fmt.Errorf("image: zstd: %w", err)
		}
		if uint32(len(out)) != rawSize {
			return nil, fmt.Errorf("%w: decoded %d, header %d", ErrSizeMismatch, len(out), rawSize)
		}
		return out, nil

	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownCompression, uint8(c))
	}
}
