// Package seqio reads and writes int32 sequences for the gpuscan command.
//
// A file starts with a 16-byte header:
//
//	[0:4]   magic "GSQ1"
//	[4]     codec (0 none, 1 lz4, 2 zstd)
//	[5:8]   reserved, zero
//	[8:16]  element count, little-endian uint64
//
// followed by the payload: count little-endian int32 values, compressed
// with the codec. An lz4 payload that does not compress is stored raw and
// marked with codec none.
package seqio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

const (
	magic      = "GSQ1"
	headerSize = 16

	// maxBytes bounds the decoded payload of one file.
	maxBytes = 1 << 30

	// maxCount bounds the element count accepted from a header.
	maxCount = maxBytes / 4

	// lz4MaxRatio bounds how far an lz4 block can expand.
	lz4MaxRatio = 255
)

var (
	// ErrFormat is returned for input that is not a sequence file.
	ErrFormat = errors.New("seqio: invalid sequence file")

	// ErrCodec is returned for an unknown codec byte.
	ErrCodec = errors.New("seqio: unknown codec")
)

// Codec selects the payload compression.
type Codec uint8

const (
	CodecNone Codec = 0
	CodecLZ4  Codec = 1
	CodecZstd Codec = 2
)

// String returns the codec name.
func (c Codec) String() string {
	switch c {
	case CodecNone:
		return "none"
	case CodecLZ4:
		return "lz4"
	case CodecZstd:
		return "zstd"
	default:
		return fmt.Sprintf("Codec(%d)", uint8(c))
	}
}

// CodecFor picks the codec from a file extension: .lz4 or .zst,
// anything else is stored raw.
func CodecFor(path string) Codec {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".lz4":
		return CodecLZ4
	case ".zst", ".zstd":
		return CodecZstd
	default:
		return CodecNone
	}
}

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
	return zstd.NewReader(nil, zstd.WithDecoderMaxMemory(maxBytes))
}

// Write encodes xs to w.
func Write(w io.Writer, xs []int32, c Codec) error {
	raw := make([]byte, len(xs)*4)
	for i, x := range xs {
		binary.LittleEndian.PutUint32(raw[i*4:], uint32(x))
	}

	payload, c, err := compress(raw, c)
	if err != nil {
		return err
	}

	var hdr [headerSize]byte
	copy(hdr[:4], magic)
	hdr[4] = byte(c)
	binary.LittleEndian.PutUint64(hdr[8:], uint64(len(xs)))
	if _, err := w.Write(hdr[:]); err != nil {
		return fmt.Errorf("seqio: write header: %w", err)
	}
	if _, err := w.Write(payload); err != nil {
		return fmt.Errorf("seqio: write payload: %w", err)
	}
	return nil
}

func compress(raw []byte, c Codec) ([]byte, Codec, error) {
	switch c {
	case CodecNone:
		return raw, CodecNone, nil
	case CodecLZ4:
		if len(raw) == 0 {
			return raw, CodecNone, nil
		}
		dst := make([]byte, lz4.CompressBlockBound(len(raw)))
		n, err := lz4.CompressBlock(raw, dst, nil)
		if err != nil {
			return nil, c, fmt.Errorf("seqio: lz4: %w", err)
		}
		if n == 0 {
			return raw, CodecNone, nil
		}
		return dst[:n], CodecLZ4, nil
	case CodecZstd:
		enc, err := getZstdEncoder()
		if err != nil {
			return nil, c, fmt.Errorf("seqio: zstd: %w", err)
		}
		defer zstdEncoderPool.Put(enc)
		return enc.EncodeAll(raw, nil), CodecZstd, nil
	default:
		return nil, c, fmt.Errorf("%w: %d", ErrCodec, uint8(c))
	}
}

// Read decodes a sequence from r.
func Read(r io.Reader) ([]int32, error) {
	var hdr [headerSize]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, fmt.Errorf("%w: short header: %v", ErrFormat, err)
	}
	if string(hdr[:4]) != magic {
		return nil, fmt.Errorf("%w: bad magic %q", ErrFormat, hdr[:4])
	}
	c := Codec(hdr[4])
	count := binary.LittleEndian.Uint64(hdr[8:])
	if count > maxCount {
		return nil, fmt.Errorf("%w: element count %d too large", ErrFormat, count)
	}

	payload, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("seqio: read payload: %w", err)
	}
	raw, err := decompress(payload, c, int(count)*4)
	if err != nil {
		return nil, err
	}
	if len(raw) != int(count)*4 {
		return nil, fmt.Errorf("%w: payload holds %d bytes, want %d", ErrFormat, len(raw), count*4)
	}

	out := make([]int32, count)
	for i := range out {
		out[i] = int32(binary.LittleEndian.Uint32(raw[i*4:]))
	}
	return out, nil
}

func decompress(payload []byte, c Codec, size int) ([]byte, error) {
	switch c {
	case CodecNone:
		return payload, nil
	case CodecLZ4:
		if size > len(payload)*lz4MaxRatio {
			return nil, fmt.Errorf("%w: lz4 payload of %d bytes cannot hold %d", ErrFormat, len(payload), size)
		}
		dst := make([]byte, size)
		n, err := lz4.UncompressBlock(payload, dst)
		if err != nil {
			return nil, fmt.Errorf("%w: lz4: %v", ErrFormat, err)
		}
		return dst[:n], nil
	case CodecZstd:
		dec, err := getZstdDecoder()
		if err != nil {
			return nil, fmt.Errorf("seqio: zstd: %w", err)
		}
		defer zstdDecoderPool.Put(dec)
		raw, err := dec.DecodeAll(payload, nil)
		if err != nil {
			return nil, fmt.Errorf("%w: zstd: %v", ErrFormat, err)
		}
		return raw, nil
	default:
		return nil, fmt.Errorf("%w: %d", ErrCodec, uint8(c))
	}
}

// WriteFile writes xs to path with the codec chosen by CodecFor.
func WriteFile(path string, xs []int32) error {
	var buf bytes.Buffer
	if err := Write(&buf, xs, CodecFor(path)); err != nil {
		return err
	}
	return os.WriteFile(path, buf.Bytes(), 0o644)
}

// ReadFile reads a sequence file. The codec comes from the header, not the
// file name.
func ReadFile(path string) ([]int32, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	xs, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return xs, nil
}
