package gguf

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

// Reader is a bounded little-endian cursor over a byte region. Every
// read checks the remaining length first; a failed read leaves the
// offset where it was.
type Reader struct {
	src  io.ReaderAt
	size int64
	pos  int64
	buf  [8]byte
}

// NewReader wraps a ReaderAt restricted to size bytes.
func NewReader(src io.ReaderAt, size int64) *Reader {
	return &Reader{src: src, size: size}
}

// NewBytesReader wraps an in-memory byte slice.
func NewBytesReader(data []byte) *Reader {
	return &Reader{src: bytesAt(data), size: int64(len(data))}
}

type bytesAt []byte

func (b bytesAt) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 || off >= int64(len(b)) {
		return 0, io.EOF
	}
	n := copy(p, b[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// Offset returns the current cursor position.
func (r *Reader) Offset() int64 { return r.pos }

// Size returns the total region length.
func (r *Reader) Size() int64 { return r.size }

// Remaining returns the bytes left between the cursor and region end.
func (r *Reader) Remaining() int64 { return r.size - r.pos }

// Seek moves the cursor to an absolute offset inside the region.
func (r *Reader) Seek(off int64) error {
	if off < 0 || off > r.size {
		return fmt.Errorf("%w: seek to %d outside region of %d bytes", ErrTruncated, off, r.size)
	}
	r.pos = off
	return nil
}

func (r *Reader) require(n int64, what string) error {
	if n < 0 || n > r.Remaining() {
		return fmt.Errorf("%w: need %d bytes for %s at offset %d, %d remain",
			ErrTruncated, n, what, r.pos, r.Remaining())
	}
	return nil
}

// read fills p from the current offset and advances past it.
func (r *Reader) read(p []byte, what string) error {
	if err := r.require(int64(len(p)), what); err != nil {
		return err
	}
	n, err := r.src.ReadAt(p, r.pos)
	if err != nil && !(err == io.EOF && n == len(p)) {
		return fmt.Errorf("gguf: read %s at offset %d: %w", what, r.pos, err)
	}
	r.pos += int64(len(p))
	return nil
}

// ReadBytes reads n raw bytes.
func (r *Reader) ReadBytes(n int64, what string) ([]byte, error) {
	if err := r.require(n, what); err != nil {
		return nil, err
	}
	p := make([]byte, n)
	if err := r.read(p, what); err != nil {
		return nil, err
	}
	return p, nil
}

func (r *Reader) ReadUint8(what string) (uint8, error) {
	b := r.buf[:1]
	if err := r.read(b, what); err != nil {
		return 0, err
	}
	return b[0], nil
}

func (r *Reader) ReadInt8(what string) (int8, error) {
	v, err := r.ReadUint8(what)
	return int8(v), err
}

func (r *Reader) ReadUint16(what string) (uint16, error) {
	b := r.buf[:2]
	if err := r.read(b, what); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

func (r *Reader) ReadInt16(what string) (int16, error) {
	v, err := r.ReadUint16(what)
	return int16(v), err
}

func (r *Reader) ReadUint32(what string) (uint32, error) {
	b := r.buf[:4]
	if err := r.read(b, what); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (r *Reader) ReadInt32(what string) (int32, error) {
	v, err := r.ReadUint32(what)
	return int32(v), err
}

func (r *Reader) ReadUint64(what string) (uint64, error) {
	b := r.buf[:8]
	if err := r.read(b, what); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

func (r *Reader) ReadFloat32(what string) (float32, error) {
	v, err := r.ReadUint32(what)
	return math.Float32frombits(v), err
}

// ReadString reads a length-prefixed string: uint64 byte count followed
// by that many raw bytes. On failure the cursor rewinds to where the
// length prefix began.
func (r *Reader) ReadString(what string) (string, error) {
	start := r.pos
	n, err := r.ReadUint64(what + " length")
	if err != nil {
		return "", err
	}
	if n > uint64(r.Remaining()) {
		avail := r.Remaining()
		r.pos = start
		return "", fmt.Errorf("%w: %s claims %d bytes, %d remain", ErrTruncated, what, n, avail)
	}
	p, err := r.ReadBytes(int64(n), what)
	if err != nil {
		r.pos = start
		return "", err
	}
	return string(p), nil
}
