package gguf

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Extractor reads tensor payloads from a decoded container region.
// Offsets in descriptors are relative to base, the start of the payload
// region.
type Extractor struct {
	r    *Reader
	base int64
}

// NewExtractor creates an extractor over r with the given payload base.
func NewExtractor(r *Reader, base int64) *Extractor {
	return &Extractor{r: r, base: base}
}

// Extract seeks to the descriptor's payload and returns its elements
// upcast to float32. F32 payloads are reinterpreted, F16 payloads are
// widened bit by bit; any other element type is unsupported.
func (e *Extractor) Extract(desc TensorDescriptor) (*TensorBuffer, error) {
	if len(desc.Dims) == 0 {
		return nil, fmt.Errorf("%w: tensor %q has no dimensions", ErrEmptyShape, desc.Name)
	}
	for _, dim := range desc.Dims {
		if dim == 0 {
			return nil, fmt.Errorf("%w: tensor %q has a zero dimension", ErrEmptyShape, desc.Name)
		}
	}

	total, err := desc.ByteSize()
	if err != nil {
		return nil, err
	}
	if desc.Offset > uint64(math.MaxInt64)-uint64(e.base) {
		return nil, fmt.Errorf("%w: tensor %q offset %d overflows", ErrTruncated, desc.Name, desc.Offset)
	}
	if err := e.r.Seek(e.base + int64(desc.Offset)); err != nil {
		return nil, fmt.Errorf("tensor %q: %w", desc.Name, err)
	}
	raw, err := e.r.ReadBytes(total, "tensor payload")
	if err != nil {
		return nil, fmt.Errorf("tensor %q: %w", desc.Name, err)
	}

	n, err := desc.ElementCount()
	if err != nil {
		return nil, err
	}
	data := make([]float32, n)
	switch desc.Type {
	case TensorF32:
		for i := range data {
			data[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4:]))
		}
	case TensorF16:
		for i := range data {
			data[i] = fp16ToF32(binary.LittleEndian.Uint16(raw[i*2:]))
		}
	}

	return &TensorBuffer{
		Name:  desc.Name,
		Shape: append([]uint64(nil), desc.Dims...),
		Data:  data,
	}, nil
}

// ExtractAll extracts every tensor in table order. Tensors with an
// unsupported element type are skipped and reported by name; any other
// failure aborts, since it means the container itself is damaged.
func (e *Extractor) ExtractAll(table []TensorDescriptor) ([]*TensorBuffer, []string, error) {
	buffers := make([]*TensorBuffer, 0, len(table))
	var skipped []string
	for _, desc := range table {
		if _, ok := desc.Type.ElementSize(); !ok {
			skipped = append(skipped, desc.Name)
			continue
		}
		buf, err := e.Extract(desc)
		if err != nil {
			return nil, skipped, err
		}
		buffers = append(buffers, buf)
	}
	return buffers, skipped, nil
}

// fp16ToF32 widens an IEEE 754 half-precision value. Subnormals are
// normalized by shifting the fraction up until the hidden bit appears;
// exponent 0x1F maps to Inf/NaN.
func fp16ToF32(h uint16) float32 {
	sign := uint32(h>>15) & 0x1
	exp := uint32(h>>10) & 0x1F
	frac := uint32(h & 0x3FF)
	var f uint32
	switch exp {
	case 0:
		if frac == 0 {
			f = sign << 31
		} else {
			e := uint32(127 - 15 + 1)
			for (frac & 0x400) == 0 {
				frac <<= 1
				e--
			}
			frac &= 0x3FF
			f = (sign << 31) | (e << 23) | (frac << 13)
		}
	case 0x1F:
		f = (sign << 31) | 0x7F800000 | (frac << 13)
	default:
		e := exp + (127 - 15)
		f = (sign << 31) | (e << 23) | (frac << 13)
	}
	return math.Float32frombits(f)
}
