// Package gguf implements reading and writing of GGUF tensor containers:
// a little-endian header, a typed metadata key/value block, a tensor
// descriptor table and a payload region holding the tensor data itself.
// Decoding is strict: unknown metadata tags and truncated streams fail
// with typed sentinel errors instead of guessing.
package gguf

import (
	"errors"
	"fmt"
	"math"
	"os"
)

// Magic is the four-byte signature at the start of every container.
const Magic = "GGUF"

// DefaultAlignment is the payload alignment used when the container does
// not carry a general.alignment metadata entry.
const DefaultAlignment = 32

var (
	ErrBadMagic              = errors.New("gguf: bad magic")
	ErrTruncated             = errors.New("gguf: truncated stream")
	ErrUnknownValueType      = errors.New("gguf: unknown metadata value type")
	ErrEmptyShape            = errors.New("gguf: empty tensor shape")
	ErrUnsupportedTensorType = errors.New("gguf: unsupported tensor element type")
)

// ValueType tags a metadata value. The set is closed: a tag outside it is
// a hard decode failure, never a skipped entry.
type ValueType uint32

const (
	ValueUint8 ValueType = iota
	ValueInt8
	ValueUint16
	ValueInt16
	ValueUint32
	ValueInt32
	ValueFloat32
	ValueBool
	ValueString
)

func (t ValueType) String() string {
	switch t {
	case ValueUint8:
		return "uint8"
	case ValueInt8:
		return "int8"
	case ValueUint16:
		return "uint16"
	case ValueInt16:
		return "int16"
	case ValueUint32:
		return "uint32"
	case ValueInt32:
		return "int32"
	case ValueFloat32:
		return "float32"
	case ValueBool:
		return "bool"
	case ValueString:
		return "string"
	default:
		return fmt.Sprintf("unknown(%d)", uint32(t))
	}
}

// MetadataValue is one decoded metadata entry. Exactly one variant field
// is populated, selected by Type.
type MetadataValue struct {
	Type    ValueType
	Uint8   uint8
	Int8    int8
	Uint16  uint16
	Int16   int16
	Uint32  uint32
	Int32   int32
	Float32 float32
	Bool    bool
	Str     string
}

func Uint8Value(v uint8) MetadataValue     { return MetadataValue{Type: ValueUint8, Uint8: v} }
func Int8Value(v int8) MetadataValue       { return MetadataValue{Type: ValueInt8, Int8: v} }
func Uint16Value(v uint16) MetadataValue   { return MetadataValue{Type: ValueUint16, Uint16: v} }
func Int16Value(v int16) MetadataValue     { return MetadataValue{Type: ValueInt16, Int16: v} }
func Uint32Value(v uint32) MetadataValue   { return MetadataValue{Type: ValueUint32, Uint32: v} }
func Int32Value(v int32) MetadataValue     { return MetadataValue{Type: ValueInt32, Int32: v} }
func Float32Value(v float32) MetadataValue { return MetadataValue{Type: ValueFloat32, Float32: v} }
func BoolValue(v bool) MetadataValue       { return MetadataValue{Type: ValueBool, Bool: v} }
func StringValue(v string) MetadataValue   { return MetadataValue{Type: ValueString, Str: v} }

// Any returns the populated variant as a plain Go value.
func (v MetadataValue) Any() any {
	switch v.Type {
	case ValueUint8:
		return v.Uint8
	case ValueInt8:
		return v.Int8
	case ValueUint16:
		return v.Uint16
	case ValueInt16:
		return v.Int16
	case ValueUint32:
		return v.Uint32
	case ValueInt32:
		return v.Int32
	case ValueFloat32:
		return v.Float32
	case ValueBool:
		return v.Bool
	case ValueString:
		return v.Str
	default:
		return nil
	}
}

// Uint64 coerces an integer-typed value to uint64. Negative values and
// non-integer variants report ok=false.
func (v MetadataValue) Uint64() (uint64, bool) {
	switch v.Type {
	case ValueUint8:
		return uint64(v.Uint8), true
	case ValueUint16:
		return uint64(v.Uint16), true
	case ValueUint32:
		return uint64(v.Uint32), true
	case ValueInt8:
		if v.Int8 >= 0 {
			return uint64(v.Int8), true
		}
	case ValueInt16:
		if v.Int16 >= 0 {
			return uint64(v.Int16), true
		}
	case ValueInt32:
		if v.Int32 >= 0 {
			return uint64(v.Int32), true
		}
	}
	return 0, false
}

// TensorType identifies the element encoding of a tensor payload. Only
// F32 and F16 payloads can be extracted; the other known ids exist so
// quantized tensors print with their proper names when listed.
type TensorType uint32

const (
	TensorF32 TensorType = 0
	TensorF16 TensorType = 1
)

var tensorTypeNames = map[TensorType]string{
	0: "F32", 1: "F16", 2: "Q4_0", 3: "Q4_1", 6: "Q5_0", 7: "Q5_1",
	8: "Q8_0", 9: "Q8_1", 10: "Q2_K", 11: "Q3_K", 12: "Q4_K", 13: "Q5_K",
	14: "Q6_K", 15: "Q8_K",
}

func (t TensorType) String() string {
	if name, ok := tensorTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("unknown(%d)", uint32(t))
}

// ElementSize returns the byte width of one element, ok=false when the
// type cannot be extracted.
func (t TensorType) ElementSize() (int64, bool) {
	switch t {
	case TensorF32:
		return 4, true
	case TensorF16:
		return 2, true
	default:
		return 0, false
	}
}

// Header is the fixed-size container prologue.
type Header struct {
	Version       uint32
	TensorCount   uint64
	MetadataCount uint64
}

// TensorDescriptor locates one tensor: its name, shape, element type and
// byte offset relative to the start of the payload region.
type TensorDescriptor struct {
	Name   string
	Dims   []uint64
	Type   TensorType
	Offset uint64
}

// ElementCount returns the product of the dimensions with overflow
// protection. A descriptor without dimensions counts zero elements.
func (d TensorDescriptor) ElementCount() (uint64, error) {
	if len(d.Dims) == 0 {
		return 0, nil
	}
	n := uint64(1)
	for _, dim := range d.Dims {
		if dim != 0 && n > math.MaxUint64/dim {
			return 0, fmt.Errorf("gguf: tensor %q element count overflows", d.Name)
		}
		n *= dim
	}
	return n, nil
}

// ByteSize returns the payload length in bytes for an extractable type.
func (d TensorDescriptor) ByteSize() (int64, error) {
	size, ok := d.Type.ElementSize()
	if !ok {
		return 0, fmt.Errorf("%w: %s for tensor %q", ErrUnsupportedTensorType, d.Type, d.Name)
	}
	n, err := d.ElementCount()
	if err != nil {
		return 0, err
	}
	if n > uint64(math.MaxInt64)/uint64(size) {
		return 0, fmt.Errorf("gguf: tensor %q byte size overflows", d.Name)
	}
	return int64(n) * size, nil
}

// TensorBuffer is one extracted tensor: its shape and payload upcast to
// float32 regardless of the on-disk element type.
type TensorBuffer struct {
	Name  string
	Shape []uint64
	Data  []float32
}

// Container is a fully decoded GGUF file minus the payload bytes, which
// stay on disk until extracted.
type Container struct {
	Header    Header
	Metadata  map[string]MetadataValue
	Tensors   []TensorDescriptor
	Alignment uint32
	// DataBase is the absolute offset of the payload region; tensor
	// offsets are relative to it.
	DataBase int64
}

// ParameterCount sums the element counts of every tensor in the table.
// Descriptors whose counts overflow are ignored.
func (c *Container) ParameterCount() uint64 {
	var total uint64
	for _, d := range c.Tensors {
		n, err := d.ElementCount()
		if err != nil {
			continue
		}
		total += n
	}
	return total
}

// MetaUint looks up an integer metadata entry by key.
func (c *Container) MetaUint(key string) (uint64, bool) {
	v, ok := c.Metadata[key]
	if !ok {
		return 0, false
	}
	return v.Uint64()
}

// MetaString looks up a string metadata entry by key.
func (c *Container) MetaString(key string) (string, bool) {
	v, ok := c.Metadata[key]
	if !ok || v.Type != ValueString {
		return "", false
	}
	return v.Str, true
}

// File is an open on-disk container. It keeps the handle so tensors can
// be extracted lazily; callers own Close.
type File struct {
	Container
	r *Reader
	f *os.File
}

// Open decodes the container structure of the file at path. The payload
// region is not read until Extract is called.
func Open(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	r := NewReader(f, info.Size())
	c, err := Decode(r)
	if err != nil {
		f.Close()
		return nil, err
	}
	return &File{Container: *c, r: r, f: f}, nil
}

// Extract reads and upcasts the payload of one descriptor.
func (f *File) Extract(desc TensorDescriptor) (*TensorBuffer, error) {
	return NewExtractor(f.r, f.DataBase).Extract(desc)
}

// ExtractAll extracts every extractable tensor in table order, returning
// the names of tensors skipped for unsupported element types.
func (f *File) ExtractAll() ([]*TensorBuffer, []string, error) {
	return NewExtractor(f.r, f.DataBase).ExtractAll(f.Tensors)
}

// Size returns the container file size in bytes.
func (f *File) Size() int64 { return f.r.Size() }

// Close releases the underlying file handle.
func (f *File) Close() error { return f.f.Close() }
