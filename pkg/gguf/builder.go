package gguf

import (
	"bytes"
	"encoding/binary"
	"math"
	"os"
)

// Builder assembles a GGUF container in memory. It exists for fixtures
// and for the sample artifact written by `chimera init`: real containers
// come from model conversion tools, but the bytes are the same.
type Builder struct {
	version   uint32
	alignment int64
	meta      []metaEntry
	tensors   []builderTensor
}

type metaEntry struct {
	key string
	val MetadataValue
	// raw overrides the typed encoding when set; used to produce
	// containers with tags outside the supported set.
	rawTag   uint32
	rawBytes []byte
	raw      bool
}

type builderTensor struct {
	name    string
	dims    []uint64
	typ     TensorType
	payload []byte
}

// NewBuilder creates a Builder with version 3 and 32-byte alignment.
func NewBuilder() *Builder {
	return &Builder{version: 3, alignment: DefaultAlignment}
}

// SetVersion overrides the container version.
func (b *Builder) SetVersion(v uint32) *Builder {
	b.version = v
	return b
}

// SetAlignment overrides the payload alignment. Callers that also want
// readers to honor it must add a matching general.alignment entry.
func (b *Builder) SetAlignment(a int64) *Builder {
	if a > 0 {
		b.alignment = a
	}
	return b
}

// AddMetadata appends a typed metadata entry in declaration order.
func (b *Builder) AddMetadata(key string, val MetadataValue) *Builder {
	b.meta = append(b.meta, metaEntry{key: key, val: val})
	return b
}

func (b *Builder) AddUint8(key string, v uint8) *Builder     { return b.AddMetadata(key, Uint8Value(v)) }
func (b *Builder) AddInt8(key string, v int8) *Builder       { return b.AddMetadata(key, Int8Value(v)) }
func (b *Builder) AddUint16(key string, v uint16) *Builder   { return b.AddMetadata(key, Uint16Value(v)) }
func (b *Builder) AddInt16(key string, v int16) *Builder     { return b.AddMetadata(key, Int16Value(v)) }
func (b *Builder) AddUint32(key string, v uint32) *Builder   { return b.AddMetadata(key, Uint32Value(v)) }
func (b *Builder) AddInt32(key string, v int32) *Builder     { return b.AddMetadata(key, Int32Value(v)) }
func (b *Builder) AddFloat32(key string, v float32) *Builder { return b.AddMetadata(key, Float32Value(v)) }
func (b *Builder) AddBool(key string, v bool) *Builder       { return b.AddMetadata(key, BoolValue(v)) }
func (b *Builder) AddString(key, v string) *Builder          { return b.AddMetadata(key, StringValue(v)) }

// AddRawValue appends a metadata entry with an arbitrary tag and value
// encoding, bypassing the typed constructors.
func (b *Builder) AddRawValue(key string, tag uint32, value []byte) *Builder {
	b.meta = append(b.meta, metaEntry{key: key, rawTag: tag, rawBytes: value, raw: true})
	return b
}

// AddTensorF32 appends a float32 tensor.
func (b *Builder) AddTensorF32(name string, dims []uint64, data []float32) *Builder {
	payload := make([]byte, len(data)*4)
	for i, v := range data {
		binary.LittleEndian.PutUint32(payload[i*4:], math.Float32bits(v))
	}
	return b.AddRawTensor(name, dims, TensorF32, payload)
}

// AddTensorF16 appends a half-precision tensor from raw bit patterns.
func (b *Builder) AddTensorF16(name string, dims []uint64, bits []uint16) *Builder {
	payload := make([]byte, len(bits)*2)
	for i, v := range bits {
		binary.LittleEndian.PutUint16(payload[i*2:], v)
	}
	return b.AddRawTensor(name, dims, TensorF16, payload)
}

// AddRawTensor appends a tensor with an arbitrary element type and
// payload bytes.
func (b *Builder) AddRawTensor(name string, dims []uint64, typ TensorType, payload []byte) *Builder {
	b.tensors = append(b.tensors, builderTensor{
		name:    name,
		dims:    append([]uint64(nil), dims...),
		typ:     typ,
		payload: append([]byte(nil), payload...),
	})
	return b
}

// Bytes encodes the container. Tensor offsets are relative to the
// payload region, which starts at the table end rounded up to the
// alignment; each payload start is aligned the same way.
func (b *Builder) Bytes() []byte {
	// Lay out payload offsets first so the table can be written in one pass.
	offsets := make([]uint64, len(b.tensors))
	var cursor int64
	for i, t := range b.tensors {
		cursor = alignOffset(cursor, b.alignment)
		offsets[i] = uint64(cursor)
		cursor += int64(len(t.payload))
	}

	w := new(bytes.Buffer)
	w.WriteString(Magic)
	binary.Write(w, binary.LittleEndian, b.version)
	binary.Write(w, binary.LittleEndian, uint64(len(b.tensors)))
	binary.Write(w, binary.LittleEndian, uint64(len(b.meta)))

	for _, m := range b.meta {
		writeString(w, m.key)
		if m.raw {
			binary.Write(w, binary.LittleEndian, m.rawTag)
			w.Write(m.rawBytes)
			continue
		}
		binary.Write(w, binary.LittleEndian, uint32(m.val.Type))
		writeValue(w, m.val)
	}

	for i, t := range b.tensors {
		writeString(w, t.name)
		binary.Write(w, binary.LittleEndian, uint32(len(t.dims)))
		for _, d := range t.dims {
			binary.Write(w, binary.LittleEndian, d)
		}
		binary.Write(w, binary.LittleEndian, uint32(t.typ))
		binary.Write(w, binary.LittleEndian, offsets[i])
	}

	// Pad to the payload region, then between payloads.
	pad(w, alignOffset(int64(w.Len()), b.alignment)-int64(w.Len()))
	base := int64(w.Len())
	for i, t := range b.tensors {
		start := base + int64(offsets[i])
		pad(w, start-int64(w.Len()))
		w.Write(t.payload)
	}

	return w.Bytes()
}

// WriteFile encodes the container and writes it to path.
func (b *Builder) WriteFile(path string) error {
	return os.WriteFile(path, b.Bytes(), 0o644)
}

func writeString(w *bytes.Buffer, s string) {
	binary.Write(w, binary.LittleEndian, uint64(len(s)))
	w.WriteString(s)
}

func writeValue(w *bytes.Buffer, v MetadataValue) {
	switch v.Type {
	case ValueUint8:
		w.WriteByte(v.Uint8)
	case ValueInt8:
		w.WriteByte(byte(v.Int8))
	case ValueUint16:
		binary.Write(w, binary.LittleEndian, v.Uint16)
	case ValueInt16:
		binary.Write(w, binary.LittleEndian, v.Int16)
	case ValueUint32:
		binary.Write(w, binary.LittleEndian, v.Uint32)
	case ValueInt32:
		binary.Write(w, binary.LittleEndian, v.Int32)
	case ValueFloat32:
		binary.Write(w, binary.LittleEndian, math.Float32bits(v.Float32))
	case ValueBool:
		if v.Bool {
			w.WriteByte(1)
		} else {
			w.WriteByte(0)
		}
	case ValueString:
		writeString(w, v.Str)
	}
}

func pad(w *bytes.Buffer, n int64) {
	if n > 0 {
		w.Write(make([]byte, n))
	}
}
