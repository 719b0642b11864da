package gguf

import (
	"fmt"
)

// maxPrealloc caps slice preallocation for counts read from the stream,
// so a corrupt count cannot allocate unbounded memory before the first
// entry read fails.
const maxPrealloc = 1024

// DecodeHeader reads the magic, version and the two entry counts.
func DecodeHeader(r *Reader) (Header, error) {
	magic, err := r.ReadBytes(4, "magic")
	if err != nil {
		return Header{}, err
	}
	if string(magic) != Magic {
		return Header{}, fmt.Errorf("%w: got %q", ErrBadMagic, magic)
	}
	version, err := r.ReadUint32("version")
	if err != nil {
		return Header{}, err
	}
	tensorCount, err := r.ReadUint64("tensor count")
	if err != nil {
		return Header{}, err
	}
	metadataCount, err := r.ReadUint64("metadata count")
	if err != nil {
		return Header{}, err
	}
	return Header{
		Version:       version,
		TensorCount:   tensorCount,
		MetadataCount: metadataCount,
	}, nil
}

// DecodeMetadata reads count key/value entries. Every value tag must be
// a member of the closed ValueType set; an unknown tag aborts the decode
// because the entry length cannot be known.
func DecodeMetadata(r *Reader, count uint64) (map[string]MetadataValue, error) {
	meta := make(map[string]MetadataValue, min(count, maxPrealloc))
	for i := uint64(0); i < count; i++ {
		key, err := r.ReadString("metadata key")
		if err != nil {
			return nil, fmt.Errorf("metadata entry %d: %w", i, err)
		}
		tag, err := r.ReadUint32("metadata value type")
		if err != nil {
			return nil, fmt.Errorf("metadata entry %d (%s): %w", i, key, err)
		}
		value, err := decodeValue(r, ValueType(tag))
		if err != nil {
			return nil, fmt.Errorf("metadata entry %d (%s): %w", i, key, err)
		}
		meta[key] = value
	}
	return meta, nil
}

// decodeValue is the single exhaustive match over the value tag set.
func decodeValue(r *Reader, t ValueType) (MetadataValue, error) {
	switch t {
	case ValueUint8:
		v, err := r.ReadUint8("uint8 value")
		return Uint8Value(v), err
	case ValueInt8:
		v, err := r.ReadInt8("int8 value")
		return Int8Value(v), err
	case ValueUint16:
		v, err := r.ReadUint16("uint16 value")
		return Uint16Value(v), err
	case ValueInt16:
		v, err := r.ReadInt16("int16 value")
		return Int16Value(v), err
	case ValueUint32:
		v, err := r.ReadUint32("uint32 value")
		return Uint32Value(v), err
	case ValueInt32:
		v, err := r.ReadInt32("int32 value")
		return Int32Value(v), err
	case ValueFloat32:
		v, err := r.ReadFloat32("float32 value")
		return Float32Value(v), err
	case ValueBool:
		v, err := r.ReadUint8("bool value")
		return BoolValue(v != 0), err
	case ValueString:
		v, err := r.ReadString("string value")
		return StringValue(v), err
	default:
		return MetadataValue{}, fmt.Errorf("%w: tag %d", ErrUnknownValueType, uint32(t))
	}
}

// DecodeTensorTable reads count tensor descriptors.
func DecodeTensorTable(r *Reader, count uint64) ([]TensorDescriptor, error) {
	table := make([]TensorDescriptor, 0, min(count, maxPrealloc))
	for i := uint64(0); i < count; i++ {
		name, err := r.ReadString("tensor name")
		if err != nil {
			return nil, fmt.Errorf("tensor descriptor %d: %w", i, err)
		}
		dimCount, err := r.ReadUint32("dimension count")
		if err != nil {
			return nil, fmt.Errorf("tensor descriptor %d (%s): %w", i, name, err)
		}
		dims := make([]uint64, 0, min(uint64(dimCount), 8))
		for d := uint32(0); d < dimCount; d++ {
			dim, err := r.ReadUint64("dimension")
			if err != nil {
				return nil, fmt.Errorf("tensor descriptor %d (%s): %w", i, name, err)
			}
			dims = append(dims, dim)
		}
		elemType, err := r.ReadUint32("element type")
		if err != nil {
			return nil, fmt.Errorf("tensor descriptor %d (%s): %w", i, name, err)
		}
		offset, err := r.ReadUint64("payload offset")
		if err != nil {
			return nil, fmt.Errorf("tensor descriptor %d (%s): %w", i, name, err)
		}
		table = append(table, TensorDescriptor{
			Name:   name,
			Dims:   dims,
			Type:   TensorType(elemType),
			Offset: offset,
		})
	}
	return table, nil
}

// Decode reads the header, metadata block and tensor table, leaving the
// cursor at the end of the table. DataBase is the table end rounded up
// to the container alignment.
func Decode(r *Reader) (*Container, error) {
	header, err := DecodeHeader(r)
	if err != nil {
		return nil, err
	}
	meta, err := DecodeMetadata(r, header.MetadataCount)
	if err != nil {
		return nil, err
	}
	table, err := DecodeTensorTable(r, header.TensorCount)
	if err != nil {
		return nil, err
	}

	alignment := uint32(DefaultAlignment)
	if v, ok := meta["general.alignment"]; ok {
		if a, ok := v.Uint64(); ok && a > 0 && a <= 1<<20 {
			alignment = uint32(a)
		}
	}

	return &Container{
		Header:    header,
		Metadata:  meta,
		Tensors:   table,
		Alignment: alignment,
		DataBase:  alignOffset(r.Offset(), int64(alignment)),
	}, nil
}

// alignOffset rounds off up to the next multiple of alignment.
func alignOffset(off, alignment int64) int64 {
	if alignment <= 1 {
		return off
	}
	if rem := off % alignment; rem != 0 {
		return off + alignment - rem
	}
	return off
}
