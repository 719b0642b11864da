package gguf

import (
	"errors"
	"math"
	"path/filepath"
	"testing"
)

func decodeForExtract(t *testing.T, data []byte) (*Container, *Extractor) {
	t.Helper()
	r := NewBytesReader(data)
	c, err := Decode(r)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	return c, NewExtractor(r, c.DataBase)
}

func TestExtractF32(t *testing.T) {
	values := []float32{0, 1.5, -2.25, 3.75, 100.5, -0.125}
	data := NewBuilder().
		AddTensorF32("blk.0.ffn_up.weight", []uint64{2, 3}, values).
		Bytes()

	c, ex := decodeForExtract(t, data)
	buf, err := ex.Extract(c.Tensors[0])
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}

	if buf.Name != "blk.0.ffn_up.weight" {
		t.Errorf("name = %q", buf.Name)
	}
	if len(buf.Shape) != 2 || buf.Shape[0] != 2 || buf.Shape[1] != 3 {
		t.Errorf("shape = %v, want [2 3]", buf.Shape)
	}
	if len(buf.Data) != 6 {
		t.Fatalf("len(data) = %d, want 6", len(buf.Data))
	}
	for i, want := range values {
		if buf.Data[i] != want {
			t.Errorf("data[%d] = %v, want %v", i, buf.Data[i], want)
		}
	}
}

func TestExtractF16(t *testing.T) {
	// Half-precision bit patterns with exact float32 equivalents.
	bits := []uint16{
		0x3C00, // 1.0
		0xC000, // -2.0
		0x3800, // 0.5
		0x3555, // 0.333251953125
		0x0001, // smallest subnormal, 2^-24
		0x7C00, // +Inf
	}
	data := NewBuilder().
		AddTensorF16("blk.0.attn_q.weight", []uint64{2, 3}, bits).
		Bytes()

	c, ex := decodeForExtract(t, data)
	buf, err := ex.Extract(c.Tensors[0])
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if len(buf.Data) != 6 {
		t.Fatalf("len(data) = %d, want 6", len(buf.Data))
	}

	want := []float32{1.0, -2.0, 0.5, 0.333251953125, 1.0 / (1 << 24)}
	for i, w := range want {
		if buf.Data[i] != w {
			t.Errorf("data[%d] = %v, want %v", i, buf.Data[i], w)
		}
	}
	if !math.IsInf(float64(buf.Data[5]), 1) {
		t.Errorf("data[5] = %v, want +Inf", buf.Data[5])
	}
}

func TestExtractEmptyShape(t *testing.T) {
	data := NewBuilder().
		AddRawTensor("no_dims", nil, TensorF32, nil).
		AddRawTensor("zero_dim", []uint64{4, 0}, TensorF32, nil).
		Bytes()

	c, ex := decodeForExtract(t, data)
	if _, err := ex.Extract(c.Tensors[0]); !errors.Is(err, ErrEmptyShape) {
		t.Errorf("no dims: expected ErrEmptyShape, got %v", err)
	}
	if _, err := ex.Extract(c.Tensors[1]); !errors.Is(err, ErrEmptyShape) {
		t.Errorf("zero dim: expected ErrEmptyShape, got %v", err)
	}
}

func TestExtractUnsupportedType(t *testing.T) {
	data := NewBuilder().
		AddTensorF32("output_norm.weight", []uint64{2}, []float32{1, 2}).
		AddRawTensor("blk.0.attn_q.weight", []uint64{8}, TensorType(2), make([]byte, 18)).
		Bytes()

	c, ex := decodeForExtract(t, data)

	_, err := ex.Extract(c.Tensors[1])
	if !errors.Is(err, ErrUnsupportedTensorType) {
		t.Fatalf("expected ErrUnsupportedTensorType, got %v", err)
	}

	buffers, skipped, err := ex.ExtractAll(c.Tensors)
	if err != nil {
		t.Fatalf("ExtractAll failed: %v", err)
	}
	if len(buffers) != 1 || buffers[0].Name != "output_norm.weight" {
		t.Errorf("unexpected buffers %v", buffers)
	}
	if len(skipped) != 1 || skipped[0] != "blk.0.attn_q.weight" {
		t.Errorf("unexpected skip list %v", skipped)
	}
}

func TestExtractTruncatedPayload(t *testing.T) {
	data := NewBuilder().
		AddTensorF32("w", []uint64{4}, []float32{1, 2, 3, 4}).
		Bytes()

	c, err := Decode(NewBytesReader(data))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}

	// Keep the structure but cut the payload short.
	short := data[:c.DataBase+6]
	c2, ex := decodeForExtract(t, short)
	if _, err := ex.Extract(c2.Tensors[0]); !errors.Is(err, ErrTruncated) {
		t.Fatalf("expected ErrTruncated, got %v", err)
	}
}

func TestOpenFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.gguf")
	err := NewBuilder().
		AddString("general.name", "disk-model").
		AddTensorF32("token_embd.weight", []uint64{3}, []float32{1, 2, 3}).
		AddRawTensor("blk.0.ffn_down.weight", []uint64{4}, TensorType(10), make([]byte, 9)).
		WriteFile(path)
	if err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	f, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer f.Close()

	if name, ok := f.MetaString("general.name"); !ok || name != "disk-model" {
		t.Errorf("MetaString(general.name) = %q, %v", name, ok)
	}
	buffers, skipped, err := f.ExtractAll()
	if err != nil {
		t.Fatalf("ExtractAll failed: %v", err)
	}
	if len(buffers) != 1 || buffers[0].Data[2] != 3 {
		t.Errorf("unexpected buffers %+v", buffers)
	}
	if len(skipped) != 1 {
		t.Errorf("expected one skipped quantized tensor, got %v", skipped)
	}
	if f.Size() == 0 {
		t.Error("expected non-zero file size")
	}
}

func TestOpenMissingFile(t *testing.T) {
	if _, err := Open(filepath.Join(t.TempDir(), "absent.gguf")); err == nil {
		t.Fatal("expected error opening a missing file")
	}
}
