package main

import (
	"errors"
	"flag"
	"fmt"
	"strconv"
	"strings"

	"github.com/jllopis/chimera/pkg/gguf"
)

type inspectResult struct {
	Path              string      `json:"path"`
	Version           uint32      `json:"version"`
	Alignment         uint32      `json:"alignment"`
	SizeBytes         int64       `json:"size_bytes"`
	MetadataCount     int         `json:"metadata_count"`
	TensorCount       int         `json:"tensor_count"`
	ParameterEstimate uint64      `json:"parameter_estimate"`
	Name              string      `json:"general_name,omitempty"`
	Architecture      string      `json:"general_architecture,omitempty"`
	Tensors           []tensorRow `json:"tensors,omitempty"`
}

type tensorRow struct {
	Name  string   `json:"name"`
	Type  string   `json:"type"`
	Dims  []uint64 `json:"dims"`
	Bytes int64    `json:"bytes,omitempty"`
}

func runInspect(global globalFlags, args []string) {
	cmd := flag.NewFlagSet("inspect", flag.ContinueOnError)
	tensors := cmd.Bool("tensors", false, "List every tensor descriptor")
	if err := cmd.Parse(args); err != nil {
		fatal(err)
	}
	if cmd.NArg() != 1 {
		fatal(errors.New("usage: chimera inspect <file.gguf>"))
	}
	path := cmd.Arg(0)

	f, err := gguf.Open(path)
	if err != nil {
		fail(global.JSON, err)
	}
	defer f.Close()

	result := inspectResult{
		Path:              path,
		Version:           f.Header.Version,
		Alignment:         f.Alignment,
		SizeBytes:         f.Size(),
		MetadataCount:     len(f.Metadata),
		TensorCount:       len(f.Tensors),
		ParameterEstimate: f.ParameterCount(),
	}
	if name, ok := f.MetaString("general.name"); ok {
		result.Name = name
	}
	if arch, ok := f.MetaString("general.architecture"); ok {
		result.Architecture = arch
	}
	if *tensors {
		result.Tensors = make([]tensorRow, 0, len(f.Tensors))
		for _, desc := range f.Tensors {
			row := tensorRow{Name: desc.Name, Type: desc.Type.String(), Dims: desc.Dims}
			// Unsupported element types have no decodable byte size.
			if size, err := desc.ByteSize(); err == nil {
				row.Bytes = size
			}
			result.Tensors = append(result.Tensors, row)
		}
	}

	if global.JSON {
		printJSON(result)
		return
	}

	fmt.Printf("artifact: %s\n", result.Path)
	fmt.Printf("version: %d\n", result.Version)
	fmt.Printf("alignment: %d\n", result.Alignment)
	fmt.Printf("size: %s\n", formatBytes(result.SizeBytes))
	fmt.Printf("metadata: %d keys\n", result.MetadataCount)
	fmt.Printf("tensors: %d\n", result.TensorCount)
	fmt.Printf("parameters: %s\n", formatCount(result.ParameterEstimate))
	if result.Name != "" {
		fmt.Printf("name: %s\n", result.Name)
	}
	if result.Architecture != "" {
		fmt.Printf("architecture: %s\n", result.Architecture)
	}

	if *tensors {
		writer := newTabWriter()
		writeRow(writer, "TENSOR", "TYPE", "SHAPE", "BYTES")
		for _, row := range result.Tensors {
			writeRow(writer, row.Name, row.Type, formatDims(row.Dims), formatBytes(row.Bytes))
		}
		_ = writer.Flush()
	}
}

func formatDims(dims []uint64) string {
	if len(dims) == 0 {
		return "-"
	}
	parts := make([]string, len(dims))
	for i, dim := range dims {
		parts[i] = strconv.FormatUint(dim, 10)
	}
	return strings.Join(parts, "x")
}
