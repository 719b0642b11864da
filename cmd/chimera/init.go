// Copyright 2026 © The Chimera Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jllopis/chimera/pkg/gguf"
	"github.com/jllopis/chimera/pkg/signature"
)

const starterConfig = `log:
  level: info
  format: text

engine:
  parallelism: 4
  probe_timeout_seconds: 30
  output_dir: .
  blueprint_name: chimera-blueprint

provider:
  kind: ollama
  model: qwen2.5-coder:7b-instruct-q5_K_M
  base_url: http://localhost:11434
  timeout_seconds: 120

classifier:
  table_path: classifier.yaml

store:
  enabled: true
  path: chimera.db

index:
  enabled: false
  addr: localhost:6334
  collection: chimera_artifacts

telemetry:
  enabled: false
  exporter: stdout
`

func runInit(global globalFlags, args []string) {
	cmd := flag.NewFlagSet("init", flag.ContinueOnError)
	force := cmd.Bool("force", false, "Overwrite existing files")
	if err := cmd.Parse(args); err != nil {
		fatal(err)
	}
	if cmd.NArg() != 1 {
		fatal(errors.New("usage: chimera init <dir>"))
	}
	dir := cmd.Arg(0)

	if err := os.MkdirAll(dir, 0o755); err != nil {
		fail(global.JSON, err)
	}

	tableYAML, err := signature.MarshalYAML(signature.DefaultTable())
	if err != nil {
		fail(global.JSON, err)
	}

	configFile := filepath.Join(dir, "chimera.yaml")
	tableFile := filepath.Join(dir, "classifier.yaml")
	sampleFile := filepath.Join(dir, "sample.gguf")

	if err := writeInitFile(configFile, []byte(starterConfig), *force); err != nil {
		fail(global.JSON, err)
	}
	if err := writeInitFile(tableFile, tableYAML, *force); err != nil {
		fail(global.JSON, err)
	}
	if err := writeInitFile(sampleFile, sampleArtifact(), *force); err != nil {
		fail(global.JSON, err)
	}

	for _, path := range []string{configFile, tableFile, sampleFile} {
		fmt.Printf("wrote %s\n", path)
	}
	fmt.Printf("try: chimera --config %s dissect %s\n", configFile, dir)
}

// writeInitFile refuses to clobber existing files unless forced.
func writeInitFile(path string, data []byte, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		}
	}
	return os.WriteFile(path, data, 0o644)
}

// sampleArtifact builds a tiny synthetic container touching every merge
// bucket, so a fresh checkout can exercise the full pipeline.
func sampleArtifact() []byte {
	builder := gguf.NewBuilder().
		AddString("general.name", "chimera sample").
		AddString("general.architecture", "llama").
		AddTensorF32("token_embd.weight", []uint64{8, 4}, ramp(32)).
		AddTensorF32("blk.0.attn_q.weight", []uint64{4, 4}, ramp(16)).
		AddTensorF32("blk.0.ffn_up.weight", []uint64{4, 4}, ramp(16)).
		AddTensorF32("output_norm.weight", []uint64{4}, ones(4)).
		AddTensorF32("output.weight", []uint64{4, 4}, ramp(16))
	return builder.Bytes()
}

func ramp(n int) []float32 {
	data := make([]float32, n)
	for i := range data {
		data[i] = float32(i) * 0.25
	}
	return data
}

func ones(n int) []float32 {
	data := make([]float32, n)
	for i := range data {
		data[i] = 1
	}
	return data
}
