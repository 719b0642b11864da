package signature

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultTableValid(t *testing.T) {
	if err := DefaultTable().Validate(); err != nil {
		t.Fatalf("default table should validate: %v", err)
	}
}

func TestDefaultTableClassify(t *testing.T) {
	table := DefaultTable()

	tests := []struct {
		name         string
		artifact     string
		architecture string
		layers       int
		heads        int
		vocab        int
		context      int
	}{
		{"deepseek large", "deepseek-coder-33b.Q4_K_M.gguf", "DeepSeek-MoE", 64, 64, 100000, 32768},
		{"deepseek base", "deepseek-coder-6.7b-instruct.gguf", "DeepSeek-MoE", 28, 32, 100000, 32768},
		{"qwen 7b", "Qwen2.5-7B-Instruct-Q5.gguf", "Qwen-Transformer", 32, 32, 151936, 131072},
		{"qwen large", "qwen-72b.gguf", "Qwen-Transformer", 48, 40, 151936, 131072},
		{"grok", "grok-1.gguf", "Grok-MoE", 64, 48, 131072, 131072},
		{"gemma 7b", "gemma-7b-it.gguf", "Gemma-RMSNorm", 28, 16, 256000, 8192},
		{"gemma base", "gemma-2b.gguf", "Gemma-RMSNorm", 42, 24, 256000, 8192},
		{"llama 7b", "llama-2-7b-chat.gguf", "Llama-RoPE", 32, 32, 128256, 128000},
		{"llama large", "Meta-Llama-3-70B.gguf", "Llama-RoPE", 48, 40, 128256, 128000},
		{"openhermes", "openhermes-2.5-mistral.gguf", "Hermes-Instruct", 32, 32, 32000, 8192},
		{"mythomax", "mythomax-l2-13b.gguf", "MythoMax-Merge", 32, 32, 32000, 4096},
		{"phi", "phi-2.gguf", "Phi-Dense", 32, 32, 51200, 131072},
		{"unknown", "mistral-7b-v0.1.gguf", "Unknown-Transformer", 32, 32, 50000, 4096},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rule := table.Classify(tc.artifact)
			if rule.Architecture != tc.architecture {
				t.Errorf("expected architecture %s, got %s", tc.architecture, rule.Architecture)
			}
			if rule.Layers != tc.layers {
				t.Errorf("expected %d layers, got %d", tc.layers, rule.Layers)
			}
			if rule.AttentionHeads != tc.heads {
				t.Errorf("expected %d heads, got %d", tc.heads, rule.AttentionHeads)
			}
			if rule.VocabSize != tc.vocab {
				t.Errorf("expected vocab %d, got %d", tc.vocab, rule.VocabSize)
			}
			if rule.ContextLength != tc.context {
				t.Errorf("expected context %d, got %d", tc.context, rule.ContextLength)
			}
		})
	}
}

func TestClassifyFirstMatchWins(t *testing.T) {
	table := DefaultTable()

	// Matches both qwen and llama families; the qwen size rule comes first.
	rule := table.Classify("qwen-llama-7b-blend.gguf")
	if rule.Architecture != "Qwen-Transformer" {
		t.Errorf("expected Qwen-Transformer, got %s", rule.Architecture)
	}
	if rule.Layers != 32 {
		t.Errorf("expected size-variant layers 32, got %d", rule.Layers)
	}
}

func TestClassifyEmptyName(t *testing.T) {
	rule := DefaultTable().Classify("")
	if rule.Architecture != "Unknown-Transformer" {
		t.Errorf("expected catch-all for empty name, got %s", rule.Architecture)
	}
}

func TestClassifyWithoutCatchAll(t *testing.T) {
	table := &Table{Rules: []Rule{{
		Match:          []string{"deepseek"},
		Architecture:   "DeepSeek-MoE",
		Layers:         28,
		AttentionHeads: 32,
		VocabSize:      100000,
		ContextLength:  32768,
	}}}

	rule := table.Classify("mystery.gguf")
	if rule.Architecture != "Unknown-Transformer" {
		t.Errorf("expected built-in fallback, got %s", rule.Architecture)
	}
}

func TestTableValidate(t *testing.T) {
	valid := Rule{
		Match:          []string{"x"},
		Architecture:   "X",
		Layers:         1,
		AttentionHeads: 1,
		VocabSize:      1,
		ContextLength:  1,
	}
	catchAll := valid
	catchAll.Match = nil

	tests := []struct {
		name    string
		table   *Table
		wantErr bool
	}{
		{"valid", &Table{Rules: []Rule{valid, catchAll}}, false},
		{"no rules", &Table{}, true},
		{"catch-all not last", &Table{Rules: []Rule{catchAll, valid}}, true},
		{"missing catch-all", &Table{Rules: []Rule{valid}}, true},
		{
			"missing architecture",
			&Table{Rules: []Rule{{Match: []string{"x"}, Layers: 1, AttentionHeads: 1, VocabSize: 1, ContextLength: 1}, catchAll}},
			true,
		},
		{
			"zero layers",
			&Table{Rules: []Rule{{Match: []string{"x"}, Architecture: "X", AttentionHeads: 1, VocabSize: 1, ContextLength: 1}, catchAll}},
			true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.table.Validate()
			if tc.wantErr && err == nil {
				t.Error("expected validation error")
			}
			if !tc.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestLoadTableYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "table.yaml")
	content := `rules:
  - match: [custom]
    architecture: Custom-Arch
    layers: 24
    attention_heads: 16
    vocab_size: 32000
    context_length: 8192
    knowledge_domains: [Testing]
  - architecture: Fallback
    layers: 32
    attention_heads: 32
    vocab_size: 50000
    context_length: 4096
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write table: %v", err)
	}

	table, err := LoadTable(path)
	if err != nil {
		t.Fatalf("load table: %v", err)
	}

	rule := table.Classify("my-custom-model.gguf")
	if rule.Architecture != "Custom-Arch" {
		t.Errorf("expected Custom-Arch, got %s", rule.Architecture)
	}
	if len(rule.KnowledgeDomains) != 1 || rule.KnowledgeDomains[0] != "Testing" {
		t.Errorf("expected knowledge domains [Testing], got %v", rule.KnowledgeDomains)
	}

	if got := table.Classify("anything-else.gguf").Architecture; got != "Fallback" {
		t.Errorf("expected Fallback, got %s", got)
	}
}

func TestLoadTableJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "table.json")
	content := `{"rules": [{"architecture": "Only", "layers": 8, "attention_heads": 8, "vocab_size": 1000, "context_length": 2048}]}`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write table: %v", err)
	}

	table, err := LoadTable(path)
	if err != nil {
		t.Fatalf("load table: %v", err)
	}
	if got := table.Classify("whatever").Architecture; got != "Only" {
		t.Errorf("expected Only, got %s", got)
	}
}

func TestLoadTableErrors(t *testing.T) {
	if _, err := LoadTable(""); err == nil {
		t.Error("expected error for empty path")
	}
	if _, err := LoadTable(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(bad, []byte("rules: [{architecture: NoFacts}]"), 0o644); err != nil {
		t.Fatalf("write table: %v", err)
	}
	if _, err := LoadTable(bad); err == nil {
		t.Error("expected validation error for incomplete rule")
	}
}

func TestMarshalYAMLRoundTrip(t *testing.T) {
	data, err := MarshalYAML(DefaultTable())
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	table, err := ParseYAML(data)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(table.Rules) != len(DefaultTable().Rules) {
		t.Fatalf("expected %d rules, got %d", len(DefaultTable().Rules), len(table.Rules))
	}
	if got := table.Classify("deepseek-33b").Layers; got != 64 {
		t.Errorf("expected classification preserved through round trip, got %d layers", got)
	}
}
