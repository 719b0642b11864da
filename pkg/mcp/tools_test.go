package mcp

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/jllopis/chimera/pkg/gguf"
	"github.com/jllopis/chimera/pkg/llm"
	"github.com/jllopis/chimera/pkg/probe"
)

func testConfig() ToolConfig {
	return ToolConfig{
		Provider: &llm.MockProvider{Response: "x = 4, so 23 * 47 = 1081"},
		Model:    "test-model",
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func writeTestArtifact(t *testing.T, path string) {
	t.Helper()
	payload := gguf.NewBuilder().
		AddString("general.name", "tiny").
		AddString("general.architecture", "llama").
		AddTensorF32("blk.0.attn_q.weight", []uint64{2, 2}, []float32{1, 2, 3, 4}).
		AddTensorF32("output_norm.weight", []uint64{2}, []float32{1, 1}).
		Bytes()
	if err := os.WriteFile(path, payload, 0o644); err != nil {
		t.Fatalf("write artifact: %v", err)
	}
}

func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if len(result.Content) == 0 {
		t.Fatal("result has no content")
	}
	text, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("content is %T, want TextContent", result.Content[0])
	}
	return text.Text
}

func TestInspectTool(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tiny.gguf")
	writeTestArtifact(t, path)

	result, err := inspectHandler(testConfig())(context.Background(), map[string]interface{}{"path": path})
	if err != nil {
		t.Fatalf("handler: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected tool error: %s", resultText(t, result))
	}

	var summary map[string]interface{}
	if err := json.Unmarshal([]byte(resultText(t, result)), &summary); err != nil {
		t.Fatalf("unmarshal summary: %v", err)
	}
	if got := summary["tensor_count"]; got != float64(2) {
		t.Errorf("tensor_count = %v, want 2", got)
	}
	if got := summary["parameter_estimate"]; got != float64(6) {
		t.Errorf("parameter_estimate = %v, want 6", got)
	}
	if got := summary["general_name"]; got != "tiny" {
		t.Errorf("general_name = %v, want tiny", got)
	}
}

func TestInspectToolMissingPath(t *testing.T) {
	result, err := inspectHandler(testConfig())(context.Background(), map[string]interface{}{})
	if err != nil {
		t.Fatalf("handler: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected tool error for missing path")
	}
}

func TestInspectToolCorruptArtifact(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "corrupt.gguf")
	if err := os.WriteFile(path, []byte("nope"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	result, err := inspectHandler(testConfig())(context.Background(), map[string]interface{}{"path": path})
	if err != nil {
		t.Fatalf("handler: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected tool error for corrupt artifact")
	}
}

func TestProbeTool(t *testing.T) {
	result, err := probeHandler(testConfig())(context.Background(), map[string]interface{}{})
	if err != nil {
		t.Fatalf("handler: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected tool error: %s", resultText(t, result))
	}

	var report probe.Report
	if err := json.Unmarshal([]byte(resultText(t, result)), &report); err != nil {
		t.Fatalf("unmarshal report: %v", err)
	}
	if len(report.Strengths) != 5 {
		t.Errorf("strength profile has %d entries, want 5", len(report.Strengths))
	}
	if len(report.Capabilities) != 1 || report.Capabilities[0].Domain != probe.DomainMathematics {
		t.Errorf("capabilities = %+v, want exactly mathematics", report.Capabilities)
	}
}

func TestProbeToolNoModel(t *testing.T) {
	cfg := testConfig()
	cfg.Model = ""

	result, err := probeHandler(cfg)(context.Background(), map[string]interface{}{})
	if err != nil {
		t.Fatalf("handler: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected tool error without a model")
	}
}

func TestProbeToolSettingsSwap(t *testing.T) {
	current := testConfig()
	handler := probeHandler(ToolConfig{Settings: func() ToolConfig { return current }})

	result, err := handler(context.Background(), map[string]interface{}{})
	if err != nil {
		t.Fatalf("handler: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected tool error: %s", resultText(t, result))
	}

	next := testConfig()
	next.Model = ""
	current = next

	result, err = handler(context.Background(), map[string]interface{}{})
	if err != nil {
		t.Fatalf("handler: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected tool error after the live settings dropped the model")
	}
}

func TestDissectTool(t *testing.T) {
	modelsDir := t.TempDir()
	writeTestArtifact(t, filepath.Join(modelsDir, "alpha.gguf"))

	cfg := testConfig()
	cfg.OutputDir = t.TempDir()

	result, err := dissectHandler(cfg)(context.Background(), map[string]interface{}{"root": modelsDir})
	if err != nil {
		t.Fatalf("handler: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected tool error: %s", resultText(t, result))
	}

	var summary map[string]interface{}
	if err := json.Unmarshal([]byte(resultText(t, result)), &summary); err != nil {
		t.Fatalf("unmarshal summary: %v", err)
	}
	if got := summary["dissected"]; got != float64(1) {
		t.Errorf("dissected = %v, want 1", got)
	}
	if summary["run_id"] == "" {
		t.Error("run_id missing")
	}
	if summary["blueprint_path"] == "" {
		t.Error("blueprint_path missing")
	}
}

func TestDissectToolMissingRoot(t *testing.T) {
	result, err := dissectHandler(testConfig())(context.Background(), map[string]interface{}{})
	if err != nil {
		t.Fatalf("handler: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected tool error for missing root")
	}
}

func TestRegisterTools(t *testing.T) {
	s := NewServer("chimera", "test")
	RegisterTools(s, testConfig())
}
