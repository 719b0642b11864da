package dissect

import (
	"context"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/jllopis/chimera/pkg/errors"
	"github.com/jllopis/chimera/pkg/gguf"
	"github.com/jllopis/chimera/pkg/llm"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// tinyArtifact builds a five-tensor container: 22 parameters spread over
// the embedding, attention, feed-forward, norm and output buckets.
func tinyArtifact() []byte {
	return gguf.NewBuilder().
		AddString("general.name", "tiny test model").
		AddString("general.architecture", "llama").
		AddTensorF32("token_embd.weight", []uint64{4, 2},
			[]float32{1, 2, 3, 4, 5, 6, 7, 8}).
		AddTensorF32("blk.0.attn_q.weight", []uint64{2, 2},
			[]float32{1, 2, 3, 4}).
		AddTensorF16("blk.0.ffn_up.weight", []uint64{2, 2},
			[]uint16{0x3C00, 0x3C00, 0x3C00, 0x3C00}).
		AddTensorF32("output_norm.weight", []uint64{2},
			[]float32{1, 1}).
		AddTensorF32("output.weight", []uint64{2, 2},
			[]float32{0.5, 0.5, 0.5, 0.5}).
		Bytes()
}

func writeArtifact(t *testing.T, path string) {
	t.Helper()
	if err := os.WriteFile(path, tinyArtifact(), 0o644); err != nil {
		t.Fatalf("write artifact: %v", err)
	}
}

// mathResponse trips the mathematics indicators and nothing else, so each
// dissected artifact ends up with exactly one capability.
const mathResponse = "x = 4, so 23 * 47 = 1081"

func TestEngineRun(t *testing.T) {
	modelsDir := t.TempDir()
	outDir := t.TempDir()
	writeArtifact(t, filepath.Join(modelsDir, "alpha.gguf"))
	writeArtifact(t, filepath.Join(modelsDir, "beta.gguf"))
	if err := os.WriteFile(filepath.Join(modelsDir, "corrupt.gguf"), []byte("GGUFgarbage"), 0o644); err != nil {
		t.Fatalf("write corrupt: %v", err)
	}

	engine := New(&llm.MockProvider{Response: mathResponse},
		WithModel("test-model"),
		WithParallelism(2),
		WithOutputDir(outDir),
		WithBlueprintName("test-blueprint"),
		WithLogger(quietLogger()),
	)

	result, err := engine.Run(context.Background(), modelsDir)
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	report := result.Report
	if report.Discovered != 3 {
		t.Errorf("discovered = %d, want 3", report.Discovered)
	}
	if report.Dissected != 2 {
		t.Errorf("dissected = %d, want 2", report.Dissected)
	}
	if report.Summary() != "dissected 2 of 3 artifacts" {
		t.Errorf("summary = %q", report.Summary())
	}

	// Results hold discovery order regardless of completion order.
	wantNames := []string{"alpha.gguf", "beta.gguf", "corrupt.gguf"}
	if len(report.Artifacts) != 3 {
		t.Fatalf("artifact results = %d, want 3", len(report.Artifacts))
	}
	for i, want := range wantNames {
		if report.Artifacts[i].Name != want {
			t.Errorf("artifact[%d] = %q, want %q", i, report.Artifacts[i].Name, want)
		}
		if report.Artifacts[i].Index != i {
			t.Errorf("artifact[%d].Index = %d", i, report.Artifacts[i].Index)
		}
	}
	if report.Artifacts[0].Status != StatusDissected || report.Artifacts[1].Status != StatusDissected {
		t.Error("good artifacts not marked dissected")
	}
	if report.Artifacts[2].Status != StatusFailed || report.Artifacts[2].Error == "" {
		t.Errorf("corrupt artifact = %+v", report.Artifacts[2])
	}
	if report.Artifacts[2].Signature != nil {
		t.Error("failed artifact carries a signature")
	}

	sig := report.Artifacts[0].Signature
	if sig == nil {
		t.Fatal("dissected artifact has no signature")
	}
	if sig.ParameterCount != 22 {
		t.Errorf("parameters = %d, want 22", sig.ParameterCount)
	}
	if sig.TensorCount != 5 {
		t.Errorf("tensor count = %d, want 5", sig.TensorCount)
	}
	if sig.Architecture != "Unknown-Transformer" {
		t.Errorf("architecture = %q, want Unknown-Transformer", sig.Architecture)
	}
	if len(sig.Capabilities) != 1 || sig.Capabilities[0].Domain != "mathematics" {
		t.Errorf("capabilities = %+v, want exactly mathematics", sig.Capabilities)
	}

	// Both artifacts contribute five tensors; token_embd and output land
	// in the other bucket.
	if report.MergedTensors != 10 {
		t.Errorf("merged tensors = %d, want 10", report.MergedTensors)
	}
	wantBuckets := map[string]int{
		"embedding":     0,
		"attention":     2,
		"feed_forward":  2,
		"normalization": 2,
		"other":         4,
	}
	for bucket, want := range wantBuckets {
		if got := report.Buckets[bucket]; got != want {
			t.Errorf("bucket %s = %d, want %d", bucket, got, want)
		}
	}

	bp := result.Blueprint
	if bp.Name != "test-blueprint" {
		t.Errorf("blueprint name = %q", bp.Name)
	}
	if len(bp.ComponentSignatures) != 2 {
		t.Errorf("component signatures = %d, want 2", len(bp.ComponentSignatures))
	}
	if bp.TotalParameterEstimate != 44 {
		t.Errorf("total parameters = %d, want 44", bp.TotalParameterEstimate)
	}
	// Identical scores: the tie goes to the first-seen artifact.
	if got := bp.RoutingTable["mathematics"]; got != "alpha.gguf" {
		t.Errorf("routing[mathematics] = %q, want alpha.gguf", got)
	}
	var weightSum float64
	for _, w := range bp.FusionWeights {
		weightSum += w
	}
	if math.Abs(weightSum-1.0) > 1e-6 {
		t.Errorf("fusion weights sum = %v", weightSum)
	}

	if _, err := os.Stat(result.BlueprintPath); err != nil {
		t.Errorf("blueprint file: %v", err)
	}
	if _, err := os.Stat(result.ReportPath); err != nil {
		t.Errorf("report file: %v", err)
	}
}

func TestEngineRunNothingDiscovered(t *testing.T) {
	engine := New(&llm.MockProvider{Response: "ok"},
		WithOutputDir(t.TempDir()),
		WithLogger(quietLogger()),
	)

	_, err := engine.Run(context.Background(), t.TempDir())
	if err == nil {
		t.Fatal("expected error for empty root")
	}
	if ce := errors.AsChimeraError(err); ce.Code != errors.CodeDegenerateInput {
		t.Errorf("code = %s, want %s", ce.Code, errors.CodeDegenerateInput)
	}
}

func TestEngineRunNothingDissected(t *testing.T) {
	modelsDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(modelsDir, "corrupt.gguf"), []byte("nope"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	engine := New(&llm.MockProvider{Response: "ok"},
		WithOutputDir(t.TempDir()),
		WithLogger(quietLogger()),
	)

	_, err := engine.Run(context.Background(), modelsDir)
	if err == nil {
		t.Fatal("expected error when every artifact fails")
	}
	if ce := errors.AsChimeraError(err); ce.Code != errors.CodeDegenerateInput {
		t.Errorf("code = %s, want %s", ce.Code, errors.CodeDegenerateInput)
	}
}

func TestEngineRunArchive(t *testing.T) {
	modelsDir := t.TempDir()
	scratchRoot := t.TempDir()
	outDir := t.TempDir()

	archive := filepath.Join(modelsDir, "bundle.tar")
	writeTar(t, archive, false, []tarEntry{
		{"notes.txt", []byte("not a model")},
		{"models/tiny.gguf", tinyArtifact()},
	})

	engine := New(&llm.MockProvider{Response: mathResponse},
		WithModel("test-model"),
		WithOutputDir(outDir),
		WithScratchDir(scratchRoot),
		WithLogger(quietLogger()),
	)

	result, err := engine.Run(context.Background(), modelsDir)
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if result.Report.Dissected != 1 {
		t.Fatalf("dissected = %d, want 1", result.Report.Dissected)
	}
	artifact := result.Report.Artifacts[0]
	if artifact.Name != "bundle.tar" {
		t.Errorf("name = %q, want bundle.tar", artifact.Name)
	}
	// The archive represents the artifact, not the scratch member.
	if artifact.Path != archive {
		t.Errorf("path = %q, want %q", artifact.Path, archive)
	}
	if artifact.Signature.Path != archive {
		t.Errorf("signature path = %q, want %q", artifact.Signature.Path, archive)
	}

	// Scratch directories are gone after the run.
	entries, err := os.ReadDir(scratchRoot)
	if err != nil {
		t.Fatalf("read scratch root: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("scratch root not cleaned: %d entries left", len(entries))
	}
}

func TestEngineRunCanceled(t *testing.T) {
	modelsDir := t.TempDir()
	writeArtifact(t, filepath.Join(modelsDir, "alpha.gguf"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	engine := New(&llm.MockProvider{Response: "ok"},
		WithOutputDir(t.TempDir()),
		WithLogger(quietLogger()),
	)

	_, err := engine.Run(ctx, modelsDir)
	if err == nil {
		t.Fatal("expected error for canceled context")
	}
	if ce := errors.AsChimeraError(err); ce.Code != errors.CodeCanceled {
		t.Errorf("code = %s, want %s", ce.Code, errors.CodeCanceled)
	}
}

func TestEngineRunPersistsHistory(t *testing.T) {
	modelsDir := t.TempDir()
	writeArtifact(t, filepath.Join(modelsDir, "alpha.gguf"))

	store := openTestStore(t)
	engine := New(&llm.MockProvider{Response: mathResponse},
		WithModel("test-model"),
		WithOutputDir(t.TempDir()),
		WithStore(store),
		WithLogger(quietLogger()),
	)

	result, err := engine.Run(context.Background(), modelsDir)
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	runs, err := store.ListRuns(context.Background(), 10)
	if err != nil {
		t.Fatalf("list runs: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("stored %d runs, want 1", len(runs))
	}
	if runs[0].ID != result.RunID {
		t.Errorf("stored id = %q, want %q", runs[0].ID, result.RunID)
	}
	if runs[0].Status != "completed" {
		t.Errorf("status = %q, want completed", runs[0].Status)
	}
	if runs[0].BlueprintPath != result.BlueprintPath {
		t.Errorf("blueprint path = %q, want %q", runs[0].BlueprintPath, result.BlueprintPath)
	}

	artifacts, err := store.ListArtifacts(context.Background(), result.RunID)
	if err != nil {
		t.Fatalf("list artifacts: %v", err)
	}
	if len(artifacts) != 1 || artifacts[0].Name != "alpha.gguf" {
		t.Errorf("artifacts = %+v", artifacts)
	}
}

func TestDisplayNames(t *testing.T) {
	candidates := []Candidate{
		{Path: "/models/a/x.gguf"},
		{Path: "/models/b/x.gguf"},
		{Path: "/models/c/y.gguf"},
		{Path: "/models/d/x.gguf"},
	}
	got := displayNames(candidates)
	want := []string{"x.gguf", "x.gguf#2", "y.gguf", "x.gguf#3"}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("names[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}
