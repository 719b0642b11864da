package dissect

import (
	"context"
	stderrors "errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/jllopis/chimera/pkg/blueprint"
	"github.com/jllopis/chimera/pkg/errors"
	"github.com/jllopis/chimera/pkg/gguf"
	"github.com/jllopis/chimera/pkg/index"
	"github.com/jllopis/chimera/pkg/llm"
	"github.com/jllopis/chimera/pkg/merger"
	"github.com/jllopis/chimera/pkg/probe"
	"github.com/jllopis/chimera/pkg/signature"
	"github.com/jllopis/chimera/pkg/telemetry"
)

// Engine runs dissections end to end. Construct with New and the With*
// options, then call Run once per invocation.
type Engine struct {
	provider     llm.Provider
	model        string
	table        *signature.Table
	parallelism  int
	probeTimeout time.Duration
	scratchDir   string
	outputDir    string
	name         string
	store        *Store
	index        index.Index
	logger       *slog.Logger
	metrics      *telemetry.DissectionMetrics
	tracer       trace.Tracer
}

// Option configures an Engine.
type Option func(*Engine)

// WithModel sets the completion model used for behavioral probes.
func WithModel(model string) Option {
	return func(e *Engine) { e.model = model }
}

// WithTable sets the classification table. Nil falls back to the built-in
// default at build time.
func WithTable(table *signature.Table) Option {
	return func(e *Engine) { e.table = table }
}

// WithParallelism bounds how many artifacts are dissected concurrently.
func WithParallelism(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.parallelism = n
		}
	}
}

// WithProbeTimeout bounds each individual probe completion.
func WithProbeTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.probeTimeout = d
		}
	}
}

// WithScratchDir sets where archive scratch directories are created.
// Empty means the system temp directory.
func WithScratchDir(dir string) Option {
	return func(e *Engine) { e.scratchDir = dir }
}

// WithOutputDir sets where run outputs are written.
func WithOutputDir(dir string) Option {
	return func(e *Engine) {
		if dir != "" {
			e.outputDir = dir
		}
	}
}

// WithBlueprintName names the synthesized blueprint.
func WithBlueprintName(name string) Option {
	return func(e *Engine) {
		if name != "" {
			e.name = name
		}
	}
}

// WithStore enables run-history persistence.
func WithStore(store *Store) Option {
	return func(e *Engine) { e.store = store }
}

// WithIndex enables capability-vector indexing.
func WithIndex(idx index.Index) Option {
	return func(e *Engine) { e.index = idx }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithMetrics attaches dissection metrics. Nil metrics are safe.
func WithMetrics(metrics *telemetry.DissectionMetrics) Option {
	return func(e *Engine) { e.metrics = metrics }
}

// New builds an Engine probing through the given provider.
func New(provider llm.Provider, opts ...Option) *Engine {
	e := &Engine{
		provider:     provider,
		parallelism:  4,
		probeTimeout: 30 * time.Second,
		outputDir:    ".",
		name:         "chimera-blueprint",
		logger:       slog.Default(),
		tracer:       otel.Tracer("chimera/dissect"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// RunResult is what a successful run hands back to the caller.
type RunResult struct {
	RunID         string
	Report        *Report
	ReportPath    string
	Blueprint     *blueprint.Blueprint
	BlueprintPath string
}

// artifactOutcome carries one worker's result plus the pieces the
// synthesis stage needs.
type artifactOutcome struct {
	result  ArtifactResult
	sig     *signature.ArtifactSignature
	tensors []gguf.TensorBuffer
}

// Run discovers artifacts under the roots, dissects them concurrently and
// synthesizes the blueprint. Artifact-local failures are recorded and
// skipped; a run with nothing discovered or nothing dissected fails with
// DEGENERATE_INPUT.
func (e *Engine) Run(ctx context.Context, roots ...string) (*RunResult, error) {
	runID := uuid.NewString()
	started := time.Now().UTC()

	candidates, err := Discover(roots...)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, errors.New(errors.CodeDegenerateInput, "no artifacts discovered", nil).
			WithContext("roots", strings.Join(roots, ", "))
	}

	names := displayNames(candidates)
	e.logger.Info("dissection run started",
		"run_id", runID, "artifacts", len(candidates), "parallelism", e.parallelism)
	ctx, span := e.tracer.Start(ctx, "Dissect.Run", trace.WithAttributes(
		telemetry.RunAttributes(runID, e.name, len(candidates), 0, e.parallelism)...,
	))
	defer span.End()

	outcomes := make([]artifactOutcome, len(candidates))
	sem := make(chan struct{}, e.parallelism)
	var active atomic.Int64
	var wg sync.WaitGroup

	for i, candidate := range candidates {
		wg.Add(1)
		go func(i int, candidate Candidate) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			e.metrics.RecordActiveWorkers(ctx, active.Add(1))
			defer func() { e.metrics.RecordActiveWorkers(ctx, active.Add(-1)) }()

			outcomes[i] = e.dissectCandidate(ctx, i, names[i], candidate)
		}(i, candidate)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, errors.New(errors.CodeCanceled, "dissection run canceled", err).
			WithContext("run_id", runID)
	}

	results := make([]ArtifactResult, len(outcomes))
	inputs := make([]merger.ArtifactTensors, len(outcomes))
	var sigs []signature.ArtifactSignature
	dissected := 0
	for i, outcome := range outcomes {
		results[i] = outcome.result
		inputs[i] = merger.ArtifactTensors{Name: outcome.result.Name, Tensors: outcome.tensors}
		if outcome.result.Status == StatusDissected {
			dissected++
			sigs = append(sigs, *outcome.sig)
		}
	}
	if dissected == 0 {
		return nil, errors.New(errors.CodeDegenerateInput, "no artifacts dissected", nil).
			WithContext("run_id", runID).
			WithContext("discovered", len(candidates))
	}
	span.SetAttributes(telemetry.RunAttributes(runID, e.name, len(candidates), dissected, e.parallelism)...)

	merged := merger.Merge(inputs)
	for _, bucket := range merger.Buckets() {
		span.AddEvent("bucket merged", trace.WithAttributes(
			telemetry.MergeAttributes(bucket, merged.Buckets[bucket])...,
		))
	}

	bp, err := blueprint.Build(e.name, sigs)
	if err != nil {
		return nil, errors.New(errors.CodeInternal, "build blueprint", err).
			WithContext("run_id", runID)
	}
	blueprintPath, err := bp.Save(e.outputDir)
	if err != nil {
		return nil, errors.New(errors.CodeIO, "save blueprint", err).
			WithContext("run_id", runID)
	}
	span.SetAttributes(telemetry.BlueprintAttributes(e.name, blueprintPath, matrixDomains(bp))...)

	report := &Report{
		RunID:         runID,
		Name:          e.name,
		StartedAt:     started,
		FinishedAt:    time.Now().UTC(),
		Discovered:    len(candidates),
		Dissected:     dissected,
		Artifacts:     results,
		MergedTensors: len(merged.Tensors),
		Buckets:       merged.Buckets,
		BlueprintPath: blueprintPath,
	}
	reportPath, err := report.Save(e.outputDir)
	if err != nil {
		return nil, errors.New(errors.CodeIO, "save dissection report", err).
			WithContext("run_id", runID)
	}

	// History and indexing are best-effort: the run already produced its
	// outputs, so their failures are logged, never returned.
	if e.store != nil {
		if err := e.store.SaveRun(ctx, report, reportPath); err != nil {
			e.logger.Error("run store rejected the run", "run_id", runID, "error", err)
		}
	}
	if e.index != nil {
		if err := e.indexRun(ctx, runID, sigs); err != nil {
			e.logger.Error("similarity index rejected the run", "run_id", runID, "error", err)
		}
	}

	e.logger.Info(report.Summary(),
		"run_id", runID,
		"blueprint", blueprintPath,
		"merged_tensors", len(merged.Tensors))

	return &RunResult{
		RunID:         runID,
		Report:        report,
		ReportPath:    reportPath,
		Blueprint:     bp,
		BlueprintPath: blueprintPath,
	}, nil
}

func (e *Engine) dissectCandidate(ctx context.Context, idx int, name string, candidate Candidate) artifactOutcome {
	began := time.Now()
	ctx, span := e.tracer.Start(ctx, "Dissect.Artifact", trace.WithAttributes(
		telemetry.ArtifactAttributes(name, candidate.Path, "", idx, 0)...,
	))
	defer span.End()

	var outcome artifactOutcome
	var err error
	if candidate.Archive {
		outcome, err = e.dissectArchive(ctx, name, candidate.Path)
	} else {
		outcome, err = e.dissectFile(ctx, name, candidate.Path)
	}
	elapsed := time.Since(began).Seconds()

	if err != nil {
		e.logger.Error("artifact dissection failed",
			"artifact", name, "path", candidate.Path, "error", err)
		e.metrics.RecordArtifactFailure(ctx, err, name)
		return artifactOutcome{result: ArtifactResult{
			Index:          idx,
			Name:           name,
			Path:           candidate.Path,
			Status:         StatusFailed,
			Error:          err.Error(),
			ElapsedSeconds: elapsed,
		}}
	}

	outcome.result.Index = idx
	outcome.result.ElapsedSeconds = elapsed
	span.SetAttributes(telemetry.ArtifactAttributes(name, candidate.Path, outcome.sig.Architecture, idx, outcome.sig.SizeBytes)...)
	e.metrics.RecordArtifactDissected(ctx, name)
	e.logger.Info("artifact dissected",
		"artifact", name,
		"tensors", outcome.result.TensorCount,
		"parameters", outcome.sig.ParameterCount,
		"architecture", outcome.sig.Architecture)
	return outcome
}

// dissectArchive unpacks the archive into scratch and dissects its first
// viable container member. Scratch is removed no matter what.
func (e *Engine) dissectArchive(ctx context.Context, name, path string) (artifactOutcome, error) {
	dir, members, err := unpackArchive(path, e.scratchDir)
	if err != nil {
		return artifactOutcome{}, err
	}
	defer os.RemoveAll(dir)

	if len(members) == 0 {
		return artifactOutcome{}, errors.New(errors.CodeFormat, "archive holds no container members", nil).
			WithContext("archive", path)
	}

	var lastErr error
	for _, member := range members {
		if err := ctx.Err(); err != nil {
			return artifactOutcome{}, errors.New(errors.CodeCanceled, "archive dissection canceled", err)
		}
		outcome, err := e.dissectFile(ctx, name, member)
		if err == nil {
			// The archive, not the scratch member, is the artifact.
			outcome.result.Path = path
			outcome.result.Signature.Path = path
			return outcome, nil
		}
		lastErr = err
		e.logger.Warn("archive member failed, trying next",
			"archive", path, "member", filepath.Base(member), "error", err)
	}
	return artifactOutcome{}, lastErr
}

func (e *Engine) dissectFile(ctx context.Context, name, path string) (artifactOutcome, error) {
	f, err := gguf.Open(path)
	if err != nil {
		return artifactOutcome{}, artifactError(err, path)
	}
	defer f.Close()

	buffers, skipped, err := f.ExtractAll()
	if err != nil {
		return artifactOutcome{}, artifactError(err, path)
	}
	for _, tensor := range skipped {
		e.logger.Warn("skipping tensor with unsupported element type",
			"artifact", name, "tensor", tensor)
	}
	trace.SpanFromContext(ctx).SetAttributes(
		telemetry.ContainerAttributes(f.Header.Version, f.Header.TensorCount, f.Header.MetadataCount, len(skipped))...)
	e.metrics.RecordTensorsExtracted(ctx, name, int64(len(buffers)))

	prober := probe.New(e.provider, e.model,
		probe.WithTimeout(e.probeTimeout),
		probe.WithLogger(e.logger),
		probe.WithMetrics(e.metrics),
	)
	report, err := prober.Run(ctx, name)
	if err != nil {
		return artifactOutcome{}, err
	}

	sig := signature.Build(signature.Facts{
		Name:           name,
		Path:           path,
		SizeBytes:      f.Size(),
		ParameterCount: f.ParameterCount(),
		TensorCount:    len(f.Tensors),
	}, e.table, report)

	tensors := make([]gguf.TensorBuffer, len(buffers))
	for i, buffer := range buffers {
		tensors[i] = *buffer
	}

	return artifactOutcome{
		result: ArtifactResult{
			Name:           name,
			Path:           path,
			Status:         StatusDissected,
			TensorCount:    len(buffers),
			SkippedTensors: skipped,
			Signature:      &sig,
		},
		sig:     &sig,
		tensors: tensors,
	}, nil
}

func (e *Engine) indexRun(ctx context.Context, runID string, sigs []signature.ArtifactSignature) error {
	if err := e.index.EnsureCollection(ctx); err != nil {
		return err
	}
	return e.index.UpsertSignatures(ctx, runID, sigs)
}

// matrixDomains lists the blueprint's capability-matrix domains in a
// stable order for span attributes.
func matrixDomains(bp *blueprint.Blueprint) []string {
	domains := make([]string, 0, len(bp.CapabilityMatrix))
	for domain := range bp.CapabilityMatrix {
		domains = append(domains, domain)
	}
	sort.Strings(domains)
	return domains
}

// displayNames derives a unique report name per candidate from its base
// name. A repeated base name gets an ordinal suffix so matrix and routing
// keys stay unambiguous.
func displayNames(candidates []Candidate) []string {
	names := make([]string, len(candidates))
	taken := make(map[string]int, len(candidates))
	for i, candidate := range candidates {
		base := filepath.Base(candidate.Path)
		taken[base]++
		if n := taken[base]; n > 1 {
			names[i] = fmt.Sprintf("%s#%d", base, n)
		} else {
			names[i] = base
		}
	}
	return names
}

// artifactError types a decode or read failure for the error taxonomy:
// filesystem problems are IO, everything else is a format problem.
func artifactError(err error, path string) error {
	if ce, ok := err.(*errors.ChimeraError); ok {
		return ce
	}
	var pathErr *fs.PathError
	if stderrors.As(err, &pathErr) {
		return errors.New(errors.CodeIO, "read artifact", err).
			WithContext("path", path)
	}
	return errors.New(errors.CodeFormat, "decode artifact", err).
		WithContext("path", path)
}
