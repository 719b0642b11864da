package mcp

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/jllopis/chimera/pkg/dissect"
	"github.com/jllopis/chimera/pkg/gguf"
	"github.com/jllopis/chimera/pkg/llm"
	"github.com/jllopis/chimera/pkg/probe"
	"github.com/jllopis/chimera/pkg/signature"
)

// ToolConfig carries what the chimera tools need to run.
type ToolConfig struct {
	// Provider is the completion backend used for probes. Required for
	// probe_model and dissect.
	Provider llm.Provider
	// Model is the default probe model when the caller names none.
	Model string
	// Table is the classification table; nil means the built-in default.
	Table *signature.Table
	// OutputDir is where dissect runs write their documents.
	OutputDir string
	// ScratchDir is where archives are unpacked.
	ScratchDir string
	// Parallelism bounds concurrent artifact dissections.
	Parallelism int
	// ProbeTimeout bounds each probe completion.
	ProbeTimeout time.Duration
	// Logger for run output. Nil means slog.Default().
	Logger *slog.Logger
	// Settings, when non-nil, is consulted on every tool call so a
	// long-running server can swap the provider or table between calls.
	// Nil means the static fields above stand for the server's lifetime.
	Settings func() ToolConfig
}

// resolve returns the configuration a single tool call should run with.
func (c ToolConfig) resolve() ToolConfig {
	if c.Settings != nil {
		return c.Settings()
	}
	return c
}

func (c ToolConfig) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.Default()
}

// RegisterTools wires the chimera tool set onto the server.
func RegisterTools(s *Server, cfg ToolConfig) {
	s.RegisterTool("inspect_artifact", inspectHandler(cfg),
		mcp.WithDescription("Decode a GGUF container and return its structural summary: header, metadata and tensor table facts. No probing."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Path to the .gguf artifact")),
	)
	s.RegisterTool("probe_model", probeHandler(cfg),
		mcp.WithDescription("Run the behavioral probe battery against a completion model and return its capability report."),
		mcp.WithString("model", mcp.Description("Model name; defaults to the configured probe model")),
	)
	s.RegisterTool("dissect", dissectHandler(cfg),
		mcp.WithDescription("Run a full dissection over a directory of artifacts and return the run summary."),
		mcp.WithString("root", mcp.Required(), mcp.Description("Directory to discover artifacts under")),
	)
}

func inspectHandler(cfg ToolConfig) func(ctx context.Context, args map[string]interface{}) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, args map[string]interface{}) (*mcp.CallToolResult, error) {
		path, _ := args["path"].(string)
		if path == "" {
			return mcp.NewToolResultError("path is required"), nil
		}

		f, err := gguf.Open(path)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		defer f.Close()

		summary := map[string]interface{}{
			"path":               path,
			"version":            f.Header.Version,
			"tensor_count":       len(f.Tensors),
			"metadata_count":     len(f.Metadata),
			"alignment":          f.Alignment,
			"parameter_estimate": f.ParameterCount(),
			"size_bytes":         f.Size(),
		}
		if name, ok := f.MetaString("general.name"); ok {
			summary["general_name"] = name
		}
		if arch, ok := f.MetaString("general.architecture"); ok {
			summary["general_architecture"] = arch
		}
		return jsonResult(summary)
	}
}

func probeHandler(cfg ToolConfig) func(ctx context.Context, args map[string]interface{}) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, args map[string]interface{}) (*mcp.CallToolResult, error) {
		cfg := cfg.resolve()
		model, _ := args["model"].(string)
		if model == "" {
			model = cfg.Model
		}
		if model == "" {
			return mcp.NewToolResultError("no model named and no default configured"), nil
		}
		if cfg.Provider == nil {
			return mcp.NewToolResultError("no completion provider configured"), nil
		}

		prober := probe.New(cfg.Provider, model,
			probe.WithTimeout(cfg.ProbeTimeout),
			probe.WithLogger(cfg.logger()),
		)
		report, err := prober.Run(ctx, model)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return jsonResult(report)
	}
}

func dissectHandler(cfg ToolConfig) func(ctx context.Context, args map[string]interface{}) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, args map[string]interface{}) (*mcp.CallToolResult, error) {
		cfg := cfg.resolve()
		root, _ := args["root"].(string)
		if root == "" {
			return mcp.NewToolResultError("root is required"), nil
		}
		if cfg.Provider == nil {
			return mcp.NewToolResultError("no completion provider configured"), nil
		}

		engine := dissect.New(cfg.Provider,
			dissect.WithModel(cfg.Model),
			dissect.WithTable(cfg.Table),
			dissect.WithOutputDir(cfg.OutputDir),
			dissect.WithScratchDir(cfg.ScratchDir),
			dissect.WithParallelism(cfg.Parallelism),
			dissect.WithProbeTimeout(cfg.ProbeTimeout),
			dissect.WithLogger(cfg.logger()),
		)
		result, err := engine.Run(ctx, root)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		return jsonResult(map[string]interface{}{
			"run_id":         result.RunID,
			"summary":        result.Report.Summary(),
			"discovered":     result.Report.Discovered,
			"dissected":      result.Report.Dissected,
			"blueprint_path": result.BlueprintPath,
			"report_path":    result.ReportPath,
		})
	}
}

func jsonResult(v interface{}) (*mcp.CallToolResult, error) {
	payload, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, err
	}
	return mcp.NewToolResultText(string(payload)), nil
}
