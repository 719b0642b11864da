package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/jllopis/chimera/pkg/config"
	"github.com/jllopis/chimera/pkg/dissect"
	"github.com/jllopis/chimera/pkg/index"
)

func runDissect(ctx context.Context, global globalFlags, cfg *config.Config, logger *slog.Logger, args []string) {
	cmd := flag.NewFlagSet("dissect", flag.ContinueOnError)
	out := cmd.String("out", "", "Output directory for blueprint and report (default from config)")
	parallel := cmd.Int("parallel", 0, "Concurrent artifact dissections (default from config)")
	model := cmd.String("model", "", "Completion model to probe through (default from config)")
	providerKind := cmd.String("provider", "", "Completion backend: ollama, openai, mock (default from config)")
	name := cmd.String("name", "", "Blueprint name (default from config)")
	noStore := cmd.Bool("no-store", false, "Skip recording the run in the history store")
	noIndex := cmd.Bool("no-index", false, "Skip indexing signatures in the similarity index")
	if err := cmd.Parse(args); err != nil {
		fatal(err)
	}
	if cmd.NArg() < 1 {
		fatal(errors.New("usage: chimera dissect <root>..."))
	}

	if *out != "" {
		cfg.Engine.OutputDir = *out
	}
	if *parallel > 0 {
		cfg.Engine.Parallelism = *parallel
	}
	if *model != "" {
		cfg.Provider.Model = *model
	}
	if *providerKind != "" {
		cfg.Provider.Kind = *providerKind
	}
	if *name != "" {
		cfg.Engine.BlueprintName = *name
	}

	provider, err := newProvider(cfg.Provider)
	if err != nil {
		fail(global.JSON, err)
	}
	table, err := loadTable(cfg.Classifier.TablePath)
	if err != nil {
		fail(global.JSON, err)
	}

	opts := []dissect.Option{
		dissect.WithModel(cfg.Provider.Model),
		dissect.WithTable(table),
		dissect.WithParallelism(cfg.Engine.Parallelism),
		dissect.WithProbeTimeout(time.Duration(cfg.Engine.ProbeTimeoutSeconds) * time.Second),
		dissect.WithScratchDir(cfg.Engine.ScratchDir),
		dissect.WithOutputDir(cfg.Engine.OutputDir),
		dissect.WithBlueprintName(cfg.Engine.BlueprintName),
		dissect.WithLogger(logger),
	}

	if cfg.Store.Enabled && !*noStore {
		store, err := dissect.OpenStore(cfg.Store.Path)
		if err != nil {
			fail(global.JSON, err)
		}
		defer store.Close()
		if err := store.Initialize(ctx); err != nil {
			fail(global.JSON, err)
		}
		opts = append(opts, dissect.WithStore(store))
	}

	if cfg.Index.Enabled && !*noIndex {
		idx, err := index.NewQdrant(cfg.Index.Addr, cfg.Index.Collection, index.WithLogger(logger))
		if err != nil {
			fail(global.JSON, err)
		}
		defer idx.Close()
		opts = append(opts, dissect.WithIndex(idx))
	}

	engine := dissect.New(provider, opts...)
	result, err := engine.Run(ctx, cmd.Args()...)
	if err != nil {
		fail(global.JSON, err)
	}

	if global.JSON {
		printJSON(result.Report)
		return
	}

	writer := newTabWriter()
	writeRow(writer, "IDX", "ARTIFACT", "STATUS", "ARCH", "PARAMS", "TENSORS", "ELAPSED")
	for _, artifact := range result.Report.Artifacts {
		arch, params := "", ""
		if artifact.Signature != nil {
			arch = artifact.Signature.Architecture
			params = formatCount(artifact.Signature.ParameterCount)
		}
		writeRow(writer,
			strconv.Itoa(artifact.Index),
			artifact.Name,
			artifact.Status,
			arch,
			params,
			strconv.Itoa(artifact.TensorCount),
			fmt.Sprintf("%.1fs", artifact.ElapsedSeconds),
		)
	}
	_ = writer.Flush()
	for _, artifact := range result.Report.Artifacts {
		if artifact.Error != "" {
			fmt.Printf("failed %s: %s\n", artifact.Name, truncateMessage(artifact.Error, 120))
		}
	}
	fmt.Printf("run %s: %s\n", result.RunID, result.Report.Summary())
	fmt.Printf("blueprint: %s\n", result.BlueprintPath)
	fmt.Printf("report: %s\n", result.ReportPath)
}
