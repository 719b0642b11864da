package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/jllopis/chimera/pkg/config"
	"github.com/jllopis/chimera/pkg/dissect"
	"github.com/jllopis/chimera/pkg/index"
)

// openStore opens the configured run store. History commands need it
// even when store.enabled is off for dissection runs.
func openStore(ctx context.Context, global globalFlags, cfg *config.Config) *dissect.Store {
	store, err := dissect.OpenStore(cfg.Store.Path)
	if err != nil {
		fail(global.JSON, err)
	}
	if err := store.Initialize(ctx); err != nil {
		_ = store.Close()
		fail(global.JSON, err)
	}
	return store
}

func runRuns(ctx context.Context, global globalFlags, cfg *config.Config, args []string) {
	cmd := flag.NewFlagSet("runs", flag.ContinueOnError)
	limit := cmd.Int("limit", 20, "Maximum runs to list")
	if err := cmd.Parse(args); err != nil {
		fatal(err)
	}
	ensureNoArgs(cmd.Args())

	store := openStore(ctx, global, cfg)
	defer store.Close()

	runs, err := store.ListRuns(ctx, *limit)
	if err != nil {
		fail(global.JSON, err)
	}
	if global.JSON {
		printJSON(runs)
		return
	}
	writer := newTabWriter()
	writeRow(writer, "RUN_ID", "NAME", "STARTED", "STATUS", "DISSECTED", "BLUEPRINT")
	for _, run := range runs {
		writeRow(writer,
			run.ID,
			run.Name,
			formatTime(run.StartedAt),
			run.Status,
			fmt.Sprintf("%d/%d", run.Dissected, run.Discovered),
			run.BlueprintPath,
		)
	}
	_ = writer.Flush()
}

func runBlueprint(ctx context.Context, global globalFlags, cfg *config.Config, args []string) {
	cmd := flag.NewFlagSet("blueprint", flag.ContinueOnError)
	if err := cmd.Parse(args); err != nil {
		fatal(err)
	}
	if cmd.NArg() != 1 {
		fatal(errors.New("usage: chimera blueprint <run-id>"))
	}
	runID := cmd.Arg(0)

	store := openStore(ctx, global, cfg)
	defer store.Close()

	run, err := store.GetRun(ctx, runID)
	if err != nil {
		fail(global.JSON, err)
	}
	if run.BlueprintPath == "" {
		fail(global.JSON, NewNotFoundError("blueprint", runID))
	}
	payload, err := os.ReadFile(run.BlueprintPath)
	if err != nil {
		fail(global.JSON, WrapFileError(err, run.BlueprintPath))
	}
	// The stored document is already indented JSON; re-emit it verbatim.
	_, _ = os.Stdout.Write(payload)
}

func runSimilar(ctx context.Context, global globalFlags, cfg *config.Config, args []string) {
	cmd := flag.NewFlagSet("similar", flag.ContinueOnError)
	limit := cmd.Int("limit", 5, "Neighbors to return")
	if err := cmd.Parse(args); err != nil {
		fatal(err)
	}
	if cmd.NArg() != 1 {
		fatal(errors.New("usage: chimera similar <artifact>"))
	}
	name := cmd.Arg(0)

	store := openStore(ctx, global, cfg)
	defer store.Close()

	artifact, err := store.FindArtifact(ctx, name)
	if err != nil {
		fail(global.JSON, err)
	}
	if artifact.Signature == nil {
		fail(global.JSON, NewNotFoundError("signature", name))
	}

	idx, err := index.NewQdrant(cfg.Index.Addr, cfg.Index.Collection)
	if err != nil {
		fail(global.JSON, err)
	}
	defer idx.Close()

	matches, err := idx.Similar(ctx, index.Vector(*artifact.Signature), *limit)
	if err != nil {
		fail(global.JSON, err)
	}
	if global.JSON {
		printJSON(matches)
		return
	}
	writer := newTabWriter()
	writeRow(writer, "SCORE", "ARTIFACT", "ARCH", "PARAMS", "RUN_ID")
	for _, match := range matches {
		writeRow(writer,
			fmt.Sprintf("%.3f", match.Score),
			match.Artifact,
			match.Architecture,
			formatCount(uint64(match.Parameters)),
			match.RunID,
		)
	}
	_ = writer.Flush()
}
