package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/jllopis/chimera/pkg/config"
	"github.com/jllopis/chimera/pkg/probe"
)

func runProbe(ctx context.Context, global globalFlags, cfg *config.Config, logger *slog.Logger, args []string) {
	cmd := flag.NewFlagSet("probe", flag.ContinueOnError)
	model := cmd.String("model", "", "Completion model to probe (default from config)")
	providerKind := cmd.String("provider", "", "Completion backend: ollama, openai, mock (default from config)")
	if err := cmd.Parse(args); err != nil {
		fatal(err)
	}
	ensureNoArgs(cmd.Args())

	if *model != "" {
		cfg.Provider.Model = *model
	}
	if *providerKind != "" {
		cfg.Provider.Kind = *providerKind
	}
	if cfg.Provider.Model == "" {
		fail(global.JSON, NewInvalidArgumentError("model", "no model named; pass --model or set provider.model"))
	}

	provider, err := newProvider(cfg.Provider)
	if err != nil {
		fail(global.JSON, err)
	}

	prober := probe.New(provider, cfg.Provider.Model,
		probe.WithTimeout(time.Duration(cfg.Engine.ProbeTimeoutSeconds)*time.Second),
		probe.WithLogger(logger),
	)
	report, err := prober.Run(ctx, cfg.Provider.Model)
	if err != nil {
		fail(global.JSON, err)
	}

	if global.JSON {
		printJSON(report)
		return
	}

	writer := newTabWriter()
	writeRow(writer, "DOMAIN", "STRENGTH", "TOKENS")
	for _, capability := range report.Capabilities {
		writeRow(writer,
			string(capability.Domain),
			fmt.Sprintf("%.2f", capability.Strength),
			strings.Join(capability.SpecializedTokens, ","),
		)
	}
	_ = writer.Flush()
	if len(report.Capabilities) == 0 {
		fmt.Println("no domain cleared the inclusion threshold")
	}
	printScores("strengths", report.Strengths)
	printScores("weaknesses", report.Weaknesses)
	if len(report.UniqueFeatures) > 0 {
		fmt.Printf("unique: %s\n", strings.Join(report.UniqueFeatures, ", "))
	}
	opt := report.Optimization
	fmt.Printf("optimization: speed=%.2f memory=%.2f consistency=%.2f context=%.2f quantization=%t\n",
		opt.InferenceSpeed, opt.MemoryEfficiency, opt.AccuracyConsistency, opt.ContextHandling, opt.QuantizationFriendly)
}

func printScores(label string, scores map[string]float64) {
	if len(scores) == 0 {
		return
	}
	keys := make([]string, 0, len(scores))
	for key := range scores {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, key := range keys {
		parts = append(parts, fmt.Sprintf("%s=%.2f", key, scores[key]))
	}
	fmt.Printf("%s: %s\n", label, strings.Join(parts, " "))
}
