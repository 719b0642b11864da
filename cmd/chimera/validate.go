// Copyright 2026 © The Chimera Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/jllopis/chimera/pkg/config"
	"github.com/jllopis/chimera/pkg/dissect"
	"github.com/jllopis/chimera/pkg/signature"
)

type validateResult struct {
	Config   checkResult `json:"config"`
	Table    checkResult `json:"table"`
	Provider checkResult `json:"provider"`
	Store    checkResult `json:"store"`
	Index    checkResult `json:"index"`
	Overall  string      `json:"overall"`
}

type checkResult struct {
	Name    string `json:"name"`
	Status  string `json:"status"` // "ok", "warn", "error", "skip"
	Message string `json:"message,omitempty"`
}

func runValidate(ctx context.Context, global globalFlags, cfg *config.Config, args []string) {
	cmd := flag.NewFlagSet("validate", flag.ContinueOnError)
	tablePath := cmd.String("table", "", "Classification table file to validate (default from config)")
	if err := cmd.Parse(args); err != nil {
		fatal(err)
	}
	ensureNoArgs(cmd.Args())

	path := *tablePath
	if path == "" {
		path = cfg.Classifier.TablePath
	}

	// Reaching this point means the config itself loaded.
	result := validateResult{
		Config:   checkResult{Name: "config", Status: "ok"},
		Table:    validateTable(path),
		Provider: validateProvider(cfg.Provider),
		Store:    validateStore(ctx, cfg.Store),
		Index:    validateIndex(cfg.Index),
	}

	result.Overall = "ok"
	checks := []checkResult{result.Config, result.Table, result.Provider, result.Store, result.Index}
	for _, check := range checks {
		switch check.Status {
		case "error":
			result.Overall = "error"
		case "warn":
			if result.Overall == "ok" {
				result.Overall = "warn"
			}
		}
	}

	if global.JSON {
		printJSON(result)
	} else {
		writer := newTabWriter()
		writeRow(writer, "CHECK", "STATUS", "MESSAGE")
		for _, check := range checks {
			writeRow(writer, check.Name, check.Status, check.Message)
		}
		_ = writer.Flush()
		fmt.Printf("overall: %s\n", result.Overall)
	}
	if result.Overall == "error" {
		os.Exit(1)
	}
}

func validateTable(path string) checkResult {
	if path == "" {
		if err := signature.DefaultTable().Validate(); err != nil {
			return checkResult{Name: "table", Status: "error", Message: err.Error()}
		}
		return checkResult{Name: "table", Status: "ok", Message: "built-in default table"}
	}
	table, err := signature.LoadTable(path)
	if err != nil {
		return checkResult{Name: "table", Status: "error", Message: err.Error()}
	}
	return checkResult{Name: "table", Status: "ok", Message: fmt.Sprintf("%d rules from %s", len(table.Rules), path)}
}

func validateProvider(cfg config.ProviderConfig) checkResult {
	switch cfg.Kind {
	case "mock":
		return checkResult{Name: "provider", Status: "ok", Message: "offline mock backend"}
	case "ollama", "openai", "":
	default:
		return checkResult{Name: "provider", Status: "error", Message: fmt.Sprintf("unknown provider kind %q", cfg.Kind)}
	}
	if cfg.Model == "" {
		return checkResult{Name: "provider", Status: "warn", Message: "no model configured"}
	}
	if !checkHTTP(cfg.BaseURL) {
		return checkResult{Name: "provider", Status: "warn", Message: fmt.Sprintf("%s is not reachable", cfg.BaseURL)}
	}
	return checkResult{Name: "provider", Status: "ok", Message: fmt.Sprintf("%s at %s", cfg.Model, cfg.BaseURL)}
}

func validateStore(ctx context.Context, cfg config.StoreConfig) checkResult {
	if !cfg.Enabled {
		return checkResult{Name: "store", Status: "skip", Message: "disabled"}
	}
	store, err := dissect.OpenStore(cfg.Path)
	if err != nil {
		return checkResult{Name: "store", Status: "error", Message: err.Error()}
	}
	defer store.Close()
	if err := store.Initialize(ctx); err != nil {
		return checkResult{Name: "store", Status: "error", Message: err.Error()}
	}
	return checkResult{Name: "store", Status: "ok", Message: cfg.Path}
}

func validateIndex(cfg config.IndexConfig) checkResult {
	if !cfg.Enabled {
		return checkResult{Name: "index", Status: "skip", Message: "disabled"}
	}
	if !checkTCP(cfg.Addr) {
		return checkResult{Name: "index", Status: "warn", Message: fmt.Sprintf("%s is not reachable", cfg.Addr)}
	}
	return checkResult{Name: "index", Status: "ok", Message: cfg.Addr}
}
