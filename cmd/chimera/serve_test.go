// Copyright 2026 © The Chimera Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"io"
	"log/slog"
	"testing"

	"github.com/jllopis/chimera/pkg/config"
)

func testServeConfig() *config.Config {
	return &config.Config{
		Provider: config.ProviderConfig{Kind: "mock", Model: "model-a", TimeoutSeconds: 5},
		Engine:   config.EngineConfig{Parallelism: 2, ProbeTimeoutSeconds: 5},
	}
}

func testServeLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestToolSourceRebuildsOnUpdate(t *testing.T) {
	src := &toolSource{live: config.NewReloadableConfig(testServeConfig()), logger: testServeLogger()}

	first := src.current()
	if first.Model != "model-a" {
		t.Fatalf("model = %q, want model-a", first.Model)
	}
	if first.Provider == nil {
		t.Fatal("provider not built")
	}
	if src.current().Provider != first.Provider {
		t.Error("unchanged config should reuse the cached build")
	}

	next := testServeConfig()
	next.Provider.Model = "model-b"
	src.live.Update(next)

	second := src.current()
	if second.Model != "model-b" {
		t.Errorf("model = %q, want model-b after reload", second.Model)
	}
	if second.Provider == first.Provider {
		t.Error("reload should rebuild the provider")
	}
}

func TestToolSourceKeepsLastGoodOnBadReload(t *testing.T) {
	src := &toolSource{live: config.NewReloadableConfig(testServeConfig()), logger: testServeLogger()}
	good := src.current()

	bad := testServeConfig()
	bad.Provider.Kind = "nonesuch"
	src.live.Update(bad)

	kept := src.current()
	if kept.Provider != good.Provider || kept.Model != good.Model {
		t.Error("rejected reload should keep the previous settings")
	}
	// The rejected pointer is remembered so the bad config is not
	// rebuilt on every call.
	if src.current().Provider != good.Provider {
		t.Error("second call after rejection should still serve the last good build")
	}
}

func TestBuildToolConfigUnknownProvider(t *testing.T) {
	cfg := testServeConfig()
	cfg.Provider.Kind = "nonesuch"
	if _, err := buildToolConfig(cfg, testServeLogger()); err == nil {
		t.Fatal("expected error for unknown provider kind")
	}
}
