// Copyright 2026 © The Chimera Authors
// SPDX-License-Identifier: Apache-2.0

// Package telemetry provides OpenTelemetry integration with rich attributes
// for dissection observability.
package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Semantic conventions for Chimera telemetry.
// These follow OpenTelemetry naming conventions where applicable.
const (
	// Run attributes
	AttrRunID         = "chimera.run.id"
	AttrRunName       = "chimera.run.name"
	AttrRunDiscovered = "chimera.run.discovered"
	AttrRunDissected  = "chimera.run.dissected"
	AttrRunParallel   = "chimera.run.parallelism"

	// Artifact attributes
	AttrArtifactName  = "chimera.artifact.name"
	AttrArtifactPath  = "chimera.artifact.path"
	AttrArtifactIndex = "chimera.artifact.index"
	AttrArtifactArch  = "chimera.artifact.architecture"
	AttrArtifactSize  = "chimera.artifact.size_bytes"

	// Container attributes
	AttrContainerVersion = "chimera.container.version"
	AttrTensorCount      = "chimera.container.tensor_count"
	AttrMetadataCount    = "chimera.container.metadata_count"
	AttrTensorsSkipped   = "chimera.container.tensors_skipped"

	// Probe attributes
	AttrProbeDomain    = "chimera.probe.domain"
	AttrProbeScore     = "chimera.probe.score"
	AttrProbeLatencyMs = "chimera.probe.latency_ms"

	// Merge attributes
	AttrMergeBucket      = "chimera.merge.bucket"
	AttrMergeTensorCount = "chimera.merge.tensor_count"

	// Blueprint attributes
	AttrBlueprintName    = "chimera.blueprint.name"
	AttrBlueprintPath    = "chimera.blueprint.path"
	AttrBlueprintDomains = "chimera.blueprint.domains"

	// Index attributes
	AttrIndexCollection = "chimera.index.collection"
	AttrIndexPoints     = "chimera.index.points"

	// Completion attributes (extending standard gen_ai conventions)
	AttrLLMModel      = "gen_ai.request.model"
	AttrLLMProvider   = "gen_ai.system"
	AttrLLMMaxTokens  = "gen_ai.request.max_tokens"
	AttrLLMDurationMs = "gen_ai.duration_ms"
)

// RunAttributes returns common attributes for run-level spans.
func RunAttributes(runID, name string, discovered, dissected, parallelism int) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String(AttrRunID, runID),
	}
	if name != "" {
		attrs = append(attrs, attribute.String(AttrRunName, name))
	}
	if discovered > 0 {
		attrs = append(attrs, attribute.Int(AttrRunDiscovered, discovered))
	}
	if dissected > 0 {
		attrs = append(attrs, attribute.Int(AttrRunDissected, dissected))
	}
	if parallelism > 0 {
		attrs = append(attrs, attribute.Int(AttrRunParallel, parallelism))
	}
	return attrs
}

// ArtifactAttributes returns attributes for artifact dissection spans.
func ArtifactAttributes(name, path, arch string, index int, sizeBytes int64) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String(AttrArtifactName, name),
		attribute.Int(AttrArtifactIndex, index),
	}
	if path != "" {
		attrs = append(attrs, attribute.String(AttrArtifactPath, path))
	}
	if arch != "" {
		attrs = append(attrs, attribute.String(AttrArtifactArch, arch))
	}
	if sizeBytes > 0 {
		attrs = append(attrs, attribute.Int64(AttrArtifactSize, sizeBytes))
	}
	return attrs
}

// ContainerAttributes returns attributes describing a decoded container.
func ContainerAttributes(version uint32, tensorCount, metadataCount uint64, skipped int) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.Int64(AttrContainerVersion, int64(version)),
		attribute.Int64(AttrTensorCount, int64(tensorCount)),
		attribute.Int64(AttrMetadataCount, int64(metadataCount)),
	}
	if skipped > 0 {
		attrs = append(attrs, attribute.Int(AttrTensorsSkipped, skipped))
	}
	return attrs
}

// ProbeAttributes returns attributes for a behavioral probe span.
func ProbeAttributes(domain string, score float64, latencyMs float64) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrProbeDomain, domain),
		attribute.Float64(AttrProbeScore, score),
		attribute.Float64(AttrProbeLatencyMs, latencyMs),
	}
}

// CompletionAttributes returns attributes for completion-capability calls.
func CompletionAttributes(model, provider string, maxTokens int) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String(AttrLLMModel, model),
	}
	if provider != "" {
		attrs = append(attrs, attribute.String(AttrLLMProvider, provider))
	}
	if maxTokens > 0 {
		attrs = append(attrs, attribute.Int(AttrLLMMaxTokens, maxTokens))
	}
	return attrs
}

// MergeAttributes returns attributes for weight-merge spans.
func MergeAttributes(bucket string, tensorCount int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrMergeBucket, bucket),
		attribute.Int(AttrMergeTensorCount, tensorCount),
	}
}

// BlueprintAttributes returns attributes for blueprint synthesis spans.
func BlueprintAttributes(name, path string, domains []string) []attribute.KeyValue {
	attrs := []attribute.KeyValue{}
	if name != "" {
		attrs = append(attrs, attribute.String(AttrBlueprintName, name))
	}
	if path != "" {
		attrs = append(attrs, attribute.String(AttrBlueprintPath, path))
	}
	if len(domains) > 0 {
		attrs = append(attrs, attribute.StringSlice(AttrBlueprintDomains, domains))
	}
	return attrs
}

// IndexAttributes returns attributes for similarity-index operations.
func IndexAttributes(collection string, points int) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String(AttrIndexCollection, collection),
	}
	if points > 0 {
		attrs = append(attrs, attribute.Int(AttrIndexPoints, points))
	}
	return attrs
}
