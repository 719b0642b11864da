package signature

import (
	"github.com/jllopis/chimera/pkg/probe"
)

// Facts are the measured container facts for one artifact: everything
// here comes from the file itself, not from classification heuristics.
type Facts struct {
	Name           string
	Path           string
	SizeBytes      int64
	ParameterCount uint64
	TensorCount    int
}

// ArtifactSignature is the immutable per-artifact summary fusing
// measured container facts, classified family facts, and the probe
// report. Built once after probing, never mutated.
type ArtifactSignature struct {
	ArtifactName       string             `json:"artifact_name"`
	Path               string             `json:"path"`
	SizeBytes          int64              `json:"size_bytes"`
	Architecture       string             `json:"architecture_label"`
	ParameterCount     uint64             `json:"parameter_count_estimate"`
	TensorCount        int                `json:"tensor_count"`
	LayerCount         int                `json:"layer_count_estimate"`
	AttentionHeads     int                `json:"attention_head_estimate"`
	VocabSize          int                `json:"vocab_size_estimate"`
	ContextLength      int                `json:"context_length"`
	KnowledgeDomains   []string           `json:"knowledge_domains"`
	ReasoningPatterns  []string           `json:"reasoning_patterns"`
	FamilyStrengths    []string           `json:"family_strengths"`
	FamilyWeaknesses   []string           `json:"family_weaknesses"`
	UniqueCapabilities []string           `json:"unique_capabilities"`
	Capabilities       []probe.Capability `json:"capabilities"`
	Strengths          map[string]float64 `json:"strengths"`
	Weaknesses         map[string]float64 `json:"weaknesses"`
	UniqueFeatures     []string           `json:"unique_features"`
	Optimization       probe.Optimization `json:"optimization"`
	TokenEfficiency    float64            `json:"token_efficiency"`
	InferenceSpeed     float64            `json:"inference_speed_score"`
}

// Build fuses container facts, the classification table, and a probe
// report into a signature. Pure: no I/O, deterministic for the same
// inputs. A nil table falls back to the built-in default; a nil report
// yields empty behavioral fields.
func Build(facts Facts, table *Table, report *probe.Report) ArtifactSignature {
	if table == nil {
		table = DefaultTable()
	}
	if report == nil {
		report = &probe.Report{}
	}
	rule := table.Classify(facts.Name)

	return ArtifactSignature{
		ArtifactName:       facts.Name,
		Path:               facts.Path,
		SizeBytes:          facts.SizeBytes,
		Architecture:       rule.Architecture,
		ParameterCount:     facts.ParameterCount,
		TensorCount:        facts.TensorCount,
		LayerCount:         rule.Layers,
		AttentionHeads:     rule.AttentionHeads,
		VocabSize:          rule.VocabSize,
		ContextLength:      rule.ContextLength,
		KnowledgeDomains:   cloneStrings(rule.KnowledgeDomains),
		ReasoningPatterns:  cloneStrings(rule.ReasoningPatterns),
		FamilyStrengths:    cloneStrings(rule.Strengths),
		FamilyWeaknesses:   cloneStrings(rule.Weaknesses),
		UniqueCapabilities: cloneStrings(rule.UniqueCapabilities),
		Capabilities:       cloneCapabilities(report.Capabilities),
		Strengths:          cloneScores(report.Strengths),
		Weaknesses:         cloneScores(report.Weaknesses),
		UniqueFeatures:     cloneStrings(report.UniqueFeatures),
		Optimization:       report.Optimization,
		TokenEfficiency:    tokenEfficiency(rule),
		InferenceSpeed:     inferenceSpeedScore(facts.SizeBytes, rule.Layers),
	}
}

// tokenEfficiency scores vocab coverage against context handling and
// depth, capped at 2.0.
func tokenEfficiency(rule Rule) float64 {
	if rule.Layers <= 0 {
		return 0
	}
	efficiency := (float64(rule.VocabSize) / 100000) *
		(float64(rule.ContextLength) / 8192) *
		(32 / float64(rule.Layers))
	if efficiency > 2.0 {
		return 2.0
	}
	return efficiency
}

// inferenceSpeedScore estimates relative speed from file size and layer
// depth, floored at 0.1.
func inferenceSpeedScore(sizeBytes int64, layers int) float64 {
	sizeMB := float64(sizeBytes) / (1024 * 1024)
	score := 10000 / (sizeMB + float64(layers)*10)
	if score < 0.1 {
		return 0.1
	}
	return score
}

func cloneStrings(in []string) []string {
	out := make([]string, len(in))
	copy(out, in)
	return out
}

func cloneScores(in map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func cloneCapabilities(in []probe.Capability) []probe.Capability {
	out := make([]probe.Capability, len(in))
	copy(out, in)
	return out
}
