// Package signature classifies artifacts by filename against a
// configurable rule table and fuses container facts with probe reports
// into one immutable ArtifactSignature per artifact.
package signature

import (
	"fmt"
	"strings"
)

// Rule maps filename substring patterns to the nominal facts of one
// model family. A rule matches when every Match substring occurs in the
// lowercased artifact name; an empty Match list is a catch-all.
type Rule struct {
	Match              []string `json:"match,omitempty" yaml:"match,omitempty"`
	Architecture       string   `json:"architecture" yaml:"architecture"`
	Layers             int      `json:"layers" yaml:"layers"`
	AttentionHeads     int      `json:"attention_heads" yaml:"attention_heads"`
	VocabSize          int      `json:"vocab_size" yaml:"vocab_size"`
	ContextLength      int      `json:"context_length" yaml:"context_length"`
	KnowledgeDomains   []string `json:"knowledge_domains,omitempty" yaml:"knowledge_domains,omitempty"`
	ReasoningPatterns  []string `json:"reasoning_patterns,omitempty" yaml:"reasoning_patterns,omitempty"`
	Strengths          []string `json:"strengths,omitempty" yaml:"strengths,omitempty"`
	Weaknesses         []string `json:"weaknesses,omitempty" yaml:"weaknesses,omitempty"`
	UniqueCapabilities []string `json:"unique_capabilities,omitempty" yaml:"unique_capabilities,omitempty"`
}

// Matches reports whether every pattern of the rule occurs in the
// lowercased name.
func (r Rule) Matches(loweredName string) bool {
	for _, pattern := range r.Match {
		if !strings.Contains(loweredName, strings.ToLower(pattern)) {
			return false
		}
	}
	return true
}

// Table is an ordered rule list. First match wins, so more specific
// rules (family plus size) must precede plain family rules, and the
// catch-all default closes the table.
type Table struct {
	Rules []Rule `json:"rules" yaml:"rules"`
}

// Classify returns the first rule matching the artifact name. On a
// table without a catch-all, the built-in default rule is returned.
func (t *Table) Classify(artifactName string) Rule {
	lowered := strings.ToLower(artifactName)
	for _, rule := range t.Rules {
		if rule.Matches(lowered) {
			return rule
		}
	}
	return fallbackRule()
}

// Validate ensures the table is well-formed: at least one rule, complete
// facts on every rule, and a final catch-all so classification is total.
func (t *Table) Validate() error {
	if t == nil {
		return fmt.Errorf("table is nil")
	}
	if len(t.Rules) == 0 {
		return fmt.Errorf("table has no rules")
	}
	for i, rule := range t.Rules {
		if rule.Architecture == "" {
			return fmt.Errorf("rule %d: architecture is required", i)
		}
		if rule.Layers <= 0 {
			return fmt.Errorf("rule %d (%s): layers must be positive", i, rule.Architecture)
		}
		if rule.AttentionHeads <= 0 {
			return fmt.Errorf("rule %d (%s): attention_heads must be positive", i, rule.Architecture)
		}
		if rule.VocabSize <= 0 {
			return fmt.Errorf("rule %d (%s): vocab_size must be positive", i, rule.Architecture)
		}
		if rule.ContextLength <= 0 {
			return fmt.Errorf("rule %d (%s): context_length must be positive", i, rule.Architecture)
		}
		if len(rule.Match) == 0 && i != len(t.Rules)-1 {
			return fmt.Errorf("rule %d (%s): catch-all must be the last rule", i, rule.Architecture)
		}
	}
	if len(t.Rules[len(t.Rules)-1].Match) != 0 {
		return fmt.Errorf("last rule must be a catch-all (empty match)")
	}
	return nil
}

// sized derives a size-variant rule from a family rule: same facts and
// word lists, narrower match, its own layer and head counts.
func sized(base Rule, size string, layers, heads int) Rule {
	r := base
	r.Match = append(append([]string{}, base.Match...), size)
	r.Layers = layers
	r.AttentionHeads = heads
	return r
}

func fallbackRule() Rule {
	return Rule{
		Architecture:       "Unknown-Transformer",
		Layers:             32,
		AttentionHeads:     32,
		VocabSize:          50000,
		ContextLength:      4096,
		KnowledgeDomains:   []string{"General Purpose"},
		ReasoningPatterns:  []string{"Standard"},
		Strengths:          []string{"General purpose"},
		Weaknesses:         []string{"Specialization"},
		UniqueCapabilities: []string{"Standard capabilities"},
	}
}

// DefaultTable returns the built-in classification table covering the
// known model families. Size variants precede their family rule so
// first-match classification picks the more specific facts.
func DefaultTable() *Table {
	deepseek := Rule{
		Match:              []string{"deepseek"},
		Architecture:       "DeepSeek-MoE",
		Layers:             28,
		AttentionHeads:     32,
		VocabSize:          100000,
		ContextLength:      32768,
		KnowledgeDomains:   []string{"Code Generation", "Mathematics", "Reasoning", "System Design", "Algorithms"},
		ReasoningPatterns:  []string{"Mixture-of-Experts", "Step-by-step", "Code-first", "Mathematical", "Systematic"},
		Strengths:          []string{"Code generation", "Mathematical reasoning", "System design"},
		Weaknesses:         []string{"Creative writing", "Humor"},
		UniqueCapabilities: []string{"MoE routing", "Code-specific attention", "Mathematical tokens"},
	}
	qwen := Rule{
		Match:              []string{"qwen"},
		Architecture:       "Qwen-Transformer",
		Layers:             48,
		AttentionHeads:     40,
		VocabSize:          151936,
		ContextLength:      131072,
		KnowledgeDomains:   []string{"Multilingual", "Creative Writing", "Analysis", "General Knowledge", "Translation"},
		ReasoningPatterns:  []string{"Multi-perspective", "Cultural-aware", "Context-rich", "Iterative"},
		Strengths:          []string{"Multilingual support", "Long context", "Cultural knowledge"},
		Weaknesses:         []string{"Code generation", "Mathematical proofs"},
		UniqueCapabilities: []string{"Multi-language embeddings", "Cultural context", "Extended attention"},
	}
	grok := Rule{
		Match:              []string{"grok"},
		Architecture:       "Grok-MoE",
		Layers:             64,
		AttentionHeads:     48,
		VocabSize:          131072,
		ContextLength:      131072,
		KnowledgeDomains:   []string{"Humor", "Creativity", "Real-time Info", "Conversational", "Problem Solving"},
		ReasoningPatterns:  []string{"Associative", "Humor-based", "Real-time", "Conversational"},
		Strengths:          []string{"Real-time knowledge", "Humor", "Conversational flow"},
		Weaknesses:         []string{"Formal reasoning", "Code accuracy"},
		UniqueCapabilities: []string{"Real-time data integration", "Humor patterns", "Conversational memory"},
	}
	gemma := Rule{
		Match:              []string{"gemma"},
		Architecture:       "Gemma-RMSNorm",
		Layers:             42,
		AttentionHeads:     24,
		VocabSize:          256000,
		ContextLength:      8192,
		KnowledgeDomains:   []string{"Safety", "Factual Accuracy", "Instruction Following", "Ethics", "Reasoning"},
		ReasoningPatterns:  []string{"Safety-first", "Factual-grounded", "Conservative", "Structured"},
		Strengths:          []string{"Safety", "Factual accuracy", "Instruction following"},
		Weaknesses:         []string{"Creativity", "Informal language"},
		UniqueCapabilities: []string{"Safety filters", "Fact verification", "Ethics reasoning"},
	}
	llama := Rule{
		Match:              []string{"llama"},
		Architecture:       "Llama-RoPE",
		Layers:             48,
		AttentionHeads:     40,
		VocabSize:          128256,
		ContextLength:      128000,
		KnowledgeDomains:   []string{"General Purpose", "Code", "Math", "Science", "Writing"},
		ReasoningPatterns:  []string{"Balanced", "Comprehensive", "Methodical", "Robust"},
		Strengths:          []string{"General purpose", "Balanced performance", "Robustness"},
		Weaknesses:         []string{"Specialization depth"},
		UniqueCapabilities: []string{"RoPE attention", "Balanced training", "General robustness"},
	}
	openhermes := Rule{
		Match:              []string{"openhermes"},
		Architecture:       "Hermes-Instruct",
		Layers:             32,
		AttentionHeads:     32,
		VocabSize:          32000,
		ContextLength:      8192,
		KnowledgeDomains:   []string{"Instruction Following", "Roleplay", "Creative Tasks", "Helpfulness"},
		ReasoningPatterns:  []string{"Instruction-aware", "Role-adaptive", "Helpful", "Clear"},
		Strengths:          []string{"Instruction following", "Helpfulness", "Role adaptation"},
		Weaknesses:         []string{"Technical depth", "Mathematical reasoning"},
		UniqueCapabilities: []string{"Instruction parsing", "Role embeddings", "Helper patterns"},
	}
	mythomax := Rule{
		Match:              []string{"mythomax"},
		Architecture:       "MythoMax-Merge",
		Layers:             32,
		AttentionHeads:     32,
		VocabSize:          32000,
		ContextLength:      4096,
		KnowledgeDomains:   []string{"Creative Writing", "Storytelling", "Character Development", "Fiction"},
		ReasoningPatterns:  []string{"Narrative-driven", "Character-focused", "Emotional", "Creative"},
		Strengths:          []string{"Creative writing", "Storytelling", "Character development"},
		Weaknesses:         []string{"Technical accuracy", "Factual knowledge"},
		UniqueCapabilities: []string{"Narrative structures", "Character consistency", "Creative patterns"},
	}
	phi := Rule{
		Match:              []string{"phi"},
		Architecture:       "Phi-Dense",
		Layers:             32,
		AttentionHeads:     32,
		VocabSize:          51200,
		ContextLength:      131072,
		KnowledgeDomains:   []string{"Efficiency", "Mobile Deployment", "Quick Reasoning", "Compact Knowledge"},
		ReasoningPatterns:  []string{"Efficient", "Direct", "Optimized", "Compact"},
		Strengths:          []string{"Efficiency", "Mobile deployment", "Quick responses"},
		Weaknesses:         []string{"Knowledge depth", "Complex reasoning"},
		UniqueCapabilities: []string{"Compressed knowledge", "Efficient attention", "Mobile optimization"},
	}

	return &Table{Rules: []Rule{
		sized(deepseek, "33b", 64, 64),
		deepseek,
		sized(qwen, "7b", 32, 32),
		qwen,
		grok,
		sized(gemma, "7b", 28, 16),
		gemma,
		sized(llama, "7b", 32, 32),
		llama,
		openhermes,
		mythomax,
		phi,
		fallbackRule(),
	}}
}
