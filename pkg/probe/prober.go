package probe

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/jllopis/chimera/pkg/errors"
	"github.com/jllopis/chimera/pkg/llm"
	"github.com/jllopis/chimera/pkg/resilience"
	"github.com/jllopis/chimera/pkg/telemetry"
)

// probeFailureLatency is the nominal latency recorded for a probe that
// errored or timed out, so latency vectors keep one entry per probe.
const probeFailureLatency = 1.0

// Capability is one domain the artifact scored above the inclusion
// threshold on.
type Capability struct {
	Name              string    `json:"name"`
	Domain            Domain    `json:"domain"`
	Strength          float64   `json:"strength"`
	ProbeLatencies    []float64 `json:"probe_latencies"`
	SpecializedTokens []string  `json:"specialized_tokens"`
}

// Optimization summarizes runtime characteristics observed while probing.
type Optimization struct {
	InferenceSpeed       float64 `json:"inference_speed"`
	MemoryEfficiency     float64 `json:"memory_efficiency"`
	AccuracyConsistency  float64 `json:"accuracy_consistency"`
	ContextHandling      float64 `json:"context_handling"`
	QuantizationFriendly bool    `json:"quantization_friendly"`
}

// Report is the full behavioral profile of one artifact.
type Report struct {
	Capabilities   []Capability       `json:"capabilities"`
	Strengths      map[string]float64 `json:"strengths"`
	Weaknesses     map[string]float64 `json:"weaknesses"`
	UniqueFeatures []string           `json:"unique_features"`
	Optimization   Optimization       `json:"optimization"`
}

// Prober runs the probe batteries against one completion backend.
type Prober struct {
	provider llm.Provider
	model    string
	timeout  time.Duration
	logger   *slog.Logger
	metrics  *telemetry.DissectionMetrics
	tracer   trace.Tracer
}

// Option configures a Prober.
type Option func(*Prober)

// WithTimeout bounds each individual probe completion.
func WithTimeout(d time.Duration) Option {
	return func(p *Prober) {
		if d > 0 {
			p.timeout = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Prober) {
		p.logger = logger
	}
}

// WithMetrics attaches dissection metrics.
func WithMetrics(m *telemetry.DissectionMetrics) Option {
	return func(p *Prober) {
		p.metrics = m
	}
}

// New creates a Prober for the given provider and model.
func New(provider llm.Provider, model string, opts ...Option) *Prober {
	p := &Prober{
		provider: provider,
		model:    model,
		timeout:  30 * time.Second,
		logger:   slog.Default(),
		tracer:   otel.Tracer("chimera/probe"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run executes every battery in order: capabilities, strengths,
// weaknesses, unique features, optimization profile. Individual probe
// failures degrade to zero scores; only context cancellation aborts.
func (p *Prober) Run(ctx context.Context, artifact string) (*Report, error) {
	ctx, span := p.tracer.Start(ctx, "Probe.Battery", trace.WithAttributes(
		attribute.String(telemetry.AttrArtifactName, artifact),
	))
	defer span.End()

	capabilities, err := p.capabilities(ctx, artifact)
	if err != nil {
		return nil, err
	}
	strengths, err := p.strengths(ctx, artifact)
	if err != nil {
		return nil, err
	}
	weaknesses, err := p.weaknesses(ctx, artifact)
	if err != nil {
		return nil, err
	}
	features, err := p.uniqueFeatures(ctx, artifact)
	if err != nil {
		return nil, err
	}
	optimization, err := p.optimization(ctx, artifact)
	if err != nil {
		return nil, err
	}

	return &Report{
		Capabilities:   capabilities,
		Strengths:      strengths,
		Weaknesses:     weaknesses,
		UniqueFeatures: features,
		Optimization:   optimization,
	}, nil
}

// capabilities probes the six domains in canonical order and keeps the
// ones whose mean score clears the inclusion threshold.
func (p *Prober) capabilities(ctx context.Context, artifact string) ([]Capability, error) {
	capabilities := make([]Capability, 0, len(Domains()))

	for _, domain := range Domains() {
		if err := canceled(ctx); err != nil {
			return nil, err
		}

		prompts := capabilityPrompts[domain]
		var total float64
		latencies := make([]float64, 0, len(prompts))

		domainCtx, domainSpan := p.tracer.Start(ctx, "Probe.Domain")
		for _, prompt := range prompts {
			response, seconds, _ := p.complete(domainCtx, artifact, string(domain), prompt, capabilityMaxTokens)
			total += ScoreResponse(domain, response)
			latencies = append(latencies, seconds)
		}

		strength := total / float64(len(prompts))
		domainSpan.SetAttributes(telemetry.ProbeAttributes(string(domain), strength, mean(latencies)*1000)...)
		domainSpan.End()
		if strength > inclusionThreshold {
			capabilities = append(capabilities, Capability{
				Name:              artifact + "_" + string(domain),
				Domain:            domain,
				Strength:          strength,
				ProbeLatencies:    latencies,
				SpecializedTokens: SpecializedTokens(domain),
			})
		}
	}

	return capabilities, nil
}

// strengths runs the quick strength battery. Speed is scored by latency,
// the rest by how much text came back.
func (p *Prober) strengths(ctx context.Context, artifact string) (map[string]float64, error) {
	strengths := make(map[string]float64, len(strengthTests))

	for _, test := range strengthTests {
		if err := canceled(ctx); err != nil {
			return nil, err
		}

		response, seconds, failed := p.complete(ctx, artifact, test.Name, test.Prompt, strengthMaxTokens)
		if failed {
			strengths[test.Name] = 0.0
			continue
		}

		if test.Name == "speed" {
			score := 1.0 - seconds
			if score < 0 {
				score = 0
			}
			strengths[test.Name] = score
		} else {
			score := float64(len(strings.TrimSpace(response))) / 20.0
			if score > 1.0 {
				score = 1.0
			}
			strengths[test.Name] = score
		}
	}

	return strengths, nil
}

// weaknesses runs the failure-mode battery. Higher scores mean weaker:
// a near-empty or apologetic response is treated as a miss.
func (p *Prober) weaknesses(ctx context.Context, artifact string) (map[string]float64, error) {
	weaknesses := make(map[string]float64, len(weaknessTests))

	for _, test := range weaknessTests {
		if err := canceled(ctx); err != nil {
			return nil, err
		}

		response, _, failed := p.complete(ctx, artifact, test.Name, test.Prompt, weaknessMaxTokens)
		lowered := strings.ToLower(response)
		switch {
		case failed || len(strings.TrimSpace(response)) < 5:
			weaknesses[test.Name] = 1.0
		case strings.Contains(lowered, "sorry") || strings.Contains(lowered, "cannot"):
			weaknesses[test.Name] = 0.8
		default:
			weaknesses[test.Name] = 0.3
		}
	}

	return weaknesses, nil
}

// uniqueFeatures detects distinguishing abilities plus at most one
// family trait inferred from the artifact name. The result is
// deduplicated in first-seen order so reports stay deterministic.
func (p *Prober) uniqueFeatures(ctx context.Context, artifact string) ([]string, error) {
	features := make([]string, 0, len(featureTests)+1)

	for _, test := range featureTests {
		if err := canceled(ctx); err != nil {
			return nil, err
		}

		response, _, _ := p.complete(ctx, artifact, test.Name, test.Prompt, featureMaxTokens)
		lowered := strings.ToLower(response)

		switch test.Name {
		case "code_generation":
			if len(response) > 30 && (strings.Contains(response, "class") || strings.Contains(response, "def")) {
				features = append(features, "advanced_code_generation")
			}
		case "storytelling":
			if len(response) > 40 && (strings.Contains(lowered, "once") || strings.Contains(lowered, "story")) {
				features = append(features, "creative_storytelling")
			}
		case "technical_explanation":
			if len(response) > 35 {
				features = append(features, "technical_expertise")
			}
		case "conversation":
			for _, word := range []string{"good", "well", "fine", "hello"} {
				if strings.Contains(lowered, word) {
					features = append(features, "conversational_ability")
					break
				}
			}
		}
	}

	if family := familyFeature(artifact); family != "" {
		features = append(features, family)
	}

	return dedupe(features), nil
}

// familyFeature maps a known name family to its trait; first match wins.
func familyFeature(artifact string) string {
	lowered := strings.ToLower(artifact)
	switch {
	case strings.Contains(lowered, "deepseek"):
		return "code_specialization"
	case strings.Contains(lowered, "qwen"):
		return "multilingual_support"
	case strings.Contains(lowered, "grok"):
		return "real_time_processing"
	case strings.Contains(lowered, "gemma"):
		return "safety_alignment"
	case strings.Contains(lowered, "llama"):
		return "general_intelligence"
	}
	return ""
}

// optimization measures inference speed once and response-length
// consistency over three identical completions.
func (p *Prober) optimization(ctx context.Context, artifact string) (Optimization, error) {
	profile := Optimization{QuantizationFriendly: true}

	if err := canceled(ctx); err != nil {
		return profile, err
	}
	_, seconds, failed := p.complete(ctx, artifact, "inference_speed", "Quick test", 5)
	if failed {
		profile.InferenceSpeed = 0.5
	} else {
		speed := 1.0 - seconds
		if speed < 0 {
			speed = 0
		}
		profile.InferenceSpeed = speed
	}

	lengths := make([]float64, 0, 3)
	for i := 0; i < 3; i++ {
		if err := canceled(ctx); err != nil {
			return profile, err
		}
		response, _, _ := p.complete(ctx, artifact, "consistency", "The color of the sky is", 5)
		lengths = append(lengths, float64(len(response)))
	}
	consistency := 1.0 - variance(lengths)/10.0
	if consistency < 0 {
		consistency = 0
	}
	profile.AccuracyConsistency = consistency

	return profile, nil
}

// complete issues one bounded completion. Errors and timeouts are logged
// and degrade to an empty response with the nominal failure latency.
func (p *Prober) complete(ctx context.Context, artifact, label, prompt string, maxTokens int) (text string, seconds float64, failed bool) {
	trace.SpanFromContext(ctx).SetAttributes(telemetry.CompletionAttributes(p.model, "", maxTokens)...)
	start := time.Now()
	result, err := resilience.WithTimeoutResult(ctx,
		resilience.TimeoutConfig{Duration: p.timeout, ErrorOnTimeout: true},
		func(ctx context.Context) (interface{}, error) {
			return p.provider.Complete(ctx, llm.CompletionRequest{
				Model:     p.model,
				Prompt:    prompt,
				MaxTokens: maxTokens,
			})
		})
	seconds = time.Since(start).Seconds()

	resp, ok := result.(*llm.CompletionResponse)
	if err != nil || !ok || resp == nil {
		p.logger.Warn("probe failed",
			"artifact", artifact,
			"probe", label,
			"error", err)
		p.metrics.RecordProbeFailure(ctx, artifact, label)
		return "", probeFailureLatency, true
	}

	p.metrics.RecordProbeLatency(ctx, artifact, label, seconds)
	return resp.Text, seconds, false
}

func canceled(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return errors.New(errors.CodeCanceled, "probe battery canceled", err)
	}
	return nil
}

// mean is the arithmetic mean of xs, 0 when empty.
func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// variance is the population variance of xs.
func variance(xs []float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	m := mean(xs)
	var sum float64
	for _, x := range xs {
		d := x - m
		sum += d * d
	}
	return sum / float64(len(xs))
}

func dedupe(items []string) []string {
	seen := make(map[string]struct{}, len(items))
	out := items[:0]
	for _, item := range items {
		if _, ok := seen[item]; ok {
			continue
		}
		seen[item] = struct{}{}
		out = append(out, item)
	}
	return out
}
