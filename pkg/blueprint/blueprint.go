// Package blueprint synthesizes the run's final document: a dense
// capability matrix over every observed domain and every dissected
// artifact, a best-artifact-per-domain routing table, and normalized
// fusion weights. A blueprint is built once per run and written once;
// a new run gets a new timestamped file, never an overwrite.
package blueprint

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jllopis/chimera/pkg/signature"
)

// Blueprint is the run's sole synthesized output.
type Blueprint struct {
	Name                   string                        `json:"name"`
	TotalParameterEstimate uint64                        `json:"total_parameter_estimate"`
	ComponentSignatures    []signature.ArtifactSignature `json:"component_signatures"`
	CapabilityMatrix       map[string]map[string]float64 `json:"capability_matrix"`
	RoutingTable           map[string]string             `json:"routing_table"`
	FusionWeights          map[string]float64            `json:"fusion_weights"`
	CreatedAt              time.Time                     `json:"created_at"`
}

// Build synthesizes a blueprint from the signatures of one run, in
// discovery order. At least one signature is required.
func Build(name string, signatures []signature.ArtifactSignature) (*Blueprint, error) {
	if len(signatures) == 0 {
		return nil, fmt.Errorf("blueprint requires at least one signature")
	}

	b := &Blueprint{
		Name:                ifEmpty(name, "chimera-blueprint"),
		ComponentSignatures: signatures,
		CapabilityMatrix:    make(map[string]map[string]float64),
		RoutingTable:        make(map[string]string),
		FusionWeights:       make(map[string]float64, len(signatures)),
		CreatedAt:           time.Now().UTC(),
	}

	for _, sig := range signatures {
		b.TotalParameterEstimate += sig.ParameterCount
	}

	domains := observedDomains(signatures)
	for _, domain := range domains {
		row := make(map[string]float64, len(signatures))
		for _, sig := range signatures {
			row[sig.ArtifactName] = domainStrength(sig, domain)
		}
		b.CapabilityMatrix[domain] = row
	}

	// Argmax per row; a strict comparison keeps ties on the first-seen
	// artifact in discovery order.
	for _, domain := range domains {
		best := signatures[0].ArtifactName
		bestScore := b.CapabilityMatrix[domain][best]
		for _, sig := range signatures[1:] {
			if score := b.CapabilityMatrix[domain][sig.ArtifactName]; score > bestScore {
				best = sig.ArtifactName
				bestScore = score
			}
		}
		b.RoutingTable[domain] = best
	}

	b.FusionWeights = fusionWeights(signatures)

	return b, nil
}

// observedDomains collects every domain present in any capability, in
// first-seen order across the signature sequence.
func observedDomains(signatures []signature.ArtifactSignature) []string {
	seen := make(map[string]struct{})
	var domains []string
	for _, sig := range signatures {
		for _, capability := range sig.Capabilities {
			domain := string(capability.Domain)
			if _, ok := seen[domain]; ok {
				continue
			}
			seen[domain] = struct{}{}
			domains = append(domains, domain)
		}
	}
	return domains
}

// domainStrength is the mean strength of the signature's capabilities in
// a domain, or 0.0 when the artifact has none: the matrix stays dense.
func domainStrength(sig signature.ArtifactSignature, domain string) float64 {
	var sum float64
	count := 0
	for _, capability := range sig.Capabilities {
		if string(capability.Domain) == domain {
			sum += capability.Strength
			count++
		}
	}
	if count == 0 {
		return 0.0
	}
	return sum / float64(count)
}

// fusionWeights combines overall strength (0.7) with capability
// diversity (0.3) per artifact and normalizes to sum 1.0. When every
// raw weight is zero the distribution is uniform.
func fusionWeights(signatures []signature.ArtifactSignature) map[string]float64 {
	weights := make(map[string]float64, len(signatures))

	var total float64
	for _, sig := range signatures {
		avgStrength := 0.5
		if len(sig.Strengths) > 0 {
			var sum float64
			for _, score := range sig.Strengths {
				sum += score
			}
			avgStrength = sum / float64(len(sig.Strengths))
		}
		diversity := float64(len(sig.Capabilities)) / 10.0

		weight := avgStrength*0.7 + diversity*0.3
		weights[sig.ArtifactName] = weight
		total += weight
	}

	if total <= 0 {
		uniform := 1.0 / float64(len(signatures))
		for name := range weights {
			weights[name] = uniform
		}
		return weights
	}
	for name, weight := range weights {
		weights[name] = weight / total
	}
	return weights
}

// Save writes the blueprint to dir as blueprint_<unix>.json. The file
// is created exclusively: an existing file at the path is an error.
func (b *Blueprint) Save(dir string) (string, error) {
	path := filepath.Join(dir, fmt.Sprintf("blueprint_%d.json", b.CreatedAt.Unix()))

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("create blueprint file: %w", err)
	}
	defer f.Close()

	encoder := json.NewEncoder(f)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(b); err != nil {
		return "", fmt.Errorf("encode blueprint: %w", err)
	}
	return path, nil
}

func ifEmpty(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
