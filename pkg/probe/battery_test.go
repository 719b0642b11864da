package probe

import (
	"math"
	"strings"
	"testing"
)

func TestDomainsOrder(t *testing.T) {
	want := []Domain{
		DomainMathematics,
		DomainCoding,
		DomainReasoning,
		DomainLanguage,
		DomainCreativity,
		DomainKnowledge,
	}
	got := Domains()
	if len(got) != len(want) {
		t.Fatalf("expected %d domains, got %d", len(want), len(got))
	}
	for i, domain := range want {
		if got[i] != domain {
			t.Errorf("domain %d: expected %s, got %s", i, domain, got[i])
		}
	}
}

func TestEveryDomainHasBatteryData(t *testing.T) {
	for _, domain := range Domains() {
		if len(capabilityPrompts[domain]) != 3 {
			t.Errorf("%s: expected 3 prompts, got %d", domain, len(capabilityPrompts[domain]))
		}
		if len(domainIndicators[domain]) == 0 {
			t.Errorf("%s: no indicators", domain)
		}
		if len(specializedTokens[domain]) == 0 {
			t.Errorf("%s: no specialized tokens", domain)
		}
	}
}

func TestSpecializedTokensCopy(t *testing.T) {
	tokens := SpecializedTokens(DomainCoding)
	if len(tokens) == 0 {
		t.Fatal("expected tokens for coding domain")
	}
	tokens[0] = "mutated"
	if SpecializedTokens(DomainCoding)[0] == "mutated" {
		t.Error("returned slice should be a copy")
	}
}

func TestScoreResponse(t *testing.T) {
	tests := []struct {
		name     string
		domain   Domain
		response string
		want     float64
	}{
		{
			name:     "empty response scores zero",
			domain:   DomainMathematics,
			response: "",
			want:     0.0,
		},
		{
			name:     "whitespace only scores zero",
			domain:   DomainCoding,
			response: "   \n\t",
			want:     0.0,
		},
		{
			name:     "unknown domain gets neutral base plus length bonus",
			domain:   Domain("alchemy"),
			response: "gold",
			want:     0.5 + 0.04,
		},
		{
			// "=", "x" and "4" hit out of 17 indicators, 5 bytes long.
			name:     "mathematics matches lowercase x",
			domain:   DomainMathematics,
			response: "x = 4",
			want:     3.0/17.0 + 0.05,
		},
		{
			// Uppercase X does not match: mathematics is case-sensitive.
			name:     "mathematics misses uppercase x",
			domain:   DomainMathematics,
			response: "X = 4",
			want:     2.0/17.0 + 0.05,
		},
		{
			// Lowercased hits: "def", "print", "()"; 23 bytes long.
			name:     "coding matches case-insensitively",
			domain:   DomainCoding,
			response: "DEF MAIN(): PRINT('HI')",
			want:     3.0/10.0 + 0.23,
		},
		{
			name:     "length bonus caps at 0.3",
			domain:   DomainReasoning,
			response: strings.Repeat("z", 150) + "because",
			want:     1.0/8.0 + 0.3,
		},
		{
			name:     "score clamps at 1.0",
			domain:   DomainMathematics,
			response: "0123456789 x + y = 2 * 3 - 4 / 5",
			want:     1.0,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := ScoreResponse(tc.domain, tc.response)
			if math.Abs(got-tc.want) > 1e-9 {
				t.Errorf("expected %v, got %v", tc.want, got)
			}
		})
	}
}
