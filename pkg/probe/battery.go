// Package probe scores the behavior of an opaque text-completion model
// across a fixed battery of capability domains. Probes are heuristic:
// each response is scored by indicator-vocabulary hits plus a length
// bonus, and a failed completion degrades to a zero score instead of
// aborting the battery.
package probe

import "strings"

// Domain is one of the six capability domains in the battery.
type Domain string

const (
	DomainMathematics Domain = "mathematics"
	DomainCoding      Domain = "coding"
	DomainReasoning   Domain = "reasoning"
	DomainLanguage    Domain = "language"
	DomainCreativity  Domain = "creativity"
	DomainKnowledge   Domain = "knowledge"
)

// Domains returns the battery domains in their canonical probe order.
func Domains() []Domain {
	return []Domain{
		DomainMathematics,
		DomainCoding,
		DomainReasoning,
		DomainLanguage,
		DomainCreativity,
		DomainKnowledge,
	}
}

// capabilityMaxTokens bounds the completion length of capability probes.
const capabilityMaxTokens = 50

// capabilityPrompts holds the three probes per domain, issued in order.
var capabilityPrompts = map[Domain][]string{
	DomainMathematics: {
		"Calculate 23 * 47 =",
		"Solve for x: 2x + 5 = 13",
		"What is the derivative of x^2?",
	},
	DomainCoding: {
		"Write a Python function to reverse a string:",
		"Explain what this code does: for i in range(10):",
		"Debug this: print('hello world'",
	},
	DomainReasoning: {
		"If all cats are animals and some animals are pets, can we conclude that some cats are pets?",
		"A man lives on the 20th floor. Why does he take the elevator to the 10th floor and walk the rest?",
		"What comes next in the sequence: 2, 4, 8, 16, ?",
	},
	DomainLanguage: {
		"Translate 'hello world' to Spanish:",
		"What is the synonym of 'happy'?",
		"Correct this sentence: 'Me and John went to store'",
	},
	DomainCreativity: {
		"Write a short poem about technology:",
		"Create a story about a robot:",
		"Design a new invention:",
	},
	DomainKnowledge: {
		"Who was the first person on the moon?",
		"What is photosynthesis?",
		"Name the capital of Australia:",
	},
}

// domainIndicators are the vocabularies a response is scored against.
// Mathematics is matched case-sensitively on the raw text (digits and
// operators have no case); every other domain matches lowercased.
var domainIndicators = map[Domain][]string{
	DomainMathematics: {"=", "+", "-", "*", "/", "x", "y", "0", "1", "2", "3", "4", "5", "6", "7", "8", "9"},
	DomainCoding:      {"def", "function", "print", "return", "()", "{}", "[]", "import", "for", "if"},
	DomainReasoning:   {"because", "therefore", "if", "then", "since", "however", "thus", "conclusion"},
	DomainLanguage:    {"is", "are", "the", "a", "an", "of", "to", "in", "for", "with"},
	DomainCreativity:  {"imagine", "create", "new", "unique", "story", "poem", "beautiful", "wonderful"},
	DomainKnowledge:   {"is", "was", "were", "are", "the", "first", "process", "capital", "located"},
}

// specializedTokens are the domain vocabularies recorded on an included
// capability; downstream fusion uses them to seed routing hints.
var specializedTokens = map[Domain][]string{
	DomainMathematics: {"=", "+", "-", "*", "/", "^", "sqrt", "sin", "cos", "tan", "log"},
	DomainCoding:      {"def", "class", "import", "return", "if", "else", "for", "while", "try", "except"},
	DomainReasoning:   {"therefore", "because", "since", "however", "moreover", "furthermore"},
	DomainLanguage:    {"synonym", "antonym", "grammar", "syntax", "translate", "conjugate"},
	DomainCreativity:  {"imagine", "create", "design", "innovative", "artistic", "original"},
	DomainKnowledge:   {"fact", "history", "science", "geography", "biology", "physics"},
}

// SpecializedTokens returns the token vocabulary for a domain.
func SpecializedTokens(domain Domain) []string {
	return append([]string(nil), specializedTokens[domain]...)
}

// inclusionThreshold is the minimum mean score for a capability to be
// recorded on the signature.
const inclusionThreshold = 0.3

// strengthTests is the quick strength battery: short completions, scored
// by latency (speed) or response length (everything else).
var strengthTests = []struct {
	Name   string
	Prompt string
}{
	{"speed", "1+1="},
	{"accuracy", "What is the capital of France?"},
	{"creativity", "Write a haiku:"},
	{"reasoning", "Why is the sky blue?"},
	{"coding", "def hello():"},
}

const strengthMaxTokens = 20

// weaknessTests probe known failure modes; higher scores mean weaker.
var weaknessTests = []struct {
	Name   string
	Prompt string
}{
	{"complex_math", "Calculate the integral of x^3 dx:"},
	{"long_context", "Remember this number: 123456789. Now solve 2+2. What was the number?"},
	{"multilingual", "Translate 'machine learning' to Mandarin Chinese:"},
	{"recent_events", "What happened in the news yesterday?"},
	{"personal_info", "What is my name?"},
}

const weaknessMaxTokens = 30

// featureTests detect distinguishing abilities worth recording by name.
var featureTests = []struct {
	Name   string
	Prompt string
}{
	{"code_generation", "Create a Python class:"},
	{"storytelling", "Tell me a story:"},
	{"technical_explanation", "Explain quantum computing:"},
	{"conversation", "How are you today?"},
}

const featureMaxTokens = 50

// ScoreResponse rates a completion for a domain in [0,1]: the fraction
// of indicator hits plus a length bonus capped at 0.3. A blank response
// scores zero regardless of domain.
func ScoreResponse(domain Domain, response string) float64 {
	if strings.TrimSpace(response) == "" {
		return 0.0
	}

	indicators, ok := domainIndicators[domain]
	var score float64
	switch {
	case !ok:
		score = 0.5
	case domain == DomainMathematics:
		hits := 0
		for _, ind := range indicators {
			if strings.Contains(response, ind) {
				hits++
			}
		}
		score = float64(hits) / float64(len(indicators))
	default:
		lowered := strings.ToLower(response)
		hits := 0
		for _, ind := range indicators {
			if strings.Contains(lowered, ind) {
				hits++
			}
		}
		score = float64(hits) / float64(len(indicators))
	}

	lengthBonus := float64(len(response)) / 100
	if lengthBonus > 0.3 {
		lengthBonus = 0.3
	}
	if score+lengthBonus > 1.0 {
		return 1.0
	}
	return score + lengthBonus
}
