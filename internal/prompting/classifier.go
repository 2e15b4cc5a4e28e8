// Package prompting classifies questions into response archetypes and
// builds the matching schema-constrained generation requests.
package prompting

import (
	"math"
	"regexp"

	"github.com/custodia-labs/pagewise/internal/core/domain"
)

// Confidence values reported by Classify.
const (
	// GeneralConfidence is reported when no pattern family matches.
	GeneralConfidence = 0.5

	baseConfidence  = 0.6
	matchConfidence = 0.1
	maxConfidence   = 0.95
)

// rule is one labelled pattern within a family.
type rule struct {
	label   string
	pattern *regexp.Regexp
}

// family is the ordered rule table for one query type.
type family struct {
	queryType domain.QueryType
	rules     []rule
}

func r(label, pattern string) rule {
	return rule{label: label, pattern: regexp.MustCompile(`(?i)` + pattern)}
}

// families are evaluated in order; on equal match counts the earlier wins.
var families = []family{
	{
		queryType: domain.QueryProcedural,
		rules: []rule{
			r("how_to", `\bhow (?:to|do|can|should|would) \b`),
			r("steps", `\bsteps?\b`),
			r("procedure", `\b(?:procedures?|process(?:es)? for|instructions?)\b`),
			r("action_verb", `\b(?:submit|apply|install|configure|set up|reset|register|request|enable|create)\b`),
			r("sequence", `\b(?:first|then|after that|in order to|what do i do)\b`),
		},
	},
	{
		queryType: domain.QueryDefinitional,
		rules: []rule{
			r("what_is", `^\s*what (?:is|are|was|were) (?:a |an |the )?\w+`),
			r("define", `\b(?:define|definition|defined)\b`),
			r("meaning", `\b(?:meaning of|what does .+ mean|stand for)\b`),
			r("who_is", `^\s*who (?:is|are)\b`),
			r("explain_term", `\b(?:explain the term|what is meant by|term)\b`),
		},
	},
	{
		queryType: domain.QueryAnalytical,
		rules: []rule{
			r("compare", `\b(?:compare|comparison|compared)\b`),
			r("difference", `\b(?:difference between|differ(?:s|ent)? from|distinguish)\b`),
			r("why", `^\s*why\b|\bwhy (?:is|are|does|do|did|would|should)\b`),
			r("tradeoff", `\b(?:pros and cons|advantages?|disadvantages?|trade-?offs?|benefits?|risks?)\b`),
			r("evaluate", `\b(?:analy[sz]e|evaluate|assess|impact|implications?)\b`),
			r("versus", `\b(?:vs\.?|versus)\s`),
		},
	},
}

// Classify assigns a query to the family with the most matching patterns.
// Queries matching nothing are general at GeneralConfidence.
func Classify(query string) domain.QueryClassification {
	best := -1
	var bestMatches []string

	for i, f := range families {
		var matched []string
		for _, rl := range f.rules {
			if rl.pattern.MatchString(query) {
				matched = append(matched, rl.label)
			}
		}
		if len(matched) > len(bestMatches) {
			best = i
			bestMatches = matched
		}
	}

	if best < 0 {
		return domain.QueryClassification{
			Type:       domain.QueryGeneral,
			Confidence: GeneralConfidence,
		}
	}

	return domain.QueryClassification{
		Type:            families[best].queryType,
		Confidence:      math.Min(maxConfidence, baseConfidence+matchConfidence*float64(len(bestMatches))),
		MatchedPatterns: bestMatches,
	}
}
