package chunker

import (
	"regexp"
	"strings"

	"github.com/custodia-labs/pagewise/internal/core/domain"
)

var (
	procedureCue = regexp.MustCompile(
		`(?i)\b(procedures?|how to|steps? to|instructions?|follow(?:ing)? (?:these|the) steps|in order to)\b`)

	definitionCue = regexp.MustCompile(`(?i)\b(is defined as|are defined as|means|refers to)\b`)

	completionCue = regexp.MustCompile(
		`(?i)\b(complete[sd]?|finish(?:ed)?|done|submit(?:ted)?|confirm(?:ed|ation)?|end of (?:the )?procedure)\b`)

	// stepMarkers cover numbered and lettered lists, explicit step labels,
	// ordinal adverbs and bullets.
	stepMarkers = []*regexp.Regexp{
		regexp.MustCompile(`(?m)^\s*\d{1,2}[.)]\s+\S`),
		regexp.MustCompile(`(?m)^\s*[a-z][.)]\s+\S`),
		regexp.MustCompile(`(?mi)^\s*step\s+\d+`),
		regexp.MustCompile(`(?i)\b(?:first|second|third|next|then|finally|lastly),`),
		regexp.MustCompile(`(?i)\b(?:firstly|secondly|thirdly)\b`),
		regexp.MustCompile(`(?m)^\s*[-•*▪◦]\s+\S`),
	}

	crossRefPattern = regexp.MustCompile(
		`\b(?i:see|refer to)\s+(?:((?i:section|page|chapter|appendix|table|figure))\s+)?(\d+(?:\.\d+)*|[A-Z]\b)`)

	locatorPattern = regexp.MustCompile(`(?i)\b(section|page)\s+(\d+(?:\.\d+)*)\b`)

	sectionNumberPattern = regexp.MustCompile(`\b\d+\.\d+(?:\.\d+){0,4}\b`)
)

// annotate computes the enhanced metadata flags for chunk text.
func annotate(text string) domain.ChunkMetadata {
	return domain.ChunkMetadata{
		HasProcedureCue: procedureCue.MatchString(text),
		ContainsSteps:   containsSteps(text),
		HasDefinition:   definitionCue.MatchString(text),
		CrossReferences: crossReferences(text),
		SectionNumbers:  sectionNumbers(text),
	}
}

func containsSteps(text string) bool {
	for _, p := range stepMarkers {
		if p.MatchString(text) {
			return true
		}
	}
	return false
}

// crossReferences extracts "see section 4.2" style pointers, normalised to
// "<kind> <id>" and de-duplicated in order of appearance.
func crossReferences(text string) []string {
	seen := make(map[string]bool)
	var refs []string
	add := func(kind, id string) {
		if kind == "" {
			kind = "section"
		}
		ref := strings.ToLower(kind) + " " + id
		if !seen[ref] {
			seen[ref] = true
			refs = append(refs, ref)
		}
	}

	for _, m := range crossRefPattern.FindAllStringSubmatch(text, -1) {
		add(m[1], m[2])
	}
	for _, m := range locatorPattern.FindAllStringSubmatch(text, -1) {
		add(m[1], m[2])
	}
	return refs
}

// sectionNumbers returns the dotted section numbers referenced in text.
func sectionNumbers(text string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, n := range sectionNumberPattern.FindAllString(text, -1) {
		if !seen[n] {
			seen[n] = true
			out = append(out, n)
		}
	}
	return out
}

// isCompleteProcedure requires a procedure cue and a step marker, plus either
// a completion cue or more than five lines.
func isCompleteProcedure(text string, meta domain.ChunkMetadata) bool {
	if !meta.HasProcedureCue || !meta.ContainsSteps {
		return false
	}
	return completionCue.MatchString(text) || nonEmptyLines(text) > 5
}

func nonEmptyLines(text string) int {
	n := 0
	for _, l := range strings.Split(text, "\n") {
		if strings.TrimSpace(l) != "" {
			n++
		}
	}
	return n
}
