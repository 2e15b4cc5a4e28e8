package chunker

import (
	"regexp"
	"strings"

	"github.com/custodia-labs/pagewise/internal/tokens"
)

var wordPattern = regexp.MustCompile(`\S+`)

// abbreviations end in a period without ending a sentence.
var abbreviations = map[string]bool{
	"e.g.": true, "i.e.": true, "dr.": true, "mr.": true, "mrs.": true,
	"ms.": true, "no.": true, "fig.": true, "vs.": true, "approx.": true,
	"st.": true, "sec.": true,
}

// wordSpan is the byte range of one whitespace-delimited word.
type wordSpan struct {
	start, end int
}

func wordSpans(text string) []wordSpan {
	locs := wordPattern.FindAllStringIndex(text, -1)
	spans := make([]wordSpan, len(locs))
	for i, loc := range locs {
		spans[i] = wordSpan{start: loc[0], end: loc[1]}
	}
	return spans
}

// segment is the half-open word range [first, last) of one chunk.
// Words before fresh were carried over from the previous segment.
type segment struct {
	first, fresh, last int
}

// splitter holds the sizing rules shared by both chunking engines.
type splitter struct {
	sizer             tokens.Sizer
	overlap           int
	preserveSentences bool
	maxSegments       int
}

// split breaks text into segments of at most budget tokens. Every segment
// after the first starts with up to overlap tokens from the end of the one
// before it. The second result is true if maxSegments stopped the split early.
func (s *splitter) split(text string, budget int) ([]segment, []wordSpan, bool) {
	words := wordSpans(text)
	n := len(words)
	if n == 0 {
		return nil, nil, false
	}

	span := func(a, b int) string {
		return text[words[a].start:words[b-1].end]
	}

	if s.sizer.Count(span(0, n)) <= budget {
		return []segment{{first: 0, fresh: 0, last: n}}, words, false
	}

	overlap := s.overlap
	if overlap > budget/2 {
		overlap = budget / 2
	}

	var segs []segment
	pos := 0
	for pos < n {
		if len(segs) >= s.maxSegments {
			return segs, words, true
		}

		// 1. SEED FROM PREVIOUS TAIL
		seed := pos
		if len(segs) > 0 && overlap > 0 {
			prev := segs[len(segs)-1]
			seed = s.overlapStart(span, prev.first, prev.last, overlap)
		}
		if seed < pos && s.sizer.Count(span(seed, pos+1)) > budget {
			seed = pos
		}

		// 2. FILL BUDGET
		end := s.fill(span, seed, pos, n, budget)

		// 3. PULL BACK TO SENTENCE END
		if s.preserveSentences && end < n {
			end = sentenceCut(text, words, pos, end)
		}

		segs = append(segs, segment{first: seed, fresh: pos, last: end})
		pos = end
	}

	return segs, words, false
}

// overlapStart walks back word by word from the end of the previous segment
// while the tail stays within the overlap budget. The previous segment's
// first word is never reused, so the split always advances.
func (s *splitter) overlapStart(span func(a, b int) string, prevFirst, prevLast, overlap int) int {
	k := prevLast
	for k-1 > prevFirst {
		if s.sizer.Count(span(k-1, prevLast)) > overlap {
			break
		}
		k--
	}
	return k
}

// fill binary searches for the largest end such that words [seed, end) fit
// the budget. At least one new word is always taken.
func (s *splitter) fill(span func(a, b int) string, seed, pos, n, budget int) int {
	best := pos + 1
	lo, hi := pos+2, n
	for lo <= hi {
		mid := (lo + hi) / 2
		if s.sizer.Count(span(seed, mid)) <= budget {
			best = mid
			lo = mid + 1
		} else {
			hi = mid - 1
		}
	}
	return best
}

// sentenceCut moves end back to just after the last sentence terminator among
// the new words, provided at least half of the new words are kept.
func sentenceCut(text string, words []wordSpan, pos, end int) int {
	minEnd := pos + (end-pos+1)/2
	if minEnd <= pos {
		minEnd = pos + 1
	}
	for k := end - 1; k+1 >= minEnd; k-- {
		if endsSentence(text[words[k].start:words[k].end]) {
			return k + 1
		}
	}
	return end
}

// endsSentence reports whether word closes a sentence. The caller guarantees
// the word is followed by whitespace.
func endsSentence(word string) bool {
	if abbreviations[strings.ToLower(word)] {
		return false
	}
	trimmed := strings.TrimRight(word, `"')]`)
	if trimmed == "" {
		return false
	}
	switch trimmed[len(trimmed)-1] {
	case '.', '!', '?':
		return true
	default:
		return false
	}
}
