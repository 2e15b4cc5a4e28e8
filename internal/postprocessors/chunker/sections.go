package chunker

import (
	"regexp"
	"strings"

	"github.com/custodia-labs/pagewise/internal/core/domain"
)

// maxHeaderLength is the longest line considered as a section heading.
const maxHeaderLength = 150

// sectionRule is one pattern family of section headings. Capture group 1 is
// the section number and group 2 the title.
type sectionRule struct {
	kind    domain.SectionType
	pattern *regexp.Regexp
	level   func(number string) int
}

// sectionRules are evaluated in order; the first match wins for a line.
var sectionRules = []sectionRule{
	{
		kind:    domain.SectionHierarchical,
		pattern: regexp.MustCompile(`^(\d+(?:\.\d+){0,5})\.?\s+([A-Z][^\n]{0,118}[^.!?:;,\s])$`),
		level:   func(number string) int { return strings.Count(number, ".") + 1 },
	},
	{
		kind:    domain.SectionChapter,
		pattern: regexp.MustCompile(`^(?i:chapter)\s+(\d+|[IVXLC]+)\b[\s.:\-]*(.*)$`),
		level:   fixedLevel(1),
	},
	{
		kind:    domain.SectionAppendix,
		pattern: regexp.MustCompile(`^(?i:appendix)\s+([A-Z]|\d+)\b[\s.:\-]*(.*)$`),
		level:   fixedLevel(1),
	},
	{
		kind:    domain.SectionLetter,
		pattern: regexp.MustCompile(`^([A-Z])[.)]\s+([A-Z][^\n]{0,98}[^.!?:;,\s])$`),
		level:   fixedLevel(2),
	},
	{
		kind:    domain.SectionRoman,
		pattern: regexp.MustCompile(`^([IVXLC]+)\.\s+([A-Z][^\n]{0,98}[^.!?:;,\s])$`),
		level:   fixedLevel(1),
	},
	{
		kind:    domain.SectionStep,
		pattern: regexp.MustCompile(`^(?i:step)\s+(\d+)\s*[:.)\-]?\s*(.*)$`),
		level:   fixedLevel(3),
	},
}

func fixedLevel(level int) func(string) int {
	return func(string) int { return level }
}

// detectHeader matches a single line against the section rules.
func detectHeader(line string) (domain.SectionInfo, bool) {
	line = strings.TrimSpace(line)
	if line == "" || len(line) > maxHeaderLength {
		return domain.SectionInfo{}, false
	}

	for _, rule := range sectionRules {
		m := rule.pattern.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		info := domain.SectionInfo{
			Number: m[1],
			Title:  strings.TrimSpace(m[2]),
			Level:  rule.level(m[1]),
			Type:   rule.kind,
		}
		if rule.kind == domain.SectionHierarchical {
			info.ParentSection = parentNumber(m[1])
		}
		return info, true
	}
	return domain.SectionInfo{}, false
}

// parentNumber strips the last numeric component: "1.2.1" -> "1.2", "3" -> "".
func parentNumber(number string) string {
	i := strings.LastIndex(number, ".")
	if i < 0 {
		return ""
	}
	return number[:i]
}

// sectionKey qualifies a section number by family so "chapter 3" and
// hierarchical section "3" do not collide.
func sectionKey(info domain.SectionInfo) string {
	if info.Type == domain.SectionHierarchical {
		return info.Number
	}
	return string(info.Type) + ":" + info.Number
}

// line is one line of page text with its byte range.
type line struct {
	start, end int
	text       string
}

func splitLines(text string) []line {
	var lines []line
	start := 0
	for start <= len(text) {
		i := strings.IndexByte(text[start:], '\n')
		end := len(text)
		if i >= 0 {
			end = start + i
		}
		lines = append(lines, line{start: start, end: end, text: text[start:end]})
		if i < 0 {
			break
		}
		start = end + 1
	}
	return lines
}

// headerAt is a heading found at a byte offset within a page.
type headerAt struct {
	offset int
	info   domain.SectionInfo
}

func findHeaders(text string) []headerAt {
	var headers []headerAt
	for _, l := range splitLines(text) {
		if info, ok := detectHeader(l.text); ok {
			headers = append(headers, headerAt{offset: l.start, info: info})
		}
	}
	return headers
}

// SectionIndex is the document-wide map of detected sections.
// The first occurrence of a section number wins.
type SectionIndex struct {
	byKey   map[string]domain.SectionInfo
	byTitle map[string]domain.SectionInfo
	order   []string
}

// BuildSectionIndex scans every line of every page for section headings.
func BuildSectionIndex(pages []domain.PageContent) *SectionIndex {
	idx := &SectionIndex{
		byKey:   make(map[string]domain.SectionInfo),
		byTitle: make(map[string]domain.SectionInfo),
	}
	for _, page := range pages {
		for _, h := range findHeaders(page.Text) {
			key := sectionKey(h.info)
			if _, seen := idx.byKey[key]; seen {
				continue
			}
			idx.byKey[key] = h.info
			idx.order = append(idx.order, key)
			if title := strings.ToLower(h.info.Title); len(title) >= minTitleMatch {
				if _, seen := idx.byTitle[title]; !seen {
					idx.byTitle[title] = h.info
				}
			}
		}
	}
	return idx
}

// minTitleMatch is the shortest title matched by text alone.
const minTitleMatch = 4

// Get returns the hierarchical section with the given number.
func (x *SectionIndex) Get(number string) (domain.SectionInfo, bool) {
	info, ok := x.byKey[number]
	return info, ok
}

// Len returns the number of distinct sections.
func (x *SectionIndex) Len() int {
	return len(x.order)
}

// Sections returns all sections in first-seen order.
func (x *SectionIndex) Sections() []domain.SectionInfo {
	out := make([]domain.SectionInfo, 0, len(x.order))
	for _, key := range x.order {
		out = append(out, x.byKey[key])
	}
	return out
}

// match resolves a line to a known section by heading pattern or, failing
// that, by exact title.
func (x *SectionIndex) match(text string) (domain.SectionInfo, bool) {
	if info, ok := detectHeader(text); ok {
		if known, ok := x.byKey[sectionKey(info)]; ok {
			return known, true
		}
	}
	title := strings.ToLower(strings.TrimSpace(text))
	if len(title) < minTitleMatch {
		return domain.SectionInfo{}, false
	}
	info, ok := x.byTitle[title]
	return info, ok
}

// hierarchy returns the chain of known sections from the root down to info.
func (x *SectionIndex) hierarchy(info domain.SectionInfo) []domain.SectionInfo {
	chain := []domain.SectionInfo{info}
	parent := info.ParentSection
	for depth := 0; parent != "" && depth < 6; depth++ {
		p, ok := x.byKey[parent]
		if !ok {
			break
		}
		chain = append([]domain.SectionInfo{p}, chain...)
		parent = p.ParentSection
	}
	return chain
}

// mentioned returns the known sections whose number or title appears in text.
func (x *SectionIndex) mentioned(text string) []domain.SectionInfo {
	lower := strings.ToLower(text)
	var out []domain.SectionInfo
	for _, key := range x.order {
		info := x.byKey[key]
		switch {
		case info.Type == domain.SectionHierarchical && strings.Contains(info.Number, ".") &&
			strings.Contains(text, info.Number):
			out = append(out, info)
		case len(info.Title) >= minTitleMatch && strings.Contains(lower, strings.ToLower(info.Title)):
			out = append(out, info)
		}
	}
	return out
}
