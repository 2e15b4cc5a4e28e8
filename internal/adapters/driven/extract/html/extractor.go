// Package html extracts pages from HTML documents.
package html

import (
	"bytes"
	"context"
	"regexp"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/custodia-labs/pagewise/internal/adapters/driven/extract/plaintext"
	"github.com/custodia-labs/pagewise/internal/core/domain"
	"github.com/custodia-labs/pagewise/internal/core/ports/driven"
)

var _ driven.Extractor = (*Extractor)(nil)

// Extractor converts HTML to text pages. A print page break
// (page-break-before or break-before set to page or always) starts a page,
// and the document title becomes the first page's section title.
type Extractor struct{}

func New() *Extractor {
	return &Extractor{}
}

func (e *Extractor) Name() string {
	return "html"
}

func (e *Extractor) Extensions() []string {
	return []string{".html", ".htm", ".xhtml"}
}

func (e *Extractor) Extract(ctx context.Context, data []byte, _ string) (*domain.ExtractionResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	title, text := render(data)
	result := plaintext.Paginate(text)
	if result.Success {
		result.Pages[0].SectionTitle = title
	}
	return result, nil
}

// Title returns the decoded <title> text, or "".
func Title(content string) string {
	title, _ := render([]byte(content))
	return title
}

// Strip returns the readable text of content, one block per line, with
// pages separated by form feeds.
func Strip(content string) string {
	_, text := render([]byte(content))
	return text
}

var pageBreakStyle = regexp.MustCompile(`(?i)(?:page-)?break-before:\s*(?:page|always)`)

// skipped elements contribute no text.
var skipped = map[atom.Atom]bool{
	atom.Script:   true,
	atom.Style:    true,
	atom.Noscript: true,
	atom.Svg:      true,
	atom.Template: true,
	atom.Head:     true,
}

// blocks end a line when they open or close.
var blocks = map[atom.Atom]bool{
	atom.P: true, atom.Div: true, atom.Br: true, atom.Hr: true,
	atom.H1: true, atom.H2: true, atom.H3: true, atom.H4: true, atom.H5: true, atom.H6: true,
	atom.Li: true, atom.Tr: true, atom.Blockquote: true, atom.Pre: true, atom.Table: true,
	atom.Section: true, atom.Article: true, atom.Ul: true, atom.Ol: true,
}

// render tokenizes data once, collecting the title and the body text.
func render(data []byte) (string, string) {
	var (
		title, body strings.Builder
		skip, pre   int
		inTitle     bool
	)

	z := html.NewTokenizer(bytes.NewReader(data))
	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			break
		}
		tok := z.Token()

		switch tt {
		case html.StartTagToken, html.SelfClosingTagToken:
			if tok.DataAtom == atom.Title {
				inTitle = tt == html.StartTagToken
				continue
			}
			if skipped[tok.DataAtom] && tt == html.StartTagToken {
				skip++
				continue
			}
			if tok.DataAtom == atom.Pre && tt == html.StartTagToken {
				pre++
			}
			if breaksPage(tok) {
				body.WriteString(plaintext.PageBreak)
			}
			if blocks[tok.DataAtom] {
				body.WriteByte('\n')
			}
		case html.EndTagToken:
			switch {
			case tok.DataAtom == atom.Title:
				inTitle = false
			case skipped[tok.DataAtom]:
				skip = max(skip-1, 0)
			case blocks[tok.DataAtom]:
				if tok.DataAtom == atom.Pre {
					pre = max(pre-1, 0)
				}
				body.WriteByte('\n')
			}
		case html.TextToken:
			switch {
			case inTitle:
				title.WriteString(tok.Data)
			case skip > 0:
			case pre > 0:
				body.WriteString(tok.Data)
			default:
				// Source line breaks are only whitespace outside <pre>.
				body.WriteString(strings.ReplaceAll(tok.Data, "\n", " "))
			}
		}
	}

	return strings.TrimSpace(title.String()), tidy(body.String())
}

func breaksPage(tok html.Token) bool {
	for _, a := range tok.Attr {
		if a.Key == "style" && pageBreakStyle.MatchString(a.Val) {
			return true
		}
	}
	return false
}

// tidy collapses runs of spaces and drops blank lines within each page.
func tidy(text string) string {
	pages := strings.Split(text, plaintext.PageBreak)
	for i, page := range pages {
		var lines []string
		for _, line := range strings.Split(page, "\n") {
			if line = strings.Join(strings.Fields(line), " "); line != "" {
				lines = append(lines, line)
			}
		}
		pages[i] = strings.Join(lines, "\n")
	}
	return strings.Join(pages, plaintext.PageBreak)
}
