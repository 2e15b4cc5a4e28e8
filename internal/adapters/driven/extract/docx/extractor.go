// Package docx extracts text from Word documents.
//
// Pages are split on explicit page breaks in word/document.xml. Word lays
// out the remaining page boundaries at render time, so they are not
// recoverable from the file.
package docx

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/custodia-labs/pagewise/internal/adapters/driven/extract/plaintext"
	"github.com/custodia-labs/pagewise/internal/core/domain"
	"github.com/custodia-labs/pagewise/internal/core/ports/driven"
)

// Ensure Extractor implements the interface.
var _ driven.Extractor = (*Extractor)(nil)

const documentPart = "word/document.xml"

// Extractor handles DOCX documents.
type Extractor struct{}

// New creates a new DOCX extractor.
func New() *Extractor {
	return &Extractor{}
}

// Name identifies the extractor.
func (e *Extractor) Name() string {
	return "docx"
}

// Extensions returns the file extensions this extractor handles.
func (e *Extractor) Extensions() []string {
	return []string{".docx"}
}

// Extract reads the body text, one paragraph per line.
func (e *Extractor) Extract(ctx context.Context, data []byte, filename string) (*domain.ExtractionResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return &domain.ExtractionResult{Error: fmt.Sprintf("%s: not a DOCX archive: %v", filename, err)}, nil
	}

	part, err := openPart(reader, documentPart)
	if err != nil {
		return &domain.ExtractionResult{Error: fmt.Sprintf("%s: %v", filename, err)}, nil
	}
	defer part.Close()

	text, err := bodyText(part)
	if err != nil {
		return &domain.ExtractionResult{Error: fmt.Sprintf("%s: malformed document.xml: %v", filename, err)}, nil
	}

	result := plaintext.Paginate(text)
	if !result.Success {
		result.Error = filename + ": document contains no text"
	}
	return result, nil
}

func openPart(reader *zip.Reader, name string) (io.ReadCloser, error) {
	for _, file := range reader.File {
		if file.Name == name {
			return file.Open()
		}
	}
	return nil, fmt.Errorf("missing %s", name)
}

// bodyText walks the WordprocessingML token stream. Paragraphs end lines,
// tabs become tab characters and page breaks become form feeds.
func bodyText(r io.Reader) (string, error) {
	dec := xml.NewDecoder(r)

	var (
		b      strings.Builder
		inText bool
	)
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				inText = true
			case "tab":
				b.WriteByte('\t')
			case "br", "cr":
				if isPageBreak(t) {
					b.WriteString(plaintext.PageBreak)
				} else {
					b.WriteByte('\n')
				}
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				b.WriteByte('\n')
			}
		case xml.CharData:
			if inText {
				b.Write(t)
			}
		}
	}
	return b.String(), nil
}

func isPageBreak(el xml.StartElement) bool {
	if el.Name.Local != "br" {
		return false
	}
	for _, attr := range el.Attr {
		if attr.Name.Local == "type" && attr.Value == "page" {
			return true
		}
	}
	return false
}
