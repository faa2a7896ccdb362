package ingestion_engine

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/dslipak/pdf" // Pure Go PDF text extractor

	"github.com/markdave123-py/Contexta/internal/core"
)

var _ core.PageExtractor = (*PDFExtractor)(nil)

// PDFExtractor reads page texts with the pure Go dslipak/pdf parser.
type PDFExtractor struct{}

func NewPDFExtractor() *PDFExtractor { return &PDFExtractor{} }

// ExtractPages returns one text per page; a page without a content stream
// yields an empty string so page numbering is preserved.
func (e *PDFExtractor) ExtractPages(ctx context.Context, data []byte) (pages []string, err error) {
	if !LooksLikePDF(data) {
		return nil, fmt.Errorf("%w: missing PDF header", core.ErrUnreadableDocument)
	}

	// The parser panics on some malformed inputs.
	defer func() {
		if r := recover(); r != nil {
			pages, err = nil, fmt.Errorf("%w: %v", core.ErrUnreadableDocument, r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrUnreadableDocument, err)
	}

	n := r.NumPage()
	pages = make([]string, 0, n)
	for i := 1; i <= n; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		p := r.Page(i)
		if p.V.IsNull() {
			pages = append(pages, "")
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("%w: page %d: %v", core.ErrUnreadableDocument, i, err)
		}
		pages = append(pages, strings.TrimSpace(text))
	}
	return pages, nil
}

// LooksLikePDF reports whether data starts with the PDF magic header,
// allowing for leading whitespace.
func LooksLikePDF(data []byte) bool {
	return bytes.HasPrefix(bytes.TrimLeft(data, " \t\r\n"), []byte("%PDF-"))
}
