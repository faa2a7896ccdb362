package ingestion_engine

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"code.sajari.com/docconv" // Using the corrected module path

	"github.com/markdave123-py/Contexta/internal/core"
)

var _ core.PageExtractor = (*DocconvExtractor)(nil)

// DocconvExtractor implements core.PageExtractor using sajari/docconv. It
// needs poppler's pdftotext on PATH; pages are split on the form feeds it
// emits between pages.
type DocconvExtractor struct {
	useReadability bool
}

func NewDocconvExtractor(useReadability bool) *DocconvExtractor {
	return &DocconvExtractor{useReadability: useReadability}
}

func (e *DocconvExtractor) ExtractPages(ctx context.Context, data []byte) ([]string, error) {
	if !LooksLikePDF(data) {
		return nil, fmt.Errorf("%w: missing PDF header", core.ErrUnreadableDocument)
	}

	res, err := docconv.Convert(bytes.NewReader(data), "application/pdf", e.useReadability)
	if err != nil {
		return nil, fmt.Errorf("%w: docconv: %v", core.ErrUnreadableDocument, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return splitPages(res.Body), nil
}

// splitPages splits on form feeds, dropping the empty tail after the last one.
func splitPages(body string) []string {
	parts := strings.Split(body, "\f")
	if len(parts) > 1 && strings.TrimSpace(parts[len(parts)-1]) == "" {
		parts = parts[:len(parts)-1]
	}
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}
