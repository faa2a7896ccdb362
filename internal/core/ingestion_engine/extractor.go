package ingestion_engine

import (
	"fmt"

	"github.com/markdave123-py/Contexta/internal/config"
	"github.com/markdave123-py/Contexta/internal/core"
)

// NewExtractor returns the page extractor selected by PDF_EXTRACTOR.
func NewExtractor(kind string) (core.PageExtractor, error) {
	switch kind {
	case config.ExtractorPDF, "":
		return NewPDFExtractor(), nil
	case config.ExtractorDocconv:
		useReadability := false
		return NewDocconvExtractor(useReadability), nil
	default:
		return nil, fmt.Errorf("unknown pdf extractor %q", kind)
	}
}
