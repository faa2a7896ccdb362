package core

import (
	"context"
	"errors"
)

// ErrUnreadableDocument is returned when the bytes cannot be parsed as a PDF.
var ErrUnreadableDocument = errors.New("document could not be read")

// PageExtractor turns raw PDF bytes into page texts, one entry per page in
// document order.
type PageExtractor interface {
	ExtractPages(ctx context.Context, data []byte) ([]string, error)
}
