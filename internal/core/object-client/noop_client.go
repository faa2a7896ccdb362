package objectclient

import (
	"context"
	"io"

	"github.com/markdave123-py/Contexta/internal/core"
)

// NoopClient is used when no blob backend is configured. Uploads are
// discarded and report an empty URL.
type NoopClient struct{}

func (NoopClient) UploadFile(ctx context.Context, key string, data io.Reader, contentType string) (string, error) {
	return "", nil
}

func (NoopClient) DeleteFile(ctx context.Context, key string) error { return nil }

var _ core.ObjectClient = NoopClient{}
