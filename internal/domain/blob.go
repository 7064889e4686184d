package domain

import (
	"context"
	"io"
)

// BlobWriter uploads objects to blob storage. Used by the ledger archiver.
type BlobWriter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
}
