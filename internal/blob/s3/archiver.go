package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/corewatch/dexarb/internal/domain"
)

// multipartCutoff is the buffer size above which the archiver switches from a
// single PutObject to a multipart upload.
const multipartCutoff = 8 * 1024 * 1024

// LedgerSource provides the query method the archiver needs. The Postgres
// ledger store satisfies it through ListSince.
type LedgerSource interface {
	ListSince(ctx context.Context, since time.Time) ([]domain.ExecutionResult, error)
}

// MultipartWriter is the optional large-payload upload capability. When the
// configured BlobWriter also implements it, buffers above multipartCutoff go
// through the multipart path.
type MultipartWriter interface {
	PutMultipart(ctx context.Context, path string, data io.Reader, partSize int64) error
}

// Archiver periodically snapshots new execution ledger entries to object
// storage as JSONL files. Archived records are never deleted from the primary
// store; the archive is a cold copy for offline analysis.
type Archiver struct {
	writer   domain.BlobWriter
	ledger   LedgerSource
	interval time.Duration
	logger   *slog.Logger

	mu   sync.Mutex
	last time.Time
}

// NewArchiver creates an Archiver. interval controls how often Run uploads a
// snapshot; it must be positive when Run is used.
func NewArchiver(writer domain.BlobWriter, ledger LedgerSource, interval time.Duration, logger *slog.Logger) *Archiver {
	return &Archiver{
		writer:   writer,
		ledger:   ledger,
		interval: interval,
		logger:   logger.With(slog.String("component", "archiver")),
		last:     time.Now(),
	}
}

// Run uploads a snapshot every interval until the context is cancelled.
// Individual archive failures are logged and retried on the next cycle.
func (a *Archiver) Run(ctx context.Context) error {
	if a.interval <= 0 {
		return fmt.Errorf("s3blob: archive interval must be positive, got %s", a.interval)
	}

	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			count, err := a.ArchiveOnce(ctx)
			if err != nil {
				a.logger.Error("ledger archive failed", slog.String("error", err.Error()))
				continue
			}
			if count > 0 {
				a.logger.Info("ledger archived", slog.Int64("records", count))
			}
		}
	}
}

// ArchiveOnce uploads all ledger entries recorded since the previous archive
// and returns the number of records written. The since-watermark only
// advances after a successful upload, so a failed upload's records are
// included again on the next attempt.
func (a *Archiver) ArchiveOnce(ctx context.Context) (int64, error) {
	a.mu.Lock()
	since := a.last
	a.mu.Unlock()

	now := time.Now()

	records, err := a.ledger.ListSince(ctx, since)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive ledger query: %w", err)
	}
	if len(records) == 0 {
		a.mu.Lock()
		a.last = now
		a.mu.Unlock()
		return 0, nil
	}

	buf, err := marshalJSONL(records)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive ledger marshal: %w", err)
	}

	path := archivePath("executions", now)
	if err := a.upload(ctx, path, buf); err != nil {
		return 0, fmt.Errorf("s3blob: archive ledger upload: %w", err)
	}

	a.mu.Lock()
	a.last = now
	a.mu.Unlock()

	a.logger.Debug("archive uploaded",
		slog.String("path", path),
		slog.Int("records", len(records)),
	)
	return int64(len(records)), nil
}

func (a *Archiver) upload(ctx context.Context, path string, buf []byte) error {
	if mp, ok := a.writer.(MultipartWriter); ok && len(buf) > multipartCutoff {
		return mp.PutMultipart(ctx, path, bytes.NewReader(buf), minPartSize)
	}
	return a.writer.Put(ctx, path, bytes.NewReader(buf), "application/x-ndjson")
}

// archivePath builds the S3 key for an archive file, partitioned by day with
// a timestamped file name so repeated snapshots within a day never collide.
//
//	archive/executions/2025-01-15/20250115T143000Z.jsonl
func archivePath(kind string, at time.Time) string {
	at = at.UTC()
	return fmt.Sprintf("archive/%s/%s/%s.jsonl",
		kind, at.Format("2006-01-02"), at.Format("20060102T150405Z"))
}

// marshalJSONL serialises a slice of values as newline-delimited JSON. Each
// element becomes one compact JSON line.
func marshalJSONL[T any](records []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	for i, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return nil, fmt.Errorf("jsonl encode record %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}
