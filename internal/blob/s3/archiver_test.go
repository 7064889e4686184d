package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corewatch/dexarb/internal/domain"
)

type fakeBlobWriter struct {
	puts map[string][]byte
	err  error
}

func newFakeBlobWriter() *fakeBlobWriter {
	return &fakeBlobWriter{puts: make(map[string][]byte)}
}

func (f *fakeBlobWriter) Put(_ context.Context, path string, data io.Reader, _ string) error {
	if f.err != nil {
		return f.err
	}
	buf, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	f.puts[path] = buf
	return nil
}

type fakeLedgerSource struct {
	records []domain.ExecutionResult
	err     error
	sinces  []time.Time
}

func (f *fakeLedgerSource) ListSince(_ context.Context, since time.Time) ([]domain.ExecutionResult, error) {
	f.sinces = append(f.sinces, since)
	if f.err != nil {
		return nil, f.err
	}
	var out []domain.ExecutionResult
	for _, r := range f.records {
		if r.Timestamp.After(since) {
			out = append(out, r)
		}
	}
	return out, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func TestArchiveOnceUploadsJSONL(t *testing.T) {
	writer := newFakeBlobWriter()
	ledger := &fakeLedgerSource{records: []domain.ExecutionResult{
		{ID: "a", Status: domain.ExecSimulated, Timestamp: time.Now().Add(time.Minute)},
		{ID: "b", Status: domain.ExecExecuted, TxHash: "0xabc", Timestamp: time.Now().Add(time.Minute)},
	}}

	arc := NewArchiver(writer, ledger, time.Minute, testLogger())

	count, err := arc.ArchiveOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
	require.Len(t, writer.puts, 1)

	for path, body := range writer.puts {
		assert.True(t, strings.HasPrefix(path, "archive/executions/"))
		assert.True(t, strings.HasSuffix(path, ".jsonl"))

		lines := bytes.Split(bytes.TrimSpace(body), []byte("\n"))
		require.Len(t, lines, 2)

		var first domain.ExecutionResult
		require.NoError(t, json.Unmarshal(lines[0], &first))
		assert.Equal(t, "a", first.ID)
	}
}

func TestArchiveOnceEmptyLedgerSkipsUpload(t *testing.T) {
	writer := newFakeBlobWriter()
	ledger := &fakeLedgerSource{}

	arc := NewArchiver(writer, ledger, time.Minute, testLogger())

	count, err := arc.ArchiveOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, count)
	assert.Empty(t, writer.puts)
}

func TestArchiveOnceFailedUploadKeepsWatermark(t *testing.T) {
	writer := newFakeBlobWriter()
	writer.err = errors.New("bucket unreachable")
	ledger := &fakeLedgerSource{records: []domain.ExecutionResult{
		{ID: "a", Status: domain.ExecSkipped, Timestamp: time.Now().Add(time.Minute)},
	}}

	arc := NewArchiver(writer, ledger, time.Minute, testLogger())

	_, err := arc.ArchiveOnce(context.Background())
	require.Error(t, err)

	// A retry after the failure must query from the same watermark so the
	// unarchived records are picked up again.
	writer.err = nil
	count, err := arc.ArchiveOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	require.Len(t, ledger.sinces, 2)
	assert.Equal(t, ledger.sinces[0], ledger.sinces[1])
}

func TestMarshalJSONLCompactLines(t *testing.T) {
	buf, err := marshalJSONL([]map[string]string{{"k": "v"}, {"x": "y"}})
	require.NoError(t, err)
	assert.Equal(t, "{\"k\":\"v\"}\n{\"x\":\"y\"}\n", string(buf))
}
