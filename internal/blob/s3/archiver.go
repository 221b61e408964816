package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/polysignal/engine/internal/domain"
)

// archiveBatchSize bounds one archival pass so a huge backlog cannot hold a
// multi-hour transaction worth of rows in memory.
const archiveBatchSize = 10000

// ---------------------------------------------------------------------------
// Narrow store interfaces required by the archiver.
//
// The archiver only requires the query methods it actually calls, not the
// full store types. The Postgres stores satisfy these implicitly.
// ---------------------------------------------------------------------------

// SignalArchiveStore provides read access to expired signals.
type SignalArchiveStore interface {
	ListExpired(ctx context.Context, now time.Time, limit int) ([]domain.Signal, error)
}

// TradeArchiveStore provides read access to aged trades.
type TradeArchiveStore interface {
	ListBefore(ctx context.Context, before time.Time, limit int) ([]domain.Trade, error)
}

// BlobWriter is the upload surface the archiver needs.
type BlobWriter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
	PutMultipart(ctx context.Context, path string, data io.Reader, partSize int64) error
}

// Archiver drains expired signals and aged trades to object storage as
// JSONL before the retention workers delete them from the primary store.
//
// Deletion is intentionally NOT performed here; the caller deletes only
// after the upload has succeeded.
type Archiver struct {
	writer  BlobWriter
	signals SignalArchiveStore
	trades  TradeArchiveStore
	logger  *slog.Logger
}

// NewArchiver creates a new Archiver.
func NewArchiver(writer BlobWriter, signals SignalArchiveStore, trades TradeArchiveStore, logger *slog.Logger) *Archiver {
	return &Archiver{
		writer:  writer,
		signals: signals,
		trades:  trades,
		logger:  logger.With(slog.String("component", "archiver")),
	}
}

// ArchiveSignals uploads signals past their expiry to
// archive/signals/YYYY-MM-DD.jsonl and returns how many were written.
func (a *Archiver) ArchiveSignals(ctx context.Context, now time.Time) (int64, error) {
	signals, err := a.signals.ListExpired(ctx, now, archiveBatchSize)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive signals query: %w", err)
	}
	if len(signals) == 0 {
		return 0, nil
	}

	buf, err := marshalJSONL(signals)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive signals marshal: %w", err)
	}

	path := fmt.Sprintf("archive/signals/%s.jsonl", now.Format("2006-01-02"))
	if err := a.writer.Put(ctx, path, bytes.NewReader(buf), "application/x-ndjson"); err != nil {
		return 0, fmt.Errorf("s3blob: archive signals upload: %w", err)
	}

	a.logger.Info("archived signals",
		slog.String("path", path),
		slog.Int("count", len(signals)),
	)
	return int64(len(signals)), nil
}

// ArchiveTrades uploads trades older than the cutoff to
// archive/trades/YYYY-MM.jsonl and returns how many were written. Trade
// batches can run large, so the upload goes through the multipart manager.
func (a *Archiver) ArchiveTrades(ctx context.Context, before time.Time) (int64, error) {
	trades, err := a.trades.ListBefore(ctx, before, archiveBatchSize)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive trades query: %w", err)
	}
	if len(trades) == 0 {
		return 0, nil
	}

	buf, err := marshalJSONL(trades)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive trades marshal: %w", err)
	}

	path := fmt.Sprintf("archive/trades/%s.jsonl", before.Format("2006-01"))
	if err := a.writer.PutMultipart(ctx, path, bytes.NewReader(buf), 0); err != nil {
		return 0, fmt.Errorf("s3blob: archive trades upload: %w", err)
	}

	a.logger.Info("archived trades",
		slog.String("path", path),
		slog.Int("count", len(trades)),
	)
	return int64(len(trades)), nil
}

// marshalJSONL serialises a slice of values as newline-delimited JSON.
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
