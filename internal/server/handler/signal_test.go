package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polysignal/engine/internal/domain"
)

type fakeSignalReader struct {
	gotOpts domain.ListOpts
	signals []domain.Signal
}

func (f *fakeSignalReader) List(_ context.Context, opts domain.ListOpts) ([]domain.Signal, error) {
	f.gotOpts = opts
	return f.signals, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestListSignalsPassesSince(t *testing.T) {
	reader := &fakeSignalReader{signals: []domain.Signal{{ID: "sig-1", Type: domain.SignalVolumeSurge}}}
	h := NewSignalHandler(reader, discardLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/signals?limit=10&since=2026-08-30T00:00:00Z", nil)
	rec := httptest.NewRecorder()
	h.ListSignals(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 10, reader.gotOpts.Limit)
	require.NotNil(t, reader.gotOpts.Since)
	assert.Equal(t, time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC), reader.gotOpts.Since.UTC())

	var resp listSignalsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Signals, 1)
	assert.Equal(t, "sig-1", resp.Signals[0].ID)
}

func TestListSignalsRejectsBadSince(t *testing.T) {
	h := NewSignalHandler(&fakeSignalReader{}, discardLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/signals?since=yesterday", nil)
	rec := httptest.NewRecorder()
	h.ListSignals(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestParseListOptsClampsLimit(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/signals?limit=9999&offset=20", nil)
	opts := parseListOpts(req)
	assert.Equal(t, 500, opts.Limit)
	assert.Equal(t, 20, opts.Offset)

	req = httptest.NewRequest(http.MethodGet, "/api/signals?limit=-3&offset=-1", nil)
	opts = parseListOpts(req)
	assert.Equal(t, 50, opts.Limit)
	assert.Equal(t, 0, opts.Offset)
}
