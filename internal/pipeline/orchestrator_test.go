package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingWorker struct {
	name string
	runs atomic.Int64
	err  error
}

func (w *countingWorker) Name() string { return w.name }

func (w *countingWorker) Run(context.Context) error {
	w.runs.Add(1)
	return w.err
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestOrchestratorRequiresWorkers(t *testing.T) {
	o := NewOrchestrator(testLogger())
	assert.Error(t, o.Run(context.Background()))
}

func TestOrchestratorRunsImmediatelyThenOnTick(t *testing.T) {
	w := &countingWorker{name: "w"}
	o := NewOrchestrator(testLogger())
	o.Register(w, 20*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 70*time.Millisecond)
	defer cancel()

	require.NoError(t, o.Run(ctx))
	assert.GreaterOrEqual(t, w.runs.Load(), int64(2), "first pass plus at least one tick")
}

func TestOrchestratorKeepsLoopAliveAfterWorkerError(t *testing.T) {
	w := &countingWorker{name: "w", err: errors.New("pass failed")}
	o := NewOrchestrator(testLogger())
	o.Register(w, 10*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 55*time.Millisecond)
	defer cancel()

	require.NoError(t, o.Run(ctx), "worker errors are logged, not fatal")
	assert.GreaterOrEqual(t, w.runs.Load(), int64(3))
}

func TestOrchestratorSkipsDisabledWorkers(t *testing.T) {
	enabled := &countingWorker{name: "on"}
	disabled := &countingWorker{name: "off"}

	o := NewOrchestrator(testLogger())
	o.Register(enabled, 10*time.Millisecond)
	o.Register(disabled, 0)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	require.NoError(t, o.Run(ctx))
	assert.Positive(t, enabled.runs.Load())
	assert.Zero(t, disabled.runs.Load())
}
