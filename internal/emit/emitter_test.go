package emit

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polysignal/engine/internal/domain"
)

type fakeOppStore struct {
	upserts []domain.Opportunity
	expired int64
}

func (f *fakeOppStore) Upsert(_ context.Context, opp domain.Opportunity) error {
	f.upserts = append(f.upserts, opp)
	return nil
}

func (f *fakeOppStore) ListActive(context.Context, domain.ListOpts) ([]domain.Opportunity, error) {
	return nil, nil
}

func (f *fakeOppStore) ExpireOlderThan(context.Context, time.Time) (int64, error) {
	return f.expired, nil
}

type fakeSignalStore struct {
	inserts   []domain.Signal
	insertErr error
	deleted   int64
}

func (f *fakeSignalStore) Insert(_ context.Context, sig domain.Signal) error {
	if f.insertErr != nil {
		return f.insertErr
	}
	f.inserts = append(f.inserts, sig)
	return nil
}

func (f *fakeSignalStore) RecentExists(_ context.Context, marketID, sigType string, window time.Duration) (bool, error) {
	cutoff := time.Now().Add(-window)
	for _, s := range f.inserts {
		if s.MarketID == marketID && s.Type == sigType && s.CreatedAt.After(cutoff) {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeSignalStore) List(context.Context, domain.ListOpts) ([]domain.Signal, error) {
	return nil, nil
}

func (f *fakeSignalStore) ListExpired(context.Context, time.Time, int) ([]domain.Signal, error) {
	return nil, nil
}

func (f *fakeSignalStore) DeleteExpired(context.Context, time.Time) (int64, error) {
	return f.deleted, nil
}

type fakeBus struct {
	published [][]byte
}

func (f *fakeBus) Publish(_ context.Context, _ string, payload []byte) error {
	f.published = append(f.published, payload)
	return nil
}

func (f *fakeBus) Subscribe(context.Context, string) (<-chan []byte, error) {
	return nil, nil
}

type fakeNotifier struct {
	titles []string
	err    error
}

func (f *fakeNotifier) Notify(_ context.Context, _, title, _ string) error {
	if f.err != nil {
		return f.err
	}
	f.titles = append(f.titles, title)
	return nil
}

func newTestEmitter() (*Emitter, *fakeOppStore, *fakeSignalStore, *fakeBus, *fakeNotifier) {
	opps := &fakeOppStore{}
	signals := &fakeSignalStore{}
	bus := &fakeBus{}
	notifier := &fakeNotifier{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewEmitter(DefaultConfig(), opps, signals, bus, notifier, logger), opps, signals, bus, notifier
}

func TestEmitOpportunityStampsFields(t *testing.T) {
	e, opps, _, _, _ := newTestEmitter()

	err := e.EmitOpportunity(context.Background(), domain.Opportunity{
		MarketID:        "m1",
		Type:            domain.OpportunityArbitrage,
		ProfitPotential: 5,
	})
	require.NoError(t, err)
	require.Len(t, opps.upserts, 1)

	stored := opps.upserts[0]
	assert.NotEmpty(t, stored.ID)
	assert.Equal(t, domain.OpportunityStatusActive, stored.Status)
	assert.False(t, stored.DetectedAt.IsZero())
	assert.False(t, stored.UpdatedAt.IsZero())
}

func TestEmitSignalStoresPublishesAndExpires(t *testing.T) {
	e, _, signals, bus, notifier := newTestEmitter()

	emitted, err := e.EmitSignal(context.Background(), domain.Signal{
		MarketID: "m1",
		Type:     domain.SignalPriceSpike,
		Title:    "spike",
		Severity: domain.SeverityMedium,
	})
	require.NoError(t, err)
	assert.True(t, emitted)
	require.Len(t, signals.inserts, 1)

	stored := signals.inserts[0]
	assert.NotEmpty(t, stored.ID)
	assert.Equal(t, stored.CreatedAt.Add(24*time.Hour), stored.ExpiresAt)

	assert.Len(t, bus.published, 1)
	assert.Empty(t, notifier.titles, "medium severity does not page")
}

func TestEmitSignalDedupWindow(t *testing.T) {
	e, _, signals, _, _ := newTestEmitter()
	ctx := context.Background()

	sig := domain.Signal{MarketID: "m1", Type: domain.SignalPriceSpike, Severity: domain.SeverityMedium}

	emitted, err := e.EmitSignal(ctx, sig)
	require.NoError(t, err)
	assert.True(t, emitted)

	// Same (market, type) inside the window: suppressed.
	emitted, err = e.EmitSignal(ctx, sig)
	require.NoError(t, err)
	assert.False(t, emitted)
	assert.Len(t, signals.inserts, 1)

	// Different type for the same market still goes through.
	emitted, err = e.EmitSignal(ctx, domain.Signal{MarketID: "m1", Type: domain.SignalVolumeSurge, Severity: domain.SeverityMedium})
	require.NoError(t, err)
	assert.True(t, emitted)
	assert.Len(t, signals.inserts, 2)
}

func TestEmitSignalNotifiesOnHighSeverity(t *testing.T) {
	e, _, _, _, notifier := newTestEmitter()
	ctx := context.Background()

	_, err := e.EmitSignal(ctx, domain.Signal{MarketID: "m1", Type: domain.SignalHighConfidence, Title: "urgent", Severity: domain.SeverityCritical})
	require.NoError(t, err)
	assert.Equal(t, []string{"urgent"}, notifier.titles)
}

func TestEmitSignalNotifierFailureIsNotFatal(t *testing.T) {
	e, _, signals, _, notifier := newTestEmitter()
	notifier.err = errors.New("webhook down")

	emitted, err := e.EmitSignal(context.Background(), domain.Signal{
		MarketID: "m1", Type: domain.SignalMoneyFlow, Severity: domain.SeverityHigh,
	})
	require.NoError(t, err)
	assert.True(t, emitted)
	assert.Len(t, signals.inserts, 1)
}

func TestEmitSignalInsertErrorPropagates(t *testing.T) {
	e, _, signals, _, _ := newTestEmitter()
	signals.insertErr = errors.New("db down")

	emitted, err := e.EmitSignal(context.Background(), domain.Signal{MarketID: "m1", Type: domain.SignalMoneyFlow})
	assert.Error(t, err)
	assert.False(t, emitted)
}

func TestEmitterWorksWithoutBusAndNotifier(t *testing.T) {
	signals := &fakeSignalStore{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	e := NewEmitter(DefaultConfig(), &fakeOppStore{}, signals, nil, nil, logger)

	emitted, err := e.EmitSignal(context.Background(), domain.Signal{
		MarketID: "m1", Type: domain.SignalPriceDrop, Severity: domain.SeverityCritical,
	})
	require.NoError(t, err)
	assert.True(t, emitted)
}

func TestCleanup(t *testing.T) {
	e, opps, signals, _, _ := newTestEmitter()
	opps.expired = 3
	signals.deleted = 7

	expired, deleted, err := e.Cleanup(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(3), expired)
	assert.Equal(t, int64(7), deleted)
}
