package interaction

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/cloess/interaction-analytics/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type pairKey struct {
	sessionID int64
	productID int64
}

// fakeAggRepo applies deltas atomically under a lock, mirroring the
// store's single-statement conditional upsert.
type fakeAggRepo struct {
	mu   sync.Mutex
	rows map[pairKey]*Aggregate
}

func newFakeAggRepo() *fakeAggRepo {
	return &fakeAggRepo{rows: make(map[pairKey]*Aggregate)}
}

func (f *fakeAggRepo) Upsert(_ context.Context, sessionID, productID int64, d Delta, occurredAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := pairKey{sessionID, productID}
	agg, ok := f.rows[key]
	if !ok {
		agg = &Aggregate{
			SessionID:        sessionID,
			ProductID:        productID,
			FirstInteraction: occurredAt,
			LastInteraction:  occurredAt,
		}
		f.rows[key] = agg
	}
	agg.TotalHoverMs += d.HoverMs
	agg.TotalHovers += d.Hovers
	agg.TotalViews += d.Views
	agg.TotalClicks += d.Clicks
	if occurredAt.After(agg.LastInteraction) {
		agg.LastInteraction = occurredAt
	}
	return nil
}

type fakeCatalog struct {
	known map[int64]string
}

func (f *fakeCatalog) Exists(_ context.Context, productID int64) (bool, error) {
	_, ok := f.known[productID]
	return ok, nil
}

func (f *fakeCatalog) Name(_ context.Context, productID int64) (string, error) {
	return f.known[productID], nil
}

type fakeSessions struct {
	mu      sync.Mutex
	ensured int
	touched int
}

func (f *fakeSessions) Ensure(_ context.Context, origin, _ string, touch bool) (*session.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ensured++
	if touch {
		f.touched++
	}
	// one synthetic id per origin, stable across calls
	var id int64 = 1
	for _, b := range []byte(origin) {
		id = id*31 + int64(b)
	}
	return &session.Session{ID: id, Origin: origin}, nil
}

type fakePublisher struct {
	mu   sync.Mutex
	sent []any
	err  error
}

func (f *fakePublisher) SendMessage(_ context.Context, _ string, value any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, value)
	return nil
}

func newTestService(repo Repository, cat *fakeCatalog, sessions *fakeSessions, pub Publisher) *Service {
	return NewService(repo, cat, sessions, pub, true, zap.NewNop())
}

func melhafCatalog() *fakeCatalog {
	return &fakeCatalog{known: map[int64]string{7: "Melhaf Sahara", 12: "Fouta Djerba"}}
}

func TestRecordViewCreatesAndIncrements(t *testing.T) {
	repo := newFakeAggRepo()
	sessions := &fakeSessions{}
	svc := newTestService(repo, melhafCatalog(), sessions, nil)

	rec := &Record{Origin: "41.224.10.5", ProductID: 7, Kind: KindView, OccurredAt: time.Now().UTC()}
	require.NoError(t, svc.Record(context.Background(), rec))
	require.NoError(t, svc.Record(context.Background(), rec))

	require.Len(t, repo.rows, 1)
	for _, agg := range repo.rows {
		assert.Equal(t, int64(2), agg.TotalViews)
		assert.Zero(t, agg.TotalClicks)
		assert.Zero(t, agg.TotalHovers)
	}
	assert.Equal(t, 2, sessions.ensured)
	assert.Equal(t, 2, sessions.touched)
}

func TestRecordClickCountsEveryClick(t *testing.T) {
	repo := newFakeAggRepo()
	svc := newTestService(repo, melhafCatalog(), &fakeSessions{}, nil)

	for i := 0; i < 3; i++ {
		rec := &Record{Origin: "41.224.10.5", ProductID: 12, Kind: KindClick, OccurredAt: time.Now().UTC()}
		require.NoError(t, svc.Record(context.Background(), rec))
	}

	for _, agg := range repo.rows {
		assert.Equal(t, int64(3), agg.TotalClicks)
	}
}

func TestRecordRejectsHoverWithoutPositiveDuration(t *testing.T) {
	repo := newFakeAggRepo()
	sessions := &fakeSessions{}
	pub := &fakePublisher{}
	svc := newTestService(repo, melhafCatalog(), sessions, pub)

	for _, durationMs := range []int64{0, -250} {
		rec := &Record{Origin: "41.224.10.5", ProductID: 7, Kind: KindHover, DurationMs: durationMs, OccurredAt: time.Now().UTC()}
		err := svc.Record(context.Background(), rec)
		assert.ErrorIs(t, err, ErrInvalidDuration)
	}

	assert.Empty(t, repo.rows, "rejected records must not mutate aggregates")
	assert.Zero(t, sessions.ensured, "rejected records must not create sessions")
	assert.Empty(t, pub.sent)
}

func TestRecordRejectsUnknownKind(t *testing.T) {
	repo := newFakeAggRepo()
	svc := newTestService(repo, melhafCatalog(), &fakeSessions{}, nil)

	rec := &Record{Origin: "41.224.10.5", ProductID: 7, Kind: "scroll", OccurredAt: time.Now().UTC()}
	err := svc.Record(context.Background(), rec)
	assert.ErrorIs(t, err, ErrInvalidKind)
	assert.Empty(t, repo.rows)
}

func TestRecordRejectsUnknownProduct(t *testing.T) {
	repo := newFakeAggRepo()
	sessions := &fakeSessions{}
	svc := newTestService(repo, melhafCatalog(), sessions, nil)

	rec := &Record{Origin: "41.224.10.5", ProductID: 999, Kind: KindView, OccurredAt: time.Now().UTC()}
	err := svc.Record(context.Background(), rec)
	assert.ErrorIs(t, err, ErrProductNotFound)
	assert.Empty(t, repo.rows)
	assert.Zero(t, sessions.ensured)
}

func TestRecordConcurrentHoversLoseNoUpdates(t *testing.T) {
	repo := newFakeAggRepo()
	svc := newTestService(repo, melhafCatalog(), &fakeSessions{}, nil)

	const workers = 50
	const durationMs = 20

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rec := &Record{
				Origin:     "41.224.10.5",
				ProductID:  7,
				Kind:       KindHover,
				DurationMs: durationMs,
				OccurredAt: time.Now().UTC(),
			}
			assert.NoError(t, svc.Record(context.Background(), rec))
		}()
	}
	wg.Wait()

	require.Len(t, repo.rows, 1)
	for _, agg := range repo.rows {
		assert.Equal(t, int64(workers*durationMs), agg.TotalHoverMs)
		assert.Equal(t, int64(workers), agg.TotalHovers)
	}
}

func TestRecordLastInteractionNeverRegresses(t *testing.T) {
	repo := newFakeAggRepo()
	svc := newTestService(repo, melhafCatalog(), &fakeSessions{}, nil)

	later := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	earlier := later.Add(-time.Hour)

	require.NoError(t, svc.Record(context.Background(), &Record{Origin: "41.224.10.5", ProductID: 7, Kind: KindView, OccurredAt: later}))
	require.NoError(t, svc.Record(context.Background(), &Record{Origin: "41.224.10.5", ProductID: 7, Kind: KindClick, OccurredAt: earlier}))

	for _, agg := range repo.rows {
		assert.Equal(t, later, agg.LastInteraction)
		assert.Equal(t, later, agg.FirstInteraction)
	}
}

func TestRecordPublishFailureDoesNotFailTheWrite(t *testing.T) {
	repo := newFakeAggRepo()
	pub := &fakePublisher{err: errors.New("broker down")}
	svc := newTestService(repo, melhafCatalog(), &fakeSessions{}, pub)

	rec := &Record{Origin: "41.224.10.5", ProductID: 7, Kind: KindView, OccurredAt: time.Now().UTC()}
	require.NoError(t, svc.Record(context.Background(), rec))
	require.Len(t, repo.rows, 1)
}

func TestRecordPublishesAcceptedRecords(t *testing.T) {
	pub := &fakePublisher{}
	svc := newTestService(newFakeAggRepo(), melhafCatalog(), &fakeSessions{}, pub)

	rec := &Record{Origin: "41.224.10.5", ProductID: 7, Kind: KindHover, DurationMs: 300, OccurredAt: time.Now().UTC()}
	require.NoError(t, svc.Record(context.Background(), rec))
	require.Len(t, pub.sent, 1)
	assert.Equal(t, rec, pub.sent[0])
}
