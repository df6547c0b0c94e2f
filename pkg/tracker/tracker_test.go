package tracker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeSender struct {
	mu         sync.Mutex
	records    []Record
	bootstraps int
	sendErr    error
	bootErr    error
}

func (f *fakeSender) Bootstrap(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.bootErr != nil {
		return f.bootErr
	}
	f.bootstraps++
	return nil
}

func (f *fakeSender) Send(ctx context.Context, rec Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.records = append(f.records, rec)
	return nil
}

func (f *fakeSender) all() []Record {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Record, len(f.records))
	copy(out, f.records)
	return out
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestObserver(t *testing.T, cfg Config, sender Sender, clock *fakeClock) *Observer {
	t.Helper()
	return NewObserver(cfg, sender, zap.NewNop(), WithClock(clock.Now))
}

func TestHoverBelowThresholdIsDiscarded(t *testing.T) {
	sender := &fakeSender{}
	clock := &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	obs := newTestObserver(t, Config{HoverThreshold: 100 * time.Millisecond}, sender, clock)

	obs.PointerEnter(7)
	clock.Advance(40 * time.Millisecond)
	obs.PointerLeave(7)
	obs.Flush()

	assert.Empty(t, sender.all())
}

func TestHoverExactlyAtThresholdIsEmitted(t *testing.T) {
	sender := &fakeSender{}
	clock := &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	obs := newTestObserver(t, Config{HoverThreshold: 100 * time.Millisecond}, sender, clock)

	// The threshold is inclusive: a dwell of exactly 100ms counts.
	obs.PointerEnter(7)
	clock.Advance(100 * time.Millisecond)
	obs.PointerLeave(7)
	obs.Flush()

	recs := sender.all()
	require.Len(t, recs, 1)
	assert.Equal(t, int64(100), recs[0].DurationMs)
}

func TestHoverAboveThresholdIsEmittedWithDuration(t *testing.T) {
	sender := &fakeSender{}
	clock := &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	obs := newTestObserver(t, Config{HoverThreshold: 100 * time.Millisecond, PageURL: "/products"}, sender, clock)

	obs.PointerEnter(7)
	clock.Advance(250 * time.Millisecond)
	obs.PointerLeave(7)
	obs.Flush()

	recs := sender.all()
	require.Len(t, recs, 1)
	assert.Equal(t, KindHover, recs[0].Kind)
	assert.Equal(t, int64(7), recs[0].ProductID)
	assert.Equal(t, int64(250), recs[0].DurationMs)
	assert.Equal(t, "/products", recs[0].PageURL)
	assert.NotEmpty(t, recs[0].SessionID)
}

func TestPointerEnterOverwritesPendingStart(t *testing.T) {
	sender := &fakeSender{}
	clock := &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	obs := newTestObserver(t, Config{HoverThreshold: 100 * time.Millisecond}, sender, clock)

	obs.PointerEnter(7)
	clock.Advance(5 * time.Second)
	obs.PointerEnter(7)
	clock.Advance(300 * time.Millisecond)
	obs.PointerLeave(7)
	obs.Flush()

	recs := sender.all()
	require.Len(t, recs, 1)
	assert.Equal(t, int64(300), recs[0].DurationMs)
}

func TestPointerLeaveWithoutEnterIsSilent(t *testing.T) {
	sender := &fakeSender{}
	clock := &fakeClock{now: time.Now()}
	obs := newTestObserver(t, Config{}, sender, clock)

	obs.PointerLeave(7)
	obs.PointerLeave(7)
	obs.Flush()

	assert.Empty(t, sender.all())
}

func TestVisibleEmitsOncePerPage(t *testing.T) {
	sender := &fakeSender{}
	clock := &fakeClock{now: time.Now()}
	obs := newTestObserver(t, Config{}, sender, clock)

	obs.Visible(7)
	obs.Visible(7)
	obs.Visible(7)
	obs.Visible(12)
	obs.Flush()

	recs := sender.all()
	require.Len(t, recs, 2)
	assert.Equal(t, KindView, recs[0].Kind)
}

func TestResetPageAllowsViewsAgain(t *testing.T) {
	sender := &fakeSender{}
	clock := &fakeClock{now: time.Now()}
	obs := newTestObserver(t, Config{PageURL: "/grid"}, sender, clock)

	obs.Visible(7)
	obs.ResetPage("/detail/7")
	obs.Visible(7)
	obs.Flush()

	recs := sender.all()
	require.Len(t, recs, 2)
	assert.Equal(t, "/grid", recs[0].PageURL)
	assert.Equal(t, "/detail/7", recs[1].PageURL)
}

func TestResetPageAbandonsPendingHovers(t *testing.T) {
	sender := &fakeSender{}
	clock := &fakeClock{now: time.Now()}
	obs := newTestObserver(t, Config{HoverThreshold: 100 * time.Millisecond}, sender, clock)

	obs.PointerEnter(7)
	clock.Advance(10 * time.Second)
	obs.ResetPage("/next")
	obs.PointerLeave(7)
	obs.Flush()

	assert.Empty(t, sender.all())
}

func TestClickAlwaysEmits(t *testing.T) {
	sender := &fakeSender{}
	clock := &fakeClock{now: time.Now()}
	obs := newTestObserver(t, Config{}, sender, clock)

	obs.Click(7)
	obs.Click(7)
	obs.Click(7)
	obs.Flush()

	recs := sender.all()
	require.Len(t, recs, 3)
	for _, rec := range recs {
		assert.Equal(t, KindClick, rec.Kind)
		assert.Zero(t, rec.DurationMs)
	}
}

func TestBootstrapRunsOncePerPage(t *testing.T) {
	sender := &fakeSender{}
	clock := &fakeClock{now: time.Now()}
	obs := newTestObserver(t, Config{}, sender, clock)

	obs.Bootstrap(context.Background())
	obs.Bootstrap(context.Background())
	assert.Equal(t, 1, sender.bootstraps)

	obs.ResetPage("/next")
	obs.Bootstrap(context.Background())
	assert.Equal(t, 2, sender.bootstraps)
}

func TestSendErrorsAreSwallowed(t *testing.T) {
	sender := &fakeSender{sendErr: errors.New("collector down"), bootErr: errors.New("collector down")}
	clock := &fakeClock{now: time.Now()}
	obs := newTestObserver(t, Config{}, sender, clock)

	obs.Bootstrap(context.Background())
	obs.Click(7)
	obs.Visible(12)
	obs.Flush()

	// No panic, no surfaced error. The records are simply gone.
	assert.Empty(t, sender.all())
}

func TestObserversAreIndependent(t *testing.T) {
	sender := &fakeSender{}
	clock := &fakeClock{now: time.Now()}
	a := newTestObserver(t, Config{}, sender, clock)
	b := newTestObserver(t, Config{}, sender, clock)

	a.Visible(7)
	b.Visible(7)
	a.Flush()
	b.Flush()

	recs := sender.all()
	require.Len(t, recs, 2)
	assert.NotEqual(t, recs[0].SessionID, recs[1].SessionID)
}
