package rollup

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type bucketKey struct {
	date time.Time
	hour int
	kind string
}

type fakeRepo struct {
	buckets map[bucketKey]*Summary
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{buckets: make(map[bucketKey]*Summary)}
}

func (f *fakeRepo) UpsertSummary(_ context.Context, summary *Summary) error {
	key := bucketKey{summary.BucketDate, summary.BucketHour, summary.Kind}
	if existing, ok := f.buckets[key]; ok {
		existing.TotalEvents += summary.TotalEvents
		existing.TotalDurationMs += summary.TotalDurationMs
		return nil
	}
	copied := *summary
	f.buckets[key] = &copied
	return nil
}

func (f *fakeRepo) GetByDateRange(_ context.Context, from, to time.Time, kind string) ([]*Summary, error) {
	var out []*Summary
	for _, s := range f.buckets {
		if s.BucketDate.Before(from) || s.BucketDate.After(to) {
			continue
		}
		if kind != "" && s.Kind != kind {
			continue
		}
		out = append(out, s)
	}
	return out, nil
}

func TestProcessAccumulatesWithinBucket(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo, zap.NewNop())

	at := time.Date(2025, 6, 1, 14, 10, 0, 0, time.UTC)
	require.NoError(t, svc.Process(context.Background(), &Message{Kind: "hover", DurationMs: 300, OccurredAt: at}))
	require.NoError(t, svc.Process(context.Background(), &Message{Kind: "hover", DurationMs: 200, OccurredAt: at.Add(20 * time.Minute)}))

	require.Len(t, repo.buckets, 1)
	for _, s := range repo.buckets {
		assert.Equal(t, int64(2), s.TotalEvents)
		assert.Equal(t, int64(500), s.TotalDurationMs)
		assert.Equal(t, 14, s.BucketHour)
	}
}

func TestProcessSplitsBucketsByHourAndKind(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo, zap.NewNop())

	at := time.Date(2025, 6, 1, 14, 59, 0, 0, time.UTC)
	require.NoError(t, svc.Process(context.Background(), &Message{Kind: "view", OccurredAt: at}))
	require.NoError(t, svc.Process(context.Background(), &Message{Kind: "click", OccurredAt: at}))
	require.NoError(t, svc.Process(context.Background(), &Message{Kind: "view", OccurredAt: at.Add(2 * time.Minute)}))

	assert.Len(t, repo.buckets, 3)
}

func TestTimelineFiltersByKindAndRange(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo, zap.NewNop())

	monday := time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)
	require.NoError(t, svc.Process(context.Background(), &Message{Kind: "view", OccurredAt: monday}))
	require.NoError(t, svc.Process(context.Background(), &Message{Kind: "hover", DurationMs: 400, OccurredAt: monday}))
	require.NoError(t, svc.Process(context.Background(), &Message{Kind: "view", OccurredAt: monday.AddDate(0, 0, 3)}))

	day := monday.Truncate(24 * time.Hour)

	all, err := svc.Timeline(context.Background(), day, day.AddDate(0, 0, 7), "")
	require.NoError(t, err)
	assert.Len(t, all, 3)

	views, err := svc.Timeline(context.Background(), day, day, "view")
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, "view", views[0].Kind)
	assert.Equal(t, int64(1), views[0].TotalEvents)
}

func TestTimelineEmptyRangeIsEmptyListNotError(t *testing.T) {
	svc := NewService(newFakeRepo(), zap.NewNop())

	day := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)
	summaries, err := svc.Timeline(context.Background(), day, day, "")
	require.NoError(t, err)
	assert.NotNil(t, summaries)
	assert.Empty(t, summaries)
}

func TestTimelineRejectsBadInput(t *testing.T) {
	svc := NewService(newFakeRepo(), zap.NewNop())
	day := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)

	_, err := svc.Timeline(context.Background(), day, day, "scroll")
	assert.ErrorIs(t, err, ErrInvalidKind)

	_, err = svc.Timeline(context.Background(), day, day.AddDate(0, 0, -1), "")
	assert.ErrorIs(t, err, ErrInvalidRange)
}

func TestMessageHandlerRejectsMalformedPayload(t *testing.T) {
	svc := NewService(newFakeRepo(), zap.NewNop())
	handler := svc.MessageHandler()

	err := handler(context.Background(), nil, []byte("{not json"))
	assert.Error(t, err)
}

func TestMessageHandlerProcessesPayload(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo, zap.NewNop())
	handler := svc.MessageHandler()

	payload := []byte(`{"origin":"41.224.10.5","product_id":7,"kind":"click","occurred_at":"2025-06-01T14:10:00Z"}`)
	require.NoError(t, handler(context.Background(), nil, payload))
	assert.Len(t, repo.buckets, 1)
}
