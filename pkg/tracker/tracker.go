// Package tracker is the embeddable client half of the analytics
// pipeline: it turns continuous pointer and visibility signals into
// discrete interaction records and ships them without ever blocking or
// failing the surrounding application.
package tracker

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	KindView  = "view"
	KindHover = "hover"
	KindClick = "click"
)

// Record is one discrete interaction ready for delivery.
type Record struct {
	ProductID  int64     `json:"product_id"`
	Kind       string    `json:"interaction_type"`
	DurationMs int64     `json:"duration_ms,omitempty"`
	PageURL    string    `json:"page_url,omitempty"`
	SessionID  string    `json:"session_id,omitempty"`
	OccurredAt time.Time `json:"-"`
}

// Sender delivers records to the collection endpoint. Errors it returns
// are swallowed by the Observer; analytics never surfaces failures to
// the primary experience.
type Sender interface {
	Bootstrap(ctx context.Context) error
	Send(ctx context.Context, rec Record) error
}

type Config struct {
	// HoverThreshold separates deliberate lingering from incidental
	// cursor passage. Call sites historically used 100ms on grids and
	// 500ms on detail views; pick per Observer.
	HoverThreshold time.Duration
	PageURL        string
	SendTimeout    time.Duration
}

const (
	defaultHoverThreshold = 100 * time.Millisecond
	defaultSendTimeout    = 10 * time.Second
)

// Observer owns all per-page tracking state: pending hover starts and
// the set of products already reported as viewed. State is per instance,
// so independent observers never cross-contaminate.
type Observer struct {
	mu           sync.Mutex
	cfg          Config
	sender       Sender
	logger       *zap.Logger
	now          func() time.Time
	sessionID    string
	hoverStart   map[int64]time.Time
	viewed       map[int64]struct{}
	bootstrapped bool
	wg           sync.WaitGroup
}

type Option func(*Observer)

// WithClock overrides the observer clock, for tests.
func WithClock(now func() time.Time) Option {
	return func(o *Observer) { o.now = now }
}

func NewObserver(cfg Config, sender Sender, logger *zap.Logger, opts ...Option) *Observer {
	if cfg.HoverThreshold <= 0 {
		cfg.HoverThreshold = defaultHoverThreshold
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = defaultSendTimeout
	}

	o := &Observer{
		cfg:        cfg,
		sender:     sender,
		logger:     logger,
		now:        time.Now,
		sessionID:  uuid.New().String(),
		hoverStart: make(map[int64]time.Time),
		viewed:     make(map[int64]struct{}),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Bootstrap registers the session once per page lifetime. Repeat calls
// are no-ops; a failed call is swallowed and retried on the next page.
func (o *Observer) Bootstrap(ctx context.Context) {
	o.mu.Lock()
	if o.bootstrapped {
		o.mu.Unlock()
		return
	}
	o.bootstrapped = true
	o.mu.Unlock()

	if err := o.sender.Bootstrap(ctx); err != nil {
		o.logger.Debug("Session bootstrap dropped", zap.Error(err))
	}
}

// PointerEnter arms a hover measurement for the product. A new enter
// while one is pending overwrites the stale start; abandoned starts are
// not an error.
func (o *Observer) PointerEnter(productID int64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.hoverStart[productID] = o.now()
}

// PointerLeave closes a pending hover measurement and emits a hover
// record when the dwell time clears the significance threshold. A leave
// without a matching enter is tolerated silently.
func (o *Observer) PointerLeave(productID int64) {
	o.mu.Lock()
	start, ok := o.hoverStart[productID]
	if ok {
		delete(o.hoverStart, productID)
	}
	now := o.now()
	o.mu.Unlock()

	if !ok {
		return
	}

	duration := now.Sub(start)
	if duration < o.cfg.HoverThreshold {
		return
	}

	o.emit(Record{
		ProductID:  productID,
		Kind:       KindHover,
		DurationMs: duration.Milliseconds(),
		OccurredAt: now,
	})
}

// Visible reports the product crossing the visibility threshold. Only
// the first crossing per page lifetime emits a view record.
func (o *Observer) Visible(productID int64) {
	o.mu.Lock()
	if _, seen := o.viewed[productID]; seen {
		o.mu.Unlock()
		return
	}
	o.viewed[productID] = struct{}{}
	now := o.now()
	o.mu.Unlock()

	o.emit(Record{
		ProductID:  productID,
		Kind:       KindView,
		OccurredAt: now,
	})
}

// Click emits a click record unconditionally, every click.
func (o *Observer) Click(productID int64) {
	o.emit(Record{
		ProductID:  productID,
		Kind:       KindClick,
		OccurredAt: o.now(),
	})
}

// ResetPage starts a new page lifetime: viewed products may be reported
// again, pending hovers are abandoned, and the next Bootstrap call goes
// through.
func (o *Observer) ResetPage(pageURL string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.cfg.PageURL = pageURL
	o.hoverStart = make(map[int64]time.Time)
	o.viewed = make(map[int64]struct{})
	o.bootstrapped = false
}

// Flush waits for in-flight deliveries. Call on teardown and in tests;
// the primary experience never needs to.
func (o *Observer) Flush() {
	o.wg.Wait()
}

// emit delivers the record fire-and-forget. A lost record is simply
// lost; there is no retry queue.
func (o *Observer) emit(rec Record) {
	o.mu.Lock()
	rec.PageURL = o.cfg.PageURL
	rec.SessionID = o.sessionID
	o.mu.Unlock()

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), o.cfg.SendTimeout)
		defer cancel()

		if err := o.sender.Send(ctx, rec); err != nil {
			o.logger.Debug("Interaction record dropped",
				zap.Error(err),
				zap.Int64("product_id", rec.ProductID),
				zap.String("kind", rec.Kind),
			)
		}
	}()
}
