// internal/burst/aggregator.go
package burst

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"nutrition-tracker/internal/models"
)

// DefaultWindow is the quiet period after the first part of a burst before it
// drains. It is measured from the first part, never reset by later parts, so
// worst-case latency stays bounded for large bursts.
const DefaultWindow = 1500 * time.Millisecond

// DefaultPrompt is used when no part of a burst carried a caption.
const DefaultPrompt = "What food is this? Analyze it and estimate the nutrition."

// Part is one raw media payload within a burst.
type Part struct {
	Origin models.Origin `json:"origin"`
	MIME   string        `json:"mime,omitempty"`
	Data   []byte        `json:"data"`
}

// Burst is a drained buffer: every part collected during the window plus the
// caption (first-seen-wins) and the owning user.
type Burst struct {
	ID        string
	UserID    string
	Caption   string
	Parts     []Part
	StartedAt time.Time
}

// Handler receives a drained burst as a single combined submission.
type Handler func(ctx context.Context, b *Burst)

// Aggregator buffers parts per burst id and drains each buffer exactly once
// when its debounce timer fires. Buffers are transient: a process restart
// during the collecting window loses the burst.
type Aggregator struct {
	mu      sync.Mutex
	pending map[string]*Burst

	window  time.Duration
	handler Handler
	logger  *slog.Logger
}

// NewAggregator creates an aggregator draining into handler. A non-positive
// window falls back to DefaultWindow.
func NewAggregator(window time.Duration, handler Handler) *Aggregator {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Aggregator{
		pending: make(map[string]*Burst),
		window:  window,
		handler: handler,
		logger:  slog.Default().With("component", "burst"),
	}
}

// Add buffers one part. The first part for a burst id creates the buffer and
// schedules the fire-once drain timer; later parts append. A caption is
// captured from whichever part carries one first. An empty burstID gets a
// generated one (a single-part burst). Returns the effective burst id.
func (a *Aggregator) Add(userID, burstID, caption string, part Part) string {
	if burstID == "" {
		burstID = uuid.NewString()
	}

	a.mu.Lock()
	b, ok := a.pending[burstID]
	if !ok {
		b = &Burst{
			ID:        burstID,
			UserID:    userID,
			Caption:   caption,
			StartedAt: time.Now(),
		}
		a.pending[burstID] = b
		// Fixed window from the first part; deliberately not reset on
		// later parts, and not cancelable.
		time.AfterFunc(a.window, func() { a.drain(burstID) })
	} else if b.Caption == "" && caption != "" {
		b.Caption = caption
	}
	b.Parts = append(b.Parts, part)
	count := len(b.Parts)
	a.mu.Unlock()

	a.logger.Debug("part buffered", "burst", burstID, "user", userID, "parts", count)
	return burstID
}

// Pending reports how many bursts are currently collecting.
func (a *Aggregator) Pending() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.pending)
}

// drain atomically removes the buffer and hands it downstream. The
// take-and-clear under the lock guarantees at most one drain per burst id;
// once removed, a new burst with the same id starts a fresh cycle.
func (a *Aggregator) drain(burstID string) {
	a.mu.Lock()
	b, ok := a.pending[burstID]
	delete(a.pending, burstID)
	a.mu.Unlock()

	if !ok {
		return
	}
	if b.Caption == "" {
		b.Caption = DefaultPrompt
	}

	a.logger.Info("burst drained", "burst", burstID, "user", b.UserID, "parts", len(b.Parts))
	a.handler(context.Background(), b)
}
