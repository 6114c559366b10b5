// internal/dedup/guard.go
package dedup

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"nutrition-tracker/internal/models"
	"nutrition-tracker/internal/storage"
)

// DefaultWindow is the trailing window within which an identical submission
// counts as a duplicate.
const DefaultWindow = 2 * time.Minute

// DuplicateError reports that a candidate entry matched a recent one. It is a
// policy outcome, not a storage failure; the write was refused and the
// existing entry is untouched.
type DuplicateError struct {
	ExistingID  int64
	Description string
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("duplicate of entry %d: %s", e.ExistingID, e.Description)
}

// RecentSource yields a user's most recent ledger entry.
type RecentSource interface {
	LastEntry(ctx context.Context, userID string) (*models.Entry, error)
}

// Guard checks candidate entries against the user's latest entry.
//
// Policy: a candidate is a duplicate when its description matches the latest
// entry exactly (case and surrounding whitespace ignored), the category is the
// same, and the latest entry was created within the window. Fuzzy or
// calorie-proximity matching is deliberately not used: repeat staples like
// "apple" would trip it far too often.
type Guard struct {
	recent RecentSource
	window time.Duration
	now    func() time.Time
}

// NewGuard creates a guard over the given source. A non-positive window falls
// back to DefaultWindow.
func NewGuard(recent RecentSource, window time.Duration) *Guard {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Guard{recent: recent, window: window, now: time.Now}
}

// Check returns a *DuplicateError when the candidate repeats the user's most
// recent entry within the window, nil when the write may proceed. The caller
// must hold the user's write lock so the check and the following insert are
// atomic against concurrent submissions.
func (g *Guard) Check(ctx context.Context, candidate *models.Entry) error {
	last, err := g.recent.LastEntry(ctx, candidate.UserID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("loading recent entry: %w", err)
	}

	if g.now().Sub(last.CreatedAt) > g.window {
		return nil
	}
	if last.Category != candidate.Category {
		return nil
	}
	if normalize(last.Description) != normalize(candidate.Description) {
		return nil
	}

	return &DuplicateError{ExistingID: last.ID, Description: last.Description}
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
