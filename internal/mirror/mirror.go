// internal/mirror/mirror.go

// Package mirror maintains an append-only copy of the ledger in an external
// store. Sync is one-directional: rows flow from the ledger to the mirror,
// never back, and mirrored rows are never updated or deleted.
package mirror

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"nutrition-tracker/internal/models"
	"nutrition-tracker/internal/storage"
)

// Store is the mirror side of a sync: per-table key listing and append.
type Store interface {
	EntryIDs(ctx context.Context) (map[int64]bool, error)
	AppendEntries(ctx context.Context, entries []models.Entry) error

	UserIDs(ctx context.Context) (map[string]bool, error)
	AppendUsers(ctx context.Context, users []models.UserGoals) error

	WeightIDs(ctx context.Context) (map[int64]bool, error)
	AppendWeights(ctx context.Context, samples []models.WeightSample) error

	MemoryIDs(ctx context.Context) (map[int64]bool, error)
	AppendMemories(ctx context.Context, facts []models.MemoryFact) error
}

// PartialFailure reports a sync run where some tables failed while others
// were mirrored. Counts reflects only the rows that made it across.
type PartialFailure struct {
	Failed map[string]error
	Counts models.SyncCounts
}

func (e *PartialFailure) Error() string {
	tables := make([]string, 0, len(e.Failed))
	for t := range e.Failed {
		tables = append(tables, t)
	}
	return fmt.Sprintf("mirror sync failed for tables: %s", strings.Join(tables, ", "))
}

// ErrSyncInProgress is returned when a sync run is requested while another is
// still running.
var ErrSyncInProgress = errors.New("mirror sync already in progress")

// Result is the outcome of one sync run.
type Result struct {
	Counts   models.SyncCounts `json:"synced"`
	UpToDate bool              `json:"up_to_date"`
}

// Syncer copies ledger rows missing from the mirror. Each table is handled
// independently so one failing table does not block the rest.
type Syncer struct {
	ledger *storage.Ledger
	store  Store
	logger *slog.Logger

	mu      sync.Mutex
	running bool
}

// NewSyncer creates a syncer between the ledger and a mirror store.
func NewSyncer(ledger *storage.Ledger, store Store) *Syncer {
	return &Syncer{
		ledger: ledger,
		store:  store,
		logger: slog.Default().With("component", "mirror"),
	}
}

// Run performs one sync pass: for each table, read the mirror's key set,
// diff it against the ledger, and append the missing rows. At most one run
// executes at a time.
func (s *Syncer) Run(ctx context.Context) (*Result, error) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil, ErrSyncInProgress
	}
	s.running = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	var counts models.SyncCounts
	failed := make(map[string]error)

	if n, err := s.syncEntries(ctx); err != nil {
		failed["entries"] = err
		s.logger.Error("entries sync failed", "error", err)
	} else {
		counts.Entries = n
	}

	if n, err := s.syncUsers(ctx); err != nil {
		failed["users"] = err
		s.logger.Error("users sync failed", "error", err)
	} else {
		counts.Users = n
	}

	if n, err := s.syncWeights(ctx); err != nil {
		failed["weights"] = err
		s.logger.Error("weights sync failed", "error", err)
	} else {
		counts.Weights = n
	}

	if n, err := s.syncMemories(ctx); err != nil {
		failed["memories"] = err
		s.logger.Error("memories sync failed", "error", err)
	} else {
		counts.Memories = n
	}

	if len(failed) > 0 {
		return nil, &PartialFailure{Failed: failed, Counts: counts}
	}

	s.logger.Info("mirror sync complete",
		"entries", counts.Entries, "users", counts.Users,
		"weights", counts.Weights, "memories", counts.Memories)
	return &Result{Counts: counts, UpToDate: counts.Total() == 0}, nil
}

func (s *Syncer) syncEntries(ctx context.Context) (int, error) {
	known, err := s.store.EntryIDs(ctx)
	if err != nil {
		return 0, fmt.Errorf("listing mirrored entries: %w", err)
	}
	all, err := s.ledger.AllEntries(ctx)
	if err != nil {
		return 0, err
	}

	var missing []models.Entry
	for _, e := range all {
		if !known[e.ID] {
			missing = append(missing, e)
		}
	}
	if len(missing) == 0 {
		return 0, nil
	}
	if err := s.store.AppendEntries(ctx, missing); err != nil {
		return 0, fmt.Errorf("appending entries: %w", err)
	}
	return len(missing), nil
}

func (s *Syncer) syncUsers(ctx context.Context) (int, error) {
	known, err := s.store.UserIDs(ctx)
	if err != nil {
		return 0, fmt.Errorf("listing mirrored users: %w", err)
	}
	all, err := s.ledger.AllUsers(ctx)
	if err != nil {
		return 0, err
	}

	var missing []models.UserGoals
	for _, u := range all {
		if !known[u.UserID] {
			missing = append(missing, u)
		}
	}
	if len(missing) == 0 {
		return 0, nil
	}
	if err := s.store.AppendUsers(ctx, missing); err != nil {
		return 0, fmt.Errorf("appending users: %w", err)
	}
	return len(missing), nil
}

func (s *Syncer) syncWeights(ctx context.Context) (int, error) {
	known, err := s.store.WeightIDs(ctx)
	if err != nil {
		return 0, fmt.Errorf("listing mirrored weights: %w", err)
	}
	all, err := s.ledger.AllWeights(ctx)
	if err != nil {
		return 0, err
	}

	var missing []models.WeightSample
	for _, w := range all {
		if !known[w.ID] {
			missing = append(missing, w)
		}
	}
	if len(missing) == 0 {
		return 0, nil
	}
	if err := s.store.AppendWeights(ctx, missing); err != nil {
		return 0, fmt.Errorf("appending weights: %w", err)
	}
	return len(missing), nil
}

func (s *Syncer) syncMemories(ctx context.Context) (int, error) {
	known, err := s.store.MemoryIDs(ctx)
	if err != nil {
		return 0, fmt.Errorf("listing mirrored memories: %w", err)
	}
	all, err := s.ledger.AllMemories(ctx)
	if err != nil {
		return 0, err
	}

	var missing []models.MemoryFact
	for _, m := range all {
		if !known[m.ID] {
			missing = append(missing, m)
		}
	}
	if len(missing) == 0 {
		return 0, nil
	}
	if err := s.store.AppendMemories(ctx, missing); err != nil {
		return 0, fmt.Errorf("appending memories: %w", err)
	}
	return len(missing), nil
}
