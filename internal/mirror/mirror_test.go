// internal/mirror/mirror_test.go
package mirror

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nutrition-tracker/internal/models"
	"nutrition-tracker/internal/storage"
)

func setupTestLedger(t *testing.T) *storage.Ledger {
	t.Helper()
	ledger, err := storage.NewLedger(filepath.Join(t.TempDir(), "mirror.db"))
	require.NoError(t, err)
	t.Cleanup(func() { ledger.Close() })
	return ledger
}

func seedLedger(t *testing.T, ledger *storage.Ledger) {
	t.Helper()
	ctx := context.Background()

	for _, desc := range []string{"oatmeal", "chicken salad"} {
		_, err := ledger.InsertEntry(ctx, &models.Entry{
			UserID:      "u1",
			Category:    models.Lunch,
			Description: desc,
			Calories:    400,
			Protein:     20,
		})
		require.NoError(t, err)
	}

	_, _, err := ledger.Goals(ctx, "u1")
	require.NoError(t, err)

	_, err = ledger.UpsertWeight(ctx, "u1", 72.5, "")
	require.NoError(t, err)

	_, _, err = ledger.StoreMemory(ctx, "u1", models.MemoryAllergy, "allergic to peanuts")
	require.NoError(t, err)
}

func TestSyncer_FirstRunMirrorsEverything(t *testing.T) {
	ledger := setupTestLedger(t)
	seedLedger(t, ledger)
	store := NewMemoryStore()

	res, err := NewSyncer(ledger, store).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, models.SyncCounts{Entries: 2, Users: 1, Weights: 1, Memories: 1}, res.Counts)
	assert.False(t, res.UpToDate)
	assert.Len(t, store.Entries, 2)
	assert.Len(t, store.Users, 1)
}

func TestSyncer_SecondRunIsIdempotent(t *testing.T) {
	ledger := setupTestLedger(t)
	seedLedger(t, ledger)
	store := NewMemoryStore()
	syncer := NewSyncer(ledger, store)
	ctx := context.Background()

	_, err := syncer.Run(ctx)
	require.NoError(t, err)

	res, err := syncer.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Counts.Total())
	assert.True(t, res.UpToDate)
	assert.Len(t, store.Entries, 2, "no duplicated rows")
}

func TestSyncer_OnlyNewRowsOnLaterRuns(t *testing.T) {
	ledger := setupTestLedger(t)
	seedLedger(t, ledger)
	store := NewMemoryStore()
	syncer := NewSyncer(ledger, store)
	ctx := context.Background()

	_, err := syncer.Run(ctx)
	require.NoError(t, err)

	_, err = ledger.InsertEntry(ctx, &models.Entry{
		UserID:      "u1",
		Category:    models.Dinner,
		Description: "steak",
		Calories:    700,
	})
	require.NoError(t, err)

	res, err := syncer.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Counts.Entries)
	assert.Equal(t, 0, res.Counts.Users)
	assert.Len(t, store.Entries, 3)
}

func TestSyncer_PartialFailureIsolation(t *testing.T) {
	ledger := setupTestLedger(t)
	seedLedger(t, ledger)
	store := NewMemoryStore()
	store.FailTables["weights"] = errors.New("quota exceeded")

	_, err := NewSyncer(ledger, store).Run(context.Background())
	var pf *PartialFailure
	require.ErrorAs(t, err, &pf)

	assert.Contains(t, pf.Failed, "weights")
	assert.Equal(t, 2, pf.Counts.Entries, "healthy tables still mirrored")
	assert.Equal(t, 1, pf.Counts.Memories)
	assert.Len(t, store.Entries, 2)
	assert.Empty(t, store.Weights)

	// Once the table recovers, the next run catches it up.
	delete(store.FailTables, "weights")
	res, err := NewSyncer(ledger, store).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Counts.Weights)
	assert.Equal(t, 0, res.Counts.Entries)
}

func TestWorkbook_RoundTrip(t *testing.T) {
	ledger := setupTestLedger(t)
	seedLedger(t, ledger)

	path := filepath.Join(t.TempDir(), "mirror.xlsx")
	wb, err := NewWorkbook(path)
	require.NoError(t, err)
	ctx := context.Background()

	res, err := NewSyncer(ledger, wb).Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, res.Counts.Total())

	// Reopen from disk: the key sets must survive the save.
	wb2, err := NewWorkbook(path)
	require.NoError(t, err)

	entryIDs, err := wb2.EntryIDs(ctx)
	require.NoError(t, err)
	assert.Len(t, entryIDs, 2)

	userIDs, err := wb2.UserIDs(ctx)
	require.NoError(t, err)
	assert.True(t, userIDs["u1"])

	res, err = NewSyncer(ledger, wb2).Run(ctx)
	require.NoError(t, err)
	assert.True(t, res.UpToDate)
}

func TestWorkbook_CreatesFileWithSheets(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fresh.xlsx")
	wb, err := NewWorkbook(path)
	require.NoError(t, err)

	ids, err := wb.EntryIDs(context.Background())
	require.NoError(t, err)
	assert.Empty(t, ids)

	weights, err := wb.WeightIDs(context.Background())
	require.NoError(t, err)
	assert.Empty(t, weights)
}
