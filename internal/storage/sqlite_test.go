// internal/storage/sqlite_test.go
package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nutrition-tracker/internal/models"
)

// setupTestLedger creates a temporary SQLite ledger for testing.
func setupTestLedger(t *testing.T) *Ledger {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")

	ledger, err := NewLedger(dbPath)
	require.NoError(t, err)

	t.Cleanup(func() {
		ledger.Close()
	})

	return ledger
}

func insertTestEntry(t *testing.T, l *Ledger, userID, date string, cat models.Category, desc string, cal, prot, fat, carbs float64) int64 {
	t.Helper()
	id, err := l.InsertEntry(context.Background(), &models.Entry{
		UserID:      userID,
		Date:        date,
		Category:    cat,
		Description: desc,
		Calories:    cal,
		Protein:     prot,
		Fat:         fat,
		Carbs:       carbs,
	})
	require.NoError(t, err)
	return id
}

func TestLedger_InsertAndReadBack(t *testing.T) {
	ledger := setupTestLedger(t)
	ctx := context.Background()

	id := insertTestEntry(t, ledger, "u1", "2025-03-01", models.Lunch, "chicken salad", 300, 20, 10, 30)
	assert.Greater(t, id, int64(0))

	day, err := ledger.EntriesByDate(ctx, "u1", "2025-03-01")
	require.NoError(t, err)
	require.Len(t, day.Entries, 1)
	assert.Equal(t, 1, day.Count)
	assert.Equal(t, "chicken salad", day.Entries[0].Description)
	assert.Equal(t, models.Totals{Calories: 300, Protein: 20, Fat: 10, Carbs: 30}, day.Totals)
}

func TestLedger_TotalsMatchEntrySums(t *testing.T) {
	ledger := setupTestLedger(t)
	ctx := context.Background()

	insertTestEntry(t, ledger, "u1", "2025-03-01", models.Breakfast, "oatmeal", 210.25, 7.15, 4.05, 38.5)
	insertTestEntry(t, ledger, "u1", "2025-03-01", models.Lunch, "soup", 150.12, 8.22, 5.01, 12.4)

	day, err := ledger.EntriesByDate(ctx, "u1", "2025-03-01")
	require.NoError(t, err)

	var want models.Totals
	for _, e := range day.Entries {
		want.Add(e)
	}
	assert.Equal(t, want.Rounded(), day.Totals)
}

func TestLedger_EntriesByDate_FiltersUserAndDate(t *testing.T) {
	ledger := setupTestLedger(t)
	ctx := context.Background()

	insertTestEntry(t, ledger, "u1", "2025-03-01", models.Lunch, "pasta", 500, 15, 12, 80)
	insertTestEntry(t, ledger, "u2", "2025-03-01", models.Lunch, "other user", 400, 10, 9, 60)
	insertTestEntry(t, ledger, "u1", "2025-03-02", models.Lunch, "other day", 450, 12, 11, 70)

	day, err := ledger.EntriesByDate(ctx, "u1", "2025-03-01")
	require.NoError(t, err)
	require.Len(t, day.Entries, 1)
	assert.Equal(t, "pasta", day.Entries[0].Description)
}

func TestLedger_EntriesRange_AveragesSkipEmptyDays(t *testing.T) {
	ledger := setupTestLedger(t)
	ctx := context.Background()

	// Two days with data inside a seven-day window; empty days must not
	// drag the averages down.
	insertTestEntry(t, ledger, "u1", "2025-03-01", models.Lunch, "a", 1000, 50, 30, 100)
	insertTestEntry(t, ledger, "u1", "2025-03-03", models.Dinner, "b", 2000, 100, 60, 200)

	report, err := ledger.EntriesRange(ctx, "u1", "2025-03-01", "2025-03-07")
	require.NoError(t, err)
	assert.Equal(t, 2, report.DaysWithData)
	require.Len(t, report.Days, 2)
	assert.Equal(t, 1500.0, report.AvgCalories)
	assert.Equal(t, 75.0, report.AvgProtein)
}

func TestLedger_InsertEntry_RejectsNegativeMacros(t *testing.T) {
	ledger := setupTestLedger(t)

	_, err := ledger.InsertEntry(context.Background(), &models.Entry{
		UserID:      "u1",
		Description: "bad",
		Calories:    -10,
	})
	assert.ErrorIs(t, err, ErrNegativeMacros)
}

func TestLedger_EditEntry_PartialUpdatePreservesID(t *testing.T) {
	ledger := setupTestLedger(t)
	ctx := context.Background()

	id := insertTestEntry(t, ledger, "u1", "2025-03-01", models.Lunch, "rice bowl", 600, 20, 15, 90)

	cal := 550.0
	updated, err := ledger.EditEntry(ctx, "u1", id, &models.EntryPatch{Calories: &cal})
	require.NoError(t, err)
	assert.Equal(t, id, updated.ID)
	assert.Equal(t, 550.0, updated.Calories)
	assert.Equal(t, "rice bowl", updated.Description, "unspecified fields stay unchanged")
	assert.Equal(t, 20.0, updated.Protein)
}

func TestLedger_EditEntry_LatestWhenNoID(t *testing.T) {
	ledger := setupTestLedger(t)
	ctx := context.Background()

	insertTestEntry(t, ledger, "u1", "2025-03-01", models.Lunch, "first", 100, 5, 2, 10)
	second := insertTestEntry(t, ledger, "u1", "2025-03-01", models.Snack, "second", 200, 8, 4, 20)

	desc := "second (corrected)"
	updated, err := ledger.EditEntry(ctx, "u1", 0, &models.EntryPatch{Description: &desc})
	require.NoError(t, err)
	assert.Equal(t, second, updated.ID)
	assert.Equal(t, "second (corrected)", updated.Description)
}

func TestLedger_EditEntry_NotFound(t *testing.T) {
	ledger := setupTestLedger(t)

	desc := "x"
	_, err := ledger.EditEntry(context.Background(), "u1", 999, &models.EntryPatch{Description: &desc})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLedger_EditEntry_EmptyPatch(t *testing.T) {
	ledger := setupTestLedger(t)

	_, err := ledger.EditEntry(context.Background(), "u1", 1, &models.EntryPatch{})
	assert.ErrorIs(t, err, ErrEmptyPatch)
}

func TestLedger_DeleteEntry_LatestAndByID(t *testing.T) {
	ledger := setupTestLedger(t)
	ctx := context.Background()

	first := insertTestEntry(t, ledger, "u1", "2025-03-01", models.Lunch, "keep", 100, 5, 2, 10)
	insertTestEntry(t, ledger, "u1", "2025-03-01", models.Snack, "undo me", 200, 8, 4, 20)

	deleted, err := ledger.DeleteEntry(ctx, "u1", 0)
	require.NoError(t, err)
	assert.Equal(t, "undo me", deleted.Description)

	deleted, err = ledger.DeleteEntry(ctx, "u1", first)
	require.NoError(t, err)
	assert.Equal(t, "keep", deleted.Description)

	_, err = ledger.DeleteEntry(ctx, "u1", 0)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLedger_Goals_LazyDefaults(t *testing.T) {
	ledger := setupTestLedger(t)
	ctx := context.Background()

	goals, created, err := ledger.Goals(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, models.Maintenance, goals.GoalType)
	assert.Equal(t, 2000, goals.DailyCalories)
	assert.Equal(t, 150, goals.DailyProtein)
	assert.Equal(t, 70, goals.DailyFat)
	assert.Equal(t, 200, goals.DailyCarbs)

	// Second access returns the same row without re-creating it.
	again, created, err := ledger.Goals(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, goals.DailyCalories, again.DailyCalories)
}

func TestLedger_SetGoals_PartialUpdate(t *testing.T) {
	ledger := setupTestLedger(t)
	ctx := context.Background()

	_, _, err := ledger.Goals(ctx, "u1")
	require.NoError(t, err)

	calories := 1800
	goalType := models.WeightLoss
	updated, err := ledger.SetGoals(ctx, "u1", &models.GoalsPatch{
		DailyCalories: &calories,
		GoalType:      &goalType,
	})
	require.NoError(t, err)
	assert.Equal(t, 1800, updated.DailyCalories)
	assert.Equal(t, models.WeightLoss, updated.GoalType)
	assert.Equal(t, 150, updated.DailyProtein, "untouched fields keep their values")
}

func TestLedger_SetGoals_CreatesWithDefaultsForMissingFields(t *testing.T) {
	ledger := setupTestLedger(t)

	protein := 180
	goals, err := ledger.SetGoals(context.Background(), "new-user", &models.GoalsPatch{DailyProtein: &protein})
	require.NoError(t, err)
	assert.Equal(t, 180, goals.DailyProtein)
	assert.Equal(t, 2000, goals.DailyCalories)
	assert.Equal(t, models.Maintenance, goals.GoalType)
}

func TestLedger_UpsertWeight_IdempotentPerDay(t *testing.T) {
	ledger := setupTestLedger(t)
	ctx := context.Background()

	first, err := ledger.UpsertWeight(ctx, "u1", 70.0, "")
	require.NoError(t, err)
	assert.Equal(t, "created", first.Status)

	second, err := ledger.UpsertWeight(ctx, "u1", 70.5, "after lunch")
	require.NoError(t, err)
	assert.Equal(t, "updated", second.Status)
	require.NotNil(t, second.PreviousKg)
	assert.Equal(t, 70.0, *second.PreviousKg)
	require.NotNil(t, second.DeltaKg)
	assert.Equal(t, 0.5, *second.DeltaKg)

	// Exactly one stored row for the day.
	report, err := ledger.WeightHistory(ctx, "u1", 7)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Count)
	assert.Equal(t, 70.5, report.Entries[0].WeightKg)
}

func TestLedger_WeightHistory_Stats(t *testing.T) {
	ledger := setupTestLedger(t)
	ctx := context.Background()

	_, err := ledger.UpsertWeight(ctx, "u1", 71.2, "")
	require.NoError(t, err)

	report, err := ledger.WeightHistory(ctx, "u1", 30)
	require.NoError(t, err)
	require.NotNil(t, report.Stats)
	assert.Equal(t, 71.2, report.Stats.CurrentKg)
	assert.Equal(t, 71.2, report.Stats.StartKg)
	assert.Equal(t, 0.0, report.Stats.TotalChangeKg)
}

func TestLedger_WeightHistory_Empty(t *testing.T) {
	ledger := setupTestLedger(t)

	report, err := ledger.WeightHistory(context.Background(), "u1", 30)
	require.NoError(t, err)
	assert.Equal(t, 0, report.Count)
	assert.Nil(t, report.Stats)
}

func TestLedger_DeleteWeight(t *testing.T) {
	ledger := setupTestLedger(t)
	ctx := context.Background()

	_, err := ledger.UpsertWeight(ctx, "u1", 70.0, "")
	require.NoError(t, err)

	deleted, err := ledger.DeleteWeight(ctx, "u1", "")
	require.NoError(t, err)
	assert.Equal(t, 70.0, deleted.WeightKg)

	_, err = ledger.DeleteWeight(ctx, "u1", "")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLedger_StoreMemory_DeduplicatesContent(t *testing.T) {
	ledger := setupTestLedger(t)
	ctx := context.Background()

	fact, known, err := ledger.StoreMemory(ctx, "u1", models.MemoryAllergy, "allergic to peanuts")
	require.NoError(t, err)
	assert.False(t, known)
	assert.Greater(t, fact.ID, int64(0))

	again, known, err := ledger.StoreMemory(ctx, "u1", models.MemoryAllergy, "allergic to peanuts")
	require.NoError(t, err)
	assert.True(t, known)
	assert.Equal(t, fact.ID, again.ID)

	facts, err := ledger.Memories(ctx, "u1", "")
	require.NoError(t, err)
	assert.Len(t, facts, 1)
}

func TestLedger_Memories_FilterByCategory(t *testing.T) {
	ledger := setupTestLedger(t)
	ctx := context.Background()

	_, _, err := ledger.StoreMemory(ctx, "u1", models.MemoryAllergy, "lactose intolerant")
	require.NoError(t, err)
	_, _, err = ledger.StoreMemory(ctx, "u1", models.MemoryPreference, "prefers spicy food")
	require.NoError(t, err)

	allergies, err := ledger.Memories(ctx, "u1", models.MemoryAllergy)
	require.NoError(t, err)
	require.Len(t, allergies, 1)
	assert.Equal(t, "lactose intolerant", allergies[0].Content)
}

func TestLedger_ForgetMemory_BySubstring(t *testing.T) {
	ledger := setupTestLedger(t)
	ctx := context.Background()

	_, _, err := ledger.StoreMemory(ctx, "u1", models.MemoryPreference, "vegetarian")
	require.NoError(t, err)

	deleted, err := ledger.ForgetMemory(ctx, "u1", "vegetar")
	require.NoError(t, err)
	assert.Equal(t, []string{"vegetarian"}, deleted)

	_, err = ledger.ForgetMemory(ctx, "u1", "vegetar")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLedger_LastEntry(t *testing.T) {
	ledger := setupTestLedger(t)
	ctx := context.Background()

	_, err := ledger.LastEntry(ctx, "u1")
	assert.ErrorIs(t, err, ErrNotFound)

	insertTestEntry(t, ledger, "u1", "2025-03-01", models.Lunch, "first", 100, 5, 2, 10)
	second := insertTestEntry(t, ledger, "u1", "2025-03-01", models.Snack, "second", 200, 8, 4, 20)

	last, err := ledger.LastEntry(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, second, last.ID)
}
