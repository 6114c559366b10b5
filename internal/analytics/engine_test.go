// internal/analytics/engine_test.go
package analytics

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nutrition-tracker/internal/models"
	"nutrition-tracker/internal/storage"
)

func setupTestEngine(t *testing.T) (*Engine, *storage.Ledger) {
	t.Helper()
	ledger, err := storage.NewLedger(filepath.Join(t.TempDir(), "analytics.db"))
	require.NoError(t, err)
	t.Cleanup(func() { ledger.Close() })
	return NewEngine(ledger), ledger
}

func fixedDay(date string) func() time.Time {
	day, err := time.Parse("2006-01-02", date)
	if err != nil {
		panic(err)
	}
	return func() time.Time { return day.Add(12 * time.Hour) }
}

func insertOn(t *testing.T, ledger *storage.Ledger, date string, calories, protein float64) {
	t.Helper()
	_, err := ledger.InsertEntry(context.Background(), &models.Entry{
		UserID:      "u1",
		Date:        date,
		Category:    models.Lunch,
		Description: "meal on " + date,
		Calories:    calories,
		Protein:     protein,
	})
	require.NoError(t, err)
}

func defaultGoals() *models.UserGoals {
	return &models.UserGoals{
		GoalType:      models.Maintenance,
		DailyCalories: 2000,
		DailyProtein:  150,
	}
}

func TestProgress_EarlyInTheDay(t *testing.T) {
	p := Progress(models.Totals{Calories: 300, Protein: 20}, defaultGoals())

	assert.Equal(t, 300.0, p.Calories.Consumed)
	assert.Equal(t, 1700.0, p.Calories.Remaining)
	assert.Equal(t, 15.0, p.Calories.Percent)
	assert.Equal(t, models.BandInProgress, p.Band)
	assert.Equal(t, models.Maintenance, p.GoalType)
}

func TestProgress_Banding(t *testing.T) {
	tests := []struct {
		name     string
		calories float64
		band     models.ProgressBand
	}{
		{"over goal", 2100, models.BandExceeded},
		{"just above eighty", 1700, models.BandAlmostDone},
		{"exactly goal", 2000, models.BandAlmostDone},
		{"under eighty", 1600, models.BandInProgress},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Progress(models.Totals{Calories: tt.calories}, defaultGoals())
			assert.Equal(t, tt.band, p.Band)
		})
	}
}

func TestProgress_ZeroGoal(t *testing.T) {
	goals := defaultGoals()
	goals.DailyCalories = 0

	p := Progress(models.Totals{Calories: 500}, goals)
	assert.Equal(t, 0.0, p.Calories.Percent)
	assert.Equal(t, 0.0, p.Calories.Remaining)
	assert.Equal(t, models.BandInProgress, p.Band)
}

func TestProgress_RemainingNeverNegative(t *testing.T) {
	p := Progress(models.Totals{Calories: 2500}, defaultGoals())
	assert.Equal(t, 0.0, p.Calories.Remaining)
	assert.Equal(t, 125.0, p.Calories.Percent)
}

func TestBatchTotals(t *testing.T) {
	totals, count, err := BatchTotals(`[
		{"calories": 300, "protein_g": 20, "fat_g": 10, "carbs_g": 30},
		{"calories": 450.5, "protein_g": 35.2}
	]`)
	require.NoError(t, err)

	assert.Equal(t, 2, count)
	assert.Equal(t, 750.5, totals.Calories)
	assert.Equal(t, 55.2, totals.Protein)
	assert.Equal(t, 10.0, totals.Fat)
}

func TestBatchTotals_Empty(t *testing.T) {
	totals, count, err := BatchTotals(`[]`)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
	assert.Equal(t, models.Totals{}, *totals)
}

func TestBatchTotals_MalformedJSON(t *testing.T) {
	_, _, err := BatchTotals(`{"calories": 300`)
	var verr *ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestDailyTotals_DefaultsToToday(t *testing.T) {
	engine, ledger := setupTestEngine(t)
	engine.now = fixedDay("2026-03-10")
	insertOn(t, ledger, "2026-03-10", 500, 30)
	insertOn(t, ledger, "2026-03-09", 999, 99)

	day, err := engine.DailyTotals(context.Background(), "u1", "")
	require.NoError(t, err)
	assert.Equal(t, 1, day.Count)
	assert.Equal(t, 500.0, day.Totals.Calories)
}

func TestWeekBreakdown_TrailingSevenDays(t *testing.T) {
	engine, ledger := setupTestEngine(t)
	engine.now = fixedDay("2026-03-10")

	insertOn(t, ledger, "2026-03-10", 2000, 100)
	insertOn(t, ledger, "2026-03-08", 1000, 50)
	insertOn(t, ledger, "2026-03-04", 1200, 60)
	// Eight days back, outside the window.
	insertOn(t, ledger, "2026-03-02", 5000, 500)

	report, err := engine.WeekBreakdown(context.Background(), "u1")
	require.NoError(t, err)

	assert.Equal(t, 3, report.DaysWithData)
	assert.Equal(t, 1400.0, report.AvgCalories)
	assert.Equal(t, 70.0, report.AvgProtein)
}

func TestCorrelate_DeficitLosingWeight(t *testing.T) {
	engine, ledger := setupTestEngine(t)
	engine.now = fixedDay("2026-03-14")
	ctx := context.Background()

	// 1500 kcal per day against the default 2000 goal: 500 deficit.
	for _, date := range []string{"2026-03-08", "2026-03-09", "2026-03-10", "2026-03-11"} {
		insertOn(t, ledger, date, 1500, 80)
	}

	ledger.SetClock(fixedDay("2026-03-08"))
	_, err := ledger.UpsertWeight(ctx, "u1", 80.0, "")
	require.NoError(t, err)
	ledger.SetClock(fixedDay("2026-03-12"))
	_, err = ledger.UpsertWeight(ctx, "u1", 79.8, "")
	require.NoError(t, err)

	report, err := engine.Correlate(ctx, "u1", 14)
	require.NoError(t, err)

	assert.Equal(t, 2000, report.DailyGoal)
	assert.Equal(t, 2, report.Summary.WeightEntries)
	assert.Equal(t, 4, report.Summary.NutritionEntries)

	require.NotNil(t, report.Summary.WeightChangeKg)
	assert.InDelta(t, -0.2, *report.Summary.WeightChangeKg, 0.001)
	require.NotNil(t, report.Summary.AvgDailyDeficit)
	assert.Equal(t, 500.0, *report.Summary.AvgDailyDeficit)

	// 500 kcal deficit over 4 logged days: about a quarter kilo expected.
	require.NotNil(t, report.Summary.ExpectedChangeKg)
	assert.InDelta(t, -0.26, *report.Summary.ExpectedChangeKg, 0.001)

	// Observed -0.2 vs expected -0.26: within the on-track threshold.
	assert.Contains(t, report.Insight, "in line with your calorie deficit")
}

func TestCorrelate_MergesDaySeries(t *testing.T) {
	engine, ledger := setupTestEngine(t)
	engine.now = fixedDay("2026-03-14")
	ctx := context.Background()

	insertOn(t, ledger, "2026-03-10", 1800, 90)
	ledger.SetClock(fixedDay("2026-03-11"))
	_, err := ledger.UpsertWeight(ctx, "u1", 75.0, "")
	require.NoError(t, err)

	report, err := engine.Correlate(ctx, "u1", 14)
	require.NoError(t, err)

	require.Len(t, report.Days, 2)
	nutritionDay := report.Days[0]
	assert.Equal(t, "2026-03-10", nutritionDay.Date)
	assert.Nil(t, nutritionDay.WeightKg)
	require.NotNil(t, nutritionDay.Calories)
	assert.Equal(t, 1800.0, *nutritionDay.Calories)
	require.NotNil(t, nutritionDay.DeficitSurplus)
	assert.Equal(t, 200.0, *nutritionDay.DeficitSurplus)

	weightDay := report.Days[1]
	assert.Equal(t, "2026-03-11", weightDay.Date)
	require.NotNil(t, weightDay.WeightKg)
	assert.Nil(t, weightDay.Calories)
}

func TestCorrelate_InsufficientData(t *testing.T) {
	engine, _ := setupTestEngine(t)
	engine.now = fixedDay("2026-03-14")

	report, err := engine.Correlate(context.Background(), "u1", 14)
	require.NoError(t, err)

	assert.Equal(t, 0, report.Summary.WeightEntries)
	assert.Nil(t, report.Summary.WeightChangeKg)
	assert.Contains(t, report.Insight, "Not enough data")
}
