// internal/analytics/engine.go

// Package analytics computes read-side reports over the ledger: daily and
// weekly roll-ups, goal progress, and the weight-versus-intake correlation.
package analytics

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"time"

	"nutrition-tracker/internal/models"
	"nutrition-tracker/internal/storage"
)

// CaloriesPerKg is the rough energy content of one kilogram of body mass.
// The correlation report is a heuristic built on it, not a physiological
// model.
const CaloriesPerKg = 7700

// ValidationError reports malformed input to a pure computation.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

// Engine answers analytical queries against the ledger.
type Engine struct {
	ledger *storage.Ledger
	now    func() time.Time
}

func NewEngine(ledger *storage.Ledger) *Engine {
	return &Engine{ledger: ledger, now: time.Now}
}

// DailyTotals returns one day's entries and summed macros. An empty date
// means today.
func (e *Engine) DailyTotals(ctx context.Context, userID, date string) (*models.DayLog, error) {
	if date == "" {
		date = e.now().Format("2006-01-02")
	}
	return e.ledger.EntriesByDate(ctx, userID, date)
}

// WeekBreakdown returns per-day totals over the trailing seven days, today
// inclusive. Averages cover only days with at least one entry.
func (e *Engine) WeekBreakdown(ctx context.Context, userID string) (*models.RangeReport, error) {
	end := e.now()
	start := end.AddDate(0, 0, -6)
	return e.ledger.EntriesRange(ctx, userID,
		start.Format("2006-01-02"), end.Format("2006-01-02"))
}

// Progress computes consumed-versus-goal gauges for calories and protein.
// Remaining never goes negative; a zero goal reads as zero percent rather
// than dividing by zero.
func Progress(totals models.Totals, goals *models.UserGoals) *models.Progress {
	calories := gauge(totals.Calories, float64(goals.DailyCalories))
	protein := gauge(totals.Protein, float64(goals.DailyProtein))

	band := models.BandInProgress
	switch {
	case calories.Percent > 100:
		band = models.BandExceeded
	case calories.Percent > 80:
		band = models.BandAlmostDone
	}

	return &models.Progress{
		Calories: calories,
		Protein:  protein,
		Band:     band,
		GoalType: goals.GoalType,
	}
}

func gauge(consumed, goal float64) models.Gauge {
	g := models.Gauge{
		Consumed:  models.Round1(consumed),
		Goal:      goal,
		Remaining: models.Round1(math.Max(0, goal-consumed)),
	}
	if goal > 0 {
		g.Percent = models.Round1(consumed / goal * 100)
	}
	return g
}

// BatchTotals sums a JSON array of macro records. Each element may carry
// calories, protein_g, fat_g and carbs_g; missing fields count as zero.
func BatchTotals(raw string) (*models.Totals, int, error) {
	var records []models.Totals
	if err := json.Unmarshal([]byte(raw), &records); err != nil {
		return nil, 0, &ValidationError{Msg: fmt.Sprintf("invalid JSON for batch totals: %v", err)}
	}

	var totals models.Totals
	for _, r := range records {
		totals.Calories += r.Calories
		totals.Protein += r.Protein
		totals.Fat += r.Fat
		totals.Carbs += r.Carbs
	}
	rounded := totals.Rounded()
	return &rounded, len(records), nil
}

// Correlate lines up the weight series against daily calorie intake over a
// trailing window and compares observed weight change with the change the
// average deficit would predict.
func (e *Engine) Correlate(ctx context.Context, userID string, days int) (*models.CorrelationReport, error) {
	if days <= 0 {
		days = 14
	}
	end := e.now()
	start := end.AddDate(0, 0, -days)
	startStr := start.Format("2006-01-02")
	endStr := end.Format("2006-01-02")

	weights, err := e.ledger.WeightsBetween(ctx, userID, startStr, endStr)
	if err != nil {
		return nil, err
	}
	nutrition, err := e.ledger.EntriesRange(ctx, userID, startStr, endStr)
	if err != nil {
		return nil, err
	}
	goals, _, err := e.ledger.Goals(ctx, userID)
	if err != nil {
		return nil, err
	}
	dailyGoal := float64(goals.DailyCalories)

	weightByDate := make(map[string]float64, len(weights))
	for _, w := range weights {
		weightByDate[w.Date] = w.WeightKg
	}
	nutritionByDate := make(map[string]models.Totals, len(nutrition.Days))
	for _, d := range nutrition.Days {
		nutritionByDate[d.Date] = d.Totals
	}

	report := &models.CorrelationReport{
		Period:    fmt.Sprintf("%s to %s", startStr, endStr),
		DailyGoal: goals.DailyCalories,
		Days:      mergeDays(weightByDate, nutritionByDate, dailyGoal),
	}

	summary := models.CorrelationSummary{
		WeightEntries:    len(weights),
		NutritionEntries: len(nutrition.Days),
	}

	var weightChange, avgDeficit *float64
	if len(weights) >= 2 {
		first := weights[0].WeightKg
		last := weights[len(weights)-1].WeightKg
		summary.StartWeightKg = ptr(models.Round1(first))
		summary.CurrentWeightKg = ptr(models.Round1(last))
		weightChange = ptr(round2(last - first))
		summary.WeightChangeKg = weightChange
	}

	var expectedChange *float64
	if len(nutrition.Days) > 0 {
		var sum float64
		for _, d := range nutrition.Days {
			sum += d.Totals.Calories
		}
		avgCal := sum / float64(len(nutrition.Days))
		deficit := dailyGoal - avgCal
		summary.AvgDailyCalories = ptr(math.Round(avgCal))
		avgDeficit = ptr(math.Round(deficit))
		summary.AvgDailyDeficit = avgDeficit
		expectedChange = ptr(round2(-deficit * float64(len(nutrition.Days)) / CaloriesPerKg))
		summary.ExpectedChangeKg = expectedChange
	}

	report.Summary = summary
	report.Insight = weightInsight(weightChange, expectedChange, avgDeficit)
	return report, nil
}

// mergeDays combines the weight and nutrition series on the union of their
// dates, sorted ascending.
func mergeDays(weightByDate map[string]float64, nutritionByDate map[string]models.Totals, dailyGoal float64) []models.DayMetric {
	dateSet := make(map[string]bool, len(weightByDate)+len(nutritionByDate))
	for d := range weightByDate {
		dateSet[d] = true
	}
	for d := range nutritionByDate {
		dateSet[d] = true
	}
	dates := make([]string, 0, len(dateSet))
	for d := range dateSet {
		dates = append(dates, d)
	}
	sort.Strings(dates)

	metrics := make([]models.DayMetric, 0, len(dates))
	for _, date := range dates {
		m := models.DayMetric{Date: date}
		if w, ok := weightByDate[date]; ok {
			m.WeightKg = ptr(w)
		}
		if n, ok := nutritionByDate[date]; ok {
			m.Calories = ptr(math.Round(n.Calories))
			m.Protein = ptr(models.Round1(n.Protein))
			m.DeficitSurplus = ptr(math.Round(dailyGoal - n.Calories))
		}
		metrics = append(metrics, m)
	}
	return metrics
}

// weightInsight classifies how the observed weight change relates to the
// change the calorie balance predicts.
func weightInsight(weightChange, expectedChange, avgDeficit *float64) string {
	if weightChange == nil || expectedChange == nil {
		return "Not enough data yet. Keep logging weight and meals to unlock this analysis."
	}

	diff := *weightChange - *expectedChange

	switch {
	case *avgDeficit > 0:
		if *weightChange < 0 {
			switch {
			case math.Abs(diff) < 0.5:
				return "Weight is dropping in line with your calorie deficit."
			case *weightChange < *expectedChange:
				return "Weight is dropping faster than expected. Unlogged activity or water shifts may be at play."
			default:
				return "Weight is dropping slower than expected. Double-check portion estimates in your logs."
			}
		}
		return "Weight is up despite a calorie deficit. Water retention, underlogged meals or an adaptation period are the usual causes."
	case *avgDeficit < 0:
		if *weightChange > 0 {
			if math.Abs(diff) < 0.5 {
				return "Weight is climbing in line with your calorie surplus."
			}
			return "Weight gain differs from the surplus prediction. Normal with day-to-day water swings."
		}
		return "Weight is holding despite a calorie surplus. Activity level may be higher than assumed."
	default:
		return "Intake is roughly at maintenance level."
	}
}

func ptr(v float64) *float64 { return &v }

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
