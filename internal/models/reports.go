// internal/models/reports.go
package models

// DayLog is the entries for one user and date, with summed totals.
type DayLog struct {
	Date    string  `json:"date"`
	Entries []Entry `json:"entries"`
	Count   int     `json:"count"`
	Totals  Totals  `json:"totals"`
}

// DayTotals is one day's roll-up within a range report.
type DayTotals struct {
	Date   string `json:"date"`
	Totals Totals `json:"totals"`
	Count  int    `json:"count"`
}

// RangeReport groups entries by day over a date range. Averages are computed
// over days that have at least one entry; empty days are not counted as zero.
type RangeReport struct {
	Start        string      `json:"start"`
	End          string      `json:"end"`
	DaysWithData int         `json:"days_with_data"`
	Days         []DayTotals `json:"days"`
	AvgCalories  float64     `json:"avg_calories"`
	AvgProtein   float64     `json:"avg_protein_g"`
}

// WeightUpsert reports the outcome of a weight write: whether a row was
// created or the day's row was overwritten, and the delta against the
// previous value.
type WeightUpsert struct {
	Status       string   `json:"status"` // "created" or "updated"
	Date         string   `json:"date"`
	WeightKg     float64  `json:"weight_kg"`
	PreviousKg   *float64 `json:"previous_kg,omitempty"`
	PreviousDate string   `json:"previous_date,omitempty"`
	DeltaKg      *float64 `json:"delta_kg,omitempty"`
}

// WeightStats summarizes a weight history window.
type WeightStats struct {
	CurrentKg     float64 `json:"current_kg"`
	StartKg       float64 `json:"start_kg"`
	MinKg         float64 `json:"min_kg"`
	MaxKg         float64 `json:"max_kg"`
	AvgKg         float64 `json:"avg_kg"`
	TotalChangeKg float64 `json:"total_change_kg"`
}

// WeightReport is the weight history for a trailing window, newest first.
type WeightReport struct {
	Period  string         `json:"period"`
	Entries []WeightSample `json:"entries"`
	Count   int            `json:"count"`
	Stats   *WeightStats   `json:"stats,omitempty"`
}

// DayMetric is one day in the combined weight/nutrition series. Pointer
// fields are nil when that day has no data for the dimension.
type DayMetric struct {
	Date           string   `json:"date"`
	WeightKg       *float64 `json:"weight_kg,omitempty"`
	Calories       *float64 `json:"calories,omitempty"`
	Protein        *float64 `json:"protein_g,omitempty"`
	DeficitSurplus *float64 `json:"deficit_surplus,omitempty"`
}

// CorrelationSummary compares observed weight change against the change
// expected from the average calorie deficit or surplus.
type CorrelationSummary struct {
	WeightEntries    int      `json:"weight_entries"`
	NutritionEntries int      `json:"nutrition_entries"`
	StartWeightKg    *float64 `json:"start_weight_kg,omitempty"`
	CurrentWeightKg  *float64 `json:"current_weight_kg,omitempty"`
	WeightChangeKg   *float64 `json:"weight_change_kg,omitempty"`
	AvgDailyCalories *float64 `json:"avg_daily_calories,omitempty"`
	AvgDailyDeficit  *float64 `json:"avg_daily_deficit,omitempty"`
	ExpectedChangeKg *float64 `json:"expected_change_kg,omitempty"`
}

// CorrelationReport is the weight-vs-intake analysis over a trailing window.
// The expected change is a rough heuristic (about 7700 kcal per kg), not a
// physiological model.
type CorrelationReport struct {
	Period    string             `json:"period"`
	DailyGoal int                `json:"daily_goal"`
	Days      []DayMetric        `json:"days"`
	Summary   CorrelationSummary `json:"summary"`
	Insight   string             `json:"insight"`
}

// ProgressBand classifies calorie progress against the daily goal.
type ProgressBand string

const (
	BandExceeded   ProgressBand = "exceeded"
	BandAlmostDone ProgressBand = "almost_done"
	BandInProgress ProgressBand = "in_progress"
)

// Gauge is consumed-versus-goal for one nutrient.
type Gauge struct {
	Consumed  float64 `json:"consumed"`
	Goal      float64 `json:"goal"`
	Remaining float64 `json:"remaining"`
	Percent   float64 `json:"percent"`
}

// Progress is the daily progress snapshot against the user's goals.
type Progress struct {
	Calories Gauge        `json:"calories"`
	Protein  Gauge        `json:"protein"`
	Band     ProgressBand `json:"band"`
	GoalType GoalType     `json:"goal_type"`
}

// SyncCounts is the number of rows newly mirrored per table during one
// Mirror Sync run.
type SyncCounts struct {
	Entries  int `json:"entries"`
	Users    int `json:"users"`
	Weights  int `json:"weights"`
	Memories int `json:"memories"`
}

// Total is the sum across all tables.
func (c SyncCounts) Total() int {
	return c.Entries + c.Users + c.Weights + c.Memories
}
