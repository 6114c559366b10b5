// internal/models/entry.go
package models

import (
	"math"
	"time"
)

// Entry is a single logged meal in the ledger.
type Entry struct {
	ID          int64     `json:"id"`
	UserID      string    `json:"user_id"`
	Date        string    `json:"date"` // YYYY-MM-DD
	Time        string    `json:"time"` // HH:MM
	Category    Category  `json:"category"`
	Description string    `json:"description"`
	Calories    float64   `json:"calories"`
	Protein     float64   `json:"protein_g"`
	Fat         float64   `json:"fat_g"`
	Carbs       float64   `json:"carbs_g"`
	Origin      Origin    `json:"origin"`
	CreatedAt   time.Time `json:"created_at"`
}

// EntryPatch carries a partial edit; nil fields are left unchanged.
type EntryPatch struct {
	Description *string  `json:"description,omitempty"`
	Category    *Category `json:"category,omitempty"`
	Calories    *float64 `json:"calories,omitempty"`
	Protein     *float64 `json:"protein_g,omitempty"`
	Fat         *float64 `json:"fat_g,omitempty"`
	Carbs       *float64 `json:"carbs_g,omitempty"`
}

// Empty reports whether the patch would change nothing.
func (p *EntryPatch) Empty() bool {
	return p.Description == nil && p.Category == nil && p.Calories == nil &&
		p.Protein == nil && p.Fat == nil && p.Carbs == nil
}

type Category string

const (
	Breakfast Category = "breakfast"
	Lunch     Category = "lunch"
	Dinner    Category = "dinner"
	Snack     Category = "snack"
)

type Origin string

const (
	OriginText  Origin = "text"
	OriginPhoto Origin = "photo"
	OriginVoice Origin = "voice"
)

// UserGoals holds a user's daily nutrition targets. Exactly one row per user;
// created lazily with maintenance defaults on first access.
type UserGoals struct {
	UserID        string    `json:"user_id"`
	GoalType      GoalType  `json:"goal_type"`
	DailyCalories int       `json:"daily_calories"`
	DailyProtein  int       `json:"daily_protein_g"`
	DailyFat      int       `json:"daily_fat_g"`
	DailyCarbs    int       `json:"daily_carbs_g"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

type GoalType string

const (
	WeightLoss  GoalType = "weight_loss"
	MuscleGain  GoalType = "muscle_gain"
	Maintenance GoalType = "maintenance"
)

// GoalsPatch carries a partial goals update; nil fields are left unchanged.
type GoalsPatch struct {
	GoalType      *GoalType `json:"goal_type,omitempty"`
	DailyCalories *int      `json:"daily_calories,omitempty"`
	DailyProtein  *int      `json:"daily_protein_g,omitempty"`
	DailyFat      *int      `json:"daily_fat_g,omitempty"`
	DailyCarbs    *int      `json:"daily_carbs_g,omitempty"`
}

// WeightSample is one weight measurement. At most one sample per user per day;
// a second write for the same day overwrites in place.
type WeightSample struct {
	ID       int64   `json:"id"`
	UserID   string  `json:"user_id"`
	Date     string  `json:"date"`
	Time     string  `json:"time"`
	WeightKg float64 `json:"weight_kg"`
	Note     string  `json:"note,omitempty"`
}

// MemoryFact is a long-term note about a user. (user_id, content) is
// deduplicated; repeat inserts are a no-op.
type MemoryFact struct {
	ID        int64          `json:"id"`
	UserID    string         `json:"user_id"`
	Category  MemoryCategory `json:"category"`
	Content   string         `json:"content"`
	CreatedAt time.Time      `json:"created_at"`
}

type MemoryCategory string

const (
	MemoryPreference MemoryCategory = "preference"
	MemoryAllergy    MemoryCategory = "allergy"
	MemoryHabit      MemoryCategory = "habit"
	MemoryFactOther  MemoryCategory = "fact"
)

// Totals is a macro sum over a set of entries.
type Totals struct {
	Calories float64 `json:"calories"`
	Protein  float64 `json:"protein_g"`
	Fat      float64 `json:"fat_g"`
	Carbs    float64 `json:"carbs_g"`
}

// Add accumulates one entry's macros.
func (t *Totals) Add(e Entry) {
	t.Calories += e.Calories
	t.Protein += e.Protein
	t.Fat += e.Fat
	t.Carbs += e.Carbs
}

// Rounded returns the totals rounded to one decimal place. Stored precision is
// never truncated; rounding happens at read time only.
func (t Totals) Rounded() Totals {
	return Totals{
		Calories: Round1(t.Calories),
		Protein:  Round1(t.Protein),
		Fat:      Round1(t.Fat),
		Carbs:    Round1(t.Carbs),
	}
}

// Round1 rounds to one decimal place.
func Round1(v float64) float64 {
	return math.Round(v*10) / 10
}
