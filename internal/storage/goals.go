// internal/storage/goals.go
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"nutrition-tracker/internal/models"
)

const (
	defaultGoalType = models.Maintenance
	defaultCalories = 2000
	defaultProtein  = 150
	defaultFat      = 70
	defaultCarbs    = 200
)

// Goals returns a user's nutrition goals. A user seen for the first time gets
// a row with maintenance defaults; the second return value reports whether
// that happened.
func (l *Ledger) Goals(ctx context.Context, userID string) (*models.UserGoals, bool, error) {
	g, err := l.goalsRow(ctx, userID)
	if err == nil {
		return g, false, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, false, err
	}

	now := l.now().UTC()
	ts := now.Format(time.RFC3339)
	_, err = l.db.ExecContext(ctx, `
		INSERT INTO users (user_id, goal_type, daily_calories, daily_protein, daily_fat, daily_carbs, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		userID, string(defaultGoalType), defaultCalories, defaultProtein, defaultFat, defaultCarbs, ts, ts)
	if err != nil {
		return nil, false, fmt.Errorf("creating default goals: %w", err)
	}

	l.logger.Info("default goals created", "user", userID)
	return &models.UserGoals{
		UserID:        userID,
		GoalType:      defaultGoalType,
		DailyCalories: defaultCalories,
		DailyProtein:  defaultProtein,
		DailyFat:      defaultFat,
		DailyCarbs:    defaultCarbs,
		CreatedAt:     now,
		UpdatedAt:     now,
	}, true, nil
}

// SetGoals applies a partial goals update, creating the user's row with
// defaults for any unspecified field if it does not exist yet. Returns the
// resulting row.
func (l *Ledger) SetGoals(ctx context.Context, userID string, patch *models.GoalsPatch) (*models.UserGoals, error) {
	if patch == nil {
		patch = &models.GoalsPatch{}
	}

	_, err := l.goalsRow(ctx, userID)
	if errors.Is(err, sql.ErrNoRows) {
		now := l.now().UTC().Format(time.RFC3339)
		goalType := defaultGoalType
		if patch.GoalType != nil {
			goalType = *patch.GoalType
		}
		_, err = l.db.ExecContext(ctx, `
			INSERT INTO users (user_id, goal_type, daily_calories, daily_protein, daily_fat, daily_carbs, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			userID, string(goalType),
			intOr(patch.DailyCalories, defaultCalories),
			intOr(patch.DailyProtein, defaultProtein),
			intOr(patch.DailyFat, defaultFat),
			intOr(patch.DailyCarbs, defaultCarbs),
			now, now)
		if err != nil {
			return nil, fmt.Errorf("creating goals: %w", err)
		}
		return l.goalsRowChecked(ctx, userID)
	}
	if err != nil {
		return nil, err
	}

	var sets []string
	var args []any
	if patch.GoalType != nil {
		sets = append(sets, "goal_type = ?")
		args = append(args, string(*patch.GoalType))
	}
	if patch.DailyCalories != nil {
		sets = append(sets, "daily_calories = ?")
		args = append(args, *patch.DailyCalories)
	}
	if patch.DailyProtein != nil {
		sets = append(sets, "daily_protein = ?")
		args = append(args, *patch.DailyProtein)
	}
	if patch.DailyFat != nil {
		sets = append(sets, "daily_fat = ?")
		args = append(args, *patch.DailyFat)
	}
	if patch.DailyCarbs != nil {
		sets = append(sets, "daily_carbs = ?")
		args = append(args, *patch.DailyCarbs)
	}

	if len(sets) > 0 {
		sets = append(sets, "updated_at = ?")
		args = append(args, l.now().UTC().Format(time.RFC3339), userID)
		_, err = l.db.ExecContext(ctx,
			"UPDATE users SET "+strings.Join(sets, ", ")+" WHERE user_id = ?",
			args...)
		if err != nil {
			return nil, fmt.Errorf("updating goals: %w", err)
		}
	}

	return l.goalsRowChecked(ctx, userID)
}

func (l *Ledger) goalsRow(ctx context.Context, userID string) (*models.UserGoals, error) {
	row := l.db.QueryRowContext(ctx, `
		SELECT user_id, goal_type, daily_calories, daily_protein, daily_fat, daily_carbs, created_at, updated_at
		FROM users
		WHERE user_id = ?`,
		userID)

	g := &models.UserGoals{}
	var goalType, createdAt, updatedAt string
	err := row.Scan(&g.UserID, &goalType, &g.DailyCalories, &g.DailyProtein,
		&g.DailyFat, &g.DailyCarbs, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning goals: %w", err)
	}

	g.GoalType = models.GoalType(goalType)
	if g.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	if g.UpdatedAt, err = time.Parse(time.RFC3339, updatedAt); err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}
	return g, nil
}

func (l *Ledger) goalsRowChecked(ctx context.Context, userID string) (*models.UserGoals, error) {
	g, err := l.goalsRow(ctx, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return g, err
}

func intOr(v *int, fallback int) int {
	if v != nil {
		return *v
	}
	return fallback
}
