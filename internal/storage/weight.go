// internal/storage/weight.go
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"

	"nutrition-tracker/internal/models"
)

// UpsertWeight records a weight measurement for today. A second write on the
// same day overwrites the existing row in place and reports the prior value
// and delta; a fresh day's row reports the delta against the most recent
// earlier sample, if any.
func (l *Ledger) UpsertWeight(ctx context.Context, userID string, weightKg float64, note string) (*models.WeightUpsert, error) {
	unlock := l.LockUser(userID)
	defer unlock()

	now := l.now()
	date := now.Format(dateLayout)
	clock := now.Format(timeLayout)

	var prev float64
	err := l.db.QueryRowContext(ctx,
		"SELECT weight FROM weight_log WHERE user_id = ? AND date = ?",
		userID, date).Scan(&prev)
	switch {
	case err == nil:
		_, err = l.db.ExecContext(ctx, `
			UPDATE weight_log SET weight = ?, time = ?, note = ?, created_at = ?
			WHERE user_id = ? AND date = ?`,
			weightKg, clock, note, now.UTC().Format(time.RFC3339), userID, date)
		if err != nil {
			return nil, fmt.Errorf("updating weight: %w", err)
		}

		delta := round2(weightKg - prev)
		l.logger.Info("weight updated", "user", userID, "date", date, "delta", delta)
		return &models.WeightUpsert{
			Status:       "updated",
			Date:         date,
			WeightKg:     weightKg,
			PreviousKg:   &prev,
			PreviousDate: date,
			DeltaKg:      &delta,
		}, nil

	case errors.Is(err, sql.ErrNoRows):
		_, err = l.db.ExecContext(ctx, `
			INSERT INTO weight_log (user_id, date, time, weight, note, created_at)
			VALUES (?, ?, ?, ?, ?, ?)`,
			userID, date, clock, weightKg, note, now.UTC().Format(time.RFC3339))
		if err != nil {
			return nil, fmt.Errorf("inserting weight: %w", err)
		}

		result := &models.WeightUpsert{Status: "created", Date: date, WeightKg: weightKg}

		var prevWeight float64
		var prevDate string
		err = l.db.QueryRowContext(ctx, `
			SELECT weight, date FROM weight_log
			WHERE user_id = ? AND date < ?
			ORDER BY date DESC
			LIMIT 1`,
			userID, date).Scan(&prevWeight, &prevDate)
		if err == nil {
			delta := round2(weightKg - prevWeight)
			result.PreviousKg = &prevWeight
			result.PreviousDate = prevDate
			result.DeltaKg = &delta
		} else if !errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("reading previous weight: %w", err)
		}

		l.logger.Info("weight recorded", "user", userID, "date", date, "weight_kg", weightKg)
		return result, nil

	default:
		return nil, fmt.Errorf("checking existing weight: %w", err)
	}
}

// WeightHistory returns the trailing-window weight history, newest first,
// with summary stats when any samples exist.
func (l *Ledger) WeightHistory(ctx context.Context, userID string, days int) (*models.WeightReport, error) {
	end := l.now()
	start := end.AddDate(0, 0, -days)
	startStr := start.Format(dateLayout)
	endStr := end.Format(dateLayout)

	rows, err := l.db.QueryContext(ctx, `
		SELECT id, user_id, date, time, weight, note
		FROM weight_log
		WHERE user_id = ? AND date BETWEEN ? AND ?
		ORDER BY date DESC`,
		userID, startStr, endStr)
	if err != nil {
		return nil, fmt.Errorf("querying weight history: %w", err)
	}
	defer rows.Close()

	report := &models.WeightReport{Period: startStr + " - " + endStr}
	var weights []float64
	for rows.Next() {
		var s models.WeightSample
		if err := rows.Scan(&s.ID, &s.UserID, &s.Date, &s.Time, &s.WeightKg, &s.Note); err != nil {
			return nil, fmt.Errorf("scanning weight sample: %w", err)
		}
		report.Entries = append(report.Entries, s)
		weights = append(weights, s.WeightKg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading weight history: %w", err)
	}

	report.Count = len(report.Entries)
	if report.Count == 0 {
		return report, nil
	}

	minW, maxW, sum := weights[0], weights[0], 0.0
	for _, w := range weights {
		minW = math.Min(minW, w)
		maxW = math.Max(maxW, w)
		sum += w
	}
	current := weights[0]            // newest (DESC order)
	first := weights[len(weights)-1] // oldest in window
	report.Stats = &models.WeightStats{
		CurrentKg:     models.Round1(current),
		StartKg:       models.Round1(first),
		MinKg:         models.Round1(minW),
		MaxKg:         models.Round1(maxW),
		AvgKg:         models.Round1(sum / float64(len(weights))),
		TotalChangeKg: round2(current - first),
	}
	return report, nil
}

// WeightsBetween returns samples in [start, end] inclusive, oldest first.
func (l *Ledger) WeightsBetween(ctx context.Context, userID, start, end string) ([]models.WeightSample, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT id, user_id, date, time, weight, note
		FROM weight_log
		WHERE user_id = ? AND date BETWEEN ? AND ?
		ORDER BY date`,
		userID, start, end)
	if err != nil {
		return nil, fmt.Errorf("querying weights: %w", err)
	}
	defer rows.Close()

	var samples []models.WeightSample
	for rows.Next() {
		var s models.WeightSample
		if err := rows.Scan(&s.ID, &s.UserID, &s.Date, &s.Time, &s.WeightKg, &s.Note); err != nil {
			return nil, fmt.Errorf("scanning weight sample: %w", err)
		}
		samples = append(samples, s)
	}
	return samples, rows.Err()
}

// DeleteWeight removes a weight sample by date, or the most recent one when
// date is empty. Returns the deleted sample.
func (l *Ledger) DeleteWeight(ctx context.Context, userID, date string) (*models.WeightSample, error) {
	query := `
		SELECT id, user_id, date, time, weight, note
		FROM weight_log
		WHERE user_id = ?`
	args := []any{userID}
	if date != "" {
		query += " AND date = ?"
		args = append(args, date)
	} else {
		query += " ORDER BY date DESC LIMIT 1"
	}

	var s models.WeightSample
	err := l.db.QueryRowContext(ctx, query, args...).
		Scan(&s.ID, &s.UserID, &s.Date, &s.Time, &s.WeightKg, &s.Note)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("finding weight sample: %w", err)
	}

	if _, err := l.db.ExecContext(ctx, "DELETE FROM weight_log WHERE id = ?", s.ID); err != nil {
		return nil, fmt.Errorf("deleting weight sample: %w", err)
	}
	return &s, nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
