// internal/storage/dump.go
package storage

import (
	"context"
	"fmt"
	"time"

	"nutrition-tracker/internal/models"
)

func parseRFC3339(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing timestamp: %w", err)
	}
	return t, nil
}

// Full-table reads used by Mirror Sync to compute the set difference against
// the mirror's keys. Ordered by primary key so mirrored rows keep insert
// order.

func (l *Ledger) AllEntries(ctx context.Context) ([]models.Entry, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT id, user_id, date, time, category, description, calories, protein, fat, carbs, origin, created_at
		FROM entries
		ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("querying all entries: %w", err)
	}
	defer rows.Close()

	var entries []models.Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *e)
	}
	return entries, rows.Err()
}

func (l *Ledger) AllUsers(ctx context.Context) ([]models.UserGoals, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT user_id FROM users ORDER BY user_id`)
	if err != nil {
		return nil, fmt.Errorf("querying all users: %w", err)
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scanning user id: %w", err)
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading users: %w", err)
	}

	var users []models.UserGoals
	for _, id := range ids {
		g, err := l.goalsRowChecked(ctx, id)
		if err != nil {
			return nil, err
		}
		users = append(users, *g)
	}
	return users, nil
}

func (l *Ledger) AllWeights(ctx context.Context) ([]models.WeightSample, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT id, user_id, date, time, weight, note
		FROM weight_log
		ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("querying all weights: %w", err)
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

func (l *Ledger) AllMemories(ctx context.Context) ([]models.MemoryFact, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT id, user_id, category, content, created_at
		FROM memory_bank
		ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("querying all memories: %w", err)
	}
	defer rows.Close()

	var facts []models.MemoryFact
	for rows.Next() {
		var f models.MemoryFact
		var cat, createdAt string
		if err := rows.Scan(&f.ID, &f.UserID, &cat, &f.Content, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning memory: %w", err)
		}
		f.Category = models.MemoryCategory(cat)
		var perr error
		if f.CreatedAt, perr = parseRFC3339(createdAt); perr != nil {
			return nil, perr
		}
		facts = append(facts, f)
	}
	return facts, rows.Err()
}
