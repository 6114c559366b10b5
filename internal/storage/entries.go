// internal/storage/entries.go
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
	dateLayout = "2006-01-02"
	timeLayout = "15:04"
)

// InsertEntry writes a new entry and returns its store-assigned id. Date,
// time, and created-at default to the current moment when unset.
func (l *Ledger) InsertEntry(ctx context.Context, e *models.Entry) (int64, error) {
	if e.Calories < 0 || e.Protein < 0 || e.Fat < 0 || e.Carbs < 0 {
		return 0, ErrNegativeMacros
	}

	now := l.now()
	if e.Date == "" {
		e.Date = now.Format(dateLayout)
	}
	if e.Time == "" {
		e.Time = now.Format(timeLayout)
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	if e.Category == "" {
		e.Category = models.Snack
	}
	if e.Origin == "" {
		e.Origin = models.OriginText
	}

	res, err := l.db.ExecContext(ctx, `
		INSERT INTO entries (user_id, date, time, category, description, calories, protein, fat, carbs, origin, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.UserID, e.Date, e.Time, string(e.Category), e.Description,
		e.Calories, e.Protein, e.Fat, e.Carbs, string(e.Origin),
		e.CreatedAt.UTC().Format(time.RFC3339))
	if err != nil {
		return 0, fmt.Errorf("inserting entry: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("reading entry id: %w", err)
	}
	e.ID = id

	l.logger.Info("entry saved", "user", e.UserID, "id", id, "calories", e.Calories)
	return id, nil
}

// EntriesByDate returns a user's entries for one date, ordered by time, with
// summed totals rounded to one decimal.
func (l *Ledger) EntriesByDate(ctx context.Context, userID, date string) (*models.DayLog, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT id, user_id, date, time, category, description, calories, protein, fat, carbs, origin, created_at
		FROM entries
		WHERE user_id = ? AND date = ?
		ORDER BY time, id`,
		userID, date)
	if err != nil {
		return nil, fmt.Errorf("querying entries: %w", err)
	}
	defer rows.Close()

	log := &models.DayLog{Date: date}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		log.Entries = append(log.Entries, *e)
		log.Totals.Add(*e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading entries: %w", err)
	}

	log.Count = len(log.Entries)
	log.Totals = log.Totals.Rounded()
	return log, nil
}

// EntriesRange groups a user's entries by date over [start, end] inclusive.
// Averages cover only days that have at least one entry.
func (l *Ledger) EntriesRange(ctx context.Context, userID, start, end string) (*models.RangeReport, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT date, SUM(calories), SUM(protein), SUM(fat), SUM(carbs), COUNT(*)
		FROM entries
		WHERE user_id = ? AND date BETWEEN ? AND ?
		GROUP BY date
		ORDER BY date`,
		userID, start, end)
	if err != nil {
		return nil, fmt.Errorf("querying entry range: %w", err)
	}
	defer rows.Close()

	report := &models.RangeReport{Start: start, End: end}
	var sumCal, sumProt float64
	for rows.Next() {
		var day models.DayTotals
		if err := rows.Scan(&day.Date, &day.Totals.Calories, &day.Totals.Protein,
			&day.Totals.Fat, &day.Totals.Carbs, &day.Count); err != nil {
			return nil, fmt.Errorf("scanning day totals: %w", err)
		}
		sumCal += day.Totals.Calories
		sumProt += day.Totals.Protein
		day.Totals = day.Totals.Rounded()
		report.Days = append(report.Days, day)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading entry range: %w", err)
	}

	report.DaysWithData = len(report.Days)
	if report.DaysWithData > 0 {
		report.AvgCalories = models.Round1(sumCal / float64(report.DaysWithData))
		report.AvgProtein = models.Round1(sumProt / float64(report.DaysWithData))
	}
	return report, nil
}

// LastEntry returns a user's most recently inserted entry, or ErrNotFound.
func (l *Ledger) LastEntry(ctx context.Context, userID string) (*models.Entry, error) {
	row := l.db.QueryRowContext(ctx, `
		SELECT id, user_id, date, time, category, description, calories, protein, fat, carbs, origin, created_at
		FROM entries
		WHERE user_id = ?
		ORDER BY id DESC
		LIMIT 1`,
		userID)

	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return e, err
}

// EditEntry applies a partial update to an entry. Passing id <= 0 edits the
// user's latest entry. Unspecified fields are left unchanged; the id is
// preserved. Returns the updated row.
func (l *Ledger) EditEntry(ctx context.Context, userID string, id int64, patch *models.EntryPatch) (*models.Entry, error) {
	if patch == nil || patch.Empty() {
		return nil, ErrEmptyPatch
	}

	if id <= 0 {
		last, err := l.LastEntry(ctx, userID)
		if err != nil {
			return nil, err
		}
		id = last.ID
	}

	var sets []string
	var args []any
	if patch.Description != nil {
		sets = append(sets, "description = ?")
		args = append(args, *patch.Description)
	}
	if patch.Category != nil {
		sets = append(sets, "category = ?")
		args = append(args, string(*patch.Category))
	}
	if patch.Calories != nil {
		if *patch.Calories < 0 {
			return nil, ErrNegativeMacros
		}
		sets = append(sets, "calories = ?")
		args = append(args, *patch.Calories)
	}
	if patch.Protein != nil {
		if *patch.Protein < 0 {
			return nil, ErrNegativeMacros
		}
		sets = append(sets, "protein = ?")
		args = append(args, *patch.Protein)
	}
	if patch.Fat != nil {
		if *patch.Fat < 0 {
			return nil, ErrNegativeMacros
		}
		sets = append(sets, "fat = ?")
		args = append(args, *patch.Fat)
	}
	if patch.Carbs != nil {
		if *patch.Carbs < 0 {
			return nil, ErrNegativeMacros
		}
		sets = append(sets, "carbs = ?")
		args = append(args, *patch.Carbs)
	}

	args = append(args, id, userID)
	res, err := l.db.ExecContext(ctx,
		"UPDATE entries SET "+strings.Join(sets, ", ")+" WHERE id = ? AND user_id = ?",
		args...)
	if err != nil {
		return nil, fmt.Errorf("updating entry: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return nil, fmt.Errorf("updating entry: %w", err)
	} else if n == 0 {
		return nil, ErrNotFound
	}

	return l.entryByID(ctx, userID, id)
}

// DeleteEntry removes an entry and returns the deleted row. Passing id <= 0
// deletes the user's latest entry.
func (l *Ledger) DeleteEntry(ctx context.Context, userID string, id int64) (*models.Entry, error) {
	var (
		e   *models.Entry
		err error
	)
	if id <= 0 {
		e, err = l.LastEntry(ctx, userID)
	} else {
		e, err = l.entryByID(ctx, userID, id)
	}
	if err != nil {
		return nil, err
	}

	if _, err := l.db.ExecContext(ctx, "DELETE FROM entries WHERE id = ?", e.ID); err != nil {
		return nil, fmt.Errorf("deleting entry: %w", err)
	}

	l.logger.Info("entry deleted", "user", userID, "id", e.ID)
	return e, nil
}

func (l *Ledger) entryByID(ctx context.Context, userID string, id int64) (*models.Entry, error) {
	row := l.db.QueryRowContext(ctx, `
		SELECT id, user_id, date, time, category, description, calories, protein, fat, carbs, origin, created_at
		FROM entries
		WHERE id = ? AND user_id = ?`,
		id, userID)

	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return e, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (*models.Entry, error) {
	e := &models.Entry{}
	var category, origin, createdAt string
	err := row.Scan(&e.ID, &e.UserID, &e.Date, &e.Time, &category, &e.Description,
		&e.Calories, &e.Protein, &e.Fat, &e.Carbs, &origin, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning entry: %w", err)
	}

	e.Category = models.Category(category)
	e.Origin = models.Origin(origin)
	if e.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	return e, nil
}
