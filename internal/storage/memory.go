// internal/storage/memory.go
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"nutrition-tracker/internal/models"
)

// StoreMemory saves a long-term fact about a user. Inserting content that is
// already stored for the user is a no-op; the second return value reports
// whether the fact was already known.
func (l *Ledger) StoreMemory(ctx context.Context, userID string, category models.MemoryCategory, content string) (*models.MemoryFact, bool, error) {
	var existingID int64
	err := l.db.QueryRowContext(ctx,
		"SELECT id FROM memory_bank WHERE user_id = ? AND content = ?",
		userID, content).Scan(&existingID)
	if err == nil {
		return &models.MemoryFact{ID: existingID, UserID: userID, Content: content}, true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, false, fmt.Errorf("checking memory: %w", err)
	}

	now := l.now().UTC()
	res, err := l.db.ExecContext(ctx, `
		INSERT INTO memory_bank (user_id, category, content, created_at)
		VALUES (?, ?, ?, ?)`,
		userID, string(category), content, now.Format(time.RFC3339))
	if err != nil {
		return nil, false, fmt.Errorf("storing memory: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, false, fmt.Errorf("reading memory id: %w", err)
	}

	l.logger.Info("memory stored", "user", userID, "category", category)
	return &models.MemoryFact{
		ID:        id,
		UserID:    userID,
		Category:  category,
		Content:   content,
		CreatedAt: now,
	}, false, nil
}

// Memories returns a user's stored facts, optionally filtered by category,
// newest first.
func (l *Ledger) Memories(ctx context.Context, userID string, category models.MemoryCategory) ([]models.MemoryFact, error) {
	query := `
		SELECT id, user_id, category, content, created_at
		FROM memory_bank
		WHERE user_id = ?`
	args := []any{userID}
	if category != "" {
		query += " AND category = ?"
		args = append(args, string(category))
	}
	query += " ORDER BY category, created_at DESC"

	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying memories: %w", err)
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
		if f.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
		facts = append(facts, f)
	}
	return facts, rows.Err()
}

// ForgetMemory deletes all of a user's facts whose content contains the given
// substring and returns the deleted contents. ErrNotFound when nothing
// matches.
func (l *Ledger) ForgetMemory(ctx context.Context, userID, substring string) ([]string, error) {
	pattern := "%" + substring + "%"

	rows, err := l.db.QueryContext(ctx,
		"SELECT content FROM memory_bank WHERE user_id = ? AND content LIKE ?",
		userID, pattern)
	if err != nil {
		return nil, fmt.Errorf("finding memories: %w", err)
	}
	var contents []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scanning memory: %w", err)
		}
		contents = append(contents, c)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading memories: %w", err)
	}

	if len(contents) == 0 {
		return nil, ErrNotFound
	}

	if _, err := l.db.ExecContext(ctx,
		"DELETE FROM memory_bank WHERE user_id = ? AND content LIKE ?",
		userID, pattern); err != nil {
		return nil, fmt.Errorf("deleting memories: %w", err)
	}

	l.logger.Info("memories forgotten", "user", userID, "count", len(contents))
	return contents, nil
}
