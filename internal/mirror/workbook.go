// internal/mirror/workbook.go
package mirror

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/xuri/excelize/v2"

	"nutrition-tracker/internal/models"
)

// Sheet names and header rows for the workbook mirror. Column order is fixed;
// readers elsewhere key off positions, not header text.
const (
	entriesSheet  = "Entries"
	usersSheet    = "Users"
	weightsSheet  = "Weight"
	memoriesSheet = "Memory"
)

var sheetHeaders = map[string][]string{
	entriesSheet:  {"ID", "User", "Date", "Time", "Category", "Description", "Calories", "Protein (g)", "Fat (g)", "Carbs (g)", "Origin", "Created At"},
	usersSheet:    {"User", "Goal Type", "Daily Calories", "Daily Protein (g)", "Daily Fat (g)", "Daily Carbs (g)", "Updated At"},
	weightsSheet:  {"ID", "User", "Date", "Time", "Weight (kg)", "Note"},
	memoriesSheet: {"ID", "User", "Category", "Content", "Created At"},
}

// Workbook is a Store backed by an xlsx file, one sheet per ledger table with
// a header row. The file is rewritten in full on each append; a mutex keeps
// concurrent appends from clobbering each other.
type Workbook struct {
	mu   sync.Mutex
	path string
}

// NewWorkbook creates a workbook store at path, creating the file with empty
// header-only sheets if it does not exist yet.
func NewWorkbook(path string) (*Workbook, error) {
	w := &Workbook{path: path}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("creating mirror directory: %w", err)
		}
		if err := w.create(); err != nil {
			return nil, err
		}
	}
	return w, nil
}

func (w *Workbook) create() error {
	f := excelize.NewFile()
	defer f.Close()

	for _, sheet := range []string{entriesSheet, usersSheet, weightsSheet, memoriesSheet} {
		if _, err := f.NewSheet(sheet); err != nil {
			return fmt.Errorf("creating sheet %s: %w", sheet, err)
		}
		for i, h := range sheetHeaders[sheet] {
			cell, _ := excelize.CoordinatesToCellName(i+1, 1)
			if err := f.SetCellValue(sheet, cell, h); err != nil {
				return fmt.Errorf("writing header for %s: %w", sheet, err)
			}
		}
	}
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return fmt.Errorf("removing default sheet: %w", err)
	}

	if err := f.SaveAs(w.path); err != nil {
		return fmt.Errorf("saving mirror workbook: %w", err)
	}
	return nil
}

func (w *Workbook) open() (*excelize.File, error) {
	f, err := excelize.OpenFile(w.path)
	if err != nil {
		return nil, fmt.Errorf("opening mirror workbook: %w", err)
	}
	return f, nil
}

// int64Keys reads column A below the header as the sheet's key set.
func (w *Workbook) int64Keys(sheet string) (map[int64]bool, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	f, err := w.open()
	if err != nil {
		return nil, err
	}
	defer f.Close()

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("reading sheet %s: %w", sheet, err)
	}

	keys := make(map[int64]bool)
	for i, row := range rows {
		if i == 0 || len(row) == 0 || row[0] == "" {
			continue
		}
		id, err := strconv.ParseInt(row[0], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("sheet %s row %d: bad id %q: %w", sheet, i+1, row[0], err)
		}
		keys[id] = true
	}
	return keys, nil
}

// appendRows writes rows after the current last row of the sheet and saves
// the workbook.
func (w *Workbook) appendRows(sheet string, rows [][]any) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	f, err := w.open()
	if err != nil {
		return err
	}
	defer f.Close()

	existing, err := f.GetRows(sheet)
	if err != nil {
		return fmt.Errorf("reading sheet %s: %w", sheet, err)
	}

	next := len(existing) + 1
	for i, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, next+i)
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("writing sheet %s row %d: %w", sheet, next+i, err)
		}
	}

	if err := f.Save(); err != nil {
		return fmt.Errorf("saving mirror workbook: %w", err)
	}
	return nil
}

func (w *Workbook) EntryIDs(ctx context.Context) (map[int64]bool, error) {
	return w.int64Keys(entriesSheet)
}

func (w *Workbook) AppendEntries(ctx context.Context, entries []models.Entry) error {
	rows := make([][]any, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, []any{
			e.ID, e.UserID, e.Date, e.Time, string(e.Category), e.Description,
			e.Calories, e.Protein, e.Fat, e.Carbs, string(e.Origin),
			e.CreatedAt.Format(time.RFC3339),
		})
	}
	return w.appendRows(entriesSheet, rows)
}

func (w *Workbook) UserIDs(ctx context.Context) (map[string]bool, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	f, err := w.open()
	if err != nil {
		return nil, err
	}
	defer f.Close()

	rows, err := f.GetRows(usersSheet)
	if err != nil {
		return nil, fmt.Errorf("reading sheet %s: %w", usersSheet, err)
	}

	keys := make(map[string]bool)
	for i, row := range rows {
		if i == 0 || len(row) == 0 || row[0] == "" {
			continue
		}
		keys[row[0]] = true
	}
	return keys, nil
}

func (w *Workbook) AppendUsers(ctx context.Context, users []models.UserGoals) error {
	rows := make([][]any, 0, len(users))
	for _, u := range users {
		rows = append(rows, []any{
			u.UserID, string(u.GoalType), u.DailyCalories, u.DailyProtein,
			u.DailyFat, u.DailyCarbs, u.UpdatedAt.Format(time.RFC3339),
		})
	}
	return w.appendRows(usersSheet, rows)
}

func (w *Workbook) WeightIDs(ctx context.Context) (map[int64]bool, error) {
	return w.int64Keys(weightsSheet)
}

func (w *Workbook) AppendWeights(ctx context.Context, samples []models.WeightSample) error {
	rows := make([][]any, 0, len(samples))
	for _, s := range samples {
		rows = append(rows, []any{s.ID, s.UserID, s.Date, s.Time, s.WeightKg, s.Note})
	}
	return w.appendRows(weightsSheet, rows)
}

func (w *Workbook) MemoryIDs(ctx context.Context) (map[int64]bool, error) {
	return w.int64Keys(memoriesSheet)
}

func (w *Workbook) AppendMemories(ctx context.Context, facts []models.MemoryFact) error {
	rows := make([][]any, 0, len(facts))
	for _, m := range facts {
		rows = append(rows, []any{
			m.ID, m.UserID, string(m.Category), m.Content,
			m.CreatedAt.Format(time.RFC3339),
		})
	}
	return w.appendRows(memoriesSheet, rows)
}
