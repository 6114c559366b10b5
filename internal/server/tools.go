// internal/server/tools.go
package server

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ThinkInAIXYZ/go-mcp/protocol"

	"nutrition-tracker/internal/analytics"
	"nutrition-tracker/internal/analyze"
	"nutrition-tracker/internal/burst"
	"nutrition-tracker/internal/models"
)

type LogEntryParams struct {
	UserID      string  `json:"user_id" description:"User identifier"`
	Description string  `json:"description" description:"What was eaten"`
	Calories    float64 `json:"calories" description:"Calories in the meal"`
	Protein     float64 `json:"protein_g,omitempty" description:"Protein in grams"`
	Fat         float64 `json:"fat_g,omitempty" description:"Fat in grams"`
	Carbs       float64 `json:"carbs_g,omitempty" description:"Carbs in grams"`
	Category    string  `json:"category,omitempty" description:"breakfast, lunch, dinner or snack"`
	Date        string  `json:"date,omitempty" description:"Date (YYYY-MM-DD, defaults to today)"`
	Time        string  `json:"time,omitempty" description:"Time (HH:MM, defaults to now)"`
	Origin      string  `json:"origin,omitempty" description:"How the entry arrived: text, photo or voice"`
	Force       bool    `json:"force,omitempty" description:"Log even if it looks like a repeat of the previous entry"`
}

type IngestMediaParams struct {
	UserID  string `json:"user_id" description:"User identifier"`
	BurstID string `json:"burst_id,omitempty" description:"Groups parts of one submission; empty for a standalone part"`
	Caption string `json:"caption,omitempty" description:"Text accompanying the media"`
	Origin  string `json:"origin,omitempty" description:"photo or voice"`
	MIME    string `json:"mime,omitempty" description:"Media MIME type"`
	Data    []byte `json:"data,omitempty" description:"Base64-encoded media payload"`
}

type UserParams struct {
	UserID string `json:"user_id" description:"User identifier"`
}

type DateParams struct {
	UserID string `json:"user_id" description:"User identifier"`
	Date   string `json:"date" description:"Date (YYYY-MM-DD)"`
}

type UpdateGoalsParams struct {
	UserID        string  `json:"user_id" description:"User identifier"`
	GoalType      *string `json:"goal_type,omitempty" description:"weight_loss, muscle_gain or maintenance"`
	DailyCalories *int    `json:"daily_calories,omitempty" description:"Daily calorie target"`
	DailyProtein  *int    `json:"daily_protein_g,omitempty" description:"Daily protein target in grams"`
	DailyFat      *int    `json:"daily_fat_g,omitempty" description:"Daily fat target in grams"`
	DailyCarbs    *int    `json:"daily_carbs_g,omitempty" description:"Daily carbs target in grams"`
}

type EditEntryParams struct {
	UserID      string   `json:"user_id" description:"User identifier"`
	ID          int64    `json:"id,omitempty" description:"Entry id; omit to edit the latest entry"`
	Description *string  `json:"description,omitempty" description:"New description"`
	Category    *string  `json:"category,omitempty" description:"New category"`
	Calories    *float64 `json:"calories,omitempty" description:"New calories"`
	Protein     *float64 `json:"protein_g,omitempty" description:"New protein in grams"`
	Fat         *float64 `json:"fat_g,omitempty" description:"New fat in grams"`
	Carbs       *float64 `json:"carbs_g,omitempty" description:"New carbs in grams"`
}

type DeleteEntryParams struct {
	UserID string `json:"user_id" description:"User identifier"`
	ID     int64  `json:"id,omitempty" description:"Entry id; omit to delete the latest entry"`
}

type LogWeightParams struct {
	UserID   string  `json:"user_id" description:"User identifier"`
	WeightKg float64 `json:"weight_kg" description:"Weight in kilograms"`
	Note     string  `json:"note,omitempty" description:"Optional note"`
}

type DeleteWeightParams struct {
	UserID string `json:"user_id" description:"User identifier"`
	Date   string `json:"date,omitempty" description:"Date to delete; omit for the latest sample"`
}

type WindowParams struct {
	UserID string `json:"user_id" description:"User identifier"`
	Days   int    `json:"days,omitempty" description:"Trailing window in days"`
}

type RememberParams struct {
	UserID   string `json:"user_id" description:"User identifier"`
	Category string `json:"category,omitempty" description:"preference, allergy, habit or fact"`
	Content  string `json:"content" description:"The fact to remember"`
}

type RecallParams struct {
	UserID   string `json:"user_id" description:"User identifier"`
	Category string `json:"category,omitempty" description:"Filter by category; omit for all"`
}

type ForgetParams struct {
	UserID   string `json:"user_id" description:"User identifier"`
	Matching string `json:"matching" description:"Substring of the facts to delete"`
}

type CalculateTotalsParams struct {
	Entries json.RawMessage `json:"entries" description:"JSON array of macro records to sum"`
}

// extractParams safely extracts parameters from the request arguments
func extractParams(req *protocol.CallToolRequest, target interface{}) error {
	jsonBytes, err := json.Marshal(req.Arguments)
	if err != nil {
		return fmt.Errorf("failed to marshal arguments: %w", err)
	}

	if err := json.Unmarshal(jsonBytes, target); err != nil {
		return fmt.Errorf("failed to unmarshal parameters: %w", err)
	}

	return nil
}

// handleLogEntry records a fully specified entry, refusing rapid duplicates.
func (s *TrackerServer) handleLogEntry(ctx context.Context, req *protocol.CallToolRequest) (*protocol.CallToolResult, error) {
	var params LogEntryParams
	if err := extractParams(req, &params); err != nil {
		return nil, fmt.Errorf("invalid parameters: %w", err)
	}
	if params.UserID == "" {
		return nil, fmt.Errorf("user_id is required")
	}
	if params.Description == "" {
		return nil, fmt.Errorf("description is required")
	}

	entry := &models.Entry{
		UserID:      params.UserID,
		Date:        params.Date,
		Time:        params.Time,
		Category:    models.Category(params.Category),
		Description: params.Description,
		Calories:    params.Calories,
		Protein:     params.Protein,
		Fat:         params.Fat,
		Carbs:       params.Carbs,
		Origin:      models.Origin(params.Origin),
	}

	if err := s.checkAndInsert(ctx, entry, params.Force); err != nil {
		return nil, err
	}

	return s.createJSONResponse(map[string]any{
		"status": "logged",
		"entry":  entry,
	})
}

// checkAndInsert runs the duplicate check and the insert as one atomic
// sequence under the per-user lock. force skips the check for explicit "yes,
// I ate it again" submissions.
func (s *TrackerServer) checkAndInsert(ctx context.Context, entry *models.Entry, force bool) error {
	// Default the category before the check so it compares against what the
	// ledger will actually store.
	if entry.Category == "" {
		entry.Category = models.Snack
	}

	unlock := s.ledger.LockUser(entry.UserID)
	defer unlock()

	if !force {
		if err := s.guard.Check(ctx, entry); err != nil {
			return err
		}
	}
	_, err := s.ledger.InsertEntry(ctx, entry)
	return err
}

// handleIngestMedia buffers one media part; the burst aggregator analyzes and
// logs the combined submission once the quiet window elapses.
func (s *TrackerServer) handleIngestMedia(ctx context.Context, req *protocol.CallToolRequest) (*protocol.CallToolResult, error) {
	var params IngestMediaParams
	if err := extractParams(req, &params); err != nil {
		return nil, fmt.Errorf("invalid parameters: %w", err)
	}
	if params.UserID == "" {
		return nil, fmt.Errorf("user_id is required")
	}

	origin := models.Origin(params.Origin)
	if origin == "" {
		origin = models.OriginPhoto
	}

	burstID := s.aggregator.Add(params.UserID, params.BurstID, params.Caption, burst.Part{
		Origin: origin,
		MIME:   params.MIME,
		Data:   params.Data,
	})

	return s.createJSONResponse(map[string]any{
		"status":   "buffered",
		"burst_id": burstID,
	})
}

// drainBurst is the aggregator's downstream: analyze the combined submission,
// then log it through the same duplicate check as a manual entry.
func (s *TrackerServer) drainBurst(ctx context.Context, b *burst.Burst) {
	draft, err := s.analyzer.Analyze(ctx, &analyze.Request{
		Prompt:    b.Caption,
		PartCount: len(b.Parts),
		Origin:    b.Parts[0].Origin,
	})
	if err != nil {
		s.logger.Error("burst analysis failed", "burst", b.ID, "user", b.UserID, "error", err)
		return
	}

	entry := &models.Entry{
		UserID:      b.UserID,
		Category:    draft.Category,
		Description: draft.Description,
		Calories:    draft.Calories,
		Protein:     draft.Protein,
		Fat:         draft.Fat,
		Carbs:       draft.Carbs,
		Origin:      b.Parts[0].Origin,
	}

	if err := s.checkAndInsert(ctx, entry, false); err != nil {
		s.logger.Info("burst entry not logged", "burst", b.ID, "user", b.UserID, "reason", err)
		return
	}
	s.logger.Info("burst entry logged", "burst", b.ID, "user", b.UserID, "id", entry.ID)
}

func (s *TrackerServer) handleGetToday(ctx context.Context, req *protocol.CallToolRequest) (*protocol.CallToolResult, error) {
	var params UserParams
	if err := extractParams(req, &params); err != nil {
		return nil, fmt.Errorf("invalid parameters: %w", err)
	}
	if params.UserID == "" {
		return nil, fmt.Errorf("user_id is required")
	}

	day, err := s.engine.DailyTotals(ctx, params.UserID, "")
	if err != nil {
		return nil, err
	}
	return s.createJSONResponse(day)
}

func (s *TrackerServer) handleGetDate(ctx context.Context, req *protocol.CallToolRequest) (*protocol.CallToolResult, error) {
	var params DateParams
	if err := extractParams(req, &params); err != nil {
		return nil, fmt.Errorf("invalid parameters: %w", err)
	}
	if params.UserID == "" || params.Date == "" {
		return nil, fmt.Errorf("user_id and date are required")
	}

	day, err := s.engine.DailyTotals(ctx, params.UserID, params.Date)
	if err != nil {
		return nil, err
	}
	return s.createJSONResponse(day)
}

func (s *TrackerServer) handleGetWeek(ctx context.Context, req *protocol.CallToolRequest) (*protocol.CallToolResult, error) {
	var params UserParams
	if err := extractParams(req, &params); err != nil {
		return nil, fmt.Errorf("invalid parameters: %w", err)
	}
	if params.UserID == "" {
		return nil, fmt.Errorf("user_id is required")
	}

	report, err := s.engine.WeekBreakdown(ctx, params.UserID)
	if err != nil {
		return nil, err
	}
	return s.createJSONResponse(report)
}

func (s *TrackerServer) handleGetGoals(ctx context.Context, req *protocol.CallToolRequest) (*protocol.CallToolResult, error) {
	var params UserParams
	if err := extractParams(req, &params); err != nil {
		return nil, fmt.Errorf("invalid parameters: %w", err)
	}
	if params.UserID == "" {
		return nil, fmt.Errorf("user_id is required")
	}

	goals, created, err := s.ledger.Goals(ctx, params.UserID)
	if err != nil {
		return nil, err
	}
	return s.createJSONResponse(map[string]any{
		"goals":   goals,
		"created": created,
	})
}

func (s *TrackerServer) handleUpdateGoals(ctx context.Context, req *protocol.CallToolRequest) (*protocol.CallToolResult, error) {
	var params UpdateGoalsParams
	if err := extractParams(req, &params); err != nil {
		return nil, fmt.Errorf("invalid parameters: %w", err)
	}
	if params.UserID == "" {
		return nil, fmt.Errorf("user_id is required")
	}

	patch := &models.GoalsPatch{
		DailyCalories: params.DailyCalories,
		DailyProtein:  params.DailyProtein,
		DailyFat:      params.DailyFat,
		DailyCarbs:    params.DailyCarbs,
	}
	if params.GoalType != nil {
		gt := models.GoalType(*params.GoalType)
		patch.GoalType = &gt
	}

	goals, err := s.ledger.SetGoals(ctx, params.UserID, patch)
	if err != nil {
		return nil, err
	}
	return s.createJSONResponse(map[string]any{
		"status": "updated",
		"goals":  goals,
	})
}

func (s *TrackerServer) handleEditEntry(ctx context.Context, req *protocol.CallToolRequest) (*protocol.CallToolResult, error) {
	var params EditEntryParams
	if err := extractParams(req, &params); err != nil {
		return nil, fmt.Errorf("invalid parameters: %w", err)
	}
	if params.UserID == "" {
		return nil, fmt.Errorf("user_id is required")
	}

	patch := &models.EntryPatch{
		Description: params.Description,
		Calories:    params.Calories,
		Protein:     params.Protein,
		Fat:         params.Fat,
		Carbs:       params.Carbs,
	}
	if params.Category != nil {
		cat := models.Category(*params.Category)
		patch.Category = &cat
	}

	entry, err := s.ledger.EditEntry(ctx, params.UserID, params.ID, patch)
	if err != nil {
		return nil, err
	}
	return s.createJSONResponse(map[string]any{
		"status": "updated",
		"entry":  entry,
	})
}

func (s *TrackerServer) handleDeleteEntry(ctx context.Context, req *protocol.CallToolRequest) (*protocol.CallToolResult, error) {
	var params DeleteEntryParams
	if err := extractParams(req, &params); err != nil {
		return nil, fmt.Errorf("invalid parameters: %w", err)
	}
	if params.UserID == "" {
		return nil, fmt.Errorf("user_id is required")
	}

	entry, err := s.ledger.DeleteEntry(ctx, params.UserID, params.ID)
	if err != nil {
		return nil, err
	}
	return s.createJSONResponse(map[string]any{
		"status": "deleted",
		"entry":  entry,
	})
}

func (s *TrackerServer) handleUndoLast(ctx context.Context, req *protocol.CallToolRequest) (*protocol.CallToolResult, error) {
	var params UserParams
	if err := extractParams(req, &params); err != nil {
		return nil, fmt.Errorf("invalid parameters: %w", err)
	}
	if params.UserID == "" {
		return nil, fmt.Errorf("user_id is required")
	}

	entry, err := s.ledger.DeleteEntry(ctx, params.UserID, 0)
	if err != nil {
		return nil, err
	}
	return s.createJSONResponse(map[string]any{
		"status": "deleted",
		"entry":  entry,
	})
}

func (s *TrackerServer) handleLogWeight(ctx context.Context, req *protocol.CallToolRequest) (*protocol.CallToolResult, error) {
	var params LogWeightParams
	if err := extractParams(req, &params); err != nil {
		return nil, fmt.Errorf("invalid parameters: %w", err)
	}
	if params.UserID == "" {
		return nil, fmt.Errorf("user_id is required")
	}
	if params.WeightKg <= 0 {
		return nil, fmt.Errorf("weight_kg must be positive")
	}

	result, err := s.ledger.UpsertWeight(ctx, params.UserID, params.WeightKg, params.Note)
	if err != nil {
		return nil, err
	}
	return s.createJSONResponse(result)
}

func (s *TrackerServer) handleDeleteWeight(ctx context.Context, req *protocol.CallToolRequest) (*protocol.CallToolResult, error) {
	var params DeleteWeightParams
	if err := extractParams(req, &params); err != nil {
		return nil, fmt.Errorf("invalid parameters: %w", err)
	}
	if params.UserID == "" {
		return nil, fmt.Errorf("user_id is required")
	}

	sample, err := s.ledger.DeleteWeight(ctx, params.UserID, params.Date)
	if err != nil {
		return nil, err
	}
	return s.createJSONResponse(map[string]any{
		"status":  "deleted",
		"deleted": sample,
	})
}

func (s *TrackerServer) handleWeightHistory(ctx context.Context, req *protocol.CallToolRequest) (*protocol.CallToolResult, error) {
	var params WindowParams
	if err := extractParams(req, &params); err != nil {
		return nil, fmt.Errorf("invalid parameters: %w", err)
	}
	if params.UserID == "" {
		return nil, fmt.Errorf("user_id is required")
	}
	if params.Days <= 0 {
		params.Days = 30
	}

	report, err := s.ledger.WeightHistory(ctx, params.UserID, params.Days)
	if err != nil {
		return nil, err
	}
	return s.createJSONResponse(report)
}

func (s *TrackerServer) handleWeightAnalysis(ctx context.Context, req *protocol.CallToolRequest) (*protocol.CallToolResult, error) {
	var params WindowParams
	if err := extractParams(req, &params); err != nil {
		return nil, fmt.Errorf("invalid parameters: %w", err)
	}
	if params.UserID == "" {
		return nil, fmt.Errorf("user_id is required")
	}

	report, err := s.engine.Correlate(ctx, params.UserID, params.Days)
	if err != nil {
		return nil, err
	}
	return s.createJSONResponse(report)
}

func (s *TrackerServer) handleRemember(ctx context.Context, req *protocol.CallToolRequest) (*protocol.CallToolResult, error) {
	var params RememberParams
	if err := extractParams(req, &params); err != nil {
		return nil, fmt.Errorf("invalid parameters: %w", err)
	}
	if params.UserID == "" {
		return nil, fmt.Errorf("user_id is required")
	}
	if params.Content == "" {
		return nil, fmt.Errorf("content is required")
	}

	fact, known, err := s.ledger.StoreMemory(ctx, params.UserID, models.MemoryCategory(params.Category), params.Content)
	if err != nil {
		return nil, err
	}

	status := "remembered"
	if known {
		status = "already_known"
	}
	return s.createJSONResponse(map[string]any{
		"status": status,
		"fact":   fact,
	})
}

func (s *TrackerServer) handleRecall(ctx context.Context, req *protocol.CallToolRequest) (*protocol.CallToolResult, error) {
	var params RecallParams
	if err := extractParams(req, &params); err != nil {
		return nil, fmt.Errorf("invalid parameters: %w", err)
	}
	if params.UserID == "" {
		return nil, fmt.Errorf("user_id is required")
	}

	facts, err := s.ledger.Memories(ctx, params.UserID, models.MemoryCategory(params.Category))
	if err != nil {
		return nil, err
	}
	return s.createJSONResponse(map[string]any{
		"facts": facts,
		"count": len(facts),
	})
}

func (s *TrackerServer) handleForget(ctx context.Context, req *protocol.CallToolRequest) (*protocol.CallToolResult, error) {
	var params ForgetParams
	if err := extractParams(req, &params); err != nil {
		return nil, fmt.Errorf("invalid parameters: %w", err)
	}
	if params.UserID == "" {
		return nil, fmt.Errorf("user_id is required")
	}
	if params.Matching == "" {
		return nil, fmt.Errorf("matching is required")
	}

	deleted, err := s.ledger.ForgetMemory(ctx, params.UserID, params.Matching)
	if err != nil {
		return nil, err
	}
	return s.createJSONResponse(map[string]any{
		"status":  "forgotten",
		"deleted": deleted,
	})
}

func (s *TrackerServer) handleCalculateTotals(ctx context.Context, req *protocol.CallToolRequest) (*protocol.CallToolResult, error) {
	var params CalculateTotalsParams
	if err := extractParams(req, &params); err != nil {
		return nil, fmt.Errorf("invalid parameters: %w", err)
	}

	totals, count, err := analytics.BatchTotals(string(params.Entries))
	if err != nil {
		return nil, err
	}
	return s.createJSONResponse(map[string]any{
		"status": "success",
		"totals": totals,
		"count":  count,
	})
}

func (s *TrackerServer) handleSyncMirror(ctx context.Context, req *protocol.CallToolRequest) (*protocol.CallToolResult, error) {
	result, err := s.syncer.Run(ctx)
	if err != nil {
		return nil, err
	}

	status := "synced"
	if result.UpToDate {
		status = "up_to_date"
	}
	return s.createJSONResponse(map[string]any{
		"status": status,
		"synced": result.Counts,
		"total":  result.Counts.Total(),
	})
}

func (s *TrackerServer) handleProgress(ctx context.Context, req *protocol.CallToolRequest) (*protocol.CallToolResult, error) {
	var params UserParams
	if err := extractParams(req, &params); err != nil {
		return nil, fmt.Errorf("invalid parameters: %w", err)
	}
	if params.UserID == "" {
		return nil, fmt.Errorf("user_id is required")
	}

	day, err := s.engine.DailyTotals(ctx, params.UserID, "")
	if err != nil {
		return nil, err
	}
	goals, _, err := s.ledger.Goals(ctx, params.UserID)
	if err != nil {
		return nil, err
	}

	return s.createJSONResponse(analytics.Progress(day.Totals, goals))
}
