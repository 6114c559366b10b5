// internal/server/server.go
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/ThinkInAIXYZ/go-mcp/protocol"
	"github.com/ThinkInAIXYZ/go-mcp/server"

	"nutrition-tracker/internal/analytics"
	"nutrition-tracker/internal/analyze"
	"nutrition-tracker/internal/burst"
	"nutrition-tracker/internal/dedup"
	"nutrition-tracker/internal/mirror"
	"nutrition-tracker/internal/storage"
)

type Config struct {
	Host          string
	Port          int
	DBPath        string
	MirrorPath    string
	AnalyzerURL   string
	AnalyzerModel string

	// Zero values fall back to the package defaults.
	Debounce    time.Duration
	DedupWindow time.Duration
}

// Analyzer turns a combined submission into a structured draft entry.
type Analyzer interface {
	Analyze(ctx context.Context, req *analyze.Request) (*analyze.Draft, error)
}

// TrackerServer exposes the tracker's tools over an HTTP MCP endpoint and
// owns the ingestion pipeline behind them.
type TrackerServer struct {
	server     *server.Server
	httpServer *http.Server
	ledger     *storage.Ledger
	guard      *dedup.Guard
	aggregator *burst.Aggregator
	analyzer   Analyzer
	engine     *analytics.Engine
	syncer     *mirror.Syncer
	config     *Config
	logger     *slog.Logger

	handlers map[string]toolHandler
}

type toolHandler func(ctx context.Context, req *protocol.CallToolRequest) (*protocol.CallToolResult, error)

func NewTrackerServer(cfg *Config) (*TrackerServer, error) {
	ledger, err := storage.NewLedger(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize ledger: %w", err)
	}

	var store mirror.Store
	if cfg.MirrorPath != "" {
		store, err = mirror.NewWorkbook(cfg.MirrorPath)
		if err != nil {
			ledger.Close()
			return nil, fmt.Errorf("failed to initialize mirror: %w", err)
		}
	} else {
		store = mirror.NewMemoryStore()
	}

	ts := &TrackerServer{
		ledger:   ledger,
		guard:    dedup.NewGuard(ledger, cfg.DedupWindow),
		analyzer: analyze.NewClient(cfg.AnalyzerURL, cfg.AnalyzerModel),
		engine:   analytics.NewEngine(ledger),
		syncer:   mirror.NewSyncer(ledger, store),
		config:   cfg,
		logger:   slog.Default().With("component", "server"),
	}
	ts.aggregator = burst.NewAggregator(cfg.Debounce, ts.drainBurst)

	mcpServer, err := server.NewServer(
		nil, // transport is handled by our own HTTP mux
		server.WithServerInfo(protocol.Implementation{
			Name:    "nutrition-tracker",
			Version: "1.0.0",
		}),
	)
	if err != nil {
		ledger.Close()
		return nil, fmt.Errorf("failed to create MCP server: %w", err)
	}
	ts.server = mcpServer
	ts.registerTools()

	mux := http.NewServeMux()
	mux.HandleFunc("/", ts.handleHTTP)

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	ts.httpServer = &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	return ts, nil
}

func (s *TrackerServer) registerTools() {
	s.handlers = map[string]toolHandler{
		"log_entry":        s.handleLogEntry,
		"ingest_media":     s.handleIngestMedia,
		"get_today":        s.handleGetToday,
		"get_date":         s.handleGetDate,
		"get_week":         s.handleGetWeek,
		"get_goals":        s.handleGetGoals,
		"update_goals":     s.handleUpdateGoals,
		"edit_entry":       s.handleEditEntry,
		"delete_entry":     s.handleDeleteEntry,
		"undo_last":        s.handleUndoLast,
		"log_weight":       s.handleLogWeight,
		"delete_weight":    s.handleDeleteWeight,
		"weight_history":   s.handleWeightHistory,
		"weight_analysis":  s.handleWeightAnalysis,
		"remember":         s.handleRemember,
		"recall":           s.handleRecall,
		"forget":           s.handleForget,
		"calculate_totals": s.handleCalculateTotals,
		"sync_mirror":      s.handleSyncMirror,
		"progress":         s.handleProgress,
	}
}

func (s *TrackerServer) handleHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

	if r.Method == http.MethodOptions {
		return
	}
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var request protocol.CallToolRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		http.Error(w, fmt.Sprintf("Invalid JSON: %v", err), http.StatusBadRequest)
		return
	}

	handler, ok := s.handlers[request.Name]
	if !ok {
		http.Error(w, fmt.Sprintf("Unknown tool: %s", request.Name), http.StatusNotFound)
		return
	}

	result, err := handler(r.Context(), &request)
	if err != nil {
		// Expected policy outcomes travel as structured payloads, not
		// transport errors.
		if result, ok = s.policyResult(err); !ok {
			s.logger.Error("tool failed", "tool", request.Name, "error", err)
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
	}

	if err := json.NewEncoder(w).Encode(result); err != nil {
		s.logger.Error("failed to encode response", "error", err)
	}
}

// policyResult converts domain refusals into success-shaped payloads with a
// status field, so conversational callers can relay them instead of retrying.
func (s *TrackerServer) policyResult(err error) (*protocol.CallToolResult, bool) {
	var dup *dedup.DuplicateError
	if errors.As(err, &dup) {
		res, jerr := s.createJSONResponse(map[string]any{
			"status":      "duplicate_prevented",
			"existing_id": dup.ExistingID,
			"message":     fmt.Sprintf("%q was already logged moments ago", dup.Description),
		})
		return res, jerr == nil
	}

	var verr *analytics.ValidationError
	if errors.As(err, &verr) {
		res, jerr := s.createJSONResponse(map[string]any{
			"status":  "error",
			"message": verr.Msg,
		})
		return res, jerr == nil
	}

	var pf *mirror.PartialFailure
	if errors.As(err, &pf) {
		failed := make(map[string]string, len(pf.Failed))
		for table, terr := range pf.Failed {
			failed[table] = terr.Error()
		}
		res, jerr := s.createJSONResponse(map[string]any{
			"status": "partial",
			"synced": pf.Counts,
			"failed": failed,
		})
		return res, jerr == nil
	}

	switch {
	case errors.Is(err, storage.ErrNotFound):
		res, jerr := s.createJSONResponse(map[string]any{
			"status":  "not_found",
			"message": "nothing matched",
		})
		return res, jerr == nil
	case errors.Is(err, storage.ErrNegativeMacros),
		errors.Is(err, storage.ErrEmptyPatch),
		errors.Is(err, mirror.ErrSyncInProgress):
		res, jerr := s.createJSONResponse(map[string]any{
			"status":  "error",
			"message": err.Error(),
		})
		return res, jerr == nil
	}

	return nil, false
}

func (s *TrackerServer) Start(ctx context.Context) error {
	s.logger.Info("starting tracker server", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *TrackerServer) Stop() error {
	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(context.Background()); err != nil {
			return err
		}
	}
	if s.ledger != nil {
		return s.ledger.Close()
	}
	return nil
}

func (s *TrackerServer) createJSONResponse(data interface{}) (*protocol.CallToolResult, error) {
	jsonBytes, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal response: %w", err)
	}

	return &protocol.CallToolResult{
		Content: []protocol.Content{
			protocol.TextContent{
				Type: "text",
				Text: string(jsonBytes),
			},
		},
	}, nil
}
