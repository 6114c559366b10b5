// internal/analyze/client.go
package analyze

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"nutrition-tracker/internal/models"
)

// Client calls the external conversational/analysis service that turns a
// free-text or media submission into structured nutrition values. All
// natural-language and food-recognition logic lives on the other side of this
// boundary.
type Client struct {
	httpClient *http.Client
	baseURL    string
	model      string
}

// Request describes one combined submission to analyze.
type Request struct {
	Prompt    string        `json:"prompt"`
	PartCount int           `json:"part_count,omitempty"`
	Origin    models.Origin `json:"origin"`
}

// Draft is the analyzer's structured verdict, ready to pass through the
// duplicate guard and into the ledger.
type Draft struct {
	Description string          `json:"description"`
	Calories    float64         `json:"calories"`
	Protein     float64         `json:"protein_g"`
	Fat         float64         `json:"fat_g"`
	Carbs       float64         `json:"carbs_g"`
	Category    models.Category `json:"category"`
}

// NewClient creates an analysis client for the given service URL.
func NewClient(baseURL, model string) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
	}
}

// Analyze posts the submission and parses the structured draft out of the
// response. An unparseable response degrades to a fallback draft rather than
// failing the whole ingestion.
func (c *Client) Analyze(ctx context.Context, req *Request) (*Draft, error) {
	payload := map[string]any{
		"model":      c.model,
		"prompt":     req.Prompt,
		"part_count": req.PartCount,
		"origin":     string(req.Origin),
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshaling analysis request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/analyze", bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("creating analysis request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("analysis request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading analysis response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("analysis request failed with status %d: %s", resp.StatusCode, string(body))
	}

	return c.parseDraft(string(body), req), nil
}

// parseDraft extracts the first JSON object from the response text. Services
// occasionally wrap the JSON in prose; take the outermost braces.
func (c *Client) parseDraft(text string, req *Request) *Draft {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end <= start {
		return c.fallbackDraft(req)
	}

	var draft Draft
	if err := json.Unmarshal([]byte(text[start:end+1]), &draft); err != nil {
		return c.fallbackDraft(req)
	}
	if draft.Description == "" {
		draft.Description = req.Prompt
	}
	if draft.Category == "" {
		draft.Category = models.Snack
	}
	return &draft
}

func (c *Client) fallbackDraft(req *Request) *Draft {
	return &Draft{
		Description: req.Prompt,
		Category:    models.Snack,
	}
}
