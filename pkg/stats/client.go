package stats

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// PlayerOutcome is one player's final line for the stat service
type PlayerOutcome struct {
	PlayerID    string `json:"player_id"`
	Placement   int    `json:"placement"`
	Kills       int    `json:"kills"`
	Deaths      int    `json:"deaths"`
	DamageDealt int    `json:"damage_dealt"`
	DamageTaken int    `json:"damage_taken"`
}

// MatchReport is the payload posted after a match completes
type MatchReport struct {
	MatchID  string          `json:"match_id"`
	Mode     string          `json:"game_mode"`
	Region   string          `json:"region"`
	WinnerID string          `json:"winner_id,omitempty"`
	Duration int             `json:"duration"`
	Players  []PlayerOutcome `json:"players"`
}

// Client talks to the external stat-update service. Stat upserts are
// idempotent on the collaborator side, so delivery is at-least-once.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
	maxRetries int
	retryDelay time.Duration
}

// NewClient creates a stat service client
func NewClient(baseURL string, logger *zap.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		logger:     logger,
		maxRetries: 3,
		retryDelay: 2 * time.Second,
	}
}

// ReportMatch delivers a completed match report, retrying transient failures
func (c *Client) ReportMatch(ctx context.Context, report MatchReport) error {
	body, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to marshal match report: %w", err)
	}

	var lastErr error
	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		lastErr = c.post(ctx, body)
		if lastErr == nil {
			return nil
		}

		c.logger.Warn("Stat report delivery failed",
			zap.String("matchId", report.MatchID),
			zap.Int("attempt", attempt),
			zap.Error(lastErr))

		if attempt < c.maxRetries {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(c.retryDelay * time.Duration(attempt)):
			}
		}
	}

	return fmt.Errorf("stat report failed after %d attempts: %w", c.maxRetries, lastErr)
}

func (c *Client) post(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/internal/stats/match", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("stat service returned status %d", resp.StatusCode)
	}

	return nil
}
