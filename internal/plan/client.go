// Package plan resolves a workout plan into its ordered activities when a
// session is started "from plan".
package plan

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/psds-microservice/live-workout-service/internal/model"
)

// Lookup resolves the planned activities of a workout plan.
type Lookup interface {
	GetPlanActivities(ctx context.Context, planID string) ([]model.PlannedActivity, error)
}

// Client implements Lookup against the workout-plan service REST API.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a plan client for the given base URL.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 5 * time.Second},
	}
}

type planResponse struct {
	PlanID     string                  `json:"plan_id"`
	Activities []model.PlannedActivity `json:"activities"`
}

// GetPlanActivities implements Lookup. GET {base}/plans/:id.
func (c *Client) GetPlanActivities(ctx context.Context, planID string) ([]model.PlannedActivity, error) {
	u := fmt.Sprintf("%s/plans/%s", c.baseURL, url.PathEscape(planID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("plan service: unexpected status %d for plan %s", resp.StatusCode, planID)
	}
	var pr planResponse
	if err := json.NewDecoder(resp.Body).Decode(&pr); err != nil {
		return nil, fmt.Errorf("plan service: decode: %w", err)
	}
	return pr.Activities, nil
}
