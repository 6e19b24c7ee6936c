// Package restdetail fetches per-tree maintenance detail from the field
// operations service over its REST API.
package restdetail

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/aldalur/plantmap/internal/core/domain"
)

// Client implements ports.DetailSource against the field-ops REST API.
// The two lookups hit separate endpoints and fail independently.
type Client struct {
	baseURL string
	http    *http.Client
}

// New creates a detail client for the given base URL.
func New(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 15 * time.Second},
	}
}

// FetchTasks returns the maintenance tasks for one tree.
func (c *Client) FetchTasks(ctx context.Context, treeID int64) ([]domain.Task, error) {
	var tasks []domain.Task
	if err := c.getJSON(ctx, "/v1/trees/"+strconv.FormatInt(treeID, 10)+"/tasks", &tasks); err != nil {
		return nil, fmt.Errorf("fetch tasks for tree %d: %w", treeID, err)
	}
	return tasks, nil
}

// FetchTimeline returns the visit history for one tree.
func (c *Client) FetchTimeline(ctx context.Context, treeID int64) ([]domain.TimelineEvent, error) {
	var events []domain.TimelineEvent
	if err := c.getJSON(ctx, "/v1/trees/"+strconv.FormatInt(treeID, 10)+"/timeline", &events); err != nil {
		return nil, fmt.Errorf("fetch timeline for tree %d: %w", treeID, err)
	}
	return events, nil
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s: status %d: %s", path, resp.StatusCode, body)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
