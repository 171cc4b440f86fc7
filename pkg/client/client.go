// Package client is the HTTP client used by dashboard frontends and
// tooling. It speaks the envelope wire format and satisfies the
// interfaces consumed by the engine, stream and activity packages.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/revuehq/revue-api/internal/models"
	appErrors "github.com/revuehq/revue-api/pkg/errors"
)

const defaultTimeout = 30 * time.Second

// Client talks to the review API over HTTP.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// Options configures a Client.
type Options struct {
	BaseURL string
	Token   string
	HTTP    *http.Client
}

// New constructs a client. BaseURL should include the API prefix,
// e.g. "http://localhost:8080/api/v1".
func New(opts Options) *Client {
	httpClient := opts.HTTP
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	return &Client{
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		token:   opts.Token,
		http:    httpClient,
	}
}

// SetToken replaces the bearer token used for subsequent requests.
func (c *Client) SetToken(token string) {
	c.token = token
}

type envelope struct {
	Data       json.RawMessage    `json:"data"`
	Error      *appErrors.Error   `json:"error"`
	Pagination *models.Pagination `json:"pagination"`
}

// ListReviews fetches a page of review items.
func (c *Client) ListReviews(ctx context.Context, filter models.ReviewItemFilter) ([]models.ReviewItem, *models.Pagination, error) {
	query := url.Values{}
	if filter.Status != nil {
		query.Set("status", string(*filter.Status))
	}
	if filter.Search != "" {
		query.Set("search", filter.Search)
	}
	if filter.Page > 0 {
		query.Set("page", fmt.Sprintf("%d", filter.Page))
	}
	if filter.PageSize > 0 {
		query.Set("page_size", fmt.Sprintf("%d", filter.PageSize))
	}
	if filter.SortBy != "" {
		query.Set("sort_by", filter.SortBy)
	}
	if filter.SortOrder != "" {
		query.Set("sort_order", filter.SortOrder)
	}

	path := "/reviews"
	if encoded := query.Encode(); encoded != "" {
		path += "?" + encoded
	}

	var items []models.ReviewItem
	pagination, err := c.do(ctx, http.MethodGet, path, nil, &items)
	if err != nil {
		return nil, nil, err
	}
	return items, pagination, nil
}

// GetReview fetches a single review item.
func (c *Client) GetReview(ctx context.Context, id string) (*models.ReviewItem, error) {
	var item models.ReviewItem
	if _, err := c.do(ctx, http.MethodGet, "/reviews/"+url.PathEscape(id), nil, &item); err != nil {
		return nil, err
	}
	return &item, nil
}

// UpdateDecision applies a decision to a single item and returns the
// server's state for it.
func (c *Client) UpdateDecision(ctx context.Context, itemID string, status models.ReviewStatus, feedback *string) (*models.ReviewItem, error) {
	payload := map[string]interface{}{"status": status}
	if feedback != nil {
		payload["feedback"] = *feedback
	}

	var item models.ReviewItem
	if _, err := c.do(ctx, http.MethodPatch, "/reviews/"+url.PathEscape(itemID)+"/decision", payload, &item); err != nil {
		return nil, err
	}
	return &item, nil
}

// UpdateDecisionBatch applies one decision to many items.
func (c *Client) UpdateDecisionBatch(ctx context.Context, ids []string, status models.ReviewStatus, feedback *string) (*models.BatchDecisionResult, error) {
	payload := map[string]interface{}{"ids": ids, "status": status}
	if feedback != nil {
		payload["feedback"] = *feedback
	}

	var result models.BatchDecisionResult
	if _, err := c.do(ctx, http.MethodPost, "/reviews/bulk-decision", payload, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Plan fetches the stream chunk plan for an item.
func (c *Client) Plan(ctx context.Context, itemID string) (*models.ChunkPlan, error) {
	var plan models.ChunkPlan
	if _, err := c.do(ctx, http.MethodGet, "/reviews/"+url.PathEscape(itemID)+"/stream-plan", nil, &plan); err != nil {
		return nil, err
	}
	return &plan, nil
}

// CreateEntry records an audit entry. The actor is taken from the
// bearer token server-side.
func (c *Client) CreateEntry(ctx context.Context, entry *models.AuditEntry) error {
	payload := map[string]interface{}{"action": entry.Action}
	if entry.TargetID != nil {
		payload["target_id"] = *entry.TargetID
	}
	if entry.GroupID != nil {
		payload["group_id"] = *entry.GroupID
	}
	if len(entry.Metadata) > 0 {
		payload["metadata"] = json.RawMessage(entry.Metadata)
	}

	_, err := c.do(ctx, http.MethodPost, "/audit", payload, nil)
	return err
}

func (c *Client) do(ctx context.Context, method, path string, payload, dest interface{}) (*models.Pagination, error) {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode == http.StatusNoContent {
		return nil, nil
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	if env.Error != nil {
		return nil, env.Error
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return nil, appErrors.New(appErrors.ErrInternal.Code, resp.StatusCode, fmt.Sprintf("unexpected status %d", resp.StatusCode))
	}

	if dest != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, dest); err != nil {
			return nil, fmt.Errorf("decode response data: %w", err)
		}
	}
	return env.Pagination, nil
}
