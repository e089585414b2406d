package cli

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/hyperjump/faqcache/internal/cacheerr"
	"github.com/hyperjump/faqcache/internal/journal"
	"github.com/hyperjump/faqcache/internal/models"
)

// Client calls a running faqcache server.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a client for the server at baseURL. A zero timeout means none.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

type apiError struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request to %s failed: %w", c.baseURL, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode >= 300 {
		var apiErr apiError
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Error != "" {
			code := cacheerr.Code(apiErr.Code)
			if code == "" {
				code = cacheerr.CodeInternal
			}
			return cacheerr.New(code, apiErr.Error, cacheerr.Field("status", resp.StatusCode))
		}
		// Feedback failures come back as a result body.
		if out != nil && json.Unmarshal(data, out) == nil {
			return nil
		}
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// Query runs a cache lookup on the server.
func (c *Client) Query(ctx context.Context, req models.QueryRequest) (models.QueryResult, error) {
	var out models.QueryResult
	err := c.do(ctx, http.MethodPost, "/api/v1/query", req, &out)
	return out, err
}

func (c *Client) Save(ctx context.Context, req models.SaveRequest) (models.SaveResult, error) {
	var out models.SaveResult
	err := c.do(ctx, http.MethodPost, "/api/v1/save", req, &out)
	return out, err
}

func (c *Client) Delete(ctx context.Context, req models.DeleteRequest) (models.DeleteResult, error) {
	var out models.DeleteResult
	err := c.do(ctx, http.MethodPost, "/api/v1/delete", req, &out)
	return out, err
}

func (c *Client) Feedback(ctx context.Context, req models.FeedbackRequest) (models.FeedbackResult, error) {
	var out models.FeedbackResult
	err := c.do(ctx, http.MethodPost, "/api/v1/feedback", req, &out)
	return out, err
}

func (c *Client) Reconstruct(ctx context.Context, req models.ReconstructRequest) (models.ReconstructResult, error) {
	var out models.ReconstructResult
	err := c.do(ctx, http.MethodPost, "/api/v1/reconstruct", req, &out)
	return out, err
}

func (c *Client) Stats(ctx context.Context) (models.Stats, error) {
	var out models.Stats
	err := c.do(ctx, http.MethodGet, "/api/v1/stats", nil, &out)
	return out, err
}

func (c *Client) Export(ctx context.Context, limit int) (models.ExportResult, error) {
	var out models.ExportResult
	err := c.do(ctx, http.MethodGet, "/api/v1/export"+limitQuery(limit), nil, &out)
	return out, err
}

func (c *Client) History(ctx context.Context, limit int) ([]journal.Event, error) {
	var out struct {
		Events []journal.Event `json:"events"`
	}
	err := c.do(ctx, http.MethodGet, "/api/v1/history"+limitQuery(limit), nil, &out)
	return out.Events, err
}

func limitQuery(limit int) string {
	if limit <= 0 {
		return ""
	}
	return "?" + url.Values{"limit": {strconv.Itoa(limit)}}.Encode()
}
