// Package authority is the HTTP client for the persistence/authority
// service that owns ground truth. Transient failures are retried with a
// bounded backoff; explicit cancellation is never retried; typed
// rejections come back as *APIError for the ledger to classify.
package authority

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"jamsync/internal/identity"
	"jamsync/internal/models"
	"jamsync/internal/providers"
	"jamsync/internal/structures"
	"net/http"
	"time"

	json "github.com/goccy/go-json"
	"github.com/hashicorp/go-retryablehttp"
)

const maxResponseBodySize = 4 << 20 // 4 MB

type ClientInterface interface {
	Snapshot(ctx context.Context) (*models.Snapshot, error)
	AddEntry(ctx context.Context, title, artist string) (*models.Entry, error)
	Vote(ctx context.Context, entryID string, dir models.VoteDirection, active bool) error
	DeleteEntry(ctx context.Context, entryID string) error
	BattleVote(ctx context.Context, choice models.BattleChoice) error
}

type Client struct {
	baseURL   string
	visitorID string
	client    *retryablehttp.Client
	timeout   time.Duration
	logger    providers.Logger
}

func NewClient(conf *structures.Config, visitorID identity.VisitorID, logger providers.Logger) ClientInterface {
	rc := retryablehttp.NewClient()
	rc.RetryMax = conf.Authority.RetryMax
	rc.RetryWaitMin = 500 * time.Millisecond
	rc.RetryWaitMax = time.Second
	rc.Logger = nil
	rc.CheckRetry = checkRetry
	rc.HTTPClient = &http.Client{Timeout: conf.Authority.Timeout}

	return &Client{
		baseURL:   conf.Authority.BaseURL,
		visitorID: string(visitorID),
		client:    rc,
		timeout:   conf.Authority.Timeout,
		logger:    logger,
	}
}

// checkRetry retries transport failures and 5xx responses only. A 429 is
// surfaced to the caller verbatim, never consumed by an automatic retry,
// and a cancelled context stops the attempt chain immediately.
func checkRetry(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	if err != nil {
		return true, nil
	}
	if resp.StatusCode >= 500 && resp.StatusCode != http.StatusNotImplemented {
		return true, nil
	}
	return false, nil
}

func (c *Client) Snapshot(ctx context.Context) (*models.Snapshot, error) {
	body, err := c.do(ctx, http.MethodGet, "/v1/session/snapshot?visitor="+c.visitorID, nil)
	if err != nil {
		return nil, err
	}
	var snap models.Snapshot
	if err := json.Unmarshal(body, &snap); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	return &snap, nil
}

func (c *Client) AddEntry(ctx context.Context, title, artist string) (*models.Entry, error) {
	payload := map[string]string{
		"visitorId": c.visitorID,
		"title":     title,
		"artist":    artist,
	}
	body, err := c.do(ctx, http.MethodPost, "/v1/songs", payload)
	if err != nil {
		return nil, err
	}
	var entry models.Entry
	if err := json.Unmarshal(body, &entry); err != nil {
		return nil, fmt.Errorf("failed to decode created entry: %w", err)
	}
	return &entry, nil
}

func (c *Client) Vote(ctx context.Context, entryID string, dir models.VoteDirection, active bool) error {
	payload := map[string]any{
		"visitorId": c.visitorID,
		"entryId":   entryID,
		"direction": string(dir),
		"active":    active,
	}
	_, err := c.do(ctx, http.MethodPost, "/v1/votes", payload)
	return err
}

func (c *Client) DeleteEntry(ctx context.Context, entryID string) error {
	payload := map[string]string{
		"visitorId": c.visitorID,
		"entryId":   entryID,
	}
	_, err := c.do(ctx, http.MethodPost, "/v1/purge/delete", payload)
	return err
}

func (c *Client) BattleVote(ctx context.Context, choice models.BattleChoice) error {
	payload := map[string]string{
		"visitorId": c.visitorID,
		"choice":    string(choice),
	}
	_, err := c.do(ctx, http.MethodPost, "/v1/battle/vote", payload)
	return err
}

func (c *Client) do(ctx context.Context, method, endpoint string, payload any) ([]byte, error) {
	var rawBody io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request: %w", err)
		}
		rawBody = bytes.NewReader(data)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, method, c.baseURL+endpoint, rawBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Visitor-Id", c.visitorID)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("authority unreachable: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodySize))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, decodeAPIError(resp.StatusCode, body)
	}
	return body, nil
}

func decodeAPIError(status int, body []byte) error {
	var wire struct {
		Error        string `json:"error"`
		Message      string `json:"message"`
		RetryAfterMs int64  `json:"retryAfterMs"`
	}
	apiErr := &APIError{Code: CodeUnknown, Status: status}
	if err := json.Unmarshal(body, &wire); err == nil && wire.Error != "" {
		apiErr.Code = ErrorCode(wire.Error)
		apiErr.Message = wire.Message
		apiErr.RetryAfter = time.Duration(wire.RetryAfterMs) * time.Millisecond
	}
	if apiErr.Code == CodeUnknown {
		// Older authorities reply with bare statuses.
		switch status {
		case http.StatusNotFound:
			apiErr.Code = CodeNotFound
		case http.StatusForbidden:
			apiErr.Code = CodeBanned
		case http.StatusTooManyRequests:
			apiErr.Code = CodeRateLimited
		}
	}
	return apiErr
}
