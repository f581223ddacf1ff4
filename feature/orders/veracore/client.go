package veracore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"label-matcher/core/utils"
	"label-matcher/feature/labels/models"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Report states returned by the status endpoint.
const (
	statusDone     = "Done"
	statusTooLarge = "Request too Large"
)

var errUnauthorized = errors.New("veracore: unauthorized")

// Client reads open orders from a VeraCore report.
type Client struct {
	cfg        Config
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *zap.Logger

	mu    sync.Mutex
	token string
}

// NewClient creates a VeraCore client.
func NewClient(cfg Config, logger *zap.Logger) *Client {
	if cfg.PollAttempts <= 0 {
		cfg.PollAttempts = 30
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 2 * time.Second
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = 90 * time.Second
	}
	if cfg.Retries < 0 {
		cfg.Retries = 0
	}
	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}
	burst := cfg.RateBurst
	if burst <= 0 {
		burst = 1
	}

	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{},
		limiter:    rate.NewLimiter(limit, burst),
		logger:     logger,
	}
}

// FetchOpenOrders runs the configured report and returns the distinct,
// trimmed order ids it lists.
func (c *Client) FetchOpenOrders(ctx context.Context) ([]string, error) {
	taskID, err := c.startReport(ctx)
	if err != nil {
		return nil, err
	}
	if err := c.waitForReport(ctx, taskID); err != nil {
		return nil, err
	}
	rows, err := c.fetchReport(ctx, taskID)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(rows))
	seen := make(map[string]struct{}, len(rows))
	for _, row := range rows {
		id := strings.TrimSpace(utils.ToString(row[c.cfg.OrderColumn]))
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}

	c.logger.Info("Fetched open orders",
		zap.String("report", c.cfg.ReportName),
		zap.Int("rows", len(rows)),
		zap.Int("orders", len(ids)))
	return ids, nil
}

func (c *Client) startReport(ctx context.Context) (string, error) {
	body := map[string]any{"reportName": c.cfg.ReportName, "filters": []any{}}
	var resp struct {
		TaskID string `json:"TaskId"`
	}
	if err := c.call(ctx, http.MethodPost, "/reports", body, &resp, c.cfg.Timeout); err != nil {
		return "", fmt.Errorf("failed to start report %q: %w", c.cfg.ReportName, err)
	}
	if resp.TaskID == "" {
		return "", models.Permanent(fmt.Errorf("report %q returned no task id", c.cfg.ReportName))
	}
	return resp.TaskID, nil
}

func (c *Client) waitForReport(ctx context.Context, taskID string) error {
	path := "/reports/" + url.PathEscape(taskID) + "/status"
	for attempt := 1; attempt <= c.cfg.PollAttempts; attempt++ {
		var resp struct {
			Status string `json:"Status"`
		}
		if err := c.call(ctx, http.MethodGet, path, nil, &resp, c.cfg.Timeout); err != nil {
			return fmt.Errorf("failed to poll report %s: %w", taskID, err)
		}
		switch resp.Status {
		case statusDone:
			return nil
		case statusTooLarge:
			return models.Permanent(fmt.Errorf("report %q is too large", c.cfg.ReportName))
		}

		c.logger.Debug("Report not ready", zap.String("task_id", taskID), zap.String("status", resp.Status), zap.Int("attempt", attempt))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.cfg.PollInterval):
		}
	}
	return models.Transient(fmt.Errorf("report %s not ready after %d polls", taskID, c.cfg.PollAttempts))
}

func (c *Client) fetchReport(ctx context.Context, taskID string) ([]map[string]any, error) {
	var resp struct {
		Data []map[string]any `json:"Data"`
	}
	if err := c.call(ctx, http.MethodGet, "/reports/"+url.PathEscape(taskID), nil, &resp, c.cfg.FetchTimeout); err != nil {
		return nil, fmt.Errorf("failed to fetch report %s: %w", taskID, err)
	}
	return resp.Data, nil
}

// call performs an authenticated request. A rejected token is replaced once.
func (c *Client) call(ctx context.Context, method, path string, in, out any, timeout time.Duration) error {
	err := c.retrying(ctx, method, path, in, out, true, timeout)
	if !errors.Is(err, errUnauthorized) {
		return err
	}
	c.logger.Info("VeraCore token rejected, logging in again")
	c.setToken("")
	err = c.retrying(ctx, method, path, in, out, true, timeout)
	if errors.Is(err, errUnauthorized) {
		return models.Permanent(err)
	}
	return err
}

func (c *Client) bearer(ctx context.Context) (string, error) {
	c.mu.Lock()
	token := c.token
	c.mu.Unlock()
	if token != "" {
		return token, nil
	}

	body := map[string]string{
		"userName": c.cfg.Username,
		"password": c.cfg.Password,
		"systemId": c.cfg.SystemID,
	}
	var resp struct {
		Token string `json:"Token"`
	}
	err := c.retrying(ctx, http.MethodPost, "/Login", body, &resp, false, c.cfg.Timeout)
	if errors.Is(err, errUnauthorized) {
		return "", models.Permanent(fmt.Errorf("login rejected for %s", c.cfg.Username))
	}
	if err != nil {
		return "", fmt.Errorf("login failed: %w", err)
	}
	if resp.Token == "" {
		return "", models.Permanent(errors.New("login returned no token"))
	}
	c.setToken(resp.Token)
	return resp.Token, nil
}

func (c *Client) setToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

// retrying runs roundTrip with jittered exponential backoff for transient
// failures.
func (c *Client) retrying(ctx context.Context, method, path string, in, out any, auth bool, timeout time.Duration) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 200 * time.Millisecond
	b.MaxInterval = 5 * time.Second
	b.MaxElapsedTime = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(c.cfg.Retries)), ctx)

	return backoff.RetryNotify(func() error {
		err := c.roundTrip(ctx, method, path, in, out, auth, timeout)
		if err != nil && !models.IsTransient(err) {
			return backoff.Permanent(err)
		}
		return err
	}, policy, func(err error, wait time.Duration) {
		c.logger.Warn("VeraCore request failed, retrying",
			zap.String("method", method),
			zap.String("path", path),
			zap.Duration("backoff", wait),
			zap.Error(err))
	})
}

func (c *Client) roundTrip(ctx context.Context, method, path string, in, out any, auth bool, timeout time.Duration) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	var token string
	if auth {
		var err error
		if token, err = c.bearer(ctx); err != nil {
			return err
		}
	}

	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return models.Permanent(fmt.Errorf("failed to encode request: %w", err))
		}
		body = bytes.NewReader(payload)
	}

	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, method, strings.TrimSuffix(c.cfg.BaseURL, "/")+path, body)
	if err != nil {
		return models.Permanent(fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return models.Transient(fmt.Errorf("%s %s: %w", method, path, err))
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return errUnauthorized
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
		return models.Transient(fmt.Errorf("%s %s: status %d: %s", method, path, resp.StatusCode, snippet(resp.Body)))
	case resp.StatusCode != http.StatusOK:
		return models.Permanent(fmt.Errorf("%s %s: status %d: %s", method, path, resp.StatusCode, snippet(resp.Body)))
	}

	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	if err := dec.Decode(out); err != nil {
		return models.Permanent(fmt.Errorf("%s %s: failed to decode response: %w", method, path, err))
	}
	return nil
}

func snippet(r io.Reader) string {
	b, _ := io.ReadAll(io.LimitReader(r, 300))
	return strings.TrimSpace(string(b))
}
