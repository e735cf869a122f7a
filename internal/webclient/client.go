// Package webclient is a fasthttp client for the chess HTTP API. It keeps the
// game and player cookies between calls like a browser would.
package webclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/valyala/fasthttp"

	"github.com/park285/chess-web/pkg/chessdto"
)

type Client struct {
	baseURL string
	http    *fasthttp.Client

	defaultTimeout time.Duration
	retryMax       int

	mu      sync.Mutex
	cookies map[string]string
}

type Option func(*Client)

func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.defaultTimeout = d }
}

func WithRetry(max int) Option {
	return func(c *Client) { c.retryMax = max }
}

// WithHTTPClient replaces the transport, e.g. with one dialing an in-memory listener.
func WithHTTPClient(hc *fasthttp.Client) Option {
	return func(c *Client) { c.http = hc }
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:        strings.TrimRight(baseURL, "/"),
		http:           &fasthttp.Client{ReadTimeout: 30 * time.Second, WriteTimeout: 10 * time.Second, MaxConnsPerHost: 16},
		defaultTimeout: 15 * time.Second,
		retryMax:       3,
		cookies:        make(map[string]string),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) NewGame(ctx context.Context) (*chessdto.NewGameResponse, error) {
	var out chessdto.NewGameResponse
	if err := c.doJSON(ctx, fasthttp.MethodPost, "/api/new_game", struct{}{}, &out, true); err != nil {
		return nil, err
	}
	return &out, failure(out.Success, out.Error)
}

// Move is not retried: a lost response may still have been applied.
func (c *Client) Move(ctx context.Context, req chessdto.MoveRequest) (*chessdto.MoveResponse, error) {
	var out chessdto.MoveResponse
	if err := c.doJSON(ctx, fasthttp.MethodPost, "/api/move", req, &out, false); err != nil {
		return nil, err
	}
	return &out, failure(out.Success, out.Error)
}

func (c *Client) ValidMoves(ctx context.Context, row, col int) (*chessdto.ValidMovesResponse, error) {
	var out chessdto.ValidMovesResponse
	req := chessdto.ValidMovesRequest{Row: row, Col: col}
	if err := c.doJSON(ctx, fasthttp.MethodPost, "/api/valid_moves", req, &out, true); err != nil {
		return nil, err
	}
	return &out, failure(out.Success, out.Error)
}

func (c *Client) Undo(ctx context.Context) (*chessdto.StateResponse, error) {
	var out chessdto.StateResponse
	if err := c.doJSON(ctx, fasthttp.MethodPost, "/api/undo", struct{}{}, &out, false); err != nil {
		return nil, err
	}
	return &out, failure(out.Success, out.Error)
}

func (c *Client) State(ctx context.Context) (*chessdto.StateResponse, error) {
	var out chessdto.StateResponse
	if err := c.doJSON(ctx, fasthttp.MethodGet, "/api/game_state", nil, &out, true); err != nil {
		return nil, err
	}
	return &out, failure(out.Success, out.Error)
}

func (c *Client) History(ctx context.Context, limit int) (*chessdto.HistoryResponse, error) {
	var out chessdto.HistoryResponse
	path := fmt.Sprintf("/api/history?limit=%d", limit)
	if err := c.doJSON(ctx, fasthttp.MethodGet, path, nil, &out, true); err != nil {
		return nil, err
	}
	return &out, failure(out.Success, out.Error)
}

// BoardPNG returns the raw image bytes.
func (c *Client) BoardPNG(ctx context.Context) ([]byte, error) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer func() {
		fasthttp.ReleaseRequest(req)
		fasthttp.ReleaseResponse(resp)
	}()
	req.Header.SetMethod(fasthttp.MethodGet)
	req.SetRequestURI(c.baseURL + "/api/board.png")
	c.applyCookies(req)

	if err := c.http.DoDeadline(req, resp, c.computeDeadline(ctx)); err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	c.storeCookies(resp)
	if !strings.HasPrefix(string(resp.Header.ContentType()), "image/png") {
		var e chessdto.ErrorResponse
		if err := json.Unmarshal(resp.Body(), &e); err == nil && e.Error != "" {
			return nil, chessdto.DomainError{Status: resp.StatusCode(), Message: e.Error}
		}
		return nil, fmt.Errorf("unexpected board response: status=%d", resp.StatusCode())
	}
	return append([]byte(nil), resp.Body()...), nil
}

// Cookie returns the value the server last set for name.
func (c *Client) Cookie(name string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cookies[name]
}

func (c *Client) Healthy(ctx context.Context) error {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer func() {
		fasthttp.ReleaseRequest(req)
		fasthttp.ReleaseResponse(resp)
	}()
	req.Header.SetMethod(fasthttp.MethodGet)
	req.SetRequestURI(c.baseURL + "/healthz")
	if err := c.http.DoDeadline(req, resp, c.computeDeadline(ctx)); err != nil {
		return fmt.Errorf("health check: %w", err)
	}
	if resp.StatusCode() != fasthttp.StatusOK {
		return fmt.Errorf("health check: status=%d", resp.StatusCode())
	}
	return nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, in any, out any, retry bool) error {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer func() {
		fasthttp.ReleaseRequest(req)
		fasthttp.ReleaseResponse(resp)
	}()

	req.Header.SetMethod(method)
	req.SetRequestURI(c.baseURL + path)
	req.Header.SetContentType("application/json")
	c.applyCookies(req)

	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		req.SetBody(payload)
	}

	attempts := 1
	if retry && c.retryMax > 1 {
		attempts = c.retryMax
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		err := c.http.DoDeadline(req, resp, c.computeDeadline(ctx))
		if err != nil {
			lastErr = fmt.Errorf("request failed: %w", err)
			if attempt == attempts {
				return lastErr
			}
			if sleepErr := sleepWithContext(ctx, backoffDuration(attempt)); sleepErr != nil {
				return lastErr
			}
			continue
		}

		status := resp.StatusCode()
		if shouldRetryStatus(status) && attempt < attempts {
			lastErr = fmt.Errorf("chess api error: status=%d", status)
			if sleepErr := sleepWithContext(ctx, backoffDuration(attempt)); sleepErr != nil {
				return lastErr
			}
			continue
		}

		c.storeCookies(resp)
		if status != fasthttp.StatusOK {
			var e chessdto.ErrorResponse
			if err := json.Unmarshal(resp.Body(), &e); err == nil && e.Error != "" {
				return chessdto.DomainError{Status: status, Message: e.Error}
			}
			return fmt.Errorf("chess api error: status=%d body=%s", status, truncate(string(resp.Body()), 512))
		}
		if out != nil {
			if err := json.Unmarshal(resp.Body(), out); err != nil {
				return fmt.Errorf("decode response: %w", err)
			}
		}
		return nil
	}

	if lastErr == nil {
		lastErr = errors.New("unknown error")
	}
	return lastErr
}

func (c *Client) applyCookies(req *fasthttp.Request) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, v := range c.cookies {
		req.Header.SetCookie(k, v)
	}
}

func (c *Client) storeCookies(resp *fasthttp.Response) {
	c.mu.Lock()
	defer c.mu.Unlock()
	resp.Header.VisitAllCookie(func(key, value []byte) {
		ck := fasthttp.AcquireCookie()
		defer fasthttp.ReleaseCookie(ck)
		if err := ck.ParseBytes(value); err != nil {
			return
		}
		c.cookies[string(key)] = string(ck.Value())
	})
}

func (c *Client) computeDeadline(ctx context.Context) time.Time {
	clientDL := time.Now().Add(c.defaultTimeout)
	if dl, ok := ctx.Deadline(); ok && dl.Before(clientDL) {
		return dl
	}
	return clientDL
}

// failure turns a success=false body into a DomainError.
func failure(success bool, msg string) error {
	if success {
		return nil
	}
	return chessdto.DomainError{Status: fasthttp.StatusOK, Message: msg}
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func backoffDuration(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if attempt > 6 {
		attempt = 6
	}
	return time.Duration(1<<uint(attempt-1)) * 100 * time.Millisecond
}

func shouldRetryStatus(code int) bool {
	switch code {
	case fasthttp.StatusBadGateway, fasthttp.StatusServiceUnavailable, fasthttp.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
