// Package arbiter is the HTTP client for the move arbiter.
package arbiter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/valyala/fasthttp"

	"github.com/park285/cheese-board/internal/controller"
	"github.com/park285/cheese-board/internal/rules"
	"github.com/park285/cheese-board/pkg/chessdto"
)

var (
	ErrStatus = errors.New("arbiter status error")
	ErrDecode = errors.New("arbiter response decode error")
)

type Client struct {
	baseURL string
	http    *fasthttp.Client

	defaultTimeout time.Duration
	retryMax       int

	mu     sync.RWMutex
	gameID string
}

type Option func(*Client)

func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.defaultTimeout = d }
}

func WithRetry(max int) Option {
	return func(c *Client) { c.retryMax = max }
}

func WithGameID(id string) Option {
	return func(c *Client) { c.gameID = strings.TrimSpace(id) }
}

func WithMaxConnsPerHost(n int) Option {
	return func(c *Client) { c.http.MaxConnsPerHost = n }
}

func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:        strings.TrimRight(baseURL, "/"),
		http:           &fasthttp.Client{ReadTimeout: 10 * time.Second, WriteTimeout: 10 * time.Second, MaxConnsPerHost: 8},
		defaultTimeout: controller.DefaultArbiterTimeout,
		retryMax:       3,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GameID is the game this client plays; empty means the arbiter's default game.
func (c *Client) GameID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.gameID
}

func (c *Client) setGameID(id string) {
	if strings.TrimSpace(id) == "" {
		return
	}
	c.mu.Lock()
	c.gameID = id
	c.mu.Unlock()
}

// Submit posts a move. It is never retried: the arbiter applies moves with side effects.
func (c *Client) Submit(ctx context.Context, mv controller.Move) (controller.Verdict, error) {
	req := chessdto.MoveRequest{From: mv.From.String(), To: mv.To.String(), GameID: c.GameID()}
	var resp chessdto.MoveResponse
	if err := c.doJSON(ctx, fasthttp.MethodPost, "/make_move", req, &resp, false); err != nil {
		return controller.Verdict{}, err
	}
	c.setGameID(resp.GameID)
	return controller.Verdict{
		Legal:        resp.Legal,
		ComputerMove: strings.ToLower(strings.TrimSpace(resp.ComputerMove)),
		GameOver:     resp.GameOver,
		FEN:          resp.FEN,
	}, nil
}

// State fetches the current game snapshot.
func (c *Client) State(ctx context.Context) (*chessdto.GameState, error) {
	path := "/state"
	if id := c.GameID(); id != "" {
		path += "?game_id=" + id
	}
	var st chessdto.GameState
	if err := c.doJSON(ctx, fasthttp.MethodGet, path, nil, &st, true); err != nil {
		return nil, err
	}
	return &st, nil
}

// NewGame asks the arbiter for a fresh game with the player on human's side and switches this client to it.
func (c *Client) NewGame(ctx context.Context, human rules.Color) (*chessdto.GameState, error) {
	req := chessdto.NewGameRequest{}
	if human != rules.NoColor {
		req.Human = human.String()
	}
	var st chessdto.GameState
	if err := c.doJSON(ctx, fasthttp.MethodPost, "/new", req, &st, false); err != nil {
		return nil, err
	}
	c.setGameID(st.GameID)
	return &st, nil
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
		if err := ctx.Err(); err != nil {
			return err
		}
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
		if status < 200 || status >= 300 {
			lastErr = statusError(status, resp.Body())
			if attempt == attempts || !shouldRetryStatus(status) {
				return lastErr
			}
			if sleepErr := sleepWithContext(ctx, backoffDuration(attempt)); sleepErr != nil {
				return lastErr
			}
			continue
		}

		if out != nil {
			if err := json.Unmarshal(resp.Body(), out); err != nil {
				return fmt.Errorf("%w: %v", ErrDecode, err)
			}
		}
		return nil
	}

	if lastErr == nil {
		lastErr = errors.New("unknown error")
	}
	return lastErr
}

func statusError(status int, body []byte) error {
	var er chessdto.ErrorResponse
	msg := truncate(string(body), 512)
	if json.Unmarshal(body, &er) == nil && er.Error != "" {
		msg = er.Error
	}
	return fmt.Errorf("%w: %w", ErrStatus, chessdto.DomainError{Status: status, Message: fmt.Sprintf("status=%d %s", status, msg)})
}

func (c *Client) computeDeadline(ctx context.Context) time.Time {
	clientDL := time.Now().Add(c.defaultTimeout)
	if dl, ok := ctx.Deadline(); ok && dl.Before(clientDL) {
		return dl
	}
	return clientDL
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
	case 502, 503, 504:
		return true
	default:
		return false
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
