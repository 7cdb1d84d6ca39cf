package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"legend-tracker/internal/config"
	"legend-tracker/internal/constants"
	"legend-tracker/internal/domain"

	"github.com/rs/zerolog"
	"github.com/sethvargo/go-retry"
	"github.com/valyala/fasthttp"
)

type ClientOptions struct {
	BaseURL     string
	Token       string
	Attempts    int
	BackoffBase time.Duration
	Timeout     time.Duration
	// Dial overrides how connections are opened. Nil dials TCP with the connect timeout.
	Dial fasthttp.DialFunc
}

type CocClient struct {
	opts   ClientOptions
	logger zerolog.Logger

	mu       sync.RWMutex
	client   *fasthttp.Client
	rebuilds int

	rateLimitMu sync.RWMutex
	rateLimit   RateLimitInfo
}

type RateLimitInfo struct {
	Limit     int       `json:"limit"`
	Remaining int       `json:"remaining"`
	Reset     int       `json:"reset"`
	UpdatedAt time.Time `json:"updated_at"`
}

type PlayerResponse struct {
	Tag      string `json:"tag"`
	Name     string `json:"name"`
	Trophies *int   `json:"trophies"`
	League   *struct {
		ID   int    `json:"id"`
		Name string `json:"name"`
	} `json:"league,omitempty"`
}

func NewCocClient(cfg *config.Config, logger zerolog.Logger) *CocClient {
	return NewCocClientWithOptions(ClientOptions{
		BaseURL:     cfg.CocAPIBaseURL,
		Token:       cfg.CocAPIToken,
		Attempts:    cfg.FetchAttempts,
		BackoffBase: cfg.FetchBackoffBase,
		Timeout:     cfg.RequestTimeout,
	}, logger)
}

func NewCocClientWithOptions(opts ClientOptions, logger zerolog.Logger) *CocClient {
	if opts.Attempts < 1 {
		opts.Attempts = constants.FetchAttempts
	}
	if opts.BackoffBase <= 0 {
		opts.BackoffBase = constants.FetchBackoffBase
	}
	if opts.Timeout <= 0 {
		opts.Timeout = constants.ExternalAPITimeout
	}
	if opts.Dial == nil {
		opts.Dial = func(addr string) (net.Conn, error) {
			return fasthttp.DialTimeout(addr, constants.ConnectTimeout)
		}
	}
	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")

	c := &CocClient{
		opts:   opts,
		logger: logger.With().Str("component", "coc_client").Logger(),
	}
	c.client = c.newFastClient()
	return c
}

func (c *CocClient) newFastClient() *fasthttp.Client {
	return &fasthttp.Client{
		Name:                      "legend-tracker",
		Dial:                      c.opts.Dial,
		MaxConnsPerHost:           constants.HTTPMaxConnsPerHost,
		ReadTimeout:               constants.ReadTimeout,
		WriteTimeout:              constants.WriteTimeout,
		MaxIdleConnDuration:       constants.HTTPMaxIdleConnDuration,
		MaxIdemponentCallAttempts: 1,
	}
}

// resetPool drops every pooled connection and starts over with a fresh client, so the next
// attempt does not reuse a connection the server already reset.
func (c *CocClient) resetPool() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.client.CloseIdleConnections()
	c.client = c.newFastClient()
	c.rebuilds++
}

func (c *CocClient) Rebuilds() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.rebuilds
}

func (c *CocClient) GetRateLimitInfo() RateLimitInfo {
	c.rateLimitMu.RLock()
	defer c.rateLimitMu.RUnlock()
	return c.rateLimit
}

func (c *CocClient) updateRateLimit(resp *fasthttp.Response) {
	c.rateLimitMu.Lock()
	defer c.rateLimitMu.Unlock()

	if limit := string(resp.Header.Peek("X-Ratelimit-Limit")); limit != "" {
		if val, err := strconv.Atoi(limit); err == nil {
			c.rateLimit.Limit = val
		}
	}
	if remaining := string(resp.Header.Peek("X-Ratelimit-Remaining")); remaining != "" {
		if val, err := strconv.Atoi(remaining); err == nil {
			c.rateLimit.Remaining = val
		}
	}
	if reset := string(resp.Header.Peek("X-Ratelimit-Reset")); reset != "" {
		if val, err := strconv.Atoi(reset); err == nil {
			c.rateLimit.Reset = val
		}
	}
	c.rateLimit.UpdatedAt = time.Now()
}

func (c *CocClient) GetPlayer(ctx context.Context, tag string) (*PlayerResponse, error) {
	tag, err := domain.NormalizeTag(tag)
	if err != nil {
		return nil, err
	}
	url := fmt.Sprintf("%s/players/%%23%s", c.opts.BaseURL, tag)

	var player *PlayerResponse
	attempt := 0
	backoff := retry.WithMaxRetries(uint64(c.opts.Attempts-1), retry.NewExponential(c.opts.BackoffBase))

	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		p, err := doRequest[PlayerResponse](ctx, c, url)
		if err == nil {
			player = p
			return nil
		}
		if !errors.Is(err, domain.ErrNetworkTransient) {
			return err
		}
		c.logger.Warn().Err(err).Str("tag", tag).Int("attempt", attempt).Msg("player fetch failed")
		if attempt < c.opts.Attempts {
			c.resetPool()
		}
		return retry.RetryableError(err)
	})
	if err != nil {
		return nil, err
	}
	return player, nil
}

// FetchTrophies returns the player's current trophy count.
func (c *CocClient) FetchTrophies(ctx context.Context, tag string) (int, error) {
	p, err := c.GetPlayer(ctx, tag)
	if err != nil {
		return 0, err
	}
	if p.Trophies == nil {
		return 0, fmt.Errorf("%w: player %s has no trophies field", domain.ErrDataShape, tag)
	}
	return *p.Trophies, nil
}

func doRequest[T any](ctx context.Context, c *CocClient, url string) (*T, error) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(url)
	req.Header.SetMethod(fasthttp.MethodGet)
	req.Header.Set("Authorization", "Bearer "+c.opts.Token)
	req.Header.Set("Accept", "application/json")

	deadline := time.Now().Add(c.opts.Timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	c.mu.RLock()
	client := c.client
	c.mu.RUnlock()

	if err := client.DoDeadline(req, resp, deadline); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("%w: %w", domain.ErrNetworkTransient, err)
	}

	c.updateRateLimit(resp)

	if code := resp.StatusCode(); code < 200 || code > 299 {
		return nil, fmt.Errorf("%w: API error: %d", domain.ErrUpstreamUnavailable, code)
	}

	var result T
	if err := json.Unmarshal(resp.Body(), &result); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrDataShape, err)
	}
	return &result, nil
}
