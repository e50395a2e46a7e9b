// Package sqsquery is a client of the Osmosis Sidecar Query Server router API.
package sqsquery

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var log zerolog.Logger

func init() {
	out := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	log = zerolog.New(out).With().Timestamp().Str("component", "sqs").Logger()
}

// Client provides access to the Osmosis SQS API with failover support.
// The first url is the primary endpoint, the rest are backups the client switches
// to when the current endpoint stops answering.
type Client struct {
	httpClient     *http.Client
	primaryURL     string
	backupURLs     []string
	currentURL     string
	mu             sync.RWMutex
	healthChecker  *healthChecker
	failoverConfig FailoverConfig
}

// FailoverConfig controls failover behavior
type FailoverConfig struct {
	// MaxRetries is the number of times to retry a failed request on the current endpoint
	MaxRetries int
	// RetryDelay is the initial delay between retries (doubles with each retry)
	RetryDelay time.Duration
	// HealthCheckInterval is how often to check if the primary endpoint is back up
	HealthCheckInterval time.Duration
	// Timeout is the HTTP request timeout
	Timeout time.Duration
}

// DefaultFailoverConfig returns sensible defaults for failover behavior
func DefaultFailoverConfig() FailoverConfig {
	return FailoverConfig{
		MaxRetries:          2,
		RetryDelay:          500 * time.Millisecond,
		HealthCheckInterval: 30 * time.Second,
		Timeout:             10 * time.Second,
	}
}

type healthChecker struct {
	client    *Client
	stopCh    chan struct{}
	stoppedCh chan struct{}
	isRunning bool
	mu        sync.Mutex
}

// NewClient creates a client over the given endpoints
func NewClient(urls []string, config FailoverConfig) (*Client, error) {
	if len(urls) == 0 {
		return nil, errors.New("at least one sqs url is required")
	}
	if _, err := url.ParseRequestURI(urls[0]); err != nil {
		return nil, fmt.Errorf("failed to parse primary sqs url: %w", err)
	}

	validBackups := make([]string, 0, len(urls)-1)
	for _, u := range urls[1:] {
		if _, err := url.ParseRequestURI(u); err != nil {
			log.Warn().Err(err).Str("url", u).Msg("Invalid backup URL, skipping")
			continue
		}
		validBackups = append(validBackups, u)
	}

	client := &Client{
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		primaryURL:     urls[0],
		backupURLs:     validBackups,
		currentURL:     urls[0],
		failoverConfig: config,
	}

	if len(validBackups) > 0 && config.HealthCheckInterval > 0 {
		client.startHealthChecker()
	}

	log.Info().
		Str("primary", urls[0]).
		Int("backups", len(validBackups)).
		Msg("SQS client initialized")
	return client, nil
}

func (c *Client) startHealthChecker() {
	c.healthChecker = &healthChecker{
		client:    c,
		stopCh:    make(chan struct{}),
		stoppedCh: make(chan struct{}),
	}
	c.healthChecker.start()
}

func (h *healthChecker) start() {
	h.mu.Lock()
	if h.isRunning {
		h.mu.Unlock()
		return
	}
	h.isRunning = true
	h.mu.Unlock()

	go func() {
		defer close(h.stoppedCh)
		ticker := time.NewTicker(h.client.failoverConfig.HealthCheckInterval)
		defer ticker.Stop()

		for {
			select {
			case <-h.stopCh:
				return
			case <-ticker.C:
				h.checkAndRestore()
			}
		}
	}()
}

func (h *healthChecker) stop() {
	h.mu.Lock()
	if !h.isRunning {
		h.mu.Unlock()
		return
	}
	h.isRunning = false
	h.mu.Unlock()

	close(h.stopCh)
	<-h.stoppedCh
}

// checkAndRestore moves back to the primary endpoint once it is healthy again
func (h *healthChecker) checkAndRestore() {
	h.client.mu.RLock()
	currentURL := h.client.currentURL
	primaryURL := h.client.primaryURL
	h.client.mu.RUnlock()

	if currentURL == primaryURL {
		return
	}

	if h.client.isEndpointHealthy(primaryURL) {
		h.client.mu.Lock()
		h.client.currentURL = primaryURL
		h.client.mu.Unlock()
		log.Info().Str("url", primaryURL).Msg("Restored primary endpoint")
	}
}

func (c *Client) isEndpointHealthy(endpoint string) bool {
	healthURL := endpoint + "/healthcheck"
	resp, err := c.httpClient.Get(healthURL)
	if err != nil {
		log.Debug().Err(err).Str("url", healthURL).Msg("Health check failed")
		return false
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	return resp.StatusCode == http.StatusOK
}

// CurrentURL returns the endpoint requests are sent to
func (c *Client) CurrentURL() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.currentURL
}

// failover switches to the next healthy endpoint
func (c *Client) failover() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	allURLs := append([]string{c.primaryURL}, c.backupURLs...)
	currentIdx := 0
	for i, u := range allURLs {
		if u == c.currentURL {
			currentIdx = i
			break
		}
	}

	for i := 1; i < len(allURLs); i++ {
		nextURL := allURLs[(currentIdx+i)%len(allURLs)]
		if c.isEndpointHealthy(nextURL) {
			c.currentURL = nextURL
			log.Info().Str("url", nextURL).Msg("Failover to endpoint")
			return true
		}
	}

	log.Warn().Str("url", c.currentURL).Msg("All endpoints unhealthy, staying on current")
	return false
}

// Close stops the health checker
func (c *Client) Close() {
	if c.healthChecker != nil {
		c.healthChecker.stop()
	}
}

func (c *Client) get(fullURL string) ([]byte, error) {
	resp, err := c.httpClient.Get(fullURL)
	if err != nil {
		return nil, err
	}
	body, err := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(body))
	}
	return body, nil
}

// doRequestWithFailover performs a GET with retry on the current endpoint, then one
// attempt on the next healthy endpoint
func (c *Client) doRequestWithFailover(path string) ([]byte, error) {
	var lastErr error
	retryDelay := c.failoverConfig.RetryDelay

	for attempt := 0; attempt <= c.failoverConfig.MaxRetries; attempt++ {
		if attempt > 0 {
			time.Sleep(retryDelay)
			retryDelay *= 2
		}

		body, err := c.get(c.CurrentURL() + path)
		if err != nil {
			lastErr = err
			continue
		}
		return body, nil
	}

	if len(c.backupURLs) > 0 && c.failover() {
		body, err := c.get(c.CurrentURL() + path)
		if err != nil {
			return nil, fmt.Errorf("failover request failed: %w (original: %w)", err, lastErr)
		}
		return body, nil
	}

	return nil, fmt.Errorf("request failed after %d retries: %w", c.failoverConfig.MaxRetries+1, lastErr)
}

// QuoteExactIn returns the best quote for selling tokenIn against tokenOutDenom.
// When singleRoute is set, split routes are excluded so the quote maps onto a
// single chain of pools.
func (c *Client) QuoteExactIn(tokenIn TokenRequest, tokenOutDenom string, singleRoute bool) (RouteTokenResponse, error) {
	if tokenIn.Denom == "" || tokenIn.Amount == "" {
		return RouteTokenResponse{}, errors.New("tokenIn amount and denom are required")
	}
	if tokenOutDenom == "" {
		return RouteTokenResponse{}, errors.New("tokenOutDenom is required")
	}

	path := fmt.Sprintf(
		"/router/quote?tokenIn=%s&tokenOutDenom=%s&singleRoute=%t&humanDenoms=false&applyExponents=false&appendBaseFee=true",
		url.QueryEscape(tokenIn.Amount+tokenIn.Denom), url.QueryEscape(tokenOutDenom), singleRoute,
	)

	body, err := c.doRequestWithFailover(path)
	if err != nil {
		return RouteTokenResponse{}, err
	}

	var routeTokenResponse RouteTokenResponse
	if err := json.Unmarshal(body, &routeTokenResponse); err != nil {
		return RouteTokenResponse{}, fmt.Errorf("failed to parse route response: %w", err)
	}
	return routeTokenResponse, nil
}
