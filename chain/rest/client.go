// Package rest queries the local chain over the cosmos REST API
package rest

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

var log zerolog.Logger

func init() {
	out := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	log = zerolog.New(out).With().Timestamp().Str("component", "chain_rest").Logger()
}

// Client queries one REST endpoint, retrying failed requests
type Client struct {
	baseURL       string
	client        *http.Client
	retryAttempts int
	retryDelay    time.Duration
}

// NewClient creates a client for baseURL
func NewClient(baseURL string, timeout time.Duration, retryAttempts int, retryDelay time.Duration) (*Client, error) {
	if baseURL == "" {
		return nil, errors.New("rest url is required")
	}
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, fmt.Errorf("invalid rest url %q: %w", baseURL, err)
	}
	return &Client{
		baseURL:       strings.TrimRight(baseURL, "/"),
		client:        &http.Client{Timeout: timeout},
		retryAttempts: retryAttempts,
		retryDelay:    retryDelay,
	}, nil
}

// Balance implements dex.BalanceQuerier
func (c *Client) Balance(address, denom string) (decimal.Decimal, error) {
	path := fmt.Sprintf("/cosmos/bank/v1beta1/balances/%s/by_denom?denom=%s", url.PathEscape(address), url.QueryEscape(denom))

	var resp BalanceResponse
	if err := c.get(path, &resp); err != nil {
		return decimal.Zero, err
	}
	if resp.Balance.Amount == "" {
		return decimal.Zero, nil
	}
	amount, err := decimal.NewFromString(resp.Balance.Amount)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to parse balance %q: %w", resp.Balance.Amount, err)
	}
	return amount, nil
}

// NodeStatus reads the node info of the endpoint
func (c *Client) NodeStatus() (NodeStatus, error) {
	var resp NodeInfoResponse
	if err := c.get("/cosmos/base/tendermint/v1beta1/node_info", &resp); err != nil {
		return NodeStatus{}, err
	}
	return NodeStatus{
		BaseURL:          c.baseURL,
		Network:          resp.DefaultNodeInfo.Network,
		Version:          resp.DefaultNodeInfo.Version,
		AppName:          resp.ApplicationVersion.AppName,
		AppVersion:       resp.ApplicationVersion.Version,
		CosmosSdkVersion: resp.ApplicationVersion.CosmosSdkVersion,
	}, nil
}

func (c *Client) get(path string, out any) error {
	fullURL := c.baseURL + path

	var (
		body []byte
		err  error
	)
	for attempt := 0; attempt <= c.retryAttempts; attempt++ {
		if attempt > 0 {
			log.Debug().Err(err).Str("url", fullURL).Int("attempt", attempt).Msg("Retrying request")
			time.Sleep(c.retryDelay)
		}
		body, err = c.fetch(fullURL)
		if err == nil {
			break
		}
	}
	if err != nil {
		return err
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to decode response of %s: %w", path, err)
	}
	return nil
}

func (c *Client) fetch(fullURL string) ([]byte, error) {
	resp, err := c.client.Get(fullURL)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", fullURL, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s returned status %d: %s", fullURL, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return body, nil
}
